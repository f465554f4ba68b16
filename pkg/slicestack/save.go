package slicestack

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"mriresample/pkg/volume"
)

// Axis names the direction a volume is cut along.
type Axis string

const (
	// AxisCol cuts column planes (image is slices by rows).
	AxisCol Axis = "x"
	// AxisRow cuts row planes (image is cols by slices).
	AxisRow Axis = "y"
	// AxisSlice cuts slice planes (image is cols by rows).
	AxisSlice Axis = "z"
)

// Extract returns plane pos of frame f along axis as a 16-bit grayscale
// image. Values are clamped to [0, 1] before scaling.
func Extract(v *volume.Volume, axis Axis, pos, f int) (*image.Gray16, error) {
	if f < 0 || f >= v.Frames {
		return nil, fmt.Errorf("frame %d outside [0, %d)", f, v.Frames)
	}
	n, err := planes(v, axis)
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos >= n {
		return nil, fmt.Errorf("position %d outside [0, %d) along %s", pos, n, axis)
	}

	var img *image.Gray16
	switch axis {
	case AxisCol:
		img = image.NewGray16(image.Rect(0, 0, v.Slices, v.Rows))
		for r := 0; r < v.Rows; r++ {
			for s := 0; s < v.Slices; s++ {
				img.SetGray16(s, r, gray(v.Data[v.Index(pos, r, s, f)]))
			}
		}
	case AxisRow:
		img = image.NewGray16(image.Rect(0, 0, v.Cols, v.Slices))
		for s := 0; s < v.Slices; s++ {
			for c := 0; c < v.Cols; c++ {
				img.SetGray16(c, s, gray(v.Data[v.Index(c, pos, s, f)]))
			}
		}
	case AxisSlice:
		img = image.NewGray16(image.Rect(0, 0, v.Cols, v.Rows))
		for r := 0; r < v.Rows; r++ {
			for c := 0; c < v.Cols; c++ {
				img.SetGray16(c, r, gray(v.Data[v.Index(c, r, pos, f)]))
			}
		}
	}
	return img, nil
}

func planes(v *volume.Volume, axis Axis) (int, error) {
	switch axis {
	case AxisCol:
		return v.Cols, nil
	case AxisRow:
		return v.Rows, nil
	case AxisSlice:
		return v.Slices, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

func gray(x float64) color.Gray16 {
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(1, x)) * 65535))}
}

// SaveImage writes img to path, choosing the encoder from the extension:
// jpeg (quality 90), png, or tiff.
func SaveImage(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	case ".png":
		err = png.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("unsupported image extension %q", filepath.Ext(path))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// SaveSequence writes every plane of frame f along axis into dir as
// slice_<axis>_NNN.<ext>. It returns the number of files written.
func SaveSequence(v *volume.Volume, axis Axis, f int, dir, ext string) (int, error) {
	n, err := planes(v, axis)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	for pos := 0; pos < n; pos++ {
		img, err := Extract(v, axis, pos, f)
		if err != nil {
			return pos, err
		}
		name := filepath.Join(dir, fmt.Sprintf("slice_%s_%03d.%s", axis, pos, ext))
		if err := SaveImage(img, name); err != nil {
			return pos, fmt.Errorf("saving %s: %w", name, err)
		}
	}
	return n, nil
}
