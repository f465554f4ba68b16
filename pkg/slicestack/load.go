// Package slicestack reads and writes volumes as stacks of 2D grayscale images,
// one file per slice.
package slicestack

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/tiff"

	"mriresample/internal/models"
	"mriresample/pkg/volume"
)

// ErrNoSlices is returned when a directory holds no readable slice images.
var ErrNoSlices = errors.New("slices: no slice images found")

// ErrSliceSize is returned when the images of a stack differ in size.
var ErrSliceSize = errors.New("slices: slice sizes differ")

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// LoadDir reads every jpeg, png and tiff image in dir, ordered by the number
// embedded in the file name.
func LoadDir(dir string) ([]models.Slice, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading slice directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSlices, dir)
	}

	// Numbered files sort numerically; ties keep name order.
	sort.SliceStable(names, func(i, j int) bool {
		ni, nj := extractNumber(names[i]), extractNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})

	out := make([]models.Slice, 0, len(names))
	for i, name := range names {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		out = append(out, models.Slice{Image: img, Index: i, Filename: name, Number: extractNumber(name)})
	}
	return out, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// extractNumber returns the digits of the file's base name as a number, or 0.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

// Stack converts slices into a single-frame volume: image x is the column,
// y the row and the slice order the slice axis. Intensities are scaled to
// [0, 1] from the 16-bit red channel.
func Stack(ss []models.Slice, colRes, rowRes, sliceRes float64) (*volume.Volume, error) {
	if len(ss) == 0 {
		return nil, ErrNoSlices
	}
	w, h := ss[0].Size()
	v, err := volume.New(w, h, len(ss), 1)
	if err != nil {
		return nil, err
	}
	v.ColRes, v.RowRes, v.SliceRes = colRes, rowRes, sliceRes
	for s, sl := range ss {
		if sw, sh := sl.Size(); sw != w || sh != h {
			return nil, fmt.Errorf("%w: %s is %dx%d, expected %dx%d", ErrSliceSize, sl.Filename, sw, sh, w, h)
		}
		copy(v.Data[s*w*h:(s+1)*w*h], imageToFloat(sl.Image))
	}
	return v, nil
}

// LoadVolume is LoadDir followed by Stack.
func LoadVolume(dir string, colRes, rowRes, sliceRes float64) (*volume.Volume, error) {
	ss, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return Stack(ss, colRes, rowRes, sliceRes)
}

func imageToFloat(img image.Image) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out[y*w+x] = float64(r) / 65535.0
		}
	}
	return out
}
