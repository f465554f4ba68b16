package volume

import "fmt"

// MaskAverage averages every frame of src over the voxels where mask (frame
// 0) exceeds 0.5. The result is a 1×1×1 volume with src.Frames frames; nhits
// is the number of voxels in the mask. An empty mask yields zeros.
func MaskAverage(src, mask *Volume) (avg *Volume, nhits int, err error) {
	if err := src.Validate(); err != nil {
		return nil, 0, err
	}
	if err := mask.Validate(); err != nil {
		return nil, 0, err
	}
	if !src.SameShape(mask) {
		return nil, 0, fmt.Errorf("%w: source %dx%dx%d, mask %dx%dx%d", ErrShape,
			src.Cols, src.Rows, src.Slices, mask.Cols, mask.Rows, mask.Slices)
	}
	avg, err = New(1, 1, 1, src.Frames)
	if err != nil {
		return nil, 0, err
	}
	m := mask.Frame(0)
	for f := 0; f < src.Frames; f++ {
		frame := src.Frame(f)
		sum := 0.0
		n := 0
		for i, w := range m {
			if w > 0.5 {
				sum += frame[i]
				n++
			}
		}
		if n > 0 {
			avg.Data[f] = sum / float64(n)
		}
		nhits = n
	}
	return avg, nhits, nil
}
