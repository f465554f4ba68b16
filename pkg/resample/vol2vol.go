// Package resample moves data between volumes, surfaces and labels.
//
// Every function takes already-loaded grids and meshes plus the transforms
// relating them, validates everything up front, and either returns a
// complete result or an error; partial output is never returned. Per-element
// work runs on a bounded worker pool and each output slot is written by
// exactly one worker, so results are identical for any worker count.
package resample

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"mriresample/pkg/interp"
	"mriresample/pkg/transform"
	"mriresample/pkg/volume"
)

// Shape describes a target grid. Zero resolutions default to 1mm.
type Shape struct {
	Cols, Rows, Slices       int
	ColRes, RowRes, SliceRes float64
}

// ShapeOf returns the shape of v.
func ShapeOf(v *volume.Volume) Shape {
	return Shape{
		Cols: v.Cols, Rows: v.Rows, Slices: v.Slices,
		ColRes: v.ColRes, RowRes: v.RowRes, SliceRes: v.SliceRes,
	}
}

func (s Shape) alloc(frames int) (*volume.Volume, error) {
	v, err := volume.New(s.Cols, s.Rows, s.Slices, frames)
	if err != nil {
		return nil, dimensionError(err)
	}
	if s.ColRes > 0 {
		v.ColRes = s.ColRes
	}
	if s.RowRes > 0 {
		v.RowRes = s.RowRes
	}
	if s.SliceRes > 0 {
		v.SliceRes = s.SliceRes
	}
	return v, nil
}

// Vol2Vol resamples src onto a grid of shape trg. srcT and trgT are the
// domain transforms of the two grids and reg maps source anatomical space
// into target anatomical space (the zero Matrix for none). Every target voxel
// is back-projected into the source and sampled with k; voxels landing
// outside the source are zero.
func Vol2Vol(src *volume.Volume, srcT transform.Set, trg Shape, trgT transform.Set,
	reg transform.Matrix, k interp.Kernel, opts ...Option) (*volume.Volume, error) {
	out, _, err := Vol2VolStats(src, srcT, trg, trgT, reg, k, opts...)
	return out, err
}

// Vol2VolStats is Vol2Vol that also returns the number of target voxels
// that sampled inside the source.
func Vol2VolStats(src *volume.Volume, srcT transform.Set, trg Shape, trgT transform.Set,
	reg transform.Matrix, k interp.Kernel, opts ...Option) (*volume.Volume, int, error) {
	if err := src.Validate(); err != nil {
		return nil, 0, dimensionError(err)
	}
	if err := k.Validate(); err != nil {
		return nil, 0, policyError(err)
	}
	out, err := trg.alloc(src.Frames)
	if err != nil {
		return nil, 0, err
	}
	t2s, err := transform.TargetToSource(srcT, trgT, reg)
	if err != nil {
		return nil, 0, fmt.Errorf("vol2vol: %w", err)
	}
	o := buildOptions(opts)
	diagf("vol2vol: %dx%dx%d -> %dx%dx%d, %d frames, %s",
		src.Cols, src.Rows, src.Slices, out.Cols, out.Rows, out.Slices, src.Frames, k)

	// One work unit is one row of target voxels.
	nvox := out.NVoxels()
	ch := split(out.Slices*out.Rows, o.workers)
	hits := make([]int, ch.count)
	ch.run(o, "vol2vol", func(chunk, lo, hi int) {
		buf := make([]float64, src.Frames)
		for u := lo; u < hi; u++ {
			s, r := u/out.Rows, u%out.Rows
			for c := 0; c < out.Cols; c++ {
				p := t2s.Apply(r3.Vec{X: float64(c), Y: float64(r), Z: float64(s)})
				if !k.Sample(src, p.X, p.Y, p.Z, buf) {
					continue
				}
				hits[chunk]++
				vox := out.Voxel(c, r, s)
				for f, val := range buf {
					out.Data[f*nvox+vox] = val
				}
			}
		}
	})

	total := 0
	for _, h := range hits {
		total += h
	}
	diagf("vol2vol: %d of %d target voxels inside source", total, nvox)
	return out, total, nil
}
