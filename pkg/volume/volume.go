// Package volume provides the regular 3D sample grid the resampling engine
// reads from and writes to.
package volume

import (
	"errors"
	"fmt"
)

// ErrShape is returned for non-positive dimensions or mismatched grids.
var ErrShape = errors.New("volume: invalid shape")

// Volume is a grid of Cols×Rows×Slices voxels with Frames values per voxel.
// Data is stored frame by frame, each frame slice-major with the column
// index varying fastest.
type Volume struct {
	Cols, Rows, Slices, Frames int

	// Physical voxel size in mm along each axis.
	ColRes, RowRes, SliceRes float64

	Data []float64
}

// New allocates a zero-filled volume with 1mm voxels.
func New(cols, rows, slices, frames int) (*Volume, error) {
	if cols <= 0 || rows <= 0 || slices <= 0 || frames <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d with %d frames", ErrShape, cols, rows, slices, frames)
	}
	return &Volume{
		Cols:     cols,
		Rows:     rows,
		Slices:   slices,
		Frames:   frames,
		ColRes:   1,
		RowRes:   1,
		SliceRes: 1,
		Data:     make([]float64, cols*rows*slices*frames),
	}, nil
}

// NewVertexData allocates a volume holding frames values for each of
// nvertices surface vertices. Vertex i lives at column i.
func NewVertexData(nvertices, frames int) (*Volume, error) {
	return New(nvertices, 1, 1, frames)
}

// Like allocates a zero-filled volume with the shape and resolution of v and
// the given number of frames.
func Like(v *Volume, frames int) (*Volume, error) {
	out, err := New(v.Cols, v.Rows, v.Slices, frames)
	if err != nil {
		return nil, err
	}
	out.ColRes, out.RowRes, out.SliceRes = v.ColRes, v.RowRes, v.SliceRes
	return out, nil
}

// Validate checks that the dimensions and data length agree.
func (v *Volume) Validate() error {
	if v == nil {
		return fmt.Errorf("%w: nil volume", ErrShape)
	}
	if v.Cols <= 0 || v.Rows <= 0 || v.Slices <= 0 || v.Frames <= 0 {
		return fmt.Errorf("%w: %dx%dx%d with %d frames", ErrShape, v.Cols, v.Rows, v.Slices, v.Frames)
	}
	if len(v.Data) != v.NVoxels()*v.Frames {
		return fmt.Errorf("%w: data length %d, want %d", ErrShape, len(v.Data), v.NVoxels()*v.Frames)
	}
	return nil
}

// NVoxels is the number of voxels in one frame.
func (v *Volume) NVoxels() int {
	return v.Cols * v.Rows * v.Slices
}

// VoxelVolume is the physical volume of one voxel in mm³.
func (v *Volume) VoxelVolume() float64 {
	return v.ColRes * v.RowRes * v.SliceRes
}

// InBounds reports whether (c, r, s) addresses a voxel.
func (v *Volume) InBounds(c, r, s int) bool {
	return c >= 0 && c < v.Cols && r >= 0 && r < v.Rows && s >= 0 && s < v.Slices
}

// Voxel returns the in-frame linear index of (c, r, s). The address must be
// in bounds.
func (v *Volume) Voxel(c, r, s int) int {
	return (s*v.Rows+r)*v.Cols + c
}

// Index returns the position of (c, r, s, f) in Data. The address must be in
// bounds.
func (v *Volume) Index(c, r, s, f int) int {
	return f*v.NVoxels() + v.Voxel(c, r, s)
}

// At returns the value at (c, r, s, f). ok is false for out-of-range
// addresses.
func (v *Volume) At(c, r, s, f int) (float64, bool) {
	if !v.InBounds(c, r, s) || f < 0 || f >= v.Frames {
		return 0, false
	}
	return v.Data[v.Index(c, r, s, f)], true
}

// Set stores val at (c, r, s, f).
func (v *Volume) Set(c, r, s, f int, val float64) error {
	if !v.InBounds(c, r, s) || f < 0 || f >= v.Frames {
		return fmt.Errorf("volume: address (%d,%d,%d,%d) outside %dx%dx%dx%d",
			c, r, s, f, v.Cols, v.Rows, v.Slices, v.Frames)
	}
	v.Data[v.Index(c, r, s, f)] = val
	return nil
}

// Add accumulates val into (c, r, s, f).
func (v *Volume) Add(c, r, s, f int, val float64) error {
	if !v.InBounds(c, r, s) || f < 0 || f >= v.Frames {
		return fmt.Errorf("volume: address (%d,%d,%d,%d) outside %dx%dx%dx%d",
			c, r, s, f, v.Cols, v.Rows, v.Slices, v.Frames)
	}
	v.Data[v.Index(c, r, s, f)] += val
	return nil
}

// Fill sets every sample to val.
func (v *Volume) Fill(val float64) {
	for i := range v.Data {
		v.Data[i] = val
	}
}

// Frame returns the samples of frame f. The slice aliases Data.
func (v *Volume) Frame(f int) []float64 {
	n := v.NVoxels()
	return v.Data[f*n : (f+1)*n]
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	out := *v
	out.Data = append([]float64(nil), v.Data...)
	return &out
}

// SameShape reports whether v and o have the same grid dimensions. Frames
// and resolution are not compared.
func (v *Volume) SameShape(o *Volume) bool {
	return v.Cols == o.Cols && v.Rows == o.Rows && v.Slices == o.Slices
}
