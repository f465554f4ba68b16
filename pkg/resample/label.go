package resample

import (
	"fmt"
	"math"

	"mriresample/pkg/index"
	"mriresample/pkg/interp"
	"mriresample/pkg/label"
	"mriresample/pkg/transform"
	"mriresample/pkg/volume"
)

// MaskResult is the outcome of Label2Mask.
type MaskResult struct {
	// Mask has the source grid's shape and one frame holding 1 for voxels
	// in the final mask and 0 elsewhere.
	Mask *volume.Volume
	// LabelHits counts label points that landed inside the source grid.
	LabelHits int
	// FinalHits counts voxels in the final mask. It never exceeds LabelHits.
	FinalHits int
}

// Label2Mask converts lbl into a mask over the grid of src.
//
// reg maps source anatomical space into label space (the zero Matrix for
// none). Each label point is mapped into source index space and addressed
// with policy. A voxel joins the mask when the number of points in it,
// divided by the voxel volume in mm³, is strictly greater than rszThresh.
// Label points stand for 1mm³ each, so the ratio is the fraction of the voxel
// covered by the label. When srcMask is non-nil, voxels where it is not above
// 0.5 are excluded as well.
func Label2Mask(src *volume.Volume, srcT transform.Set, srcMask *volume.Volume,
	reg transform.Matrix, lbl *label.Label, rszThresh float64, policy index.Policy) (MaskResult, error) {
	if err := src.Validate(); err != nil {
		return MaskResult{}, dimensionError(err)
	}
	if lbl.Len() == 0 {
		return MaskResult{}, fmt.Errorf("label2mask: %w: label has no points", ErrEmptyDomain)
	}
	if math.IsNaN(rszThresh) || rszThresh < 0 {
		return MaskResult{}, fmt.Errorf("label2mask: %w: resize threshold %g", ErrInvalidArgument, rszThresh)
	}
	if !policy.Valid() {
		return MaskResult{}, policyError(fmt.Errorf("%w: code %d", index.ErrUnknownPolicy, int(policy)))
	}
	if err := checkMask(src, srcMask); err != nil {
		return MaskResult{}, err
	}
	l2s, err := labelToSource(srcT, reg)
	if err != nil {
		return MaskResult{}, fmt.Errorf("label2mask: %w", err)
	}

	mask, err := volume.Like(src, 1)
	if err != nil {
		return MaskResult{}, dimensionError(err)
	}
	counts := make([]int, src.NVoxels())
	res := MaskResult{Mask: mask}
	for _, pt := range lbl.Points {
		p := l2s.Apply(pt.Pos)
		c, r, s, ok := policy.InGrid(p.X, p.Y, p.Z, src.Cols, src.Rows, src.Slices)
		if !ok {
			continue
		}
		res.LabelHits++
		counts[src.Voxel(c, r, s)]++
	}

	voxvol := src.VoxelVolume()
	for vox, n := range counts {
		if n == 0 || float64(n)/voxvol <= rszThresh {
			continue
		}
		if srcMask != nil && srcMask.Data[vox] <= 0.5 {
			continue
		}
		mask.Data[vox] = 1
		res.FinalHits++
	}
	if res.LabelHits < lbl.Len() {
		opsf("label2mask: %d of %d label points fall outside the source grid", lbl.Len()-res.LabelHits, lbl.Len())
	}
	diagf("label2mask: %d label hits, %d final voxels, threshold %g", res.LabelHits, res.FinalHits, rszThresh)
	return res, nil
}

// ROIResult is the outcome of Vol2ROI.
type ROIResult struct {
	// Average is a 1×1×1 volume with the mean of every source frame over
	// Mask.
	Average *volume.Volume
	// Mask is the final mask the average was taken over.
	Mask *volume.Volume
	// NHits is the number of voxels in Mask.
	NHits int
	// LabelHits is the number of label points inside the source grid; zero
	// when no label was given.
	LabelHits int
}

// Vol2ROI averages src over a region built from lbl (see Label2Mask) and
// srcMask. A nil lbl uses srcMask alone, or the whole grid when srcMask is
// nil too.
func Vol2ROI(src *volume.Volume, srcT transform.Set, srcMask *volume.Volume,
	reg transform.Matrix, lbl *label.Label, rszThresh float64, policy index.Policy) (ROIResult, error) {
	if err := src.Validate(); err != nil {
		return ROIResult{}, dimensionError(err)
	}
	var (
		mask      *volume.Volume
		labelHits int
	)
	if lbl != nil {
		mr, err := Label2Mask(src, srcT, srcMask, reg, lbl, rszThresh, policy)
		if err != nil {
			return ROIResult{}, err
		}
		mask, labelHits = mr.Mask, mr.LabelHits
	} else {
		if err := checkMask(src, srcMask); err != nil {
			return ROIResult{}, err
		}
		var err error
		if mask, err = volume.Like(src, 1); err != nil {
			return ROIResult{}, dimensionError(err)
		}
		for vox := range mask.Data {
			if srcMask == nil || srcMask.Data[vox] > 0.5 {
				mask.Data[vox] = 1
			}
		}
	}
	avg, nhits, err := volume.MaskAverage(src, mask)
	if err != nil {
		return ROIResult{}, dimensionError(err)
	}
	return ROIResult{Average: avg, Mask: mask, NHits: nhits, LabelHits: labelHits}, nil
}

// LabelResult is the outcome of ResampleLabel.
type LabelResult struct {
	// Values holds the kernel sample of every source frame at every label
	// point, laid out as vertex data (point i at column i). Points outside
	// the source are zero.
	Values *volume.Volume
	// Sampled counts label points that sampled inside the source.
	Sampled int
	// Label is a copy of the input label with each point's Stat set to its
	// first-frame sample. Vertex associations are kept.
	Label *label.Label
	// Mask, Average, RawHits and FinalHits describe the thresholded region
	// (see Label2Mask and Vol2ROI).
	Mask      *volume.Volume
	Average   *volume.Volume
	RawHits   int
	FinalHits int
}

// ResampleLabel samples src at every point of lbl with k and builds the
// thresholded label mask with its per-frame average. Points outside the
// source keep a zero Stat in the returned label. The mask uses the
// kernel's float-to-index policy.
func ResampleLabel(src *volume.Volume, srcT transform.Set, srcMask *volume.Volume,
	reg transform.Matrix, lbl *label.Label, rszThresh float64, k interp.Kernel, opts ...Option) (LabelResult, error) {
	if err := k.Validate(); err != nil {
		return LabelResult{}, policyError(err)
	}
	mr, err := Label2Mask(src, srcT, srcMask, reg, lbl, rszThresh, k.Policy)
	if err != nil {
		return LabelResult{}, err
	}
	avg, _, err := volume.MaskAverage(src, mr.Mask)
	if err != nil {
		return LabelResult{}, dimensionError(err)
	}
	l2s, err := labelToSource(srcT, reg)
	if err != nil {
		return LabelResult{}, fmt.Errorf("resample label: %w", err)
	}
	vals, err := volume.NewVertexData(lbl.Len(), src.Frames)
	if err != nil {
		return LabelResult{}, dimensionError(err)
	}
	out := lbl.Clone()

	o := buildOptions(opts)
	n := lbl.Len()
	ch := split(n, o.workers)
	hits := make([]int, ch.count)
	ch.run(o, "label", func(chunk, lo, hi int) {
		buf := make([]float64, src.Frames)
		for i := lo; i < hi; i++ {
			p := l2s.Apply(lbl.Points[i].Pos)
			if !k.Sample(src, p.X, p.Y, p.Z, buf) {
				out.Points[i].Stat = 0
				continue
			}
			hits[chunk]++
			for f, val := range buf {
				vals.Data[f*n+i] = val
			}
			out.Points[i].Stat = buf[0]
		}
	})
	sampled := 0
	for _, h := range hits {
		sampled += h
	}
	return LabelResult{
		Values:    vals,
		Sampled:   sampled,
		Label:     out,
		Mask:      mr.Mask,
		Average:   avg,
		RawHits:   mr.LabelHits,
		FinalHits: mr.FinalHits,
	}, nil
}

// labelToSource maps label space into source index space:
// srcT.IndexFromWorld · reg⁻¹.
func labelToSource(srcT transform.Set, reg transform.Matrix) (transform.Matrix, error) {
	regInv, err := reg.Inverse()
	if err != nil {
		return transform.Matrix{}, fmt.Errorf("registration: %w", err)
	}
	return transform.Chain(srcT.IndexFromWorld(), regInv), nil
}

func checkMask(src, mask *volume.Volume) error {
	if mask == nil {
		return nil
	}
	if err := mask.Validate(); err != nil {
		return dimensionError(err)
	}
	if !src.SameShape(mask) {
		return fmt.Errorf("%w: mask %dx%dx%d, source %dx%dx%d", ErrDimensionMismatch,
			mask.Cols, mask.Rows, mask.Slices, src.Cols, src.Rows, src.Slices)
	}
	return nil
}
