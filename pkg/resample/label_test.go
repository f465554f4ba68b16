package resample

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"mriresample/pkg/index"
	"mriresample/pkg/interp"
	"mriresample/pkg/label"
	"mriresample/pkg/transform"
	"mriresample/pkg/volume"
)

// mmGrid returns a 2mm-voxel grid whose index space is anatomical mm / 2,
// so voxel (c, r, s) covers [2c, 2c+2) on each axis.
func mmGrid(t *testing.T) (*volume.Volume, transform.Set) {
	t.Helper()
	src := newRandomVolume(t, 10, 10, 10, 2, 20)
	src.ColRes, src.RowRes, src.SliceRes = 2, 2, 2
	return src, transform.IndexSet(transform.Scaling(0.5, 0.5, 0.5))
}

func TestLabel2MaskThreshold(t *testing.T) {
	src, srcT := mmGrid(t)
	// 4x4x4 points fill 2x2x2 voxels with 8 points each: coverage 8/8mm³.
	lbl := label.Box("cube", r3.Vec{}, r3.Vec{X: 3, Y: 3, Z: 3}, 1)
	require.Equal(t, 64, lbl.Len())

	res, err := Label2Mask(src, srcT, nil, transform.Matrix{}, lbl, 0.5, index.Floor)
	require.NoError(t, err)
	assert.Equal(t, 64, res.LabelHits)
	assert.Equal(t, 8, res.FinalHits)
	for c := 0; c < 2; c++ {
		for r := 0; r < 2; r++ {
			for s := 0; s < 2; s++ {
				v, _ := res.Mask.At(c, r, s, 0)
				assert.Equal(t, 1.0, v)
			}
		}
	}
	v, _ := res.Mask.At(2, 0, 0, 0)
	assert.Zero(t, v)

	// Coverage must strictly exceed the threshold.
	res, err = Label2Mask(src, srcT, nil, transform.Matrix{}, lbl, 1, index.Floor)
	require.NoError(t, err)
	assert.Equal(t, 64, res.LabelHits)
	assert.Zero(t, res.FinalHits)
}

func TestLabel2MaskSourceMaskAndOutsidePoints(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	src, srcT := mmGrid(t)
	lbl := label.Box("cube", r3.Vec{}, r3.Vec{X: 3, Y: 3, Z: 3}, 1)
	lbl.Points = append(lbl.Points, label.Point{Pos: r3.Vec{X: -5}, Vertex: -1}, label.Point{Pos: r3.Vec{Z: 100}, Vertex: -1})

	mask, err := volume.Like(src, 1)
	require.NoError(t, err)
	mask.Fill(1)
	require.NoError(t, mask.Set(1, 1, 1, 0, 0))

	res, err := Label2Mask(src, srcT, mask, transform.Matrix{}, lbl, 0.5, index.Floor)
	require.NoError(t, err)
	assert.Equal(t, 64, res.LabelHits)
	assert.Equal(t, 7, res.FinalHits)
	assert.LessOrEqual(t, res.FinalHits, res.LabelHits)
	assert.Contains(t, ops.String(), "2 of 66 label points fall outside")
}

func TestLabel2MaskRegistration(t *testing.T) {
	src, srcT := mmGrid(t)
	lbl := label.Box("cube", r3.Vec{X: 10}, r3.Vec{X: 13, Y: 3, Z: 3}, 1)
	// Label space is source space shifted by +10mm in x.
	res, err := Label2Mask(src, srcT, nil, transform.Translation(10, 0, 0), lbl, 0.5, index.Floor)
	require.NoError(t, err)
	assert.Equal(t, 8, res.FinalHits)
	v, _ := res.Mask.At(0, 0, 0, 0)
	assert.Equal(t, 1.0, v)
}

func TestLabel2MaskErrors(t *testing.T) {
	src, srcT := mmGrid(t)
	lbl := label.Box("cube", r3.Vec{}, r3.Vec{X: 1}, 1)

	_, err := Label2Mask(src, srcT, nil, transform.Matrix{}, &label.Label{}, 0.5, index.Round)
	assert.ErrorIs(t, err, ErrEmptyDomain)
	_, err = Label2Mask(src, srcT, nil, transform.Matrix{}, nil, 0.5, index.Round)
	assert.ErrorIs(t, err, ErrEmptyDomain)
	_, err = Label2Mask(src, srcT, nil, transform.Matrix{}, lbl, -1, index.Round)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Label2Mask(src, srcT, nil, transform.Matrix{}, lbl, 0.5, index.Policy(4))
	assert.ErrorIs(t, err, ErrUnknownPolicy)
	assert.ErrorIs(t, err, index.ErrUnknownPolicy)
	_, err = Label2Mask(src, srcT, nil, transform.Scaling(0, 1, 1), lbl, 0.5, index.Round)
	assert.ErrorIs(t, err, ErrSingularTransform)

	small, err := volume.New(3, 3, 3, 1)
	require.NoError(t, err)
	_, err = Label2Mask(src, srcT, small, transform.Matrix{}, lbl, 0.5, index.Round)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestVol2ROI(t *testing.T) {
	src, srcT := mmGrid(t)

	// No label and no mask: the whole grid.
	all, err := Vol2ROI(src, srcT, nil, transform.Matrix{}, nil, 0, index.Round)
	require.NoError(t, err)
	assert.Equal(t, src.NVoxels(), all.NHits)
	assert.Zero(t, all.LabelHits)
	for f := 0; f < src.Frames; f++ {
		sum := 0.0
		for _, v := range src.Frame(f) {
			sum += v
		}
		assert.InDelta(t, sum/float64(src.NVoxels()), all.Average.Data[f], 1e-12)
	}

	// A label covering one voxel averages exactly that voxel.
	lbl := label.Box("voxel", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, 1)
	one, err := Vol2ROI(src, srcT, nil, transform.Matrix{}, lbl, 0.5, index.Floor)
	require.NoError(t, err)
	assert.Equal(t, 1, one.NHits)
	assert.Equal(t, 8, one.LabelHits)
	for f := 0; f < src.Frames; f++ {
		want, _ := src.At(0, 0, 0, f)
		assert.Equal(t, want, one.Average.Data[f])
	}

	// Mask only.
	mask, err := volume.Like(src, 1)
	require.NoError(t, err)
	require.NoError(t, mask.Set(9, 9, 9, 0, 1))
	masked, err := Vol2ROI(src, srcT, mask, transform.Matrix{}, nil, 0, index.Round)
	require.NoError(t, err)
	assert.Equal(t, 1, masked.NHits)
	want, _ := src.At(9, 9, 9, 1)
	assert.Equal(t, want, masked.Average.Data[1])
}

func TestResampleLabel(t *testing.T) {
	src, srcT := mmGrid(t)
	lbl := label.Box("cube", r3.Vec{}, r3.Vec{X: 5, Y: 5, Z: 5}, 1)
	lbl.Points = append(lbl.Points, label.Point{Pos: r3.Vec{X: 50}, Vertex: 12, Stat: 9})
	for i := range lbl.Points[:lbl.Len()-1] {
		lbl.Points[i].Vertex = i
	}
	k := interp.Kernel{Method: interp.Nearest, Policy: index.Floor}

	res, err := ResampleLabel(src, srcT, nil, transform.Matrix{}, lbl, 0.5, k, WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, lbl.Len()-1, res.Sampled)
	assert.Equal(t, lbl.Len()-1, res.RawHits)
	assert.Equal(t, 27, res.FinalHits)
	assert.LessOrEqual(t, res.FinalHits, res.RawHits)

	n := lbl.Len()
	for i, pt := range lbl.Points[:n-1] {
		c, r, s := int(pt.Pos.X)/2, int(pt.Pos.Y)/2, int(pt.Pos.Z)/2
		for f := 0; f < src.Frames; f++ {
			want, _ := src.At(c, r, s, f)
			assert.Equal(t, want, res.Values.Data[f*n+i])
		}
		assert.Equal(t, res.Values.Data[i], res.Label.Points[i].Stat)
		assert.Equal(t, i, res.Label.Points[i].Vertex)
	}
	assert.Zero(t, res.Values.Data[n-1])
	assert.Zero(t, res.Label.Points[n-1].Stat, "outside points carry no sample")
	assert.Equal(t, 12, res.Label.Points[n-1].Vertex)
	assert.Equal(t, 9.0, lbl.Points[n-1].Stat, "input label is not modified")
	assert.Equal(t, "cube", res.Label.Name)

	_, err = ResampleLabel(src, srcT, nil, transform.Matrix{}, lbl, 0.5, interp.Kernel{Method: interp.Method(9)})
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestLabel2MaskSkipsNonFinitePoints(t *testing.T) {
	src, srcT := mmGrid(t)
	lbl := label.Box("cube", r3.Vec{}, r3.Vec{X: 3, Y: 3, Z: 3}, 1)
	lbl.Points = append(lbl.Points,
		label.Point{Pos: r3.Vec{X: math.NaN()}, Vertex: -1},
		label.Point{Pos: r3.Vec{Y: math.Inf(1)}, Vertex: -1},
		label.Point{Pos: r3.Vec{Z: 1e300}, Vertex: -1},
	)
	for _, policy := range []index.Policy{index.Round, index.Floor, index.LegacyRegister} {
		res, err := Label2Mask(src, srcT, nil, transform.Matrix{}, lbl, 0.5, policy)
		require.NoError(t, err)
		assert.Equal(t, 64, res.LabelHits, "policy %v", policy)
		assert.LessOrEqual(t, res.FinalHits, res.LabelHits)
	}
}

func TestLabel2MaskFinalHitsNeverExceedLabelHits(t *testing.T) {
	lbl := label.Box("cube", r3.Vec{X: -1, Y: -1, Z: -1}, r3.Vec{X: 6, Y: 6, Z: 6}, 1)
	for _, res := range []float64{0.5, 1, 2, 3} {
		src := newRandomVolume(t, 8, 8, 8, 1, 3)
		src.ColRes, src.RowRes, src.SliceRes = res, res, res
		srcT := transform.IndexSet(transform.Scaling(1/res, 1/res, 1/res))
		for i := 0; i <= 20; i++ {
			thresh := float64(i) / 10
			got, err := Label2Mask(src, srcT, nil, transform.Matrix{}, lbl, thresh, index.Floor)
			require.NoError(t, err)
			assert.Positive(t, got.LabelHits, "res %g", res)
			assert.LessOrEqual(t, got.FinalHits, got.LabelHits, "res %g threshold %g", res, thresh)
		}
	}
}
