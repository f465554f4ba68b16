package report

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	a := []float64{0.1, 0.4, 0.2, 0.9, 0.5}

	same, err := Compare(a, a)
	require.NoError(t, err)
	assert.Zero(t, same.RMSE)
	assert.Zero(t, same.MaxAbsDiff)
	assert.InDelta(t, 1, same.Correlation, 1e-12)
	assert.InDelta(t, 1, same.SSIM, 1e-12)
	assert.Zero(t, same.EntropyDiff)

	c, err := Compare([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 6})
	require.NoError(t, err)
	assert.InDelta(t, 1, c.RMSE, 1e-12)
	assert.Equal(t, 2.0, c.MaxAbsDiff)
	assert.Greater(t, c.Correlation, 0.9)
	assert.Less(t, c.SSIM, 1.0)

	inv := make([]float64, len(a))
	for i, x := range a {
		inv[i] = 1 - x
	}
	c, err = Compare(a, inv)
	require.NoError(t, err)
	assert.InDelta(t, -1, c.Correlation, 1e-12)

	c, err = Compare([]float64{1, 1, 1}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(c.Correlation))

	c, err = Compare([]float64{2}, []float64{2})
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.SSIM)

	_, err = Compare(a, a[:2])
	assert.ErrorContains(t, err, "lengths differ")
	_, err = Compare(nil, nil)
	assert.Error(t, err)
}

func TestEntropy(t *testing.T) {
	assert.Zero(t, Entropy(nil))
	assert.Zero(t, Entropy([]float64{3, 3, 3}))
	// Two equally likely values: one bit.
	assert.InDelta(t, 1, Entropy([]float64{0, 1, 0, 1}), 1e-12)
	// Four values in distinct bins: two bits.
	assert.InDelta(t, 2, Entropy([]float64{0, 1, 2, 3}), 1e-12)
}

func TestSummarize(t *testing.T) {
	x := []float64{5, 1, 3, 2, 4}
	s, err := Summarize(x)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 3.0, s.Mean)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, 5.0, s.P95)
	assert.Equal(t, 5.0, s.Max)
	assert.InDelta(t, math.Sqrt(2.5), s.StdDev, 1e-12)
	assert.Equal(t, []float64{5, 1, 3, 2, 4}, x, "input must not be reordered")
	assert.Equal(t, "n=5 mean=3 sd=1.581 median=3 p95=5 max=5", s.String())

	one, err := Summarize([]float64{7})
	require.NoError(t, err)
	assert.Zero(t, one.StdDev)
	assert.Equal(t, 7.0, one.P95)

	_, err = Summarize(nil)
	assert.Error(t, err)
}

func TestCountHits(t *testing.T) {
	h := CountHits([]int{0, 1, 2, 3, 0})
	assert.Equal(t, HitCounts{Total: 5, Hit: 3, Multiple: 2, MaxHits: 3}, h)
	assert.Equal(t, "3/5 hit, 2 more than once, max 3", h.String())
	assert.Equal(t, HitCounts{}, CountHits(nil))
}

func TestSaveHistogram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "dist.png")
	values := []float64{0.1, 0.2, 0.2, 0.5, 1.5, 1.6, 3}
	require.NoError(t, SaveHistogram(path, "distance", "mm", values, 0))
	assert.FileExists(t, path)

	assert.Error(t, SaveHistogram(path, "empty", "mm", nil, 10))
}
