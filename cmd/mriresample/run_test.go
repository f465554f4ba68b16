package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mriresample/pkg/config"
	"mriresample/pkg/resample"
	"mriresample/pkg/slicestack"
)

func testJob(t *testing.T) *job {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Processing.NumCores = 2
	cfg.Target.Cols, cfg.Target.Rows, cfg.Target.Slices = 16, 16, 16
	cfg.Target.ColRes, cfg.Target.RowRes, cfg.Target.SliceRes = 4, 4, 4
	cfg.Surface.SourceOrder = 2
	cfg.Surface.TargetOrder = 1
	cfg.Surface.Radius = 20
	cfg.Output.Verbose = false
	require.NoError(t, cfg.Validate())
	return &job{cfg: cfg, outputDir: t.TempDir()}
}

func TestPhantom(t *testing.T) {
	v, err := phantom(8, 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.SliceRes)
	for _, x := range v.Data {
		assert.GreaterOrEqual(t, x, 0.0)
		assert.LessOrEqual(t, x, 1.0)
	}
	center, _ := v.At(4, 4, 4, 0)
	assert.Equal(t, 1.0, center)
	corner, _ := v.At(0, 0, 0, 0)
	assert.Zero(t, corner)
}

func TestTargetShapeFallsBackToSource(t *testing.T) {
	j := testJob(t)
	j.cfg.Target.Rows = 0
	j.cfg.Target.SliceRes = 0
	src, err := phantom(8, 1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, resample.Shape{Cols: 16, Rows: 8, Slices: 16, ColRes: 4, RowRes: 4, SliceRes: 3}, j.targetShape(src))
}

func TestRunModes(t *testing.T) {
	for _, mode := range []string{"vol2vol", "vol2surf", "surf2surf", "roi"} {
		t.Run(mode, func(t *testing.T) {
			j := testJob(t)
			require.NoError(t, j.run(mode))
		})
	}

	j := testJob(t)
	assert.ErrorContains(t, j.run("surf2vol"), "unknown mode")
}

func TestVol2VolWritesSlicesAndHistogram(t *testing.T) {
	j := testJob(t)
	j.cfg.Output.Histogram = true
	require.NoError(t, j.run("vol2vol"))

	assert.FileExists(t, filepath.Join(j.outputDir, "vol2vol_histogram.png"))
	assert.FileExists(t, filepath.Join(j.outputDir, "slices", "slice_z_015.png"))

	// The written stack reloads at the target size.
	v, err := slicestack.LoadVolume(filepath.Join(j.outputDir, "slices"), 4, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 16, v.Cols)
	assert.Equal(t, 16, v.Slices)
}

func TestSurf2SurfFromInputSlices(t *testing.T) {
	j := testJob(t)
	src, err := phantom(16, 4, 4, 4)
	require.NoError(t, err)
	j.inputDir = t.TempDir()
	j.cfg.Source.ColRes, j.cfg.Source.RowRes, j.cfg.Source.SliceRes = 4, 4, 4
	_, err = slicestack.SaveSequence(src, slicestack.AxisSlice, 0, j.inputDir, "png")
	require.NoError(t, err)
	require.NoError(t, j.run("surf2surf"))
}
