package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"mriresample/pkg/index"
	"mriresample/pkg/interp"
	"mriresample/pkg/resample"
	"mriresample/pkg/transform"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	k, err := cfg.Kernel()
	require.NoError(t, err)
	assert.Equal(t, interp.Kernel{Method: interp.Trilinear, Policy: index.Round, SincRadius: interp.DefaultSincRadius}, k)

	p, err := cfg.Projector()
	require.NoError(t, err)
	assert.Equal(t, resample.Projection{Mode: resample.ProjFrac}, p)

	reg, err := cfg.RegistrationMatrix()
	require.NoError(t, err)
	assert.True(t, reg.IsIdentity())
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "job.yaml")

	cfg := DefaultConfig()
	cfg.Processing.NumCores = 3
	cfg.Processing.Interpolation = "sinc"
	cfg.Processing.Float2Int = "tkregister"
	cfg.Target.Cols = 128
	cfg.Target.ColRes = 0.5
	cfg.Registration = []float64{1, 0, 0, 10, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	cfg.Projection.Mode = "dist"
	cfg.Projection.Value = 1.5
	cfg.Output.Histogram = true
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config round trip mismatch (-saved +loaded):\n%s", diff)
	}

	reg, err := loaded.RegistrationMatrix()
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 11, Y: 2, Z: 3}, reg.Apply(r3.Vec{X: 1, Y: 2, Z: 3}))

	k, err := loaded.Kernel()
	require.NoError(t, err)
	assert.Equal(t, interp.Sinc, k.Method)
	assert.Equal(t, index.LegacyRegister, k.Policy)
}

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing:\n  interpolation: nearest\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "nearest", cfg.Processing.Interpolation)
	assert.Equal(t, DefaultConfig().Processing.Float2Int, cfg.Processing.Float2Int)
	assert.Equal(t, 50.0, cfg.Surface.Radius)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing: [unclosed"), 0644))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "error parsing config file")
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mriresample.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "interpolation: trilinear")
	assert.Contains(t, string(data), "float2int: round")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no cores", func(c *Config) { c.Processing.NumCores = 0 }},
		{"unknown kernel", func(c *Config) { c.Processing.Interpolation = "cubic" }},
		{"unknown float2int", func(c *Config) { c.Processing.Float2Int = "ceil" }},
		{"sinc radius", func(c *Config) { c.Processing.SincRadius = -1 }},
		{"projection mode", func(c *Config) { c.Projection.Mode = "normal" }},
		{"short registration", func(c *Config) { c.Registration = []float64{1, 2, 3} }},
		{"source resolution", func(c *Config) { c.Source.SliceRes = 0 }},
		{"target size", func(c *Config) { c.Target.Rows = -2 }},
		{"target resolution", func(c *Config) { c.Target.ColRes = -1 }},
		{"icosphere order", func(c *Config) { c.Surface.SourceOrder = 99 }},
		{"surface radius", func(c *Config) { c.Surface.Radius = 0 }},
		{"resize threshold", func(c *Config) { c.Label.ResizeThreshold = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	cfg := DefaultConfig()
	cfg.Processing.Interpolation = "cubic"
	_, err := cfg.Kernel()
	assert.ErrorIs(t, err, interp.ErrUnknownMethod)

	cfg = DefaultConfig()
	cfg.Registration = make([]float64, 16)
	_, err = cfg.RegistrationMatrix()
	assert.ErrorIs(t, err, transform.ErrNotHomogeneous)
}
