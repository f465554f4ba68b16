// Package config provides job configuration loading and management for mriresample.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"mriresample/pkg/index"
	"mriresample/pkg/interp"
	"mriresample/pkg/resample"
	"mriresample/pkg/surface"
	"mriresample/pkg/transform"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid value")

// Config represents a resampling job loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// Interpolation names the kernel: nearest, trilinear or sinc
		Interpolation string `yaml:"interpolation"`

		// Float2Int names the float-to-index policy: round, floor or tkregister
		Float2Int string `yaml:"float2int"`

		// SincRadius is the sinc half-width in voxels (0 selects the default)
		SincRadius int `yaml:"sincRadius"`
	} `yaml:"processing"`

	// Source voxel size in mm, applied to slice stacks loaded from disk
	Source struct {
		ColRes   float64 `yaml:"colRes"`
		RowRes   float64 `yaml:"rowRes"`
		SliceRes float64 `yaml:"sliceRes"`
	} `yaml:"source"`

	// Target grid for vol2vol. Zero sizes take the source's.
	Target struct {
		Cols     int     `yaml:"cols"`
		Rows     int     `yaml:"rows"`
		Slices   int     `yaml:"slices"`
		ColRes   float64 `yaml:"colRes"`
		RowRes   float64 `yaml:"rowRes"`
		SliceRes float64 `yaml:"sliceRes"`
	} `yaml:"target"`

	// Registration is the source-to-target anatomical transform, row-major.
	// Empty means identity.
	Registration []float64 `yaml:"registration,flow"`

	// Projection along vertex normals for vol2surf
	Projection struct {
		// Mode is frac (fraction of thickness) or dist (mm)
		Mode string `yaml:"mode"`

		Value float64 `yaml:"value"`
	} `yaml:"projection"`

	// Surface parameters for the icosahedral sphere fixtures
	Surface struct {
		SourceOrder int     `yaml:"sourceOrder"`
		TargetOrder int     `yaml:"targetOrder"`
		Radius      float64 `yaml:"radius"`

		// UseHash selects the spatial hash over exhaustive search
		UseHash bool `yaml:"useHash"`

		// Reverse enables the reverse surf2surf pass
		Reverse bool `yaml:"reverse"`
	} `yaml:"surface"`

	// Label parameters
	Label struct {
		// ResizeThreshold is the minimum hits per unit voxel volume for a
		// voxel to join the label mask
		ResizeThreshold float64 `yaml:"resizeThreshold"`
	} `yaml:"label"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// Histogram writes a PNG histogram of the result next to the output
		Histogram bool `yaml:"histogram"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Interpolation = interp.Trilinear.String()
	cfg.Processing.Float2Int = index.Round.String()
	cfg.Processing.SincRadius = interp.DefaultSincRadius

	cfg.Source.ColRes = 1
	cfg.Source.RowRes = 1
	cfg.Source.SliceRes = 1

	cfg.Projection.Mode = resample.ProjFrac.String()

	cfg.Surface.SourceOrder = 5
	cfg.Surface.TargetOrder = 3
	cfg.Surface.Radius = 50
	cfg.Surface.UseHash = true
	cfg.Surface.Reverse = true

	cfg.Label.ResizeThreshold = 0.5

	cfg.Output.Verbose = true
	cfg.Output.Histogram = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks every field that can be checked without input data.
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("%w: numCores %d", ErrInvalid, c.Processing.NumCores)
	}
	if _, err := c.Kernel(); err != nil {
		return err
	}
	if _, err := c.Projector(); err != nil {
		return err
	}
	if _, err := c.RegistrationMatrix(); err != nil {
		return err
	}
	if c.Source.ColRes <= 0 || c.Source.RowRes <= 0 || c.Source.SliceRes <= 0 {
		return fmt.Errorf("%w: source resolution must be positive", ErrInvalid)
	}
	t := c.Target
	if t.Cols < 0 || t.Rows < 0 || t.Slices < 0 {
		return fmt.Errorf("%w: target size %dx%dx%d", ErrInvalid, t.Cols, t.Rows, t.Slices)
	}
	if t.ColRes < 0 || t.RowRes < 0 || t.SliceRes < 0 {
		return fmt.Errorf("%w: target resolution must not be negative", ErrInvalid)
	}
	s := c.Surface
	for _, o := range []int{s.SourceOrder, s.TargetOrder} {
		if o < 0 || o > surface.MaxIcoOrder {
			return fmt.Errorf("%w: icosphere order %d", ErrInvalid, o)
		}
	}
	if s.Radius <= 0 {
		return fmt.Errorf("%w: surface radius %g", ErrInvalid, s.Radius)
	}
	if c.Label.ResizeThreshold < 0 {
		return fmt.Errorf("%w: resizeThreshold %g", ErrInvalid, c.Label.ResizeThreshold)
	}
	return nil
}

// Kernel builds the interpolation kernel named by Processing.
func (c *Config) Kernel() (interp.Kernel, error) {
	m, err := interp.ParseMethod(c.Processing.Interpolation)
	if err != nil {
		return interp.Kernel{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	p, err := index.ParsePolicy(c.Processing.Float2Int)
	if err != nil {
		return interp.Kernel{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	k := interp.Kernel{Method: m, Policy: p, SincRadius: c.Processing.SincRadius}
	if err := k.Validate(); err != nil {
		return interp.Kernel{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return k, nil
}

// Projector returns the vol2surf projection.
func (c *Config) Projector() (resample.Projection, error) {
	mode, err := resample.ParseProjMode(c.Projection.Mode)
	if err != nil {
		return resample.Projection{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return resample.Projection{Mode: mode, Value: c.Projection.Value}, nil
}

// RegistrationMatrix returns the registration, or identity when none is set.
func (c *Config) RegistrationMatrix() (transform.Matrix, error) {
	if len(c.Registration) == 0 {
		return transform.Identity(), nil
	}
	m, err := transform.NewMatrix(4, 4, c.Registration)
	if err != nil {
		return transform.Matrix{}, fmt.Errorf("%w: registration: %w", ErrInvalid, err)
	}
	return m, nil
}
