package resample

import (
	"errors"
	"fmt"

	"mriresample/pkg/transform"
)

// Failure classes reported by the resamplers. Check with errors.Is; the
// underlying package errors stay reachable through the same chain.
var (
	// ErrDimensionMismatch covers grids, meshes or value arrays whose sizes
	// do not agree with each other or with the transforms.
	ErrDimensionMismatch = errors.New("resample: dimension mismatch")

	// ErrSingularTransform is returned when a required inversion fails.
	ErrSingularTransform = transform.ErrSingular

	// ErrUnknownPolicy covers unrecognised interpolation, float-to-index or
	// projection selectors.
	ErrUnknownPolicy = errors.New("resample: unknown policy")

	// ErrEmptyDomain is returned for an empty mesh or label.
	ErrEmptyDomain = errors.New("resample: empty domain")

	// ErrInvalidArgument covers out-of-range scalar parameters such as a
	// negative resize threshold.
	ErrInvalidArgument = errors.New("resample: invalid argument")
)

func dimensionError(err error) error {
	return fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
}

func policyError(err error) error {
	return fmt.Errorf("%w: %w", ErrUnknownPolicy, err)
}
