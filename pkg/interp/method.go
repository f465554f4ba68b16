// Package interp samples a volume at fractional column/row/slice locations.
package interp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownMethod is returned for an unrecognised interpolation selector.
var ErrUnknownMethod = errors.New("interp: unknown interpolation method")

// Method is the interpolation kernel.
type Method int

const (
	// Nearest copies the voxel picked by the float-to-index policy.
	Nearest Method = iota
	// Trilinear weights the 8 surrounding voxels.
	Trilinear
	// Sinc applies a Hanning-windowed sinc over a cube of 2·SincRadius
	// voxels per axis.
	Sinc
)

// Valid reports whether m is one of the defined methods.
func (m Method) Valid() bool {
	return m >= Nearest && m <= Sinc
}

func (m Method) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Trilinear:
		return "trilinear"
	case Sinc:
		return "sinc"
	}
	return "Method(" + strconv.Itoa(int(m)) + ")"
}

// MethodFromCode maps the numeric codes 0, 1 and 2 onto Nearest, Trilinear
// and Sinc.
func MethodFromCode(code int) (Method, error) {
	m := Method(code)
	if !m.Valid() {
		return 0, fmt.Errorf("%w: code %d", ErrUnknownMethod, code)
	}
	return m, nil
}

// ParseMethod accepts a method name (case-insensitive) or its numeric code.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest", "nn":
		return Nearest, nil
	case "trilinear", "tli", "linear":
		return Trilinear, nil
	case "sinc":
		return Sinc, nil
	}
	if code, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return MethodFromCode(code)
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: code %d", ErrUnknownMethod, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(b []byte) error {
	v, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
