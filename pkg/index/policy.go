// Package index converts continuous grid coordinates into integer voxel
// addresses.
package index

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownPolicy is returned for an unrecognised float-to-index selector.
var ErrUnknownPolicy = errors.New("index: unknown float-to-index policy")

// Policy selects how a continuous column/row/slice is turned into an index.
// Round and Floor assume voxel-center addressing; LegacyRegister assumes
// corner addressing and must only be paired with matrices built for it.
type Policy int

const (
	// Round rounds to the nearest integer, halves to even.
	Round Policy = iota
	// Floor truncates towards negative infinity.
	Floor
	// LegacyRegister uses floor for columns and slices and ceil for rows.
	// Older registration tools address voxels this way and their outputs
	// are only reproducible with exactly this rounding.
	LegacyRegister
)

// Apply converts a continuous column/row/slice triple. Coordinates must be
// finite and within int range; use InGrid for untrusted input.
func (p Policy) Apply(fc, fr, fs float64) (c, r, s int) {
	rc, rr, rs := p.rounded(fc, fr, fs)
	return int(rc), int(rr), int(rs)
}

// InGrid applies p and reports whether the result addresses a voxel of an
// ncols×nrows×nslcs grid. The bounds are checked before converting to int,
// so NaN, infinite and huge coordinates are outside on every platform.
func (p Policy) InGrid(fc, fr, fs float64, ncols, nrows, nslcs int) (c, r, s int, ok bool) {
	rc, rr, rs := p.rounded(fc, fr, fs)
	if !(rc >= 0 && rc < float64(ncols) && rr >= 0 && rr < float64(nrows) && rs >= 0 && rs < float64(nslcs)) {
		return 0, 0, 0, false
	}
	return int(rc), int(rr), int(rs), true
}

func (p Policy) rounded(fc, fr, fs float64) (c, r, s float64) {
	switch p {
	case Round:
		return math.RoundToEven(fc), math.RoundToEven(fr), math.RoundToEven(fs)
	case Floor:
		return math.Floor(fc), math.Floor(fr), math.Floor(fs)
	case LegacyRegister:
		return math.Floor(fc), math.Ceil(fr), math.Floor(fs)
	}
	panic(fmt.Sprintf("index: invalid policy %d", int(p)))
}

// Valid reports whether p is one of the defined policies.
func (p Policy) Valid() bool {
	return p >= Round && p <= LegacyRegister
}

func (p Policy) String() string {
	switch p {
	case Round:
		return "round"
	case Floor:
		return "floor"
	case LegacyRegister:
		return "tkregister"
	}
	return "Policy(" + strconv.Itoa(int(p)) + ")"
}

// FromCode maps the numeric codes 0, 1 and 2 onto Round, Floor and
// LegacyRegister.
func FromCode(code int) (Policy, error) {
	p := Policy(code)
	if !p.Valid() {
		return 0, fmt.Errorf("%w: code %d", ErrUnknownPolicy, code)
	}
	return p, nil
}

// ParsePolicy accepts a policy name (case-insensitive) or its numeric code.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "round", "rint":
		return Round, nil
	case "floor":
		return Floor, nil
	case "tkregister", "tkreg", "legacy":
		return LegacyRegister, nil
	}
	if code, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return FromCode(code)
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: code %d", ErrUnknownPolicy, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
