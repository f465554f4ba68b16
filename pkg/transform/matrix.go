// Package transform composes the 4x4 homogeneous coordinate maps used by the
// resampling engine.
//
// Each spatial domain (a volume grid or the anatomical space a surface lives
// in) is described by four sub-transforms: quantization (Q), field-of-view
// scale (F), within-FOV offset (W) and device/anatomical orientation (D).
// Their product Q·F·W·D maps anatomical xyz to continuous column/row/slice.
// Matrices are immutable values; nothing in this package keeps state between
// calls.
package transform

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrSingular is returned when a matrix that has to be inverted is
	// singular or too ill-conditioned to invert.
	ErrSingular = errors.New("transform: singular matrix")

	// ErrNotHomogeneous is returned for input that is not a 4x4 matrix.
	ErrNotHomogeneous = errors.New("transform: matrix is not 4x4 homogeneous")
)

// Matrix is an immutable 4x4 homogeneous matrix stored in row-major order.
// The zero Matrix is the identity.
type Matrix struct {
	v    [16]float64
	init bool
}

var identity = [16]float64{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// Identity returns the 4x4 identity.
func Identity() Matrix {
	return Matrix{v: identity, init: true}
}

// NewMatrix builds a Matrix from row-major data with the given shape.
func NewMatrix(rows, cols int, data []float64) (Matrix, error) {
	if rows != 4 || cols != 4 || len(data) != 16 {
		return Matrix{}, fmt.Errorf("%w: got %dx%d with %d elements", ErrNotHomogeneous, rows, cols, len(data))
	}
	var m Matrix
	copy(m.v[:], data)
	m.init = true
	if err := m.check(); err != nil {
		return Matrix{}, err
	}
	return m, nil
}

// FromRows builds a Matrix from 16 row-major values.
func FromRows(rows [16]float64) (Matrix, error) {
	return NewMatrix(4, 4, rows[:])
}

// FromDense converts any gonum matrix into a Matrix.
func FromDense(d mat.Matrix) (Matrix, error) {
	r, c := d.Dims()
	if r != 4 || c != 4 {
		return Matrix{}, fmt.Errorf("%w: got %dx%d", ErrNotHomogeneous, r, c)
	}
	var m Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m.v[i*4+j] = d.At(i, j)
		}
	}
	m.init = true
	if err := m.check(); err != nil {
		return Matrix{}, err
	}
	return m, nil
}

// check rejects non-finite entries and an all-zero bottom row, which would
// send every point to infinity.
func (m Matrix) check() error {
	for _, x := range m.v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: non-finite element", ErrNotHomogeneous)
		}
	}
	if m.v[12] == 0 && m.v[13] == 0 && m.v[14] == 0 && m.v[15] == 0 {
		return fmt.Errorf("%w: zero bottom row", ErrNotHomogeneous)
	}
	return nil
}

// Translation returns a pure translation.
func Translation(tx, ty, tz float64) Matrix {
	m := Identity()
	m.v[3], m.v[7], m.v[11] = tx, ty, tz
	return m
}

// Scaling returns a diagonal scale.
func Scaling(sx, sy, sz float64) Matrix {
	m := Identity()
	m.v[0], m.v[5], m.v[10] = sx, sy, sz
	return m
}

// ConstMatrix returns a matrix with every element set to val. Mostly useful
// as a test fixture.
func ConstMatrix(val float64) Matrix {
	var m Matrix
	for i := range m.v {
		m.v[i] = val
	}
	m.init = true
	return m
}

// RandMatrix returns a random affine matrix with entries in [-1, 1) and a
// dominant diagonal, so it is always invertible.
func RandMatrix(rng *rand.Rand) Matrix {
	m := Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			m.v[i*4+j] = 2*rng.Float64() - 1
		}
		m.v[i*4+i] += 4
	}
	return m
}

func (m Matrix) values() *[16]float64 {
	if !m.init {
		return &identity
	}
	return &m.v
}

// IsIdentity reports whether m is exactly the identity.
func (m Matrix) IsIdentity() bool {
	return *m.values() == identity
}

// At returns element (i, j).
func (m Matrix) At(i, j int) float64 {
	return m.values()[i*4+j]
}

// Rows returns a copy of the row-major elements.
func (m Matrix) Rows() [16]float64 {
	return *m.values()
}

// Dense returns a newly allocated gonum copy of m.
func (m Matrix) Dense() *mat.Dense {
	v := m.Rows()
	return mat.NewDense(4, 4, v[:])
}

// Mul returns the product m·n. Applying the result to a point is the same as
// applying n first and then m.
func (m Matrix) Mul(n Matrix) Matrix {
	var out mat.Dense
	out.Mul(m.Dense(), n.Dense())
	r := Matrix{init: true}
	copy(r.v[:], out.RawMatrix().Data)
	return r
}

// Inverse returns m⁻¹ or ErrSingular.
func (m Matrix) Inverse() (Matrix, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.Dense()); err != nil {
		return Matrix{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	r := Matrix{init: true}
	copy(r.v[:], inv.RawMatrix().Data)
	if err := r.check(); err != nil {
		return Matrix{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return r, nil
}

// Apply maps p through m. Projective matrices are handled by dividing by the
// homogeneous coordinate.
func (m Matrix) Apply(p r3.Vec) r3.Vec {
	v := m.values()
	x := v[0]*p.X + v[1]*p.Y + v[2]*p.Z + v[3]
	y := v[4]*p.X + v[5]*p.Y + v[6]*p.Z + v[7]
	z := v[8]*p.X + v[9]*p.Y + v[10]*p.Z + v[11]
	if v[12] == 0 && v[13] == 0 && v[14] == 0 && v[15] == 1 {
		return r3.Vec{X: x, Y: y, Z: z}
	}
	w := v[12]*p.X + v[13]*p.Y + v[14]*p.Z + v[15]
	return r3.Vec{X: x / w, Y: y / w, Z: z / w}
}

// Equal reports whether every element of m and n differs by at most tol.
func (m Matrix) Equal(n Matrix, tol float64) bool {
	a, b := m.values(), n.values()
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func (m Matrix) String() string {
	return fmt.Sprintf("%v", mat.Formatted(m.Dense(), mat.Squeeze()))
}

// Chain multiplies the matrices left to right: Chain(a, b, c) = a·b·c.
func Chain(ms ...Matrix) Matrix {
	out := Identity()
	for _, m := range ms {
		if m.IsIdentity() {
			continue
		}
		out = out.Mul(m)
	}
	return out
}
