package transform

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"mriresample/pkg/index"
)

// Set holds the four canonical sub-transforms of one domain. Zero-valued
// members act as the identity.
type Set struct {
	// Q quantizes continuous anatomical units into voxel index units.
	Q Matrix
	// F scales voxel size into physical units.
	F Matrix
	// W is the within-FOV offset (sub-voxel centering convention).
	W Matrix
	// D is the device-to-anatomical orientation.
	D Matrix
}

// NewSet bundles the four sub-transforms.
func NewSet(q, f, w, d Matrix) Set {
	return Set{Q: q, F: f, W: w, D: d}
}

// IndexSet returns a Set whose combined map is m.
func IndexSet(m Matrix) Set {
	return Set{Q: m}
}

// IndexFromWorld returns Q·F·W·D, mapping anatomical xyz to continuous
// column, row and slice.
func (s Set) IndexFromWorld() Matrix {
	return Chain(s.Q, s.F, s.W, s.D)
}

// WorldFromIndex returns the inverse of IndexFromWorld.
func (s Set) WorldFromIndex() (Matrix, error) {
	m, err := s.IndexFromWorld().Inverse()
	if err != nil {
		return Matrix{}, fmt.Errorf("inverting domain transform: %w", err)
	}
	return m, nil
}

// SourceToTarget returns the map from source column/row/slice to target
// column/row/slice: trg.IndexFromWorld · reg · src.WorldFromIndex. reg maps
// source anatomical space into target anatomical space; pass the zero Matrix
// when both domains already share a space.
func SourceToTarget(src, trg Set, reg Matrix) (Matrix, error) {
	srcW, err := src.WorldFromIndex()
	if err != nil {
		return Matrix{}, fmt.Errorf("source: %w", err)
	}
	return Chain(trg.IndexFromWorld(), reg, srcW), nil
}

// TargetToSource returns the back-projection used by the resamplers:
// src.IndexFromWorld · reg⁻¹ · trg.WorldFromIndex. It is computed directly
// rather than by inverting SourceToTarget.
func TargetToSource(src, trg Set, reg Matrix) (Matrix, error) {
	trgW, err := trg.WorldFromIndex()
	if err != nil {
		return Matrix{}, fmt.Errorf("target: %w", err)
	}
	regInv, err := reg.Inverse()
	if err != nil {
		return Matrix{}, fmt.Errorf("registration: %w", err)
	}
	return Chain(src.IndexFromWorld(), regInv, trgW), nil
}

// FOVQuantMatrix returns the quantization matrix of a coronally sliced
// volume (the tkregister convention):
//
//	col = -x/colres + ncols/2
//	row = -z/rowres + nrows/2
//	slc =  y/slcres + nslcs/2
//
// The halves use integer division so odd dimensions land on the same voxel
// as in older tools.
func FOVQuantMatrix(ncols, nrows, nslcs int, colres, rowres, slcres float64) Matrix {
	m := Matrix{init: true}
	m.v[0] = -1 / colres
	m.v[3] = float64(ncols / 2)
	m.v[6] = -1 / rowres
	m.v[7] = float64(nrows / 2)
	m.v[9] = 1 / slcres
	m.v[11] = float64(nslcs / 2)
	m.v[15] = 1
	return m
}

// FOVDeQuantMatrix is the closed-form inverse of FOVQuantMatrix.
func FOVDeQuantMatrix(ncols, nrows, nslcs int, colres, rowres, slcres float64) Matrix {
	m := Matrix{init: true}
	m.v[0] = -colres
	m.v[3] = colres * float64(ncols/2)
	m.v[6] = slcres
	m.v[7] = -slcres * float64(nslcs/2)
	m.v[9] = -rowres
	m.v[11] = rowres * float64(nrows/2)
	m.v[15] = 1
	return m
}

// FOVQuantMatrixTkReg is FOVQuantMatrix for square in-plane sampling.
func FOVQuantMatrixTkReg(npixels int, pixsize float64, nslcs int, slcthick float64) Matrix {
	return FOVQuantMatrix(npixels, npixels, nslcs, pixsize, pixsize, slcthick)
}

// AnatToIndex returns q·reg, mapping anatomical xyz through a registration
// into the index space quantized by q.
func AnatToIndex(reg, q Matrix) Matrix {
	return q.Mul(reg)
}

// XYZAnatToCRSTkReg maps an anatomical point into a functional volume of
// npixels×npixels×nslcs voxels using the legacy register rounding. inside
// reports whether the resulting index lies within the volume; the indices
// are zero when it does not.
func XYZAnatToCRSTkReg(npixels int, pixsize float64, nslcs int, slcthick float64, xyz r3.Vec, reg Matrix) (col, row, slc int, inside bool) {
	qr := AnatToIndex(reg, FOVQuantMatrixTkReg(npixels, pixsize, nslcs, slcthick))
	f := qr.Apply(xyz)
	return index.LegacyRegister.InGrid(f.X, f.Y, f.Z, npixels, npixels, nslcs)
}
