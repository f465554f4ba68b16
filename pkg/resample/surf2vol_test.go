package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"mriresample/pkg/surface"
	"mriresample/pkg/transform"
	"mriresample/pkg/volume"
)

func pointMesh(pts ...r3.Vec) *surface.Mesh {
	m := &surface.Mesh{Vertices: make([]surface.Vertex, len(pts))}
	for i, p := range pts {
		m.Vertices[i] = surface.Vertex{Pos: p, Normal: r3.Vec{X: 1}}
	}
	return m
}

func TestMapSurfToVolClosest(t *testing.T) {
	shape := Shape{Cols: 4, Rows: 4, Slices: 4}
	mesh := pointMesh(
		r3.Vec{X: 1.2, Y: 1, Z: 1},
		r3.Vec{X: 0.9, Y: 1, Z: 1},
		r3.Vec{X: 3, Y: 3, Z: 3},
		r3.Vec{X: 10},
	)
	m, err := MapSurfToVolClosest(mesh, shape, transform.Identity(), 0)
	require.NoError(t, err)

	v111 := 1 + 4*1 + 16*1
	v333 := 3 + 4*3 + 16*3
	assert.Equal(t, []int{v111, v111, v333, -1}, m.VoxelOf)
	assert.Equal(t, 1.0, m.Closest.Data[v111])
	assert.Equal(t, 2.0, m.Closest.Data[v333])
	assert.Equal(t, -1.0, m.Closest.Data[0])
	assert.Equal(t, shape, m.Shape)
}

func TestMapSurfToVolClosestSkipsNonFiniteVertices(t *testing.T) {
	mesh := pointMesh(
		r3.Vec{X: math.NaN(), Y: 1, Z: 1},
		r3.Vec{X: 1, Y: math.Inf(-1), Z: 1},
		r3.Vec{X: 1, Y: 1, Z: 1e300},
		r3.Vec{X: 1, Y: 1, Z: 1},
	)
	m, err := MapSurfToVolClosest(mesh, Shape{Cols: 4, Rows: 4, Slices: 4}, transform.Identity(), 0)
	require.NoError(t, err)
	assert.Equal(t, []int{-1, -1, -1, 1 + 4 + 16}, m.VoxelOf)
}

func TestMapSurfToVolProjects(t *testing.T) {
	mesh := pointMesh(r3.Vec{X: 1, Y: 1, Z: 1})
	mesh.Vertices[0].Thickness = 2
	// Grid index is anatomical mm.
	m, err := MapSurfToVolClosest(mesh, Shape{Cols: 4, Rows: 4, Slices: 4}, transform.Matrix{}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []int{2 + 4 + 16}, m.VoxelOf)

	m, err = MapSurfToVolClosest(mesh, Shape{Cols: 4, Rows: 4, Slices: 4}, transform.Matrix{}, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{-1}, m.VoxelOf)
}

func TestSurf2VolAverages(t *testing.T) {
	shape := Shape{Cols: 4, Rows: 4, Slices: 4}
	mesh := pointMesh(
		r3.Vec{X: 1.2, Y: 1, Z: 1},
		r3.Vec{X: 0.9, Y: 1, Z: 1},
		r3.Vec{X: 3, Y: 3, Z: 3},
		r3.Vec{X: 10},
	)
	m, err := MapSurfToVolClosest(mesh, shape, transform.Identity(), 0)
	require.NoError(t, err)

	vals, err := volume.NewVertexData(4, 2)
	require.NoError(t, err)
	copy(vals.Data, []float64{2, 4, 6, 8, 20, 40, 60, 80})

	vol, err := shape.alloc(2)
	require.NoError(t, err)
	vol.Fill(-1)

	n, err := Surf2Vol(vals, vol, m)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, _ := vol.At(1, 1, 1, 0)
	assert.Equal(t, 3.0, got)
	got, _ = vol.At(1, 1, 1, 1)
	assert.Equal(t, 30.0, got)
	got, _ = vol.At(3, 3, 3, 0)
	assert.Equal(t, 6.0, got)
	got, _ = vol.At(3, 3, 3, 1)
	assert.Equal(t, 60.0, got)

	untouched := 0
	for _, v := range vol.Data {
		if v == -1 {
			untouched++
		}
	}
	assert.Equal(t, 2*(vol.NVoxels()-2), untouched)
}

func TestSurf2VolErrors(t *testing.T) {
	shape := Shape{Cols: 4, Rows: 4, Slices: 4}
	mesh := pointMesh(r3.Vec{X: 1}, r3.Vec{X: 2})

	_, err := MapSurfToVolClosest(&surface.Mesh{}, shape, transform.Matrix{}, 0)
	assert.ErrorIs(t, err, ErrEmptyDomain)
	_, err = MapSurfToVolClosest(mesh, shape, transform.Matrix{}, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = MapSurfToVolClosest(mesh, shape, transform.Scaling(0, 1, 1), 0)
	assert.ErrorIs(t, err, ErrSingularTransform)
	_, err = MapSurfToVolClosest(mesh, Shape{Cols: 4, Rows: 0, Slices: 4}, transform.Matrix{}, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	m, err := MapSurfToVolClosest(mesh, shape, transform.Matrix{}, 0)
	require.NoError(t, err)
	vol, err := shape.alloc(1)
	require.NoError(t, err)

	short, err := volume.NewVertexData(1, 1)
	require.NoError(t, err)
	_, err = Surf2Vol(short, vol, m)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	twoFrames, err := volume.NewVertexData(2, 2)
	require.NoError(t, err)
	_, err = Surf2Vol(twoFrames, vol, m)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	vals, err := volume.NewVertexData(2, 1)
	require.NoError(t, err)
	other, err := volume.New(5, 4, 4, 1)
	require.NoError(t, err)
	_, err = Surf2Vol(vals, other, m)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	m.VoxelOf[0] = 1000
	_, err = Surf2Vol(vals, vol, m)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
