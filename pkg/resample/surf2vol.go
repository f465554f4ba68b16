package resample

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"mriresample/pkg/index"
	"mriresample/pkg/surface"
	"mriresample/pkg/transform"
	"mriresample/pkg/volume"
)

// VertexVoxelMap relates surface vertices to the voxels of a grid.
type VertexVoxelMap struct {
	// Shape is the grid the map was built for.
	Shape Shape
	// VoxelOf holds, per vertex, the in-frame linear voxel index its
	// projected position rounds to, or -1 when it falls outside the grid.
	VoxelOf []int
	// Closest holds, per voxel, the vertex whose projected position is
	// nearest the voxel center (ties to the lowest index), or -1.
	Closest *volume.Volume
}

// MapSurfToVolClosest projects every vertex of mesh by projFrac of its
// thickness along its normal, maps it into the grid with w2i (anatomical xyz
// to column/row/slice) and rounds it to a voxel.
func MapSurfToVolClosest(mesh *surface.Mesh, shape Shape, w2i transform.Matrix, projFrac float64) (VertexVoxelMap, error) {
	if mesh.Len() == 0 {
		return VertexVoxelMap{}, fmt.Errorf("surf2vol map: %w: mesh has no vertices", ErrEmptyDomain)
	}
	if math.IsNaN(projFrac) || math.IsInf(projFrac, 0) {
		return VertexVoxelMap{}, fmt.Errorf("surf2vol map: %w: projection fraction %g", ErrInvalidArgument, projFrac)
	}
	closest, err := shape.alloc(1)
	if err != nil {
		return VertexVoxelMap{}, err
	}
	i2w, err := w2i.Inverse()
	if err != nil {
		return VertexVoxelMap{}, fmt.Errorf("surf2vol map: %w", err)
	}
	closest.Fill(-1)

	proj := Projection{Mode: ProjFrac, Value: projFrac}
	m := VertexVoxelMap{Shape: shape, VoxelOf: make([]int, mesh.Len()), Closest: closest}
	best := make([]float64, closest.NVoxels())
	for i := range best {
		best[i] = math.Inf(1)
	}
	for v := range mesh.Vertices {
		m.VoxelOf[v] = -1
		xyz := proj.point(mesh, v)
		p := w2i.Apply(xyz)
		c, r, s, ok := index.Round.InGrid(p.X, p.Y, p.Z, shape.Cols, shape.Rows, shape.Slices)
		if !ok {
			continue
		}
		vox := closest.Voxel(c, r, s)
		m.VoxelOf[v] = vox
		center := i2w.Apply(r3.Vec{X: float64(c), Y: float64(r), Z: float64(s)})
		// Vertices are visited in ascending order, so strict < keeps the
		// lowest index on ties.
		if d := r3.Norm(r3.Sub(xyz, center)); d < best[vox] {
			best[vox] = d
			closest.Data[vox] = float64(v)
		}
	}
	return m, nil
}

// Surf2Vol writes vertex data into vol using m. Vertices sharing a voxel are
// averaged; voxels no vertex maps to keep their values. It returns the
// number of voxels written.
func Surf2Vol(vals, vol *volume.Volume, m VertexVoxelMap) (int, error) {
	if err := vals.Validate(); err != nil {
		return 0, dimensionError(err)
	}
	if err := vol.Validate(); err != nil {
		return 0, dimensionError(err)
	}
	if vals.Cols != len(m.VoxelOf) || vals.Rows != 1 || vals.Slices != 1 {
		return 0, fmt.Errorf("surf2vol: %w: %d vertex values for %d mapped vertices",
			ErrDimensionMismatch, vals.Cols, len(m.VoxelOf))
	}
	if vol.Cols != m.Shape.Cols || vol.Rows != m.Shape.Rows || vol.Slices != m.Shape.Slices {
		return 0, fmt.Errorf("surf2vol: %w: volume %dx%dx%d, map built for %dx%dx%d", ErrDimensionMismatch,
			vol.Cols, vol.Rows, vol.Slices, m.Shape.Cols, m.Shape.Rows, m.Shape.Slices)
	}
	if vals.Frames != vol.Frames {
		return 0, fmt.Errorf("surf2vol: %w: %d value frames, %d volume frames", ErrDimensionMismatch, vals.Frames, vol.Frames)
	}

	nv, nvox := vals.Cols, vol.NVoxels()
	counts := make(map[int]int)
	sums := make(map[int][]float64)
	for v, vox := range m.VoxelOf {
		if vox < 0 {
			continue
		}
		if vox >= nvox {
			return 0, fmt.Errorf("surf2vol: %w: vertex %d maps to voxel %d of %d", ErrDimensionMismatch, v, vox, nvox)
		}
		acc := sums[vox]
		if acc == nil {
			acc = make([]float64, vals.Frames)
			sums[vox] = acc
		}
		for f := range acc {
			acc[f] += vals.Data[f*nv+v]
		}
		counts[vox]++
	}
	for vox, acc := range sums {
		n := float64(counts[vox])
		for f, sum := range acc {
			vol.Data[f*nvox+vox] = sum / n
		}
	}
	diagf("surf2vol: %d vertices written into %d voxels", nv, len(sums))
	return len(sums), nil
}
