package resample

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"mriresample/pkg/interp"
	"mriresample/pkg/surface"
	"mriresample/pkg/transform"
	"mriresample/pkg/volume"
)

// ProjMode selects how Projection.Value moves a vertex along its normal.
type ProjMode int

const (
	// ProjFrac moves by Value times the vertex thickness.
	ProjFrac ProjMode = iota
	// ProjDist moves by Value mm.
	ProjDist
)

func (m ProjMode) String() string {
	switch m {
	case ProjFrac:
		return "frac"
	case ProjDist:
		return "dist"
	}
	return "ProjMode(" + strconv.Itoa(int(m)) + ")"
}

// ParseProjMode accepts "frac" or "dist".
func ParseProjMode(s string) (ProjMode, error) {
	switch s {
	case "frac", "fraction", "projfrac":
		return ProjFrac, nil
	case "dist", "distance", "projdist":
		return ProjDist, nil
	}
	return 0, fmt.Errorf("%w: projection mode %q", ErrUnknownPolicy, s)
}

// Projection is the offset along each vertex normal at which a volume is
// sampled. The zero Projection samples at the vertex itself.
type Projection struct {
	Mode  ProjMode
	Value float64
}

// point returns where vertex vtx samples.
func (p Projection) point(m *surface.Mesh, vtx int) r3.Vec {
	if p.Value == 0 {
		return m.Vertices[vtx].Pos
	}
	if p.Mode == ProjDist {
		return surface.ProjNormDist(m, vtx, p.Value)
	}
	return surface.ProjNormFracThick(m, vtx, p.Value)
}

// Vol2SurfResult is the outcome of Vol2Surf.
type Vol2SurfResult struct {
	// Values holds one value per vertex per source frame (vertex data).
	// Vertices projecting outside the source are zero.
	Values *volume.Volume
	// Hits counts vertices that sampled inside the source.
	Hits int
	// HitVolume has the source grid's shape and counts the projected points
	// per voxel. Only set when WithHitVolume is given.
	HitVolume *volume.Volume
}

// Vol2Surf samples src at every vertex of mesh, displaced along the vertex
// normal by proj. srcT maps the mesh's anatomical space into source index
// space.
func Vol2Surf(src *volume.Volume, srcT transform.Set, mesh *surface.Mesh,
	proj Projection, k interp.Kernel, opts ...Option) (Vol2SurfResult, error) {
	if err := src.Validate(); err != nil {
		return Vol2SurfResult{}, dimensionError(err)
	}
	if mesh.Len() == 0 {
		return Vol2SurfResult{}, fmt.Errorf("vol2surf: %w: mesh has no vertices", ErrEmptyDomain)
	}
	if err := k.Validate(); err != nil {
		return Vol2SurfResult{}, policyError(err)
	}
	if proj.Mode != ProjFrac && proj.Mode != ProjDist {
		return Vol2SurfResult{}, fmt.Errorf("vol2surf: %w: projection mode %d", ErrUnknownPolicy, int(proj.Mode))
	}
	if math.IsNaN(proj.Value) || math.IsInf(proj.Value, 0) {
		return Vol2SurfResult{}, fmt.Errorf("vol2surf: %w: projection value %g", ErrInvalidArgument, proj.Value)
	}
	nv := mesh.Len()
	vals, err := volume.NewVertexData(nv, src.Frames)
	if err != nil {
		return Vol2SurfResult{}, dimensionError(err)
	}
	w2i := srcT.IndexFromWorld()
	o := buildOptions(opts)
	diagf("vol2surf: %d vertices, projection %s %g, %s", nv, proj.Mode, proj.Value, k)

	// voxelOf records where each vertex landed so the hit volume can be
	// filled after the workers finish.
	var voxelOf []int32
	if o.hitVolume {
		voxelOf = make([]int32, nv)
	}
	ch := split(nv, o.workers)
	hits := make([]int, ch.count)
	ch.run(o, "vol2surf", func(chunk, lo, hi int) {
		buf := make([]float64, src.Frames)
		for v := lo; v < hi; v++ {
			p := w2i.Apply(proj.point(mesh, v))
			if voxelOf != nil {
				voxelOf[v] = -1
				if c, r, s, ok := k.Inside(src, p.X, p.Y, p.Z); ok {
					voxelOf[v] = int32(src.Voxel(c, r, s))
				}
			}
			if !k.Sample(src, p.X, p.Y, p.Z, buf) {
				continue
			}
			hits[chunk]++
			for f, val := range buf {
				vals.Data[f*nv+v] = val
			}
		}
	})

	res := Vol2SurfResult{Values: vals}
	for _, h := range hits {
		res.Hits += h
	}
	if voxelOf != nil {
		if res.HitVolume, err = volume.Like(src, 1); err != nil {
			return Vol2SurfResult{}, dimensionError(err)
		}
		for _, vox := range voxelOf {
			if vox >= 0 {
				res.HitVolume.Data[vox]++
			}
		}
	}
	if res.Hits < nv {
		opsf("vol2surf: %d of %d vertices project outside the source volume", nv-res.Hits, nv)
	}
	return res, nil
}
