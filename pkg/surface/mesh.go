// Package surface holds triangulated surface meshes and the per-vertex
// projections used to sample volumes near a surface.
package surface

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrFace is returned when a face references a vertex that does not exist.
var ErrFace = errors.New("surface: face references missing vertex")

// Vertex is a surface vertex. Thickness is the local cortical thickness in
// mm used by fractional projections.
type Vertex struct {
	Pos       r3.Vec
	Normal    r3.Vec
	Thickness float64
}

// Mesh is an ordered vertex list plus triangles indexing into it.
type Mesh struct {
	Vertices []Vertex
	Faces    [][3]int
}

// Len returns the number of vertices.
func (m *Mesh) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices)
}

// Positions returns the vertex positions in order.
func (m *Mesh) Positions() []r3.Vec {
	out := make([]r3.Vec, len(m.Vertices))
	for i, v := range m.Vertices {
		out[i] = v.Pos
	}
	return out
}

// Validate checks that every face references existing, distinct vertices.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	for fi, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= n {
				return fmt.Errorf("%w: face %d uses vertex %d of %d", ErrFace, fi, v, n)
			}
		}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			return fmt.Errorf("%w: face %d is degenerate", ErrFace, fi)
		}
	}
	return nil
}

// ComputeNormals sets every vertex normal to the normalised, area-weighted
// sum of its face normals. Vertices with no faces keep a zero normal.
func (m *Mesh) ComputeNormals() error {
	if err := m.Validate(); err != nil {
		return err
	}
	acc := make([]r3.Vec, len(m.Vertices))
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]].Pos, m.Vertices[f[1]].Pos, m.Vertices[f[2]].Pos
		// Cross product length is twice the face area.
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		for _, v := range f {
			acc[v] = r3.Add(acc[v], n)
		}
	}
	for i, n := range acc {
		if l := r3.Norm(n); l > 0 {
			m.Vertices[i].Normal = r3.Scale(1/l, n)
		} else {
			m.Vertices[i].Normal = r3.Vec{}
		}
	}
	return nil
}

// AverageEdgeLength returns the mean length over all face edges, counting
// shared edges once per face. It returns 0 for meshes without faces.
func (m *Mesh) AverageEdgeLength() float64 {
	if len(m.Faces) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range m.Faces {
		for k := 0; k < 3; k++ {
			a, b := m.Vertices[f[k]].Pos, m.Vertices[f[(k+1)%3]].Pos
			sum += r3.Norm(r3.Sub(b, a))
		}
	}
	return sum / float64(3*len(m.Faces))
}

// Bounds returns the axis-aligned bounding box of the vertex positions.
func (m *Mesh) Bounds() r3.Box {
	return BoundsOf(m.Positions())
}

// BoundsOf returns the axis-aligned bounding box of pts.
func BoundsOf(pts []r3.Vec) r3.Box {
	if len(pts) == 0 {
		return r3.Box{}
	}
	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, p := range pts {
		lo.X, hi.X = math.Min(lo.X, p.X), math.Max(hi.X, p.X)
		lo.Y, hi.Y = math.Min(lo.Y, p.Y), math.Max(hi.Y, p.Y)
		lo.Z, hi.Z = math.Min(lo.Z, p.Z), math.Max(hi.Z, p.Z)
	}
	return r3.Box{Min: lo, Max: hi}
}

// Clone returns a deep copy of m.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: append([]Vertex(nil), m.Vertices...),
		Faces:    append([][3]int(nil), m.Faces...),
	}
	return out
}

// ProjNormFracThick returns the position of vertex vtx moved along its normal
// by frac times its thickness.
func ProjNormFracThick(m *Mesh, vtx int, frac float64) r3.Vec {
	v := m.Vertices[vtx]
	return r3.Add(v.Pos, r3.Scale(frac*v.Thickness, v.Normal))
}

// ProjNormDist returns the position of vertex vtx moved along its normal by
// dist mm.
func ProjNormDist(m *Mesh, vtx int, dist float64) r3.Vec {
	v := m.Vertices[vtx]
	return r3.Add(v.Pos, r3.Scale(dist, v.Normal))
}
