package surface

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaxIcoOrder bounds IcoSphere subdivision (order 7 has 163842 vertices).
const MaxIcoOrder = 7

// IcoSphere returns a sphere of the given radius built by subdividing an
// icosahedron order times. It has 10·4^order+2 vertices with outward unit
// normals. Spheres of different orders sample the same surface with
// different triangulations, which makes them registered surfaces.
func IcoSphere(order int, radius float64, center r3.Vec) (*Mesh, error) {
	if order < 0 || order > MaxIcoOrder {
		return nil, fmt.Errorf("surface: icosphere order %d outside [0,%d]", order, MaxIcoOrder)
	}
	if !(radius > 0) {
		return nil, fmt.Errorf("surface: icosphere radius %g must be positive", radius)
	}

	t := (1 + math.Sqrt(5)) / 2
	pts := []r3.Vec{
		{X: -1, Y: t}, {X: 1, Y: t}, {X: -1, Y: -t}, {X: 1, Y: -t},
		{Y: -1, Z: t}, {Y: 1, Z: t}, {Y: -1, Z: -t}, {Y: 1, Z: -t},
		{X: t, Z: -1}, {X: t, Z: 1}, {X: -t, Z: -1}, {X: -t, Z: 1},
	}
	for i := range pts {
		pts[i] = r3.Unit(pts[i])
	}
	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	for o := 0; o < order; o++ {
		mid := make(map[[2]int]int, len(faces)*3/2)
		midpoint := func(a, b int) int {
			key := [2]int{min(a, b), max(a, b)}
			if i, ok := mid[key]; ok {
				return i
			}
			pts = append(pts, r3.Unit(r3.Add(pts[a], pts[b])))
			mid[key] = len(pts) - 1
			return len(pts) - 1
		}
		next := make([][3]int, 0, len(faces)*4)
		for _, f := range faces {
			ab := midpoint(f[0], f[1])
			bc := midpoint(f[1], f[2])
			ca := midpoint(f[2], f[0])
			next = append(next,
				[3]int{f[0], ab, ca},
				[3]int{f[1], bc, ab},
				[3]int{f[2], ca, bc},
				[3]int{ab, bc, ca},
			)
		}
		faces = next
	}

	m := &Mesh{Vertices: make([]Vertex, len(pts)), Faces: faces}
	for i, p := range pts {
		m.Vertices[i] = Vertex{
			Pos:    r3.Add(center, r3.Scale(radius, p)),
			Normal: p,
		}
	}
	return m, nil
}
