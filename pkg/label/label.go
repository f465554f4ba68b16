// Package label holds point sets that restrict resampling to a region of
// interest.
package label

import "gonum.org/v1/gonum/spatial/r3"

// Point is one labelled location. Vertex is the surface vertex the point was
// drawn from, or -1. Stat carries an optional per-point statistic.
type Point struct {
	Pos    r3.Vec
	Vertex int
	Stat   float64
}

// Label is an unordered set of anatomical points. Points are assumed to lie
// on a 1mm lattice, so each point stands for 1mm³ of tissue.
type Label struct {
	Name   string
	Points []Point
}

// FromPositions builds a label with no vertex association.
func FromPositions(name string, pts []r3.Vec) *Label {
	l := &Label{Name: name, Points: make([]Point, len(pts))}
	for i, p := range pts {
		l.Points[i] = Point{Pos: p, Vertex: -1}
	}
	return l
}

// Len returns the number of points.
func (l *Label) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Points)
}

// Clone returns a deep copy of l. A nil label clones to nil.
func (l *Label) Clone() *Label {
	if l == nil {
		return nil
	}
	out := &Label{Name: l.Name, Points: make([]Point, len(l.Points))}
	copy(out.Points, l.Points)
	return out
}

// Positions returns the point positions in order.
func (l *Label) Positions() []r3.Vec {
	out := make([]r3.Vec, len(l.Points))
	for i, p := range l.Points {
		out[i] = p.Pos
	}
	return out
}

// Box returns every lattice point of the axis-aligned box [lo, hi] with the
// given spacing, in x-fastest order.
func Box(name string, lo, hi r3.Vec, spacing float64) *Label {
	l := &Label{Name: name}
	if !(spacing > 0) {
		return l
	}
	for z := lo.Z; z <= hi.Z; z += spacing {
		for y := lo.Y; y <= hi.Y; y += spacing {
			for x := lo.X; x <= hi.X; x += spacing {
				l.Points = append(l.Points, Point{Pos: r3.Vec{X: x, Y: y, Z: z}, Vertex: -1})
			}
		}
	}
	return l
}
