// Package spatialhash answers nearest-vertex queries over a point set with a
// uniform bucket grid.
//
// Buckets are stored arena style: one flat cell table of [start, end) ranges
// into a single index array, filled with a counting sort so no bucket owns
// an allocation. Within a bucket, vertex indices are ascending.
package spatialhash

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrEmpty is returned when an index is built over no points.
	ErrEmpty = errors.New("spatialhash: no points")

	// ErrCellSize is returned for a non-positive or non-finite cell size.
	ErrCellSize = errors.New("spatialhash: invalid cell size")
)

// Searcher finds the point nearest to p. Ties at equal distance resolve to
// the lowest point index.
type Searcher interface {
	Nearest(p r3.Vec) (idx int, dist float64)
}

// Index is a read-only bucket grid over a point set. It is safe for
// concurrent queries once Build returns.
type Index struct {
	points     []r3.Vec
	min        r3.Vec
	cell       float64
	nx, ny, nz int
	start      []int32 // len nx*ny*nz+1
	items      []int32
}

var _ Searcher = (*Index)(nil)

// maxCellsPerPoint bounds the bucket table relative to the number of points.
const maxCellsPerPoint = 8

// Build buckets points into cubic cells of edge cellSize. The cell size is
// grown if the grid would be much larger than the point set.
func Build(points []r3.Vec, cellSize float64) (*Index, error) {
	if len(points) == 0 {
		return nil, ErrEmpty
	}
	if len(points) > math.MaxInt32 {
		return nil, fmt.Errorf("spatialhash: %d points exceed index capacity", len(points))
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("%w: %g", ErrCellSize, cellSize)
	}
	for i, p := range points {
		if !finite(p) {
			return nil, fmt.Errorf("spatialhash: point %d is not finite", i)
		}
	}

	box := bounds(points)
	ix := &Index{points: points, min: box.Min, cell: cellSize}
	limit := maxCellsPerPoint*len(points) + 64
	for {
		ix.nx = int(math.Floor((box.Max.X-box.Min.X)/ix.cell)) + 1
		ix.ny = int(math.Floor((box.Max.Y-box.Min.Y)/ix.cell)) + 1
		ix.nz = int(math.Floor((box.Max.Z-box.Min.Z)/ix.cell)) + 1
		total := float64(ix.nx) * float64(ix.ny) * float64(ix.nz)
		if total <= float64(limit) {
			break
		}
		ix.cell *= math.Cbrt(total / float64(limit))
	}

	ncells := ix.nx * ix.ny * ix.nz
	ix.start = make([]int32, ncells+1)
	cells := make([]int32, len(points))
	for i, p := range points {
		c := ix.cellIndex(ix.cellOf(p))
		cells[i] = int32(c)
		ix.start[c+1]++
	}
	for c := 0; c < ncells; c++ {
		ix.start[c+1] += ix.start[c]
	}
	ix.items = make([]int32, len(points))
	fill := append([]int32(nil), ix.start[:ncells]...)
	for i, c := range cells {
		ix.items[fill[c]] = int32(i)
		fill[c]++
	}
	return ix, nil
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return len(ix.points) }

// CellSize returns the effective cell edge after any growth in Build.
func (ix *Index) CellSize() float64 { return ix.cell }

// Dims returns the number of cells along each axis.
func (ix *Index) Dims() (nx, ny, nz int) { return ix.nx, ix.ny, ix.nz }

// cellOf returns the bucket coordinates of p clamped to the grid.
func (ix *Index) cellOf(p r3.Vec) (i, j, k int) {
	return clamp(int(math.Floor((p.X-ix.min.X)/ix.cell)), ix.nx),
		clamp(int(math.Floor((p.Y-ix.min.Y)/ix.cell)), ix.ny),
		clamp(int(math.Floor((p.Z-ix.min.Z)/ix.cell)), ix.nz)
}

func (ix *Index) cellIndex(i, j, k int) int {
	return (k*ix.ny+j)*ix.nx + i
}

// Nearest returns the point closest to p and its Euclidean distance.
//
// The search visits Chebyshev rings of buckets around p's bucket. Every
// point in ring r is at least (r-1) cells away from p, so once a candidate
// exists the search stops at the first ring that cannot hold a closer point.
// That always includes the ring after the first hit.
func (ix *Index) Nearest(p r3.Vec) (int, float64) {
	ci, cj, ck := ix.cellOf(p)
	best, bestD2 := -1, math.Inf(1)
	// Float bucketing can misplace a point lying on a cell face.
	slack := 1e-6 * ix.cell
	maxRing := max(ix.nx, ix.ny, ix.nz)

	for r := 0; r <= maxRing; r++ {
		if best >= 0 && r > 0 {
			lb := float64(r-1)*ix.cell - slack
			if lb > 0 && bestD2 < lb*lb {
				break
			}
		}
		k0, k1 := max(ck-r, 0), min(ck+r, ix.nz-1)
		j0, j1 := max(cj-r, 0), min(cj+r, ix.ny-1)
		i0, i1 := max(ci-r, 0), min(ci+r, ix.nx-1)
		for k := k0; k <= k1; k++ {
			kEdge := k == ck-r || k == ck+r
			for j := j0; j <= j1; j++ {
				if kEdge || j == cj-r || j == cj+r {
					for i := i0; i <= i1; i++ {
						best, bestD2 = ix.scan(ix.cellIndex(i, j, k), p, best, bestD2)
					}
					continue
				}
				if i := ci - r; i >= 0 {
					best, bestD2 = ix.scan(ix.cellIndex(i, j, k), p, best, bestD2)
				}
				if i := ci + r; r > 0 && i < ix.nx {
					best, bestD2 = ix.scan(ix.cellIndex(i, j, k), p, best, bestD2)
				}
			}
		}
	}
	return best, math.Sqrt(bestD2)
}

func (ix *Index) scan(cell int, p r3.Vec, best int, bestD2 float64) (int, float64) {
	for _, v := range ix.items[ix.start[cell]:ix.start[cell+1]] {
		d2 := dist2(ix.points[v], p)
		if d2 < bestD2 || (d2 == bestD2 && int(v) < best) {
			best, bestD2 = int(v), d2
		}
	}
	return best, bestD2
}

// Exhaustive is the brute-force Searcher. It is O(n) per query and exists to
// cross-check Index.
type Exhaustive []r3.Vec

var _ Searcher = Exhaustive(nil)

// Nearest returns the closest point by scanning all of them. It returns -1
// and +Inf for an empty set.
func (e Exhaustive) Nearest(p r3.Vec) (int, float64) {
	return NearestExhaustive(e, p)
}

// NearestExhaustive scans points in order and keeps the first minimum.
func NearestExhaustive(points []r3.Vec, p r3.Vec) (int, float64) {
	best, bestD2 := -1, math.Inf(1)
	for i, q := range points {
		if d2 := dist2(q, p); d2 < bestD2 {
			best, bestD2 = i, d2
		}
	}
	return best, math.Sqrt(bestD2)
}

// CellSizeFor picks a cell edge for points. A positive spacing (typically
// the mean edge length of the mesh) gives cells two spacings wide; otherwise
// the edge is twice the side of the cube holding one point on average.
func CellSizeFor(points []r3.Vec, spacing float64) float64 {
	if spacing > 0 && !math.IsInf(spacing, 0) {
		return 2 * spacing
	}
	if len(points) == 0 {
		return 1
	}
	box := bounds(points)
	size := r3.Sub(box.Max, box.Min)
	// Flat or linear sets: use the largest extent instead of the volume.
	ext := max(size.X, size.Y, size.Z)
	if ext == 0 {
		return 1
	}
	vol := max(size.X, ext*1e-3) * max(size.Y, ext*1e-3) * max(size.Z, ext*1e-3)
	return 2 * math.Cbrt(vol/float64(len(points)))
}

func dist2(a, b r3.Vec) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return dx*dx + dy*dy + dz*dz
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func finite(p r3.Vec) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}

func bounds(points []r3.Vec) r3.Box {
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo.X, hi.X = math.Min(lo.X, p.X), math.Max(hi.X, p.X)
		lo.Y, hi.Y = math.Min(lo.Y, p.Y), math.Max(hi.Y, p.Y)
		lo.Z, hi.Z = math.Min(lo.Z, p.Z), math.Max(hi.Z, p.Z)
	}
	return r3.Box{Min: lo, Max: hi}
}
