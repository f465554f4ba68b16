package resample

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"mriresample/pkg/spatialhash"
	"mriresample/pkg/surface"
	"mriresample/pkg/volume"
)

// Surf2SurfResult is the outcome of Surf2Surf.
type Surf2SurfResult struct {
	// TrgVals holds the mapped values as vertex data of the target mesh.
	TrgVals *volume.Volume
	// SrcHits counts, per source vertex, how many target vertices took its
	// value.
	SrcHits []int
	// SrcDist is the mean distance from each source vertex to the target
	// vertices it was matched with (0 when unmatched).
	SrcDist []float64
	// TrgHits counts the source vertices that contributed to each target
	// vertex.
	TrgHits []int
	// TrgDist is the mean match distance of each target vertex.
	TrgDist []float64
}

// Surf2Surf maps vertex data between two registered surfaces by nearest
// neighbour in their shared space. Face topology is ignored.
//
// Forward: every target vertex takes the values of its nearest source
// vertex. Reverse (useReverse): every source vertex that no target vertex
// picked is added to its nearest target vertex, and target vertices with
// several contributions get the arithmetic mean. This keeps data from dense
// source meshes that would otherwise be dropped when mapping to a coarser
// target.
//
// Ties at equal distance go to the lowest vertex index, in both directions.
// With useHash false the search is exhaustive, which gives the same matches
// but costs O(Vsrc·Vtrg).
func Surf2Surf(srcVals *volume.Volume, srcMesh, trgMesh *surface.Mesh,
	useReverse, useHash bool, opts ...Option) (Surf2SurfResult, error) {
	if err := checkSurf2Surf(srcVals, srcMesh, trgMesh); err != nil {
		return Surf2SurfResult{}, err
	}
	o := buildOptions(opts)
	ns, nt, nf := srcMesh.Len(), trgMesh.Len(), srcVals.Frames
	srcPos, trgPos := srcMesh.Positions(), trgMesh.Positions()
	diagf("surf2surf: %d source, %d target vertices, %d frames, reverse=%t hash=%t", ns, nt, nf, useReverse, useHash)

	srcSearch, err := newSearcher(srcMesh, srcPos, useHash, o.cellSize)
	if err != nil {
		return Surf2SurfResult{}, fmt.Errorf("surf2surf: source index: %w", err)
	}
	fwdIdx, fwdDist, err := nearestAll(srcSearch, trgPos, o, "surf2surf forward")
	if err != nil {
		return Surf2SurfResult{}, err
	}

	trgVals, err := volume.NewVertexData(nt, nf)
	if err != nil {
		return Surf2SurfResult{}, dimensionError(err)
	}
	res := Surf2SurfResult{
		TrgVals: trgVals,
		SrcHits: make([]int, ns),
		SrcDist: make([]float64, ns),
		TrgHits: make([]int, nt),
		TrgDist: make([]float64, nt),
	}
	for t, s := range fwdIdx {
		res.SrcHits[s]++
		res.SrcDist[s] += fwdDist[t]
		res.TrgHits[t] = 1
		res.TrgDist[t] = fwdDist[t]
		for f := 0; f < nf; f++ {
			trgVals.Data[f*nt+t] = srcVals.Data[f*ns+s]
		}
	}

	if useReverse {
		var unmapped []int
		var unmappedPos []r3.Vec
		for s, n := range res.SrcHits {
			if n == 0 {
				unmapped = append(unmapped, s)
				unmappedPos = append(unmappedPos, srcPos[s])
			}
		}
		if len(unmapped) > 0 {
			trgSearch, err := newSearcher(trgMesh, trgPos, useHash, o.cellSize)
			if err != nil {
				return Surf2SurfResult{}, fmt.Errorf("surf2surf: target index: %w", err)
			}
			revIdx, revDist, err := nearestAll(trgSearch, unmappedPos, o, "surf2surf reverse")
			if err != nil {
				return Surf2SurfResult{}, err
			}
			for i, s := range unmapped {
				t := revIdx[i]
				res.SrcHits[s]++
				res.SrcDist[s] += revDist[i]
				res.TrgHits[t]++
				res.TrgDist[t] += revDist[i]
				for f := 0; f < nf; f++ {
					trgVals.Data[f*nt+t] += srcVals.Data[f*ns+s]
				}
			}
		}
		diagf("surf2surf: reverse pass mapped %d unmatched source vertices", len(unmapped))
	}

	for t, n := range res.TrgHits {
		if n > 1 {
			for f := 0; f < nf; f++ {
				trgVals.Data[f*nt+t] /= float64(n)
			}
			res.TrgDist[t] /= float64(n)
		}
	}
	for s, n := range res.SrcHits {
		if n > 1 {
			res.SrcDist[s] /= float64(n)
		}
	}
	return res, nil
}

// Surf2SurfForward is the forward-only mapping without diagnostics.
func Surf2SurfForward(srcVals *volume.Volume, srcMesh, trgMesh *surface.Mesh,
	useHash bool, opts ...Option) (*volume.Volume, error) {
	res, err := Surf2Surf(srcVals, srcMesh, trgMesh, false, useHash, opts...)
	if err != nil {
		return nil, err
	}
	return res.TrgVals, nil
}

func checkSurf2Surf(srcVals *volume.Volume, srcMesh, trgMesh *surface.Mesh) error {
	if srcMesh.Len() == 0 || trgMesh.Len() == 0 {
		return fmt.Errorf("surf2surf: %w: source has %d and target %d vertices",
			ErrEmptyDomain, srcMesh.Len(), trgMesh.Len())
	}
	if err := srcVals.Validate(); err != nil {
		return dimensionError(err)
	}
	if srcVals.Cols != srcMesh.Len() || srcVals.Rows != 1 || srcVals.Slices != 1 {
		return fmt.Errorf("surf2surf: %w: values are %dx%dx%d for %d source vertices",
			ErrDimensionMismatch, srcVals.Cols, srcVals.Rows, srcVals.Slices, srcMesh.Len())
	}
	if v := firstNonFinite(srcMesh); v >= 0 {
		return fmt.Errorf("surf2surf: %w: source vertex %d at %v", ErrInvalidArgument, v, srcMesh.Vertices[v].Pos)
	}
	if v := firstNonFinite(trgMesh); v >= 0 {
		return fmt.Errorf("surf2surf: %w: target vertex %d at %v", ErrInvalidArgument, v, trgMesh.Vertices[v].Pos)
	}
	return nil
}

// firstNonFinite returns the first vertex with a NaN or infinite coordinate,
// or -1.
func firstNonFinite(m *surface.Mesh) int {
	for i, v := range m.Vertices {
		for _, x := range [3]float64{v.Pos.X, v.Pos.Y, v.Pos.Z} {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return i
			}
		}
	}
	return -1
}

func newSearcher(m *surface.Mesh, pts []r3.Vec, useHash bool, cellSize float64) (spatialhash.Searcher, error) {
	if !useHash {
		return spatialhash.Exhaustive(pts), nil
	}
	if cellSize <= 0 {
		cellSize = spatialhash.CellSizeFor(pts, m.AverageEdgeLength())
	}
	ix, err := spatialhash.Build(pts, cellSize)
	if err != nil {
		return nil, err
	}
	nx, ny, nz := ix.Dims()
	tracef("spatial hash: %d points, cell %.3g, grid %dx%dx%d", ix.Len(), ix.CellSize(), nx, ny, nz)
	return ix, nil
}

// nearestAll queries every point concurrently. The searcher is read-only.
// A query without a match is an error.
func nearestAll(s spatialhash.Searcher, pts []r3.Vec, o options, message string) ([]int, []float64, error) {
	idx := make([]int, len(pts))
	dist := make([]float64, len(pts))
	split(len(pts), o.workers).run(o, message, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			idx[i], dist[i] = s.Nearest(pts[i])
		}
	})
	for i, n := range idx {
		if n < 0 {
			return nil, nil, fmt.Errorf("%s: %w: no nearest vertex for point %d at %v", message, ErrInvalidArgument, i, pts[i])
		}
	}
	return idx, dist, nil
}
