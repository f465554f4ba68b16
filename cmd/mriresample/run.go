package main

import (
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"mriresample/pkg/config"
	"mriresample/pkg/label"
	"mriresample/pkg/report"
	"mriresample/pkg/resample"
	"mriresample/pkg/slicestack"
	"mriresample/pkg/surface"
	"mriresample/pkg/transform"
	"mriresample/pkg/volume"
)

// phantomSize is the edge length of the synthetic source volume.
const phantomSize = 64

type job struct {
	cfg       *config.Config
	inputDir  string
	outputDir string
}

func (j *job) run(mode string) error {
	switch mode {
	case "vol2vol":
		return j.vol2vol()
	case "vol2surf":
		return j.vol2surf()
	case "surf2surf":
		return j.surf2surf()
	case "roi":
		return j.roi()
	}
	return fmt.Errorf("unknown mode %q (want vol2vol, vol2surf, surf2surf or roi)", mode)
}

func (j *job) options(stage string) []resample.Option {
	opts := []resample.Option{resample.WithWorkers(j.cfg.Processing.NumCores)}
	if j.cfg.Output.Verbose {
		last := -1
		opts = append(opts, resample.WithProgress(func(completed, total int, message string) {
			pct := completed * 100 / total
			if pct/10 != last/10 {
				last = pct
				fmt.Printf("  %s: %d%%\n", stage, pct)
			}
		}))
	}
	return opts
}

// source loads the input slice stack or builds the phantom.
func (j *job) source() (*volume.Volume, transform.Set, error) {
	c := j.cfg.Source
	var (
		v   *volume.Volume
		err error
	)
	if j.inputDir == "" {
		fmt.Println("Step 1: Building synthetic phantom...")
		v, err = phantom(phantomSize, c.ColRes, c.RowRes, c.SliceRes)
	} else {
		fmt.Println("Step 1: Loading input slices...")
		v, err = slicestack.LoadVolume(j.inputDir, c.ColRes, c.RowRes, c.SliceRes)
	}
	if err != nil {
		return nil, transform.Set{}, err
	}
	fmt.Printf("Source volume: %dx%dx%d voxels of %.2fx%.2fx%.2f mm\n",
		v.Cols, v.Rows, v.Slices, v.ColRes, v.RowRes, v.SliceRes)
	return v, gridSet(resample.ShapeOf(v)), nil
}

// gridSet centres a grid on the anatomical origin.
func gridSet(s resample.Shape) transform.Set {
	return transform.IndexSet(transform.FOVQuantMatrix(s.Cols, s.Rows, s.Slices, s.ColRes, s.RowRes, s.SliceRes))
}

// phantom is a smooth radial profile in [0, 1] centred in the grid.
func phantom(n int, colRes, rowRes, sliceRes float64) (*volume.Volume, error) {
	v, err := volume.New(n, n, n, 1)
	if err != nil {
		return nil, err
	}
	v.ColRes, v.RowRes, v.SliceRes = colRes, rowRes, sliceRes
	half := float64(n) / 2
	for s := 0; s < n; s++ {
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				d := r3.Norm(r3.Vec{X: float64(c) - half, Y: float64(r) - half, Z: float64(s) - half}) / half
				v.Data[v.Voxel(c, r, s)] = 0.5 + 0.5*math.Cos(math.Pi*math.Min(d, 1))
			}
		}
	}
	return v, nil
}

func (j *job) vol2vol() error {
	src, srcT, err := j.source()
	if err != nil {
		return err
	}
	k, err := j.cfg.Kernel()
	if err != nil {
		return err
	}
	reg, err := j.cfg.RegistrationMatrix()
	if err != nil {
		return err
	}
	trg := j.targetShape(src)
	fmt.Printf("Step 2: Resampling to %dx%dx%d with %s...\n", trg.Cols, trg.Rows, trg.Slices, k)
	out, hits, err := resample.Vol2VolStats(src, srcT, trg, gridSet(trg), reg, k, j.options("vol2vol")...)
	if err != nil {
		return err
	}
	fmt.Printf("%d of %d target voxels sampled inside the source\n", hits, out.NVoxels())

	if out.SameShape(src) {
		if cmp, err := report.Compare(src.Data, out.Data); err == nil {
			fmt.Printf("Agreement with source: RMSE %.6f, max |diff| %.6f, correlation %.4f, SSIM %.4f, entropy diff %.4f bits\n",
				cmp.RMSE, cmp.MaxAbsDiff, cmp.Correlation, cmp.SSIM, cmp.EntropyDiff)
		}
	}
	if err := j.summarize("vol2vol", "intensity", out.Data); err != nil {
		return err
	}
	return j.saveVolume(out)
}

func (j *job) targetShape(src *volume.Volume) resample.Shape {
	t := j.cfg.Target
	s := resample.ShapeOf(src)
	if t.Cols > 0 {
		s.Cols = t.Cols
	}
	if t.Rows > 0 {
		s.Rows = t.Rows
	}
	if t.Slices > 0 {
		s.Slices = t.Slices
	}
	if t.ColRes > 0 {
		s.ColRes = t.ColRes
	}
	if t.RowRes > 0 {
		s.RowRes = t.RowRes
	}
	if t.SliceRes > 0 {
		s.SliceRes = t.SliceRes
	}
	return s
}

func (j *job) sphere(order int) (*surface.Mesh, error) {
	m, err := surface.IcoSphere(order, j.cfg.Surface.Radius, r3.Vec{})
	if err != nil {
		return nil, err
	}
	fmt.Printf("Icosphere order %d: %d vertices, %d faces, mean edge %.3f mm\n",
		order, m.Len(), len(m.Faces), m.AverageEdgeLength())
	return m, nil
}

// sampleSphere samples the source on mesh with the configured kernel and
// projection.
func (j *job) sampleSphere(src *volume.Volume, srcT transform.Set, mesh *surface.Mesh) (resample.Vol2SurfResult, error) {
	k, err := j.cfg.Kernel()
	if err != nil {
		return resample.Vol2SurfResult{}, err
	}
	proj, err := j.cfg.Projector()
	if err != nil {
		return resample.Vol2SurfResult{}, err
	}
	fmt.Printf("Sampling volume on the surface (%s %g, %s)...\n", proj.Mode, proj.Value, k)
	res, err := resample.Vol2Surf(src, srcT, mesh, proj, k, j.options("vol2surf")...)
	if err != nil {
		return resample.Vol2SurfResult{}, err
	}
	fmt.Printf("%d of %d vertices sampled inside the source\n", res.Hits, mesh.Len())
	return res, nil
}

func (j *job) vol2surf() error {
	src, srcT, err := j.source()
	if err != nil {
		return err
	}
	fmt.Println("Step 2: Projecting onto the surface...")
	mesh, err := j.sphere(j.cfg.Surface.SourceOrder)
	if err != nil {
		return err
	}
	res, err := j.sampleSphere(src, srcT, mesh)
	if err != nil {
		return err
	}
	if err := j.summarize("vol2surf", "vertex value", res.Values.Data); err != nil {
		return err
	}

	fmt.Println("Step 3: Painting vertex values back into the source grid...")
	proj, err := j.cfg.Projector()
	if err != nil {
		return err
	}
	frac := proj.Value
	if proj.Mode == resample.ProjDist {
		// Icosphere vertices have no thickness, so only the vertex itself
		// can be mapped.
		frac = 0
	}
	m, err := resample.MapSurfToVolClosest(mesh, resample.ShapeOf(src), srcT.IndexFromWorld(), frac)
	if err != nil {
		return err
	}
	painted, err := volume.Like(src, src.Frames)
	if err != nil {
		return err
	}
	n, err := resample.Surf2Vol(res.Values, painted, m)
	if err != nil {
		return err
	}
	fmt.Printf("%d voxels written from %d vertices\n", n, mesh.Len())
	return j.saveVolume(painted)
}

func (j *job) surf2surf() error {
	sc := j.cfg.Surface
	srcMesh, err := j.sphere(sc.SourceOrder)
	if err != nil {
		return err
	}
	trgMesh, err := j.sphere(sc.TargetOrder)
	if err != nil {
		return err
	}

	var vals *volume.Volume
	if j.inputDir != "" {
		src, srcT, err := j.source()
		if err != nil {
			return err
		}
		res, err := j.sampleSphere(src, srcT, srcMesh)
		if err != nil {
			return err
		}
		vals = res.Values
	} else {
		// Height above the equator as a stand-in for measured data.
		if vals, err = volume.NewVertexData(srcMesh.Len(), 1); err != nil {
			return err
		}
		for i, v := range srcMesh.Vertices {
			vals.Data[i] = v.Pos.Z / sc.Radius
		}
	}

	fmt.Printf("Step 2: Mapping %d -> %d vertices (reverse=%t, hash=%t)...\n",
		srcMesh.Len(), trgMesh.Len(), sc.Reverse, sc.UseHash)
	res, err := resample.Surf2Surf(vals, srcMesh, trgMesh, sc.Reverse, sc.UseHash, j.options("surf2surf")...)
	if err != nil {
		return err
	}
	fmt.Printf("Source vertices: %s\n", report.CountHits(res.SrcHits))
	fmt.Printf("Target vertices: %s\n", report.CountHits(res.TrgHits))
	if s, err := report.Summarize(res.TrgDist); err == nil {
		fmt.Printf("Match distance (mm): %s\n", s)
	}
	if err := j.summarize("surf2surf", "target value", res.TrgVals.Data); err != nil {
		return err
	}
	if j.cfg.Output.Histogram {
		path := filepath.Join(j.outputDir, "surf2surf_distance.png")
		if err := report.SaveHistogram(path, "surf2surf match distance", "distance (mm)", res.TrgDist, 40); err != nil {
			return err
		}
		fmt.Printf("Distance histogram saved to: %s\n", path)
	}
	return nil
}

// roi averages the source over a cube label centred on the origin whose
// side is the configured surface radius.
func (j *job) roi() error {
	src, srcT, err := j.source()
	if err != nil {
		return err
	}
	k, err := j.cfg.Kernel()
	if err != nil {
		return err
	}
	reg, err := j.cfg.RegistrationMatrix()
	if err != nil {
		return err
	}
	h := math.Floor(j.cfg.Surface.Radius / 2)
	lbl := label.Box("cube", r3.Vec{X: -h, Y: -h, Z: -h}, r3.Vec{X: h, Y: h, Z: h}, 1)
	fmt.Printf("Step 2: Sampling %d label points (threshold %g)...\n", lbl.Len(), j.cfg.Label.ResizeThreshold)
	res, err := resample.ResampleLabel(src, srcT, nil, reg, lbl, j.cfg.Label.ResizeThreshold, k, j.options("label")...)
	if err != nil {
		return err
	}
	fmt.Printf("%d of %d label points sampled inside the source\n", res.Sampled, lbl.Len())
	fmt.Printf("Mask: %d points hit the grid, %d voxels kept\n", res.RawHits, res.FinalHits)
	for f, avg := range res.Average.Data {
		fmt.Printf("Frame %d ROI mean: %.6f\n", f, avg)
	}
	if err := j.summarize("roi", "label point value", res.Values.Data); err != nil {
		return err
	}
	return j.saveVolume(res.Mask)
}

func (j *job) summarize(stage, what string, values []float64) error {
	s, err := report.Summarize(values)
	if err != nil {
		return err
	}
	fmt.Printf("Result %s: %s\n", what, s)
	if !j.cfg.Output.Histogram {
		return nil
	}
	path := filepath.Join(j.outputDir, stage+"_histogram.png")
	if err := report.SaveHistogram(path, stage, what, values, 50); err != nil {
		return err
	}
	fmt.Printf("Histogram saved to: %s\n", path)
	return nil
}

func (j *job) saveVolume(v *volume.Volume) error {
	dir := filepath.Join(j.outputDir, "slices")
	n, err := slicestack.SaveSequence(v, slicestack.AxisSlice, 0, dir, "png")
	if err != nil {
		return fmt.Errorf("saving slices: %w", err)
	}
	fmt.Printf("Saved %d slices to: %s\n", n, dir)
	return nil
}
