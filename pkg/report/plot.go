package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveHistogram writes a histogram of values to path. The image format
// follows the file extension (png, svg, pdf, ...).
func SaveHistogram(path, title, xLabel string, values []float64, bins int) error {
	if len(values) == 0 {
		return fmt.Errorf("report: no values to plot")
	}
	if bins < 1 {
		bins = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating plot directory: %w", err)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "count"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return fmt.Errorf("building histogram: %w", err)
	}
	h.LineStyle.Width = vg.Points(0.5)
	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving histogram: %w", err)
	}
	return nil
}
