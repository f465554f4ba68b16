// Package report summarises resampling results for diagnostic output.
package report

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Comparison holds agreement metrics between two equally sized samples,
// typically a volume and its resampled round trip.
type Comparison struct {
	// RMSE is the root mean square difference.
	RMSE float64

	// MaxAbsDiff is the largest absolute difference.
	MaxAbsDiff float64

	// Correlation is the Pearson correlation. It is NaN when either sample
	// is constant.
	Correlation float64

	// SSIM is a global structural similarity index computed from the means,
	// variances and covariance of both samples. Values range from -1 to 1.
	SSIM float64

	// EntropyDiff is the absolute difference of the samples' Shannon
	// entropies in bits, each taken over a 256-bin histogram of its own range.
	EntropyDiff float64
}

// Compare computes a Comparison of a and b.
func Compare(a, b []float64) (Comparison, error) {
	if len(a) != len(b) {
		return Comparison{}, fmt.Errorf("report: sample lengths differ: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return Comparison{}, fmt.Errorf("report: empty samples")
	}
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, b)
	var c Comparison
	c.RMSE = math.Sqrt(floats.Dot(diff, diff) / float64(len(diff)))
	c.MaxAbsDiff = floats.Norm(diff, math.Inf(1))
	c.Correlation = stat.Correlation(a, b, nil)
	c.SSIM = ssim(a, b)
	c.EntropyDiff = math.Abs(Entropy(a) - Entropy(b))
	return c, nil
}

const entropyBins = 256

// Entropy returns the Shannon entropy of x in bits over a 256-bin histogram
// spanning [min(x), max(x)]. Constant and empty samples have zero entropy.
func Entropy(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	lo, hi := floats.Min(x), floats.Max(x)
	if hi <= lo {
		return 0
	}
	p := make([]float64, entropyBins)
	width := (hi - lo) / entropyBins
	for _, v := range x {
		bin := min(int((v-lo)/width), entropyBins-1)
		p[bin]++
	}
	floats.Scale(1/float64(len(x)), p)
	return stat.Entropy(p) / math.Ln2
}

// ssim uses the usual stabilising constants for a dynamic range of 1.
func ssim(x, y []float64) float64 {
	const (
		c1 = 0.01 * 0.01
		c2 = 0.03 * 0.03
	)
	if len(x) < 2 {
		if x[0] == y[0] {
			return 1
		}
		return 0
	}
	muX, muY := stat.Mean(x, nil), stat.Mean(y, nil)
	varX, varY := stat.Variance(x, nil), stat.Variance(y, nil)
	cov := stat.Covariance(x, y, nil)
	return ((2*muX*muY + c1) * (2*cov + c2)) /
		((muX*muX + muY*muY + c1) * (varX + varY + c2))
}

// Summary describes the distribution of a non-empty sample.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Median float64
	P95    float64
	Max    float64
}

// Summarize computes a Summary. The input is not modified.
func Summarize(x []float64) (Summary, error) {
	if len(x) == 0 {
		return Summary{}, fmt.Errorf("report: empty sample")
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	s := Summary{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s, nil
}

func (s Summary) String() string {
	return fmt.Sprintf("n=%d mean=%.4g sd=%.4g median=%.4g p95=%.4g max=%.4g",
		s.Count, s.Mean, s.StdDev, s.Median, s.P95, s.Max)
}

// HitCounts summarises integer hit counters such as Surf2Surf's SrcHits:
// how many elements were hit at all and how many more than once.
type HitCounts struct {
	Total    int
	Hit      int
	Multiple int
	MaxHits  int
}

// CountHits tallies hits.
func CountHits(hits []int) HitCounts {
	h := HitCounts{Total: len(hits)}
	for _, n := range hits {
		if n > 0 {
			h.Hit++
		}
		if n > 1 {
			h.Multiple++
		}
		h.MaxHits = max(h.MaxHits, n)
	}
	return h
}

func (h HitCounts) String() string {
	return fmt.Sprintf("%d/%d hit, %d more than once, max %d", h.Hit, h.Total, h.Multiple, h.MaxHits)
}
