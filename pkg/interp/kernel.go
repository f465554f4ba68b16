package interp

import (
	"errors"
	"fmt"
	"math"

	"mriresample/pkg/index"
	"mriresample/pkg/volume"
)

const (
	// DefaultSincRadius is the sinc half-width used when Kernel.SincRadius
	// is zero.
	DefaultSincRadius = 3

	// MaxSincRadius bounds the sinc half-width.
	MaxSincRadius = 8
)

// ErrSincRadius is returned for a sinc half-width outside [0, MaxSincRadius].
var ErrSincRadius = errors.New("interp: sinc radius out of range")

// Kernel pairs an interpolation method with the float-to-index policy that
// decides whether a point is inside the grid (and, for Nearest, which voxel
// it reads).
//
// Every method uses the same inside test: the point is inside iff the policy
// maps it onto a valid voxel. Trilinear and Sinc then use a renormalized
// partial window: neighbours outside the grid get zero weight and the
// weighted sum is divided by the sum of the in-grid weights. Constant fields
// therefore stay constant up to the border.
type Kernel struct {
	Method     Method
	Policy     index.Policy
	SincRadius int
}

// Validate checks the method, policy and sinc radius.
func (k Kernel) Validate() error {
	if !k.Method.Valid() {
		return fmt.Errorf("%w: code %d", ErrUnknownMethod, int(k.Method))
	}
	if !k.Policy.Valid() {
		return fmt.Errorf("%w: code %d", index.ErrUnknownPolicy, int(k.Policy))
	}
	if k.SincRadius < 0 || k.SincRadius > MaxSincRadius {
		return fmt.Errorf("%w: %d", ErrSincRadius, k.SincRadius)
	}
	return nil
}

func (k Kernel) radius() int {
	if k.SincRadius == 0 {
		return DefaultSincRadius
	}
	return k.SincRadius
}

func (k Kernel) String() string {
	if k.Method == Sinc {
		return fmt.Sprintf("%s(r=%d)/%s", k.Method, k.radius(), k.Policy)
	}
	return fmt.Sprintf("%s/%s", k.Method, k.Policy)
}

// Inside reports whether (fc, fr, fs) lies inside v under the kernel's
// policy, and returns the voxel the policy picks.
func (k Kernel) Inside(v *volume.Volume, fc, fr, fs float64) (c, r, s int, ok bool) {
	return k.Policy.InGrid(fc, fr, fs, v.Cols, v.Rows, v.Slices)
}

// Sample writes one value per frame of v into dst and reports whether the
// point was inside. Outside points write zeros. dst must hold at least
// v.Frames values. The kernel must be valid.
func (k Kernel) Sample(v *volume.Volume, fc, fr, fs float64, dst []float64) bool {
	dst = dst[:v.Frames]
	c, r, s, ok := k.Inside(v, fc, fr, fs)
	if !ok {
		clear(dst)
		return false
	}
	switch k.Method {
	case Nearest:
		sampleNearest(v, c, r, s, dst)
	case Trilinear:
		if !sampleTrilinear(v, fc, fr, fs, dst) {
			sampleNearest(v, c, r, s, dst)
		}
	case Sinc:
		if !sampleSinc(v, fc, fr, fs, k.radius(), dst) {
			sampleNearest(v, c, r, s, dst)
		}
	default:
		panic(fmt.Sprintf("interp: invalid method %d", int(k.Method)))
	}
	return true
}

func sampleNearest(v *volume.Volume, c, r, s int, dst []float64) {
	n := v.NVoxels()
	i := v.Voxel(c, r, s)
	for f := range dst {
		dst[f] = v.Data[f*n+i]
	}
}

// taps holds the in-grid sample positions and weights along one axis.
type taps struct {
	idx [2 * MaxSincRadius]int
	w   [2 * MaxSincRadius]float64
	n   int
}

func linearTaps(x float64, size int) taps {
	var t taps
	x0 := math.Floor(x)
	d := x - x0
	i0 := int(x0)
	if i0 >= 0 && i0 < size {
		t.idx[t.n], t.w[t.n] = i0, 1-d
		t.n++
	}
	if i0+1 >= 0 && i0+1 < size && d != 0 {
		t.idx[t.n], t.w[t.n] = i0+1, d
		t.n++
	}
	return t
}

func sincTaps(x float64, size, radius int) taps {
	var t taps
	x0 := int(math.Floor(x))
	for i := x0 - radius + 1; i <= x0+radius; i++ {
		if i < 0 || i >= size {
			continue
		}
		w := hanningSinc(x-float64(i), float64(radius))
		if w == 0 {
			continue
		}
		t.idx[t.n], t.w[t.n] = i, w
		t.n++
	}
	return t
}

// hanningSinc is exactly 1 at 0 and exactly 0 at every other integer, so the
// kernel reproduces grid values at grid points.
func hanningSinc(x, radius float64) float64 {
	if x == 0 {
		return 1
	}
	if x == math.Trunc(x) || math.Abs(x) >= radius {
		return 0
	}
	px := math.Pi * x
	return math.Sin(px) / px * 0.5 * (1 + math.Cos(px/radius))
}

func sampleTrilinear(v *volume.Volume, fc, fr, fs float64, dst []float64) bool {
	return separable(v, linearTaps(fc, v.Cols), linearTaps(fr, v.Rows), linearTaps(fs, v.Slices), dst)
}

func sampleSinc(v *volume.Volume, fc, fr, fs float64, radius int, dst []float64) bool {
	return separable(v, sincTaps(fc, v.Cols, radius), sincTaps(fr, v.Rows, radius), sincTaps(fs, v.Slices, radius), dst)
}

// separable evaluates Σ wc·wr·ws·v / Σ wc·wr·ws over the tap grid. It
// returns false when the weights cancel out.
func separable(v *volume.Volume, tc, tr, ts taps, dst []float64) bool {
	clear(dst)
	n := v.NVoxels()
	wsum := 0.0
	for k := 0; k < ts.n; k++ {
		for j := 0; j < tr.n; j++ {
			wrs := tr.w[j] * ts.w[k]
			base := (ts.idx[k]*v.Rows + tr.idx[j]) * v.Cols
			for i := 0; i < tc.n; i++ {
				w := tc.w[i] * wrs
				vox := base + tc.idx[i]
				for f := range dst {
					dst[f] += w * v.Data[f*n+vox]
				}
				wsum += w
			}
		}
	}
	if wsum == 0 {
		return false
	}
	if wsum != 1 {
		for f := range dst {
			dst[f] /= wsum
		}
	}
	return true
}
