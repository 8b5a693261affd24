package coreg

import (
	"math"
	"sort"

	"demcoreg/internal/models"
)

// nmadFactor scales the median absolute deviation so that NMAD
// estimates the standard deviation for Gaussian-like data.
const nmadFactor = 1.4826

// FiniteValues returns the finite samples of a grid as a flat slice.
// This is the explicit NaN filter applied before every reduction; the
// reductions below require finite input and do not skip NaN themselves.
func FiniteValues(g *models.Grid) []float64 {
	out := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Median returns the median of xs, averaging the two middle values for
// an even count. Returns NaN for empty input. xs must contain only
// finite values; callers filter with FiniteValues first.
func Median(xs []float64) float64 {
	return Percentile(xs, 50)
}

// Percentile returns the p-th percentile (0-100) of xs using linear
// interpolation between order statistics, matching the convention the
// rest of the numbers in this package were validated against. Returns
// NaN for empty input. xs is not modified.
func Percentile(xs []float64, p float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return xs[0]
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)

	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// NMAD returns the normalized median absolute deviation of xs,
// 1.4826 x median(|x - median(x)|). Returns NaN for empty input.
func NMAD(xs []float64) float64 {
	med := Median(xs)
	if math.IsNaN(med) {
		return math.NaN()
	}
	dev := make([]float64, len(xs))
	for i, v := range xs {
		dev[i] = math.Abs(v - med)
	}
	return nmadFactor * Median(dev)
}

// DiffStats computes the robust (median, NMAD) pair of a difference
// grid, ignoring no-data cells.
func DiffStats(diff *models.Grid) (median, nmad float64) {
	finite := FiniteValues(diff)
	return Median(finite), NMAD(finite)
}
