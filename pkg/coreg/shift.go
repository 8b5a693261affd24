// Package coreg implements the numerical core of DEM co-registration
// using the method presented in Nuth & Kääb (2011): a horizontal
// mis-registration between two elevation models of the same terrain
// produces an elevation difference that varies sinusoidally with
// terrain aspect once normalized by slope. Estimating that sinusoid
// recovers the sub-pixel shift; iterating shift-and-resample converges
// on the registered grid, and a final planar fit removes any residual
// vertical tilt.
package coreg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"demcoreg/internal/models"
)

const (
	// numAspectBins partitions [0, 2π) into 5° aspect bins.
	numAspectBins = 72

	// aspectBinWidth is the angular width of one bin.
	aspectBinWidth = math.Pi / 36

	// targetLimit bounds |dh/slope|; larger magnitudes come from
	// near-zero slopes where the normalization blows up.
	targetLimit = 200

	// minFiniteBins is the smallest number of populated aspect bins
	// for which the three-parameter sinusoid fit is well posed.
	minFiniteBins = 3
)

// Shift is the estimated horizontal offset between two DEMs in
// grid-cell units, plus the incidental fit parameter c which tracks
// the vertical offset and is not used by the iteration loop.
type Shift struct {
	East  float64
	North float64
	C     float64
}

// ShiftDiagnostics carries the intermediate series of one shift
// estimate as plain data, so that plotting stays strictly outside the
// estimator. BinMedians may contain NaN for empty bins; FitCurve is
// the fitted sinusoid evaluated at every bin center.
type ShiftDiagnostics struct {
	BinCenters  []float64
	BinMedians  []float64
	FitCurve    []float64
	SampleCount int
}

// EstimateShift computes the horizontal offset between two DEMs from
// their difference grid dh, using the slope and aspect of the master
// terrain. All three grids must share a shape. The returned east and
// north components are in grid-cell units.
//
// The estimate follows Nuth & Kääb (2011): the slope-normalized
// difference dh/slope is binned by terrain aspect, the per-bin medians
// are fitted with a*cos(b-aspect)+c, and the amplitude/phase pair is
// decomposed into east = a*sin(b), north = a*cos(b), with b = 0
// corresponding to true north.
func EstimateShift(dh, slope, aspect *models.Grid) (Shift, *ShiftDiagnostics, error) {
	if !dh.SameShape(slope) || !dh.SameShape(aspect) {
		return Shift{}, nil, fmt.Errorf("dh %dx%d vs slope/aspect: %w",
			dh.Rows, dh.Cols, ErrShapeMismatch)
	}

	// Slope-normalized difference, restricted to cells where dh is
	// valid. Division by a zero slope produces Inf here; those samples
	// are removed by the magnitude guard below, and flat cells carry a
	// NaN aspect so they never reach a bin either.
	targets := make([]float64, 0, len(dh.Data))
	aspects := make([]float64, 0, len(dh.Data))
	for i, d := range dh.Data {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		targets = append(targets, d/slope.Data[i])
		aspects = append(aspects, aspect.Data[i])
	}
	if len(targets) == 0 {
		return Shift{}, nil, fmt.Errorf("no valid cells in difference grid: %w", ErrInsufficientData)
	}

	// Median of dh/slope per 5° aspect bin. Empty bins stay NaN and
	// are excluded from the fit residuals.
	binValues := make([][]float64, numAspectBins)
	for i, a := range aspects {
		if math.IsNaN(a) {
			continue
		}
		t := targets[i]
		if !(t > -targetLimit && t < targetLimit) {
			continue
		}
		b := int(a / aspectBinWidth)
		if b >= numAspectBins {
			b = 0 // aspect of exactly 2π folds onto the north bin
		}
		binValues[b] = append(binValues[b], t)
	}

	centers := make([]float64, numAspectBins)
	medians := make([]float64, numAspectBins)
	finiteBins := 0
	for b := 0; b < numAspectBins; b++ {
		centers[b] = (float64(b) + 0.5) * aspectBinWidth
		medians[b] = Median(binValues[b])
		if !math.IsNaN(medians[b]) {
			finiteBins++
		}
	}
	if finiteBins < minFiniteBins {
		return Shift{}, nil, fmt.Errorf("only %d of %d aspect bins populated: %w",
			finiteBins, numAspectBins, ErrInsufficientData)
	}

	// Percentile-trimmed raw series. The fit runs on the bin medians,
	// but the trimmed series supplies the initial guess and the sample
	// count reported in diagnostics.
	trimmed := trimPercentiles(targets, aspects)
	guess := []float64{
		3 * stat.StdDev(trimmed, nil) / math.Sqrt2,
		0,
		stat.Mean(trimmed, nil),
	}
	for _, g := range guess {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			guess = []float64{1, 0, 0}
			break
		}
	}

	params, err := fitAspectSinusoid(centers, medians, guess)
	if err != nil {
		return Shift{}, nil, err
	}
	a, b, c := params[0], params[1], params[2]

	diag := &ShiftDiagnostics{
		BinCenters:  centers,
		BinMedians:  medians,
		FitCurve:    make([]float64, numAspectBins),
		SampleCount: len(trimmed),
	}
	for i, x := range centers {
		diag.FitCurve[i] = a*math.Cos(b-x) + c
	}

	return Shift{
		East:  a * math.Sin(b),
		North: a * math.Cos(b),
		C:     c,
	}, diag, nil
}

// trimPercentiles drops raw samples outside the 1st-99th percentile
// range, after removing non-finite target or aspect entries. When the
// trim would discard everything, as it does for constant data, the
// untrimmed finite series is returned instead.
func trimPercentiles(targets, aspects []float64) []float64 {
	finite := make([]float64, 0, len(targets))
	for i, t := range targets {
		if math.IsNaN(t) || math.IsInf(t, 0) || math.IsNaN(aspects[i]) {
			continue
		}
		finite = append(finite, t)
	}
	if len(finite) == 0 {
		return finite
	}
	p1 := Percentile(finite, 1)
	p99 := Percentile(finite, 99)
	kept := make([]float64, 0, len(finite))
	for _, t := range finite {
		if t > p1 && t < p99 {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return finite
	}
	return kept
}

// fitAspectSinusoid solves the nonlinear least-squares problem
// median(θ) ≈ p0*cos(p1-θ) + p2 over the finite bin medians, by
// Nelder-Mead minimization of the squared residual sum. The simplex
// method is used because the Wolfe linesearch behind the gradient
// methods stalls on the near-flat residual surfaces that ordinary
// inputs produce (small amplitudes, coarse bin medians); the failure
// modes reserved here are for genuinely ill-posed fits. Each call is
// self-contained: no solver state survives between calls.
func fitAspectSinusoid(centers, medians, guess []float64) ([]float64, error) {
	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			sum := 0.0
			for i, x := range centers {
				m := medians[i]
				if math.IsNaN(m) {
					continue
				}
				r := p[0]*math.Cos(p[1]-x) + p[2] - m
				sum += r * r
			}
			return sum
		},
	}

	result, err := optimize.Minimize(problem, guess, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("aspect sinusoid fit: %v: %w", err, ErrSingularFit)
	}
	if err := result.Status.Err(); err != nil {
		return nil, fmt.Errorf("aspect sinusoid fit: %v: %w", err, ErrSingularFit)
	}
	for _, p := range result.X {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("aspect sinusoid fit diverged: %w", ErrSingularFit)
		}
	}
	return result.X, nil
}
