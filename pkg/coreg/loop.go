package coreg

import (
	"fmt"
	"math"
	"runtime"

	"demcoreg/internal/models"
	"demcoreg/pkg/resample"
	"demcoreg/pkg/terrain"
)

// Options controls the iterative shift estimation loop.
type Options struct {
	// Iterations is the fixed number of shift-and-resample passes.
	// The loop always runs exactly this many iterations; the NMAD
	// gain is reported but never used for early exit, trading a little
	// wasted work for predictable behavior.
	Iterations int

	// Workers bounds the goroutines used for resampling.
	Workers int

	// Verbose prints the per-iteration report to stdout.
	Verbose bool

	// CollectDiagnostics retains each iteration's aspect-bin series
	// for external plotting.
	CollectDiagnostics bool
}

// DefaultOptions returns the reference loop configuration.
func DefaultOptions() Options {
	return Options{
		Iterations: 5,
		Workers:    runtime.NumCPU(),
	}
}

// Offset is an accumulated horizontal shift in grid-cell units.
type Offset struct {
	East  float64
	North float64
}

// IterationStats is the robust statistics pair of the difference grid
// after one iteration, plus the relative NMAD change against the
// previous iteration in percent (negative is an improvement).
type IterationStats struct {
	Median  float64
	NMAD    float64
	GainPct float64
}

// Result is the outcome of the co-registration loop.
type Result struct {
	// Aligned is the slave grid resampled at the final offset.
	Aligned *models.Grid

	// Offset is the total estimated shift of the slave relative to
	// the master, in grid-cell units.
	Offset Offset

	// Initial holds the (median, NMAD) of the difference before any
	// correction; its GainPct is zero.
	Initial IterationStats

	// Iterations holds one entry per loop pass.
	Iterations []IterationStats

	// Diagnostics holds one entry per pass when requested, else nil.
	Diagnostics []*ShiftDiagnostics
}

// Coregister aligns the slave grid to the master by iteratively
// estimating and applying a horizontal shift. Both grids must already
// share the master's sampling geometry; shape mismatches are fatal
// rather than truncated. Slope and aspect are computed once from the
// master, which does not move; each pass re-estimates the residual
// shift from the current difference, accumulates it, and resamples the
// original slave at the total offset.
func Coregister(master, slave *models.Grid, opts Options) (*Result, error) {
	if !master.SameShape(slave) {
		return nil, fmt.Errorf("master %dx%d vs slave %dx%d: %w",
			master.Rows, master.Cols, slave.Rows, slave.Cols, ErrShapeMismatch)
	}
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("iterations = %d: %w", opts.Iterations, ErrInvalidInput)
	}

	slope, aspect := terrain.SlopeAspect(master)
	rs := resample.New(slave, opts.Workers)

	median, nmad := DiffStats(slave.Sub(master))
	if math.IsNaN(median) {
		return nil, fmt.Errorf("no overlapping valid cells: %w", ErrInsufficientData)
	}
	res := &Result{
		Aligned: slave.Clone(),
		Initial: IterationStats{Median: median, NMAD: nmad},
	}
	if opts.Verbose {
		fmt.Println("Statistics on initial dh")
		fmt.Printf("Median : %f, NMAD : %f\n", median, nmad)
		fmt.Println("Iteratively estimate DEMs shift")
	}

	current := res.Aligned
	nmadPrev := nmad
	for i := 0; i < opts.Iterations; i++ {
		// The running median is removed from the current grid before
		// differencing so the vertical bias cannot leak into the
		// horizontal estimate. The subtraction is local to this pass:
		// the next grid always comes from resampling the original
		// slave, never from the biased copy.
		dh := models.NewGrid(master.Rows, master.Cols)
		for j := range dh.Data {
			dh.Data[j] = master.Data[j] - (current.Data[j] - median)
		}

		shift, diag, err := EstimateShift(dh, slope, aspect)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		res.Offset.East += shift.East
		res.Offset.North += shift.North
		if opts.CollectDiagnostics {
			res.Diagnostics = append(res.Diagnostics, diag)
		}
		if opts.Verbose {
			fmt.Printf("#%d - Offset in pixels : (%f,%f)\n", i+1, shift.East, shift.North)
		}

		current = rs.At(res.Offset.East, res.Offset.North)

		diff := FiniteValues(current.Sub(master))
		if len(diff) == 0 {
			return nil, fmt.Errorf("iteration %d: offset moved grids out of overlap: %w",
				i+1, ErrInsufficientData)
		}
		nmadNew := NMAD(diff)
		median = Median(diff)
		stats := IterationStats{
			Median:  median,
			NMAD:    nmadNew,
			GainPct: (nmadNew - nmadPrev) / nmadPrev * 100,
		}
		res.Iterations = append(res.Iterations, stats)
		if opts.Verbose {
			fmt.Printf("Median : %.2f, NMAD = %.2f, Gain : %.2f%%\n",
				stats.Median, stats.NMAD, stats.GainPct)
		}
		nmadPrev = nmadNew
	}

	res.Aligned = current
	if opts.Verbose {
		fmt.Printf("Final Offset in pixels (east, north) : (%f,%f)\n",
			res.Offset.East, res.Offset.North)
	}
	return res, nil
}
