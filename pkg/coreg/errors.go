package coreg

import "errors"

// Sentinel errors for the failure modes of the alignment engine.
// Per-cell invalidity is never an error: no-data cells travel as NaN
// and are filtered before every reduction. Only shape, parameter and
// fit-degeneracy problems surface here.
var (
	// ErrShapeMismatch reports that two grids expected to share a
	// sampling geometry differ in dimensions.
	ErrShapeMismatch = errors.New("grid shape mismatch")

	// ErrInsufficientData reports that too few finite samples survive
	// filtering for a fit to be meaningful. A silently wrong offset is
	// worse than a visible failure, so this is never defaulted away.
	ErrInsufficientData = errors.New("insufficient finite data")

	// ErrSingularFit reports that a solver failed to converge or the
	// problem is rank deficient.
	ErrSingularFit = errors.New("fit failed to converge")

	// ErrInvalidInput reports a non-finite or out-of-range parameter.
	ErrInvalidInput = errors.New("invalid input parameter")
)
