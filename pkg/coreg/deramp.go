package coreg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"demcoreg/internal/models"
)

// MaxDerampSlope is the slope angle in radians above which terrain is
// excluded from the ramp fit. Steep cells carry the largest
// interpolation error and would bias the plane.
const MaxDerampSlope = 20 * math.Pi / 180

// derampOutlierFactor trims residuals beyond this many NMADs from the
// median before fitting.
const derampOutlierFactor = 3

// RampModel is a fitted plane a0 + ax*X + ay*Y over world coordinates.
// It generalizes beyond its fitting support: evaluating it at masked
// cells is exactly the point, since the correction applies to the full
// grid.
type RampModel struct {
	A0 float64
	AX float64
	AY float64
}

// Eval returns the ramp elevation at one world coordinate pair.
func (m *RampModel) Eval(x, y float64) float64 {
	return m.A0 + m.AX*x + m.AY*y
}

// EvalGrid evaluates the ramp at every cell of the coordinate grids.
func (m *RampModel) EvalGrid(x, y *models.Grid) *models.Grid {
	out := models.NewGrid(x.Rows, x.Cols)
	for i := range out.Data {
		out.Data[i] = m.Eval(x.Data[i], y.Data[i])
	}
	return out
}

// DerampMask controls which cells participate in the ramp fit.
// NaN bounds disable the corresponding elevation cut.
type DerampMask struct {
	ZMax float64
	ZMin float64
}

// DisabledBounds returns a mask with both elevation cuts off.
func DisabledBounds() DerampMask {
	return DerampMask{ZMax: math.NaN(), ZMin: math.NaN()}
}

// MaskForDeramp returns a copy of the difference grid with unreliable
// cells set to NaN, applied cumulatively: master elevation above ZMax
// (snow-covered terrain), below ZMin (sea ice), slope at or above
// MaxDerampSlope or undefined, and finally residual outliers beyond
// 3xNMAD of the median.
func MaskForDeramp(diff, master, slopeAngle *models.Grid, bounds DerampMask) *models.Grid {
	out := diff.Clone()
	for i := range out.Data {
		z := master.Data[i]
		if !math.IsNaN(bounds.ZMax) && z > bounds.ZMax {
			out.Data[i] = math.NaN()
		}
		if !math.IsNaN(bounds.ZMin) && z < bounds.ZMin {
			out.Data[i] = math.NaN()
		}
		s := slopeAngle.Data[i]
		if math.IsNaN(s) || s >= MaxDerampSlope {
			out.Data[i] = math.NaN()
		}
	}

	med, nmad := DiffStats(out)
	if math.IsNaN(med) || nmad == 0 {
		return out
	}
	for i, v := range out.Data {
		if math.Abs(v-med) > derampOutlierFactor*nmad {
			out.Data[i] = math.NaN()
		}
	}
	return out
}

// FitRamp estimates the plane z ≈ a0 + ax*X + ay*Y over the finite
// cells of the difference grid by linear least squares. Fewer than
// three surviving points leave the plane underdetermined and are
// reported as an error, never defaulted to a zero ramp.
func FitRamp(diff, x, y *models.Grid) (*RampModel, error) {
	if !diff.SameShape(x) || !diff.SameShape(y) {
		return nil, fmt.Errorf("difference %dx%d vs coordinate grids: %w",
			diff.Rows, diff.Cols, ErrShapeMismatch)
	}

	var xs, ys, zs []float64
	for i, v := range diff.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xs = append(xs, x.Data[i])
		ys = append(ys, y.Data[i])
		zs = append(zs, v)
	}
	n := len(zs)
	if n < 3 {
		return nil, fmt.Errorf("plane fit needs 3 points, have %d: %w", n, ErrInsufficientData)
	}

	design := mat.NewDense(n, 3, nil)
	rhs := mat.NewVecDense(n, zs)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		design.Set(i, 1, xs[i])
		design.Set(i, 2, ys[i])
	}

	var qr mat.QR
	qr.Factorize(design)
	var coef mat.Dense
	if err := qr.SolveTo(&coef, false, rhs); err != nil {
		return nil, fmt.Errorf("plane fit rank deficient: %v: %w", err, ErrSingularFit)
	}

	m := &RampModel{
		A0: coef.At(0, 0),
		AX: coef.At(1, 0),
		AY: coef.At(2, 0),
	}
	for _, p := range []float64{m.A0, m.AX, m.AY} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("plane fit produced non-finite coefficients: %w", ErrSingularFit)
		}
	}
	return m, nil
}
