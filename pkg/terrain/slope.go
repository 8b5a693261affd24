// Package terrain computes slope and aspect fields from a DEM.
// These are the inputs to the aspect-correlation shift estimation of
// Nuth & Kääb (2011): a horizontal mis-registration between two DEMs of
// the same terrain shows up as an elevation error whose sign and
// magnitude depend on which way each cell faces.
package terrain

import (
	"math"

	"demcoreg/internal/models"
)

// Gradient computes the discrete gradient of a grid along both axes.
// Interior cells use central differences, edge cells a one-sided
// difference, so the outputs have the same shape as the input. gRow is
// the derivative along the row axis (north to south), gCol along the
// column axis (west to east), both in elevation units per cell. NaN
// cells propagate into every gradient value whose stencil touches them.
func Gradient(dem *models.Grid) (gRow, gCol *models.Grid) {
	rows, cols := dem.Rows, dem.Cols
	gRow = models.NewGridNaN(rows, cols)
	gCol = models.NewGridNaN(rows, cols)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			gRow.Set(r, c, axisDiff(r, rows, func(i int) float64 { return dem.At(i, c) }))
			gCol.Set(r, c, axisDiff(c, cols, func(i int) float64 { return dem.At(r, i) }))
		}
	}
	return gRow, gCol
}

// axisDiff evaluates the gradient convention at index i along an axis
// of length n: central difference inside, one-sided at either end.
func axisDiff(i, n int, at func(int) float64) float64 {
	switch {
	case n < 2:
		return math.NaN()
	case i == 0:
		return at(1) - at(0)
	case i == n-1:
		return at(n-1) - at(n-2)
	default:
		return (at(i+1) - at(i-1)) / 2
	}
}

// SlopeAspect derives the slope magnitude and aspect angle of every
// cell. Slope is the gradient magnitude in elevation units per cell.
// Aspect is in radians in [0, 2π), with 0 for a surface facing
// geographic north; it is NaN wherever the slope is zero or the
// elevation is invalid, since a flat cell faces no direction.
func SlopeAspect(dem *models.Grid) (slope, aspect *models.Grid) {
	gRow, gCol := Gradient(dem)
	slope = models.NewGrid(dem.Rows, dem.Cols)
	aspect = models.NewGrid(dem.Rows, dem.Cols)

	for i := range slope.Data {
		// An invalid elevation invalidates its own cell even though
		// the central-difference stencil skips the center value.
		if math.IsNaN(dem.Data[i]) {
			slope.Data[i] = math.NaN()
			aspect.Data[i] = math.NaN()
			continue
		}
		gr := gRow.Data[i]
		gc := gCol.Data[i]
		s := math.Hypot(gr, gc)
		slope.Data[i] = s
		if math.IsNaN(s) || s == 0 {
			aspect.Data[i] = math.NaN()
			continue
		}
		aspect.Data[i] = aspectAngle(gr, gc)
	}
	return slope, aspect
}

// aspectAngle maps a gradient to the aspect convention. atan2 yields
// (-π, π]; the +π shift moves the range to [0, 2π], with 2π reached
// only when atan2 returns exactly π. That single boundary value folds
// back onto 0.
func aspectAngle(gRow, gCol float64) float64 {
	a := math.Atan2(-gCol, gRow) + math.Pi
	if a >= 2*math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// SlopeAngle converts the per-cell gradient magnitude into a slope
// angle in radians, given the horizontal cell size in the same units
// as the elevations. Used by the deramping mask, which excludes
// terrain steeper than a fixed angle.
func SlopeAngle(dem *models.Grid, cellSize float64) *models.Grid {
	gRow, gCol := Gradient(dem)
	out := models.NewGrid(dem.Rows, dem.Cols)
	for i := range out.Data {
		if math.IsNaN(dem.Data[i]) {
			out.Data[i] = math.NaN()
			continue
		}
		out.Data[i] = math.Atan(math.Hypot(gRow.Data[i], gCol.Data[i]) / cellSize)
	}
	return out
}
