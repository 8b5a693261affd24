package models

import (
	"math"
)

// Grid is a 2D raster of elevation samples stored row-major.
// Row 0 is the northernmost row and column 0 the westernmost column,
// matching the usual north-up raster layout. Cells without a valid
// measurement hold NaN so that arithmetic propagates invalidity without
// any extra bookkeeping.
type Grid struct {
	// Data holds the samples in row-major order, length Rows*Cols.
	Data []float64

	// Rows and Cols are the grid dimensions.
	Rows int
	Cols int
}

// NewGrid allocates a grid of the given dimensions with all cells zero.
func NewGrid(rows, cols int) *Grid {
	return &Grid{
		Data: make([]float64, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

// NewGridNaN allocates a grid with every cell set to the no-data sentinel.
func NewGridNaN(rows, cols int) *Grid {
	g := NewGrid(rows, cols)
	for i := range g.Data {
		g.Data[i] = math.NaN()
	}
	return g
}

// At returns the sample at the given row and column.
func (g *Grid) At(row, col int) float64 {
	return g.Data[row*g.Cols+col]
}

// Set stores a sample at the given row and column.
func (g *Grid) Set(row, col int, v float64) {
	g.Data[row*g.Cols+col] = v
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Rows, g.Cols)
	copy(out.Data, g.Data)
	return out
}

// SameShape reports whether two grids have identical dimensions.
func (g *Grid) SameShape(other *Grid) bool {
	return g.Rows == other.Rows && g.Cols == other.Cols
}

// Sub returns the elementwise difference g - other as a new grid.
// NaN in either operand propagates to the result. The caller must
// ensure the shapes match.
func (g *Grid) Sub(other *Grid) *Grid {
	out := NewGrid(g.Rows, g.Cols)
	for i := range g.Data {
		out.Data[i] = g.Data[i] - other.Data[i]
	}
	return out
}

// AddScalar adds v to every cell in place. NaN cells stay NaN.
func (g *Grid) AddScalar(v float64) {
	for i := range g.Data {
		g.Data[i] += v
	}
}

// CountFinite returns the number of cells holding a finite value.
func (g *Grid) CountFinite() int {
	n := 0
	for _, v := range g.Data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			n++
		}
	}
	return n
}

// GeoRef ties a grid to world coordinates. X0, Y0 locate the center of
// the top-left (northwest) cell; YRes is negative for the north-up
// layout used throughout.
type GeoRef struct {
	X0   float64
	Y0   float64
	XRes float64
	YRes float64
}

// CellX returns the world X coordinate of a column center.
func (ref GeoRef) CellX(col int) float64 {
	return ref.X0 + float64(col)*ref.XRes
}

// CellY returns the world Y coordinate of a row center.
func (ref GeoRef) CellY(row int) float64 {
	return ref.Y0 + float64(row)*ref.YRes
}

// Coordinates materializes world coordinate grids X and Y for every
// cell of a rows x cols raster, for use in the deramping plane fit.
func (ref GeoRef) Coordinates(rows, cols int) (x, y *Grid) {
	x = NewGrid(rows, cols)
	y = NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		yv := ref.CellY(r)
		for c := 0; c < cols; c++ {
			x.Set(r, c, ref.CellX(c))
			y.Set(r, c, yv)
		}
	}
	return x, y
}
