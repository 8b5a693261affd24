// Package resample provides bilinear evaluation of a DEM at shifted
// sample coordinates, with a parallel no-data mask interpolation that
// invalidates any cell partly derived from originally invalid data.
package resample

import (
	"math"
	"runtime"
	"sync"

	"demcoreg/internal/models"
)

// fillValue replaces NaN in the interpolation source. The value itself
// never leaks into results: any sample whose bilinear stencil touches a
// filled cell has a nonzero interpolated mask and is set to NaN.
const fillValue = -9999

// Resampler evaluates a source grid at fractional offsets. It captures
// a NaN-filled copy of the source plus a 0/1 validity mask once at
// construction; every At call samples that same source, so offsets are
// always cumulative with respect to the original grid rather than
// compounding interpolation error across iterations.
type Resampler struct {
	filled  *models.Grid
	nodata  *models.Grid
	workers int
}

// New builds a resampler for the given source grid. workers bounds the
// number of goroutines used per evaluation; values below 1 select
// runtime.NumCPU().
func New(src *models.Grid, workers int) *Resampler {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	filled := src.Clone()
	nodata := models.NewGrid(src.Rows, src.Cols)
	for i, v := range src.Data {
		if math.IsNaN(v) {
			filled.Data[i] = fillValue
			nodata.Data[i] = 1
		}
	}
	return &Resampler{filled: filled, nodata: nodata, workers: workers}
}

// At returns the source grid resampled at the given offset in
// grid-cell units. Output cell (row, col) is sampled from source
// coordinates (row - north, col + east): a positive northward offset
// moves the sampling grid southward, encoding the flip between the
// raster row axis and the geographic north axis. Samples outside the
// source domain and samples whose interpolated no-data mask is nonzero
// come back as NaN.
func (rs *Resampler) At(east, north float64) *models.Grid {
	rows, cols := rs.filled.Rows, rs.filled.Cols
	out := models.NewGrid(rows, cols)

	var wg sync.WaitGroup
	for w := 0; w < rs.workers; w++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for r := start; r < rows; r += rs.workers {
				y := float64(r) - north
				for c := 0; c < cols; c++ {
					x := float64(c) + east
					out.Set(r, c, rs.sample(y, x))
				}
			}
		}(w)
	}
	wg.Wait()
	return out
}

// sample bilinearly evaluates the filled grid and the no-data mask at
// fractional (row, col) coordinates.
func (rs *Resampler) sample(y, x float64) float64 {
	rows, cols := rs.filled.Rows, rs.filled.Cols
	if y < 0 || x < 0 || y > float64(rows-1) || x > float64(cols-1) {
		return math.NaN()
	}

	r0 := int(math.Floor(y))
	c0 := int(math.Floor(x))
	if r0 > rows-2 {
		r0 = rows - 2
	}
	if c0 > cols-2 {
		c0 = cols - 2
	}
	if r0 < 0 {
		r0 = 0
	}
	if c0 < 0 {
		c0 = 0
	}
	fy := y - float64(r0)
	fx := x - float64(c0)

	if bilinear(rs.nodata, r0, c0, fy, fx) != 0 {
		return math.NaN()
	}
	return bilinear(rs.filled, r0, c0, fy, fx)
}

func bilinear(g *models.Grid, r0, c0 int, fy, fx float64) float64 {
	r1, c1 := r0+1, c0+1
	if r1 > g.Rows-1 {
		r1 = g.Rows - 1
	}
	if c1 > g.Cols-1 {
		c1 = g.Cols - 1
	}
	top := g.At(r0, c0)*(1-fx) + g.At(r0, c1)*fx
	bot := g.At(r1, c0)*(1-fx) + g.At(r1, c1)*fx
	return top*(1-fy) + bot*fy
}
