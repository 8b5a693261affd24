// Package raster reads and writes elevation grids as ESRI ASCII grid
// files and applies the grid-level masking the co-registration pipeline
// needs: no-data substitution, stable-area masks and residual
// prefiltering. All masking turns cells into NaN; downstream code
// treats NaN as the single no-data representation.
package raster

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"demcoreg/internal/models"
)

// defaultNoData is written for NaN cells when the source carried no
// explicit sentinel.
const defaultNoData = -9999

// Raster couples a grid with its world georeference and the no-data
// sentinel declared by the file it came from.
type Raster struct {
	Grid   *models.Grid
	Ref    models.GeoRef
	NoData float64
}

// ReadASCII loads an ESRI ASCII grid. Cell values equal to the file's
// declared no-data sentinel are left untouched; call ApplyNoData to
// convert them (or an overriding sentinel) to NaN.
func ReadASCII(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	next := func() (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("unexpected end of file")
		}
		return sc.Text(), nil
	}

	header := map[string]float64{}
	nodata := math.NaN()
	var firstValue string
	for {
		tok, err := next()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		key := strings.ToLower(tok)
		switch key {
		case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
			val, err := next()
			if err != nil {
				return nil, fmt.Errorf("%s: header %s: %w", path, key, err)
			}
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: header %s: %w", path, key, err)
			}
			if key == "nodata_value" {
				nodata = v
			} else {
				header[key] = v
			}
			continue
		}
		firstValue = tok
		break
	}

	cols := int(header["ncols"])
	rows := int(header["nrows"])
	cell := header["cellsize"]
	if rows <= 0 || cols <= 0 || cell <= 0 {
		return nil, fmt.Errorf("%s: invalid header (ncols=%d nrows=%d cellsize=%g)", path, cols, rows, cell)
	}

	grid := models.NewGrid(rows, cols)
	for i := 0; i < rows*cols; i++ {
		tok := firstValue
		if i > 0 {
			var err error
			tok, err = next()
			if err != nil {
				return nil, fmt.Errorf("%s: cell %d of %d: %w", path, i, rows*cols, err)
			}
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: cell %d: %w", path, i, err)
		}
		grid.Data[i] = v
	}

	// Header corners reference the lower-left cell; GeoRef uses the
	// center of the top-left cell.
	xll, yll := header["xllcorner"], header["yllcorner"]
	if v, ok := header["xllcenter"]; ok {
		xll = v - cell/2
	}
	if v, ok := header["yllcenter"]; ok {
		yll = v - cell/2
	}
	return &Raster{
		Grid: grid,
		Ref: models.GeoRef{
			X0:   xll + cell/2,
			Y0:   yll + (float64(rows)-0.5)*cell,
			XRes: cell,
			YRes: -cell,
		},
		NoData: nodata,
	}, nil
}

// ApplyNoData converts cells equal to the given sentinel into NaN.
// Pass the raster's own NoData to honor the file's declaration, or an
// explicit override from the command line.
func (ra *Raster) ApplyNoData(sentinel float64) {
	if math.IsNaN(sentinel) {
		return
	}
	for i, v := range ra.Grid.Data {
		if v == sentinel {
			ra.Grid.Data[i] = math.NaN()
		}
	}
}

// WriteASCII stores the grid with the raster's georeference. NaN cells
// are written as the raster's no-data sentinel.
func (ra *Raster) WriteASCII(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create raster: %w", err)
	}
	defer f.Close()

	nodata := ra.NoData
	if math.IsNaN(nodata) {
		nodata = defaultNoData
	}
	g := ra.Grid
	cell := ra.Ref.XRes

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ncols %d\n", g.Cols)
	fmt.Fprintf(w, "nrows %d\n", g.Rows)
	fmt.Fprintf(w, "xllcorner %g\n", ra.Ref.X0-cell/2)
	fmt.Fprintf(w, "yllcorner %g\n", ra.Ref.Y0+ra.Ref.YRes*(float64(g.Rows)-0.5))
	fmt.Fprintf(w, "cellsize %g\n", cell)
	fmt.Fprintf(w, "NODATA_value %g\n", nodata)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if c > 0 {
				w.WriteByte(' ')
			}
			v := g.At(r, c)
			if math.IsNaN(v) {
				v = nodata
			}
			fmt.Fprintf(w, "%g", v)
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write raster: %w", err)
	}
	return nil
}

// ApplyMask invalidates dem cells wherever the mask grid is positive,
// e.g. to exclude moving glacier surfaces from the stable-terrain fit.
// Shapes must match.
func ApplyMask(dem, mask *models.Grid) error {
	if !dem.SameShape(mask) {
		return fmt.Errorf("dem %dx%d vs mask %dx%d shapes differ",
			dem.Rows, dem.Cols, mask.Rows, mask.Cols)
	}
	for i, m := range mask.Data {
		if m > 0 {
			dem.Data[i] = math.NaN()
		}
	}
	return nil
}

// FilterResiduals invalidates master cells whose absolute difference
// against the slave exceeds resMax, removing gross outliers before any
// estimation. Shapes must match.
func FilterResiduals(master, slave *models.Grid, resMax float64) error {
	if !master.SameShape(slave) {
		return fmt.Errorf("master %dx%d vs slave %dx%d shapes differ",
			master.Rows, master.Cols, slave.Rows, slave.Cols)
	}
	for i := range master.Data {
		if math.Abs(master.Data[i]-slave.Data[i]) > resMax {
			master.Data[i] = math.NaN()
		}
	}
	return nil
}
