package raster

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"demcoreg/internal/models"
)

func TestReadWriteRoundTrip(t *testing.T) {
	grid := models.NewGrid(3, 4)
	for i := range grid.Data {
		grid.Data[i] = float64(i) * 1.5
	}
	grid.Set(1, 2, math.NaN())

	src := &Raster{
		Grid:   grid,
		Ref:    models.GeoRef{X0: 100.5, Y0: 202.5, XRes: 1, YRes: -1},
		NoData: -9999,
	}

	path := filepath.Join(t.TempDir(), "dem.asc")
	if err := src.WriteASCII(path); err != nil {
		t.Fatalf("WriteASCII failed: %v", err)
	}

	got, err := ReadASCII(path)
	if err != nil {
		t.Fatalf("ReadASCII failed: %v", err)
	}
	got.ApplyNoData(got.NoData)

	if !got.Grid.SameShape(grid) {
		t.Fatalf("shape changed: %dx%d -> %dx%d", grid.Rows, grid.Cols, got.Grid.Rows, got.Grid.Cols)
	}
	for i := range grid.Data {
		want, have := grid.Data[i], got.Grid.Data[i]
		if math.IsNaN(want) {
			if !math.IsNaN(have) {
				t.Errorf("cell %d: expected NaN, got %f", i, have)
			}
			continue
		}
		if math.Abs(want-have) > 1e-9 {
			t.Errorf("cell %d: expected %f, got %f", i, want, have)
		}
	}

	if math.Abs(got.Ref.X0-100.5) > 1e-9 || math.Abs(got.Ref.Y0-202.5) > 1e-9 {
		t.Errorf("georeference changed: X0=%f Y0=%f", got.Ref.X0, got.Ref.Y0)
	}
	if got.Ref.XRes != 1 || got.Ref.YRes != -1 {
		t.Errorf("resolution changed: %f, %f", got.Ref.XRes, got.Ref.YRes)
	}
	if got.NoData != -9999 {
		t.Errorf("no-data sentinel changed: %f", got.NoData)
	}
}

func TestReadHeaderVariants(t *testing.T) {
	content := "NCOLS 2\nNROWS 2\nXLLCENTER 10\nYLLCENTER 20\nCELLSIZE 2\nNODATA_value -1\n1 2\n-1 4\n"
	path := filepath.Join(t.TempDir(), "variant.asc")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	ra, err := ReadASCII(path)
	if err != nil {
		t.Fatalf("ReadASCII failed: %v", err)
	}
	// xllcenter already references the cell center of the bottom-left
	// cell: X0 equals it, Y0 is one cell north of it.
	if ra.Ref.X0 != 10 || ra.Ref.Y0 != 22 {
		t.Errorf("center-referenced header: X0=%f Y0=%f, expected 10, 22", ra.Ref.X0, ra.Ref.Y0)
	}

	ra.ApplyNoData(ra.NoData)
	if !math.IsNaN(ra.Grid.At(1, 0)) {
		t.Errorf("no-data cell not converted: %f", ra.Grid.At(1, 0))
	}
	if ra.Grid.At(0, 1) != 2 {
		t.Errorf("cell (0,1): expected 2, got %f", ra.Grid.At(0, 1))
	}
}

func TestReadTruncatedFile(t *testing.T) {
	content := "ncols 3\nnrows 3\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3 4\n"
	path := filepath.Join(t.TempDir(), "short.asc")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadASCII(path); err == nil {
		t.Errorf("expected error for truncated raster")
	}
}

func TestApplyMask(t *testing.T) {
	dem := models.NewGrid(2, 2)
	copy(dem.Data, []float64{1, 2, 3, 4})
	mask := models.NewGrid(2, 2)
	copy(mask.Data, []float64{0, 1, 0, 0.5})

	if err := ApplyMask(dem, mask); err != nil {
		t.Fatalf("ApplyMask failed: %v", err)
	}
	if !math.IsNaN(dem.Data[1]) || !math.IsNaN(dem.Data[3]) {
		t.Errorf("positive mask cells not invalidated: %v", dem.Data)
	}
	if dem.Data[0] != 1 || dem.Data[2] != 3 {
		t.Errorf("unmasked cells changed: %v", dem.Data)
	}

	bad := models.NewGrid(3, 2)
	if err := ApplyMask(dem, bad); err == nil {
		t.Errorf("expected shape mismatch error")
	}
}

func TestFilterResiduals(t *testing.T) {
	master := models.NewGrid(1, 4)
	copy(master.Data, []float64{100, 100, 100, math.NaN()})
	slave := models.NewGrid(1, 4)
	copy(slave.Data, []float64{101, 180, 100, 100})

	if err := FilterResiduals(master, slave, 50); err != nil {
		t.Fatalf("FilterResiduals failed: %v", err)
	}
	if !math.IsNaN(master.Data[1]) {
		t.Errorf("gross outlier not removed")
	}
	if master.Data[0] != 100 || master.Data[2] != 100 {
		t.Errorf("inlier cells changed: %v", master.Data)
	}
	if !math.IsNaN(master.Data[3]) {
		t.Errorf("NaN master cell should stay NaN")
	}
}
