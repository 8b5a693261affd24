package coreg

import (
	"math"
	"testing"

	"demcoreg/internal/models"
)

func TestMedian(t *testing.T) {
	cases := []struct {
		name string
		in   []float64
		want float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{7}, 7},
		{"negative", []float64{-5, -1, -3}, -3},
	}
	for _, tc := range cases {
		if got := Median(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("%s: Median(%v) = %f, expected %f", tc.name, tc.in, got, tc.want)
		}
	}

	if got := Median(nil); !math.IsNaN(got) {
		t.Errorf("Median of empty input: expected NaN, got %f", got)
	}
}

func TestPercentileLinearInterpolation(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	cases := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{25, 2},
		{50, 3},
		{90, 4.6},
		{100, 5},
	}
	for _, tc := range cases {
		if got := Percentile(xs, tc.p); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Percentile(%v, %g) = %f, expected %f", xs, tc.p, got, tc.want)
		}
	}

	// Input order must not matter and the input must not be modified.
	shuffled := []float64{5, 1, 4, 2, 3}
	if got := Percentile(shuffled, 50); got != 3 {
		t.Errorf("Percentile of shuffled input: expected 3, got %f", got)
	}
	if shuffled[0] != 5 {
		t.Errorf("Percentile modified its input: %v", shuffled)
	}
}

func TestNMAD(t *testing.T) {
	// Median 3, absolute deviations {2,1,0,1,2}, MAD 1.
	xs := []float64{1, 2, 3, 4, 5}
	want := 1.4826
	if got := NMAD(xs); math.Abs(got-want) > 1e-12 {
		t.Errorf("NMAD(%v) = %f, expected %f", xs, got, want)
	}

	// Constant data has zero spread.
	if got := NMAD([]float64{2, 2, 2}); got != 0 {
		t.Errorf("NMAD of constant data: expected 0, got %f", got)
	}

	if got := NMAD(nil); !math.IsNaN(got) {
		t.Errorf("NMAD of empty input: expected NaN, got %f", got)
	}
}

func TestNMADResistsOutliers(t *testing.T) {
	base := make([]float64, 100)
	for i := range base {
		base[i] = float64(i%10) - 5
	}
	clean := NMAD(base)

	polluted := append([]float64{}, base...)
	polluted[0] = 1e6
	if got := NMAD(polluted); math.Abs(got-clean) > 0.5 {
		t.Errorf("NMAD moved from %f to %f after one extreme outlier", clean, got)
	}
}

func TestFiniteValuesAndDiffStats(t *testing.T) {
	g := models.NewGrid(2, 3)
	copy(g.Data, []float64{1, math.NaN(), 3, math.Inf(1), 5, 7})

	finite := FiniteValues(g)
	if len(finite) != 4 {
		t.Fatalf("FiniteValues: expected 4 values, got %d (%v)", len(finite), finite)
	}

	med, nmad := DiffStats(g)
	if math.Abs(med-4) > 1e-12 {
		t.Errorf("DiffStats median: expected 4, got %f", med)
	}
	if math.IsNaN(nmad) {
		t.Errorf("DiffStats NMAD: expected finite value, got NaN")
	}

	empty := models.NewGridNaN(2, 2)
	med, nmad = DiffStats(empty)
	if !math.IsNaN(med) || !math.IsNaN(nmad) {
		t.Errorf("DiffStats of all-NaN grid: expected NaN pair, got (%f, %f)", med, nmad)
	}
}
