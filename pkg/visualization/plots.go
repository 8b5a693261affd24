// Package visualization renders the diagnostic data produced by the
// alignment engine to PNG files. It is strictly a consumer: the
// estimator returns its bin series and fit curve as plain data, and
// nothing in the numeric core ever calls back into plotting.
package visualization

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"demcoreg/internal/models"
	"demcoreg/pkg/coreg"
)

// AspectFit plots one iteration's aspect-bin medians against the
// fitted sinusoid, the central diagnostic of the Nuth & Kääb method.
func AspectFit(diag *coreg.ShiftDiagnostics, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Terrain aspect (rad)"
	p.Y.Label.Text = "dh / slope (px)"

	var pts plotter.XYs
	for i, m := range diag.BinMedians {
		if math.IsNaN(m) {
			continue
		}
		pts = append(pts, plotter.XY{X: diag.BinCenters[i], Y: m})
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("aspect fit scatter: %w", err)
	}

	var curve plotter.XYs
	for i, y := range diag.FitCurve {
		curve = append(curve, plotter.XY{X: diag.BinCenters[i], Y: y})
	}
	line, err := plotter.NewLine(curve)
	if err != nil {
		return fmt.Errorf("aspect fit line: %w", err)
	}

	p.Add(scatter, line)
	p.Legend.Add("bin medians", scatter)
	p.Legend.Add("fitted", line)
	return save(p, path)
}

// DifferenceHistogram plots the distribution of finite difference
// values within +/-limit.
func DifferenceHistogram(diff *models.Grid, limit float64, path string) error {
	var vals plotter.Values
	for _, v := range coreg.FiniteValues(diff) {
		if math.Abs(v) <= limit {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return fmt.Errorf("difference histogram: no finite values within %g", limit)
	}
	h, err := plotter.NewHist(vals, 50)
	if err != nil {
		return fmt.Errorf("difference histogram: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Elevation difference"
	p.X.Label.Text = "dh (m)"
	p.Add(h)
	return save(p, path)
}

// DifferenceMap renders the difference grid as a heat map clipped to
// +/-limit, the usual before/after view of a co-registration run.
func DifferenceMap(diff *models.Grid, limit float64, title, path string) error {
	pal := moreland.SmoothBlueRed().Palette(255)
	hm := plotter.NewHeatMap(gridXYZ{g: diff, limit: limit}, pal)
	hm.Min = -limit
	hm.Max = limit

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "column"
	p.Y.Label.Text = "row"
	p.Add(hm)
	return save(p, path)
}

// gridXYZ adapts a Grid to plotter.GridXYZ. Row 0 is the north edge,
// so Y is flipped to keep north up in the rendered image.
type gridXYZ struct {
	g     *models.Grid
	limit float64
}

func (g gridXYZ) Dims() (c, r int) { return g.g.Cols, g.g.Rows }
func (g gridXYZ) X(c int) float64  { return float64(c) }
func (g gridXYZ) Y(r int) float64  { return float64(r) }

func (g gridXYZ) Z(c, r int) float64 {
	v := g.g.At(g.g.Rows-1-r, c)
	if v > g.limit {
		return g.limit
	}
	if v < -g.limit {
		return -g.limit
	}
	return v
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create plot directory: %w", err)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
