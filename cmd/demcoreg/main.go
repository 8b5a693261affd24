package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"demcoreg/internal/models"
	"demcoreg/pkg/config"
	"demcoreg/pkg/coreg"
	"demcoreg/pkg/fill"
	"demcoreg/pkg/raster"
	"demcoreg/pkg/terrain"
	"demcoreg/pkg/visualization"
)

func main() {
	// Parse command line arguments
	masterPath := flag.String("master", "", "Path to the master DEM (ESRI ASCII grid)")
	slavePath := flag.String("slave", "", "Path to the slave DEM to co-register")
	outPath := flag.String("out", "coregistered.asc", "Output path for the co-registered DEM")
	configPath := flag.String("config", "config.yaml", "Path to a YAML configuration file")
	iterations := flag.Int("iter", 0, "Number of iterations (default from config: 5)")
	maskPath := flag.String("m", "", "Path to a mask raster; cells with mask>0 are excluded (e.g. glaciers)")
	nodata1 := flag.Float64("n1", math.NaN(), "No-data value for the master DEM (default: read from file)")
	nodata2 := flag.Float64("n2", math.NaN(), "No-data value for the slave DEM (default: read from file)")
	zmax := flag.Float64("zmax", math.NaN(), "Mask cells above this altitude during deramping (e.g. snow)")
	zmin := flag.Float64("zmin", math.NaN(), "Mask cells below this altitude during deramping (e.g. sea)")
	resMax := flag.Float64("resmax", math.NaN(), "Discard cells where |dh| exceeds this value before estimation")
	doPlot := flag.Bool("plot", false, "Write diagnostic plots of the processing steps")
	doFill := flag.Bool("fill", false, "Fill small no-data voids before co-registration")
	cores := flag.Int("cores", 0, "Number of CPU cores for resampling (default: all available)")
	flag.Parse()

	if *masterPath == "" || *slavePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *iterations > 0 {
		cfg.Coregistration.Iterations = *iterations
	}
	if *cores > 0 {
		cfg.Coregistration.Cores = *cores
	}
	if !math.IsNaN(*zmax) {
		cfg.Masking.ZMax = *zmax
	}
	if !math.IsNaN(*zmin) {
		cfg.Masking.ZMin = *zmin
	}
	if !math.IsNaN(*resMax) {
		cfg.Masking.ResMax = *resMax
	}
	if *doFill {
		cfg.Fill.Enabled = true
	}

	fmt.Println("================================")
	fmt.Println("FINE CO-REGISTRATION OF TWO DEMS BY TERRAIN-ASPECT CORRELATION")
	fmt.Println("Based on the method presented in Nuth & Kääb (2011)")
	fmt.Println("================================")

	// Load the master and slave DEMs and convert their no-data
	// sentinels to NaN. An explicit -n1/-n2 overrides the file header.
	master, err := raster.ReadASCII(*masterPath)
	if err != nil {
		log.Fatalf("Failed to read master DEM: %v", err)
	}
	if !math.IsNaN(*nodata1) {
		master.ApplyNoData(*nodata1)
	} else {
		master.ApplyNoData(master.NoData)
	}

	slave, err := raster.ReadASCII(*slavePath)
	if err != nil {
		log.Fatalf("Failed to read slave DEM: %v", err)
	}
	if !math.IsNaN(*nodata2) {
		slave.ApplyNoData(*nodata2)
	} else {
		slave.ApplyNoData(slave.NoData)
	}

	// The loop assumes both DEMs share the master's sampling geometry;
	// reprojection is an upstream concern, so a mismatch here is fatal.
	if !master.Grid.SameShape(slave.Grid) {
		log.Fatalf("Master (%dx%d) and slave (%dx%d) grids differ in shape; reproject the slave first",
			master.Grid.Rows, master.Grid.Cols, slave.Grid.Rows, slave.Grid.Cols)
	}

	// Exclude unstable terrain such as glacier surfaces.
	if *maskPath != "" {
		mask, err := raster.ReadASCII(*maskPath)
		if err != nil {
			log.Fatalf("Failed to read mask: %v", err)
		}
		if err := raster.ApplyMask(master.Grid, mask.Grid); err != nil {
			log.Fatalf("Failed to apply mask: %v", err)
		}
	}

	// Drop gross outliers before any estimation.
	if !math.IsNaN(cfg.Masking.ResMax) {
		if err := raster.FilterResiduals(master.Grid, slave.Grid, cfg.Masking.ResMax); err != nil {
			log.Fatalf("Failed to filter residuals: %v", err)
		}
	}

	if cfg.Fill.Enabled {
		opts := fill.Options{
			Neighbors:   cfg.Fill.Neighbors,
			MaxDistance: cfg.Fill.MaxDistance,
			Power:       2,
		}
		fmt.Printf("Filled %d void cells in master, %d in slave\n",
			fill.Voids(master.Grid, opts), fill.Voids(slave.Grid, opts))
	}

	diffBefore := slave.Grid.Sub(master.Grid)

	// Iteratively estimate and remove the horizontal shift.
	result, err := coreg.Coregister(master.Grid, slave.Grid, coreg.Options{
		Iterations:         cfg.Coregistration.Iterations,
		Workers:            cfg.Coregistration.Cores,
		Verbose:            cfg.Output.Verbose,
		CollectDiagnostics: *doPlot,
	})
	if err != nil {
		log.Fatalf("Co-registration failed: %v", err)
	}

	// Fit and remove the residual planar ramp over stable, gentle,
	// inlier terrain; the fitted plane is subtracted everywhere.
	fmt.Println("deramping")
	diff := result.Aligned.Sub(master.Grid)
	slopeAngle := terrain.SlopeAngle(master.Grid, master.Ref.XRes)
	masked := coreg.MaskForDeramp(diff, master.Grid, slopeAngle, coreg.DerampMask{
		ZMax: cfg.Masking.ZMax,
		ZMin: cfg.Masking.ZMin,
	})
	x, y := master.Ref.Coordinates(master.Grid.Rows, master.Grid.Cols)
	ramp, err := coreg.FitRamp(masked, x, y)
	if err != nil {
		log.Fatalf("Deramping failed: %v", err)
	}
	trend := ramp.EvalGrid(x, y)
	final := result.Aligned.Clone()
	for i := range final.Data {
		final.Data[i] -= trend.Data[i]
	}

	median, nmad := coreg.DiffStats(final.Sub(master.Grid))
	fmt.Println("Final DEM")
	fmt.Printf("Median : %.2f, NMAD = %.2f\n", median, nmad)

	if *doPlot {
		writePlots(cfg.Output.PlotDir, diffBefore, final.Sub(master.Grid), result)
	}

	out := &raster.Raster{Grid: final, Ref: master.Ref, NoData: master.NoData}
	if err := out.WriteASCII(*outPath); err != nil {
		log.Fatalf("Failed to write output DEM: %v", err)
	}
	fmt.Printf("Co-registered DEM saved to: %s\n", *outPath)
}

// writePlots renders the diagnostic series collected during the run.
// Plot failures are warnings: the numerical result is already safe.
func writePlots(dir string, before, after *models.Grid, result *coreg.Result) {
	limit := 3 * result.Initial.NMAD
	if limit == 0 || math.IsNaN(limit) {
		limit = 1
	}
	if err := visualization.DifferenceMap(before, limit, "dh before", filepath.Join(dir, "dh_before.png")); err != nil {
		log.Printf("Warning: %v", err)
	}
	if err := visualization.DifferenceMap(after, limit, "dh after", filepath.Join(dir, "dh_after.png")); err != nil {
		log.Printf("Warning: %v", err)
	}
	if err := visualization.DifferenceHistogram(after, limit, filepath.Join(dir, "dh_hist.png")); err != nil {
		log.Printf("Warning: %v", err)
	}
	for i, diag := range result.Diagnostics {
		name := filepath.Join(dir, fmt.Sprintf("aspect_fit_%02d.png", i+1))
		title := fmt.Sprintf("Aspect correlation, iteration %d", i+1)
		if err := visualization.AspectFit(diag, title, name); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
}
