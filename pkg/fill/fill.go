// Package fill closes small no-data voids in a DEM by inverse-distance
// weighting over the nearest valid samples. Elevation voids from sensor
// dropouts otherwise punch matching holes in slope, aspect and the
// difference grid, shrinking the sample set the shift estimate works
// with; filling the small ones before co-registration keeps more stable
// terrain in play. Large voids are left alone, since inventing terrain
// across them would do more harm than the missing samples.
package fill

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"demcoreg/internal/models"
)

// Options tunes the void filling.
type Options struct {
	// Neighbors is the number of nearest valid samples blended into
	// each filled cell.
	Neighbors int

	// MaxDistance is the farthest, in cell units, a contributing
	// sample may lie. Void cells with no valid sample inside this
	// radius stay NaN.
	MaxDistance float64

	// Power is the inverse-distance weighting exponent.
	Power float64
}

// DefaultOptions fills only tight voids from their immediate rim.
func DefaultOptions() Options {
	return Options{Neighbors: 8, MaxDistance: 4, Power: 2}
}

// samplePoint is one valid DEM cell positioned in cell coordinates.
type samplePoint struct {
	X, Y, Z float64
}

// Compare implements the kdtree.Comparable interface.
func (p samplePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(samplePoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree.
func (p samplePoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points.
func (p samplePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(samplePoint)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// samplePoints is a collection of samplePoint satisfying kdtree.Interface.
type samplePoints []samplePoint

func (p samplePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p samplePoints) Len() int                              { return len(p) }
func (p samplePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p samplePoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(samplePlane{samplePoints: p, Dim: d},
		kdtree.MedianOfRandoms(samplePlane{samplePoints: p, Dim: d}, 100))
}

// samplePlane implements sort.Interface and kdtree.SortSlicer for samplePoints.
type samplePlane struct {
	samplePoints
	kdtree.Dim
}

func (p samplePlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.samplePoints[i].X < p.samplePoints[j].X
	case 1:
		return p.samplePoints[i].Y < p.samplePoints[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p samplePlane) Slice(start, end int) kdtree.SortSlicer {
	return samplePlane{samplePoints: p.samplePoints[start:end], Dim: p.Dim}
}

func (p samplePlane) Swap(i, j int) {
	p.samplePoints[i], p.samplePoints[j] = p.samplePoints[j], p.samplePoints[i]
}

// Voids fills no-data cells of the DEM in place and returns how many
// cells were filled. Cells beyond MaxDistance of any valid sample are
// untouched.
func Voids(dem *models.Grid, opts Options) int {
	if opts.Neighbors < 1 || opts.MaxDistance <= 0 {
		return 0
	}

	valid := make(samplePoints, 0, len(dem.Data))
	var voids []int
	for i, v := range dem.Data {
		if math.IsNaN(v) {
			voids = append(voids, i)
			continue
		}
		valid = append(valid, samplePoint{
			X: float64(i % dem.Cols),
			Y: float64(i / dem.Cols),
			Z: v,
		})
	}
	if len(valid) == 0 || len(voids) == 0 {
		return 0
	}

	tree := kdtree.New(valid, false)
	maxSq := opts.MaxDistance * opts.MaxDistance
	filled := 0
	for _, idx := range voids {
		q := samplePoint{X: float64(idx % dem.Cols), Y: float64(idx / dem.Cols)}
		keeper := kdtree.NewNKeeper(opts.Neighbors)
		tree.NearestSet(keeper, q)

		var num, den float64
		for _, cd := range keeper.Heap {
			if cd.Comparable == nil || cd.Dist > maxSq {
				continue
			}
			p := cd.Comparable.(samplePoint)
			d := math.Sqrt(cd.Dist)
			if d == 0 {
				num, den = p.Z, 1
				break
			}
			w := 1 / math.Pow(d, opts.Power)
			num += w * p.Z
			den += w
		}
		if den > 0 {
			dem.Data[idx] = num / den
			filled++
		}
	}
	return filled
}
