package geoloc

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// demPoint is one terrain sample. X and Y are horizontal coordinates in the
// DEM's CRS, Elevation the terrain height at that point.
type demPoint struct {
	X, Y      float64
	Elevation float64
}

// Compare implements the kdtree.Comparable interface.
func (p demPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(demPoint)
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
func (p demPoint) Dims() int { return 2 }

// Distance returns the squared horizontal distance between two points.
func (p demPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(demPoint)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// demPoints is a collection of demPoint that satisfies kdtree.Interface.
type demPoints []demPoint

func (p demPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p demPoints) Len() int                              { return len(p) }
func (p demPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method.
func (p demPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(demPlane{demPoints: p, Dim: d}, kdtree.MedianOfRandoms(demPlane{demPoints: p, Dim: d}, 100))
}

// demPlane implements sort.Interface and kdtree.SortSlicer for demPoints.
type demPlane struct {
	demPoints
	kdtree.Dim
}

func (p demPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.demPoints[i].X < p.demPoints[j].X
	case 1:
		return p.demPoints[i].Y < p.demPoints[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p demPlane) Slice(start, end int) kdtree.SortSlicer {
	return demPlane{demPoints: p.demPoints[start:end], Dim: p.Dim}
}

func (p demPlane) Swap(i, j int) {
	p.demPoints[i], p.demPoints[j] = p.demPoints[j], p.demPoints[i]
}

// DEM is a scattered-point terrain model backed by a KD-tree. Lookups return
// the elevation of the nearest terrain sample; a query farther than
// MaxDistance from every sample is out of coverage.
//
// The model is read-only after construction and safe to share across the
// parallel per-file pipelines.
type DEM struct {
	tree *kdtree.Tree

	// MaxDistance is the horizontal search radius in CRS units.
	MaxDistance float64

	// CRS identifies the coordinate system of the terrain samples.
	CRS string
}

// DefaultDEMMaxDistance is the search radius when the caller gives none,
// in CRS units (meters for projected systems).
const DefaultDEMMaxDistance = 50.0

// LoadDEM reads a whitespace-separated "x y elevation" point file, one
// sample per line. Blank lines and lines starting with '#' are skipped.
func LoadDEM(path, crs string, maxDistance float64) (*DEM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening DEM: %w", err)
	}
	defer f.Close()

	var points demPoints
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("DEM %s line %d: want \"x y elevation\", got %q", path, lineNo, line)
		}
		var p demPoint
		if p.X, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return nil, fmt.Errorf("DEM %s line %d: bad x %q", path, lineNo, fields[0])
		}
		if p.Y, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("DEM %s line %d: bad y %q", path, lineNo, fields[1])
		}
		if p.Elevation, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("DEM %s line %d: bad elevation %q", path, lineNo, fields[2])
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading DEM: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("DEM %s contains no terrain samples", path)
	}

	if maxDistance <= 0 {
		maxDistance = DefaultDEMMaxDistance
	}
	return &DEM{
		tree:        kdtree.New(points, true),
		MaxDistance: maxDistance,
		CRS:         crs,
	}, nil
}

// Sample returns the terrain elevation nearest to (x, y). Queries beyond
// MaxDistance of every sample fail with GeoError{OutOfBounds}.
func (d *DEM) Sample(x, y float64) (float64, error) {
	nearest, dist2 := d.tree.Nearest(demPoint{X: x, Y: y})
	if nearest == nil || dist2 > d.MaxDistance*d.MaxDistance {
		return 0, &GeoError{Kind: OutOfBounds, Trace: -1,
			Detail: fmt.Sprintf("no terrain sample within %g of (%g, %g)", d.MaxDistance, x, y)}
	}
	return nearest.(demPoint).Elevation, nil
}
