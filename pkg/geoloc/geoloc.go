// Package geoloc attaches and reprojects trace coordinates. Reprojection is
// delegated to the wgs84 EPSG repository; terrain heights come from a
// scattered-point DEM queried through a KD-tree.
package geoloc

import (
	"math"

	"gprproc/internal/models"
)

// Locator reprojects a Radargram's positions to a target CRS and optionally
// replaces trace elevations with DEM terrain heights. A Locator is read-only
// after construction and may be shared across parallel pipelines.
type Locator struct {
	// TargetCRS is the "EPSG:nnnn" identifier positions are projected to.
	TargetCRS string

	// DEM is the optional terrain model. Its CRS must equal TargetCRS.
	DEM *DEM

	// NewTransformer builds the CRS transformation. Defaults to
	// NewEPSGTransformer; tests substitute a stub.
	NewTransformer func(sourceCRS, targetCRS string) (Transformer, error)
}

// NewLocator returns a Locator projecting into targetCRS.
func NewLocator(targetCRS string, dem *DEM) *Locator {
	return &Locator{TargetCRS: targetCRS, DEM: dem, NewTransformer: NewEPSGTransformer}
}

// Locate reprojects rg's positions in place and samples terrain heights when
// a DEM is configured.
//
// An ungeolocated Radargram is returned unchanged: downstream stages accept
// trace-index-only data. Reprojecting a Radargram already in the target CRS
// is a no-op, so Locate is idempotent.
//
// DEM lookups that fall outside coverage skip only the affected trace,
// keeping its prior elevation; the per-trace errors are returned after the
// whole pass so the caller can report them without losing the Radargram.
func (l *Locator) Locate(rg *models.Radargram) (traceErrs []error, err error) {
	if !rg.Geolocated() {
		return nil, nil
	}

	if rg.CRS != l.TargetCRS && l.TargetCRS != "" {
		newTransformer := l.NewTransformer
		if newTransformer == nil {
			newTransformer = NewEPSGTransformer
		}
		transformer, err := newTransformer(rg.CRS, l.TargetCRS)
		if err != nil {
			return nil, err
		}
		for i := range rg.Positions {
			p := &rg.Positions[i]
			p.X, p.Y, p.Z = transformer.Transform(p.X, p.Y, p.Z)
		}
		rg.CRS = l.TargetCRS
		rg.Distance = cumulativePlanarDistance(rg.Positions)
	}

	if l.DEM != nil {
		for i := range rg.Positions {
			p := &rg.Positions[i]
			elevation, sampleErr := l.DEM.Sample(p.X, p.Y)
			if sampleErr != nil {
				if ge, ok := sampleErr.(*GeoError); ok {
					ge.Trace = i
				}
				traceErrs = append(traceErrs, sampleErr)
				continue
			}
			p.Z = elevation
		}
	}

	return traceErrs, nil
}

// cumulativePlanarDistance accumulates straight-line distance over projected
// positions. Units follow the CRS (meters for UTM systems).
func cumulativePlanarDistance(positions []models.Position) []float64 {
	dist := make([]float64, len(positions))
	for i := 1; i < len(positions); i++ {
		dx := positions[i].X - positions[i-1].X
		dy := positions[i].Y - positions[i-1].Y
		dist[i] = dist[i-1] + math.Hypot(dx, dy)
	}
	return dist
}
