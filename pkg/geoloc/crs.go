package geoloc

import (
	"strconv"
	"strings"

	"github.com/wroge/wgs84"
)

// Transformer converts coordinates between two coordinate reference systems.
// The default implementation delegates to the wgs84 geodesy library; tests
// may substitute their own.
type Transformer interface {
	// Transform converts a single (x, y, z) coordinate.
	Transform(x, y, z float64) (float64, float64, float64)
}

// epsgTransform wraps a wgs84 transformation function.
type epsgTransform struct {
	f wgs84.Func
}

func (t epsgTransform) Transform(x, y, z float64) (float64, float64, float64) {
	return t.f(x, y, z)
}

// NewEPSGTransformer resolves a transformation between two "EPSG:nnnn"
// identifiers. An unresolvable code yields GeoError{UnsupportedCrs}.
func NewEPSGTransformer(sourceCRS, targetCRS string) (Transformer, error) {
	from, err := resolveEPSG(sourceCRS)
	if err != nil {
		return nil, err
	}
	to, err := resolveEPSG(targetCRS)
	if err != nil {
		return nil, err
	}
	return epsgTransform{f: wgs84.Transform(from, to)}, nil
}

// resolveEPSG parses an "EPSG:nnnn" identifier and looks the code up in the
// wgs84 EPSG repository.
func resolveEPSG(crs string) (wgs84.CoordinateReferenceSystem, error) {
	name, code, ok := strings.Cut(crs, ":")
	if !ok || !strings.EqualFold(name, "EPSG") {
		return nil, &GeoError{Kind: UnsupportedCrs, CRS: crs, Trace: -1, Detail: "want an EPSG:nnnn identifier"}
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return nil, &GeoError{Kind: UnsupportedCrs, CRS: crs, Trace: -1, Detail: "non-numeric code"}
	}
	system := wgs84.EPSG().Code(n)
	if system == nil {
		return nil, &GeoError{Kind: UnsupportedCrs, CRS: crs, Trace: -1, Detail: "code not in EPSG repository"}
	}
	return system, nil
}
