package geoloc

import (
	"errors"
	"fmt"
)

// Kind classifies geolocation failures.
type Kind int

const (
	// UnsupportedCrs means the source or target EPSG code could not be
	// resolved; geolocation of the whole file aborts.
	UnsupportedCrs Kind = iota + 1

	// OutOfBounds means a DEM lookup found no terrain sample near one
	// trace. It is scoped to that trace; the operation continues.
	OutOfBounds
)

func (k Kind) String() string {
	switch k {
	case UnsupportedCrs:
		return "unsupported CRS"
	case OutOfBounds:
		return "out of DEM coverage"
	}
	return "unknown"
}

// GeoError describes a geolocation failure. Trace is -1 unless the failure
// is scoped to a single trace.
type GeoError struct {
	Kind   Kind
	CRS    string
	Trace  int
	Detail string
}

func (e *GeoError) Error() string {
	msg := e.Kind.String()
	if e.CRS != "" {
		msg += " " + e.CRS
	}
	if e.Trace >= 0 {
		msg += fmt.Sprintf(" (trace %d)", e.Trace)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// KindOf extracts the Kind from err, or 0 if err is not a GeoError.
func KindOf(err error) Kind {
	var ge *GeoError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}
