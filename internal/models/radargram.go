// Package models defines the canonical in-memory representation of a GPR
// acquisition. Every pipeline stage (decoding, geolocation, filtering,
// merging, export) consumes and produces the Radargram defined here.
package models

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// DefaultMediumVelocity is the assumed radar wave velocity in m/ns when the
// caller gives none. It is the typical velocity of glacier ice.
const DefaultMediumVelocity = 0.168

// Position is a single survey coordinate in the Radargram's declared CRS.
// Z holds the antenna elevation; it is zero until a .cor file or a DEM
// provides one.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// FilterRecord is one entry in the append-only processing log. The resolved
// parameters (defaults merged with user overrides) are stored, not the raw
// user input, so the log fully reproduces the processing.
type FilterRecord struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// Radargram is the full 2-D collection of traces for one acquisition plus
// per-trace and survey-wide metadata.
//
// The amplitude matrix is stored with one row per trace and one column per
// vertical sample. Amplitudes are normalized to [-1, 1] by the decoder's
// per-format scale factor.
//
// Invariants (checked by Validate):
//   - Data is non-empty and every trace has the same sample count
//   - Timestamps has one entry per trace and is non-decreasing
//   - Positions is either nil or has one entry per trace
//   - Distance is either nil or has one entry per trace
type Radargram struct {
	// Data holds amplitudes, rows = traces, cols = samples.
	Data *mat.Dense

	// SampleInterval is the time between vertical samples in nanoseconds.
	SampleInterval float64

	// TimeZero is the two-way travel time (ns) that has been trimmed off
	// the top of every trace by a time-zero correction. Zero until such a
	// filter runs.
	TimeZero float64

	// Positions holds one coordinate per trace in the CRS named by CRS.
	// nil means the Radargram is not geolocated.
	Positions []Position

	// Distance is the cumulative along-line distance per trace in meters.
	Distance []float64

	// Timestamps holds the acquisition time of each trace.
	Timestamps []time.Time

	// CRS identifies the coordinate system of Positions, e.g. "EPSG:4326".
	// Empty until a decoder or the geolocator assigns one.
	CRS string

	// Provenance metadata, carried through the pipeline unchanged.
	Instrument        string
	SourceFile        string
	AntennaSeparation float64 // meters
	AntennaFrequency  float64 // MHz
	StackingCount     int

	// MediumVelocity is the assumed wave velocity in m/ns. Defaults to
	// 0.168 (glacier ice) and is only used by geometry-aware filters.
	MediumVelocity float64

	// AppliedFilters is the ordered log of filters actually applied.
	AppliedFilters []FilterRecord
}

// NumTraces returns the number of traces (matrix rows).
func (r *Radargram) NumTraces() int {
	if r.Data == nil {
		return 0
	}
	n, _ := r.Data.Dims()
	return n
}

// NumSamples returns the number of vertical samples per trace (matrix cols).
func (r *Radargram) NumSamples() int {
	if r.Data == nil {
		return 0
	}
	_, n := r.Data.Dims()
	return n
}

// Geolocated reports whether every trace carries a coordinate.
func (r *Radargram) Geolocated() bool {
	return len(r.Positions) == r.NumTraces() && r.NumTraces() > 0
}

// TimeWindow returns the recorded two-way travel time span in nanoseconds.
func (r *Radargram) TimeWindow() float64 {
	return float64(r.NumSamples()) * r.SampleInterval
}

// HasFilter reports whether the processing log already contains name.
func (r *Radargram) HasFilter(name string) bool {
	for _, rec := range r.AppliedFilters {
		if rec.Name == name {
			return true
		}
	}
	return false
}

// LogFilter appends a record to the processing log.
func (r *Radargram) LogFilter(name string, params map[string]float64) {
	var copied map[string]float64
	if len(params) > 0 {
		copied = make(map[string]float64, len(params))
		for k, v := range params {
			copied[k] = v
		}
	}
	r.AppliedFilters = append(r.AppliedFilters, FilterRecord{Name: name, Params: copied})
}

// Clone returns a deep copy. The filter pipeline clones before every step so
// a failing filter can surface the last-valid state.
func (r *Radargram) Clone() *Radargram {
	c := *r
	if r.Data != nil {
		c.Data = mat.DenseCopyOf(r.Data)
	}
	if r.Positions != nil {
		c.Positions = append([]Position(nil), r.Positions...)
	}
	if r.Distance != nil {
		c.Distance = append([]float64(nil), r.Distance...)
	}
	if r.Timestamps != nil {
		c.Timestamps = append([]time.Time(nil), r.Timestamps...)
	}
	if r.AppliedFilters != nil {
		c.AppliedFilters = make([]FilterRecord, len(r.AppliedFilters))
		for i, rec := range r.AppliedFilters {
			c.AppliedFilters[i] = FilterRecord{Name: rec.Name}
			if rec.Params != nil {
				p := make(map[string]float64, len(rec.Params))
				for k, v := range rec.Params {
					p[k] = v
				}
				c.AppliedFilters[i].Params = p
			}
		}
	}
	return &c
}

// Validate checks the structural invariants that must hold at every pipeline
// stage boundary.
func (r *Radargram) Validate() error {
	n := r.NumTraces()
	if n == 0 || r.NumSamples() == 0 {
		return fmt.Errorf("radargram %q has no trace data", r.SourceFile)
	}
	if r.SampleInterval <= 0 {
		return fmt.Errorf("radargram %q has non-positive sample interval %g", r.SourceFile, r.SampleInterval)
	}
	if len(r.Timestamps) != n {
		return fmt.Errorf("radargram %q has %d timestamps for %d traces", r.SourceFile, len(r.Timestamps), n)
	}
	for i := 1; i < n; i++ {
		if r.Timestamps[i].Before(r.Timestamps[i-1]) {
			return fmt.Errorf("radargram %q timestamps decrease at trace %d", r.SourceFile, i)
		}
	}
	if r.Positions != nil && len(r.Positions) != n {
		return fmt.Errorf("radargram %q has %d positions for %d traces (partial geolocation)", r.SourceFile, len(r.Positions), n)
	}
	if r.Positions != nil && r.CRS == "" {
		return fmt.Errorf("radargram %q has positions but no CRS", r.SourceFile)
	}
	if r.Distance != nil && len(r.Distance) != n {
		return fmt.Errorf("radargram %q has %d distances for %d traces", r.SourceFile, len(r.Distance), n)
	}
	return nil
}

// StartTime returns the timestamp of the first trace.
func (r *Radargram) StartTime() time.Time {
	if len(r.Timestamps) == 0 {
		return time.Time{}
	}
	return r.Timestamps[0]
}

// EndTime returns the timestamp of the last trace.
func (r *Radargram) EndTime() time.Time {
	if len(r.Timestamps) == 0 {
		return time.Time{}
	}
	return r.Timestamps[len(r.Timestamps)-1]
}
