// Package filters implements the ordered signal-processing pipeline that
// turns raw radargrams into interpretable profiles. Each filter is a named,
// parameterized transform looked up from a registry; profiles are plain
// ordered lists of such steps, so custom chains need no new code.
package filters

import (
	"sort"

	"gprproc/internal/models"
)

// Params is a filter's parameter bag. The registry entry's Defaults define
// the allowed keys; user values override defaults key by key.
type Params map[string]float64

// Filter describes one registered transform: its parameter schema, the
// preconditions the pipeline checks before invoking it, and the function
// that mutates the Radargram.
type Filter struct {
	Name        string
	Description string

	// Defaults holds every accepted parameter with its default value.
	Defaults Params

	// ParamOrder lists the parameter names in signature order, for binding
	// positional step arguments like "bandpass(50, 200)". Must cover every
	// key in Defaults.
	ParamOrder []string

	// Repeatable filters may appear more than once in a processing log.
	Repeatable bool

	// NeedsDistance requires a populated along-line distance axis.
	NeedsDistance bool

	// NeedsElevation requires geolocated traces with elevation values.
	NeedsElevation bool

	// Apply mutates rg in place. The pipeline hands it a clone, so a
	// failing Apply never corrupts the caller's Radargram.
	Apply func(rg *models.Radargram, p Params) error
}

var registry = buildRegistry()

func buildRegistry() map[string]*Filter {
	m := make(map[string]*Filter)
	for _, f := range []*Filter{
		dewowFilter(),
		zeroCorrMaxPeakFilter(),
		antennaSeparationFilter(),
		equidistantTracesFilter(),
		normalizeHorizontalFilter(),
		autoGainFilter(),
		gainFilter(),
		bandpassFilter(),
		averageTracesFilter(),
		abslogFilter(),
		siglogFilter(),
		topographyFilter(),
	} {
		m[f.Name] = f
	}
	return m
}

// Lookup resolves a filter by name.
func Lookup(name string) (*Filter, bool) {
	f, ok := registry[name]
	return f, ok
}

// All returns every registered filter sorted by name, for help listings.
func All() []*Filter {
	out := make([]*Filter, 0, len(registry))
	for _, f := range registry {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// resolve merges user parameters over the filter's defaults, rejecting keys
// the filter does not declare.
func (f *Filter) resolve(user Params) (Params, error) {
	resolved := make(Params, len(f.Defaults))
	for k, v := range f.Defaults {
		resolved[k] = v
	}
	for k, v := range user {
		if _, ok := f.Defaults[k]; !ok {
			return nil, failf(PreconditionUnmet, "unknown parameter %q", k)
		}
		resolved[k] = v
	}
	return resolved, nil
}
