package filters

import (
	"errors"

	"gprproc/internal/models"
)

// Step is one invocation in a filter chain: a registered filter name plus
// parameter overrides.
type Step struct {
	Name   string `yaml:"name"`
	Params Params `yaml:"params,omitempty"`
}

// Run applies steps to rg strictly in order. Filters may couple traces, so
// steps are never reordered or parallelized against each other.
//
// On success the returned Radargram carries every step in its processing
// log. On failure Run stops at the offending step and returns the last-valid
// Radargram (all prior steps applied, the failing one absent) together with
// the error, so partial results stay inspectable without being silently
// exported. The input rg is never mutated.
func Run(rg *models.Radargram, steps []Step) (*models.Radargram, error) {
	current := rg
	for i, step := range steps {
		next, err := applyStep(current, step)
		if err != nil {
			var fe *FilterError
			if errors.As(err, &fe) {
				fe.Filter = step.Name
				fe.Index = i
			}
			if current == rg {
				// Nothing applied yet; hand back a clone so the
				// caller may mutate the result freely.
				current = rg.Clone()
			}
			return current, err
		}
		current = next
	}
	if current == rg {
		current = rg.Clone()
	}
	return current, nil
}

// applyStep checks preconditions, clones, applies and logs a single step.
func applyStep(rg *models.Radargram, step Step) (*models.Radargram, error) {
	f, ok := Lookup(step.Name)
	if !ok {
		return nil, failf(UnknownFilter, "not in the filter registry")
	}

	if !f.Repeatable && rg.HasFilter(f.Name) {
		return nil, failf(AlreadyApplied, "filter may not repeat")
	}
	if f.NeedsDistance && rg.Distance == nil {
		return nil, failf(PreconditionUnmet, "radargram has no along-line distance axis")
	}
	if f.NeedsElevation && !rg.Geolocated() {
		return nil, failf(PreconditionUnmet, "radargram is not geolocated")
	}

	resolved, err := f.resolve(step.Params)
	if err != nil {
		return nil, err
	}

	next := rg.Clone()
	if err := f.Apply(next, resolved); err != nil {
		return nil, err
	}
	next.LogFilter(f.Name, resolved)

	if err := next.Validate(); err != nil {
		return nil, &FilterError{Kind: NumericInstability, Index: -1,
			Detail: "filter output violates radargram invariants", Err: err}
	}
	return next, nil
}
