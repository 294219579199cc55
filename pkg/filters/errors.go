package filters

import (
	"errors"
	"fmt"
)

// Kind classifies filter pipeline failures.
type Kind int

const (
	// UnknownFilter means the step name resolves to no registered filter.
	UnknownFilter Kind = iota + 1

	// PreconditionUnmet means the Radargram does not satisfy a filter's
	// declared requirements (missing distance axis, bad parameter, ...).
	PreconditionUnmet

	// AlreadyApplied means a non-repeatable filter is already present in
	// the Radargram's processing log.
	AlreadyApplied

	// NumericInstability means the filter's numeric contract failed on
	// this input (degenerate band, all-zero amplitudes, ...).
	NumericInstability
)

func (k Kind) String() string {
	switch k {
	case UnknownFilter:
		return "unknown filter"
	case PreconditionUnmet:
		return "precondition unmet"
	case AlreadyApplied:
		return "already applied"
	case NumericInstability:
		return "numeric instability"
	}
	return "unknown"
}

// FilterError reports why a pipeline aborted. Filter and Index attribute the
// failure to the offending step; the pipeline returns the last-valid
// Radargram alongside it.
type FilterError struct {
	Kind   Kind
	Filter string
	Index  int
	Detail string
	Err    error
}

func (e *FilterError) Error() string {
	msg := fmt.Sprintf("filter %q (step %d): %s", e.Filter, e.Index, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FilterError) Unwrap() error { return e.Err }

// failf builds a FilterError with a formatted detail message. Filter and
// Index are filled in by the pipeline.
func failf(kind Kind, format string, args ...any) *FilterError {
	return &FilterError{Kind: kind, Index: -1, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or 0 if err is not a FilterError.
func KindOf(err error) Kind {
	var fe *FilterError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
