package decoder

import (
	"errors"
	"fmt"
)

// Kind classifies decoding failures. Every failure is unrecoverable for the
// affected file; batch callers report it and move on.
type Kind int

const (
	// InvalidHeader means the header file is missing required fields or
	// does not carry the format's marker.
	InvalidHeader Kind = iota + 1

	// TruncatedData means the trace block length is not an exact multiple
	// of the declared trace record length.
	TruncatedData

	// MissingTiming means neither per-trace time fields nor a header
	// start-time/trace-interval pair are available.
	MissingTiming

	// UnsupportedVariant means the file extension maps to no known
	// instrument format.
	UnsupportedVariant
)

func (k Kind) String() string {
	switch k {
	case InvalidHeader:
		return "invalid header"
	case TruncatedData:
		return "truncated data"
	case MissingTiming:
		return "missing timing"
	case UnsupportedVariant:
		return "unsupported format variant"
	}
	return "unknown"
}

// FormatError describes why a file could not be decoded. File identifies the
// offending input so batch runs can attribute per-file failures.
type FormatError struct {
	Kind   Kind
	File   string
	Detail string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.File, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// errf builds a FormatError with a formatted detail message.
func errf(kind Kind, file, format string, args ...any) *FormatError {
	return &FormatError{Kind: kind, File: file, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or 0 if err is not a FormatError.
func KindOf(err error) Kind {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
