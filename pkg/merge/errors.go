package merge

import (
	"errors"
	"fmt"
)

// Kind classifies merge failures.
type Kind int

const (
	// IncompatibleGeometry means members of a temporal group disagree on
	// trace geometry or processing state and cannot be concatenated.
	IncompatibleGeometry Kind = iota
)

func (k Kind) String() string {
	if k == IncompatibleGeometry {
		return "incompatible geometry"
	}
	return "unknown"
}

// MergeError reports why a group of radargrams could not be merged.
type MergeError struct {
	Kind   Kind
	Member string // source file of the offending member
	Detail string
}

func (e *MergeError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("merge: %s: %s: %s", e.Kind, e.Member, e.Detail)
	}
	return fmt.Sprintf("merge: %s: %s", e.Kind, e.Detail)
}

// KindOf extracts the merge error kind, or -1 for foreign errors.
func KindOf(err error) Kind {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Kind
	}
	return Kind(-1)
}
