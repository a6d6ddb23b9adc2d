package forest

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for wire-level mapping; see spec §7.
type Kind string

const (
	KindParentNotFound        Kind = "ParentNotFound"
	KindSourceNotFound        Kind = "SourceNotFound"
	KindTargetNotFound        Kind = "TargetNotFound"
	KindCycleRejected         Kind = "CycleRejected"
	KindDepthExceeded         Kind = "DepthExceeded"
	KindLabelEncoding         Kind = "LabelEncoding"
	KindLabelTooLarge         Kind = "LabelTooLarge"
	KindBulkLoadInvalidOrder  Kind = "BulkLoadInvalidOrder"
	KindForbiddenInProduction Kind = "ForbiddenInProduction"
	KindConflictRetry         Kind = "ConflictRetry"
	KindInternal              Kind = "Internal"
)

// Error is the error type forest operations return for the kinds listed
// above. Database failures that are not one of these kinds are returned as
// fmt.Errorf-wrapped errors, not as *Error; httpapi reports those as Internal
// with status 500. Callers should use errors.As to recover Kind rather than
// matching on Error().
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is, or wraps, a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Kind == kind
}
