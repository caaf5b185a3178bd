package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies analysis failures.
type Kind string

const (
	InvalidInput     Kind = "invalid_input"
	RenderFailure    Kind = "render_failure"
	Misconfiguration Kind = "misconfiguration"
)

// Error is returned by every failing analysis entry point. A run that fails
// produces no report.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// ErrNoDocument is reported when an analysis is requested before a document
// was loaded.
var ErrNoDocument = &Error{Kind: InvalidInput, Msg: "no document loaded"}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }
