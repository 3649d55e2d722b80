// Package errs defines the error kinds shared by the pipeline stages.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Match with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrState             = errors.New("state error")
	ErrDependencyMissing = errors.New("dependency missing")
	ErrCapReached        = errors.New("cap reached")
	ErrNoIncrement       = errors.New("no increment applied")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflicting write")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// Error ties an operation and a kind to an underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind with no further cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind attaches op and kind to err. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Newf builds an error of kind with a formatted message.
func Newf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap adds op to err keeping its kind. Errors without a known kind are
// classified as ErrStoreUnavailable.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == nil {
		kind = ErrStoreUnavailable
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

var kinds = []error{
	ErrValidation, ErrState, ErrDependencyMissing, ErrCapReached,
	ErrNoIncrement, ErrNotFound, ErrConflict, ErrStoreUnavailable,
}

// KindOf returns the first known kind err matches, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName returns a short stable label for err's kind, used in batch
// results, metrics and HTTP error codes.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrValidation:
		return "validation"
	case ErrState:
		return "state"
	case ErrDependencyMissing:
		return "dependency_missing"
	case ErrCapReached:
		return "cap_reached"
	case ErrNoIncrement:
		return "no_increment"
	case ErrNotFound:
		return "not_found"
	case ErrConflict:
		return "conflict"
	case ErrStoreUnavailable:
		return "store_unavailable"
	default:
		return "internal"
	}
}

// Message returns the innermost human-readable cause of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return Message(e.Err)
		}
		if e.Kind != nil {
			return e.Kind.Error()
		}
		return e.Op
	}
	return err.Error()
}
