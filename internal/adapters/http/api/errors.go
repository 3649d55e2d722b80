package api

import (
	"errors"
	"net/http"

	"github.com/okian/helix/internal/domain/errs"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrUnknownRun = errors.New("unknown run stage")
)

// statusFor maps a domain error to an HTTP status and a stable code.
// Not-found is checked first: a review of a missing contribution is both a
// state error and not found, and callers expect 404 for it.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBadRequest), errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, errs.ErrState), errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "state"
	case errors.Is(err, errs.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
