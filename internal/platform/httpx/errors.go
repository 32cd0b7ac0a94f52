package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-hq/meridian/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Authorization failures deliberately carry no detail about which
// role or permission was missing.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidToken),
		errors.Is(err, shared.ErrUnauthenticated),
		errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, shared.ErrForbidden),
		errors.Is(err, shared.ErrSubjectNotFound):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, shared.ErrRateLimited):
		Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
