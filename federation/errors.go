package federation

import (
	"errors"
	"net/http"

	"github.com/deemkeen/chartreuse/db"
)

var (
	// ErrNotFound: the inbox target, a referenced post or a followed author is missing.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized: missing, invalid or disabled-node credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest: unknown activity type, missing keys, malformed identifiers.
	ErrBadRequest = errors.New("bad request")
	// ErrTransport: a remote delivery failed. Never returned to local callers,
	// only recorded per delivery.
	ErrTransport = errors.New("transport failure")
)

// StatusFor maps an error to the HTTP status the API answers with.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
