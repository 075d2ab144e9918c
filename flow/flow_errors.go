package flow

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrMisconfigured         = errors.New("invalid configuration in relay")
	ErrInvalidOrExpiredState = errors.New("invalid or missing session data/state")
	ErrProvider              = errors.New("identity provider error")
	ErrTokenExchange         = errors.New("token exchange failed")
	ErrProfileFetch          = errors.New("profile fetch failed")
	ErrMissingEmail          = errors.New("missing email in user data")
	ErrDomainNotAllowed      = errors.New("email domain not allowed")
)

// HTTPStatus translates a flow error into the status code the transport layer
// should answer with. Unknown errors map to 500 so nothing fails open.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidOrExpiredState),
		errors.Is(err, ErrProvider),
		errors.Is(err, ErrMissingEmail):
		return http.StatusBadRequest
	case errors.Is(err, ErrDomainNotAllowed):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
