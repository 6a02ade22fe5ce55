package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSession means the session id is unknown, already consumed, or
	// older than the session TTL.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrMissingCode means the redirect URL carried no authorization code.
	ErrMissingCode = errors.New("no authorization code in redirect URL")
	// ErrStateMismatch means the returned state did not match the stored one.
	// Possible CSRF; never recovered automatically.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrUnauthenticated means no stored credential exists.
	ErrUnauthenticated = errors.New("no stored tokens")
	// ErrReauthRequired means the stored credential is stale and the refresh
	// failed; the user must run the login flow again.
	ErrReauthRequired = errors.New("token expired and refresh failed")
)

// TokenExchangeError carries the provider's verbatim response so a failed
// grant can be diagnosed without server-side logs.
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed (status=%d): %s", e.Status, e.Body)
}
