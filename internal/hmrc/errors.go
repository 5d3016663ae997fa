// Package hmrc implements the HMRC Making Tax Digital client: OAuth token
// lifecycle, fraud-prevention headers, the authenticated request primitive,
// and the obligations resolver.
package hmrc

import (
	"errors"
	"fmt"
)

// Sentinel errors for the connection lifecycle. Both mean the user must
// re-run the OAuth connect flow; neither is retried automatically.
var (
	// ErrNotConnected means no token record exists for the user.
	ErrNotConnected = errors.New("hmrc account not connected")

	// ErrConnectionExpired means a refresh attempt failed, e.g. the refresh
	// token was revoked. The stored record is kept but is no longer usable.
	ErrConnectionExpired = errors.New("hmrc connection expired")
)

// AuthorityError carries an HMRC error response verbatim. The status and
// machine-readable code are preserved so callers can branch on them; they are
// never rewritten into a generic failure.
type AuthorityError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthorityError) Error() string {
	return fmt.Sprintf("hmrc: %d %s: %s", e.Status, e.Code, e.Message)
}
