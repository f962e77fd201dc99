package plaid

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by every call when client id or secret is missing.
var ErrNotConfigured = errors.New("plaid client id and secret are not configured")

// Error is a non-2xx response from the provider, decoded from the
// standard Plaid error envelope.
type Error struct {
	StatusCode     int
	ErrorType      string
	ErrorCode      string
	ErrorMessage   string
	DisplayMessage *string
	RequestID      string
}

func (e *Error) Error() string {
	if e.ErrorCode == "" {
		return fmt.Sprintf("plaid API error (status %d): %s", e.StatusCode, e.ErrorMessage)
	}
	return fmt.Sprintf("plaid API error (status %d): %s - %s", e.StatusCode, e.ErrorCode, e.ErrorMessage)
}

// RequiresRelink reports whether the user has to go through Link again
// before the item can sync.
func (e *Error) RequiresRelink() bool {
	return e.ErrorCode == "ITEM_LOGIN_REQUIRED"
}
