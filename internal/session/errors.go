package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when the redirect carries a state that does not
	// match the one sent with the authorization request.
	ErrInvalidState = errors.New("state mismatch")

	// ErrMissingAccessToken is returned when a successful redirect carries no access token.
	ErrMissingAccessToken = errors.New("no access token in redirect")

	// ErrOperationInProgress is returned when a sign in or sign out is already running.
	ErrOperationInProgress = errors.New("another sign in or sign out is in progress")

	// ErrNotSignedIn is returned by Token when there is no session.
	ErrNotSignedIn = errors.New("not signed in")
)

// ProviderError is an OAuth error returned in the redirect, other than access_denied.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("provider error: %s", e.Code)
	}
	return fmt.Sprintf("provider error: %s: %s", e.Code, e.Description)
}

// SignInError wraps any failure that aborted a sign in.
type SignInError struct {
	Cause error
}

func (e *SignInError) Error() string {
	return fmt.Sprintf("sign in failed: %v", e.Cause)
}

func (e *SignInError) Unwrap() error {
	return e.Cause
}
