package shared

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveUser indicates a disabled account.
	ErrInactiveUser = errors.New("user inactive")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserFacingError carries a message that is safe to show to end users.
type UserFacingError interface {
	error
	UserMessage() string
}

// UserSafeMessage converts err into text suitable for a flash or form error.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var uf UserFacingError
	if errors.As(err, &uf) {
		return uf.UserMessage()
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInactiveUser):
		return "Email or password is incorrect."
	case errors.Is(err, ErrNotFound):
		return "The requested record no longer exists."
	case errors.Is(err, ErrIdempotencyConflict):
		return "This form was already submitted."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request took too long, please try again."
	}
	return "Something went wrong, please try again."
}
