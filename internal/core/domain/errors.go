package domain

import "errors"

// ErrorKind groups errors by how a caller is expected to react to them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindAuthorization
	KindThrottled
)

// Error is a tagged failure from the identity taxonomy. Code is machine readable and
// Message is safe to show to the caller.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Code so wrapped or copied errors still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Validation
var (
	ErrMissingFields      = &Error{Kind: KindValidation, Code: "MISSING_FIELDS", Message: "name, email and password are required"}
	ErrInvalidEmail       = &Error{Kind: KindValidation, Code: "INVALID_EMAIL", Message: "email is missing or malformed"}
	ErrInvalidPassword    = &Error{Kind: KindValidation, Code: "INVALID_PASSWORD", Message: "password must be between 8 characters and 72 bytes"}
	ErrMissingCredentials = &Error{Kind: KindValidation, Code: "MISSING_CREDENTIALS", Message: "email and password are required"}
)

// Conflict
var ErrEmailExists = &Error{Kind: KindConflict, Code: "EMAIL_EXISTS", Message: "email already registered"}

// Authentication
var (
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Code: "INVALID_CREDENTIALS", Message: "invalid credentials"}
	ErrMissingToken       = &Error{Kind: KindAuthentication, Code: "MISSING_TOKEN", Message: "missing bearer token"}
	ErrInvalidToken       = &Error{Kind: KindAuthentication, Code: "INVALID_TOKEN", Message: "invalid token"}
)

// Authorization
var ErrInsufficientRole = &Error{Kind: KindAuthorization, Code: "INSUFFICIENT_ROLE", Message: "insufficient role"}

// Throttling
var ErrTooManyAttempts = &Error{Kind: KindThrottled, Code: "TOO_MANY_ATTEMPTS", Message: "too many failed login attempts, try again later"}

// Internal
var (
	ErrSignupFailed = &Error{Kind: KindInternal, Code: "SIGNUP_ERROR", Message: "could not complete signup"}
	ErrInternal     = &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "internal server error"}
)
