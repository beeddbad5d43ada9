package ports

import (
	"context"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// SignupInput is the validated shape of a signup or admin-creation request.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// AccountSummary is the outward view of an account; it never carries the password hash.
type AccountSummary struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

// SignupResult is returned after an account is created. AccessToken is only set
// when auto-login is enabled.
type SignupResult struct {
	Account     AccountSummary
	AccessToken string
}

// AccountService implements the signup and login use cases.
type AccountService interface {
	Signup(ctx context.Context, in SignupInput) (*SignupResult, error)
	CreateAdmin(ctx context.Context, actor domain.Principal, in SignupInput) (*SignupResult, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// LoginThrottle limits login attempts per email. Implementations must behave the same
// for emails with and without an account.
type LoginThrottle interface {
	// Attempt counts one attempt and reports whether it may proceed. Counting and
	// deciding are a single atomic step, so concurrent attempts cannot overshoot the limit.
	Attempt(ctx context.Context, email string) (bool, error)
	// Reset clears the count after a successful login.
	Reset(ctx context.Context, email string) error
}

// Authorizer decides whether a request carrying authorization may run an operation
// restricted to allowed.
type Authorizer interface {
	Authorize(ctx context.Context, authorization string, allowed domain.RoleSet) (domain.Principal, error)
}
