package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// CredentialStore persists accounts and owns the email uniqueness guarantee.
type CredentialStore interface {
	// Create inserts account in a single atomic operation. A uniqueness violation on
	// email is reported as domain.ErrEmailExists; implementations must not pre-check.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	// FindByEmail returns (nil, nil) when no account has the given email.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	Ping(ctx context.Context) error
}
