package ports

import (
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// Claims is the verified content of an access token.
type Claims struct {
	AccountID string
	Role      domain.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer mints signed, expiring access tokens.
type TokenIssuer interface {
	Issue(accountID string, role domain.Role) (string, error)
}

// TokenVerifier validates an access token and returns its claims. The returned error
// distinguishes malformed, bad-signature and expired tokens for diagnostics only.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}
