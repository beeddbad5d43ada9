package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// DefaultTokenTTL is the lifetime of an access token.
const DefaultTokenTTL = 8 * time.Hour

var (
	ErrMissingSecret = errors.New("token signing secret is not configured")

	ErrMalformedToken = domain.ErrTokenMalformed
	ErrBadSignature   = domain.ErrTokenBadSignature
	ErrTokenExpired   = domain.ErrTokenExpired
)

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTTokens issues and verifies HS256 access tokens with a single process-wide secret.
type JWTTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customises JWTTokens.
type Option func(*JWTTokens)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *JWTTokens) { t.now = now }
}

// NewJWTTokens fails with ErrMissingSecret when secret is empty. A ttl <= 0
// falls back to DefaultTokenTTL.
func NewJWTTokens(secret []byte, ttl time.Duration, opts ...Option) (*JWTTokens, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	t := &JWTTokens{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue mints a token for accountID expiring ttl after now (UTC, second precision).
func (t *JWTTokens) Issue(accountID string, role domain.Role) (string, error) {
	if accountID == "" {
		return "", errors.New("issue token: empty account id")
	}
	if _, ok := domain.ParseRole(string(role)); !ok {
		return "", fmt.Errorf("issue token: unknown role %q", role)
	}

	now := t.now().UTC().Truncate(time.Second)
	claims := accessClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks structure, signature and expiry (expired when now >= exp).
func (t *JWTTokens) Verify(token string) (ports.Claims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return ports.Claims{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return ports.Claims{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
		default:
			return ports.Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}

	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return ports.Claims{}, fmt.Errorf("%w: unknown role %q", ErrMalformedToken, claims.Role)
	}
	if claims.Subject == "" {
		return ports.Claims{}, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}

	out := ports.Claims{
		AccountID: claims.Subject,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, nil
}
