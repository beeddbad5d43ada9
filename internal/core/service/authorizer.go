package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/metrics"
)

// Authorizer turns an Authorization header into an admitted Principal or a
// MISSING_TOKEN / INVALID_TOKEN / INSUFFICIENT_ROLE failure. Each call starts from
// scratch; nothing is carried between requests.
type Authorizer struct {
	verifier ports.TokenVerifier
	logger   zerolog.Logger
}

func NewAuthorizer(verifier ports.TokenVerifier, logger zerolog.Logger) *Authorizer {
	return &Authorizer{verifier: verifier, logger: logger}
}

func (a *Authorizer) Authorize(_ context.Context, authorization string, allowed domain.RoleSet) (domain.Principal, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		metrics.AuthorizationDecisionsTotal.WithLabelValues(domain.ErrMissingToken.Code, "").Inc()
		return domain.Principal{}, domain.ErrMissingToken
	}

	claims, err := a.verifier.Verify(token)
	if err != nil {
		reason := domain.TokenFailureReason(err)
		a.logger.Debug().Err(err).Str("reason", reason).Msg("token rejected")
		metrics.AuthorizationDecisionsTotal.WithLabelValues(domain.ErrInvalidToken.Code, reason).Inc()
		return domain.Principal{}, domain.ErrInvalidToken
	}

	if !allowed.Allows(claims.Role) {
		metrics.AuthorizationDecisionsTotal.WithLabelValues(domain.ErrInsufficientRole.Code, "").Inc()
		return domain.Principal{}, domain.ErrInsufficientRole
	}

	metrics.AuthorizationDecisionsTotal.WithLabelValues("admitted", "").Inc()
	return domain.Principal{AccountID: claims.AccountID, Role: claims.Role}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
// The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
