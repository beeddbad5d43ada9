package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// ctxPrincipal returns the principal attached by the Auth middleware. Its absence
// means the route was registered without the middleware; treat it as unauthenticated.
func ctxPrincipal(c echo.Context) (domain.Principal, error) {
	p, ok := domain.PrincipalFromContext(c.Request().Context())
	if !ok || p.AccountID == "" {
		return domain.Principal{}, domain.ErrMissingToken
	}
	return p, nil
}
