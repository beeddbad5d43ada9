package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// Auth admits requests whose bearer token carries one of the allowed roles and
// attaches the resulting principal to the request context. Rejections are returned
// as domain errors for the HTTP error handler to render.
func Auth(authorizer ports.Authorizer, allowed domain.RoleSet) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			p, err := authorizer.Authorize(req.Context(), req.Header.Get(echo.HeaderAuthorization), allowed)
			if err != nil {
				if errors.Is(err, domain.ErrMissingToken) || errors.Is(err, domain.ErrInvalidToken) {
					c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				}
				return err
			}

			c.SetRequest(req.WithContext(domain.ContextWithPrincipal(req.Context(), p)))
			return next(c)
		}
	}
}
