package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// Role policies attached to routes at startup.
var (
	AnyAccount = domain.NewRoleSet(domain.RoleClient, domain.RoleAdmin)
	AdminOnly  = domain.NewRoleSet(domain.RoleAdmin)
)

// RBAC enforces role-based access control for the listed roles.
func RBAC(authorizer ports.Authorizer, roles ...domain.Role) echo.MiddlewareFunc {
	return Auth(authorizer, domain.NewRoleSet(roles...))
}
