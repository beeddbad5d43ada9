package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// AccountHandler serves operations that require an admitted principal.
type AccountHandler struct {
	accounts ports.AccountService
}

func NewAccountHandler(accounts ports.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Me returns the principal admitted for this request.
//
// @Summary      Current principal
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Principal
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /accounts/me [get]
func (h *AccountHandler) Me(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// CreateAdmin creates an ADMIN account. Only ADMIN principals reach it.
//
// @Summary      Create an administrator
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      signupRequest  true  "Account details"
// @Success      201   {object}  signupResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /admin/accounts [post]
func (h *AccountHandler) CreateAdmin(c echo.Context) error {
	actor, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err, signupFieldErrors)
	}
	if err := c.Validate(&req); err != nil {
		return missing(domain.ErrMissingFields, err)
	}

	res, err := h.accounts.CreateAdmin(c.Request().Context(), actor, ports.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return signupError(err)
	}

	return c.JSON(http.StatusCreated, signupResponse{Message: "admin account created", User: res.Account})
}
