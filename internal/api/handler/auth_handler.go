package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

type AuthHandler struct {
	accounts ports.AccountService
}

func NewAuthHandler(accounts ports.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Unknown JSON fields are ignored by Bind and never echoed back.
type signupRequest struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type signupResponse struct {
	Message     string               `json:"message"`
	User        ports.AccountSummary `json:"user"`
	AccessToken string               `json:"accessToken,omitempty"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

var errInvalidPayload = &domain.Error{Kind: domain.KindValidation, Code: "INVALID_PAYLOAD", Message: "invalid payload"}

// A field sent with the wrong JSON type fails with that field's own code.
var (
	signupFieldErrors = map[string]*domain.Error{
		"name":     domain.ErrMissingFields,
		"email":    domain.ErrInvalidEmail,
		"password": domain.ErrInvalidPassword,
	}
	loginFieldErrors = map[string]*domain.Error{
		"email":    domain.ErrMissingCredentials,
		"password": domain.ErrMissingCredentials,
	}
)

// Signup registers a CLIENT account.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Account details"
// @Success      201   {object}  signupResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err, signupFieldErrors)
	}
	if err := c.Validate(&req); err != nil {
		return missing(domain.ErrMissingFields, err)
	}

	res, err := h.accounts.Signup(c.Request().Context(), ports.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return signupError(err)
	}

	return c.JSON(http.StatusCreated, signupResponse{
		Message:     "account created",
		User:        res.Account,
		AccessToken: res.AccessToken,
	})
}

// Login authenticates an account and returns an access token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err, loginFieldErrors)
	}
	if err := c.Validate(&req); err != nil {
		return domain.ErrMissingCredentials
	}

	token, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{AccessToken: token})
}

// bindError maps a wrongly typed known field to its validation code. Anything else,
// including unparseable JSON, is INVALID_PAYLOAD.
func bindError(err error, byField map[string]*domain.Error) error {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		if de, ok := byField[ute.Field]; ok {
			return de
		}
	}
	return errInvalidPayload
}

// missing keeps the taxonomy code but reports which fields were absent.
func missing(base *domain.Error, cause error) error {
	return &domain.Error{Kind: base.Kind, Code: base.Code, Message: cause.Error()}
}

// signupError passes taxonomy errors through and turns anything else into SIGNUP_ERROR,
// keeping the cause for the error handler's log.
func signupError(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrSignupFailed, err)
}
