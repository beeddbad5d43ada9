package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/infrastructure/crypto"
)

func newTestTokens(t *testing.T) *crypto.JWTTokens {
	t.Helper()
	tokens, err := crypto.NewJWTTokens([]byte("secret"), time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	return tokens
}

func runAuth(t *testing.T, header string, allowed domain.RoleSet, next echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	authorizer := service.NewAuthorizer(newTestTokens(t), zerolog.Nop())
	return rec, Auth(authorizer, allowed)(next)(c)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	signed, err := newTestTokens(t).Issue("acc-1", domain.RoleClient)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	called := false
	rec, err := runAuth(t, "Bearer "+signed, AnyAccount, func(c echo.Context) error {
		called = true
		p, ok := domain.PrincipalFromContext(c.Request().Context())
		if !ok {
			t.Fatalf("principal not set")
		}
		if p.AccountID != "acc-1" || p.Role != domain.RoleClient {
			t.Fatalf("unexpected principal %+v", p)
		}
		return c.NoContent(http.StatusOK)
	})

	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	rec, err := runAuth(t, "", AnyAccount, func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if !errors.Is(err, domain.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if rec.Header().Get(echo.HeaderWWWAuthenticate) != "Bearer" {
		t.Fatalf("expected WWW-Authenticate challenge")
	}
}

func TestAuthMiddleware_InvalidHeaderFormat(t *testing.T) {
	_, err := runAuth(t, "Token abc", AnyAccount, func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if !errors.Is(err, domain.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	_, err := runAuth(t, "Bearer not-a-token", AnyAccount, func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthMiddleware_ForeignSecret(t *testing.T) {
	other, err := crypto.NewJWTTokens([]byte("another-secret"), time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	signed, err := other.Issue("acc-1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	_, err = runAuth(t, "Bearer "+signed, AdminOnly, func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
