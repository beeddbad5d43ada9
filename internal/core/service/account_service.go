package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/metrics"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes, so longer passwords are refused outright.
	maxPasswordBytes = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Plaintext behind timingDigest. A login matching it still fails for unknown emails.
const timingPassword = "timing-equalisation-password"

// AccountService implements signup and login.
type AccountService struct {
	store     ports.CredentialStore
	hasher    ports.PasswordHasher
	tokens    ports.TokenIssuer
	throttle  ports.LoginThrottle
	autoLogin bool
	logger    zerolog.Logger

	// timingDigest is verified against when the email is unknown. It is built once
	// in the constructor so both login paths cost exactly one bcrypt compare.
	timingDigest string
}

// AccountServiceOption configures optional collaborators.
type AccountServiceOption func(*AccountService)

// WithLoginThrottle enables failed-login throttling.
func WithLoginThrottle(t ports.LoginThrottle) AccountServiceOption {
	return func(s *AccountService) { s.throttle = t }
}

// WithAutoLogin makes Signup return an access token for the new account.
func WithAutoLogin(enabled bool) AccountServiceOption {
	return func(s *AccountService) { s.autoLogin = enabled }
}

// NewAccountService wires the service and prepares the timing digest. Failing to hash
// it is fatal: without it unknown emails would skip bcrypt and become distinguishable.
func NewAccountService(
	ctx context.Context,
	store ports.CredentialStore,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	logger zerolog.Logger,
	opts ...AccountServiceOption,
) (*AccountService, error) {
	s := &AccountService{store: store, hasher: hasher, tokens: tokens, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	digest, err := hasher.Hash(ctx, timingPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare timing digest: %w", err)
	}
	if digest == "" {
		return nil, errors.New("prepare timing digest: empty digest")
	}
	s.timingDigest = digest
	return s, nil
}

// Signup validates input, then creates a CLIENT account.
func (s *AccountService) Signup(ctx context.Context, in ports.SignupInput) (*ports.SignupResult, error) {
	account, err := s.create(ctx, in, domain.RoleClient)
	if err != nil {
		return nil, err
	}

	result := &ports.SignupResult{Account: summarize(account)}
	if s.autoLogin {
		token, err := s.tokens.Issue(account.ID, account.Role)
		if err != nil {
			return nil, fmt.Errorf("signup: issue token: %w", err)
		}
		metrics.TokensIssuedTotal.WithLabelValues(string(account.Role)).Inc()
		result.AccessToken = token
	}
	return result, nil
}

// CreateAdmin creates an ADMIN account on behalf of an existing ADMIN.
func (s *AccountService) CreateAdmin(ctx context.Context, actor domain.Principal, in ports.SignupInput) (*ports.SignupResult, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrInsufficientRole
	}

	account, err := s.create(ctx, in, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("actor_id", actor.AccountID).Str("account_id", account.ID).Msg("admin account created")
	return &ports.SignupResult{Account: summarize(account)}, nil
}

// BootstrapAdmin creates an ADMIN without an acting principal. It is only reachable
// from the command line and is how the first administrator comes to exist.
func (s *AccountService) BootstrapAdmin(ctx context.Context, in ports.SignupInput) (*ports.SignupResult, error) {
	account, err := s.create(ctx, in, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Warn().Str("account_id", account.ID).Msg("admin account bootstrapped out of band")
	return &ports.SignupResult{Account: summarize(account)}, nil
}

// Login exchanges credentials for an access token. An unknown email and a wrong
// password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues(domain.ErrMissingCredentials.Code).Inc()
		return "", domain.ErrMissingCredentials
	}
	email = domain.NormalizeEmail(email)

	if !s.allowAttempt(ctx, email) {
		metrics.LoginsTotal.WithLabelValues(domain.ErrTooManyAttempts.Code).Inc()
		return "", domain.ErrTooManyAttempts
	}

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("login: find account: %w", err)
	}

	digest := s.timingDigest
	if account != nil {
		digest = account.PasswordHash
	}
	ok, err := s.hasher.Verify(ctx, password, digest)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(domain.ErrInternal.Code).Inc()
		return "", fmt.Errorf("login: %w", err)
	}

	if account == nil || !ok {
		s.logger.Debug().Bool("known_account", account != nil).Msg("login rejected")
		metrics.LoginsTotal.WithLabelValues(domain.ErrInvalidCredentials.Code).Inc()
		return "", domain.ErrInvalidCredentials
	}

	s.resetFailures(ctx, email)

	token, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return "", fmt.Errorf("login: issue token: %w", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(account.Role)).Inc()
	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	return token, nil
}

func (s *AccountService) create(ctx context.Context, in ports.SignupInput, role domain.Role) (*domain.Account, error) {
	in, err := validateSignup(in)
	if err != nil {
		metrics.SignupsTotal.WithLabelValues(string(role), errorCode(err)).Inc()
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		metrics.SignupsTotal.WithLabelValues(string(role), domain.ErrSignupFailed.Code).Inc()
		return nil, fmt.Errorf("signup: %w", err)
	}

	account, err := s.store.Create(ctx, &domain.Account{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailExists) {
			metrics.SignupsTotal.WithLabelValues(string(role), domain.ErrEmailExists.Code).Inc()
			return nil, domain.ErrEmailExists
		}
		s.logger.Error().Err(err).Str("role", string(role)).Msg("failed to create account")
		metrics.SignupsTotal.WithLabelValues(string(role), domain.ErrSignupFailed.Code).Inc()
		return nil, fmt.Errorf("signup: create account: %w", err)
	}

	metrics.SignupsTotal.WithLabelValues(string(role), "ok").Inc()
	s.logger.Info().Str("account_id", account.ID).Str("role", string(role)).Msg("account created")
	return account, nil
}

// validateSignup runs before any hashing or storage cost is paid.
func validateSignup(in ports.SignupInput) (ports.SignupInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)

	if in.Name == "" || in.Email == "" || in.Password == "" {
		return in, domain.ErrMissingFields
	}
	if !emailPattern.MatchString(in.Email) {
		return in, domain.ErrInvalidEmail
	}
	if len([]rune(in.Password)) < minPasswordLength || len(in.Password) > maxPasswordBytes {
		return in, domain.ErrInvalidPassword
	}
	return in, nil
}

// allowAttempt consults the throttle. Backend errors let the attempt through.
func (s *AccountService) allowAttempt(ctx context.Context, email string) bool {
	if s.throttle == nil {
		return true
	}
	allowed, err := s.throttle.Attempt(ctx, email)
	if err != nil {
		metrics.LoginThrottleErrorsTotal.Inc()
		s.logger.Warn().Err(err).Msg("login throttle check failed, continuing")
		return true
	}
	return allowed
}

func (s *AccountService) resetFailures(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Reset(ctx, email); err != nil {
		metrics.LoginThrottleErrorsTotal.Inc()
		s.logger.Warn().Err(err).Msg("failed to reset login failures")
	}
}

func summarize(a *domain.Account) ports.AccountSummary {
	return ports.AccountSummary{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

func errorCode(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return domain.ErrInternal.Code
}
