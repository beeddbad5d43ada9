package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// stubStore mirrors a unique index: the existence check and insert happen under one lock.
type stubStore struct {
	mu        sync.Mutex
	byEmail   map[string]*domain.Account
	seq       int
	creates   int
	createErr error
	findErr   error
}

func newStubStore() *stubStore {
	return &stubStore{byEmail: make(map[string]*domain.Account)}
}

func (s *stubStore) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return nil, s.createErr
	}
	if _, exists := s.byEmail[a.Email]; exists {
		return nil, fmt.Errorf("insert account: %w", domain.ErrEmailExists)
	}
	s.seq++
	clone := *a
	clone.ID = fmt.Sprintf("acc-%d", s.seq)
	s.byEmail[a.Email] = &clone
	out := clone
	return &out, nil
}

func (s *stubStore) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	a, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	clone := *a
	return &clone, nil
}

func (s *stubStore) Ping(context.Context) error { return nil }

func (s *stubStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEmail)
}

// stubHasher salts with a counter so equal inputs never produce equal digests.
type stubHasher struct {
	salt      atomic.Int64
	hashes    atomic.Int64
	verifies  atomic.Int64
	hashErr   error
	verifyErr error

	mu      sync.Mutex
	digests []string
}

func (h *stubHasher) Hash(_ context.Context, plaintext string) (string, error) {
	h.hashes.Add(1)
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return fmt.Sprintf("hashed$%d$%s", h.salt.Add(1), plaintext), nil
}

func (h *stubHasher) Verify(_ context.Context, plaintext, digest string) (bool, error) {
	h.verifies.Add(1)
	h.mu.Lock()
	h.digests = append(h.digests, digest)
	h.mu.Unlock()
	if h.verifyErr != nil {
		return false, h.verifyErr
	}
	parts := strings.SplitN(digest, "$", 3)
	return len(parts) == 3 && parts[0] == "hashed" && parts[2] == plaintext, nil
}

func (h *stubHasher) lastDigest() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.digests) == 0 {
		return ""
	}
	return h.digests[len(h.digests)-1]
}

type stubTokens struct{}

func (stubTokens) Issue(accountID string, role domain.Role) (string, error) {
	return "token:" + accountID + ":" + string(role), nil
}

type stubThrottle struct {
	mu       sync.Mutex
	attempts map[string]int
	limit    int
	err      error
}

func (t *stubThrottle) Attempt(_ context.Context, email string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return false, t.err
	}
	t.attempts[email]++
	return t.attempts[email] <= t.limit, nil
}

func (t *stubThrottle) Reset(_ context.Context, email string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, email)
	return t.err
}

func newTestService(opts ...AccountServiceOption) (*AccountService, *stubStore, *stubHasher) {
	store := newStubStore()
	hasher := &stubHasher{}
	svc, err := NewAccountService(context.Background(), store, hasher, stubTokens{}, zerolog.Nop(), opts...)
	if err != nil {
		panic(err)
	}
	return svc, store, hasher
}

var ana = ports.SignupInput{Name: "Ana", Email: "ana@example.com", Password: "password1"}

// ---------------------------------------------------------------------------
// Signup
// ---------------------------------------------------------------------------

func TestAccountService_Signup_Success(t *testing.T) {
	svc, store, _ := newTestService()

	res, err := svc.Signup(context.Background(), ana)
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if res.Account.ID == "" || res.Account.Role != domain.RoleClient {
		t.Fatalf("unexpected account: %+v", res.Account)
	}
	if res.AccessToken != "" {
		t.Fatalf("expected no token without auto-login")
	}
	if res.Account.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt to be set")
	}

	stored, _ := store.FindByEmail(context.Background(), "ana@example.com")
	if stored == nil || stored.PasswordHash == "password1" || stored.PasswordHash == "" {
		t.Fatalf("expected a hashed password to be stored, got %+v", stored)
	}
}

func TestAccountService_Signup_NormalizesEmail(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Signup(context.Background(), ports.SignupInput{Name: "Ana", Email: " Ana@Example.com ", Password: "password1"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if _, err := svc.Signup(context.Background(), ana); !errors.Is(err, domain.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists for differently cased email, got %v", err)
	}
}

func TestAccountService_Signup_AutoLogin(t *testing.T) {
	svc, _, _ := newTestService(WithAutoLogin(true))

	res, err := svc.Signup(context.Background(), ana)
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if res.AccessToken != "token:"+res.Account.ID+":CLIENT" {
		t.Fatalf("unexpected token %q", res.AccessToken)
	}
}

func TestAccountService_Signup_Validation(t *testing.T) {
	cases := []struct {
		name string
		in   ports.SignupInput
		want error
	}{
		{"missing name", ports.SignupInput{Email: "a@b.co", Password: "password1"}, domain.ErrMissingFields},
		{"blank name", ports.SignupInput{Name: "  ", Email: "a@b.co", Password: "password1"}, domain.ErrMissingFields},
		{"missing email", ports.SignupInput{Name: "Ana", Password: "password1"}, domain.ErrMissingFields},
		{"missing password", ports.SignupInput{Name: "Ana", Email: "a@b.co"}, domain.ErrMissingFields},
		{"no at sign", ports.SignupInput{Name: "Ana", Email: "ana.example.com", Password: "password1"}, domain.ErrInvalidEmail},
		{"no domain dot", ports.SignupInput{Name: "Ana", Email: "ana@example", Password: "password1"}, domain.ErrInvalidEmail},
		{"inner space", ports.SignupInput{Name: "Ana", Email: "a na@example.com", Password: "password1"}, domain.ErrInvalidEmail},
		{"short password", ports.SignupInput{Name: "Ana", Email: "a@b.co", Password: "short"}, domain.ErrInvalidPassword},
		{"seven chars", ports.SignupInput{Name: "Ana", Email: "a@b.co", Password: "1234567"}, domain.ErrInvalidPassword},
		{"too long", ports.SignupInput{Name: "Ana", Email: "a@b.co", Password: strings.Repeat("x", 73)}, domain.ErrInvalidPassword},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, hasher := newTestService()
			_, err := svc.Signup(context.Background(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			// the only hash allowed is the timing digest built by the constructor
			if hasher.hashes.Load() != 1 || store.creates != 0 {
				t.Fatalf("validation must fail before hashing or storage")
			}
		})
	}
}

func TestAccountService_Signup_Duplicate(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Signup(context.Background(), ana); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	_, err := svc.Signup(context.Background(), ports.SignupInput{Name: "Other", Email: ana.Email, Password: "password2"})
	if err != domain.ErrEmailExists {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestAccountService_Signup_ConcurrentSameEmail(t *testing.T) {
	svc, store, _ := newTestService()

	const attempts = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int64
		conflicts atomic.Int64
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Signup(context.Background(), ana)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrEmailExists):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes.Load() != 1 || conflicts.Load() != attempts-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", attempts-1, successes.Load(), conflicts.Load())
	}
	if store.count() != 1 {
		t.Fatalf("expected exactly one stored account, got %d", store.count())
	}
}

func TestAccountService_Signup_StoreFailure(t *testing.T) {
	svc, store, _ := newTestService()
	store.createErr = errors.New("connection reset")

	_, err := svc.Signup(context.Background(), ana)
	if err == nil {
		t.Fatalf("expected error")
	}
	var de *domain.Error
	if errors.As(err, &de) {
		t.Fatalf("storage failures must not masquerade as taxonomy errors, got %v", de.Code)
	}
}

// ---------------------------------------------------------------------------
// Admin creation
// ---------------------------------------------------------------------------

func TestAccountService_CreateAdmin(t *testing.T) {
	svc, _, _ := newTestService(WithAutoLogin(true))
	actor := domain.Principal{AccountID: "root", Role: domain.RoleAdmin}

	res, err := svc.CreateAdmin(context.Background(), actor, ports.SignupInput{Name: "Bo", Email: "bo@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}
	if res.Account.Role != domain.RoleAdmin {
		t.Fatalf("expected ADMIN role, got %s", res.Account.Role)
	}
	if res.AccessToken != "" {
		t.Fatalf("admin creation must not mint a token for the new account")
	}
}

func TestAccountService_CreateAdmin_RequiresAdminActor(t *testing.T) {
	svc, store, _ := newTestService()
	actor := domain.Principal{AccountID: "acc-1", Role: domain.RoleClient}

	_, err := svc.CreateAdmin(context.Background(), actor, ports.SignupInput{Name: "Bo", Email: "bo@example.com", Password: "password1"})
	if err != domain.ErrInsufficientRole {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
	if store.creates != 0 {
		t.Fatalf("store must not be touched")
	}
}

func TestAccountService_BootstrapAdmin(t *testing.T) {
	svc, _, _ := newTestService()

	res, err := svc.BootstrapAdmin(context.Background(), ports.SignupInput{Name: "Root", Email: "root@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("BootstrapAdmin failed: %v", err)
	}
	if res.Account.Role != domain.RoleAdmin {
		t.Fatalf("expected ADMIN role, got %s", res.Account.Role)
	}

	token, err := svc.Login(context.Background(), "root@example.com", "password1")
	if err != nil || !strings.HasSuffix(token, ":ADMIN") {
		t.Fatalf("expected admin token, got %q, %v", token, err)
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestAccountService_Login_Success(t *testing.T) {
	svc, _, _ := newTestService()
	res, err := svc.Signup(context.Background(), ana)
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	token, err := svc.Login(context.Background(), "ANA@example.com", "password1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token != "token:"+res.Account.ID+":CLIENT" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestAccountService_Login_FailuresAreIndistinguishable(t *testing.T) {
	svc, _, hasher := newTestService()
	if _, err := svc.Signup(context.Background(), ana); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	before := hasher.verifies.Load()
	_, unknownErr := svc.Login(context.Background(), "ghost@example.com", "password1")
	afterUnknown := hasher.verifies.Load()
	_, wrongErr := svc.Login(context.Background(), ana.Email, "wrong-password")
	afterWrong := hasher.verifies.Load()

	if unknownErr != domain.ErrInvalidCredentials || wrongErr != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("messages differ: %q vs %q", unknownErr, wrongErr)
	}
	if afterUnknown-before != 1 || afterWrong-afterUnknown != 1 {
		t.Fatalf("both paths must run exactly one password verification")
	}
}

func TestAccountService_Login_MissingCredentials(t *testing.T) {
	svc, _, _ := newTestService()
	for _, c := range [][2]string{{"", "password1"}, {"ana@example.com", ""}, {"  ", "x"}} {
		if _, err := svc.Login(context.Background(), c[0], c[1]); err != domain.ErrMissingCredentials {
			t.Fatalf("expected ErrMissingCredentials for %q, got %v", c, err)
		}
	}
}

func TestAccountService_Login_StoreFailure(t *testing.T) {
	svc, store, _ := newTestService()
	store.findErr = errors.New("timeout")

	_, err := svc.Login(context.Background(), ana.Email, ana.Password)
	if err == nil || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected an internal error, got %v", err)
	}
}

func TestAccountService_Login_Throttle(t *testing.T) {
	throttle := &stubThrottle{attempts: map[string]int{}, limit: 2}
	svc, _, _ := newTestService(WithLoginThrottle(throttle))
	if _, err := svc.Signup(context.Background(), ana); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(context.Background(), ana.Email, "wrong-password"); err != domain.ErrInvalidCredentials {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := svc.Login(context.Background(), ana.Email, ana.Password); err != domain.ErrTooManyAttempts {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}

	// Unknown emails are throttled the same way.
	for i := 0; i < 2; i++ {
		_, _ = svc.Login(context.Background(), "ghost@example.com", "x")
	}
	if _, err := svc.Login(context.Background(), "ghost@example.com", "x"); err != domain.ErrTooManyAttempts {
		t.Fatalf("expected ErrTooManyAttempts for unknown email, got %v", err)
	}
}

func TestAccountService_Login_SuccessResetsThrottle(t *testing.T) {
	throttle := &stubThrottle{attempts: map[string]int{}, limit: 3}
	svc, _, _ := newTestService(WithLoginThrottle(throttle))
	if _, err := svc.Signup(context.Background(), ana); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	_, _ = svc.Login(context.Background(), ana.Email, "wrong-password")
	if _, err := svc.Login(context.Background(), ana.Email, ana.Password); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if throttle.attempts[ana.Email] != 0 {
		t.Fatalf("expected attempts reset, got %d", throttle.attempts[ana.Email])
	}
}

func TestAccountService_Login_ThrottleErrorsFailOpen(t *testing.T) {
	throttle := &stubThrottle{attempts: map[string]int{}, limit: 1, err: errors.New("redis down")}
	svc, _, _ := newTestService(WithLoginThrottle(throttle))
	if _, err := svc.Signup(context.Background(), ana); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	if _, err := svc.Login(context.Background(), ana.Email, ana.Password); err != nil {
		t.Fatalf("expected login to proceed when throttle is unavailable, got %v", err)
	}
}

func TestNewAccountService_TimingDigestFailureIsFatal(t *testing.T) {
	hasher := &stubHasher{hashErr: errors.New("pool stopped")}

	svc, err := NewAccountService(context.Background(), newStubStore(), hasher, stubTokens{}, zerolog.Nop())
	if err == nil || svc != nil {
		t.Fatalf("expected constructor to fail, got %v", err)
	}
}

func TestAccountService_Login_UnknownEmailVerifiesTimingDigest(t *testing.T) {
	svc, _, hasher := newTestService()
	hashesAtStart := hasher.hashes.Load()

	if _, err := svc.Login(context.Background(), "ghost@example.com", "password1"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if hasher.verifies.Load() != 1 {
		t.Fatalf("expected exactly one verification, got %d", hasher.verifies.Load())
	}
	if hasher.hashes.Load() != hashesAtStart {
		t.Fatalf("unknown-email login must not hash")
	}
	if d := hasher.lastDigest(); d == "" || d != svc.timingDigest {
		t.Fatalf("expected verification against the timing digest, got %q", d)
	}
}

func TestAccountService_Login_TimingPasswordDoesNotAdmitUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Login(context.Background(), "ghost@example.com", timingPassword); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAccountService_Login_VerifyErrorIsInternal(t *testing.T) {
	throttle := &stubThrottle{attempts: map[string]int{}, limit: 5}
	svc, _, hasher := newTestService(WithLoginThrottle(throttle))
	if _, err := svc.Signup(context.Background(), ana); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	hasher.verifyErr = errors.New("worker pool stopped")

	_, err := svc.Login(context.Background(), ana.Email, ana.Password)
	if err == nil || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected an internal error, got %v", err)
	}
	var de *domain.Error
	if errors.As(err, &de) {
		t.Fatalf("verification failures must not map to a taxonomy code, got %s", de.Code)
	}
}

func TestAccountService_Login_ConcurrentAttemptsRespectLimit(t *testing.T) {
	const limit = 3
	throttle := &stubThrottle{attempts: map[string]int{}, limit: limit}
	svc, _, hasher := newTestService(WithLoginThrottle(throttle))
	if _, err := svc.Signup(context.Background(), ana); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	before := hasher.verifies.Load()

	var (
		wg        sync.WaitGroup
		throttled atomic.Int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Login(context.Background(), ana.Email, "wrong-password"); err == domain.ErrTooManyAttempts {
				throttled.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := hasher.verifies.Load() - before; got != limit {
		t.Fatalf("expected %d password checks, got %d", limit, got)
	}
	if throttled.Load() != 20-limit {
		t.Fatalf("expected %d throttled attempts, got %d", 20-limit, throttled.Load())
	}
}
