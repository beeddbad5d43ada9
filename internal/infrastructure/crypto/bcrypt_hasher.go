package crypto

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-service/internal/metrics"
)

// Runner executes fn somewhere other than the calling goroutine and waits for it.
// *queue.Pool satisfies it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// BcryptHasher implements ports.PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
	pool Runner
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost (10) when cost is 0.
// When pool is nil the work runs on the calling goroutine.
func NewBcryptHasher(cost int, pool Runner) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost, pool: pool}, nil
}

// Cost reports the configured work factor.
func (h *BcryptHasher) Cost() int { return h.cost }

// Hash returns a self-describing bcrypt digest with a fresh salt.
func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	var (
		digest []byte
		err    error
	)
	start := time.Now()
	if runErr := h.run(ctx, func() {
		digest, err = bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	}); runErr != nil {
		return "", fmt.Errorf("hash password: %w", runErr)
	}
	metrics.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. bcrypt compares the derived
// hashes in constant time; a malformed digest is a mismatch. The error is only set
// when the comparison could not run, e.g. the pool has stopped.
func (h *BcryptHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	var ok bool
	start := time.Now()
	if err := h.run(ctx, func() {
		ok = bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
	}); err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	metrics.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	return ok, nil
}

func (h *BcryptHasher) run(ctx context.Context, fn func()) error {
	if h.pool == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn()
		return nil
	}
	return h.pool.Do(ctx, fn)
}
