package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxFailures = 5
	defaultWindow      = 15 * time.Minute
)

// LoginThrottle counts login attempts per email in a fixed window; a successful
// login resets the count.
// Key format: login:failures:<sha256(email)>
type LoginThrottle struct {
	client      *redis.Client
	maxFailures int64
	window      time.Duration
}

// NewLoginThrottle creates a LoginThrottle wrapping the given Redis client.
// Non-positive limits fall back to 5 failures per 15 minutes.
func NewLoginThrottle(client *redis.Client, maxFailures int, window time.Duration) *LoginThrottle {
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &LoginThrottle{client: client, maxFailures: int64(maxFailures), window: window}
}

// Attempt counts one login attempt for email and reports whether it is within the
// limit. INCR hands every concurrent caller a distinct count, so no more than
// maxFailures attempts get through per window. The window starts at the first attempt
// and later attempts do not extend it.
func (t *LoginThrottle) Attempt(ctx context.Context, email string) (bool, error) {
	key := t.key(email)
	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("throttle attempt: %w", err)
	}
	return incr.Val() <= t.maxFailures, nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email string) error {
	if err := t.client.Del(ctx, t.key(email)).Err(); err != nil {
		return fmt.Errorf("throttle reset: %w", err)
	}
	return nil
}

// Emails are hashed so the cache never holds them in clear text.
func (t *LoginThrottle) key(email string) string {
	sum := sha256.Sum256([]byte(email))
	return "login:failures:" + hex.EncodeToString(sum[:])
}
