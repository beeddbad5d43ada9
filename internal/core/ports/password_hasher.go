package ports

import "context"

// PasswordHasher produces and checks salted, adaptive password digests.
// Both calls may be slow; never hold a lock across them.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify reports a mismatch or malformed digest as (false, nil). A non-nil error
	// means no comparison happened and must not be treated as a wrong password.
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}
