// Package refreshtokens holds the per-user refresh-token slot. Each user has
// at most one stored value, the fingerprint of the current refresh token.
package refreshtokens

import "context"

// Repository stores and rotates the refresh-token fingerprint of a user.
type Repository interface {
	// Set unconditionally overwrites the stored value.
	Set(ctx context.Context, userID, digest string) error

	// CompareAndSwap replaces the stored value with next only if it currently
	// equals expected. It reports whether the swap happened. An empty
	// expected value never matches.
	CompareAndSwap(ctx context.Context, userID, expected, next string) (bool, error)

	// Clear removes the stored value. Clearing an empty slot is not an error.
	Clear(ctx context.Context, userID string) error
}
