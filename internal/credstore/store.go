// Package credstore persists the token pair and the user profile across
// process restarts.
//
// The two records are independent: a profile without tokens (or a token
// pair with an empty field) loads as "no session". Every backend returns
// failures as auth.AuthError with code auth.ErrStorage.
package credstore

import (
	"context"

	"github.com/felixgeelhaar/ignite/internal/auth"
)

// Store defines the interface for credential persistence.
//
// Implementations must be safe for concurrent use. All operations are
// idempotent; clearing an absent record returns nil.
type Store interface {
	// SaveTokens persists both tokens as a single record.
	SaveTokens(ctx context.Context, pair auth.TokenPair) error

	// LoadTokens returns the stored pair. ok is false when no complete pair
	// is stored.
	LoadTokens(ctx context.Context) (pair auth.TokenPair, ok bool, err error)

	// ClearTokens removes the stored pair.
	ClearTokens(ctx context.Context) error

	// SaveProfile persists the user profile.
	SaveProfile(ctx context.Context, profile auth.UserProfile) error

	// LoadProfile returns the stored profile. ok is false when absent.
	LoadProfile(ctx context.Context) (profile auth.UserProfile, ok bool, err error)

	// ClearProfile removes the stored profile.
	ClearProfile(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ClearAll removes both records. Both clears are attempted; the first
// failure is returned.
func ClearAll(ctx context.Context, s Store) error {
	tokErr := s.ClearTokens(ctx)
	profErr := s.ClearProfile(ctx)
	if tokErr != nil {
		return tokErr
	}
	return profErr
}

func storageError(op string, cause error) *auth.AuthError {
	return auth.WrapError(auth.ErrStorage, "failed to "+op, cause, map[string]interface{}{
		"operation": op,
	})
}
