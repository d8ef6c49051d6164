package credstore

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/ignite/internal/auth"
)

// MemoryStore implements in-memory credential storage.
//
// It is suitable for tests and for short-lived processes that must not
// write credentials to disk.
type MemoryStore struct {
	mu      sync.RWMutex
	tokens  *auth.TokenPair
	profile *auth.UserProfile
}

// NewMemoryStore creates a new in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveTokens stores the pair.
func (m *MemoryStore) SaveTokens(ctx context.Context, pair auth.TokenPair) error {
	if !pair.Valid() {
		return auth.NewError(auth.ErrStorage, "token pair must contain both tokens", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = &pair
	return nil
}

// LoadTokens returns the stored pair.
func (m *MemoryStore) LoadTokens(ctx context.Context) (auth.TokenPair, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.tokens == nil || !m.tokens.Valid() {
		return auth.TokenPair{}, false, nil
	}
	return *m.tokens, true, nil
}

// ClearTokens removes the pair.
func (m *MemoryStore) ClearTokens(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = nil
	return nil
}

// SaveProfile stores the profile.
func (m *MemoryStore) SaveProfile(ctx context.Context, profile auth.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = &profile
	return nil
}

// LoadProfile returns the stored profile.
func (m *MemoryStore) LoadProfile(ctx context.Context) (auth.UserProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.profile == nil {
		return auth.UserProfile{}, false, nil
	}
	return *m.profile, true, nil
}

// ClearProfile removes the profile.
func (m *MemoryStore) ClearProfile(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = nil
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
