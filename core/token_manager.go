package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const DefaultTokenExpiryBuffer = 5 * time.Minute

type tokenCacheEntry struct {
	accessToken string
	expiresAt   time.Time
}

// TokenManager turns the persisted long-lived refresh credential of a
// connection into short-lived access tokens. Access tokens live only in the
// in-process cache; absence never blocks correctness, it only triggers a
// refresh. Concurrent callers for one connection may refresh redundantly; the
// last successful write wins and the persisted credential is never corrupted.
type TokenManager struct {
	credentials CredentialStore
	refresher   TokenRefresher
	buffer      time.Duration
	now         func() time.Time

	mu    sync.RWMutex
	cache map[string]tokenCacheEntry
}

type TokenManagerOption func(*TokenManager)

func WithTokenExpiryBuffer(buffer time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if m == nil || buffer < 0 {
			return
		}
		m.buffer = buffer
	}
}

func WithTokenClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		if m == nil || now == nil {
			return
		}
		m.now = now
	}
}

func NewTokenManager(
	credentials CredentialStore,
	refresher TokenRefresher,
	opts ...TokenManagerOption,
) (*TokenManager, error) {
	if credentials == nil {
		return nil, fmt.Errorf("core: credential store is required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("core: token refresher is required")
	}

	manager := &TokenManager{
		credentials: credentials,
		refresher:   refresher,
		buffer:      DefaultTokenExpiryBuffer,
		now:         func() time.Time { return time.Now().UTC() },
		cache:       make(map[string]tokenCacheEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager, nil
}

// GetValidAccessToken returns a cached access token when its expiry is more
// than the safety buffer away; otherwise it loads the persisted credential and
// refreshes. A refresh token past its own expiry surfaces as a
// credential-expired error, recoverable only through re-authorization.
func (m *TokenManager) GetValidAccessToken(ctx context.Context, connectionID string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("core: token manager is nil")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return "", syncErrorMapper(fmt.Errorf("core: connection id is required"))
	}

	now := m.now().UTC()
	if token, ok := m.cachedToken(connectionID, now); ok {
		return token, nil
	}

	credential, err := m.credentials.GetByConnection(ctx, connectionID)
	if err != nil {
		return "", syncErrorMapper(err)
	}
	if credential.Expired(now) {
		return "", NewCredentialExpiredError(connectionID)
	}

	grant, err := m.refresher.RefreshAccessToken(ctx, credential.RefreshToken)
	if err != nil {
		return "", NewRefreshFailedError(err)
	}
	if err := grant.Validate(); err != nil {
		return "", NewRefreshFailedError(err)
	}

	// Rotation persists before the token is exposed so a stale refresh token
	// is never reused on the next refresh.
	if grant.Rotated(credential.RefreshToken) {
		expiresAt := credential.RefreshTokenExpiresAt
		if grant.RefreshTokenExpiresAt != nil {
			expiresAt = grant.RefreshTokenExpiresAt.UTC()
		}
		if _, err := m.credentials.Upsert(ctx, UpsertCredentialInput{
			ConnectionID:          connectionID,
			RefreshToken:          grant.RefreshToken,
			RefreshTokenExpiresAt: expiresAt,
		}); err != nil {
			return "", NewPersistenceFailedError(err)
		}
	}

	m.mu.Lock()
	m.cache[connectionID] = tokenCacheEntry{
		accessToken: grant.AccessToken,
		expiresAt:   grant.ExpiresAt.UTC(),
	}
	m.mu.Unlock()

	return grant.AccessToken, nil
}

// RemoveConnection evicts the cached token for a connection; used on
// disconnect.
func (m *TokenManager) RemoveConnection(connectionID string) {
	if m == nil {
		return
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return
	}
	m.mu.Lock()
	delete(m.cache, connectionID)
	m.mu.Unlock()
}

func (m *TokenManager) cachedToken(connectionID string, now time.Time) (string, bool) {
	m.mu.RLock()
	entry, ok := m.cache[connectionID]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !entry.expiresAt.After(now.Add(m.buffer)) {
		return "", false
	}
	return entry.accessToken, true
}
