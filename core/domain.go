package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidSyncStateTransition = errors.New("core: invalid sync state transition")
	ErrConnectionNotFound         = errors.New("core: connection not found")
	ErrCredentialNotFound         = errors.New("core: credential not found")
	ErrSyncStatusNotFound         = errors.New("core: sync status not found")
)

// Connection is a tenant's configured link to one external inventory account.
type Connection struct {
	ID        string
	OwnerID   string
	Name      string
	Kind      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Connection) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("core: connection id is required")
	}
	if strings.TrimSpace(c.OwnerID) == "" {
		return fmt.Errorf("core: connection owner id is required")
	}
	return nil
}

// Credential holds the persisted long-lived refresh token for a connection.
// Access tokens are never persisted; see TokenManager for the in-memory cache.
type Credential struct {
	ID                    string
	ConnectionID          string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Expired reports whether the refresh token itself is past its expiry. A
// credential in this state cannot be recovered without re-authorization.
func (c Credential) Expired(now time.Time) bool {
	if c.RefreshTokenExpiresAt.IsZero() {
		return false
	}
	return !c.RefreshTokenExpiresAt.After(now.UTC())
}

// Organization is a mirrored provider organization scoped to one connection.
type Organization struct {
	ID           string
	ConnectionID string
	ExternalID   string
	Name         string
	URL          string
	IsDeleted    bool
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Network is a mirrored provider network. The parent organization is
// referenced by external id so identity survives re-sync.
type Network struct {
	ID                     string
	ConnectionID           string
	ExternalID             string
	OrganizationExternalID string
	Name                   string
	TimeZone               string
	Tags                   []string
	IsDeleted              bool
	LastSyncedAt           time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Device is a mirrored provider device, parented to a network by external id.
type Device struct {
	ID                string
	ConnectionID      string
	ExternalID        string
	NetworkExternalID string
	Name              string
	Model             string
	Serial            string
	MACAddress        string
	Status            string
	IsDeleted         bool
	LastSyncedAt      time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type SyncState string

const (
	SyncStateNotStarted SyncState = "not_started"
	SyncStateInProgress SyncState = "in_progress"
	SyncStateCompleted  SyncState = "completed"
	SyncStateFailed     SyncState = "failed"
)

// SyncStatus is the per-connection sync state record. Only the orchestrator
// (through StatusTracker) writes it; every other collaborator reads it.
type SyncStatus struct {
	ConnectionID      string
	State             SyncState
	CurrentStep       string
	CurrentStepNumber int
	TotalSteps        int
	Error             string
	SyncStartedAt     *time.Time
	SyncCompletedAt   *time.Time
	UpdatedAt         time.Time
}

func (s *SyncStatus) TransitionTo(state SyncState, now time.Time) error {
	if s == nil {
		return nil
	}
	if s.State == state {
		s.UpdatedAt = now
		return nil
	}
	if !syncStateTransitionAllowed(s.State, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidSyncStateTransition, s.State, state)
	}
	s.State = state
	s.UpdatedAt = now
	return nil
}

// Terminal states restart directly to InProgress; there is no run queueing.
func syncStateTransitionAllowed(current, next SyncState) bool {
	allowed := map[SyncState]map[SyncState]struct{}{
		SyncStateNotStarted: {
			SyncStateInProgress: {},
		},
		SyncStateInProgress: {
			SyncStateCompleted: {},
			SyncStateFailed:    {},
		},
		SyncStateCompleted: {
			SyncStateInProgress: {},
		},
		SyncStateFailed: {
			SyncStateInProgress: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// TokenGrant is the provider's answer to a refresh-grant call. RefreshToken is
// only set when the provider rotated it.
type TokenGrant struct {
	AccessToken           string
	ExpiresAt             time.Time
	RefreshToken          string
	RefreshTokenExpiresAt *time.Time
}

func (g TokenGrant) Validate() error {
	if strings.TrimSpace(g.AccessToken) == "" {
		return fmt.Errorf("core: token grant access token is required")
	}
	if g.ExpiresAt.IsZero() {
		return fmt.Errorf("core: token grant expiry is required")
	}
	return nil
}

// Rotated reports whether the grant carries a refresh token different from the
// one it was obtained with.
func (g TokenGrant) Rotated(previousRefreshToken string) bool {
	next := strings.TrimSpace(g.RefreshToken)
	return next != "" && next != strings.TrimSpace(previousRefreshToken)
}
