package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type CreateConnectionInput struct {
	OwnerID string
	Name    string
	Kind    string
	Active  bool
}

// ConnectionStore persists tenant connections.
type ConnectionStore interface {
	Create(ctx context.Context, in CreateConnectionInput) (Connection, error)
	Get(ctx context.Context, id string) (Connection, error)
	// ListSyncable returns active connections whose persisted refresh token is
	// not yet expired at now. This is the scheduler's enumeration.
	ListSyncable(ctx context.Context, now time.Time) ([]Connection, error)
	Delete(ctx context.Context, id string) error
}

type UpsertCredentialInput struct {
	ConnectionID          string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// CredentialStore persists exactly one refresh credential per connection.
type CredentialStore interface {
	GetByConnection(ctx context.Context, connectionID string) (Credential, error)
	Upsert(ctx context.Context, in UpsertCredentialInput) (Credential, error)
	DeleteByConnection(ctx context.Context, connectionID string) error
}

type UpsertOrganizationInput struct {
	ConnectionID string
	ExternalID   string
	Name         string
	URL          string
	SyncedAt     time.Time
}

type UpsertNetworkInput struct {
	ConnectionID           string
	ExternalID             string
	OrganizationExternalID string
	Name                   string
	TimeZone               string
	Tags                   []string
	SyncedAt               time.Time
}

type UpsertDeviceInput struct {
	ConnectionID      string
	ExternalID        string
	NetworkExternalID string
	Name              string
	Model             string
	Serial            string
	MACAddress        string
	Status            string
	SyncedAt          time.Time
}

// InventoryStore is the mirrored-data cache contract. Every upsert keys on
// (connection id, external id); inserts set CreatedAt once, updates leave it
// alone and clear IsDeleted. MarkMissing* soft-deletes rows at the given scope
// whose external id is absent from seenExternalIDs; rows are never physically
// removed except through DeleteByConnection on disconnect.
type InventoryStore interface {
	ListOrganizations(ctx context.Context, connectionID string, includeDeleted bool) ([]Organization, error)
	UpsertOrganization(ctx context.Context, in UpsertOrganizationInput) (Organization, error)
	MarkMissingOrganizationsDeleted(ctx context.Context, connectionID string, seenExternalIDs []string) (int, error)

	ListNetworks(ctx context.Context, connectionID string, organizationExternalID string, includeDeleted bool) ([]Network, error)
	UpsertNetwork(ctx context.Context, in UpsertNetworkInput) (Network, error)
	MarkMissingNetworksDeleted(ctx context.Context, connectionID string, organizationExternalID string, seenExternalIDs []string) (int, error)

	ListDevices(ctx context.Context, connectionID string, networkExternalID string, includeDeleted bool) ([]Device, error)
	UpsertDevice(ctx context.Context, in UpsertDeviceInput) (Device, error)
	MarkMissingDevicesDeleted(ctx context.Context, connectionID string, networkExternalID string, seenExternalIDs []string) (int, error)

	DeleteByConnection(ctx context.Context, connectionID string) error
}

// SyncStatusStore persists one sync-status row per connection.
type SyncStatusStore interface {
	GetByConnection(ctx context.Context, connectionID string) (SyncStatus, error)
	Upsert(ctx context.Context, status SyncStatus) (SyncStatus, error)
}

// TokenRefresher exchanges a refresh token for a fresh access token at the
// delegated-auth provider. Implementations live in the providers package.
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (TokenGrant, error)
}

// ProviderOrganization et al. are the provider's wire-level shapes, as
// returned by an InventoryClient. The orchestrator reconciles them into the
// cached domain rows.
type ProviderOrganization struct {
	ID   string
	Name string
	URL  string
}

type ProviderNetwork struct {
	ID             string
	OrganizationID string
	Name           string
	TimeZone       string
	Tags           []string
}

type ProviderDevice struct {
	ID        string
	NetworkID string
	Name      string
	Model     string
	Serial    string
	MAC       string
	Status    string
}

// InventoryClient is a read-only handle onto the inventory provider API,
// bound to one access token. Obtain instances through the ClientPool.
type InventoryClient interface {
	ListOrganizations(ctx context.Context) ([]ProviderOrganization, error)
	ListNetworks(ctx context.Context, organizationID string) ([]ProviderNetwork, error)
	ListDevices(ctx context.Context, networkID string) ([]ProviderDevice, error)
	Close() error
}

// ClientFactory builds inventory clients for a given access token.
type ClientFactory interface {
	NewClient(accessToken string) (InventoryClient, error)
}

// LockHandle releases a held per-connection lock.
type LockHandle interface {
	Unlock(ctx context.Context) error
}

// ConnectionLocker serializes work per connection id. Acquire fails when the
// lock is already held and not yet expired.
type ConnectionLocker interface {
	Acquire(ctx context.Context, connectionID string, ttl time.Duration) (LockHandle, error)
}

// StoreProvider hands out the persistence-backed stores a wired service
// consumes.
type StoreProvider interface {
	ConnectionStore() ConnectionStore
	CredentialStore() CredentialStore
	InventoryStore() InventoryStore
	SyncStatusStore() SyncStatusStore
}

// RepositoryStoreFactory builds a StoreProvider from an opaque persistence
// client. The store/sql package implements it.
type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// SyncRunner is the unit of work for one connection; the sync package
// implements it.
type SyncRunner interface {
	SyncConnection(ctx context.Context, connectionID string) error
}

// StatusReader is the read-only surface collaborators poll for sync progress.
type StatusReader interface {
	Status(ctx context.Context, connectionID string) (SyncStatus, error)
}
