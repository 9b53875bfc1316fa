package inventorysync

import "github.com/goliatone/go-inventory-sync/core"

type Config = core.Config

type SyncConfig = core.SyncConfig
type ProviderConfig = core.ProviderConfig
type TokenConfig = core.TokenConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type ConnectionLocker = core.ConnectionLocker
type BackoffScheduler = core.BackoffScheduler
type TokenRefresher = core.TokenRefresher
type ClientFactory = core.ClientFactory
type InventoryClient = core.InventoryClient
type ConnectionStore = core.ConnectionStore
type CredentialStore = core.CredentialStore
type InventoryStore = core.InventoryStore
type SyncStatusStore = core.SyncStatusStore

type Connection = core.Connection
type Credential = core.Credential
type Organization = core.Organization
type Network = core.Network
type Device = core.Device
type SyncStatus = core.SyncStatus
type SyncState = core.SyncState
type TokenGrant = core.TokenGrant

type CreateConnectionInput = core.CreateConnectionInput
type UpsertCredentialInput = core.UpsertCredentialInput

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithConnectionLocker  = core.WithConnectionLocker
	WithBackoffScheduler  = core.WithBackoffScheduler
	WithTokenRefresher    = core.WithTokenRefresher
	WithClientFactory     = core.WithClientFactory
	WithConnectionStore   = core.WithConnectionStore
	WithCredentialStore   = core.WithCredentialStore
	WithInventoryStore    = core.WithInventoryStore
	WithSyncStatusStore   = core.WithSyncStatusStore
	WithTokenManager      = core.WithTokenManager
	WithClientPool        = core.WithClientPool
	WithStatusTracker     = core.WithStatusTracker
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
