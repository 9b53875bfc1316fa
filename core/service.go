package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the composition root for the sync core. It resolves
// configuration, wires the stores, and owns the token manager, client pool,
// and status tracker that the sync package consumes.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	connectionLocker  ConnectionLocker
	backoffScheduler  BackoffScheduler
	tokenRefresher    TokenRefresher
	clientFactory     ClientFactory
	connectionStore   ConnectionStore
	credentialStore   CredentialStore
	inventoryStore    InventoryStore
	syncStatusStore   SyncStatusStore
	tokenManager      *TokenManager
	clientPool        *ClientPool
	statusTracker     *StatusTracker
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	ConnectionLocker  ConnectionLocker
	BackoffScheduler  BackoffScheduler
	TokenRefresher    TokenRefresher
	ClientFactory     ClientFactory
	ConnectionStore   ConnectionStore
	CredentialStore   CredentialStore
	InventoryStore    InventoryStore
	SyncStatusStore   SyncStatusStore
	TokenManager      *TokenManager
	ClientPool        *ClientPool
	StatusTracker     *StatusTracker
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("inventory-sync", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("inventory-sync"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.connectionLocker == nil {
		builder.connectionLocker = NewMemoryConnectionLocker()
	}
	if builder.backoffScheduler == nil {
		builder.backoffScheduler = ExponentialBackoffScheduler{
			Initial: defaultRetryInitialBackoff,
			Max:     defaultRetryMaxBackoff,
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil && storesMissing(builder) {
		var storeProvider StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			storeProvider = built
		} else if direct, ok := builder.repositoryFactory.(StoreProvider); ok {
			storeProvider = direct
		}
		if storeProvider != nil {
			if builder.connectionStore == nil {
				builder.connectionStore = storeProvider.ConnectionStore()
			}
			if builder.credentialStore == nil {
				builder.credentialStore = storeProvider.CredentialStore()
			}
			if builder.inventoryStore == nil {
				builder.inventoryStore = storeProvider.InventoryStore()
			}
			if builder.syncStatusStore == nil {
				builder.syncStatusStore = storeProvider.SyncStatusStore()
			}
		}
	}

	if builder.tokenManager == nil && builder.credentialStore != nil && builder.tokenRefresher != nil {
		manager, managerErr := NewTokenManager(
			builder.credentialStore,
			builder.tokenRefresher,
			WithTokenExpiryBuffer(finalConfig.Token.ExpiryBuffer),
		)
		if managerErr != nil {
			return nil, mapBuildError(builder.errorMapper, managerErr)
		}
		builder.tokenManager = manager
	}
	if builder.clientPool == nil && builder.tokenManager != nil && builder.clientFactory != nil {
		pool, poolErr := NewClientPool(builder.tokenManager, builder.clientFactory)
		if poolErr != nil {
			return nil, mapBuildError(builder.errorMapper, poolErr)
		}
		builder.clientPool = pool
	}
	if builder.statusTracker == nil && builder.syncStatusStore != nil {
		tracker, trackerErr := NewStatusTracker(builder.syncStatusStore)
		if trackerErr != nil {
			return nil, mapBuildError(builder.errorMapper, trackerErr)
		}
		builder.statusTracker = tracker
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		connectionLocker:  builder.connectionLocker,
		backoffScheduler:  builder.backoffScheduler,
		tokenRefresher:    builder.tokenRefresher,
		clientFactory:     builder.clientFactory,
		connectionStore:   builder.connectionStore,
		credentialStore:   builder.credentialStore,
		inventoryStore:    builder.inventoryStore,
		syncStatusStore:   builder.syncStatusStore,
		tokenManager:      builder.tokenManager,
		clientPool:        builder.clientPool,
		statusTracker:     builder.statusTracker,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func storesMissing(builder serviceBuilder) bool {
	return builder.connectionStore == nil ||
		builder.credentialStore == nil ||
		builder.inventoryStore == nil ||
		builder.syncStatusStore == nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		ConnectionLocker:  s.connectionLocker,
		BackoffScheduler:  s.backoffScheduler,
		TokenRefresher:    s.tokenRefresher,
		ClientFactory:     s.clientFactory,
		ConnectionStore:   s.connectionStore,
		CredentialStore:   s.credentialStore,
		InventoryStore:    s.inventoryStore,
		SyncStatusStore:   s.syncStatusStore,
		TokenManager:      s.tokenManager,
		ClientPool:        s.clientPool,
		StatusTracker:     s.statusTracker,
	}
}

func (s *Service) TokenManager() *TokenManager {
	if s == nil {
		return nil
	}
	return s.tokenManager
}

func (s *Service) ClientPool() *ClientPool {
	if s == nil {
		return nil
	}
	return s.clientPool
}

func (s *Service) StatusTracker() *StatusTracker {
	if s == nil {
		return nil
	}
	return s.statusTracker
}

func (s *Service) ConnectionLockerHandle() ConnectionLocker {
	if s == nil {
		return nil
	}
	return s.connectionLocker
}

func (s *Service) CreateConnection(ctx context.Context, in CreateConnectionInput) (connection Connection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"owner_id": in.OwnerID,
		"kind":     in.Kind,
	}
	defer func() {
		if connection.ID != "" {
			fields["connection_id"] = connection.ID
		}
		s.observeOperation(ctx, startedAt, "create_connection", err, fields)
	}()

	if s == nil || s.connectionStore == nil {
		err = s.mapError(fmt.Errorf("core: connection store is required"))
		return Connection{}, err
	}
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Name = strings.TrimSpace(in.Name)
	in.Kind = strings.TrimSpace(in.Kind)
	if in.OwnerID == "" {
		err = s.mapError(fmt.Errorf("core: connection owner id is required"))
		return Connection{}, err
	}
	if in.Kind == "" {
		err = s.mapError(fmt.Errorf("core: connection kind is required"))
		return Connection{}, err
	}

	connection, err = s.connectionStore.Create(ctx, in)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	return connection, nil
}

func (s *Service) GetConnection(ctx context.Context, connectionID string) (Connection, error) {
	if s == nil || s.connectionStore == nil {
		return Connection{}, s.mapError(fmt.Errorf("core: connection store is required"))
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return Connection{}, s.mapError(fmt.Errorf("core: connection id is required"))
	}
	connection, err := s.connectionStore.Get(ctx, connectionID)
	if err != nil {
		return Connection{}, s.mapError(err)
	}
	return connection, nil
}

// SaveCredential registers or replaces the long-lived refresh credential of a
// connection. This is how a freshly authorized connection becomes syncable.
func (s *Service) SaveCredential(ctx context.Context, in UpsertCredentialInput) (credential Credential, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": in.ConnectionID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "save_credential", err, fields)
	}()

	if s == nil || s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is required"))
		return Credential{}, err
	}
	in.ConnectionID = strings.TrimSpace(in.ConnectionID)
	in.RefreshToken = strings.TrimSpace(in.RefreshToken)
	if in.ConnectionID == "" {
		err = s.mapError(fmt.Errorf("core: connection id is required"))
		return Credential{}, err
	}
	if in.RefreshToken == "" {
		err = s.mapError(fmt.Errorf("core: refresh token is required"))
		return Credential{}, err
	}

	credential, err = s.credentialStore.Upsert(ctx, in)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	// A replaced credential invalidates whatever access token was minted from
	// the previous one.
	if s.tokenManager != nil {
		s.tokenManager.RemoveConnection(in.ConnectionID)
	}
	if s.clientPool != nil {
		s.clientPool.RemoveClient(in.ConnectionID)
	}
	return credential, nil
}

// Disconnect tears a connection down: cached token and pooled client are
// evicted, the credential and every mirrored inventory row are removed, and
// finally the connection row itself.
func (s *Service) Disconnect(ctx context.Context, connectionID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": connectionID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()

	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		err = s.mapError(fmt.Errorf("core: connection id is required"))
		return err
	}

	if s.tokenManager != nil {
		s.tokenManager.RemoveConnection(connectionID)
	}
	if s.clientPool != nil {
		s.clientPool.RemoveClient(connectionID)
	}
	if s.credentialStore != nil {
		if err = s.credentialStore.DeleteByConnection(ctx, connectionID); err != nil {
			err = s.mapError(err)
			return err
		}
	}
	if s.inventoryStore != nil {
		if err = s.inventoryStore.DeleteByConnection(ctx, connectionID); err != nil {
			err = s.mapError(err)
			return err
		}
	}
	if s.connectionStore != nil {
		if err = s.connectionStore.Delete(ctx, connectionID); err != nil {
			err = s.mapError(err)
			return err
		}
	}
	return nil
}

// SyncStatusFor reads the current sync status of a connection. Connections
// that never synced report NotStarted.
func (s *Service) SyncStatusFor(ctx context.Context, connectionID string) (SyncStatus, error) {
	if s == nil || s.statusTracker == nil {
		return SyncStatus{}, s.mapError(fmt.Errorf("core: status tracker is required"))
	}
	return s.statusTracker.Status(ctx, connectionID)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
