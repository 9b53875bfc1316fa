package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
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

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithConnectionLocker(locker ConnectionLocker) Option {
	return func(b *serviceBuilder) {
		b.connectionLocker = locker
	}
}

func WithBackoffScheduler(scheduler BackoffScheduler) Option {
	return func(b *serviceBuilder) {
		b.backoffScheduler = scheduler
	}
}

func WithTokenRefresher(refresher TokenRefresher) Option {
	return func(b *serviceBuilder) {
		b.tokenRefresher = refresher
	}
}

func WithClientFactory(factory ClientFactory) Option {
	return func(b *serviceBuilder) {
		b.clientFactory = factory
	}
}

func WithConnectionStore(store ConnectionStore) Option {
	return func(b *serviceBuilder) {
		b.connectionStore = store
	}
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *serviceBuilder) {
		b.credentialStore = store
	}
}

func WithInventoryStore(store InventoryStore) Option {
	return func(b *serviceBuilder) {
		b.inventoryStore = store
	}
}

func WithSyncStatusStore(store SyncStatusStore) Option {
	return func(b *serviceBuilder) {
		b.syncStatusStore = store
	}
}

func WithTokenManager(manager *TokenManager) Option {
	return func(b *serviceBuilder) {
		b.tokenManager = manager
	}
}

func WithClientPool(pool *ClientPool) Option {
	return func(b *serviceBuilder) {
		b.clientPool = pool
	}
}

func WithStatusTracker(tracker *StatusTracker) Option {
	return func(b *serviceBuilder) {
		b.statusTracker = tracker
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("inventory-sync", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return syncErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.Sync.Enabled || cfg.Sync.Interval > 0 || cfg.Sync.WarmupDelay > 0 {
		sync := map[string]any{}
		if includeZero || cfg.Sync.Enabled {
			sync["enabled"] = cfg.Sync.Enabled
		}
		if includeZero || cfg.Sync.Interval > 0 {
			sync["interval"] = cfg.Sync.Interval
		}
		if includeZero || cfg.Sync.WarmupDelay > 0 {
			sync["warmup_delay"] = cfg.Sync.WarmupDelay
		}
		layer["sync"] = sync
	}
	if includeZero || providerConfigured(cfg.Provider) {
		provider := map[string]any{}
		if includeZero || strings.TrimSpace(cfg.Provider.BaseURL) != "" {
			provider["base_url"] = cfg.Provider.BaseURL
		}
		if includeZero || strings.TrimSpace(cfg.Provider.TokenURL) != "" {
			provider["token_url"] = cfg.Provider.TokenURL
		}
		if includeZero || strings.TrimSpace(cfg.Provider.ClientID) != "" {
			provider["client_id"] = cfg.Provider.ClientID
		}
		if includeZero || cfg.Provider.Timeout > 0 {
			provider["timeout"] = cfg.Provider.Timeout
		}
		if includeZero || cfg.Provider.MaxAttempts > 0 {
			provider["max_attempts"] = cfg.Provider.MaxAttempts
		}
		layer["provider"] = provider
	}
	if includeZero || cfg.Token.ExpiryBuffer > 0 {
		layer["token"] = map[string]any{
			"expiry_buffer": cfg.Token.ExpiryBuffer,
		}
	}
	return layer
}

func providerConfigured(cfg ProviderConfig) bool {
	return strings.TrimSpace(cfg.BaseURL) != "" ||
		strings.TrimSpace(cfg.TokenURL) != "" ||
		strings.TrimSpace(cfg.ClientID) != "" ||
		cfg.Timeout > 0 ||
		cfg.MaxAttempts > 0
}
