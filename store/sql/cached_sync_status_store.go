package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-inventory-sync/core"
)

const syncStatusCacheKeyPrefix = "go-inventory-sync::sync_status::v1"

// CachedSyncStatusStore fronts the sync status table with a read-through
// cache. Status is the hottest read path, polled by UIs and the scheduler,
// while writes only arrive through the orchestrator, so the cache is
// invalidated on Upsert and repopulated on the next read.
type CachedSyncStatusStore struct {
	base  core.SyncStatusStore
	cache repositorycache.CacheService
}

func NewCachedSyncStatusStore(
	base core.SyncStatusStore,
	cacheService repositorycache.CacheService,
) (*CachedSyncStatusStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base sync status store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: sync status cache service is required")
	}
	return &CachedSyncStatusStore{base: base, cache: cacheService}, nil
}

// SyncStatusCacheKey returns the deterministic cache key for one connection's
// status row: go-inventory-sync::sync_status::v1::<connection_id>, with the
// connection id URL-path escaped.
func SyncStatusCacheKey(connectionID string) (string, error) {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return "", fmt.Errorf("sqlstore: connection id is required")
	}
	return syncStatusCacheKeyPrefix + "::" + url.PathEscape(connectionID), nil
}

func (s *CachedSyncStatusStore) GetByConnection(ctx context.Context, connectionID string) (core.SyncStatus, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.SyncStatus{}, fmt.Errorf("sqlstore: cached sync status store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	cacheKey, err := SyncStatusCacheKey(connectionID)
	if err != nil {
		return core.SyncStatus{}, err
	}

	status, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.SyncStatus, error) {
		return s.base.GetByConnection(ctx, connectionID)
	})
	if err != nil {
		return core.SyncStatus{}, err
	}
	return status, nil
}

func (s *CachedSyncStatusStore) Upsert(ctx context.Context, status core.SyncStatus) (core.SyncStatus, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.SyncStatus{}, fmt.Errorf("sqlstore: cached sync status store is not configured")
	}

	saved, err := s.base.Upsert(ctx, status)
	if err != nil {
		return core.SyncStatus{}, err
	}

	cacheKey, keyErr := SyncStatusCacheKey(saved.ConnectionID)
	if keyErr != nil {
		return core.SyncStatus{}, keyErr
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.SyncStatus{}, err
	}
	return saved, nil
}

var _ core.SyncStatusStore = (*CachedSyncStatusStore)(nil)
