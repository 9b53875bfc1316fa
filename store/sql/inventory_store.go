package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inventory-sync/core"
)

// InventoryStore mirrors the provider's hierarchy into local tables. Rows key
// on (connection id, external id): inserts stamp CreatedAt once, updates
// preserve it and revive soft-deleted rows. MarkMissing* flips is_deleted on
// rows at a scope whose external id was not seen in the latest fetch; nothing
// is physically removed until DeleteByConnection.
type InventoryStore struct {
	db *bun.DB

	organizationRepo repository.Repository[*organizationRecord]
	networkRepo      repository.Repository[*networkRecord]
	deviceRepo       repository.Repository[*deviceRecord]
}

func NewInventoryStore(db *bun.DB) (*InventoryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	organizationRepo := repository.NewRepository[*organizationRecord](db, organizationHandlers())
	if validator, ok := organizationRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid organization repository wiring: %w", err)
		}
	}
	networkRepo := repository.NewRepository[*networkRecord](db, networkHandlers())
	if validator, ok := networkRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid network repository wiring: %w", err)
		}
	}
	deviceRepo := repository.NewRepository[*deviceRecord](db, deviceHandlers())
	if validator, ok := deviceRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid device repository wiring: %w", err)
		}
	}
	return &InventoryStore{
		db:               db,
		organizationRepo: organizationRepo,
		networkRepo:      networkRepo,
		deviceRepo:       deviceRepo,
	}, nil
}

func (s *InventoryStore) ListOrganizations(ctx context.Context, connectionID string, includeDeleted bool) ([]core.Organization, error) {
	if s == nil || s.organizationRepo == nil {
		return nil, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return nil, fmt.Errorf("sqlstore: connection id is required")
	}

	selectors := []repository.SelectCriteria{
		repository.SelectBy("connection_id", "=", connectionID),
		repository.OrderBy("external_id ASC"),
	}
	if !includeDeleted {
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.is_deleted = ?", false)
		}))
	}
	records, _, err := s.organizationRepo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}

	out := make([]core.Organization, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *InventoryStore) UpsertOrganization(ctx context.Context, in core.UpsertOrganizationInput) (core.Organization, error) {
	if s == nil || s.db == nil || s.organizationRepo == nil {
		return core.Organization{}, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	in.ConnectionID = strings.TrimSpace(in.ConnectionID)
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.ConnectionID == "" || in.ExternalID == "" {
		return core.Organization{}, fmt.Errorf("sqlstore: connection id and external id are required")
	}
	syncedAt := in.SyncedAt.UTC()
	if in.SyncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}

	var out core.Organization
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &organizationRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.connection_id = ?", in.ConnectionID).
			Where("?TableAlias.external_id = ?", in.ExternalID).
			Limit(1).
			Scan(ctx)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		if err == sql.ErrNoRows {
			record = &organizationRecord{
				ID:           uuid.NewString(),
				ConnectionID: in.ConnectionID,
				ExternalID:   in.ExternalID,
				Name:         strings.TrimSpace(in.Name),
				URL:          strings.TrimSpace(in.URL),
				LastSyncedAt: syncedAt,
				CreatedAt:    syncedAt,
				UpdatedAt:    syncedAt,
			}
			inserted, insertErr := s.organizationRepo.CreateTx(ctx, tx, record)
			if insertErr != nil {
				return insertErr
			}
			out = inserted.toDomain()
			return nil
		}

		record.Name = strings.TrimSpace(in.Name)
		record.URL = strings.TrimSpace(in.URL)
		record.IsDeleted = false
		record.LastSyncedAt = syncedAt
		record.UpdatedAt = syncedAt
		if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Organization{}, err
	}
	return out, nil
}

func (s *InventoryStore) MarkMissingOrganizationsDeleted(ctx context.Context, connectionID string, seenExternalIDs []string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return 0, fmt.Errorf("sqlstore: connection id is required")
	}

	query := s.db.NewUpdate().
		Model((*organizationRecord)(nil)).
		Set("is_deleted = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("connection_id = ?", connectionID).
		Where("is_deleted = ?", false)
	if seen := normalizeExternalIDs(seenExternalIDs); len(seen) > 0 {
		query = query.Where("external_id NOT IN (?)", bun.In(seen))
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return rowsAffected(result), nil
}

func (s *InventoryStore) ListNetworks(ctx context.Context, connectionID string, organizationExternalID string, includeDeleted bool) ([]core.Network, error) {
	if s == nil || s.networkRepo == nil {
		return nil, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return nil, fmt.Errorf("sqlstore: connection id is required")
	}

	selectors := []repository.SelectCriteria{
		repository.SelectBy("connection_id", "=", connectionID),
		repository.OrderBy("external_id ASC"),
	}
	if organizationExternalID = strings.TrimSpace(organizationExternalID); organizationExternalID != "" {
		selectors = append(selectors, repository.SelectBy("organization_external_id", "=", organizationExternalID))
	}
	if !includeDeleted {
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.is_deleted = ?", false)
		}))
	}
	records, _, err := s.networkRepo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}

	out := make([]core.Network, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *InventoryStore) UpsertNetwork(ctx context.Context, in core.UpsertNetworkInput) (core.Network, error) {
	if s == nil || s.db == nil || s.networkRepo == nil {
		return core.Network{}, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	in.ConnectionID = strings.TrimSpace(in.ConnectionID)
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	in.OrganizationExternalID = strings.TrimSpace(in.OrganizationExternalID)
	if in.ConnectionID == "" || in.ExternalID == "" {
		return core.Network{}, fmt.Errorf("sqlstore: connection id and external id are required")
	}
	if in.OrganizationExternalID == "" {
		return core.Network{}, fmt.Errorf("sqlstore: organization external id is required")
	}
	syncedAt := in.SyncedAt.UTC()
	if in.SyncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}
	tags := append([]string(nil), in.Tags...)
	if tags == nil {
		tags = []string{}
	}

	var out core.Network
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &networkRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.connection_id = ?", in.ConnectionID).
			Where("?TableAlias.external_id = ?", in.ExternalID).
			Limit(1).
			Scan(ctx)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		if err == sql.ErrNoRows {
			record = &networkRecord{
				ID:                     uuid.NewString(),
				ConnectionID:           in.ConnectionID,
				ExternalID:             in.ExternalID,
				OrganizationExternalID: in.OrganizationExternalID,
				Name:                   strings.TrimSpace(in.Name),
				TimeZone:               strings.TrimSpace(in.TimeZone),
				Tags:                   tags,
				LastSyncedAt:           syncedAt,
				CreatedAt:              syncedAt,
				UpdatedAt:              syncedAt,
			}
			inserted, insertErr := s.networkRepo.CreateTx(ctx, tx, record)
			if insertErr != nil {
				return insertErr
			}
			out = inserted.toDomain()
			return nil
		}

		record.OrganizationExternalID = in.OrganizationExternalID
		record.Name = strings.TrimSpace(in.Name)
		record.TimeZone = strings.TrimSpace(in.TimeZone)
		record.Tags = tags
		record.IsDeleted = false
		record.LastSyncedAt = syncedAt
		record.UpdatedAt = syncedAt
		if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Network{}, err
	}
	return out, nil
}

func (s *InventoryStore) MarkMissingNetworksDeleted(ctx context.Context, connectionID string, organizationExternalID string, seenExternalIDs []string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	organizationExternalID = strings.TrimSpace(organizationExternalID)
	if connectionID == "" || organizationExternalID == "" {
		return 0, fmt.Errorf("sqlstore: connection id and organization external id are required")
	}

	query := s.db.NewUpdate().
		Model((*networkRecord)(nil)).
		Set("is_deleted = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("connection_id = ?", connectionID).
		Where("organization_external_id = ?", organizationExternalID).
		Where("is_deleted = ?", false)
	if seen := normalizeExternalIDs(seenExternalIDs); len(seen) > 0 {
		query = query.Where("external_id NOT IN (?)", bun.In(seen))
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return rowsAffected(result), nil
}

func (s *InventoryStore) ListDevices(ctx context.Context, connectionID string, networkExternalID string, includeDeleted bool) ([]core.Device, error) {
	if s == nil || s.deviceRepo == nil {
		return nil, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return nil, fmt.Errorf("sqlstore: connection id is required")
	}

	selectors := []repository.SelectCriteria{
		repository.SelectBy("connection_id", "=", connectionID),
		repository.OrderBy("external_id ASC"),
	}
	if networkExternalID = strings.TrimSpace(networkExternalID); networkExternalID != "" {
		selectors = append(selectors, repository.SelectBy("network_external_id", "=", networkExternalID))
	}
	if !includeDeleted {
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.is_deleted = ?", false)
		}))
	}
	records, _, err := s.deviceRepo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}

	out := make([]core.Device, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *InventoryStore) UpsertDevice(ctx context.Context, in core.UpsertDeviceInput) (core.Device, error) {
	if s == nil || s.db == nil || s.deviceRepo == nil {
		return core.Device{}, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	in.ConnectionID = strings.TrimSpace(in.ConnectionID)
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	in.NetworkExternalID = strings.TrimSpace(in.NetworkExternalID)
	if in.ConnectionID == "" || in.ExternalID == "" {
		return core.Device{}, fmt.Errorf("sqlstore: connection id and external id are required")
	}
	if in.NetworkExternalID == "" {
		return core.Device{}, fmt.Errorf("sqlstore: network external id is required")
	}
	syncedAt := in.SyncedAt.UTC()
	if in.SyncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}

	var out core.Device
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &deviceRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.connection_id = ?", in.ConnectionID).
			Where("?TableAlias.external_id = ?", in.ExternalID).
			Limit(1).
			Scan(ctx)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		if err == sql.ErrNoRows {
			record = &deviceRecord{
				ID:                uuid.NewString(),
				ConnectionID:      in.ConnectionID,
				ExternalID:        in.ExternalID,
				NetworkExternalID: in.NetworkExternalID,
				Name:              strings.TrimSpace(in.Name),
				Model:             strings.TrimSpace(in.Model),
				Serial:            strings.TrimSpace(in.Serial),
				MACAddress:        strings.TrimSpace(in.MACAddress),
				Status:            strings.TrimSpace(in.Status),
				LastSyncedAt:      syncedAt,
				CreatedAt:         syncedAt,
				UpdatedAt:         syncedAt,
			}
			inserted, insertErr := s.deviceRepo.CreateTx(ctx, tx, record)
			if insertErr != nil {
				return insertErr
			}
			out = inserted.toDomain()
			return nil
		}

		record.NetworkExternalID = in.NetworkExternalID
		record.Name = strings.TrimSpace(in.Name)
		record.Model = strings.TrimSpace(in.Model)
		record.Serial = strings.TrimSpace(in.Serial)
		record.MACAddress = strings.TrimSpace(in.MACAddress)
		record.Status = strings.TrimSpace(in.Status)
		record.IsDeleted = false
		record.LastSyncedAt = syncedAt
		record.UpdatedAt = syncedAt
		if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Device{}, err
	}
	return out, nil
}

func (s *InventoryStore) MarkMissingDevicesDeleted(ctx context.Context, connectionID string, networkExternalID string, seenExternalIDs []string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	networkExternalID = strings.TrimSpace(networkExternalID)
	if connectionID == "" || networkExternalID == "" {
		return 0, fmt.Errorf("sqlstore: connection id and network external id are required")
	}

	query := s.db.NewUpdate().
		Model((*deviceRecord)(nil)).
		Set("is_deleted = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("connection_id = ?", connectionID).
		Where("network_external_id = ?", networkExternalID).
		Where("is_deleted = ?", false)
	if seen := normalizeExternalIDs(seenExternalIDs); len(seen) > 0 {
		query = query.Where("external_id NOT IN (?)", bun.In(seen))
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return rowsAffected(result), nil
}

// DeleteByConnection removes every mirrored row for a connection; used on
// disconnect only.
func (s *InventoryStore) DeleteByConnection(ctx context.Context, connectionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: inventory store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*deviceRecord)(nil)).
			Where("connection_id = ?", connectionID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*networkRecord)(nil)).
			Where("connection_id = ?", connectionID).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*organizationRecord)(nil)).
			Where("connection_id = ?", connectionID).
			Exec(ctx)
		return err
	})
}

func normalizeExternalIDs(input []string) []string {
	out := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func rowsAffected(result sql.Result) int {
	if result == nil {
		return 0
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	return int(affected)
}
