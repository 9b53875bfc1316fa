package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inventory-sync/core"
)

type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
}

func NewConnectionStore(db *bun.DB) (*ConnectionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*connectionRecord](db, connectionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}
	return &ConnectionStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *ConnectionStore) Create(ctx context.Context, in core.CreateConnectionInput) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Name = strings.TrimSpace(in.Name)
	in.Kind = strings.TrimSpace(in.Kind)
	if in.OwnerID == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: owner id is required")
	}
	if in.Kind == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: connection kind is required")
	}

	record := newConnectionRecord(in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Connection{}, err
	}
	return created.toDomain(), nil
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: connection id is required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return core.Connection{}, fmt.Errorf("%w: %s", core.ErrConnectionNotFound, id)
		}
		return core.Connection{}, err
	}
	return record.toDomain(), nil
}

// ListSyncable returns active connections whose persisted refresh token has
// not expired at now. Connections without a credential row are skipped; they
// cannot mint an access token yet.
func (s *ConnectionStore) ListSyncable(ctx context.Context, now time.Time) ([]core.Connection, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}

	records := []*connectionRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Join("JOIN inventory_credentials AS icr ON icr.connection_id = ?TableAlias.id").
		Where("?TableAlias.active = ?", true).
		Where("icr.refresh_token_expires_at IS NULL OR icr.refresh_token_expires_at > ?", now.UTC()).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.Connection, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *ConnectionStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	_, err := s.db.NewDelete().
		Model((*connectionRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "no rows") || strings.Contains(message, "not found")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
