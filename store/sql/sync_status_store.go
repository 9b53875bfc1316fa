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

type SyncStatusStore struct {
	db   *bun.DB
	repo repository.Repository[*syncStatusRecord]
}

func NewSyncStatusStore(db *bun.DB) (*SyncStatusStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncStatusRecord](db, syncStatusHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync status repository wiring: %w", err)
		}
	}
	return &SyncStatusStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *SyncStatusStore) GetByConnection(ctx context.Context, connectionID string) (core.SyncStatus, error) {
	if s == nil || s.repo == nil {
		return core.SyncStatus{}, fmt.Errorf("sqlstore: sync status store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return core.SyncStatus{}, fmt.Errorf("sqlstore: connection id is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("connection_id", "=", connectionID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.SyncStatus{}, err
	}
	if len(records) == 0 {
		return core.SyncStatus{}, fmt.Errorf("%w: connection %s", core.ErrSyncStatusNotFound, connectionID)
	}
	return records[0].toDomain(), nil
}

func (s *SyncStatusStore) Upsert(ctx context.Context, status core.SyncStatus) (core.SyncStatus, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.SyncStatus{}, fmt.Errorf("sqlstore: sync status store is not configured")
	}
	status.ConnectionID = strings.TrimSpace(status.ConnectionID)
	if status.ConnectionID == "" {
		return core.SyncStatus{}, fmt.Errorf("sqlstore: connection id is required")
	}
	if strings.TrimSpace(string(status.State)) == "" {
		status.State = core.SyncStateNotStarted
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}

	var out core.SyncStatus
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &syncStatusRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.connection_id = ?", status.ConnectionID).
			Limit(1).
			Scan(ctx)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		if err == sql.ErrNoRows {
			record = &syncStatusRecord{
				ID:           uuid.NewString(),
				ConnectionID: status.ConnectionID,
			}
			applyStatus(record, status)
			if _, insertErr := s.repo.CreateTx(ctx, tx, record); insertErr != nil {
				if !isUniqueViolation(insertErr) {
					return insertErr
				}
				retry := &syncStatusRecord{}
				if scanErr := tx.NewSelect().
					Model(retry).
					Where("?TableAlias.connection_id = ?", status.ConnectionID).
					Limit(1).
					Scan(ctx); scanErr != nil {
					return insertErr
				}
				record = retry
				applyStatus(record, status)
				if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
					return updateErr
				}
			}
			out = record.toDomain()
			return nil
		}

		applyStatus(record, status)
		if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.SyncStatus{}, err
	}
	return out, nil
}

func applyStatus(record *syncStatusRecord, status core.SyncStatus) {
	record.State = string(status.State)
	record.CurrentStep = status.CurrentStep
	record.CurrentStepNumber = status.CurrentStepNumber
	record.TotalSteps = status.TotalSteps
	record.Error = status.Error
	record.UpdatedAt = status.UpdatedAt.UTC()
	if status.SyncStartedAt != nil {
		startedAt := status.SyncStartedAt.UTC()
		record.SyncStartedAt = &startedAt
	} else {
		record.SyncStartedAt = nil
	}
	if status.SyncCompletedAt != nil {
		completedAt := status.SyncCompletedAt.UTC()
		record.SyncCompletedAt = &completedAt
	} else {
		record.SyncCompletedAt = nil
	}
}
