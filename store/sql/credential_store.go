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

// CredentialStore keeps exactly one refresh credential per connection. Upsert
// overwrites the stored token in place so a rotated refresh token replaces
// its predecessor atomically.
type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
}

func NewCredentialStore(db *bun.DB) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	return &CredentialStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *CredentialStore) GetByConnection(ctx context.Context, connectionID string) (core.Credential, error) {
	if s == nil || s.repo == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: connection id is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("connection_id", "=", connectionID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Credential{}, err
	}
	if len(records) == 0 {
		return core.Credential{}, fmt.Errorf("%w: connection %s", core.ErrCredentialNotFound, connectionID)
	}
	return records[0].toDomain(), nil
}

func (s *CredentialStore) Upsert(ctx context.Context, in core.UpsertCredentialInput) (core.Credential, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	in.ConnectionID = strings.TrimSpace(in.ConnectionID)
	in.RefreshToken = strings.TrimSpace(in.RefreshToken)
	if in.ConnectionID == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: connection id is required")
	}
	if in.RefreshToken == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: refresh token is required")
	}

	now := time.Now().UTC()
	var out core.Credential
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findCredentialTx(ctx, tx, in.ConnectionID)
		if err != nil {
			return err
		}
		if record == nil {
			record = &credentialRecord{
				ID:           uuid.NewString(),
				ConnectionID: in.ConnectionID,
				RefreshToken: in.RefreshToken,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if !in.RefreshTokenExpiresAt.IsZero() {
				expiresAt := in.RefreshTokenExpiresAt.UTC()
				record.RefreshTokenExpiresAt = &expiresAt
			}
			if inserted, insertErr := s.repo.CreateTx(ctx, tx, record); insertErr != nil {
				if isUniqueViolation(insertErr) {
					record, err = findCredentialTx(ctx, tx, in.ConnectionID)
					if err != nil {
						return err
					}
					if record == nil {
						return insertErr
					}
				} else {
					return insertErr
				}
			} else {
				out = inserted.toDomain()
				return nil
			}
		}

		record.RefreshToken = in.RefreshToken
		if in.RefreshTokenExpiresAt.IsZero() {
			record.RefreshTokenExpiresAt = nil
		} else {
			expiresAt := in.RefreshTokenExpiresAt.UTC()
			record.RefreshTokenExpiresAt = &expiresAt
		}
		record.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Credential{}, err
	}
	return out, nil
}

func (s *CredentialStore) DeleteByConnection(ctx context.Context, connectionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("connection_id = ?", connectionID).
		Exec(ctx)
	return err
}

func findCredentialTx(ctx context.Context, tx bun.Tx, connectionID string) (*credentialRecord, error) {
	record := &credentialRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.connection_id = ?", strings.TrimSpace(connectionID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
