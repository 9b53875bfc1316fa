package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type connectionRecord struct {
	bun.BaseModel `bun:"table:inventory_connections,alias:ic"`

	ID        string    `bun:"id,pk"`
	OwnerID   string    `bun:"owner_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Kind      string    `bun:"kind,notnull"`
	Active    bool      `bun:"active,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type credentialRecord struct {
	bun.BaseModel `bun:"table:inventory_credentials,alias:icr"`

	ID                    string     `bun:"id,pk"`
	ConnectionID          string     `bun:"connection_id,notnull,unique"`
	RefreshToken          string     `bun:"refresh_token,notnull"`
	RefreshTokenExpiresAt *time.Time `bun:"refresh_token_expires_at,nullzero"`
	CreatedAt             time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type organizationRecord struct {
	bun.BaseModel `bun:"table:inventory_organizations,alias:io"`

	ID           string    `bun:"id,pk"`
	ConnectionID string    `bun:"connection_id,notnull"`
	ExternalID   string    `bun:"external_id,notnull"`
	Name         string    `bun:"name,notnull"`
	URL          string    `bun:"url"`
	IsDeleted    bool      `bun:"is_deleted,notnull"`
	LastSyncedAt time.Time `bun:"last_synced_at,nullzero,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type networkRecord struct {
	bun.BaseModel `bun:"table:inventory_networks,alias:in"`

	ID                     string    `bun:"id,pk"`
	ConnectionID           string    `bun:"connection_id,notnull"`
	ExternalID             string    `bun:"external_id,notnull"`
	OrganizationExternalID string    `bun:"organization_external_id,notnull"`
	Name                   string    `bun:"name,notnull"`
	TimeZone               string    `bun:"time_zone"`
	Tags                   []string  `bun:"tags,type:jsonb,notnull"`
	IsDeleted              bool      `bun:"is_deleted,notnull"`
	LastSyncedAt           time.Time `bun:"last_synced_at,nullzero,notnull"`
	CreatedAt              time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt              time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deviceRecord struct {
	bun.BaseModel `bun:"table:inventory_devices,alias:id"`

	ID                string    `bun:"id,pk"`
	ConnectionID      string    `bun:"connection_id,notnull"`
	ExternalID        string    `bun:"external_id,notnull"`
	NetworkExternalID string    `bun:"network_external_id,notnull"`
	Name              string    `bun:"name,notnull"`
	Model             string    `bun:"model"`
	Serial            string    `bun:"serial"`
	MACAddress        string    `bun:"mac_address"`
	Status            string    `bun:"status"`
	IsDeleted         bool      `bun:"is_deleted,notnull"`
	LastSyncedAt      time.Time `bun:"last_synced_at,nullzero,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type syncStatusRecord struct {
	bun.BaseModel `bun:"table:inventory_sync_status,alias:iss"`

	ID                string     `bun:"id,pk"`
	ConnectionID      string     `bun:"connection_id,notnull,unique"`
	State             string     `bun:"state,notnull"`
	CurrentStep       string     `bun:"current_step"`
	CurrentStepNumber int        `bun:"current_step_number,notnull"`
	TotalSteps        int        `bun:"total_steps,notnull"`
	Error             string     `bun:"error"`
	SyncStartedAt     *time.Time `bun:"sync_started_at,nullzero"`
	SyncCompletedAt   *time.Time `bun:"sync_completed_at,nullzero"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
