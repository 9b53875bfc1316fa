package sqlstore

import (
	"time"

	"github.com/goliatone/go-inventory-sync/core"
)

func newConnectionRecord(in core.CreateConnectionInput, now time.Time) *connectionRecord {
	return &connectionRecord{
		OwnerID:   in.OwnerID,
		Name:      in.Name,
		Kind:      in.Kind,
		Active:    in.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *connectionRecord) toDomain() core.Connection {
	if r == nil {
		return core.Connection{}
	}
	return core.Connection{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Kind:      r.Kind,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *credentialRecord) toDomain() core.Credential {
	if r == nil {
		return core.Credential{}
	}
	credential := core.Credential{
		ID:           r.ID,
		ConnectionID: r.ConnectionID,
		RefreshToken: r.RefreshToken,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.RefreshTokenExpiresAt != nil {
		credential.RefreshTokenExpiresAt = *r.RefreshTokenExpiresAt
	}
	return credential
}

func (r *organizationRecord) toDomain() core.Organization {
	if r == nil {
		return core.Organization{}
	}
	return core.Organization{
		ID:           r.ID,
		ConnectionID: r.ConnectionID,
		ExternalID:   r.ExternalID,
		Name:         r.Name,
		URL:          r.URL,
		IsDeleted:    r.IsDeleted,
		LastSyncedAt: r.LastSyncedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r *networkRecord) toDomain() core.Network {
	if r == nil {
		return core.Network{}
	}
	return core.Network{
		ID:                     r.ID,
		ConnectionID:           r.ConnectionID,
		ExternalID:             r.ExternalID,
		OrganizationExternalID: r.OrganizationExternalID,
		Name:                   r.Name,
		TimeZone:               r.TimeZone,
		Tags:                   append([]string(nil), r.Tags...),
		IsDeleted:              r.IsDeleted,
		LastSyncedAt:           r.LastSyncedAt,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

func (r *deviceRecord) toDomain() core.Device {
	if r == nil {
		return core.Device{}
	}
	return core.Device{
		ID:                r.ID,
		ConnectionID:      r.ConnectionID,
		ExternalID:        r.ExternalID,
		NetworkExternalID: r.NetworkExternalID,
		Name:              r.Name,
		Model:             r.Model,
		Serial:            r.Serial,
		MACAddress:        r.MACAddress,
		Status:            r.Status,
		IsDeleted:         r.IsDeleted,
		LastSyncedAt:      r.LastSyncedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (r *syncStatusRecord) toDomain() core.SyncStatus {
	if r == nil {
		return core.SyncStatus{}
	}
	status := core.SyncStatus{
		ConnectionID:      r.ConnectionID,
		State:             core.SyncState(r.State),
		CurrentStep:       r.CurrentStep,
		CurrentStepNumber: r.CurrentStepNumber,
		TotalSteps:        r.TotalSteps,
		Error:             r.Error,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.SyncStartedAt != nil {
		startedAt := *r.SyncStartedAt
		status.SyncStartedAt = &startedAt
	}
	if r.SyncCompletedAt != nil {
		completedAt := *r.SyncCompletedAt
		status.SyncCompletedAt = &completedAt
	}
	return status
}
