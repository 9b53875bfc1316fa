package query

import (
	"context"

	"github.com/goliatone/go-inventory-sync/core"
)

type SyncStatusReader interface {
	SyncStatusFor(ctx context.Context, connectionID string) (core.SyncStatus, error)
}

type ConnectionReader interface {
	GetConnection(ctx context.Context, connectionID string) (core.Connection, error)
}

type InventoryReader interface {
	ListOrganizations(ctx context.Context, connectionID string, includeDeleted bool) ([]core.Organization, error)
	ListNetworks(ctx context.Context, connectionID string, organizationExternalID string, includeDeleted bool) ([]core.Network, error)
	ListDevices(ctx context.Context, connectionID string, networkExternalID string, includeDeleted bool) ([]core.Device, error)
}

type GetSyncStatusQuery struct {
	reader SyncStatusReader
}

func NewGetSyncStatusQuery(reader SyncStatusReader) *GetSyncStatusQuery {
	return &GetSyncStatusQuery{reader: reader}
}

func (q *GetSyncStatusQuery) Query(ctx context.Context, msg GetSyncStatusMessage) (core.SyncStatus, error) {
	if q == nil || q.reader == nil {
		return core.SyncStatus{}, queryDependencyError("query: sync status reader is required")
	}
	return q.reader.SyncStatusFor(ctx, msg.ConnectionID)
}

type GetConnectionQuery struct {
	reader ConnectionReader
}

func NewGetConnectionQuery(reader ConnectionReader) *GetConnectionQuery {
	return &GetConnectionQuery{reader: reader}
}

func (q *GetConnectionQuery) Query(ctx context.Context, msg GetConnectionMessage) (core.Connection, error) {
	if q == nil || q.reader == nil {
		return core.Connection{}, queryDependencyError("query: connection reader is required")
	}
	return q.reader.GetConnection(ctx, msg.ConnectionID)
}

type ListOrganizationsQuery struct {
	reader InventoryReader
}

func NewListOrganizationsQuery(reader InventoryReader) *ListOrganizationsQuery {
	return &ListOrganizationsQuery{reader: reader}
}

func (q *ListOrganizationsQuery) Query(
	ctx context.Context,
	msg ListOrganizationsMessage,
) ([]core.Organization, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: inventory reader is required")
	}
	return q.reader.ListOrganizations(ctx, msg.ConnectionID, msg.IncludeDeleted)
}

type ListNetworksQuery struct {
	reader InventoryReader
}

func NewListNetworksQuery(reader InventoryReader) *ListNetworksQuery {
	return &ListNetworksQuery{reader: reader}
}

func (q *ListNetworksQuery) Query(ctx context.Context, msg ListNetworksMessage) ([]core.Network, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: inventory reader is required")
	}
	return q.reader.ListNetworks(ctx, msg.ConnectionID, msg.OrganizationExternalID, msg.IncludeDeleted)
}

type ListDevicesQuery struct {
	reader InventoryReader
}

func NewListDevicesQuery(reader InventoryReader) *ListDevicesQuery {
	return &ListDevicesQuery{reader: reader}
}

func (q *ListDevicesQuery) Query(ctx context.Context, msg ListDevicesMessage) ([]core.Device, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: inventory reader is required")
	}
	return q.reader.ListDevices(ctx, msg.ConnectionID, msg.NetworkExternalID, msg.IncludeDeleted)
}
