package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-inventory-sync/core"
)

var (
	_ gocmd.Querier[GetSyncStatusMessage, core.SyncStatus]         = (*GetSyncStatusQuery)(nil)
	_ gocmd.Querier[GetConnectionMessage, core.Connection]         = (*GetConnectionQuery)(nil)
	_ gocmd.Querier[ListOrganizationsMessage, []core.Organization] = (*ListOrganizationsQuery)(nil)
	_ gocmd.Querier[ListNetworksMessage, []core.Network]           = (*ListNetworksQuery)(nil)
	_ gocmd.Querier[ListDevicesMessage, []core.Device]             = (*ListDevicesQuery)(nil)
)
