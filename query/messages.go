package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetSyncStatus     = "inventory.query.sync_status.get"
	TypeGetConnection     = "inventory.query.connection.get"
	TypeListOrganizations = "inventory.query.organizations.list"
	TypeListNetworks      = "inventory.query.networks.list"
	TypeListDevices       = "inventory.query.devices.list"
)

type GetSyncStatusMessage struct {
	ConnectionID string
}

func (GetSyncStatusMessage) Type() string { return TypeGetSyncStatus }

func (m GetSyncStatusMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("query: connection id is required")
	}
	return nil
}

type GetConnectionMessage struct {
	ConnectionID string
}

func (GetConnectionMessage) Type() string { return TypeGetConnection }

func (m GetConnectionMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("query: connection id is required")
	}
	return nil
}

type ListOrganizationsMessage struct {
	ConnectionID   string
	IncludeDeleted bool
}

func (ListOrganizationsMessage) Type() string { return TypeListOrganizations }

func (m ListOrganizationsMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("query: connection id is required")
	}
	return nil
}

type ListNetworksMessage struct {
	ConnectionID           string
	OrganizationExternalID string
	IncludeDeleted         bool
}

func (ListNetworksMessage) Type() string { return TypeListNetworks }

func (m ListNetworksMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("query: connection id is required")
	}
	return nil
}

type ListDevicesMessage struct {
	ConnectionID      string
	NetworkExternalID string
	IncludeDeleted    bool
}

func (ListDevicesMessage) Type() string { return TypeListDevices }

func (m ListDevicesMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("query: connection id is required")
	}
	return nil
}
