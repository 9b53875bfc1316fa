package inventorysync

import (
	"fmt"

	inventorycommand "github.com/goliatone/go-inventory-sync/command"
	"github.com/goliatone/go-inventory-sync/core"
	inventoryquery "github.com/goliatone/go-inventory-sync/query"
)

type CommandQueryService interface {
	inventorycommand.MutatingService
	inventoryquery.SyncStatusReader
	inventoryquery.ConnectionReader
}

type Commands struct {
	CreateConnection *inventorycommand.CreateConnectionCommand
	SaveCredential   *inventorycommand.SaveCredentialCommand
	TriggerSync      *inventorycommand.TriggerSyncCommand
	Disconnect       *inventorycommand.DisconnectCommand
}

type Queries struct {
	GetSyncStatus     *inventoryquery.GetSyncStatusQuery
	GetConnection     *inventoryquery.GetConnectionQuery
	ListOrganizations *inventoryquery.ListOrganizationsQuery
	ListNetworks      *inventoryquery.ListNetworksQuery
	ListDevices       *inventoryquery.ListDevicesQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	syncStarter     inventorycommand.SyncStarter
	inventoryReader inventoryquery.InventoryReader
}

// WithSyncStarter wires the handler behind the TriggerSync command. Without
// it the facade falls back to the service itself when it implements the
// interface, otherwise TriggerSync fails at execution time.
func WithSyncStarter(starter inventorycommand.SyncStarter) FacadeOption {
	return func(options *facadeOptions) {
		options.syncStarter = starter
	}
}

func WithInventoryReader(reader inventoryquery.InventoryReader) FacadeOption {
	return func(options *facadeOptions) {
		options.inventoryReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("inventorysync: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	starter := cfg.syncStarter
	if starter == nil {
		starter, _ = service.(inventorycommand.SyncStarter)
	}
	reader := cfg.inventoryReader
	if reader == nil {
		reader = resolveInventoryReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateConnection: inventorycommand.NewCreateConnectionCommand(service),
		SaveCredential:   inventorycommand.NewSaveCredentialCommand(service),
		TriggerSync:      inventorycommand.NewTriggerSyncCommand(starter),
		Disconnect:       inventorycommand.NewDisconnectCommand(service),
	}
	facade.queries = Queries{
		GetSyncStatus:     inventoryquery.NewGetSyncStatusQuery(service),
		GetConnection:     inventoryquery.NewGetConnectionQuery(service),
		ListOrganizations: inventoryquery.NewListOrganizationsQuery(reader),
		ListNetworks:      inventoryquery.NewListNetworksQuery(reader),
		ListDevices:       inventoryquery.NewListDevicesQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveInventoryReader(service CommandQueryService) inventoryquery.InventoryReader {
	if service == nil {
		return nil
	}
	if reader, ok := service.(inventoryquery.InventoryReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if deps.InventoryStore == nil {
		return nil
	}
	return deps.InventoryStore
}
