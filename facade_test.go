package inventorysync

import (
	"context"
	"fmt"
	"testing"
	"time"

	inventorycommand "github.com/goliatone/go-inventory-sync/command"
	"github.com/goliatone/go-inventory-sync/core"
	inventoryquery "github.com/goliatone/go-inventory-sync/query"
)

type fakeCommandQueryService struct {
	deps      core.ServiceDependencies
	started   []string
	startable bool
}

func (s *fakeCommandQueryService) CreateConnection(_ context.Context, in core.CreateConnectionInput) (core.Connection, error) {
	return core.Connection{ID: "conn_1", OwnerID: in.OwnerID, Kind: in.Kind}, nil
}

func (s *fakeCommandQueryService) SaveCredential(_ context.Context, in core.UpsertCredentialInput) (core.Credential, error) {
	return core.Credential{ID: "cred_1", ConnectionID: in.ConnectionID, RefreshToken: in.RefreshToken}, nil
}

func (s *fakeCommandQueryService) Disconnect(context.Context, string) error {
	return nil
}

func (s *fakeCommandQueryService) SyncStatusFor(_ context.Context, connectionID string) (core.SyncStatus, error) {
	return core.SyncStatus{ConnectionID: connectionID, State: core.SyncStateNotStarted}, nil
}

func (s *fakeCommandQueryService) GetConnection(_ context.Context, connectionID string) (core.Connection, error) {
	return core.Connection{ID: connectionID}, nil
}

func (s *fakeCommandQueryService) Start(_ context.Context, connectionID string) error {
	if !s.startable {
		return fmt.Errorf("starter not configured")
	}
	s.started = append(s.started, connectionID)
	return nil
}

func (s *fakeCommandQueryService) Dependencies() core.ServiceDependencies {
	return s.deps
}

type recordingStarter struct {
	started []string
}

func (s *recordingStarter) Start(_ context.Context, connectionID string) error {
	s.started = append(s.started, connectionID)
	return nil
}

type emptyInventoryStore struct{}

func (emptyInventoryStore) ListOrganizations(context.Context, string, bool) ([]core.Organization, error) {
	return nil, nil
}

func (emptyInventoryStore) UpsertOrganization(context.Context, core.UpsertOrganizationInput) (core.Organization, error) {
	return core.Organization{}, nil
}

func (emptyInventoryStore) MarkMissingOrganizationsDeleted(context.Context, string, []string) (int, error) {
	return 0, nil
}

func (emptyInventoryStore) ListNetworks(context.Context, string, string, bool) ([]core.Network, error) {
	return nil, nil
}

func (emptyInventoryStore) UpsertNetwork(context.Context, core.UpsertNetworkInput) (core.Network, error) {
	return core.Network{}, nil
}

func (emptyInventoryStore) MarkMissingNetworksDeleted(context.Context, string, string, []string) (int, error) {
	return 0, nil
}

func (emptyInventoryStore) ListDevices(context.Context, string, string, bool) ([]core.Device, error) {
	return nil, nil
}

func (emptyInventoryStore) UpsertDevice(context.Context, core.UpsertDeviceInput) (core.Device, error) {
	return core.Device{}, nil
}

func (emptyInventoryStore) MarkMissingDevicesDeleted(context.Context, string, string, []string) (int, error) {
	return 0, nil
}

func (emptyInventoryStore) DeleteByConnection(context.Context, string) error {
	return nil
}

func TestNewFacade_RequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected nil service rejection")
	}
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	service := &fakeCommandQueryService{}
	facade, err := NewFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.CreateConnection == nil || commands.SaveCredential == nil ||
		commands.TriggerSync == nil || commands.Disconnect == nil {
		t.Fatalf("expected all commands wired: %#v", commands)
	}
	queries := facade.Queries()
	if queries.GetSyncStatus == nil || queries.GetConnection == nil ||
		queries.ListOrganizations == nil || queries.ListNetworks == nil || queries.ListDevices == nil {
		t.Fatalf("expected all queries wired: %#v", queries)
	}
	if facade.Service() == nil {
		t.Fatalf("expected service accessor")
	}
}

func TestNewFacade_StarterOptionOverridesServiceFallback(t *testing.T) {
	service := &fakeCommandQueryService{startable: true}
	starter := &recordingStarter{}

	facade, err := NewFacade(service, WithSyncStarter(starter))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if err := facade.Commands().TriggerSync.Execute(context.Background(), inventorycommand.TriggerSyncMessage{ConnectionID: "conn_1"}); err != nil {
		t.Fatalf("trigger sync: %v", err)
	}
	if len(starter.started) != 1 || starter.started[0] != "conn_1" {
		t.Fatalf("expected explicit starter used, got %v", starter.started)
	}
	if len(service.started) != 0 {
		t.Fatalf("expected service fallback bypassed, got %v", service.started)
	}
}

func TestNewFacade_FallsBackToServiceStarter(t *testing.T) {
	service := &fakeCommandQueryService{startable: true}
	facade, err := NewFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if err := facade.Commands().TriggerSync.Execute(context.Background(), inventorycommand.TriggerSyncMessage{ConnectionID: "conn_1"}); err != nil {
		t.Fatalf("trigger sync via fallback: %v", err)
	}
	if len(service.started) != 1 {
		t.Fatalf("expected service starter fallback, got %v", service.started)
	}
}

func TestNewFacade_ResolvesInventoryReaderFromDependencies(t *testing.T) {
	service := &fakeCommandQueryService{
		deps: core.ServiceDependencies{InventoryStore: emptyInventoryStore{}},
	}
	facade, err := NewFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if _, err := facade.Queries().ListOrganizations.Query(context.Background(), inventoryquery.ListOrganizationsMessage{ConnectionID: "conn_1"}); err != nil {
		t.Fatalf("expected reader resolved from dependencies, got %v", err)
	}
}

func TestNewFacade_MissingInventoryReaderFailsAtQueryTime(t *testing.T) {
	service := &fakeCommandQueryService{}
	facade, err := NewFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if _, err := facade.Queries().ListDevices.Query(context.Background(), inventoryquery.ListDevicesMessage{ConnectionID: "conn_1"}); err == nil {
		t.Fatalf("expected missing inventory reader to fail at query time")
	}
}

func TestNewFacade_OverManagedService(t *testing.T) {
	service, err := NewService(DefaultConfig(),
		WithTokenRefresher(staticRefresher{expiresAt: time.Now().UTC().Add(time.Hour)}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	facade, err := NewFacade(service)
	if err != nil {
		t.Fatalf("new facade over managed service: %v", err)
	}

	// The managed service does not start syncs itself; without an explicit
	// starter the command reports the missing dependency at execution time.
	err = facade.Commands().TriggerSync.Execute(context.Background(), inventorycommand.TriggerSyncMessage{ConnectionID: "conn_1"})
	if err == nil {
		t.Fatalf("expected missing starter to fail at execution time")
	}

	starter := &recordingStarter{}
	facade, err = NewFacade(service, WithSyncStarter(starter))
	if err != nil {
		t.Fatalf("new facade with starter: %v", err)
	}
	if err := facade.Commands().TriggerSync.Execute(context.Background(), inventorycommand.TriggerSyncMessage{ConnectionID: "conn_1"}); err != nil {
		t.Fatalf("trigger sync with starter: %v", err)
	}
	if len(starter.started) != 1 {
		t.Fatalf("expected starter invocation, got %v", starter.started)
	}
}

type staticRefresher struct {
	expiresAt time.Time
}

func (r staticRefresher) RefreshAccessToken(context.Context, string) (core.TokenGrant, error) {
	return core.TokenGrant{AccessToken: "access-1", ExpiresAt: r.expiresAt}, nil
}
