package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-inventory-sync/core"
	"github.com/goliatone/go-inventory-sync/providers/devkit"
)

func seedProviderTree(provider *devkit.FakeInventory) {
	provider.SetOrganizations(
		core.ProviderOrganization{ID: "org-1", Name: "Acme", URL: "https://portal.example.com/org-1"},
		core.ProviderOrganization{ID: "org-2", Name: "Globex"},
	)
	provider.SetNetworks("org-1",
		core.ProviderNetwork{ID: "net-1", OrganizationID: "org-1", Name: "HQ", TimeZone: "America/New_York", Tags: []string{"prod"}},
		core.ProviderNetwork{ID: "net-2", OrganizationID: "org-1", Name: "Warehouse"},
	)
	provider.SetNetworks("org-2",
		core.ProviderNetwork{ID: "net-3", OrganizationID: "org-2", Name: "Lab"},
	)
	provider.SetDevices("net-1",
		core.ProviderDevice{ID: "dev-1", NetworkID: "net-1", Name: "sw-01", Model: "MS120", Serial: "Q2XX-1", MAC: "aa:bb:cc:00:00:01", Status: "online"},
		core.ProviderDevice{ID: "dev-2", NetworkID: "net-1", Name: "ap-01", Model: "MR33", Serial: "Q2XX-2", MAC: "aa:bb:cc:00:00:02", Status: "offline"},
	)
	provider.SetDevices("net-3",
		core.ProviderDevice{ID: "dev-3", NetworkID: "net-3", Name: "fw-01", Model: "MX64", Serial: "Q2XX-3", MAC: "aa:bb:cc:00:00:03", Status: "online"},
	)
}

func TestOrchestrator_FullHierarchySync(t *testing.T) {
	provider := devkit.NewFakeInventory()
	seedProviderTree(provider)
	orchestrator, store, tracker := newTrackedOrchestrator(t, provider)

	if err := orchestrator.SyncConnection(context.Background(), "conn_1"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	organizations, err := store.ListOrganizations(context.Background(), "conn_1", false)
	if err != nil {
		t.Fatalf("list organizations: %v", err)
	}
	if len(organizations) != 2 {
		t.Fatalf("expected 2 organizations, got %d", len(organizations))
	}
	acme := findOrganization(t, organizations, "org-1")
	if acme.Name != "Acme" || acme.URL != "https://portal.example.com/org-1" {
		t.Fatalf("unexpected organization payload: %#v", acme)
	}

	networks, err := store.ListNetworks(context.Background(), "conn_1", "", false)
	if err != nil {
		t.Fatalf("list networks: %v", err)
	}
	if len(networks) != 3 {
		t.Fatalf("expected 3 networks, got %d", len(networks))
	}

	devices, err := store.ListDevices(context.Background(), "conn_1", "", false)
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(devices))
	}

	status, err := tracker.Status(context.Background(), "conn_1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != core.SyncStateCompleted {
		t.Fatalf("expected completed, got %q", status.State)
	}
	if status.SyncCompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}
}

func TestOrchestrator_MissingRowsAreSoftDeleted(t *testing.T) {
	provider := devkit.NewFakeInventory()
	provider.SetOrganizations(
		core.ProviderOrganization{ID: "org-a", Name: "A"},
		core.ProviderOrganization{ID: "org-b", Name: "B"},
		core.ProviderOrganization{ID: "org-c", Name: "C"},
	)
	orchestrator, store, _ := newTrackedOrchestrator(t, provider)

	if err := orchestrator.SyncConnection(context.Background(), "conn_1"); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// org-b disappears provider side; it must survive locally as soft deleted.
	provider.SetOrganizations(
		core.ProviderOrganization{ID: "org-a", Name: "A"},
		core.ProviderOrganization{ID: "org-c", Name: "C"},
	)
	if err := orchestrator.SyncConnection(context.Background(), "conn_1"); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	active, err := store.ListOrganizations(context.Background(), "conn_1", false)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active organizations, got %d", len(active))
	}

	all, err := store.ListOrganizations(context.Background(), "conn_1", true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected soft deleted row retained, got %d rows", len(all))
	}
	gone := findOrganization(t, all, "org-b")
	if !gone.IsDeleted {
		t.Fatalf("expected org-b soft deleted")
	}

	// A row that reappears is revived by the next upsert.
	provider.SetOrganizations(
		core.ProviderOrganization{ID: "org-a", Name: "A"},
		core.ProviderOrganization{ID: "org-b", Name: "B"},
		core.ProviderOrganization{ID: "org-c", Name: "C"},
	)
	if err := orchestrator.SyncConnection(context.Background(), "conn_1"); err != nil {
		t.Fatalf("third sync: %v", err)
	}
	active, err = store.ListOrganizations(context.Background(), "conn_1", false)
	if err != nil {
		t.Fatalf("list revived: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected revived organization, got %d active rows", len(active))
	}
}

func TestOrchestrator_FetchFailureAbortsAndRecordsStatus(t *testing.T) {
	provider := devkit.NewFakeInventory()
	seedProviderTree(provider)
	provider.FailNetworks = errors.New("rate limited")
	orchestrator, store, tracker := newTrackedOrchestrator(t, provider)

	err := orchestrator.SyncConnection(context.Background(), "conn_1")
	if err == nil {
		t.Fatalf("expected network fetch failure to surface")
	}

	status, statusErr := tracker.Status(context.Background(), "conn_1")
	if statusErr != nil {
		t.Fatalf("status: %v", statusErr)
	}
	if status.State != core.SyncStateFailed {
		t.Fatalf("expected failed, got %q", status.State)
	}
	if status.CurrentStepNumber != 3 || status.CurrentStep != "syncing networks" {
		t.Fatalf("expected failure at network step, got %#v", status)
	}
	if status.Error == "" {
		t.Fatalf("expected failure message recorded")
	}

	// Organizations synced before the failure are retained.
	organizations, listErr := store.ListOrganizations(context.Background(), "conn_1", false)
	if listErr != nil {
		t.Fatalf("list organizations: %v", listErr)
	}
	if len(organizations) != 2 {
		t.Fatalf("expected organizations retained after aborted run, got %d", len(organizations))
	}

	devices, listErr := store.ListDevices(context.Background(), "conn_1", "", true)
	if listErr != nil {
		t.Fatalf("list devices: %v", listErr)
	}
	if len(devices) != 0 {
		t.Fatalf("expected no devices after aborted run, got %d", len(devices))
	}
}

func TestOrchestrator_PersistenceFailureAborts(t *testing.T) {
	provider := devkit.NewFakeInventory()
	seedProviderTree(provider)
	orchestrator, store, tracker := newTrackedOrchestrator(t, provider)
	store.failUpsertDevice = errors.New("disk full")

	err := orchestrator.SyncConnection(context.Background(), "conn_1")
	if err == nil {
		t.Fatalf("expected device persistence failure to surface")
	}

	status, statusErr := tracker.Status(context.Background(), "conn_1")
	if statusErr != nil {
		t.Fatalf("status: %v", statusErr)
	}
	if status.State != core.SyncStateFailed {
		t.Fatalf("expected failed, got %q", status.State)
	}
	if status.CurrentStepNumber != 4 {
		t.Fatalf("expected failure at device step, got step %d", status.CurrentStepNumber)
	}
}

func TestOrchestrator_OverlappingRunRejected(t *testing.T) {
	provider := devkit.NewFakeInventory()
	seedProviderTree(provider)
	orchestrator, _, _ := newTrackedOrchestrator(t, provider)

	handle, err := orchestrator.Locker.Acquire(context.Background(), "conn_1", time.Minute)
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer func() {
		_ = handle.Unlock(context.Background())
	}()

	err = orchestrator.SyncConnection(context.Background(), "conn_1")
	if err == nil {
		t.Fatalf("expected overlap rejection")
	}
	if !core.IsSyncAlreadyRunning(err) {
		t.Fatalf("expected already running classification, got %v", err)
	}
}

func TestOrchestrator_RerunIsIdempotent(t *testing.T) {
	provider := devkit.NewFakeInventory()
	seedProviderTree(provider)
	orchestrator, store, _ := newTrackedOrchestrator(t, provider)

	if err := orchestrator.SyncConnection(context.Background(), "conn_1"); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	firstRows, err := store.ListOrganizations(context.Background(), "conn_1", true)
	if err != nil {
		t.Fatalf("list after first run: %v", err)
	}
	created := findOrganization(t, firstRows, "org-1").CreatedAt

	if err := orchestrator.SyncConnection(context.Background(), "conn_1"); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	secondRows, err := store.ListOrganizations(context.Background(), "conn_1", true)
	if err != nil {
		t.Fatalf("list after second run: %v", err)
	}
	if len(secondRows) != len(firstRows) {
		t.Fatalf("expected stable row count, got %d then %d", len(firstRows), len(secondRows))
	}
	if !findOrganization(t, secondRows, "org-1").CreatedAt.Equal(created) {
		t.Fatalf("expected CreatedAt preserved across runs")
	}
}
