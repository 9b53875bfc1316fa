package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-inventory-sync/core"
)

const totalSyncSteps = 4

const (
	stepResolveClient = "resolving inventory client"
	stepOrganizations = "syncing organizations"
	stepNetworks      = "syncing networks"
	stepDevices       = "syncing devices"
)

// ClientSource hands out the per-connection inventory client; the core
// ClientPool is the production implementation.
type ClientSource interface {
	GetClient(ctx context.Context, connectionID string) (core.InventoryClient, error)
}

// ProgressTracker records run lifecycle and step progress; the core
// StatusTracker is the production implementation.
type ProgressTracker interface {
	Begin(ctx context.Context, connectionID string, totalSteps int) (core.SyncStatus, error)
	Step(ctx context.Context, connectionID string, stepNumber int, label string) (core.SyncStatus, error)
	Complete(ctx context.Context, connectionID string) (core.SyncStatus, error)
	Fail(ctx context.Context, connectionID string, cause error) (core.SyncStatus, error)
}

// Orchestrator runs one full hierarchical sync per call: organizations, then
// networks per organization, then devices per network. The first failure
// aborts the run; rows already upserted stay, and the failure lands in the
// status record. Overlapping runs for the same connection are rejected
// through the Locker.
type Orchestrator struct {
	Clients   ClientSource
	Inventory core.InventoryStore
	Tracker   ProgressTracker
	Locker    core.ConnectionLocker
	Logger    core.Logger
	LockTTL   time.Duration
	Now       func() time.Time
}

func NewOrchestrator(
	clients ClientSource,
	inventory core.InventoryStore,
	tracker ProgressTracker,
	locker core.ConnectionLocker,
	logger core.Logger,
) (*Orchestrator, error) {
	if clients == nil {
		return nil, fmt.Errorf("sync: client source is required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("sync: inventory store is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("sync: progress tracker is required")
	}
	if locker == nil {
		locker = core.NewMemoryConnectionLocker()
	}
	return &Orchestrator{
		Clients:   clients,
		Inventory: inventory,
		Tracker:   tracker,
		Locker:    locker,
		Logger:    glog.Ensure(logger),
		LockTTL:   core.DefaultSyncLockTTL,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// SyncConnection executes the four tracked steps for one connection. Callers
// holding the returned error can test it with core.IsSyncAlreadyRunning to
// distinguish an overlap skip from a real failure.
func (o *Orchestrator) SyncConnection(ctx context.Context, connectionID string) error {
	if o == nil || o.Clients == nil || o.Inventory == nil || o.Tracker == nil {
		return fmt.Errorf("sync: orchestrator is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return fmt.Errorf("sync: connection id is required")
	}

	handle, err := o.Locker.Acquire(ctx, connectionID, o.lockTTL())
	if err != nil {
		return err
	}
	defer func() {
		_ = handle.Unlock(ctx)
	}()

	if _, err := o.Tracker.Begin(ctx, connectionID, totalSyncSteps); err != nil {
		return err
	}

	startedAt := o.now()
	counts, runErr := o.run(ctx, connectionID)
	if runErr != nil {
		if _, failErr := o.Tracker.Fail(ctx, connectionID, runErr); failErr != nil {
			o.Logger.Error("recording sync failure",
				"connection_id", connectionID,
				"error", failErr.Error(),
			)
		}
		return runErr
	}

	if _, err := o.Tracker.Complete(ctx, connectionID); err != nil {
		return err
	}
	o.Logger.Info("sync run completed",
		"connection_id", connectionID,
		"organizations", counts.organizations,
		"networks", counts.networks,
		"devices", counts.devices,
		"soft_deleted", counts.softDeleted,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	return nil
}

type runCounts struct {
	organizations int
	networks      int
	devices       int
	softDeleted   int
}

func (o *Orchestrator) run(ctx context.Context, connectionID string) (runCounts, error) {
	counts := runCounts{}

	if _, err := o.Tracker.Step(ctx, connectionID, 1, stepResolveClient); err != nil {
		return counts, err
	}
	client, err := o.Clients.GetClient(ctx, connectionID)
	if err != nil {
		return counts, err
	}

	if _, err := o.Tracker.Step(ctx, connectionID, 2, stepOrganizations); err != nil {
		return counts, err
	}
	organizations, err := o.syncOrganizations(ctx, client, connectionID, &counts)
	if err != nil {
		return counts, err
	}

	if _, err := o.Tracker.Step(ctx, connectionID, 3, stepNetworks); err != nil {
		return counts, err
	}
	networks, err := o.syncNetworks(ctx, client, connectionID, organizations, &counts)
	if err != nil {
		return counts, err
	}

	if _, err := o.Tracker.Step(ctx, connectionID, 4, stepDevices); err != nil {
		return counts, err
	}
	if err := o.syncDevices(ctx, client, connectionID, networks, &counts); err != nil {
		return counts, err
	}

	return counts, nil
}

func (o *Orchestrator) syncOrganizations(
	ctx context.Context,
	client core.InventoryClient,
	connectionID string,
	counts *runCounts,
) ([]core.ProviderOrganization, error) {
	organizations, err := client.ListOrganizations(ctx)
	if err != nil {
		return nil, core.NewFetchFailedError(err, "organizations")
	}

	syncedAt := o.now()
	seen := make([]string, 0, len(organizations))
	for _, organization := range organizations {
		externalID := strings.TrimSpace(organization.ID)
		if externalID == "" {
			continue
		}
		if _, err := o.Inventory.UpsertOrganization(ctx, core.UpsertOrganizationInput{
			ConnectionID: connectionID,
			ExternalID:   externalID,
			Name:         strings.TrimSpace(organization.Name),
			URL:          strings.TrimSpace(organization.URL),
			SyncedAt:     syncedAt,
		}); err != nil {
			return nil, core.NewPersistenceFailedError(err)
		}
		seen = append(seen, externalID)
		counts.organizations++
	}

	deleted, err := o.Inventory.MarkMissingOrganizationsDeleted(ctx, connectionID, seen)
	if err != nil {
		return nil, core.NewPersistenceFailedError(err)
	}
	counts.softDeleted += deleted
	return organizations, nil
}

func (o *Orchestrator) syncNetworks(
	ctx context.Context,
	client core.InventoryClient,
	connectionID string,
	organizations []core.ProviderOrganization,
	counts *runCounts,
) ([]core.ProviderNetwork, error) {
	collected := []core.ProviderNetwork{}
	for _, organization := range organizations {
		organizationID := strings.TrimSpace(organization.ID)
		if organizationID == "" {
			continue
		}
		networks, err := client.ListNetworks(ctx, organizationID)
		if err != nil {
			return nil, core.NewFetchFailedError(err, "networks")
		}

		syncedAt := o.now()
		seen := make([]string, 0, len(networks))
		for _, network := range networks {
			externalID := strings.TrimSpace(network.ID)
			if externalID == "" {
				continue
			}
			if _, err := o.Inventory.UpsertNetwork(ctx, core.UpsertNetworkInput{
				ConnectionID:           connectionID,
				ExternalID:             externalID,
				OrganizationExternalID: organizationID,
				Name:                   strings.TrimSpace(network.Name),
				TimeZone:               strings.TrimSpace(network.TimeZone),
				Tags:                   append([]string(nil), network.Tags...),
				SyncedAt:               syncedAt,
			}); err != nil {
				return nil, core.NewPersistenceFailedError(err)
			}
			seen = append(seen, externalID)
			counts.networks++
		}

		deleted, err := o.Inventory.MarkMissingNetworksDeleted(ctx, connectionID, organizationID, seen)
		if err != nil {
			return nil, core.NewPersistenceFailedError(err)
		}
		counts.softDeleted += deleted
		collected = append(collected, networks...)
	}
	return collected, nil
}

func (o *Orchestrator) syncDevices(
	ctx context.Context,
	client core.InventoryClient,
	connectionID string,
	networks []core.ProviderNetwork,
	counts *runCounts,
) error {
	for _, network := range networks {
		networkID := strings.TrimSpace(network.ID)
		if networkID == "" {
			continue
		}
		devices, err := client.ListDevices(ctx, networkID)
		if err != nil {
			return core.NewFetchFailedError(err, "devices")
		}

		syncedAt := o.now()
		seen := make([]string, 0, len(devices))
		for _, device := range devices {
			externalID := strings.TrimSpace(device.ID)
			if externalID == "" {
				continue
			}
			if _, err := o.Inventory.UpsertDevice(ctx, core.UpsertDeviceInput{
				ConnectionID:      connectionID,
				ExternalID:        externalID,
				NetworkExternalID: networkID,
				Name:              strings.TrimSpace(device.Name),
				Model:             strings.TrimSpace(device.Model),
				Serial:            strings.TrimSpace(device.Serial),
				MACAddress:        strings.TrimSpace(device.MAC),
				Status:            strings.TrimSpace(device.Status),
				SyncedAt:          syncedAt,
			}); err != nil {
				return core.NewPersistenceFailedError(err)
			}
			seen = append(seen, externalID)
			counts.devices++
		}

		deleted, err := o.Inventory.MarkMissingDevicesDeleted(ctx, connectionID, networkID, seen)
		if err != nil {
			return core.NewPersistenceFailedError(err)
		}
		counts.softDeleted += deleted
	}
	return nil
}

func (o *Orchestrator) lockTTL() time.Duration {
	if o != nil && o.LockTTL > 0 {
		return o.LockTTL
	}
	return core.DefaultSyncLockTTL
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.SyncRunner = (*Orchestrator)(nil)
