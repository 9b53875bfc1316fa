package sync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-inventory-sync/core"
	"github.com/goliatone/go-inventory-sync/providers/devkit"
)

// fixedClientSource hands every connection a client over the same fake tree.
type fixedClientSource struct {
	inventory *devkit.FakeInventory
	err       error
	mu        sync.Mutex
	calls     int
}

func (s *fixedClientSource) GetClient(_ context.Context, connectionID string) (core.InventoryClient, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.inventory.NewClient("access-" + connectionID)
}

type memStatusStore struct {
	mu           sync.Mutex
	byConnection map[string]core.SyncStatus
}

func newMemStatusStore() *memStatusStore {
	return &memStatusStore{byConnection: map[string]core.SyncStatus{}}
}

func (s *memStatusStore) GetByConnection(_ context.Context, connectionID string) (core.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.byConnection[strings.TrimSpace(connectionID)]
	if !ok {
		return core.SyncStatus{}, fmt.Errorf("%w: %s", core.ErrSyncStatusNotFound, connectionID)
	}
	return status, nil
}

func (s *memStatusStore) Upsert(_ context.Context, status core.SyncStatus) (core.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byConnection[status.ConnectionID] = status
	return status, nil
}

type memInventoryStore struct {
	mu            sync.Mutex
	organizations map[string]core.Organization
	networks      map[string]core.Network
	devices       map[string]core.Device

	failUpsertDevice error
}

func newMemInventoryStore() *memInventoryStore {
	return &memInventoryStore{
		organizations: map[string]core.Organization{},
		networks:      map[string]core.Network{},
		devices:       map[string]core.Device{},
	}
}

func scopeKey(connectionID, externalID string) string {
	return connectionID + "::" + externalID
}

func (s *memInventoryStore) ListOrganizations(_ context.Context, connectionID string, includeDeleted bool) ([]core.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Organization
	for _, organization := range s.organizations {
		if organization.ConnectionID != connectionID {
			continue
		}
		if organization.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, organization)
	}
	return out, nil
}

func (s *memInventoryStore) UpsertOrganization(_ context.Context, in core.UpsertOrganizationInput) (core.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopeKey(in.ConnectionID, in.ExternalID)
	organization, ok := s.organizations[key]
	if !ok {
		organization = core.Organization{
			ConnectionID: in.ConnectionID,
			ExternalID:   in.ExternalID,
			CreatedAt:    in.SyncedAt,
		}
	}
	organization.Name = in.Name
	organization.URL = in.URL
	organization.IsDeleted = false
	organization.LastSyncedAt = in.SyncedAt
	organization.UpdatedAt = in.SyncedAt
	s.organizations[key] = organization
	return organization, nil
}

func (s *memInventoryStore) MarkMissingOrganizationsDeleted(_ context.Context, connectionID string, seen []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seenSet := toSet(seen)
	count := 0
	for key, organization := range s.organizations {
		if organization.ConnectionID != connectionID || organization.IsDeleted {
			continue
		}
		if _, ok := seenSet[organization.ExternalID]; ok {
			continue
		}
		organization.IsDeleted = true
		s.organizations[key] = organization
		count++
	}
	return count, nil
}

func (s *memInventoryStore) ListNetworks(_ context.Context, connectionID string, organizationExternalID string, includeDeleted bool) ([]core.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Network
	for _, network := range s.networks {
		if network.ConnectionID != connectionID {
			continue
		}
		if organizationExternalID != "" && network.OrganizationExternalID != organizationExternalID {
			continue
		}
		if network.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, network)
	}
	return out, nil
}

func (s *memInventoryStore) UpsertNetwork(_ context.Context, in core.UpsertNetworkInput) (core.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopeKey(in.ConnectionID, in.ExternalID)
	network, ok := s.networks[key]
	if !ok {
		network = core.Network{
			ConnectionID: in.ConnectionID,
			ExternalID:   in.ExternalID,
			CreatedAt:    in.SyncedAt,
		}
	}
	network.OrganizationExternalID = in.OrganizationExternalID
	network.Name = in.Name
	network.TimeZone = in.TimeZone
	network.Tags = append([]string(nil), in.Tags...)
	network.IsDeleted = false
	network.LastSyncedAt = in.SyncedAt
	network.UpdatedAt = in.SyncedAt
	s.networks[key] = network
	return network, nil
}

func (s *memInventoryStore) MarkMissingNetworksDeleted(_ context.Context, connectionID string, organizationExternalID string, seen []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seenSet := toSet(seen)
	count := 0
	for key, network := range s.networks {
		if network.ConnectionID != connectionID || network.IsDeleted {
			continue
		}
		if organizationExternalID != "" && network.OrganizationExternalID != organizationExternalID {
			continue
		}
		if _, ok := seenSet[network.ExternalID]; ok {
			continue
		}
		network.IsDeleted = true
		s.networks[key] = network
		count++
	}
	return count, nil
}

func (s *memInventoryStore) ListDevices(_ context.Context, connectionID string, networkExternalID string, includeDeleted bool) ([]core.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Device
	for _, device := range s.devices {
		if device.ConnectionID != connectionID {
			continue
		}
		if networkExternalID != "" && device.NetworkExternalID != networkExternalID {
			continue
		}
		if device.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, device)
	}
	return out, nil
}

func (s *memInventoryStore) UpsertDevice(_ context.Context, in core.UpsertDeviceInput) (core.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsertDevice != nil {
		return core.Device{}, s.failUpsertDevice
	}
	key := scopeKey(in.ConnectionID, in.ExternalID)
	device, ok := s.devices[key]
	if !ok {
		device = core.Device{
			ConnectionID: in.ConnectionID,
			ExternalID:   in.ExternalID,
			CreatedAt:    in.SyncedAt,
		}
	}
	device.NetworkExternalID = in.NetworkExternalID
	device.Name = in.Name
	device.Model = in.Model
	device.Serial = in.Serial
	device.MACAddress = in.MACAddress
	device.Status = in.Status
	device.IsDeleted = false
	device.LastSyncedAt = in.SyncedAt
	device.UpdatedAt = in.SyncedAt
	s.devices[key] = device
	return device, nil
}

func (s *memInventoryStore) MarkMissingDevicesDeleted(_ context.Context, connectionID string, networkExternalID string, seen []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seenSet := toSet(seen)
	count := 0
	for key, device := range s.devices {
		if device.ConnectionID != connectionID || device.IsDeleted {
			continue
		}
		if networkExternalID != "" && device.NetworkExternalID != networkExternalID {
			continue
		}
		if _, ok := seenSet[device.ExternalID]; ok {
			continue
		}
		device.IsDeleted = true
		s.devices[key] = device
		count++
	}
	return count, nil
}

func (s *memInventoryStore) DeleteByConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, organization := range s.organizations {
		if organization.ConnectionID == connectionID {
			delete(s.organizations, key)
		}
	}
	for key, network := range s.networks {
		if network.ConnectionID == connectionID {
			delete(s.networks, key)
		}
	}
	for key, device := range s.devices {
		if device.ConnectionID == connectionID {
			delete(s.devices, key)
		}
	}
	return nil
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		out[value] = struct{}{}
	}
	return out
}

func newTrackedOrchestrator(t *testing.T, provider *devkit.FakeInventory) (*Orchestrator, *memInventoryStore, *core.StatusTracker) {
	t.Helper()
	store := newMemInventoryStore()
	tracker, err := core.NewStatusTracker(newMemStatusStore())
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	orchestrator, err := NewOrchestrator(&fixedClientSource{inventory: provider}, store, tracker, nil, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orchestrator, store, tracker
}

func findOrganization(t *testing.T, rows []core.Organization, externalID string) core.Organization {
	t.Helper()
	for _, row := range rows {
		if row.ExternalID == externalID {
			return row
		}
	}
	t.Fatalf("organization %q not found in %d rows", externalID, len(rows))
	return core.Organization{}
}

func waitUntil(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
