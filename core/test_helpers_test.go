package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memoryCredentialStore struct {
	mu            sync.Mutex
	next          int
	byConnection  map[string]Credential
	upsertCalls   int
	upsertErr     error
	getErr        error
	deletedIDs    []string
	lastUpsertted UpsertCredentialInput
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{byConnection: map[string]Credential{}}
}

func (s *memoryCredentialStore) GetByConnection(_ context.Context, connectionID string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return Credential{}, s.getErr
	}
	credential, ok := s.byConnection[strings.TrimSpace(connectionID)]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s", ErrCredentialNotFound, connectionID)
	}
	return credential, nil
}

func (s *memoryCredentialStore) Upsert(_ context.Context, in UpsertCredentialInput) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	s.lastUpsertted = in
	if s.upsertErr != nil {
		return Credential{}, s.upsertErr
	}
	connectionID := strings.TrimSpace(in.ConnectionID)
	credential, ok := s.byConnection[connectionID]
	if !ok {
		s.next++
		credential = Credential{
			ID:           fmt.Sprintf("cred_%d", s.next),
			ConnectionID: connectionID,
			CreatedAt:    time.Now().UTC(),
		}
	}
	credential.RefreshToken = in.RefreshToken
	credential.RefreshTokenExpiresAt = in.RefreshTokenExpiresAt
	credential.UpdatedAt = time.Now().UTC()
	s.byConnection[connectionID] = credential
	return credential, nil
}

func (s *memoryCredentialStore) DeleteByConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	connectionID = strings.TrimSpace(connectionID)
	delete(s.byConnection, connectionID)
	s.deletedIDs = append(s.deletedIDs, connectionID)
	return nil
}

func (s *memoryCredentialStore) seed(credential Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byConnection[credential.ConnectionID] = credential
}

func (s *memoryCredentialStore) stored(connectionID string) (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.byConnection[connectionID]
	return credential, ok
}

type stubRefresher struct {
	mu       sync.Mutex
	calls    int
	lastSeen string
	grants   []TokenGrant
	err      error
}

func (r *stubRefresher) RefreshAccessToken(_ context.Context, refreshToken string) (TokenGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.lastSeen = refreshToken
	if r.err != nil {
		return TokenGrant{}, r.err
	}
	if len(r.grants) == 0 {
		return TokenGrant{}, fmt.Errorf("stub refresher: no grants configured")
	}
	grant := r.grants[0]
	if len(r.grants) > 1 {
		r.grants = r.grants[1:]
	}
	return grant, nil
}

func (r *stubRefresher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type memorySyncStatusStore struct {
	mu           sync.Mutex
	byConnection map[string]SyncStatus
	upsertErr    error
}

func newMemorySyncStatusStore() *memorySyncStatusStore {
	return &memorySyncStatusStore{byConnection: map[string]SyncStatus{}}
}

func (s *memorySyncStatusStore) GetByConnection(_ context.Context, connectionID string) (SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.byConnection[strings.TrimSpace(connectionID)]
	if !ok {
		return SyncStatus{}, fmt.Errorf("%w: %s", ErrSyncStatusNotFound, connectionID)
	}
	return status, nil
}

func (s *memorySyncStatusStore) Upsert(_ context.Context, status SyncStatus) (SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return SyncStatus{}, s.upsertErr
	}
	s.byConnection[status.ConnectionID] = status
	return status, nil
}

type stubInventoryClient struct {
	token  string
	closed bool
	mu     sync.Mutex
}

func (c *stubInventoryClient) ListOrganizations(context.Context) ([]ProviderOrganization, error) {
	return nil, nil
}

func (c *stubInventoryClient) ListNetworks(context.Context, string) ([]ProviderNetwork, error) {
	return nil, nil
}

func (c *stubInventoryClient) ListDevices(context.Context, string) ([]ProviderDevice, error) {
	return nil, nil
}

func (c *stubInventoryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *stubInventoryClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type stubClientFactory struct {
	mu      sync.Mutex
	built   []*stubInventoryClient
	failErr error
}

func (f *stubClientFactory) NewClient(accessToken string) (InventoryClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	client := &stubInventoryClient{token: accessToken}
	f.built = append(f.built, client)
	return client, nil
}

func (f *stubClientFactory) buildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

type memoryConnectionStore struct {
	mu         sync.Mutex
	next       int
	byID       map[string]Connection
	deletedIDs []string
}

func newMemoryConnectionStore() *memoryConnectionStore {
	return &memoryConnectionStore{byID: map[string]Connection{}}
}

func (s *memoryConnectionStore) Create(_ context.Context, in CreateConnectionInput) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	connection := Connection{
		ID:        fmt.Sprintf("conn_%d", s.next),
		OwnerID:   in.OwnerID,
		Name:      in.Name,
		Kind:      in.Kind,
		Active:    in.Active,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.byID[connection.ID] = connection
	return connection, nil
}

func (s *memoryConnectionStore) Get(_ context.Context, id string) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	connection, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Connection{}, fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	return connection, nil
}

func (s *memoryConnectionStore) ListSyncable(_ context.Context, _ time.Time) ([]Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Connection, 0, len(s.byID))
	for _, connection := range s.byID {
		if connection.Active {
			out = append(out, connection)
		}
	}
	return out, nil
}

func (s *memoryConnectionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.TrimSpace(id)
	delete(s.byID, id)
	s.deletedIDs = append(s.deletedIDs, id)
	return nil
}

type memoryInventoryStore struct {
	mu            sync.Mutex
	organizations map[string]Organization
	networks      map[string]Network
	devices       map[string]Device
	purgedIDs     []string
}

func newMemoryInventoryStore() *memoryInventoryStore {
	return &memoryInventoryStore{
		organizations: map[string]Organization{},
		networks:      map[string]Network{},
		devices:       map[string]Device{},
	}
}

func inventoryKey(connectionID, externalID string) string {
	return connectionID + "::" + externalID
}

func (s *memoryInventoryStore) ListOrganizations(_ context.Context, connectionID string, includeDeleted bool) ([]Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Organization
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

func (s *memoryInventoryStore) UpsertOrganization(_ context.Context, in UpsertOrganizationInput) (Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inventoryKey(in.ConnectionID, in.ExternalID)
	organization, ok := s.organizations[key]
	if !ok {
		organization = Organization{
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

func (s *memoryInventoryStore) MarkMissingOrganizationsDeleted(_ context.Context, connectionID string, seen []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seenSet := map[string]struct{}{}
	for _, id := range seen {
		seenSet[id] = struct{}{}
	}
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

func (s *memoryInventoryStore) ListNetworks(_ context.Context, connectionID string, organizationExternalID string, includeDeleted bool) ([]Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Network
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

func (s *memoryInventoryStore) UpsertNetwork(_ context.Context, in UpsertNetworkInput) (Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inventoryKey(in.ConnectionID, in.ExternalID)
	network, ok := s.networks[key]
	if !ok {
		network = Network{
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

func (s *memoryInventoryStore) MarkMissingNetworksDeleted(_ context.Context, connectionID string, organizationExternalID string, seen []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seenSet := map[string]struct{}{}
	for _, id := range seen {
		seenSet[id] = struct{}{}
	}
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

func (s *memoryInventoryStore) ListDevices(_ context.Context, connectionID string, networkExternalID string, includeDeleted bool) ([]Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Device
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

func (s *memoryInventoryStore) UpsertDevice(_ context.Context, in UpsertDeviceInput) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inventoryKey(in.ConnectionID, in.ExternalID)
	device, ok := s.devices[key]
	if !ok {
		device = Device{
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

func (s *memoryInventoryStore) MarkMissingDevicesDeleted(_ context.Context, connectionID string, networkExternalID string, seen []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seenSet := map[string]struct{}{}
	for _, id := range seen {
		seenSet[id] = struct{}{}
	}
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

func (s *memoryInventoryStore) DeleteByConnection(_ context.Context, connectionID string) error {
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
	s.purgedIDs = append(s.purgedIDs, connectionID)
	return nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
