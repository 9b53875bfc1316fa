// Package devkit provides in-memory provider fakes for wiring tests and
// local development against the sync core without a live inventory API.
package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-inventory-sync/core"
)

// FakeInventory is a mutable in-memory inventory tree. It serves as both the
// client factory and the client itself: every token produces a client reading
// the same shared tree, so tests can mutate the provider side between runs.
type FakeInventory struct {
	mu            sync.Mutex
	organizations []core.ProviderOrganization
	networks      map[string][]core.ProviderNetwork
	devices       map[string][]core.ProviderDevice

	FailOrganizations error
	FailNetworks      error
	FailDevices       error

	listCalls   int
	clientCount int
}

func NewFakeInventory() *FakeInventory {
	return &FakeInventory{
		networks: map[string][]core.ProviderNetwork{},
		devices:  map[string][]core.ProviderDevice{},
	}
}

func (f *FakeInventory) SetOrganizations(organizations ...core.ProviderOrganization) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.organizations = append([]core.ProviderOrganization(nil), organizations...)
}

func (f *FakeInventory) SetNetworks(organizationID string, networks ...core.ProviderNetwork) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks[strings.TrimSpace(organizationID)] = append([]core.ProviderNetwork(nil), networks...)
}

func (f *FakeInventory) SetDevices(networkID string, devices ...core.ProviderDevice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[strings.TrimSpace(networkID)] = append([]core.ProviderDevice(nil), devices...)
}

func (f *FakeInventory) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *FakeInventory) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clientCount
}

func (f *FakeInventory) NewClient(accessToken string) (core.InventoryClient, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("devkit: access token is required")
	}
	f.mu.Lock()
	f.clientCount++
	f.mu.Unlock()
	return &fakeInventoryClient{inventory: f, token: accessToken}, nil
}

type fakeInventoryClient struct {
	inventory *FakeInventory
	token     string
}

func (c *fakeInventoryClient) ListOrganizations(context.Context) ([]core.ProviderOrganization, error) {
	f := c.inventory
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.FailOrganizations != nil {
		return nil, f.FailOrganizations
	}
	return append([]core.ProviderOrganization(nil), f.organizations...), nil
}

func (c *fakeInventoryClient) ListNetworks(_ context.Context, organizationID string) ([]core.ProviderNetwork, error) {
	f := c.inventory
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.FailNetworks != nil {
		return nil, f.FailNetworks
	}
	return append([]core.ProviderNetwork(nil), f.networks[strings.TrimSpace(organizationID)]...), nil
}

func (c *fakeInventoryClient) ListDevices(_ context.Context, networkID string) ([]core.ProviderDevice, error) {
	f := c.inventory
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.FailDevices != nil {
		return nil, f.FailDevices
	}
	return append([]core.ProviderDevice(nil), f.devices[strings.TrimSpace(networkID)]...), nil
}

func (c *fakeInventoryClient) Close() error {
	return nil
}

// FakeTokenEndpoint mints sequential access tokens and optionally rotates the
// refresh token on every exchange, mirroring providers that enforce one-time
// refresh tokens.
type FakeTokenEndpoint struct {
	mu             sync.Mutex
	counter        int
	RotateRefresh  bool
	TokenTTL       time.Duration
	RefreshableFor time.Duration
	Fail           error
	Now            func() time.Time
}

func NewFakeTokenEndpoint() *FakeTokenEndpoint {
	return &FakeTokenEndpoint{
		TokenTTL: time.Hour,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (e *FakeTokenEndpoint) RefreshAccessToken(_ context.Context, refreshToken string) (core.TokenGrant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Fail != nil {
		return core.TokenGrant{}, e.Fail
	}
	if strings.TrimSpace(refreshToken) == "" {
		return core.TokenGrant{}, fmt.Errorf("devkit: refresh token is required")
	}

	e.counter++
	now := e.now()
	grant := core.TokenGrant{
		AccessToken: fmt.Sprintf("access-%d", e.counter),
		ExpiresAt:   now.Add(e.tokenTTL()),
	}
	if e.RotateRefresh {
		grant.RefreshToken = fmt.Sprintf("refresh-%d", e.counter)
		if e.RefreshableFor > 0 {
			expiresAt := now.Add(e.RefreshableFor)
			grant.RefreshTokenExpiresAt = &expiresAt
		}
	}
	return grant, nil
}

func (e *FakeTokenEndpoint) Exchanges() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counter
}

func (e *FakeTokenEndpoint) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *FakeTokenEndpoint) tokenTTL() time.Duration {
	if e.TokenTTL > 0 {
		return e.TokenTTL
	}
	return time.Hour
}

var (
	_ core.ClientFactory  = (*FakeInventory)(nil)
	_ core.TokenRefresher = (*FakeTokenEndpoint)(nil)
)
