package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-inventory-sync/core"
)

const (
	defaultInventoryRequestTimeout = 30 * time.Second
	defaultInventoryMaxAttempts    = 3
	maxInventoryResponseBodyBytes  = 8 << 20 // 8 MiB
)

type RESTClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxAttempts    int
	Backoff        core.BackoffScheduler
	HTTPClient     HTTPDoer
}

// RESTClientFactory builds inventory clients bound to a single access token.
// It is the production core.ClientFactory; the pool rebuilds clients through
// it whenever the token rotates.
type RESTClientFactory struct {
	cfg RESTClientConfig
}

func NewRESTClientFactory(cfg RESTClientConfig) (*RESTClientFactory, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("providers: base url is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultInventoryRequestTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaultInventoryMaxAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = core.ExponentialBackoffScheduler{}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &RESTClientFactory{cfg: cfg}, nil
}

func (f *RESTClientFactory) NewClient(accessToken string) (core.InventoryClient, error) {
	if f == nil {
		return nil, fmt.Errorf("providers: client factory is nil")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, fmt.Errorf("providers: access token is required")
	}
	return &restInventoryClient{
		cfg:         f.cfg,
		accessToken: accessToken,
	}, nil
}

type restInventoryClient struct {
	cfg         RESTClientConfig
	accessToken string
}

func (c *restInventoryClient) ListOrganizations(ctx context.Context) ([]core.ProviderOrganization, error) {
	var payload []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := c.getJSON(ctx, "/organizations", &payload); err != nil {
		return nil, err
	}
	organizations := make([]core.ProviderOrganization, 0, len(payload))
	for _, item := range payload {
		organizations = append(organizations, core.ProviderOrganization{
			ID:   strings.TrimSpace(item.ID),
			Name: strings.TrimSpace(item.Name),
			URL:  strings.TrimSpace(item.URL),
		})
	}
	return organizations, nil
}

func (c *restInventoryClient) ListNetworks(ctx context.Context, organizationID string) ([]core.ProviderNetwork, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("providers: organization id is required")
	}
	var payload []struct {
		ID             string   `json:"id"`
		OrganizationID string   `json:"organizationId"`
		Name           string   `json:"name"`
		TimeZone       string   `json:"timeZone"`
		Tags           []string `json:"tags"`
	}
	path := "/organizations/" + url.PathEscape(organizationID) + "/networks"
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	networks := make([]core.ProviderNetwork, 0, len(payload))
	for _, item := range payload {
		network := core.ProviderNetwork{
			ID:             strings.TrimSpace(item.ID),
			OrganizationID: strings.TrimSpace(item.OrganizationID),
			Name:           strings.TrimSpace(item.Name),
			TimeZone:       strings.TrimSpace(item.TimeZone),
			Tags:           append([]string(nil), item.Tags...),
		}
		if network.OrganizationID == "" {
			network.OrganizationID = organizationID
		}
		networks = append(networks, network)
	}
	return networks, nil
}

func (c *restInventoryClient) ListDevices(ctx context.Context, networkID string) ([]core.ProviderDevice, error) {
	networkID = strings.TrimSpace(networkID)
	if networkID == "" {
		return nil, fmt.Errorf("providers: network id is required")
	}
	var payload []struct {
		ID        string `json:"id"`
		NetworkID string `json:"networkId"`
		Name      string `json:"name"`
		Model     string `json:"model"`
		Serial    string `json:"serial"`
		MAC       string `json:"mac"`
		Status    string `json:"status"`
	}
	path := "/networks/" + url.PathEscape(networkID) + "/devices"
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	devices := make([]core.ProviderDevice, 0, len(payload))
	for _, item := range payload {
		device := core.ProviderDevice{
			ID:        strings.TrimSpace(item.ID),
			NetworkID: strings.TrimSpace(item.NetworkID),
			Name:      strings.TrimSpace(item.Name),
			Model:     strings.TrimSpace(item.Model),
			Serial:    strings.TrimSpace(item.Serial),
			MAC:       strings.TrimSpace(item.MAC),
			Status:    strings.TrimSpace(item.Status),
		}
		if device.NetworkID == "" {
			device.NetworkID = networkID
		}
		devices = append(devices, device)
	}
	return devices, nil
}

func (c *restInventoryClient) Close() error {
	return nil
}

// getJSON issues the request with bounded retries. Transport failures and
// retryable statuses back off and try again; client errors fail immediately.
func (c *restInventoryClient) getJSON(ctx context.Context, path string, target any) error {
	if c == nil || c.cfg.HTTPClient == nil {
		return fmt.Errorf("providers: inventory client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := c.cfg.BaseURL + path
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := core.WaitWithContext(ctx, c.cfg.Backoff.NextDelay(attempt-1)); err != nil {
				return err
			}
		}

		retryable, err := c.attempt(ctx, endpoint, target)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return fmt.Errorf("providers: request to %s failed after %d attempts: %w", endpoint, c.cfg.MaxAttempts, lastErr)
}

func (c *restInventoryClient) attempt(ctx context.Context, endpoint string, target any) (retryable bool, err error) {
	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Accept", "application/json")

	response, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return true, fmt.Errorf("providers: inventory request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxInventoryResponseBodyBytes+1))
	if readErr != nil {
		return true, fmt.Errorf("providers: read inventory response: %w", readErr)
	}
	if int64(len(body)) > maxInventoryResponseBodyBytes {
		return false, fmt.Errorf("providers: inventory response exceeds %d bytes", maxInventoryResponseBodyBytes)
	}

	switch {
	case response.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("providers: inventory endpoint rate limited (%d)", response.StatusCode)
	case response.StatusCode >= http.StatusInternalServerError:
		return true, fmt.Errorf("providers: inventory endpoint error (%d)", response.StatusCode)
	case response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices:
		return false, fmt.Errorf("providers: inventory endpoint error (%d): %s", response.StatusCode, summarizeBody(body))
	}

	if err := json.Unmarshal(body, target); err != nil {
		return false, fmt.Errorf("providers: decode inventory response: %w", err)
	}
	return false, nil
}

func summarizeBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 256 {
		trimmed = trimmed[:256]
	}
	if trimmed == "" {
		return "empty body"
	}
	return trimmed
}

var _ core.ClientFactory = (*RESTClientFactory)(nil)
