package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-inventory-sync/core"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type TokenClientConfig struct {
	TokenURL           string
	ClientID           string
	ClientSecret       string
	ClientSecretInBody bool
	TokenTTL           time.Duration
	RequestTimeout     time.Duration
	Now                func() time.Time
	HTTPClient         HTTPDoer
}

// TokenClient speaks the refresh-token grant against the provider's token
// endpoint. Some endpoints rotate the refresh token on every exchange; the
// rotated token comes back on the grant so callers can persist it.
type TokenClient struct {
	cfg        TokenClientConfig
	httpClient HTTPDoer
}

type tokenEndpointPayload struct {
	AccessToken           string
	TokenType             string
	RefreshToken          string
	ExpiresIn             int64
	RefreshTokenExpiresIn int64
	ErrorCode             string
	ErrorDescription      string
}

func NewTokenClient(cfg TokenClientConfig) (*TokenClient, error) {
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("providers: token url is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("providers: client id is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &TokenClient{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

func (c *TokenClient) RefreshAccessToken(ctx context.Context, refreshToken string) (core.TokenGrant, error) {
	if c == nil || c.httpClient == nil {
		return core.TokenGrant{}, fmt.Errorf("providers: token client is not configured")
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.TokenGrant{}, fmt.Errorf("providers: refresh token is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		c.cfg.TokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return core.TokenGrant{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	}

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.TokenGrant{}, fmt.Errorf("providers: token request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return core.TokenGrant{}, fmt.Errorf("providers: read token response: %w", readErr)
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return core.TokenGrant{}, fmt.Errorf("providers: token response exceeds %d bytes", maxTokenResponseBodyBytes)
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		// Gateways answer token failures with HTML or plain text; the
		// status code and a body excerpt beat a decode error here.
		detail := summarizeTokenBody(body)
		if parseErr == nil && (payload.ErrorCode != "" || strings.TrimSpace(payload.ErrorDescription) != "") {
			detail = describeTokenError(payload)
		}
		return core.TokenGrant{}, fmt.Errorf(
			"providers: token endpoint error (%d): %s",
			response.StatusCode,
			detail,
		)
	}
	if parseErr != nil {
		return core.TokenGrant{}, fmt.Errorf("providers: decode token response: %w", parseErr)
	}
	if payload.ErrorCode != "" {
		return core.TokenGrant{}, fmt.Errorf("providers: token endpoint error: %s", describeTokenError(payload))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.TokenGrant{}, fmt.Errorf("providers: token endpoint response missing access token")
	}

	now := c.cfg.Now().UTC()
	grant := core.TokenGrant{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		ExpiresAt:    now.Add(c.resolveTTL(payload.ExpiresIn)),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
	}
	if grant.RefreshToken != "" && payload.RefreshTokenExpiresIn > 0 {
		expiresAt := now.Add(time.Duration(payload.RefreshTokenExpiresIn) * time.Second)
		grant.RefreshTokenExpiresAt = &expiresAt
	}
	return grant, nil
}

func (c *TokenClient) resolveTTL(expiresIn int64) time.Duration {
	if expiresIn > 0 {
		return time.Duration(expiresIn) * time.Second
	}
	return c.cfg.TokenTTL
}

func describeTokenError(payload tokenEndpointPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func summarizeTokenBody(body []byte) string {
	const maxSummaryBytes = 256
	summary := strings.Join(strings.Fields(string(body)), " ")
	if summary == "" {
		return "empty response body"
	}
	if len(summary) > maxSummaryBytes {
		summary = summary[:maxSummaryBytes] + "..."
	}
	return summary
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:           readAnyString(decoded["access_token"]),
		TokenType:             readAnyString(decoded["token_type"]),
		RefreshToken:          readAnyString(decoded["refresh_token"]),
		ExpiresIn:             readAnyInt64(decoded["expires_in"]),
		RefreshTokenExpiresIn: readAnyInt64(decoded["refresh_token_expires_in"]),
		ErrorCode:             readAnyString(decoded["error"]),
		ErrorDescription:      readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	refreshExpiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("refresh_token_expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:           strings.TrimSpace(values.Get("access_token")),
		TokenType:             strings.TrimSpace(values.Get("token_type")),
		RefreshToken:          strings.TrimSpace(values.Get("refresh_token")),
		ExpiresIn:             expiresIn,
		RefreshTokenExpiresIn: refreshExpiresIn,
		ErrorCode:             strings.TrimSpace(values.Get("error")),
		ErrorDescription:      strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

var _ core.TokenRefresher = (*TokenClient)(nil)
