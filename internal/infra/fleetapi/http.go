package fleetapi

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/fleetwatch/internal/core/domain"
)

// vehicleDataEndpoints limits vehicle_data to what the publishers use.
const vehicleDataEndpoints = "charge_state;climate_state;drive_state;vehicle_state"

// Stats holds request accounting for the client.
type Stats struct {
	Requests      int
	Failures      int
	AvgLatency    time.Duration
	LastSuccessAt time.Time
	LastFailureAt time.Time
}

// HTTPClient implements Client over the Fleet API REST endpoints.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client

	mu           sync.RWMutex
	totalLatency time.Duration
	stats        Stats
}

// NewHTTPClient creates a client with a pooled transport.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Products lists the account's products.
func (c *HTTPClient) Products(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.get(ctx, "/api/1/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// VehicleState calls the wake-state endpoint.
func (c *HTTPClient) VehicleState(ctx context.Context, vin string) (*domain.VehicleState, error) {
	var state domain.VehicleState
	if err := c.get(ctx, "/api/1/vehicles/"+url.PathEscape(vin), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// VehicleData calls the full telemetry endpoint.
func (c *HTTPClient) VehicleData(ctx context.Context, vin string) (*domain.VehicleData, error) {
	q := url.Values{"endpoints": {vehicleDataEndpoints}}
	var data domain.VehicleData
	if err := c.get(ctx, "/api/1/vehicles/"+url.PathEscape(vin)+"/vehicle_data", q, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// LiveStatus calls the energy site live status endpoint.
func (c *HTTPClient) LiveStatus(ctx context.Context, siteID string) (*domain.LiveStatus, error) {
	var status domain.LiveStatus
	if err := c.get(ctx, "/api/1/energy_sites/"+url.PathEscape(siteID)+"/live_status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SiteInfo calls the energy site info endpoint.
func (c *HTTPClient) SiteInfo(ctx context.Context, siteID string) (*domain.SiteInfo, error) {
	var info domain.SiteInfo
	if err := c.get(ctx, "/api/1/energy_sites/"+url.PathEscape(siteID)+"/site_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetStats returns a copy of the request accounting.
func (c *HTTPClient) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// get performs the request and decodes the "response" envelope into target.
func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, target any) error {
	start := time.Now()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.recordFailure()
		return &APIError{Message: "create request " + path, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure()
		return &APIError{Message: "request " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		return &APIError{Status: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		c.recordFailure()
		return mapError(resp, body)
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
		Error    string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.recordFailure()
		return &APIError{Status: resp.StatusCode, Message: "parse response", Err: err}
	}
	if envelope.Error != "" {
		c.recordFailure()
		return &APIError{Status: resp.StatusCode, Message: envelope.Error}
	}
	if err := json.Unmarshal(envelope.Response, target); err != nil {
		c.recordFailure()
		return &APIError{Status: resp.StatusCode, Message: "decode " + path, Err: err}
	}

	c.recordSuccess(time.Since(start))
	return nil
}

// mapError turns a non-200 response into one of the typed errors.
func mapError(resp *http.Response, body []byte) error {
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		After            any    `json:"after"`
	}
	_ = json.Unmarshal(body, &payload)

	msg := payload.Error
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	lower := strings.ToLower(msg + " " + payload.ErrorDescription)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		switch {
		case strings.Contains(lower, "login_required"), strings.Contains(lower, "login required"):
			return ErrLoginRequired
		case strings.Contains(lower, "expired"):
			return ErrOAuthExpired
		default:
			return ErrInvalidToken
		}
	case http.StatusRequestTimeout:
		return ErrVehicleOffline
	case http.StatusTooManyRequests:
		return &RateLimitedError{After: retryAfter(resp.Header.Get("Retry-After"), payload.After)}
	}

	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// retryAfter prefers the header, then the body field. Both are seconds.
func retryAfter(header string, body any) int {
	if n, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && n > 0 {
		return n
	}
	switch v := body.(type) {
	case float64:
		switch {
		case v <= 0 || math.IsNaN(v):
			return 0
		case v >= math.MaxInt:
			return math.MaxInt
		}
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func (c *HTTPClient) recordSuccess(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Requests++
	c.totalLatency += latency
	c.stats.LastSuccessAt = time.Now()
	if ok := c.stats.Requests - c.stats.Failures; ok > 0 {
		c.stats.AvgLatency = c.totalLatency / time.Duration(ok)
	}
}

func (c *HTTPClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Requests++
	c.stats.Failures++
	c.stats.LastFailureAt = time.Now()
}
