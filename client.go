// Package eventdesk provides the Go client SDK for the EventDesk sporting
// event calendar service, including an offline-resilience layer: a
// connectivity monitor, a local mirror of the event collection, an
// operation queue for writes made while disconnected, and a sync
// coordinator that hides the online/offline branching.
//
// Example:
//
//	client := eventdesk.NewClient(eventdesk.WithBaseURL("http://localhost:5000"))
//	coord := eventdesk.NewSyncCoordinator(client, eventdesk.NewMemoryStorage(), nil)
//
//	page, _ := coord.GetEvents(ctx, 1, 10, eventdesk.Filters{Title: "cup"})
//	result := coord.CreateEvent(ctx, &eventdesk.EventInput{...})
//	if result.Queued {
//		// stored locally, will replay once the server is reachable
//	}
package eventdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	DefaultTimeout = 30 * time.Second

	// entitiesPath is the base path of the event CRUD endpoints.
	entitiesPath = "/entities"
)

// ============================================================================
// Client
// ============================================================================

// Client is a thin HTTP client for the EventDesk REST API. It performs no
// offline handling itself; use SyncCoordinator for that.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a new EventDesk API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// Error bodies are {"message": ...}; tolerate anything else.
		_ = json.Unmarshal(data, apiErr)
		return nil, apiErr
	}
	return data, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// ============================================================================
// Event API Methods
// ============================================================================

// Health probes the health-check endpoint with a no-cache GET. A nil
// error means the server answered 2xx.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	u := c.baseURL + entitiesPath + "/health-check"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}
	return decodeJSON[HealthStatus](data)
}

// ListEvents fetches one page of events with the given filters applied
// server-side.
func (c *Client) ListEvents(ctx context.Context, page, limit int, filters Filters) (*EventPage, error) {
	query := filters.query()
	query["page"] = strconv.Itoa(page)
	query["limit"] = strconv.Itoa(limit)

	data, err := c.doRequest(ctx, http.MethodGet, entitiesPath, nil, query)
	if err != nil {
		return nil, err
	}
	return decodeJSON[EventPage](data)
}

// CreateEvent creates a new event. The server assigns the identifier.
func (c *Client) CreateEvent(ctx context.Context, in *EventInput) (*Event, error) {
	data, err := c.doRequest(ctx, http.MethodPost, entitiesPath, in, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Event](data)
}

// UpdateEvent replaces the event with the given identifier.
func (c *Client) UpdateEvent(ctx context.Context, id EventID, in *EventInput) (*Event, error) {
	data, err := c.doRequest(ctx, http.MethodPut, entitiesPath+"/"+string(id), in, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Event](data)
}

// DeleteEvent deletes the event with the given identifier. Use IsNotFound
// to detect an already-absent resource.
func (c *Client) DeleteEvent(ctx context.Context, id EventID) error {
	_, err := c.doRequest(ctx, http.MethodDelete, entitiesPath+"/"+string(id), nil, nil)
	return err
}
