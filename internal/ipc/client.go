package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatewarden/internal/api"
)

// ErrDaemonUnavailable reports that no daemon answered at the API address.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// APIError is a decoded non-2xx daemon response.
type APIError struct {
	Status    int
	Message   string
	Kind      string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("daemon returned %d: %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client provides HTTP access to the daemon API.
type Client struct {
	base     *url.URL
	token    string
	operator string
	http     *http.Client
}

// Dial builds a client for the daemon listening on bind. The connection is
// not checked; use Status to check liveness.
func Dial(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, fmt.Errorf("%w: api bind is empty", ErrDaemonUnavailable)
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// WithOperator returns a copy of the client that sends operator on every request.
func (c *Client) WithOperator(operator string) *Client {
	clone := *c
	clone.operator = strings.TrimSpace(operator)
	return &clone
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c != nil && c.http != nil {
		c.http.CloseIdleConnections()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var resp api.DaemonStatus
	if err := c.call(ctx, http.MethodGet, "/api/status", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pending lists plates awaiting approval.
func (c *Client) Pending(ctx context.Context) (*api.PendingListResponse, error) {
	var resp api.PendingListResponse
	if err := c.call(ctx, http.MethodGet, "/api/guard/pending", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Barrier returns the barrier snapshot.
func (c *Client) Barrier(ctx context.Context) (*api.BarrierView, error) {
	var resp api.BarrierView
	if err := c.call(ctx, http.MethodGet, "/api/guard/barrier", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Occupancy returns every known plate's occupancy, or just plate's when set.
func (c *Client) Occupancy(ctx context.Context, plate string) (*api.OccupancyResponse, error) {
	query := url.Values{}
	path := "/api/guard/occupancy"
	if strings.TrimSpace(plate) != "" {
		path = "/api/guard/car-status"
		query.Set("plate", plate)
	}
	var resp api.OccupancyResponse
	if err := c.call(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogQuery narrows Logs.
type LogQuery struct {
	Limit  int
	Plate  string
	Action string
}

// Logs lists access log entries, most recent first.
func (c *Client) Logs(ctx context.Context, q LogQuery) (*api.LogsResponse, error) {
	query := url.Values{}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if v := strings.TrimSpace(q.Plate); v != "" {
		query.Set("plate", v)
	}
	if v := strings.TrimSpace(q.Action); v != "" {
		query.Set("action", v)
	}
	var resp api.LogsResponse
	if err := c.call(ctx, http.MethodGet, "/api/guard/logs", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Approve approves a pending plate.
func (c *Client) Approve(ctx context.Context, plate string) (*api.ResolveResponse, error) {
	var resp api.ResolveResponse
	query := url.Values{"plate": {plate}}
	if err := c.call(ctx, http.MethodPost, "/api/guard/open", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reject rejects a pending plate.
func (c *Client) Reject(ctx context.Context, plate string) (*api.ResolveResponse, error) {
	var resp api.ResolveResponse
	query := url.Values{"plate": {plate}}
	if err := c.call(ctx, http.MethodPost, "/api/guard/reject", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resolve applies decision to a pending plate.
func (c *Client) Resolve(ctx context.Context, plate, decision string) (*api.ResolveResponse, error) {
	var resp api.ResolveResponse
	req := api.ResolveRequest{Plate: plate, Decision: decision, Operator: c.operator}
	if err := c.call(ctx, http.MethodPost, "/api/guard/resolve", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ForceOpen opens the barrier without a plate.
func (c *Client) ForceOpen(ctx context.Context) (*api.BarrierActionResponse, error) {
	var resp api.BarrierActionResponse
	if err := c.call(ctx, http.MethodPost, "/api/guard/open", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ForceClose closes the barrier.
func (c *Client) ForceClose(ctx context.Context) (*api.BarrierActionResponse, error) {
	var resp api.BarrierActionResponse
	if err := c.call(ctx, http.MethodPost, "/api/guard/close", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Detect pushes a plate reading.
func (c *Client) Detect(ctx context.Context, req api.DetectionRequest) (*api.DetectionResponse, error) {
	var resp api.DetectionResponse
	if err := c.call(ctx, http.MethodPost, "/api/input/detection", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Credential presents a user credential.
func (c *Client) Credential(ctx context.Context, userID string) (*api.ResolveResponse, error) {
	var resp api.ResolveResponse
	if err := c.call(ctx, http.MethodPost, "/api/input/credential", nil, api.CredentialRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotificationResponse reports a test notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call(ctx, http.MethodPost, "/api/notifications/test", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrDaemonUnavailable
	}
	if c.operator != "" && method == http.MethodPost {
		if query == nil {
			query = url.Values{}
		}
		query.Set("operator", c.operator)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isConnError(err) {
			return fmt.Errorf("%w at %s: %w", ErrDaemonUnavailable, c.base.Host, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{
			Status:    resp.StatusCode,
			Message:   payload.Error,
			Kind:      payload.Kind,
			RequestID: payload.RequestID,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isConnError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsUnavailable reports whether err means no daemon answered.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDaemonUnavailable)
}
