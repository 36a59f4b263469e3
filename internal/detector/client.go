package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gatewarden/internal/services"
)

// Result is the sidecar's latest OCR output for one stream.
type Result struct {
	PlateText string
	Timestamp time.Time
}

// Empty reports whether the sidecar has no usable plate text.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.PlateText) == "" || r.Timestamp.IsZero()
}

type latestResponse struct {
	PlateText string  `json:"plate_text"`
	Timestamp float64 `json:"timestamp"`
	Error     string  `json:"error,omitempty"`
}

// Client queries the sidecar HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a sidecar client. A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Latest fetches the most recent result for the given stream URL.
func (c *Client) Latest(ctx context.Context, streamURL string) (Result, error) {
	endpoint := c.baseURL + "/latest_result?url=" + url.QueryEscape(streamURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, services.Wrap(services.ErrUpstream, "detector", "build request", "", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrUpstream, "detector", "latest result", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Result{}, services.Wrap(services.ErrUpstream, "detector", "latest result",
			fmt.Sprintf("status %d", resp.StatusCode), errors.New(strings.TrimSpace(string(snippet))))
	}

	var payload latestResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return Result{}, services.Wrap(services.ErrUpstream, "detector", "decode response", "", err)
	}
	if payload.Error != "" {
		return Result{}, services.Wrap(services.ErrUpstream, "detector", "latest result", "sidecar error", errors.New(payload.Error))
	}

	result := Result{PlateText: strings.TrimSpace(payload.PlateText)}
	if payload.Timestamp > 0 {
		sec, frac := math.Modf(payload.Timestamp)
		result.Timestamp = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return result, nil
}
