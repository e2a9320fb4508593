// Package analytics posts product analytics events to an HTTP collector.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bhavan/backend/internal/infrastructure/config"
)

// WriteKeyHeader carries the collector write key
const WriteKeyHeader = "X-Write-Key"

// Event is one tracked action
type Event struct {
	Name        string         `json:"event"`
	AffiliateID string         `json:"affiliate_id,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Tracker records analytics events
type Tracker interface {
	Track(ctx context.Context, event Event) error
}

// Client sends events to the configured endpoint
type Client struct {
	endpoint   string
	writeKey   string
	enabled    bool
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client. A disabled or endpoint-less config yields a client
// whose Track is a no-op.
func New(cfg config.AnalyticsConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		endpoint:   cfg.Endpoint,
		writeKey:   cfg.WriteKey,
		enabled:    cfg.Enabled && cfg.Endpoint != "",
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether Track performs I/O
func (c *Client) Enabled() bool {
	return c.enabled
}

// Track posts the event as JSON. Non-2xx responses are returned as errors.
func (c *Client) Track(ctx context.Context, event Event) error {
	if !c.enabled {
		return nil
	}
	if event.Name == "" {
		return errors.New("analytics: event name is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}
	event.Timestamp = event.Timestamp.UTC()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("analytics: encode %s: %w", event.Name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("analytics: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.writeKey != "" {
		req.Header.Set(WriteKeyHeader, c.writeKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analytics: send %s: %w", event.Name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("analytics: collector returned %d for %s", resp.StatusCode, event.Name)
	}
	return nil
}

var _ Tracker = (*Client)(nil)
