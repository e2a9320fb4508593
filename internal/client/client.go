// Package client is the Go SDK for the public Bhavan API. It backs bhavanctl
// and plays the browser's role in end-to-end tests.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Defaults applied by Config.withDefaults
const (
	DefaultFormEndpoint = "/api/submit-form"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxAttempts  = 3
	DefaultBaseDelay    = time.Second
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 << 10

// Config configures the SDK clients
type Config struct {
	BaseURL string
	// Endpoint is the form submission path.
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Endpoint == "" {
		c.Endpoint = DefaultFormEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    []dto.ValidationDetail
	// ReferenceNumber is set when a purchase failed after the request was created.
	ReferenceNumber string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Temporary reports whether the request may succeed when sent again
func (e *APIError) Temporary() bool {
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	return code >= http.StatusInternalServerError ||
		code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests
}

// envelope is the standard success body
type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// decodeAPIError reads the error envelope of resp. Bodies that are not JSON
// fall back to the status text.
func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return apiErr
	}
	var env struct {
		Error           *dto.ErrorInfo `json:"error"`
		ReferenceNumber string         `json:"referenceNumber"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		apiErr.ReferenceNumber = env.ReferenceNumber
		apiErr.Code = env.Error.Code
		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
