package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bhavan/backend/internal/application/lead"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// FormSubmission is a generic site form
type FormSubmission = lead.SubmitFormRequest

// SubmitResult acknowledges an accepted submission
type SubmitResult = lead.SubmitFormResult

// FormClient posts form submissions, retrying transient failures
type FormClient struct {
	cfg Config
	// notify observes retry delays in tests.
	notify func(err error, delay time.Duration)
}

// NewFormClient creates a FormClient
func NewFormClient(cfg Config) *FormClient {
	return &FormClient{cfg: cfg.withDefaults()}
}

// Submit posts the form. Network errors, 5xx, 408 and 429 are retried up to
// MaxAttempts attempts in total with delays of BaseDelay × 2^(n−1). Any other
// 4xx returns an *APIError at once.
func (c *FormClient) Submit(ctx context.Context, form FormSubmission) (*SubmitResult, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}

	var result *SubmitResult
	attempt := 0
	operation := func() error {
		attempt++
		res, err := c.post(ctx, body)
		if err == nil {
			result = res
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		c.cfg.Logger.Warn("Form submission failed, retrying",
			zap.String("form_type", form.FormType),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if c.notify != nil {
			c.notify(err, delay)
		}
	}

	if err := backoff.RetryNotify(operation, c.policy(ctx), notify); err != nil {
		return nil, err
	}
	return result, nil
}

// policy is exponential without jitter, bounded by attempts rather than elapsed time
func (c *FormClient) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = c.cfg.BaseDelay << uint(c.cfg.MaxAttempts)
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.cfg.MaxAttempts-1)), ctx)
}

func (c *FormClient) post(ctx context.Context, body []byte) (*SubmitResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit form: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var env envelope[SubmitResult]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return &env.Data, nil
}
