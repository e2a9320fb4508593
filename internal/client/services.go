package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/bhavan/backend/internal/application/catalog"
	"github.com/bhavan/backend/internal/application/purchase"
	"github.com/bhavan/backend/internal/domain/servicerequest"
)

// ErrReferenceNotFound is returned by FetchByReference when the API answers 404
var ErrReferenceNotFound = servicerequest.ErrReferenceNotFound

// maxReceiptSize bounds receipt downloads
const maxReceiptSize = 10 << 20

// Receipt is a downloaded receipt file
type Receipt struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ServicesClient calls the service purchase endpoints. None of its calls retry:
// payment initiation must never be sent twice without an explicit user action.
type ServicesClient struct {
	cfg Config
}

// NewServicesClient creates a ServicesClient
func NewServicesClient(cfg Config) *ServicesClient {
	return &ServicesClient{cfg: cfg.withDefaults()}
}

// ListServices returns the catalog, optionally filtered by category
func (c *ServicesClient) ListServices(ctx context.Context, category string) ([]catalog.ServiceResponse, error) {
	path := "/api/services"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var env envelope[[]catalog.ServiceResponse]
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// InitiatePurchase creates a service request and its payment intent. A gateway
// failure returns an *APIError whose ReferenceNumber identifies the request.
func (c *ServicesClient) InitiatePurchase(ctx context.Context, req purchase.InitiatePurchaseRequest) (*purchase.InitiatePurchaseResult, error) {
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": req.IdempotencyKey}
	}
	var result purchase.InitiatePurchaseResult
	if err := c.do(ctx, http.MethodPost, "/api/services/purchase", req, headers, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RetryPayment asks for a new payment session on the same reference
func (c *ServicesClient) RetryPayment(ctx context.Context, ref string) (*purchase.RetryPaymentResult, error) {
	var result purchase.RetryPaymentResult
	body := purchase.RetryPaymentRequest{ReferenceNumber: strings.TrimSpace(ref)}
	if err := c.do(ctx, http.MethodPost, "/api/services/payment/retry", body, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchByReference loads the tracking view. A 404 yields ErrReferenceNotFound.
func (c *ServicesClient) FetchByReference(ctx context.Context, ref string) (*purchase.RequestView, error) {
	var view purchase.RequestView
	if err := c.do(ctx, http.MethodGet, "/api/services/requests/"+url.PathEscape(strings.TrimSpace(ref)), nil, nil, &view); err != nil {
		return nil, notFoundAsReference(err)
	}
	return &view, nil
}

// Confirmation loads the confirmation view for the gateway return status
func (c *ServicesClient) Confirmation(ctx context.Context, ref, urlStatus string) (*purchase.ConfirmationView, error) {
	q := url.Values{"ref": {strings.TrimSpace(ref)}}
	if urlStatus != "" {
		q.Set("status", urlStatus)
	}
	var view purchase.ConfirmationView
	if err := c.do(ctx, http.MethodGet, "/api/services/confirmation?"+q.Encode(), nil, nil, &view); err != nil {
		return nil, notFoundAsReference(err)
	}
	return &view, nil
}

// DownloadReceipt fetches the receipt. format is "txt" or "pdf".
func (c *ServicesClient) DownloadReceipt(ctx context.Context, ref, format string) (*Receipt, error) {
	path := "/api/services/requests/" + url.PathEscape(strings.TrimSpace(ref)) + "/receipt"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download receipt: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, notFoundAsReference(decodeAPIError(resp))
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxReceiptSize))
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	receipt := &Receipt{
		FileName:    servicerequest.ReceiptFileName(ref),
		ContentType: resp.Header.Get("Content-Type"),
		Content:     content,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		receipt.FileName = params["filename"]
	}
	return receipt, nil
}

// RedirectTarget is the exact URL the browser navigates to after a retry
func RedirectTarget(result *purchase.RetryPaymentResult) string {
	if result == nil {
		return ""
	}
	return result.PaymentURL
}

func (c *ServicesClient) do(ctx context.Context, method, path string, in any, headers map[string]string, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func notFoundAsReference(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return ErrReferenceNotFound
	}
	return err
}
