package client

import (
	"context"
	"sync"

	"github.com/bhavan/backend/internal/application/purchase"
	"github.com/bhavan/backend/internal/domain/servicerequest"
)

// RequestFetcher loads a tracking view by reference
type RequestFetcher interface {
	FetchByReference(ctx context.Context, ref string) (*purchase.RequestView, error)
}

// Tracker follows one reference number and keeps the last view it loaded.
// A failed refresh leaves the previous view in place.
type Tracker struct {
	fetcher RequestFetcher
	ref     string

	mu   sync.RWMutex
	last *purchase.RequestView
}

// NewTracker creates a Tracker for ref
func NewTracker(fetcher RequestFetcher, ref string) *Tracker {
	return &Tracker{fetcher: fetcher, ref: servicerequest.NormalizeReference(ref)}
}

// Reference returns the tracked reference number
func (t *Tracker) Reference() string {
	return t.ref
}

// Refresh fetches the current view. On error the previous view is kept and
// the error returned.
func (t *Tracker) Refresh(ctx context.Context) (*purchase.RequestView, error) {
	view, err := t.fetcher.FetchByReference(ctx, t.ref)
	if err != nil {
		return t.Last(), err
	}
	t.mu.Lock()
	t.last = view
	t.mu.Unlock()
	return view, nil
}

// Last returns the most recently fetched view, or nil
func (t *Tracker) Last() *purchase.RequestView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// ReceiptAvailable is false until a view has been loaded
func (t *Tracker) ReceiptAvailable() bool {
	return t.Last() != nil
}

// DisplayState infers the customer-facing state of the last view for the
// status carried on a gateway redirect. Without a view it is pending.
func (t *Tracker) DisplayState(urlStatus string) servicerequest.DisplayState {
	last := t.Last()
	if last == nil {
		if s := servicerequest.NormalizeURLStatus(urlStatus); s != "" {
			return servicerequest.DisplayState(s)
		}
		return servicerequest.DisplayPending
	}
	return servicerequest.InferDisplayState(urlStatus,
		servicerequest.PaymentStatus(last.Request.Payment.Status),
		servicerequest.Status(last.Request.Status))
}
