package purchase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bhavan/backend/internal/domain/servicecatalog"
	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/printing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockPaymentGateway is a mock implementation of servicerequest.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreatePaymentIntent(ctx context.Context, req servicerequest.PaymentIntentRequest) (*servicerequest.PaymentIntent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*servicerequest.PaymentIntent), args.Error(1)
}

func (m *MockPaymentGateway) CreateCheckoutSession(ctx context.Context, req servicerequest.CheckoutRequest) (*servicerequest.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*servicerequest.CheckoutSession), args.Error(1)
}

func (m *MockPaymentGateway) Refund(ctx context.Context, transactionID string, idempotencyKey string) (*servicerequest.RefundResult, error) {
	args := m.Called(ctx, transactionID, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*servicerequest.RefundResult), args.Error(1)
}

func (m *MockPaymentGateway) ParseEvent(payload []byte, signature string) (*servicerequest.GatewayEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*servicerequest.GatewayEvent), args.Error(1)
}

func (m *MockPaymentGateway) CancelPayment(ctx context.Context, transactionID string) error {
	return m.Called(ctx, transactionID).Error(0)
}

func (m *MockPaymentGateway) LookupPayment(ctx context.Context, transactionID string) (*servicerequest.GatewayEvent, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*servicerequest.GatewayEvent), args.Error(1)
}

// basicGateway exposes only the PaymentGateway methods of the wrapped mock
type basicGateway struct {
	servicerequest.PaymentGateway
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockReceiptRenderer is a mock implementation of printing.ReceiptRenderer
type MockReceiptRenderer struct {
	mock.Mock
}

func (m *MockReceiptRenderer) RenderReceiptPDF(ctx context.Context, title, text string) (*printing.RenderResult, error) {
	args := m.Called(ctx, title, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printing.RenderResult), args.Error(1)
}

func (m *MockReceiptRenderer) Close() error { return nil }

type memServiceRepo struct {
	services []*servicecatalog.Service
}

func (r *memServiceRepo) FindByID(_ context.Context, id uuid.UUID) (*servicecatalog.Service, error) {
	for _, s := range r.services {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memServiceRepo) FindBySlug(_ context.Context, slug string) (*servicecatalog.Service, error) {
	for _, s := range r.services {
		if s.Slug == slug {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memServiceRepo) FindActive(_ context.Context, category servicecatalog.Category) ([]servicecatalog.Service, error) {
	var out []servicecatalog.Service
	for _, s := range r.services {
		if s.Active && (category == "" || s.Category == category) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memServiceRepo) Save(_ context.Context, s *servicecatalog.Service) error {
	r.services = append(r.services, s)
	return nil
}

// memRequestRepo stores copies so tests observe only what was saved
type memRequestRepo struct {
	mu    sync.Mutex
	byRef map[string]servicerequest.ServiceRequest
	saves int
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{byRef: map[string]servicerequest.ServiceRequest{}}
}

func (r *memRequestRepo) Save(_ context.Context, req *servicerequest.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	cp.Timeline = append([]servicerequest.TimelineItem(nil), req.Timeline...)
	r.byRef[req.ReferenceNumber] = cp
	r.saves++
	return nil
}

func (r *memRequestRepo) FindByReference(_ context.Context, ref string) (*servicerequest.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.byRef[ref]
	if !ok {
		return nil, shared.ErrNotFound
	}
	req.Timeline = append([]servicerequest.TimelineItem(nil), req.Timeline...)
	req.ClearDomainEvents()
	return &req, nil
}

func (r *memRequestRepo) FindByTransactionID(_ context.Context, tx string) (*servicerequest.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.byRef {
		if req.Payment.TransactionID == tx {
			req.ClearDomainEvents()
			return &req, nil
		}
	}
	return nil, shared.ErrNotFound
}

// FindAll filters like the GORM repository and pages in updated_at, id order
func (r *memRequestRepo) FindAll(_ context.Context, filter shared.Filter) ([]servicerequest.ServiceRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	filter = filter.Normalize()
	var out []servicerequest.ServiceRequest
	for _, req := range r.byRef {
		if st, ok := filter.Filters["status"]; ok && string(req.Status) != st {
			continue
		}
		if ps, ok := filter.Filters["payment_status"]; ok && string(req.Payment.Status) != ps {
			continue
		}
		if before, ok := filter.Filters["updated_before"].(time.Time); ok && !req.UpdatedAt.Before(before) {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	total := int64(len(out))
	start := min(filter.Offset(), len(out))
	end := min(start+filter.PageSize, len(out))
	return out[start:end], total, nil
}

type seqReferences struct {
	next int64
}

func (g *seqReferences) Next(context.Context) (string, error) {
	n := g.next
	g.next++
	return servicerequest.FormatReference("BHV", n), nil
}

type failingReferences struct {
	err   error
	calls int
	next  servicerequest.ReferenceGenerator
}

// Next fails on the first call and delegates afterwards
func (g *failingReferences) Next(ctx context.Context) (string, error) {
	g.calls++
	if g.calls == 1 {
		return "", g.err
	}
	return g.next.Next(ctx)
}
