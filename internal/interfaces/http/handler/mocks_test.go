package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bhavan/backend/internal/application/catalog"
	"github.com/bhavan/backend/internal/application/identity"
	"github.com/bhavan/backend/internal/application/lead"
	"github.com/bhavan/backend/internal/application/listing"
	"github.com/bhavan/backend/internal/application/purchase"
	"github.com/bhavan/backend/internal/application/referral"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"github.com/bhavan/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// newTestRouter applies the request-scoped middleware handlers rely on
func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Attribution(zap.NewNop()))
	return r
}

func doJSON(r http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListServices(ctx context.Context, q catalog.ServiceListQuery) ([]catalog.ServiceResponse, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.ServiceResponse), args.Error(1)
}

func (m *MockCatalogService) GetService(ctx context.Context, idOrSlug string) (*catalog.ServiceResponse, error) {
	args := m.Called(ctx, idOrSlug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.ServiceResponse), args.Error(1)
}

type MockPurchaseService struct {
	mock.Mock
}

func (m *MockPurchaseService) InitiatePurchase(ctx context.Context, req purchase.InitiatePurchaseRequest) (*purchase.InitiatePurchaseResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.InitiatePurchaseResult), args.Error(1)
}

func (m *MockPurchaseService) RetryPayment(ctx context.Context, ref string) (*purchase.RetryPaymentResult, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.RetryPaymentResult), args.Error(1)
}

func (m *MockPurchaseService) GetByReference(ctx context.Context, ref string) (*purchase.RequestView, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.RequestView), args.Error(1)
}

func (m *MockPurchaseService) Confirmation(ctx context.Context, ref, urlStatus string) (*purchase.ConfirmationView, error) {
	args := m.Called(ctx, ref, urlStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.ConfirmationView), args.Error(1)
}

func (m *MockPurchaseService) Receipt(ctx context.Context, ref string) (*purchase.ReceiptFile, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.ReceiptFile), args.Error(1)
}

func (m *MockPurchaseService) ReceiptPDF(ctx context.Context, ref string) (*purchase.ReceiptFile, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.ReceiptFile), args.Error(1)
}

func (m *MockPurchaseService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

func (m *MockPurchaseService) ListRequests(ctx context.Context, q purchase.ListRequestsQuery) (shared.Paginated[purchase.RequestDTO], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(shared.Paginated[purchase.RequestDTO]), args.Error(1)
}

func (m *MockPurchaseService) AdvanceStatus(ctx context.Context, ref string, req purchase.AdvanceStatusRequest) (*purchase.RequestView, error) {
	args := m.Called(ctx, ref, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.RequestView), args.Error(1)
}

func (m *MockPurchaseService) Refund(ctx context.Context, ref string) (*purchase.RequestView, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.RequestView), args.Error(1)
}

func (m *MockPurchaseService) Reconcile(ctx context.Context, req purchase.ReconcileRequest) (purchase.ReconcileResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(purchase.ReconcileResult), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, input identity.LoginInput) (*identity.LoginResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.LoginResult), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*identity.TokenResult, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.TokenResult), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, input identity.LogoutInput) error {
	return m.Called(ctx, input).Error(0)
}

type MockLeadService struct {
	mock.Mock
}

func (m *MockLeadService) Submit(ctx context.Context, req lead.SubmitFormRequest, fallbackAffiliate string) (*lead.SubmitFormResult, error) {
	args := m.Called(ctx, req, fallbackAffiliate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lead.SubmitFormResult), args.Error(1)
}

func (m *MockLeadService) ListLeads(ctx context.Context, q lead.ListLeadsQuery) (shared.Paginated[lead.LeadResponse], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(shared.Paginated[lead.LeadResponse]), args.Error(1)
}

func (m *MockLeadService) UpdateLeadStatus(ctx context.Context, id uuid.UUID, req lead.UpdateLeadStatusRequest) (*lead.LeadResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lead.LeadResponse), args.Error(1)
}

type MockReferralService struct {
	mock.Mock
}

func (m *MockReferralService) RecordEvent(ctx context.Context, req referral.RecordEventRequest, fallbackAffiliate string) (*referral.RecordEventResult, error) {
	args := m.Called(ctx, req, fallbackAffiliate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*referral.RecordEventResult), args.Error(1)
}

func (m *MockReferralService) Summary(ctx context.Context, affiliateID string) (*referral.SummaryResponse, error) {
	args := m.Called(ctx, affiliateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*referral.SummaryResponse), args.Error(1)
}

func (m *MockReferralService) ListEvents(ctx context.Context, q referral.ListEventsQuery) (shared.Paginated[referral.ReferralEventResponse], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(shared.Paginated[referral.ReferralEventResponse]), args.Error(1)
}

type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) Submit(ctx context.Context, req listing.SubmitListingRequest, fallbackAffiliate string) (*listing.SubmitListingResult, error) {
	args := m.Called(ctx, req, fallbackAffiliate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.SubmitListingResult), args.Error(1)
}

func (m *MockListingService) InitiateImageUpload(ctx context.Context, req listing.ImageUploadRequest) (*listing.ImageUploadResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.ImageUploadResponse), args.Error(1)
}

func (m *MockListingService) ListApproved(ctx context.Context, q listing.PublicListQuery) (shared.Paginated[listing.ListingResponse], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(shared.Paginated[listing.ListingResponse]), args.Error(1)
}

func (m *MockListingService) GetApproved(ctx context.Context, id uuid.UUID) (*listing.ListingResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.ListingResponse), args.Error(1)
}

func (m *MockListingService) List(ctx context.Context, q listing.AdminListQuery) (shared.Paginated[listing.AdminListingResponse], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(shared.Paginated[listing.AdminListingResponse]), args.Error(1)
}

func (m *MockListingService) Approve(ctx context.Context, id, adminID uuid.UUID) (*listing.AdminListingResponse, error) {
	args := m.Called(ctx, id, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.AdminListingResponse), args.Error(1)
}

func (m *MockListingService) Reject(ctx context.Context, id, adminID uuid.UUID, req listing.RejectListingRequest) (*listing.AdminListingResponse, error) {
	args := m.Called(ctx, id, adminID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.AdminListingResponse), args.Error(1)
}
