package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bhavan/backend/internal/domain/whatsapp"
	"github.com/bhavan/backend/internal/infrastructure/auth"
	"github.com/bhavan/backend/internal/interfaces/http/handler"
	"github.com/bhavan/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type rejectAll struct{}

func (rejectAll) ValidateAccessToken(context.Context, string) (*auth.Claims, error) {
	return nil, auth.ErrInvalidToken
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	g := NewDomainGroup("test", "/test")
	g.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(g)
	r.Setup()

	rec := serve(engine, http.MethodGet, "/api/test/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestRouterWithBasePath(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithBasePath("/v2"))
	r.Register(NewDomainGroup("test", "/test").GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	}))
	r.Setup()

	assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodGet, "/v2/test/ping").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/test/ping").Code)
}

func TestDomainGroup(t *testing.T) {
	t.Run("subgroups inherit middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("admin", "/admin").Use(func(c *gin.Context) {
			c.Header("X-Admin", "1")
			c.Next()
		})
		g.Group("leads", "/leads").PATCH("/:id", func(c *gin.Context) {
			c.String(http.StatusOK, c.Param("id"))
		})
		g.RegisterRoutes(engine.Group("/api"))

		rec := serve(engine, http.MethodPatch, "/api/admin/leads/42")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "42", rec.Body.String())
		assert.Equal(t, "1", rec.Header().Get("X-Admin"))
	})

	t.Run("routes lists full paths", func(t *testing.T) {
		g := NewDomainGroup("admin", "/admin")
		g.Handle(http.MethodGet, "", "dashboard", func(*gin.Context) {})
		g.Group("listings", "/listings").Handle(http.MethodPost, "/:id/approve", "approve", func(*gin.Context) {})

		assert.Equal(t, []Route{
			{Method: http.MethodGet, Path: "/admin", Description: "dashboard"},
			{Method: http.MethodPost, Path: "/admin/listings/:id/approve", Description: "approve"},
		}, g.Routes())
		assert.Equal(t, "admin", g.Name())
		assert.Equal(t, "/admin", g.Prefix())
	})

	t.Run("routes below middleware are guarded", func(t *testing.T) {
		g := NewDomainGroup("auth", "/auth").
			Handle(http.MethodPost, "/login", "login", func(*gin.Context) {})
		g.Group("session", "").Use(func(c *gin.Context) { c.Next() }).
			Handle(http.MethodGet, "/me", "me", func(*gin.Context) {})

		routes := g.Routes()
		require.Len(t, routes, 2)
		assert.False(t, routes[0].Guarded)
		assert.Equal(t, "/auth/me", routes[1].Path)
		assert.True(t, routes[1].Guarded)
	})
}

func testHandlers() Handlers {
	return Handlers{
		System:    handler.NewSystemHandler("bhavan", "test", nil),
		Services:  handler.NewServiceHandler(nil, nil),
		Webhooks:  handler.NewStripeWebhookHandler(nil),
		Leads:     handler.NewLeadHandler(nil),
		Referral:  handler.NewReferralHandler(nil),
		Links:     handler.NewLinkHandler("https://bhavan.example", whatsapp.NewLinker("9876543210", "91")),
		Listings:  handler.NewListingHandler(nil),
		Auth:      handler.NewAuthHandler(nil),
		Requests:  handler.NewRequestAdminHandler(nil),
		AdminAuth: middleware.JWTAuthMiddleware(rejectAll{}, zap.NewNop()),
	}
}

func TestMount_RouteTable(t *testing.T) {
	engine := gin.New()
	Mount(engine, testHandlers())

	registered := make(map[string]bool)
	for _, ri := range engine.Routes() {
		registered[ri.Method+" "+ri.Path] = true
	}

	for _, want := range []string{
		"GET /health",
		"GET /api/services",
		"GET /api/services/:idOrSlug",
		"POST /api/services/purchase",
		"POST /api/services/payment/retry",
		"GET /api/services/requests/:ref",
		"GET /api/services/requests/:ref/receipt",
		"GET /api/services/confirmation",
		"POST /api/webhooks/stripe",
		"POST /api/submit-form",
		"POST /api/referrals/events",
		"GET /api/links/propagate",
		"GET /api/whatsapp/link",
		"GET /api/listings",
		"GET /api/listings/:id",
		"POST /api/listings",
		"POST /api/listings/uploads",
		"POST /api/auth/login",
		"POST /api/auth/refresh",
		"POST /api/auth/logout",
		"GET /api/auth/me",
		"GET /api/admin/listings",
		"POST /api/admin/listings/:id/approve",
		"POST /api/admin/listings/:id/reject",
		"GET /api/admin/leads",
		"PATCH /api/admin/leads/:id",
		"GET /api/admin/service-requests",
		"POST /api/admin/service-requests/reconcile",
		"POST /api/admin/service-requests/:ref/actions",
		"POST /api/admin/service-requests/:ref/refund",
		"GET /api/admin/referrals/summary",
		"GET /api/admin/referrals/events",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestMount_AdminRequiresToken(t *testing.T) {
	engine := gin.New()
	Mount(engine, testHandlers())

	for _, path := range []string{"/api/admin/leads", "/api/admin/service-requests", "/api/auth/me"} {
		rec := serve(engine, http.MethodGet, path)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestMount_PublicRoutes(t *testing.T) {
	engine := gin.New()
	Mount(engine, testHandlers())

	rec := serve(engine, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(engine, http.MethodGet, "/api/whatsapp/link")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wa.me/919876543210")
}

func TestMount_SubmitLimit(t *testing.T) {
	h := testHandlers()
	h.SubmitLimit = func(c *gin.Context) {
		c.AbortWithStatus(http.StatusTooManyRequests)
	}
	engine := gin.New()
	Mount(engine, h)

	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, "/api/submit-form").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, "/api/auth/login").Code)
}
