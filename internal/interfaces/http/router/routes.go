package router

import (
	"net/http"

	"github.com/bhavan/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers bundles every endpoint handler of the API
type Handlers struct {
	System   *handler.SystemHandler
	Services *handler.ServiceHandler
	Webhooks *handler.StripeWebhookHandler
	Leads    *handler.LeadHandler
	Referral *handler.ReferralHandler
	Links    *handler.LinkHandler
	Listings *handler.ListingHandler
	Auth     *handler.AuthHandler
	Requests *handler.RequestAdminHandler

	// AdminAuth guards /admin and the authenticated /auth routes.
	AdminAuth gin.HandlerFunc
	// SubmitLimit, when set, is applied to public write endpoints that send
	// notifications or hit the payment gateway.
	SubmitLimit gin.HandlerFunc
}

// Groups builds the domain groups of the API
func Groups(h Handlers) []*DomainGroup {
	limited := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		if h.SubmitLimit == nil {
			return []gin.HandlerFunc{fn}
		}
		return []gin.HandlerFunc{h.SubmitLimit, fn}
	}

	services := NewDomainGroup("services", "/services").
		Handle(http.MethodGet, "", "list services", h.Services.ListServices).
		Handle(http.MethodGet, "/confirmation", "payment confirmation display state", h.Services.Confirmation).
		Handle(http.MethodGet, "/requests/:ref", "service request by reference", h.Services.GetRequest).
		Handle(http.MethodGet, "/requests/:ref/receipt", "receipt download", h.Services.Receipt).
		Handle(http.MethodGet, "/:idOrSlug", "service detail", h.Services.GetService).
		Handle(http.MethodPost, "/purchase", "initiate purchase", limited(h.Services.InitiatePurchase)...).
		Handle(http.MethodPost, "/payment/retry", "retry payment", limited(h.Services.RetryPayment)...)

	webhooks := NewDomainGroup("webhooks", "/webhooks").
		Handle(http.MethodPost, "/stripe", "stripe webhook", h.Webhooks.HandleStripeWebhook)

	forms := NewDomainGroup("forms", "").
		Handle(http.MethodPost, "/submit-form", "generic form submission", limited(h.Leads.SubmitForm)...)

	referrals := NewDomainGroup("referrals", "/referrals").
		Handle(http.MethodPost, "/events", "record referral event", h.Referral.RecordEvent)

	links := NewDomainGroup("links", "").
		Handle(http.MethodGet, "/links/propagate", "propagate affiliate into a link", h.Links.Propagate).
		Handle(http.MethodGet, "/whatsapp/link", "whatsapp deep link", h.Links.WhatsAppLink)

	listings := NewDomainGroup("listings", "/listings").
		Handle(http.MethodGet, "", "approved listings", h.Listings.ListApproved).
		Handle(http.MethodGet, "/:id", "approved listing detail", h.Listings.GetApproved).
		Handle(http.MethodPost, "", "broker listing submission", limited(h.Listings.Submit)...).
		Handle(http.MethodPost, "/uploads", "presigned image upload", limited(h.Listings.InitiateImageUpload)...)

	auth := NewDomainGroup("auth", "/auth").
		Handle(http.MethodPost, "/login", "admin login", limited(h.Auth.Login)...).
		Handle(http.MethodPost, "/refresh", "token refresh", h.Auth.RefreshToken)
	auth.Group("session", "").Use(h.AdminAuth).
		Handle(http.MethodPost, "/logout", "revoke tokens", h.Auth.Logout).
		Handle(http.MethodGet, "/me", "current admin", h.Auth.Me)

	admin := NewDomainGroup("admin", "/admin").Use(h.AdminAuth)
	admin.Group("listings", "/listings").
		Handle(http.MethodGet, "", "listing review queue", h.Listings.AdminList).
		Handle(http.MethodPost, "/:id/approve", "approve listing", h.Listings.Approve).
		Handle(http.MethodPost, "/:id/reject", "reject listing", h.Listings.Reject)
	admin.Group("leads", "/leads").
		Handle(http.MethodGet, "", "lead list", h.Leads.ListLeads).
		Handle(http.MethodPatch, "/:id", "lead status", h.Leads.UpdateLeadStatus)
	admin.Group("service-requests", "/service-requests").
		Handle(http.MethodGet, "", "service request list", h.Requests.List).
		Handle(http.MethodPost, "/reconcile", "reconcile stale payments", h.Requests.Reconcile).
		Handle(http.MethodPost, "/:ref/actions", "start, complete or cancel", h.Requests.Action).
		Handle(http.MethodPost, "/:ref/refund", "refund payment", h.Requests.Refund)
	admin.Group("referrals", "/referrals").
		Handle(http.MethodGet, "/summary", "referral summary", h.Referral.Summary).
		Handle(http.MethodGet, "/events", "referral events", h.Referral.ListEvents)

	return []*DomainGroup{services, webhooks, forms, referrals, links, listings, auth, admin}
}

// Mount registers /health at the root and every API group under the base path
func Mount(engine *gin.Engine, h Handlers, opts ...RouterOption) *Router {
	engine.GET("/health", h.System.Health)

	r := NewRouter(engine, opts...)
	for _, g := range Groups(h) {
		r.Register(g)
	}
	r.Setup()
	return r
}
