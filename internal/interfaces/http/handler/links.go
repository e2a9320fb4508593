package handler

import (
	"net/url"
	"strings"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/whatsapp"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/bhavan/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LinkHandler computes attributed navigation targets and WhatsApp deep links
type LinkHandler struct {
	BaseHandler
	origin   *url.URL
	whatsapp *whatsapp.Linker
}

// NewLinkHandler creates a LinkHandler. publicBaseURL is the site origin used to
// decide whether a target is same-origin; an empty value falls back to the
// origin of the current URL.
func NewLinkHandler(publicBaseURL string, linker *whatsapp.Linker) *LinkHandler {
	h := &LinkHandler{whatsapp: linker}
	if u, err := url.Parse(strings.TrimSpace(publicBaseURL)); err == nil && u.Host != "" {
		h.origin = u
	}
	return h
}

// PropagateResponse is the body of GET /api/links/propagate
type PropagateResponse struct {
	URL         string `json:"url"`
	AffiliateID string `json:"affiliateId"`
}

// WhatsAppLinkResponse is the body of GET /api/whatsapp/link
type WhatsAppLinkResponse struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// Propagate returns target carrying the affiliate of the current page. The
// current page is the "current" query parameter or, failing that, the Referer.
func (h *LinkHandler) Propagate(c *gin.Context) {
	target := c.Query("target")
	if target == "" {
		h.BadRequest(c, "target is required")
		return
	}

	raw := c.Query("current")
	if raw == "" {
		raw = c.GetHeader("Referer")
	}
	current, err := url.Parse(raw)
	if err != nil || raw == "" {
		current = nil
	}

	affiliate := attribution.Resolve(current, func(candidate string) {
		logger.FromContext(c.Request.Context()).Warn("Invalid affiliate id on current page",
			zap.String("candidate", logger.Truncate(candidate, 120)))
	})
	h.Success(c, PropagateResponse{
		URL:         attribution.PropagateID(affiliate, h.origin, current, target),
		AffiliateID: affiliate.String(),
	})
}

// WhatsAppLink builds a wa.me link for the requested context
func (h *LinkHandler) WhatsAppLink(c *gin.Context) {
	var msg string
	switch c.DefaultQuery("context", "general") {
	case "general":
		msg = whatsapp.GeneralEnquiry()
	case "property":
		msg = whatsapp.PropertyEnquiry(c.Query("title"), c.Query("location"))
	case "service":
		msg = whatsapp.ServiceEnquiry(c.Query("service"), c.Query("ref"))
	case "listing":
		msg = whatsapp.ListingSubmitted(c.Query("broker"))
	default:
		h.BadRequest(c, "context must be general, property, service or listing")
		return
	}

	if affiliate := middleware.GetAffiliateID(c); attribution.AffiliateID(affiliate).IsPresent() {
		msg = whatsapp.WithReferral(msg, affiliate)
	}
	h.Success(c, WhatsAppLinkResponse{URL: h.whatsapp.Link(msg), Message: msg})
}
