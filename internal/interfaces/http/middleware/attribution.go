package middleware

import (
	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AffiliateIDKey is the gin context key holding the resolved affiliate id
const AffiliateIDKey = "affiliate_id"

// Attribution resolves the affiliate id of the request URL on every request.
// Invalid values are downgraded to the sentinel and logged at Warn.
func Attribution(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("attribution")
	return func(c *gin.Context) {
		affiliate := attribution.Resolve(c.Request.URL, func(candidate string) {
			log.Warn("Invalid affiliate id ignored",
				zap.String("candidate", logger.Truncate(candidate, 120)),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(RequestIDKey)))
		})

		c.Set(AffiliateIDKey, affiliate.String())
		if affiliate.IsPresent() {
			c.Request = c.Request.WithContext(logger.WithAffiliateID(c.Request.Context(), affiliate.String()))
		}
		c.Next()
	}
}

// GetAffiliateID returns the affiliate id resolved for the request, or the sentinel
func GetAffiliateID(c *gin.Context) string {
	if id := c.GetString(AffiliateIDKey); id != "" {
		return id
	}
	return attribution.NoAffiliateID.String()
}
