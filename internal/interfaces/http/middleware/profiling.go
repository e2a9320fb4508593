package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/grafana/pyroscope-go"
)

// Profiling labels CPU samples of each request with its route and method.
// Requests that match no route run unlabelled.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || route == "/health" {
			c.Next()
			return
		}
		pyroscope.TagWrapper(c.Request.Context(), pyroscope.Labels(
			"route", route,
			"method", c.Request.Method,
			"controller", controllerOf(route),
		), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// controllerOf returns the first static segment after /api and /api/admin.
// "/api/admin/listings/:id/approve" -> "listings"
func controllerOf(route string) string {
	start := 0
	for i := 0; i <= len(route); i++ {
		if i < len(route) && route[i] != '/' {
			continue
		}
		seg := route[start:i]
		start = i + 1
		switch {
		case seg == "", seg == "api", seg == "admin":
			continue
		case seg[0] == ':' || seg[0] == '*':
			continue
		}
		return seg
	}
	return "root"
}
