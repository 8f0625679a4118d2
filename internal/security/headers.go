// Package security provides HTTP hardening middleware for the risk API.
package security

import (
	"github.com/gin-gonic/gin"
)

// HeadersMiddleware sets response headers appropriate for a JSON-only
// service: assessments carry account activity, so responses must never be
// cached, embedded, or sniffed.
func HeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}
