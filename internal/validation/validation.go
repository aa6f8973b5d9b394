// Package validation provides request hygiene middleware for the gateway API.
package validation

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the default request body limit (1MB). Bridge payment
// payloads are small; anything larger is abuse.
const MaxRequestSize = 1 << 20

// RequestSizeMiddleware limits request body size.
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
