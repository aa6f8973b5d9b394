package validation

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestSizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestSizeMiddleware(16))
	r.POST("/", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	small := httptest.NewRecorder()
	r.ServeHTTP(small, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 8))))
	assert.Equal(t, http.StatusOK, small.Code)

	large := httptest.NewRecorder()
	r.ServeHTTP(large, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, large.Code)
}
