package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var gotID, gotDevice string
	r.POST("/kiosk/check-in", func(c *gin.Context) {
		gotID, gotDevice = Value(c), Device(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/kiosk/check-in", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	req.Header.Set("X-Kiosk-ID", "lobby-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", gotID)
	assert.Equal(t, "lobby-1", gotDevice)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodPost, "/kiosk/check-in", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Len(t, gotID, 36)
	assert.Empty(t, gotDevice)
}
