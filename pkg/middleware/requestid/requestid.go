package requestid

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerKey  = "X-Request-ID"
	kioskKey   = "X-Kiosk-ID"
	contextKey = "request_id"
	deviceKey  = "kiosk_id"
	maxLength  = 128
)

// Middleware tags each request with an ID, reusing a sane inbound X-Request-ID. Kiosk tablets also
// send X-Kiosk-ID, which is kept so arrivals can be traced to a device.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerKey))
		if reqID == "" || len(reqID) > maxLength {
			reqID = uuid.NewString()
		}
		c.Set(contextKey, reqID)
		c.Writer.Header().Set(headerKey, reqID)

		if device := strings.TrimSpace(c.GetHeader(kioskKey)); device != "" && len(device) <= maxLength {
			c.Set(deviceKey, device)
		}
		c.Next()
	}
}

// Value returns the request ID stored in the Gin context.
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}

// Device returns the kiosk identifier of the request, if any.
func Device(c *gin.Context) string {
	return c.GetString(deviceKey)
}
