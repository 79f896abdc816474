package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"

	"github.com/localrag/localrag/internal/pkg/response"
)

const requestIDHeader = "X-Request-Id"

// RequestID honors a caller-supplied X-Request-Id and generates one
// otherwise. The id is echoed in the response header and stashed in the
// gin context so error envelopes can include it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" || len(reqID) > 64 {
			reqID = newRequestID()
		}
		c.Writer.Header().Set(requestIDHeader, reqID)
		c.Set(response.RequestIDKey, reqID)
		c.Next()
	}
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
