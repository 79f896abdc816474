package response

import "github.com/gin-gonic/gin"

// RequestIDKey is the gin context key the request id middleware fills
// in. Error envelopes echo it so a failed call can be matched against
// the server logs.
const RequestIDKey = "request_id"

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, gin.H{"data": data})
}

func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": APIError{
		Code:      code,
		Message:   message,
		RequestID: c.GetString(RequestIDKey),
	}})
}
