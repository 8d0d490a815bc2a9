package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"portal-service/internal/apiclient"
)

const RequestIDHeader = "X-Request-ID"

// RequestID makes sure every request carries an id and forwards it to API calls.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(apiclient.WithRequestID(c.Request.Context(), requestID))
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}
