package middleware

import (
	"context"

	"github.com/AnTengye/auctionhub/backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// RequestID propagates the caller's X-Request-ID, or mints one, into the
// response header, the gin context and the request context used by logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		c.Header(requestIDHeader, requestID)
		c.Set("request_id", requestID)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// validRequestID accepts short ids made of [A-Za-z0-9._-] so client input
// cannot forge extra log fields.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-' || ch == '_' || ch == '.':
		default:
			return false
		}
	}
	return true
}

func GetRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}
