package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/AnTengye/auctionhub/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Recovery turns a panic in a handler into a 500 carrying the request id.
// A panic with http.ErrAbortHandler means the client went away: no body is written.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()

			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				logger.Warn(ctx, "request aborted by client", "path", c.Request.URL.Path)
				c.Abort()
				return
			}

			logger.Error(ctx, "panic recovered",
				"error", rec,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"stack", string(debug.Stack()),
			)

			// Headers already went out; the status can no longer change.
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": GetRequestID(c),
			})
		}()

		c.Next()
	}
}
