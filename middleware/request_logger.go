package middleware

import (
	"log/slog"
	"time"

	"github.com/AnTengye/auctionhub/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// quietPaths are probed constantly and only logged at debug level.
var quietPaths = map[string]bool{
	"/health": true,
}

// RequestLogger writes one access line per request through the context
// logger, so request_id and username ride along automatically.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		// AuthMiddleware replaces the request context, so read it after Next.
		ctx := c.Request.Context()
		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if query != "" {
			attrs = append(attrs, "query", query)
		}
		if c.Request.ContentLength > 0 {
			attrs = append(attrs, "bytes_in", c.Request.ContentLength)
		}
		if size := c.Writer.Size(); size > 0 {
			attrs = append(attrs, "bytes_out", size)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		logger.WithContext(ctx).Log(ctx, accessLevel(path, status), "request completed", attrs...)
	}
}

func accessLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case quietPaths[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
