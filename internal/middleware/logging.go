package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logging returns a request logging middleware. Requests are logged after
// they finish, so an event stream is logged once when it closes.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		event := requestEvent(c.Request.URL.Path, status).
			Int("status", status).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", c.Request.URL.Path)

		// session id 或 movie id
		if id := c.Param("id"); id != "" {
			event = event.Str("id", id)
		}
		if query := c.Request.URL.RawQuery; query != "" {
			event = event.Str("query", query)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.
			Dur("latency", time.Since(start)).
			Int("bytes", c.Writer.Size()).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}

func requestEvent(path string, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return log.Error()
	case status >= 400:
		return log.Warn()
	case path == "/health":
		return log.Debug()
	default:
		return log.Info()
	}
}
