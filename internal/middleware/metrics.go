package middleware

import (
	"context"
	"strings"
	"time"

	"popcorn-grinder-service/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Metrics returns a middleware that records API metrics.
// A nil metrics store disables recording.
func Metrics(metrics *repository.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only track API endpoints
		if !metrics.Enabled() || !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Next()
			return
		}

		start := time.Now()

		c.Next()

		// SSE streams stay open for minutes, latency is meaningless there
		if strings.HasSuffix(c.Request.URL.Path, "/events") {
			return
		}

		latency := float64(time.Since(start).Milliseconds())
		status := c.Writer.Status()
		path := normalizePath(c.Request.URL.Path)

		if err := metrics.RecordAPICall(context.Background(), path, status, latency); err != nil {
			log.Warn().Err(err).Msg("Failed to record metrics")
		}
	}
}

// normalizePath normalizes API paths for grouping
func normalizePath(path string) string {
	// /api/v1/favorites/12345 -> /api/v1/favorites/:id
	// /api/v1/sessions/<uuid>/advance -> /api/v1/sessions/:id/advance
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if isNumeric(part) || isUUID(part) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

// isNumeric checks if a string is purely numeric
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
