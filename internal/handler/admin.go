package handler

import (
	"context"
	"fmt"
	"net/http"

	"popcorn-grinder-service/internal/favorites"
	"popcorn-grinder-service/internal/model"
	"popcorn-grinder-service/internal/repository"
	"popcorn-grinder-service/internal/service"
	"popcorn-grinder-service/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AdminHandler handles status and analytics endpoints
type AdminHandler struct {
	tmdb      *service.TMDBService
	genres    *service.GenreCatalog
	sessions  *session.Manager
	favorites *favorites.Store
	metrics   *repository.Metrics
	backend   string
}

// NewAdminHandler creates a new AdminHandler. metrics may be nil.
func NewAdminHandler(tmdb *service.TMDBService, genres *service.GenreCatalog, sessions *session.Manager,
	favs *favorites.Store, metrics *repository.Metrics, backend string) *AdminHandler {
	return &AdminHandler{
		tmdb:      tmdb,
		genres:    genres,
		sessions:  sessions,
		favorites: favs,
		metrics:   metrics,
		backend:   backend,
	}
}

// GetStatus returns service status
// GET /api/v1/status
func (h *AdminHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"tmdb_enabled":    h.tmdb.IsConfigured(),
		"tmdb_tokens":     h.tmdb.TokenCount(),
		"storage":         h.backend,
		"metrics_enabled": h.metrics.Enabled(),
		"genres_loaded":   h.genres.Loaded(),
		"genre_count":     len(h.genres.List()),
		"sessions":        h.sessions.Count(),
		"favorites":       h.favorites.Count(),
	})
}

// GetAnalytics returns API analytics
// GET /api/v1/analytics
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	if !h.metricsEnabled(c) {
		return
	}

	stats, err := h.metrics.GetOverallStats(context.Background())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  500,
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: stats,
	})
}

// GetEndpointStats returns stats for a specific endpoint
// GET /api/v1/analytics/endpoint?path=/api/v1/genres
func (h *AdminHandler) GetEndpointStats(c *gin.Context) {
	if !h.metricsEnabled(c) {
		return
	}

	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  400,
			Error: "path parameter required",
		})
		return
	}

	stats, err := h.metrics.GetAPIStats(context.Background(), path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  500,
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: stats,
	})
}

// ResetAnalytics resets all analytics data
// DELETE /api/v1/analytics
func (h *AdminHandler) ResetAnalytics(c *gin.Context) {
	if !h.metricsEnabled(c) {
		return
	}

	deleted, err := h.metrics.ResetMetrics(context.Background())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  500,
			Error: err.Error(),
		})
		return
	}

	log.Info().Int64("keys", deleted).Msg("🗑️ Analytics reset")
	c.JSON(http.StatusOK, model.APIResponse{
		Code:    200,
		Message: fmt.Sprintf("analytics reset (%d keys)", deleted),
	})
}

func (h *AdminHandler) metricsEnabled(c *gin.Context) bool {
	if h.metrics.Enabled() {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, model.APIResponse{
		Code:  503,
		Error: "metrics are disabled",
	})
	return false
}
