package handler

import (
	"net/http"
	"time"

	"popcorn-grinder-service/internal/model"
	"popcorn-grinder-service/internal/service"

	"github.com/gin-gonic/gin"
)

const genreWaitLimit = 10 * time.Second

// GenreHandler serves the genre catalog used by the filter panel
type GenreHandler struct {
	catalog *service.GenreCatalog
}

// NewGenreHandler creates a new GenreHandler
func NewGenreHandler(catalog *service.GenreCatalog) *GenreHandler {
	return &GenreHandler{catalog: catalog}
}

// GetGenres returns the catalog; it is empty until loaded or when loading failed.
// With wait=true the request blocks until the startup load has finished.
// GET /api/v1/genres?wait=true
func (h *GenreHandler) GetGenres(c *gin.Context) {
	if c.Query("wait") == "true" {
		select {
		case <-h.catalog.Ready():
		case <-c.Request.Context().Done():
			return
		case <-time.After(genreWaitLimit):
		}
	}

	source := "pending"
	if h.catalog.Loaded() {
		source = "tmdb"
	}
	c.JSON(http.StatusOK, model.APIResponse{
		Code:   200,
		Data:   h.catalog.List(),
		Source: source,
	})
}
