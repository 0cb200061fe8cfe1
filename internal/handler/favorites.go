package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"popcorn-grinder-service/internal/favorites"
	"popcorn-grinder-service/internal/model"
	"popcorn-grinder-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// FavoritesHandler exposes the favorite set shared by every view
type FavoritesHandler struct {
	store    *favorites.Store
	renderer cardRenderer
}

// NewFavoritesHandler creates a new FavoritesHandler
func NewFavoritesHandler(store *favorites.Store, tmdb *service.TMDBService, genres *service.GenreCatalog) *FavoritesHandler {
	return &FavoritesHandler{
		store:    store,
		renderer: cardRenderer{tmdb: tmdb, favorites: store, genres: genres},
	}
}

// ListFavorites returns the favorites in the order they were added
// GET /api/v1/favorites
func (h *FavoritesHandler) ListFavorites(c *gin.Context) {
	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: h.cards(),
	})
}

// ToggleFavorite adds or removes a movie. The body is the movie snapshot
// as shown in the list.
// POST /api/v1/favorites/toggle
func (h *FavoritesHandler) ToggleFavorite(c *gin.Context) {
	var movie model.Movie
	if err := c.ShouldBindJSON(&movie); err != nil || movie.ID <= 0 {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  400,
			Error: "a movie with a positive id is required",
		})
		return
	}

	favorited, err := h.store.Toggle(c.Request.Context(), movie)
	if err != nil {
		log.Error().Err(err).Int("id", movie.ID).Msg("Failed to toggle favorite")
		writeStoreError(c, err)
		return
	}

	log.Info().Int("id", movie.ID).Bool("favorite", favorited).Msg("⭐ Favorite toggled")
	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: gin.H{
			"id":          movie.ID,
			"is_favorite": favorited,
			"count":       h.store.Count(),
		},
	})
}

// RemoveFavorite removes a favorite by id; removing an absent id is a no-op
// DELETE /api/v1/favorites/:id
func (h *FavoritesHandler) RemoveFavorite(c *gin.Context) {
	id, ok := parseMovieID(c)
	if !ok {
		return
	}

	removed, err := h.store.Remove(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Int("id", id).Msg("Failed to remove favorite")
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: gin.H{
			"id":      id,
			"removed": removed,
			"count":   h.store.Count(),
		},
	})
}

// IsFavorite reports whether a movie is a favorite
// GET /api/v1/favorites/:id
func (h *FavoritesHandler) IsFavorite(c *gin.Context) {
	id, ok := parseMovieID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: gin.H{
			"id":          id,
			"is_favorite": h.store.IsFavorite(id),
		},
	})
}

// Events streams the full favorite set once on connect and again after
// every change, as server-sent events.
// GET /api/v1/favorites/events
func (h *FavoritesHandler) Events(c *gin.Context) {
	changes, unsubscribe := h.store.Subscribe()
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("favorites", h.cards())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-changes:
			c.SSEvent("favorites", h.cards())
			return true
		}
	})
	log.Debug().Str("ip", c.ClientIP()).Msg("Favorites event stream closed")
}

func (h *FavoritesHandler) cards() []model.MovieCard {
	return h.renderer.render(h.store.List())
}

func writeStoreError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, favorites.ErrNotLoaded) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, model.APIResponse{
		Code:  status,
		Error: err.Error(),
	})
}

func parseMovieID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  400,
			Error: "invalid movie id",
		})
		return 0, false
	}
	return id, true
}
