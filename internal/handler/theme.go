package handler

import (
	"errors"
	"net/http"

	"popcorn-grinder-service/internal/model"
	"popcorn-grinder-service/internal/preference"

	"github.com/gin-gonic/gin"
)

// ThemeHandler reads and writes the dark/light preference
type ThemeHandler struct {
	themes *preference.ThemeStore
}

// NewThemeHandler creates a new ThemeHandler
func NewThemeHandler(themes *preference.ThemeStore) *ThemeHandler {
	return &ThemeHandler{themes: themes}
}

// GetTheme returns the current theme
// GET /api/v1/theme
func (h *ThemeHandler) GetTheme(c *gin.Context) {
	theme, err := h.themes.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  500,
			Error: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: gin.H{"theme": theme},
	})
}

// SetTheme stores a theme
// PUT /api/v1/theme (body: { theme: "dark" | "light" })
func (h *ThemeHandler) SetTheme(c *gin.Context) {
	var body struct {
		Theme string `json:"theme"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  400,
			Error: "invalid theme body",
		})
		return
	}

	if err := h.themes.Set(c.Request.Context(), body.Theme); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, preference.ErrInvalidTheme) {
			status = http.StatusBadRequest
		}
		c.JSON(status, model.APIResponse{
			Code:  status,
			Error: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: gin.H{"theme": body.Theme},
	})
}

// ToggleTheme flips between dark and light
// POST /api/v1/theme/toggle
func (h *ThemeHandler) ToggleTheme(c *gin.Context) {
	theme, err := h.themes.Toggle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  500,
			Error: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: gin.H{"theme": theme},
	})
}
