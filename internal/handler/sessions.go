package handler

import (
	"errors"
	"net/http"

	"popcorn-grinder-service/internal/favorites"
	"popcorn-grinder-service/internal/model"
	"popcorn-grinder-service/internal/service"
	"popcorn-grinder-service/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SessionHandler drives the home view: query, filters and infinite scroll
type SessionHandler struct {
	sessions *session.Manager
	cards    cardRenderer
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions *session.Manager, favs *favorites.Store, tmdb *service.TMDBService, genres *service.GenreCatalog) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		cards:    cardRenderer{tmdb: tmdb, favorites: favs, genres: genres},
	}
}

// SessionView is the rendered state of a session
type SessionView struct {
	ID            string            `json:"id"`
	Input         string            `json:"input"`
	SearchPending bool              `json:"search_pending"`
	Query         model.Query       `json:"query"`
	Mode          model.Mode        `json:"mode"`
	Pagination    model.Pagination  `json:"pagination"`
	Error         string            `json:"error,omitempty"`
	Results       []model.MovieCard `json:"results"`
}

type searchRequest struct {
	Text string `json:"text"`
}

// CreateSession opens a home view and starts loading page 1
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	log.Info().Str("session", s.ID).Int("open", h.sessions.Count()).Msg("🎬 Session opened")

	c.JSON(http.StatusCreated, model.APIResponse{
		Code: 201,
		Data: h.view(s.State()),
	})
}

// GetSession returns the current state of a session
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: h.view(s.State()),
	})
}

// DeleteSession closes a session and cancels its in-flight request
// DELETE /api/v1/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if !h.sessions.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, model.APIResponse{
			Code:  404,
			Error: session.ErrNotFound.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, model.APIResponse{
		Code:    200,
		Message: "session closed",
	})
}

// SetFilters replaces the filters of a session
// PUT /api/v1/sessions/:id/filters
func (h *SessionHandler) SetFilters(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var filters model.Filters
	if err := c.ShouldBindJSON(&filters); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  400,
			Error: "invalid filters body",
		})
		return
	}
	if err := validateFilters(filters); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  400,
			Error: err.Error(),
		})
		return
	}

	s.SetFilters(filters)
	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: h.view(s.State()),
	})
}

// ClearFilters resets the filters of a session, keeping its search text
// DELETE /api/v1/sessions/:id/filters
func (h *SessionHandler) ClearFilters(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	s.ClearFilters()
	c.JSON(http.StatusOK, model.APIResponse{
		Code: 200,
		Data: h.view(s.State()),
	})
}

// Search feeds the search box. The text is committed after the debounce
// delay, or right away with ?immediate=true.
// POST /api/v1/sessions/:id/search
func (h *SessionHandler) Search(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var body searchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  400,
			Error: "invalid search body",
		})
		return
	}

	s.Type(body.Text)
	if c.Query("immediate") == "true" {
		s.FlushSearch()
	}
	c.JSON(http.StatusAccepted, model.APIResponse{
		Code: 202,
		Data: h.view(s.State()),
	})
}

// Advance is called when the scroll sentinel becomes visible
// POST /api/v1/sessions/:id/advance
func (h *SessionHandler) Advance(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	source := "requested"
	if !s.Advance() {
		source = "ignored"
	}
	c.JSON(http.StatusOK, model.APIResponse{
		Code:   200,
		Data:   h.view(s.State()),
		Source: source,
	})
}

func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, model.APIResponse{
			Code:  404,
			Error: err.Error(),
		})
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) view(st session.State) SessionView {
	return SessionView{
		ID:            st.ID,
		Input:         st.Input,
		SearchPending: st.SearchPending,
		Query:         st.Query,
		Mode:          st.Query.Mode(),
		Pagination: model.Pagination{
			Page:    st.Page,
			HasMore: st.HasMore,
			Loading: st.Loading,
			Stalled: st.Stalled,
		},
		Error:   st.Error,
		Results: h.cards.render(st.Results),
	}
}

func validateFilters(f model.Filters) error {
	if f.RatingMin != nil && (*f.RatingMin < 0 || *f.RatingMin > 10) {
		return errors.New("rating_min must be between 0 and 10")
	}
	if f.RatingMax != nil && (*f.RatingMax < 0 || *f.RatingMax > 10) {
		return errors.New("rating_max must be between 0 and 10")
	}
	if f.YearStart != nil && f.YearEnd != nil && *f.YearStart > *f.YearEnd {
		return errors.New("year_start must not be after year_end")
	}
	for _, id := range f.Genres {
		if id <= 0 {
			return errors.New("genre ids must be positive")
		}
	}
	return nil
}
