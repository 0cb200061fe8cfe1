package service

import (
	"context"
	"sync"

	"popcorn-grinder-service/internal/model"

	"github.com/rs/zerolog/log"
)

// GenreFetcher loads the genre catalog from the remote API
type GenreFetcher interface {
	FetchGenres(ctx context.Context) ([]model.Genre, error)
}

// GenreCatalog holds the genre catalog, fetched once at startup
type GenreCatalog struct {
	mu     sync.RWMutex
	genres []model.Genre
	loaded bool
	once   sync.Once
	ready  chan struct{}
}

// NewGenreCatalog creates an empty catalog
func NewGenreCatalog() *GenreCatalog {
	return &GenreCatalog{ready: make(chan struct{})}
}

// Load fetches the catalog; only the first call has any effect.
// A failure leaves the catalog empty.
func (g *GenreCatalog) Load(ctx context.Context, fetcher GenreFetcher) {
	g.once.Do(func() {
		g.load(ctx, fetcher)
	})
}

func (g *GenreCatalog) load(ctx context.Context, fetcher GenreFetcher) {
	defer close(g.ready)

	genres, err := fetcher.FetchGenres(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch genres")
		return
	}

	g.mu.Lock()
	g.genres = genres
	g.loaded = true
	g.mu.Unlock()

	log.Info().Int("count", len(genres)).Msg("🎭 Genre catalog loaded")
}

// Ready is closed once Load has finished, successfully or not
func (g *GenreCatalog) Ready() <-chan struct{} {
	return g.ready
}

// List returns a copy of the catalog
func (g *GenreCatalog) List() []model.Genre {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]model.Genre, len(g.genres))
	copy(out, g.genres)
	return out
}

// Loaded reports whether the catalog was fetched successfully
func (g *GenreCatalog) Loaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loaded
}

// Name returns the genre name for an id
func (g *GenreCatalog) Name(id int) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, genre := range g.genres {
		if genre.ID == id {
			return genre.Name, true
		}
	}
	return "", false
}
