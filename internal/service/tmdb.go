package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"popcorn-grinder-service/internal/model"
	"popcorn-grinder-service/pkg/httpclient"

	"github.com/rs/zerolog/log"
)

// TMDBConfig groups the endpoint layout of the movie metadata API
type TMDBConfig struct {
	Tokens       []string
	BaseURL      string
	SearchPath   string
	DiscoverPath string
	ImageBase    string
	Language     string
}

// TMDBService handles TMDB API interactions with token rotation
type TMDBService struct {
	cfg         TMDBConfig
	pageClient  *httpclient.Client
	genreClient *httpclient.Client
	tokenIndex  uint64 // 原子计数器，用于轮询
}

// NewTMDBService creates a new TMDBService.
// Movie pages are fetched with a single attempt; failures stall pagination
// rather than being retried.
func NewTMDBService(cfg TMDBConfig) *TMDBService {
	if len(cfg.Tokens) > 1 {
		log.Info().Int("count", len(cfg.Tokens)).Msg("🔑 TMDB tokens configured, rotating")
	}
	return &TMDBService{
		cfg:         cfg,
		pageClient:  httpclient.NewClient(httpclient.WithRetries(1)),
		genreClient: httpclient.NewClient(httpclient.WithRetries(3), httpclient.WithRetryDelay(500*time.Millisecond)),
	}
}

// getNextToken returns the next bearer token using round-robin
func (s *TMDBService) getNextToken() string {
	if len(s.cfg.Tokens) == 0 {
		return ""
	}
	idx := atomic.AddUint64(&s.tokenIndex, 1) - 1
	return s.cfg.Tokens[idx%uint64(len(s.cfg.Tokens))]
}

func (s *TMDBService) header() http.Header {
	h := http.Header{}
	if token := s.getNextToken(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// PageURL builds the request URL for one page of a query
func (s *TMDBService) PageURL(query model.Query, page int) string {
	params := url.Values{}
	params.Set("include_adult", "false")
	params.Set("language", s.cfg.Language)
	params.Set("page", strconv.Itoa(page))

	path := s.cfg.DiscoverPath
	if query.Mode() == model.ModeSearch {
		path = s.cfg.SearchPath
		params.Set("query", strings.TrimSpace(query.Search))
	} else {
		f := query.Filters
		if f.YearStart != nil {
			params.Set("primary_release_date.gte", fmt.Sprintf("%04d-01-01", *f.YearStart))
		}
		if f.YearEnd != nil {
			params.Set("primary_release_date.lte", fmt.Sprintf("%04d-12-31", *f.YearEnd))
		}
		if f.RatingMin != nil {
			params.Set("vote_average.gte", strconv.FormatFloat(*f.RatingMin, 'f', -1, 64))
		}
		if f.RatingMax != nil {
			params.Set("vote_average.lte", strconv.FormatFloat(*f.RatingMax, 'f', -1, 64))
		}
		if genres := f.GenreSet(); len(genres) > 0 {
			ids := make([]string, len(genres))
			for i, id := range genres {
				ids[i] = strconv.Itoa(id)
			}
			params.Set("with_genres", strings.Join(ids, ","))
		}
	}

	return fmt.Sprintf("%s%s?%s", s.cfg.BaseURL, path, params.Encode())
}

// FetchPage fetches one page of search or discover results
func (s *TMDBService) FetchPage(ctx context.Context, query model.Query, page int) (*model.MoviePage, error) {
	target := s.PageURL(query, page)

	data, err := s.pageClient.Fetch(ctx, target, s.header())
	if err != nil {
		if httpclient.IsCanceled(err) {
			return nil, err
		}
		return nil, fmt.Errorf("TMDB %s failed: %w", query.Mode(), err)
	}

	var result model.MoviePage
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse TMDB response: %w", err)
	}

	log.Debug().
		Str("mode", string(query.Mode())).
		Int("page", result.Page).
		Int("total_pages", result.TotalPages).
		Int("count", len(result.Results)).
		Msg("TMDB: page fetched")

	return &result, nil
}

// FetchGenres fetches the full genre catalog
func (s *TMDBService) FetchGenres(ctx context.Context) ([]model.Genre, error) {
	target := fmt.Sprintf("%s/genre/movie/list?language=%s", s.cfg.BaseURL, url.QueryEscape(s.cfg.Language))

	data, err := s.genreClient.Fetch(ctx, target, s.header())
	if err != nil {
		return nil, fmt.Errorf("TMDB genre list failed: %w", err)
	}

	var result model.GenreList
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse TMDB genre list: %w", err)
	}
	return result.Genres, nil
}

// PosterURL returns the absolute poster image URL for a poster path
func (s *TMDBService) PosterURL(path string) string {
	if path == "" {
		return ""
	}
	return s.cfg.ImageBase + path
}

// IsConfigured returns true if a bearer token is configured
func (s *TMDBService) IsConfigured() bool {
	return len(s.cfg.Tokens) > 0
}

// TokenCount returns the number of configured tokens
func (s *TMDBService) TokenCount() int {
	return len(s.cfg.Tokens)
}
