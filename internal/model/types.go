package model

import (
	"sort"
	"strings"
)

// ================== 通用响应 ==================

// APIResponse is the standard API response format
type APIResponse struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Source  string      `json:"source,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ================== TMDB 数据模型 ==================

// Movie is a single movie record as returned by the remote API
type Movie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path,omitempty"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count,omitempty"`
	Popularity       float64 `json:"popularity"`
	GenreIDs         []int   `json:"genre_ids,omitempty"`
	Adult            bool    `json:"adult"`
}

// Year returns the release year by truncating the ISO release date
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

// MoviePage is one page of a search or discover response
type MoviePage struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// Genre is one entry of the genre catalog
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GenreList is the genre catalog response
type GenreList struct {
	Genres []Genre `json:"genres"`
}

// ================== 查询条件 ==================

// Mode selects which remote endpoint serves a query
type Mode string

const (
	ModeSearch   Mode = "search"
	ModeDiscover Mode = "discover"
)

// Filters is the structured part of a query. Nil bounds are unset.
type Filters struct {
	Genres    []int    `json:"genres"`
	YearStart *int     `json:"year_start,omitempty"`
	YearEnd   *int     `json:"year_end,omitempty"`
	RatingMin *float64 `json:"rating_min,omitempty"`
	RatingMax *float64 `json:"rating_max,omitempty"`
}

// IsEmpty reports whether no filter is set
func (f Filters) IsEmpty() bool {
	return len(f.Genres) == 0 && f.YearStart == nil && f.YearEnd == nil &&
		f.RatingMin == nil && f.RatingMax == nil
}

// GenreSet returns the genre ids sorted and without duplicates
func (f Filters) GenreSet() []int {
	if len(f.Genres) == 0 {
		return nil
	}
	ids := make([]int, 0, len(f.Genres))
	seen := make(map[int]struct{}, len(f.Genres))
	for _, id := range f.Genres {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Equal compares two filter sets by value; genres compare as a set
func (f Filters) Equal(o Filters) bool {
	if !equalInt(f.YearStart, o.YearStart) || !equalInt(f.YearEnd, o.YearEnd) {
		return false
	}
	if !equalFloat(f.RatingMin, o.RatingMin) || !equalFloat(f.RatingMax, o.RatingMax) {
		return false
	}
	a, b := f.GenreSet(), o.GenreSet()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Query is the free-text search plus filters that identifies a result set
type Query struct {
	Search  string  `json:"search"`
	Filters Filters `json:"filters"`
}

// Equal reports value equality; a changed query resets pagination
func (q Query) Equal(o Query) bool {
	return q.Search == o.Search && q.Filters.Equal(o.Filters)
}

// Mode returns search when there is free text, discover otherwise
func (q Query) Mode() Mode {
	if strings.TrimSpace(q.Search) != "" {
		return ModeSearch
	}
	return ModeDiscover
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ================== 展示模型 ==================

// MovieCard is a movie decorated for rendering
type MovieCard struct {
	Movie
	Year       string   `json:"year"`
	PosterURL  string   `json:"poster_url"`
	GenreNames []string `json:"genre_names,omitempty"`
	IsFavorite bool     `json:"is_favorite"`
}

// Pagination holds pagination information
type Pagination struct {
	Page    int  `json:"page"`
	HasMore bool `json:"hasMore"`
	Loading bool `json:"loading"`
	Stalled bool `json:"stalled"`
}
