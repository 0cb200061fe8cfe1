package handler

import (
	"popcorn-grinder-service/internal/favorites"
	"popcorn-grinder-service/internal/model"
	"popcorn-grinder-service/internal/service"
)

// cardRenderer decorates movies with year, poster URL, genre names and the
// favorite mark
type cardRenderer struct {
	tmdb      *service.TMDBService
	favorites *favorites.Store
	genres    *service.GenreCatalog
}

func (r cardRenderer) render(movies []model.Movie) []model.MovieCard {
	cards := make([]model.MovieCard, 0, len(movies))
	for _, m := range movies {
		cards = append(cards, model.MovieCard{
			Movie:      m,
			Year:       m.Year(),
			PosterURL:  r.tmdb.PosterURL(m.PosterPath),
			GenreNames: r.genreNames(m.GenreIDs),
			IsFavorite: r.favorites.IsFavorite(m.ID),
		})
	}
	return cards
}

// 未知的类型 id 直接跳过
func (r cardRenderer) genreNames(ids []int) []string {
	if r.genres == nil || len(ids) == 0 {
		return nil
	}
	var names []string
	for _, id := range ids {
		if name, ok := r.genres.Name(id); ok {
			names = append(names, name)
		}
	}
	return names
}
