package movie

import (
	"strings"

	"github.com/octohelm/moviedb/pkg/schema"
	"github.com/pkg/errors"
)

const (
	DatabaseName = "movie-rating-machine"
	StoreName    = "movies"

	IndexByTitle  = "by_title"
	IndexByRating = "by_rating"

	MinRating = 1
	MaxRating = 10
)

var ErrInvalidMovie = errors.New("invalid movie")

type Movie struct {
	schema.PKey
	Title  string `json:"title"`
	Rating int    `json:"rating"`
	Phrase string `json:"phrase,omitempty"`
	Review string `json:"review,omitempty"`
}

func (Movie) TableName() string {
	return StoreName
}

func (Movie) Indexes() map[string]schema.IndexType {
	return map[string]schema.IndexType{
		"title":  schema.NormalIndex,
		"rating": schema.NormalIndex,
	}
}

func (m *Movie) Validate() error {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return errors.Wrap(ErrInvalidMovie, "title is required")
	}
	if m.Rating < MinRating || m.Rating > MaxRating {
		return errors.Wrapf(ErrInvalidMovie, "rating must be between %d and %d, got %d", MinRating, MaxRating, m.Rating)
	}
	return nil
}

// Schema of the movie database.
func Schema() schema.Database {
	s, err := schema.StoreFor(&Movie{})
	if err != nil {
		panic(err)
	}
	return schema.Database{
		Name:    DatabaseName,
		Version: 1,
		Stores:  []schema.Store{s},
	}
}
