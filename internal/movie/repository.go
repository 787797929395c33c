package movie

import (
	"context"

	"github.com/octohelm/moviedb/pkg/connector"
)

type Repository struct {
	movies *connector.Store[Movie]
}

func NewRepository(c connector.Connector) *Repository {
	return &Repository{
		movies: connector.StoreOf[Movie](c, StoreName),
	}
}

// Rate validates and saves m, setting its id when new.
func (r *Repository) Rate(ctx context.Context, m *Movie) error {
	if err := m.Validate(); err != nil {
		return err
	}
	key, err := r.movies.Put(ctx, *m, nil)
	if err != nil {
		return err
	}
	if id, ok := key.(int64); ok {
		m.SetPrimaryKey(id)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]Movie, error) {
	return r.movies.GetAll(ctx)
}

func (r *Repository) Get(ctx context.Context, id int64) (*Movie, bool, error) {
	m, ok, err := r.movies.Get(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &m, true, nil
}

func (r *Repository) Remove(ctx context.Context, id int64) error {
	return r.movies.Delete(ctx, id)
}

func (r *Repository) Clear(ctx context.Context) error {
	return r.movies.Clear(ctx)
}

// ByRating returns movies rated within [min, max], lowest first.
func (r *Repository) ByRating(ctx context.Context, min int, max int) ([]Movie, error) {
	return r.movies.GetByIndex(ctx, IndexByRating, connector.Bound(min, max, false, false))
}

func (r *Repository) ByTitle(ctx context.Context, title string) ([]Movie, error) {
	return r.movies.GetByIndex(ctx, IndexByTitle, connector.Only(title))
}

func (r *Repository) Query(ctx context.Context, index string, q connector.Query) ([]Movie, error) {
	return r.movies.GetByIndex(ctx, index, q)
}
