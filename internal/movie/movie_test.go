package movie_test

import (
	"context"
	"testing"

	"github.com/octohelm/moviedb/internal/movie"
	"github.com/octohelm/moviedb/pkg/connector"
	"github.com/octohelm/moviedb/pkg/connector/embedded"
	"github.com/octohelm/moviedb/pkg/testutil"
	. "github.com/octohelm/x/testing"
	"github.com/pkg/errors"
)

func TestValidate(t *testing.T) {
	m := &movie.Movie{Title: "  HTTYD ", Rating: 9}
	Expect(t, m.Validate(), Be[error](nil))
	Expect(t, m.Title, Be("HTTYD"))

	for name, m := range map[string]*movie.Movie{
		"empty title": {Title: "   ", Rating: 5},
		"rating zero": {Title: "x", Rating: 0},
		"rating 11":   {Title: "x", Rating: 11},
	} {
		t.Run(name, func(t *testing.T) {
			Expect(t, errors.Is(m.Validate(), movie.ErrInvalidMovie), Be(true))
		})
	}
}

func TestSchema(t *testing.T) {
	d := movie.Schema()
	Expect(t, d.Validate(), Be[error](nil))

	s, ok := d.Store(movie.StoreName)
	Expect(t, ok, Be(true))
	Expect(t, s.AutoIncrement, Be(true))
	Expect(t, s.KeyPath.String(), Be("id"))

	_, ok = s.Index(movie.IndexByRating)
	Expect(t, ok, Be(true))
	_, ok = s.Index(movie.IndexByTitle)
	Expect(t, ok, Be(true))
}

func TestRepository(t *testing.T) {
	ctx := context.Background()

	c := embedded.New(movie.Schema(), embedded.WithDir(testutil.TempDir(t)))
	Expect(t, c.Initialize(ctx), Be[error](nil))
	t.Cleanup(func() {
		_ = c.Close()
	})

	repo := movie.NewRepository(c)

	httyd := &movie.Movie{Title: "HTTYD", Rating: 9, Phrase: "dragons", Review: "great"}
	Expect(t, repo.Rate(ctx, httyd), Be[error](nil))
	Expect(t, httyd.ID, Be(int64(1)))

	meh := &movie.Movie{Title: "Meh", Rating: 3}
	Expect(t, repo.Rate(ctx, meh), Be[error](nil))
	Expect(t, meh.ID, Be(int64(2)))

	Expect(t, errors.Is(repo.Rate(ctx, &movie.Movie{Title: "bad", Rating: 42}), movie.ErrInvalidMovie), Be(true))

	t.Run("by rating", func(t *testing.T) {
		list, err := repo.ByRating(ctx, 5, 10)
		Expect(t, err, Be[error](nil))
		Expect(t, list, Equal([]movie.Movie{*httyd}))
	})

	t.Run("by title", func(t *testing.T) {
		list, err := repo.ByTitle(ctx, "Meh")
		Expect(t, err, Be[error](nil))
		Expect(t, list, Equal([]movie.Movie{*meh}))
	})

	t.Run("query", func(t *testing.T) {
		list, err := repo.Query(ctx, movie.IndexByRating, connector.UpperBound(9, true))
		Expect(t, err, Be[error](nil))
		Expect(t, list, Equal([]movie.Movie{*meh}))
	})

	t.Run("remove then list", func(t *testing.T) {
		Expect(t, repo.Remove(ctx, httyd.ID), Be[error](nil))

		_, ok, err := repo.Get(ctx, httyd.ID)
		Expect(t, err, Be[error](nil))
		Expect(t, ok, Be(false))

		list, err := repo.List(ctx)
		Expect(t, err, Be[error](nil))
		Expect(t, list, Equal([]movie.Movie{*meh}))
	})

	t.Run("clear", func(t *testing.T) {
		Expect(t, repo.Clear(ctx), Be[error](nil))
		list, err := repo.List(ctx)
		Expect(t, err, Be[error](nil))
		Expect(t, len(list), Be(0))
	})
}
