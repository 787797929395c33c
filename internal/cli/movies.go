package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/octohelm/moviedb/internal/movie"
	"github.com/octohelm/moviedb/pkg/connector"
	"github.com/octohelm/moviedb/pkg/lifecycle"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func repositoryFrom(ctx context.Context) (*movie.Repository, error) {
	host, ok := lifecycle.FromContext(ctx)
	if !ok {
		return nil, errors.New("no database mounted")
	}
	return movie.NewRepository(host.State().Connector), nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid movie id %q", s)
	}
	return id, nil
}

func newRateCommand() *cobra.Command {
	m := &movie.Movie{}

	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Rate a movie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repositoryFrom(cmd.Context())
			if err != nil {
				return err
			}
			if err := repo.Rate(cmd.Context(), m); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}

	cmd.Flags().StringVar(&m.Title, "title", "", "movie title")
	cmd.Flags().IntVar(&m.Rating, "rating", 0, fmt.Sprintf("rating from %d to %d", movie.MinRating, movie.MaxRating))
	cmd.Flags().StringVar(&m.Phrase, "phrase", "", "the movie in a few words")
	cmd.Flags().StringVar(&m.Review, "review", "", "review")
	cmd.Flags().Int64Var(&m.ID, "id", 0, "id of a rated movie to replace")

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rated movies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repositoryFrom(cmd.Context())
			if err != nil {
				return err
			}
			list, err := repo.List(cmd.Context())
			if err != nil {
				return err
			}
			for i := range list {
				if err := printJSON(cmd.OutOrStdout(), list[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show a rated movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			repo, err := repositoryFrom(cmd.Context())
			if err != nil {
				return err
			}
			m, ok, err := repo.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Errorf("movie %d not found", id)
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a rated movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			repo, err := repositoryFrom(cmd.Context())
			if err != nil {
				return err
			}
			return repo.Remove(cmd.Context(), id)
		},
	}
}

func newClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every rated movie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repositoryFrom(cmd.Context())
			if err != nil {
				return err
			}
			return repo.Clear(cmd.Context())
		},
	}
}

func newQueryCommand() *cobra.Command {
	var (
		index            string
		min, max         string
		minOpen, maxOpen bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List movies by index range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repositoryFrom(cmd.Context())
			if err != nil {
				return err
			}

			q := connector.KeyRange{LowerOpen: minOpen, UpperOpen: maxOpen}
			if cmd.Flags().Changed("min") {
				q.Lower = keyOf(min)
			}
			if cmd.Flags().Changed("max") {
				q.Upper = keyOf(max)
			}

			list, err := repo.Query(cmd.Context(), index, q)
			if err != nil {
				return err
			}
			for i := range list {
				if err := printJSON(cmd.OutOrStdout(), list[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&index, "index", movie.IndexByRating, "index to query")
	cmd.Flags().StringVar(&min, "min", "", "lower bound")
	cmd.Flags().StringVar(&max, "max", "", "upper bound")
	cmd.Flags().BoolVar(&minOpen, "min-open", false, "exclude the lower bound")
	cmd.Flags().BoolVar(&maxOpen, "max-open", false, "exclude the upper bound")

	return cmd
}

// keyOf reads numbers as numbers, anything else as a string.
func keyOf(s string) connector.Key {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
