package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/hashicorp/go-multierror"
	"github.com/octohelm/moviedb/internal/config"
	"github.com/octohelm/moviedb/internal/movie"
	"github.com/octohelm/moviedb/pkg/connector/embedded"
	"github.com/octohelm/moviedb/pkg/dberr"
	"github.com/octohelm/moviedb/pkg/id"
	"github.com/octohelm/moviedb/pkg/kv"
	"github.com/octohelm/moviedb/pkg/lifecycle"
	"github.com/octohelm/moviedb/pkg/schema"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type flags struct {
	config        string
	dir           string
	engine        string
	schema        string
	verbosity     int
	failIfBlocked bool
	metrics       bool
}

// Run executes moviedb with args, writing results to out and diagnostics to errOut.
// The database is closed on return, whatever the outcome of the command.
func Run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) (err error) {
	var host *lifecycle.Host
	var c config.Config

	defer func() {
		var result error

		if host != nil {
			if e := host.Unmount(); e != nil {
				result = multierror.Append(result, e)
			}
		}
		if e := embedded.Shutdown(ctx); e != nil {
			result = multierror.Append(result, e)
		}
		if c.Metrics {
			embedded.WriteMetrics(errOut)
		}

		if err == nil {
			err = result
		}
	}()

	rootCmd := newRootCommand(func(cmd *cobra.Command, f *flags) error {
		loaded, err := config.Load(f.config, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		c = overrides(cmd, f, loaded)

		if !slices.Contains(kv.Engines(), c.Engine) {
			return errors.Errorf("unknown engine %q, one of %s", c.Engine, strings.Join(kv.Engines(), ", "))
		}

		l := funcr.New(func(prefix, args string) {
			if prefix != "" {
				_, _ = fmt.Fprintln(errOut, prefix, args)
				return
			}
			_, _ = fmt.Fprintln(errOut, args)
		}, funcr.Options{Verbosity: c.Verbosity})

		desc := movie.Schema()
		if c.Schema != "" {
			desc, err = schema.LoadFile(c.Schema)
			if err != nil {
				return err
			}
		}

		optFns := []embedded.OptionFunc{
			embedded.WithEngine(c.Engine),
			embedded.WithDir(c.Dir),
			embedded.WithOnBlocked(func(err *dberr.BlockedError) {
				_, _ = fmt.Fprintln(errOut, "waiting:", err.Error())
			}),
		}
		if c.FailIfBlocked {
			optFns = append(optFns, embedded.WithFailIfBlocked())
		}

		gen, err := id.New()
		if err != nil {
			return err
		}

		ctx := logr.NewContext(cmd.Context(), l)
		ctx = id.InjectContext(ctx, gen)

		host = lifecycle.NewHost(embedded.New(desc, optFns...))
		host.Mount(ctx)

		if err := host.Ready(ctx); err != nil {
			return errors.Wrap(err, "database unavailable")
		}

		cmd.SetContext(lifecycle.InjectContext(ctx, host))
		return nil
	})

	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetArgs(args)

	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(setup func(cmd *cobra.Command, f *flags) error) *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           "moviedb",
		Short:         "Rate movies, kept in an embedded database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd, f)
		},
	}

	rootCmd.PersistentFlags().StringVar(&f.config, "config", config.DefaultFile, "config file")
	rootCmd.PersistentFlags().StringVar(&f.dir, "dir", "", `database directory, ":memory:" to keep data in process`)
	rootCmd.PersistentFlags().StringVar(&f.engine, "engine", "", "storage engine ("+strings.Join(kv.Engines(), ", ")+")")
	rootCmd.PersistentFlags().StringVar(&f.schema, "schema", "", "schema file, the movie schema by default")
	rootCmd.PersistentFlags().CountVarP(&f.verbosity, "verbose", "v", "log verbosity")
	rootCmd.PersistentFlags().BoolVar(&f.failIfBlocked, "fail-if-blocked", false, "fail instead of waiting for other sessions")
	rootCmd.PersistentFlags().BoolVar(&f.metrics, "metrics", false, "print connector metrics on exit")

	rootCmd.AddCommand(
		newRateCommand(),
		newListCommand(),
		newGetCommand(),
		newDeleteCommand(),
		newClearCommand(),
		newQueryCommand(),
		newSchemaCommand(),
	)

	return rootCmd
}

func overrides(cmd *cobra.Command, f *flags, c config.Config) config.Config {
	if cmd.Flags().Changed("dir") {
		c.Dir = f.dir
	}
	if cmd.Flags().Changed("engine") {
		c.Engine = f.engine
	}
	if cmd.Flags().Changed("schema") {
		c.Schema = f.schema
	}
	if cmd.Flags().Changed("verbose") {
		c.Verbosity = f.verbosity
	}
	if cmd.Flags().Changed("fail-if-blocked") {
		c.FailIfBlocked = f.failIfBlocked
	}
	if cmd.Flags().Changed("metrics") {
		c.Metrics = f.metrics
	}
	return c
}

// Execute runs moviedb with the process arguments.
func Execute(ctx context.Context) int {
	if err := Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
