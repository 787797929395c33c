package cli

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/octohelm/moviedb/pkg/connector/embedded"
	"github.com/octohelm/moviedb/pkg/lifecycle"
	"github.com/octohelm/moviedb/pkg/schema"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// dumper prints every field, Stringers of the schema types hide the indexes.
var dumper = &spew.ConfigState{Indent: " ", DisableMethods: true, SortKeys: true}

func newSchemaCommand() *cobra.Command {
	var (
		dump   bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the structure persisted in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host, ok := lifecycle.FromContext(cmd.Context())
			if !ok {
				return errors.New("no database mounted")
			}

			c, ok := host.State().Connector.(embedded.Connector)
			if !ok {
				return errors.New("connector does not expose its schema")
			}

			persisted, ok := c.Schema()
			if !ok {
				return errors.New("database is not open")
			}

			if dump {
				dumper.Fdump(cmd.OutOrStdout(), persisted)
				return nil
			}

			data, err := schema.Marshal(format, persisted)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "dump the descriptor as Go values")
	cmd.Flags().StringVar(&format, "format", "toml", "toml, yaml or json")

	return cmd
}
