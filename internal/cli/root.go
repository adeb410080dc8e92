// Package cli implements the prql command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Dialect string
}

// NewRootCommand creates the root command for the prql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "prql",
		Short: "Compile pipelined queries to SQL",
		Long: `prql compiles pipelined relational queries into SQL.

Queries are sequences of stages (from, select, filter, derive, group,
join, sort, take, append) threaded top to bottom. Column names are
checked against a schema, so compilation catches unknown columns before
any SQL reaches a database.`,
	}

	cmd.PersistentFlags().StringVarP(&opts.Dialect, "dialect", "d", "generic",
		"SQL dialect (generic|postgres|sqlite|duckdb|mysql|mssql|clickhouse|bigquery|snowflake)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewDialectsCommand())

	return cmd
}
