package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	prql "github.com/paulomach/prql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Schema string   // schema file path (yaml or sqlite database)
	Tables []string // name=path pairs for parquet/avro schema files
	Output string   // output file path
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query-file>",
		Short: "Compile a query file to SQL",
		Long: `Compile a query file to a single SQL statement.

Pass "-" to read the query from stdin. The schema comes from --schema
(a YAML table map or a SQLite database) or from repeated --table
name=path flags pointing at parquet files or Avro schemas.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "schema file (.yaml, .yml, .db, .sqlite)")
	cmd.Flags().StringArrayVarP(&opts.Tables, "table", "t", nil, "table schema as name=path (.parquet, .avsc); repeatable")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (default stdout)")

	return cmd
}

func runCompile(opts *CompileOptions, queryPath string, cmd *cobra.Command) error {
	source, err := readQuery(queryPath, cmd.InOrStdin())
	if err != nil {
		return err
	}

	provider, closeProvider, err := loadProvider(opts)
	if err != nil {
		return err
	}
	if closeProvider != nil {
		defer closeProvider()
	}

	sql, err := prql.Compile(source, prql.Options{
		Dialect: opts.Dialect,
		Schema:  provider,
	})
	if err != nil {
		if diag, ok := prql.Diagnose(err); ok {
			return fmt.Errorf("%s error: %s", diag.Phase, diag.Message)
		}
		return err
	}

	if opts.Output != "" {
		return os.WriteFile(opts.Output, []byte(sql+"\n"), 0o644)
	}
	fmt.Fprintln(cmd.OutOrStdout(), sql)
	return nil
}

func readQuery(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading query: %w", err)
	}
	return string(data), nil
}
