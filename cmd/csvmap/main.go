// Command csvmap runs the field-mapping engine from the command line:
// list schemas, download templates, preview auto-mapping, validate a file
// and commit it into a database sink.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/JonMunkholm/fieldmap/internal/core/schemas" // Register all schemas
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "csvmap",
		Short:         "Map, validate and import CSV files against entity schemas",
		Long:          `csvmap matches spreadsheet columns to the fields of a registered entity schema, validates every row and writes the typed records to PostgreSQL, MySQL or SQLite.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSchemasCmd(),
		newTemplateCmd(),
		newMapCmd(),
		newValidateCmd(),
		newImportCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
