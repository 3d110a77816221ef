package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelldep/shelldep/internal/export"
	"github.com/shelldep/shelldep/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	CSV bool
}

// newExportCommand creates the export command: writes the full
// dependency graph to a portable file.
func newExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <destination>",
		Short: "Write the full dependency graph to a portable file",
		Args:  cobra.ExactArgs(1),
		Long: `export writes every script and reference to destination, sorted by
identity so repeated exports of an unchanged store are byte-identical.
JSON is the canonical format; pass --csv for a flat edge-list CSV instead.

Example:
  shelldep export --store ./deps.db graph.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.CSV, "csv", false, "write a flat edge-list CSV instead of canonical JSON")

	return cmd
}

func runExport(opts *ExportOptions, destination string) error {
	st, err := store.Open(opts.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := export.Build(st)
	if err != nil {
		return err
	}

	f, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("create %s: %w", destination, err)
	}
	defer f.Close()

	if opts.CSV || strings.HasSuffix(destination, ".csv") {
		return export.WriteCSV(f, doc)
	}
	return export.WriteJSON(f, doc)
}
