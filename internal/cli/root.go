// Package cli wires the cobra command tree: analyze, search, forward,
// backward, export, serve, one command per file sharing a RootOptions.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by every subcommand.
type RootOptions struct {
	Store   string
	Config  string
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats lists the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the shelldep CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shelldep",
		Short: "shelldep - static dependency analyzer for shell script codebases",
		Long: `shelldep discovers .ksh/.sh scripts and .ctl control files under a
directory tree, extracts script invocations, control-file references, and
stored-procedure calls, and persists the resulting dependency graph in an
embedded store for forward/backward lookup, search, and export.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Store, "store", "shelldep.db", "path to the persistent store")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to an optional YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose progress output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newAnalyzeCommand(opts))
	cmd.AddCommand(newSearchCommand(opts))
	cmd.AddCommand(newForwardCommand(opts))
	cmd.AddCommand(newBackwardCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
