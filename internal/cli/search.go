package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelldep/shelldep/internal/query"
	"github.com/shelldep/shelldep/internal/store"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
}

// newSearchCommand creates the search command: finds stored-procedure
// call sites by substring.
func newSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <needle>",
		Short: "Find stored-procedure call sites by substring",
		Long: `search performs a case-insensitive substring match against the
lowercased qualified procedure name, returning every call site, ordered by
(procedure, source path, line).

Example:
  shelldep search --store ./deps.db customer`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args[0], cmd)
		},
	}

	return cmd
}

func runSearch(opts *SearchOptions, needle string, cmd *cobra.Command) error {
	st, err := store.Open(opts.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	calls, err := query.SearchProcedures(st, needle)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(calls)
	}
	for _, c := range calls {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s:%d\n", c.Procedure, c.SourceScript, c.Line)
	}
	return nil
}
