package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelldep/shelldep/internal/model"
	"github.com/shelldep/shelldep/internal/query"
	"github.com/shelldep/shelldep/internal/store"
)

// BackwardOptions holds flags for the backward command.
type BackwardOptions struct {
	*RootOptions
}

// newBackwardCommand creates the backward command: lists a script's
// inbound callers by basename.
func newBackwardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackwardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backward <script-basename>",
		Short: "List a script's inbound callers",
		Args:  cobra.ExactArgs(1),
		Long: `backward resolves script-basename against the corpus and lists every
script that invokes it, deduplicated by source, ordered by source path.

Example:
  shelldep backward --store ./deps.db common.ksh`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackward(opts, args[0], cmd)
		},
	}

	return cmd
}

func runBackward(opts *BackwardOptions, basename string, cmd *cobra.Command) error {
	st, err := store.Open(opts.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	sc, err := resolveSingleScript(st, basename, cmd)
	if err != nil || sc == nil {
		return err
	}

	refs, err := query.BackwardDependencies(st, sc.ID, model.TargetScript)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(refs)
	}
	for _, r := range refs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%d\t%s\n", r.SourceScript, r.Line, r.Style)
	}
	return nil
}
