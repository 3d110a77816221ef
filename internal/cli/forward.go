package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelldep/shelldep/internal/model"
	"github.com/shelldep/shelldep/internal/query"
	"github.com/shelldep/shelldep/internal/store"
)

// ForwardOptions holds flags for the forward command.
type ForwardOptions struct {
	*RootOptions
}

// newForwardCommand creates the forward command: lists a script's
// outbound dependencies by basename.
func newForwardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ForwardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "forward <script-basename>",
		Short: "List a script's outbound dependencies",
		Args:  cobra.ExactArgs(1),
		Long: `forward resolves script-basename against the corpus and lists its
outbound edges, ordered by (line, style). If the basename is ambiguous
across multiple directories, every candidate is listed instead.

Example:
  shelldep forward --store ./deps.db load_customers.ksh`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForward(opts, args[0], cmd)
		},
	}

	return cmd
}

func runForward(opts *ForwardOptions, basename string, cmd *cobra.Command) error {
	st, err := store.Open(opts.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	sc, err := resolveSingleScript(st, basename, cmd)
	if err != nil || sc == nil {
		return err
	}

	refs, err := query.ForwardDependencies(st, sc.ID)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(refs)
	}
	for _, r := range refs {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\t%s\n", r.Line, r.TargetKind, r.Target, r.Style, r.Status)
	}
	return nil
}

// resolveSingleScript looks up basename against the store, printing and
// returning nil (with a nil error, so the CLI exits 0) when the basename
// is ambiguous — ambiguity is reported data, not an analyzer failure.
func resolveSingleScript(st *store.Store, basename string, cmd *cobra.Command) (*model.Script, error) {
	matches, err := st.GetScriptsByBasename(basename)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		fmt.Fprintf(cmd.ErrOrStderr(), "no script named %q in this store\n", basename)
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "%q is ambiguous; candidates:\n", basename)
		for _, m := range matches {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", m.AbsPath)
		}
		return nil, nil
	}
}
