package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shelldep/shelldep/internal/config"
	"github.com/shelldep/shelldep/internal/reportlog"
	"github.com/shelldep/shelldep/internal/scan"
	"github.com/shelldep/shelldep/internal/store"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Workers int
	Prune   bool
}

// newAnalyzeCommand creates the analyze command: a full scan of a script
// and control-file root.
func newAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <root>",
		Short: "Scan a directory tree and index its scripts, control files, and references",
		Long: `analyze walks root for .ksh/.sh scripts and .ctl control files, extracts
outbound references from each script, resolves them against the corpus,
and persists the resulting dependency graph to the store.

Example:
  shelldep analyze --store ./deps.db ./batch-jobs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parser worker count (default: number of CPUs)")
	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "mark scripts absent from this scan as stale")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, root string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	cfg = cfg.MergeFlags(root, opts.Store, opts.Workers, opts.Verbose)

	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prog := reportlog.NewProgress(opts.Verbose, logger)
	prog.Log("scanning %s", root)

	result, err := scan.Run(ctx, st, scan.Options{Root: root, Workers: cfg.Workers, Prune: opts.Prune, ExcludeDir: cfg.ExcludeDir}, prog)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scanned %d scripts, %d non-fatal errors\n", result.ScriptsScanned, result.Report.Total())
	for _, kind := range result.Report.Kinds() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", kind, result.Report.Count(kind))
	}
	if n := result.Report.InactiveTotal(); n > 0 {
		prog.Verbose("%d commented-out reference(s) found (never indexed as edges):", n)
		for _, rec := range result.Report.InactiveReferences() {
			prog.Verbose("  %s:%d: %s (%s)", rec.Path, rec.Ref.Line, rec.Ref.RawText, rec.Ref.TargetKind)
		}
	}
	return nil
}
