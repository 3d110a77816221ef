package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelldep/shelldep/internal/httpapi"
	"github.com/shelldep/shelldep/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// newServeCommand creates the serve command: an optional read-only HTTP
// front end over the Query API, for an external viewer.
func newServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Query API over HTTP, read-only",
		Long: `serve opens the store and exposes the read-only endpoints /api/summary,
/api/forward, /api/backward, and /api/search for an external viewer.

Example:
  shelldep serve --store ./deps.db --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "HTTP listen address")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      httpapi.NewRouter(st),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	fmt.Fprintf(cmd.OutOrStdout(), "serving %s on %s\n", opts.Store, opts.Addr)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		return srv.Close()
	}
}
