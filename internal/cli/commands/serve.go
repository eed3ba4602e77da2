package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdc/internal/server"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	NoHistory bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the verification HTTP API",
		Long: `Start an HTTP server that verifies constraints on posted CSV data and
exposes the run history.

Endpoints:
  GET  /healthz          liveness check
  POST /api/verify       {"csv": "...", "constraint": "...", "delimiter": ",", "header": true, "max_violations": 100}
  GET  /api/runs         recent runs (?limit=N)
  GET  /api/runs/{id}    one run with its violations
  GET  /api/events       server-sent events, one per recorded run`,
		Example: `  leapdc serve --addr :8321
  curl -s localhost:8321/api/verify -d '{"csv":"a,b\n1,2\n1,3\n","constraint":"!(t.a == s.a and t.b != s.b)"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:8321)")
	cmd.Flags().Int("max-violations", 0, "Default violation cap for requests without one")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record runs or serve the history")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := server.Config{
		Addr:           cctx.Cfg.Server.Addr,
		MaxUploadBytes: cctx.Cfg.Server.MaxUploadBytes,
		MaxViolations:  cctx.Cfg.MaxViolations,
		Logger:         cctx.Logger,
	}
	if !opts.NoHistory {
		store, err := cctx.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		cfg.Store = store
	}

	cctx.Renderer.Muted("Serving on http://" + cfg.Addr + " (Ctrl+C to stop)")
	return server.New(cfg).Serve(ctx)
}
