package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdc/internal/watch"
	"github.com/leapstack-labs/leapdc/pkg/dc"
)

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <csv> <constraint>",
		Short: "Re-check a constraint whenever the CSV file changes",
		Long: `Check a constraint once, then again every time the file is saved.
Bursts of writes are collapsed into a single check. Press Ctrl+C to stop.`,
		Example: `  leapdc watch data/orders.csv '!(t.OrderID == s.OrderID and t.Line == s.Line)'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], args[1], opts)
		},
	}

	addSourceFlags(cmd)
	cmd.Flags().Int("max-violations", 0, "Stop after this many violations (0 = default 100, -1 = all)")
	cmd.Flags().String("engine", "", "Verification engine (memory|duckdb|sqlite|postgres)")
	cmd.Flags().String("strategy", "", "Force an in-memory strategy (auto|all-equality|one-inequality|general)")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-checking")

	return cmd
}

func runWatch(cmd *cobra.Command, path, expr string, opts *WatchOptions) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	d, err := dc.Parse(expr)
	if err != nil {
		return err
	}
	src := sourceFor(cctx.Cfg, path)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(path, watch.Options{Debounce: opts.Debounce, Logger: cctx.Logger})
	if err != nil {
		return err
	}

	check := func(ctx context.Context) error {
		v, err := runVerification(ctx, cctx.Cfg, cctx.Logger, src, d)
		if err != nil {
			cctx.Renderer.Error(err.Error())
			return nil
		}
		return renderVerification(cctx.Renderer, v, d, "")
	}

	if err := check(ctx); err != nil {
		_ = w.Close()
		return err
	}
	cctx.Renderer.Println()
	cctx.Renderer.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", path))

	return w.Run(ctx, func(ctx context.Context) error {
		cctx.Renderer.Println()
		cctx.Renderer.Muted(time.Now().Format("15:04:05") + " change detected")
		return check(ctx)
	})
}
