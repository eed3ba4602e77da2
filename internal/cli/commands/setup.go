package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdc/internal/cli/config"
	"github.com/leapstack-labs/leapdc/internal/cli/output"
	"github.com/leapstack-labs/leapdc/internal/state"
)

// ErrConstraintViolated is returned with --fail-on-violation when a
// constraint does not hold.
var ErrConstraintViolated = errors.New("constraint violated")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger and renderer for cmd.
// The root command stores the config in the context; a command executed on
// its own loads it from its flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

// OpenStore opens the history database, creating its directory.
// The caller must close the store.
func (c *CommandContext) OpenStore(ctx context.Context) (*state.Store, error) {
	return openStore(ctx, c.Cfg.StatePath, c.Logger)
}

func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg := config.GetConfig(cmd.Context()); cfg != nil {
		return cfg, nil
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	return config.LoadConfig(cfgFile, cmd.Flags())
}

func openStore(ctx context.Context, path string, logger *slog.Logger) (*state.Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	store, err := state.Open(ctx, path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}
