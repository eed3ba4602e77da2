// Package cli provides the command-line interface for leapdc.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdc/internal/cli/commands"
	"github.com/leapstack-labs/leapdc/internal/cli/config"

	// Database engines available to --engine.
	_ "github.com/leapstack-labs/leapdc/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapdc/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapdc/pkg/adapters/sqlite"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "leapdc",
		Short: "leapdc - Denial constraint verifier",
		Long: `leapdc checks denial constraints against tabular data.

A denial constraint forbids a combination of rows, for example
!(t.Zip == s.Zip and t.City != s.City). leapdc reports whether it holds
on a CSV file and which rows violate it, in memory or inside DuckDB,
SQLite or PostgreSQL.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: config.ParseLevel(cfg.LogLevel),
			}))
			if cfg.ConfigFile != "" {
				logger.Debug("using config file", slog.String("path", cfg.ConfigFile))
			}
			if cfg.Environment != "" {
				logger.Debug("using environment", slog.String("env", cfg.Environment))
			}

			ctx := config.WithLogger(cmd.Context(), logger)
			ctx = config.WithConfig(ctx, cfg)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Denial constraint verifier
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./leapdc.yaml)")
	rootCmd.PersistentFlags().String("state", "", "Path to the history database")
	rootCmd.PersistentFlags().String("env", "", "Environment from the config file to use")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output (same as --log-level debug)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.OutputFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.LogLevels, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewVerifyCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leapdc.

To load completions:

Bash:
  $ source <(leapdc completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ leapdc completion bash > /etc/bash_completion.d/leapdc
  # macOS:
  $ leapdc completion bash > $(brew --prefix)/etc/bash_completion.d/leapdc

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ leapdc completion zsh > "${fpath[1]}/_leapdc"

Fish:
  $ leapdc completion fish | source

  # To load completions for each session, execute once:
  $ leapdc completion fish > ~/.config/fish/completions/leapdc.fish

PowerShell:
  PS> leapdc completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
