// Package cmd provides the CLI commands for amanrag.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrag/internal/config"
	"github.com/Aman-CERP/amanrag/internal/logging"
	"github.com/Aman-CERP/amanrag/pkg/version"
)

// Persistent flags and per-invocation state shared by every subcommand.
var (
	configPath     string
	logLevel       string
	verbose        bool
	loadedConfig   *config.Config
	loggingCleanup func()
)

// NewRootCmd creates the root command for the amanrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amanrag",
		Short: "Local document retrieval engine",
		Long: `amanrag indexes text documents into a metadata store, a full-text
index, and a vector index, then serves retrieval over them in six modes:
semantic, keyword, hybrid, fulltext, text_match, and phrase_match.

It runs entirely locally; embeddings come from Ollama or a built-in
static embedder.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("amanrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.amanrag/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Also write logs to stderr")

	cmd.PersistentPreRunE = startup
	cmd.PersistentPostRun = shutdown

	cmd.AddCommand(newChunkCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newModesCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startup loads configuration and initializes logging before any subcommand
// runs. Stdout stays reserved for command output; logs go to the configured
// file, plus stderr with --verbose.
func startup(_ *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	loadedConfig = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.WriteToStderr = verbose
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}

	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

func shutdown(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// loadConfig returns the configuration loaded during startup.
func loadConfig() (*config.Config, error) {
	if loadedConfig == nil {
		// Direct RunE invocation in tests; load on demand.
		return config.Load(configPath)
	}
	return loadedConfig, nil
}

// Execute runs the root command with a signal-aware context so long-running
// subcommands (watch) shut down cleanly on Ctrl-C.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}
