// Package commands implements the phoenix command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nhle/phoenix-warmup/internal/logging"
	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/service"
)

var (
	configPath string
	dataDir    string

	// cfg and cfgFile are set by loadConfig before any command runs.
	cfg     *model.AppConfig
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "phoenix",
		Short: "Phoenix email warm-up",
		Long: `Phoenix warms up sending inboxes by mailing a pool of recipients on a
slowly rising daily quota and answering part of the mail they receive.

Run without a subcommand to open the dashboard.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		RunE:              runTUI,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "directory holding the CSV files (overrides DATA_DIR)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
		return nil
	}

	// LoadConfig derives the log file and keyring dir from DATA_DIR, so the
	// flag is published through the environment before loading.
	if dataDir != "" {
		if err := os.Setenv("DATA_DIR", dataDir); err != nil {
			return fmt.Errorf("setting DATA_DIR: %w", err)
		}
	}
	path := configPath
	if path == "" {
		path = model.DefaultConfigPath()
	}

	var err error
	cfg, err = model.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfgFile = path
	return nil
}

// openService builds the application for a command. Diagnostics go to the
// log file, and also to stderr when console is set.
func openService(console bool) (*service.Service, zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("creating data dir: %w", err)
	}

	log, logCloser, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: console,
	})
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	svc, err := service.New(cfg, log, service.Options{ConfigPath: cfgFile})
	if err != nil {
		_ = logCloser.Close()
		return nil, zerolog.Nop(), nil, err
	}
	return svc, log, closers{svc, logCloser}, nil
}

type closers []io.Closer

func (c closers) Close() error {
	var first error
	for _, cl := range c {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// withService opens the application, runs fn and closes it again.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	svc, _, closer, err := openService(false)
	if err != nil {
		return err
	}
	defer closer.Close()
	return fn(cmd.Context(), svc)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func startupLog(log zerolog.Logger) {
	log.Info().
		Str("data_dir", absPath(cfg.DataDir)).
		Str("config", cfgFile).
		Str("log_backend", cfg.Log.Backend).
		Msg("phoenix starting")
}
