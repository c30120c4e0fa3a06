package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-relay/internal/app"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	wlog "github.com/vovakirdan/wirechat-relay/internal/log"
)

var (
	configPath string
	overrides  config.Config
)

// rootCmd runs the server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "wirechat",
	Short:         "Real-time relay for direct and group chat messages",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")
	rootCmd.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	rootCmd.Flags().StringVar(&overrides.Redis.Addr, "redis", "", "Redis address for the identity cache")

	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wirechat: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	bootstrap := wlog.New("info", "console")
	cfg, path, err := config.Load(bootstrap, configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(overrides)
	bootstrap.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := wlog.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting wirechat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := wlog.New(cfg.LogLevel, cfg.LogFormat)

	st, err := app.OpenStore(cmd.Context(), cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("schema applied")
	return nil
}
