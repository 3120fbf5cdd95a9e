package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/supportchat-server/internal/app"
	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/log"
)

var (
	configPath string
	overrides  config.Config
)

var rootCmd = &cobra.Command{
	Use:           "supportchat",
	Short:         "Real-time customer support chat server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(ctx, &cfg, logger)
		if err != nil {
			return fmt.Errorf("init app: %w", err)
		}

		logger.Info().Str("addr", cfg.Addr).Str("typing_backend", cfg.TypingBackend).Msg("starting supportchat server")
		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("server exited with error: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

// loadConfig resolves configuration and builds the logger it asks for.
func loadConfig() (config.Config, *zerolog.Logger, error) {
	bootstrap := log.New("info", "console")

	cfg, path, err := config.Load(bootstrap, configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.UpdateFrom(overrides)
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config_path", path).Msg("configuration loaded")
	return cfg, logger, nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")

	serveFlags := serveCmd.Flags()
	serveFlags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	serveFlags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	serveFlags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	serveFlags.BoolVar(&overrides.RequireToken, "require-token", false, "reject channels without a signed token")
	serveFlags.StringVar(&overrides.TypingBackend, "typing-backend", "", "typing marker backend (sqlite or redis)")
	serveFlags.StringVar(&overrides.Redis.Addr, "redis-addr", "", "Redis address for the redis typing backend")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd, profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
