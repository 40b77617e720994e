package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/fleetwatch/internal/control"
	"github.com/vietddude/fleetwatch/internal/core/config"
	"github.com/vietddude/fleetwatch/internal/infra/fleetapi"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "fleetwatch",
	Short: "Fleetwatch polling service",
	Long:  `Fleetwatch polls vehicles and energy sites of a Fleet API account and publishes their state.`,
	Run:   runService,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads .env and the config file, then sets up logging.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	switch {
	case isDebug:
		slogLevel = slog.LevelDebug
	default:
		if err := slogLevel.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
			slogLevel = slog.LevelInfo
		}
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func newFleetClient(cfg *config.AppConfig) *fleetapi.HTTPClient {
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}
	return fleetapi.NewHTTPClient(cfg.Fleet.BaseURL, cfg.Fleet.Token, cfg.Fleet.Timeout)
}

func runService(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	api := newFleetClient(cfg)
	defer api.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := control.NewService(ctx, cfg, api)
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	slog.Info("Fleetwatch started", "config", cfgPath)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		cancel()
		select {
		case err = <-errCh:
		case <-time.After(15 * time.Second):
			slog.Warn("Shutdown timed out")
		}
	case err = <-errCh:
	}

	if closeErr := svc.Close(); closeErr != nil {
		slog.Warn("Error during shutdown", "error", closeErr)
	}
	if err != nil {
		slog.Error("Fleetwatch stopped", "error", err, "state", svc.Entry().State())
		os.Exit(1)
	}
	slog.Info("Fleetwatch stopped gracefully")
}
