// Package cli holds the start-up steps shared by the commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pocketwise/internal/config"
	applog "pocketwise/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) (*applog.Logger, error) {
	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
