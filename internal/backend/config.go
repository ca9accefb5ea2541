package backend

import (
	"errors"
	"fmt"

	"pocketwise/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Alert publishing, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Report export, disabled when GoogleSpreadsheetID is empty
	GoogleSpreadsheetID   string
	GoogleSheetPrefix     string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{
		Type:                  BackendType(appConfig.DataBackend),
		SQLiteDBPath:          appConfig.SQLiteDBPath,
		AMQPURL:               appConfig.AMQPURL,
		AMQPExchange:          appConfig.AMQPExchange,
		AMQPQueue:             appConfig.AMQPQueue,
		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleSheetPrefix:     appConfig.GoogleSheetPrefix,
		GoogleCredentialsJSON: appConfig.GoogleCredentialsJSON,
		GoogleCredentialsFile: appConfig.GoogleCredentialsFile,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}
