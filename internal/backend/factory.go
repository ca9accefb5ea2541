package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pocketwise/internal/amqp"
	"pocketwise/internal/ports"
	gsheet "pocketwise/internal/sheets/google"
	sheetsmem "pocketwise/internal/sheets/memory"
	"pocketwise/internal/storage"
	"pocketwise/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend builds the store and attaches the optional notifier and
// exporter. A broker that cannot be reached degrades to dropping alerts.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store    ports.Store
		closers  []func() error
		exporter ports.ReportExporter
	)

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
		closers = append(closers, repo.Close)
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New()
		// Exports stay in process unless a spreadsheet is configured below
		exporter = sheetsmem.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	var notifier ports.Notifier = ports.NopNotifier{}
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, alerts will be dropped", "error", err)
		} else {
			notifier = amqp.NewNotifier(client)
			closers = append(closers, client.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	if config.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetPrefix:     config.GoogleSheetPrefix,
			CredentialsJSON: config.GoogleCredentialsJSON,
			CredentialsFile: config.GoogleCredentialsFile,
		})
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		exporter = client
		f.logger.InfoContext(ctx, "Initialized Google Sheets export", "spreadsheet_id", config.GoogleSpreadsheetID)
	}

	return &BackendResult{
		Store:    store,
		Notifier: notifier,
		Exporter: exporter,
		Cleanup:  func() error { return closeAll(closers) },
	}, nil
}

// closeAll runs closers in reverse order of acquisition.
func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i]())
	}
	return errors.Join(errs...)
}
