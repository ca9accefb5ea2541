package main

import (
	"context"
	"errors"
	"os"

	"pocketwise/internal/amqp"
	"pocketwise/internal/cli"
	applog "pocketwise/internal/log"
	"pocketwise/internal/ports"
	"pocketwise/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg, applog.ComponentWorker)
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Failed to configure logging", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the alert worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	directory, err := worker.ParseDirectory(cfg.AlertRecipients, cfg.AlertFallbackEmail)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid ALERT_RECIPIENTS", "error", err)
		os.Exit(1)
	}

	var mailer ports.Mailer = worker.LogMailer{}
	if cfg.SMTPAddr != "" {
		mailer = worker.SMTPMailer{
			Addr:     cfg.SMTPAddr,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}
		logger.InfoContext(ctx, "Delivering alerts over SMTP", "addr", cfg.SMTPAddr)
	} else {
		logger.InfoContext(ctx, "SMTP_ADDR not set, alerts will only be logged")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	alerts := worker.NewAlertWorker(mailer, directory)
	logger.InfoContext(ctx, "Starting alert worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"recipients", len(directory.Emails))

	if err := client.Consume(ctx, alerts.HandleAlert); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
