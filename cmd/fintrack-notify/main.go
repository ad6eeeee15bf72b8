package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/worker"
)

const statsInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting fintrack-notify")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for fintrack-notify")
		os.Exit(cli.ExitFailure)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(cli.ExitFailure)
	}

	w := worker.NewNotificationWorker(notify.NewLogSink(logger), logger)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func() {
		w.LogStats(context.Background())
		client.Close()
	})

	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.LogStats(ctx)
			}
		}
	}()

	if err := client.ConsumeNotifications(ctx, w.Handler(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		client.Close()
		os.Exit(cli.ExitFailure)
	}

	cli.WaitForShutdown(ctx, done)
}
