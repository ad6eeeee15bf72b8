package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/notify"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx, logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		return cli.ExitFailure
	}

	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		return cli.ExitFailure
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	accounts := auth.NewStoreIdentity(res.Store, logger)
	var identity auth.Identity = accounts
	if cfg.User != "" {
		identity = auth.Static{User: auth.User{Email: cfg.User}}
		accounts = nil
	}

	sinks := notify.Multi{notify.NewWriterSink(os.Stdout)}
	if res.Broker != nil {
		sinks = append(sinks, notify.NewBrokerSink(res.Broker, logger))
	}

	app := &cli.App{
		Repo:     res.Repository,
		Identity: identity,
		Accounts: accounts,
		Sink:     sinks,
		PageSize: cfg.PageSize,
		Out:      os.Stdout,
		Err:      os.Stderr,
	}
	return app.Run(ctx, os.Args[1:])
}
