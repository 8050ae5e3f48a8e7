package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"simdex/internal/app"
	"simdex/internal/config"
	"simdex/internal/logger"
	"simdex/internal/worker"
)

func main() {
	// Structured logger with correlation ids from context
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, deps.Store, deps.NSQProducer)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	// Background check worker
	if cfg.EnableCheckWorker {
		consumer, err := nsq.NewConsumer(config.TopicCheckSubmit, config.CheckChannel, nsq.NewConfig())
		if err != nil {
			slog.Error("failed to create NSQ consumer", "error", err)
		} else {
			checkConsumer := worker.NewCheckConsumer(application.DetectService)
			consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
				return checkConsumer.HandleMessage(m)
			}))
			if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
				slog.Error("failed to connect to NSQLookupd", "error", err)
			} else {
				slog.Info("check worker connected")
			}
			defer consumer.Stop()
		}
	}

	if err := application.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
