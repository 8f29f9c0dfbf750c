package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sift/internal/batch"
	"sift/internal/config"
	"sift/internal/daemon"
	"sift/internal/logging"
	"sift/internal/notifications"
	"sift/internal/queue"
	"sift/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open workflow store", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	if err := configureStages(ctx, manager, cfg, store, logger, notifier); err != nil {
		logger.Error("configure stages", logging.Error(err))
		os.Exit(1)
	}
	aggregator := batch.NewAggregatorWithNotifier(cfg, store, logger, notifier)

	d, err := daemon.New(cfg, store, logger, manager, aggregator)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("siftd shutting down")
	d.Stop()
}
