package main

import (
	"context"
	"fmt"
	"log/slog"

	"sift/internal/classify"
	"sift/internal/config"
	"sift/internal/execute"
	"sift/internal/extract"
	"sift/internal/mail"
	"sift/internal/mail/gmail"
	"sift/internal/notifications"
	"sift/internal/notify"
	"sift/internal/queue"
	"sift/internal/score"
	"sift/internal/workflow"
)

// configureStages wires the five pipeline handlers into the manager. The mail
// client is nil when Gmail is disabled; extract and execute degrade to
// metadata-only behavior in that case.
func configureStages(ctx context.Context, manager *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) error {
	var client mail.Client
	if cfg.Gmail.Enabled {
		gmailClient, err := gmail.NewClient(ctx, cfg.Gmail)
		if err != nil {
			return fmt.Errorf("gmail client: %w", err)
		}
		client = gmailClient
	}

	manager.ConfigureStages(workflow.StageSet{
		Extractor:  extract.NewExtractor(cfg, logger, client),
		Classifier: classify.NewClassifier(cfg, logger),
		Scorer:     score.NewScorer(cfg, logger),
		Router:     notify.NewRouter(cfg, store, logger, notifier),
		Executor:   execute.NewExecutor(cfg, logger, client),
	})
	return nil
}
