package notify

import (
	"context"
	"log/slog"
	"strings"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/notifications"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/stage"
)

// Router is the priority router: scored items either get an immediate
// approval prompt or join the open batch window. The branch is a total
// function of the priority score against the configured threshold.
type Router struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
}

// NewRouter constructs the notify stage handler.
func NewRouter(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Router {
	return &Router{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "notify"),
		notifier: notifier,
	}
}

func (r *Router) Prepare(ctx context.Context, item *queue.Item) error {
	item.ErrorMessage = ""
	return nil
}

func (r *Router) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)

	// Re-runs after a crash must not send a second prompt or join a second
	// batch; the persisted fields say which branch already happened.
	if strings.TrimSpace(item.NotificationRef) != "" {
		item.Status = queue.StatusAwaitingApproval
		logger.Info("approval prompt already delivered", logging.String("ref", item.NotificationRef))
		return nil
	}
	if item.BatchID != 0 {
		item.Status = queue.StatusBatched
		logger.Info("already assigned to batch", logging.Int64("batch_id", item.BatchID))
		return nil
	}

	if item.PriorityScore >= r.threshold() {
		ref, err := r.notifier.SendApprovalPrompt(ctx, item)
		if err != nil {
			return services.Wrap(
				services.ErrTransient, "notify", "send approval prompt",
				"Failed to deliver approval prompt", err)
		}
		item.NotificationRef = ref
		item.Status = queue.StatusAwaitingApproval
		logger.Info(
			"approval prompt sent",
			logging.Int("score", item.PriorityScore),
			logging.String("ref", ref),
		)
		return nil
	}

	batch, err := r.store.OpenBatch(ctx)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "notify", "open batch",
			"Failed to open batch window", err)
	}
	item.BatchID = batch.ID
	item.Status = queue.StatusBatched
	logger.Info(
		"joined batch window",
		logging.Int("score", item.PriorityScore),
		logging.Int64("batch_id", batch.ID),
	)
	return nil
}

func (r *Router) HealthCheck(ctx context.Context) stage.Health {
	if r.notifier == nil {
		return stage.Unhealthy("notify", "notification service not configured")
	}
	return stage.Healthy("notify")
}

func (r *Router) threshold() int {
	if r.cfg != nil && r.cfg.Triage.PriorityThreshold > 0 {
		return r.cfg.Triage.PriorityThreshold
	}
	return 70
}
