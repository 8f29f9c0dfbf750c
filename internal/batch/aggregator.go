package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/notifications"
	"sift/internal/queue"
	"sift/internal/services"
)

// Aggregator watches the open batch window and flushes it into one grouped
// approval notification when the window ages out or fills up. The window
// itself lives in the database, so a restarted daemon resumes the countdown
// from the persisted opened_at timestamp.
type Aggregator struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewAggregator constructs an aggregator with the default notifier.
func NewAggregator(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Aggregator {
	return NewAggregatorWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewAggregatorWithNotifier constructs an aggregator with a custom notifier
// (used in tests).
func NewAggregatorWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Aggregator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "batch-aggregator"),
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
	}
}

// Start begins the background flush loop.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return errors.New("batch aggregator already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true
	a.wg.Add(1)
	go a.run(runCtx)
	return nil
}

// Stop terminates the flush loop and waits for completion.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	a.running = false
	a.cancel = nil
	a.mu.Unlock()

	cancel()
	a.wg.Wait()
}

func (a *Aggregator) run(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.FlushDue(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				a.logger.Warn("batch flush failed; window stays open",
					logging.Error(err),
					logging.String(logging.FieldEventType, "batch_flush_failed"),
				)
			}
		}
	}
}

// FlushDue flushes the open batch window when its age or size policy trips.
// A delivery failure leaves the window open so the next tick retries.
func (a *Aggregator) FlushDue(ctx context.Context) error {
	batch, err := a.store.CurrentOpenBatch(ctx)
	if err != nil {
		return fmt.Errorf("inspect batch window: %w", err)
	}
	if batch == nil {
		return nil
	}

	members, err := a.store.BatchMembers(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("list batch members: %w", err)
	}

	window := time.Duration(a.cfg.Triage.BatchWindow) * time.Minute
	aged := time.Since(batch.OpenedAt) >= window
	full := a.cfg.Triage.BatchMaxItems > 0 && len(members) >= a.cfg.Triage.BatchMaxItems
	if !aged && !full {
		return nil
	}

	if len(members) == 0 {
		// The window aged out after every member was pulled back for
		// reprocessing. Close it so a fresh window can open.
		return a.store.CloseBatch(ctx, batch.ID, "")
	}

	ref, err := a.notifier.SendBatchSummary(ctx, members)
	if err != nil {
		return services.Wrap(services.ErrTransient, "batch", "send summary", "Failed to deliver the batch notification", err)
	}

	for _, member := range members {
		member.NotificationRef = notifications.BatchItemRef(ref, member.ID)
		member.Status = queue.StatusAwaitingApproval
		if err := a.store.Update(ctx, member); err != nil {
			if errors.Is(err, queue.ErrStaleItem) {
				a.logger.Warn("batch member changed during flush; skipped",
					logging.Int64("id", member.ID),
					logging.String(logging.FieldWorkflowID, member.WorkflowID),
				)
				continue
			}
			return fmt.Errorf("promote batch member %d: %w", member.ID, err)
		}
	}

	if err := a.store.CloseBatch(ctx, batch.ID, ref); err != nil {
		return fmt.Errorf("close batch %d: %w", batch.ID, err)
	}

	a.logger.Info("batch flushed",
		logging.Int64("batch_id", batch.ID),
		logging.Int("members", len(members)),
		logging.String("notification_ref", ref),
		logging.String(logging.FieldEventType, "batch_flushed"),
	)
	return nil
}
