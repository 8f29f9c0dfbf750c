package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"sift/internal/approval"
	"sift/internal/batch"
	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *queue.Store
	workflow   *workflow.Manager
	aggregator *batch.Aggregator
	gate       *approval.Gate

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, agg *batch.Aggregator) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "siftd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		workflow:   wf,
		aggregator: agg,
		gate:       approval.NewGate(store, logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, resumes interrupted work, and launches the
// background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sift daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.workflow.Resume(runCtx); err != nil {
		d.releaseStart()
		return fmt.Errorf("resume queue: %w", err)
	}
	if err := d.workflow.Start(runCtx); err != nil {
		d.releaseStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.aggregator != nil {
		if err := d.aggregator.Start(runCtx); err != nil {
			d.workflow.Stop()
			d.releaseStart()
			return fmt.Errorf("start batch aggregator: %w", err)
		}
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			if d.aggregator != nil {
				d.aggregator.Stop()
			}
			d.workflow.Stop()
			d.releaseStart()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("sift daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseStart() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.lock.Unlock()
}

// Stop stops background processing and releases the daemon lock. In-flight
// stages are interrupted; anything still marked processing afterwards is
// rolled back to its stage start so the next start resumes it cleanly.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	if d.aggregator != nil {
		d.aggregator.Stop()
	}
	d.workflow.Stop()

	rolled, err := d.store.ResetStuckProcessing(context.Background())
	if err != nil {
		d.logger.Warn("failed to roll back interrupted items", logging.Error(err))
	} else if rolled > 0 {
		d.logger.Info("interrupted items rolled back to stage start", logging.Int64("count", rolled))
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("sift daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// APIAddr returns the bound HTTP API address, or "" when the API is
// disabled or not started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Running reports whether the daemon loops are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns daemon runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// Submit ingests a mail message into the workflow queue. Resubmitting a
// known message id returns the existing item.
func (d *Daemon) Submit(ctx context.Context, messageID string) (*queue.Item, bool, error) {
	return d.store.NewMessage(ctx, messageID)
}

// Decide routes an operator decision through the approval gate.
func (d *Daemon) Decide(ctx context.Context, ref, workflowID string, decision queue.Decision, actor, folder string) (*queue.Item, error) {
	if ref != "" {
		return d.gate.RecordDecision(ctx, ref, decision, actor, folder)
	}
	return d.gate.DecideWorkflow(ctx, workflowID, decision, actor, folder)
}

// ListQueue returns workflow items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Item, error) {
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}
