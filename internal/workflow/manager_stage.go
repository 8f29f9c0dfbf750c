package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/stage"
)

func (m *Manager) processItem(ctx context.Context, lane *laneState, laneLogger *slog.Logger, item *queue.Item) error {
	stg, ok := lane.stageForStatus(item.Status)
	if !ok {
		if laneLogger == nil {
			laneLogger = logging.NewNop()
		}
		laneLogger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
		m.waitForItemOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, lane, stg.name, item, requestID)
	stageLogger := m.stageLogger(stageCtx, laneLogger)

	if err := m.claimForProcessing(stageCtx, stg.processingStatus, item); err != nil {
		if errors.Is(err, queue.ErrStaleItem) {
			// Another runner won the lease; move on.
			stageLogger.Debug("item claimed elsewhere", logging.String("status", string(item.Status)))
			return nil
		}
		stageLogger.Error("failed to transition item to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, item)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, item *queue.Item) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String(logging.FieldMessageID, item.MessageID),
	)

	handler := stg.handler
	if handler == nil {
		stageLogger.Warn("missing stage handler", logging.String("stage", stg.name))
		item.SetFailed(fmt.Sprintf("stage %s missing handler", stg.name))
		if err := m.store.Update(ctx, item); err != nil {
			stageLogger.Error("failed to persist missing handler failure", logging.Error(err))
		}
		m.setLastError(errors.New("stage handler unavailable"))
		return errors.New("stage handler unavailable")
	}

	if err := handler.Prepare(ctx, item); err != nil {
		m.handleStageFailure(ctx, stg.name, item, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithRetry(ctx, stageLogger, stg, handler, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, item, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	item.LastHeartbeat = nil
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastItem(item)
	return nil
}

// executeWithRetry runs the handler, retrying transient failures with
// exponential backoff. Fatal errors and exhausted retries bubble up to the
// failure path; handlers are idempotent so a retried Execute resumes from
// whatever outputs the previous attempt already recorded on the item.
func (m *Manager) executeWithRetry(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, handler stage.Handler, item *queue.Item) error {
	attempts := m.cfg.Workflow.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var execErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		execErr = m.executeWithHeartbeat(ctx, handler, item)
		if execErr == nil {
			return nil
		}
		if errors.Is(execErr, context.Canceled) || !services.IsRetryable(execErr) {
			return execErr
		}
		if attempt == attempts {
			return fmt.Errorf("stage %s exhausted %d attempts: %w", stg.name, attempts, execErr)
		}

		delay := m.retryDelay(attempt)
		stageLogger.Warn(
			"stage attempt failed; retrying",
			logging.Error(execErr),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("backoff", delay),
			logging.String(logging.FieldEventType, "stage_retry"),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return execErr
}

func (m *Manager) retryDelay(attempt int) time.Duration {
	base := time.Duration(m.cfg.Workflow.RetryBaseSeconds) * time.Second
	if base <= 0 {
		base = time.Second
	}
	max := time.Duration(m.cfg.Workflow.RetryMaxSeconds) * time.Second
	if max <= 0 {
		max = 60 * time.Second
	}
	delay := base << (attempt - 1)
	if delay > max || delay <= 0 {
		delay = max
	}
	// Jitter up to half the delay to spread concurrent retries.
	return delay + time.Duration(rand.Int63n(int64(delay)/2+1))
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, item *queue.Item) error {
	execCtx := ctx
	cancelTimeout := func() {}
	if m.cfg.Workflow.StageTimeout > 0 {
		execCtx, cancelTimeout = context.WithTimeout(ctx, time.Duration(m.cfg.Workflow.StageTimeout)*time.Second)
	}
	defer cancelTimeout()

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)

	execErr := handler.Execute(execCtx, item)
	hbCancel()
	hbWG.Wait()

	if execErr != nil && errors.Is(execErr, context.DeadlineExceeded) && ctx.Err() == nil {
		return services.Wrap(services.ErrTimeout, "", "stage execution", "Stage deadline exceeded", execErr)
	}
	return execErr
}

func (m *Manager) claimForProcessing(ctx context.Context, processing queue.Status, item *queue.Item) error {
	if processing == "" {
		return errors.New("processing status must not be empty")
	}

	now := time.Now().UTC()
	item.Status = processing
	item.ErrorMessage = ""
	item.LastHeartbeat = &now
	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, queue.ErrStaleItem) {
			return err
		}
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastItem(item)
	return nil
}
