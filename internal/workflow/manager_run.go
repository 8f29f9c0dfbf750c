package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sift/internal/logging"
	"sift/internal/queue"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		if lane == nil || len(lane.statusOrder) == 0 {
			continue
		}
		lanes = append(lanes, lane)
	}
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.WorkersPerLane
	if workers < 1 {
		workers = 1
	}
	total := 0
	for _, lane := range lanes {
		lane.logger = m.laneLogger(lane)
		total += workers
		if lane.runReclaimer {
			total++
		}
	}
	m.wg.Add(total)
	m.mu.Unlock()

	for _, lane := range lanes {
		if lane.runReclaimer {
			go m.runLaneReclaimer(runCtx, lane)
		}
		for i := 0; i < workers; i++ {
			go m.runLaneWorker(runCtx, lane, i)
		}
	}

	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// runLaneReclaimer periodically rewinds items whose heartbeat went stale so a
// worker can claim them again. One reclaimer per lane is enough; the workers
// never touch stale items themselves.
func (m *Manager) runLaneReclaimer(ctx context.Context, lane *laneState) {
	defer m.wg.Done()
	logger := m.laneWorkerLogger(lane, -1)

	interval := m.pollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := m.heartbeat.ReclaimStaleItems(ctx, logger, lane.processingStatuses); err != nil {
			logger.Warn("reclaim stale processing failed; stuck items may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runLaneWorker claims and processes items for one lane. Several workers share
// a lane; the step-index guard in the store decides who wins a claim, and the
// losers just move to the next item.
func (m *Manager) runLaneWorker(ctx context.Context, lane *laneState, worker int) {
	defer m.wg.Done()
	if lane == nil {
		return
	}
	logger := m.laneWorkerLogger(lane, worker)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := m.nextItemForLane(ctx, lane)
		if err != nil {
			m.handleNextItemError(ctx, logger, err)
			continue
		}
		if item == nil {
			m.waitForItemOrShutdown(ctx)
			continue
		}

		if err := m.processItem(ctx, lane, logger, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) nextItemForLane(ctx context.Context, lane *laneState) (*queue.Item, error) {
	if lane == nil || len(lane.statusOrder) == 0 {
		return nil, nil
	}
	return m.store.NextForStatuses(ctx, lane.statusOrder...)
}

func (m *Manager) handleNextItemError(ctx context.Context, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	logger.Error("failed to fetch next queue item",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
	)
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.pollInterval):
	}
}
