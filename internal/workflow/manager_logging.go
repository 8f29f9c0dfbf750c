package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/services"
)

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	name := lane.name
	if name == "" {
		name = string(lane.kind)
	}
	return m.logger.With(
		logging.String(logging.FieldComponent, fmt.Sprintf("workflow-%s-runner", name)),
		logging.String(logging.FieldLane, name),
	)
}

// laneWorkerLogger tags the lane logger with a worker index; -1 marks the
// reclaimer goroutine.
func (m *Manager) laneWorkerLogger(lane *laneState, worker int) *slog.Logger {
	logger := lane.logger
	if logger == nil {
		logger = m.logger
	}
	if logger == nil {
		return logging.NewNop()
	}
	if worker < 0 {
		return logger.With(logging.String("worker", "reclaimer"))
	}
	return logger.With(logging.Int("worker", worker))
}

func (m *Manager) stageLogger(ctx context.Context, laneLogger *slog.Logger) *slog.Logger {
	base := laneLogger
	if base == nil {
		base = m.logger
	}
	if base == nil {
		base = logging.NewNop()
	}
	return logging.WithContext(ctx, base)
}

func withStageContext(ctx context.Context, lane *laneState, stageName string, item *queue.Item, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if item != nil {
		ctx = services.WithWorkflowID(ctx, item.WorkflowID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if lane != nil {
		laneLabel := strings.TrimSpace(lane.name)
		if laneLabel == "" {
			laneLabel = string(lane.kind)
		}
		ctx = services.WithLane(ctx, laneLabel)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
