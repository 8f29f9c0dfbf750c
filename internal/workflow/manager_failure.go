package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithContext(ctx, base.With(logging.String(logging.FieldComponent, "workflow-manager")))

	message := m.describeStageFailure(stageName, stageErr)
	item.SetFailed(message)

	details := services.Describe(stageErr)
	logger.Error(
		"stage failed",
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("error_message", message),
		logging.String("error_kind", string(details.Kind)),
		logging.Alert("stage_failure"),
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastItem(item)
	m.notifyStageError(ctx, stageName, item, stageErr)
}

func (m *Manager) describeStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s failed without error detail", stageName)
	}
	message := strings.TrimSpace(services.Describe(stageErr).Message)
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return message
}

func (m *Manager) notifyStageError(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	logger := logging.WithContext(ctx, m.logger.With(logging.String(logging.FieldComponent, "workflow-manager")))
	contextLabel := fmt.Sprintf("%s (workflow %s)", stageName, item.WorkflowID)
	if err := m.notifier.NotifyError(ctx, stageErr, contextLabel); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send error notification")
		} else {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
}
