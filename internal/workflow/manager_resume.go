package workflow

import (
	"context"
	"fmt"

	"sift/internal/logging"
)

// Resume restores the queue to a runnable state after a daemon restart.
// Items stranded in a processing status are rolled back to the checkpoint
// that preceded them, and items whose persisted state fails validation are
// quarantined for operator review instead of re-entering the pipeline.
func (m *Manager) Resume(ctx context.Context) error {
	logger := m.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "workflow-manager"))

	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return fmt.Errorf("reset stuck processing: %w", err)
	}
	if reset > 0 {
		logger.Info("rolled back interrupted items", logging.Int64("count", reset))
	}

	items, err := m.store.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("list resumable items: %w", err)
	}
	quarantined := 0
	for _, item := range items {
		validationErr := item.Validate()
		if validationErr == nil {
			continue
		}
		logger.Warn("quarantining invalid item",
			logging.Int64("id", item.ID),
			logging.String(logging.FieldWorkflowID, item.WorkflowID),
			logging.Error(validationErr),
			logging.Alert("quarantine"),
		)
		if err := m.store.Quarantine(ctx, item.ID, validationErr.Error()); err != nil {
			return fmt.Errorf("quarantine item %d: %w", item.ID, err)
		}
		quarantined++
	}
	if quarantined > 0 {
		logger.Warn("resume quarantined invalid items", logging.Int("count", quarantined))
	}
	return nil
}
