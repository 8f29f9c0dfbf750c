package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// rollbackCase rewinds a processing status to the start of its stage. The
// execute stage rolls back to the decided status carried on the row so a
// reclaimed item re-enters the dispatch lane, not the triage lane.
const rollbackCase = `CASE status
            WHEN 'extracting' THEN 'received'
            WHEN 'classifying' THEN 'context_extracted'
            WHEN 'scoring' THEN 'classified'
            WHEN 'notifying' THEN 'scored'
            WHEN 'executing' THEN (CASE decision WHEN 'reject' THEN 'rejected' ELSE 'approved' END)
            ELSE status
        END`

// ResetStuckProcessing rewinds items left in processing states (for example
// after a crash) back to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE workflow_items
         SET status = `+rollbackCase+`,
             step_index = step_index + 1, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusExtracting,
		StatusClassifying,
		StatusScoring,
		StatusNotifying,
		StatusExecuting,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE workflow_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing rewinds items whose heartbeats expired back to the
// start of their current stage.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	args := make([]any, 0, len(statuses)+2)
	args = append(args, now.Format(time.RFC3339Nano))
	for _, status := range statuses {
		args = append(args, status)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	query := `UPDATE workflow_items
        SET status = ` + rollbackCase + `,
            step_index = step_index + 1, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (` + makePlaceholders(len(statuses)) + `) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed items back to received for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE workflow_items
            SET status = ?, error_message = NULL, step_index = step_index + 1, updated_at = ?
            WHERE status = ?`,
			StatusReceived,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusReceived, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE workflow_items
        SET status = ?, error_message = NULL, step_index = step_index + 1, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}

// Quarantine moves a corrupt item out of the active resume set and records
// the reason for manual inspection. The write bypasses the optimistic guard:
// quarantine must win any race with a concurrent stage.
func (s *Store) Quarantine(ctx context.Context, id int64, reason string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE workflow_items
         SET status = ?, needs_review = 1, review_reason = ?,
             step_index = step_index + 1, last_heartbeat = NULL, updated_at = ?
         WHERE id = ?`,
		StatusReview,
		reason,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("quarantine item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("quarantine item: rows affected: %w", err)
	}
	if affected == 0 {
		return errors.New("quarantine item: not found")
	}
	return nil
}

// Clear removes all workflow items.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflow_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed workflow items.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflow_items WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed workflow items.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflow_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}
