package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CommitDecision atomically records a human decision: the workflow item's
// decision fields and status are updated under the optimistic step guard,
// and one approval_history row is appended in the same transaction. A stale
// item aborts the whole commit with ErrStaleItem so the audit trail can
// never disagree with the checkpoint.
func (s *Store) CommitDecision(ctx context.Context, item *Item, rec ApprovalRecord) error {
	if item == nil {
		return errors.New("item is nil")
	}
	expected := item.StepIndex
	item.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decision tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE workflow_items
         SET status = ?, decision = ?, decision_folder = ?, decision_actor = ?,
             step_index = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND step_index = ?`,
		item.Status,
		string(item.Decision),
		nullableString(item.DecisionFolder),
		nullableString(item.DecisionActor),
		expected+1,
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("persist decision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("persist decision: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: workflow %s at step %d", ErrStaleItem, item.WorkflowID, expected)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO approval_history (
            workflow_id, decision, actor, previous_folder, new_folder, decided_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.WorkflowID,
		string(rec.Decision),
		nullableString(rec.Actor),
		nullableString(rec.PreviousFolder),
		nullableString(rec.NewFolder),
		rec.DecidedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("append approval history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decision: %w", err)
	}
	item.StepIndex = expected + 1
	return nil
}

// ApprovalsForWorkflow returns the audit trail for one workflow instance,
// oldest first.
func (s *Store) ApprovalsForWorkflow(ctx context.Context, workflowID string) ([]ApprovalRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, workflow_id, decision, actor, previous_folder, new_folder, decided_at
         FROM approval_history WHERE workflow_id = ? ORDER BY id`,
		workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	var records []ApprovalRecord
	for rows.Next() {
		rec, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanApproval(scanner interface{ Scan(dest ...any) error }) (ApprovalRecord, error) {
	var (
		rec            ApprovalRecord
		decision       string
		actor          sql.NullString
		previousFolder sql.NullString
		newFolder      sql.NullString
		decidedRaw     sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.WorkflowID,
		&decision,
		&actor,
		&previousFolder,
		&newFolder,
		&decidedRaw,
	); err != nil {
		return ApprovalRecord{}, err
	}
	rec.Decision = Decision(decision)
	rec.Actor = actor.String
	rec.PreviousFolder = previousFolder.String
	rec.NewFolder = newFolder.String
	if decided, err := parseTimeString(decidedRaw.String); err == nil {
		rec.DecidedAt = decided
	}
	return rec, nil
}
