package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// OpenBatch returns the current open batch window, creating one when none
// exists. Batch membership lives on the workflow rows, so a restarted
// daemon reconstructs the pending window from the database.
func (s *Store) OpenBatch(ctx context.Context) (*Batch, error) {
	batch, err := s.currentOpenBatch(ctx)
	if err != nil {
		return nil, err
	}
	if batch != nil {
		return batch, nil
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO batches (opened_at) VALUES (?)`,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("open batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("open batch: last insert id: %w", err)
	}
	return &Batch{ID: id, OpenedAt: now}, nil
}

// CurrentOpenBatch returns the open batch window, or nil when every window
// has been flushed. It never creates one.
func (s *Store) CurrentOpenBatch(ctx context.Context) (*Batch, error) {
	return s.currentOpenBatch(ctx)
}

func (s *Store) currentOpenBatch(ctx context.Context) (*Batch, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, opened_at, closed_at, notification_ref
         FROM batches WHERE closed_at IS NULL ORDER BY id LIMIT 1`,
	)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open batch: %w", err)
	}
	return batch, nil
}

// BatchMembers returns the items assigned to a batch window, oldest first.
func (s *Store) BatchMembers(ctx context.Context, batchID int64) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM workflow_items WHERE batch_id = ? AND status = ? ORDER BY created_at, id`,
		batchID,
		StatusBatched,
	)
	if err != nil {
		return nil, fmt.Errorf("query batch members: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// CloseBatch marks a batch window flushed and records the grouped
// notification reference.
func (s *Store) CloseBatch(ctx context.Context, batchID int64, notificationRef string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE batches SET closed_at = ?, notification_ref = ? WHERE id = ? AND closed_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano),
		nullableString(notificationRef),
		batchID,
	)
	if err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close batch: rows affected: %w", err)
	}
	if affected == 0 {
		return errors.New("close batch: already closed or missing")
	}
	return nil
}

// GetBatch fetches a batch by identifier.
func (s *Store) GetBatch(ctx context.Context, batchID int64) (*Batch, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, opened_at, closed_at, notification_ref FROM batches WHERE id = ?`,
		batchID,
	)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

func scanBatch(scanner interface{ Scan(dest ...any) error }) (*Batch, error) {
	var (
		batch     Batch
		openedRaw sql.NullString
		closedRaw sql.NullString
		ref       sql.NullString
	)
	if err := scanner.Scan(&batch.ID, &openedRaw, &closedRaw, &ref); err != nil {
		return nil, err
	}
	if opened, err := parseTimeString(openedRaw.String); err == nil {
		batch.OpenedAt = opened
	}
	if closedRaw.Valid {
		if closed, err := parseTimeString(closedRaw.String); err == nil {
			batch.ClosedAt = &closed
		}
	}
	batch.NotificationRef = ref.String
	return &batch, nil
}
