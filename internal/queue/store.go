package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sift/internal/config"
)

// ErrStaleItem indicates an optimistic update lost the race: the persisted
// step_index no longer matches the in-memory item. The caller must reload
// before retrying; advancing on stale state could repeat a side effect.
var ErrStaleItem = errors.New("stale workflow item")

// Store manages workflow persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the workflow database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "sift.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewMessage inserts a new workflow item for an inbound message. Submitting
// the same message id again returns the existing item instead of a
// duplicate; the boolean reports whether a new item was created.
func (s *Store) NewMessage(ctx context.Context, messageID string) (*Item, bool, error) {
	if existing, err := s.GetByMessageID(ctx, messageID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	workflowID := uuid.NewString()

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO workflow_items (
            workflow_id, message_id, status, priority_score, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		workflowID,
		messageID,
		StatusReceived,
		PriorityUnscored,
		timestamp,
		timestamp,
	)
	if err != nil {
		// A concurrent Submit may have inserted the same message id between
		// the lookup and the insert; surface the existing row in that case.
		if existing, lookupErr := s.GetByMessageID(ctx, messageID); lookupErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// GetByID fetches a workflow item by row identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM workflow_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByWorkflowID fetches a workflow item by its stable workflow identifier.
func (s *Store) GetByWorkflowID(ctx context.Context, workflowID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM workflow_items WHERE workflow_id = ?`, workflowID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by workflow id: %w", err)
	}
	return item, nil
}

// GetByMessageID fetches a workflow item by source message identifier.
func (s *Store) GetByMessageID(ctx context.Context, messageID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM workflow_items WHERE message_id = ?`, messageID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by message id: %w", err)
	}
	return item, nil
}

// GetByNotificationRef fetches the workflow item correlated to a delivered
// approval prompt.
func (s *Store) GetByNotificationRef(ctx context.Context, ref string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM workflow_items WHERE notification_ref = ?`, ref)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by notification ref: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing workflow item. The write is guarded
// by the item's step index: if another writer advanced the row first the
// update is rejected with ErrStaleItem. On success the item's StepIndex is
// bumped to match the stored checkpoint.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	expected := item.StepIndex
	item.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE workflow_items
         SET sender = ?, subject = ?, body_excerpt = ?, classification = ?,
             proposed_folder = ?, reasoning = ?, reply_draft = ?, priority_score = ?, status = ?,
             notification_ref = ?, decision = ?, decision_folder = ?, decision_actor = ?,
             batch_id = ?, step_index = ?, error_message = ?, needs_review = ?,
             review_reason = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND step_index = ?`,
		nullableString(item.Sender),
		nullableString(item.Subject),
		nullableString(item.BodyExcerpt),
		string(item.Classification),
		nullableString(item.ProposedFolder),
		nullableString(item.Reasoning),
		nullableString(item.ReplyDraft),
		item.PriorityScore,
		item.Status,
		nullableString(item.NotificationRef),
		nullableString(string(item.Decision)),
		nullableString(item.DecisionFolder),
		nullableString(item.DecisionActor),
		nullableInt64(item.BatchID),
		expected+1,
		nullableString(item.ErrorMessage),
		boolToInt(item.NeedsReview),
		nullableString(item.ReviewReason),
		nullableTime(item.LastHeartbeat),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: workflow %s at step %d", ErrStaleItem, item.WorkflowID, expected)
	}
	item.StepIndex = expected + 1
	return nil
}

// List returns workflow items filtered by status set (or all items when no
// status is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM workflow_items`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list workflow items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListNonTerminal returns every item still inside the active workflow,
// oldest first. Completed, failed, and quarantined items are excluded.
func (s *Store) ListNonTerminal(ctx context.Context) ([]*Item, error) {
	active := make([]Status, 0, len(allStatuses))
	for _, status := range allStatuses {
		if !IsTerminalStatus(status) {
			active = append(active, status)
		}
	}
	return s.List(ctx, active...)
}

// NextForStatuses returns the oldest item matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + itemColumns + ` FROM workflow_items WHERE status IN (` + placeholders + `) ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM workflow_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("workflow stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health summarizes queue composition for status surfaces.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	summary := HealthSummary{}
	for status, count := range stats {
		summary.Total += count
		switch status {
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		case StatusReview:
			summary.Review += count
		case StatusAwaitingApproval:
			summary.AwaitingApproval += count
		case StatusBatched:
			summary.Batched += count
		default:
			summary.Active += count
		}
	}
	return summary, nil
}
