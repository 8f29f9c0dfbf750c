package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, workflow_id, message_id, sender, subject, body_excerpt, classification, proposed_folder, reasoning, reply_draft, priority_score, status, notification_ref, decision, decision_folder, decision_actor, batch_id, step_index, error_message, needs_review, review_reason, last_heartbeat, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		workflowID       string
		messageID        string
		sender           sql.NullString
		subject          sql.NullString
		bodyExcerpt      sql.NullString
		classification   string
		proposedFolder   sql.NullString
		reasoning        sql.NullString
		replyDraft       sql.NullString
		priorityScore    int
		statusStr        string
		notificationRef  sql.NullString
		decision         sql.NullString
		decisionFolder   sql.NullString
		decisionActor    sql.NullString
		batchID          sql.NullInt64
		stepIndex        int64
		errorMessage     sql.NullString
		needsReview      sql.NullInt64
		reviewReason     sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&workflowID,
		&messageID,
		&sender,
		&subject,
		&bodyExcerpt,
		&classification,
		&proposedFolder,
		&reasoning,
		&replyDraft,
		&priorityScore,
		&statusStr,
		&notificationRef,
		&decision,
		&decisionFolder,
		&decisionActor,
		&batchID,
		&stepIndex,
		&errorMessage,
		&needsReview,
		&reviewReason,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		WorkflowID:      workflowID,
		MessageID:       messageID,
		Sender:          sender.String,
		Subject:         subject.String,
		BodyExcerpt:     bodyExcerpt.String,
		Classification:  Classification(classification),
		ProposedFolder:  proposedFolder.String,
		Reasoning:       reasoning.String,
		ReplyDraft:      replyDraft.String,
		PriorityScore:   priorityScore,
		Status:          Status(statusStr),
		NotificationRef: notificationRef.String,
		Decision:        Decision(decision.String),
		DecisionFolder:  decisionFolder.String,
		DecisionActor:   decisionActor.String,
		StepIndex:       stepIndex,
		ErrorMessage:    errorMessage.String,
		ReviewReason:    reviewReason.String,
	}
	if batchID.Valid {
		item.BatchID = batchID.Int64
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
