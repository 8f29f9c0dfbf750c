package api

import (
	"slices"

	"sift/internal/queue"
	"sift/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}

	dto := QueueItem{
		ID:              item.ID,
		WorkflowID:      item.WorkflowID,
		MessageID:       item.MessageID,
		Sender:          item.Sender,
		Subject:         item.Subject,
		Classification:  string(item.Classification),
		ProposedFolder:  item.ProposedFolder,
		Reasoning:       item.Reasoning,
		PriorityScore:   item.PriorityScore,
		Status:          string(item.Status),
		NotificationRef: item.NotificationRef,
		Decision:        string(item.Decision),
		DecisionFolder:  item.DecisionFolder,
		DecisionActor:   item.DecisionActor,
		BatchID:         item.BatchID,
		ErrorMessage:    item.ErrorMessage,
		NeedsReview:     item.NeedsReview,
		ReviewReason:    item.ReviewReason,
	}
	if !item.CreatedAt.IsZero() {
		dto.CreatedAt = item.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !item.UpdatedAt.IsZero() {
		dto.UpdatedAt = item.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromQueueItems converts a slice of queue records.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromStatusSummary converts workflow diagnostics to the API shape.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		LastError:   summary.LastError,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		StageHealth: StageHealthSlice(summary),
	}
	if summary.LastItem != nil {
		item := FromQueueItem(summary.LastItem)
		status.LastItem = &item
	}
	return status
}

// MergeQueueStats normalizes queue stats onto string keys with every status
// present, so consumers render zero counts without special-casing.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	merged := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		merged[string(status)] = 0
	}
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

// StageHealthSlice flattens the stage health map into a deterministic order.
func StageHealthSlice(summary workflow.StatusSummary) []StageHealth {
	if len(summary.StageHealth) == 0 {
		return nil
	}
	names := make([]string, 0, len(summary.StageHealth))
	for name := range summary.StageHealth {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		health := summary.StageHealth[name]
		out = append(out, StageHealth{Name: health.Name, Ready: health.Ready, Detail: health.Detail})
	}
	return out
}
