package api_test

import (
	"testing"
	"time"

	"sift/internal/api"
	"sift/internal/queue"
	"sift/internal/stage"
	"sift/internal/workflow"
)

func TestFromQueueItem(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	item := &queue.Item{
		ID:             7,
		WorkflowID:     "wf-7",
		MessageID:      "msg-7",
		Sender:         "sender@example.com",
		Subject:        "Invoice",
		Classification: queue.ClassSortOnly,
		ProposedFolder: "Receipts",
		PriorityScore:  35,
		Status:         queue.StatusBatched,
		BatchID:        3,
		CreatedAt:      created,
		UpdatedAt:      created,
	}

	dto := api.FromQueueItem(item)
	if dto.WorkflowID != "wf-7" || dto.Status != "batched" || dto.BatchID != 3 {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.Classification != "sort_only" {
		t.Fatalf("classification = %q", dto.Classification)
	}
	if dto.CreatedAt != "2026-03-14T09:26:53.000Z" {
		t.Fatalf("createdAt = %q", dto.CreatedAt)
	}
}

func TestMergeQueueStatsIncludesAllStatuses(t *testing.T) {
	merged := api.MergeQueueStats(map[queue.Status]int{queue.StatusReceived: 2})
	if merged["received"] != 2 {
		t.Fatalf("received = %d", merged["received"])
	}
	if _, ok := merged["awaiting_approval"]; !ok {
		t.Fatal("expected zero entry for awaiting_approval")
	}
}

func TestStageHealthSliceIsSorted(t *testing.T) {
	summary := workflow.StatusSummary{StageHealth: map[string]stage.Health{
		"notify":   stage.Healthy("notify"),
		"classify": stage.Unhealthy("classify", "model unreachable"),
	}}
	health := api.StageHealthSlice(summary)
	if len(health) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(health))
	}
	if health[0].Name != "classify" || health[0].Ready {
		t.Fatalf("unexpected first entry: %+v", health[0])
	}
	if health[1].Name != "notify" || !health[1].Ready {
		t.Fatalf("unexpected second entry: %+v", health[1])
	}
}
