package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sift/internal/queue"
	"sift/internal/testsupport"
)

func TestNewMessageIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, created, err := store.NewMessage(ctx, "msg-1")
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	if !created {
		t.Fatal("expected first submit to create an item")
	}
	if item.WorkflowID == "" {
		t.Fatal("expected workflow id to be assigned")
	}
	if item.Status != queue.StatusReceived {
		t.Fatalf("expected received status, got %s", item.Status)
	}
	if item.PriorityScore != queue.PriorityUnscored {
		t.Fatalf("expected unscored priority, got %d", item.PriorityScore)
	}

	again, created, err := store.NewMessage(ctx, "msg-1")
	if err != nil {
		t.Fatalf("second NewMessage failed: %v", err)
	}
	if created {
		t.Fatal("expected duplicate submit to return existing item")
	}
	if again.ID != item.ID || again.WorkflowID != item.WorkflowID {
		t.Fatalf("expected same item back, got %#v", again)
	}
}

func TestUpdateRejectsStaleItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.SeedMessage(t, store, "msg-stale")

	stale, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	item.Status = queue.StatusExtracting
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if item.StepIndex != stale.StepIndex+1 {
		t.Fatalf("expected step index bump, got %d", item.StepIndex)
	}

	stale.Status = queue.StatusExtracting
	err = store.Update(ctx, stale)
	if !errors.Is(err, queue.ErrStaleItem) {
		t.Fatalf("expected ErrStaleItem, got %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID after conflict failed: %v", err)
	}
	if fetched.Status != queue.StatusExtracting {
		t.Fatalf("expected winner's status to persist, got %s", fetched.Status)
	}
	if fetched.StepIndex != item.StepIndex {
		t.Fatalf("expected step index %d, got %d", item.StepIndex, fetched.StepIndex)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		decision      queue.Decision
		expected      queue.Status
	}{
		{"extracting", queue.StatusExtracting, queue.DecisionNone, queue.StatusReceived},
		{"classifying", queue.StatusClassifying, queue.DecisionNone, queue.StatusContextExtracted},
		{"scoring", queue.StatusScoring, queue.DecisionNone, queue.StatusClassified},
		{"notifying", queue.StatusNotifying, queue.DecisionNone, queue.StatusScored},
		{"executing_approved", queue.StatusExecuting, queue.DecisionApprove, queue.StatusApproved},
		{"executing_rejected", queue.StatusExecuting, queue.DecisionReject, queue.StatusRejected},
	}
	var ids []int64
	for i, tc := range cases {
		item := testsupport.SeedMessage(t, store, fmt.Sprintf("msg-reset-%d", i))
		item.Status = tc.initialStatus
		item.Decision = tc.decision
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, item.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if count != int64(len(cases)) {
		t.Fatalf("expected %d items reset, got %d", len(cases), count)
	}

	for i, tc := range cases {
		fetched, err := store.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if fetched.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, fetched.Status)
		}
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var ids []int64
	for i := 0; i < 2; i++ {
		item := testsupport.SeedMessage(t, store, fmt.Sprintf("msg-heartbeat-%d", i))
		item.Status = queue.StatusClassifying
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if err := store.UpdateHeartbeat(ctx, item.ID); err != nil {
			t.Fatalf("UpdateHeartbeat failed: %v", err)
		}
		ids = append(ids, item.ID)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-time.Hour), queue.StatusClassifying)
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no reclaims with past cutoff, got %d", count)
	}

	count, err = store.ReclaimStaleProcessing(ctx, time.Now().Add(time.Hour), queue.StatusClassifying)
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 reclaims, got %d", count)
	}

	for _, id := range ids {
		fetched, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if fetched.Status != queue.StatusContextExtracted {
			t.Fatalf("expected rollback to context_extracted, got %s", fetched.Status)
		}
		if fetched.LastHeartbeat != nil {
			t.Fatal("expected heartbeat cleared after reclaim")
		}
	}
}

func TestCommitDecisionAppendsAuditRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.SeedMessage(t, store, "msg-decision")
	testsupport.AdvanceToScored(t, store, item, 80)
	item.Status = queue.StatusAwaitingApproval
	item.NotificationRef = "tg:100"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	item.Status = queue.StatusApproved
	item.Decision = queue.DecisionApprove
	item.DecisionActor = "alice"
	rec := queue.ApprovalRecord{
		WorkflowID:     item.WorkflowID,
		Decision:       queue.DecisionApprove,
		Actor:          "alice",
		PreviousFolder: item.ProposedFolder,
		NewFolder:      item.ProposedFolder,
		DecidedAt:      time.Now().UTC(),
	}
	if err := store.CommitDecision(ctx, item, rec); err != nil {
		t.Fatalf("CommitDecision failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusApproved || fetched.Decision != queue.DecisionApprove {
		t.Fatalf("unexpected decided item: %#v", fetched)
	}

	records, err := store.ApprovalsForWorkflow(ctx, item.WorkflowID)
	if err != nil {
		t.Fatalf("ApprovalsForWorkflow failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(records))
	}
	if records[0].Decision != queue.DecisionApprove || records[0].Actor != "alice" {
		t.Fatalf("unexpected audit row: %#v", records[0])
	}
}

func TestCommitDecisionAbortsOnStaleItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.SeedMessage(t, store, "msg-decision-stale")
	testsupport.AdvanceToScored(t, store, item, 80)
	item.Status = queue.StatusAwaitingApproval
	item.NotificationRef = "tg:101"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stale, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	item.Status = queue.StatusApproved
	item.Decision = queue.DecisionApprove
	if err := store.CommitDecision(ctx, item, queue.ApprovalRecord{
		WorkflowID: item.WorkflowID,
		Decision:   queue.DecisionApprove,
		DecidedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CommitDecision failed: %v", err)
	}

	stale.Status = queue.StatusRejected
	stale.Decision = queue.DecisionReject
	err = store.CommitDecision(ctx, stale, queue.ApprovalRecord{
		WorkflowID: stale.WorkflowID,
		Decision:   queue.DecisionReject,
		DecidedAt:  time.Now().UTC(),
	})
	if !errors.Is(err, queue.ErrStaleItem) {
		t.Fatalf("expected ErrStaleItem, got %v", err)
	}

	records, err := store.ApprovalsForWorkflow(ctx, item.WorkflowID)
	if err != nil {
		t.Fatalf("ApprovalsForWorkflow failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected stale commit to leave no audit row, got %d rows", len(records))
	}
}

func TestBatchLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	batch, err := store.OpenBatch(ctx)
	if err != nil {
		t.Fatalf("OpenBatch failed: %v", err)
	}
	if batch.ID == 0 || batch.ClosedAt != nil {
		t.Fatalf("unexpected new batch: %#v", batch)
	}

	same, err := store.OpenBatch(ctx)
	if err != nil {
		t.Fatalf("second OpenBatch failed: %v", err)
	}
	if same.ID != batch.ID {
		t.Fatalf("expected existing open batch %d, got %d", batch.ID, same.ID)
	}

	var members []int64
	for i := 0; i < 3; i++ {
		item := testsupport.SeedMessage(t, store, fmt.Sprintf("msg-batch-%d", i))
		testsupport.AdvanceToScored(t, store, item, 20)
		item.Status = queue.StatusBatched
		item.BatchID = batch.ID
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		members = append(members, item.ID)
	}

	got, err := store.BatchMembers(ctx, batch.ID)
	if err != nil {
		t.Fatalf("BatchMembers failed: %v", err)
	}
	if len(got) != len(members) {
		t.Fatalf("expected %d members, got %d", len(members), len(got))
	}

	if err := store.CloseBatch(ctx, batch.ID, "tg:batch-1"); err != nil {
		t.Fatalf("CloseBatch failed: %v", err)
	}
	if err := store.CloseBatch(ctx, batch.ID, "tg:batch-1"); err == nil {
		t.Fatal("expected error closing an already closed batch")
	}

	closed, err := store.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if closed.ClosedAt == nil || closed.NotificationRef != "tg:batch-1" {
		t.Fatalf("unexpected closed batch: %#v", closed)
	}

	next, err := store.OpenBatch(ctx)
	if err != nil {
		t.Fatalf("OpenBatch after close failed: %v", err)
	}
	if next.ID == batch.ID {
		t.Fatal("expected a fresh batch after close")
	}
}

func TestQuarantineBypassesStepGuard(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.SeedMessage(t, store, "msg-quarantine")
	item.Status = queue.StatusExtracting
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := store.Quarantine(ctx, item.ID, "checkpoint invariant violated"); err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusReview || !fetched.NeedsReview {
		t.Fatalf("expected quarantined item, got %#v", fetched)
	}
	if fetched.ReviewReason != "checkpoint invariant violated" {
		t.Fatalf("unexpected review reason: %q", fetched.ReviewReason)
	}

	// The in-memory copy is now stale; its writes must lose.
	item.Status = queue.StatusContextExtracted
	if err := store.Update(ctx, item); !errors.Is(err, queue.ErrStaleItem) {
		t.Fatalf("expected ErrStaleItem after quarantine, got %v", err)
	}
}

func TestListNonTerminalExcludesFinishedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusReceived,
		queue.StatusAwaitingApproval,
		queue.StatusBatched,
		queue.StatusCompleted,
		queue.StatusFailed,
		queue.StatusReview,
	}
	for i, status := range statuses {
		item := testsupport.SeedMessage(t, store, fmt.Sprintf("msg-list-%d", i))
		if status == queue.StatusReceived {
			continue
		}
		testsupport.AdvanceToScored(t, store, item, 50)
		item.Status = status
		switch status {
		case queue.StatusAwaitingApproval:
			item.NotificationRef = "tg:list"
		case queue.StatusBatched:
			batch, err := store.OpenBatch(ctx)
			if err != nil {
				t.Fatalf("OpenBatch failed: %v", err)
			}
			item.BatchID = batch.ID
		}
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	active, err := store.ListNonTerminal(ctx)
	if err != nil {
		t.Fatalf("ListNonTerminal failed: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected 3 active items, got %d", len(active))
	}
	for _, item := range active {
		if item.IsTerminal() {
			t.Fatalf("terminal item leaked into active set: %#v", item)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != len(statuses) || health.Completed != 1 || health.Failed != 1 || health.Review != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestRetryFailedResetsToReceived(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.SeedMessage(t, store, "msg-retry")
	item.SetFailed("stage blew up")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.RetryFailed(ctx, item.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 retried item, got %d", count)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusReceived || fetched.ErrorMessage != "" {
		t.Fatalf("expected clean received item, got %#v", fetched)
	}
}
