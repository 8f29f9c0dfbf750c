package notify_test

import (
	"context"
	"errors"
	"testing"

	"sift/internal/logging"
	"sift/internal/notify"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/testsupport"
)

type fakeNotifier struct {
	ref     string
	err     error
	prompts int
}

func (f *fakeNotifier) SendApprovalPrompt(ctx context.Context, item *queue.Item) (string, error) {
	f.prompts++
	if f.err != nil {
		return "", f.err
	}
	return f.ref, nil
}

func (f *fakeNotifier) SendBatchSummary(ctx context.Context, items []*queue.Item) (string, error) {
	return f.ref, nil
}

func (f *fakeNotifier) NotifyError(context.Context, error, string) error { return nil }

func (f *fakeNotifier) TestNotification(context.Context) error { return nil }

func TestRouterSendsImmediatePromptAboveThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPriorityThreshold(70))
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &fakeNotifier{ref: "tg:1"}
	handler := notify.NewRouter(cfg, store, logging.NewNop(), notifier)

	item := testsupport.SeedMessage(t, store, "msg-high")
	testsupport.AdvanceToScored(t, store, item, 85)
	item.Status = queue.StatusNotifying

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if item.Status != queue.StatusAwaitingApproval || item.NotificationRef != "tg:1" {
		t.Fatalf("unexpected routed item: %#v", item)
	}
	if item.BatchID != 0 {
		t.Fatalf("high priority item must not join a batch, got batch %d", item.BatchID)
	}
}

func TestRouterBatchesBelowThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPriorityThreshold(70))
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &fakeNotifier{ref: "tg:2"}
	handler := notify.NewRouter(cfg, store, logging.NewNop(), notifier)

	item := testsupport.SeedMessage(t, store, "msg-low")
	testsupport.AdvanceToScored(t, store, item, 20)
	item.Status = queue.StatusNotifying

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if item.Status != queue.StatusBatched || item.BatchID == 0 {
		t.Fatalf("expected batched item, got %#v", item)
	}
	if notifier.prompts != 0 {
		t.Fatalf("low priority item must not prompt immediately, got %d prompts", notifier.prompts)
	}

	// A second low item lands in the same open window.
	second := testsupport.SeedMessage(t, store, "msg-low-2")
	testsupport.AdvanceToScored(t, store, second, 10)
	second.Status = queue.StatusNotifying
	if err := handler.Execute(context.Background(), second); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if second.BatchID != item.BatchID {
		t.Fatalf("expected shared batch %d, got %d", item.BatchID, second.BatchID)
	}
}

func TestRouterThresholdBoundary(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPriorityThreshold(70))
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &fakeNotifier{ref: "tg:3"}
	handler := notify.NewRouter(cfg, store, logging.NewNop(), notifier)

	item := testsupport.SeedMessage(t, store, "msg-boundary")
	testsupport.AdvanceToScored(t, store, item, 70)
	item.Status = queue.StatusNotifying

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if item.Status != queue.StatusAwaitingApproval {
		t.Fatalf("score equal to threshold must bypass batching, got %s", item.Status)
	}
}

func TestRouterDoesNotResendPromptOnRerun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &fakeNotifier{ref: "tg:4"}
	handler := notify.NewRouter(cfg, store, logging.NewNop(), notifier)

	item := testsupport.SeedMessage(t, store, "msg-rerun")
	testsupport.AdvanceToScored(t, store, item, 90)
	item.Status = queue.StatusNotifying
	item.NotificationRef = "tg:already"

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if notifier.prompts != 0 {
		t.Fatalf("expected no duplicate prompt, got %d", notifier.prompts)
	}
	if item.NotificationRef != "tg:already" || item.Status != queue.StatusAwaitingApproval {
		t.Fatalf("unexpected item after re-run: %#v", item)
	}
}

func TestRouterWrapsDeliveryFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	handler := notify.NewRouter(cfg, store, logging.NewNop(), notifier)

	item := testsupport.SeedMessage(t, store, "msg-fail")
	testsupport.AdvanceToScored(t, store, item, 90)
	item.Status = queue.StatusNotifying

	err := handler.Execute(context.Background(), item)
	if err == nil || !services.IsRetryable(err) {
		t.Fatalf("expected retryable delivery error, got %v", err)
	}
}
