package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/stage"
	"sift/internal/testsupport"
	"sift/internal/workflow"
)

type stubHandler struct {
	name string

	mu      sync.Mutex
	calls   int
	execute func(call int, item *queue.Item) error
}

func (s *stubHandler) Prepare(ctx context.Context, item *queue.Item) error { return nil }

func (s *stubHandler) Execute(ctx context.Context, item *queue.Item) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if s.execute == nil {
		return nil
	}
	return s.execute(call, item)
}

func (s *stubHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func (s *stubHandler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	errors []string
}

func (r *recordingNotifier) SendApprovalPrompt(ctx context.Context, item *queue.Item) (string, error) {
	return "local:test", nil
}

func (r *recordingNotifier) SendBatchSummary(ctx context.Context, items []*queue.Item) (string, error) {
	return "local:batch", nil
}

func (r *recordingNotifier) NotifyError(ctx context.Context, err error, contextLabel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, contextLabel)
	return nil
}

func (r *recordingNotifier) TestNotification(ctx context.Context) error { return nil }

func (r *recordingNotifier) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func statusOf(t *testing.T, store *queue.Store, id int64) queue.Status {
	t.Helper()
	item, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get item %d: %v", id, err)
	}
	return item.Status
}

func TestManagerAdvancesItemThroughBothLanes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(workflow.StageSet{
		Extractor: &stubHandler{name: "extract", execute: func(_ int, item *queue.Item) error {
			item.Sender = "sender@example.com"
			item.Subject = "hello"
			return nil
		}},
		Classifier: &stubHandler{name: "classify", execute: func(_ int, item *queue.Item) error {
			item.Classification = queue.ClassSortOnly
			item.ProposedFolder = "Receipts"
			return nil
		}},
		Scorer: &stubHandler{name: "score", execute: func(_ int, item *queue.Item) error {
			item.PriorityScore = 80
			return nil
		}},
		Router: &stubHandler{name: "notify", execute: func(_ int, item *queue.Item) error {
			item.NotificationRef = "local:prompt"
			item.Status = queue.StatusAwaitingApproval
			return nil
		}},
		Executor: &stubHandler{name: "execute"},
	})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop()

	item := testsupport.SeedMessage(t, store, "msg-lane-1")

	testsupport.WaitFor(t, 15*time.Second, func() bool {
		return statusOf(t, store, item.ID) == queue.StatusAwaitingApproval
	})

	// Record a decision the way the approval gate would and let the
	// dispatch lane pick it up.
	current, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	current.Decision = queue.DecisionApprove
	current.DecisionActor = "tester"
	current.Status = queue.StatusApproved
	if err := store.Update(context.Background(), current); err != nil {
		t.Fatalf("record decision: %v", err)
	}

	testsupport.WaitFor(t, 15*time.Second, func() bool {
		return statusOf(t, store, item.ID) == queue.StatusCompleted
	})
	if got := notifier.errorCount(); got != 0 {
		t.Fatalf("expected no error notifications, got %d", got)
	}
}

func TestManagerLaneWorkersRunConcurrently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.WorkersPerLane = 2
	store := testsupport.MustOpenStore(t, cfg)

	release := make(chan struct{})
	extractor := &stubHandler{name: "extract", execute: func(_ int, item *queue.Item) error {
		if item.MessageID == "msg-slow" {
			<-release
		}
		return nil
	}}

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Extractor: extractor})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop()

	slow := testsupport.SeedMessage(t, store, "msg-slow")
	fast := testsupport.SeedMessage(t, store, "msg-fast")

	// The fast item must not wait behind the blocked one.
	testsupport.WaitFor(t, 15*time.Second, func() bool {
		return statusOf(t, store, fast.ID) == queue.StatusContextExtracted &&
			statusOf(t, store, slow.ID) == queue.StatusExtracting
	})

	close(release)
	testsupport.WaitFor(t, 15*time.Second, func() bool {
		return statusOf(t, store, slow.ID) == queue.StatusContextExtracted
	})
}

func TestManagerRetriesTransientStageFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetryAttempts = 3
	cfg.Workflow.RetryBaseSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)

	extractor := &stubHandler{name: "extract", execute: func(call int, item *queue.Item) error {
		if call == 1 {
			return services.Wrap(services.ErrTransient, "extract", "fetch message", "provider hiccup", nil)
		}
		item.Sender = "sender@example.com"
		return nil
	}}

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Extractor: extractor})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop()

	item := testsupport.SeedMessage(t, store, "msg-retry-1")

	testsupport.WaitFor(t, 15*time.Second, func() bool {
		return statusOf(t, store, item.ID) == queue.StatusContextExtracted
	})
	if got := extractor.callCount(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestManagerFailsItemOnFatalError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}

	extractor := &stubHandler{name: "extract", execute: func(call int, item *queue.Item) error {
		return services.Wrap(services.ErrValidation, "extract", "parse headers", "sender header missing", nil)
	}}

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(workflow.StageSet{Extractor: extractor})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop()

	item := testsupport.SeedMessage(t, store, "msg-fatal-1")

	testsupport.WaitFor(t, 15*time.Second, func() bool {
		return statusOf(t, store, item.ID) == queue.StatusFailed
	})

	failed, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if failed.ErrorMessage == "" {
		t.Fatal("expected persisted failure message")
	}
	if got := extractor.callCount(); got != 1 {
		t.Fatalf("fatal error must not retry, got %d attempts", got)
	}
	if notifier.errorCount() != 1 {
		t.Fatalf("expected one error notification, got %d", notifier.errorCount())
	}
}

func TestResumeRollsBackAndQuarantines(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// A crash mid-classify left this item in a processing status, and its
	// persisted row is missing the context the earlier checkpoint should
	// have recorded.
	broken := testsupport.SeedMessage(t, store, "msg-broken-1")
	broken.Status = queue.StatusClassifying
	if err := store.Update(ctx, broken); err != nil {
		t.Fatalf("stage broken item: %v", err)
	}

	healthy := testsupport.SeedMessage(t, store, "msg-healthy-1")

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Extractor: &stubHandler{name: "extract"}})

	if err := mgr.Resume(ctx); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	got, err := store.GetByID(ctx, broken.ID)
	if err != nil {
		t.Fatalf("get broken item: %v", err)
	}
	if got.Status != queue.StatusReview {
		t.Fatalf("expected quarantine, got %s", got.Status)
	}
	if got.ReviewReason == "" {
		t.Fatal("expected a recorded quarantine reason")
	}

	if status := statusOf(t, store, healthy.ID); status != queue.StatusReceived {
		t.Fatalf("healthy item must stay runnable, got %s", status)
	}
}
