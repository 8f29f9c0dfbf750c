package testsupport

import (
	"context"
	"testing"
	"time"

	"sift/internal/config"
	"sift/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

// SeedMessage inserts a fresh workflow item for tests and fails on conflict.
func SeedMessage(t testing.TB, store *queue.Store, messageID string) *queue.Item {
	t.Helper()

	item, created, err := store.NewMessage(context.Background(), messageID)
	if err != nil {
		t.Fatalf("seed message %s: %v", messageID, err)
	}
	if !created {
		t.Fatalf("seed message %s: already present", messageID)
	}
	return item
}

// AdvanceToScored walks an item through the triage fields so tests can start
// from a routed state without running the real stages.
func AdvanceToScored(t testing.TB, store *queue.Store, item *queue.Item, score int) {
	t.Helper()

	item.Sender = "sender@example.com"
	item.Subject = "Test message"
	item.BodyExcerpt = "Body excerpt"
	item.Classification = queue.ClassSortOnly
	item.ProposedFolder = "Receipts"
	item.Reasoning = "test fixture"
	item.PriorityScore = score
	item.Status = queue.StatusScored
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("advance item %d to scored: %v", item.ID, err)
	}
}

// WaitFor polls until the condition reports true or the deadline passes.
func WaitFor(t testing.TB, timeout time.Duration, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
