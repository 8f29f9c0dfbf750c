package classify_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sift/internal/classify"
	"sift/internal/llm"
	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/testsupport"
)

type fakeModel struct {
	triage llm.Triage
	err    error
	calls  int
}

func (f *fakeModel) ClassifyMessage(ctx context.Context, msg llm.Message) (llm.Triage, error) {
	f.calls++
	if f.err != nil {
		return llm.Triage{}, f.err
	}
	return f.triage, nil
}

func (f *fakeModel) HealthCheck(context.Context) error { return nil }

func newItem() *queue.Item {
	return &queue.Item{
		MessageID:      "msg-1",
		Sender:         "sender@example.com",
		Subject:        "Subject",
		BodyExcerpt:    "Body",
		Classification: queue.ClassUnclassified,
		Status:         queue.StatusClassifying,
	}
}

func TestClassifierRecordsVerdict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	model := &fakeModel{triage: llm.Triage{
		Classification: "needs_reply",
		Folder:         "Inbox",
		Reasoning:      "colleague asked a direct question",
		ReplyDraft:     "Thanks, I will take a look today.",
		Confidence:     0.9,
	}}
	handler := classify.NewClassifierWithModel(cfg, logging.NewNop(), model)

	item := newItem()
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if item.Classification != queue.ClassNeedsReply {
		t.Fatalf("expected needs_reply, got %s", item.Classification)
	}
	if item.ProposedFolder != "Inbox" || item.Status != queue.StatusClassified {
		t.Fatalf("unexpected item after classify: %#v", item)
	}
	if item.ReplyDraft == "" {
		t.Fatal("expected reply draft for needs_reply")
	}
}

func TestClassifierDropsReplyDraftForSortOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	model := &fakeModel{triage: llm.Triage{
		Classification: "sort_only",
		Folder:         "",
		Reasoning:      "newsletter",
		ReplyDraft:     "should never be kept",
	}}
	handler := classify.NewClassifierWithModel(cfg, logging.NewNop(), model)

	item := newItem()
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if item.ReplyDraft != "" {
		t.Fatalf("expected empty reply draft, got %q", item.ReplyDraft)
	}
	if item.ProposedFolder != "Archive" {
		t.Fatalf("expected fallback folder Archive, got %q", item.ProposedFolder)
	}
}

func TestClassifierFallsBackToUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	model := &fakeModel{triage: llm.Triage{Classification: "urgent-ish", Folder: ""}}
	handler := classify.NewClassifierWithModel(cfg, logging.NewNop(), model)

	item := newItem()
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if item.Classification != queue.ClassUnknown {
		t.Fatalf("expected unknown classification, got %s", item.Classification)
	}
	if item.ProposedFolder != "Inbox" {
		t.Fatalf("expected Inbox fallback, got %q", item.ProposedFolder)
	}
}

func TestClassifierSkipsModelOnRerun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	model := &fakeModel{}
	handler := classify.NewClassifierWithModel(cfg, logging.NewNop(), model)

	item := newItem()
	item.Classification = queue.ClassSpam
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if model.calls != 0 {
		t.Fatalf("expected no model call on re-run, got %d", model.calls)
	}
	if item.Status != queue.StatusClassified {
		t.Fatalf("expected classified status, got %s", item.Status)
	}
}

func TestClassifierErrorTaxonomy(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	transient := classify.NewClassifierWithModel(cfg, logging.NewNop(), &fakeModel{err: errors.New("http 503")})
	err := transient.Execute(context.Background(), newItem())
	if err == nil || !services.IsRetryable(err) {
		t.Fatalf("expected retryable error for transport failure, got %v", err)
	}

	malformed := classify.NewClassifierWithModel(cfg, logging.NewNop(), &fakeModel{
		err: fmt.Errorf("llm classify: parse payload: %w", llm.ErrMalformedResponse),
	})
	err = malformed.Execute(context.Background(), newItem())
	if err == nil || services.IsRetryable(err) {
		t.Fatalf("expected fatal error for malformed output, got %v", err)
	}
}
