package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sift/internal/extract"
	"sift/internal/logging"
	"sift/internal/mail"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/testsupport"
)

type fakeMail struct {
	envelope mail.Envelope
	err      error
	fetches  int
}

func (f *fakeMail) FetchMessage(ctx context.Context, messageID string) (mail.Envelope, error) {
	f.fetches++
	if f.err != nil {
		return mail.Envelope{}, f.err
	}
	env := f.envelope
	env.MessageID = messageID
	return env, nil
}

func (f *fakeMail) ApplyLabel(context.Context, string, string) error { return nil }

func (f *fakeMail) SendMessage(context.Context, mail.Outbound) (string, error) { return "", nil }

func (f *fakeMail) HealthCheck(context.Context) error { return nil }

func TestExtractorPopulatesContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Triage.BodyExcerptChars = 20
	client := &fakeMail{envelope: mail.Envelope{
		Sender:  "sender@example.com",
		Subject: "Hello",
		Body:    "line one\n\nline two with  extra   spaces and a long tail",
	}}
	handler := extract.NewExtractor(cfg, logging.NewNop(), client)

	item := &queue.Item{MessageID: "msg-1", Status: queue.StatusExtracting}
	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if item.Status != queue.StatusContextExtracted {
		t.Fatalf("expected context_extracted, got %s", item.Status)
	}
	if item.Sender != "sender@example.com" || item.Subject != "Hello" {
		t.Fatalf("unexpected extracted context: %#v", item)
	}
	if strings.Contains(item.BodyExcerpt, "\n") {
		t.Fatalf("expected collapsed excerpt, got %q", item.BodyExcerpt)
	}
	if got := len([]rune(item.BodyExcerpt)); got > 20 {
		t.Fatalf("expected excerpt capped at 20 runes, got %d", got)
	}
}

func TestExtractorSkipsFetchOnRerun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &fakeMail{}
	handler := extract.NewExtractor(cfg, logging.NewNop(), client)

	item := &queue.Item{
		MessageID: "msg-2",
		Sender:    "already@example.com",
		Subject:   "Done before",
		Status:    queue.StatusExtracting,
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if client.fetches != 0 {
		t.Fatalf("expected no fetch on re-run, got %d", client.fetches)
	}
	if item.Status != queue.StatusContextExtracted {
		t.Fatalf("expected context_extracted, got %s", item.Status)
	}
}

func TestExtractorWrapsFetchFailuresAsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &fakeMail{err: errors.New("connection reset")}
	handler := extract.NewExtractor(cfg, logging.NewNop(), client)

	item := &queue.Item{MessageID: "msg-3", Status: queue.StatusExtracting}
	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error from failing mail client")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestExtractorRequiresMailClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := extract.NewExtractor(cfg, logging.NewNop(), nil)

	item := &queue.Item{MessageID: "msg-4", Status: queue.StatusExtracting}
	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected configuration error without mail client")
	}
	if services.IsRetryable(err) {
		t.Fatalf("expected fatal error, got retryable: %v", err)
	}

	health := handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy stage without mail client")
	}
}
