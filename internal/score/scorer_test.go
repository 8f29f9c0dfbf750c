package score_test

import (
	"context"
	"testing"

	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/score"
	"sift/internal/testsupport"
)

func TestScorerDeterministicRules(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Triage.VIPSenders = []string{"boss@example.com"}
	cfg.Triage.UrgentKeywords = []string{"urgent", "asap"}
	handler := score.NewScorer(cfg, logging.NewNop())

	cases := []struct {
		name           string
		classification queue.Classification
		sender         string
		subject        string
		want           int
	}{
		{"needs_reply base", queue.ClassNeedsReply, "someone@example.com", "Hello", 70},
		{"sort_only base", queue.ClassSortOnly, "news@example.com", "Digest", 30},
		{"spam base", queue.ClassSpam, "junk@example.com", "WIN NOW", 5},
		{"unknown base", queue.ClassUnknown, "odd@example.com", "Hmm", 60},
		{"vip boost", queue.ClassSortOnly, "Boss <boss@example.com>", "FYI", 55},
		{"urgent boost", queue.ClassSortOnly, "news@example.com", "URGENT: renewal", 45},
		{"vip and urgent capped", queue.ClassNeedsReply, "boss@example.com", "Need this ASAP", 100},
	}
	for _, tc := range cases {
		item := &queue.Item{
			Classification: tc.classification,
			Sender:         tc.sender,
			Subject:        tc.subject,
			Status:         queue.StatusScoring,
		}
		if err := handler.Execute(context.Background(), item); err != nil {
			t.Fatalf("%s: Execute failed: %v", tc.name, err)
		}
		if item.PriorityScore != tc.want {
			t.Errorf("%s: expected score %d, got %d", tc.name, tc.want, item.PriorityScore)
		}
		if item.Status != queue.StatusScored {
			t.Errorf("%s: expected scored status, got %s", tc.name, item.Status)
		}
	}
}

func TestScorerIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := score.NewScorer(cfg, logging.NewNop())

	item := &queue.Item{
		Classification: queue.ClassNeedsReply,
		Sender:         "someone@example.com",
		Status:         queue.StatusScoring,
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	first := item.PriorityScore
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("re-run failed: %v", err)
	}
	if item.PriorityScore != first {
		t.Fatalf("expected stable score, got %d then %d", first, item.PriorityScore)
	}
}
