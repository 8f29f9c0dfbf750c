package score

import (
	"context"
	"log/slog"
	"strings"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/stage"
)

// Base scores per classification. Boosts push VIP and urgent mail over the
// routing threshold; spam stays near the floor regardless.
const (
	baseNeedsReply = 70
	baseUnknown    = 60
	baseSortOnly   = 30
	baseSpam       = 5

	vipBoost    = 25
	urgentBoost = 15
)

// Scorer assigns a deterministic priority score from the classified context.
type Scorer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewScorer constructs the detect-priority stage handler.
func NewScorer(cfg *config.Config, logger *slog.Logger) *Scorer {
	return &Scorer{cfg: cfg, logger: logging.NewComponentLogger(logger, "score")}
}

func (s *Scorer) Prepare(ctx context.Context, item *queue.Item) error {
	item.ErrorMessage = ""
	return nil
}

func (s *Scorer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	score := baseScore(item.Classification)
	vip := s.isVIP(item.Sender)
	urgent := s.hasUrgentKeyword(item.Subject, item.BodyExcerpt)
	if vip {
		score += vipBoost
	}
	if urgent {
		score += urgentBoost
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	item.PriorityScore = score
	item.Status = queue.StatusScored

	logger.Info(
		"priority scored",
		logging.Int("score", score),
		logging.Bool("vip", vip),
		logging.Bool("urgent", urgent),
		logging.String("classification", string(item.Classification)),
	)
	return nil
}

func (s *Scorer) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("score")
}

func baseScore(classification queue.Classification) int {
	switch classification {
	case queue.ClassNeedsReply:
		return baseNeedsReply
	case queue.ClassSpam:
		return baseSpam
	case queue.ClassSortOnly:
		return baseSortOnly
	default:
		return baseUnknown
	}
}

// isVIP matches the configured VIP senders against the From header, which
// may carry a display name around the address.
func (s *Scorer) isVIP(sender string) bool {
	if s.cfg == nil {
		return false
	}
	normalized := strings.ToLower(sender)
	for _, vip := range s.cfg.Triage.VIPSenders {
		vip = strings.ToLower(strings.TrimSpace(vip))
		if vip != "" && strings.Contains(normalized, vip) {
			return true
		}
	}
	return false
}

func (s *Scorer) hasUrgentKeyword(subject, body string) bool {
	if s.cfg == nil {
		return false
	}
	haystack := strings.ToLower(subject + " " + body)
	for _, keyword := range s.cfg.Triage.UrgentKeywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" && strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}
