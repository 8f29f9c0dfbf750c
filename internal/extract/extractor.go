package extract

import (
	"context"
	"log/slog"
	"strings"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/mail"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/stage"
)

const defaultExcerptChars = 1200

// Extractor pulls sender, subject, and a body excerpt from the mailbox.
type Extractor struct {
	cfg    *config.Config
	logger *slog.Logger
	client mail.Client
}

// NewExtractor constructs the extract-context stage handler.
func NewExtractor(cfg *config.Config, logger *slog.Logger, client mail.Client) *Extractor {
	return &Extractor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "extract"),
		client: client,
	}
}

func (e *Extractor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	item.ErrorMessage = ""
	logger.Info("starting context extraction", logging.String(logging.FieldMessageID, item.MessageID))
	return nil
}

func (e *Extractor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)

	// A re-run after a crash already has its outputs; just advance.
	if strings.TrimSpace(item.Sender) != "" {
		item.Status = queue.StatusContextExtracted
		logger.Info("context already extracted")
		return nil
	}

	if e.client == nil {
		return services.Wrap(
			services.ErrConfiguration, "extract", "fetch message",
			"No mail client configured; enable gmail in the config or submit messages with inline context", nil)
	}

	env, err := e.client.FetchMessage(ctx, item.MessageID)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "extract", "fetch message",
			"Failed to fetch message from the mailbox", err)
	}
	if strings.TrimSpace(env.Sender) == "" {
		return services.Wrap(
			services.ErrValidation, "extract", "validate envelope",
			"Mailbox returned a message without a sender", nil)
	}

	item.Sender = strings.TrimSpace(env.Sender)
	item.Subject = strings.TrimSpace(env.Subject)
	item.BodyExcerpt = excerpt(env.Body, e.excerptLimit())
	item.Status = queue.StatusContextExtracted

	logger.Info(
		"context extracted",
		logging.String("sender", item.Sender),
		logging.Int("excerpt_chars", len(item.BodyExcerpt)),
	)
	return nil
}

func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	if e.client == nil {
		return stage.Unhealthy("extract", "mail client not configured")
	}
	if err := e.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("extract", err.Error())
	}
	return stage.Healthy("extract")
}

func (e *Extractor) excerptLimit() int {
	if e.cfg != nil && e.cfg.Triage.BodyExcerptChars > 0 {
		return e.cfg.Triage.BodyExcerptChars
	}
	return defaultExcerptChars
}

// excerpt collapses whitespace and truncates the body on a rune boundary.
func excerpt(body string, limit int) string {
	collapsed := strings.Join(strings.Fields(body), " ")
	runes := []rune(collapsed)
	if len(runes) <= limit {
		return collapsed
	}
	return string(runes[:limit])
}
