package classify

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"sift/internal/config"
	"sift/internal/llm"
	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/stage"
)

// Model is the language-model surface the classifier depends on.
type Model interface {
	ClassifyMessage(ctx context.Context, msg llm.Message) (llm.Triage, error)
	HealthCheck(ctx context.Context) error
}

// Classifier asks the model to triage a message and records the verdict.
type Classifier struct {
	cfg    *config.Config
	logger *slog.Logger
	model  Model
}

// NewClassifier constructs the classify stage handler with the configured
// OpenRouter client.
func NewClassifier(cfg *config.Config, logger *slog.Logger) *Classifier {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return NewClassifierWithModel(cfg, logger, client)
}

// NewClassifierWithModel allows injecting the model (used in tests).
func NewClassifierWithModel(cfg *config.Config, logger *slog.Logger, model Model) *Classifier {
	return &Classifier{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "classify"),
		model:  model,
	}
}

func (c *Classifier) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	item.ErrorMessage = ""
	logger.Info("starting classification", logging.String("subject", item.Subject))
	return nil
}

func (c *Classifier) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)

	if item.Classification != queue.ClassUnclassified {
		item.Status = queue.StatusClassified
		logger.Info("already classified", logging.String("classification", string(item.Classification)))
		return nil
	}

	if c.model == nil {
		return services.Wrap(
			services.ErrConfiguration, "classify", "classify message",
			"No language model configured; set llm.api_key", nil)
	}

	triage, err := c.model.ClassifyMessage(ctx, llm.Message{
		Sender:  item.Sender,
		Subject: item.Subject,
		Body:    item.BodyExcerpt,
	})
	if err != nil {
		if errors.Is(err, llm.ErrMalformedResponse) {
			return services.Wrap(
				services.ErrValidation, "classify", "parse model response",
				"Model returned output that does not match the triage schema", err)
		}
		return services.Wrap(
			services.ErrTransient, "classify", "classify message",
			"Language model request failed", err)
	}

	classification := queue.ParseClassification(triage.Classification)
	if classification == queue.ClassUnknown && triage.Classification != string(queue.ClassUnknown) {
		logger.Warn(
			"unrecognized classification value",
			logging.String("value", triage.Classification),
			logging.Alert("fallback_unknown"),
		)
	}

	item.Classification = classification
	item.ProposedFolder = folderFor(classification, triage.Folder)
	item.Reasoning = triage.Reasoning
	item.ReplyDraft = ""
	if classification == queue.ClassNeedsReply {
		item.ReplyDraft = triage.ReplyDraft
	}
	item.Status = queue.StatusClassified

	logger.Info(
		"message classified",
		logging.String("classification", string(classification)),
		logging.String("folder", item.ProposedFolder),
		logging.Any("confidence", triage.Confidence),
	)
	return nil
}

func (c *Classifier) HealthCheck(ctx context.Context) stage.Health {
	if c.model == nil {
		return stage.Unhealthy("classify", "language model not configured")
	}
	if err := c.model.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("classify", err.Error())
	}
	return stage.Healthy("classify")
}

// folderFor falls back to a conventional folder when the model omits one.
func folderFor(classification queue.Classification, proposed string) string {
	if proposed = strings.TrimSpace(proposed); proposed != "" {
		return proposed
	}
	switch classification {
	case queue.ClassNeedsReply:
		return "Inbox"
	case queue.ClassSpam:
		return "Spam"
	case queue.ClassSortOnly:
		return "Archive"
	default:
		return "Inbox"
	}
}
