package execute

import (
	"context"
	"log/slog"
	netmail "net/mail"
	"strings"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/mail"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/stage"
)

// Executor applies the human decision through the mail client.
//
// ApplyLabel is idempotent on the provider side, and replies carry the
// workflow UUID as a dedup token, so the whole stage is safe to re-run when
// a crash lands between the side effect and the checkpoint.
type Executor struct {
	cfg    *config.Config
	logger *slog.Logger
	client mail.Client
}

// NewExecutor constructs the execute-action stage handler.
func NewExecutor(cfg *config.Config, logger *slog.Logger, client mail.Client) *Executor {
	return &Executor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "execute"),
		client: client,
	}
}

func (e *Executor) Prepare(ctx context.Context, item *queue.Item) error {
	if !item.IsDecided() {
		return services.Wrap(
			services.ErrValidation, "execute", "validate decision",
			"Item reached the execute stage without a recorded decision", nil)
	}
	item.ErrorMessage = ""
	return nil
}

func (e *Executor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)

	if item.Decision == queue.DecisionReject {
		// Rejection is a recorded no-op: the message stays where it is.
		item.Status = queue.StatusCompleted
		logger.Info("decision executed", logging.String("decision", "reject"))
		return nil
	}

	if e.client == nil {
		return services.Wrap(
			services.ErrConfiguration, "execute", "apply decision",
			"No mail client configured; enable gmail in the config", nil)
	}

	folder := strings.TrimSpace(item.TargetFolder())
	if folder == "" {
		return services.Wrap(
			services.ErrValidation, "execute", "resolve folder",
			"Approved item has no target folder", nil)
	}
	if err := e.client.ApplyLabel(ctx, item.MessageID, folder); err != nil {
		return services.Wrap(
			services.ErrTransient, "execute", "apply label",
			"Failed to file the message", err)
	}

	if item.Decision == queue.DecisionApprove &&
		item.Classification == queue.ClassNeedsReply &&
		strings.TrimSpace(item.ReplyDraft) != "" {
		if err := e.sendReply(ctx, item); err != nil {
			return err
		}
	}

	item.Status = queue.StatusCompleted
	logger.Info(
		"decision executed",
		logging.String("decision", string(item.Decision)),
		logging.String("folder", folder),
	)
	return nil
}

func (e *Executor) sendReply(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)

	to := senderAddress(item.Sender)
	if to == "" {
		return services.Wrap(
			services.ErrValidation, "execute", "resolve recipient",
			"Cannot parse a reply address from the sender header", nil)
	}
	subject := item.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	sentID, err := e.client.SendMessage(ctx, mail.Outbound{
		To:             []string{to},
		Subject:        subject,
		Body:           item.ReplyDraft,
		InReplyTo:      item.MessageID,
		IdempotencyKey: item.WorkflowID,
	})
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "execute", "send reply",
			"Failed to send the approved reply", err)
	}
	logger.Info("reply sent", logging.String("sent_message_id", sentID))
	return nil
}

func (e *Executor) HealthCheck(ctx context.Context) stage.Health {
	if e.client == nil {
		return stage.Unhealthy("execute", "mail client not configured")
	}
	if err := e.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("execute", err.Error())
	}
	return stage.Healthy("execute")
}

// senderAddress extracts the bare address from a From header value.
func senderAddress(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return ""
	}
	if addr, err := netmail.ParseAddress(sender); err == nil {
		return addr.Address
	}
	if strings.Contains(sender, "@") {
		return sender
	}
	return ""
}
