package notifications

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"sift/internal/config"
	"sift/internal/queue"
)

// Service defines the notification surface exposed to workflow components.
//
// Send methods return a notification reference that correlates later
// decisions back to the workflow instance that prompted them.
type Service interface {
	// SendApprovalPrompt delivers a single-item approval request and
	// returns its notification reference.
	SendApprovalPrompt(ctx context.Context, item *queue.Item) (string, error)
	// SendBatchSummary delivers one grouped notification for a closed batch
	// window and returns the batch-level reference. Per-item references are
	// derived from it by the caller.
	SendBatchSummary(ctx context.Context, items []*queue.Item) (string, error)
	// NotifyError reports a workflow failure.
	NotifyError(ctx context.Context, err error, contextLabel string) error
	// TestNotification verifies delivery end to end.
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by Telegram when
// configured. When no bot token is configured, a noop implementation is
// returned; approval prompts then carry locally generated references so
// decisions can still arrive through the CLI and HTTP API.
func NewService(cfg *config.Config) Service {
	token := strings.TrimSpace(cfg.Telegram.BotToken)
	if token == "" {
		return noopService{}
	}
	return newTelegramService(cfg.Telegram)
}

// BatchItemRef derives the per-item reference for a member of a delivered
// batch summary.
func BatchItemRef(batchRef string, itemID int64) string {
	return batchRef + ":" + strconv.FormatInt(itemID, 10)
}

// localRef generates a reference for prompts that were not delivered to an
// external channel.
func localRef() string {
	return "local:" + uuid.NewString()
}
