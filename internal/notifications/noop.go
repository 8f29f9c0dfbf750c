package notifications

import (
	"context"

	"sift/internal/queue"
)

// noopService satisfies Service when no delivery channel is configured.
// Prompts still get references so the approval gate can match decisions
// submitted through the CLI or HTTP API.
type noopService struct{}

func (noopService) SendApprovalPrompt(context.Context, *queue.Item) (string, error) {
	return localRef(), nil
}

func (noopService) SendBatchSummary(context.Context, []*queue.Item) (string, error) {
	return localRef(), nil
}

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
