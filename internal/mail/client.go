package mail

import "context"

// Envelope carries the extracted context of one inbound message.
type Envelope struct {
	MessageID string
	Sender    string
	Subject   string
	Body      string
}

// Outbound describes a reply to send on the user's behalf. The idempotency
// key dedupes re-sends when the execute stage is retried after a crash.
type Outbound struct {
	To             []string
	Subject        string
	Body           string
	InReplyTo      string
	IdempotencyKey string
}

// Client is the mailbox port used by the extract and execute stages.
type Client interface {
	// FetchMessage retrieves the envelope for a provider message id.
	FetchMessage(ctx context.Context, messageID string) (Envelope, error)
	// ApplyLabel files the message under the named folder, creating the
	// folder when it does not exist. Applying the same label twice is a
	// no-op on the provider side.
	ApplyLabel(ctx context.Context, messageID, folder string) error
	// SendMessage delivers an outbound reply and returns the provider's id
	// for the sent message.
	SendMessage(ctx context.Context, out Outbound) (string, error)
	// HealthCheck verifies the mailbox is reachable with current credentials.
	HealthCheck(ctx context.Context) error
}
