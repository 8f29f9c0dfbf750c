package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"sift/internal/config"
	"sift/internal/mail"
)

const defaultRequestTimeout = 15 * time.Second

// Client implements the mail.Client port against the Gmail API.
type Client struct {
	svc     *gmailapi.UsersService
	account string
	timeout time.Duration

	mu     sync.Mutex
	labels map[string]string // normalized folder name -> label id
	sent   map[string]string // idempotency key -> sent message id
}

var _ mail.Client = (*Client)(nil)

// NewClient constructs a Gmail client from configuration. The OAuth access
// token is read from the environment variable named by
// gmail.access_token_env; sift does not run its own authorization flow.
func NewClient(ctx context.Context, cfg config.Gmail) (*Client, error) {
	tokenEnv := strings.TrimSpace(cfg.AccessTokenEnv)
	if tokenEnv == "" {
		return nil, errors.New("gmail: access token env not configured")
	}
	token := strings.TrimSpace(os.Getenv(tokenEnv))
	if token == "" {
		return nil, fmt.Errorf("gmail: access token missing from %s", tokenEnv)
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("gmail: create service: %w", err)
	}

	account := strings.TrimSpace(cfg.Account)
	if account == "" {
		account = "me"
	}
	timeout := defaultRequestTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}

	return &Client{
		svc:     svc.Users,
		account: account,
		timeout: timeout,
		labels:  make(map[string]string),
		sent:    make(map[string]string),
	}, nil
}

// FetchMessage retrieves sender, subject, and plain-text body for a message.
func (c *Client) FetchMessage(ctx context.Context, messageID string) (mail.Envelope, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	msg, err := c.svc.Messages.Get(c.account, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return mail.Envelope{}, fmt.Errorf("gmail: get message %s: %w", messageID, err)
	}

	env := mail.Envelope{
		MessageID: messageID,
		Sender:    headerValue(msg, "From"),
		Subject:   headerValue(msg, "Subject"),
	}
	if msg.Payload != nil {
		env.Body = extractPlainText(msg.Payload)
	}
	return env, nil
}

// ApplyLabel files the message under the named folder, creating the label
// on first use. Gmail treats re-applying an existing label as a no-op, which
// keeps the execute stage safe to retry.
func (c *Client) ApplyLabel(ctx context.Context, messageID, folder string) error {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return errors.New("gmail: folder name required")
	}

	labelID, err := c.ensureLabel(ctx, folder)
	if err != nil {
		return err
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	_, err = c.svc.Messages.Modify(c.account, messageID, &gmailapi.ModifyMessageRequest{
		AddLabelIds:    []string{labelID},
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail: label message %s as %q: %w", messageID, folder, err)
	}
	return nil
}

// SendMessage delivers an outbound reply in RFC 2822 format. Calls sharing an
// idempotency key stamp the same deterministic Message-ID; before sending, the
// Sent mailbox is searched for that id, so the dedup holds across process
// restarts, not just within one client's lifetime.
func (c *Client) SendMessage(ctx context.Context, out mail.Outbound) (string, error) {
	if len(out.To) == 0 {
		return "", errors.New("gmail: at least one recipient required")
	}
	if strings.TrimSpace(out.Body) == "" {
		return "", errors.New("gmail: body required")
	}

	key := strings.TrimSpace(out.IdempotencyKey)
	msgID := sentMessageID(key)
	if key != "" {
		c.mu.Lock()
		if id, ok := c.sent[key]; ok {
			c.mu.Unlock()
			return id, nil
		}
		c.mu.Unlock()

		id, err := c.findSent(ctx, msgID)
		if err != nil {
			// A blind send here could duplicate the reply; let the
			// caller retry instead.
			return "", err
		}
		if id != "" {
			c.cacheSent(key, id)
			return id, nil
		}
	}

	raw := base64.URLEncoding.EncodeToString([]byte(encodeOutbound(out, msgID)))

	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	sent, err := c.svc.Messages.Send(c.account, &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: send message: %w", err)
	}

	if key != "" {
		c.cacheSent(key, sent.Id)
	}
	return sent.Id, nil
}

// encodeOutbound renders the RFC 2822 payload for an outbound reply. A
// non-empty msgID is stamped as the Message-ID header.
func encodeOutbound(out mail.Outbound, msgID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(out.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", out.Subject)
	if msgID != "" {
		fmt.Fprintf(&b, "Message-ID: <%s>\r\n", msgID)
	}
	if ref := strings.TrimSpace(out.InReplyTo); ref != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", ref)
		fmt.Fprintf(&b, "References: %s\r\n", ref)
	}
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(out.Body)
	return b.String()
}

// sentMessageID derives the deterministic Message-ID for an idempotency key.
// Key characters outside the RFC 2822 atom set are replaced so the id stays
// searchable via rfc822msgid.
func sentMessageID(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String() + "@sift.invalid"
}

// findSent looks for an already delivered message carrying msgID. Returns the
// Gmail message id, or empty when no prior send exists.
func (c *Client) findSent(ctx context.Context, msgID string) (string, error) {
	if msgID == "" {
		return "", nil
	}
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	resp, err := c.svc.Messages.List(c.account).
		Q("in:sent rfc822msgid:" + msgID).
		MaxResults(1).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: search sent mail: %w", err)
	}
	if len(resp.Messages) == 0 {
		return "", nil
	}
	return resp.Messages[0].Id, nil
}

func (c *Client) cacheSent(key, id string) {
	c.mu.Lock()
	c.sent[key] = id
	c.mu.Unlock()
}

// HealthCheck verifies the mailbox is reachable with current credentials.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	if _, err := c.svc.GetProfile(c.account).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail: get profile: %w", err)
	}
	return nil
}

// ensureLabel resolves a folder name to a Gmail label id, creating the label
// when missing. Lookups are cached for the life of the client.
func (c *Client) ensureLabel(ctx context.Context, folder string) (string, error) {
	display := displayName(folder)
	normalized := strings.ToLower(display)

	c.mu.Lock()
	if id, ok := c.labels[normalized]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	listCtx, cancel := c.requestContext(ctx)
	labels, err := c.svc.Labels.List(c.account).Context(listCtx).Do()
	cancel()
	if err != nil {
		return "", fmt.Errorf("gmail: list labels: %w", err)
	}
	for _, label := range labels.Labels {
		if strings.EqualFold(label.Name, display) {
			c.cacheLabel(normalized, label.Id)
			return label.Id, nil
		}
	}

	createCtx, cancel := c.requestContext(ctx)
	defer cancel()
	created, err := c.svc.Labels.Create(c.account, &gmailapi.Label{
		Name:                  display,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(createCtx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: create label %q: %w", display, err)
	}
	c.cacheLabel(normalized, created.Id)
	return created.Id, nil
}

func (c *Client) cacheLabel(normalized, id string) {
	c.mu.Lock()
	c.labels[normalized] = id
	c.mu.Unlock()
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

var titleCaser = cases.Title(language.English)

// displayName normalizes a proposed folder into a presentable label name.
func displayName(folder string) string {
	trimmed := strings.TrimSpace(folder)
	if trimmed == "" {
		return trimmed
	}
	// Preserve names the classifier already capitalized (e.g. "VIP").
	if strings.ToLower(trimmed) != trimmed {
		return trimmed
	}
	return titleCaser.String(trimmed)
}

func headerValue(msg *gmailapi.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, header := range msg.Payload.Headers {
		if strings.EqualFold(header.Name, name) {
			return strings.TrimSpace(header.Value)
		}
	}
	return ""
}

// extractPlainText walks the MIME tree for the first text/plain part.
func extractPlainText(part *gmailapi.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, child := range part.Parts {
		if body := extractPlainText(child); body != "" {
			return body
		}
	}
	// Fall back to the top-level body when no text/plain part exists.
	if part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	return ""
}

func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}
