package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sift/internal/config"
	"sift/internal/queue"
)

const (
	userAgent              = "Sift/0.1.0"
	defaultTelegramTimeout = 10 * time.Second
)

type telegramService struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

func newTelegramService(cfg config.Telegram) *telegramService {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTelegramTimeout
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &telegramService{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.BotToken),
		chatID:  strings.TrimSpace(cfg.ChatID),
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *telegramService) SendApprovalPrompt(ctx context.Context, item *queue.Item) (string, error) {
	if item == nil {
		return "", fmt.Errorf("telegram: nil item")
	}
	var b strings.Builder
	b.WriteString("📬 Approval needed\n\n")
	fmt.Fprintf(&b, "From: %s\n", item.Sender)
	fmt.Fprintf(&b, "Subject: %s\n", item.Subject)
	fmt.Fprintf(&b, "Priority: %d\n", item.PriorityScore)
	fmt.Fprintf(&b, "Proposed: %s → %s\n", item.Classification, item.ProposedFolder)
	if reasoning := strings.TrimSpace(item.Reasoning); reasoning != "" {
		fmt.Fprintf(&b, "\n%s\n", reasoning)
	}
	fmt.Fprintf(&b, "\nReply with: sift approve %s", item.WorkflowID)

	messageID, err := t.send(ctx, b.String())
	if err != nil {
		return "", err
	}
	return "tg:" + messageID, nil
}

func (t *telegramService) SendBatchSummary(ctx context.Context, items []*queue.Item) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("telegram: empty batch")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🗂 %d low-priority messages filed for review\n\n", len(items))
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s — %s → %s\n", i+1, item.Sender, item.Subject, item.ProposedFolder)
	}
	b.WriteString("\nApprove or reject each with: sift approve <workflow-id>")

	messageID, err := t.send(ctx, b.String())
	if err != nil {
		return "", err
	}
	return "tg:" + messageID, nil
}

func (t *telegramService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var b strings.Builder
	b.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		b.WriteString(" with ")
		b.WriteString(contextLabel)
	}
	b.WriteString(": ")
	if err != nil {
		b.WriteString(strings.TrimSpace(err.Error()))
	} else {
		b.WriteString("unknown")
	}
	_, sendErr := t.send(ctx, b.String())
	return sendErr
}

func (t *telegramService) TestNotification(ctx context.Context) error {
	_, err := t.send(ctx, "🧪 Notification system test")
	return err
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// send delivers one message and returns Telegram's message id as a string.
func (t *telegramService) send(ctx context.Context, text string) (string, error) {
	if t == nil || t.client == nil {
		return "", fmt.Errorf("telegram: service not configured")
	}

	payload, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text})
	if err != nil {
		return "", fmt.Errorf("encode telegram request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send telegram notification: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded sendMessageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode telegram response: %w", err)
	}
	if !decoded.OK {
		return "", fmt.Errorf("telegram rejected message: %s", strings.TrimSpace(decoded.Description))
	}
	return strconv.FormatInt(decoded.Result.MessageID, 10), nil
}
