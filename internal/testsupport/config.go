package testsupport

import (
	"path/filepath"
	"testing"

	"sift/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.LLM.APIKey = "test"
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.HeartbeatInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTelegram enables Telegram delivery against the given API base URL.
func WithTelegram(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Telegram.BotToken = "test-token"
		b.cfg.Telegram.ChatID = "test-chat"
		b.cfg.Telegram.BaseURL = baseURL
	}
}

// WithPriorityThreshold overrides the triage routing threshold.
func WithPriorityThreshold(threshold int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Triage.PriorityThreshold = threshold
	}
}

// WithBatchPolicy overrides the batch window and size cap.
func WithBatchPolicy(windowMinutes, maxItems int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Triage.BatchWindow = windowMinutes
		b.cfg.Triage.BatchMaxItems = maxItems
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
