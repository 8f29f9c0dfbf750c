package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGmail()
	c.normalizeLLM()
	c.normalizeTelegram()
	c.normalizeTriage()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeGmail() {
	c.Gmail.Account = strings.TrimSpace(c.Gmail.Account)
	if c.Gmail.Account == "" {
		c.Gmail.Account = "me"
	}
	c.Gmail.AccessTokenEnv = strings.TrimSpace(c.Gmail.AccessTokenEnv)
	if c.Gmail.AccessTokenEnv == "" {
		c.Gmail.AccessTokenEnv = "SIFT_GMAIL_TOKEN"
	}
	if c.Gmail.RequestTimeout <= 0 {
		c.Gmail.RequestTimeout = defaultGmailTimeout
	}
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("SIFT_LLM_API_KEY"); ok {
			c.LLM.APIKey = value
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTelegram() {
	if c.Telegram.BotToken == "" {
		if value, ok := os.LookupEnv("SIFT_TELEGRAM_TOKEN"); ok {
			c.Telegram.BotToken = value
		}
	}
	c.Telegram.BaseURL = strings.TrimSpace(c.Telegram.BaseURL)
	if c.Telegram.BaseURL == "" {
		c.Telegram.BaseURL = defaultTelegramBaseURL
	}
	if c.Telegram.RequestTimeout <= 0 {
		c.Telegram.RequestTimeout = defaultTelegramTimeout
	}
}

func (c *Config) normalizeTriage() {
	if c.Triage.PriorityThreshold <= 0 {
		c.Triage.PriorityThreshold = defaultPriorityThreshold
	}
	if c.Triage.BatchWindow <= 0 {
		c.Triage.BatchWindow = defaultBatchWindowMinutes
	}
	if c.Triage.BatchMaxItems <= 0 {
		c.Triage.BatchMaxItems = defaultBatchMaxItems
	}
	if c.Triage.BodyExcerptChars <= 0 {
		c.Triage.BodyExcerptChars = defaultBodyExcerptChars
	}
	for i, sender := range c.Triage.VIPSenders {
		c.Triage.VIPSenders[i] = strings.ToLower(strings.TrimSpace(sender))
	}
	for i, keyword := range c.Triage.UrgentKeywords {
		c.Triage.UrgentKeywords[i] = strings.ToLower(strings.TrimSpace(keyword))
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval < 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.WorkersPerLane <= 0 {
		c.Workflow.WorkersPerLane = defaultWorkersPerLane
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout < 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.RetryAttempts <= 0 {
		c.Workflow.RetryAttempts = defaultRetryAttempts
	}
	if c.Workflow.RetryBaseSeconds <= 0 {
		c.Workflow.RetryBaseSeconds = defaultRetryBaseSeconds
	}
	if c.Workflow.RetryMaxSeconds <= 0 {
		c.Workflow.RetryMaxSeconds = defaultRetryMaxSeconds
	}
	if c.Workflow.StageTimeout <= 0 {
		c.Workflow.StageTimeout = defaultStageTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
