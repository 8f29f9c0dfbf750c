package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateTriage(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/sift/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set SIFT_LLM_API_KEY env var or edit %s (create with 'sift config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return nil
	}
	if strings.TrimSpace(c.Telegram.ChatID) == "" {
		return errors.New("telegram.chat_id must be set when telegram.bot_token is configured")
	}
	return nil
}

func (c *Config) validateTriage() error {
	if c.Triage.PriorityThreshold < 0 || c.Triage.PriorityThreshold > 100 {
		return errors.New("triage.priority_threshold must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.RetryBaseSeconds > c.Workflow.RetryMaxSeconds {
		return errors.New("workflow.retry_base_seconds must not exceed workflow.retry_max_seconds")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
