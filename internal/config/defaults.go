package config

const (
	defaultDataDir            = "~/.local/share/sift"
	defaultLogDir             = "~/.local/share/sift/logs"
	defaultAPIBind            = "127.0.0.1:8489"
	defaultGmailTimeout       = 30
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultLLMReferer         = "https://github.com/sift-mail/sift"
	defaultLLMTitle           = "Sift Mail Triage"
	defaultLLMTimeoutSeconds  = 60
	defaultTelegramBaseURL    = "https://api.telegram.org"
	defaultTelegramTimeout    = 10
	defaultPriorityThreshold  = 70
	defaultBatchWindowMinutes = 15
	defaultBatchMaxItems      = 10
	defaultBodyExcerptChars   = 500
	defaultQueuePollInterval  = 5
	defaultWorkersPerLane     = 4
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultRetryAttempts      = 3
	defaultRetryBaseSeconds   = 1
	defaultRetryMaxSeconds    = 30
	defaultStageTimeout       = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Gmail: Gmail{
			Enabled:        false,
			Account:        "me",
			AccessTokenEnv: "SIFT_GMAIL_TOKEN",
			RequestTimeout: defaultGmailTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Telegram: Telegram{
			BaseURL:        defaultTelegramBaseURL,
			RequestTimeout: defaultTelegramTimeout,
		},
		Triage: Triage{
			PriorityThreshold: defaultPriorityThreshold,
			BatchWindow:       defaultBatchWindowMinutes,
			BatchMaxItems:     defaultBatchMaxItems,
			BodyExcerptChars:  defaultBodyExcerptChars,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			WorkersPerLane:     defaultWorkersPerLane,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			RetryAttempts:      defaultRetryAttempts,
			RetryBaseSeconds:   defaultRetryBaseSeconds,
			RetryMaxSeconds:    defaultRetryMaxSeconds,
			StageTimeout:       defaultStageTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
