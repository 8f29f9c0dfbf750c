// Package config loads, normalizes, and validates the TOML configuration
// shared by the sift daemon and CLI.
//
// Configuration resolution order: an explicit --config path, then
// ~/.config/sift/config.toml, then ./sift.toml, then built-in defaults.
// Secrets (LLM API key, Telegram bot token) fall back to environment
// variables so they can stay out of the config file.
package config
