// Package notifications delivers approval prompts, batch summaries, and
// error alerts to the user's Telegram chat.
//
// Every delivered prompt yields a notification reference ("tg:<message-id>")
// persisted on the workflow item; the approval gate resolves inbound
// decisions through that reference. When Telegram is not configured a noop
// service hands out local references instead so the CLI and HTTP decision
// paths keep working.
package notifications
