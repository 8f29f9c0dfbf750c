// Package llm provides an OpenRouter chat client for LLM-based mail triage.
//
// The classify stage sends the extracted sender, subject, and body excerpt to
// a configured model with a structured prompt requesting JSON output. The
// response carries the classification, a proposed destination folder, a
// confidence score (0-1), and reasoning.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
//
// # Fallback
//
// Output that cannot be decoded into the triage schema is reported as
// ErrMalformedResponse and treated as fatal by the classify stage. A
// well-formed response with an unrecognized classification value falls back
// to the unknown classification, which routes the message to the approval
// path instead of guessing.
package llm

