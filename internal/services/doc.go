// Package services defines shared utilities consumed by the workflow stage
// handlers and external integrations.
//
// It provides context helpers that stamp workflow IDs, stage names, and
// correlation identifiers for logging, plus the structured error markers and
// Wrap helper that translate collaborator failures into consistent
// retry/fail/quarantine behavior across the pipeline.
package services
