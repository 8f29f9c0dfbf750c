// Package queue persists mail workflow instances in SQLite and exposes
// helpers for driving their lifecycle.
//
// The Store is the checkpoint store: every stage transition rewrites the
// full workflow row under an optimistic step_index guard, so the database is
// always the single source of truth on restart. It also owns the append-only
// approval audit trail and the batch windows that group low-priority items
// into one notification.
//
// Treat this package as the single source of truth for workflow semantics;
// when you add new statuses or fields, update schema.sql and bump
// schemaVersion.
package queue
