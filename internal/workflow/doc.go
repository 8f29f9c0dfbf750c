// Package workflow advances checkpointed mail items through the configured
// stage handlers.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// items into registered stage handlers (extract, classify, score, notify,
// execute) while capturing failure metadata. It also aggregates queue stats
// and calls stage health checks.
//
// The workflow runs two independent lanes: triage (context extraction through
// notification routing) and dispatch (executing recorded decisions). Each lane
// polls for items matching its statuses and processes them independently, so
// an approved item can be dispatched while newly received mail is still being
// classified.
//
// Every stage transition is persisted through the store's optimistic step
// guard, which doubles as the per-workflow lease: two runners racing for the
// same item lose all but one claim.
package workflow
