// Package api defines wire-format types and converters for the daemon's HTTP
// API. It translates internal queue models into transport-friendly DTOs so
// webhook consumers and remote tooling never couple to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, decisions,
// classifications) are exposed as lowercase strings and timestamps use
// RFC3339 with milliseconds.
package api
