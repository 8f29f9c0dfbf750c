// Package logging builds the slog loggers used across sift and standardizes
// the structured field keys stages and the workflow manager attach to
// records. Context-derived attributes (workflow id, stage, lane, correlation
// id) flow through WithContext so every record in a stage run carries the
// same identifiers.
package logging
