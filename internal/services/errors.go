package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify collaborator and stage failures. Wrap
// tags errors with one of these so the workflow manager can decide between
// retry, immediate failure, and quarantine.
var (
	ErrTransient     = errors.New("transient failure")
	ErrTimeout       = errors.New("timeout")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrCorruption    = errors.New("state corruption")
)

// Kind names the failure class derived from an error's sentinel marker.
type Kind string

const (
	KindTransient     Kind = "transient"
	KindTimeout       Kind = "timeout"
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindCorruption    Kind = "corruption"
	KindUnknown       Kind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the workflow manager should retry the stage
// with backoff before failing the instance.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

// KindOf maps an error to its failure class.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrCorruption):
		return KindCorruption
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// Details summarizes a classified error for logging and persistence.
type Details struct {
	Kind    Kind
	Message string
}

// Describe extracts the failure class and a display message from an error.
func Describe(err error) Details {
	if err == nil {
		return Details{Kind: KindUnknown}
	}
	return Details{
		Kind:    KindOf(err),
		Message: strings.TrimSpace(err.Error()),
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
