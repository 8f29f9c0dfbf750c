package stage

import (
	"context"

	"sift/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
//
// Prepare runs before the item enters the stage's processing status and must
// be side-effect free; Execute does the work and mutates the item in place.
// The manager persists the item after each phase, so handlers never call the
// store themselves.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}
