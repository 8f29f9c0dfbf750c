package approval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/services"
)

// ErrUnknownRef reports a decision that references no known notification.
// Stray replies to stale or foreign prompts land here and are dropped.
var ErrUnknownRef = errors.New("unknown notification reference")

// ErrUnknownWorkflow reports a decision aimed at a workflow id the store has
// never seen.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// Gate turns operator replies into committed decisions. Every accepted
// decision lands as one atomic write: the item's decision fields plus an
// append-only approval_history row.
type Gate struct {
	store  *queue.Store
	logger *slog.Logger
}

// NewGate constructs an approval gate.
func NewGate(store *queue.Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{store: store, logger: logging.NewComponentLogger(logger, "approval-gate")}
}

// RecordDecision resolves a notification reference to its workflow item and
// commits the decision. Unknown references are dropped with ErrUnknownRef.
func (g *Gate) RecordDecision(ctx context.Context, ref string, decision queue.Decision, actor, folder string) (*queue.Item, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrUnknownRef
	}
	item, err := g.store.GetByNotificationRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if item == nil {
		g.logger.Warn("decision for unknown notification ref dropped",
			logging.String("notification_ref", ref),
			logging.String("decision", string(decision)),
		)
		return nil, ErrUnknownRef
	}
	return g.commit(ctx, item, decision, actor, folder)
}

// DecideWorkflow commits a decision addressed by workflow id, the path the
// CLI uses.
func (g *Gate) DecideWorkflow(ctx context.Context, workflowID string, decision queue.Decision, actor, folder string) (*queue.Item, error) {
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return nil, ErrUnknownWorkflow
	}
	item, err := g.store.GetByWorkflowID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrUnknownWorkflow
	}
	return g.commit(ctx, item, decision, actor, folder)
}

func (g *Gate) commit(ctx context.Context, item *queue.Item, decision queue.Decision, actor, folder string) (*queue.Item, error) {
	logger := logging.WithContext(ctx, g.logger).With(
		logging.String(logging.FieldWorkflowID, item.WorkflowID),
		logging.String("decision", string(decision)),
	)

	switch decision {
	case queue.DecisionApprove, queue.DecisionReject:
	case queue.DecisionRedirect:
		if strings.TrimSpace(folder) == "" {
			return nil, services.Wrap(services.ErrValidation, "approval", "validate decision", "Redirect requires a target folder", nil)
		}
	default:
		return nil, services.Wrap(services.ErrValidation, "approval", "validate decision", "Unknown decision verb", nil)
	}

	// A repeated reply to the same prompt, or a reply that arrives after the
	// workflow already finished, is acknowledged without changing anything.
	if item.IsDecided() || item.IsTerminal() {
		logger.Info("decision already recorded; reply ignored",
			logging.String("status", string(item.Status)),
		)
		return item, nil
	}
	if item.Status != queue.StatusAwaitingApproval {
		return nil, services.Wrap(services.ErrValidation, "approval", "validate state",
			"Item is not awaiting approval", nil)
	}

	item.Decision = decision
	item.DecisionActor = strings.TrimSpace(actor)
	if decision == queue.DecisionRedirect {
		item.DecisionFolder = strings.TrimSpace(folder)
	}
	if decision == queue.DecisionReject {
		item.Status = queue.StatusRejected
	} else {
		item.Status = queue.StatusApproved
	}

	rec := queue.ApprovalRecord{
		WorkflowID:     item.WorkflowID,
		Decision:       decision,
		Actor:          item.DecisionActor,
		PreviousFolder: item.ProposedFolder,
		NewFolder:      item.TargetFolder(),
		DecidedAt:      time.Now().UTC(),
	}
	if err := g.store.CommitDecision(ctx, item, rec); err != nil {
		return nil, err
	}

	logger.Info("decision committed",
		logging.String("status", string(item.Status)),
		logging.String("new_folder", rec.NewFolder),
		logging.String(logging.FieldEventType, "decision_committed"),
	)
	return item, nil
}
