package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a workflow item.
type Status string

const (
	StatusReceived         Status = "received"
	StatusExtracting       Status = "extracting"
	StatusContextExtracted Status = "context_extracted"
	StatusClassifying      Status = "classifying"
	StatusClassified       Status = "classified"
	StatusScoring          Status = "scoring"
	StatusScored           Status = "scored"
	StatusNotifying        Status = "notifying"
	StatusBatched          Status = "batched"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusExecuting        Status = "executing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusReview           Status = "review"
)

var allStatuses = []Status{
	StatusReceived,
	StatusExtracting,
	StatusContextExtracted,
	StatusClassifying,
	StatusClassified,
	StatusScoring,
	StatusScored,
	StatusNotifying,
	StatusBatched,
	StatusAwaitingApproval,
	StatusApproved,
	StatusRejected,
	StatusExecuting,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusExtracting:  {},
	StatusClassifying: {},
	StatusScoring:     {},
	StatusNotifying:   {},
	StatusExecuting:   {},
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusReview:    {},
}

// Classification is the model-assigned category for a message.
type Classification string

const (
	ClassUnclassified Classification = "unclassified"
	ClassSortOnly     Classification = "sort_only"
	ClassNeedsReply   Classification = "needs_reply"
	ClassSpam         Classification = "spam"
	ClassUnknown      Classification = "unknown"
)

// ParseClassification converts a string into a known Classification,
// falling back to unknown for unrecognized values.
func ParseClassification(value string) Classification {
	switch Classification(strings.ToLower(strings.TrimSpace(value))) {
	case ClassSortOnly:
		return ClassSortOnly
	case ClassNeedsReply:
		return ClassNeedsReply
	case ClassSpam:
		return ClassSpam
	case ClassUnclassified:
		return ClassUnclassified
	default:
		return ClassUnknown
	}
}

// Decision is the human verdict recorded for a workflow instance.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionApprove  Decision = "approve"
	DecisionReject   Decision = "reject"
	DecisionRedirect Decision = "redirect"
)

// ParseDecision converts a string into a known Decision.
func ParseDecision(value string) (Decision, bool) {
	switch Decision(strings.ToLower(strings.TrimSpace(value))) {
	case DecisionApprove:
		return DecisionApprove, true
	case DecisionReject:
		return DecisionReject, true
	case DecisionRedirect:
		return DecisionRedirect, true
	default:
		return DecisionNone, false
	}
}

// Item represents one mail workflow instance persisted in SQLite. It is the
// unit of checkpointing: every stage transition bumps StepIndex and rewrites
// the full row before the workflow advances.
type Item struct {
	ID              int64
	WorkflowID      string
	MessageID       string
	Sender          string
	Subject         string
	BodyExcerpt     string
	Classification  Classification
	ProposedFolder  string
	Reasoning       string
	ReplyDraft      string
	PriorityScore   int
	Status          Status
	NotificationRef string
	Decision        Decision
	DecisionFolder  string
	DecisionActor   string
	BatchID         int64
	StepIndex       int64
	ErrorMessage    string
	NeedsReview     bool
	ReviewReason    string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PriorityUnscored marks an item that has not passed the scoring stage yet.
const PriorityUnscored = -1

// Batch groups low-priority items into one notification window.
type Batch struct {
	ID              int64
	OpenedAt        time.Time
	ClosedAt        *time.Time
	NotificationRef string
}

// ApprovalRecord is one append-only audit row written when a decision lands.
type ApprovalRecord struct {
	ID             int64
	WorkflowID     string
	Decision       Decision
	Actor          string
	PreviousFolder string
	NewFolder      string
	DecidedAt      time.Time
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total            int
	Active           int
	AwaitingApproval int
	Batched          int
	Completed        int
	Failed           int
	Review           int
}

// DatabaseHealth captures diagnostic information about the workflow database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsTerminal returns true when the item has left the active workflow for good.
func (i Item) IsTerminal() bool {
	return IsTerminalStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminalStatus reports whether a status is outside the active resume set.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// IsDecided reports whether a human decision has been recorded.
func (i Item) IsDecided() bool {
	return i.Decision != DecisionNone
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.LastHeartbeat = nil
}

// TargetFolder returns the folder the execute stage should apply: the
// user-chosen folder for redirects, otherwise the classifier's proposal.
func (i Item) TargetFolder() string {
	if i.Decision == DecisionRedirect && strings.TrimSpace(i.DecisionFolder) != "" {
		return i.DecisionFolder
	}
	return i.ProposedFolder
}

// Validate checks the invariants that must hold for a persisted item. A
// violation means the checkpoint row is corrupt and the item must be
// quarantined rather than resumed.
func (i Item) Validate() error {
	if strings.TrimSpace(i.WorkflowID) == "" {
		return errors.New("workflow id missing")
	}
	if strings.TrimSpace(i.MessageID) == "" {
		return errors.New("message id missing")
	}
	if _, ok := statusSet[i.Status]; !ok {
		return fmt.Errorf("unknown status %q", i.Status)
	}

	rank := statusRank(i.Status)
	if rank >= statusRank(StatusContextExtracted) && strings.TrimSpace(i.Sender) == "" {
		return fmt.Errorf("status %s requires extracted context", i.Status)
	}
	if rank >= statusRank(StatusClassified) && i.Classification == ClassUnclassified {
		return fmt.Errorf("status %s requires a classification", i.Status)
	}
	if rank >= statusRank(StatusScored) && (i.PriorityScore < 0 || i.PriorityScore > 100) {
		return fmt.Errorf("status %s requires a priority score in [0,100], got %d", i.Status, i.PriorityScore)
	}
	if i.Status == StatusAwaitingApproval && strings.TrimSpace(i.NotificationRef) == "" {
		return errors.New("awaiting_approval requires a notification ref")
	}
	if i.Status == StatusBatched && i.BatchID == 0 {
		return errors.New("batched requires batch membership")
	}
	switch i.Status {
	case StatusApproved, StatusRejected, StatusExecuting:
		if i.Decision == DecisionNone {
			return fmt.Errorf("status %s requires a recorded decision", i.Status)
		}
	}
	return nil
}

// statusRank orders the forward progression so Validate can reason about
// "at or past" a milestone. Unordered statuses (failed, review) rank lowest.
func statusRank(status Status) int {
	switch status {
	case StatusReceived:
		return 0
	case StatusExtracting:
		return 1
	case StatusContextExtracted:
		return 2
	case StatusClassifying:
		return 3
	case StatusClassified:
		return 4
	case StatusScoring:
		return 5
	case StatusScored:
		return 6
	case StatusNotifying:
		return 7
	case StatusBatched:
		return 8
	case StatusAwaitingApproval:
		return 9
	case StatusApproved, StatusRejected:
		return 10
	case StatusExecuting:
		return 11
	case StatusCompleted:
		return 12
	default:
		return -1
	}
}
