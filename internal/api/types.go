package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a workflow item in a transport-friendly format.
type QueueItem struct {
	ID              int64  `json:"id"`
	WorkflowID      string `json:"workflowId"`
	MessageID       string `json:"messageId"`
	Sender          string `json:"sender,omitempty"`
	Subject         string `json:"subject,omitempty"`
	Classification  string `json:"classification"`
	ProposedFolder  string `json:"proposedFolder,omitempty"`
	Reasoning       string `json:"reasoning,omitempty"`
	PriorityScore   int    `json:"priorityScore"`
	Status          string `json:"status"`
	NotificationRef string `json:"notificationRef,omitempty"`
	Decision        string `json:"decision,omitempty"`
	DecisionFolder  string `json:"decisionFolder,omitempty"`
	DecisionActor   string `json:"decisionActor,omitempty"`
	BatchID         int64  `json:"batchId,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	NeedsReview     bool   `json:"needsReview"`
	ReviewReason    string `json:"reviewReason,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastItem    *QueueItem     `json:"lastItem,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of workflow items.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single workflow item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// SubmitRequest asks the daemon to ingest a mail message by provider id.
type SubmitRequest struct {
	MessageID string `json:"messageId"`
}

// SubmitResponse reports the workflow item created (or found) for a
// submitted message.
type SubmitResponse struct {
	Item    QueueItem `json:"item"`
	Created bool      `json:"created"`
}

// DecisionRequest carries an operator decision. Either the notification
// reference (webhook path) or the workflow id (tooling path) addresses the
// item.
type DecisionRequest struct {
	NotificationRef string `json:"notificationRef,omitempty"`
	WorkflowID      string `json:"workflowId,omitempty"`
	Decision        string `json:"decision"`
	Actor           string `json:"actor,omitempty"`
	Folder          string `json:"folder,omitempty"`
}

// DecisionResponse reports the item state after a decision was processed.
// Ignored is set when the reply referenced an unknown notification and was
// dropped.
type DecisionResponse struct {
	Item    *QueueItem `json:"item,omitempty"`
	Ignored bool       `json:"ignored,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
