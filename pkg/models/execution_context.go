package models

import "time"

// ExecutionStatus is the overall state of one run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// NodeStatus is the recorded outcome of a node within a run.
type NodeStatus string

const (
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
	NodeStatusSkipped NodeStatus = "skipped"
)

// NodeResult is what a run recorded for one node.
type NodeResult struct {
	NodeID    string         `json:"nodeId"`
	Status    NodeStatus     `json:"status"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (r *NodeResult) Succeeded() bool {
	return r != nil && r.Status == NodeStatusSuccess
}

// ExecutionContext is the full record of a single run. It is never shared
// between runs.
type ExecutionContext struct {
	ID            string                 `json:"id"`
	AutomationID  string                 `json:"automationId"`
	ExecutedNodes map[string]*NodeResult `json:"executedNodes"`
	Status        ExecutionStatus        `json:"status"`
	StartedAt     time.Time              `json:"startedAt"`
	FinishedAt    *time.Time             `json:"finishedAt,omitempty"`
}

func NewExecutionContext(id, automationID string, startedAt time.Time) *ExecutionContext {
	return &ExecutionContext{
		ID:            id,
		AutomationID:  automationID,
		ExecutedNodes: make(map[string]*NodeResult),
		Status:        ExecutionStatusRunning,
		StartedAt:     startedAt,
	}
}

// Failed reports whether any recorded node errored.
func (e *ExecutionContext) Failed() bool {
	for _, result := range e.ExecutedNodes {
		if result.Status == NodeStatusError {
			return true
		}
	}

	return false
}
