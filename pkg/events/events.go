// Package events defines the execution lifecycle events exported to the event bus.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/fera765/flui/pkg/models"
)

type EventType string

// Topic carries every execution event.
const Topic = "flui.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent  EventType = "execution.started"
	NodeLoggedEvent        EventType = "execution.node.logged"
	ExecutionFinishedEvent EventType = "execution.finished"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	AutomationID string    `json:"automation_id"`
	RunID        string    `json:"run_id"`
}

func NewBaseEvent(eventType EventType, automationID, runID string) BaseEvent {
	return BaseEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		AutomationID: automationID,
		RunID:        runID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	AutomationName string         `json:"automation_name"`
	Input          map[string]any `json:"input,omitempty"`
}

func (ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// NodeLogged carries one execution log entry.
type NodeLogged struct {
	BaseEvent

	Entry models.LogEntry `json:"entry"`
}

func (NodeLogged) GetType() EventType {
	return NodeLoggedEvent
}

type ExecutionFinished struct {
	BaseEvent

	Status        models.ExecutionStatus `json:"status"`
	ExecutedNodes int                    `json:"executed_nodes"`
	FailedNodes   int                    `json:"failed_nodes"`
	Duration      time.Duration          `json:"duration"`
	Error         string                 `json:"error,omitempty"`
}

func (ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}
