package persistence

import (
	"errors"
	"fmt"
)

var (
	ErrAutomationNotFound    = errors.New("automation not found")
	ErrToolNotFound          = errors.New("tool not found")
	ErrAgentNotFound         = errors.New("agent not found")
	ErrConditionToolNotFound = errors.New("condition tool not found")
	ErrWebhookNotFound       = errors.New("webhook not found")
	ErrExecutionNotFound     = errors.New("execution not found")

	// ErrAlreadyExists indicates a unique constraint, such as the automation name, would be violated.
	ErrAlreadyExists = errors.New("already exists")
)

// EntityError wraps an error with the operation and entity it concerns.
type EntityError struct {
	Op   string // e.g. "Save", "Delete"
	Kind string // e.g. "automation", "tool"
	ID   string
	Err  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewEntityError(op, kind, id string, err error) *EntityError {
	return &EntityError{Op: op, Kind: kind, ID: id, Err: err}
}

// NotFound returns the not-found sentinel for an entity kind.
func NotFound(kind string) error {
	switch kind {
	case KindAutomation:
		return ErrAutomationNotFound
	case KindTool:
		return ErrToolNotFound
	case KindAgent:
		return ErrAgentNotFound
	case KindConditionTool:
		return ErrConditionToolNotFound
	case KindWebhook:
		return ErrWebhookNotFound
	case KindExecution:
		return ErrExecutionNotFound
	default:
		return fmt.Errorf("%s not found", kind)
	}
}

// Entity kinds, also used as directory and table names by the adapters.
const (
	KindAutomation    = "automation"
	KindTool          = "tool"
	KindAgent         = "agent"
	KindConditionTool = "condition_tool"
	KindWebhook       = "webhook"
	KindExecution     = "execution"
)

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound) ||
		errors.Is(err, ErrToolNotFound) ||
		errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrConditionToolNotFound) ||
		errors.Is(err, ErrWebhookNotFound) ||
		errors.Is(err, ErrExecutionNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
