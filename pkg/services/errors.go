// Package services implements the automation lifecycle and the catalog of
// tools, agents and condition tools on top of the storage port.
package services

import (
	"errors"
	"fmt"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNameRequired        = errors.New("name is required")
	ErrNodesRequired       = errors.New("automation must have at least one node")
	ErrTriggerNodeRequired = errors.New("automation must have at least one trigger node")
	ErrDuplicateNodeID     = errors.New("duplicate node id")
	ErrInvalidNodeType     = errors.New("invalid node type")
	ErrInvalidLink         = errors.New("invalid link")
	ErrTriggerHasInbound   = errors.New("trigger nodes cannot receive links")
	ErrCycleDetected       = errors.New("links form a cycle")
	ErrStructureImmutable  = errors.New("nodes and links cannot change after creation")
	ErrUnknownToolType     = errors.New("unknown tool type")
	ErrUnknownProvider     = errors.New("unknown agent provider")
)

// Conflicts (409 Conflict).
var (
	ErrNameTaken     = errors.New("name is already taken")
	ErrWebhookExists = errors.New("a webhook already exists for this trigger tool")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrTriggerNodeRequired) ||
		errors.Is(err, ErrDuplicateNodeID) ||
		errors.Is(err, ErrInvalidNodeType) ||
		errors.Is(err, ErrInvalidLink) ||
		errors.Is(err, ErrTriggerHasInbound) ||
		errors.Is(err, ErrCycleDetected) ||
		errors.Is(err, ErrStructureImmutable) ||
		errors.Is(err, ErrUnknownToolType) ||
		errors.Is(err, ErrUnknownProvider)
}

// IsConflictError checks if an error is a conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNameTaken) ||
		errors.Is(err, ErrWebhookExists)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error with context.
func NewConflictError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
