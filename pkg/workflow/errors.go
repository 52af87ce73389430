package workflow

import (
	"errors"
	"fmt"

	"github.com/fera765/flui/pkg/models"
)

var (
	// ErrUnresolvedInput is returned when a link source has no successful result.
	ErrUnresolvedInput = errors.New("unresolved input")

	ErrCycleDetected   = errors.New("cycle detected")
	ErrNoTriggerNode   = errors.New("automation has no trigger node")
	ErrUnknownNodeType = errors.New("unknown node type")
)

// NodeExecutionError is recorded when a node fails to bind or to run.
type NodeExecutionError struct {
	NodeID string
	Kind   models.NodeType
	Err    error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("%s node %s: %v", e.Kind, e.NodeID, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

func nodeError(node *models.Node, err error) *NodeExecutionError {
	return &NodeExecutionError{NodeID: node.ID, Kind: node.Type, Err: err}
}
