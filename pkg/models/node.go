package models

// NodeType is the kind of collaborator a node dispatches to.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeTool      NodeType = "tool"
	NodeTypeAgent     NodeType = "agent"
	NodeTypeCondition NodeType = "condition"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeTrigger, NodeTypeTool, NodeTypeAgent, NodeTypeCondition:
		return true
	default:
		return false
	}
}

// Node is one step of an automation. ReferenceID points at the SystemTool,
// Agent or ConditionTool the node runs.
type Node struct {
	ID          string         `json:"id"          validate:"required"`
	Type        NodeType       `json:"type"        validate:"required"`
	ReferenceID string         `json:"referenceId" validate:"required"`
	Name        string         `json:"name,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

func (n *Node) IsTrigger() bool {
	return n.Type == NodeTypeTrigger
}

// Link moves output[FromOutputKey] of FromNodeID into input[ToInputKey] of ToNodeID.
type Link struct {
	FromNodeID    string `json:"fromNodeId"    validate:"required"`
	FromOutputKey string `json:"fromOutputKey" validate:"required"`
	ToNodeID      string `json:"toNodeId"      validate:"required"`
	ToInputKey    string `json:"toInputKey"    validate:"required"`
}
