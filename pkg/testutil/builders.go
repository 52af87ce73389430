// Package testutil provides test data builders and a seeded in-memory
// environment for testing.
package testutil

import (
	"github.com/fera765/flui/pkg/models"
)

// Node creates a tool node with default values that can be overridden.
func Node(id, referenceID string, overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:          id,
		Type:        models.NodeTypeTool,
		ReferenceID: referenceID,
		Name:        id,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// Trigger creates a trigger node.
func Trigger(id, referenceID string, overrides ...func(*models.Node)) *models.Node {
	return Node(id, referenceID, append([]func(*models.Node){WithType(models.NodeTypeTrigger)}, overrides...)...)
}

func WithType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

func WithConfig(config map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Config = config
	}
}

func Link(from, outputKey, to, inputKey string) *models.Link {
	return &models.Link{
		FromNodeID:    from,
		FromOutputKey: outputKey,
		ToNodeID:      to,
		ToInputKey:    inputKey,
	}
}

// Automation creates an idle automation named after its id.
func Automation(id string, nodes []*models.Node, links ...*models.Link) *models.Automation {
	return &models.Automation{
		ID:     id,
		Name:   "automation " + id,
		Nodes:  nodes,
		Links:  links,
		Status: models.AutomationStatusIdle,
	}
}
