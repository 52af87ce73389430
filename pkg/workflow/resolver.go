package workflow

import (
	"fmt"
	"maps"

	"github.com/fera765/flui/pkg/models"
)

// Resolve builds the input of node from its static config and the outputs of
// its inbound link sources. Linked values win over config values.
func Resolve(node *models.Node, inbound []*models.Link, results map[string]*models.NodeResult) (map[string]any, error) {
	input := config(node)

	for _, link := range inbound {
		source := results[link.FromNodeID]
		if !source.Succeeded() {
			return nil, fmt.Errorf("%w: %s.%s for %s", ErrUnresolvedInput, link.FromNodeID, link.FromOutputKey, link.ToInputKey)
		}

		if value, ok := source.Output[link.FromOutputKey]; ok {
			input[link.ToInputKey] = value
		}
	}

	return input, nil
}

// Seed builds the input of a trigger node: its config overlaid with the root input.
func Seed(node *models.Node, rootInput map[string]any) map[string]any {
	input := config(node)
	maps.Copy(input, rootInput)

	return input
}

func config(node *models.Node) map[string]any {
	input := make(map[string]any, len(node.Config))
	maps.Copy(input, node.Config)

	return input
}
