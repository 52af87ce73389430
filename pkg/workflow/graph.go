package workflow

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/fera765/flui/pkg/models"
)

// edge feeds a node. Data edges carry a link, control edges run from a
// condition node to a node it may activate.
type edge struct {
	from string
	link *models.Link
}

// plan is an automation bound for one run.
type plan struct {
	automation *models.Automation
	order      []*models.Node
	planned    map[string]bool
	targets    map[string]Resolvable
	inbound    map[string][]edge
	branches   map[string]map[string]bool
}

func newPlan(ctx context.Context, invoker *Invoker, automation *models.Automation, logger *slog.Logger) (*plan, error) {
	if len(automation.TriggerNodes()) == 0 {
		return nil, ErrNoTriggerNode
	}

	p := &plan{
		automation: automation,
		planned:    make(map[string]bool, len(automation.Nodes)),
		targets:    make(map[string]Resolvable, len(automation.Nodes)),
		inbound:    make(map[string][]edge, len(automation.Nodes)),
		branches:   make(map[string]map[string]bool),
	}

	for _, node := range automation.Nodes {
		target, err := invoker.Bind(ctx, node)
		if err != nil {
			logger.WarnContext(ctx, "failed to bind node", "node_id", node.ID, "error", err)
			target = failedTarget{err: err}
		}

		p.targets[node.ID] = target

		if brancher, ok := target.(Brancher); ok {
			p.branches[node.ID] = make(map[string]bool)

			for _, id := range brancher.Targets() {
				if id == node.ID || automation.Node(id) == nil {
					logger.WarnContext(ctx, "condition links an unknown node", "node_id", node.ID, "linked_node_id", id)
					continue
				}

				p.branches[node.ID][id] = true
			}
		}
	}

	outbound := make(map[string][]string)

	for _, link := range automation.Links {
		if automation.Node(link.FromNodeID) == nil || automation.Node(link.ToNodeID) == nil {
			continue
		}

		p.inbound[link.ToNodeID] = append(p.inbound[link.ToNodeID], edge{from: link.FromNodeID, link: link})
		outbound[link.FromNodeID] = append(outbound[link.FromNodeID], link.ToNodeID)
	}

	for _, node := range automation.Nodes {
		brancher, ok := p.targets[node.ID].(Brancher)
		if !ok {
			continue
		}

		for _, id := range brancher.Targets() {
			if p.branches[node.ID][id] {
				p.inbound[id] = append(p.inbound[id], edge{from: node.ID})
				outbound[node.ID] = append(outbound[node.ID], id)
			}
		}
	}

	var queue []string

	for _, trigger := range automation.TriggerNodes() {
		p.planned[trigger.ID] = true
		queue = append(queue, trigger.ID)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, next := range outbound[id] {
			if !p.planned[next] {
				p.planned[next] = true
				queue = append(queue, next)
			}
		}
	}

	order, err := p.sort()
	if err != nil {
		return nil, err
	}

	p.order = order

	return p, nil
}

// sort orders the planned nodes topologically. Inbound edges of triggers
// are ignored.
func (p *plan) sort() ([]*models.Node, error) {
	var nodes []*models.Node

	for _, node := range p.automation.Nodes {
		if p.planned[node.ID] {
			nodes = append(nodes, node)
		}
	}

	return kahn(nodes, func(node *models.Node) []string {
		if node.IsTrigger() {
			return nil
		}

		var sources []string

		for _, e := range p.inbound[node.ID] {
			if p.planned[e.from] {
				sources = append(sources, e.from)
			}
		}

		return sources
	})
}

// Sort returns the nodes of automation in topological order of their links,
// ties broken by declaration order. It fails with ErrCycleDetected when the
// links form a cycle.
func Sort(automation *models.Automation) ([]*models.Node, error) {
	return kahn(automation.Nodes, func(node *models.Node) []string {
		var sources []string

		for _, link := range automation.InboundLinks(node.ID) {
			sources = append(sources, link.FromNodeID)
		}

		return sources
	})
}

// kahn sorts nodes level by level. Sources outside nodes are ignored.
func kahn(nodes []*models.Node, sources func(*models.Node) []string) ([]*models.Node, error) {
	position := make(map[string]int, len(nodes))
	for i, node := range nodes {
		position[node.ID] = i
	}

	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))

	for _, node := range nodes {
		for _, source := range sources(node) {
			if _, ok := position[source]; !ok {
				continue
			}

			inDegree[node.ID]++
			dependents[source] = append(dependents[source], node.ID)
		}
	}

	var level []string

	for _, node := range nodes {
		if inDegree[node.ID] == 0 {
			level = append(level, node.ID)
		}
	}

	sorted := make([]*models.Node, 0, len(nodes))

	for len(level) > 0 {
		var next []string

		for _, id := range level {
			sorted = append(sorted, nodes[position[id]])

			for _, dependent := range dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}

		slices.SortFunc(next, func(a, b string) int {
			return cmp.Compare(position[a], position[b])
		})

		level = next
	}

	if len(sorted) != len(nodes) {
		var stuck []string

		for _, node := range nodes {
			if inDegree[node.ID] > 0 {
				stuck = append(stuck, node.ID)
			}
		}

		return nil, fmt.Errorf("%w: %v", ErrCycleDetected, stuck)
	}

	return sorted, nil
}
