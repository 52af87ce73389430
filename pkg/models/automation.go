// Package models defines the domain models of the automation engine.
package models

import "time"

// AutomationStatus is the lifecycle state of an automation as seen by its last run.
type AutomationStatus string

const (
	AutomationStatusIdle      AutomationStatus = "idle"
	AutomationStatusRunning   AutomationStatus = "running"
	AutomationStatusCompleted AutomationStatus = "completed"
	AutomationStatusFailed    AutomationStatus = "failed"
)

// Automation is a directed graph of nodes wired by data links.
type Automation struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"        validate:"required"`
	Description string           `json:"description"`
	Nodes       []*Node          `json:"nodes"       validate:"required,min=1,dive,required"`
	Links       []*Link          `json:"links"       validate:"dive,required"`
	Status      AutomationStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Node returns the node with the given id or nil.
func (a *Automation) Node(id string) *Node {
	for _, node := range a.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNodes returns the trigger nodes in declaration order.
func (a *Automation) TriggerNodes() []*Node {
	var triggers []*Node

	for _, node := range a.Nodes {
		if node.IsTrigger() {
			triggers = append(triggers, node)
		}
	}

	return triggers
}

// InboundLinks returns the links whose target is nodeID.
func (a *Automation) InboundLinks(nodeID string) []*Link {
	var links []*Link

	for _, link := range a.Links {
		if link.ToNodeID == nodeID {
			links = append(links, link)
		}
	}

	return links
}
