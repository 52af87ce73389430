package models

import "time"

// Webhook binds a token-protected public endpoint to a trigger node. ID is
// the trigger tool id, so there is at most one webhook per trigger tool.
type Webhook struct {
	ID           string         `json:"id"`
	AutomationID string         `json:"automationId"`
	NodeID       string         `json:"nodeId"`
	URL          string         `json:"url"`
	Token        string         `json:"token"`
	Method       string         `json:"method"`
	Inputs       map[string]any `json:"inputs,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
