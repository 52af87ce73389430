package models

import "time"

// SystemTool describes a tool instance. Its executor is built from Type by
// the registry, with Config as construction parameters.
type SystemTool struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"                  validate:"required"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type"                  validate:"required"`
	Config      map[string]any `json:"config,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// IsTrigger reports whether the tool is one of the trigger:* kinds.
func (t *SystemTool) IsTrigger() bool {
	return len(t.Type) > len("trigger:") && t.Type[:len("trigger:")] == "trigger:"
}

// Agent describes an agent instance served by Provider.
type Agent struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"                   validate:"required"`
	Description  string         `json:"description,omitempty"`
	Provider     string         `json:"provider"               validate:"required"`
	Instructions string         `json:"instructions,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}
