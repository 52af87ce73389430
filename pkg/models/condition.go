package models

// ConditionToolType is the fixed type tag carried by every condition tool.
const ConditionToolType = "atoom"

// MatchMode selects how a condition tool routes when several conditions hold.
type MatchMode string

const (
	MatchModeFirst MatchMode = "first"
	MatchModeAll   MatchMode = "all"
)

// Rule is the structured form of a predicate: field path, operator, literal.
type Rule struct {
	Field    string `json:"field"    validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    any    `json:"value,omitempty"`
}

// Condition activates LinkedNodes when its predicate holds for the input.
// Either Predicate or Rule must be set; Rule wins when both are.
type Condition struct {
	ID          string   `json:"id"                  validate:"required"`
	Name        string   `json:"name"`
	Predicate   string   `json:"predicate,omitempty" validate:"required_without=Rule"`
	Rule        *Rule    `json:"rule,omitempty"`
	LinkedNodes []string `json:"linkedNodes"`
}

// ConditionTool is an ordered list of conditions evaluated against one input.
type ConditionTool struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"                validate:"required"`
	Description string       `json:"description,omitempty"`
	Type        string       `json:"type"`
	MatchMode   MatchMode    `json:"matchMode,omitempty" validate:"omitempty,oneof=first all"`
	Conditions  []*Condition `json:"conditions"          validate:"required,min=1,dive,required"`
}
