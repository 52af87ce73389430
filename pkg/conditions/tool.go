package conditions

import (
	"slices"

	"github.com/fera765/flui/pkg/models"
)

// Match is the result of evaluating a condition tool.
type Match struct {
	Satisfied     bool     `json:"satisfied"`
	ConditionID   string   `json:"conditionId,omitempty"`
	ConditionName string   `json:"conditionName,omitempty"`
	LinkedNodes   []string `json:"linkedNodes"`
}

// Tool is a compiled models.ConditionTool.
type Tool struct {
	id         string
	name       string
	mode       models.MatchMode
	conditions []*Condition
}

func NewTool(def *models.ConditionTool) *Tool {
	tool := &Tool{
		id:         def.ID,
		name:       def.Name,
		mode:       def.MatchMode,
		conditions: make([]*Condition, 0, len(def.Conditions)),
	}

	if tool.mode == "" {
		tool.mode = models.MatchModeFirst
	}

	for _, condition := range def.Conditions {
		tool.conditions = append(tool.conditions, New(condition))
	}

	return tool
}

func (t *Tool) ID() string {
	return t.id
}

func (t *Tool) Mode() models.MatchMode {
	return t.mode
}

// Errors returns the compile errors of the tool's conditions, in order.
func (t *Tool) Errors() []error {
	var errs []error

	for _, condition := range t.conditions {
		if err := condition.Err(); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// LinkedNodes returns every node id any condition can activate, in order and
// without duplicates.
func (t *Tool) LinkedNodes() []string {
	var nodes []string

	for _, condition := range t.conditions {
		for _, id := range condition.linkedNodes {
			if !slices.Contains(nodes, id) {
				nodes = append(nodes, id)
			}
		}
	}

	return nodes
}

// EvaluateConditions returns the first satisfied condition in declared order.
func (t *Tool) EvaluateConditions(input map[string]any) Match {
	for _, condition := range t.conditions {
		if condition.Evaluate(input) {
			return matchOf(condition)
		}
	}

	return Match{Satisfied: false, LinkedNodes: []string{}}
}

// EvaluateAllConditions returns every satisfied condition in declared order.
func (t *Tool) EvaluateAllConditions(input map[string]any) []Match {
	matches := []Match{}

	for _, condition := range t.conditions {
		if condition.Evaluate(input) {
			matches = append(matches, matchOf(condition))
		}
	}

	return matches
}

// Route evaluates the tool according to its match mode and returns the
// resulting matches and the selected node ids.
func (t *Tool) Route(input map[string]any) ([]Match, []string) {
	if t.mode != models.MatchModeAll {
		match := t.EvaluateConditions(input)
		if !match.Satisfied {
			return nil, match.LinkedNodes
		}

		return []Match{match}, match.LinkedNodes
	}

	matches := t.EvaluateAllConditions(input)
	selected := []string{}

	for _, match := range matches {
		for _, id := range match.LinkedNodes {
			if !slices.Contains(selected, id) {
				selected = append(selected, id)
			}
		}
	}

	return matches, selected
}

func matchOf(condition *Condition) Match {
	return Match{
		Satisfied:     true,
		ConditionID:   condition.id,
		ConditionName: condition.name,
		LinkedNodes:   condition.LinkedNodes(),
	}
}
