package conditions

import "github.com/fera765/flui/pkg/models"

// Condition is a compiled models.Condition. It is immutable once built and
// safe for concurrent use.
type Condition struct {
	id          string
	name        string
	linkedNodes []string
	predicate   *Predicate
	err         error
}

// New compiles def. A predicate that does not parse is kept as an error and
// the condition never holds.
func New(def *models.Condition) *Condition {
	condition := &Condition{
		id:          def.ID,
		name:        def.Name,
		linkedNodes: append([]string{}, def.LinkedNodes...),
	}

	if def.Rule != nil {
		condition.predicate, condition.err = FromRule(def.Rule.Field, def.Rule.Operator, def.Rule.Value)
	} else {
		condition.predicate, condition.err = Parse(def.Predicate)
	}

	return condition
}

func (c *Condition) ID() string {
	return c.id
}

func (c *Condition) Name() string {
	return c.name
}

// LinkedNodes returns a copy of the node ids activated by this condition.
func (c *Condition) LinkedNodes() []string {
	return append([]string{}, c.linkedNodes...)
}

// Err returns the compile error, if any.
func (c *Condition) Err() error {
	return c.err
}

// Evaluate reports whether the condition holds for input. Any parse or
// evaluation error yields false.
func (c *Condition) Evaluate(input map[string]any) bool {
	ok, err := c.Check(input)

	return err == nil && ok
}

// Check is Evaluate with the underlying error exposed.
func (c *Condition) Check(input map[string]any) (bool, error) {
	if c.err != nil {
		return false, c.err
	}

	ok, err := c.predicate.Eval(input)
	if err != nil {
		return false, &EvaluationError{Predicate: c.id, Err: err}
	}

	return ok, nil
}
