// Package conditions evaluates branch conditions against a node input.
//
// Predicates are parsed once into a small structured form: a field path under
// the bound variable "input", an operator and a literal. Nothing else from the
// expression language is accepted, and nothing is ever executed.
package conditions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Operator names follow the rule form accepted by models.Rule.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpContains           Operator = "contains"
	OpGreaterThan        Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThan           Operator = "lessThan"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpStartsWith         Operator = "startsWith"
	OpEndsWith           Operator = "endsWith"
	OpIn                 Operator = "in"
	OpMatches            Operator = "matches"
	OpIsEmpty            Operator = "isEmpty"
	OpExists             Operator = "exists"
	OpTruthy             Operator = "isTruthy"
	OpAnd                Operator = "and"
	OpOr                 Operator = "or"
)

const rootVariable = "input"

// Predicate is a parsed condition. Leaf predicates compare the value at Path
// with Value; OpAnd and OpOr combine Operands.
type Predicate struct {
	Operator Operator
	Path     []string
	Value    any
	Negate   bool
	Operands []*Predicate

	pattern *regexp.Regexp
}

var binaryOperators = map[string]Operator{
	"==":         OpEquals,
	"!=":         OpEquals,
	">":          OpGreaterThan,
	">=":         OpGreaterThanOrEqual,
	"<":          OpLessThan,
	"<=":         OpLessThanOrEqual,
	"contains":   OpContains,
	"startsWith": OpStartsWith,
	"endsWith":   OpEndsWith,
	"in":         OpIn,
	"matches":    OpMatches,
}

// mirrored gives the operator to use when the literal is on the left side.
var mirrored = map[Operator]Operator{
	OpEquals:             OpEquals,
	OpGreaterThan:        OpLessThan,
	OpGreaterThanOrEqual: OpLessThanOrEqual,
	OpLessThan:           OpGreaterThan,
	OpLessThanOrEqual:    OpGreaterThanOrEqual,
	OpIn:                 OpContains,
}

var callOperators = map[string]struct {
	op     Operator
	negate bool
}{
	"isEmpty":    {OpIsEmpty, false},
	"isNotEmpty": {OpIsEmpty, true},
	"exists":     {OpExists, false},
}

// Parse turns a predicate expression such as `input.order.total >= 100` into
// a Predicate.
func Parse(source string) (*Predicate, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &EvaluationError{Predicate: source, Err: ErrEmptyPredicate}
	}

	tree, err := parser.Parse(source)
	if err != nil {
		return nil, &EvaluationError{Predicate: source, Err: err}
	}

	predicate, err := fromNode(tree.Node)
	if err != nil {
		return nil, &EvaluationError{Predicate: source, Err: err}
	}

	return predicate, nil
}

func fromNode(node ast.Node) (*Predicate, error) {
	switch n := node.(type) {
	case *ast.UnaryNode:
		if n.Operator != "!" && n.Operator != "not" {
			return nil, fmt.Errorf("%w: unary %q", ErrUnsupportedExpression, n.Operator)
		}

		inner, err := fromNode(n.Node)
		if err != nil {
			return nil, err
		}

		inner.Negate = !inner.Negate

		return inner, nil
	case *ast.BinaryNode:
		return fromBinary(n)
	case *ast.CallNode:
		return fromCall(n)
	case *ast.MemberNode, *ast.IdentifierNode, *ast.ChainNode:
		path, err := memberPath(node)
		if err != nil {
			return nil, err
		}

		return &Predicate{Operator: OpTruthy, Path: path}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedExpression, node)
	}
}

func fromBinary(node *ast.BinaryNode) (*Predicate, error) {
	switch node.Operator {
	case "&&", "and", "||", "or":
		left, err := fromNode(node.Left)
		if err != nil {
			return nil, err
		}

		right, err := fromNode(node.Right)
		if err != nil {
			return nil, err
		}

		op := OpAnd
		if node.Operator == "||" || node.Operator == "or" {
			op = OpOr
		}

		return &Predicate{Operator: op, Operands: []*Predicate{left, right}}, nil
	}

	op, ok := binaryOperators[node.Operator]
	if !ok {
		return nil, fmt.Errorf("%w: operator %q", ErrUnsupportedExpression, node.Operator)
	}

	literalNode := node.Right

	path, err := memberPath(node.Left)
	if err != nil {
		flipped, ok := mirrored[op]
		if !ok {
			return nil, err
		}

		rightPath, rightErr := memberPath(node.Right)
		if rightErr != nil {
			return nil, err
		}

		path, literalNode, op = rightPath, node.Left, flipped
	}

	value, err := literal(literalNode)
	if err != nil {
		return nil, err
	}

	return newLeaf(op, path, value, node.Operator == "!=")
}

func fromCall(node *ast.CallNode) (*Predicate, error) {
	callee, ok := node.Callee.(*ast.IdentifierNode)
	if !ok {
		return nil, fmt.Errorf("%w: call", ErrUnsupportedExpression)
	}

	call, ok := callOperators[callee.Value]
	if !ok {
		return nil, fmt.Errorf("%w: function %q", ErrUnsupportedExpression, callee.Value)
	}

	if len(node.Arguments) != 1 {
		return nil, fmt.Errorf("%w: %s expects one argument", ErrUnsupportedExpression, callee.Value)
	}

	path, err := memberPath(node.Arguments[0])
	if err != nil {
		return nil, err
	}

	return &Predicate{Operator: call.op, Path: path, Negate: call.negate}, nil
}

func newLeaf(op Operator, path []string, value any, negate bool) (*Predicate, error) {
	predicate := &Predicate{Operator: op, Path: path, Value: value, Negate: negate}

	switch op {
	case OpMatches:
		pattern, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: matches expects a string pattern", ErrUnsupportedExpression)
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}

		predicate.pattern = re
	case OpIn:
		switch value.(type) {
		case []any, string:
		default:
			return nil, fmt.Errorf("%w: in expects a list or string", ErrUnsupportedExpression)
		}
	}

	return predicate, nil
}

// memberPath accepts only `input` followed by property or index access.
func memberPath(node ast.Node) ([]string, error) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		if n.Value != rootVariable {
			return nil, fmt.Errorf("%w: %q", ErrUnknownIdentifier, n.Value)
		}

		return []string{}, nil
	case *ast.ChainNode:
		return memberPath(n.Node)
	case *ast.MemberNode:
		if n.Method {
			return nil, fmt.Errorf("%w: method call", ErrUnsupportedExpression)
		}

		parent, err := memberPath(n.Node)
		if err != nil {
			return nil, err
		}

		switch property := n.Property.(type) {
		case *ast.StringNode:
			return append(parent, property.Value), nil
		case *ast.IntegerNode:
			return append(parent, strconv.Itoa(property.Value)), nil
		default:
			return nil, fmt.Errorf("%w: computed property", ErrUnsupportedExpression)
		}
	default:
		return nil, fmt.Errorf("%w: expected a path under %q", ErrUnsupportedExpression, rootVariable)
	}
}

func literal(node ast.Node) (any, error) {
	switch n := node.(type) {
	case *ast.StringNode:
		return n.Value, nil
	case *ast.IntegerNode:
		return n.Value, nil
	case *ast.FloatNode:
		return n.Value, nil
	case *ast.BoolNode:
		return n.Value, nil
	case *ast.NilNode:
		return nil, nil
	case *ast.UnaryNode:
		if n.Operator != "-" {
			break
		}

		switch inner := n.Node.(type) {
		case *ast.IntegerNode:
			return -inner.Value, nil
		case *ast.FloatNode:
			return -inner.Value, nil
		}
	case *ast.ArrayNode:
		values := make([]any, 0, len(n.Nodes))

		for _, element := range n.Nodes {
			value, err := literal(element)
			if err != nil {
				return nil, err
			}

			values = append(values, value)
		}

		return values, nil
	}

	return nil, fmt.Errorf("%w: expected a literal", ErrUnsupportedExpression)
}

var ruleOperators = map[string]struct {
	op     Operator
	negate bool
}{
	"equals":             {OpEquals, false},
	"notEquals":          {OpEquals, true},
	"contains":           {OpContains, false},
	"notContains":        {OpContains, true},
	"greaterThan":        {OpGreaterThan, false},
	"greaterThanOrEqual": {OpGreaterThanOrEqual, false},
	"lessThan":           {OpLessThan, false},
	"lessThanOrEqual":    {OpLessThanOrEqual, false},
	"startsWith":         {OpStartsWith, false},
	"endsWith":           {OpEndsWith, false},
	"in":                 {OpIn, false},
	"matches":            {OpMatches, false},
	"isEmpty":            {OpIsEmpty, false},
	"isNotEmpty":         {OpIsEmpty, true},
	"exists":             {OpExists, false},
	"isTruthy":           {OpTruthy, false},
}

// FromRule builds a Predicate from the structured rule form. Field is a dotted
// path, optionally prefixed with "input.".
func FromRule(field, operator string, value any) (*Predicate, error) {
	rule, ok := ruleOperators[operator]
	if !ok {
		return nil, &EvaluationError{Predicate: field + " " + operator, Err: fmt.Errorf("%w: operator %q", ErrUnsupportedExpression, operator)}
	}

	field = strings.TrimPrefix(strings.TrimPrefix(field, rootVariable), ".")

	path := []string{}
	if field != "" {
		path = strings.Split(field, ".")
	}

	predicate, err := newLeaf(rule.op, path, value, rule.negate)
	if err != nil {
		return nil, &EvaluationError{Predicate: field + " " + operator, Err: err}
	}

	return predicate, nil
}
