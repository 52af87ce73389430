package conditions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderInput() map[string]any {
	return map[string]any{
		"action": "buy",
		"order": map[string]any{
			"total":    150.5,
			"quantity": 3,
			"sku":      "SKU-991",
			"tags":     []any{"priority", "retail"},
			"notes":    "",
		},
		"active": true,
		"items":  []any{"first", "second"},
	}
}

func TestParse_Evaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		predicate string
		expected  bool
	}{
		{"equals string", `input.action == "buy"`, true},
		{"equals mismatch", `input.action == "sell"`, false},
		{"not equals", `input.action != "sell"`, true},
		{"literal on the left", `"buy" == input.action`, true},
		{"int against float", `input.order.quantity == 3.0`, true},
		{"greater than", `input.order.total > 100`, true},
		{"greater or equal", `input.order.quantity >= 3`, true},
		{"less than", `input.order.total < 100`, false},
		{"mirrored less than", `100 < input.order.total`, true},
		{"negative literal", `input.order.total > -1`, true},
		{"string contains", `input.order.sku contains "991"`, true},
		{"array contains", `input.order.tags contains "retail"`, true},
		{"starts with", `input.order.sku startsWith "SKU-"`, true},
		{"ends with", `input.order.sku endsWith "000"`, false},
		{"in list", `input.action in ["buy", "hold"]`, true},
		{"not in list", `input.action not in ["buy", "hold"]`, false},
		{"literal in array path", `"priority" in input.order.tags`, true},
		{"matches", `input.order.sku matches "^SKU-[0-9]+$"`, true},
		{"negation", `!(input.action == "buy")`, false},
		{"not keyword", `not (input.action == "sell")`, true},
		{"bare path truthy", `input.active`, true},
		{"index access", `input.items[1] == "second"`, true},
		{"is empty", `isEmpty(input.order.notes)`, true},
		{"is empty on missing", `isEmpty(input.order.missing)`, true},
		{"is not empty", `isNotEmpty(input.order.tags)`, true},
		{"exists", `exists(input.order.total)`, true},
		{"exists missing", `exists(input.nope)`, false},
		{"and", `input.action == "buy" && input.order.total > 100`, true},
		{"or", `input.action == "sell" || input.active`, true},
		{"missing path fails closed", `input.customer.id == 1`, false},
		{"negated missing path fails closed", `input.customer.id != 1`, false},
		{"type mismatch fails closed", `input.action > 3`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			predicate, err := Parse(tt.predicate)
			require.NoError(t, err)

			ok, _ := predicate.Eval(orderInput())
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		predicate string
		target    error
	}{
		{"empty", "   ", ErrEmptyPredicate},
		{"unknown identifier", `env.HOME == "x"`, ErrUnknownIdentifier},
		{"function call", `len(input.items) > 1`, ErrUnsupportedExpression},
		{"unknown function", `launch(input.items)`, ErrUnsupportedExpression},
		{"path on both sides", `input.a == input.b`, ErrUnsupportedExpression},
		{"method call", `input.name.upper() == "A"`, nil},
		{"syntax error", `input.===`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			predicate, err := Parse(tt.predicate)
			require.Error(t, err)
			assert.Nil(t, predicate)

			var evalErr *EvaluationError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, tt.predicate, evalErr.Predicate)

			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), err.Error())
			}
		})
	}
}

func TestParse_InvalidRegexp(t *testing.T) {
	_, err := Parse(`input.action matches "(("`)
	assert.Error(t, err)
}

func TestFromRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field    string
		operator string
		value    any
		expected bool
	}{
		{"action", "equals", "buy", true},
		{"input.action", "notEquals", "buy", false},
		{"order.tags", "notContains", "wholesale", true},
		{"order.total", "greaterThan", 150, true},
		{"order.total", "greaterThanOrEqual", 150.5, true},
		{"order.quantity", "lessThan", 3, false},
		{"order.quantity", "lessThanOrEqual", 3, true},
		{"order.sku", "startsWith", "SKU", true},
		{"order.sku", "endsWith", "991", true},
		{"action", "in", []any{"sell", "buy"}, true},
		{"order.sku", "matches", `\d+$`, true},
		{"order.notes", "isEmpty", nil, true},
		{"order.notes", "isNotEmpty", nil, false},
		{"order.missing", "exists", nil, false},
		{"active", "isTruthy", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.field+" "+tt.operator, func(t *testing.T) {
			t.Parallel()

			predicate, err := FromRule(tt.field, tt.operator, tt.value)
			require.NoError(t, err)

			ok, _ := predicate.Eval(orderInput())
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestFromRule_UnknownOperator(t *testing.T) {
	_, err := FromRule("action", "sortaEquals", "buy")
	assert.ErrorIs(t, err, ErrUnsupportedExpression)
}

func TestEval_ReportsMissingPath(t *testing.T) {
	predicate, err := Parse(`input.customer.id == 1`)
	require.NoError(t, err)

	ok, err := predicate.Eval(orderInput())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrPathNotFound)
}
