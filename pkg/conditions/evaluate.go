package conditions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Eval reports whether the predicate holds for input. Missing paths and type
// mismatches are returned as errors.
func (p *Predicate) Eval(input map[string]any) (bool, error) {
	result, err := p.eval(input)
	if err != nil {
		return false, err
	}

	return result != p.Negate, nil
}

func (p *Predicate) eval(input map[string]any) (bool, error) {
	switch p.Operator {
	case OpAnd:
		for _, operand := range p.Operands {
			ok, err := operand.Eval(input)
			if err != nil || !ok {
				return false, err
			}
		}

		return true, nil
	case OpOr:
		var firstErr error

		for _, operand := range p.Operands {
			ok, err := operand.Eval(input)
			if ok {
				return true, nil
			}

			if err != nil && firstErr == nil {
				firstErr = err
			}
		}

		return false, firstErr
	}

	value, found := lookup(input, p.Path)

	switch p.Operator {
	case OpExists:
		return found, nil
	case OpIsEmpty:
		return !found || isEmpty(value), nil
	}

	if !found {
		return false, fmt.Errorf("%w: %s", ErrPathNotFound, strings.Join(p.Path, "."))
	}

	switch p.Operator {
	case OpTruthy:
		return truthy(value), nil
	case OpEquals:
		return equal(value, p.Value), nil
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		cmp, err := compare(value, p.Value)
		if err != nil {
			return false, err
		}

		switch p.Operator {
		case OpGreaterThan:
			return cmp > 0, nil
		case OpGreaterThanOrEqual:
			return cmp >= 0, nil
		case OpLessThan:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case OpContains:
		return contains(value, p.Value)
	case OpIn:
		return contains(p.Value, value)
	case OpStartsWith, OpEndsWith:
		s, prefix, err := stringPair(value, p.Value)
		if err != nil {
			return false, err
		}

		if p.Operator == OpStartsWith {
			return strings.HasPrefix(s, prefix), nil
		}

		return strings.HasSuffix(s, prefix), nil
	case OpMatches:
		s, ok := value.(string)
		if !ok || p.pattern == nil {
			return false, fmt.Errorf("%w: matches on %T", ErrTypeMismatch, value)
		}

		return p.pattern.MatchString(s), nil
	}

	return false, fmt.Errorf("%w: operator %q", ErrUnsupportedExpression, p.Operator)
}

func lookup(input map[string]any, path []string) (any, bool) {
	var current any = input

	for _, segment := range path {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			value, ok := reflectLookup(current, segment)
			if !ok {
				return nil, false
			}

			current = value
		}
	}

	return current, true
}

func reflectLookup(current any, segment string) (any, bool) {
	rv := reflect.ValueOf(current)

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}

		value := rv.MapIndex(reflect.ValueOf(segment).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return nil, false
		}

		return value.Interface(), true
	case reflect.Slice, reflect.Array:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= rv.Len() {
			return nil, false
		}

		return rv.Index(index).Interface(), true
	default:
		return nil, false
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}

	if _, ok := number(b); ok {
		return false
	}

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return reflect.DeepEqual(a, b)
}

func compare(a, b any) (int, error) {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}

	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	}

	return 0, fmt.Errorf("%w: cannot order %T and %T", ErrTypeMismatch, a, b)
}

func contains(collection, element any) (bool, error) {
	switch c := collection.(type) {
	case string:
		s, ok := element.(string)
		if !ok {
			return false, fmt.Errorf("%w: string contains %T", ErrTypeMismatch, element)
		}

		return strings.Contains(c, s), nil
	case []any:
		for _, item := range c {
			if equal(item, element) {
				return true, nil
			}
		}

		return false, nil
	case map[string]any:
		key, ok := element.(string)
		if !ok {
			return false, fmt.Errorf("%w: map key %T", ErrTypeMismatch, element)
		}

		_, found := c[key]

		return found, nil
	}

	rv := reflect.ValueOf(collection)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := range rv.Len() {
			if equal(rv.Index(i).Interface(), element) {
				return true, nil
			}
		}

		return false, nil
	}

	return false, fmt.Errorf("%w: contains on %T", ErrTypeMismatch, collection)
}

func stringPair(a, b any) (string, string, error) {
	x, ok := a.(string)
	if !ok {
		return "", "", fmt.Errorf("%w: expected string, got %T", ErrTypeMismatch, a)
	}

	y, ok := b.(string)
	if !ok {
		return "", "", fmt.Errorf("%w: expected string, got %T", ErrTypeMismatch, b)
	}

	return x, y, nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}

	switch value := v.(type) {
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	default:
		return false
	}
}

func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}

		return value != ""
	}

	if n, ok := number(v); ok {
		return n != 0
	}

	return !isEmpty(v)
}
