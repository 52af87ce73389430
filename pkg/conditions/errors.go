package conditions

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPredicate        = errors.New("empty predicate")
	ErrUnsupportedExpression = errors.New("unsupported expression")
	ErrUnknownIdentifier     = errors.New("unknown identifier")
	ErrPathNotFound          = errors.New("path not found")
	ErrTypeMismatch          = errors.New("type mismatch")
)

// EvaluationError describes why a predicate could not be parsed or evaluated.
// Condition.Evaluate turns it into false.
type EvaluationError struct {
	Predicate string
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("predicate %q: %v", e.Predicate, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
