package dsl

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/liamcoop/cartagen/coerce"
)

// ErrOperatorNotAllowed is returned for operators outside the allow-list.
var ErrOperatorNotAllowed = errors.New("operator not allowed")

// ErrNestingTooDeep is returned when a condition nests past MaxNestingDepth.
var ErrNestingTooDeep = errors.New("condition nesting too deep")

// EvaluationError reports a malformed condition. It always wraps one of the
// package sentinels so callers can use errors.Is.
type EvaluationError struct {
	Operator Operator
	Depth    int
	Err      error
}

func (e *EvaluationError) Error() string {
	if errors.Is(e.Err, ErrNestingTooDeep) {
		return fmt.Sprintf("dsl: %v (max %d)", e.Err, MaxNestingDepth)
	}
	return fmt.Sprintf("dsl: %v: %q", e.Err, e.Operator)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Evaluate reports whether cond holds for data. An empty condition is
// always true. Errors are returned only for malformed conditions; values
// that cannot be compared make the comparison false instead.
func Evaluate(cond *Condition, data map[string]any) (bool, error) {
	return evaluate(cond, data, 0)
}

func evaluate(cond *Condition, data map[string]any, depth int) (bool, error) {
	if cond.IsEmpty() {
		return true, nil
	}
	if depth > MaxNestingDepth {
		return false, &EvaluationError{Operator: cond.Operator, Depth: depth, Err: ErrNestingTooDeep}
	}
	if cond.Operator == "" {
		return EvaluateExpression(cond.Expression, data), nil
	}
	if !IsAllowed(cond.Operator) {
		return false, &EvaluationError{Operator: cond.Operator, Depth: depth, Err: ErrOperatorNotAllowed}
	}

	switch cond.Operator {
	case OpAnd:
		for _, c := range cond.Conditions {
			ok, err := evaluate(c, data, depth+1)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case OpOr:
		for _, c := range cond.Conditions {
			ok, err := evaluate(c, data, depth+1)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case OpNot:
		if cond.Condition.IsEmpty() {
			return true, nil
		}
		ok, err := evaluate(cond.Condition, data, depth+1)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}

	var fieldValue any
	if cond.Field != "" {
		fieldValue = Lookup(data, cond.Field)
	}
	return compare(cond.Operator, coerce.NormalizeBool(fieldValue), coerce.NormalizeBool(cond.Value), cond.Values), nil
}

func compare(op Operator, fieldValue, value any, values []any) bool {
	switch op {
	case OpEquals:
		return looseEqual(fieldValue, value)
	case OpNotEquals:
		return !looseEqual(fieldValue, value)
	case OpGt, OpGte, OpLt, OpLte:
		return compareNumeric(op, fieldValue, value)
	case OpIn:
		return memberOf(fieldValue, values)
	case OpNotIn:
		return !memberOf(fieldValue, values)
	case OpExists:
		return fieldValue != nil
	case OpNotExists:
		return fieldValue == nil
	case OpIsEmpty:
		if fieldValue == nil {
			return true
		}
		if n, ok := length(fieldValue); ok {
			return n == 0
		}
		return false
	case OpNotEmpty:
		if fieldValue == nil {
			return false
		}
		if n, ok := length(fieldValue); ok {
			return n > 0
		}
		return true
	case OpContains:
		if fieldValue == nil {
			return false
		}
		return containsValue(fieldValue, value)
	case OpNotContains:
		if fieldValue == nil {
			return true
		}
		if !isContainer(fieldValue) {
			return true
		}
		return !containsValue(fieldValue, value)
	}
	return false
}

func compareNumeric(op Operator, fieldValue, value any) bool {
	if fieldValue == nil {
		return false
	}
	left, ok := coerce.ToFloat(fieldValue)
	if !ok {
		return false
	}
	right, ok := coerce.ToFloat(value)
	if !ok {
		return false
	}
	switch op {
	case OpGt:
		return left > right
	case OpGte:
		return left >= right
	case OpLt:
		return left < right
	default:
		return left <= right
	}
}

// memberOf compares against the values exactly as configured; only the
// looked-up field value has been boolean-normalised.
func memberOf(v any, values []any) bool {
	for _, candidate := range values {
		if looseEqual(v, candidate) {
			return true
		}
	}
	return false
}

// looseEqual compares numbers by value regardless of their Go type and
// everything else structurally. Strings compare case-sensitively.
func looseEqual(a, b any) bool {
	if coerce.IsNumber(a) && coerce.IsNumber(b) {
		fa, _ := coerce.ToFloat(a)
		fb, _ := coerce.ToFloat(b)
		return fa == fb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

func length(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		return len(t), true
	case []any:
		return len(t), true
	case map[string]any:
		return len(t), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}

func isContainer(v any) bool {
	if _, ok := v.(string); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
}

func containsValue(container, value any) bool {
	if s, ok := container.(string); ok {
		return strings.Contains(s, coerce.String(value))
	}
	rv := reflect.ValueOf(container)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if looseEqual(rv.Index(i).Interface(), value) {
			return true
		}
	}
	return false
}
