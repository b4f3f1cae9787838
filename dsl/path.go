package dsl

import (
	"strconv"
	"strings"

	"github.com/liamcoop/cartagen/coerce"
)

// Lookup resolves a dot path such as "servicio.enabled" or "directores.0.nombre"
// against data. Numeric segments index lists. Missing paths yield nil.
func Lookup(data map[string]any, path string) any {
	if path == "" || len(data) == 0 {
		return nil
	}
	var current any = data
	for _, key := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			current = node[key]
		case map[string]string:
			v, ok := node[key]
			if !ok {
				return nil
			}
			current = v
		case []any:
			current = index(len(node), key, func(i int) any { return node[i] })
		case []map[string]any:
			current = index(len(node), key, func(i int) any { return node[i] })
		default:
			return nil
		}
		if current == nil {
			return nil
		}
	}
	return current
}

func index(n int, key string, at func(int) any) any {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= n {
		return nil
	}
	return at(i)
}

// Set writes value at a dot path, creating intermediate maps as needed.
// Intermediate values that are not maps are replaced.
func Set(data map[string]any, path string, value any) {
	if path == "" || data == nil {
		return
	}
	keys := strings.Split(path, ".")
	current := data
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[key] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = value
}

// EvaluateExpression evaluates the string shorthand used by field gates:
// "field == 'value'", "field != 'value'" or a bare boolean field name.
func EvaluateExpression(expr string, data map[string]any) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}
	if left, right, ok := strings.Cut(expr, "=="); ok && !strings.Contains(right, "==") {
		v, isString := Lookup(data, strings.TrimSpace(left)).(string)
		return isString && v == unquote(right)
	}
	if left, right, ok := strings.Cut(expr, "!="); ok && !strings.Contains(right, "!=") {
		v, isString := Lookup(data, strings.TrimSpace(left)).(string)
		return !isString || v != unquote(right)
	}
	switch v := Lookup(data, expr).(type) {
	case bool:
		return v
	case string:
		return coerce.Truthy(v)
	default:
		return !coerce.Falsy(v)
	}
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `'"`)
}

// Validate checks a condition tree without evaluating it: every operator
// must be allowed and nesting must stay within MaxNestingDepth.
func Validate(cond *Condition) error {
	return validate(cond, 0)
}

func validate(cond *Condition, depth int) error {
	if cond.IsEmpty() {
		return nil
	}
	if depth > MaxNestingDepth {
		return &EvaluationError{Operator: cond.Operator, Depth: depth, Err: ErrNestingTooDeep}
	}
	if cond.Operator == "" {
		return nil
	}
	if !IsAllowed(cond.Operator) {
		return &EvaluationError{Operator: cond.Operator, Depth: depth, Err: ErrOperatorNotAllowed}
	}
	for _, c := range cond.Conditions {
		if err := validate(c, depth+1); err != nil {
			return err
		}
	}
	if cond.Operator == OpNot {
		return validate(cond.Condition, depth+1)
	}
	return nil
}
