// Package dsl implements the restricted condition language used by rules,
// field gates and decisions. Conditions are data, never code: only the
// operators in the allow-list are recognised and nesting is bounded.
package dsl

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Operator names a logical or comparison operation.
type Operator string

// Logical operators.
const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"
	OpNot Operator = "not"
)

// Comparison operators.
const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
	OpIsEmpty     Operator = "is_empty"
	OpNotEmpty    Operator = "not_empty"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
)

// MaxNestingDepth bounds how deep and/or/not operands may nest.
const MaxNestingDepth = 5

var allowedOperators = map[Operator]bool{
	OpAnd: true, OpOr: true, OpNot: true,
	OpEquals: true, OpNotEquals: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpNotIn: true,
	OpExists: true, OpNotExists: true,
	OpIsEmpty: true, OpNotEmpty: true,
	OpContains: true, OpNotContains: true,
}

// IsAllowed reports whether op is part of the language.
func IsAllowed(op Operator) bool {
	return allowedOperators[op]
}

// Condition is either a logical node (and/or over Conditions, not over
// Condition) or a comparison of Field against Value/Values.
//
// A condition may also be written as a bare string ("tipo == 'completo'");
// that form is kept in Expression and evaluated by EvaluateExpression.
type Condition struct {
	Operator   Operator     `json:"operator,omitempty" yaml:"operator,omitempty"`
	Conditions []*Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Condition  *Condition   `json:"condition,omitempty" yaml:"condition,omitempty"`
	Field      string       `json:"field,omitempty" yaml:"field,omitempty"`
	Value      any          `json:"value" yaml:"value,omitempty"`
	Values     []any        `json:"values,omitempty" yaml:"values,omitempty"`

	Expression string `json:"-" yaml:"-"`
}

// And builds a conjunction.
func And(conds ...*Condition) *Condition {
	return &Condition{Operator: OpAnd, Conditions: conds}
}

// Or builds a disjunction.
func Or(conds ...*Condition) *Condition {
	return &Condition{Operator: OpOr, Conditions: conds}
}

// Not negates c.
func Not(c *Condition) *Condition {
	return &Condition{Operator: OpNot, Condition: c}
}

// Compare builds a comparison node.
func Compare(op Operator, field string, value any) *Condition {
	return &Condition{Operator: op, Field: field, Value: value}
}

// IsLogical reports whether c combines other conditions.
func (c *Condition) IsLogical() bool {
	return c != nil && (c.Operator == OpAnd || c.Operator == OpOr || c.Operator == OpNot)
}

// IsEmpty reports whether c carries no gate at all.
func (c *Condition) IsEmpty() bool {
	return c == nil || (c.Operator == "" && c.Expression == "")
}

type conditionFields Condition

// UnmarshalYAML accepts both the mapping form and the string shorthand.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*c = Condition{Expression: s}
		return nil
	}
	var f conditionFields
	if err := node.Decode(&f); err != nil {
		return err
	}
	*c = Condition(f)
	return nil
}

// UnmarshalJSON accepts both the object form and the string shorthand.
func (c *Condition) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = Condition{Expression: s}
		return nil
	}
	var f conditionFields
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return err
	}
	*c = Condition(f)
	return nil
}

// MarshalJSON writes the string shorthand back as a string.
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.Operator == "" && c.Expression != "" {
		return json.Marshal(c.Expression)
	}
	return json.Marshal(conditionFields(c))
}
