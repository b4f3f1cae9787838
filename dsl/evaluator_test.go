package dsl

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		cond     *Condition
		data     map[string]any
		expected bool
	}{
		{"equals match", Compare(OpEquals, "status", "active"), map[string]any{"status": "active"}, true},
		{"equals is case sensitive", Compare(OpEquals, "status", "active"), map[string]any{"status": "ACTIVE"}, false},
		{"equals boolean-ish string", Compare(OpEquals, "comision", true), map[string]any{"comision": "Si"}, true},
		{"equals numbers across types", Compare(OpEquals, "n", 3), map[string]any{"n": 3.0}, true},
		{"equals missing field", Compare(OpEquals, "n", 3), map[string]any{}, false},
		{"not equals", Compare(OpNotEquals, "tipo", "completo"), map[string]any{"tipo": "abreviado"}, true},
		{"gt numeric string", Compare(OpGt, "count", 5), map[string]any{"count": "10"}, true},
		{"gt unparsable", Compare(OpGt, "count", 5), map[string]any{"count": "abc"}, false},
		{"gt missing", Compare(OpGt, "count", 5), map[string]any{}, false},
		{"gte equal", Compare(OpGte, "count", 5), map[string]any{"count": 5}, true},
		{"lt", Compare(OpLt, "count", 5), map[string]any{"count": 4.5}, true},
		{"lte", Compare(OpLte, "count", 5), map[string]any{"count": 6}, false},
		{"in", &Condition{Operator: OpIn, Field: "tipo", Values: []any{"a", "b"}}, map[string]any{"tipo": "b"}, true},
		{"not in", &Condition{Operator: OpNotIn, Field: "tipo", Values: []any{"a", "b"}}, map[string]any{"tipo": "c"}, true},
		{"in raw si/no list", &Condition{Operator: OpIn, Field: "x", Values: []any{"si", "no"}}, map[string]any{"x": "si"}, false},
		{"not in raw si/no list", &Condition{Operator: OpNotIn, Field: "x", Values: []any{"si", "no"}}, map[string]any{"x": "si"}, true},
		{"in bool list", &Condition{Operator: OpIn, Field: "x", Values: []any{true}}, map[string]any{"x": "si"}, true},
		{"in numeric list", &Condition{Operator: OpIn, Field: "n", Values: []any{1, 2}}, map[string]any{"n": 2.0}, true},
		{"exists", Compare(OpExists, "x", nil), map[string]any{"x": ""}, true},
		{"not exists", Compare(OpNotExists, "x", nil), map[string]any{}, true},
		{"is empty string", Compare(OpIsEmpty, "x", nil), map[string]any{"x": ""}, true},
		{"is empty list", Compare(OpIsEmpty, "x", nil), map[string]any{"x": []any{}}, true},
		{"is empty number", Compare(OpIsEmpty, "x", nil), map[string]any{"x": 0}, false},
		{"not empty", Compare(OpNotEmpty, "x", nil), map[string]any{"x": []any{1}}, true},
		{"not empty missing", Compare(OpNotEmpty, "x", nil), map[string]any{}, false},
		{"contains substring", Compare(OpContains, "x", "lio"), map[string]any{"x": "folio"}, true},
		{"contains list", Compare(OpContains, "x", 2), map[string]any{"x": []any{1, 2.0}}, true},
		{"contains missing", Compare(OpContains, "x", 2), map[string]any{}, false},
		{"not contains missing", Compare(OpNotContains, "x", 2), map[string]any{}, true},
		{"not contains scalar", Compare(OpNotContains, "x", 2), map[string]any{"x": 2}, true},
		{"dot path", Compare(OpEquals, "servicio.enabled", true), map[string]any{"servicio": map[string]any{"enabled": true}}, true},
		{"list index path", Compare(OpEquals, "dirs.0.nombre", "Ana"), map[string]any{"dirs": []any{map[string]any{"nombre": "Ana"}}}, true},
		{"and", And(Compare(OpExists, "a", nil), Compare(OpExists, "b", nil)), map[string]any{"a": 1}, false},
		{"or", Or(Compare(OpExists, "a", nil), Compare(OpExists, "b", nil)), map[string]any{"a": 1}, true},
		{"not", Not(Compare(OpExists, "a", nil)), map[string]any{}, true},
		{"empty and", And(), nil, true},
		{"empty or", Or(), nil, false},
		{"nil condition", nil, nil, true},
		{"expression equals", &Condition{Expression: "tipo == 'completo'"}, map[string]any{"tipo": "completo"}, true},
		{"expression not equals", &Condition{Expression: "tipo != 'completo'"}, map[string]any{}, true},
		{"expression bare field", &Condition{Expression: "auditada"}, map[string]any{"auditada": "si"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.cond, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluateRejectsUnknownOperator(t *testing.T) {
	_, err := Evaluate(And(Compare("regex", "x", ".*")), map[string]any{"x": "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperatorNotAllowed))

	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, Operator("regex"), evalErr.Operator)
	assert.Equal(t, 1, evalErr.Depth)
}

func nested(depth int) *Condition {
	c := Compare(OpExists, "x", nil)
	for i := 0; i < depth; i++ {
		c = And(c)
	}
	return c
}

func TestNestingLimit(t *testing.T) {
	data := map[string]any{"x": 1}

	ok, err := Evaluate(nested(MaxNestingDepth), data)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, Validate(nested(MaxNestingDepth)))

	_, err = Evaluate(nested(MaxNestingDepth+1), data)
	assert.ErrorIs(t, err, ErrNestingTooDeep)
	assert.ErrorIs(t, Validate(nested(MaxNestingDepth+1)), ErrNestingTooDeep)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate(Or(Compare(OpIn, "a", nil), Not(Compare(OpGt, "b", 1)))))
	assert.ErrorIs(t, Validate(Not(Compare("eval", "b", 1))), ErrOperatorNotAllowed)
}

func TestConditionDecoding(t *testing.T) {
	var fromYAML struct {
		Condition *Condition `yaml:"condition"`
		Gate      *Condition `yaml:"gate"`
	}
	src := `
condition:
  operator: and
  conditions:
    - operator: equals
      field: tipo
      value: completo
    - operator: not
      condition:
        operator: exists
        field: baja
gate: "auditada == 'si'"
`
	require.NoError(t, yaml.Unmarshal([]byte(src), &fromYAML))
	assert.Equal(t, OpAnd, fromYAML.Condition.Operator)
	require.Len(t, fromYAML.Condition.Conditions, 2)
	assert.Equal(t, OpExists, fromYAML.Condition.Conditions[1].Condition.Operator)
	assert.Equal(t, "auditada == 'si'", fromYAML.Gate.Expression)

	var fromJSON Condition
	require.NoError(t, json.Unmarshal([]byte(`"tipo == 'completo'"`), &fromJSON))
	assert.Equal(t, "tipo == 'completo'", fromJSON.Expression)

	out, err := json.Marshal(fromJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `"tipo == 'completo'"`, string(out))
}

func TestLookupAndSet(t *testing.T) {
	data := map[string]any{}
	Set(data, "a.b.c", 1)
	assert.Equal(t, 1, Lookup(data, "a.b.c"))
	assert.Nil(t, Lookup(data, "a.x.c"))
	assert.Nil(t, Lookup(data, ""))

	Set(data, "a.b", "flat")
	assert.Nil(t, Lookup(data, "a.b.c"))

	list := map[string]any{"l": []map[string]any{{"n": "x"}}}
	assert.Equal(t, "x", Lookup(list, "l.0.n"))
	assert.Nil(t, Lookup(list, "l.1.n"))
	assert.Nil(t, Lookup(list, "l.-1.n"))
}

func TestLogicalIdentities(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	leaf := func(present bool, n int) (*Condition, map[string]any) {
		data := map[string]any{}
		if present {
			data["x"] = n
		}
		return Compare(OpGt, "x", 0), data
	}

	properties.Property("double negation", prop.ForAll(
		func(present bool, n int) bool {
			c, data := leaf(present, n)
			plain, err1 := Evaluate(c, data)
			twice, err2 := Evaluate(Not(Not(c)), data)
			return err1 == nil && err2 == nil && plain == twice
		},
		gen.Bool(), gen.IntRange(-50, 50),
	))

	properties.Property("single operand and/or equal the operand", prop.ForAll(
		func(present bool, n int) bool {
			c, data := leaf(present, n)
			plain, _ := Evaluate(c, data)
			and, _ := Evaluate(And(c), data)
			or, _ := Evaluate(Or(c), data)
			return plain == and && plain == or
		},
		gen.Bool(), gen.IntRange(-50, 50),
	))

	properties.Property("not_equals negates equals", prop.ForAll(
		func(field, value string) bool {
			data := map[string]any{"f": field}
			eq, _ := Evaluate(Compare(OpEquals, "f", value), data)
			ne, _ := Evaluate(Compare(OpNotEquals, "f", value), data)
			return eq != ne
		},
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}
