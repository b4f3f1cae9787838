// Package validation checks form data against the field specs of a pack.
// Problems with the input are collected into a Result; an error is returned
// only when a field gate condition itself cannot be evaluated.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/liamcoop/cartagen/coerce"
	"github.com/liamcoop/cartagen/dsl"
	"github.com/liamcoop/cartagen/internal/logger"
	"github.com/liamcoop/cartagen/plugin"
)

// Error codes.
const (
	CodeRequired  = "required"
	CodeType      = "type_error"
	CodeEnum      = "enum_error"
	CodeMaxLength = "max_length"
	CodeMinLength = "min_length"
	CodePattern   = "pattern"
	CodeMinValue  = "min_value"
	CodeMaxValue  = "max_value"
)

// Error is one problem with one field. List item fields are addressed as
// "field[i].sub".
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Value   any    `json:"value,omitempty"`
}

// Result aggregates errors and warnings. Valid is false as soon as an error
// is added.
type Result struct {
	Valid    bool    `json:"is_valid"`
	Errors   []Error `json:"errors"`
	Warnings []Error `json:"warnings"`
}

func newResult() *Result {
	return &Result{Valid: true, Errors: []Error{}, Warnings: []Error{}}
}

// AddError records a blocking problem.
func (r *Result) AddError(field, message, code string, value any) {
	r.Errors = append(r.Errors, Error{Field: field, Message: message, Code: code, Value: value})
	r.Valid = false
}

// AddWarning records a non-blocking problem.
func (r *Result) AddWarning(field, message, code string, value any) {
	r.Warnings = append(r.Warnings, Error{Field: field, Message: message, Code: code, Value: value})
}

// Messages renders the errors as "field: message".
func (r *Result) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Field + ": " + e.Message
	}
	return out
}

// Options tunes a validation pass.
type Options struct {
	// SkipRequired disables the required check, for validating drafts.
	SkipRequired bool
}

// Validator validates data for one pack.
type Validator struct {
	pack *plugin.Pack
}

// New returns a validator for pack.
func New(pack *plugin.Pack) *Validator {
	return &Validator{pack: pack}
}

// Validate checks data field by field in declaration order. A field gate
// that fails to evaluate aborts validation with the DSL error.
func (v *Validator) Validate(data map[string]any, opts Options) (*Result, error) {
	result := newResult()

	var err error
	v.pack.Fields.Fields.Each(func(name string, spec *plugin.FieldSpec) bool {
		if spec == nil {
			return true
		}
		shown, verr := visible(spec, data)
		if verr != nil {
			err = fmt.Errorf("field %s condition: %w", name, verr)
			return false
		}
		if !shown {
			return true
		}
		value := data[name]
		label := labelOf(name, spec)

		if !opts.SkipRequired && spec.Required && coerce.IsBlank(value) {
			result.AddError(name, fmt.Sprintf("El campo '%s' es requerido", label), CodeRequired, nil)
			return true
		}
		if value != nil {
			checkType(name, label, spec, value, result)
			if spec.Validation != nil {
				checkRules(name, label, spec.Validation, value, result)
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if !result.Valid {
		logger.ValidationRejections.Add(1)
	}
	return result, nil
}

func visible(spec *plugin.FieldSpec, data map[string]any) (bool, error) {
	if spec.Condition.IsEmpty() {
		return true, nil
	}
	return dsl.Evaluate(spec.Condition, data)
}

func labelOf(name string, spec *plugin.FieldSpec) string {
	if spec.Label != "" {
		return spec.Label
	}
	return name
}

func checkType(name, label string, spec *plugin.FieldSpec, value any, result *Result) {
	switch spec.Type {
	case plugin.FieldText, "":
		if _, ok := value.(string); !ok {
			result.AddError(name, fmt.Sprintf("'%s' debe ser texto", label), CodeType, value)
		}

	case plugin.FieldInt:
		if value == "" {
			return
		}
		if _, ok := coerce.ToInt(value); !ok {
			result.AddError(name, fmt.Sprintf("'%s' debe ser un numero entero", label), CodeType, value)
		}

	case plugin.FieldDecimal, plugin.FieldCurrency:
		if value == "" {
			return
		}
		if _, ok := coerce.ToFloatComma(value); !ok {
			result.AddError(name, fmt.Sprintf("'%s' debe ser un numero", label), CodeType, value)
		}

	case plugin.FieldBool:
		if !isBoolish(value) {
			result.AddError(name, fmt.Sprintf("'%s' debe ser verdadero/falso", label), CodeType, value)
		}

	case plugin.FieldDate:
		if value == "" || isDate(value) {
			return
		}
		result.AddError(name, fmt.Sprintf("'%s' debe ser una fecha valida", label), CodeType, value)

	case plugin.FieldEnum:
		if coerce.Falsy(value) {
			return
		}
		allowed := spec.AllowedValues()
		s := coerce.String(value)
		for _, a := range allowed {
			if a == s {
				return
			}
		}
		result.AddError(name, fmt.Sprintf("'%s' debe ser uno de: %s", label, strings.Join(allowed, ", ")), CodeEnum, value)

	case plugin.FieldList:
		items, ok := asList(value)
		if !ok {
			result.AddError(name, fmt.Sprintf("'%s' debe ser una lista", label), CodeType, value)
			return
		}
		checkItems(name, spec, items, result)
	}
}

func checkItems(name string, spec *plugin.FieldSpec, items []any, result *Result) {
	if spec.ItemSchema == nil {
		return
	}
	for i, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		spec.ItemSchema.Each(func(sub string, subSpec *plugin.FieldSpec) bool {
			if subSpec != nil && subSpec.Required && coerce.Falsy(record[sub]) {
				result.AddError(
					fmt.Sprintf("%s[%d].%s", name, i, sub),
					fmt.Sprintf("'%s' es requerido", labelOf(sub, subSpec)),
					CodeRequired, nil)
			}
			return true
		})
	}
}

func checkRules(name, label string, rules *plugin.ValidationRules, value any, result *Result) {
	if s, ok := value.(string); ok {
		length := utf8.RuneCountInString(s)
		if rules.MaxLength > 0 && length > rules.MaxLength {
			result.AddError(name, fmt.Sprintf("'%s' no puede exceder %d caracteres", label, rules.MaxLength), CodeMaxLength, value)
		}
		if rules.MinLength > 0 && length < rules.MinLength {
			result.AddError(name, fmt.Sprintf("'%s' debe tener al menos %d caracteres", label, rules.MinLength), CodeMinLength, value)
		}
		if rules.Pattern != "" {
			re, err := compilePattern(rules.Pattern)
			if err != nil {
				logger.Warn("invalid validation pattern", "field", name, "pattern", rules.Pattern, "error", err)
			} else if !re.MatchString(s) {
				result.AddError(name, fmt.Sprintf("'%s' no tiene el formato correcto", label), CodePattern, value)
			}
		}
	}

	if rules.Min == nil && rules.Max == nil {
		return
	}
	f, ok := coerce.ToFloat(value)
	if !ok {
		return
	}
	if rules.Min != nil && f < *rules.Min {
		result.AddError(name, fmt.Sprintf("'%s' debe ser al menos %s", label, coerce.String(*rules.Min)), CodeMinValue, value)
	}
	if rules.Max != nil && f > *rules.Max {
		result.AddError(name, fmt.Sprintf("'%s' no puede exceder %s", label, coerce.String(*rules.Max)), CodeMaxValue, value)
	}
}

// compilePattern anchors pattern at the start of the input only.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)`)
}

func isBoolish(v any) bool {
	switch t := v.(type) {
	case bool:
		return true
	case string:
		switch t {
		case "si", "no", "yes":
			return true
		}
		return false
	}
	if f, ok := coerce.ToFloat(v); ok && coerce.IsNumber(v) {
		return f == 0 || f == 1
	}
	return false
}

func isDate(v any) bool {
	switch t := v.(type) {
	case time.Time, *time.Time:
		return true
	case string:
		if _, ok := coerce.ParseSpanishDate(t); ok {
			return true
		}
		_, ok := coerce.ParseDate(t)
		return ok
	}
	return false
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
