// Package coerce holds the lenient value conversions shared by the condition
// evaluator, context builder, validator and renderer. Conversions never
// panic and never return errors: a failed conversion reports ok=false and
// callers degrade to "unset" or false.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// fold lowercases s with Unicode case folding. A Caser is stateful, so a new
// one is built per call instead of sharing one across goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

// NormalizeBool maps boolean-ish strings onto native booleans:
// true/si/yes become true and false/no become false, ignoring case.
// Any other value is returned unchanged.
func NormalizeBool(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch fold(s) {
	case "true", "si", "yes":
		return true
	case "false", "no":
		return false
	}
	return v
}

// Truthy reports whether a value is affirmative when read as a yes/no answer.
// Unlike NormalizeBool it also accepts "1" and the accented "sí".
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch fold(strings.TrimSpace(t)) {
		case "true", "si", "sí", "yes", "1":
			return true
		}
		return false
	}
	return false
}

// BoolToSiNo renders a boolean-ish value as the template literals "si" or "no".
func BoolToSiNo(v any) string {
	if Truthy(v) {
		return "si"
	}
	return "no"
}

// ToFloat converts numbers, numeric strings and booleans to float64.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ToFloatComma is ToFloat that also accepts a comma as decimal separator.
func ToFloatComma(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		return ToFloat(strings.ReplaceAll(s, ",", "."))
	}
	return ToFloat(v)
}

// ToInt converts a value to an integer. Floats are truncated; strings must
// hold an integer literal.
func ToInt(v any) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	case float32:
		return int64(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// IsNumber reports whether v holds a Go numeric type (booleans excluded).
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// String renders a value the way templates show it: whole floats lose
// their fractional part, nil becomes "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return String(float64(t))
	case bool:
		if t {
			return "True"
		}
		return "False"
	}
	return fmt.Sprint(v)
}

// IsBlank reports whether v is nil or a whitespace-only string.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// Falsy mirrors "empty" for rendering purposes: nil, false, zero numbers,
// empty strings and empty collections.
func Falsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	if f, ok := ToFloat(v); ok && IsNumber(v) {
		return f == 0
	}
	return false
}
