package generate

import (
	"strconv"
	"strings"
	"time"

	"github.com/liamcoop/cartagen/coerce"
	"github.com/liamcoop/cartagen/plugin"
)

// DefaultToday is the default value that stands for the current date on
// date fields.
const DefaultToday = "today"

var currencyNoise = strings.NewReplacer(",", "", ".", "", " ", "", "EUR", "", "€", "")

// Preprocess returns a copy of data with the values of declared fields
// converted to their field type: date strings to dates, formatted integers
// and amounts to integers, and yes/no answers to booleans. Values that do
// not convert are left as they are for the validator to report.
func Preprocess(pack *plugin.Pack, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}

	pack.Fields.Fields.Each(func(name string, spec *plugin.FieldSpec) bool {
		value, ok := out[name]
		if !ok || spec == nil {
			return true
		}
		switch spec.Type {
		case plugin.FieldDate:
			if s, isString := value.(string); isString {
				if d, ok := coerce.ParseDate(s); ok {
					out[name] = d
				}
			}
		case plugin.FieldInt:
			if s, isString := value.(string); isString {
				if n, err := strconv.Atoi(strings.NewReplacer(",", "", ".", "").Replace(strings.TrimSpace(s))); err == nil {
					out[name] = n
				}
			}
		case plugin.FieldCurrency:
			if s, isString := value.(string); isString {
				if n, err := strconv.Atoi(currencyNoise.Replace(s)); err == nil {
					out[name] = n
				}
			}
		case plugin.FieldBool:
			switch t := value.(type) {
			case string:
				out[name] = coerce.Truthy(t)
			default:
				if coerce.IsNumber(t) {
					f, _ := coerce.ToFloat(t)
					out[name] = f != 0
				}
			}
		}
		return true
	})
	return out
}

// ApplyDefaults returns a copy of data where fields missing from data take
// their configured default. A date default of "today" becomes the date of
// now.
func ApplyDefaults(pack *plugin.Pack, data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	pack.Fields.Fields.Each(func(name string, spec *plugin.FieldSpec) bool {
		if spec == nil || spec.Default == nil {
			return true
		}
		if _, present := out[name]; !present {
			out[name] = defaultValue(spec, now)
		}
		return true
	})
	return out
}

// Defaults returns the starting value of every declared field, as a form
// would show it: the configured default, or an empty value of the field
// type. Date fields without a default are omitted.
func Defaults(pack *plugin.Pack, now time.Time) map[string]any {
	out := make(map[string]any, pack.Fields.Fields.Len())
	pack.Fields.Fields.Each(func(name string, spec *plugin.FieldSpec) bool {
		if spec == nil {
			return true
		}
		if spec.Default != nil {
			out[name] = defaultValue(spec, now)
			return true
		}
		switch spec.Type {
		case plugin.FieldBool:
			out[name] = false
		case plugin.FieldList:
			out[name] = []any{}
		case plugin.FieldText, plugin.FieldEnum:
			out[name] = ""
		case plugin.FieldInt, plugin.FieldCurrency, plugin.FieldDecimal:
			out[name] = 0
		}
		return true
	})
	return out
}

func defaultValue(spec *plugin.FieldSpec, now time.Time) any {
	if spec.Type == plugin.FieldDate && spec.Default == DefaultToday {
		return coerce.DateOnly(now)
	}
	return spec.Default
}
