package contextbuilder

import (
	"strconv"
	"strings"

	"github.com/liamcoop/cartagen/coerce"
)

// DirectorIndent is the fixed left padding of each line of a formatted
// directors list.
const DirectorIndent = "                                  "

// FormatCurrency renders value as euros with "." thousands separators and
// no decimals, e.g. 1500000 -> "1.500.000 EUR". Decimals are truncated.
// Values that are not numeric are returned as text.
func FormatCurrency(value any) string {
	if value == nil {
		return ""
	}
	raw := value
	if s, ok := value.(string); ok {
		raw = strings.ReplaceAll(strings.ReplaceAll(s, ",", "."), " ", "")
	}
	f, ok := coerce.ToFloat(raw)
	if !ok {
		return coerce.String(value)
	}
	return groupThousands(int64(f)) + " EUR"
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

// FormatPercentage renders value with two decimals and a decimal comma,
// e.g. 15 -> "15,00 %".
func FormatPercentage(value any) string {
	if value == nil {
		return ""
	}
	f, ok := coerce.ToFloatComma(value)
	if !ok {
		return coerce.String(value)
	}
	return strings.ReplaceAll(strconv.FormatFloat(f, 'f', 2, 64), ".", ",") + " %"
}

// FormatDate renders a parseable date in the Spanish long form. ok is false
// when value is not a date.
func FormatDate(value any) (string, bool) {
	d, ok := coerce.ParseDate(value)
	if !ok {
		return "", false
	}
	return coerce.FormatSpanishDate(d), true
}

// FormatDirectors turns a list of {nombre, cargo} records into one line per
// director. Records missing either key are dropped, string items are kept
// as they are and a string value is returned unchanged.
func FormatDirectors(directors any) string {
	if coerce.Falsy(directors) {
		return ""
	}
	var items []any
	switch t := directors.(type) {
	case string:
		return t
	case []any:
		items = t
	case []map[string]any:
		for _, m := range t {
			items = append(items, m)
		}
	default:
		return coerce.String(directors)
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		switch d := item.(type) {
		case map[string]any:
			nombre, cargo := coerce.String(d["nombre"]), coerce.String(d["cargo"])
			if nombre != "" && cargo != "" {
				lines = append(lines, DirectorIndent+" D. "+nombre+" - "+cargo)
			}
		case string:
			lines = append(lines, d)
		}
	}
	return strings.Join(lines, "\n")
}
