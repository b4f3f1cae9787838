package coerce

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SpanishMonths lists month names in calendar order, lowercase.
var SpanishMonths = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var spanishMonthIndex = func() map[string]time.Month {
	m := make(map[string]time.Month, len(SpanishMonths))
	for i, name := range SpanishMonths {
		m[name] = time.Month(i + 1)
	}
	return m
}()

// spanishDatePattern matches "31 de diciembre de 2025" at the start of a string.
var spanishDatePattern = regexp.MustCompile(`^(\d{1,2})\s+de\s+(\p{L}+)\s+de\s+(\d{4})`)

// dateLayouts is the parse cascade; the Spanish long form sits fourth and is
// handled by ParseSpanishDate.
var dateLayouts = []string{
	"2/1/2006",
	"2006-1-2",
	"2-1-2006",
	"", // "D de <mes> de YYYY"
	"2006/1/2",
	"2.1.2006",
	"2006.1.2",
	"1/2/2006",
}

// ParseDate accepts a time.Time or a string in any of the supported formats.
// The first layout that parses wins; ok is false when all of them fail.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return DateOnly(t), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return ParseDate(*t)
	case string:
		return parseDateString(t)
	}
	return time.Time{}, false
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if layout == "" {
			if d, ok := ParseSpanishDate(s); ok {
				return d, true
			}
			continue
		}
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// ParseSpanishDate parses the long form "31 de diciembre de 2025". Month
// names are matched case-insensitively; impossible dates are rejected.
func ParseSpanishDate(s string) (time.Time, bool) {
	m := spanishDatePattern.FindStringSubmatch(fold(strings.TrimSpace(s)))
	if m == nil {
		return time.Time{}, false
	}
	month, ok := spanishMonthIndex[m[2]]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}

// FormatSpanishDate renders "<day> de <month> de <year>" with no leading zero.
func FormatSpanishDate(t time.Time) string {
	return strconv.Itoa(t.Day()) + " de " + SpanishMonths[t.Month()-1] + " de " + strconv.Itoa(t.Year())
}

// DateOnly drops the clock part of t, keeping its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
