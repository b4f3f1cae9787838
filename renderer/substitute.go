package renderer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/liamcoop/cartagen/coerce"
	"github.com/liamcoop/cartagen/contextbuilder"
	"github.com/liamcoop/cartagen/docx"
	"github.com/liamcoop/cartagen/dsl"
)

var (
	// Inline spans hold no other tag, so nested spans resolve innermost first.
	markedSpan = regexp.MustCompile(`(?s)\[\{%\s*if\s+(\w+)\s*==\s*'si'\s*%\}\]\.mark((?:[^{]|\{[^%])*?)\[\{%\s*endif\s*%\}\]\.mark`)
	plainSpan  = regexp.MustCompile(`(?s)\{%\s*if\s+(\w+)\s*==\s*'si'\s*%\}((?:[^{]|\{[^%])*?)\{%\s*endif\s*%\}`)

	directorsPlaceholder = regexp.MustCompile(`\{\{` + contextbuilder.DirectorsKey + `:[^}]+\}\}`)
	placeholder          = regexp.MustCompile(`\{\{\s*([\w.]+)\s*(\|\s*int\s*(-\s*1\s*)?)?\}\}`)
	leftoverPlaceholder  = regexp.MustCompile(`\[?\{\{[^}]*\}\}\]?`)
)

// substitute rewrites every non-blank paragraph of the document whose text
// changes, returning how many were rewritten.
func substitute(doc *docx.Document, ctx map[string]any, resolve func(string) string) int {
	changed := 0
	for _, part := range doc.Parts() {
		for _, p := range part.AllParagraphs() {
			text := p.Text()
			if strings.TrimSpace(text) == "" {
				continue
			}
			if out := replaceText(text, ctx, resolve); out != text {
				p.SetText(out)
				changed++
			}
		}
	}
	return changed
}

// replaceText resolves inline conditionals, strips leftover tags and marker
// tokens, then fills the directors list and {{ }} placeholders.
func replaceText(text string, ctx map[string]any, resolve func(string) string) string {
	text = resolveSpans(text, markedSpan, resolve)
	text = resolveSpans(text, plainSpan, resolve)
	text = anyTagMarker.ReplaceAllString(text, "")
	// Marker tokens belong to the template; strip them before values go in.
	text = markToken.ReplaceAllString(text, "")

	directors := ""
	if v := ctx[contextbuilder.DirectorsKey]; !coerce.Falsy(v) {
		directors = coerce.String(v)
	}
	text = directorsPlaceholder.ReplaceAllLiteralString(text, directors)

	text = placeholder.ReplaceAllStringFunc(text, func(match string) string {
		m := placeholder.FindStringSubmatch(match)
		return placeholderValue(dsl.Lookup(ctx, m[1]), m[2] != "", m[3] != "")
	})

	return leftoverPlaceholder.ReplaceAllString(text, "")
}

func resolveSpans(text string, span *regexp.Regexp, resolve func(string) string) string {
	for {
		out := span.ReplaceAllStringFunc(text, func(match string) string {
			m := span.FindStringSubmatch(match)
			if resolve(m[1]) == "si" {
				return m[2]
			}
			return ""
		})
		if out == text {
			return out
		}
		text = out
	}
}

func placeholderValue(value any, asInt, minusOne bool) string {
	if coerce.Falsy(value) {
		return ""
	}
	if !asInt {
		return coerce.String(value)
	}
	// Numbers truncate; strings must hold a whole number or are shown as is.
	n, ok := coerce.ToInt(value)
	if !ok {
		return coerce.String(value)
	}
	if minusOne {
		n--
	}
	return strconv.FormatInt(n, 10)
}
