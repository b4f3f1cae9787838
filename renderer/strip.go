package renderer

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/liamcoop/cartagen/docx"
)

var (
	blockOpen    = regexp.MustCompile(`^\{%\s*if\s+(\w+)\s*==\s*'si'\s*%\}`)
	blockClose   = regexp.MustCompile(`^\{%\s*endif\s*%\}`)
	endifMarker  = regexp.MustCompile(`\{%\s*endif\s*%\}`)
	anyTagMarker = regexp.MustCompile(`\{%[^%]*%\}`)
	markToken    = regexp.MustCompile(`\[\]\.mark|\[\.mark\]|\.mark`)
)

// stripBlocks removes the body elements between a block-level
// {% if VAR == 'si' %} paragraph and its {% endif %} paragraph when VAR does
// not resolve to "si". Paragraphs holding only a marker are always removed.
// A paragraph that opens and closes its own condition is left to inline
// substitution. Blocks nest. It returns how many elements were removed.
func stripBlocks(body *docx.Part, resolve func(string) string) int {
	var (
		keep  []bool
		trash []*etree.Element
	)
	removing := func() bool {
		for _, k := range keep {
			if !k {
				return true
			}
		}
		return false
	}

	for _, el := range body.Blocks() {
		if para, ok := docx.ParagraphOf(el); ok {
			text := strings.TrimSpace(para.Text())

			if m := blockOpen.FindStringSubmatch(text); m != nil && !endifMarker.MatchString(text) {
				keep = append(keep, resolve(m[1]) == "si")
				if markerOnly(text) || removing() {
					trash = append(trash, el)
				}
				continue
			}
			if blockClose.MatchString(text) && len(keep) > 0 {
				keep = keep[:len(keep)-1]
				if markerOnly(text) || removing() {
					trash = append(trash, el)
				}
				continue
			}
		}
		if removing() {
			trash = append(trash, el)
		}
	}

	for _, el := range trash {
		body.Remove(el)
	}
	return len(trash)
}

func markerOnly(text string) bool {
	text = anyTagMarker.ReplaceAllString(text, "")
	text = markToken.ReplaceAllString(text, "")
	return strings.TrimSpace(strings.Trim(text, "[]")) == ""
}
