package renderer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/liamcoop/cartagen/docx"
)

var (
	mainItem = regexp.MustCompile(`(?s)^(\d+)\.\s+(.+)`)
	subItem  = regexp.MustCompile(`(?s)^[a-z]\.\s+(.+)`)
)

func (r *Renderer) postProcess(doc *docx.Document) {
	applyCellColors(doc.Body(), r.pack.Formatting.Colors)
	for _, part := range doc.Parts() {
		for _, run := range part.Runs() {
			docx.ClearUnderline(run)
		}
	}
	fixNumbering(doc.Body())
}

// applyCellColors fills every body table cell whose trimmed text matches a
// colour key, ignoring case.
func applyCellColors(body *docx.Part, colors map[string]string) {
	if len(colors) == 0 {
		return
	}
	byText := make(map[string]string, len(colors))
	for key, color := range colors {
		byText[strings.ToLower(strings.TrimSpace(key))] = color
	}
	for _, table := range body.AllTables() {
		for _, row := range table.Rows() {
			for _, cell := range row.Cells() {
				if color, ok := byText[strings.ToLower(strings.TrimSpace(cell.Text()))]; ok {
					cell.SetShading(color)
				}
			}
		}
	}
}

// fixNumbering renumbers "N. text" paragraphs 1, 2, 3... and "x. text"
// paragraphs a, b, c... The letter sequence restarts whenever any other
// non-empty paragraph comes between two sub-items.
func fixNumbering(body *docx.Part) {
	next := 1
	letter := 0
	inSubList := false

	for _, p := range body.Paragraphs() {
		text := strings.TrimSpace(p.Text())
		if text == "" {
			continue
		}
		var renumbered string
		switch {
		case mainItem.MatchString(text):
			m := mainItem.FindStringSubmatch(text)
			renumbered = fmt.Sprintf("%d. %s", next, m[2])
			next++
			inSubList = false
		case subItem.MatchString(text):
			if !inSubList {
				letter = 0
				inSubList = true
			}
			m := subItem.FindStringSubmatch(text)
			renumbered = fmt.Sprintf("%c. %s", 'a'+rune(letter%26), m[1])
			letter++
		default:
			inSubList = false
			continue
		}
		if renumbered != text {
			p.SetText(renumbered)
		}
	}
}
