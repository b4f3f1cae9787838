package docx

import (
	"strings"

	"github.com/beevik/etree"
)

// Part is one XML part holding block content: the document body, a header
// or a footer. Its block elements are paragraphs, tables and content
// controls wrapping either.
type Part struct {
	Name string
	doc  *etree.Document
	root *etree.Element
}

// Blocks returns the block-level elements of the part in order.
func (p *Part) Blocks() []*etree.Element {
	return p.root.ChildElements()
}

// Remove detaches a block-level element. The section properties of the
// body are never removed.
func (p *Part) Remove(el *etree.Element) {
	if el == nil || is(el, "sectPr") {
		return
	}
	if parent := el.Parent(); parent != nil {
		parent.RemoveChild(el)
	}
}

// Paragraphs returns the top-level paragraphs, including those wrapped in
// block content controls.
func (p *Part) Paragraphs() []Paragraph {
	var out []Paragraph
	for _, el := range blockChildren(p.root) {
		if is(el, "p") {
			out = append(out, Paragraph{el: el})
		}
	}
	return out
}

// Tables returns the top-level tables.
func (p *Part) Tables() []Table {
	var out []Table
	for _, el := range blockChildren(p.root) {
		if is(el, "tbl") {
			out = append(out, Table{el: el})
		}
	}
	return out
}

// AllTables returns every table of the part, nested ones included,
// outer tables before the tables they contain.
func (p *Part) AllTables() []Table {
	var out []Table
	var walk func(tables []Table)
	walk = func(tables []Table) {
		for _, t := range tables {
			out = append(out, t)
			for _, row := range t.Rows() {
				for _, cell := range row.Cells() {
					walk(cell.Tables())
				}
			}
		}
	}
	walk(p.Tables())
	return out
}

// AllParagraphs returns the top-level paragraphs followed by the paragraphs
// of every table cell, recursively.
func (p *Part) AllParagraphs() []Paragraph {
	out := p.Paragraphs()
	for _, t := range p.AllTables() {
		for _, row := range t.Rows() {
			for _, cell := range row.Cells() {
				out = append(out, cell.Paragraphs()...)
			}
		}
	}
	return out
}

// Runs returns every run element in the part.
func (p *Part) Runs() []*etree.Element {
	var out []*etree.Element
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, ch := range el.ChildElements() {
			if is(ch, "r") {
				out = append(out, ch)
			}
			walk(ch)
		}
	}
	walk(p.root)
	return out
}

// blockChildren lists the block elements under parent, looking through
// block-level content controls (w:sdt/w:sdtContent).
func blockChildren(parent *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, el := range parent.ChildElements() {
		if is(el, "sdt") {
			if content := el.SelectElement("w:sdtContent"); content != nil {
				out = append(out, blockChildren(content)...)
			}
			continue
		}
		out = append(out, el)
	}
	return out
}

// is reports whether el is the WordprocessingML element w:<tag>.
func is(el *etree.Element, tag string) bool {
	return el != nil && el.Space == "w" && el.Tag == tag
}

// Table is a w:tbl element.
type Table struct {
	el *etree.Element
}

// Element returns the underlying XML element.
func (t Table) Element() *etree.Element {
	return t.el
}

// Rows returns the table rows.
func (t Table) Rows() []Row {
	var out []Row
	for _, el := range t.el.SelectElements("w:tr") {
		out = append(out, Row{el: el})
	}
	return out
}

// Row is a w:tr element.
type Row struct {
	el *etree.Element
}

// Cells returns the cells of the row.
func (r Row) Cells() []Cell {
	var out []Cell
	for _, el := range r.el.SelectElements("w:tc") {
		out = append(out, Cell{el: el})
	}
	return out
}

// Cell is a w:tc element.
type Cell struct {
	el *etree.Element
}

// Paragraphs returns the paragraphs directly inside the cell.
func (c Cell) Paragraphs() []Paragraph {
	var out []Paragraph
	for _, el := range blockChildren(c.el) {
		if is(el, "p") {
			out = append(out, Paragraph{el: el})
		}
	}
	return out
}

// Tables returns the tables nested directly inside the cell.
func (c Cell) Tables() []Table {
	var out []Table
	for _, el := range blockChildren(c.el) {
		if is(el, "tbl") {
			out = append(out, Table{el: el})
		}
	}
	return out
}

// Text joins the cell paragraphs with newlines.
func (c Cell) Text() string {
	paras := c.Paragraphs()
	texts := make([]string, len(paras))
	for i, p := range paras {
		texts[i] = p.Text()
	}
	return strings.Join(texts, "\n")
}

// SetShading fills the cell background with a hex colour such as "FF0000".
// Any previous shading is replaced.
func (c Cell) SetShading(fill string) {
	tcPr := firstChild(c.el, "tcPr")
	shd := setProperty(tcPr, "shd", tcPrOrder)
	shd.CreateAttr("w:val", "clear")
	shd.CreateAttr("w:color", "auto")
	shd.CreateAttr("w:fill", strings.ToUpper(strings.TrimPrefix(fill, "#")))
}

// Shading returns the cell fill colour, or "".
func (c Cell) Shading() string {
	tcPr := c.el.SelectElement("w:tcPr")
	if tcPr == nil {
		return ""
	}
	if shd := tcPr.SelectElement("w:shd"); shd != nil {
		return shd.SelectAttrValue("w:fill", "")
	}
	return ""
}
