package docx

import (
	"strings"

	"github.com/beevik/etree"
)

// Paragraph is a w:p element.
type Paragraph struct {
	el *etree.Element
}

// ParagraphOf wraps el when it is a w:p element.
func ParagraphOf(el *etree.Element) (Paragraph, bool) {
	if !is(el, "p") {
		return Paragraph{}, false
	}
	return Paragraph{el: el}, true
}

// Element returns the underlying XML element.
func (p Paragraph) Element() *etree.Element {
	return p.el
}

// Text returns the visible text of the paragraph. Tabs become "\t" and line
// breaks "\n".
func (p Paragraph) Text() string {
	var b strings.Builder
	collectText(p.el, &b)
	return b.String()
}

func collectText(el *etree.Element, b *strings.Builder) {
	for _, ch := range el.ChildElements() {
		if ch.Space != "w" {
			continue
		}
		switch ch.Tag {
		case "t":
			b.WriteString(ch.Text())
		case "tab":
			b.WriteByte('\t')
		case "br", "cr":
			b.WriteByte('\n')
		case "p", "tbl", "pPr", "rPr", "txbxContent", "drawing", "pict", "delText", "instrText":
		default:
			collectText(ch, b)
		}
	}
}

// Runs returns the runs of the paragraph in order, including runs inside
// hyperlinks and inline content controls.
func (p Paragraph) Runs() []*etree.Element {
	var out []*etree.Element
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, ch := range el.ChildElements() {
			switch {
			case is(ch, "r"):
				out = append(out, ch)
			case is(ch, "p"), is(ch, "pPr"):
			default:
				walk(ch)
			}
		}
	}
	walk(p.el)
	return out
}

// SetText replaces the paragraph content with a single run holding text.
// Paragraph properties are kept and run formatting is carried over from
// the runs that were there before.
func (p Paragraph) SetText(text string) {
	format := p.Format()
	p.clear()
	p.appendRun(text)
	p.ApplyFormat(format)
}

// clear removes everything except the paragraph properties.
func (p Paragraph) clear() {
	for _, ch := range p.el.ChildElements() {
		if !is(ch, "pPr") {
			p.el.RemoveChild(ch)
		}
	}
}

func (p Paragraph) appendRun(text string) *etree.Element {
	r := p.el.CreateElement("w:r")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			r.CreateElement("w:br")
		}
		for j, seg := range strings.Split(line, "\t") {
			if j > 0 {
				r.CreateElement("w:tab")
			}
			if seg == "" {
				continue
			}
			t := r.CreateElement("w:t")
			t.CreateAttr("xml:space", "preserve")
			t.SetText(seg)
		}
	}
	return r
}

// RunFormat is the character formatting carried across a text rewrite.
// Nil and empty fields mean "not set on the run".
type RunFormat struct {
	Bold      *bool
	Italic    *bool
	Underline string
	Font      string
	Size      string
}

// ParagraphFormat is a snapshot of paragraph alignment, style and the
// formatting of each run by position.
type ParagraphFormat struct {
	Alignment string
	Style     string
	Runs      []RunFormat
}

// Format snapshots the paragraph formatting.
func (p Paragraph) Format() ParagraphFormat {
	var f ParagraphFormat
	if pPr := p.el.SelectElement("w:pPr"); pPr != nil {
		f.Alignment = propertyValue(pPr, "jc")
		f.Style = propertyValue(pPr, "pStyle")
	}
	for _, r := range p.Runs() {
		var rf RunFormat
		if rPr := r.SelectElement("w:rPr"); rPr != nil {
			rf.Bold = toggle(rPr, "b")
			rf.Italic = toggle(rPr, "i")
			rf.Underline = propertyValue(rPr, "u")
			if fonts := rPr.SelectElement("w:rFonts"); fonts != nil {
				rf.Font = fonts.SelectAttrValue("w:ascii", "")
			}
			rf.Size = propertyValue(rPr, "sz")
		}
		f.Runs = append(f.Runs, rf)
	}
	return f
}

// ApplyFormat restores a snapshot: alignment and style when set, and run
// formatting by position for as many runs as both sides have.
func (p Paragraph) ApplyFormat(f ParagraphFormat) {
	if f.Alignment != "" || f.Style != "" {
		pPr := firstChild(p.el, "pPr")
		if f.Style != "" {
			setProperty(pPr, "pStyle", pPrOrder).CreateAttr("w:val", f.Style)
		}
		if f.Alignment != "" {
			setProperty(pPr, "jc", pPrOrder).CreateAttr("w:val", f.Alignment)
		}
	}
	for i, r := range p.Runs() {
		if i >= len(f.Runs) {
			break
		}
		applyRunFormat(r, f.Runs[i])
	}
}

func applyRunFormat(r *etree.Element, rf RunFormat) {
	if rf == (RunFormat{}) {
		return
	}
	rPr := firstChild(r, "rPr")
	if rf.Bold != nil {
		setToggle(rPr, "b", *rf.Bold)
	}
	if rf.Italic != nil {
		setToggle(rPr, "i", *rf.Italic)
	}
	if rf.Underline != "" {
		setProperty(rPr, "u", rPrOrder).CreateAttr("w:val", rf.Underline)
	}
	if rf.Font != "" {
		fonts := setProperty(rPr, "rFonts", rPrOrder)
		fonts.CreateAttr("w:ascii", rf.Font)
		fonts.CreateAttr("w:hAnsi", rf.Font)
	}
	if rf.Size != "" {
		setProperty(rPr, "sz", rPrOrder).CreateAttr("w:val", rf.Size)
	}
}

// ClearUnderline sets underline to none on a run.
func ClearUnderline(r *etree.Element) {
	rPr := firstChild(r, "rPr")
	setProperty(rPr, "u", rPrOrder).CreateAttr("w:val", "none")
}

// Underline returns the w:u value of a run, or "".
func Underline(r *etree.Element) string {
	if rPr := r.SelectElement("w:rPr"); rPr != nil {
		return propertyValue(rPr, "u")
	}
	return ""
}

func toggle(rPr *etree.Element, tag string) *bool {
	el := rPr.SelectElement("w:" + tag)
	if el == nil {
		return nil
	}
	v := el.SelectAttrValue("w:val", "true")
	on := v != "false" && v != "0" && v != "off"
	return &on
}

func setToggle(rPr *etree.Element, tag string, on bool) {
	el := setProperty(rPr, tag, rPrOrder)
	if !on {
		el.CreateAttr("w:val", "0")
	}
}

func propertyValue(props *etree.Element, tag string) string {
	if el := props.SelectElement("w:" + tag); el != nil {
		return el.SelectAttrValue("w:val", "")
	}
	return ""
}

// Schema order of the property children we write. Word rejects property
// elements that appear out of order.
var (
	pPrOrder = []string{
		"pStyle", "keepNext", "keepLines", "pageBreakBefore", "framePr", "widowControl",
		"numPr", "suppressLineNumbers", "pBdr", "shd", "tabs", "suppressAutoHyphens",
		"kinsoku", "wordWrap", "overflowPunct", "topLinePunct", "autoSpaceDE", "autoSpaceDN",
		"bidi", "adjustRightInd", "snapToGrid", "spacing", "ind", "contextualSpacing",
		"mirrorIndents", "suppressOverlap", "jc", "textDirection", "textAlignment",
		"textboxTightWrap", "outlineLvl", "divId", "cnfStyle", "rPr", "sectPr", "pPrChange",
	}
	rPrOrder = []string{
		"rStyle", "rFonts", "b", "bCs", "i", "iCs", "caps", "smallCaps", "strike", "dstrike",
		"outline", "shadow", "emboss", "imprint", "noProof", "snapToGrid", "vanish",
		"webHidden", "color", "spacing", "w", "kern", "position", "sz", "szCs", "highlight",
		"u", "effect", "bdr", "shd", "fitText", "vertAlign", "rtl", "cs", "em", "lang",
		"eastAsianLayout", "specVanish", "oMath",
	}
	tcPrOrder = []string{
		"cnfStyle", "tcW", "gridSpan", "hMerge", "vMerge", "tcBorders", "shd", "noWrap",
		"tcMar", "textDirection", "tcFitText", "vAlign", "hideMark",
	}
)

// firstChild returns the w:<tag> properties element of parent, creating it
// as the first child when missing.
func firstChild(parent *etree.Element, tag string) *etree.Element {
	if el := parent.SelectElement("w:" + tag); el != nil {
		return el
	}
	el := etree.NewElement("w:" + tag)
	parent.InsertChildAt(0, el)
	return el
}

// setProperty replaces any w:<tag> child of props with a fresh empty element
// placed at its schema position and returns it.
func setProperty(props *etree.Element, tag string, order []string) *etree.Element {
	for _, old := range props.SelectElements("w:" + tag) {
		props.RemoveChild(old)
	}
	rank := indexOf(order, tag)
	el := etree.NewElement("w:" + tag)
	for _, ch := range props.ChildElements() {
		if ch.Space == "w" && indexOf(order, ch.Tag) > rank {
			props.InsertChildAt(ch.Index(), el)
			return el
		}
	}
	props.AddChild(el)
	return el
}

func indexOf(order []string, tag string) int {
	for i, t := range order {
		if t == tag {
			return i
		}
	}
	return len(order)
}
