// Package docxtest builds small Word packages in memory for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

// Run is one run of a paragraph.
type Run struct {
	Text      string
	Bold      bool
	Underline bool
	Font      string
}

// Builder accumulates body, header and footer content.
type Builder struct {
	body   []string
	header []string
	footer []string
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{}
}

// Paragraph appends a body paragraph with one plain run per text.
func (b *Builder) Paragraph(texts ...string) *Builder {
	b.body = append(b.body, paragraphXML("", plainRuns(texts)))
	return b
}

// Runs appends a body paragraph built from formatted runs.
func (b *Builder) Runs(runs ...Run) *Builder {
	b.body = append(b.body, paragraphXML("", runs))
	return b
}

// Aligned appends a body paragraph with a justification value such as "center".
func (b *Builder) Aligned(jc string, texts ...string) *Builder {
	b.body = append(b.body, paragraphXML(jc, plainRuns(texts)))
	return b
}

// Table appends a body table; each inner slice is a row of cell texts.
func (b *Builder) Table(rows ...[]string) *Builder {
	b.body = append(b.body, tableXML(rows))
	return b
}

// Header adds a paragraph to the single header part.
func (b *Builder) Header(text string) *Builder {
	b.header = append(b.header, paragraphXML("", plainRuns([]string{text})))
	return b
}

// Footer adds a paragraph to the single footer part.
func (b *Builder) Footer(text string) *Builder {
	b.footer = append(b.footer, paragraphXML("", plainRuns([]string{text})))
	return b
}

// Bytes returns the package.
func (b *Builder) Bytes(t testing.TB) []byte {
	t.Helper()

	var rels, overrides, sectRefs strings.Builder
	files := map[string]string{}
	if len(b.header) > 0 {
		files["word/header1.xml"] = `<w:hdr ` + wordNS + `>` + strings.Join(b.header, "") + `</w:hdr>`
		rels.WriteString(`<Relationship Id="rIdH1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="header1.xml"/>`)
		overrides.WriteString(`<Override PartName="/word/header1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/>`)
		sectRefs.WriteString(`<w:headerReference w:type="default" r:id="rIdH1"/>`)
	}
	if len(b.footer) > 0 {
		files["word/footer1.xml"] = `<w:ftr ` + wordNS + `>` + strings.Join(b.footer, "") + `</w:ftr>`
		rels.WriteString(`<Relationship Id="rIdF1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer" Target="footer1.xml"/>`)
		overrides.WriteString(`<Override PartName="/word/footer1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"/>`)
		sectRefs.WriteString(`<w:footerReference w:type="default" r:id="rIdF1"/>`)
	}

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document ` + wordNS + `><w:body>` + strings.Join(b.body, "") +
		`<w:sectPr>` + sectRefs.String() + `<w:pgSz w:w="11906" w:h="16838"/></w:sectPr>` +
		`</w:body></w:document>`

	ordered := []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			overrides.String() + `</Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`},
		{"word/document.xml", document},
		{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			rels.String() + `</Relationships>`},
	}
	for _, name := range []string{"word/header1.xml", "word/footer1.xml"} {
		if body, ok := files[name]; ok {
			ordered = append(ordered, struct{ name, body string }{name, body})
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range ordered {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("docxtest: %v", err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatalf("docxtest: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("docxtest: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes the package to dir/name and returns the path.
func (b *Builder) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.Bytes(t), 0o644); err != nil {
		t.Fatalf("docxtest: %v", err)
	}
	return path
}

func plainRuns(texts []string) []Run {
	runs := make([]Run, len(texts))
	for i, t := range texts {
		runs[i] = Run{Text: t}
	}
	return runs
}

func paragraphXML(jc string, runs []Run) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	if jc != "" {
		fmt.Fprintf(&b, `<w:pPr><w:jc w:val="%s"/></w:pPr>`, jc)
	}
	for _, r := range runs {
		b.WriteString("<w:r>")
		if r.Bold || r.Underline || r.Font != "" {
			b.WriteString("<w:rPr>")
			if r.Font != "" {
				fmt.Fprintf(&b, `<w:rFonts w:ascii="%s" w:hAnsi="%s"/>`, escape(r.Font), escape(r.Font))
			}
			if r.Bold {
				b.WriteString("<w:b/>")
			}
			if r.Underline {
				b.WriteString(`<w:u w:val="single"/>`)
			}
			b.WriteString("</w:rPr>")
		}
		fmt.Fprintf(&b, `<w:t xml:space="preserve">%s</w:t>`, escape(r.Text))
		b.WriteString("</w:r>")
	}
	b.WriteString("</w:p>")
	return b.String()
}

func tableXML(rows [][]string) string {
	var b strings.Builder
	b.WriteString("<w:tbl><w:tblPr/>")
	for _, row := range rows {
		b.WriteString("<w:tr>")
		for _, cell := range row {
			b.WriteString("<w:tc><w:tcPr><w:tcW w:w=\"2000\" w:type=\"dxa\"/></w:tcPr>")
			b.WriteString(paragraphXML("", plainRuns([]string{cell})))
			b.WriteString("</w:tc>")
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
	return b.String()
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
