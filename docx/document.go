// Package docx is a small mutable model of a WordprocessingML package: the
// main document part plus header and footer parts, each exposed as
// paragraphs and tables backed by an etree XML tree. Every other package
// entry is carried through untouched.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/beevik/etree"
)

// ErrTemplateNotFound is returned by Open when the template file is missing.
var ErrTemplateNotFound = errors.New("template not found")

// ErrInvalidDocument is returned for archives without a main document part.
var ErrInvalidDocument = errors.New("invalid docx document")

const mainPartName = "word/document.xml"

var (
	headerPartName = regexp.MustCompile(`^word/header\d*\.xml$`)
	footerPartName = regexp.MustCompile(`^word/footer\d*\.xml$`)
)

// zipEpoch is stamped on every entry so identical content zips identically.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

type entry struct {
	name   string
	method uint16
	data   []byte
	part   *Part
}

// Document is an opened .docx package.
type Document struct {
	entries []*entry
	main    *Part
	headers []*Part
	footers []*Part
}

// Open reads a .docx file. A missing file yields an error wrapping
// ErrTemplateNotFound.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return Read(data)
}

// Read parses a .docx package held in memory.
func Read(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	doc := &Document{}
	for _, f := range zr.File {
		body, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		e := &entry{name: f.Name, method: f.Method, data: body}
		switch {
		case f.Name == mainPartName:
			e.part, err = parsePart(f.Name, body, "body")
			doc.main = e.part
		case headerPartName.MatchString(f.Name):
			e.part, err = parsePart(f.Name, body, "hdr")
			doc.headers = append(doc.headers, e.part)
		case footerPartName.MatchString(f.Name):
			e.part, err = parsePart(f.Name, body, "ftr")
			doc.footers = append(doc.footers, e.part)
		}
		if err != nil {
			return nil, err
		}
		doc.entries = append(doc.entries, e)
	}
	if doc.main == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidDocument, mainPartName)
	}
	return doc, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func parsePart(name string, body []byte, rootTag string) (*Part, error) {
	x := etree.NewDocument()
	if err := x.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, name, err)
	}
	root := x.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: %s has no root element", ErrInvalidDocument, name)
	}
	if rootTag == "body" {
		root = root.SelectElement("w:body")
		if root == nil {
			return nil, fmt.Errorf("%w: %s has no body", ErrInvalidDocument, name)
		}
	}
	return &Part{Name: name, doc: x, root: root}, nil
}

// Body returns the main document part.
func (d *Document) Body() *Part {
	return d.main
}

// Headers returns the header parts in package order.
func (d *Document) Headers() []*Part {
	return d.headers
}

// Footers returns the footer parts in package order.
func (d *Document) Footers() []*Part {
	return d.footers
}

// Parts returns the body followed by every header and footer.
func (d *Document) Parts() []*Part {
	parts := make([]*Part, 0, 1+len(d.headers)+len(d.footers))
	parts = append(parts, d.main)
	parts = append(parts, d.headers...)
	return append(parts, d.footers...)
}

// Paragraphs returns the top-level body paragraphs.
func (d *Document) Paragraphs() []Paragraph {
	return d.main.Paragraphs()
}

// Tables returns the top-level body tables.
func (d *Document) Tables() []Table {
	return d.main.Tables()
}

// Bytes serialises the package. Entries keep their original order and
// compression method and carry a fixed timestamp, so the same document
// always produces the same bytes.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range d.entries {
		data := e.data
		if e.part != nil {
			b, err := e.part.doc.WriteToBytes()
			if err != nil {
				return nil, fmt.Errorf("failed to serialise %s: %w", e.name, err)
			}
			data = b
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   e.method,
			Modified: zipEpoch,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the package to path, creating parent directories. The file is
// written to a temporary sibling and renamed into place, so a failed save
// never leaves a partial document behind.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cartagen-*.docx")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
