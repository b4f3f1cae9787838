package generate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/cartagen/contextbuilder"
	"github.com/liamcoop/cartagen/docx"
	"github.com/liamcoop/cartagen/docx/docxtest"
	"github.com/liamcoop/cartagen/plugin"
	"github.com/liamcoop/cartagen/validation"
)

type staticPacks map[string]*plugin.Pack

func (s staticPacks) Get(_ context.Context, id string) (*plugin.Pack, error) {
	p, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", plugin.ErrPluginNotFound, id)
	}
	return p, nil
}

type panickingPacks struct{}

func (panickingPacks) Get(context.Context, string) (*plugin.Pack, error) {
	panic("boom")
}

var fixedNow = time.Date(2025, time.June, 30, 10, 0, 0, 0, time.UTC)

func newTestGenerator(packs PackSource) *Generator {
	g := NewGenerator(packs)
	g.now = func() time.Time { return fixedNow }
	g.newID = func() string { return "0123abcd-0000-4000-8000-000000000000" }
	return g
}

func cartaPack(t *testing.T) *plugin.Pack {
	t.Helper()
	dir := t.TempDir()
	docxtest.New().
		Paragraph("Cliente: {{ Nombre_Cliente }}").
		Paragraph("Fecha: {{ fecha_carta }}").
		Paragraph("Consejo:{{lista_alto_directores:nombre}}").
		WriteFile(t, dir, "template.docx")

	p := &plugin.Pack{ID: "carta_manifestacion", Dir: dir}
	p.Fields.Fields.Set("Nombre_Cliente", &plugin.FieldSpec{Type: plugin.FieldText, Required: true, Label: "Nombre del cliente"})
	p.Fields.Fields.Set("fecha_carta", &plugin.FieldSpec{Type: plugin.FieldDate, Default: DefaultToday})
	p.Fields.Fields.Set("lista_alto_directores", &plugin.FieldSpec{Type: plugin.FieldList})
	p.Formatting.Fields.Set("fecha_carta", &plugin.FieldFormat{Type: "date"})
	return p
}

func paragraphTexts(t *testing.T, path string) []string {
	t.Helper()
	doc, err := docx.Open(path)
	require.NoError(t, err)
	var out []string
	for _, p := range doc.Body().Paragraphs() {
		out = append(out, p.Text())
	}
	return out
}

func TestGenerate(t *testing.T) {
	pack := cartaPack(t)
	out := t.TempDir()
	g := newTestGenerator(staticPacks{pack.ID: pack})

	result := g.Generate(context.Background(), Request{
		DocumentType: pack.ID,
		Data:         map[string]any{"Nombre_Cliente": "ACME S.A."},
		OutputDir:    out,
		Validate:     true,
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "0123abcd-0000-4000-8000-000000000000", result.TraceID)
	assert.Equal(t, filepath.Join(out, "Carta_Manifestacion_ACME_S.A._20250630.docx"), result.OutputPath)
	assert.Empty(t, result.Error)
	assert.Empty(t, result.ValidationErrors)
	assert.NotNil(t, result.Traces)

	assert.Equal(t, []string{
		"Cliente: ACME S.A.",
		"Fecha: 30 de junio de 2025",
		"Consejo:",
	}, paragraphTexts(t, result.OutputPath))
}

func TestGenerateWithPrefix(t *testing.T) {
	pack := cartaPack(t)
	out := t.TempDir()
	g := newTestGenerator(staticPacks{pack.ID: pack})

	result := g.Generate(context.Background(), Request{
		DocumentType:   pack.ID,
		Data:           map[string]any{"Nombre_Cliente": "ACME"},
		OutputDir:      out,
		FilenamePrefix: "carta",
	})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, filepath.Join(out, "carta_0123abcd.docx"), result.OutputPath)
}

func TestGenerateValidationFailure(t *testing.T) {
	pack := cartaPack(t)
	out := t.TempDir()
	g := newTestGenerator(staticPacks{pack.ID: pack})

	result := g.Generate(context.Background(), Request{
		DocumentType: pack.ID,
		Data:         map[string]any{"Nombre_Cliente": ""},
		OutputDir:    out,
		Validate:     true,
	})

	assert.False(t, result.Success)
	assert.Equal(t, MsgValidationFailed, result.Error)
	require.Len(t, result.ValidationErrors, 1)
	assert.Equal(t, validation.CodeRequired, result.ValidationErrors[0].Code)
	assert.Equal(t, []string{"Nombre_Cliente: El campo 'Nombre del cliente' es requerido"}, result.ValidationMessages)
	assert.Empty(t, result.OutputPath)

	entries, err := filepath.Glob(filepath.Join(out, "*"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateWithoutValidation(t *testing.T) {
	pack := cartaPack(t)
	g := newTestGenerator(staticPacks{pack.ID: pack})

	result := g.Generate(context.Background(), Request{
		DocumentType: pack.ID,
		Data:         map[string]any{},
		OutputDir:    t.TempDir(),
	})
	require.True(t, result.Success, result.Error)
	assert.True(t, strings.HasSuffix(result.OutputPath, "Carta_Manifestacion_documento_20250630.docx"))
}

func TestGenerateTemplateNotFound(t *testing.T) {
	pack := cartaPack(t)
	g := newTestGenerator(staticPacks{pack.ID: pack})

	result := g.Generate(context.Background(), Request{
		DocumentType: pack.ID,
		Data:         map[string]any{"Nombre_Cliente": "ACME"},
		OutputDir:    t.TempDir(),
		TemplatePath: filepath.Join(t.TempDir(), "missing.docx"),
	})
	assert.False(t, result.Success)
	assert.True(t, strings.HasPrefix(result.Error, MsgTemplateNotFound+": "), result.Error)
}

func TestGenerateUnknownPlugin(t *testing.T) {
	g := newTestGenerator(staticPacks{})

	result := g.Generate(context.Background(), Request{DocumentType: "nope"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "plugin not found")
}

func TestGenerateRecoversFromPanics(t *testing.T) {
	g := newTestGenerator(panickingPacks{})

	var result *Result
	require.NotPanics(t, func() {
		result = g.Generate(context.Background(), Request{DocumentType: "x"})
	})
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error)
	assert.Equal(t, "0123abcd-0000-4000-8000-000000000000", result.TraceID)
}

func TestGenerateFromForm(t *testing.T) {
	pack := cartaPack(t)
	g := newTestGenerator(staticPacks{pack.ID: pack})

	result := g.GenerateFromForm(context.Background(), Request{
		DocumentType: pack.ID,
		Data:         map[string]any{"Nombre_Cliente": "ACME"},
		OutputDir:    t.TempDir(),
		Validate:     true,
	}, map[string][]any{
		"lista_alto_directores": {
			map[string]any{"_id": "row-1", "nombre": "Juan Perez", "cargo": "Director General"},
		},
	})
	require.True(t, result.Success, result.Error)

	texts := paragraphTexts(t, result.OutputPath)
	assert.Equal(t, "Consejo:"+contextbuilder.DirectorIndent+" D. Juan Perez - Director General", texts[2])
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		data     map[string]any
		expected string
	}{
		{"prefix", "informe", nil, "informe_0123abcd.docx"},
		{"client", "", map[string]any{"Nombre_Cliente": "Grupo Norte / Sur"}, "Carta_Manifestacion_Grupo_Norte___Sur_20250630.docx"},
		{"no client", "", map[string]any{}, "Carta_Manifestacion_documento_20250630.docx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Filename(tt.prefix, "0123abcd-ffff", tt.data, fixedNow))
		})
	}
}
