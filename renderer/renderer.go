// Package renderer fills a Word template for one pack: it builds the
// template context, evaluates the decisions, strips disabled blocks,
// substitutes placeholders and applies the post-processing fixes before
// saving the document.
package renderer

import (
	"fmt"

	"github.com/liamcoop/cartagen/coerce"
	"github.com/liamcoop/cartagen/contextbuilder"
	"github.com/liamcoop/cartagen/docx"
	"github.com/liamcoop/cartagen/internal/logger"
	"github.com/liamcoop/cartagen/plugin"
	"github.com/liamcoop/cartagen/rules"
)

// VisibilityKey is the context key under which the visibility map is
// exposed to templates.
const VisibilityKey = "visibility"

// Renderer renders documents for one pack. It keeps no per-call state.
type Renderer struct {
	pack    *plugin.Pack
	builder *contextbuilder.Builder
	engine  *rules.Engine
}

// New returns a renderer for pack.
func New(pack *plugin.Pack) *Renderer {
	return &Renderer{
		pack:    pack,
		builder: contextbuilder.New(pack),
		engine:  rules.NewEngine(pack),
	}
}

// Render loads the template (the pack template when templatePath is empty),
// fills it from data and saves it to outputPath. Nothing is written unless
// every step succeeds. A missing template yields an error wrapping
// docx.ErrTemplateNotFound.
func (r *Renderer) Render(data map[string]any, templatePath, outputPath string) ([]rules.EvaluationTrace, error) {
	if templatePath == "" {
		templatePath = r.pack.TemplatePath()
	}
	doc, err := docx.Open(templatePath)
	if err != nil {
		return nil, err
	}

	traces, err := r.Process(doc, data)
	if err != nil {
		return nil, err
	}
	if err := doc.Save(outputPath); err != nil {
		return nil, err
	}
	logger.Debug("document rendered", "plugin_id", r.pack.ID, "template", templatePath, "output", outputPath)
	return traces, nil
}

// Process applies every rendering step to doc in memory.
func (r *Renderer) Process(doc *docx.Document, data map[string]any) ([]rules.EvaluationTrace, error) {
	ctx := r.builder.Build(data)

	conditionals := r.builder.ConditionalValues(data)
	for name, value := range conditionals {
		ctx[name] = value
	}

	visibility, traces, err := r.engine.EvaluateAll(data)
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}
	ctx[VisibilityKey] = map[string]any(visibility)
	r.applyVisibility(visibility, conditionals, ctx)

	resolve := func(name string) string {
		if v, ok := conditionals[name]; ok {
			return v
		}
		return coerce.BoolToSiNo(ctx[name])
	}

	removed := stripBlocks(doc.Body(), resolve)
	changed := substitute(doc, ctx, resolve)
	r.postProcess(doc)

	logger.Debug("template processed",
		"plugin_id", r.pack.ID,
		"blocks_removed", removed,
		"paragraphs_rewritten", changed,
		"decisions", len(traces))
	return traces, nil
}

// applyVisibility lets decisions drive the template. A bool for an element
// overrides the yes/no value of the variable with the same name; a text key
// exposes that canned text under the element name unless the context
// already has a value there.
func (r *Renderer) applyVisibility(visibility rules.VisibilityMap, conditionals map[string]string, ctx map[string]any) {
	texts := r.pack.TextBlocks()
	for element, value := range visibility {
		switch v := value.(type) {
		case bool:
			conditionals[element] = coerce.BoolToSiNo(v)
		case string:
			if _, exists := ctx[element]; exists {
				continue
			}
			if text, ok := texts[v]; ok {
				ctx[element] = coerce.String(text)
			}
		}
	}
}
