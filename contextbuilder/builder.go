// Package contextbuilder turns validated form data into the template
// context: derived fields, formatting, canned texts and list rendering.
package contextbuilder

import (
	"time"

	"github.com/liamcoop/cartagen/coerce"
	"github.com/liamcoop/cartagen/dsl"
	"github.com/liamcoop/cartagen/internal/logger"
	"github.com/liamcoop/cartagen/plugin"
)

// TextsKey is the reserved context key holding the canned text library.
const TextsKey = "texts"

// DirectorsKey is the context key of the directors list.
const DirectorsKey = "lista_alto_directores"

// DefaultConditionalFields are the yes/no variables templates test with
// {% if VAR == 'si' %} when a manifest does not list its own.
var DefaultConditionalFields = []string{
	"comision", "junta", "comite", "incorreccion", "limitacion_alcance",
	"dudas", "rent", "A_coste", "experto", "unidad_decision",
	"activo_impuesto", "operacion_fiscal", "compromiso", "gestion",
}

// Builder builds template contexts for one pack.
type Builder struct {
	pack *plugin.Pack
}

// New returns a builder for pack.
func New(pack *plugin.Pack) *Builder {
	return &Builder{pack: pack}
}

// Build returns a new context; data is not modified.
func (b *Builder) Build(data map[string]any) map[string]any {
	ctx := make(map[string]any, len(data)+8)
	for k, v := range data {
		ctx[k] = v
	}

	b.computeDerived(ctx)
	b.applyFormatting(ctx)
	ctx[TextsKey] = b.pack.TextBlocks()

	ctx = sanitize(ctx).(map[string]any)

	switch ctx[DirectorsKey].(type) {
	case []any, []map[string]any:
		ctx[DirectorsKey] = FormatDirectors(ctx[DirectorsKey])
	}
	return ctx
}

func (b *Builder) computeDerived(ctx map[string]any) {
	b.pack.Derived.Fields.Each(func(name string, field *plugin.DerivedField) bool {
		if field == nil {
			return true
		}
		for _, dep := range field.Dependencies {
			if dsl.Lookup(ctx, dep) == nil {
				return true
			}
		}
		value, err := evaluateFormula(field.Formula, ctx)
		if err != nil {
			logger.Debug("derived field not computed", "field", name, "formula", field.Formula, "error", err)
			value = nil
		}
		ctx[name] = value
		return true
	})
}

func (b *Builder) applyFormatting(ctx map[string]any) {
	b.pack.Formatting.Fields.Each(func(name string, format *plugin.FieldFormat) bool {
		value, ok := ctx[name]
		if !ok || value == nil || format == nil {
			return true
		}
		shadow := name + "_formatted"
		switch format.Type {
		case "date":
			if formatted, ok := FormatDate(value); ok {
				ctx[name] = formatted
				ctx[shadow] = formatted
			} else {
				ctx[shadow] = value
			}
		case "currency":
			formatted := FormatCurrency(value)
			ctx[name] = formatted
			ctx[shadow] = formatted
		case "percentage":
			formatted := FormatPercentage(value)
			ctx[name] = formatted
			ctx[shadow] = formatted
		}
		return true
	})
}

// sanitize copies v, replacing nil with "" at any depth.
func sanitize(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = sanitize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sanitize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sanitize(item)
		}
		return out
	case time.Time:
		return coerce.FormatSpanishDate(t)
	}
	return v
}

// ConditionalValues maps each conditional variable to "si" or "no".
func (b *Builder) ConditionalValues(data map[string]any) map[string]string {
	fields := b.pack.Manifest.ConditionalFields
	if len(fields) == 0 {
		fields = DefaultConditionalFields
	}
	out := make(map[string]string, len(fields))
	for _, name := range fields {
		out[name] = coerce.BoolToSiNo(dsl.Lookup(data, name))
	}
	return out
}
