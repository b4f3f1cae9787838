package generate

import (
	"context"
	"fmt"

	"github.com/liamcoop/cartagen/plugin"
	"github.com/liamcoop/cartagen/rules"
	"github.com/liamcoop/cartagen/validation"
)

// VisibilityReport is what a form needs to lay itself out for the current
// input: which fields show, which of them are required, and what the
// decisions currently pick.
type VisibilityReport struct {
	PluginID       string                  `json:"plugin_id"`
	Fields         map[string]bool         `json:"fields"`
	RequiredFields []string                `json:"required_fields"`
	Visibility     rules.VisibilityMap     `json:"visibility"`
	Traces         []rules.EvaluationTrace `json:"evaluation_traces"`
}

// Validate prepares data the way Generate does and validates it without
// rendering anything.
func (g *Generator) Validate(ctx context.Context, pluginID string, data map[string]any, opts validation.Options) (*validation.Result, error) {
	pack, err := g.packs.Get(ctx, pluginID)
	if err != nil {
		return nil, err
	}
	return validation.New(pack).Validate(g.prepare(pack, data), opts)
}

// Visibility evaluates the field gates and decisions for data.
func (g *Generator) Visibility(ctx context.Context, pluginID string, data map[string]any) (*VisibilityReport, error) {
	pack, err := g.packs.Get(ctx, pluginID)
	if err != nil {
		return nil, err
	}
	data = g.prepare(pack, data)
	engine := rules.NewEngine(pack)

	fields, err := engine.FieldVisibility(data)
	if err != nil {
		return nil, fmt.Errorf("field visibility: %w", err)
	}
	required, err := engine.RequiredFields(data)
	if err != nil {
		return nil, fmt.Errorf("required fields: %w", err)
	}
	visibility, traces, err := engine.EvaluateAll(data)
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}
	return &VisibilityReport{
		PluginID:       pack.ID,
		Fields:         fields,
		RequiredFields: required,
		Visibility:     visibility,
		Traces:         traces,
	}, nil
}

func (g *Generator) prepare(pack *plugin.Pack, data map[string]any) map[string]any {
	return Preprocess(pack, ApplyDefaults(pack, data, g.now()))
}
