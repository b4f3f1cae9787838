package generate

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/cartagen/dsl"
	"github.com/liamcoop/cartagen/plugin"
	"github.com/liamcoop/cartagen/rules"
	"github.com/liamcoop/cartagen/validation"
)

func comisionPack() *plugin.Pack {
	p := &plugin.Pack{ID: "carta"}
	p.Fields.Fields.Set("Nombre_Cliente", &plugin.FieldSpec{Type: plugin.FieldText, Required: true})
	p.Fields.Fields.Set("comision", &plugin.FieldSpec{Type: plugin.FieldBool})
	p.Fields.Fields.Set("importe_comision", &plugin.FieldSpec{
		Type:      plugin.FieldCurrency,
		Required:  true,
		Condition: dsl.Compare(dsl.OpEquals, "comision", true),
	})
	p.Logic.Rules.Set("con_comision", &plugin.Rule{
		Condition: dsl.Compare(dsl.OpEquals, "comision", true),
		Action:    plugin.Action{Type: plugin.ActionIncludeBlock, Elements: []string{"bloque_comision"}},
	})
	p.DecisionMap.Decisions.Set("comision", &plugin.Decision{Rules: []string{"con_comision"}})
	return p
}

func TestVisibility(t *testing.T) {
	pack := comisionPack()
	g := newTestGenerator(staticPacks{pack.ID: pack})

	tests := []struct {
		name       string
		data       map[string]any
		visible    bool
		required   []string
		blockShown bool
	}{
		{"string yes", map[string]any{"comision": "sí"}, true, []string{"Nombre_Cliente", "importe_comision"}, true},
		{"bool no", map[string]any{"comision": false}, false, []string{"Nombre_Cliente"}, false},
		{"missing", map[string]any{}, false, []string{"Nombre_Cliente"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := g.Visibility(context.Background(), pack.ID, tt.data)
			require.NoError(t, err)

			assert.Equal(t, "carta", report.PluginID)
			assert.Equal(t, tt.visible, report.Fields["importe_comision"])
			assert.True(t, report.Fields["Nombre_Cliente"])
			assert.Equal(t, tt.required, report.RequiredFields)

			shown, ok := report.Visibility.Bool("bloque_comision")
			assert.Equal(t, tt.blockShown, ok && shown)
			require.Len(t, report.Traces, 1)
			assert.Equal(t, rules.OutcomeEvaluated, report.Traces[0].Outcome)
		})
	}
}

func TestValidateOperation(t *testing.T) {
	pack := comisionPack()
	g := newTestGenerator(staticPacks{pack.ID: pack})
	ctx := context.Background()

	result, err := g.Validate(ctx, pack.ID, map[string]any{"comision": "si"}, validation.Options{})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	fields := []string{}
	for _, e := range result.Errors {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"Nombre_Cliente", "importe_comision"}, fields)

	draft, err := g.Validate(ctx, pack.ID, map[string]any{"comision": "si"}, validation.Options{SkipRequired: true})
	require.NoError(t, err)
	assert.True(t, draft.Valid)

	_, err = g.Validate(ctx, "otra", nil, validation.Options{})
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)
}

func TestBrokenFieldGateIsReported(t *testing.T) {
	pack := comisionPack()
	pack.Fields.Fields.Set("secreto", &plugin.FieldSpec{
		Type:      plugin.FieldText,
		Required:  true,
		Condition: dsl.Compare("regex_match", "Nombre_Cliente", "^A"),
	})
	g := newTestGenerator(staticPacks{pack.ID: pack})
	data := map[string]any{"Nombre_Cliente": "ACME"}

	_, err := g.Validate(context.Background(), pack.ID, data, validation.Options{})
	require.ErrorIs(t, err, dsl.ErrOperatorNotAllowed)

	out := t.TempDir()
	result := g.Generate(context.Background(), Request{DocumentType: pack.ID, Data: data, OutputDir: out, Validate: true})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, dsl.ErrOperatorNotAllowed.Error())
	assert.Contains(t, result.Error, "secreto")
	assert.Empty(t, result.ValidationErrors)
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
