// Package plugin defines the configuration pack that drives one document
// type (fields, derived formulas, rules, decisions, formatting and canned
// texts) together with the providers and caches that load it.
package plugin

import (
	"path/filepath"

	"github.com/liamcoop/cartagen/dsl"
)

// FieldType is the declared type of an input field.
type FieldType string

// Field types understood by the validator and the preprocessor.
const (
	FieldText     FieldType = "text"
	FieldDate     FieldType = "date"
	FieldCurrency FieldType = "currency"
	FieldInt      FieldType = "int"
	FieldDecimal  FieldType = "decimal"
	FieldBool     FieldType = "bool"
	FieldEnum     FieldType = "enum"
	FieldList     FieldType = "list"
)

// ActionType says what a rule does when its condition holds.
type ActionType string

// Rule actions.
const (
	ActionIncludeBlock ActionType = "include_block"
	ActionExcludeBlock ActionType = "exclude_block"
	ActionSetText      ActionType = "set_text"
	ActionIncludeText  ActionType = "include_text"
)

// Document kinds stored per plugin, one YAML file or database row each.
const (
	KindManifest    = "manifest"
	KindFields      = "fields"
	KindDerived     = "derived"
	KindLogic       = "logic"
	KindDecisionMap = "decision_map"
	KindFormatting  = "formatting"
	KindTexts       = "texts"
)

// Kinds lists every document kind in load order.
var Kinds = []string{KindManifest, KindFields, KindDerived, KindLogic, KindDecisionMap, KindFormatting, KindTexts}

// Pack is the full configuration for one document type. A loaded pack is
// shared read-only between concurrent generations and must not be mutated.
type Pack struct {
	ID          string      `json:"id"`
	Dir         string      `json:"dir,omitempty"`
	Manifest    Manifest    `json:"manifest"`
	Fields      FieldsDoc   `json:"fields"`
	Derived     DerivedDoc  `json:"derived"`
	Logic       LogicDoc    `json:"logic"`
	DecisionMap DecisionMap `json:"decision_map"`
	Formatting  Formatting  `json:"formatting"`
	Texts       TextsDoc    `json:"texts"`
}

// Manifest holds plugin metadata.
type Manifest struct {
	ID                string       `json:"plugin_id,omitempty" yaml:"plugin_id,omitempty"`
	Name              string       `json:"name,omitempty" yaml:"name,omitempty"`
	Version           string       `json:"version,omitempty" yaml:"version,omitempty"`
	Description       string       `json:"description,omitempty" yaml:"description,omitempty"`
	Template          TemplateInfo `json:"template" yaml:"template"`
	OutputPrefix      string       `json:"output_prefix,omitempty" yaml:"output_prefix,omitempty"`
	ConditionalFields []string     `json:"conditional_fields,omitempty" yaml:"conditional_fields,omitempty" validate:"dive,required"`
}

// TemplateInfo points at the Word template.
type TemplateInfo struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// FieldsDoc is the fields document.
type FieldsDoc struct {
	Fields OrderedMap[*FieldSpec] `json:"fields" yaml:"fields"`
}

// FieldSpec declares one input field.
type FieldSpec struct {
	Type       FieldType               `json:"type" yaml:"type" validate:"required,oneof=text date currency int decimal bool enum list"`
	Required   bool                    `json:"required,omitempty" yaml:"required,omitempty"`
	Default    any                     `json:"default,omitempty" yaml:"default,omitempty"`
	Label      string                  `json:"label,omitempty" yaml:"label,omitempty"`
	Section    string                  `json:"section,omitempty" yaml:"section,omitempty"`
	Condition  *dsl.Condition          `json:"condition,omitempty" yaml:"condition,omitempty"`
	Validation *ValidationRules        `json:"validation,omitempty" yaml:"validation,omitempty"`
	Values     []EnumOption            `json:"values,omitempty" yaml:"values,omitempty" validate:"required_if=Type enum"`
	ItemSchema *OrderedMap[*FieldSpec] `json:"item_schema,omitempty" yaml:"item_schema,omitempty"`
}

// ValidationRules are the optional business checks on a field.
type ValidationRules struct {
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength int      `json:"min_length,omitempty" yaml:"min_length,omitempty" validate:"gte=0"`
	MaxLength int      `json:"max_length,omitempty" yaml:"max_length,omitempty" validate:"gte=0"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// EnumOption is one allowed value of an enum field.
type EnumOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// AllowedValues returns the enum option values in order.
func (f *FieldSpec) AllowedValues() []string {
	out := make([]string, 0, len(f.Values))
	for _, v := range f.Values {
		out = append(out, v.Value)
	}
	return out
}

// DerivedDoc is the derived fields document.
type DerivedDoc struct {
	Fields OrderedMap[*DerivedField] `json:"derived_fields" yaml:"derived_fields"`
}

// DerivedField is a value computed from other fields.
type DerivedField struct {
	Formula      string   `json:"formula" yaml:"formula" validate:"required"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// LogicDoc is the rules document.
type LogicDoc struct {
	Rules OrderedMap[*Rule] `json:"rules" yaml:"rules"`
}

// Rule pairs a condition with an action.
type Rule struct {
	ID          string         `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Condition   *dsl.Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Action      Action         `json:"action" yaml:"action"`
}

// Action is what a rule does to the visibility map.
type Action struct {
	Type     ActionType `json:"type" yaml:"type" validate:"required,oneof=include_block exclude_block set_text include_text"`
	Elements []string   `json:"elements,omitempty" yaml:"elements,omitempty"`
	TextKey  string     `json:"text_key,omitempty" yaml:"text_key,omitempty" validate:"required_if=Type set_text"`
}

// DecisionMap is the decisions document.
type DecisionMap struct {
	Decisions               OrderedMap[*Decision] `json:"decisions" yaml:"decisions"`
	ConditionalDependencies map[string][]string   `json:"conditional_dependencies,omitempty" yaml:"conditional_dependencies,omitempty"`
}

// Decision groups rules. An exclusive decision applies at most one action.
type Decision struct {
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []string `json:"rules,omitempty" yaml:"rules,omitempty"`
	Exclusive   bool     `json:"exclusive,omitempty" yaml:"exclusive,omitempty"`
	Default     string   `json:"default,omitempty" yaml:"default,omitempty"`
}

// Formatting is the formatting document.
type Formatting struct {
	Fields OrderedMap[*FieldFormat] `json:"fields" yaml:"fields"`
	Colors map[string]string        `json:"colors,omitempty" yaml:"colors,omitempty" validate:"dive,keys,required,endkeys,required"`
}

// FieldFormat selects how a context value is rendered.
type FieldFormat struct {
	Type string `json:"type" yaml:"type" validate:"required,oneof=date currency percentage"`
}

// TextsDoc is the canned text library.
type TextsDoc struct {
	Blocks OrderedMap[any] `json:"text_blocks" yaml:"text_blocks"`
}

// Field returns the spec for name, or nil.
func (p *Pack) Field(name string) *FieldSpec {
	spec, _ := p.Fields.Fields.Get(name)
	return spec
}

// TextBlocks returns the text library as a plain map for the template context.
func (p *Pack) TextBlocks() map[string]any {
	out := make(map[string]any, p.Texts.Blocks.Len())
	p.Texts.Blocks.Each(func(k string, v any) bool {
		out[k] = v
		return true
	})
	return out
}

// TemplatePath resolves the Word template for the pack. A relative manifest
// path is taken relative to the pack directory; without one the template is
// expected at <dir>/template.docx.
func (p *Pack) TemplatePath() string {
	path := p.Manifest.Template.Path
	if path == "" {
		return filepath.Join(p.Dir, "template.docx")
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}
