// Package rules evaluates the decisions of a plugin pack into a visibility
// map and computes which input fields are visible and required.
package rules

import (
	"fmt"

	"github.com/liamcoop/cartagen/dsl"
	"github.com/liamcoop/cartagen/internal/logger"
	"github.com/liamcoop/cartagen/plugin"
)

// Engine evaluates the rules and decisions of one pack.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	pack *plugin.Pack
}

// NewEngine creates an engine over pack.
func NewEngine(pack *plugin.Pack) *Engine {
	return &Engine{pack: pack}
}

// EvaluateAll walks the decisions in declaration order and returns a fresh
// visibility map plus one trace per decision. A malformed condition aborts
// the evaluation with its *dsl.EvaluationError.
func (en *Engine) EvaluateAll(data map[string]any) (VisibilityMap, []EvaluationTrace, error) {
	visibility := VisibilityMap{}
	traces := make([]EvaluationTrace, 0, en.pack.DecisionMap.Decisions.Len())

	var evalErr error
	en.pack.DecisionMap.Decisions.Each(func(decisionID string, decision *plugin.Decision) bool {
		trace, err := en.evaluateDecision(decisionID, decision, data, visibility)
		if err != nil {
			evalErr = fmt.Errorf("decision %s: %w", decisionID, err)
			return false
		}
		traces = append(traces, trace)
		return true
	})
	if evalErr != nil {
		return nil, nil, evalErr
	}
	return visibility, traces, nil
}

func (en *Engine) evaluateDecision(decisionID string, decision *plugin.Decision, data map[string]any, visibility VisibilityMap) (EvaluationTrace, error) {
	trace := EvaluationTrace{
		DecisionID:  decisionID,
		Description: decision.Description,
		RuleHits:    []RuleHit{},
		Outcome:     OutcomeEvaluated,
	}
	exclusiveHit := false

	for _, ruleID := range decision.Rules {
		rule, ok := en.pack.Logic.Rules.Get(ruleID)
		if !ok || rule == nil {
			logger.Debug("decision references unknown rule", "decision_id", decisionID, "rule_id", ruleID)
			continue
		}

		if decision.Exclusive && exclusiveHit {
			hit := newHit(ruleID, rule)
			hit.Skipped = true
			trace.RuleHits = append(trace.RuleHits, hit)
			continue
		}

		met, err := dsl.Evaluate(rule.Condition, data)
		if err != nil {
			return trace, fmt.Errorf("rule %s: %w", ruleID, err)
		}
		hit := newHit(ruleID, rule)
		hit.ConditionMet = met
		trace.RuleHits = append(trace.RuleHits, hit)

		if !met {
			continue
		}
		if decision.Exclusive {
			exclusiveHit = true
		}
		applyAction(hit, visibility)
	}

	if decision.Exclusive && !exclusiveHit && decision.Default != "" {
		visibility["text_"+decisionID] = decision.Default
	}
	if exclusiveHit {
		trace.Outcome = OutcomeExclusiveHit
	}
	return trace, nil
}

func newHit(ruleID string, rule *plugin.Rule) RuleHit {
	id := rule.ID
	if id == "" {
		id = ruleID
	}
	elements := rule.Action.Elements
	if elements == nil {
		elements = []string{}
	}
	return RuleHit{
		RuleID:           id,
		RuleName:         rule.Name,
		ActionType:       rule.Action.Type,
		AffectedElements: elements,
		TextKey:          rule.Action.TextKey,
	}
}

func applyAction(hit RuleHit, visibility VisibilityMap) {
	for _, element := range hit.AffectedElements {
		switch hit.ActionType {
		case plugin.ActionIncludeBlock, plugin.ActionIncludeText:
			visibility[element] = true
		case plugin.ActionExcludeBlock:
			visibility[element] = false
		case plugin.ActionSetText:
			visibility[element] = hit.TextKey
		}
	}
}

// FieldVisibility evaluates each field's own gate. Fields without one are
// visible.
func (en *Engine) FieldVisibility(data map[string]any) (map[string]bool, error) {
	visibility := make(map[string]bool, en.pack.Fields.Fields.Len())
	var err error
	en.pack.Fields.Fields.Each(func(name string, spec *plugin.FieldSpec) bool {
		visible := true
		if spec != nil && !spec.Condition.IsEmpty() {
			visible, err = dsl.Evaluate(spec.Condition, data)
			if err != nil {
				err = fmt.Errorf("field %s: %w", name, err)
				return false
			}
		}
		visibility[name] = visible
		return true
	})
	if err != nil {
		return nil, err
	}
	return visibility, nil
}

// RequiredFields lists, in declaration order, the required fields that are
// currently visible.
func (en *Engine) RequiredFields(data map[string]any) ([]string, error) {
	visibility, err := en.FieldVisibility(data)
	if err != nil {
		return nil, err
	}
	required := []string{}
	en.pack.Fields.Fields.Each(func(name string, spec *plugin.FieldSpec) bool {
		if spec != nil && spec.Required && visibility[name] {
			required = append(required, name)
		}
		return true
	})
	return required, nil
}
