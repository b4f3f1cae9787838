package rules

import "github.com/liamcoop/cartagen/plugin"

// Outcome summarises how a decision resolved.
type Outcome string

const (
	// OutcomeExclusiveHit means an exclusive decision applied one rule.
	OutcomeExclusiveHit Outcome = "exclusive_hit"
	// OutcomeEvaluated covers every other decision.
	OutcomeEvaluated Outcome = "evaluated"
)

// RuleHit records one rule of a decision. Skipped is set for rules of an
// exclusive decision that came after the winning rule; their condition was
// not evaluated and their action never applied. In JSON such a hit carries
// "skipped": true with "condition_met": false; evaluated hits omit the key.
type RuleHit struct {
	RuleID           string            `json:"rule_id"`
	RuleName         string            `json:"rule_name"`
	ConditionMet     bool              `json:"condition_met"`
	Skipped          bool              `json:"skipped,omitempty"`
	ActionType       plugin.ActionType `json:"action_type"`
	AffectedElements []string          `json:"affected_elements"`
	TextKey          string            `json:"text_key,omitempty"`
}

// EvaluationTrace is the audit record of one decision.
type EvaluationTrace struct {
	DecisionID  string    `json:"decision_id"`
	Description string    `json:"description"`
	RuleHits    []RuleHit `json:"rule_hits"`
	Outcome     Outcome   `json:"outcome"`
}

// VisibilityMap maps a block or element id to a bool (show/hide) or a
// string naming a canned text block.
type VisibilityMap map[string]any

// Bool returns the show/hide flag for id when one was recorded.
func (v VisibilityMap) Bool(id string) (value, ok bool) {
	value, ok = v[id].(bool)
	return value, ok
}

// TextKey returns the text block key for id when one was recorded.
func (v VisibilityMap) TextKey(id string) (string, bool) {
	key, ok := v[id].(string)
	return key, ok
}
