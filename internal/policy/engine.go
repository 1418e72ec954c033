// Package policy implements the Policy Engine: ordered allow/deny rule
// evaluation over an operator/wall/source triple, grounded on
// services/policy/app/main.py's PolicyEngine.evaluate.
package policy

import (
	"strings"

	"github.com/vitaliisemenov/videowall-controlplane/internal/configauthority"
)

// Request is one evaluation request: can operatorID, holding roles and
// tags, attach sourceID to wallID.
type Request struct {
	WallID        string
	SourceID      string
	OperatorID    string
	OperatorRoles []string
	OperatorTags  []string
	SourceTags    []string
	WallTags      []string
}

// MatchedRule records one rule that was checked against a Decision, in
// evaluation order, for audit and debugging.
type MatchedRule struct {
	ID     string `json:"id"`
	Effect string `json:"effect"`
}

// Decision is the outcome of evaluating a Request.
type Decision struct {
	Allowed      bool          `json:"allowed"`
	Reason       string        `json:"reason"`
	MatchedRules []MatchedRule `json:"matched_rules"`
}

const (
	effectAllow = "allow"
	effectDeny  = "deny"

	condSourceSubsetOfOperator  = "source_tags_subset_of_operator_tags"
	condSourceIntersectWall     = "source_tags_intersect_wall_tags"
	condInExplicitAllowList     = "in_explicit_allow_list"
	condAlways                  = "always"

	defaultDenyReason = "default_deny"
	adminBypassRuleID = "admin-bypass"
)

// Engine evaluates requests against a PolicyConfig. It holds no mutable
// state of its own; callers supply the active PolicyConfig per call (via
// Evaluate) so the engine composes naturally with configauthority.Holder's
// atomic snapshot swap — there is nothing here to reload independently.
type Engine struct{}

// NewEngine constructs a stateless Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate applies cfg's rules, in order, to req. An "admin" role (matched
// case-insensitively) bypasses every rule. Otherwise each rule matches only
// if every one of its When conditions holds; the first matching rule's
// effect decides the outcome. No match falls through to cfg.DenyReason
// (or "default_deny" if unset) — the engine always fails closed.
func (e *Engine) Evaluate(cfg configauthority.PolicyConfig, req Request) Decision {
	for _, r := range req.OperatorRoles {
		if strings.EqualFold(r, "admin") {
			return Decision{
				Allowed:      true,
				Reason:       "admin_bypass",
				MatchedRules: []MatchedRule{{ID: adminBypassRuleID, Effect: effectAllow}},
			}
		}
	}

	opTags := toSet(req.OperatorTags)
	srcTags := toSet(req.SourceTags)
	wallTags := toSet(req.WallTags)

	conditions := map[string]func() bool{
		condSourceSubsetOfOperator: func() bool { return isSubset(srcTags, opTags) },
		condSourceIntersectWall:    func() bool { return intersects(srcTags, wallTags) },
		condInExplicitAllowList: func() bool {
			return inAllowList(cfg.AllowList, req.OperatorID, req.WallID, req.SourceID)
		},
		condAlways: func() bool { return true },
	}

	var matched []MatchedRule
	for _, rule := range cfg.Rules {
		id := rule.ID
		if id == "" {
			id = "rule-unknown"
		}
		effect := strings.ToLower(rule.Effect)
		if effect == "" {
			effect = effectDeny
		}

		if !allConditionsHold(rule.When, conditions) {
			continue
		}

		matched = append(matched, MatchedRule{ID: id, Effect: effect})
		switch effect {
		case effectAllow:
			return Decision{Allowed: true, Reason: "allowed_by:" + id, MatchedRules: matched}
		case effectDeny:
			return Decision{Allowed: false, Reason: "denied_by:" + id, MatchedRules: matched}
		}
	}

	reason := cfg.DenyReason
	if reason == "" {
		reason = defaultDenyReason
	}
	return Decision{Allowed: false, Reason: reason, MatchedRules: matched}
}

// allConditionsHold reports whether every condition named in when is known
// and currently true. An unrecognized condition key, or a malformed
// (empty/multi-key) condition object, makes the rule fail to match — the
// same "unknown condition disqualifies the rule" behavior as the Python
// reference, rather than silently skipping it.
func allConditionsHold(when []map[string]any, conditions map[string]func() bool) bool {
	if len(when) == 0 {
		// A rule with no conditions never matches implicitly; it must say
		// {always: true} to apply unconditionally.
		return false
	}
	for _, condObj := range when {
		if len(condObj) != 1 {
			return false
		}
		var key string
		for k := range condObj {
			key = k
		}
		fn, ok := conditions[key]
		if !ok || !fn() {
			return false
		}
	}
	return true
}

func inAllowList(list []configauthority.AllowListEntry, operatorID, wallID, sourceID string) bool {
	for _, entry := range list {
		if entry.OperatorID == operatorID && entry.WallID == wallID && entry.SourceID == sourceID {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, i := range items {
		s[i] = struct{}{}
	}
	return s
}

func isSubset(sub, super map[string]struct{}) bool {
	for k := range sub {
		if _, ok := super[k]; !ok {
			return false
		}
	}
	return true
}

func intersects(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
