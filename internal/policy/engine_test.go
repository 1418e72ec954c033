package policy

import (
	"testing"

	"github.com/vitaliisemenov/videowall-controlplane/internal/configauthority"
)

func TestEvaluate_AdminBypass(t *testing.T) {
	e := NewEngine()
	cfg := configauthority.PolicyConfig{
		Rules: []configauthority.PolicyRule{{ID: "deny-all", Effect: "deny", When: []map[string]any{{"always": true}}}},
	}
	d := e.Evaluate(cfg, Request{OperatorID: "u1", OperatorRoles: []string{"Admin"}})
	if !d.Allowed || d.Reason != "admin_bypass" {
		t.Fatalf("expected admin bypass, got %+v", d)
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	e := NewEngine()
	cfg := configauthority.PolicyConfig{
		Rules: []configauthority.PolicyRule{
			{ID: "allow-subset", Effect: "allow", When: []map[string]any{{"source_tags_subset_of_operator_tags": true}}},
			{ID: "deny-rest", Effect: "deny", When: []map[string]any{{"always": true}}},
		},
	}
	d := e.Evaluate(cfg, Request{
		OperatorTags: []string{"floorA", "floorB"},
		SourceTags:   []string{"floorA"},
	})
	if !d.Allowed || d.Reason != "allowed_by:allow-subset" {
		t.Fatalf("expected allow-subset to match, got %+v", d)
	}
}

func TestEvaluate_DenyWhenSubsetFails(t *testing.T) {
	e := NewEngine()
	cfg := configauthority.PolicyConfig{
		Rules: []configauthority.PolicyRule{
			{ID: "allow-subset", Effect: "allow", When: []map[string]any{{"source_tags_subset_of_operator_tags": true}}},
			{ID: "deny-rest", Effect: "deny", When: []map[string]any{{"always": true}}},
		},
	}
	d := e.Evaluate(cfg, Request{
		OperatorTags: []string{"floorA"},
		SourceTags:   []string{"floorB"},
	})
	if d.Allowed || d.Reason != "denied_by:deny-rest" {
		t.Fatalf("expected deny-rest to match, got %+v", d)
	}
}

func TestEvaluate_AllowListExplicit(t *testing.T) {
	e := NewEngine()
	cfg := configauthority.PolicyConfig{
		AllowList: []configauthority.AllowListEntry{{OperatorID: "op1", WallID: "wall-1", SourceID: "src-1"}},
		Rules: []configauthority.PolicyRule{
			{ID: "allow-listed", Effect: "allow", When: []map[string]any{{"in_explicit_allow_list": true}}},
			{ID: "deny-rest", Effect: "deny", When: []map[string]any{{"always": true}}},
		},
	}
	d := e.Evaluate(cfg, Request{OperatorID: "op1", WallID: "wall-1", SourceID: "src-1"})
	if !d.Allowed || d.Reason != "allowed_by:allow-listed" {
		t.Fatalf("expected allow-listed to match, got %+v", d)
	}
}

func TestEvaluate_NoRulesDefaultDeny(t *testing.T) {
	e := NewEngine()
	d := e.Evaluate(configauthority.PolicyConfig{}, Request{OperatorID: "op1"})
	if d.Allowed || d.Reason != defaultDenyReason {
		t.Fatalf("expected default deny, got %+v", d)
	}
}

func TestEvaluate_CustomDenyReason(t *testing.T) {
	e := NewEngine()
	cfg := configauthority.PolicyConfig{DenyReason: "no_matching_rule"}
	d := e.Evaluate(cfg, Request{OperatorID: "op1"})
	if d.Allowed || d.Reason != "no_matching_rule" {
		t.Fatalf("expected custom deny reason, got %+v", d)
	}
}

func TestEvaluate_UnknownConditionDisqualifiesRule(t *testing.T) {
	e := NewEngine()
	cfg := configauthority.PolicyConfig{
		Rules: []configauthority.PolicyRule{
			{ID: "weird", Effect: "allow", When: []map[string]any{{"nonexistent_condition": true}}},
		},
	}
	d := e.Evaluate(cfg, Request{OperatorID: "op1"})
	if d.Allowed {
		t.Fatalf("expected unknown condition to never match, got %+v", d)
	}
}
