package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bootkit/bootkit/pkg/engine"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger, opts...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{"denied-packages", "runtime-pinning", "secure-sources"}
	if len(policies) != len(expected) {
		t.Fatalf("Expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("Expected policy %s at %d, got %s", name, i, policies[i].Name)
		}
	}
}

func testPlan() *engine.Plan {
	return &engine.Plan{
		Target:         "windows",
		PackageManager: engine.ManagerScoop,
		Actions: []engine.PlannedAction{
			{
				Kind: engine.ActionInstall, Category: engine.CategorySources, Adapter: "scoop",
				Source: &engine.SourceSpec{Name: "sketchy", URL: "http://example.com/bucket", Manager: "scoop"},
			},
			{
				Kind: engine.ActionInstall, Category: engine.CategorySources, Adapter: "scoop",
				Source: &engine.SourceSpec{Name: "extras", URL: "https://github.com/ScoopInstaller/Extras", Manager: "scoop"},
			},
			{
				Kind: engine.ActionInstall, Category: engine.CategoryPackages, Adapter: "scoop",
				Package: &engine.PackageSpec{Name: "Telemetry-Agent"},
			},
			{
				Kind: engine.ActionSkip, Category: engine.CategoryPackages, Adapter: "scoop",
				Package: &engine.PackageSpec{Name: "telemetry-agent", Source: "extras"}, Reason: engine.SkipAlreadySatisfied,
			},
			{
				Kind: engine.ActionInstall, Category: engine.CategoryRuntimes, Adapter: "mise",
				Runtime: &engine.RuntimeSpec{Name: "node", Version: "latest", Command: "node"},
			},
		},
	}
}

func TestApply(t *testing.T) {
	eng := newTestEngine(t, WithConfig(InputConfig{DeniedPackages: []string{"telemetry-agent"}}))
	plan := testPlan()
	plan.ID = plan.ContentID()

	gated, violations, err := eng.Apply(context.Background(), plan)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(violations) != 3 {
		t.Errorf("Expected 3 violations, got %d: %+v", len(violations), violations)
	}

	tests := []struct {
		index  int
		kind   engine.ActionKind
		reason engine.SkipReason
	}{
		{0, engine.ActionSkip, engine.SkipPolicyDenied},
		{1, engine.ActionInstall, ""},
		{2, engine.ActionSkip, engine.SkipPolicyDenied},
		{3, engine.ActionSkip, engine.SkipAlreadySatisfied},
		{4, engine.ActionInstall, ""},
	}
	for _, tt := range tests {
		a := gated.Actions[tt.index]
		if a.Kind != tt.kind || a.Reason != tt.reason {
			t.Errorf("Action %d: expected %s (%s), got %s (%s)", tt.index, tt.kind, tt.reason, a.Kind, a.Reason)
		}
	}

	if !strings.Contains(gated.Actions[0].Detail, "unencrypted") {
		t.Errorf("Expected denial detail, got %q", gated.Actions[0].Detail)
	}
	if len(gated.Warnings) != 1 || !strings.Contains(gated.Warnings[0], "runtime-pinning") {
		t.Errorf("Expected one pinning warning, got %v", gated.Warnings)
	}

	if plan.Actions[0].Kind != engine.ActionInstall || len(plan.Warnings) != 0 {
		t.Error("Expected input plan to be left unchanged")
	}
	if gated.ID == plan.ID {
		t.Error("Expected gated plan to get a new content ID")
	}
}

func TestApply_AllowHTTP(t *testing.T) {
	eng := newTestEngine(t, WithConfig(InputConfig{AllowHTTP: true}))

	gated, _, err := eng.Apply(context.Background(), testPlan())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if gated.Actions[0].Kind != engine.ActionInstall {
		t.Errorf("Expected http source to be allowed, got %s", gated.Actions[0])
	}
	if gated.Actions[2].Kind != engine.ActionInstall {
		t.Errorf("Expected package to be allowed without a deny list, got %s", gated.Actions[2])
	}
}

func TestDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.DisablePolicy("runtime-pinning"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := eng.DisablePolicy("missing"); err == nil {
		t.Error("Expected error for unknown policy")
	}

	plan := testPlan()
	violations, err := eng.EvaluateAction(context.Background(), plan, &plan.Actions[4])
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("Expected no violations from a disabled policy, got %+v", violations)
	}
}
