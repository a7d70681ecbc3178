package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/engine"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(zerolog.New(nil).Level(zerolog.Disabled))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func conf(groupID, artifactID, version, pkg string) *engine.Configuration {
	c := engine.NewConfiguration()
	c.Set(engine.PropGroupID, groupID)
	c.Set(engine.PropArtifactID, artifactID)
	c.Set(engine.PropVersion, version)
	c.Set(engine.PropPackage, pkg)
	return c
}

func TestNewEngine_Builtins(t *testing.T) {
	e := newTestEngine(t)
	policies := e.ListPolicies()
	if len(policies) != len(GetBuiltinPolicies()) {
		t.Fatalf("loaded %d policies", len(policies))
	}
	// Sorted by name.
	if policies[0].Name != "artifact-naming" {
		t.Errorf("first policy = %s", policies[0].Name)
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		conf       *engine.Configuration
		allowed    bool
		violations int
		warnings   int
	}{
		{"clean", conf("org.acme", "shop", "1.0-SNAPSHOT", "org.acme.shop"), true, 0, 0},
		{"release version", conf("org.acme", "shop", "1.0", "org.acme.shop"), true, 0, 1},
		{"uppercase artifactId", conf("org.acme", "Shop", "1.0-SNAPSHOT", "org.acme"), true, 0, 1},
		{"uppercase package", conf("org.acme", "shop", "1.0-SNAPSHOT", "org.acme.Shop"), true, 0, 1},
		{"foreign package", conf("org.acme", "shop", "1.0-SNAPSHOT", "com.other"), true, 0, 1},
		{"spaces in artifactId", conf("org.acme", "my shop", "1.0-SNAPSHOT", "org.acme"), false, 1, 0},
		{"bad groupId", conf("org/acme", "shop", "1.0-SNAPSHOT", "org.acme"), false, 1, 1},
	}
	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Evaluate(context.Background(), &Input{
				Operation: OperationGenerate,
				Request:   requestInput(engine.Coordinates{}, tt.conf),
			})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if result.Allowed != tt.allowed || len(result.Violations) != tt.violations || len(result.Warnings) != tt.warnings {
				t.Errorf("allowed=%v violations=%v warnings=%v", result.Allowed, result.Violations, result.Warnings)
			}
			if len(result.Failures) != 0 {
				t.Errorf("failures: %v", result.Failures)
			}
		})
	}
}

func TestCheckGeneration(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.CheckGeneration(ctx, engine.Coordinates{}, conf("org.acme", "shop", "1.0", "org.acme"), false); err != nil {
		t.Errorf("advisory findings must not fail: %v", err)
	}

	err := e.CheckGeneration(ctx, engine.Coordinates{}, conf("org.acme", "my shop", "1.0-SNAPSHOT", "org.acme"), false)
	if !errors.Is(err, engine.ErrPolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	var ae *engine.ArchetypeError
	if !errors.As(err, &ae) {
		t.Fatal("expected *engine.ArchetypeError")
	}
	if v, ok := ae.Details["violations"].([]Violation); !ok || v[0].Subject != "artifactId" {
		t.Errorf("violations detail = %v", ae.Details["violations"])
	}
}

func TestCheckCreation(t *testing.T) {
	e := newTestEngine(t)
	// Release versions are normal for archetypes.
	archetype := engine.Coordinates{GroupID: "org.acme", ArtifactID: "shop-archetype", Version: "1.0"}
	if err := e.CheckCreation(context.Background(), archetype, conf("org.acme", "shop", "1.0", "org.acme")); err != nil {
		t.Errorf("CheckCreation() error = %v", err)
	}
	archetype.ArtifactID = "shop archetype"
	if err := e.CheckCreation(context.Background(), archetype, conf("org.acme", "shop", "1.0", "org.acme")); err == nil {
		t.Error("expected violation for an archetype id with a space")
	}
}

func TestApplyPolicies(t *testing.T) {
	e := newTestEngine(t)
	if err := e.ApplyPolicies(context.Background(), []Policy{{Name: "acme-groups", Rego: groupRule, Severity: SeverityWarning, Enabled: true}}); err != nil {
		t.Fatalf("ApplyPolicies() error = %v", err)
	}
	err := e.CheckGeneration(context.Background(), engine.Coordinates{}, conf("com.other", "shop", "1.0-SNAPSHOT", "com.other"), false)
	if !errors.Is(err, engine.ErrPolicyViolation) {
		t.Errorf("expected violation from loaded policy, got %v", err)
	}

	if err := e.DisablePolicy("acme-groups"); err != nil {
		t.Fatal(err)
	}
	if err := e.CheckGeneration(context.Background(), engine.Coordinates{}, conf("com.other", "shop", "1.0-SNAPSHOT", "com.other"), false); err != nil {
		t.Errorf("disabled policy still applied: %v", err)
	}
	if err := e.EnablePolicy("missing"); err == nil {
		t.Error("expected error for unknown policy")
	}

	if err := e.ApplyPolicies(context.Background(), []Policy{{Name: "broken", Rego: "package x\ndeny contains"}}); err == nil {
		t.Error("expected compile error")
	}

	p, err := e.GetPolicy("acme-groups")
	if err != nil {
		t.Fatal(err)
	}
	if p.Enabled {
		t.Error("GetPolicy() reports a disabled policy as enabled")
	}
	if _, err := e.GetPolicy("broken"); err == nil {
		t.Error("a policy that failed to compile was stored")
	}
}
