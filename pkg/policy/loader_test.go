package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

const groupRule = `# Projects must live under org.acme
package acme.groups

import rego.v1

deny contains violation if {
	not startswith(input.request.groupId, "org.acme")
	violation := {
		"message": sprintf("groupId '%s' is outside org.acme", [input.request.groupId]),
		"severity": "error",
		"subject": "groupId",
	}
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func loadOne(t *testing.T, path string) (*Policy, error) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return loadFile(path, info)
}

func TestLoadFile_Rego(t *testing.T) {
	policyFile := filepath.Join(t.TempDir(), "acme-groups.rego")
	writeFile(t, policyFile, groupRule)

	policy, err := loadOne(t, policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if policy.Name != "acme-groups" {
		t.Errorf("Expected name 'acme-groups', got '%s'", policy.Name)
	}
	if policy.Description != "Projects must live under org.acme" {
		t.Errorf("Description = %q", policy.Description)
	}
	if policy.Severity != SeverityWarning || !policy.Enabled || len(policy.Operations) != 0 {
		t.Errorf("unexpected defaults: %+v", policy)
	}
	if policy.Metadata["source"] != policyFile || policy.CreatedAt.IsZero() {
		t.Errorf("metadata = %v, created %v", policy.Metadata, policy.CreatedAt)
	}
}

func TestLoadFile_RegoAnnotations(t *testing.T) {
	policyFile := filepath.Join(t.TempDir(), "release-only.rego")
	writeFile(t, policyFile, `# Archetypes are released, never snapshots
# severity: error
# operations: create
# tags: versioning, release
package acme.release
`)

	policy, err := loadOne(t, policyFile)
	if err != nil {
		t.Fatal(err)
	}
	if policy.Description != "Archetypes are released, never snapshots" {
		t.Errorf("Description = %q", policy.Description)
	}
	if policy.Severity != SeverityError {
		t.Errorf("Severity = %s", policy.Severity)
	}
	if !reflect.DeepEqual(policy.Operations, []string{OperationCreate}) {
		t.Errorf("Operations = %v", policy.Operations)
	}
	if !reflect.DeepEqual(policy.Tags, []string{"versioning", "release"}) {
		t.Errorf("Tags = %v", policy.Tags)
	}
	if policy.AppliesTo(OperationGenerate) || !policy.AppliesTo(OperationCreate) {
		t.Error("policy should only apply to create")
	}
}

func TestLoadFile_JSON(t *testing.T) {
	dir := t.TempDir()
	policyFile := filepath.Join(dir, "groups.json")
	data, err := json.Marshal(map[string]interface{}{"rego": groupRule, "operations": []string{"generate"}})
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, policyFile, string(data))

	loaded, err := loadOne(t, policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if loaded.Name != "groups" || loaded.Severity != SeverityWarning || !loaded.Enabled {
		t.Errorf("loaded = %+v", loaded)
	}

	disabled := filepath.Join(dir, "off.json")
	writeFile(t, disabled, `{"name": "off", "rego": "package off\n", "enabled": false}`)
	loaded, err = loadOne(t, disabled)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Enabled {
		t.Error("enabled: false should be kept")
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rules", "a.rego"), "package a\n")
	writeFile(t, filepath.Join(dir, "rules", "nested", "b.rego"), "package b\n")
	writeFile(t, filepath.Join(dir, "rules", "broken.rego"), "# severity: fatal\npackage broken\n")
	writeFile(t, filepath.Join(dir, "rules", "README.md"), "# ignored")
	writeFile(t, filepath.Join(dir, "c.rego"), "package c\n")

	loaded, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "rules"), filepath.Join(dir, "c.rego")})
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}
	if len(loaded) != 3 {
		t.Errorf("Expected 3 policies, got %d", len(loaded))
	}

	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("Expected error for non-existent path")
	}
	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "rules", "broken.rego")}); err == nil {
		t.Error("Expected error for a broken file named directly")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"x.txt":         "not a policy",
		"x.json":        "invalid json",
		"norego.json":   `{"name": "norego"}`,
		"severity.rego": "# severity: fatal\npackage x\n",
		"op.rego":       "# operations: deploy\npackage x\n",
	}
	for name, content := range files {
		writeFile(t, filepath.Join(dir, name), content)
	}
	for name := range files {
		if _, err := loadOne(t, filepath.Join(dir, name)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSplitHeader(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expected    string
		annotations map[string]string
	}{
		{"single line", "# Naming rules\npackage test", "Naming rules", map[string]string{}},
		{"multi line", "# Naming rules\n# for artifacts\npackage test", "Naming rules for artifacts", map[string]string{}},
		{"no comments", "package test\n", "", map[string]string{}},
		{"blank comment lines", "# First\n#\n# Second\npackage test", "First Second", map[string]string{}},
		{"colon in text", "# Note: groups are checked\npackage test", "Note: groups are checked", map[string]string{}},
		{"annotations", "# Rules\n# severity: info\n# enabled: false\npackage test", "Rules",
			map[string]string{"severity": "info", "enabled": "false"}},
		{"later comments ignored", "# Rules\n\n# severity: error\npackage test", "Rules", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, annotations := splitHeader(tt.content)
			if desc != tt.expected {
				t.Errorf("description = %q, want %q", desc, tt.expected)
			}
			if !reflect.DeepEqual(annotations, tt.annotations) {
				t.Errorf("annotations = %v, want %v", annotations, tt.annotations)
			}
		})
	}
}

func TestLoadPolicies_Operations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "acme-groups.rego"), "# severity: error\n# operations: create\n"+groupRule)

	e := newTestEngine(t)
	if err := e.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatal(err)
	}
	result, err := e.Evaluate(context.Background(), &Input{
		Operation: OperationGenerate,
		Request:   RequestInput{GroupID: "com.other", ArtifactID: "shop", Version: "1.0-SNAPSHOT", Package: "com.other"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range result.EvaluatedPolicies {
		if name == "acme-groups" {
			t.Error("create-only policy evaluated for generate")
		}
	}
	if !result.Allowed {
		t.Errorf("generate blocked: %+v", result.Violations)
	}

	result, err = e.Evaluate(context.Background(), &Input{
		Operation: OperationCreate,
		Request:   RequestInput{GroupID: "com.other", ArtifactID: "shop-archetype", Version: "1.0"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Error("create-only policy did not block create")
	}
}
