package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestArchetypeError_Is(t *testing.T) {
	err := NewProjectDirectoryExistsError("/tmp/demo")
	wrapped := fmt.Errorf("generate: %w", err)

	if !errors.Is(wrapped, ErrProjectDirectoryExists) {
		t.Error("wrapped error should match ErrProjectDirectoryExists")
	}
	if errors.Is(wrapped, ErrOutputFileExists) {
		t.Error("wrapped error should not match ErrOutputFileExists")
	}
	if !IsExistingOutput(wrapped) {
		t.Error("IsExistingOutput should be true")
	}
}

func TestArchetypeError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "unknown archetype",
			err:  NewUnknownArchetypeError(Coordinates{GroupID: "g", ArtifactID: "a", Version: "1"}, nil),
			want: []string{"archetype not found", "archetype=g:a:1"},
		},
		{
			name: "missing properties",
			err:  NewArchetypeNotConfiguredError([]string{"groupId", "package"}, nil),
			want: []string{"groupId", "package"},
		},
		{
			name: "wrapped cause",
			err:  NewError(KindGenerationFailure, "template failed", errors.New("boom")).WithPath("App.java"),
			want: []string{"template failed", "path=App.java", "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(msg, w) {
					t.Errorf("message %q should contain %q", msg, w)
				}
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain errors have no kind")
	}
	if !IsArchetypeNotDefined(NewArchetypeNotDefinedError()) {
		t.Error("expected archetype-not-defined")
	}
	if !IsUnknownArchetype(fmt.Errorf("x: %w", NewUnknownArchetypeError(Coordinates{}, nil))) {
		t.Error("expected unknown-archetype through wrapping")
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		in   string
		want Coordinates
	}{
		{"quickstart", Coordinates{ArtifactID: "quickstart"}},
		{"org.acme:web", Coordinates{GroupID: "org.acme", ArtifactID: "web"}},
		{"org.acme:web:1.2", Coordinates{GroupID: "org.acme", ArtifactID: "web", Version: "1.2"}},
	}
	for _, tt := range tests {
		if got := ParseCoordinates(tt.in); got != tt.want {
			t.Errorf("ParseCoordinates(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	c := Coordinates{GroupID: "org.acme.tools", ArtifactID: "web", Version: "1.2"}
	if c.Path() != "org/acme/tools/web/1.2" {
		t.Errorf("unexpected path %s", c.Path())
	}
	if c.JarName() != "web-1.2.jar" {
		t.Errorf("unexpected jar name %s", c.JarName())
	}
}

func TestConfiguration_Order(t *testing.T) {
	cfg := NewConfiguration()
	cfg.Set("version", "1")
	cfg.Set("groupId", "g")
	cfg.Set("version", "2")

	if len(cfg.Keys) != 2 || cfg.Keys[0] != "version" {
		t.Errorf("unexpected key order %v", cfg.Keys)
	}
	if cfg.Value("version") != "2" {
		t.Errorf("expected overwritten value, got %s", cfg.Value("version"))
	}
	if sorted := cfg.SortedKeys(); sorted[0] != "groupId" {
		t.Errorf("unexpected sorted keys %v", sorted)
	}
}
