package fileset

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"**/*.java", "App.java", true},
		{"**/*.java", "org/acme/App.java", true},
		{"**/*.java", "org/acme/App.xml", false},
		{"*.xml", "pom.xml", true},
		{"*.xml", "sub/pom.xml", false},
		{"src/**/*.txt", "src/a.txt", true},
		{"src/**/*.txt", "src/a/b/c.txt", true},
		{"src/", "src/a/b", true},
		{"src/**", "src", true},
		{"a?c", "abc", true},
		{"a?c", "a/c", false},
		{"**/.git/**", ".git/config", true},
		{"**/.git/**", "sub/.git", true},
		{"weird{name}.txt", "weird{name}.txt", true},
		{"**/__artifactId__*.md", "docs/__artifactId__-guide.md", true},
		{"./*.md", "README.md", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			p, err := Compile(tt.pattern)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if got := p.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestCompile_Empty(t *testing.T) {
	if _, err := Compile("  "); err == nil {
		t.Error("expected error for empty pattern")
	}
}

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{"**/*.java", "**/*.xml"}, []string{"**/generated/**"}, true)
	if err != nil {
		t.Fatal(err)
	}

	got := m.Filter([]string{
		"pom.xml",
		"src/App.java",
		"src/generated/Gen.java",
		"README.md",
		"src/App.java~",
		".git/HEAD.xml",
	})
	want := []string{"pom.xml", "src/App.java"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter() = %v, want %v", got, want)
	}
}

func TestMatcher_NoIncludes(t *testing.T) {
	m, err := NewMatcher(nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Match(".gitignore") {
		t.Error("everything should match without includes or default excludes")
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"pom.xml":                      "<project/>",
		"src/main/java/App.java":       "class App {}",
		"src/main/resources/app.yml":   "a: b",
		".git/config":                  "[core]",
		"src/main/java/App.java.orig~": "old",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ScanDir(context.Background(), dir, nil, []string{"**/*.yml"})
	if err != nil {
		t.Fatalf("ScanDir() error = %v", err)
	}
	want := []string{"pom.xml", "src/main/java/App.java"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScanDir() = %v, want %v", got, want)
	}
}

func TestScan_Cancelled(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, _ := NewMatcher(nil, nil, false)
	if _, err := Scan(ctx, os.DirFS(dir), m); err == nil {
		t.Error("expected context error")
	}
}

func TestExtensionAndInclude(t *testing.T) {
	tests := []struct {
		path, ext, include string
	}{
		{"src/App.java", "java", "**/*.java"},
		{"docs/archive.tar.gz", "gz", "**/*.gz"},
		{".gitignore", "", "**/.gitignore"},
		{"bin/Makefile", "", "**/Makefile"},
	}
	for _, tt := range tests {
		if got := ExtensionOf(tt.path); got != tt.ext {
			t.Errorf("ExtensionOf(%q) = %q, want %q", tt.path, got, tt.ext)
		}
		if got := IncludeFor(tt.path); got != tt.include {
			t.Errorf("IncludeFor(%q) = %q, want %q", tt.path, got, tt.include)
		}
	}
}
