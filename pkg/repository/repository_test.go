package repository

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/archive"
	"github.com/openfroyo/archetype/pkg/engine"
)

func buildJar(t *testing.T, coords engine.Coordinates, descriptorName string) string {
	t.Helper()
	project := t.TempDir()
	files := map[string]string{
		"src/main/resources/archetype-resources/pom.xml": "<project/>",
	}
	if descriptorName != "" {
		files["src/main/resources/META-INF/maven/archetype-metadata.xml"] =
			`<archetype-descriptor name="` + descriptorName + `"><fileSets><fileSet><directory></directory></fileSet></fileSets></archetype-descriptor>`
	}
	for name, content := range files {
		p := filepath.Join(project, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	jar := filepath.Join(t.TempDir(), coords.JarName())
	if _, err := archive.WriteJar(context.Background(), project, coords, jar); err != nil {
		t.Fatalf("WriteJar() error = %v", err)
	}
	return jar
}

func TestInstallResolveCrawl(t *testing.T) {
	ctx := context.Background()
	repo := New(t.TempDir(), zerolog.Nop())

	web1 := engine.Coordinates{GroupID: "org.acme.archetypes", ArtifactID: "web", Version: "1.9"}
	web2 := engine.Coordinates{GroupID: "org.acme.archetypes", ArtifactID: "web", Version: "1.10"}
	plain := engine.Coordinates{GroupID: "org.acme", ArtifactID: "lib", Version: "1.0"}

	for _, tc := range []struct {
		coords engine.Coordinates
		name   string
	}{
		{web1, "Web"},
		{web2, "Web"},
		{plain, ""},
	} {
		path, err := repo.Install(ctx, buildJar(t, tc.coords, tc.name), tc.coords)
		if err != nil {
			t.Fatalf("Install(%s) error = %v", tc.coords, err)
		}
		if path != repo.PathOf(tc.coords) {
			t.Errorf("Install() path = %s", path)
		}
	}

	want := filepath.Join(repo.Root(), "org", "acme", "archetypes", "web", "1.10", "web-1.10.jar")
	got, err := repo.Resolve(engine.Coordinates{GroupID: "org.acme.archetypes", ArtifactID: "web"})
	if err != nil || got != want {
		t.Errorf("Resolve() = %s, %v; want %s", got, err, want)
	}

	if _, err := repo.Resolve(engine.Coordinates{GroupID: "org.acme", ArtifactID: "missing", Version: "1"}); !engine.IsUnknownArchetype(err) {
		t.Errorf("expected unknown-archetype, got %v", err)
	}

	versions, err := repo.Versions("org.acme.archetypes", "web")
	if err != nil || !reflect.DeepEqual(versions, []string{"1.9", "1.10"}) {
		t.Errorf("Versions() = %v, %v", versions, err)
	}

	entries, err := repo.Crawl(ctx)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Crawl() found %d archetypes, want 2: %+v", len(entries), entries)
	}
	if entries[0].Coordinates != web1 || entries[1].Coordinates != web2 || entries[0].Description != "Web" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestCrawl_MissingRoot(t *testing.T) {
	repo := New(filepath.Join(t.TempDir(), "none"), zerolog.Nop())
	entries, err := repo.Crawl(context.Background())
	if err != nil || len(entries) != 0 {
		t.Errorf("Crawl() = %v, %v", entries, err)
	}
}

func TestInstall_IncompleteCoordinates(t *testing.T) {
	repo := New(t.TempDir(), zerolog.Nop())
	if _, err := repo.Install(context.Background(), "x.jar", engine.Coordinates{ArtifactID: "x"}); err == nil {
		t.Error("expected error")
	}
}
