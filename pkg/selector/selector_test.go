package selector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/archive"
	"github.com/openfroyo/archetype/pkg/catalog"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/prompt"
	"github.com/openfroyo/archetype/pkg/repository"
)

var (
	quick13 = engine.Coordinates{GroupID: "org.apache.maven.archetypes", ArtifactID: "maven-archetype-quickstart", Version: "1.3"}
	quick14 = engine.Coordinates{GroupID: "org.apache.maven.archetypes", ArtifactID: "maven-archetype-quickstart", Version: "1.4"}
	web     = engine.Coordinates{GroupID: "org.acme", ArtifactID: "web", Version: "2.0"}
	tool    = engine.Coordinates{GroupID: "org.acme", ArtifactID: "tool", Version: "0.9"}
)

func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "src", "main", "resources", "META-INF", "maven", "archetype-metadata.xml")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(`<archetype-descriptor name="x"/>`), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// fixture installs quickstart 1.3/1.4, web and tool; the catalog lists all
// but tool.
func fixture(t *testing.T, answers ...string) (*Selector, *repository.Repository, *prompt.Scripted) {
	t.Helper()
	ctx := context.Background()
	repo := repository.New(t.TempDir(), zerolog.Nop())
	src := project(t)
	for _, c := range []engine.Coordinates{quick13, quick14, web, tool} {
		jar := filepath.Join(t.TempDir(), c.JarName())
		if _, err := archive.WriteJar(ctx, src, c, jar); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.Install(ctx, jar, c); err != nil {
			t.Fatal(err)
		}
	}

	cat := &catalog.Catalog{}
	for _, c := range []engine.Coordinates{quick13, quick14, web} {
		cat.Add(engine.CatalogEntry{Coordinates: c, Description: c.ArtifactID + " archetype"})
	}
	path := filepath.Join(t.TempDir(), catalog.FileName)
	if err := cat.Save(path); err != nil {
		t.Fatal(err)
	}

	p := prompt.NewScripted(answers...)
	return New([]engine.CatalogSource{catalog.File(path)}, repo, p, zerolog.Nop()), repo, p
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name      string
		archetype engine.Coordinates
		want      engine.Coordinates
	}{
		{"complete", web, web},
		{"artifactId only", engine.Coordinates{ArtifactID: "maven-archetype-quickstart"}, quick14},
		{"artifactId and version", engine.Coordinates{ArtifactID: "maven-archetype-quickstart", Version: "1.3"}, quick13},
		{"group and artifact", engine.Coordinates{GroupID: "org.acme", ArtifactID: "web"}, web},
		{"repository fallback", engine.Coordinates{GroupID: "org.acme", ArtifactID: "tool"}, tool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, _ := fixture(t)
			def, err := s.Select(context.Background(), &engine.GenerationRequest{Archetype: tt.archetype})
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if def.Coordinates != tt.want {
				t.Errorf("Select() = %s, want %s", def.Coordinates, tt.want)
			}
			if def.File != repo.PathOf(tt.want) {
				t.Errorf("File = %s", def.File)
			}
		})
	}
}

func TestSelect_Errors(t *testing.T) {
	tests := []struct {
		name  string
		req   engine.GenerationRequest
		check func(error) bool
	}{
		{"nothing in batch mode", engine.GenerationRequest{}, engine.IsArchetypeNotDefined},
		{"unknown artifact", engine.GenerationRequest{Archetype: engine.Coordinates{ArtifactID: "nope"}}, engine.IsUnknownArchetype},
		{"not installed", engine.GenerationRequest{Archetype: engine.Coordinates{GroupID: "org.acme", ArtifactID: "web", Version: "9"}}, engine.IsUnknownArchetype},
		{"group only", engine.GenerationRequest{Archetype: engine.Coordinates{GroupID: "org.acme"}}, engine.IsUnknownArchetype},
		{"missing file", engine.GenerationRequest{ArchetypeFile: "/does/not/exist.jar"}, engine.IsUnknownArchetype},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := fixture(t)
			_, err := s.Select(context.Background(), &tt.req)
			if !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestSelect_Interactive(t *testing.T) {
	// Empty answers take the defaults: quickstart, then its latest version.
	s, _, p := fixture(t, "", "")
	def, err := s.Select(context.Background(), &engine.GenerationRequest{Interactive: true})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if def.Coordinates != quick14 {
		t.Errorf("Select() = %s, want %s", def.Coordinates, quick14)
	}
	if len(p.Asked) != 2 {
		t.Errorf("asked %v", p.Asked)
	}

	// A filter narrows the list to web, which has one version.
	s, _, p = fixture(t, "1")
	def, err = s.Select(context.Background(), &engine.GenerationRequest{Interactive: true, Filter: "acme:"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if def.Coordinates != web || len(p.Asked) != 1 {
		t.Errorf("Select() = %s after %v", def.Coordinates, p.Asked)
	}
}

func TestSelect_File(t *testing.T) {
	dir := project(t)
	s, _, _ := fixture(t)
	def, err := s.Select(context.Background(), &engine.GenerationRequest{ArchetypeFile: dir})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if def.File != dir {
		t.Errorf("File = %s", def.File)
	}

	jar := filepath.Join(t.TempDir(), "x.jar")
	if _, err := archive.WriteJar(context.Background(), dir, web, jar); err != nil {
		t.Fatal(err)
	}
	def, err = s.Select(context.Background(), &engine.GenerationRequest{ArchetypeFile: jar})
	if err != nil {
		t.Fatal(err)
	}
	if def.Coordinates != web {
		t.Errorf("coordinates from pom.properties = %s", def.Coordinates)
	}
}
