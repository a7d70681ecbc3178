package archive

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
)

const metadata = `<archetype-descriptor name="demo">
  <fileSets>
    <fileSet filtered="true" packaged="true">
      <directory>src/main/java</directory>
      <includes><include>**/*.java</include></includes>
    </fileSet>
  </fileSets>
</archetype-descriptor>
`

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func archetypeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"pom.xml":                                                       "<project><artifactId>demo-archetype</artifactId></project>",
		"src/main/resources/META-INF/maven/archetype-metadata.xml":      metadata,
		"src/main/resources/archetype-resources/pom.xml":                "<project/>",
		"src/main/resources/archetype-resources/src/main/java/App.java": "package ${package};",
		"src/test/resources/projects/basic/archetype.properties":        "groupId=org.acme",
	})
	return dir
}

func TestOpen_ProjectDirectory(t *testing.T) {
	a, err := Open(archetypeProject(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	if !a.IsDir() {
		t.Error("expected a directory archetype")
	}
	d, err := a.Descriptor()
	if err != nil {
		t.Fatalf("Descriptor() error = %v", err)
	}
	if d.Kind != descriptor.KindFileset || d.Fileset.Name != "demo" {
		t.Errorf("unexpected descriptor %+v", d)
	}
	files, err := a.List(descriptor.ResourcesDir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"archetype-resources/pom.xml", "archetype-resources/src/main/java/App.java"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("List() = %v, want %v", files, want)
	}
}

func TestWriteJarAndOpen(t *testing.T) {
	project := archetypeProject(t)
	coords := engine.Coordinates{GroupID: "org.acme", ArtifactID: "demo-archetype", Version: "1.0"}
	dest := filepath.Join(t.TempDir(), "target", coords.JarName())

	count, err := WriteJar(context.Background(), project, coords, dest)
	if err != nil {
		t.Fatalf("WriteJar() error = %v", err)
	}
	if count != 3 {
		t.Errorf("WriteJar() count = %d, want 3", count)
	}

	a, err := Open(dest)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	if a.IsDir() {
		t.Error("jar reported as directory")
	}
	if !a.HasFile("META-INF/MANIFEST.MF") {
		t.Error("manifest missing")
	}
	if !a.HasFile("META-INF/maven/org.acme/demo-archetype/pom.xml") {
		t.Error("project pom missing")
	}

	res, err := a.Resources()
	if err != nil {
		t.Fatal(err)
	}
	data, err := fs.ReadFile(res, "src/main/java/App.java")
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if string(data) != "package ${package};" {
		t.Errorf("resource content = %q", data)
	}

	got, ok := ReadPomProperties(a)
	if !ok || got != coords {
		t.Errorf("ReadPomProperties() = %+v, %v", got, ok)
	}
}

func TestWriteJar_NotAnArchetypeProject(t *testing.T) {
	_, err := WriteJar(context.Background(), t.TempDir(), engine.Coordinates{}, filepath.Join(t.TempDir(), "x.jar"))
	if err == nil {
		t.Error("expected error for a directory without src/main/resources")
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.jar")); err == nil {
		t.Error("expected error")
	}
}
