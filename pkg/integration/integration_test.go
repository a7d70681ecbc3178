package integration

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const metadata = `<archetype-descriptor name="simple">
  <fileSets>
    <fileSet filtered="true">
      <directory></directory>
      <includes><include>README.md</include></includes>
    </fileSet>
  </fileSets>
</archetype-descriptor>
`

const pomTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<project>
    <modelVersion>4.0.0</modelVersion>
    <groupId>${groupId}</groupId>
    <artifactId>${artifactId}</artifactId>
    <version>${version}</version>
</project>
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

func renderedPom(groupID, artifactID, version string) string {
	return strings.NewReplacer("${groupId}", groupID, "${artifactId}", artifactID, "${version}", version).Replace(pomTemplate)
}

// archetypeProject lays out an archetype project with three test projects:
// one matching its reference, one that does not, and one without a
// reference.
func archetypeProject(t *testing.T) string {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/main/resources/META-INF/maven/archetype-metadata.xml": metadata,
		"src/main/resources/archetype-resources/pom.xml":           pomTemplate,
		"src/main/resources/archetype-resources/README.md":         "# ${artifactId}\n",

		"src/test/resources/projects/basic/archetype.properties": "groupId=com.example\nartifactId=demo\nversion=1.0\npackage=com.example.demo\n",
		"src/test/resources/projects/basic/goal.txt":             "verify\n",
		"src/test/resources/projects/basic/reference/pom.xml":    renderedPom("com.example", "demo", "1.0"),
		"src/test/resources/projects/basic/reference/README.md":  "# demo\r\n",

		"src/test/resources/projects/broken/archetype.properties": "groupId=com.example\nartifactId=other\nversion=2.0\n",
		"src/test/resources/projects/broken/reference/README.md":  "# something else\n",
		"src/test/resources/projects/broken/reference/NOTES.txt":  "notes\n",

		"src/test/resources/projects/plain/archetype.properties": "groupId=org.acme\nartifactId=plain\n",
	})
	return dir
}

func TestProjects(t *testing.T) {
	names, err := Projects(archetypeProject(t))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"basic", "broken", "plain"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Projects() = %v, want %v", names, want)
	}
}

func TestRun(t *testing.T) {
	dir := archetypeProject(t)
	work := t.TempDir()

	report, err := New(Options{Parallelism: 2, Logger: zerolog.Nop()}).Run(context.Background(), dir, work)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Projects) != 3 {
		t.Fatalf("projects = %d, want 3", len(report.Projects))
	}

	basic := report.Projects[0]
	if !basic.Passed() || !basic.Compared || basic.Goal != "verify" || basic.Files != 2 {
		t.Errorf("basic = %+v", basic)
	}
	if basic.ProjectDir != filepath.Join(work, "basic", "demo") {
		t.Errorf("basic project dir = %s", basic.ProjectDir)
	}

	broken := report.Projects[1]
	if broken.Err != nil {
		t.Fatalf("broken generation error = %v", broken.Err)
	}
	wantDiffs := []Difference{
		{Path: "NOTES.txt", Kind: DiffMissing},
		{Path: "README.md", Kind: DiffContent},
		{Path: "pom.xml", Kind: DiffUnexpected},
	}
	if !reflect.DeepEqual(broken.Differences, wantDiffs) {
		t.Errorf("broken differences = %+v, want %+v", broken.Differences, wantDiffs)
	}

	plain := report.Projects[2]
	if !plain.Passed() || plain.Compared {
		t.Errorf("plain = %+v", plain)
	}

	failed := report.Failed()
	if len(failed) != 1 || failed[0].Name != "broken" {
		t.Errorf("Failed() = %+v", failed)
	}
}

func TestRun_Rerun(t *testing.T) {
	dir := archetypeProject(t)
	work := t.TempDir()
	r := New(Options{Logger: zerolog.Nop()})

	for i := 0; i < 2; i++ {
		report, err := r.Run(context.Background(), dir, work)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if !report.Projects[0].Passed() {
			t.Errorf("run %d: basic = %+v", i, report.Projects[0])
		}
	}
}

func TestRun_NotAnArchetype(t *testing.T) {
	if _, err := New(Options{Logger: zerolog.Nop()}).Run(context.Background(), filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Fatal("expected an error for a missing archetype")
	}
}

func TestCompare(t *testing.T) {
	ref := t.TempDir()
	gen := t.TempDir()
	writeFiles(t, ref, map[string]string{
		"a.txt":    "one\ntwo\n",
		"b/c.txt":  "same\n",
		"d.bin":    "\x00\x01",
		"gone.txt": "x",
	})
	writeFiles(t, gen, map[string]string{
		"a.txt":     "one\r\ntwo\r\n",
		"b/c.txt":   "changed\n",
		"d.bin":     "\x00\x02",
		"extra.txt": "y",
	})

	diffs, err := Compare(context.Background(), ref, gen)
	if err != nil {
		t.Fatal(err)
	}
	want := []Difference{
		{Path: "b/c.txt", Kind: DiffContent},
		{Path: "d.bin", Kind: DiffContent},
		{Path: "extra.txt", Kind: DiffUnexpected},
		{Path: "gone.txt", Kind: DiffMissing},
	}
	if !reflect.DeepEqual(diffs, want) {
		t.Errorf("Compare() = %+v, want %+v", diffs, want)
	}
}
