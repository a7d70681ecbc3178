package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/configurator"
	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/policy"
	"github.com/openfroyo/archetype/pkg/pom"
	"github.com/openfroyo/archetype/pkg/script"
	"github.com/openfroyo/archetype/pkg/selector"
	"github.com/openfroyo/archetype/pkg/stores"
	"github.com/openfroyo/archetype/pkg/telemetry"
)

const multiModule = `<archetype-descriptor name="multi">
  <requiredProperties>
    <requiredProperty key="greeting"><defaultValue>hello</defaultValue></requiredProperty>
  </requiredProperties>
  <fileSets>
    <fileSet filtered="true">
      <directory></directory>
      <includes><include>README.md</include></includes>
    </fileSet>
  </fileSets>
  <modules>
    <module id="${rootArtifactId}-core" dir="__rootArtifactId__-core" name="core">
      <fileSets>
        <fileSet filtered="true" packaged="true">
          <directory>src/main/java</directory>
          <includes><include>**/*.java</include></includes>
        </fileSet>
        <fileSet filtered="false">
          <directory>src/main/resources</directory>
          <includes><include>**/*</include></includes>
        </fileSet>
      </fileSets>
    </module>
  </modules>
</archetype-descriptor>
`

const rootPom = `<?xml version="1.0" encoding="UTF-8"?>
<project>
    <modelVersion>4.0.0</modelVersion>
    <groupId>${groupId}</groupId>
    <artifactId>${artifactId}</artifactId>
    <version>${version}</version>
    <packaging>pom</packaging>
</project>
`

const modulePom = `<?xml version="1.0" encoding="UTF-8"?>
<project>
    <modelVersion>4.0.0</modelVersion>
    <artifactId>${artifactId}</artifactId>
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

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// archetypeDir lays out an exploded archetype; keys of resources are
// relative to archetype-resources.
func archetypeDir(t *testing.T, meta string, resources map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{descriptor.FilesetPath: meta}
	if strings.HasPrefix(strings.TrimSpace(meta), "<archetype>") {
		files = map[string]string{descriptor.LegacyPath: meta}
	}
	for name, content := range resources {
		files[descriptor.ResourcesDir+"/"+name] = content
	}
	writeFiles(t, dir, files)
	return dir
}

func multiModuleArchetype(t *testing.T) string {
	return archetypeDir(t, multiModule, map[string]string{
		"pom.xml":   rootPom,
		"README.md": "# ${artifactId}\n${greeting}\n",
		"__rootArtifactId__-core/pom.xml":                     modulePom,
		"__rootArtifactId__-core/src/main/java/App.java":      "package ${package};\nclass App {}\n",
		"__rootArtifactId__-core/src/main/resources/app.conf": "name=${artifactId}\n",
	})
}

func newGenerator(opts Options) *Generator {
	if opts.Selector == nil {
		opts.Selector = selector.New(nil, nil, nil, zerolog.Nop())
	}
	if opts.Configurator == nil {
		opts.Configurator = configurator.New(nil, zerolog.Nop())
	}
	opts.Logger = zerolog.Nop()
	return New(opts)
}

func request(file, out string) *engine.GenerationRequest {
	return &engine.GenerationRequest{
		Archetype:       engine.Coordinates{GroupID: "org.acme", ArtifactID: "demo-archetype", Version: "1.0"},
		ArchetypeFile:   file,
		GroupID:         "com.example",
		ArtifactID:      "shop",
		Version:         "1.0-SNAPSHOT",
		Package:         "com.example.shop",
		OutputDirectory: out,
	}
}

func TestGenerate_Fileset(t *testing.T) {
	out := t.TempDir()
	g := newGenerator(Options{})

	result, err := g.Generate(context.Background(), request(multiModuleArchetype(t), out))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	projectDir := filepath.Join(out, "shop")
	if result.ProjectDirectory != projectDir {
		t.Errorf("ProjectDirectory = %q, want %q", result.ProjectDirectory, projectDir)
	}

	wantFiles := []string{
		"README.md",
		"pom.xml",
		"shop-core/pom.xml",
		"shop-core/src/main/java/com/example/shop/App.java",
		"shop-core/src/main/resources/app.conf",
	}
	if !reflect.DeepEqual(result.Files, wantFiles) {
		t.Errorf("Files = %v, want %v", result.Files, wantFiles)
	}

	if got := readFile(t, filepath.Join(projectDir, "README.md")); got != "# shop\nhello\n" {
		t.Errorf("README.md = %q", got)
	}
	app := readFile(t, filepath.Join(projectDir, "shop-core", "src", "main", "java", "com", "example", "shop", "App.java"))
	if !strings.HasPrefix(app, "package com.example.shop;") {
		t.Errorf("App.java = %q", app)
	}
	if got := readFile(t, filepath.Join(projectDir, "shop-core", "src", "main", "resources", "app.conf")); got != "name=${artifactId}\n" {
		t.Errorf("unfiltered file was rendered: %q", got)
	}

	root, err := pom.ReadFile(filepath.Join(projectDir, "pom.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if !root.HasModule("shop-core") {
		t.Errorf("root modules = %v, want shop-core", root.Modules)
	}

	core, err := pom.ReadFile(filepath.Join(projectDir, "shop-core", "pom.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if core.ArtifactID != "shop-core" {
		t.Errorf("module artifactId = %q, want shop-core", core.ArtifactID)
	}
	if core.Parent == nil || core.Parent.ArtifactID != "shop" || core.Parent.GroupID != "com.example" {
		t.Errorf("module parent = %+v, want com.example:shop", core.Parent)
	}
}

func TestGenerate_ProjectDirectoryExists(t *testing.T) {
	out := t.TempDir()
	if err := os.Mkdir(filepath.Join(out, "shop"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := newGenerator(Options{}).Generate(context.Background(), request(multiModuleArchetype(t), out))
	if engine.KindOf(err) != engine.KindProjectDirectoryExists {
		t.Fatalf("error kind = %q, want %q (err = %v)", engine.KindOf(err), engine.KindProjectDirectoryExists, err)
	}
}

func TestGenerate_NotConfigured(t *testing.T) {
	req := request(multiModuleArchetype(t), t.TempDir())
	req.GroupID = ""

	_, err := newGenerator(Options{}).Generate(context.Background(), req)
	if !engine.IsArchetypeNotConfigured(err) {
		t.Fatalf("expected archetype-not-configured, got %v", err)
	}
}

const partial = `<archetype-descriptor name="addon" partial="true">
  <fileSets>
    <fileSet filtered="true">
      <directory></directory>
      <includes><include>*.md</include></includes>
    </fileSet>
    <fileSet filtered="true">
      <directory>src/main/resources</directory>
    </fileSet>
  </fileSets>
</archetype-descriptor>
`

const existingPom = `<?xml version="1.0" encoding="UTF-8"?>
<project>
    <modelVersion>4.0.0</modelVersion>
    <groupId>com.example</groupId>
    <artifactId>shop</artifactId>
    <version>1.0</version>
    <dependencies>
        <dependency>
            <groupId>org.slf4j</groupId>
            <artifactId>slf4j-api</artifactId>
        </dependency>
    </dependencies>
</project>
`

const addonPom = `<?xml version="1.0" encoding="UTF-8"?>
<project>
    <modelVersion>4.0.0</modelVersion>
    <groupId>${groupId}</groupId>
    <artifactId>${artifactId}</artifactId>
    <version>${version}</version>
    <dependencies>
        <dependency>
            <groupId>org.slf4j</groupId>
            <artifactId>slf4j-api</artifactId>
        </dependency>
        <dependency>
            <groupId>io.micrometer</groupId>
            <artifactId>micrometer-core</artifactId>
        </dependency>
    </dependencies>
</project>
`

func TestGenerate_PartialMerge(t *testing.T) {
	out := t.TempDir()
	writeFiles(t, out, map[string]string{
		"pom.xml":   existingPom,
		"README.md": "keep me\n",
	})
	arch := archetypeDir(t, partial, map[string]string{
		"pom.xml":                       addonPom,
		"README.md":                     "# ${artifactId}\n",
		"src/main/resources/addon.conf": "group=${groupId}\n",
	})

	result, err := newGenerator(Options{}).Generate(context.Background(), request(arch, out))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if result.ProjectDirectory != out {
		t.Errorf("ProjectDirectory = %q, want basedir %q", result.ProjectDirectory, out)
	}
	if want := []string{"pom.xml"}; !reflect.DeepEqual(result.MergedPoms, want) {
		t.Errorf("MergedPoms = %v, want %v", result.MergedPoms, want)
	}
	if want := []string{"README.md"}; !reflect.DeepEqual(result.Skipped, want) {
		t.Errorf("Skipped = %v, want %v", result.Skipped, want)
	}
	if want := []string{"src/main/resources/addon.conf"}; !reflect.DeepEqual(result.Files, want) {
		t.Errorf("Files = %v, want %v", result.Files, want)
	}

	if got := readFile(t, filepath.Join(out, "README.md")); got != "keep me\n" {
		t.Errorf("existing README.md overwritten: %q", got)
	}
	merged, err := pom.ReadFile(filepath.Join(out, "pom.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Dependencies) != 2 {
		t.Errorf("merged dependencies = %+v, want 2", merged.Dependencies)
	}
}

const legacy = `<archetype>
  <id>quickstart</id>
  <sources>
    <source>src/main/java/App.java</source>
    <source>Util.java</source>
  </sources>
  <testSources>
    <source>src/test/java/AppTest.java</source>
  </testSources>
  <resources>
    <resource filtered="false">logo.bin</resource>
  </resources>
  <siteResources>
    <resource>src/site/site.xml</resource>
  </siteResources>
</archetype>
`

func legacyArchetype(t *testing.T) string {
	return archetypeDir(t, legacy, map[string]string{
		"pom.xml":                    rootPom,
		"src/main/java/App.java":     "package ${package};\n",
		"Util.java":                  "package ${package};\n",
		"src/test/java/AppTest.java": "package ${package};\n",
		"logo.bin":                   "${not rendered}",
		"src/site/site.xml":          "<project name=\"${artifactId}\"/>\n",
	})
}

func TestGenerate_Legacy(t *testing.T) {
	out := t.TempDir()

	result, err := newGenerator(Options{}).Generate(context.Background(), request(legacyArchetype(t), out))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	want := []string{
		"pom.xml",
		"src/main/java/com/example/shop/App.java",
		"src/main/java/com/example/shop/Util.java",
		"src/main/resources/logo.bin",
		"src/site/site.xml",
		"src/test/java/com/example/shop/AppTest.java",
	}
	if !reflect.DeepEqual(result.Files, want) {
		t.Errorf("Files = %v, want %v", result.Files, want)
	}

	projectDir := filepath.Join(out, "shop")
	if got := readFile(t, filepath.Join(projectDir, "src", "main", "resources", "logo.bin")); got != "${not rendered}" {
		t.Errorf("unfiltered resource = %q", got)
	}
	if got := readFile(t, filepath.Join(projectDir, "src", "site", "site.xml")); !strings.Contains(got, `name="shop"`) {
		t.Errorf("site.xml = %q", got)
	}
}

func TestGenerate_LegacyExisting(t *testing.T) {
	t.Run("pom file exists", func(t *testing.T) {
		out := t.TempDir()
		writeFiles(t, out, map[string]string{"shop/pom.xml": existingPom})

		_, err := newGenerator(Options{}).Generate(context.Background(), request(legacyArchetype(t), out))
		if engine.KindOf(err) != engine.KindPomFileExists {
			t.Fatalf("error kind = %q, want %q", engine.KindOf(err), engine.KindPomFileExists)
		}
	})

	t.Run("output file exists", func(t *testing.T) {
		out := t.TempDir()
		writeFiles(t, out, map[string]string{"shop/src/site/site.xml": "<project/>"})

		_, err := newGenerator(Options{}).Generate(context.Background(), request(legacyArchetype(t), out))
		if engine.KindOf(err) != engine.KindOutputFileExists {
			t.Fatalf("error kind = %q, want %q", engine.KindOf(err), engine.KindOutputFileExists)
		}
		if !engine.IsExistingOutput(err) {
			t.Error("IsExistingOutput() = false")
		}
	})
}

func parentPomFile(packaging string) string {
	return `<project>
    <modelVersion>4.0.0</modelVersion>
    <groupId>com.example</groupId>
    <artifactId>platform</artifactId>
    <version>2.0</version>
    <packaging>` + packaging + `</packaging>
</project>
`
}

func TestGenerate_ParentPom(t *testing.T) {
	out := t.TempDir()
	writeFiles(t, out, map[string]string{"pom.xml": parentPomFile("pom")})

	_, err := newGenerator(Options{}).Generate(context.Background(), request(legacyArchetype(t), out))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	parent, err := pom.ReadFile(filepath.Join(out, "pom.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if !parent.HasModule("shop") {
		t.Error("parent does not list shop")
	}

	project, err := pom.ReadFile(filepath.Join(out, "shop", "pom.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if project.Parent == nil || project.Parent.ArtifactID != "platform" {
		t.Errorf("project parent = %+v, want platform", project.Parent)
	}
}

func TestGenerate_ParentPomNotAggregator(t *testing.T) {
	archetypes := map[string]func(*testing.T) string{
		"legacy":  legacyArchetype,
		"fileset": multiModuleArchetype,
	}
	for name, archetype := range archetypes {
		t.Run(name, func(t *testing.T) {
			out := t.TempDir()
			writeFiles(t, out, map[string]string{"pom.xml": parentPomFile("jar")})

			_, err := newGenerator(Options{}).Generate(context.Background(), request(archetype(t), out))
			if !errors.Is(err, engine.ErrInvalidPackaging) {
				t.Fatalf("Generate() error = %v, want invalid-packaging", err)
			}
			if _, err := os.Stat(filepath.Join(out, "shop")); !os.IsNotExist(err) {
				t.Errorf("project directory written despite the failure: %v", err)
			}
			data, err := os.ReadFile(filepath.Join(out, "pom.xml"))
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != parentPomFile("jar") {
				t.Errorf("parent POM changed:\n%s", data)
			}
		})
	}
}

func TestGenerate_PostGenerateScript(t *testing.T) {
	arch := multiModuleArchetype(t)
	writeFiles(t, arch, map[string]string{
		descriptor.PostGenerateScript: `write_file("GENERATED", properties["artifactId"] + "\n")
delete("README.md")
`,
	})
	out := t.TempDir()

	g := newGenerator(Options{Scripts: script.NewRunner(5*time.Second, zerolog.Nop())})
	if _, err := g.Generate(context.Background(), request(arch, out)); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	projectDir := filepath.Join(out, "shop")
	if got := readFile(t, filepath.Join(projectDir, "GENERATED")); got != "shop\n" {
		t.Errorf("GENERATED = %q", got)
	}
	if _, err := os.Stat(filepath.Join(projectDir, "README.md")); !os.IsNotExist(err) {
		t.Errorf("README.md should have been deleted, stat err = %v", err)
	}
}

type denyAll struct{}

func (denyAll) CheckGeneration(context.Context, engine.Coordinates, *engine.Configuration, bool) error {
	return engine.NewError(engine.KindPolicyViolation, "1 policy violation(s): denied", nil).
		WithDetail("violations", []policy.Violation{{Policy: "naming", Message: "denied"}})
}

func TestGenerate_PolicyViolation(t *testing.T) {
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "archetype"})
	if err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()

	_, err = newGenerator(Options{Policy: denyAll{}, Metrics: metrics}).
		Generate(context.Background(), request(multiModuleArchetype(t), out))
	if !errors.Is(err, engine.ErrPolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "shop")); !os.IsNotExist(err) {
		t.Error("nothing should be written when a policy blocks generation")
	}

	count, err := testutil.GatherAndCount(metrics.Registry(), "archetype_policy_violations_total", "archetype_errors_total")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("recorded series = %d, want 2", count)
	}
}

func TestGenerate_History(t *testing.T) {
	ctx := context.Background()
	store, err := stores.Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	g := newGenerator(Options{Store: store})
	out := t.TempDir()

	result, err := g.Generate(ctx, request(multiModuleArchetype(t), out))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := g.Generate(ctx, request(multiModuleArchetype(t), out)); err == nil {
		t.Fatal("second generation into the same directory should fail")
	}

	runs, err := store.ListRuns(ctx, stores.RunKindGenerate, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}

	byID := map[string]*stores.Run{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	ok := byID[result.RunID]
	if ok == nil {
		t.Fatalf("run %s not recorded", result.RunID)
	}
	if ok.Status != stores.RunStatusCompleted || ok.Files != len(result.Files) || ok.ProjectDir != result.ProjectDirectory {
		t.Errorf("completed run = %+v", ok)
	}
	if !strings.Contains(ok.Metadata, `"descriptor":"fileset"`) {
		t.Errorf("metadata = %s", ok.Metadata)
	}

	for id, r := range byID {
		if id == result.RunID {
			continue
		}
		if r.Status != stores.RunStatusFailed || r.Error == nil {
			t.Errorf("failed run = %+v", r)
		}
	}
}

func TestLegacyTarget(t *testing.T) {
	tests := []struct {
		group descriptor.LegacyGroup
		path  string
		want  string
	}{
		{descriptor.GroupSources, "src/main/java/App.java", "src/main/java/com/acme/App.java"},
		{descriptor.GroupSources, "src/main/java/web/App.java", "src/main/java/com/acme/web/App.java"},
		{descriptor.GroupSources, "App.java", "src/main/java/com/acme/App.java"},
		{descriptor.GroupTestSources, "AppTest.java", "src/test/java/com/acme/AppTest.java"},
		{descriptor.GroupResources, "app.properties", "src/main/resources/app.properties"},
		{descriptor.GroupResources, "src/main/webapp/index.jsp", "src/main/webapp/index.jsp"},
		{descriptor.GroupTestResources, "fixture.json", "src/test/resources/fixture.json"},
		{descriptor.GroupSiteResources, "site.xml", "src/site/site.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := legacyTarget(tt.group, tt.path, "com/acme"); got != tt.want {
				t.Errorf("legacyTarget(%s, %q) = %q, want %q", tt.group, tt.path, got, tt.want)
			}
		})
	}
}
