package creator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/archive"
	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/generator"
	"github.com/openfroyo/archetype/pkg/pom"
	"github.com/openfroyo/archetype/pkg/properties"
	"github.com/openfroyo/archetype/pkg/stores"
)

const shopPom = `<?xml version="1.0" encoding="UTF-8"?>
<project>
    <modelVersion>4.0.0</modelVersion>
    <groupId>com.acme</groupId>
    <artifactId>shop</artifactId>
    <version>1.0</version>
    <packaging>pom</packaging>
    <!-- ## Build settings ## -->
    <properties>
        <config.dir>${project.basedir}/conf</config.dir>
    </properties>
    <modules>
        <module>shop-core</module>
    </modules>
</project>
`

const corePom = `<?xml version="1.0" encoding="UTF-8"?>
<project>
    <modelVersion>4.0.0</modelVersion>
    <parent>
        <groupId>com.acme</groupId>
        <artifactId>shop</artifactId>
        <version>1.0</version>
    </parent>
    <artifactId>shop-core</artifactId>
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

// shopProject lays out a two module project.
func shopProject(t *testing.T) string {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"pom.xml":   shopPom,
		"README.md": "# shop\nPrice: $5 \\o/\n",

		"shop-core/pom.xml":                                corePom,
		"shop-core/src/main/java/com/acme/shop/App.java":   "package com.acme.shop;\n\nclass App {}\n",
		"shop-core/src/main/resources/app.conf":            "name=shop-core\n",
		"shop-core/target/classes/com/acme/shop/App.class": "\xca\xfe\xba\xbe",
	})
	return dir
}

func newCreator(opts Options) *Creator {
	opts.Logger = zerolog.Nop()
	return New(opts)
}

func creationRequest(project, out string) *engine.CreationRequest {
	return &engine.CreationRequest{ProjectDirectory: project, OutputDirectory: out}
}

func TestClassify(t *testing.T) {
	languages := []string{"java", "kotlin"}
	tests := []struct {
		file string
		want template
	}{
		{
			file: "src/main/java/com/acme/shop/App.java",
			want: template{source: "src/main/java/com/acme/shop/App.java", dir: "src/main/java", rel: "App.java", packaged: true},
		},
		{
			file: "src/main/java/org/other/X.java",
			want: template{source: "src/main/java/org/other/X.java", dir: "src/main/java", rel: "org/other/X.java"},
		},
		{
			file: "src/main/resources/app.conf",
			want: template{source: "src/main/resources/app.conf", dir: "src/main/resources", rel: "app.conf"},
		},
		{
			file: "src/site/site.xml",
			want: template{source: "src/site/site.xml", rel: "src/site/site.xml"},
		},
		{
			file: "README.md",
			want: template{source: "README.md", rel: "README.md"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if got := classify(tt.file, languages, "com/acme/shop"); got != tt.want {
				t.Errorf("classify(%q) = %+v, want %+v", tt.file, got, tt.want)
			}
		})
	}
}

func TestBuildFileSets(t *testing.T) {
	templates := []template{
		{dir: "", rel: "README.md", filtered: true},
		{dir: "", rel: "src/site/site.xml", filtered: true},
		{dir: "src/main/java", rel: "App.java", packaged: true, filtered: true},
		{dir: "src/main/java", rel: "org/other/X.java", filtered: true},
		{dir: "src/main/resources", rel: "app.conf"},
	}

	want := []descriptor.FileSet{
		{
			Filtered: true,
			Includes: []string{"**/*.md", "**/*.xml"},
			Excludes: []string{"src/main/java/**", "src/main/resources/**"},
		},
		{
			Filtered:  true,
			Packaged:  true,
			Directory: "src/main/java",
			Includes:  []string{"**/*.java"},
			Excludes:  []string{"org/other/X.java"},
		},
		{
			Filtered:  true,
			Directory: "src/main/java",
			Includes:  []string{"**/*.java"},
			Excludes:  []string{"App.java"},
		},
		{
			Directory: "src/main/resources",
			Includes:  []string{"**/*.conf"},
		},
	}

	got := buildFileSets(templates)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildFileSets() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestSubstitution(t *testing.T) {
	props := map[string]string{
		engine.PropGroupID:    "com.acme",
		engine.PropArtifactID: "shop",
		engine.PropVersion:    "1.0",
		engine.PropPackage:    "com.acme.shop",
	}

	tests := []struct {
		name   string
		nested bool
		text   string
		want   string
	}{
		{
			name: "longest value first",
			text: "package com.acme.shop;\n",
			want: "package ${package};\n",
		},
		{
			name: "xml declaration kept",
			text: "<?xml version=\"1.0\"?>\n<v>1.0</v>\n",
			want: "<?xml version=\"1.0\"?>\n<v>${version}</v>\n",
		},
		{
			name: "template characters escaped",
			text: "# shop costs $5 \\o/\n",
			want: escapePreamble + "${symbol_pound} ${artifactId} costs ${symbol_dollar}5 ${symbol_escape}o/\n",
		},
		{
			name:   "nested module uses root artifactId",
			nested: true,
			text:   "shop-core\n",
			want:   "${rootArtifactId}-core\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newSubstitution(props, tt.nested).content(tt.text); got != tt.want {
				t.Errorf("content() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := newSubstitution(props, false).name("shop-web/shop.txt"); got != "__artifactId__-web/__artifactId__.txt" {
		t.Errorf("name() = %q", got)
	}
	if got := newSubstitution(props, true).name("shop-web"); got != "__rootArtifactId__-web" {
		t.Errorf("nested name() = %q", got)
	}
}

func TestDetectPackage(t *testing.T) {
	files := []string{
		"core/src/main/java/com/acme/shop/App.java",
		"core/src/main/java/com/acme/shop/web/Handler.java",
		"core/src/test/java/com/acme/shop/AppTest.java",
		"core/src/main/resources/app.conf",
	}
	if got := detectPackage(files, []string{"java"}); got != "com.acme.shop" {
		t.Errorf("detectPackage() = %q, want com.acme.shop", got)
	}
	if got := detectPackage([]string{"README.md"}, []string{"java"}); got != "" {
		t.Errorf("detectPackage() without sources = %q", got)
	}
}

func TestCreate(t *testing.T) {
	project := shopProject(t)
	out := filepath.Join(t.TempDir(), "archetype")

	result, err := newCreator(Options{}).Create(context.Background(), creationRequest(project, out))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	wantArchetype := engine.Coordinates{GroupID: "com.acme", ArtifactID: "shop-archetype", Version: "1.0"}
	if result.Archetype != wantArchetype {
		t.Errorf("Archetype = %v, want %v", result.Archetype, wantArchetype)
	}
	if result.ResourceCount != 5 {
		t.Errorf("ResourceCount = %d, want 5", result.ResourceCount)
	}
	if !reflect.DeepEqual(result.Modules, []string{"shop-core"}) {
		t.Errorf("Modules = %v", result.Modules)
	}
	if result.Properties[engine.PropPackage] != "com.acme.shop" {
		t.Errorf("package = %q", result.Properties[engine.PropPackage])
	}

	a, err := archive.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	loaded, err := a.Descriptor()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Kind != descriptor.KindFileset {
		t.Fatalf("descriptor kind = %s", loaded.Kind)
	}
	d := loaded.Fileset
	if d.Name != "shop" || len(d.Modules) != 1 {
		t.Fatalf("descriptor = %+v", d)
	}
	if m := d.Modules[0]; m.ID != "${rootArtifactId}-core" || m.Dir != "__rootArtifactId__-core" {
		t.Errorf("module = %+v", m)
	}

	resources := filepath.Join(out, "src", "main", "resources", "archetype-resources")
	app := readFile(t, filepath.Join(resources, "__rootArtifactId__-core", "src", "main", "java", "App.java"))
	if app != "package ${package};\n\nclass App {}\n" {
		t.Errorf("App.java template = %q", app)
	}
	if _, err := os.Stat(filepath.Join(resources, "__rootArtifactId__-core", "target")); !os.IsNotExist(err) {
		t.Error("build output must not be copied")
	}

	core, err := pom.ReadFile(filepath.Join(resources, "__rootArtifactId__-core", "pom.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if core.Parent != nil || core.ArtifactID != "${artifactId}" {
		t.Errorf("module POM template = %+v", core)
	}
	root := readFile(t, filepath.Join(resources, "pom.xml"))
	if !strings.HasPrefix(root, escapePreamble+"<?xml") || !strings.Contains(root, "<!-- ${symbol_pound}${symbol_pound} Build settings") {
		t.Errorf("root POM template not escaped:\n%s", root)
	}
	if !strings.Contains(root, "<module>${rootArtifactId}-core</module>") {
		t.Errorf("root POM template does not reference the module:\n%s", root)
	}

	archetypePom, err := pom.ReadFile(filepath.Join(out, "pom.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if archetypePom.Coordinates() != wantArchetype || archetypePom.EffectivePackaging() != "maven-archetype" {
		t.Errorf("archetype POM = %+v", archetypePom)
	}

	props, err := properties.Load(filepath.Join(out, filepath.FromSlash(TestProjectDir), properties.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := props.Get(engine.PropArtifactID); v != "shop" {
		t.Errorf("test project artifactId = %q", v)
	}
	if got := readFile(t, filepath.Join(out, filepath.FromSlash(TestProjectDir), GoalFile)); got != "verify\n" {
		t.Errorf("goal = %q", got)
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	ctx := context.Background()
	project := shopProject(t)
	out := filepath.Join(t.TempDir(), "archetype")
	if _, err := newCreator(Options{}).Create(ctx, creationRequest(project, out)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	a, err := archive.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	loaded, err := a.Descriptor()
	if err != nil {
		t.Fatal(err)
	}

	conf := engine.NewConfiguration()
	conf.Set(engine.PropGroupID, "org.demo")
	conf.Set(engine.PropArtifactID, "store")
	conf.Set(engine.PropVersion, "2.0")
	conf.Set(engine.PropPackage, "org.demo.store")

	basedir := t.TempDir()
	g := generator.New(generator.Options{Logger: zerolog.Nop()})
	result, err := g.GenerateWith(ctx, a, loaded, conf, basedir)
	if err != nil {
		t.Fatalf("GenerateWith() error = %v", err)
	}

	wantFiles := []string{
		"README.md",
		"pom.xml",
		"store-core/pom.xml",
		"store-core/src/main/java/org/demo/store/App.java",
		"store-core/src/main/resources/app.conf",
	}
	if !reflect.DeepEqual(result.Files, wantFiles) {
		t.Errorf("Files = %v, want %v", result.Files, wantFiles)
	}

	projectDir := filepath.Join(basedir, "store")
	if got := readFile(t, filepath.Join(projectDir, "README.md")); got != "# store\nPrice: $5 \\o/\n" {
		t.Errorf("README.md = %q", got)
	}
	app := readFile(t, filepath.Join(projectDir, "store-core", "src", "main", "java", "org", "demo", "store", "App.java"))
	if app != "package org.demo.store;\n\nclass App {}\n" {
		t.Errorf("App.java = %q", app)
	}
	if got := readFile(t, filepath.Join(projectDir, "store-core", "src", "main", "resources", "app.conf")); got != "name=shop-core\n" {
		t.Errorf("unfiltered file changed: %q", got)
	}

	rootText := readFile(t, filepath.Join(projectDir, "pom.xml"))
	for _, want := range []string{
		"<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<project>",
		"    <!-- ## Build settings ## -->\n    <properties>",
		"<config.dir>${project.basedir}/conf</config.dir>",
	} {
		if !strings.Contains(rootText, want) {
			t.Errorf("root POM lacks %q:\n%s", want, rootText)
		}
	}
	rootPom, err := pom.ReadFile(filepath.Join(projectDir, "pom.xml"))
	if err != nil {
		t.Fatal(err)
	}
	want := engine.Coordinates{GroupID: "org.demo", ArtifactID: "store", Version: "2.0"}
	if rootPom.Coordinates() != want || !rootPom.HasModule("store-core") {
		t.Errorf("root POM = %+v", rootPom)
	}
	core, err := pom.ReadFile(filepath.Join(projectDir, "store-core", "pom.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if core.ArtifactID != "store-core" || core.Parent == nil || core.Parent.ArtifactID != "store" {
		t.Errorf("module POM = %+v", core)
	}
}

func TestCreate_RecreateRemovesStaleTemplates(t *testing.T) {
	ctx := context.Background()
	project := shopProject(t)
	out := filepath.Join(t.TempDir(), "archetype")
	c := newCreator(Options{})

	if _, err := c.Create(ctx, creationRequest(project, out)); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(project, "README.md")); err != nil {
		t.Fatal(err)
	}
	result, err := c.Create(ctx, creationRequest(project, out))
	if err != nil {
		t.Fatal(err)
	}
	if result.ResourceCount != 4 {
		t.Errorf("ResourceCount = %d, want 4", result.ResourceCount)
	}
	stale := filepath.Join(out, "src", "main", "resources", "archetype-resources", "README.md")
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("template of a removed file is still present")
	}
}

func TestCreate_NotAProject(t *testing.T) {
	_, err := newCreator(Options{}).Create(context.Background(), creationRequest(t.TempDir(), t.TempDir()))
	if !errors.Is(err, engine.ErrCreationFailure) {
		t.Fatalf("expected creation failure, got %v", err)
	}
}

type denyCreation struct{ seen *engine.Configuration }

func (d *denyCreation) CheckCreation(_ context.Context, _ engine.Coordinates, conf *engine.Configuration) error {
	d.seen = conf
	return engine.NewError(engine.KindPolicyViolation, "1 policy violation(s): denied", nil)
}

func TestCreate_PolicyViolation(t *testing.T) {
	out := filepath.Join(t.TempDir(), "archetype")
	deny := &denyCreation{}

	_, err := newCreator(Options{Policy: deny}).Create(context.Background(), creationRequest(shopProject(t), out))
	if !errors.Is(err, engine.ErrPolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if deny.seen == nil || deny.seen.Value(engine.PropPackage) != "com.acme.shop" {
		t.Errorf("policy saw %+v", deny.seen)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("nothing should be written when a policy blocks creation")
	}
}

func TestCreate_History(t *testing.T) {
	ctx := context.Background()
	store, err := stores.Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	out := filepath.Join(t.TempDir(), "archetype")
	result, err := newCreator(Options{Store: store}).Create(ctx, creationRequest(shopProject(t), out))
	if err != nil {
		t.Fatal(err)
	}

	runs, err := store.ListRuns(ctx, stores.RunKindCreate, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	r := runs[0]
	if r.Status != stores.RunStatusCompleted || r.Files != result.ResourceCount || r.ProjectDir != out {
		t.Errorf("run = %+v", r)
	}
	if !strings.Contains(r.Metadata, `"package":"com.acme.shop"`) {
		t.Errorf("metadata = %s", r.Metadata)
	}
}

func TestWatch(t *testing.T) {
	project := shopProject(t)
	out := filepath.Join(t.TempDir(), "archetype")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		result *engine.CreationResult
		err    error
	}
	runs := make(chan outcome, 8)
	done := make(chan error, 1)
	go func() {
		done <- newCreator(Options{}).Watch(ctx, creationRequest(project, out), func(r *engine.CreationResult, err error) {
			runs <- outcome{r, err}
		})
	}()

	next := func() outcome {
		t.Helper()
		select {
		case o := <-runs:
			return o
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for a creation")
			return outcome{}
		}
	}

	if o := next(); o.err != nil || o.result.ResourceCount != 5 {
		t.Fatalf("initial creation = %+v, %v", o.result, o.err)
	}

	// The watcher is registered once the first run is reported; give it a
	// moment before touching the project.
	time.Sleep(200 * time.Millisecond)
	writeFiles(t, project, map[string]string{"shop-core/src/main/resources/extra.conf": "x=1\n"})

	if o := next(); o.err != nil || o.result.ResourceCount != 6 {
		t.Fatalf("re-creation = %+v, %v", o.result, o.err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
