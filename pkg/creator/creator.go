package creator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/archive"
	"github.com/openfroyo/archetype/pkg/charset"
	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/fileset"
	"github.com/openfroyo/archetype/pkg/pom"
	"github.com/openfroyo/archetype/pkg/properties"
	"github.com/openfroyo/archetype/pkg/registry"
	"github.com/openfroyo/archetype/pkg/stores"
	"github.com/openfroyo/archetype/pkg/telemetry"
)

// Locations inside the created archetype project.
const (
	DefaultOutputDirectory = "target/generated-sources/archetype"

	TestProjectDir = "src/test/resources/projects/basic"
	GoalFile       = "goal.txt"
	DefaultGoal    = "verify"
)

// BuildExcludes leave build output and IDE files out of every archetype.
var BuildExcludes = []string{
	"target/**",
	"**/target/**",
	"build/**",
	".idea/**",
	"**/*.iml",
	".settings/**",
	".project",
	".classpath",
}

// PolicyChecker vets the archetype about to be created.
type PolicyChecker interface {
	CheckCreation(ctx context.Context, archetype engine.Coordinates, conf *engine.Configuration) error
}

// Options configures a Creator. Everything may be left zero.
type Options struct {
	// Registry supplies default languages and filtered extensions.
	Registry *registry.Registry

	Policy  PolicyChecker
	Store   *stores.SQLiteStore
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
	Logger  zerolog.Logger
}

// Creator turns an existing project into an archetype project.
type Creator struct {
	registry *registry.Registry
	policy   PolicyChecker
	store    *stores.SQLiteStore
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	logger   zerolog.Logger
}

var _ engine.Creator = (*Creator)(nil)

// New creates a creator.
func New(opts Options) *Creator {
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	return &Creator{
		registry: reg,
		policy:   opts.Policy,
		store:    opts.Store,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   opts.Logger.With().Str("component", "creator").Logger(),
	}
}

// plan is everything resolved before files are written.
type plan struct {
	req        *engine.CreationRequest
	projectDir string
	outputDir  string
	root       *projectModule
	archetype  engine.Coordinates
	props      map[string]string
	languages  []string
	extensions []string
	encoding   string
	files      []string
}

// Create walks the project and writes the archetype project.
func (c *Creator) Create(ctx context.Context, req *engine.CreationRequest) (result *engine.CreationResult, err error) {
	start := time.Now()
	ctx, span := c.tracer.StartCreationSpan(ctx, req.ProjectDirectory)
	var run *stores.Run
	defer func() {
		status := "success"
		resources := 0
		if err != nil {
			status = "failure"
			c.metrics.RecordError(string(engine.KindOf(err)))
		} else {
			resources = result.ResourceCount
		}
		c.metrics.RecordCreation(status, resources, time.Since(start))
		c.finishRun(ctx, run, result, err)
		telemetry.End(span, err)
	}()

	p, err := c.plan(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		telemetry.AttrArchetype.String(p.archetype.String()),
		telemetry.AttrGroupID.String(p.props[engine.PropGroupID]),
		telemetry.AttrArtifactID.String(p.props[engine.PropArtifactID]),
	)

	if c.policy != nil {
		conf := engine.NewConfiguration()
		for _, k := range sortedKeys(p.props) {
			conf.Set(k, p.props[k])
		}
		if err := c.policy.CheckCreation(ctx, p.archetype, conf); err != nil {
			return nil, err
		}
	}

	run = c.startRun(ctx, p)
	if run != nil {
		span.SetAttributes(telemetry.AttrRunID.String(run.ID))
	}

	result, err = c.write(ctx, p)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("archetype", p.archetype.String()).
		Str("directory", result.ArchetypeDirectory).
		Int("resources", result.ResourceCount).
		Int("modules", len(result.Modules)).
		Dur("duration", time.Since(start)).
		Msg("Archetype created")
	return result, nil
}

// outputDirectory resolves the archetype project directory, by default
// below the project's target directory.
func outputDirectory(req *engine.CreationRequest, projectDir string) (string, error) {
	out := req.OutputDirectory
	if out == "" {
		out = filepath.Join(projectDir, filepath.FromSlash(DefaultOutputDirectory))
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", out, err)
	}
	return abs, nil
}

// plan reads the project and resolves coordinates, properties and files.
func (c *Creator) plan(ctx context.Context, req *engine.CreationRequest) (*plan, error) {
	projectDir, err := filepath.Abs(req.ProjectDirectory)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", req.ProjectDirectory, err)
	}
	outputDir, err := outputDirectory(req, projectDir)
	if err != nil {
		return nil, err
	}

	root, err := readModules(projectDir, "")
	if err != nil {
		return nil, err
	}

	p := &plan{
		req:        req,
		projectDir: projectDir,
		outputDir:  outputDir,
		root:       root,
		languages:  req.Languages,
		extensions: req.FilteredExtensions,
		encoding:   req.DefaultEncoding,
	}
	if len(p.languages) == 0 {
		p.languages = c.registry.Languages
	}
	if len(p.extensions) == 0 {
		p.extensions = c.registry.FilteredExtensions
	}
	if p.encoding == "" {
		p.encoding = charset.UTF8
	}

	excludes := append(append([]string(nil), BuildExcludes...), req.ExcludePatterns...)
	if rel, err := filepath.Rel(projectDir, outputDir); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		excludes = append(excludes, filepath.ToSlash(rel)+"/**")
	}
	files, err := fileset.ScanDir(ctx, projectDir, nil, excludes)
	if err != nil {
		return nil, engine.NewError(engine.KindCreationFailure, "cannot scan project", err).WithPath(projectDir)
	}
	p.files = files

	coords := root.project.Coordinates()
	props := map[string]string{
		engine.PropGroupID:    coords.GroupID,
		engine.PropArtifactID: coords.ArtifactID,
		engine.PropVersion:    coords.Version,
	}
	for k, v := range req.Properties {
		if !strings.HasPrefix(k, "archetype.") {
			props[k] = v
		}
	}

	switch {
	case req.PackageName != "":
		props[engine.PropPackage] = req.PackageName
	case props[engine.PropPackage] != "":
	default:
		props[engine.PropPackage] = detectPackage(files, p.languages)
		if props[engine.PropPackage] == "" {
			props[engine.PropPackage] = props[engine.PropGroupID]
		}
	}
	p.props = props

	p.archetype = req.Archetype
	if p.archetype.GroupID == "" {
		p.archetype.GroupID = props[engine.PropGroupID]
	}
	if p.archetype.ArtifactID == "" {
		p.archetype.ArtifactID = props[engine.PropArtifactID] + "-archetype"
	}
	if p.archetype.Version == "" {
		p.archetype.Version = props[engine.PropVersion]
	}
	if !p.archetype.IsComplete() {
		return nil, engine.NewError(engine.KindCreationFailure,
			fmt.Sprintf("cannot derive archetype coordinates, got %s", p.archetype), nil).WithPath(projectDir)
	}

	c.logger.Debug().
		Str("project", projectDir).
		Str("package", props[engine.PropPackage]).
		Int("files", len(files)).
		Int("modules", len(root.all())-1).
		Msg("Planned archetype")
	return p, nil
}

// write lays out the archetype project.
func (c *Creator) write(ctx context.Context, p *plan) (*engine.CreationResult, error) {
	resourcesRoot := filepath.Join(p.outputDir, filepath.FromSlash(archive.ProjectResourcesDir))
	templatesRoot := filepath.Join(resourcesRoot, descriptor.ResourcesDir)

	// Templates of an earlier run would otherwise linger.
	if err := removeStale(templatesRoot); err != nil {
		return nil, err
	}

	byModule := make(map[*projectModule][]string)
	for _, f := range p.files {
		m := owner(p.root, f)
		rel := strings.TrimPrefix(strings.TrimPrefix(f, m.dir), "/")
		if rel == pom.FileName {
			continue
		}
		byModule[m] = append(byModule[m], rel)
	}

	d := &descriptor.ArchetypeDescriptor{
		Name:    p.props[engine.PropArtifactID],
		Partial: p.req.Partial,
	}
	for _, k := range sortedKeys(p.props) {
		switch k {
		case engine.PropGroupID, engine.PropArtifactID, engine.PropVersion, engine.PropPackage:
			continue
		}
		d.RequiredProperties = append(d.RequiredProperties, descriptor.RequiredProperty{Key: k, DefaultValue: p.props[k]})
	}

	w := &writer{plan: p, root: templatesRoot, logger: c.logger}
	fileSets, err := w.module(ctx, p.root, "", byModule)
	if err != nil {
		return nil, err
	}
	d.FileSets = fileSets
	for _, child := range p.root.children {
		md, err := w.childModule(ctx, child, "", byModule)
		if err != nil {
			return nil, err
		}
		d.Modules = append(d.Modules, md)
	}

	data, err := descriptor.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}
	descriptorPath := filepath.Join(resourcesRoot, filepath.FromSlash(descriptor.FilesetPath))
	if err := writeFile(descriptorPath, data); err != nil {
		return nil, err
	}

	if err := writeFile(filepath.Join(p.outputDir, pom.FileName), archetypePom(p)); err != nil {
		return nil, err
	}
	if err := c.writeTestProject(p); err != nil {
		return nil, err
	}

	var modules []string
	for _, m := range p.root.all()[1:] {
		modules = append(modules, m.dir)
	}
	return &engine.CreationResult{
		Archetype:          p.archetype,
		ArchetypeDirectory: p.outputDir,
		DescriptorPath:     descriptorPath,
		ResourceCount:      w.count,
		Modules:            modules,
		Properties:         p.props,
	}, nil
}

// writeTestProject writes the basic integration test project: the
// properties used for the round trip and the goal to run.
func (c *Creator) writeTestProject(p *plan) error {
	dir := filepath.Join(p.outputDir, filepath.FromSlash(TestProjectDir))
	f := properties.FromMap(p.props)
	if err := f.Save(filepath.Join(dir, properties.FileName), "Generated by archetype create"); err != nil {
		return fmt.Errorf("write test properties: %w", err)
	}
	return writeFile(filepath.Join(dir, GoalFile), []byte(DefaultGoal+"\n"))
}

// archetypePom is the POM of the archetype project itself.
func archetypePom(p *plan) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
    xsi:schemaLocation="http://maven.apache.org/POM/4.0.0 http://maven.apache.org/xsd/maven-4.0.0.xsd">
    <modelVersion>4.0.0</modelVersion>
    <groupId>%s</groupId>
    <artifactId>%s</artifactId>
    <version>%s</version>
    <packaging>maven-archetype</packaging>
    <name>%s</name>
    <build>
        <extensions>
            <extension>
                <groupId>org.apache.maven.archetype</groupId>
                <artifactId>archetype-packaging</artifactId>
                <version>3.2.1</version>
            </extension>
        </extensions>
    </build>
</project>
`, p.archetype.GroupID, p.archetype.ArtifactID, p.archetype.Version, p.archetype.ArtifactID))
}

// runMetadata is stored with each creation run.
type runMetadata struct {
	Project string   `json:"project"`
	Modules []string `json:"modules,omitempty"`
	Partial bool     `json:"partial"`
	Package string   `json:"package"`
}

func (c *Creator) startRun(ctx context.Context, p *plan) *stores.Run {
	if c.store == nil {
		return nil
	}
	run := stores.NewRun(stores.RunKindCreate, p.archetype.String())
	var modules []string
	for _, m := range p.root.all()[1:] {
		modules = append(modules, m.dir)
	}
	meta, _ := json.Marshal(runMetadata{
		Project: p.projectDir,
		Modules: modules,
		Partial: p.req.Partial,
		Package: p.props[engine.PropPackage],
	})
	run.Metadata = string(meta)
	if err := c.store.CreateRun(ctx, run); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record run")
		return nil
	}
	project := engine.Coordinates{
		GroupID:    p.props[engine.PropGroupID],
		ArtifactID: p.props[engine.PropArtifactID],
		Version:    p.props[engine.PropVersion],
	}
	if err := c.store.SetRunProject(ctx, run.ID, project, p.outputDir); err != nil {
		c.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record run project")
	}
	return run
}

func (c *Creator) finishRun(ctx context.Context, run *stores.Run, result *engine.CreationResult, err error) {
	if run == nil {
		return
	}
	var (
		counts stores.RunCounts
		msg    *string
	)
	if err != nil {
		s := err.Error()
		msg = &s
	} else if result != nil {
		counts.Files = result.ResourceCount
	}
	if e := c.store.FinishRun(context.WithoutCancel(ctx), run.ID, counts, msg); e != nil {
		c.logger.Warn().Err(e).Str("run_id", run.ID).Msg("Failed to finish run")
	}
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", dest, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func readBytes(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// templateDir is the template directory of a module inside
// archetype-resources.
func templateDir(parent, name string) string {
	return path.Join(parent, name)
}
