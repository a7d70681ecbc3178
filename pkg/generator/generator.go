package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/archive"
	"github.com/openfroyo/archetype/pkg/configurator"
	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/policy"
	"github.com/openfroyo/archetype/pkg/script"
	"github.com/openfroyo/archetype/pkg/stores"
	"github.com/openfroyo/archetype/pkg/telemetry"
	"github.com/openfroyo/archetype/pkg/velocity"
)

// PolicyChecker vets a resolved configuration before anything is written.
type PolicyChecker interface {
	CheckGeneration(ctx context.Context, archetype engine.Coordinates, conf *engine.Configuration, interactive bool) error
}

// Options configures a Generator. Selector and Configurator are required;
// everything else may be nil.
type Options struct {
	Selector     engine.Selector
	Configurator engine.Configurator
	Policy       PolicyChecker
	Store        *stores.SQLiteStore
	Scripts      *script.Runner
	Metrics      *telemetry.Metrics
	Tracer       *telemetry.Tracer
	Logger       zerolog.Logger
}

// Generator runs the generation pipeline: select the archetype, resolve its
// properties, check policies, write the project and run the post-generate
// script.
type Generator struct {
	selector     engine.Selector
	configurator engine.Configurator
	policy       PolicyChecker
	store        *stores.SQLiteStore
	scripts      *script.Runner
	metrics      *telemetry.Metrics
	tracer       *telemetry.Tracer
	templates    *velocity.Engine
	logger       zerolog.Logger
}

var _ engine.Generator = (*Generator)(nil)

// New creates a generator.
func New(opts Options) *Generator {
	logger := opts.Logger.With().Str("component", "generator").Logger()
	return &Generator{
		selector:     opts.Selector,
		configurator: opts.Configurator,
		policy:       opts.Policy,
		store:        opts.Store,
		scripts:      opts.Scripts,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		templates:    velocity.NewEngine(opts.Logger),
		logger:       logger,
	}
}

// runMetadata is stored with each history run.
type runMetadata struct {
	Descriptor descriptor.Kind `json:"descriptor"`
	Partial    bool            `json:"partial"`
	File       string          `json:"file"`
}

// Generate runs the whole pipeline for req.
func (g *Generator) Generate(ctx context.Context, req *engine.GenerationRequest) (result *engine.GenerationResult, err error) {
	start := time.Now()
	ctx, span := g.tracer.StartGenerationSpan(ctx, req.OutputDirectory, req.Interactive)
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
			g.metrics.RecordError(string(engine.KindOf(err)))
			span.SetAttributes(telemetry.AttrErrorKind.String(string(engine.KindOf(err))))
		}
		g.metrics.RecordGeneration(status, time.Since(start))
		telemetry.End(span, err)
	}()

	arch, err := g.selector.Select(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.AttrArchetype.String(arch.String()))
	logger := g.logger.With().Str("archetype", arch.String()).Logger()

	a, err := archive.Open(arch.File)
	if err != nil {
		return nil, engine.NewUnknownArchetypeError(arch.Coordinates, err)
	}
	defer a.Close()

	loaded, err := a.Descriptor()
	if err != nil {
		return nil, withArchetype(err, arch)
	}

	run := g.startRun(ctx, arch, loaded)
	if run != nil {
		span.SetAttributes(telemetry.AttrRunID.String(run.ID))
	}
	var project engine.Coordinates
	defer func() {
		g.finishRun(ctx, run, project, result, err)
	}()

	conf, err := g.configurator.Configure(ctx, req, configurator.Requirements(loaded))
	if err != nil {
		return nil, withArchetype(err, arch)
	}
	project = engine.Coordinates{
		GroupID:    conf.Value(engine.PropGroupID),
		ArtifactID: conf.Value(engine.PropArtifactID),
		Version:    conf.Value(engine.PropVersion),
	}
	span.SetAttributes(
		telemetry.AttrGroupID.String(project.GroupID),
		telemetry.AttrArtifactID.String(project.ArtifactID),
	)

	if g.policy != nil {
		if err := g.policy.CheckGeneration(ctx, arch.Coordinates, conf, req.Interactive); err != nil {
			g.recordViolations(err)
			return nil, err
		}
	}

	result, err = g.GenerateWith(ctx, a, loaded, conf, req.OutputDirectory)
	if err != nil {
		return nil, withArchetype(err, arch)
	}
	result.Archetype = *arch
	result.Configuration = conf
	if run != nil {
		result.RunID = run.ID
	}

	if err := g.postGenerate(ctx, a, result.ProjectDirectory, conf, logger); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	span.SetAttributes(telemetry.AttrFileCount.Int(len(result.Files)))
	g.metrics.RecordFiles(telemetry.FilesWritten, len(result.Files))
	g.metrics.RecordFiles(telemetry.FilesSkipped, len(result.Skipped))
	g.metrics.RecordFiles(telemetry.FilesMerged, len(result.MergedPoms))

	logger.Info().
		Str("project", result.ProjectDirectory).
		Int("files", len(result.Files)).
		Int("skipped", len(result.Skipped)).
		Int("merged", len(result.MergedPoms)).
		Dur("duration", result.Duration).
		Msg("Project generated")
	return result, nil
}

// GenerateWith writes the project for an already opened archetype and a
// resolved configuration into basedir.
func (g *Generator) GenerateWith(ctx context.Context, a *archive.Archetype, loaded *descriptor.Loaded, conf *engine.Configuration, basedir string) (*engine.GenerationResult, error) {
	if conf.Value(engine.PropArtifactID) == "" {
		return nil, engine.NewArchetypeNotConfiguredError([]string{engine.PropArtifactID}, nil)
	}
	if basedir == "" {
		basedir = "."
	}
	abs, err := filepath.Abs(basedir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", basedir, err)
	}

	resources, err := a.Resources()
	if err != nil {
		return nil, engine.NewError(engine.KindInvalidDescriptor, "archetype has no archetype-resources", err)
	}

	switch loaded.Kind {
	case descriptor.KindFileset:
		return g.generateFileset(ctx, resources, loaded.Fileset, conf, abs)
	case descriptor.KindLegacy:
		return g.generateLegacy(ctx, resources, loaded.Legacy, conf, abs)
	default:
		return nil, engine.NewError(engine.KindInvalidDescriptor, fmt.Sprintf("unknown descriptor kind %q", loaded.Kind), nil)
	}
}

// postGenerate runs the archetype's post-generate script, if it has one.
func (g *Generator) postGenerate(ctx context.Context, a *archive.Archetype, projectDir string, conf *engine.Configuration, logger zerolog.Logger) error {
	if g.scripts == nil || !a.HasFile(descriptor.PostGenerateScript) {
		return nil
	}
	src, err := a.ReadFile(descriptor.PostGenerateScript)
	if err != nil {
		return fmt.Errorf("read %s: %w", descriptor.PostGenerateScript, err)
	}

	ctx, span := g.tracer.StartSpan(ctx, "archetype.post_generate")
	res, err := g.scripts.Run(ctx, descriptor.PostGenerateScript, string(src), projectDir, conf.Map())
	telemetry.End(span, err)
	if err != nil {
		return engine.NewError(engine.KindGenerationFailure, "post-generate script failed", err).
			WithPath(descriptor.PostGenerateScript)
	}
	logger.Debug().
		Int("logs", len(res.Logs)).
		Strs("touched", res.Touched).
		Dur("duration", res.ExecutionTime).
		Msg("Post-generate script finished")
	return nil
}

func (g *Generator) recordViolations(err error) {
	var e *engine.ArchetypeError
	if !errors.As(err, &e) {
		return
	}
	violations, _ := e.Details["violations"].([]policy.Violation)
	for _, v := range violations {
		g.metrics.RecordPolicyViolation(v.Policy)
	}
}

// startRun records a running generation. History failures never fail the
// generation.
func (g *Generator) startRun(ctx context.Context, arch *engine.ArchetypeDefinition, loaded *descriptor.Loaded) *stores.Run {
	if g.store == nil {
		return nil
	}
	run := stores.NewRun(stores.RunKindGenerate, arch.String())
	meta, _ := json.Marshal(runMetadata{Descriptor: loaded.Kind, Partial: loaded.Partial(), File: arch.File})
	run.Metadata = string(meta)
	if err := g.store.CreateRun(ctx, run); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to record run")
		return nil
	}
	return run
}

func (g *Generator) finishRun(ctx context.Context, run *stores.Run, project engine.Coordinates, result *engine.GenerationResult, err error) {
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
	}
	if result != nil {
		counts = stores.RunCounts{Files: len(result.Files), Skipped: len(result.Skipped), MergedPoms: len(result.MergedPoms)}
		if e := g.store.SetRunProject(ctx, run.ID, project, result.ProjectDirectory); e != nil {
			g.logger.Warn().Err(e).Str("run_id", run.ID).Msg("Failed to record run project")
		}
	}
	// The run is recorded even when ctx was canceled.
	if e := g.store.FinishRun(context.WithoutCancel(ctx), run.ID, counts, msg); e != nil {
		g.logger.Warn().Err(e).Str("run_id", run.ID).Msg("Failed to finish run")
	}
}

func withArchetype(err error, arch *engine.ArchetypeDefinition) error {
	if e, ok := err.(*engine.ArchetypeError); ok && e.Archetype == "" {
		return e.WithArchetype(arch.String())
	}
	return err
}

// projectContext builds the template context of a generation.
func projectContext(conf *engine.Configuration, parent *parentPom) velocity.Context {
	props := conf.Map()
	if _, ok := props[engine.PropRootArtifactID]; !ok {
		props[engine.PropRootArtifactID] = conf.Value(engine.PropArtifactID)
	}
	props[engine.PropPackageInPathFormat] = packagePath(conf.Value(engine.PropPackage))
	if parent != nil {
		props[engine.PropParentArtifactID] = parent.project.ArtifactID
	}
	return velocity.NewContext(props)
}

// packagePath turns "com.example.app" into "com/example/app".
func packagePath(pkg string) string {
	out := []byte(pkg)
	for i, c := range out {
		if c == '.' {
			out[i] = '/'
		}
	}
	return string(out)
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
