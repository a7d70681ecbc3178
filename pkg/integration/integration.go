// Package integration runs the integration test projects of an archetype
// project.
//
// Every directory src/test/resources/projects/<name> holding an
// archetype.properties file is one test project. The archetype is generated
// with those properties; when a reference/ directory sits beside the
// properties file, the generated project must match it file by file. Line
// endings are ignored when comparing text.
package integration

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/archetype/pkg/archive"
	"github.com/openfroyo/archetype/pkg/charset"
	"github.com/openfroyo/archetype/pkg/configurator"
	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/fileset"
	"github.com/openfroyo/archetype/pkg/generator"
	"github.com/openfroyo/archetype/pkg/properties"
)

// Layout of a test project.
const (
	ProjectsDir  = "src/test/resources/projects"
	ReferenceDir = "reference"
	GoalFile     = "goal.txt"
)

// DiffKind classifies a difference between a generated and a reference tree.
type DiffKind string

const (
	DiffMissing    DiffKind = "missing"
	DiffUnexpected DiffKind = "unexpected"
	DiffContent    DiffKind = "content"
)

// Difference is one file that does not match the reference.
type Difference struct {
	Path string   `json:"path"`
	Kind DiffKind `json:"kind"`
}

// ProjectResult is the outcome of one test project.
type ProjectResult struct {
	Name        string        `json:"name"`
	ProjectDir  string        `json:"projectDir,omitempty"`
	Goal        string        `json:"goal,omitempty"`
	Files       int           `json:"files"`
	Compared    bool          `json:"compared"`
	Differences []Difference  `json:"differences,omitempty"`
	Duration    time.Duration `json:"duration"`
	Err         error         `json:"-"`
}

// Passed reports whether generation succeeded and matched the reference.
func (r ProjectResult) Passed() bool {
	return r.Err == nil && len(r.Differences) == 0
}

// Report collects the results of every test project.
type Report struct {
	ArchetypeDirectory string          `json:"archetypeDirectory"`
	WorkDirectory      string          `json:"workDirectory"`
	Projects           []ProjectResult `json:"projects"`
}

// Failed returns the projects that did not pass.
func (r *Report) Failed() []ProjectResult {
	var out []ProjectResult
	for _, p := range r.Projects {
		if !p.Passed() {
			out = append(out, p)
		}
	}
	return out
}

// Options configures a Runner.
type Options struct {
	// Generator writes the projects; one without history or policies is
	// created when nil.
	Generator *generator.Generator

	// Parallelism bounds concurrently generated projects; 1 when zero.
	Parallelism int

	Logger zerolog.Logger
}

// Runner runs integration test projects.
type Runner struct {
	generator    *generator.Generator
	configurator *configurator.Configurator
	parallelism  int
	logger       zerolog.Logger
}

// New creates a runner.
func New(opts Options) *Runner {
	g := opts.Generator
	if g == nil {
		g = generator.New(generator.Options{Logger: opts.Logger})
	}
	n := opts.Parallelism
	if n < 1 {
		n = 1
	}
	return &Runner{
		generator:    g,
		configurator: configurator.New(nil, opts.Logger),
		parallelism:  n,
		logger:       opts.Logger.With().Str("component", "integration").Logger(),
	}
}

// Run generates every test project of the archetype project in
// archetypeDir below workDir and compares it with its reference. Project
// failures are reported in the Report; the error is for failures that
// stop the whole run.
func (r *Runner) Run(ctx context.Context, archetypeDir, workDir string) (*Report, error) {
	a, err := archive.Open(archetypeDir)
	if err != nil {
		return nil, engine.NewUnknownArchetypeError(engine.Coordinates{}, err).WithPath(archetypeDir)
	}
	defer func() { _ = a.Close() }()

	loaded, err := a.Descriptor()
	if err != nil {
		return nil, engine.NewError(engine.KindInvalidDescriptor, "cannot load descriptor", err).WithPath(archetypeDir)
	}

	names, err := Projects(archetypeDir)
	if err != nil {
		return nil, err
	}
	if workDir == "" {
		workDir = filepath.Join(archetypeDir, "target", "test-classes", "projects")
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", workDir, err)
	}

	report := &Report{
		ArchetypeDirectory: archetypeDir,
		WorkDirectory:      workDir,
		Projects:           make([]ProjectResult, len(names)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, name := range names {
		g.Go(func() error {
			report.Projects[i] = r.runProject(gctx, a, loaded, archetypeDir, workDir, name)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	failed := len(report.Failed())
	r.logger.Info().
		Str("archetype", archetypeDir).
		Int("projects", len(names)).
		Int("failed", failed).
		Msg("Integration tests finished")
	return report, nil
}

// Projects lists the names of the test projects, sorted.
func Projects(archetypeDir string) ([]string, error) {
	pattern := filepath.Join(archetypeDir, filepath.FromSlash(ProjectsDir), "*", properties.FileName)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list test projects: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(filepath.Dir(m)))
	}
	sort.Strings(names)
	return names, nil
}

func (r *Runner) runProject(ctx context.Context, a *archive.Archetype, loaded *descriptor.Loaded, archetypeDir, workDir, name string) ProjectResult {
	start := time.Now()
	res := ProjectResult{Name: name}
	logger := r.logger.With().Str("project", name).Logger()

	dir := filepath.Join(archetypeDir, filepath.FromSlash(ProjectsDir), name)
	if goal, err := os.ReadFile(filepath.Join(dir, GoalFile)); err == nil {
		res.Goal = strings.TrimSpace(string(goal))
	}

	res.Err = func() error {
		f, err := properties.Load(filepath.Join(dir, properties.FileName))
		if err != nil {
			return fmt.Errorf("read %s: %w", properties.FileName, err)
		}

		basedir := filepath.Join(workDir, name)
		if err := os.RemoveAll(basedir); err != nil {
			return fmt.Errorf("clean %s: %w", basedir, err)
		}
		req := &engine.GenerationRequest{OutputDirectory: basedir}
		configurator.FromProperties(f, req)

		conf, err := r.configurator.Configure(ctx, req, configurator.Requirements(loaded))
		if err != nil {
			return err
		}
		result, err := r.generator.GenerateWith(ctx, a, loaded, conf, basedir)
		if err != nil {
			return err
		}
		res.ProjectDir = result.ProjectDirectory
		res.Files = len(result.Files)

		reference := filepath.Join(dir, ReferenceDir)
		if info, err := os.Stat(reference); err != nil || !info.IsDir() {
			return nil
		}
		res.Compared = true
		res.Differences, err = Compare(ctx, reference, result.ProjectDirectory)
		return err
	}()
	res.Duration = time.Since(start)

	switch {
	case res.Err != nil:
		logger.Error().Err(res.Err).Msg("Integration test failed")
	case len(res.Differences) > 0:
		logger.Error().Int("differences", len(res.Differences)).Msg("Generated project differs from reference")
	default:
		logger.Info().
			Int("files", res.Files).
			Bool("compared", res.Compared).
			Dur("duration", res.Duration).
			Msg("Integration test passed")
	}
	return res
}

// Compare lists the differences between the reference tree and the
// generated one, sorted by path.
func Compare(ctx context.Context, reference, generated string) ([]Difference, error) {
	want, err := fileset.ScanDir(ctx, reference, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", reference, err)
	}
	got, err := fileset.ScanDir(ctx, generated, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", generated, err)
	}

	gotSet := make(map[string]bool, len(got))
	for _, p := range got {
		gotSet[p] = true
	}

	var diffs []Difference
	for _, p := range want {
		if !gotSet[p] {
			diffs = append(diffs, Difference{Path: p, Kind: DiffMissing})
			continue
		}
		delete(gotSet, p)
		same, err := sameContent(filepath.Join(reference, filepath.FromSlash(p)), filepath.Join(generated, filepath.FromSlash(p)))
		if err != nil {
			return nil, err
		}
		if !same {
			diffs = append(diffs, Difference{Path: p, Kind: DiffContent})
		}
	}
	for p := range gotSet {
		diffs = append(diffs, Difference{Path: p, Kind: DiffUnexpected})
	}
	sort.Slice(diffs, func(i, j int) bool {
		if diffs[i].Path != diffs[j].Path {
			return diffs[i].Path < diffs[j].Path
		}
		return diffs[i].Kind < diffs[j].Kind
	})
	return diffs, nil
}

func sameContent(a, b string) (bool, error) {
	da, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	if bytes.Equal(da, db) {
		return true, nil
	}
	if charset.IsBinary(da) || charset.IsBinary(db) {
		return false, nil
	}
	return charset.NormalizeNewlines(string(da)) == charset.NormalizeNewlines(string(db)), nil
}
