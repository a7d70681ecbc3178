package generator

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/openfroyo/archetype/pkg/charset"
	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/fileset"
	"github.com/openfroyo/archetype/pkg/pom"
	"github.com/openfroyo/archetype/pkg/velocity"
)

// module is one level of a fileset archetype: the root project or a nested
// module.
type module struct {
	// template is the module directory inside archetype-resources ("" for
	// the root).
	template string

	// dir is the output directory.
	dir string

	fileSets []descriptor.FileSet
	modules  []descriptor.ModuleDescriptor
}

func (g *Generator) generateFileset(ctx context.Context, resources fs.FS, d *descriptor.ArchetypeDescriptor, conf *engine.Configuration, basedir string) (*engine.GenerationResult, error) {
	artifactID := conf.Value(engine.PropArtifactID)

	parent, err := findParent(basedir)
	if err != nil {
		return nil, err
	}

	projectDir := filepath.Join(basedir, artifactID)
	if d.Partial {
		projectDir = basedir
	} else if dirExists(projectDir) {
		return nil, engine.NewProjectDirectoryExistsError(projectDir)
	}
	if parent != nil && !d.Partial {
		if err := parent.accepts(artifactID); err != nil {
			return nil, err
		}
	}

	logger := g.logger.With().Str("project", projectDir).Logger()
	logger.Debug().
		Bool("partial", d.Partial).
		Int("filesets", len(d.FileSets)).
		Int("modules", len(d.Modules)).
		Msg("Generating fileset archetype")

	out := newOutput(projectDir, d.Partial, logger)
	root := module{dir: projectDir, fileSets: d.FileSets, modules: d.Modules}
	if err := g.processModule(ctx, resources, projectContext(conf, parent), out, root); err != nil {
		return nil, err
	}

	rootPom := filepath.Join(projectDir, pom.FileName)
	if parent != nil && !d.Partial && exists(rootPom) {
		if err := parent.link(artifactID, rootPom, logger); err != nil {
			return nil, err
		}
	}

	result := &engine.GenerationResult{ProjectDirectory: projectDir}
	out.result(result)
	return result, nil
}

// processModule writes the POM, filesets and nested modules of m.
func (g *Generator) processModule(ctx context.Context, resources fs.FS, vctx velocity.Context, out *output, m module) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pomTemplate := path.Join(m.template, pom.FileName)
	if isFile(resources, pomTemplate) {
		dest := filepath.Join(m.dir, pom.FileName)
		if err := g.processFile(resources, vctx, out, pomTemplate, dest, true, "UTF-8"); err != nil {
			return err
		}
	}

	children := make([]string, 0, len(m.modules))
	for _, child := range m.modules {
		children = append(children, path.Join(m.template, child.Dir))
	}

	for _, set := range m.fileSets {
		if err := g.processFileSet(ctx, resources, vctx, out, m, set, children); err != nil {
			return err
		}
	}

	for _, child := range m.modules {
		if err := g.processChild(ctx, resources, vctx, out, m, child); err != nil {
			return err
		}
	}
	return nil
}

// processChild generates a nested module and links it to the enclosing POM.
func (g *Generator) processChild(ctx context.Context, resources fs.FS, vctx velocity.Context, out *output, m module, child descriptor.ModuleDescriptor) error {
	dirName := velocity.EvaluatePath(child.Dir, vctx)

	id := dirName
	if child.ID != "" {
		rendered, err := g.templates.Evaluate("module "+child.Dir, velocity.EvaluatePath(child.ID, vctx), vctx)
		if err != nil {
			return engine.NewError(engine.KindInvalidDescriptor, "cannot evaluate module id", err).WithPath(child.Dir)
		}
		if rendered = strings.TrimSpace(rendered); rendered != "" {
			id = rendered
		}
	}

	childCtx := make(velocity.Context, len(vctx)+2)
	for k, v := range vctx {
		childCtx[k] = v
	}
	childCtx[engine.PropParentArtifactID] = vctx[engine.PropArtifactID]
	childCtx[engine.PropArtifactID] = id

	sub := module{
		template: path.Join(m.template, child.Dir),
		dir:      filepath.Join(m.dir, filepath.FromSlash(dirName)),
		fileSets: child.FileSets,
		modules:  child.Modules,
	}
	if err := g.processModule(ctx, resources, childCtx, out, sub); err != nil {
		return err
	}

	enclosing := filepath.Join(m.dir, pom.FileName)
	modulePom := filepath.Join(sub.dir, pom.FileName)
	if !exists(enclosing) || !exists(modulePom) {
		return nil
	}
	if err := addModule(enclosing, dirName); err != nil {
		return err
	}
	project, err := pom.ReadFile(enclosing)
	if err != nil {
		return engine.NewError(engine.KindGenerationFailure, "cannot read module parent", err).WithPath(enclosing)
	}
	return setParent(modulePom, project.Coordinates())
}

// processFileSet writes the files a fileset selects. Files in child module
// directories belong to those modules.
func (g *Generator) processFileSet(ctx context.Context, resources fs.FS, vctx velocity.Context, out *output, m module, set descriptor.FileSet, children []string) error {
	base := path.Join(m.template, set.Directory)
	if base == "" {
		base = "."
	}
	sub, err := fs.Sub(resources, base)
	if err != nil {
		return fmt.Errorf("fileset %s: %w", base, err)
	}
	if !isDir(resources, base) {
		g.logger.Debug().Str("directory", base).Msg("Fileset directory missing, skipping")
		return nil
	}

	matcher, err := fileset.NewMatcher(set.Includes, set.Excludes, false)
	if err != nil {
		return engine.NewError(engine.KindInvalidDescriptor, "invalid fileset pattern", err).WithPath(base)
	}
	files, err := fileset.Scan(ctx, sub, matcher)
	if err != nil {
		return fmt.Errorf("scan fileset %s: %w", base, err)
	}

	pomTemplate := path.Join(m.template, pom.FileName)
	pkgPath, _ := vctx[engine.PropPackageInPathFormat].(string)

	for _, rel := range files {
		src := path.Join(base, rel)
		if src == pomTemplate || inAny(src, children) {
			continue
		}

		target := set.Directory
		if set.Packaged {
			target = path.Join(target, pkgPath)
		}
		target = velocity.EvaluatePath(path.Join(target, rel), vctx)
		dest := filepath.Join(m.dir, filepath.FromSlash(target))

		if err := g.processFile(resources, vctx, out, src, dest, set.Filtered, set.EncodingOrDefault()); err != nil {
			return err
		}
	}
	return nil
}

// processFile renders (when filtered) or copies one template file.
func (g *Generator) processFile(resources fs.FS, vctx velocity.Context, out *output, src, dest string, filtered bool, encoding string) error {
	data, err := fs.ReadFile(resources, src)
	if err != nil {
		return fmt.Errorf("read template %s: %w", src, err)
	}

	if filtered && !charset.IsBinary(data) {
		text, err := charset.Decode(data, encoding)
		if err != nil {
			return engine.NewError(engine.KindGenerationFailure, "cannot decode template", err).WithPath(src)
		}
		rendered, err := g.templates.Evaluate(src, text, vctx)
		if err != nil {
			return engine.NewError(engine.KindGenerationFailure, "cannot render template", err).WithPath(src)
		}
		if data, err = charset.Encode(rendered, encoding); err != nil {
			return engine.NewError(engine.KindGenerationFailure, "cannot encode output", err).WithPath(dest)
		}
	}

	return out.write(dest, data, filepath.Base(dest) == pom.FileName)
}

func inAny(p string, dirs []string) bool {
	for _, d := range dirs {
		if strings.HasPrefix(p, d+"/") {
			return true
		}
	}
	return false
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}

func isDir(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && info.IsDir()
}
