package generator

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/pom"
	"github.com/openfroyo/archetype/pkg/velocity"
)

// Default directories of legacy descriptor sections.
const (
	mainJava      = "src/main/java"
	testJava      = "src/test/java"
	mainResources = "src/main/resources"
	testResources = "src/test/resources"
	siteResources = "src/site"
)

func (g *Generator) generateLegacy(ctx context.Context, resources fs.FS, d *descriptor.LegacyDescriptor, conf *engine.Configuration, basedir string) (*engine.GenerationResult, error) {
	artifactID := conf.Value(engine.PropArtifactID)
	projectDir := filepath.Join(basedir, artifactID)
	projectPom := filepath.Join(projectDir, pom.FileName)

	if exists(projectPom) && !d.AllowPartial {
		return nil, engine.NewPomFileExistsError(projectPom)
	}

	parent, err := findParent(basedir)
	if err != nil {
		return nil, err
	}
	if parent != nil && (isFile(resources, pom.FileName) || exists(projectPom)) {
		if err := parent.accepts(artifactID); err != nil {
			return nil, err
		}
	}

	logger := g.logger.With().Str("project", projectDir).Logger()
	logger.Debug().
		Str("id", d.ID).
		Bool("partial", d.AllowPartial).
		Msg("Generating legacy archetype")

	vctx := projectContext(conf, parent)
	pkgPath, _ := vctx[engine.PropPackageInPathFormat].(string)
	out := newOutput(projectDir, d.AllowPartial, logger)

	if isFile(resources, pom.FileName) {
		if err := g.processFile(resources, vctx, out, pom.FileName, projectPom, true, "UTF-8"); err != nil {
			return nil, err
		}
	}

	for _, entry := range d.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src := entry.File.Path
		if src == "" {
			continue
		}
		target := velocity.EvaluatePath(legacyTarget(entry.Group, src, pkgPath), vctx)
		dest := filepath.Join(projectDir, filepath.FromSlash(target))

		encoding := entry.File.Encoding
		if encoding == "" {
			encoding = "UTF-8"
		}
		if err := g.processFile(resources, vctx, out, src, dest, entry.File.IsFiltered(), encoding); err != nil {
			return nil, err
		}
	}

	if parent != nil && exists(projectPom) {
		if err := parent.link(artifactID, projectPom, logger); err != nil {
			return nil, err
		}
	}

	result := &engine.GenerationResult{ProjectDirectory: projectDir}
	out.result(result)
	return result, nil
}

// legacyTarget maps a legacy entry to its path in the project. Sources are
// packaged: "src/main/java/App.java" becomes "src/main/java/<pkg>/App.java"
// and "App.java" becomes the same. Resources keep paths starting with "src/"
// and are placed under the section's directory otherwise.
func legacyTarget(group descriptor.LegacyGroup, p, pkgPath string) string {
	switch group {
	case descriptor.GroupSources:
		return packaged(p, mainJava, pkgPath)
	case descriptor.GroupTestSources:
		return packaged(p, testJava, pkgPath)
	case descriptor.GroupResources:
		return under(p, mainResources)
	case descriptor.GroupTestResources:
		return under(p, testResources)
	case descriptor.GroupSiteResources:
		return under(p, siteResources)
	default:
		return p
	}
}

func packaged(p, dir, pkgPath string) string {
	segments := strings.Split(p, "/")
	if strings.HasPrefix(p, "src/") && len(segments) > 3 {
		return path.Join(append(append(segments[:3:3], pkgPath), segments[3:]...)...)
	}
	return path.Join(dir, pkgPath, p)
}

func under(p, dir string) string {
	if strings.HasPrefix(p, "src/") {
		return p
	}
	return path.Join(dir, p)
}
