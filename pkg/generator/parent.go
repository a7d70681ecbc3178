package generator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/pom"
)

// parentPom is the POM of the directory a project is generated into.
type parentPom struct {
	path    string
	project *pom.Project
}

// findParent reads <basedir>/pom.xml when there is one.
func findParent(basedir string) (*parentPom, error) {
	p := filepath.Join(basedir, pom.FileName)
	if !exists(p) {
		return nil, nil
	}
	project, err := pom.ReadFile(p)
	if err != nil {
		return nil, engine.NewError(engine.KindGenerationFailure, "cannot read parent POM", err).WithPath(p)
	}
	return &parentPom{path: p, project: project}, nil
}

// accepts fails with invalid-packaging when the parent cannot aggregate
// module, so generation stops before anything is written.
func (pp *parentPom) accepts(module string) error {
	packaging := pp.project.EffectivePackaging()
	if packaging == "pom" {
		return nil
	}
	return engine.NewError(engine.KindInvalidPackaging,
		fmt.Sprintf("unable to add module %s: parent packaging is %q, expected \"pom\"", module, packaging), nil).
		WithPath(pp.path).
		WithDetail("artifactId", pp.project.ArtifactID)
}

// link adds module to the parent's <modules> and sets the parent of the
// module POM at modulePom.
func (pp *parentPom) link(module, modulePom string, logger zerolog.Logger) error {
	if err := addModule(pp.path, module); err != nil {
		return err
	}
	logger.Debug().Str("parent", pp.path).Str("module", module).Msg("Added module to parent POM")
	return setParent(modulePom, pp.project.Coordinates())
}

// addModule adds module to the POM at path.
func addModule(path, module string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	out, changed, err := pom.AddModule(data, module)
	if err != nil {
		if e, ok := err.(*engine.ArchetypeError); ok {
			return e.WithPath(path)
		}
		return engine.NewError(engine.KindGenerationFailure, "cannot add module", err).WithPath(path)
	}
	if !changed {
		return nil
	}
	return writeFile(path, out)
}

// setParent points the POM at path to parent.
func setParent(path string, parent engine.Coordinates) error {
	if !exists(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	out, err := pom.SetParent(data, parent)
	if err != nil {
		return engine.NewError(engine.KindGenerationFailure, "cannot set parent", err).WithPath(path)
	}
	return writeFile(path, out)
}
