package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/pom"
)

// output writes generated files below a project directory and keeps track
// of what happened to each of them.
type output struct {
	root    string
	partial bool
	logger  zerolog.Logger

	files   []string
	skipped []string
	merged  []string
}

func newOutput(root string, partial bool, logger zerolog.Logger) *output {
	return &output{root: root, partial: partial, logger: logger}
}

// rel returns p relative to the project root in slash form.
func (o *output) rel(p string) string {
	r, err := filepath.Rel(o.root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}

// write stores data at dest. An existing file fails the generation unless
// the archetype is partial, in which case POMs are merged and other files
// are left alone.
func (o *output) write(dest string, data []byte, isPom bool) error {
	if _, err := os.Stat(dest); err == nil {
		if !o.partial {
			return engine.NewOutputFileExistsError(dest)
		}
		if isPom {
			return o.merge(dest, data)
		}
		o.logger.Warn().Str("file", dest).Msg("File already exists, not overwriting")
		o.skipped = append(o.skipped, o.rel(dest))
		return nil
	}

	if err := writeFile(dest, data); err != nil {
		return err
	}
	o.files = append(o.files, o.rel(dest))
	return nil
}

func (o *output) merge(dest string, generated []byte) error {
	existing, err := os.ReadFile(dest)
	if err != nil {
		return fmt.Errorf("read %s: %w", dest, err)
	}
	merged, result, err := pom.Merge(existing, generated)
	if err != nil {
		return engine.NewError(engine.KindGenerationFailure, "cannot merge POM", err).WithPath(dest)
	}
	if result.Changed() {
		if err := writeFile(dest, merged); err != nil {
			return err
		}
	}
	o.logger.Info().
		Str("pom", dest).
		Strs("dependencies", result.Dependencies).
		Strs("modules", result.Modules).
		Strs("properties", result.Properties).
		Strs("plugins", result.Plugins).
		Msg("Merged POM")
	o.merged = append(o.merged, o.rel(dest))
	return nil
}

// result fills the file lists of r, sorted.
func (o *output) result(r *engine.GenerationResult) {
	sort.Strings(o.files)
	sort.Strings(o.skipped)
	sort.Strings(o.merged)
	r.Files = o.files
	r.Skipped = o.skipped
	r.MergedPoms = o.merged
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

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
