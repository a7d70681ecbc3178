package creator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/charset"
	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/pom"
)

// writer writes the templates of each module below archetype-resources.
type writer struct {
	plan   *plan
	root   string
	logger zerolog.Logger
	count  int
}

// module writes the POM and files of m into tmplDir and returns its
// filesets.
func (w *writer) module(ctx context.Context, m *projectModule, tmplDir string, byModule map[*projectModule][]string) ([]descriptor.FileSet, error) {
	nested := m != w.plan.root
	sub := newSubstitution(w.plan.props, nested)
	pkgPath := strings.ReplaceAll(w.plan.props[engine.PropPackage], ".", "/")

	pomData, err := w.pom(m, sub, nested)
	if err != nil {
		return nil, err
	}
	if err := w.store(tmplDir, pom.FileName, pomData); err != nil {
		return nil, err
	}

	templates := make([]template, 0, len(byModule[m]))
	for _, rel := range byModule[m] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := classify(rel, w.plan.languages, pkgPath)
		t.dir = sub.name(t.dir)
		t.rel = sub.name(t.rel)

		src := filepath.Join(w.plan.projectDir, filepath.FromSlash(m.dir), filepath.FromSlash(rel))
		data, err := readBytes(src)
		if err != nil {
			return nil, err
		}
		if isFiltered(rel, w.plan.extensions) && !charset.IsBinary(data) {
			if data, t.encoding, err = w.filter(data, sub); err != nil {
				return nil, engine.NewError(engine.KindCreationFailure, "cannot convert file", err).WithPath(src)
			}
			t.filtered = true
		}

		if err := w.store(tmplDir, t.stored(), data); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	w.logger.Debug().
		Str("module", m.dir).
		Int("files", len(templates)).
		Msg("Module templates written")
	return buildFileSets(templates), nil
}

// childModule writes a nested module and describes it.
func (w *writer) childModule(ctx context.Context, m *projectModule, parentTmpl string, byModule map[*projectModule][]string) (descriptor.ModuleDescriptor, error) {
	rootArtifact := w.plan.props[engine.PropArtifactID]
	dir := m.name()
	id := m.project.ArtifactID
	if rootArtifact != "" {
		dir = strings.ReplaceAll(dir, rootArtifact, "__"+engine.PropRootArtifactID+"__")
		id = strings.ReplaceAll(id, rootArtifact, "${"+engine.PropRootArtifactID+"}")
	}

	tmpl := templateDir(parentTmpl, dir)
	sets, err := w.module(ctx, m, tmpl, byModule)
	if err != nil {
		return descriptor.ModuleDescriptor{}, err
	}

	name := m.project.Name
	if name == "" {
		name = m.project.ArtifactID
	}
	md := descriptor.ModuleDescriptor{ID: id, Dir: dir, Name: name, FileSets: sets}
	for _, child := range m.children {
		cd, err := w.childModule(ctx, child, tmpl, byModule)
		if err != nil {
			return descriptor.ModuleDescriptor{}, err
		}
		md.Modules = append(md.Modules, cd)
	}
	return md, nil
}

// filter reverse substitutes a text file, keeping its encoding.
func (w *writer) filter(data []byte, sub *substitution) ([]byte, string, error) {
	enc := charset.Detect(data)
	if enc == charset.ISO88591 && w.plan.encoding != charset.UTF8 {
		enc = w.plan.encoding
	}
	text, err := charset.Decode(data, enc)
	if err != nil {
		return nil, "", err
	}
	if !w.plan.req.PreserveCRLF {
		text = charset.NormalizeNewlines(text)
	}
	out, err := charset.Encode(sub.content(text), enc)
	if err != nil {
		return nil, "", err
	}
	return out, enc, nil
}

// rootArtifactMark holds the place of ${rootArtifactId} in module names
// while the POM text is escaped.
const rootArtifactMark = "\x00rootArtifactId\x00"

// pom turns a module POM into a template: identifiers become references,
// module names carrying the root artifactId use ${rootArtifactId}, and the
// parent is dropped unless the root keeps it. Nested modules always drop it;
// generation links them to the enclosing POM.
func (w *writer) pom(m *projectModule, sub *substitution, nested bool) ([]byte, error) {
	text := string(m.pomData)
	rootArtifact := w.plan.props[engine.PropArtifactID]
	if rootArtifact != "" {
		for _, child := range m.children {
			name := child.name()
			if !strings.Contains(name, rootArtifact) {
				continue
			}
			marked := strings.ReplaceAll(name, rootArtifact, rootArtifactMark)
			text = strings.ReplaceAll(text, "<module>"+name+"</module>", "<module>"+marked+"</module>")
		}
	}
	preamble, text := sub.template(text)
	text = strings.ReplaceAll(text, rootArtifactMark, "${"+engine.PropRootArtifactID+"}")

	r := pom.Replacements{
		ArtifactID:   "${" + engine.PropArtifactID + "}",
		RemoveParent: nested || !w.plan.req.KeepParent,
	}
	if m.project.GroupID != "" {
		r.GroupID = "${" + engine.PropGroupID + "}"
	}
	if m.project.Version != "" {
		r.Version = "${" + engine.PropVersion + "}"
	}
	out, err := pom.ReplaceIdentifiers([]byte(text), r)
	if err != nil {
		return nil, engine.NewError(engine.KindCreationFailure, "cannot rewrite POM", err).
			WithPath(filepath.Join(w.plan.projectDir, filepath.FromSlash(m.dir), pom.FileName))
	}
	if preamble == "" {
		return out, nil
	}
	return append([]byte(preamble), out...), nil
}

// store writes one template file.
func (w *writer) store(tmplDir, rel string, data []byte) error {
	dest := filepath.Join(w.root, filepath.FromSlash(tmplDir), filepath.FromSlash(rel))
	if err := writeFile(dest, data); err != nil {
		return err
	}
	w.count++
	return nil
}

// removeStale deletes dir when it exists; used before a re-creation.
func removeStale(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clean %s: %w", dir, err)
	}
	return nil
}
