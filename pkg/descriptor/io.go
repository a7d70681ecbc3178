package descriptor

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/fileset"
)

// Kind is the descriptor format of an archetype.
type Kind string

const (
	KindFileset Kind = "fileset"
	KindLegacy  Kind = "legacy"
)

// Loaded is a descriptor read from an archetype, in whichever format it uses.
type Loaded struct {
	Kind    Kind
	Path    string
	Fileset *ArchetypeDescriptor
	Legacy  *LegacyDescriptor
}

// Partial reports whether the archetype may generate into an existing project.
func (l *Loaded) Partial() bool {
	if l.Fileset != nil {
		return l.Fileset.Partial
	}
	return l.Legacy != nil && l.Legacy.AllowPartial
}

// Name returns the descriptor's name, or the legacy id.
func (l *Loaded) Name() string {
	switch {
	case l.Fileset != nil:
		return l.Fileset.Name
	case l.Legacy != nil:
		return l.Legacy.ID
	}
	return ""
}

var validate = validator.New()

// ParseFileset decodes a fileset descriptor.
func ParseFileset(data []byte) (*ArchetypeDescriptor, error) {
	var d ArchetypeDescriptor
	if err := xml.Unmarshal(data, &d); err != nil {
		return nil, engine.NewError(engine.KindInvalidDescriptor, "cannot parse archetype-metadata.xml", err)
	}
	trimFileSets(d.FileSets)
	for i := range d.Modules {
		trimModule(&d.Modules[i])
	}
	return &d, nil
}

func trimFileSets(sets []FileSet) {
	for i := range sets {
		sets[i].Directory = strings.Trim(strings.TrimSpace(sets[i].Directory), "/")
		for j := range sets[i].Includes {
			sets[i].Includes[j] = strings.TrimSpace(sets[i].Includes[j])
		}
		for j := range sets[i].Excludes {
			sets[i].Excludes[j] = strings.TrimSpace(sets[i].Excludes[j])
		}
	}
}

func trimModule(m *ModuleDescriptor) {
	trimFileSets(m.FileSets)
	for i := range m.Modules {
		trimModule(&m.Modules[i])
	}
}

// ParseLegacy decodes a legacy archetype.xml descriptor.
func ParseLegacy(data []byte) (*LegacyDescriptor, error) {
	var d LegacyDescriptor
	if err := xml.Unmarshal(data, &d); err != nil {
		return nil, engine.NewError(engine.KindInvalidDescriptor, "cannot parse archetype.xml", err)
	}
	d.ID = strings.TrimSpace(d.ID)
	for _, group := range [][]LegacyFile{d.Sources, d.Resources, d.TestSources, d.TestResources, d.SiteResources} {
		for i := range group {
			group[i].Path = strings.TrimSpace(group[i].Path)
		}
	}
	return &d, nil
}

// DetectKind reports which descriptor an archetype carries and where.
// The fileset descriptor wins when both exist.
func DetectKind(fsys fs.FS) (Kind, string, error) {
	if exists(fsys, FilesetPath) {
		return KindFileset, FilesetPath, nil
	}
	for _, p := range []string{LegacyPath, LegacyFallbackPath} {
		if exists(fsys, p) {
			return KindLegacy, p, nil
		}
	}
	return "", "", engine.NewError(engine.KindInvalidDescriptor, "no archetype descriptor found", nil)
}

func exists(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}

// Load detects, reads and validates the descriptor of an archetype.
func Load(fsys fs.FS) (*Loaded, error) {
	kind, p, err := DetectKind(fsys)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}

	loaded := &Loaded{Kind: kind, Path: p}
	switch kind {
	case KindFileset:
		d, err := ParseFileset(data)
		if err != nil {
			return nil, err
		}
		if err := Validate(d); err != nil {
			return nil, err
		}
		loaded.Fileset = d
	case KindLegacy:
		d, err := ParseLegacy(data)
		if err != nil {
			return nil, err
		}
		if err := validate.Struct(d); err != nil {
			return nil, engine.NewError(engine.KindInvalidDescriptor, "invalid archetype.xml", err)
		}
		loaded.Legacy = d
	}
	return loaded, nil
}

// Validate checks a fileset descriptor: struct tags first, then the rules
// tags cannot express. All problems are reported together.
func Validate(d *ArchetypeDescriptor) error {
	var result *multierror.Error

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				result = multierror.Append(result, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			result = multierror.Append(result, err)
		}
	}

	seen := make(map[string]bool)
	for _, p := range d.RequiredProperties {
		if seen[p.Key] {
			result = multierror.Append(result, fmt.Errorf("required property %q declared twice", p.Key))
		}
		seen[p.Key] = true
		if p.ValidationRegex != "" {
			if _, err := regexp.Compile(p.ValidationRegex); err != nil {
				result = multierror.Append(result, fmt.Errorf("required property %q: invalid validationRegex: %w", p.Key, err))
			}
		}
	}

	checkSets := func(where string, sets []FileSet) {
		for _, s := range sets {
			for _, pattern := range append(append([]string(nil), s.Includes...), s.Excludes...) {
				if _, err := fileset.Compile(pattern); err != nil {
					result = multierror.Append(result, fmt.Errorf("%s fileset %q: %w", where, s.Directory, err))
				}
			}
		}
	}
	checkSets("root", d.FileSets)
	for _, m := range d.AllModules() {
		checkSets("module "+m.Path, m.Module.FileSets)
	}

	if err := result.ErrorOrNil(); err != nil {
		return engine.NewError(engine.KindInvalidDescriptor, "invalid archetype-metadata.xml", err)
	}
	return nil
}

// Marshal renders a fileset descriptor as indented XML with a header.
func Marshal(d *ArchetypeDescriptor) ([]byte, error) {
	if d.Xmlns == "" {
		d.Xmlns = Namespace
	}
	var buf bytes.Buffer
	if err := Write(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes v (a fileset or legacy descriptor) to w.
func Write(w io.Writer, v interface{}) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
