package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/engine"
)

// Well-known source names.
const (
	SourceInternal = "internal"
	SourceLocal    = "local"
)

//go:embed data/internal-catalog.xml
var internalCatalog []byte

type source struct {
	name string
	load func() (*Catalog, error)
}

func (s *source) Name() string {
	return s.name
}

func (s *source) Entries(ctx context.Context) ([]engine.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", s.name, err)
	}
	return c.Entries(), nil
}

// Internal returns the catalog of well-known archetypes shipped in the binary.
func Internal() engine.CatalogSource {
	return &source{name: SourceInternal, load: func() (*Catalog, error) {
		return Parse(internalCatalog)
	}}
}

// File returns a source reading a catalog file, or the archetype-catalog.xml
// inside a directory.
func File(path string) engine.CatalogSource {
	return &source{name: path, load: func() (*Catalog, error) {
		p := path
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			p = filepath.Join(p, FileName)
		}
		return Read(p)
	}}
}

// LocalPath returns the catalog file of a local repository.
func LocalPath(localRepo string) string {
	return filepath.Join(localRepo, FileName)
}

// Local returns the catalog of a local repository.
func Local(localRepo string) engine.CatalogSource {
	return &source{name: SourceLocal, load: func() (*Catalog, error) {
		return Read(LocalPath(localRepo))
	}}
}

// NewSource builds a source from its configured name: "internal", "local",
// "file://<path>" or a plain path.
func NewSource(spec, localRepo string) (engine.CatalogSource, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "":
		return nil, fmt.Errorf("empty catalog name")
	case spec == SourceInternal:
		return Internal(), nil
	case spec == SourceLocal:
		if localRepo == "" {
			return nil, fmt.Errorf("catalog %q needs a local repository", spec)
		}
		return Local(localRepo), nil
	case strings.HasPrefix(spec, "file://"):
		return File(strings.TrimPrefix(spec, "file://")), nil
	case strings.Contains(spec, "://"):
		return nil, fmt.Errorf("catalog %q: remote catalogs are not supported", spec)
	default:
		return File(spec), nil
	}
}

// NewSources builds every configured source.
func NewSources(specs []string, localRepo string) ([]engine.CatalogSource, error) {
	out := make([]engine.CatalogSource, 0, len(specs))
	for _, spec := range specs {
		s, err := NewSource(spec, localRepo)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Collect reads every source and merges the entries. The first source
// listing given coordinates wins. A source that fails to load is logged and
// skipped.
func Collect(ctx context.Context, sources []engine.CatalogSource, logger zerolog.Logger) ([]engine.CatalogEntry, error) {
	seen := make(map[engine.Coordinates]bool)
	var out []engine.CatalogEntry
	for _, s := range sources {
		entries, err := s.Entries(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn().Err(err).Str("catalog", s.Name()).Msg("Skipping catalog")
			continue
		}
		logger.Debug().Str("catalog", s.Name()).Int("entries", len(entries)).Msg("Loaded catalog")
		for _, e := range entries {
			if seen[e.Coordinates] {
				continue
			}
			seen[e.Coordinates] = true
			out = append(out, e)
		}
	}
	return out, nil
}

// UpdateLocal adds entries to the local repository catalog. It returns the
// number of entries that were new.
func UpdateLocal(localRepo string, entries ...engine.CatalogEntry) (int, error) {
	path := LocalPath(localRepo)
	c, err := Read(path)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, e := range entries {
		if c.Add(e) {
			added++
		}
	}
	if err := c.Save(path); err != nil {
		return 0, fmt.Errorf("update local catalog: %w", err)
	}
	return added, nil
}
