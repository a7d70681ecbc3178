// Package repository works with a local artifact repository laid out the
// Maven way: <root>/<group path>/<artifactId>/<version>/<artifactId>-<version>.jar.
package repository

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/archive"
	"github.com/openfroyo/archetype/pkg/catalog"
	"github.com/openfroyo/archetype/pkg/engine"
)

// Repository is a local repository rooted at a directory.
type Repository struct {
	root   string
	logger zerolog.Logger
}

// New returns a repository rooted at root.
func New(root string, logger zerolog.Logger) *Repository {
	return &Repository{
		root:   root,
		logger: logger.With().Str("component", "repository").Logger(),
	}
}

// DefaultRoot returns ~/.m2/repository.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".m2", "repository")
	}
	return filepath.Join(home, ".m2", "repository")
}

// Root returns the repository directory.
func (r *Repository) Root() string {
	return r.root
}

// PathOf returns where the jar for coords lives, whether or not it exists.
func (r *Repository) PathOf(coords engine.Coordinates) string {
	return filepath.Join(r.root, filepath.FromSlash(coords.Path()), coords.JarName())
}

// Resolve returns the jar for coords. A missing version resolves to the
// highest installed one.
func (r *Repository) Resolve(coords engine.Coordinates) (string, error) {
	if coords.GroupID == "" || coords.ArtifactID == "" {
		return "", engine.NewUnknownArchetypeError(coords, nil)
	}
	if coords.Version == "" {
		versions, err := r.Versions(coords.GroupID, coords.ArtifactID)
		if err != nil || len(versions) == 0 {
			return "", engine.NewUnknownArchetypeError(coords, err)
		}
		coords.Version = versions[len(versions)-1]
	}

	p := r.PathOf(coords)
	if _, err := os.Stat(p); err != nil {
		return "", engine.NewUnknownArchetypeError(coords, err).WithPath(p)
	}
	return p, nil
}

// Versions lists the installed versions of an artifact, lowest first.
func (r *Repository) Versions(groupID, artifactID string) ([]string, error) {
	dir := filepath.Join(r.root, filepath.FromSlash(strings.ReplaceAll(groupID, ".", "/")), artifactID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c := engine.Coordinates{GroupID: groupID, ArtifactID: artifactID, Version: e.Name()}
		if _, err := os.Stat(r.PathOf(c)); err == nil {
			versions = append(versions, e.Name())
		}
	}
	catalog.SortVersions(versions)
	return versions, nil
}

// Install copies a jar into the repository layout and returns its new path.
func (r *Repository) Install(ctx context.Context, jar string, coords engine.Coordinates) (string, error) {
	if !coords.IsComplete() {
		return "", fmt.Errorf("install %s: incomplete coordinates %q", jar, coords)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dest := r.PathOf(coords)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("install %s: %w", coords, err)
	}
	if err := copyFile(jar, dest); err != nil {
		return "", fmt.Errorf("install %s: %w", coords, err)
	}

	r.logger.Info().Str("archetype", coords.String()).Str("path", dest).Msg("Installed archetype")
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".install-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// Crawl walks the repository and returns a catalog entry for every jar that
// holds an archetype descriptor. Coordinates come from the layout; the
// descriptor name, when present, becomes the description.
func (r *Repository) Crawl(ctx context.Context) ([]engine.CatalogEntry, error) {
	var entries []engine.CatalogEntry

	err := filepath.WalkDir(r.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jar") {
			return nil
		}

		coords, ok := r.coordinatesOf(p)
		if !ok {
			return nil
		}
		entry, ok := r.inspect(p, coords)
		if ok {
			entries = append(entries, entry)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", r.root, err)
	}

	catalog.Sort(entries)
	r.logger.Debug().Int("archetypes", len(entries)).Msg("Crawled repository")
	return entries, nil
}

// coordinatesOf maps <root>/<g...>/<a>/<v>/<a>-<v>.jar back to coordinates.
func (r *Repository) coordinatesOf(jar string) (engine.Coordinates, bool) {
	rel, err := filepath.Rel(r.root, jar)
	if err != nil {
		return engine.Coordinates{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 4 {
		return engine.Coordinates{}, false
	}
	n := len(parts)
	c := engine.Coordinates{
		GroupID:    strings.Join(parts[:n-3], "."),
		ArtifactID: parts[n-3],
		Version:    parts[n-2],
	}
	if parts[n-1] != c.JarName() {
		return engine.Coordinates{}, false
	}
	return c, true
}

func (r *Repository) inspect(jar string, coords engine.Coordinates) (engine.CatalogEntry, bool) {
	a, err := archive.Open(jar)
	if err != nil {
		r.logger.Debug().Err(err).Str("path", jar).Msg("Skipping unreadable jar")
		return engine.CatalogEntry{}, false
	}
	defer a.Close()

	loaded, err := a.Descriptor()
	if err != nil {
		return engine.CatalogEntry{}, false
	}

	return engine.CatalogEntry{Coordinates: coords, Description: loaded.Name()}, true
}
