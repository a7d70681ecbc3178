// Package archive opens archetypes packaged as jars or laid out as
// directories, and packages archetype projects into jars.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/properties"
)

// ProjectResourcesDir is where an archetype project keeps the archetype itself.
const ProjectResourcesDir = "src/main/resources"

// Archetype is an opened archetype. It is an fs.FS rooted at the archetype
// content (the directory holding META-INF and archetype-resources).
type Archetype struct {
	fs.FS

	path   string
	isDir  bool
	closer io.Closer
}

// Open opens a jar or zip file, an exploded archetype directory, or an
// archetype project directory (whose src/main/resources holds the archetype).
func Open(p string) (*Archetype, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("open archetype: %w", err)
	}

	if info.IsDir() {
		root := p
		if isArchetypeProject(p) {
			root = filepath.Join(p, filepath.FromSlash(ProjectResourcesDir))
		}
		return &Archetype{FS: os.DirFS(root), path: p, isDir: true}, nil
	}

	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open archetype %s: %w", p, err)
	}
	return &Archetype{FS: &rc.Reader, path: p, closer: rc}, nil
}

func isArchetypeProject(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(ProjectResourcesDir), "META-INF", "maven"))
	return err == nil
}

// Path returns the location the archetype was opened from.
func (a *Archetype) Path() string {
	return a.path
}

// IsDir reports whether the archetype is a directory.
func (a *Archetype) IsDir() bool {
	return a.isDir
}

// Close releases the underlying file.
func (a *Archetype) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Descriptor loads the archetype descriptor.
func (a *Archetype) Descriptor() (*descriptor.Loaded, error) {
	d, err := descriptor.Load(a.FS)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.path, err)
	}
	return d, nil
}

// Resources returns the archetype-resources tree.
func (a *Archetype) Resources() (fs.FS, error) {
	return fs.Sub(a.FS, descriptor.ResourcesDir)
}

// HasFile reports whether name exists as a regular file.
func (a *Archetype) HasFile(name string) bool {
	info, err := fs.Stat(a.FS, name)
	return err == nil && !info.IsDir()
}

// ReadFile reads a file from the archetype.
func (a *Archetype) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(a.FS, name)
}

// List returns every regular file below dir, sorted.
func (a *Archetype) List(dir string) ([]string, error) {
	var out []string
	err := fs.WalkDir(a.FS, dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			out = append(out, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

const manifest = "Manifest-Version: 1.0\r\nCreated-By: archetype\r\n\r\n"

// WriteJar packages the archetype project at projectDir into dest. The jar
// holds src/main/resources plus a manifest and the Maven metadata for coords.
func WriteJar(ctx context.Context, projectDir string, coords engine.Coordinates, dest string) (int, error) {
	resources := filepath.Join(projectDir, filepath.FromSlash(ProjectResourcesDir))
	if _, err := os.Stat(resources); err != nil {
		return 0, fmt.Errorf("archetype project %s: %w", projectDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".jar-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	count, err := writeJar(ctx, tmp, resources, projectDir, coords)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, err
	}
	return count, nil
}

func writeJar(ctx context.Context, w io.Writer, resources, projectDir string, coords engine.Coordinates) (int, error) {
	zw := zip.NewWriter(w)
	now := time.Now()

	add := func(name string, data []byte, modified time.Time) error {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		_, err = fw.Write(data)
		return err
	}

	if err := add("META-INF/MANIFEST.MF", []byte(manifest), now); err != nil {
		return 0, err
	}

	fsys := os.DirFS(resources)
	count := 0
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if name == "." || !d.Type().IsRegular() {
			return nil
		}
		if name == "META-INF/MANIFEST.MF" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		count++
		return add(name, data, info.ModTime())
	})
	if err != nil {
		return 0, err
	}

	// Maven metadata so the jar can be identified once installed.
	meta := path.Join("META-INF/maven", coords.GroupID, coords.ArtifactID)
	props := properties.New()
	props.Set("groupId", coords.GroupID)
	props.Set("artifactId", coords.ArtifactID)
	props.Set("version", coords.Version)
	if err := add(meta+"/pom.properties", props.Bytes("Generated by archetype jar"), now); err != nil {
		return 0, err
	}
	if pomData, err := os.ReadFile(filepath.Join(projectDir, "pom.xml")); err == nil {
		if err := add(meta+"/pom.xml", pomData, now); err != nil {
			return 0, err
		}
	}

	if err := zw.Close(); err != nil {
		return 0, err
	}
	return count, nil
}

// ReadPomProperties returns the coordinates recorded under META-INF/maven,
// if the archetype carries exactly one pom.properties.
func ReadPomProperties(fsys fs.FS) (engine.Coordinates, bool) {
	matches, err := fs.Glob(fsys, "META-INF/maven/*/*/pom.properties")
	if err != nil || len(matches) != 1 {
		return engine.Coordinates{}, false
	}
	data, err := fs.ReadFile(fsys, matches[0])
	if err != nil {
		return engine.Coordinates{}, false
	}
	p, err := properties.Parse(data)
	if err != nil {
		return engine.Coordinates{}, false
	}
	c := engine.Coordinates{
		GroupID:    strings.TrimSpace(p.GetString("groupId", "")),
		ArtifactID: strings.TrimSpace(p.GetString("artifactId", "")),
		Version:    strings.TrimSpace(p.GetString("version", "")),
	}
	return c, c.IsComplete()
}
