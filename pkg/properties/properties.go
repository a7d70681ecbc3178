// Package properties reads and writes archetype.properties files.
//
// Values are kept literally: "${groupId}" in a value is a template reference
// for later, not something to expand while loading.
package properties

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magiconair/properties"
)

// FileName is the conventional file name.
const FileName = "archetype.properties"

// Well-known keys.
const (
	KeyArchetypeGroupID     = "archetype.groupId"
	KeyArchetypeArtifactID  = "archetype.artifactId"
	KeyArchetypeVersion     = "archetype.version"
	KeyLanguages            = "archetype.languages"
	KeyFilteredExtensions   = "archetype.filteredExtensions"
	KeyEncoding             = "archetype.encoding"
	KeyPartialArchetype     = "archetype.partialArchetype"
	KeyPreserveCRLF         = "archetype.preserveCRLF"
	KeyKeepParent           = "archetype.keepParent"
	KeyExcludePatterns      = "excludePatterns"
	KeyGroupID              = "groupId"
	KeyArtifactID           = "artifactId"
	KeyVersion              = "version"
	KeyPackage              = "package"
	archetypeSettingsPrefix = "archetype."
)

// File is an in-memory archetype.properties.
type File struct {
	props *properties.Properties
}

// New returns an empty file.
func New() *File {
	p := properties.NewProperties()
	p.DisableExpansion = true
	return &File{props: p}
}

// FromMap builds a file from a map.
func FromMap(m map[string]string) *File {
	f := New()
	for k, v := range m {
		f.Set(k, v)
	}
	return f
}

// Parse reads properties from data (UTF-8).
func Parse(data []byte) (*File, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse properties: %w", err)
	}
	return &File{props: p}, nil
}

// Load reads a properties file.
func Load(path string) (*File, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &File{props: p}, nil
}

// Get returns a value.
func (f *File) Get(key string) (string, bool) {
	return f.props.Get(key)
}

// GetString returns a value or def.
func (f *File) GetString(key, def string) string {
	return f.props.GetString(key, def)
}

// GetBool returns a boolean value or def.
func (f *File) GetBool(key string, def bool) bool {
	return f.props.GetBool(key, def)
}

// GetList returns a comma separated value as a trimmed list.
func (f *File) GetList(key string) []string {
	v, ok := f.props.Get(key)
	if !ok {
		return nil
	}
	return SplitList(v)
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Set sets a value.
func (f *File) Set(key, value string) {
	// Expansion is disabled, so Set cannot fail.
	_, _, _ = f.props.Set(key, value)
}

// Delete removes a key.
func (f *File) Delete(key string) {
	f.props.Delete(key)
}

// Keys returns the keys in sorted order.
func (f *File) Keys() []string {
	keys := f.props.Keys()
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (f *File) Len() int {
	return f.props.Len()
}

// Map returns a copy of every entry.
func (f *File) Map() map[string]string {
	return f.props.Map()
}

// ProjectProperties returns the entries used for generation: everything
// except archetype.* settings and excludePatterns.
func (f *File) ProjectProperties() map[string]string {
	out := make(map[string]string)
	for k, v := range f.props.Map() {
		if strings.HasPrefix(k, archetypeSettingsPrefix) || k == KeyExcludePatterns {
			continue
		}
		out[k] = v
	}
	return out
}

// Write writes the entries sorted by key after a comment header.
func (f *File) Write(w io.Writer, header string) error {
	sorted := New()
	for _, k := range f.Keys() {
		v, _ := f.props.Get(k)
		sorted.Set(k, v)
	}
	sorted.props.WriteSeparator = "="

	if header != "" {
		for _, line := range strings.Split(header, "\n") {
			if _, err := fmt.Fprintf(w, "#%s\n", line); err != nil {
				return err
			}
		}
	}
	if _, err := sorted.props.Write(w, properties.UTF8); err != nil {
		return fmt.Errorf("write properties: %w", err)
	}
	return nil
}

// Bytes renders the file.
func (f *File) Bytes(header string) []byte {
	var buf bytes.Buffer
	_ = f.Write(&buf, header)
	return buf.Bytes()
}

// Save writes the file, creating parent directories.
func (f *File) Save(path, header string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, f.Bytes(header), 0o644)
}
