// Package catalog reads and writes archetype-catalog.xml files and resolves
// the catalog sources a generation may search.
package catalog

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/openfroyo/archetype/pkg/engine"
)

// FileName is the conventional catalog file name.
const FileName = "archetype-catalog.xml"

// Namespace is the catalog XML namespace.
const Namespace = "http://maven.apache.org/plugins/maven-archetype-plugin/archetype-catalog/1.0.0"

// Catalog is the archetype-catalog.xml document.
type Catalog struct {
	XMLName    xml.Name `xml:"archetype-catalog"`
	Xmlns      string   `xml:"xmlns,attr,omitempty"`
	Archetypes []Entry  `xml:"archetypes>archetype"`
}

// Entry is one catalog element.
type Entry struct {
	GroupID     string `xml:"groupId"`
	ArtifactID  string `xml:"artifactId"`
	Version     string `xml:"version"`
	Repository  string `xml:"repository,omitempty"`
	Description string `xml:"description,omitempty"`
}

func (e Entry) toEngine() engine.CatalogEntry {
	return engine.CatalogEntry{
		Coordinates: engine.Coordinates{
			GroupID:    strings.TrimSpace(e.GroupID),
			ArtifactID: strings.TrimSpace(e.ArtifactID),
			Version:    strings.TrimSpace(e.Version),
		},
		Repository:  strings.TrimSpace(e.Repository),
		Description: strings.TrimSpace(e.Description),
	}
}

func fromEngine(e engine.CatalogEntry) Entry {
	return Entry{
		GroupID:     e.GroupID,
		ArtifactID:  e.ArtifactID,
		Version:     e.Version,
		Repository:  e.Repository,
		Description: e.Description,
	}
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := xml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

// Read loads a catalog file. A missing file is an empty catalog.
func Read(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Catalog{}, nil
	}
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Entries returns the catalog content.
func (c *Catalog) Entries() []engine.CatalogEntry {
	out := make([]engine.CatalogEntry, 0, len(c.Archetypes))
	for _, e := range c.Archetypes {
		out = append(out, e.toEngine())
	}
	return out
}

// Add inserts an entry, replacing one with the same coordinates. It reports
// whether the entry was new.
func (c *Catalog) Add(e engine.CatalogEntry) bool {
	for i, existing := range c.Archetypes {
		if existing.toEngine().Coordinates == e.Coordinates {
			c.Archetypes[i] = fromEngine(e)
			return false
		}
	}
	c.Archetypes = append(c.Archetypes, fromEngine(e))
	return true
}

// Bytes renders the catalog as indented XML.
func (c *Catalog) Bytes() ([]byte, error) {
	out := *c
	out.Xmlns = Namespace
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Save writes the catalog to path through a temporary file.
func (c *Catalog) Save(path string) error {
	data, err := c.Bytes()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalog-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Find returns the entry with exactly these coordinates.
func Find(entries []engine.CatalogEntry, coords engine.Coordinates) (engine.CatalogEntry, bool) {
	for _, e := range entries {
		if e.Coordinates == coords {
			return e, true
		}
	}
	return engine.CatalogEntry{}, false
}

// FindByArtifactID returns every entry with the artifactId, any group.
func FindByArtifactID(entries []engine.CatalogEntry, artifactID string) []engine.CatalogEntry {
	var out []engine.CatalogEntry
	for _, e := range entries {
		if e.ArtifactID == artifactID {
			out = append(out, e)
		}
	}
	return out
}

// Filter keeps entries matching text. "g:a" matches groupId and artifactId
// separately; otherwise text is searched in "groupId:artifactId". Matching
// ignores case; an empty filter keeps everything.
func Filter(entries []engine.CatalogEntry, text string) []engine.CatalogEntry {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return entries
	}
	group, artifact, split := strings.Cut(text, ":")

	var out []engine.CatalogEntry
	for _, e := range entries {
		g, a := strings.ToLower(e.GroupID), strings.ToLower(e.ArtifactID)
		var ok bool
		if split {
			ok = strings.Contains(g, group) && strings.Contains(a, artifact)
		} else {
			ok = strings.Contains(g+":"+a, text)
		}
		if ok {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the highest version listed for groupId:artifactId. An empty
// groupId matches any group.
func Latest(entries []engine.CatalogEntry, groupID, artifactID string) (engine.CatalogEntry, bool) {
	var (
		best  engine.CatalogEntry
		found bool
	)
	for _, e := range entries {
		if e.ArtifactID != artifactID || (groupID != "" && e.GroupID != groupID) {
			continue
		}
		if !found || CompareVersions(e.Version, best.Version) > 0 {
			best, found = e, true
		}
	}
	return best, found
}

// Versions returns the distinct versions of groupId:artifactId, lowest first.
func Versions(entries []engine.CatalogEntry, groupID, artifactID string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if e.GroupID == groupID && e.ArtifactID == artifactID && !seen[e.Version] {
			seen[e.Version] = true
			out = append(out, e.Version)
		}
	}
	SortVersions(out)
	return out
}

// CompareVersions orders versions semantically: "1.10" after "1.9" and
// "1.0-SNAPSHOT" before "1.0". Unparsable versions compare as strings and
// sort before parsable ones.
func CompareVersions(a, b string) int {
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA != nil && errB == nil:
		return -1
	case errA == nil && errB != nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortVersions sorts versions in place, lowest first.
func SortVersions(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) < 0
	})
}

// Sort orders entries by groupId, artifactId and version.
func Sort(entries []engine.CatalogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.GroupID != b.GroupID {
			return a.GroupID < b.GroupID
		}
		if a.ArtifactID != b.ArtifactID {
			return a.ArtifactID < b.ArtifactID
		}
		return CompareVersions(a.Version, b.Version) < 0
	})
}
