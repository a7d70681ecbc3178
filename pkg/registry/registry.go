// Package registry maintains the archetype.xml registry: the languages,
// filtered extensions, archetype groups and repositories used as defaults
// when creating and selecting archetypes.
package registry

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the conventional registry file name.
const FileName = "archetype.xml"

// Registry is the archetype-registry document.
type Registry struct {
	XMLName               xml.Name     `xml:"archetype-registry"`
	Languages             []string     `xml:"languages>language"`
	FilteredExtensions    []string     `xml:"filteredExtensions>filteredExtension"`
	ArchetypeGroups       []string     `xml:"archetypeGroups>archetypeGroup"`
	ArchetypeRepositories []Repository `xml:"archetypeRepositories>archetypeRepository"`
}

// Repository is a named archetype repository.
type Repository struct {
	ID  string `xml:"id"`
	URL string `xml:"url"`
}

// ParseRepository parses "id=url"; a bare URL is its own id.
func ParseRepository(s string) Repository {
	s = strings.TrimSpace(s)
	if id, url, ok := strings.Cut(s, "="); ok {
		return Repository{ID: strings.TrimSpace(id), URL: strings.TrimSpace(url)}
	}
	return Repository{ID: s, URL: s}
}

func (r Repository) String() string {
	if r.ID == r.URL {
		return r.URL
	}
	return r.ID + "=" + r.URL
}

// Default returns the registry used when no file exists.
func Default() *Registry {
	return &Registry{
		Languages: []string{"java", "groovy", "csharp", "aspectj", "kotlin", "scala"},
		FilteredExtensions: []string{
			"java", "xml", "txt", "groovy", "cs", "mdo", "aj", "jsp", "gsp", "vm",
			"html", "xhtml", "properties", "kt", "scala", "yaml", "yml", "json", "md",
		},
		ArchetypeGroups: []string{"org.apache.maven.archetypes"},
	}
}

// DefaultPath returns ~/.m2/archetype.xml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".m2", FileName)
	}
	return filepath.Join(home, ".m2", FileName)
}

// Load reads a registry file; a missing file yields the default registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	var r Registry
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	r.Languages = trimAll(r.Languages)
	r.FilteredExtensions = trimAll(r.FilteredExtensions)
	r.ArchetypeGroups = trimAll(r.ArchetypeGroups)
	return &r, nil
}

func trimAll(items []string) []string {
	out := items[:0]
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Bytes renders the registry as indented XML.
func (r *Registry) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode registry: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Save writes the registry through a temporary file in the same directory.
func (r *Registry) Save(path string) error {
	data, err := r.Bytes()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".registry-*")
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

// add appends the items not yet present, keeping order. It returns the
// items that were added.
func add(list *[]string, items []string) []string {
	var added []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || contains(*list, item) {
			continue
		}
		*list = append(*list, item)
		added = append(added, item)
	}
	return added
}

// remove drops the items present, keeping the order of the rest. It returns
// the items that were removed.
func remove(list *[]string, items []string) []string {
	var removed []string
	out := (*list)[:0]
	for _, existing := range *list {
		if contains(items, existing) {
			removed = append(removed, existing)
			continue
		}
		out = append(out, existing)
	}
	*list = out
	return removed
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// AddGroups adds archetype groups.
func (r *Registry) AddGroups(groups ...string) []string { return add(&r.ArchetypeGroups, groups) }

// RemoveGroups removes archetype groups.
func (r *Registry) RemoveGroups(groups ...string) []string {
	return remove(&r.ArchetypeGroups, groups)
}

// AddLanguages adds languages.
func (r *Registry) AddLanguages(langs ...string) []string { return add(&r.Languages, langs) }

// RemoveLanguages removes languages.
func (r *Registry) RemoveLanguages(langs ...string) []string { return remove(&r.Languages, langs) }

// AddExtensions adds filtered extensions. A leading dot is ignored.
func (r *Registry) AddExtensions(exts ...string) []string {
	return add(&r.FilteredExtensions, trimDots(exts))
}

// RemoveExtensions removes filtered extensions.
func (r *Registry) RemoveExtensions(exts ...string) []string {
	return remove(&r.FilteredExtensions, trimDots(exts))
}

func trimDots(exts []string) []string {
	out := make([]string, len(exts))
	for i, e := range exts {
		out[i] = strings.TrimPrefix(strings.TrimSpace(e), ".")
	}
	return out
}

// AddRepositories adds repositories; one whose id is already known is left
// as it is.
func (r *Registry) AddRepositories(repos ...Repository) []Repository {
	var added []Repository
	for _, repo := range repos {
		if repo.ID == "" || r.hasRepository(repo.ID) {
			continue
		}
		r.ArchetypeRepositories = append(r.ArchetypeRepositories, repo)
		added = append(added, repo)
	}
	return added
}

func (r *Registry) hasRepository(id string) bool {
	for _, existing := range r.ArchetypeRepositories {
		if existing.ID == id {
			return true
		}
	}
	return false
}

// RemoveRepositories removes repositories by id or URL.
func (r *Registry) RemoveRepositories(keys ...string) []Repository {
	var removed []Repository
	out := r.ArchetypeRepositories[:0]
	for _, repo := range r.ArchetypeRepositories {
		if contains(keys, repo.ID) || contains(keys, repo.URL) {
			removed = append(removed, repo)
			continue
		}
		out = append(out, repo)
	}
	r.ArchetypeRepositories = out
	return removed
}

// Operation is a named registry maintenance operation.
type Operation string

const (
	OpAddGroups          Operation = "add-groups"
	OpRemoveGroups       Operation = "remove-groups"
	OpAddLanguages       Operation = "add-languages"
	OpRemoveLanguages    Operation = "remove-languages"
	OpAddExtensions      Operation = "add-extensions"
	OpRemoveExtensions   Operation = "remove-extensions"
	OpAddRepositories    Operation = "add-repositories"
	OpRemoveRepositories Operation = "remove-repositories"
)

// Operations lists every maintenance operation.
var Operations = []Operation{
	OpAddGroups, OpRemoveGroups,
	OpAddLanguages, OpRemoveLanguages,
	OpAddExtensions, OpRemoveExtensions,
	OpAddRepositories, OpRemoveRepositories,
}

// Apply runs op with args and returns the entries that changed.
func (r *Registry) Apply(op Operation, args []string) ([]string, error) {
	switch op {
	case OpAddGroups:
		return r.AddGroups(args...), nil
	case OpRemoveGroups:
		return r.RemoveGroups(args...), nil
	case OpAddLanguages:
		return r.AddLanguages(args...), nil
	case OpRemoveLanguages:
		return r.RemoveLanguages(args...), nil
	case OpAddExtensions:
		return r.AddExtensions(args...), nil
	case OpRemoveExtensions:
		return r.RemoveExtensions(args...), nil
	case OpAddRepositories:
		repos := make([]Repository, 0, len(args))
		for _, a := range args {
			repos = append(repos, ParseRepository(a))
		}
		return repoStrings(r.AddRepositories(repos...)), nil
	case OpRemoveRepositories:
		return repoStrings(r.RemoveRepositories(args...)), nil
	default:
		return nil, fmt.Errorf("unknown registry operation %q", op)
	}
}

func repoStrings(repos []Repository) []string {
	out := make([]string, len(repos))
	for i, r := range repos {
		out[i] = r.String()
	}
	return out
}

// Update loads the registry at path, applies op and saves it when anything
// changed.
func Update(path string, op Operation, args []string) ([]string, error) {
	r, err := Load(path)
	if err != nil {
		return nil, err
	}
	changed, err := r.Apply(op, args)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, nil
	}
	if err := r.Save(path); err != nil {
		return nil, fmt.Errorf("save registry: %w", err)
	}
	return changed, nil
}
