package engine

import (
	"path"
	"sort"
	"strings"
	"time"
)

// Coordinates identify an artifact in a repository.
type Coordinates struct {
	// GroupID is the dotted group identifier (e.g., "org.apache.maven.archetypes").
	GroupID string `json:"groupId" validate:"required"`

	// ArtifactID is the artifact identifier (e.g., "maven-archetype-quickstart").
	ArtifactID string `json:"artifactId" validate:"required"`

	// Version is the artifact version (e.g., "1.4").
	Version string `json:"version" validate:"required"`
}

// String returns the "groupId:artifactId:version" form.
func (c Coordinates) String() string {
	return c.GroupID + ":" + c.ArtifactID + ":" + c.Version
}

// IsComplete reports whether all three parts are set.
func (c Coordinates) IsComplete() bool {
	return c.GroupID != "" && c.ArtifactID != "" && c.Version != ""
}

// IsEmpty reports whether no part is set.
func (c Coordinates) IsEmpty() bool {
	return c.GroupID == "" && c.ArtifactID == "" && c.Version == ""
}

// Path returns the directory of the artifact relative to a repository root,
// in slash form (e.g., "org/apache/maven/archetypes/quickstart/1.4").
func (c Coordinates) Path() string {
	return path.Join(strings.ReplaceAll(c.GroupID, ".", "/"), c.ArtifactID, c.Version)
}

// JarName returns "<artifactId>-<version>.jar".
func (c Coordinates) JarName() string {
	return c.ArtifactID + "-" + c.Version + ".jar"
}

// ParseCoordinates parses "g:a:v", "g:a" or "a".
func ParseCoordinates(s string) Coordinates {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch len(parts) {
	case 1:
		return Coordinates{ArtifactID: parts[0]}
	case 2:
		return Coordinates{GroupID: parts[0], ArtifactID: parts[1]}
	default:
		return Coordinates{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}
	}
}

// ArchetypeDefinition is the archetype a selector settled on.
type ArchetypeDefinition struct {
	Coordinates

	// Repository is the repository the archetype was listed in, if any.
	Repository string `json:"repository,omitempty"`

	// Description is the catalog description.
	Description string `json:"description,omitempty"`

	// File is the resolved archetype location (jar or directory).
	File string `json:"file,omitempty"`
}

// Well-known property keys.
const (
	PropGroupID             = "groupId"
	PropArtifactID          = "artifactId"
	PropVersion             = "version"
	PropPackage             = "package"
	PropRootArtifactID      = "rootArtifactId"
	PropPackageInPathFormat = "packageInPathFormat"
	PropParentArtifactID    = "parentArtifactId"
)

// DefaultVersion is offered when no version is given.
const DefaultVersion = "1.0-SNAPSHOT"

// GenerationRequest holds everything needed to generate a project.
type GenerationRequest struct {
	// Archetype identifies the archetype; may be partial before selection.
	Archetype Coordinates `json:"archetype"`

	// ArchetypeRepository is an optional repository hint.
	ArchetypeRepository string `json:"archetypeRepository,omitempty"`

	// ArchetypeFile is an explicit archetype jar or directory.
	ArchetypeFile string `json:"archetypeFile,omitempty"`

	// GroupID of the project to generate.
	GroupID string `json:"groupId,omitempty"`

	// ArtifactID of the project to generate.
	ArtifactID string `json:"artifactId,omitempty"`

	// Version of the project to generate.
	Version string `json:"version,omitempty"`

	// Package is the base Java package.
	Package string `json:"package,omitempty"`

	// Properties are additional template properties.
	Properties map[string]string `json:"properties,omitempty"`

	// OutputDirectory is the base directory the project is generated into.
	OutputDirectory string `json:"outputDirectory" validate:"required"`

	// Interactive enables prompts for anything missing.
	Interactive bool `json:"interactive"`

	// Filter narrows the interactive archetype list.
	Filter string `json:"filter,omitempty"`

	// Catalogs lists catalog sources ("internal", "local", paths).
	Catalogs []string `json:"catalogs,omitempty"`

	// LocalRepository is the local artifact repository root.
	LocalRepository string `json:"localRepository,omitempty"`
}

// GenerationResult describes a finished generation.
type GenerationResult struct {
	// RunID identifies the generation in the history store.
	RunID string `json:"runId"`

	// Archetype is the archetype that was used.
	Archetype ArchetypeDefinition `json:"archetype"`

	// ProjectDirectory is the generated project root.
	ProjectDirectory string `json:"projectDirectory"`

	// Files are the written files, relative to ProjectDirectory.
	Files []string `json:"files"`

	// Skipped are files left untouched because they already existed.
	Skipped []string `json:"skipped,omitempty"`

	// MergedPoms are POM files that were merged rather than written.
	MergedPoms []string `json:"mergedPoms,omitempty"`

	// Configuration holds the resolved properties the project was made with.
	Configuration *Configuration `json:"-"`

	// Duration is the wall time of the generation.
	Duration time.Duration `json:"duration"`
}

// CreationRequest holds everything needed to create an archetype from a project.
type CreationRequest struct {
	// ProjectDirectory is the root of the source project.
	ProjectDirectory string `json:"projectDirectory" validate:"required"`

	// OutputDirectory receives the archetype project; defaults to
	// target/generated-sources/archetype below ProjectDirectory.
	OutputDirectory string `json:"outputDirectory,omitempty"`

	// Archetype are the coordinates of the archetype to create; derived
	// from the project when empty.
	Archetype Coordinates `json:"archetype"`

	// PackageName overrides package detection.
	PackageName string `json:"packageName,omitempty"`

	// Properties are additional properties whose values are turned into
	// ${key} references in filtered content.
	Properties map[string]string `json:"properties,omitempty"`

	// Languages are source directory names treated as packaged languages.
	Languages []string `json:"languages,omitempty"`

	// FilteredExtensions are extensions of files that get filtered.
	FilteredExtensions []string `json:"filteredExtensions,omitempty"`

	// ExcludePatterns are extra Ant-style patterns to leave out.
	ExcludePatterns []string `json:"excludePatterns,omitempty"`

	// DefaultEncoding is the encoding assumed for filtered files.
	DefaultEncoding string `json:"defaultEncoding,omitempty"`

	// Partial marks the archetype as partial.
	Partial bool `json:"partial"`

	// PreserveCRLF keeps Windows line endings in filtered files.
	PreserveCRLF bool `json:"preserveCRLF"`

	// KeepParent keeps the <parent> of the root POM.
	KeepParent bool `json:"keepParent"`
}

// CreationResult describes a created archetype.
type CreationResult struct {
	// Archetype are the coordinates of the created archetype.
	Archetype Coordinates `json:"archetype"`

	// ArchetypeDirectory is the root of the archetype project.
	ArchetypeDirectory string `json:"archetypeDirectory"`

	// DescriptorPath is the written archetype-metadata.xml.
	DescriptorPath string `json:"descriptorPath"`

	// ResourceCount is the number of template files written.
	ResourceCount int `json:"resourceCount"`

	// Modules are the module directories found in the project.
	Modules []string `json:"modules,omitempty"`

	// Properties are the properties that were reverse substituted.
	Properties map[string]string `json:"properties"`
}

// Configuration is a resolved, ordered property set.
type Configuration struct {
	// Keys lists property keys in resolution order.
	Keys []string

	// Values maps keys to resolved values.
	Values map[string]string
}

// NewConfiguration creates an empty configuration.
func NewConfiguration() *Configuration {
	return &Configuration{Values: make(map[string]string)}
}

// Set sets a value, remembering first-seen order.
func (c *Configuration) Set(key, value string) {
	if _, ok := c.Values[key]; !ok {
		c.Keys = append(c.Keys, key)
	}
	c.Values[key] = value
}

// Get returns a value and whether it is set.
func (c *Configuration) Get(key string) (string, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// Value returns a value or "".
func (c *Configuration) Value(key string) string {
	return c.Values[key]
}

// SortedKeys returns keys in lexical order.
func (c *Configuration) SortedKeys() []string {
	keys := append([]string(nil), c.Keys...)
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the values.
func (c *Configuration) Map() map[string]string {
	m := make(map[string]string, len(c.Values))
	for k, v := range c.Values {
		m[k] = v
	}
	return m
}
