// Package descriptor reads and writes archetype descriptors.
//
// Two formats exist. The fileset descriptor
// (META-INF/maven/archetype-metadata.xml) describes required properties,
// filesets and nested modules. The legacy descriptor
// (META-INF/maven/archetype.xml) lists individual source, resource and site
// files.
package descriptor

import (
	"encoding/xml"
)

// Descriptor locations inside an archetype.
const (
	FilesetPath        = "META-INF/maven/archetype-metadata.xml"
	LegacyPath         = "META-INF/maven/archetype.xml"
	LegacyFallbackPath = "META-INF/archetype.xml"
	PostGenerateScript = "META-INF/archetype-post-generate.star"
	ResourcesDir       = "archetype-resources"
)

// Namespace is written on generated fileset descriptors.
const Namespace = "http://maven.apache.org/plugins/maven-archetype-plugin/archetype-descriptor/1.1.0"

// ArchetypeDescriptor is a fileset descriptor.
type ArchetypeDescriptor struct {
	XMLName xml.Name `xml:"archetype-descriptor"`

	// Xmlns is the document namespace.
	Xmlns string `xml:"xmlns,attr,omitempty"`

	// Name is the archetype name.
	Name string `xml:"name,attr" validate:"required"`

	// Partial marks an archetype that adds to an existing project.
	Partial bool `xml:"partial,attr,omitempty"`

	// RequiredProperties are properties needed before generation.
	RequiredProperties []RequiredProperty `xml:"requiredProperties>requiredProperty" validate:"dive"`

	// FileSets are the root project's filesets.
	FileSets []FileSet `xml:"fileSets>fileSet" validate:"dive"`

	// Modules are nested module descriptors.
	Modules []ModuleDescriptor `xml:"modules>module" validate:"dive"`
}

// RequiredProperty is a property the archetype needs.
type RequiredProperty struct {
	Key             string `xml:"key,attr" validate:"required"`
	DefaultValue    string `xml:"defaultValue,omitempty"`
	ValidationRegex string `xml:"validationRegex,omitempty"`
}

// FileSet selects template files under a directory.
type FileSet struct {
	// Filtered files are merged through the template engine.
	Filtered bool `xml:"filtered,attr"`

	// Packaged files are placed under the package directory.
	Packaged bool `xml:"packaged,attr"`

	// Encoding of filtered files; UTF-8 when empty.
	Encoding string `xml:"encoding,attr,omitempty"`

	// Directory is relative to the module's resource root. Empty means the
	// module root itself.
	Directory string `xml:"directory"`

	Includes []string `xml:"includes>include,omitempty"`
	Excludes []string `xml:"excludes>exclude,omitempty"`
}

// EncodingOrDefault returns the fileset encoding, defaulting to UTF-8.
func (f FileSet) EncodingOrDefault() string {
	if f.Encoding == "" {
		return "UTF-8"
	}
	return f.Encoding
}

// ModuleDescriptor describes a module of a multi-module archetype.
type ModuleDescriptor struct {
	// ID is the module artifactId template.
	ID string `xml:"id,attr"`

	// Dir is the module directory inside archetype-resources; may carry
	// __property__ tokens.
	Dir string `xml:"dir,attr" validate:"required"`

	// Name is a display name.
	Name string `xml:"name,attr,omitempty"`

	FileSets []FileSet         `xml:"fileSets>fileSet" validate:"dive"`
	Modules  []ModuleDescriptor `xml:"modules>module" validate:"dive"`
}

// Property returns the required property with key, if declared.
func (d *ArchetypeDescriptor) Property(key string) (RequiredProperty, bool) {
	for _, p := range d.RequiredProperties {
		if p.Key == key {
			return p, true
		}
	}
	return RequiredProperty{}, false
}

// AllModules returns every module depth first, paired with its directory
// path relative to archetype-resources.
func (d *ArchetypeDescriptor) AllModules() []ModulePath {
	var out []ModulePath
	var walk func(prefix string, mods []ModuleDescriptor)
	walk = func(prefix string, mods []ModuleDescriptor) {
		for _, m := range mods {
			p := m.Dir
			if prefix != "" {
				p = prefix + "/" + m.Dir
			}
			out = append(out, ModulePath{Path: p, Module: m})
			walk(p, m.Modules)
		}
	}
	walk("", d.Modules)
	return out
}

// ModulePath pairs a module with its full template directory.
type ModulePath struct {
	Path   string
	Module ModuleDescriptor
}

// LegacyDescriptor is the archetype.xml format.
type LegacyDescriptor struct {
	XMLName xml.Name `xml:"archetype"`

	// ID is the archetype id.
	ID string `xml:"id" validate:"required"`

	// AllowPartial lets generation run inside an existing project.
	AllowPartial bool `xml:"allowPartial,omitempty"`

	Sources       []LegacyFile `xml:"sources>source"`
	Resources     []LegacyFile `xml:"resources>resource"`
	TestSources   []LegacyFile `xml:"testSources>source"`
	TestResources []LegacyFile `xml:"testResources>resource"`
	SiteResources []LegacyFile `xml:"siteResources>resource"`
}

// LegacyFile is one entry of a legacy descriptor.
type LegacyFile struct {
	Path     string `xml:",chardata"`
	Encoding string `xml:"encoding,attr,omitempty"`
	Filtered string `xml:"filtered,attr,omitempty"`
}

// IsFiltered reports whether the file is filtered; legacy files are
// filtered unless marked otherwise.
func (f LegacyFile) IsFiltered() bool {
	return f.Filtered != "false"
}

// LegacyGroup names the section a legacy file came from.
type LegacyGroup string

// Legacy sections.
const (
	GroupSources       LegacyGroup = "sources"
	GroupResources     LegacyGroup = "resources"
	GroupTestSources   LegacyGroup = "testSources"
	GroupTestResources LegacyGroup = "testResources"
	GroupSiteResources LegacyGroup = "siteResources"
)

// LegacyEntry is a legacy file tagged with its section.
type LegacyEntry struct {
	Group LegacyGroup
	File  LegacyFile
}

// Entries returns every file in declaration order, sources first.
func (d *LegacyDescriptor) Entries() []LegacyEntry {
	var out []LegacyEntry
	add := func(g LegacyGroup, files []LegacyFile) {
		for _, f := range files {
			out = append(out, LegacyEntry{Group: g, File: f})
		}
	}
	add(GroupSources, d.Sources)
	add(GroupResources, d.Resources)
	add(GroupTestSources, d.TestSources)
	add(GroupTestResources, d.TestResources)
	add(GroupSiteResources, d.SiteResources)
	return out
}
