// Package pom reads project object model files and edits them in place.
//
// Edits work on the original text: the decoder locates elements by byte
// offset and only the affected region is rewritten, so comments, ordering
// and formatting elsewhere in the file survive.
package pom

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/openfroyo/archetype/pkg/engine"
)

// FileName is the conventional POM file name.
const FileName = "pom.xml"

// Project is the subset of a POM the archetype tooling reads.
type Project struct {
	XMLName      xml.Name     `xml:"project"`
	ModelVersion string       `xml:"modelVersion"`
	Parent       *Parent      `xml:"parent"`
	GroupID      string       `xml:"groupId"`
	ArtifactID   string       `xml:"artifactId"`
	Version      string       `xml:"version"`
	Packaging    string       `xml:"packaging"`
	Name         string       `xml:"name"`
	Description  string       `xml:"description"`
	Modules      []string     `xml:"modules>module"`
	Properties   Properties   `xml:"properties"`
	Dependencies []Dependency `xml:"dependencies>dependency"`
	Build        *Build       `xml:"build"`
}

// Parent is the <parent> element.
type Parent struct {
	GroupID      string `xml:"groupId"`
	ArtifactID   string `xml:"artifactId"`
	Version      string `xml:"version"`
	RelativePath string `xml:"relativePath"`
}

// Dependency is a <dependency> element.
type Dependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Type       string `xml:"type"`
	Classifier string `xml:"classifier"`
	Scope      string `xml:"scope"`
}

// Key identifies a dependency regardless of version and scope.
func (d Dependency) Key() string {
	typ := strings.TrimSpace(d.Type)
	if typ == "" {
		typ = "jar"
	}
	return strings.Join([]string{strings.TrimSpace(d.GroupID), strings.TrimSpace(d.ArtifactID), typ, strings.TrimSpace(d.Classifier)}, ":")
}

// Build is the <build> element.
type Build struct {
	Plugins []Plugin `xml:"plugins>plugin"`
}

// Plugin is a build <plugin> element.
type Plugin struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// Key identifies a plugin; the group defaults to org.apache.maven.plugins.
func (p Plugin) Key() string {
	g := strings.TrimSpace(p.GroupID)
	if g == "" {
		g = "org.apache.maven.plugins"
	}
	return g + ":" + strings.TrimSpace(p.ArtifactID)
}

// Property is one entry of <properties>.
type Property struct {
	Name  string
	Value string
}

// Properties keeps <properties> entries in document order.
type Properties []Property

// UnmarshalXML reads arbitrary child elements as name/value pairs.
func (p *Properties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var value string
			if err := d.DecodeElement(&value, &t); err != nil {
				return err
			}
			*p = append(*p, Property{Name: t.Name.Local, Value: strings.TrimSpace(value)})
		case xml.EndElement:
			return nil
		}
	}
}

// Get returns a property value.
func (p Properties) Get(name string) (string, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return "", false
}

// Parse decodes a POM.
func Parse(data []byte) (*Project, error) {
	var p Project
	dec := newDecoder(data)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse pom: %w", err)
	}
	p.GroupID = strings.TrimSpace(p.GroupID)
	p.ArtifactID = strings.TrimSpace(p.ArtifactID)
	p.Version = strings.TrimSpace(p.Version)
	p.Packaging = strings.TrimSpace(p.Packaging)
	for i := range p.Modules {
		p.Modules[i] = strings.TrimSpace(p.Modules[i])
	}
	return &p, nil
}

// ReadFile reads and decodes a POM file.
func ReadFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// newDecoder returns a decoder that leaves the byte stream untouched
// whatever the declared encoding, so offsets match the input.
func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) {
		return r, nil
	}
	return dec
}

// EffectiveGroupID returns the groupId, falling back to the parent's.
func (p *Project) EffectiveGroupID() string {
	if p.GroupID == "" && p.Parent != nil {
		return strings.TrimSpace(p.Parent.GroupID)
	}
	return p.GroupID
}

// EffectiveVersion returns the version, falling back to the parent's.
func (p *Project) EffectiveVersion() string {
	if p.Version == "" && p.Parent != nil {
		return strings.TrimSpace(p.Parent.Version)
	}
	return p.Version
}

// EffectivePackaging returns the packaging, "jar" when unset.
func (p *Project) EffectivePackaging() string {
	if p.Packaging == "" {
		return "jar"
	}
	return p.Packaging
}

// Coordinates returns the project's effective coordinates.
func (p *Project) Coordinates() engine.Coordinates {
	return engine.Coordinates{
		GroupID:    p.EffectiveGroupID(),
		ArtifactID: p.ArtifactID,
		Version:    p.EffectiveVersion(),
	}
}

// HasModule reports whether module is listed in <modules>.
func (p *Project) HasModule(module string) bool {
	for _, m := range p.Modules {
		if m == module {
			return true
		}
	}
	return false
}
