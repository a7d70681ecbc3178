package pom

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openfroyo/archetype/pkg/engine"
)

// element is the location of one element in a document.
type element struct {
	path        string
	start       int // '<' of the start tag
	openEnd     int // just past the start tag
	closeStart  int // '<' of the end tag
	end         int // just past the end tag
	selfClosing bool
}

func (e element) inner(data []byte) string {
	return string(data[e.openEnd:e.closeStart])
}

// scan locates every element, keyed by slash-joined path ("project/modules").
func scan(data []byte) ([]element, error) {
	dec := newDecoder(data)
	var (
		all   []element
		stack []int
		names []string
	)
	for {
		before := int(dec.InputOffset())
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse pom: %w", err)
		}
		after := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			names = append(names, t.Name.Local)
			el := element{path: strings.Join(names, "/"), start: before, openEnd: after}
			el.selfClosing = after >= 2 && data[after-2] == '/'
			all = append(all, el)
			stack = append(stack, len(all)-1)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("parse pom: unbalanced end element %s", t.Name.Local)
			}
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			names = names[:len(names)-1]
			if all[i].selfClosing {
				all[i].closeStart, all[i].end = all[i].openEnd, all[i].openEnd
			} else {
				all[i].closeStart, all[i].end = before, after
			}
		}
	}
	return all, nil
}

func find(all []element, path string) (element, bool) {
	for _, e := range all {
		if e.path == path {
			return e, true
		}
	}
	return element{}, false
}

func findAll(all []element, path string) []element {
	var out []element
	for _, e := range all {
		if e.path == path {
			out = append(out, e)
		}
	}
	return out
}

// lineIndent returns the whitespace between the start of pos's line and pos,
// and whether only whitespace precedes pos on that line.
func lineIndent(data []byte, pos int) (string, bool) {
	i := pos
	for i > 0 && (data[i-1] == ' ' || data[i-1] == '\t') {
		i--
	}
	return string(data[i:pos]), i == 0 || data[i-1] == '\n'
}

// indentUnit guesses the document's indentation step from the first child
// of the root element.
func indentUnit(data []byte, all []element) string {
	for _, e := range all {
		if strings.Count(e.path, "/") == 1 {
			if indent, alone := lineIndent(data, e.start); alone && indent != "" {
				return indent
			}
			break
		}
	}
	return "  "
}

// snippet returns an element's text with its own line indentation removed
// from every continuation line.
func snippet(data []byte, e element) string {
	indent, _ := lineIndent(data, e.start)
	lines := strings.Split(string(data[e.start:e.end]), "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = strings.TrimPrefix(lines[i], indent)
	}
	return strings.Join(lines, "\n")
}

func indentLines(s, indent string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = indent + l
		}
	}
	return strings.Join(lines, "\n")
}

func splice(data []byte, from, to int, text string) []byte {
	out := make([]byte, 0, len(data)-(to-from)+len(text))
	out = append(out, data[:from]...)
	out = append(out, text...)
	out = append(out, data[to:]...)
	return out
}

// appendChildren adds children at the end of the element at path, creating
// the missing part of the path inside its deepest existing ancestor.
// Children are dedented snippets.
func appendChildren(data []byte, path []string, children []string) ([]byte, error) {
	if len(children) == 0 {
		return data, nil
	}
	all, err := scan(data)
	if err != nil {
		return nil, err
	}
	unit := indentUnit(data, all)

	k := len(path)
	var container element
	for ; k > 0; k-- {
		if e, ok := find(all, strings.Join(path[:k], "/")); ok {
			container = e
			break
		}
	}
	if k == 0 {
		return nil, fmt.Errorf("pom has no <%s> element", path[0])
	}

	// Wrap the children in the missing elements, innermost first.
	for i := len(path) - 1; i >= k; i-- {
		body := indentLines(strings.Join(children, "\n"), unit)
		children = []string{"<" + path[i] + ">\n" + body + "\n</" + path[i] + ">"}
	}

	indent, _ := lineIndent(data, container.start)
	childIndent := indent + unit
	body := indentLines(strings.Join(children, "\n"), childIndent)

	if container.selfClosing {
		name := path[k-1]
		text := "<" + name + ">\n" + body + "\n" + indent + "</" + name + ">"
		return splice(data, container.start, container.end, text), nil
	}

	closeIndent, alone := lineIndent(data, container.closeStart)
	if alone {
		lineStart := container.closeStart - len(closeIndent)
		return splice(data, lineStart, lineStart, body+"\n"), nil
	}
	return splice(data, container.closeStart, container.closeStart, "\n"+body+"\n"+indent), nil
}

// AddModule adds module to the <modules> of a parent POM. It reports whether
// the document changed; a module already listed leaves it untouched. The
// parent must have packaging "pom".
func AddModule(data []byte, module string) ([]byte, bool, error) {
	p, err := Parse(data)
	if err != nil {
		return nil, false, err
	}
	if p.Packaging != "pom" {
		return nil, false, engine.NewError(engine.KindInvalidPackaging,
			fmt.Sprintf("unable to add module %s: parent packaging is %q, expected \"pom\"", module, p.EffectivePackaging()), nil).
			WithDetail("artifactId", p.ArtifactID)
	}
	if p.HasModule(module) {
		return data, false, nil
	}
	out, err := appendChildren(data, []string{"project", "modules"}, []string{"<module>" + module + "</module>"})
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// SetParent adds or replaces the <parent> element.
func SetParent(data []byte, parent engine.Coordinates) ([]byte, error) {
	all, err := scan(data)
	if err != nil {
		return nil, err
	}
	unit := indentUnit(data, all)
	block := "<parent>\n" + indentLines(fmt.Sprintf("<groupId>%s</groupId>\n<artifactId>%s</artifactId>\n<version>%s</version>",
		parent.GroupID, parent.ArtifactID, parent.Version), unit) + "\n</parent>"

	if existing, ok := find(all, "project/parent"); ok {
		indent, _ := lineIndent(data, existing.start)
		return splice(data, existing.start, existing.end, indentLines(block, indent)[len(indent):]), nil
	}

	// Place a new parent right after <modelVersion>, or first in <project>.
	at := -1
	if mv, ok := find(all, "project/modelVersion"); ok {
		at = mv.end
	} else if root, ok := find(all, "project"); ok && !root.selfClosing {
		at = root.openEnd
	}
	if at < 0 {
		return nil, errors.New("pom has no <project> element")
	}
	return splice(data, at, at, "\n"+indentLines(block, unit)), nil
}

// SetText replaces the text of the first element at path. It reports
// whether the element exists.
func SetText(data []byte, path, value string) ([]byte, bool, error) {
	all, err := scan(data)
	if err != nil {
		return nil, false, err
	}
	e, ok := find(all, path)
	if !ok {
		return data, false, nil
	}
	if e.selfClosing {
		name := path[strings.LastIndex(path, "/")+1:]
		return splice(data, e.start, e.end, "<"+name+">"+value+"</"+name+">"), true, nil
	}
	return splice(data, e.openEnd, e.closeStart, value), true, nil
}

// Text returns the trimmed text of the first element at path.
func Text(data []byte, path string) (string, bool, error) {
	all, err := scan(data)
	if err != nil {
		return "", false, err
	}
	e, ok := find(all, path)
	if !ok {
		return "", false, nil
	}
	return strings.TrimSpace(e.inner(data)), true, nil
}

// Remove deletes the first element at path. When the element sits alone on
// its lines, the lines go with it.
func Remove(data []byte, path string) ([]byte, bool, error) {
	all, err := scan(data)
	if err != nil {
		return nil, false, err
	}
	e, ok := find(all, path)
	if !ok {
		return data, false, nil
	}
	from, to := e.start, e.end
	if indent, alone := lineIndent(data, e.start); alone {
		rest := to
		for rest < len(data) && (data[rest] == ' ' || data[rest] == '\t' || data[rest] == '\r') {
			rest++
		}
		if rest == len(data) || data[rest] == '\n' {
			from -= len(indent)
			to = rest
			if to < len(data) {
				to++
			}
		}
	}
	return splice(data, from, to, ""), true, nil
}

// Replacements are new texts for a POM's identifiers. Empty fields are left
// alone.
type Replacements struct {
	GroupID          string
	ArtifactID       string
	Version          string
	ParentGroupID    string
	ParentArtifactID string
	ParentVersion    string
	RemoveParent     bool
}

// ReplaceIdentifiers rewrites the project and parent identifiers, typically
// into template references such as "${groupId}".
func ReplaceIdentifiers(data []byte, r Replacements) ([]byte, error) {
	var err error
	if r.RemoveParent {
		if data, _, err = Remove(data, "project/parent"); err != nil {
			return nil, err
		}
	}
	edits := []struct{ path, value string }{
		{"project/groupId", r.GroupID},
		{"project/artifactId", r.ArtifactID},
		{"project/version", r.Version},
	}
	if !r.RemoveParent {
		edits = append(edits,
			struct{ path, value string }{"project/parent/groupId", r.ParentGroupID},
			struct{ path, value string }{"project/parent/artifactId", r.ParentArtifactID},
			struct{ path, value string }{"project/parent/version", r.ParentVersion},
		)
	}
	for _, e := range edits {
		if e.value == "" {
			continue
		}
		if data, _, err = SetText(data, e.path, e.value); err != nil {
			return nil, err
		}
	}
	return data, nil
}
