package creator

import (
	"sort"
	"strings"

	"github.com/openfroyo/archetype/pkg/engine"
)

// escapePreamble defines the references that stand for characters the
// template engine would otherwise interpret.
const escapePreamble = "#set( $symbol_pound = '#' )\n#set( $symbol_dollar = '$' )\n#set( $symbol_escape = '\\' )\n"

// substitution turns project text back into template text.
type substitution struct {
	escaped *strings.Replacer
	plain   *strings.Replacer

	// names maps the artifactId to its path token.
	artifactID string
	nameToken  string
}

// newSubstitution replaces every non-empty property value with a ${key}
// reference, longest value first. In nested modules the root artifactId is
// written as rootArtifactId since artifactId is the module's own id there.
func newSubstitution(props map[string]string, nested bool) *substitution {
	type pair struct{ key, value string }
	pairs := make([]pair, 0, len(props))
	for _, k := range sortedKeys(props) {
		v := props[k]
		if strings.TrimSpace(v) == "" {
			continue
		}
		if nested && k == engine.PropArtifactID {
			k = engine.PropRootArtifactID
		}
		pairs = append(pairs, pair{key: k, value: v})
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return len(pairs[i].value) > len(pairs[j].value)
	})

	values := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		values = append(values, p.value, "${"+p.key+"}")
	}
	escapes := append(append([]string(nil), values...),
		"$", "${symbol_dollar}",
		"#", "${symbol_pound}",
		"\\", "${symbol_escape}",
	)

	s := &substitution{
		escaped:    strings.NewReplacer(escapes...),
		plain:      strings.NewReplacer(values...),
		artifactID: props[engine.PropArtifactID],
		nameToken:  "__" + engine.PropArtifactID + "__",
	}
	if nested {
		s.nameToken = "__" + engine.PropRootArtifactID + "__"
	}
	return s
}

// content reverse substitutes filtered file content. Text holding template
// characters gets them escaped and the escape preamble prepended.
func (s *substitution) content(text string) string {
	preamble, out := s.template(text)
	return preamble + out
}

// template is content with the preamble returned apart, for callers that
// still edit the text as XML. The preamble is empty when nothing needed
// escaping.
func (s *substitution) template(text string) (string, string) {
	prolog, body := splitProlog(text)
	if !strings.ContainsAny(body, "$#\\") {
		return "", prolog + s.plain.Replace(body)
	}
	return escapePreamble, prolog + s.escaped.Replace(body)
}

// splitProlog separates a leading XML declaration, whose version must stay
// "1.0" whatever the project version is.
func splitProlog(text string) (string, string) {
	if !strings.HasPrefix(text, "<?xml") {
		return "", text
	}
	end := strings.Index(text, "?>")
	if end < 0 {
		return "", text
	}
	return text[:end+2], text[end+2:]
}

// name renames a path whose elements contain the artifactId.
func (s *substitution) name(p string) string {
	if s.artifactID == "" {
		return p
	}
	return strings.ReplaceAll(p, s.artifactID, s.nameToken)
}
