// Package velocity merges archetype resource templates.
//
// Archetype resources are written in the Velocity template language. This
// package implements the part of it archetypes use: references with string
// method chains, #set, #if/#elseif/#else, #foreach, comments and unparsed
// blocks. Unresolved references are rendered as written, the way Velocity
// does, so that text such as "$HOME" in a shell script survives filtering.
//
// Usage:
//
//	engine := velocity.NewEngine(logger)
//	out, err := engine.Evaluate("pom.xml", src, velocity.Context{"groupId": "org.acme"})
package velocity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Context holds the values visible to a template.
type Context map[string]interface{}

// NewContext builds a context from string properties.
func NewContext(props map[string]string) Context {
	ctx := make(Context, len(props))
	for k, v := range props {
		ctx[k] = v
	}
	return ctx
}

// clone returns a shallow copy so #set never leaks into the caller's map.
func (c Context) clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ParseError reports a syntax error in a template.
type ParseError struct {
	Template string
	Line     int
	Column   int
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Template, e.Line, e.Column, e.Message)
}

// EvalError reports a failure while rendering a template.
type EvalError struct {
	Template string
	Line     int
	Column   int
	Message  string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Template, e.Line, e.Column, e.Message)
}

// Template is a parsed template.
type Template struct {
	name  string
	src   string
	nodes []node
}

// Name returns the template name used in error messages.
func (t *Template) Name() string {
	return t.name
}

// Parse parses a template.
func Parse(name, src string) (*Template, error) {
	p := &parser{name: name, src: src}
	nodes, stop, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	if stop != nil {
		return nil, p.errorf(stop.pos, "unexpected #%s", stop.name)
	}
	return &Template{name: name, src: src, nodes: nodes}, nil
}

// Engine renders templates.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates an engine. Unresolved references are logged at trace level.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "velocity").Logger()}
}

// Evaluate parses and renders src against ctx.
func (e *Engine) Evaluate(name, src string, ctx Context) (string, error) {
	tmpl, err := Parse(name, src)
	if err != nil {
		return "", err
	}
	return e.Render(tmpl, ctx)
}

// Render renders a parsed template against ctx. ctx itself is not modified.
func (e *Engine) Render(tmpl *Template, ctx Context) (string, error) {
	r := &renderer{
		tmpl:   tmpl,
		ctx:    ctx.clone(),
		logger: e.logger,
	}
	if err := r.render(tmpl.nodes); err != nil {
		return "", err
	}
	return r.out.String(), nil
}

// EvaluatePath replaces __key__ tokens in a path with context values.
// Longer keys are replaced first so __rootArtifactId__ wins over __artifactId__
// style overlaps. Tokens with no matching key are left alone.
func EvaluatePath(path string, ctx Context) string {
	if !strings.Contains(path, "__") {
		return path
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		token := "__" + k + "__"
		if strings.Contains(path, token) {
			path = strings.ReplaceAll(path, token, toString(ctx[k]))
		}
	}
	return path
}

// lineCol converts a byte offset into a 1-based line and column.
func lineCol(src string, pos int) (int, int) {
	if pos > len(src) {
		pos = len(src)
	}
	line := 1 + strings.Count(src[:pos], "\n")
	col := pos - strings.LastIndex(src[:pos], "\n")
	return line, col
}
