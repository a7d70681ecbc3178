package velocity

import (
	"fmt"
	"strconv"
	"strings"
)

type node interface{}

type textNode struct {
	text string
}

type call struct {
	name   string
	method bool
	args   []expr
}

type refNode struct {
	pos     int
	raw     string
	name    string
	quiet   bool
	escaped bool
	chain   []call
}

type setNode struct {
	pos   int
	name  string
	value expr
}

type ifBranch struct {
	cond expr
	body []node
}

type ifNode struct {
	pos      int
	branches []ifBranch
	elseBody []node
}

type foreachNode struct {
	pos     int
	varName string
	list    expr
	body    []node
}

// stopDirective is a block terminator handed back to the enclosing block.
type stopDirective struct {
	pos  int
	name string
	cond expr
}

type parser struct {
	name string
	src  string
	pos  int
	// base offsets error positions for nested string templates.
	base int
	root string
}

func (p *parser) errorf(pos int, format string, args ...interface{}) error {
	src := p.src
	if p.root != "" {
		src = p.root
	}
	line, col := lineCol(src, p.base+pos)
	return &ParseError{Template: p.name, Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

var directives = map[string]bool{
	"set": true, "if": true, "elseif": true, "else": true, "end": true, "foreach": true,
}

// parseNodes parses until EOF or until a terminator listed in stops.
func (p *parser) parseNodes(stops ...string) ([]node, *stopDirective, error) {
	var nodes []node
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			nodes = append(nodes, &textNode{text: text.String()})
			text.Reset()
		}
	}

	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '\\':
			run := p.backslashes(p.pos)
			if next := p.pos + run; next < len(p.src) && p.src[next] == '$' {
				if ref, end, ok := p.parseReference(next); ok {
					// Each pair is one literal backslash; an odd one left over
					// escapes the reference.
					text.WriteString(strings.Repeat("\\", run/2))
					flush()
					ref.escaped = run%2 == 1
					nodes = append(nodes, ref)
					p.pos = end
					continue
				}
			}
			if run > 1 {
				text.WriteString(strings.Repeat("\\", run-1))
				p.pos += run - 1
			}
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '#' {
				if name, _, _ := p.directiveName(p.pos + 1); directives[name] {
					text.WriteByte('#')
					p.pos += 2
					continue
				}
			}
			text.WriteByte(c)
			p.pos++

		case '$':
			if ref, end, ok := p.parseReference(p.pos); ok {
				flush()
				nodes = append(nodes, ref)
				p.pos = end
				continue
			}
			text.WriteByte(c)
			p.pos++

		case '#':
			handled, err := p.parseHash(&text, &nodes, flush)
			if err != nil {
				return nil, nil, err
			}
			if handled == nil {
				text.WriteByte(c)
				p.pos++
				continue
			}
			if handled.stop != nil {
				if !contains(stops, handled.stop.name) {
					return nil, nil, p.errorf(handled.stop.pos, "unexpected #%s", handled.stop.name)
				}
				flush()
				return nodes, handled.stop, nil
			}

		default:
			text.WriteByte(c)
			p.pos++
		}
	}

	flush()
	if len(stops) > 0 {
		return nil, nil, p.errorf(len(p.src), "missing #end")
	}
	return nodes, nil, nil
}

// backslashes returns the length of the run of backslashes starting at pos.
func (p *parser) backslashes(pos int) int {
	n := 0
	for pos+n < len(p.src) && p.src[pos+n] == '\\' {
		n++
	}
	return n
}

type hashResult struct {
	stop *stopDirective
}

// parseHash handles everything that starts with '#'. A nil result means the
// '#' is plain text.
func (p *parser) parseHash(text *strings.Builder, nodes *[]node, flush func()) (*hashResult, error) {
	start := p.pos
	rest := p.src[start:]

	switch {
	case strings.HasPrefix(rest, "##"):
		end := strings.IndexByte(rest, '\n')
		if indent, ok := p.leadingIndent(start); ok {
			trimIndent(text, indent)
		}
		if end < 0 {
			p.pos = len(p.src)
		} else {
			p.pos = start + end + 1
		}
		return &hashResult{}, nil

	case strings.HasPrefix(rest, "#*"):
		end := strings.Index(rest[2:], "*#")
		if end < 0 {
			return nil, p.errorf(start, "unterminated comment")
		}
		p.pos = start + 2 + end + 2
		return &hashResult{}, nil

	case strings.HasPrefix(rest, "#[["):
		end := strings.Index(rest[3:], "]]#")
		if end < 0 {
			return nil, p.errorf(start, "unterminated #[[ block")
		}
		text.WriteString(rest[3 : 3+end])
		p.pos = start + 3 + end + 3
		return &hashResult{}, nil
	}

	name, after, ok := p.directiveName(start)
	if !ok || !directives[name] {
		return nil, nil
	}
	p.pos = after

	var directive node
	var stop *stopDirective

	switch name {
	case "set":
		n, err := p.parseSet(start)
		if err != nil {
			return nil, err
		}
		directive = n
	case "if":
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		p.gobble(start, text)
		flush()
		n, err := p.parseIf(start, cond)
		if err != nil {
			return nil, err
		}
		*nodes = append(*nodes, n)
		return &hashResult{}, nil
	case "foreach":
		n, err := p.parseForeachHead(start)
		if err != nil {
			return nil, err
		}
		p.gobble(start, text)
		flush()
		body, _, err := p.parseNodes("end")
		if err != nil {
			return nil, err
		}
		n.body = body
		*nodes = append(*nodes, n)
		return &hashResult{}, nil
	case "elseif":
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stop = &stopDirective{pos: start, name: name, cond: cond}
	case "else", "end":
		stop = &stopDirective{pos: start, name: name}
	}

	p.gobble(start, text)
	if stop != nil {
		return &hashResult{stop: stop}, nil
	}
	flush()
	*nodes = append(*nodes, directive)
	return &hashResult{}, nil
}

// directiveName reads "#name" or "#{name}" at pos.
func (p *parser) directiveName(pos int) (string, int, bool) {
	i := pos + 1
	braced := false
	if i < len(p.src) && p.src[i] == '{' {
		braced = true
		i++
	}
	j := i
	for j < len(p.src) && isLetter(p.src[j]) {
		j++
	}
	if j == i {
		return "", pos, false
	}
	name := p.src[i:j]
	if braced {
		if j >= len(p.src) || p.src[j] != '}' {
			return "", pos, false
		}
		j++
	}
	return name, j, true
}

// gobble drops a directive's line when nothing else is on it: the indentation
// already collected in text and the trailing newline are discarded.
func (p *parser) gobble(start int, text *strings.Builder) {
	indent, ok := p.leadingIndent(start)
	if !ok {
		return
	}
	j := p.pos
	for j < len(p.src) && (p.src[j] == ' ' || p.src[j] == '\t') {
		j++
	}
	switch {
	case j == len(p.src):
	case p.src[j] == '\n':
		j++
	case p.src[j] == '\r' && j+1 < len(p.src) && p.src[j+1] == '\n':
		j += 2
	default:
		return
	}
	trimIndent(text, indent)
	p.pos = j
}

// leadingIndent reports whether only blanks precede pos on its line.
func (p *parser) leadingIndent(pos int) (int, bool) {
	i := pos
	for i > 0 && (p.src[i-1] == ' ' || p.src[i-1] == '\t') {
		i--
	}
	if i > 0 && p.src[i-1] != '\n' {
		return 0, false
	}
	if i == 0 && p.base > 0 {
		return 0, false
	}
	return pos - i, true
}

func trimIndent(text *strings.Builder, indent int) {
	if indent == 0 {
		return
	}
	s := text.String()
	if len(s) < indent || strings.TrimRight(s[len(s)-indent:], " \t") != "" {
		return
	}
	text.Reset()
	text.WriteString(s[:len(s)-indent])
}

func (p *parser) parseSet(start int) (*setNode, error) {
	if err := p.expectOpen("set"); err != nil {
		return nil, err
	}
	p.skipWS()
	if p.pos >= len(p.src) || p.src[p.pos] != '$' {
		return nil, p.errorf(p.pos, "#set expects a reference")
	}
	ref, end, ok := p.parseReference(p.pos)
	if !ok || len(ref.chain) > 0 {
		return nil, p.errorf(p.pos, "#set expects a simple reference")
	}
	p.pos = end
	p.skipWS()
	if !p.consume("=") {
		return nil, p.errorf(p.pos, "#set expects '='")
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectClose("set"); err != nil {
		return nil, err
	}
	return &setNode{pos: start, name: ref.name, value: value}, nil
}

func (p *parser) parseCondition() (expr, error) {
	if err := p.expectOpen("if"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectClose("if"); err != nil {
		return nil, err
	}
	return cond, nil
}

func (p *parser) parseIf(start int, cond expr) (*ifNode, error) {
	n := &ifNode{pos: start}
	for {
		body, stop, err := p.parseNodes("elseif", "else", "end")
		if err != nil {
			return nil, err
		}
		n.branches = append(n.branches, ifBranch{cond: cond, body: body})
		switch stop.name {
		case "elseif":
			cond = stop.cond
			continue
		case "else":
			elseBody, _, err := p.parseNodes("end")
			if err != nil {
				return nil, err
			}
			n.elseBody = elseBody
		}
		return n, nil
	}
}

func (p *parser) parseForeachHead(start int) (*foreachNode, error) {
	if err := p.expectOpen("foreach"); err != nil {
		return nil, err
	}
	p.skipWS()
	ref, end, ok := p.parseReference(p.pos)
	if !ok || len(ref.chain) > 0 {
		return nil, p.errorf(p.pos, "#foreach expects a loop variable")
	}
	p.pos = end
	p.skipWS()
	if !p.consumeWord("in") {
		return nil, p.errorf(p.pos, "#foreach expects 'in'")
	}
	list, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectClose("foreach"); err != nil {
		return nil, err
	}
	return &foreachNode{pos: start, varName: ref.name, list: list}, nil
}

func (p *parser) expectOpen(directive string) error {
	p.skipWS()
	if !p.consume("(") {
		return p.errorf(p.pos, "#%s expects '('", directive)
	}
	return nil
}

func (p *parser) expectClose(directive string) error {
	p.skipWS()
	if !p.consume(")") {
		return p.errorf(p.pos, "#%s expects ')'", directive)
	}
	return nil
}

// parseReference reads $name, ${name}, $!name, $!{name} with an optional
// .property / .method(args) chain starting at pos (which holds '$').
func (p *parser) parseReference(pos int) (*refNode, int, bool) {
	src := p.src
	i := pos + 1
	quiet := false
	if i < len(src) && src[i] == '!' {
		quiet = true
		i++
	}
	braced := false
	if i < len(src) && src[i] == '{' {
		braced = true
		i++
	}
	name, j := scanIdent(src, i)
	if name == "" {
		return nil, pos, false
	}
	i = j

	var chain []call
	for i+1 < len(src) && src[i] == '.' && isIdentStart(src[i+1]) {
		member, k := scanIdent(src, i+1)
		c := call{name: member}
		if k < len(src) && src[k] == '(' {
			saved := p.pos
			p.pos = k
			args, err := p.parseArgs()
			end := p.pos
			p.pos = saved
			if err != nil {
				break
			}
			c.method = true
			c.args = args
			k = end
		}
		chain = append(chain, c)
		i = k
	}

	if braced {
		if i >= len(src) || src[i] != '}' {
			return nil, pos, false
		}
		i++
	}
	return &refNode{pos: p.base + pos, raw: src[pos:i], name: name, quiet: quiet, chain: chain}, i, true
}

// parseArgs reads "(a, b, ...)" at p.pos.
func (p *parser) parseArgs() ([]expr, error) {
	if !p.consume("(") {
		return nil, p.errorf(p.pos, "expected '('")
	}
	var args []expr
	p.skipWS()
	if p.consume(")") {
		return args, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		p.skipWS()
		if p.consume(",") {
			continue
		}
		if p.consume(")") {
			return args, nil
		}
		return nil, p.errorf(p.pos, "expected ',' or ')'")
	}
}

func (p *parser) skipWS() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) consume(s string) bool {
	if strings.HasPrefix(p.src[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

func (p *parser) consumeWord(w string) bool {
	if !strings.HasPrefix(p.src[p.pos:], w) {
		return false
	}
	end := p.pos + len(w)
	if end < len(p.src) && isIdentChar(p.src[end]) {
		return false
	}
	p.pos = end
	return true
}

func scanIdent(src string, i int) (string, int) {
	if i >= len(src) || !isIdentStart(src[i]) {
		return "", i
	}
	j := i + 1
	for j < len(src) && isIdentChar(src[j]) {
		j++
	}
	return src[i:j], j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentStart(c byte) bool {
	return isLetter(c) || c == '_'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// parseInt parses an integer literal at p.pos.
func (p *parser) parseInt() (int64, bool) {
	i := p.pos
	if i < len(p.src) && p.src[i] == '-' {
		i++
	}
	j := i
	for j < len(p.src) && p.src[j] >= '0' && p.src[j] <= '9' {
		j++
	}
	if j == i {
		return 0, false
	}
	n, err := strconv.ParseInt(p.src[p.pos:j], 10, 64)
	if err != nil {
		return 0, false
	}
	p.pos = j
	return n, true
}
