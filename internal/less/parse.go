package less

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

type nodeKind int

const (
	nodeDecl nodeKind = iota
	nodeVar
	nodeRule
	nodeMixinDef
	nodeMixinCall
	nodeAt
	nodeRaw
)

type param struct {
	name       string
	def        string
	hasDefault bool
}

type node struct {
	kind nodeKind
	file string
	line int
	col  int

	// name is the property, the variable or at-rule name without its @,
	// or the mixin name including its leading . or #.
	name string

	// value is the declaration or variable value, the rule selector, the
	// at-rule prelude or raw CSS.
	value string

	important bool
	hasBody   bool
	body      []*node
	params    []param
	args      []string
}

var (
	varDeclRe   = regexp.MustCompile(`(?s)^@([\w-]+)\s*:(.*)$`)
	detachedRe  = regexp.MustCompile(`^@[\w-]+\s*:$`)
	mixinDefRe  = regexp.MustCompile(`(?s)^([.#][\w-]+)\s*\((.*)\)$`)
	mixinCallRe = regexp.MustCompile(`(?s)^([.#][\w-]+)\s*(?:\((.*)\))?\s*(!important)?$`)
	atNameRe    = regexp.MustCompile(`^@([\w-]+)`)
)

type parser struct {
	c    *compiler
	file string
	src  string
	pos  int
	line int
}

func (c *compiler) parse(file string, data []byte) ([]*node, error) {
	p := &parser{c: c, file: file, src: string(data), line: 1}
	return p.parseBlock(true)
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &Error{File: p.file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

// col is the zero-based byte column of the read position.
func (p *parser) col() int {
	return p.pos - strings.LastIndexByte(p.src[:p.pos], '\n') - 1
}

func (p *parser) peek(off int) byte {
	if p.pos+off < len(p.src) {
		return p.src[p.pos+off]
	}
	return 0
}

func (p *parser) advance(n int) {
	if p.pos+n > len(p.src) {
		n = len(p.src) - p.pos
	}
	p.line += strings.Count(p.src[p.pos:p.pos+n], "\n")
	p.pos += n
}

func (p *parser) skipSpaceAndComments() error {
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			p.advance(1)
		case c == '/' && p.peek(1) == '*':
			if err := p.skipBlockComment(); err != nil {
				return err
			}
		case c == '/' && p.peek(1) == '/':
			p.skipLineComment()
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) skipBlockComment() error {
	start := p.line
	end := strings.Index(p.src[p.pos+2:], "*/")
	if end < 0 {
		return p.errorf(start, "unterminated comment")
	}
	p.advance(end + 4)
	return nil
}

func (p *parser) skipLineComment() {
	end := strings.IndexByte(p.src[p.pos:], '\n')
	if end < 0 {
		p.advance(len(p.src) - p.pos)
		return
	}
	p.advance(end)
}

func (p *parser) readString() (string, error) {
	start, line := p.pos, p.line
	quote := p.src[p.pos]
	p.advance(1)
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\\':
			p.advance(2)
		case c == quote:
			p.advance(1)
			return p.src[start:p.pos], nil
		case c == '\n':
			return "", p.errorf(line, "unterminated string")
		default:
			p.advance(1)
		}
	}
	return "", p.errorf(line, "unterminated string")
}

// readURL copies a url(...) token verbatim so that // inside it is not
// taken for a comment.
func (p *parser) readURL() (string, error) {
	start, line := p.pos, p.line
	p.advance(4)
	for !p.eof() {
		c := p.src[p.pos]
		switch c {
		case '"', '\'':
			if _, err := p.readString(); err != nil {
				return "", err
			}
		case ')':
			p.advance(1)
			return p.src[start:p.pos], nil
		default:
			p.advance(1)
		}
	}
	return "", p.errorf(line, "unterminated url()")
}

func (p *parser) atURL() bool {
	if len(p.src)-p.pos < 4 || !strings.EqualFold(p.src[p.pos:p.pos+4], "url(") {
		return false
	}
	return p.pos == 0 || !isIdentByte(p.src[p.pos-1])
}

// readChunk reads up to the next top-level '{', ';' or '}'. The '{' and
// ';' terminators are consumed, '}' is left for the caller.
func (p *parser) readChunk() (string, byte, error) {
	var b strings.Builder
	depth := 0
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '"' || c == '\'':
			s, err := p.readString()
			if err != nil {
				return "", 0, err
			}
			b.WriteString(s)
		case c == '/' && p.peek(1) == '*':
			if err := p.skipBlockComment(); err != nil {
				return "", 0, err
			}
			b.WriteByte(' ')
		case c == '/' && p.peek(1) == '/':
			p.skipLineComment()
		case c == '@' && p.peek(1) == '{':
			end := strings.IndexByte(p.src[p.pos:], '}')
			if end < 0 {
				return "", 0, p.errorf(p.line, "unterminated interpolation")
			}
			b.WriteString(p.src[p.pos : p.pos+end+1])
			p.advance(end + 1)
		case p.atURL():
			s, err := p.readURL()
			if err != nil {
				return "", 0, err
			}
			b.WriteString(s)
		case c == '(' || c == '[':
			depth++
			b.WriteByte(c)
			p.advance(1)
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
			b.WriteByte(c)
			p.advance(1)
		case depth == 0 && (c == '{' || c == ';'):
			p.advance(1)
			return b.String(), c, nil
		case depth == 0 && c == '}':
			return b.String(), c, nil
		default:
			b.WriteByte(c)
			p.advance(1)
		}
	}
	return b.String(), 0, nil
}

func (p *parser) parseBlock(top bool) ([]*node, error) {
	var nodes []*node
	for {
		if err := p.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		if p.eof() {
			if !top {
				return nil, p.errorf(p.line, "missing closing '}'")
			}
			return nodes, nil
		}

		switch p.src[p.pos] {
		case '}':
			if top {
				return nil, p.errorf(p.line, "unexpected '}'")
			}
			p.advance(1)
			return nodes, nil
		case ';':
			p.advance(1)
			continue
		}

		line, col := p.line, p.col()
		raw, term, err := p.readChunk()
		if err != nil {
			return nil, err
		}
		text := strings.TrimSpace(raw)

		if term == '{' {
			n, err := p.blockNode(text, line, col)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
			continue
		}

		if term == 0 && !top {
			return nil, p.errorf(line, "missing closing '}'")
		}
		if text == "" {
			continue
		}
		stmt, err := p.statementNodes(text, line, col)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, stmt...)
	}
}

func (p *parser) blockNode(header string, line, col int) (*node, error) {
	if header == "" {
		return nil, p.errorf(line, "missing selector before '{'")
	}
	if detachedRe.MatchString(header) {
		return nil, p.errorf(line, "detached rulesets are not supported")
	}
	if strings.Contains(header, " when ") {
		return nil, p.errorf(line, "mixin guards are not supported")
	}
	if strings.Contains(header, ":extend(") {
		return nil, p.errorf(line, "extend is not supported")
	}

	body, err := p.parseBlock(false)
	if err != nil {
		return nil, err
	}

	n := &node{file: p.file, line: line, col: col, body: body, hasBody: true}
	switch {
	case strings.HasPrefix(header, "@") && !strings.HasPrefix(header, "@{"):
		m := atNameRe.FindStringSubmatch(header)
		if m == nil {
			return nil, p.errorf(line, "invalid at-rule %q", header)
		}
		n.kind = nodeAt
		n.name = m[1]
		n.value = strings.TrimSpace(header[len(m[0]):])
	case mixinDefRe.MatchString(header):
		m := mixinDefRe.FindStringSubmatch(header)
		params, err := parseParams(m[2])
		if err != nil {
			return nil, p.errorf(line, "%v", err)
		}
		n.kind = nodeMixinDef
		n.name = m[1]
		n.params = params
	default:
		n.kind = nodeRule
		n.value = header
	}
	return n, nil
}

func (p *parser) statementNodes(text string, line, col int) ([]*node, error) {
	if strings.Contains(text, ":extend(") {
		return nil, p.errorf(line, "extend is not supported")
	}
	switch {
	case strings.HasPrefix(text, "@import"):
		return p.importNodes(text, line, col)
	case varDeclRe.MatchString(text):
		m := varDeclRe.FindStringSubmatch(text)
		return []*node{{kind: nodeVar, file: p.file, line: line, col: col, name: m[1], value: strings.TrimSpace(m[2])}}, nil
	case strings.HasPrefix(text, "@") && !strings.HasPrefix(text, "@{"):
		m := atNameRe.FindStringSubmatch(text)
		if m == nil {
			return nil, p.errorf(line, "invalid at-rule %q", text)
		}
		return []*node{{kind: nodeAt, file: p.file, line: line, col: col, name: m[1], value: strings.TrimSpace(text[len(m[0]):])}}, nil
	case text[0] == '.' || text[0] == '#':
		m := mixinCallRe.FindStringSubmatch(text)
		if m == nil {
			return nil, p.errorf(line, "invalid mixin call %q", text)
		}
		var args []string
		if strings.TrimSpace(m[2]) != "" {
			args = splitArgs(m[2])
		}
		return []*node{{kind: nodeMixinCall, file: p.file, line: line, col: col, name: m[1], args: args, important: m[3] != ""}}, nil
	}

	colon := indexTopLevel(text, ':')
	if colon < 0 {
		return nil, p.errorf(line, "expected declaration, got %q", text)
	}
	prop := strings.TrimSpace(text[:colon])
	value := strings.TrimSpace(text[colon+1:])
	important := false
	if strings.HasSuffix(value, "!important") {
		important = true
		value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
	}
	if prop == "" || value == "" {
		return nil, p.errorf(line, "invalid declaration %q", text)
	}
	return []*node{{kind: nodeDecl, file: p.file, line: line, col: col, name: prop, value: value, important: important}}, nil
}

func (p *parser) importNodes(text string, line, col int) ([]*node, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(text, "@import"))
	opts := make(map[string]bool)
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return nil, p.errorf(line, "invalid import options")
		}
		for _, o := range strings.Split(rest[1:end], ",") {
			opts[strings.TrimSpace(o)] = true
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	var nodes []*node
	for _, target := range splitTopLevel(rest, ',') {
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		name, quoted := unquote(target)
		isCSS := opts["css"] || strings.HasPrefix(strings.ToLower(target), "url(") ||
			!opts["inline"] && strings.HasSuffix(name, ".css") ||
			strings.Contains(name, "://") || strings.HasPrefix(name, "//")
		if isCSS {
			nodes = append(nodes, &node{kind: nodeAt, file: p.file, line: line, col: col, name: "import", value: target})
			continue
		}
		if !quoted {
			return nil, p.errorf(line, "invalid import %q", target)
		}

		if path.Ext(name) == "" {
			name += ".less"
		}
		full := path.Join(path.Dir(p.file), name)
		if p.c.seen[full] && !opts["multiple"] {
			continue
		}

		data, err := p.c.load(full)
		if err != nil {
			if opts["optional"] {
				continue
			}
			return nil, p.errorf(line, "cannot import %q: %v", name, err)
		}
		p.c.addSource(full, data)

		if opts["inline"] {
			nodes = append(nodes, &node{kind: nodeRaw, file: full, line: 1, value: string(data)})
			continue
		}
		imported, err := p.c.parse(full, data)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, imported...)
	}
	return nodes, nil
}

func parseParams(s string) ([]param, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var params []param
	for _, part := range splitArgs(s) {
		if strings.Contains(part, "...") {
			return nil, fmt.Errorf("variadic mixin parameters are not supported")
		}
		if !strings.HasPrefix(part, "@") {
			return nil, fmt.Errorf("invalid mixin parameter %q", part)
		}
		name, def, hasDefault := strings.Cut(part[1:], ":")
		params = append(params, param{
			name:       strings.TrimSpace(name),
			def:        strings.TrimSpace(def),
			hasDefault: hasDefault,
		})
	}
	return params, nil
}

// splitArgs splits mixin arguments on semicolons if any are present at the
// top level, otherwise on commas.
func splitArgs(s string) []string {
	sep := byte(',')
	if indexTopLevel(s, ';') >= 0 {
		sep = ';'
	}
	var out []string
	for _, a := range splitTopLevel(s, sep) {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// splitTopLevel splits s on sep, ignoring separators inside quotes,
// parentheses and brackets.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func indexTopLevel(s string, target byte) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
		case c == target && depth == 0:
			return i
		}
	}
	return -1
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return s, false
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
