package less

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var simpleMixinRe = regexp.MustCompile(`^[.#][\w-]+$`)

// at-rules whose bodies apply to the enclosing selector
var bubblingAtRules = map[string]bool{
	"media":     true,
	"supports":  true,
	"container": true,
	"document":  true,
	"layer":     true,
}

const (
	unresolved = iota
	resolving
	resolved
)

type varDef struct {
	n     *node
	sc    *scope
	state int
	val   string
}

type mixin struct {
	n  *node
	sc *scope
}

type scope struct {
	parent *scope
	vars   map[string]*varDef
	mixins map[string][]mixin
}

func newScope(parent *scope, nodes []*node) *scope {
	sc := &scope{parent: parent, vars: make(map[string]*varDef), mixins: make(map[string][]mixin)}
	for _, n := range nodes {
		switch n.kind {
		case nodeVar:
			sc.vars[n.name] = &varDef{n: n, sc: sc}
		case nodeMixinDef:
			sc.mixins[n.name] = append(sc.mixins[n.name], mixin{n: n, sc: sc})
		case nodeRule:
			if simpleMixinRe.MatchString(n.value) {
				sc.mixins[n.value] = append(sc.mixins[n.value], mixin{n: n, sc: sc})
			}
		}
	}
	return sc
}

func (c *compiler) lookupVar(sc *scope, name string) (string, error) {
	for s := sc; s != nil; s = s.parent {
		v, ok := s.vars[name]
		if !ok {
			continue
		}
		switch v.state {
		case resolved:
			return v.val, nil
		case resolving:
			return "", fmt.Errorf("recursive variable definition for @%s", name)
		}
		v.state = resolving
		val, err := c.evalValue(v.n.value, v.sc)
		if err != nil {
			v.state = unresolved
			return "", c.nodeErr(v.n, err)
		}
		v.val, v.state = val, resolved
		return val, nil
	}
	return "", fmt.Errorf("variable @%s is undefined", name)
}

func (sc *scope) lookupMixins(name string) []mixin {
	for s := sc; s != nil; s = s.parent {
		if ms, ok := s.mixins[name]; ok {
			return ms
		}
	}
	return nil
}

type srcPos struct {
	file      string
	line, col int
}

func (n *node) pos() srcPos {
	return srcPos{file: n.file, line: n.line, col: n.col}
}

// decl is a compiled declaration and where it was written.
type decl struct {
	text string
	at   srcPos
}

func (c *compiler) nodeErr(n *node, err error) error {
	var lerr *Error
	if errors.As(err, &lerr) {
		return err
	}
	return &Error{File: n.file, Line: n.line, Msg: err.Error()}
}

// eval evaluates nodes in a new scope below parent. sels are the
// selectors of the enclosing rule; declarations are returned for the
// caller to attach to them. allowBare permits declarations with no
// enclosing rule, as in @font-face.
func (c *compiler) eval(nodes []*node, parent *scope, sels []string, allowBare bool) ([]decl, []cssItem, error) {
	sc := newScope(parent, nodes)
	var decls []decl
	var items []cssItem

	for _, n := range nodes {
		switch n.kind {
		case nodeVar, nodeMixinDef:

		case nodeDecl:
			if sels == nil && !allowBare {
				return nil, nil, c.nodeErr(n, errors.New("declaration outside of a rule"))
			}
			name, err := c.interpolate(n.name, sc)
			if err != nil {
				return nil, nil, c.nodeErr(n, err)
			}
			value, err := c.evalValue(n.value, sc)
			if err != nil {
				return nil, nil, c.nodeErr(n, err)
			}
			text := name + ": " + value
			if n.important {
				text += " !important"
			}
			decls = append(decls, decl{text: text, at: n.pos()})

		case nodeRule:
			sel, err := c.interpolate(n.value, sc)
			if err != nil {
				return nil, nil, c.nodeErr(n, err)
			}
			child := joinSelectors(sels, splitSelectors(sel))
			d, it, err := c.eval(n.body, sc, child, false)
			if err != nil {
				return nil, nil, err
			}
			if len(d) > 0 {
				items = append(items, &cssRule{sels: child, decls: d, at: n.pos()})
			}
			items = append(items, it...)

		case nodeAt:
			it, err := c.evalAtRule(n, sc, sels)
			if err != nil {
				return nil, nil, err
			}
			items = append(items, it...)

		case nodeMixinCall:
			d, it, err := c.callMixin(n, sc, sels, allowBare)
			if err != nil {
				return nil, nil, err
			}
			decls = append(decls, d...)
			items = append(items, it...)

		case nodeRaw:
			items = append(items, &cssRaw{text: n.value, at: n.pos()})
		}
	}
	return decls, items, nil
}

func (c *compiler) evalAtRule(n *node, sc *scope, sels []string) ([]cssItem, error) {
	eval := c.evalValue
	switch n.name {
	case "import", "charset", "namespace":
		eval = c.substitute
	}
	prelude, err := eval(n.value, sc)
	if err != nil {
		return nil, c.nodeErr(n, err)
	}
	head := "@" + n.name
	if prelude != "" {
		head += " " + prelude
	}

	if !n.hasBody {
		switch n.name {
		case "import", "charset", "namespace":
			c.hoisted = append(c.hoisted, decl{text: head, at: n.pos()})
			return nil, nil
		}
		return []cssItem{&cssRaw{text: head + ";\n", at: n.pos()}}, nil
	}

	if bubblingAtRules[n.name] {
		d, it, err := c.eval(n.body, sc, sels, false)
		if err != nil {
			return nil, err
		}
		block := &cssBlock{head: head, at: n.pos()}
		if len(d) > 0 {
			block.items = append(block.items, &cssRule{sels: sels, decls: d, at: n.pos()})
		}
		block.items = append(block.items, it...)
		if len(block.items) == 0 {
			return nil, nil
		}
		return []cssItem{block}, nil
	}

	d, it, err := c.eval(n.body, sc, nil, true)
	if err != nil {
		return nil, err
	}
	return []cssItem{&cssBlock{head: head, at: n.pos(), decls: d, items: it}}, nil
}

func (c *compiler) callMixin(n *node, sc *scope, sels []string, allowBare bool) ([]decl, []cssItem, error) {
	defs := sc.lookupMixins(n.name)
	if len(defs) == 0 {
		return nil, nil, c.nodeErr(n, fmt.Errorf("undefined mixin %s", n.name))
	}

	var positional []string
	named := make(map[string]string)
	for _, a := range n.args {
		val := a
		if m := varDeclRe.FindStringSubmatch(a); m != nil {
			v, err := c.evalValue(strings.TrimSpace(m[2]), sc)
			if err != nil {
				return nil, nil, c.nodeErr(n, err)
			}
			named[m[1]] = v
			continue
		}
		v, err := c.evalValue(val, sc)
		if err != nil {
			return nil, nil, c.nodeErr(n, err)
		}
		positional = append(positional, v)
	}

	c.depth++
	defer func() { c.depth-- }()
	if c.depth > maxCallDepth {
		return nil, nil, c.nodeErr(n, fmt.Errorf("mixin %s nested too deeply", n.name))
	}

	var decls []decl
	var items []cssItem
	matched := false
	for _, def := range defs {
		callScope, ok := c.bindParams(def, positional, named)
		if !ok {
			continue
		}
		matched = true
		d, it, err := c.eval(def.n.body, callScope, sels, allowBare)
		if err != nil {
			return nil, nil, err
		}
		if n.important {
			for i := range d {
				if !strings.HasSuffix(d[i].text, "!important") {
					d[i].text += " !important"
				}
			}
		}
		decls = append(decls, d...)
		items = append(items, it...)
	}
	if !matched {
		return nil, nil, c.nodeErr(n, fmt.Errorf("no definition of %s matches %d arguments", n.name, len(n.args)))
	}
	return decls, items, nil
}

// bindParams returns the scope a mixin body is evaluated in, or false when
// the arguments do not fit the definition.
func (c *compiler) bindParams(def mixin, positional []string, named map[string]string) (*scope, bool) {
	callScope := &scope{parent: def.sc, vars: make(map[string]*varDef), mixins: make(map[string][]mixin)}
	if def.n.kind == nodeRule {
		return callScope, len(positional) == 0 && len(named) == 0
	}
	if len(positional) > len(def.n.params) {
		return nil, false
	}

	var all []string
	for i, p := range def.n.params {
		v := &varDef{sc: callScope}
		switch val, ok := named[p.name]; {
		case ok:
			v.val, v.state = val, resolved
		case i < len(positional):
			v.val, v.state = positional[i], resolved
		case p.hasDefault:
			v.n = &node{kind: nodeVar, file: def.n.file, line: def.n.line, name: p.name, value: p.def}
		default:
			return nil, false
		}
		callScope.vars[p.name] = v
	}
	for name := range named {
		if _, ok := callScope.vars[name]; !ok {
			return nil, false
		}
	}
	for _, p := range def.n.params {
		val, err := c.lookupVar(callScope, p.name)
		if err != nil {
			return nil, false
		}
		all = append(all, val)
	}
	callScope.vars["arguments"] = &varDef{state: resolved, val: strings.Join(all, " ")}
	return callScope, true
}

func splitSelectors(s string) []string {
	var out []string
	for _, part := range splitTopLevel(s, ',') {
		part = strings.Join(strings.Fields(part), " ")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinSelectors(parents, children []string) []string {
	var out []string
	if len(parents) == 0 {
		for _, ch := range children {
			out = append(out, strings.TrimSpace(strings.ReplaceAll(ch, "&", "")))
		}
		return out
	}
	for _, p := range parents {
		for _, ch := range children {
			if strings.Contains(ch, "&") {
				out = append(out, strings.ReplaceAll(ch, "&", p))
			} else {
				out = append(out, p+" "+ch)
			}
		}
	}
	return out
}

// writer collects the output and one mapping per generated line.
type writer struct {
	b        strings.Builder
	genLine  int
	mappings []mapping
}

type mapping struct {
	genLine, genCol int
	at              srcPos
}

func (w *writer) line(indent, text string, at srcPos) {
	if at.file != "" && at.line > 0 {
		w.mappings = append(w.mappings, mapping{genLine: w.genLine, genCol: len(indent), at: at})
	}
	w.b.WriteString(indent)
	w.b.WriteString(text)
	w.b.WriteByte('\n')
	w.genLine++
}

type cssItem interface {
	write(w *writer, indent string)
}

type cssRule struct {
	sels  []string
	decls []decl
	at    srcPos
}

func (r *cssRule) write(w *writer, indent string) {
	for i, sel := range r.sels {
		if i < len(r.sels)-1 {
			w.line(indent, sel+",", r.at)
		} else {
			w.line(indent, sel+" {", r.at)
		}
	}
	for _, d := range r.decls {
		w.line(indent+"  ", d.text+";", d.at)
	}
	w.line(indent, "}", r.at)
}

type cssBlock struct {
	head  string
	at    srcPos
	decls []decl
	items []cssItem
}

func (bl *cssBlock) write(w *writer, indent string) {
	w.line(indent, bl.head+" {", bl.at)
	for _, d := range bl.decls {
		w.line(indent+"  ", d.text+";", d.at)
	}
	for _, item := range bl.items {
		item.write(w, indent+"  ")
	}
	w.line(indent, "}", bl.at)
}

// cssRaw is copied through line by line.
type cssRaw struct {
	text string
	at   srcPos
}

func (r *cssRaw) write(w *writer, indent string) {
	s := strings.TrimRight(r.text, "\n")
	for i, line := range strings.Split(s, "\n") {
		at := r.at
		if i > 0 {
			at.line += i
			at.col = 0
		}
		w.line(indent, line, at)
	}
}
