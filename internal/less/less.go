// Package less compiles the subset of LESS that hand-written site
// stylesheets rely on into plain CSS: imports, variables (lazy, scoped,
// last definition wins), string and selector interpolation, nested rules
// with the & parent selector, nested media queries, mixins with optional
// parameters and defaults, escaping, unit and color arithmetic and the
// core color and math functions.
//
// Guards, extend and detached rulesets are compile errors, as are the LESS
// functions outside that core. Other functions are CSS and pass through to
// the output untouched.
package less

import "fmt"

// Loader returns the contents of a slash-separated path relative to the
// stylesheet root.
type Loader func(name string) ([]byte, error)

type Result struct {
	CSS string

	// Sources lists every file read, entry first.
	Sources []string

	contents []string
	mappings []mapping
}

type Error struct {
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

const maxCallDepth = 64

type compiler struct {
	load     Loader
	seen     map[string]bool
	sources  []string
	contents []string
	hoisted  []decl
	depth    int
}

func (c *compiler) addSource(name string, data []byte) {
	if c.seen[name] {
		return
	}
	c.seen[name] = true
	c.sources = append(c.sources, name)
	c.contents = append(c.contents, string(data))
}

// Compile reads entry through load and returns the compiled CSS.
func Compile(entry string, load Loader) (*Result, error) {
	c := &compiler{load: load, seen: make(map[string]bool)}

	data, err := load(entry)
	if err != nil {
		return nil, &Error{File: entry, Msg: err.Error()}
	}
	c.addSource(entry, data)

	nodes, err := c.parse(entry, data)
	if err != nil {
		return nil, err
	}

	_, items, err := c.eval(nodes, nil, nil, false)
	if err != nil {
		return nil, err
	}

	w := &writer{}
	for _, h := range c.hoisted {
		w.line("", h.text+";", h.at)
	}
	for _, item := range items {
		item.write(w, "")
	}
	return &Result{CSS: w.b.String(), Sources: c.sources, contents: c.contents, mappings: w.mappings}, nil
}

// CompileString compiles a single self-contained stylesheet.
func CompileString(name, src string) (string, error) {
	res, err := Compile(name, func(p string) ([]byte, error) {
		if p == name {
			return []byte(src), nil
		}
		return nil, fmt.Errorf("file not found")
	})
	if err != nil {
		return "", err
	}
	return res.CSS, nil
}
