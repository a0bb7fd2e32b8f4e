package transform

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/sjc5/kiln/internal/fileset"
	"github.com/tdewolff/minify/v2"
)

const svgNamespace = "http://www.w3.org/2000/svg"

// attributes dropped from an icon root when it becomes a symbol
var droppedRootAttrs = []string{"width", "height", "x", "y", "version", "baseProfile", "style", "class"}

// Sprite merges every icon into one hidden sprite. Each icon becomes a
// <symbol> whose id is the file's base name and which keeps the icon's
// original viewBox. Symbols are ordered by file name.
func Sprite(in fileset.FileSet) (fileset.FileSet, error) {
	if len(in) == 0 {
		return nil, nil
	}

	icons := append(fileset.FileSet(nil), in...)
	sort.Slice(icons, func(i, j int) bool { return icons[i].Path < icons[j].Path })

	m := newMinifier()
	namespaces := make(map[string]string)
	var symbols []*etree.Element
	var errs []error
	for _, f := range icons {
		sym, err := iconSymbol(m, f, namespaces)
		if err != nil {
			errs = append(errs, &Error{Kind: ErrIcon, Path: f.Path, Err: err})
			continue
		}
		symbols = append(symbols, sym)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("svg")
	root.CreateAttr("xmlns", svgNamespace)
	prefixes := make([]string, 0, len(namespaces))
	for p := range namespaces {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		root.CreateAttr("xmlns:"+p, namespaces[p])
	}
	root.CreateAttr("style", "display:none")
	for _, sym := range symbols {
		root.AddChild(sym)
	}

	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, &Error{Kind: ErrIcon, Path: SpriteOutput, Err: err}
	}
	return fileset.FileSet{{Path: SpriteOutput, Data: data}}, nil
}

func iconSymbol(m *minify.M, f fileset.File, namespaces map[string]string) (*etree.Element, error) {
	orig, err := parseSVG(f.Data)
	if err != nil {
		return nil, err
	}
	viewBox := orig.SelectAttrValue("viewBox", "")
	if viewBox == "" {
		viewBox = viewBoxFromSize(orig)
	}
	for _, a := range orig.Attr {
		if a.Space == "xmlns" {
			namespaces[a.Key] = a.Value
		}
	}

	minified, err := m.Bytes(mimeSVG, f.Data)
	if err != nil {
		return nil, err
	}
	sym, err := parseSVG(minified)
	if err != nil {
		return nil, fmt.Errorf("minified output: %w", err)
	}
	removeUselessStrokeAndFill(sym, false)

	sym.Tag = "symbol"
	sym.Space = ""
	for _, a := range append([]etree.Attr(nil), sym.Attr...) {
		if a.Space == "xmlns" || a.Space == "" && a.Key == "xmlns" {
			sym.RemoveAttr(a.FullKey())
		}
	}
	for _, k := range droppedRootAttrs {
		sym.RemoveAttr(k)
	}
	sym.RemoveAttr("viewBox")
	sym.RemoveAttr("id")

	attrs := sym.Attr
	sym.Attr = nil
	sym.CreateAttr("id", strings.TrimSuffix(path.Base(f.Path), path.Ext(f.Path)))
	if viewBox != "" {
		sym.CreateAttr("viewBox", viewBox)
	}
	sym.Attr = append(sym.Attr, attrs...)
	return sym, nil
}

func parseSVG(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return nil, errors.New("root element is not <svg>")
	}
	return root, nil
}

func viewBoxFromSize(e *etree.Element) string {
	w, errW := strconv.ParseFloat(strings.TrimSuffix(e.SelectAttrValue("width", ""), "px"), 64)
	h, errH := strconv.ParseFloat(strings.TrimSuffix(e.SelectAttrValue("height", ""), "px"), 64)
	if errW != nil || errH != nil {
		return ""
	}
	return "0 0 " + strconv.FormatFloat(w, 'f', -1, 64) + " " + strconv.FormatFloat(h, 'f', -1, 64)
}

// removeUselessStrokeAndFill strips stroke attributes from elements that
// draw no stroke and fill attributes from elements that draw no fill.
// inheritedStroke reports whether an ancestor sets a visible stroke.
func removeUselessStrokeAndFill(e *etree.Element, inheritedStroke bool) {
	stroke := e.SelectAttrValue("stroke", "")
	noStroke := stroke == "none" ||
		e.SelectAttrValue("stroke-width", "") == "0" ||
		e.SelectAttrValue("stroke-opacity", "") == "0"
	if e.SelectAttr("id") == nil {
		if noStroke {
			removeAttrsWithPrefix(e, "stroke")
			if inheritedStroke {
				e.CreateAttr("stroke", "none")
			}
		}
		fill := e.SelectAttrValue("fill", "")
		if fill == "none" || e.SelectAttrValue("fill-opacity", "") == "0" {
			removeAttrsWithPrefix(e, "fill-")
			e.CreateAttr("fill", "none")
		}
	}

	childStroke := inheritedStroke
	if stroke != "" {
		childStroke = !noStroke
	}
	for _, child := range e.ChildElements() {
		removeUselessStrokeAndFill(child, childStroke)
	}
}

func removeAttrsWithPrefix(e *etree.Element, prefix string) {
	kept := e.Attr[:0]
	for _, a := range e.Attr {
		if a.Space == "" && strings.HasPrefix(a.Key, prefix) {
			continue
		}
		kept = append(kept, a)
	}
	e.Attr = kept
}
