package transform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/sjc5/kiln/internal/fileset"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Markup collapses whitespace in every HTML page. Document and end tags
// are kept and comments are dropped.
func Markup(in fileset.FileSet) (fileset.FileSet, error) {
	m := newMinifier()
	out := make(fileset.FileSet, 0, len(in))
	var errs []error
	for _, f := range in {
		if err := checkMarkup(f.Data); err != nil {
			errs = append(errs, &Error{Kind: ErrMarkup, Path: f.Path, Err: err})
			continue
		}
		data, err := m.Bytes(mimeHTML, f.Data)
		if err != nil {
			errs = append(errs, &Error{Kind: ErrMarkup, Path: f.Path, Err: err})
			continue
		}
		out = append(out, fileset.File{Path: f.Path, Data: data})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

var voidElements = map[atom.Atom]bool{
	atom.Area:   true,
	atom.Base:   true,
	atom.Br:     true,
	atom.Col:    true,
	atom.Embed:  true,
	atom.Hr:     true,
	atom.Img:    true,
	atom.Input:  true,
	atom.Link:   true,
	atom.Meta:   true,
	atom.Source: true,
	atom.Track:  true,
	atom.Wbr:    true,
}

// checkMarkup rejects input that the lenient minifier would silently
// repair: invalid UTF-8 and end tags that close nothing.
func checkMarkup(data []byte) error {
	if !utf8.Valid(data) {
		return errors.New("invalid UTF-8")
	}

	var open []string
	line := 1
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		tt := z.Next()
		raw := z.Raw()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if !voidElements[atom.Lookup(name)] {
				open = append(open, string(name))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			i := len(open) - 1
			for i >= 0 && open[i] != string(name) {
				i--
			}
			if i < 0 {
				if !voidElements[atom.Lookup(name)] {
					return fmt.Errorf("line %d: stray end tag </%s>", line, name)
				}
			} else {
				open = open[:i]
			}
		}
		line += bytes.Count(raw, []byte("\n"))
	}
}
