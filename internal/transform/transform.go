// Package transform holds the file transforms behind each build stage. A
// transform takes the files a stage read from the source tree and returns
// the files to write under the build tree, with paths relative to it.
// Transforms never touch the filesystem, except the external lessc
// compiler which reads its entry from disk.
package transform

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/sjc5/kiln/internal/fileset"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

type Func func(in fileset.FileSet) (fileset.FileSet, error)

var (
	ErrStyleCompile = errors.New("style compile error")
	ErrMarkup       = errors.New("markup error")
	ErrScript       = errors.New("script error")
	ErrIcon         = errors.New("icon error")
)

const (
	StyleEntry   = "less/style.less"
	StyleOutput  = "css/style.min.css"
	ScriptEntry  = "js/script.js"
	ScriptOutput = "js/script.min.js"
	SpriteOutput = "img/sprite.svg"
)

const (
	mimeCSS  = "text/css"
	mimeHTML = "text/html"
	mimeJS   = "application/javascript"
	mimeSVG  = "image/svg+xml"
)

// Error reports a transform failure for one input file. errors.Is matches
// both Kind and the underlying error.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v in %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// IsTransformError reports whether err came from bad input rather than
// from the filesystem.
func IsTransformError(err error) bool {
	return errors.Is(err, ErrStyleCompile) ||
		errors.Is(err, ErrMarkup) ||
		errors.Is(err, ErrScript) ||
		errors.Is(err, ErrIcon)
}

var jsMimeRe = regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`)

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mimeCSS, css.Minify)
	m.AddFunc(mimeSVG, svg.Minify)
	m.AddFuncRegexp(jsMimeRe, js.Minify)
	m.Add(mimeHTML, &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
	})
	return m
}

// Copy passes files through unchanged.
func Copy(in fileset.FileSet) (fileset.FileSet, error) {
	return in, nil
}
