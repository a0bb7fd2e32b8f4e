package transform

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/sjc5/kiln/internal/fileset"
	"github.com/sjc5/kiln/internal/less"
)

// DefaultEngines is the browser support matrix used for vendor prefixing.
var DefaultEngines = []api.Engine{
	{Name: api.EngineChrome, Version: "80"},
	{Name: api.EngineEdge, Version: "88"},
	{Name: api.EngineFirefox, Version: "78"},
	{Name: api.EngineSafari, Version: "13"},
	{Name: api.EngineIOS, Version: "13"},
}

type StyleOptions struct {
	// Engines drives vendor prefixing and syntax lowering. Defaults to
	// DefaultEngines.
	Engines []api.Engine

	// SourceRoot is prepended to source paths in the source map so that
	// they resolve from the directory of the output stylesheet.
	SourceRoot string

	// Lessc, if set, is the path of an external lessc binary used in place
	// of the built-in compiler.
	Lessc string
}

// Styles compiles the LESS entry among in and post-processes the result
// with esbuild. It returns the minified stylesheet and its source map, or
// nothing if the entry is missing.
func Styles(opts StyleOptions) Func {
	engines := opts.Engines
	if len(engines) == 0 {
		engines = DefaultEngines
	}

	return func(in fileset.FileSet) (fileset.FileSet, error) {
		entry, ok := in.Lookup(StyleEntry)
		if !ok {
			return nil, nil
		}

		var src string
		var err error
		if opts.Lessc != "" {
			src, err = execLessc(opts.Lessc, entry, opts.SourceRoot)
		} else {
			src, err = compileLess(in, opts.SourceRoot)
		}
		if err != nil {
			return nil, &Error{Kind: ErrStyleCompile, Path: StyleEntry, Err: err}
		}

		result := api.Transform(src, api.TransformOptions{
			Loader:           api.LoaderCSS,
			Engines:          engines,
			MinifyWhitespace: true,
			MinifySyntax:     true,
			Sourcemap:        api.SourceMapExternal,
			Sourcefile:       path.Join(opts.SourceRoot, StyleEntry),
			LegalComments:    api.LegalCommentsNone,
			LogLevel:         api.LogLevelSilent,
			SourcesContent:   api.SourcesContentInclude,
		})
		if len(result.Errors) > 0 {
			return nil, &Error{Kind: ErrStyleCompile, Path: StyleEntry, Err: esbuildError(result.Errors)}
		}

		code := bytes.TrimRight(result.Code, "\n")
		code = append(code, "\n/*# sourceMappingURL="+path.Base(StyleOutput)+".map */\n"...)

		return fileset.FileSet{
			{Path: StyleOutput, Data: code},
			{Path: StyleOutput + ".map", Data: result.Map},
		}, nil
	}
}

// compileLess returns the CSS with its source map inlined, for esbuild to
// chain onto the map of the minified output.
func compileLess(in fileset.FileSet, sourceRoot string) (string, error) {
	res, err := less.Compile(StyleEntry, func(name string) ([]byte, error) {
		f, ok := in.Lookup(name)
		if !ok {
			return nil, errors.New("file not found")
		}
		return f.Data, nil
	})
	if err != nil {
		return "", err
	}
	sm, err := res.SourceMap(sourceRoot)
	if err != nil {
		return "", err
	}
	return res.CSS + less.InlineSourceMapComment(sm) + "\n", nil
}

func execLessc(bin string, entry fileset.File, sourceRoot string) (string, error) {
	if entry.Src == "" {
		return "", errors.New("lessc needs the entry on disk")
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(bin,
		"--no-color",
		"--source-map-inline",
		"--source-map-include-source",
		"--source-map-rootpath="+path.Join(sourceRoot, path.Dir(StyleEntry))+"/",
		filepath.Base(entry.Src),
	)
	cmd.Dir = filepath.Dir(entry.Src)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w", msg, err)
		}
		return "", err
	}
	return stdout.String(), nil
}

func esbuildError(msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			errs = append(errs, fmt.Errorf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		errs = append(errs, errors.New(m.Text))
	}
	return errors.Join(errs...)
}
