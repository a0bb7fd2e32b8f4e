package ik

import (
	"github.com/sjc5/kiln/internal/fileset"
	"github.com/sjc5/kiln/internal/transform"
)

// Stage names, as used by the CLI and in StageError.
const (
	StageClean      = "clean"
	StageStyles     = "styles"
	StageCopy       = "copy"
	StageSprite     = "sprite"
	StageMinifyJS   = "minifyJs"
	StageMinifyHTML = "minifyHtml"
	StageBuild      = "build"
)

// Source globs, relative to the source tree.
const (
	markupGlob     = "*.html"
	styleWatchGlob = "less/**/*.less"
	iconGlob       = "img/icon/*.svg"
)

var copyGlobs = []string{"img/*.{png,jpg,svg}", "fonts/*.{woff,woff2}"}

type stage struct {
	name     string
	patterns []string

	// refsOnly stages copy files without loading them.
	refsOnly  bool
	transform transform.Func
}

func (c *Config) stages() map[string]stage {
	return map[string]stage{
		StageStyles: {
			name:     StageStyles,
			patterns: []string{styleWatchGlob},
			transform: transform.Styles(transform.StyleOptions{
				Engines:    c.StyleEngines,
				SourceRoot: c.styleSourceRoot(),
				Lessc:      c.Lessc,
			}),
		},
		StageMinifyHTML: {
			name:      StageMinifyHTML,
			patterns:  []string{markupGlob},
			transform: transform.Markup,
		},
		StageMinifyJS: {
			name:      StageMinifyJS,
			patterns:  []string{transform.ScriptEntry},
			transform: transform.Script,
		},
		StageCopy: {
			name:      StageCopy,
			patterns:  copyGlobs,
			refsOnly:  true,
			transform: transform.Copy,
		},
		StageSprite: {
			name:      StageSprite,
			patterns:  []string{iconGlob},
			transform: transform.Sprite,
		},
	}
}

func (st stage) read(root string) (fileset.FileSet, error) {
	if st.refsOnly {
		return fileset.Refs(root, st.patterns...)
	}
	return fileset.Read(root, st.patterns...)
}
