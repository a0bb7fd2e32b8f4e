package transform

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/sjc5/kiln/internal/fileset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyles(t *testing.T) {
	in := fileset.FileSet{
		{Path: "less/style.less", Data: []byte(`@import "variables";
.header {
  color: @brand;
  user-select: none;
}`)},
		{Path: "less/variables.less", Data: []byte("@brand: #1a2b3c;\n")},
	}

	out, err := Styles(StyleOptions{SourceRoot: "../../source"})(in)
	require.NoError(t, err)
	require.Equal(t, []string{StyleOutput, StyleOutput + ".map"}, out.Paths())

	css := string(out[0].Data)
	assert.Contains(t, css, "color:#1a2b3c")
	assert.Contains(t, css, "-webkit-user-select:none")
	assert.Contains(t, css, "user-select:none")
	assert.True(t, strings.HasSuffix(css, "/*# sourceMappingURL=style.min.css.map */\n"))

	assert.NotContains(t, css, "data:application/json", "the compiler's inline map is consumed")

	var sm struct {
		Version        int      `json:"version"`
		Sources        []string `json:"sources"`
		SourcesContent []string `json:"sourcesContent"`
	}
	require.NoError(t, json.Unmarshal(out[1].Data, &sm))
	assert.Equal(t, 3, sm.Version)
	require.Contains(t, sm.Sources, "../../source/less/style.less")
	i := slices.Index(sm.Sources, "../../source/less/style.less")
	require.Len(t, sm.SourcesContent, len(sm.Sources))
	assert.Contains(t, sm.SourcesContent[i], "color: @brand;", "the map points at the LESS, not the compiled CSS")
}

func TestStylesWithLessc(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script")
	}
	dir := t.TempDir()
	lessDir := filepath.Join(dir, "less")
	require.NoError(t, os.MkdirAll(lessDir, 0755))
	entry := filepath.Join(lessDir, "style.less")
	require.NoError(t, os.WriteFile(entry, []byte(".a{}"), 0644))

	argsFile := filepath.Join(dir, "args")
	bin := filepath.Join(dir, "lessc")
	script := "#!/bin/sh\npwd > " + argsFile + "\necho \"$@\" >> " + argsFile + "\necho '.a { color: red; }'\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))

	in := fileset.FileSet{{Path: StyleEntry, Src: entry, Data: []byte(".a{}")}}
	out, err := Styles(StyleOptions{Lessc: bin, SourceRoot: "../../source"})(in)
	require.NoError(t, err)
	assert.Contains(t, string(out[0].Data), ".a{color:red}")

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	wd, err := filepath.EvalSymlinks(lessDir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(lines[0])
	require.NoError(t, err)
	assert.Equal(t, wd, got, "lessc runs next to the entry so map paths are relative to it")
	assert.Equal(t, "--no-color --source-map-inline --source-map-include-source --source-map-rootpath=../../source/less/ style.less", lines[1])
}

func TestStylesErrors(t *testing.T) {
	t.Run("CompileError", func(t *testing.T) {
		in := fileset.FileSet{{Path: StyleEntry, Data: []byte(".a { color: @missing; }")}}
		_, err := Styles(StyleOptions{})(in)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStyleCompile)
		assert.True(t, IsTransformError(err))
		assert.Contains(t, err.Error(), "@missing")
	})

	t.Run("MissingEntry", func(t *testing.T) {
		out, err := Styles(StyleOptions{})(fileset.FileSet{{Path: "less/other.less"}})
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("MissingLessc", func(t *testing.T) {
		in := fileset.FileSet{{Path: StyleEntry, Src: "/nonexistent/style.less", Data: []byte("")}}
		_, err := Styles(StyleOptions{Lessc: "/nonexistent/lessc"})(in)
		assert.ErrorIs(t, err, ErrStyleCompile)
	})
}

var whitespaceRun = regexp.MustCompile(`\s{2,}`)

func TestMarkup(t *testing.T) {
	page := `<!DOCTYPE html>
<html lang="en">
  <head>
    <title>  Hello   world </title>
    <!-- a comment -->
  </head>
  <body>
    <p>
      Some     text
      <a href="x.html">link</a>
    </p>
    <pre>keep   this
  as is</pre>
  </body>
</html>
`
	out, err := Markup(fileset.FileSet{{Path: "index.html", Data: []byte(page)}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "index.html", out[0].Path)

	got := string(out[0].Data)
	assert.Contains(t, got, "<html")
	assert.Contains(t, got, "</body>")
	assert.Contains(t, got, "keep   this\n  as is")
	assert.NotContains(t, got, "a comment")

	outside := regexp.MustCompile(`(?s)<pre>.*?</pre>`).ReplaceAllString(got, "")
	assert.False(t, whitespaceRun.MatchString(outside), "whitespace run in %q", outside)
}

func TestMarkupErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		msg  string
	}{
		{"StrayEndTag", []byte("<html><body>\n<p>hi</div></body></html>"), "line 2: stray end tag </div>"},
		{"InvalidUTF8", []byte("<p>\xff\xfe</p>"), "invalid UTF-8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Markup(fileset.FileSet{
				{Path: "ok.html", Data: []byte("<p>fine</p>")},
				{Path: "bad.html", Data: tt.data},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMarkup)
			assert.Contains(t, err.Error(), "bad.html")
			assert.Contains(t, err.Error(), tt.msg)
			assert.NotContains(t, err.Error(), "ok.html")
		})
	}
}

func TestMarkupImpliedEndTags(t *testing.T) {
	_, err := Markup(fileset.FileSet{{Path: "list.html", Data: []byte("<ul><li>a<li>b</ul><br></br>")}})
	assert.NoError(t, err)
}

func TestScript(t *testing.T) {
	src := `// greet the user
function greet(name) {
  var message = "Hello, " + name;
  console.log(message);
}
greet("world");
`
	out, err := Script(fileset.FileSet{{Path: ScriptEntry, Data: []byte(src)}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, ScriptOutput, out[0].Path)
	assert.Less(t, len(out[0].Data), len(src))
	assert.NotContains(t, string(out[0].Data), "greet the user")

	_, err = Script(fileset.FileSet{{Path: ScriptEntry, Data: []byte("function (")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScript)

	out, err = Script(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCopy(t *testing.T) {
	in := fileset.FileSet{{Path: "img/a.png", Src: "/src/img/a.png"}}
	out, err := Copy(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

const (
	iconClose = `<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24" viewBox="0 0 24 24">
  <path d="M6 6 L18 18" stroke="#000" stroke-width="2" fill="none" fill-rule="evenodd"/>
</svg>`
	iconMenu = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 32 16">
  <rect width="32" height="2" stroke="none" stroke-linecap="round"/>
</svg>`
	iconSized = `<svg xmlns="http://www.w3.org/2000/svg" width="10px" height="20px"><circle cx="5" cy="5" r="4"/></svg>`
)

func TestSprite(t *testing.T) {
	in := fileset.FileSet{
		{Path: "img/icon/menu.svg", Data: []byte(iconMenu)},
		{Path: "img/icon/close.svg", Data: []byte(iconClose)},
		{Path: "img/icon/dot.svg", Data: []byte(iconSized)},
	}
	out, err := Sprite(in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, SpriteOutput, out[0].Path)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out[0].Data))
	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "svg", root.Tag)
	assert.Equal(t, "display:none", root.SelectAttrValue("style", ""))
	assert.Equal(t, "http://www.w3.org/1999/xlink", root.SelectAttrValue("xmlns:xlink", ""))

	symbols := root.ChildElements()
	require.Len(t, symbols, len(in))

	var ids []string
	for _, s := range symbols {
		assert.Equal(t, "symbol", s.Tag)
		assert.Nil(t, s.SelectAttr("width"))
		ids = append(ids, s.SelectAttrValue("id", ""))
	}
	assert.Equal(t, []string{"close", "dot", "menu"}, ids)
	assert.Equal(t, "0 0 24 24", symbols[0].SelectAttrValue("viewBox", ""))
	assert.Equal(t, "0 0 10 20", symbols[1].SelectAttrValue("viewBox", ""))
	assert.Equal(t, "0 0 32 16", symbols[2].SelectAttrValue("viewBox", ""))

	rect := symbols[2].ChildElements()[0]
	assert.Nil(t, rect.SelectAttr("stroke"))
	assert.Nil(t, rect.SelectAttr("stroke-linecap"))

	path := symbols[0].ChildElements()[0]
	assert.Nil(t, path.SelectAttr("fill-rule"))
	assert.Equal(t, "none", path.SelectAttrValue("fill", ""))
}

func TestSpriteIsDeterministic(t *testing.T) {
	a := fileset.FileSet{
		{Path: "img/icon/close.svg", Data: []byte(iconClose)},
		{Path: "img/icon/menu.svg", Data: []byte(iconMenu)},
	}
	b := fileset.FileSet{a[1], a[0]}
	outA, err := Sprite(a)
	require.NoError(t, err)
	outB, err := Sprite(b)
	require.NoError(t, err)
	assert.Equal(t, outA[0].Data, outB[0].Data)
}

func TestSpriteMalformedIcon(t *testing.T) {
	_, err := Sprite(fileset.FileSet{
		{Path: "img/icon/close.svg", Data: []byte(iconClose)},
		{Path: "img/icon/broken.svg", Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"><path d="M0 0"></svg>`)},
		{Path: "img/icon/png.svg", Data: []byte(`<html></html>`)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIcon)
	assert.True(t, IsTransformError(err))
	assert.Contains(t, err.Error(), "img/icon/broken.svg")
	assert.Contains(t, err.Error(), "img/icon/png.svg")

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ErrIcon, terr.Kind)
}
