package less

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLoader(files map[string]string) Loader {
	return func(name string) ([]byte, error) {
		src, ok := files[name]
		if !ok {
			return nil, errors.New("file not found")
		}
		return []byte(src), nil
	}
}

func compact(css string) string {
	return strings.Join(strings.Fields(css), " ")
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "Variables",
			src:  "@brand: #1a2b3c;\n.header { color: @brand; }",
			want: ".header { color: #1a2b3c; }",
		},
		{
			name: "LazyLastDefinitionWins",
			src:  ".a { width: @w; }\n@w: 10px;\n@w: 20px;",
			want: ".a { width: 20px; }",
		},
		{
			name: "ScopedVariables",
			src:  "@c: red;\n.a { @c: blue; color: @c; }\n.b { color: @c; }",
			want: ".a { color: blue; } .b { color: red; }",
		},
		{
			name: "Nesting",
			src:  ".nav { color: red; a { color: blue; &:hover { color: green; } } }",
			want: ".nav { color: red; } .nav a { color: blue; } .nav a:hover { color: green; }",
		},
		{
			name: "SelectorLists",
			src:  ".a, .b { .c, .d { top: 0; } }",
			want: ".a .c, .a .d, .b .c, .b .d { top: 0; }",
		},
		{
			name: "ParentSuffix",
			src:  ".btn { &--primary { color: red; } }",
			want: ".btn--primary { color: red; }",
		},
		{
			name: "NestedMedia",
			src:  "@tablet: ~\"(min-width: 768px)\";\n.a { width: 100%; @media @tablet { width: 50%; } }",
			want: ".a { width: 100%; } @media (min-width: 768px) { .a { width: 50%; } }",
		},
		{
			name: "Interpolation",
			src:  "@name: banner;\n@dir: \"../img\";\n.@{name} { background: url(\"@{dir}/bg.png\"); }",
			want: ".banner { background: url(\"../img/bg.png\"); }",
		},
		{
			name: "Arithmetic",
			src:  "@gap: 10px;\n.a { margin: @gap * 2 (@gap / 2); width: @gap + 5; padding: 0 -1px; }",
			want: ".a { margin: 20px 5px; width: 15px; padding: 0 -1px; }",
		},
		{
			name: "SlashKeptOutsideParens",
			src:  ".a { font: 12px/1.5 Arial, sans-serif; }",
			want: ".a { font: 12px/1.5 Arial, sans-serif; }",
		},
		{
			name: "CalcVerbatim",
			src:  "@w: 10px;\n.a { width: calc(100% - @w * 2); }",
			want: ".a { width: calc(100% - 10px * 2); }",
		},
		{
			name: "Escape",
			src:  ".a { filter: ~\"ms:alwaysHasItsOwnSyntax.For.Stuff()\"; }",
			want: ".a { filter: ms:alwaysHasItsOwnSyntax.For.Stuff(); }",
		},
		{
			name: "RuleAsMixin",
			src:  ".bordered { border: 1px solid; }\n.box { .bordered; color: red; }",
			want: ".bordered { border: 1px solid; } .box { border: 1px solid; color: red; }",
		},
		{
			name: "ParametricMixin",
			src:  ".size(@w; @h: @w) { width: @w; height: @h; }\n.a { .size(10px); }\n.b { .size(1px, 2px) !important; }",
			want: ".a { width: 10px; height: 10px; } .b { width: 1px !important; height: 2px !important; }",
		},
		{
			name: "MixinArguments",
			src:  ".shadow(@x: 0; @y: 0; @c: #000) { box-shadow: @arguments; }\n.a { .shadow(2px; 4px); }",
			want: ".a { box-shadow: 2px 4px #000; }",
		},
		{
			name: "FontFaceAndKeyframes",
			src:  "@font-face { font-family: X; src: url(x.woff2); }\n@keyframes spin { from { opacity: 0; } to { opacity: 1; } }",
			want: "@font-face { font-family: X; src: url(x.woff2); } @keyframes spin { from { opacity: 0; } to { opacity: 1; } }",
		},
		{
			name: "Comments",
			src:  "// line\n/* block */\n.a { color: red; // trailing\n background: url(http://x/y.png); }",
			want: ".a { color: red; background: url(http://x/y.png); }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompileString("style.less", tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, compact(got))
		})
	}
}

func TestColors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"Darken", "@c: #ffffff;\n.a { color: darken(@c, 20%); }", ".a { color: #cccccc; }"},
		{"DarkenNamed", ".a { color: darken(red, 10%); }", ".a { color: #cc0000; }"},
		{"Lighten", ".a { color: lighten(#000, 20%); }", ".a { color: #333333; }"},
		{"Fade", ".a { color: fade(#000000, 50%); }", ".a { color: rgba(0, 0, 0, 0.5); }"},
		{"Spin", ".a { color: spin(#ff0000, 120); }", ".a { color: #00ff00; }"},
		{"Mix", ".a { color: mix(#000000, #ffffff, 40%); }", ".a { color: #999999; }"},
		{"Contrast", ".a { color: contrast(#ffffff); background: contrast(#000); }", ".a { color: #000000; background: #ffffff; }"},
		{"Constructors", ".a { color: rgb(255, 0, 0); background: rgba(0, 0, 0, .5); }", ".a { color: #ff0000; background: rgba(0, 0, 0, 0.5); }"},
		{"Channels", ".a { x: red(#102030); y: alpha(fade(#000, 25%)); }", ".a { x: 16; y: 0.25; }"},
		{"AddColors", ".a { color: #111111 + #222222; }", ".a { color: #333333; }"},
		{"SubtractFromVariable", "@c: #ffffff;\n.a { color: @c - #111111; }", ".a { color: #eeeeee; }"},
		{"MultiplyByNumber", ".a { color: (#333 * 2); }", ".a { color: #666666; }"},
		{"Math", ".a { w: percentage(0.5); h: round(1.67, 1); m: unit(5, px); n: min(10px, 20px); }", ".a { w: 50%; h: 1.7; m: 5px; n: 10px; }"},
		{"CSSFunctionsPassThrough", ".a { filter: contrast(150%) saturate(2); width: min(100%, 500px); color: rgb(0 0 0 / 50%); }", ".a { filter: contrast(150%) saturate(2); width: min(100%, 500px); color: rgb(0 0 0 / 50%); }"},
		{"UntouchedColorsKeepSpelling", ".a { color: Red; border: 1px solid #ABC; }", ".a { color: Red; border: 1px solid #ABC; }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompileString("style.less", tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, compact(got))
		})
	}
}

func TestImports(t *testing.T) {
	res, err := Compile("less/style.less", mapLoader(map[string]string{
		"less/style.less": `@import "variables";
@import (css) "reset.css";
@import "blocks/header.less";
@import "variables";`,
		"less/variables.less":    "@brand: #1a2b3c;",
		"less/blocks/header.less": `@import "../variables";
.header { color: @brand; user-select: none; }`,
	}))
	require.NoError(t, err)
	assert.Equal(t, `@import "reset.css"; .header { color: #1a2b3c; user-select: none; }`, compact(res.CSS))
	assert.Equal(t, []string{"less/style.less", "less/variables.less", "less/blocks/header.less"}, res.Sources)
}

func TestSourceMap(t *testing.T) {
	files := map[string]string{
		"less/style.less":     "@import \"variables\";\n.a {\n  color: @brand;\n}\n",
		"less/variables.less": "@brand: #123;",
	}
	res, err := Compile("less/style.less", mapLoader(files))
	require.NoError(t, err)
	assert.Equal(t, ".a {\n  color: #123;\n}\n", res.CSS)

	raw, err := res.SourceMap("../src")
	require.NoError(t, err)

	var sm struct {
		Version        int      `json:"version"`
		Sources        []string `json:"sources"`
		SourcesContent []string `json:"sourcesContent"`
		Mappings       string   `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(raw, &sm))
	assert.Equal(t, 3, sm.Version)
	assert.Equal(t, []string{"../src/less/style.less", "../src/less/variables.less"}, sm.Sources)
	assert.Equal(t, []string{files["less/style.less"], files["less/variables.less"]}, sm.SourcesContent)
	// .a { at 2:0, color at 3:2, } back at the rule
	assert.Equal(t, "AACA;EACE;AADF", sm.Mappings)

	comment := InlineSourceMapComment(raw)
	require.True(t, strings.HasPrefix(comment, "/*# sourceMappingURL=data:application/json;base64,"))
	encoded := strings.TrimSuffix(strings.TrimPrefix(comment, "/*# sourceMappingURL=data:application/json;base64,"), " */")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(decoded))
}

func TestSourceMapFollowsMixins(t *testing.T) {
	src := ".m() {\n  margin: 0;\n}\n.a { .m(); }\n"
	res, err := Compile("s.less", mapLoader(map[string]string{"s.less": src}))
	require.NoError(t, err)
	require.Len(t, res.mappings, 3)
	assert.Equal(t, srcPos{file: "s.less", line: 4, col: 0}, res.mappings[0].at)
	assert.Equal(t, srcPos{file: "s.less", line: 2, col: 2}, res.mappings[1].at, "declarations map to the mixin body")
}

func TestImportOptions(t *testing.T) {
	files := map[string]string{
		"style.less": `@import (optional) "missing";
@import (inline) "raw.css";`,
		"raw.css": ".raw{a:b}",
	}
	res, err := Compile("style.less", mapLoader(files))
	require.NoError(t, err)
	assert.Equal(t, ".raw{a:b}", compact(res.CSS))

	_, err = Compile("style.less", mapLoader(map[string]string{"style.less": `@import "missing";`}))
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "style.less", lerr.File)
	assert.Equal(t, 1, lerr.Line)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"UndefinedVariable", ".a {\n  color: @nope;\n}", 2, "@nope is undefined"},
		{"RecursiveVariable", "@a: @b;\n@b: @a;\n.x { y: @a; }", 2, "recursive"},
		{"MissingBrace", ".a {\n  color: red;\n", 3, "missing closing '}'"},
		{"StrayBrace", ".a { color: red; }\n}", 2, "unexpected '}'"},
		{"TopLevelDeclaration", "color: red;", 1, "outside of a rule"},
		{"UndefinedMixin", ".a { .nope; }", 1, "undefined mixin"},
		{"ArgumentMismatch", ".m(@a) { x: @a; }\n.b { .m(1; 2); }", 2, "no definition"},
		{"Guards", ".m(@a) when (@a > 0) { x: @a; }", 1, "guards"},
		{"RunawayRecursion", ".a { .a; }", 1, "nested too deeply"},
		{"MissingColon", ".a { color red; }", 1, "expected declaration"},
		{"DivisionByZero", ".a { w: (1px / 0); }", 1, "division by zero"},
		{"ColorDivisionByZero", ".a {\n  color: (#fff / 0);\n}", 2, "division by zero"},
		{"ColorFunctionOnNumber", ".a { color: darken(1px, 10%); }", 1, "invalid arguments to darken"},
		{"UnsupportedFunction", ".a {\n  b: if(true, 1, 2);\n}", 2, "function if is not supported"},
		{"ExtendSelector", ".b { color: red; }\n.a:extend(.b) { margin: 0; }", 2, "extend is not supported"},
		{"ExtendStatement", ".a {\n  &:extend(.b);\n}", 2, "extend is not supported"},
		{"ExtendBareStatement", ".a:extend(.b);", 1, "extend is not supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString("style.less", tt.src)
			var lerr *Error
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, tt.line, lerr.Line)
			assert.Contains(t, lerr.Msg, tt.msg)
		})
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	src := ".a { .b { c: d; } @media print { e: f; } }"
	first, err := CompileString("s.less", src)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := CompileString("s.less", src)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
