package less

import (
	"fmt"
	"math"
	"strings"
)

type builtin struct {
	min, max int
	// lessOnly functions have no CSS meaning, so arguments they cannot
	// handle are an error instead of passing through to the output.
	lessOnly bool
	fn       func(args []token) (token, bool)
}

// LESS functions that are recognised but not implemented. Calling one is a
// compile error rather than silently emitting it into the stylesheet.
var unsupportedFuncs = map[string]bool{}

func init() {
	for _, name := range strings.Fields(`if boolean each range extract length replace escape
		svg-gradient data-uri image-size image-width image-height convert get-unit
		iscolor isnumber isstring iskeyword isurl ispixel isem ispercentage isunit isruleset isdefined
		argb hsv hsva hsvhue hsvsaturation hsvvalue luminance
		multiply screen overlay softlight hardlight difference exclusion average negation`) {
		unsupportedFuncs[name] = true
	}
}

var builtins = map[string]builtin{
	"rgb":  {min: 3, max: 3, fn: fnRGB},
	"rgba": {min: 4, max: 4, fn: fnRGB},
	"hsl":  {min: 3, max: 3, fn: fnHSL},
	"hsla": {min: 4, max: 4, fn: fnHSL},

	"lighten":    {min: 2, max: 2, lessOnly: true, fn: adjustHSL(func(h, s, l, amt float64) (float64, float64, float64) { return h, s, l + amt })},
	"darken":     {min: 2, max: 2, lessOnly: true, fn: adjustHSL(func(h, s, l, amt float64) (float64, float64, float64) { return h, s, l - amt })},
	"saturate":   {min: 2, max: 2, fn: adjustHSL(func(h, s, l, amt float64) (float64, float64, float64) { return h, s + amt, l })},
	"desaturate": {min: 2, max: 2, lessOnly: true, fn: adjustHSL(func(h, s, l, amt float64) (float64, float64, float64) { return h, s - amt, l })},
	"fadein":     {min: 2, max: 2, lessOnly: true, fn: adjustAlpha(func(a, amt float64) float64 { return a + amt })},
	"fadeout":    {min: 2, max: 2, lessOnly: true, fn: adjustAlpha(func(a, amt float64) float64 { return a - amt })},
	"fade":       {min: 2, max: 2, lessOnly: true, fn: adjustAlpha(func(_, amt float64) float64 { return amt })},
	"spin":       {min: 2, max: 2, lessOnly: true, fn: fnSpin},
	"mix":        {min: 2, max: 3, lessOnly: true, fn: fnMix},
	"tint":       {min: 1, max: 2, lessOnly: true, fn: mixWith(color{255, 255, 255, 1})},
	"shade":      {min: 1, max: 2, lessOnly: true, fn: mixWith(color{0, 0, 0, 1})},
	"greyscale":  {min: 1, max: 1, lessOnly: true, fn: fnGreyscale},
	"contrast":   {min: 1, max: 4, fn: fnContrast},

	"red":        {min: 1, max: 1, fn: channel(func(c color) token { return dimToken(c.r, "") })},
	"green":      {min: 1, max: 1, fn: channel(func(c color) token { return dimToken(c.g, "") })},
	"blue":       {min: 1, max: 1, fn: channel(func(c color) token { return dimToken(c.b, "") })},
	"alpha":      {min: 1, max: 1, fn: channel(func(c color) token { return dimToken(c.a, "") })},
	"hue":        {min: 1, max: 1, fn: channel(func(c color) token { h, _, _ := c.hsl(); return dimToken(h, "") })},
	"saturation": {min: 1, max: 1, fn: channel(func(c color) token { _, s, _ := c.hsl(); return dimToken(s*100, "%") })},
	"lightness":  {min: 1, max: 1, fn: channel(func(c color) token { _, _, l := c.hsl(); return dimToken(l*100, "%") })},
	"luma":       {min: 1, max: 1, fn: channel(func(c color) token { return dimToken(c.luma()*c.a*100, "%") })},

	"percentage": {min: 1, max: 1, lessOnly: true, fn: fnPercentage},
	"round":      {min: 1, max: 2, fn: fnRound},
	"ceil":       {min: 1, max: 1, lessOnly: true, fn: mathFunc(math.Ceil)},
	"floor":      {min: 1, max: 1, lessOnly: true, fn: mathFunc(math.Floor)},
	"abs":        {min: 1, max: 1, fn: mathFunc(math.Abs)},
	"sqrt":       {min: 1, max: 1, fn: mathFunc(math.Sqrt)},
	"pow":        {min: 2, max: 2, fn: binaryMath(math.Pow)},
	"mod":        {min: 2, max: 2, fn: binaryMath(math.Mod)},
	"min":        {min: 1, max: math.MaxInt, fn: extreme(func(a, b float64) bool { return a < b })},
	"max":        {min: 1, max: math.MaxInt, fn: extreme(func(a, b float64) bool { return a > b })},
	"unit":       {min: 1, max: 2, lessOnly: true, fn: fnUnit},
	"e":          {min: 1, max: 1, lessOnly: true, fn: fnEscape},
}

// callFunc evaluates name(args) when name is a known function. ok is false
// when the call should be emitted as plain CSS.
func callFunc(name, args string) (tok token, ok bool, err error) {
	lower := strings.ToLower(name)
	if unsupportedFuncs[lower] {
		return token{}, false, fmt.Errorf("function %s is not supported", name)
	}
	f, found := builtins[lower]
	if !found {
		return token{}, false, nil
	}
	var parts []string
	if strings.TrimSpace(args) != "" {
		parts = splitTopLevel(args, ',')
	}
	if len(parts) >= f.min && len(parts) <= f.max {
		vals := make([]token, len(parts))
		for i, p := range parts {
			if vals[i], err = evalArg(p); err != nil {
				return token{}, false, err
			}
		}
		if tok, ok = f.fn(vals); ok {
			return tok, true, nil
		}
	}
	if f.lessOnly {
		return token{}, false, fmt.Errorf("invalid arguments to %s(%s)", name, strings.TrimSpace(args))
	}
	return token{}, false, nil
}

func evalArg(s string) (token, error) {
	toks, err := evalTokens(s, true)
	if err != nil {
		return token{}, err
	}
	toks = trimSpaceTokens(toks)
	if len(toks) == 1 {
		return toks[0], nil
	}
	return token{kind: tokText, text: joinTokens(toks)}, nil
}

func isColor(t token) bool { return t.kind == tokColor }
func isNum(t token) bool   { return t.kind == tokDim }

// fraction reads 50% and 0.5 alike.
func fraction(t token) float64 {
	if t.unit == "%" {
		return t.num / 100
	}
	return t.num
}

// amount reads the second argument of the adjusting functions, which is a
// percentage whether or not it carries the unit.
func amount(t token) float64 {
	return t.num / 100
}

func fnRGB(args []token) (token, bool) {
	var ch [4]float64
	ch[3] = 1
	for i, a := range args {
		if !isNum(a) {
			return token{}, false
		}
		switch {
		case i == 3:
			ch[3] = fraction(a)
		case a.unit == "%":
			ch[i] = a.num * 255 / 100
		default:
			ch[i] = a.num
		}
	}
	return colorToken(color{ch[0], ch[1], ch[2], clamp(ch[3], 0, 1)}), true
}

func fnHSL(args []token) (token, bool) {
	for _, a := range args {
		if !isNum(a) {
			return token{}, false
		}
	}
	alpha := 1.0
	if len(args) == 4 {
		alpha = fraction(args[3])
	}
	return colorToken(fromHSL(args[0].num, fraction(args[1]), fraction(args[2]), alpha)), true
}

func adjustHSL(f func(h, s, l, amt float64) (float64, float64, float64)) func([]token) (token, bool) {
	return func(args []token) (token, bool) {
		if !isColor(args[0]) || !isNum(args[1]) {
			return token{}, false
		}
		c := args[0].col
		h, s, l := c.hsl()
		h, s, l = f(h, s, l, amount(args[1]))
		return colorToken(fromHSL(h, clamp(s, 0, 1), clamp(l, 0, 1), c.a)), true
	}
}

func adjustAlpha(f func(a, amt float64) float64) func([]token) (token, bool) {
	return func(args []token) (token, bool) {
		if !isColor(args[0]) || !isNum(args[1]) {
			return token{}, false
		}
		c := args[0].col
		c.a = clamp(f(c.a, amount(args[1])), 0, 1)
		return colorToken(c), true
	}
}

func fnSpin(args []token) (token, bool) {
	if !isColor(args[0]) || !isNum(args[1]) {
		return token{}, false
	}
	c := args[0].col
	h, s, l := c.hsl()
	return colorToken(fromHSL(h+args[1].num, s, l, c.a)), true
}

func fnMix(args []token) (token, bool) {
	if !isColor(args[0]) || !isColor(args[1]) {
		return token{}, false
	}
	weight := 0.5
	if len(args) == 3 {
		if !isNum(args[2]) {
			return token{}, false
		}
		weight = amount(args[2])
	}
	return colorToken(mix(args[0].col, args[1].col, weight)), true
}

func mixWith(base color) func([]token) (token, bool) {
	return func(args []token) (token, bool) {
		if !isColor(args[0]) {
			return token{}, false
		}
		weight := 0.5
		if len(args) == 2 {
			if !isNum(args[1]) {
				return token{}, false
			}
			weight = amount(args[1])
		}
		return colorToken(mix(base, args[0].col, weight)), true
	}
}

func fnGreyscale(args []token) (token, bool) {
	if !isColor(args[0]) {
		return token{}, false
	}
	c := args[0].col
	h, _, l := c.hsl()
	return colorToken(fromHSL(h, 0, l, c.a)), true
}

// contrast picks whichever of dark and light reads better on the first
// argument. Anything but a color is the CSS filter function.
func fnContrast(args []token) (token, bool) {
	if !isColor(args[0]) {
		return token{}, false
	}
	dark, light := color{0, 0, 0, 1}, color{255, 255, 255, 1}
	threshold := 0.43
	if len(args) > 1 {
		if !isColor(args[1]) {
			return token{}, false
		}
		dark = args[1].col
	}
	if len(args) > 2 {
		if !isColor(args[2]) {
			return token{}, false
		}
		light = args[2].col
	}
	if len(args) > 3 {
		if !isNum(args[3]) {
			return token{}, false
		}
		threshold = fraction(args[3])
	}
	if dark.luma() > light.luma() {
		dark, light = light, dark
	}
	if args[0].col.luma() < threshold {
		return colorToken(light), true
	}
	return colorToken(dark), true
}

func channel(f func(color) token) func([]token) (token, bool) {
	return func(args []token) (token, bool) {
		if !isColor(args[0]) {
			return token{}, false
		}
		return f(args[0].col), true
	}
}

func fnPercentage(args []token) (token, bool) {
	if !isNum(args[0]) {
		return token{}, false
	}
	return dimToken(args[0].num*100, "%"), true
}

// round takes a number of decimal places. A second argument with a unit
// is the CSS stepped round().
func fnRound(args []token) (token, bool) {
	if !isNum(args[0]) {
		return token{}, false
	}
	places := 0.0
	if len(args) == 2 {
		if !isNum(args[1]) || args[1].unit != "" {
			return token{}, false
		}
		places = args[1].num
	}
	p := math.Pow(10, places)
	return dimToken(math.Round(args[0].num*p)/p, args[0].unit), true
}

func mathFunc(f func(float64) float64) func([]token) (token, bool) {
	return func(args []token) (token, bool) {
		if !isNum(args[0]) {
			return token{}, false
		}
		return dimToken(f(args[0].num), args[0].unit), true
	}
}

func binaryMath(f func(a, b float64) float64) func([]token) (token, bool) {
	return func(args []token) (token, bool) {
		if !isNum(args[0]) || !isNum(args[1]) {
			return token{}, false
		}
		v := f(args[0].num, args[1].num)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return token{}, false
		}
		return dimToken(v, args[0].unit), true
	}
}

// extreme only folds numbers that share a unit. Mixed units are left to
// the browser.
func extreme(better func(a, b float64) bool) func([]token) (token, bool) {
	return func(args []token) (token, bool) {
		var best token
		unit := ""
		for i, a := range args {
			if !isNum(a) {
				return token{}, false
			}
			if a.unit != "" {
				if unit != "" && a.unit != unit {
					return token{}, false
				}
				unit = a.unit
			}
			if i == 0 || better(a.num, best.num) {
				best = a
			}
		}
		return dimToken(best.num, unit), true
	}
}

func fnUnit(args []token) (token, bool) {
	if !isNum(args[0]) {
		return token{}, false
	}
	if len(args) == 1 {
		return dimToken(args[0].num, ""), true
	}
	u := args[1].text
	if s, ok := unquote(u); ok {
		u = s
	}
	if args[1].kind != tokText || strings.ContainsAny(u, " ,") {
		return token{}, false
	}
	return dimToken(args[0].num, u), true
}

func fnEscape(args []token) (token, bool) {
	s, ok := unquote(args[0].text)
	if !ok {
		return token{}, false
	}
	return token{kind: tokText, text: s}, true
}
