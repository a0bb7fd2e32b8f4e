package less

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// color channels are 0-255, alpha is 0-1
type color struct {
	r, g, b, a float64
}

func parseHex(s string) (color, bool) {
	if len(s) < 4 || s[0] != '#' {
		return color{}, false
	}
	hex := s[1:]
	switch len(hex) {
	case 3, 4:
		var expanded strings.Builder
		for i := 0; i < len(hex); i++ {
			expanded.WriteByte(hex[i])
			expanded.WriteByte(hex[i])
		}
		hex = expanded.String()
	case 6, 8:
	default:
		return color{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color{}, false
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color{
		r: float64(v >> 24 & 0xff),
		g: float64(v >> 16 & 0xff),
		b: float64(v >> 8 & 0xff),
		a: float64(v&0xff) / 255,
	}, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func (c color) String() string {
	r := int(math.Round(clamp(c.r, 0, 255)))
	g := int(math.Round(clamp(c.g, 0, 255)))
	b := int(math.Round(clamp(c.b, 0, 255)))
	a := clamp(c.a, 0, 1)
	if a >= 1 {
		return fmt.Sprintf("#%02x%02x%02x", r, g, b)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, formatNum(a))
}

func colorToken(c color) token {
	return token{kind: tokColor, text: c.String(), col: c}
}

// hsl returns hue in degrees and saturation and lightness in 0-1.
func (c color) hsl() (h, s, l float64) {
	r, g, b := c.r/255, c.g/255, c.b/255
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l = (max + min) / 2
	d := max - min
	if d == 0 {
		return 0, 0, l
	}
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}
	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h * 60, s, l
}

func fromHSL(h, s, l, a float64) color {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	h /= 360
	s, l = clamp(s, 0, 1), clamp(l, 0, 1)

	var m2 float64
	if l <= 0.5 {
		m2 = l * (s + 1)
	} else {
		m2 = l + s - l*s
	}
	m1 := l*2 - m2
	channel := func(h float64) float64 {
		if h < 0 {
			h++
		} else if h > 1 {
			h--
		}
		switch {
		case h*6 < 1:
			return m1 + (m2-m1)*h*6
		case h*2 < 1:
			return m2
		case h*3 < 2:
			return m1 + (m2-m1)*(2.0/3-h)*6
		}
		return m1
	}
	return color{
		r: channel(h+1.0/3) * 255,
		g: channel(h) * 255,
		b: channel(h-1.0/3) * 255,
		a: clamp(a, 0, 1),
	}
}

// luma is the relative luminance from WCAG 2.0.
func (c color) luma() float64 {
	lin := func(v float64) float64 {
		v /= 255
		if v <= 0.03928 {
			return v / 12.92
		}
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.r) + 0.7152*lin(c.g) + 0.0722*lin(c.b)
}

func mix(c1, c2 color, weight float64) color {
	p := weight
	w := p*2 - 1
	a := c1.a - c2.a
	var w1 float64
	if w*a == -1 {
		w1 = (w + 1) / 2
	} else {
		w1 = ((w+a)/(1+w*a) + 1) / 2
	}
	w2 := 1 - w1
	return color{
		r: c1.r*w1 + c2.r*w2,
		g: c1.g*w1 + c2.g*w2,
		b: c1.b*w1 + c2.b*w2,
		a: c1.a*p + c2.a*(1-p),
	}
}

// operateColor applies op to each RGB channel. A plain number applies to
// all three channels.
func operateColor(a, b token, op string) (token, error) {
	ca, cb := asColor(a), asColor(b)
	channel := func(x, y float64) (float64, error) {
		switch op {
		case "+":
			return x + y, nil
		case "-":
			return x - y, nil
		case "*":
			return x * y, nil
		case "/":
			if y == 0 {
				return 0, fmt.Errorf("division by zero in %s / %s", a.text, b.text)
			}
			return x / y, nil
		}
		return 0, fmt.Errorf("unknown operator %q", op)
	}
	var out color
	var err error
	if out.r, err = channel(ca.r, cb.r); err != nil {
		return token{}, err
	}
	if out.g, err = channel(ca.g, cb.g); err != nil {
		return token{}, err
	}
	if out.b, err = channel(ca.b, cb.b); err != nil {
		return token{}, err
	}
	out.a = ca.a*(1-cb.a) + cb.a
	return colorToken(out), nil
}

func asColor(t token) color {
	if t.kind == tokColor {
		return t.col
	}
	return color{r: t.num, g: t.num, b: t.num, a: 1}
}

var namedColors = func() map[string]color {
	const table = "aliceblue:f0f8ff antiquewhite:faebd7 aqua:00ffff aquamarine:7fffd4 azure:f0ffff " +
		"beige:f5f5dc bisque:ffe4c4 black:000000 blanchedalmond:ffebcd blue:0000ff blueviolet:8a2be2 " +
		"brown:a52a2a burlywood:deb887 cadetblue:5f9ea0 chartreuse:7fff00 chocolate:d2691e coral:ff7f50 " +
		"cornflowerblue:6495ed cornsilk:fff8dc crimson:dc143c cyan:00ffff darkblue:00008b darkcyan:008b8b " +
		"darkgoldenrod:b8860b darkgray:a9a9a9 darkgrey:a9a9a9 darkgreen:006400 darkkhaki:bdb76b " +
		"darkmagenta:8b008b darkolivegreen:556b2f darkorange:ff8c00 darkorchid:9932cc darkred:8b0000 " +
		"darksalmon:e9967a darkseagreen:8fbc8f darkslateblue:483d8b darkslategray:2f4f4f " +
		"darkslategrey:2f4f4f darkturquoise:00ced1 darkviolet:9400d3 deeppink:ff1493 deepskyblue:00bfff " +
		"dimgray:696969 dimgrey:696969 dodgerblue:1e90ff firebrick:b22222 floralwhite:fffaf0 " +
		"forestgreen:228b22 fuchsia:ff00ff gainsboro:dcdcdc ghostwhite:f8f8ff gold:ffd700 " +
		"goldenrod:daa520 gray:808080 grey:808080 green:008000 greenyellow:adff2f honeydew:f0fff0 " +
		"hotpink:ff69b4 indianred:cd5c5c indigo:4b0082 ivory:fffff0 khaki:f0e68c lavender:e6e6fa " +
		"lavenderblush:fff0f5 lawngreen:7cfc00 lemonchiffon:fffacd lightblue:add8e6 lightcoral:f08080 " +
		"lightcyan:e0ffff lightgoldenrodyellow:fafad2 lightgray:d3d3d3 lightgrey:d3d3d3 " +
		"lightgreen:90ee90 lightpink:ffb6c1 lightsalmon:ffa07a lightseagreen:20b2aa " +
		"lightskyblue:87cefa lightslategray:778899 lightslategrey:778899 lightsteelblue:b0c4de " +
		"lightyellow:ffffe0 lime:00ff00 limegreen:32cd32 linen:faf0e6 magenta:ff00ff maroon:800000 " +
		"mediumaquamarine:66cdaa mediumblue:0000cd mediumorchid:ba55d3 mediumpurple:9370db " +
		"mediumseagreen:3cb371 mediumslateblue:7b68ee mediumspringgreen:00fa9a " +
		"mediumturquoise:48d1cc mediumvioletred:c71585 midnightblue:191970 mintcream:f5fffa " +
		"mistyrose:ffe4e1 moccasin:ffe4b5 navajowhite:ffdead navy:000080 oldlace:fdf5e6 olive:808000 " +
		"olivedrab:6b8e23 orange:ffa500 orangered:ff4500 orchid:da70d6 palegoldenrod:eee8aa " +
		"palegreen:98fb98 paleturquoise:afeeee palevioletred:db7093 papayawhip:ffefd5 " +
		"peachpuff:ffdab9 peru:cd853f pink:ffc0cb plum:dda0dd powderblue:b0e0e6 purple:800080 " +
		"rebeccapurple:663399 red:ff0000 rosybrown:bc8f8f royalblue:4169e1 saddlebrown:8b4513 " +
		"salmon:fa8072 sandybrown:f4a460 seagreen:2e8b57 seashell:fff5ee sienna:a0522d silver:c0c0c0 " +
		"skyblue:87ceeb slateblue:6a5acd slategray:708090 slategrey:708090 snow:fffafa " +
		"springgreen:00ff7f steelblue:4682b4 tan:d2b48c teal:008080 thistle:d8bfd8 tomato:ff6347 " +
		"turquoise:40e0d0 violet:ee82ee wheat:f5deb3 white:ffffff whitesmoke:f5f5f5 yellow:ffff00 " +
		"yellowgreen:9acd32 transparent:00000000"

	m := make(map[string]color)
	for _, entry := range strings.Fields(table) {
		name, hex, _ := strings.Cut(entry, ":")
		c, _ := parseHex("#" + hex)
		m[name] = c
	}
	return m
}()
