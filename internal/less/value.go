package less

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// functions whose arguments are copied through without evaluation
var verbatimFuncs = map[string]bool{
	"calc":   true,
	"url":    true,
	"var":    true,
	"env":    true,
	"format": true,
	"local":  true,
	"attr":   true,
}

func (c *compiler) evalValue(s string, sc *scope) (string, error) {
	s, err := c.substitute(s, sc)
	if err != nil {
		return "", err
	}
	return evalExpr(s, false)
}

// interpolate replaces @{name} with the unquoted value of @name.
func (c *compiler) interpolate(s string, sc *scope) (string, error) {
	if !strings.Contains(s, "@{") {
		return s, nil
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "@{")
		if i < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			return "", errors.New("unterminated interpolation")
		}
		val, err := c.lookupVar(sc, s[i+2:i+end])
		if err != nil {
			return "", err
		}
		if u, ok := unquote(val); ok {
			val = u
		}
		b.WriteString(s[:i])
		b.WriteString(val)
		s = s[i+end+1:]
	}
}

// substitute resolves interpolation everywhere and plain @name references
// outside of string literals.
func (c *compiler) substitute(s string, sc *scope) (string, error) {
	s, err := c.interpolate(s, sc)
	if err != nil {
		return "", err
	}
	if !strings.Contains(s, "@") {
		return s, nil
	}

	var b strings.Builder
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == '"' || ch == '\'':
			end := closingQuote(s, i)
			b.WriteString(s[i:end])
			i = end
		case ch == '@' && i+1 < len(s) && isIdentByte(s[i+1]):
			j := i + 1
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			val, err := c.lookupVar(sc, s[i+1:j])
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i = j
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String(), nil
}

func closingQuote(s string, start int) int {
	q := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case q:
			return i + 1
		}
	}
	return len(s)
}

func closingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			i = closingQuote(s, i) - 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

type tokKind int

const (
	tokSpace tokKind = iota
	tokComma
	tokDim
	tokOp
	tokText
	tokColor
)

type token struct {
	kind tokKind
	text string
	num  float64
	unit string
	col  color
}

func dimToken(num float64, unit string) token {
	return token{kind: tokDim, text: formatNum(num) + unit, num: num, unit: unit}
}

func formatNum(v float64) string {
	v = math.Round(v*1e8) / 1e8
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// evalExpr evaluates arithmetic in a value whose variables have already
// been substituted. Division is performed only inside parentheses so that
// shorthand such as font: 12px/1.5 survives.
func evalExpr(s string, inParens bool) (string, error) {
	toks, err := evalTokens(s, inParens)
	if err != nil {
		return "", err
	}
	return joinTokens(toks), nil
}

func evalTokens(s string, inParens bool) ([]token, error) {
	toks, err := tokenize(s, inParens)
	if err != nil {
		return nil, err
	}
	return reduce(toks)
}

func joinTokens(toks []token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.text)
	}
	return strings.TrimSpace(b.String())
}

func trimSpaceTokens(toks []token) []token {
	for len(toks) > 0 && toks[0].kind == tokSpace {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].kind == tokSpace {
		toks = toks[:len(toks)-1]
	}
	return toks
}

func signContext(toks []token) bool {
	if len(toks) == 0 {
		return true
	}
	k := toks[len(toks)-1].kind
	return k == tokSpace || k == tokComma || k == tokOp
}

func startsNumber(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	if s[i] >= '0' && s[i] <= '9' {
		return true
	}
	return s[i] == '.' && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func tokenize(s string, inParens bool) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case isSpace(ch):
			for i < len(s) && isSpace(s[i]) {
				i++
			}
			toks = append(toks, token{kind: tokSpace, text: " "})

		case ch == ',':
			toks = append(toks, token{kind: tokComma, text: ","})
			i++

		case ch == '"' || ch == '\'':
			end := closingQuote(s, i)
			toks = append(toks, token{kind: tokText, text: s[i:end]})
			i = end

		case ch == '~' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\''):
			end := closingQuote(s, i+1)
			inner, _ := unquote(s[i+1 : end])
			toks = append(toks, token{kind: tokText, text: inner})
			i = end

		case ch == '(':
			end := closingParen(s, i)
			if end < 0 {
				return nil, errors.New("unbalanced parentheses")
			}
			inner, err := evalTokens(s[i+1:end], true)
			if err != nil {
				return nil, err
			}
			inner = trimSpaceTokens(inner)
			if len(inner) == 1 && (inner[0].kind == tokDim || inner[0].kind == tokColor) {
				toks = append(toks, inner[0])
			} else {
				toks = append(toks, token{kind: tokText, text: "(" + joinTokens(inner) + ")"})
			}
			i = end + 1

		case startsNumber(s, i) || (ch == '-' || ch == '+') && startsNumber(s, i+1) && signContext(toks):
			j := i
			if ch == '-' || ch == '+' {
				j++
			}
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			k := j
			if k < len(s) && s[k] == '%' {
				k++
			} else {
				for k < len(s) && (s[k] >= 'a' && s[k] <= 'z' || s[k] >= 'A' && s[k] <= 'Z') {
					k++
				}
			}
			num, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				toks = append(toks, token{kind: tokText, text: s[i:k]})
			} else {
				toks = append(toks, token{kind: tokDim, text: s[i:k], num: num, unit: s[j:k]})
			}
			i = k

		case ch == '*' || ch == '+' || ch == '/' && inParens:
			toks = append(toks, token{kind: tokOp, text: string(ch)})
			i++

		case ch == '-' && (i+1 >= len(s) || isSpace(s[i+1]) || startsNumber(s, i+1) && !signContext(toks)):
			toks = append(toks, token{kind: tokOp, text: "-"})
			i++

		default:
			j := i + 1
			for j < len(s) && !isSpace(s[j]) && !strings.ContainsRune(",()\"'*+", rune(s[j])) && !(s[j] == '/' && inParens) {
				j++
			}
			word := s[i:j]
			if j < len(s) && s[j] == '(' {
				end := closingParen(s, j)
				if end < 0 {
					return nil, errors.New("unbalanced parentheses")
				}
				t, err := funcToken(word, s[j+1:end])
				if err != nil {
					return nil, err
				}
				toks = append(toks, t)
				i = end + 1
				continue
			}
			toks = append(toks, wordToken(word))
			i = j
		}
	}
	return toks, nil
}

func wordToken(word string) token {
	if c, ok := parseHex(word); ok {
		return token{kind: tokColor, text: word, col: c}
	}
	if c, ok := namedColors[strings.ToLower(word)]; ok {
		return token{kind: tokColor, text: word, col: c}
	}
	return token{kind: tokText, text: word}
}

func funcToken(name, args string) (token, error) {
	if verbatimFuncs[strings.ToLower(name)] {
		return token{kind: tokText, text: name + "(" + args + ")"}, nil
	}
	t, ok, err := callFunc(name, args)
	if err != nil || ok {
		return t, err
	}
	if args, err = evalExpr(args, false); err != nil {
		return token{}, err
	}
	return token{kind: tokText, text: name + "(" + args + ")"}, nil
}

func isOperand(t token) bool {
	return t.kind == tokDim || t.kind == tokColor
}

// reduce folds runs of operand operator operand into a single dimension or
// color, with * and / binding tighter than + and -.
func reduce(toks []token) ([]token, error) {
	var out []token
	for i := 0; i < len(toks); {
		if !isOperand(toks[i]) {
			out = append(out, toks[i])
			i++
			continue
		}

		terms := []token{toks[i]}
		var ops []string
		last := i
		for {
			k := skipSpace(toks, last+1)
			if k >= len(toks) || toks[k].kind != tokOp {
				break
			}
			m := skipSpace(toks, k+1)
			if m >= len(toks) || !isOperand(toks[m]) {
				break
			}
			ops = append(ops, toks[k].text)
			terms = append(terms, toks[m])
			last = m
		}
		if len(ops) == 0 {
			out = append(out, toks[i])
			i++
			continue
		}

		res, err := compute(terms, ops)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
		i = last + 1
	}
	return out, nil
}

func skipSpace(toks []token, i int) int {
	for i < len(toks) && toks[i].kind == tokSpace {
		i++
	}
	return i
}

func compute(terms []token, ops []string) (token, error) {
	vals := []token{terms[0]}
	var low []string
	for i, op := range ops {
		rhs := terms[i+1]
		switch op {
		case "*", "/":
			lhs := vals[len(vals)-1]
			r, err := apply(lhs, rhs, op)
			if err != nil {
				return token{}, err
			}
			vals[len(vals)-1] = r
		default:
			vals = append(vals, rhs)
			low = append(low, op)
		}
	}
	acc := vals[0]
	for i, op := range low {
		r, err := apply(acc, vals[i+1], op)
		if err != nil {
			return token{}, err
		}
		acc = r
	}
	return acc, nil
}

func apply(a, b token, op string) (token, error) {
	if a.kind == tokColor || b.kind == tokColor {
		return operateColor(a, b, op)
	}
	unit := a.unit
	if unit == "" {
		unit = b.unit
	}
	switch op {
	case "+":
		return dimToken(a.num+b.num, unit), nil
	case "-":
		return dimToken(a.num-b.num, unit), nil
	case "*":
		return dimToken(a.num*b.num, unit), nil
	case "/":
		if b.num == 0 {
			return token{}, fmt.Errorf("division by zero in %s / %s", a.text, b.text)
		}
		return dimToken(a.num/b.num, unit), nil
	}
	return token{}, fmt.Errorf("unknown operator %q", op)
}
