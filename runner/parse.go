// parse.go - Lexer und Parser fuer Engine-Skripte
//
// Grammatik:
// - stmt   := [lhs '='] expr ';'
// - lhs    := IDENT | '[' IDENT {',' IDENT} ']'
// - expr   := Praezedenz | & Vergleich + - * / %% %*% ^ Unaer
// - primary:= Zahl | String | TRUE | FALSE | NaN | Inf | $IDENT | IDENT ['(' args ')'] | '(' expr ')'
package runner

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokInput
	tokOp
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src    string
	pos    int
	tokens []token
}

var operators = []string{"%*%", "%%", "<=", ">=", "==", "!=", "<", ">", "+", "-", "*", "/", "^", "&", "|", "!", "="}

func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.tokens = append(l.tokens, token{kind: tokEOF, pos: l.pos})
			return l.tokens, nil
		}

		start := l.pos
		c := l.src[l.pos]
		switch {
		case c == '"':
			s, err := l.lexString()
			if err != nil {
				return nil, err
			}
			l.tokens = append(l.tokens, token{kind: tokString, text: s, pos: start})
		case c == '$':
			l.pos++
			name := l.lexIdent()
			if name == "" {
				return nil, fmt.Errorf("offset %d: expected input name after $", start)
			}
			l.tokens = append(l.tokens, token{kind: tokInput, text: name, pos: start})
		case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
			l.tokens = append(l.tokens, token{kind: tokNumber, text: l.lexNumber(), pos: start})
		case isIdentStart(c):
			l.tokens = append(l.tokens, token{kind: tokIdent, text: l.lexIdent(), pos: start})
		case strings.IndexByte("()[],;", c) >= 0:
			l.pos++
			l.tokens = append(l.tokens, token{kind: tokPunct, text: string(c), pos: start})
		default:
			op := ""
			for _, o := range operators {
				if strings.HasPrefix(l.src[l.pos:], o) {
					op = o
					break
				}
			}
			if op == "" {
				r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
				return nil, fmt.Errorf("offset %d: unexpected character %q", start, r)
			}
			l.pos += len(op)
			l.tokens = append(l.tokens, token{kind: tokOp, text: op, pos: start})
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; {
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		default:
			return
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (l *lexer) lexIdent() string {
	start := l.pos
	if l.pos < len(l.src) && isIdentStart(l.src[l.pos]) {
		l.pos++
		for l.pos < len(l.src) && (isIdentStart(l.src[l.pos]) || isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
			l.pos++
		}
	}
	return l.src[start:l.pos]
}

func (l *lexer) lexNumber() string {
	start := l.pos
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	return l.src[start:l.pos]
}

func (l *lexer) lexString() (string, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			return sb.String(), nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return "", fmt.Errorf("offset %d: unterminated escape", l.pos)
			}
			l.pos++
			switch e := l.src[l.pos]; e {
			case '\\', '"':
				sb.WriteByte(e)
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'u':
				if l.pos+4 >= len(l.src) {
					return "", fmt.Errorf("offset %d: short unicode escape", l.pos)
				}
				r, err := strconv.ParseUint(l.src[l.pos+1:l.pos+5], 16, 32)
				if err != nil {
					return "", fmt.Errorf("offset %d: invalid unicode escape", l.pos)
				}
				sb.WriteRune(rune(r))
				l.pos += 4
			default:
				return "", fmt.Errorf("offset %d: unknown escape \\%c", l.pos, e)
			}
			l.pos++
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return "", fmt.Errorf("offset %d: unterminated string", start)
}

// Syntaxbaum

type expr interface{}

type literal struct{ v any }

type varRef struct{ name string }

type inputRef struct{ name string }

type argument struct {
	name  string
	value expr
}

type call struct {
	name string
	args []argument
}

type binary struct {
	op   string
	l, r expr
}

type unary struct {
	op string
	x  expr
}

type statement struct {
	targets []string
	expr    expr
	text    string
}

// parseError carries the index of the statement that failed to parse.
type parseError struct {
	statement int
	err       error
}

func (e *parseError) Error() string {
	return fmt.Sprintf("statement %d: syntax error: %v", e.statement, e.err)
}

type parser struct {
	src    string
	tokens []token
	pos    int
}

func parse(src string) ([]statement, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, &parseError{statement: 0, err: err}
	}

	p := &parser{src: src, tokens: tokens}
	var stmts []statement
	for p.peek().kind != tokEOF {
		start := p.peek().pos
		s, err := p.statement()
		if err != nil {
			return nil, &parseError{statement: len(stmts), err: err}
		}
		s.text = strings.TrimSpace(src[start : p.tokens[p.pos-1].pos+1])
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) is(kind tokenKind, text string) bool {
	t := p.peek()
	return t.kind == kind && t.text == text
}

func (p *parser) expect(kind tokenKind, text string) error {
	if t := p.next(); t.kind != kind || t.text != text {
		return fmt.Errorf("offset %d: expected %q, got %q", t.pos, text, t.text)
	}
	return nil
}

func (p *parser) statement() (statement, error) {
	var s statement
	switch {
	case p.is(tokPunct, "["):
		p.next()
		for {
			t := p.next()
			if t.kind != tokIdent {
				return s, fmt.Errorf("offset %d: expected variable name", t.pos)
			}
			s.targets = append(s.targets, t.text)
			if p.is(tokPunct, ",") {
				p.next()
				continue
			}
			break
		}
		if err := p.expect(tokPunct, "]"); err != nil {
			return s, err
		}
		if err := p.expect(tokOp, "="); err != nil {
			return s, err
		}
	case p.peek().kind == tokIdent && p.tokens[p.pos+1].kind == tokOp && p.tokens[p.pos+1].text == "=":
		s.targets = []string{p.next().text}
		p.next()
	}

	e, err := p.expr(0)
	if err != nil {
		return s, err
	}
	s.expr = e
	return s, p.expect(tokPunct, ";")
}

var precedence = map[string]int{
	"|": 1, "&": 2,
	"==": 3, "!=": 3, "<": 3, ">": 3, "<=": 3, ">=": 3,
	"+": 4, "-": 4,
	"*": 5, "/": 5, "%%": 5,
	"%*%": 6,
	"^":   8,
}

// expr parses with precedence climbing; ^ is right associative.
func (p *parser) expr(min int) (expr, error) {
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		prec, ok := precedence[t.text]
		if t.kind != tokOp || !ok || prec < min {
			return lhs, nil
		}
		p.next()
		nextMin := prec + 1
		if t.text == "^" {
			nextMin = prec
		}
		rhs, err := p.expr(nextMin)
		if err != nil {
			return nil, err
		}
		lhs = &binary{op: t.text, l: lhs, r: rhs}
	}
}

func (p *parser) unary() (expr, error) {
	if p.is(tokOp, "-") || p.is(tokOp, "!") {
		op := p.next().text
		// unary minus binds weaker than ^
		x, err := p.expr(7)
		if err != nil {
			return nil, err
		}
		return &unary{op: op, x: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		if !strings.ContainsAny(t.text, ".eE") {
			if v, err := strconv.ParseInt(t.text, 10, 64); err == nil {
				return &literal{v: v}, nil
			}
		}
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("offset %d: invalid number %q", t.pos, t.text)
		}
		return &literal{v: v}, nil
	case tokString:
		return &literal{v: t.text}, nil
	case tokInput:
		return &inputRef{name: t.text}, nil
	case tokIdent:
		switch t.text {
		case "TRUE":
			return &literal{v: true}, nil
		case "FALSE":
			return &literal{v: false}, nil
		case "NaN":
			return &literal{v: math.NaN()}, nil
		case "Inf":
			return &literal{v: math.Inf(1)}, nil
		}
		if !p.is(tokPunct, "(") {
			return &varRef{name: t.text}, nil
		}
		p.next()
		c := &call{name: t.text}
		for !p.is(tokPunct, ")") {
			var a argument
			if p.peek().kind == tokIdent && p.tokens[p.pos+1].kind == tokOp && p.tokens[p.pos+1].text == "=" {
				a.name = p.next().text
				p.next()
			}
			v, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			a.value = v
			c.args = append(c.args, a)
			if !p.is(tokPunct, ",") {
				break
			}
			p.next()
		}
		if err := p.expect(tokPunct, ")"); err != nil {
			return nil, err
		}
		return c, nil
	case tokPunct:
		if t.text == "(" {
			e, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			return e, p.expect(tokPunct, ")")
		}
	}
	if t.kind == tokEOF {
		return nil, fmt.Errorf("offset %d: unexpected end of script", t.pos)
	}
	return nil, fmt.Errorf("offset %d: unexpected %q", t.pos, t.text)
}
