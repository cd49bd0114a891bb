package expr

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokBool
	tokVar // $name or %name
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	text  string // raw source text
	num   float64
	str   string // string literal contents, or variable name without sigil
	isVar bool
	global bool // true for $, false for %
}

// Variable name continuation characters deliberately exclude '(' and ')':
// allowing parens inside a bare variable name would make a reference like
// $foo(1) ambiguous with a grouped expression following it, so names stick
// to letters, digits, underscore, dot, and brackets.
func isVarStart(r byte) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func isVarCont(r byte) bool {
	return isVarStart(r) || (r >= '0' && r <= '9') || r == '_' || r == '.' || r == '[' || r == ']'
}

// lexer tokenizes a sanitized expression string.
type lexer struct {
	src string
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) tokenize() ([]token, error) {
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	return toks, nil
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t' || l.src[l.pos] == '\n' || l.src[l.pos] == '\r') {
		l.pos++
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}, nil
	}

	c := l.src[l.pos]

	switch {
	case c == '$' || (c == '%' && l.pos+1 < len(l.src) && isVarStart(l.src[l.pos+1])):
		// A '%' not followed by a letter is the modulo / "%=" operator.
		return l.lexVar(c == '$')
	case c == '"' || c == '\'':
		return l.lexString(c)
	case c >= '0' && c <= '9':
		return l.lexNumber()
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "("}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")"}, nil
	default:
		return l.lexOperatorOrWord()
	}
}

func (l *lexer) lexVar(global bool) (token, error) {
	start := l.pos
	l.pos++ // consume sigil
	if l.pos >= len(l.src) || !isVarStart(l.src[l.pos]) {
		return token{}, newError(SyntaxError, "expected variable name after %q at position %d", l.src[start:start+1], start)
	}
	nameStart := l.pos
	l.pos++
	for l.pos < len(l.src) && isVarCont(l.src[l.pos]) {
		l.pos++
	}
	name := l.src[nameStart:l.pos]
	return token{kind: tokVar, text: l.src[start:l.pos], str: name, isVar: true, global: global}, nil
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' && l.pos+1 < len(l.src) {
			sb.WriteByte(l.src[l.pos+1])
			l.pos += 2
			continue
		}
		if c == quote {
			l.pos++
			return token{kind: tokString, text: l.src[start:l.pos], str: sb.String()}, nil
		}
		sb.WriteByte(c)
		l.pos++
	}
	return token{}, newError(SyntaxError, "unterminated string literal starting at position %d", start)
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9') {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' {
		l.pos++
		for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9') {
			l.pos++
		}
	}
	text := l.src[start:l.pos]
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, newError(SyntaxError, "invalid number literal %q", text)
	}
	return token{kind: tokNumber, text: text, num: n}, nil
}

var multiCharOps = []string{"==", "!=", "<=", ">=", "&&", "||", "+=", "-=", "*=", "/=", "%="}

func (l *lexer) lexOperatorOrWord() (token, error) {
	rest := l.src[l.pos:]
	for _, op := range multiCharOps {
		if strings.HasPrefix(rest, op) {
			l.pos += len(op)
			return token{kind: tokOp, text: op}, nil
		}
	}

	c := l.src[l.pos]
	switch c {
	case '+', '-', '*', '/', '%', '=', '<', '>', '!':
		l.pos++
		return token{kind: tokOp, text: string(c)}, nil
	}

	// Bare word: true/false literal, or an error — the mini-language has no
	// other identifier namespace ($/% are the only variable forms).
	start := l.pos
	for l.pos < len(l.src) && isVarStart(l.src[l.pos]) {
		l.pos++
	}
	word := l.src[start:l.pos]
	switch strings.ToLower(word) {
	case "true":
		return token{kind: tokBool, num: 1, text: word}, nil
	case "false":
		return token{kind: tokBool, num: 0, text: word}, nil
	}
	if word == "" {
		return token{}, newError(SyntaxError, "unexpected character %q at position %d", string(c), l.pos)
	}
	return token{}, newError(SyntaxError, "unexpected token %q at position %d", word, start)
}
