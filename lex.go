package varcalc

import (
	"errors"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
)

type lexToken struct {
	text string
	kind tokenKind
	pos  int
	// val is the value of a number token.
	val float64
}

func (t lexToken) String() string {
	return t.kind.String() + ":" + t.text + "@" + strconv.Itoa(t.pos)
}

type tokenKind int8

const (
	tokenNone tokenKind = iota
	// tokenEOF indicates the end of the input.
	tokenEOF
	// tokenNum is a decimal, binary, or hexadecimal number.
	tokenNum
	// tokenIdent is a variable, constant, or function name.
	tokenIdent
	// tokenOp is an operator, including the word operators xor and xnor.
	tokenOp
	// tokenOpen is an open paren.
	tokenOpen
	// tokenClose is a close paren.
	tokenClose
	// tokenSep is a function argument separator.
	tokenSep
)

func (k tokenKind) String() string {
	switch k {
	case tokenNone:
		return "None"
	case tokenEOF:
		return "EOF"
	case tokenNum:
		return "Num"
	case tokenIdent:
		return "Ident"
	case tokenOp:
		return "Op"
	case tokenOpen:
		return "Open"
	case tokenClose:
		return "Close"
	case tokenSep:
		return "Sep"
	default:
		return "tokenKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// operators lists every operator the lexer produces.
var operators = []string{
	"==", "!=", "<=", ">=", "<<", ">>>", ">>", "&&", "||", "xor", "xnor",
	"+", "-", "*", "/", "^", "!", "~", "&", "|", "<", ">",
}

type lexer struct {
	src io.RuneScanner
	buf strings.Builder
	// rune is the number of runes read so far, which is also the column of
	// the most recently read rune.
	rune int
	eof  bool
}

func lex(src io.RuneScanner) *lexer {
	return &lexer{src: src}
}

// tokenize scans the entire input. The last token is always an EOF token.
func tokenize(src io.RuneScanner) ([]lexToken, error) {
	scan := lex(src)
	var toks []lexToken
	for {
		tok, err := scan.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokenEOF {
			return toks, nil
		}
	}
}

// readRune reads a rune from the src and updates the lexer's position info.
func (l *lexer) readRune() (r rune, err error) {
	r, sz, err := l.src.ReadRune()
	if sz > 0 {
		l.rune++
	}
	return r, err
}

// unreadRune unreads a rune from the src and updates the lexer's position
// info. Panics if unreading returns an error.
func (l *lexer) unreadRune() {
	if err := l.src.UnreadRune(); err != nil {
		panic(err)
	}
	l.rune--
}

// accept consumes the next rune into the buffer if it is want.
func (l *lexer) accept(want rune) bool {
	_, ok := l.acceptAny(string(want))
	return ok
}

// acceptAny consumes the next rune into the buffer if it is any of valid.
func (l *lexer) acceptAny(valid string) (rune, bool) {
	r, err := l.readRune()
	if err != nil {
		return 0, false
	}
	if !strings.ContainsRune(valid, r) {
		l.unreadRune()
		return 0, false
	}
	l.buf.WriteRune(r)
	return r, true
}

// next scans the next token from the input. The first time EOF is reached, the
// result is an EOF token with a nil error. Subsequent calls return an empty
// token with io.EOF.
func (l *lexer) next() (lexToken, error) {
	if l.eof {
		return lexToken{}, io.EOF
	}
	defer l.buf.Reset()
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.eof = true
				return lexToken{kind: tokenEOF, pos: l.rune + 1}, nil
			}
			return lexToken{pos: l.rune}, err
		}
		tok := lexToken{pos: l.rune}
		switch {
		case unicode.IsSpace(r):
			continue
		case '0' <= r && r <= '9':
			l.unreadRune()
			v, err := l.scanNum()
			if err != nil {
				return tok, err
			}
			tok.text = l.buf.String()
			tok.kind = tokenNum
			tok.val = v
			return tok, nil
		case 'a' <= r && r <= 'z':
			l.unreadRune()
			if err := l.scanIdent(); err != nil {
				return tok, err
			}
			tok.text = l.buf.String()
			// xor and xnor look like identifiers, so check for them here.
			switch tok.text {
			case "xor", "xnor":
				tok.kind = tokenOp
			default:
				tok.kind = tokenIdent
			}
			return tok, nil
		case 'A' <= r && r <= 'Z':
			// Only the reserved constants may be uppercase.
			l.unreadRune()
			if err := l.scanIdent(); err != nil {
				return tok, err
			}
			tok.text = l.buf.String()
			if !isReserved(tok.text) {
				return tok, l.error("identifier")
			}
			tok.kind = tokenIdent
			return tok, nil
		case r == '(':
			tok.text = "("
			tok.kind = tokenOpen
			return tok, nil
		case r == ')':
			tok.text = ")"
			tok.kind = tokenClose
			return tok, nil
		case r == ',':
			tok.text = ","
			tok.kind = tokenSep
			return tok, nil
		default:
			l.buf.WriteRune(r)
			if err := l.scanOp(r); err != nil {
				return tok, err
			}
			tok.text = l.buf.String()
			tok.kind = tokenOp
			return tok, nil
		}
	}
}

// scanOp finishes scanning an operator whose first rune r is already in the
// buffer, taking the longest match.
func (l *lexer) scanOp(r rune) error {
	switch r {
	case '+', '-', '*', '/', '^', '~':
	case '=':
		if !l.accept('=') {
			return l.error("operator")
		}
	case '!':
		l.accept('=')
	case '<':
		if !l.accept('=') {
			l.accept('<')
		}
	case '>':
		if !l.accept('=') && l.accept('>') {
			l.accept('>')
		}
	case '&':
		l.accept('&')
	case '|':
		l.accept('|')
	default:
		return l.error("")
	}
	return nil
}

// scanNum scans a number literal and returns its value.
func (l *lexer) scanNum() (float64, error) {
	var digs strings.Builder
	r, err := l.readRune()
	if err != nil {
		return 0, err
	}
	l.buf.WriteRune(r)
	if r == '0' {
		if p, ok := l.acceptAny("bBxX"); ok {
			base := 2
			if p == 'x' || p == 'X' {
				base = 16
			}
			if err := l.scanGroups(base, 0, &digs); err != nil {
				return 0, err
			}
			if err := l.checkEnd(); err != nil {
				return 0, err
			}
			v, ok := radixValue(digs.String(), base)
			if !ok {
				return 0, l.error("number")
			}
			return v, nil
		}
	}
	digs.WriteRune(r)
	if err := l.scanGroups(10, 1, &digs); err != nil {
		return 0, err
	}
	if l.accept('.') {
		digs.WriteByte('.')
		if err := l.scanGroups(10, 0, &digs); err != nil {
			return 0, err
		}
	}
	if err := l.checkEnd(); err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(digs.String(), 64)
	if err != nil {
		// Only overflow is possible here.
		return 0, l.error("number")
	}
	return v, nil
}

// scanGroups scans digits in the given base, separated by underscores,
// continuing a group of n digits that has already been scanned. The digits
// without separators are written to digs. Every group that touches an
// underscore must have at least two digits, and there must be at least one
// digit overall.
func (l *lexer) scanGroups(base, n int, digs *strings.Builder) error {
	sep := false
loop:
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		switch {
		case isDigit(r, base):
			l.buf.WriteRune(r)
			digs.WriteRune(r)
			n++
		case r == '_':
			l.buf.WriteRune(r)
			if n < 2 {
				return l.error("number")
			}
			n = 0
			sep = true
		default:
			l.unreadRune()
			break loop
		}
	}
	if n == 0 || sep && n < 2 {
		return l.error("number")
	}
	return nil
}

// checkEnd verifies that a number literal is not immediately followed by
// anything that would continue it.
func (l *lexer) checkEnd() error {
	r, err := l.readRune()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r) {
		l.buf.WriteRune(r)
		return l.error("number")
	}
	l.unreadRune()
	return nil
}

func (l *lexer) scanIdent() error {
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// next unreads the rune that decides ident scanning before
				// calling scanIdent, so we have scanned at least one rune.
				return nil
			}
			return err
		}
		switch {
		case r == '_', 'a' <= r && r <= 'z', '0' <= r && r <= '9':
			l.buf.WriteRune(r)
		case 'A' <= r && r <= 'Z':
			// Uppercase letters continue only an uppercase word, so that
			// e.g. PI1 or Pi is one invalid token instead of two.
			if l.buf.Len() > 0 && !isUpper(l.buf.String()[0]) {
				l.buf.WriteRune(r)
				return l.error("identifier")
			}
			l.buf.WriteRune(r)
		default:
			l.unreadRune()
			return nil
		}
	}
}

func (l *lexer) error(kind string) error {
	return &LexError{
		Text: l.buf.String(),
		Kind: kind,
		Col:  l.rune,
	}
}

func isUpper(b byte) bool {
	return 'A' <= b && b <= 'Z'
}

// isDigit reports whether r is a digit in base 2, 10, or 16.
func isDigit(r rune, base int) bool {
	switch base {
	case 2:
		return r == '0' || r == '1'
	case 16:
		return '0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F'
	default:
		return '0' <= r && r <= '9'
	}
}

// radixValue converts binary or hexadecimal digits to the nearest float64.
// The result is false if the value overflows.
func radixValue(digs string, base int) (float64, bool) {
	var i big.Int
	if _, ok := i.SetString(digs, base); !ok {
		return 0, false
	}
	f, _ := new(big.Float).SetInt(&i).Float64()
	return f, !math.IsInf(f, 0)
}

// LexError indicates an invalid token. It implements InputError.
type LexError struct {
	// Text is the token the lexer was scanning when the invalid rune was
	// encountered, plus the invalid rune.
	Text string
	// Kind is the type of token the lexer was scanning. This may be "number",
	// "identifier", "operator", or the empty string (if a token kind hadn't
	// been decided).
	Kind string
	// Col is the total number of runes scanned by the lexer up to and
	// including this error.
	Col int
}

func (err *LexError) Error() string {
	pos := "column " + strconv.Itoa(err.Col)
	if err.Kind == "" {
		return "invalid token at " + pos + ": " + err.Text
	}
	return "invalid " + err.Kind + " token at " + pos + ": " + err.Text
}

func (err *LexError) Pos() int {
	return err.Col
}
