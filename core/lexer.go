package core

import (
	"bufio"
	"fmt"
	"io"
)

// TokenType represents the type of token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenWhitespace
	TokenComment
	TokenKeyword     // true, false, null, obj, endobj, stream, endstream, etc.
	TokenInteger     // 123
	TokenReal        // 3.14
	TokenString      // (hello)
	TokenHexString   // <48656C6C6F>
	TokenName        // /Type
	TokenArrayStart  // [
	TokenArrayEnd    // ]
	TokenDictStart   // <<
	TokenDictEnd     // >>
	TokenIndirectRef // R (after two numbers)
)

var tokenTypeNames = [...]string{
	TokenEOF:         "EOF",
	TokenWhitespace:  "Whitespace",
	TokenComment:     "Comment",
	TokenKeyword:     "Keyword",
	TokenInteger:     "Integer",
	TokenReal:        "Real",
	TokenString:      "String",
	TokenHexString:   "HexString",
	TokenName:        "Name",
	TokenArrayStart:  "ArrayStart",
	TokenArrayEnd:    "ArrayEnd",
	TokenDictStart:   "DictStart",
	TokenDictEnd:     "DictEnd",
	TokenIndirectRef: "IndirectRef",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int64 // Position in stream
}

// Character classes of the PDF syntax.
const (
	classSpace = 1 << iota
	classDelim
	classDigit
	classHex
	classAlpha
)

var charClass [256]uint8

func init() {
	for _, c := range []byte{' ', '\t', '\n', '\r', '\f', 0} {
		charClass[c] |= classSpace
	}
	for _, c := range []byte("()<>[]{}/%") {
		charClass[c] |= classDelim
	}
	for c := '0'; c <= '9'; c++ {
		charClass[c] |= classDigit | classHex
	}
	for c := 'a'; c <= 'z'; c++ {
		charClass[c] |= classAlpha
		charClass[c-'a'+'A'] |= classAlpha
	}
	for c := 'a'; c <= 'f'; c++ {
		charClass[c] |= classHex
		charClass[c-'a'+'A'] |= classHex
	}
}

func isWhitespace(b byte) bool { return charClass[b]&classSpace != 0 }
func isDigit(b byte) bool      { return charClass[b]&classDigit != 0 }
func isHexDigit(b byte) bool   { return charClass[b]&classHex != 0 }
func isAlpha(b byte) bool      { return charClass[b]&classAlpha != 0 }
func isRegular(b byte) bool    { return charClass[b]&(classSpace|classDelim) == 0 }

// hexValue returns the value of a hex digit; callers check isHexDigit first.
func hexValue(b byte) byte {
	switch {
	case b <= '9':
		return b - '0'
	case b >= 'a':
		return b - 'a' + 10
	}
	return b - 'A' + 10
}

// Lexer performs lexical analysis of PDF content
type Lexer struct {
	reader *bufio.Reader
	pos    int64
}

// NewLexer creates a new lexer
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{reader: bufio.NewReader(r)}
}

// Pos returns the number of bytes consumed so far
func (l *Lexer) Pos() int64 {
	return l.pos
}

// NextToken returns the next token from the input. Whitespace is skipped;
// comments are returned as tokens.
func (l *Lexer) NextToken() (*Token, error) {
	for {
		b, err := l.Peek()
		if err == io.EOF {
			return &Token{Type: TokenEOF, Pos: l.pos}, nil
		}
		if err != nil {
			return nil, err
		}
		if !isWhitespace(b) {
			break
		}
		l.pos++
		l.reader.ReadByte()
	}

	start := l.pos
	head, _ := l.reader.Peek(2)
	c := head[0]
	pair := len(head) == 2 && head[1] == c

	switch {
	case c == '%':
		return l.token(TokenComment, start, l.lexComment)
	case c == '(':
		return l.token(TokenString, start, l.lexLiteral)
	case c == '/':
		return l.token(TokenName, start, l.lexName)
	case c == '[' || c == ']':
		l.skip(1)
		typ := TokenArrayStart
		if c == ']' {
			typ = TokenArrayEnd
		}
		return &Token{Type: typ, Value: []byte{c}, Pos: start}, nil
	case c == '<' && pair:
		l.skip(2)
		return &Token{Type: TokenDictStart, Value: []byte("<<"), Pos: start}, nil
	case c == '<':
		return l.token(TokenHexString, start, l.lexHex)
	case c == '>' && pair:
		l.skip(2)
		return &Token{Type: TokenDictEnd, Value: []byte(">>"), Pos: start}, nil
	case isDigit(c) || c == '-' || c == '+' || c == '.':
		return l.lexNumber(start)
	case isAlpha(c):
		word := l.takeWhile(func(b byte) bool { return isAlpha(b) || isDigit(b) }, nil)
		if len(word) == 1 && word[0] == 'R' {
			return &Token{Type: TokenIndirectRef, Value: word, Pos: start}, nil
		}
		return &Token{Type: TokenKeyword, Value: word, Pos: start}, nil
	}
	return nil, fmt.Errorf("unexpected character '%c' at position %d", c, start)
}

// token runs lex to collect the value of a token starting at start.
func (l *Lexer) token(typ TokenType, start int64, lex func() ([]byte, error)) (*Token, error) {
	value, err := lex()
	if err != nil {
		return nil, err
	}
	return &Token{Type: typ, Value: value, Pos: start}, nil
}

func (l *Lexer) skip(n int) {
	d, _ := l.reader.Discard(n)
	l.pos += int64(d)
}

// takeWhile appends bytes to buf while keep accepts them.
func (l *Lexer) takeWhile(keep func(byte) bool, buf []byte) []byte {
	for {
		b, err := l.Peek()
		if err != nil || !keep(b) {
			return buf
		}
		l.skip(1)
		buf = append(buf, b)
	}
}

// skipEOL consumes one LF, CR or CR LF if present.
func (l *Lexer) skipEOL() {
	b, err := l.Peek()
	if err != nil {
		return
	}
	switch b {
	case '\n':
		l.skip(1)
	case '\r':
		l.skip(1)
		if next, err := l.Peek(); err == nil && next == '\n' {
			l.skip(1)
		}
	}
}

// lexComment returns the comment including its '%' and consumes the EOL.
func (l *Lexer) lexComment() ([]byte, error) {
	text := l.takeWhile(func(b byte) bool { return b != '\r' && b != '\n' }, nil)
	l.skipEOL()
	return text, nil
}

// lexLiteral decodes a parenthesized string with balanced parentheses and
// backslash escapes.
func (l *Lexer) lexLiteral() ([]byte, error) {
	l.skip(1)
	var out []byte
	for depth := 1; ; {
		b, err := l.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated string: %w", err)
		}
		switch b {
		case '(':
			depth++
		case ')':
			if depth--; depth == 0 {
				return out, nil
			}
		case '\\':
			if out, err = l.lexEscape(out); err != nil {
				return nil, fmt.Errorf("unterminated string: %w", err)
			}
			continue
		}
		out = append(out, b)
	}
}

var escapes = map[byte]byte{'n': '\n', 'r': '\r', 't': '\t', 'b': '\b', 'f': '\f'}

// lexEscape decodes the sequence after a backslash and appends it to out.
func (l *Lexer) lexEscape(out []byte) ([]byte, error) {
	b, err := l.ReadByte()
	if err != nil {
		return nil, err
	}
	if v, ok := escapes[b]; ok {
		return append(out, v), nil
	}
	switch {
	case b == '\n':
		return out, nil
	case b == '\r':
		if next, err := l.Peek(); err == nil && next == '\n' {
			l.skip(1)
		}
		return out, nil
	case b >= '0' && b <= '7':
		v := b - '0'
		for i := 0; i < 2; i++ {
			d, err := l.Peek()
			if err != nil || d < '0' || d > '7' {
				break
			}
			l.skip(1)
			v = v<<3 | (d - '0')
		}
		return append(out, v), nil
	}
	// \( \) \\ and unknown escapes keep the character
	return append(out, b), nil
}

// lexHex returns the hex digits of <...> with whitespace removed.
func (l *Lexer) lexHex() ([]byte, error) {
	l.skip(1)
	var digits []byte
	for {
		b, err := l.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated hex string: %w", err)
		}
		switch {
		case b == '>':
			return digits, nil
		case isHexDigit(b):
			digits = append(digits, b)
		case !isWhitespace(b):
			return nil, fmt.Errorf("invalid hex digit '%c' at position %d", b, l.pos-1)
		}
	}
}

// lexName returns a name without its slash, with #xx escapes decoded.
func (l *Lexer) lexName() ([]byte, error) {
	l.skip(1)
	raw := l.takeWhile(isRegular, nil)
	name := raw[:0]
	for i := 0; i < len(raw); i++ {
		if raw[i] != '#' {
			name = append(name, raw[i])
			continue
		}
		if i+2 >= len(raw) || !isHexDigit(raw[i+1]) || !isHexDigit(raw[i+2]) {
			return nil, fmt.Errorf("invalid hex escape in name at position %d", l.pos-int64(len(raw)-i))
		}
		name = append(name, hexValue(raw[i+1])<<4|hexValue(raw[i+2]))
		i += 2
	}
	return name, nil
}

// lexNumber reads an optional sign, digits and at most one decimal point.
func (l *Lexer) lexNumber(start int64) (*Token, error) {
	var num []byte
	if b, _ := l.Peek(); b == '-' || b == '+' {
		l.skip(1)
		num = append(num, b)
	}
	seenDot := false
	num = l.takeWhile(func(b byte) bool {
		if b == '.' && !seenDot {
			seenDot = true
			return true
		}
		return isDigit(b)
	}, num)

	typ := TokenInteger
	if seenDot {
		typ = TokenReal
	}
	return &Token{Type: typ, Value: num, Pos: start}, nil
}

// ReadBytes reads exactly n bytes of raw stream data.
func (l *Lexer) ReadBytes(n int) ([]byte, error) {
	data := make([]byte, n)
	read, err := io.ReadFull(l.reader, data)
	l.pos += int64(read)
	if err != nil {
		return data[:read], fmt.Errorf("unexpected EOF: expected %d bytes, got %d", n, read)
	}
	return data, nil
}

// SkipStreamEOL consumes the end-of-line marker that follows the "stream"
// keyword: LF or CR LF. A lone CR is tolerated.
func (l *Lexer) SkipStreamEOL() error {
	// some writers put spaces between the keyword and the EOL
	l.takeWhile(func(b byte) bool { return b == ' ' || b == '\t' }, nil)
	if _, err := l.Peek(); err != nil {
		return err
	}
	l.skipEOL()
	return nil
}

// Peek returns the next byte without consuming it.
func (l *Lexer) Peek() (byte, error) {
	b, err := l.reader.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadByte reads and returns a single byte.
func (l *Lexer) ReadByte() (byte, error) {
	b, err := l.reader.ReadByte()
	if err != nil {
		return 0, err
	}
	l.pos++
	return b, nil
}
