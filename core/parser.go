package core

import (
	"fmt"
	"io"
	"strconv"
)

// ReferenceResolver loads objects the parser needs while it is still
// reading another one, such as an indirect stream /Length.
type ReferenceResolver interface {
	ResolveReference(id ObjectID) (Object, error)
}

// IndirectObject is an object definition "n g obj ... endobj"
type IndirectObject struct {
	ID     ObjectID
	Object Object
}

// Parser builds objects from the tokens of a Lexer, with one token of
// lookahead for "n g R".
type Parser struct {
	lexer    *Lexer
	tok      *Token // current token, nil at end of input
	ahead    *Token // lookahead, nil after "stream"
	lexErr   error  // first tokenizer error, reported at end of input
	resolver ReferenceResolver
	refs     RefTable
}

// NewParser creates a new PDF parser for the given reader.
func NewParser(r io.Reader) *Parser {
	return newParserFromLexer(NewLexer(r))
}

func newParserFromLexer(l *Lexer) *Parser {
	p := &Parser{lexer: l, refs: make(localRefs)}
	p.fill()
	return p
}

// SetReferenceResolver sets the resolver used for indirect stream lengths.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// SetRefTable binds every "n g R" the parser reads to the node handed out
// by t. Without a table each parser keeps its own, so repeated references
// within one parse still share a node but cannot be resolved.
func (p *Parser) SetRefTable(t RefTable) {
	if t == nil {
		t = make(localRefs)
	}
	p.refs = t
}

// localRefs is the fallback table for parsers without a source.
type localRefs map[ObjectID]*IndirectRef

func (l localRefs) Ref(id ObjectID) *IndirectRef {
	r, ok := l[id]
	if !ok {
		r = NewIndirectRef(id, nil)
		l[id] = r
	}
	return r
}

// fill discards both tokens and reads two fresh ones from the lexer.
func (p *Parser) fill() {
	p.tok, p.ahead, p.lexErr = nil, nil, nil
	p.advance()
	p.advance()
}

// advance shifts the lookahead into the current token. Nothing is read
// past a "stream" keyword; the bytes after it are not tokens.
func (p *Parser) advance() {
	p.tok = p.ahead
	p.ahead = nil
	if isKeyword(p.tok, "stream") {
		return
	}
	next, err := p.lexer.NextToken()
	if err != nil {
		if p.lexErr == nil {
			p.lexErr = err
		}
		return
	}
	p.ahead = next
}

// endOfInput reports running out of tokens, with the tokenizer error that
// caused it if there was one.
func (p *Parser) endOfInput(where string) error {
	if p.lexErr != nil {
		return fmt.Errorf("unexpected end of input%s: %w", where, p.lexErr)
	}
	return fmt.Errorf("unexpected end of input%s", where)
}

func isKeyword(tok *Token, kw string) bool {
	return tok != nil && tok.Type == TokenKeyword && string(tok.Value) == kw
}

func (p *Parser) at(typ TokenType) bool {
	return p.tok != nil && p.tok.Type == typ
}

func (p *Parser) skipComments() {
	for p.at(TokenComment) {
		p.advance()
	}
}

// ParseObject parses and returns the next PDF object from the input.
// The returned object is unmodified as far as IndirectRef.Modified is
// concerned.
func (p *Parser) ParseObject() (Object, error) {
	obj, err := p.parseObject()
	if err != nil {
		return nil, err
	}
	MarkClean(obj)
	return obj, nil
}

func (p *Parser) parseObject() (Object, error) {
	p.skipComments()
	if p.tok == nil {
		return nil, p.endOfInput("")
	}

	tok := p.tok
	switch tok.Type {
	case TokenEOF:
		return nil, io.EOF
	case TokenInteger:
		return p.parseNumber()
	case TokenArrayStart:
		return p.parseArray()
	case TokenDictStart:
		return p.parseDict()
	}

	var obj Object
	switch tok.Type {
	case TokenKeyword:
		switch string(tok.Value) {
		case "null":
			obj = Null{}
		case "true":
			obj = Bool(true)
		case "false":
			obj = Bool(false)
		default:
			return nil, fmt.Errorf("unexpected keyword: %s", tok.Value)
		}
	case TokenReal:
		f, err := strconv.ParseFloat(string(tok.Value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid real number: %w", err)
		}
		obj = Real(f)
	case TokenString:
		obj = String(tok.Value)
	case TokenHexString:
		obj = String(decodeHexDigits(tok.Value))
	case TokenName:
		obj = Name(tok.Value)
	default:
		return nil, fmt.Errorf("unexpected token type: %v at position %d", tok.Type, tok.Pos)
	}
	p.advance()
	return obj, nil
}

// decodeHexDigits packs validated hex digits into bytes; an odd final digit
// is padded with 0.
func decodeHexDigits(digits []byte) []byte {
	out := make([]byte, (len(digits)+1)/2)
	for i, d := range digits {
		if i%2 == 0 {
			out[i/2] = hexValue(d) << 4
		} else {
			out[i/2] |= hexValue(d)
		}
	}
	return out
}

// parseNumber parses an integer, or a reference when the next two tokens
// are an integer and R.
func (p *Parser) parseNumber() (Object, error) {
	text := string(p.tok.Value)
	num, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return nil, fmt.Errorf("invalid number: %s", text)
		}
		p.advance()
		return Real(f), nil
	}
	p.advance()

	if !p.at(TokenInteger) || p.ahead == nil || p.ahead.Type != TokenIndirectRef {
		return Int(num), nil
	}
	gen, err := strconv.ParseInt(string(p.tok.Value), 10, 64)
	if err != nil {
		return Int(num), nil
	}
	p.advance()
	p.advance()
	return p.refs.Ref(ObjectID{Number: int(num), Generation: int(gen)}), nil
}

// parseArray parses "[obj1 obj2 ...]".
func (p *Parser) parseArray() (Object, error) {
	p.advance()
	arr := NewArray()
	for {
		p.skipComments()
		switch {
		case p.tok == nil:
			return nil, p.endOfInput(" in array")
		case p.at(TokenArrayEnd):
			p.advance()
			return arr, nil
		case p.at(TokenEOF):
			return nil, fmt.Errorf("unexpected EOF in array")
		}
		item, err := p.parseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing array element: %w", err)
		}
		arr.Append(item)
	}
}

// parseDict parses "<< /Key value ... >>".
func (p *Parser) parseDict() (Object, error) {
	p.advance()
	dict := NewDict()
	for {
		p.skipComments()
		switch {
		case p.tok == nil:
			return nil, p.endOfInput(" in dictionary")
		case p.at(TokenDictEnd):
			p.advance()
			return dict, nil
		case p.at(TokenEOF):
			return nil, fmt.Errorf("unexpected EOF in dictionary")
		case !p.at(TokenName):
			return nil, fmt.Errorf("expected name for dictionary key, got %v", p.tok.Type)
		}
		key := string(p.tok.Value)
		p.advance()

		value, err := p.parseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing dictionary value for key '%s': %w", key, err)
		}
		dict.Set(key, value)
	}
}

// expectInt consumes an integer token.
func (p *Parser) expectInt(what string) (int, error) {
	if !p.at(TokenInteger) {
		return 0, fmt.Errorf("expected %s, got %v", what, p.tok)
	}
	n, err := strconv.Atoi(string(p.tok.Value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", what, err)
	}
	p.advance()
	return n, nil
}

// ParseIndirectObject parses "num gen obj <object> endobj", where the
// object may be a dictionary followed by stream data.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	p.skipComments()
	if p.tok == nil {
		return nil, p.endOfInput("")
	}

	num, err := p.expectInt("object number")
	if err != nil {
		return nil, err
	}
	gen, err := p.expectInt("generation number")
	if err != nil {
		return nil, err
	}
	if !isKeyword(p.tok, "obj") {
		return nil, fmt.Errorf("expected 'obj' keyword, got %v", p.tok)
	}
	p.advance()

	obj, err := p.parseObject()
	if err != nil {
		return nil, fmt.Errorf("error parsing indirect object value: %w", err)
	}

	if isKeyword(p.tok, "stream") {
		dict, ok := obj.(*Dict)
		if !ok {
			return nil, fmt.Errorf("stream must follow a dictionary")
		}
		if obj, err = p.parseStream(dict); err != nil {
			return nil, fmt.Errorf("error parsing stream: %w", err)
		}
	}

	// Some producers omit endobj; accept its absence at end of input
	switch {
	case isKeyword(p.tok, "endobj"):
		p.advance()
	case !p.at(TokenEOF):
		return nil, fmt.Errorf("expected 'endobj' keyword, got %v", p.tok)
	}

	MarkClean(obj)
	return &IndirectObject{
		ID:     ObjectID{Number: num, Generation: gen},
		Object: obj,
	}, nil
}

// parseStream reads /Length bytes of data after the "stream" keyword and
// its EOL, then expects "endstream".
func (p *Parser) parseStream(dict *Dict) (*Stream, error) {
	length, err := p.streamLength(dict)
	if err != nil {
		return nil, err
	}

	if err := p.lexer.SkipStreamEOL(); err != nil {
		return nil, fmt.Errorf("failed to skip EOL after stream keyword: %w", err)
	}
	data, err := p.lexer.ReadBytes(length)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream data: %w", err)
	}

	end, err := p.lexer.NextToken()
	if err != nil {
		return nil, fmt.Errorf("failed to read token after stream data: %w", err)
	}
	if !isKeyword(end, "endstream") {
		return nil, fmt.Errorf("expected 'endstream' keyword, got %v (%s)", end.Type, end.Value)
	}
	p.fill()
	return NewStream(dict, data), nil
}

// streamLength reads /Length, resolving it when it is a reference.
func (p *Parser) streamLength(dict *Dict) (int, error) {
	v := dict.Get("Length")
	if v == nil {
		return 0, fmt.Errorf("stream dictionary missing 'Length' entry")
	}

	if ref, ok := v.(*IndirectRef); ok {
		var err error
		if p.resolver != nil {
			v, err = p.resolver.ResolveReference(ref.ID())
		} else {
			v, err = ref.Resolve()
		}
		if err != nil {
			return 0, fmt.Errorf("failed to resolve stream length reference: %w", err)
		}
	}

	n, ok := v.(Int)
	if !ok {
		return 0, fmt.Errorf("invalid type for stream length: %T", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid stream length: %d", n)
	}
	return int(n), nil
}
