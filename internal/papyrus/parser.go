package papyrus

import (
	"fmt"
	"strconv"
)

// Parser turns a token stream into a slice of top-level Object values, one
// per statement.
type Parser struct {
	file   string
	tokens []Token
	pos    int
}

// Parse lexes and parses src, returning one Object Value per top-level
// call statement.
func Parse(file, src string) ([]*Value, error) {
	toks, err := Tokenize(file, src)
	if err != nil {
		return nil, err
	}
	p := &Parser{file: file, tokens: toks}
	return p.parseFile()
}

func (p *Parser) cur() Token  { return p.tokens[p.pos] }
func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errorf(at Pos, format string, args ...interface{}) error {
	return &ParseError{File: p.file, Pos: at, Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(k Kind) (Token, error) {
	if p.cur().Kind != k {
		return Token{}, p.errorf(p.cur().Pos, "expected %s, got %s", k, p.cur().Kind)
	}
	return p.advance(), nil
}

func (p *Parser) parseFile() ([]*Value, error) {
	var objects []*Value
	names := make(map[string]Pos)
	for p.cur().Kind != KindEOF {
		call, err := p.parseCall()
		if err != nil {
			return nil, err
		}
		obj, err := callToObject(p.file, call)
		if err != nil {
			return nil, err
		}
		nameVal, _ := obj.Field("name")
		if nameVal != nil && nameVal.Kind == ValueString {
			if prev, dup := names[nameVal.Str]; dup {
				return nil, p.errorf(obj.Pos, "duplicate name %q (first declared at %s)", nameVal.Str, prev)
			}
			names[nameVal.Str] = obj.Pos
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// callToObject converts a top-level Call Value into an Object Value keyed
// by its mandatory "name" argument.
func callToObject(file string, call *Value) (*Value, error) {
	nameVal, ok := call.Named["name"]
	if !ok {
		return nil, &ParseError{File: file, Pos: call.Pos, Message: fmt.Sprintf("statement %q is missing required argument \"name\"", call.FuncName)}
	}
	if nameVal.Kind != ValueString {
		return nil, &ParseError{File: file, Pos: nameVal.Pos, Message: "\"name\" must be a string literal"}
	}
	fields := make([]Field, 0, len(call.NamedOrd))
	for _, n := range call.NamedOrd {
		fields = append(fields, Field{Name: n, Value: call.Named[n]})
	}
	return NewObject(call.FuncName, fields, call.Pos), nil
}

// parseCall parses `Ident '(' args ')'`.
func (p *Parser) parseCall() (*Value, error) {
	identTok, err := p.expect(KindIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(KindLParen); err != nil {
		return nil, err
	}
	positional, named, namedOrd, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(KindRParen); err != nil {
		return nil, err
	}
	return NewCall(identTok.Text, positional, named, namedOrd, identTok.Pos), nil
}

func (p *Parser) parseArgs() ([]*Value, map[string]*Value, []string, error) {
	var positional []*Value
	named := make(map[string]*Value)
	var namedOrd []string

	if p.cur().Kind == KindRParen {
		return positional, named, namedOrd, nil
	}

	for {
		if p.cur().Kind == KindIdent && p.peek().Kind == KindEquals {
			nameTok := p.advance()
			p.advance() // '='
			val, err := p.parseExpr()
			if err != nil {
				return nil, nil, nil, err
			}
			if _, dup := named[nameTok.Text]; dup {
				return nil, nil, nil, p.errorf(nameTok.Pos, "duplicate argument %q", nameTok.Text)
			}
			named[nameTok.Text] = val
			namedOrd = append(namedOrd, nameTok.Text)
		} else {
			val, err := p.parseExpr()
			if err != nil {
				return nil, nil, nil, err
			}
			positional = append(positional, val)
		}

		if p.cur().Kind != KindComma {
			break
		}
		p.advance() // ','
		if p.cur().Kind == KindRParen {
			break
		}
	}
	return positional, named, namedOrd, nil
}

func (p *Parser) parseExpr() (*Value, error) {
	return p.parseConcat()
}

func (p *Parser) parseConcat() (*Value, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == KindPlus {
		pos := p.advance().Pos
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = NewConcat(left, right, pos)
	}
	return left, nil
}

func (p *Parser) parsePrimary() (*Value, error) {
	tok := p.cur()
	switch tok.Kind {
	case KindString:
		p.advance()
		return NewString(tok.Text, tok.Pos), nil
	case KindNumber:
		p.advance()
		n, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, p.errorf(tok.Pos, "invalid number literal %q", tok.Text)
		}
		return NewNumber(tok.Text, n, tok.Pos), nil
	case KindTrue:
		p.advance()
		return NewBool(true, tok.Pos), nil
	case KindFalse:
		p.advance()
		return NewBool(false, tok.Pos), nil
	case KindWildcard:
		p.advance()
		return NewWildcard(tok.Pos), nil
	case KindLBracket:
		return p.parseArray()
	case KindLBrace:
		return p.parseMap()
	case KindLParen:
		return p.parseParenOrTuple()
	case KindIdent:
		if tok.Text == "select" && p.peek().Kind == KindLParen {
			return p.parseSelect()
		}
		if p.peek().Kind == KindLParen {
			return p.parseCall()
		}
		p.advance()
		return NewIdentifier(tok.Text, tok.Pos), nil
	}
	return nil, p.errorf(tok.Pos, "unexpected token %s", tok.Kind)
}

// parseArray parses `'[' (expr (',' expr)*)? ','? ']'`.
func (p *Parser) parseArray() (*Value, error) {
	start, err := p.expect(KindLBracket)
	if err != nil {
		return nil, err
	}
	var elems []*Value
	for p.cur().Kind != KindRBracket {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
		if p.cur().Kind != KindComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(KindRBracket); err != nil {
		return nil, err
	}
	return NewArray(elems, start.Pos), nil
}

// parseMap parses `'{' (mapentry (',' mapentry)*)? ','? '}'`.
func (p *Parser) parseMap() (*Value, error) {
	start, err := p.expect(KindLBrace)
	if err != nil {
		return nil, err
	}
	var entries []MapEntry
	for p.cur().Kind != KindRBrace {
		entry, err := p.parseMapEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		if p.cur().Kind != KindComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(KindRBrace); err != nil {
		return nil, err
	}
	return NewMap(entries, start.Pos), nil
}

// parseMapEntry parses `(tuple | 'default') '=' expr`.
func (p *Parser) parseMapEntry() (MapEntry, error) {
	var key MapKey
	if p.cur().Kind == KindIdent && p.cur().Text == "default" {
		p.advance()
		key = MapKey{IsDefault: true}
	} else {
		idents, err := p.parseKeyTuple()
		if err != nil {
			return MapEntry{}, err
		}
		key = MapKey{Idents: idents}
	}
	if _, err := p.expect(KindEquals); err != nil {
		return MapEntry{}, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return MapEntry{}, err
	}
	return MapEntry{Key: key, Value: val}, nil
}

// parseKeyTuple parses a selector-entry key: `(ident ('|' ident)*)
// (',' ident ('|' ident)*)*` wrapped in parens, or a single bare
// identifier disjunction with no parens when the tuple has arity one.
func (p *Parser) parseKeyTuple() ([]string, error) {
	if p.cur().Kind != KindLParen {
		return p.parseIdentDisjunction()
	}
	p.advance() // '('
	var idents []string
	for {
		part, err := p.parseIdentDisjunction()
		if err != nil {
			return nil, err
		}
		idents = append(idents, part...)
		if p.cur().Kind != KindComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(KindRParen); err != nil {
		return nil, err
	}
	return idents, nil
}

// parseIdentDisjunction parses `Ident ('|' Ident)*` or the wildcard '_',
// returning each alternative as a flattened component; the resolver
// treats a multi-element disjunction as "matches any of these".
func (p *Parser) parseIdentDisjunction() ([]string, error) {
	var alts []string
	for {
		switch p.cur().Kind {
		case KindIdent:
			alts = append(alts, p.advance().Text)
		case KindWildcard:
			p.advance()
			alts = append(alts, "_")
		default:
			return nil, p.errorf(p.cur().Pos, "expected identifier or '_' in selector key, got %s", p.cur().Kind)
		}
		if p.cur().Kind != KindPipe {
			break
		}
		p.advance()
	}
	if len(alts) == 1 {
		return alts, nil
	}
	return []string{joinDisjunction(alts)}, nil
}

func joinDisjunction(alts []string) string {
	s := alts[0]
	for _, a := range alts[1:] {
		s += "|" + a
	}
	return s
}

// parseParenOrTuple parses `'(' expr (',' expr)* ')'`: a single
// parenthesized expr with no comma is just grouping and is returned
// unwrapped; two or more produce a Tuple (selector keys only).
func (p *Parser) parseParenOrTuple() (*Value, error) {
	start, err := p.expect(KindLParen)
	if err != nil {
		return nil, err
	}
	var elems []*Value
	for {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
		if p.cur().Kind != KindComma {
			break
		}
		p.advance()
		if p.cur().Kind == KindRParen {
			break
		}
	}
	if _, err := p.expect(KindRParen); err != nil {
		return nil, err
	}
	if len(elems) == 1 {
		return elems[0], nil
	}
	return NewTuple(elems, start.Pos), nil
}

// parseSelect parses `'select' '(' tuple '=>' map ')'` into a Call value
// with FuncName "select" and two positional Args: the key tuple and the
// case map.
func (p *Parser) parseSelect() (*Value, error) {
	identTok, err := p.expect(KindIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(KindLParen); err != nil {
		return nil, err
	}
	tuple, err := p.parseSelectKeyTuple()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(KindFatArrow); err != nil {
		return nil, err
	}
	cases, err := p.parseMap()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(KindRParen); err != nil {
		return nil, err
	}
	return NewCall("select", []*Value{tuple, cases}, nil, nil, identTok.Pos), nil
}

// parseSelectKeyTuple parses the `(k1, k2, …)` variable-name tuple that
// select() matches against, producing a Tuple of Identifier values.
func (p *Parser) parseSelectKeyTuple() (*Value, error) {
	start, err := p.expect(KindLParen)
	if err != nil {
		return nil, err
	}
	var idents []*Value
	for {
		tok, err := p.expect(KindIdent)
		if err != nil {
			return nil, err
		}
		idents = append(idents, NewIdentifier(tok.Text, tok.Pos))
		if p.cur().Kind != KindComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(KindRParen); err != nil {
		return nil, err
	}
	return NewTuple(idents, start.Pos), nil
}
