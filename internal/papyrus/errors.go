package papyrus

import "fmt"

// LexError reports a tokenization failure at a specific source position.
type LexError struct {
	File    string
	Pos     Pos
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s:%s: lex error: %s", e.File, e.Pos, e.Message)
}

// ParseError reports a grammar violation at a specific token.
type ParseError struct {
	File    string
	Pos     Pos
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%s: parse error: %s", e.File, e.Pos, e.Message)
}
