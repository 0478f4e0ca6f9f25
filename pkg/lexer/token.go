// Package lexer turns rules text into a flat token stream.
package lexer

import "fmt"

// Kind is the lexical class of a token.
type Kind int

const (
	LeftBrace Kind = iota
	RightBrace
	LeftBracket
	RightBracket
	LeftParen
	RightParen
	Colon
	Equals
	Comma
	Semicolon
	String
	True
	False
	// Value is a bareword: a number, a name, a reference or a path.
	Value
	// Expression is one of the operators + - * /.
	Expression
	// StringDelimiter is a lone backslash, only meaningful right after a string.
	StringDelimiter
	Unexpected
)

var kindNames = [...]string{
	LeftBrace:       "LeftBrace",
	RightBrace:      "RightBrace",
	LeftBracket:     "LeftBracket",
	RightBracket:    "RightBracket",
	LeftParen:       "LeftParen",
	RightParen:      "RightParen",
	Colon:           "Colon",
	Equals:          "Equals",
	Comma:           "Comma",
	Semicolon:       "Semicolon",
	String:          "String",
	True:            "True",
	False:           "False",
	Value:           "Value",
	Expression:      "Expression",
	StringDelimiter: "StringDelimiter",
	Unexpected:      "Unexpected",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Token is a single lexeme. Start and End are byte offsets into the source,
// Line and Column are zero based; Column counts characters, not bytes.
type Token struct {
	Kind  Kind
	Value string

	Start int
	End   int

	Line      int
	Column    int
	EndLine   int
	EndColumn int
}

func (t Token) String() string {
	if t.Value == "" {
		return fmt.Sprintf("%s@%d:%d", t.Kind, t.Line, t.Column)
	}
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Value, t.Line, t.Column)
}
