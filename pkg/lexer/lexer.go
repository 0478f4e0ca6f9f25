package lexer

import (
	"strings"
	"unicode/utf8"
)

// Tokenize never fails: characters outside the grammar become Unexpected
// tokens so the parser can report them and keep going.
func Tokenize(input string) []Token {
	s := &scanner{src: input}
	tokens := make([]Token, 0, len(input)/4)
	for s.pos < len(s.src) {
		if tok, ok := s.next(); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

type scanner struct {
	src  string
	pos  int
	line int
	col  int
}

var singles = map[byte]Kind{
	'{': LeftBrace,
	'}': RightBrace,
	'[': LeftBracket,
	']': RightBracket,
	'(': LeftParen,
	')': RightParen,
	':': Colon,
	',': Comma,
	'=': Equals,
	';': Semicolon,
}

// next scans one lexeme. ok is false when only whitespace or a comment was
// consumed.
func (s *scanner) next() (Token, bool) {
	c := s.src[s.pos]

	switch {
	case s.startsWith("//"):
		s.skipLineComment()
		return Token{}, false
	case s.startsWith("/*"):
		s.skipBlockComment()
		return Token{}, false
	}

	if kind, ok := singles[c]; ok {
		return s.emit(kind, "", 1), true
	}

	switch c {
	case '+', '-', '*', '/':
		return s.emit(Expression, string(c), 1), true
	case ' ', '\t', '\r', '\n', '\v', '\f':
		s.advance(1)
		return Token{}, false
	case '"':
		return s.scanString(), true
	case '\\':
		return s.emit(StringDelimiter, `\`, 1), true
	}

	if s.startsWith("true") {
		return s.emit(True, "", 4), true
	}
	if s.startsWith("false") {
		return s.emit(False, "", 5), true
	}

	if isValueChar(c) {
		return s.scanValue(), true
	}

	_, size := utf8.DecodeRuneInString(s.src[s.pos:])
	return s.emit(Unexpected, s.src[s.pos:s.pos+size], size), true
}

func (s *scanner) startsWith(prefix string) bool {
	return strings.HasPrefix(s.src[s.pos:], prefix)
}

// advance moves n bytes forward keeping line and column in sync.
func (s *scanner) advance(n int) {
	end := s.pos + n
	if end > len(s.src) {
		end = len(s.src)
	}
	for ; s.pos < end; s.pos++ {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			s.line++
			s.col = 0
		case c&0xC0 != 0x80:
			s.col++
		}
	}
}

func (s *scanner) emit(kind Kind, value string, width int) Token {
	tok := Token{Kind: kind, Value: value, Start: s.pos, Line: s.line, Column: s.col}
	s.advance(width)
	tok.End, tok.EndLine, tok.EndColumn = s.pos, s.line, s.col
	return tok
}

func (s *scanner) skipLineComment() {
	idx := strings.IndexByte(s.src[s.pos:], '\n')
	if idx < 0 {
		s.advance(len(s.src) - s.pos)
		return
	}
	s.advance(idx + 1)
}

// skipBlockComment consumes to the closing */ or to the end of input.
func (s *scanner) skipBlockComment() {
	idx := strings.Index(s.src[s.pos+2:], "*/")
	if idx < 0 {
		s.advance(len(s.src) - s.pos)
		return
	}
	s.advance(idx + 4)
}

// scanString reads up to the first quote not preceded by a backslash. An
// unterminated string runs to the end of input.
func (s *scanner) scanString() Token {
	tok := Token{Kind: String, Start: s.pos, Line: s.line, Column: s.col}
	s.advance(1)
	begin := s.pos
	end := len(s.src)
	for i := begin; i < len(s.src); i++ {
		if s.src[i] == '"' && s.src[i-1] != '\\' {
			end = i
			break
		}
	}
	tok.Value = s.src[begin:end]
	s.advance(end - begin)
	if s.pos < len(s.src) {
		s.advance(1)
	}
	tok.End, tok.EndLine, tok.EndColumn = s.pos, s.line, s.col
	return tok
}

// scanValue reads a bareword. A run of digits and spaces directly followed by
// a slash ends early so that "2/foo" lexes as 2, /, foo.
func (s *scanner) scanValue() Token {
	tok := Token{Kind: Value, Start: s.pos, Line: s.line, Column: s.col}
	numeric := true
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if !isValueChar(c) || s.startsWith("//") || s.startsWith("/*") {
			break
		}
		numeric = numeric && (c == ' ' || (c >= '0' && c <= '9'))
		s.advance(1)
		if numeric && s.pos < len(s.src) && s.src[s.pos] == '/' {
			break
		}
	}

	raw := s.src[tok.Start:s.pos]
	tok.Value = strings.TrimSpace(raw)
	// trailing blanks belong to the whitespace between tokens
	tok.End = tok.Start + len(tok.Value)
	tok.EndLine = tok.Line
	tok.EndColumn = tok.Column + len(tok.Value)
	return tok
}

func isValueChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("-^~./&_<>% ", c) >= 0
}
