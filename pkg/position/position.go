package position

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Place is a zero based line/character pair.
type Place struct {
	Line      int
	Character int
}

func (p Place) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Before reports whether p comes strictly before o.
func (p Place) Before(o Place) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

type Range struct {
	Start Place
	End   Place
}

// Contains is inclusive on both ends so a cursor sitting right after the
// last character still hits the range.
func (r Range) Contains(p Place) bool {
	return !p.Before(r.Start) && !r.End.Before(p)
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Span is the location of a syntax node: zero based lines, in-line character
// offsets and absolute byte offsets.
type Span struct {
	Line           int
	EndLine        int
	CharacterStart int
	CharacterEnd   int
	Start          int
	End            int
}

func (s Span) Range() Range {
	return Range{
		Start: Place{Line: s.Line, Character: s.CharacterStart},
		End:   Place{Line: s.EndLine, Character: s.CharacterEnd},
	}
}

func (s Span) Contains(line, character int) bool {
	return s.Range().Contains(Place{Line: line, Character: character})
}

// Join returns the smallest span covering both s and o.
func (s Span) Join(o Span) Span {
	out := s
	if o.Range().Start.Before(s.Range().Start) {
		out.Line, out.CharacterStart, out.Start = o.Line, o.CharacterStart, o.Start
	}
	if s.Range().End.Before(o.Range().End) {
		out.EndLine, out.CharacterEnd, out.End = o.EndLine, o.CharacterEnd, o.End
	}
	return out
}

// PlaceOf converts a byte offset into a line/character pair, counting
// characters the same way the lexer does.
func PlaceOf(text string, offset int) Place {
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}
	head := text[:offset]
	line := strings.Count(head, "\n")
	lastNewline := strings.LastIndexByte(head, '\n')
	return Place{Line: line, Character: utf8.RuneCountInString(head[lastNewline+1:])}
}

// OffsetOf is the inverse of PlaceOf. Places past the end of a line clamp to
// the line end, places past the end of the text clamp to len(text).
func OffsetOf(text string, p Place) int {
	offset := 0
	for i := 0; i < p.Line; i++ {
		idx := strings.IndexByte(text[offset:], '\n')
		if idx < 0 {
			return len(text)
		}
		offset += idx + 1
	}
	for col := 0; col < p.Character && offset < len(text) && text[offset] != '\n'; col++ {
		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
	}
	return offset
}
