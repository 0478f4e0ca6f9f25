package position_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/walteh/rulesls/pkg/position"
)

func TestPlaceOf(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		offset int
		want   position.Place
	}{
		{name: "empty text", text: "", offset: 0, want: position.Place{}},
		{name: "single line", text: "Hello, World!", offset: 7, want: position.Place{Line: 0, Character: 7}},
		{name: "second line", text: "Hello\nWorld\nTest", offset: 8, want: position.Place{Line: 1, Character: 2}},
		{name: "right after newline", text: "ab\ncd", offset: 3, want: position.Place{Line: 1, Character: 0}},
		{name: "multibyte counts as one", text: "é = 1", offset: 3, want: position.Place{Line: 0, Character: 2}},
		{name: "offset past end clamps", text: "abc", offset: 10, want: position.Place{Line: 0, Character: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, position.PlaceOf(tt.text, tt.offset))
		})
	}
}

func TestOffsetOf(t *testing.T) {
	text := "Foo {\n  Bar = é\n}"
	for _, offset := range []int{0, 3, 6, 8, 14, len(text)} {
		p := position.PlaceOf(text, offset)
		assert.Equal(t, offset, position.OffsetOf(text, p), "round trip at %d", offset)
	}

	assert.Equal(t, 5, position.OffsetOf(text, position.Place{Line: 0, Character: 99}), "clamps to line end")
	assert.Equal(t, len(text), position.OffsetOf(text, position.Place{Line: 9, Character: 0}), "clamps to text end")
}

func TestSpanContains(t *testing.T) {
	span := position.Span{Line: 1, EndLine: 3, CharacterStart: 4, CharacterEnd: 1}

	tests := []struct {
		name      string
		line, col int
		want      bool
	}{
		{"before start on first line", 1, 3, false},
		{"at start", 1, 4, true},
		{"middle line any column", 2, 80, true},
		{"at end inclusive", 3, 1, true},
		{"after end", 3, 2, false},
		{"line before", 0, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, span.Contains(tt.line, tt.col))
		})
	}
}

func TestSpanJoin(t *testing.T) {
	a := position.Span{Line: 0, EndLine: 0, CharacterStart: 4, CharacterEnd: 6, Start: 4, End: 6}
	b := position.Span{Line: 0, EndLine: 1, CharacterStart: 8, CharacterEnd: 2, Start: 8, End: 12}

	got := a.Join(b)
	assert.Equal(t, position.Span{Line: 0, EndLine: 1, CharacterStart: 4, CharacterEnd: 2, Start: 4, End: 12}, got)
	assert.Equal(t, got, b.Join(a))
}
