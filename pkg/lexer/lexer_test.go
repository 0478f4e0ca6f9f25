package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kv struct {
	Kind  Kind
	Value string
}

func simplify(tokens []Token) []kv {
	out := make([]kv, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, kv{t.Kind, t.Value})
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []kv
	}{
		{
			name:  "assignment",
			input: "Health = 100",
			expected: []kv{
				{Value, "Health"},
				{Equals, ""},
				{Value, "100"},
			},
		},
		{
			name:  "object_with_inheritance",
			input: "Foo : ^/0/Bar { }",
			expected: []kv{
				{Value, "Foo"},
				{Colon, ""},
				{Value, "^/0/Bar"},
				{LeftBrace, ""},
				{RightBrace, ""},
			},
		},
		{
			name:  "numeric_prefix_splits_on_slash",
			input: "2/foo",
			expected: []kv{
				{Value, "2"},
				{Expression, "/"},
				{Value, "foo"},
			},
		},
		{
			name:  "division_with_spaces",
			input: "10 / 2",
			expected: []kv{
				{Value, "10"},
				{Expression, "/"},
				{Value, "2"},
			},
		},
		{
			name:  "value_with_spaces",
			input: "Name = Big Gun",
			expected: []kv{
				{Value, "Name"},
				{Equals, ""},
				{Value, "Big Gun"},
			},
		},
		{
			name:  "line_comment",
			input: "A = 1 // trailing\nB = 2",
			expected: []kv{
				{Value, "A"},
				{Equals, ""},
				{Value, "1"},
				{Value, "B"},
				{Equals, ""},
				{Value, "2"},
			},
		},
		{
			name:  "block_comment",
			input: "A /* x\ny */ = 1",
			expected: []kv{
				{Value, "A"},
				{Equals, ""},
				{Value, "1"},
			},
		},
		{
			name:     "unterminated_block_comment",
			input:    "A /* never closed",
			expected: []kv{{Value, "A"}},
		},
		{
			name:  "comment_ends_value",
			input: "&a/b//c",
			expected: []kv{
				{Value, "&a/b"},
			},
		},
		{
			name:  "string_with_escaped_quote",
			input: `"say \"hi\""`,
			expected: []kv{
				{String, `say \"hi\"`},
			},
		},
		{
			name:     "unterminated_string",
			input:    `"abc`,
			expected: []kv{{String, "abc"}},
		},
		{
			name:  "string_delimiter",
			input: `"a" \ "b"`,
			expected: []kv{
				{String, "a"},
				{StringDelimiter, `\`},
				{String, "b"},
			},
		},
		{
			name:  "booleans",
			input: "A = true, B = false",
			expected: []kv{
				{Value, "A"},
				{Equals, ""},
				{True, ""},
				{Comma, ""},
				{Value, "B"},
				{Equals, ""},
				{False, ""},
			},
		},
		{
			name:  "math_operators",
			input: "(1 + 2) * -3",
			expected: []kv{
				{LeftParen, ""},
				{Value, "1"},
				{Expression, "+"},
				{Value, "2"},
				{RightParen, ""},
				{Expression, "*"},
				{Expression, "-"},
				{Value, "3"},
			},
		},
		{
			name:  "brackets_and_semicolons",
			input: "[a; b]",
			expected: []kv{
				{LeftBracket, ""},
				{Value, "a"},
				{Semicolon, ""},
				{Value, "b"},
				{RightBracket, ""},
			},
		},
		{
			name:  "rules_file_reference",
			input: "&<./Data/ships/base.rules>/Part",
			expected: []kv{
				{Value, "&<./Data/ships/base.rules>/Part"},
			},
		},
		{
			name:  "unexpected_characters",
			input: "a # b é",
			expected: []kv{
				{Value, "a"},
				{Unexpected, "#"},
				{Value, "b"},
				{Unexpected, "é"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			assert.Equal(t, tt.expected, simplify(got))
		})
	}
}

func TestTokenizePositions(t *testing.T) {
	input := "A {\n  B = \"x\"\n}"
	tokens := Tokenize(input)
	require.Len(t, tokens, 6)

	b := tokens[2]
	assert.Equal(t, Value, b.Kind)
	assert.Equal(t, 1, b.Line)
	assert.Equal(t, 2, b.Column)
	assert.Equal(t, 3, b.EndColumn)

	assert.Equal(t, Equals, tokens[3].Kind)
	assert.Equal(t, 4, tokens[3].Column)

	s := tokens[4]
	assert.Equal(t, String, s.Kind)
	assert.Equal(t, 1, s.Line)
	assert.Equal(t, 6, s.Column)
	assert.Equal(t, 9, s.EndColumn)
	assert.Equal(t, "\"x\"", input[s.Start:s.End])
}

func TestTokenizeValueExcludesTrailingSpace(t *testing.T) {
	input := "Foo   = 1"
	tokens := Tokenize(input)
	require.NotEmpty(t, tokens)
	assert.Equal(t, "Foo", input[tokens[0].Start:tokens[0].End])
	assert.Equal(t, 3, tokens[0].EndColumn)
}

func TestTokenizeCoversInput(t *testing.T) {
	inputs := []string{
		"",
		"{{{{",
		"\"",
		"/*",
		"a = b = c",
		"Root { Parts [ &<x.rules>/A, (1+2) ] }",
		"\x00\xff",
	}
	for _, in := range inputs {
		require.NotPanics(t, func() { Tokenize(in) }, "input %q", in)
	}
}
