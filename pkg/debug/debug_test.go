package debug_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/walteh/rulesls/pkg/debug"
)

func TestSplitFuncName(t *testing.T) {
	tests := []struct {
		name     string
		pkg      string
		function string
	}{
		{"github.com/walteh/rulesls/pkg/parser.Parse", "github.com/walteh/rulesls/pkg/parser", "Parse"},
		{"github.com/walteh/rulesls/pkg/parser.(*parser).walk", "github.com/walteh/rulesls/pkg/parser", "(*parser).walk"},
		{"main.main", "main", "main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, fn := debug.SplitFuncName(tt.name)
			assert.Equal(t, tt.pkg, pkg)
			assert.Equal(t, tt.function, fn)
		})
	}
}

func TestFormatCaller(t *testing.T) {
	got := debug.FormatCaller("github.com/walteh/rulesls/pkg/parser", "/src/pkg/parser/parser.go", 42, false)
	assert.Equal(t, "pkg/parser:parser.go:42", got)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := debug.NewLogger(&buf, zerolog.InfoLevel, false)

	logger.Debug().Msg("hidden")
	logger.Info().Str("uri", "a.rules").Msg("parsed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "parsed")
	assert.Contains(t, out, "uri=a.rules")
	assert.Contains(t, out, "INF")
}
