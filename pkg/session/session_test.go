package session_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/rulesls/pkg/completion"
	"github.com/walteh/rulesls/pkg/config"
	"github.com/walteh/rulesls/pkg/session"
)

const uri = "file:///mod/a.rules"

func newSession(t *testing.T, files map[string]string, edit func(*config.Settings)) *session.Session {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/game/Data/cosmoteer.rules", []byte("Root { Sub = 1 }"), 0o644))
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}

	settings := config.Default()
	settings.DataPath = "/game/Data"
	if edit != nil {
		edit(settings)
	}
	s, err := session.New(context.Background(), fs, settings)
	require.NoError(t, err)
	return s
}

func TestAnalyze(t *testing.T) {
	s := newSession(t, nil, nil)

	diags, err := s.Analyze(context.Background(), uri, "A = 1\nB = &Missing\n}")
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.Equal(t, "Not expected right brace, did you mean to open an object?", diags[0].Message)
	assert.Equal(t, "Reference name is not known", diags[1].Message)
	assert.Equal(t, 1, diags[1].Range.Start.Line)
	assert.Equal(t, uri, diags[1].URI)
}

func TestAnalyzeClean(t *testing.T) {
	s := newSession(t, nil, nil)

	diags, err := s.Analyze(context.Background(), uri, "A = 1\nB = &A\nC = &/Root/Sub")
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestAnalyzeCapsProblems(t *testing.T) {
	s := newSession(t, nil, func(c *config.Settings) { c.MaxNumberOfProblems = 2 })

	diags, err := s.Analyze(context.Background(), uri, "A = &W\nB = &X\nC = &Y\nD = &Z")
	require.NoError(t, err)
	assert.Len(t, diags, 2)
}

func TestAnalyzeIgnorePaths(t *testing.T) {
	s := newSession(t, nil, func(c *config.Settings) { c.IgnorePaths = []string{"Missing"} })

	diags, err := s.Analyze(context.Background(), uri, "B = &Missing")
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestAnalyzeWithoutGameData(t *testing.T) {
	s := newSession(t, nil, func(c *config.Settings) { c.DataPath = "" })

	diags, err := s.Analyze(context.Background(), uri, "A = 1\nB = &A")
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestDiagnoseUnknownDocument(t *testing.T) {
	s := newSession(t, nil, nil)

	_, err := s.Diagnose(context.Background(), uri)
	require.ErrorIs(t, err, session.ErrUnknownDocument)
}

func TestComplete(t *testing.T) {
	s := newSession(t, nil, nil)
	ctx := context.Background()

	_, err := s.Analyze(ctx, uri, "X = &")
	require.NoError(t, err)

	got, err := s.Complete(ctx, uri, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, completion.Starters, got)

	got, err = s.Complete(ctx, uri, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got, "cursor on a key")
}

func TestCompleteReadsUnopenedFile(t *testing.T) {
	s := newSession(t, map[string]string{
		"/mod/b.rules": "Top = 1\nX = &/R",
	}, nil)

	got, err := s.Complete(context.Background(), "file:///mod/b.rules", 1, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"Root"}, got)

	doc, ok := s.Documents().Get("/mod/b.rules")
	require.True(t, ok)
	assert.Equal(t, "file:///mod/b.rules", doc.URI)
}

func TestCompleteUnknownDocument(t *testing.T) {
	s := newSession(t, nil, nil)

	_, err := s.Complete(context.Background(), "file:///mod/none.rules", 0, 0)
	require.ErrorIs(t, err, session.ErrUnknownDocument)
}

func TestClose(t *testing.T) {
	s := newSession(t, nil, nil)
	s.Parse(context.Background(), uri, "A = 1")

	_, ok := s.Documents().Get(uri)
	require.True(t, ok)

	s.Close(uri)
	_, ok = s.Documents().Get(uri)
	assert.False(t, ok)
}

func TestWithContextTagsSession(t *testing.T) {
	s := newSession(t, nil, nil)
	assert.False(t, s.ID().IsNil())

	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	zerolog.Ctx(s.WithContext(ctx)).Info().Msg("hello")

	assert.Contains(t, buf.String(), s.ID().String())
}

func TestLoad(t *testing.T) {
	s := newSession(t, map[string]string{
		"/mod/b.rules": "A = &Missing",
	}, nil)
	ctx := context.Background()

	doc, err := s.Load(ctx, "/mod/b.rules")
	require.NoError(t, err)
	assert.Equal(t, "file:///mod/b.rules", doc.URI)

	diags, err := s.Diagnose(ctx, doc.URI)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "Reference name is not known", diags[0].Message)

	_, err = s.Load(ctx, "/mod/none.rules")
	require.Error(t, err)
}
