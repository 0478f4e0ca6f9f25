package validation_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/rulesls/pkg/ast"
	"github.com/walteh/rulesls/pkg/cancel"
	"github.com/walteh/rulesls/pkg/navigation"
	"github.com/walteh/rulesls/pkg/validation"
	"github.com/walteh/rulesls/pkg/workspace"
)

const modFile = "/mod/a.rules"

type problem struct {
	Message string
	Text    string
}

type fixture struct {
	engine *validation.Engine
	index  *workspace.Index
}

func newFixture(t *testing.T, files map[string]string, opts ...validation.Option) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/game/Data/cosmoteer.rules", []byte("Root { }"), 0o644))
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	ix := workspace.NewIndex(fs, "/game/Data")
	require.NoError(t, ix.Load(context.Background()))
	return &fixture{engine: validation.New(navigation.New(ix), opts...), index: ix}
}

func (f *fixture) validate(t *testing.T, path string) ([]*validation.Error, []problem) {
	t.Helper()
	parsed, err := f.index.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Empty(t, parsed.Errors)

	errs, err := f.engine.Validate(context.Background(), parsed.Document)
	require.NoError(t, err)

	problems := make([]problem, 0, len(errs))
	for _, e := range errs {
		p := problem{Message: e.Message}
		switch n := e.Node.(type) {
		case *ast.Value:
			p.Text = n.Text
		case *ast.Expression:
			p.Text = n.Operator
		}
		problems = append(problems, p)
	}
	return errs, problems
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []problem
	}{
		{
			name:   "undefined function argument",
			source: "Foo(&Bar)",
			want:   []problem{{"Reference name is not known", "&Bar"}},
		},
		{
			name:   "defined function argument",
			source: "Bar = 1\nFoo(&Bar)",
			want:   []problem{},
		},
		{
			name:   "unknown reference",
			source: "X = &Nope",
			want:   []problem{{"Reference name is not known", "&Nope"}},
		},
		{
			name:   "invalid reference",
			source: "X = &1abc",
			want:   []problem{{"Reference is not valid", "&1abc"}},
		},
		{
			name:   "missing ampersand",
			source: "Foo = 1\nX = ../Foo",
			want:   []problem{{"Reference should start with an ampersand", "../Foo"}},
		},
		{
			name:   "quoted reference",
			source: "Foo = 1\nX = \"&Foo\"",
			want:   []problem{{"Reference should not be quoted", "&Foo"}},
		},
		{
			name:   "double operator",
			source: "A = (1 + + 2)",
			want:   []problem{{"Between two expressions should be a Value", "+"}},
		},
		{
			name:   "trailing operator",
			source: "A = (1 +)",
			want:   []problem{{"Last element in MathExpression should be a Value", "+"}},
		},
		{
			name:   "string in math",
			source: "A = (1 + abc)",
			want:   []problem{{"Invalid argument type, expected Number or Reference. Got String", "abc"}},
		},
		{
			name:   "string argument",
			source: "Foo(abc)",
			want:   []problem{{"Invalid argument type, expected Reference(&) or Number", "abc"}},
		},
		{
			name:   "unseparated reference argument",
			source: "Bar = 1\nFoo((2) &Bar)",
			want:   []problem{{"Reference in function calls need to be parenthesized", "&Bar"}},
		},
		{
			name:   "comma separated reference argument",
			source: "Bar = 1\nFoo(2, &Bar)",
			want:   []problem{},
		},
		{
			name:   "reference argument without ampersand",
			source: "Foo(../Bar)",
			want:   []problem{{"Reference in function calls need to start with an ampersand", "../Bar"}},
		},
		{
			name:   "parenthesized string",
			source: "A = (abc)",
			want:   []problem{{"Value should not be parenthesized", "abc"}},
		},
		{
			name:   "parenthesized reference",
			source: "B = 2\nA = (&B)",
			want:   []problem{},
		},
		{
			name:   "inherited base",
			source: "Base1 { Y = 2 }\nFoo : Base1 { X = &Y }",
			want:   []problem{},
		},
		{
			name:   "member inherited by enclosing object",
			source: "Base { Y = 2 }\nFoo : Base { Inner { X = &Y } }",
			want:   []problem{},
		},
		{
			name:   "unknown base",
			source: "Foo : Missing { }",
			want:   []problem{{"Reference name is not known", "Missing"}},
		},
		{
			name:   "super file",
			source: "X = &/Root",
			want:   []problem{},
		},
		{
			name:   "missing asset",
			source: `A = "icon.png"`,
			want:   []problem{{"Asset file not found", "icon.png"}},
		},
		{
			name:   "unquoted asset",
			source: "A = hit.wav",
			want:   []problem{{"Asset path should be quoted", "hit.wav"}},
		},
		{
			name:   "one error per node",
			source: "Foo(&1x)",
			want:   []problem{{"Reference is not valid", "&1x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{modFile: tt.source})
			_, got := f.validate(t, modFile)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateExistingAsset(t *testing.T) {
	f := newFixture(t, map[string]string{
		modFile:               "A = \"icon.png\"\nB = \"./Data/Hull.PNG\"",
		"/mod/Icon.png":       "",
		"/game/Data/hull.png": "",
	})
	_, got := f.validate(t, modFile)
	assert.Empty(t, got)
}

func TestValidateModRulesSkipsResolution(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/mod/mod.rules": "X = &Nope\nY = ../Other",
	})
	_, got := f.validate(t, "/mod/mod.rules")
	assert.Empty(t, got)
}

func TestValidateIgnorePaths(t *testing.T) {
	f := newFixture(t, map[string]string{modFile: "X = &Generated/Thing"}, validation.WithIgnorePaths("GENERATED"))
	_, got := f.validate(t, modFile)
	assert.Empty(t, got)
}

func TestValidateSuggestsName(t *testing.T) {
	f := newFixture(t, map[string]string{modFile: "Health = 1\nX = &Helth"})
	errs, _ := f.validate(t, modFile)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Related, "Did you mean Health?")
}

func TestValidateCancelled(t *testing.T) {
	f := newFixture(t, map[string]string{modFile: "X = &Nope"})
	parsed, err := f.index.Parse(context.Background(), modFile)
	require.NoError(t, err)

	ctx, stop := context.WithCancel(context.Background())
	stop()

	errs, err := f.engine.Validate(ctx, parsed.Document)
	assert.True(t, cancel.Is(err))
	assert.Nil(t, errs)
}

func TestRegisterReplacesHandler(t *testing.T) {
	f := newFixture(t, map[string]string{modFile: "X = 1"})
	f.engine.Register(ast.KindAssignment, func(_ context.Context, n ast.Node) (*validation.Error, error) {
		return &validation.Error{Message: "no assignments", Node: n}, nil
	})

	errs, _ := f.validate(t, modFile)
	require.Len(t, errs, 1)
	assert.Equal(t, "no assignments", errs[0].Message)
}
