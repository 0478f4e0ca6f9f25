package finder_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/rulesls/pkg/cancel"
	"github.com/walteh/rulesls/pkg/finder"
)

func fixture(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, path := range []string{
		"/mod/a.rules",
		"/mod/readme.txt",
		"/mod/sub/b.rules",
		"/mod/sub/C.RULES",
		"/mod/sub/icon.png",
	} {
		require.NoError(t, afero.WriteFile(fs, path, []byte("A = 1"), 0o644))
	}
	return fs
}

func TestFind(t *testing.T) {
	fs := fixture(t)

	tests := []struct {
		name       string
		patterns   []string
		extensions []string
		want       []string
	}{
		{
			name:     "directory",
			patterns: []string{"/mod"},
			want:     []string{"/mod/a.rules", "/mod/sub/C.RULES", "/mod/sub/b.rules"},
		},
		{
			name:     "glob",
			patterns: []string{"/mod/*.rules"},
			want:     []string{"/mod/a.rules"},
		},
		{
			name:     "double star",
			patterns: []string{"/mod/**/b.rules"},
			want:     []string{"/mod/sub/b.rules"},
		},
		{
			name:     "single file",
			patterns: []string{"/mod/a.rules"},
			want:     []string{"/mod/a.rules"},
		},
		{
			name:     "duplicates",
			patterns: []string{"/mod/a.rules", "/mod/*.rules", "/mod"},
			want:     []string{"/mod/a.rules", "/mod/sub/C.RULES", "/mod/sub/b.rules"},
		},
		{
			name:       "other extensions",
			patterns:   []string{"/mod"},
			extensions: []string{".png", ".txt"},
			want:       []string{"/mod/readme.txt", "/mod/sub/icon.png"},
		},
		{
			name:     "no match",
			patterns: []string{"/mod/*.shader"},
			want:     nil,
		},
		{
			name:     "missing directory",
			patterns: []string{"/nowhere/*.rules"},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := finder.New(fs, tt.extensions...).Find(context.Background(), tt.patterns...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindCancelled(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	_, err := finder.New(fixture(t)).Find(ctx, "/mod")
	assert.ErrorIs(t, err, cancel.ErrCancelled)
}
