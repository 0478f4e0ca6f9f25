package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/rulesls/pkg/cancel"
)

func newTestIndex(t *testing.T, files map[string]string) *Index {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return NewIndex(fs, "/game/Data")
}

func TestLoadAndFindFile(t *testing.T) {
	ix := newTestIndex(t, map[string]string{
		"/game/Data/cosmoteer.rules":         "Ships = []",
		"/game/Data/Ships/Terran/ship.rules": "Part { }",
		"/game/Data/Ships/Terran/icon.png":   "",
		"/game/Data/notes.txt":               "",
	})

	_, _, err := ix.FindFile("cosmoteer.rules")
	require.ErrorIs(t, err, ErrNotIndexed)

	require.NoError(t, ix.Load(context.Background()))

	tests := []struct {
		rel    string
		want   string
		wantOk bool
	}{
		{"cosmoteer.rules", "/game/Data/cosmoteer.rules", true},
		{"ships/terran/SHIP.rules", "/game/Data/Ships/Terran/ship.rules", true},
		{"./Ships/Terran/icon.png", "/game/Data/Ships/Terran/icon.png", true},
		{"Ships", "/game/Data/Ships", true},
		{"notes.txt", "", false},
		{"Ships/Human/ship.rules", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, ok, err := ix.FindFile(tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestLoadWithoutRoot(t *testing.T) {
	ix := NewIndex(afero.NewMemMapFs(), "")
	assert.ErrorIs(t, ix.Load(context.Background()), ErrNotIndexed)
	_, err := ix.SuperFile(context.Background())
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestListIndexed(t *testing.T) {
	ix := newTestIndex(t, map[string]string{
		"/game/Data/b.rules":      "",
		"/game/Data/a/x.rules":    "",
		"/game/Data/sounds/x.wav": "",
		"/game/Data/readme.md":    "",
	})
	require.NoError(t, ix.Load(context.Background()))

	entries, err := ix.ListIndexed("")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "a", Dir: true}, {Name: "b.rules"}, {Name: "sounds", Dir: true}}, entries)
}

func TestExistsCaseInsensitive(t *testing.T) {
	ix := newTestIndex(t, map[string]string{
		"/mod/Sprites/Hull.PNG": "",
	})
	ctx := context.Background()

	got, ok, err := ix.Exists(ctx, "/mod/parts", []string{"..", "sprites", "hull.png"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, filepath.FromSlash("/mod/Sprites/Hull.PNG"), got)

	_, ok, err = ix.Exists(ctx, "/mod", []string{"sprites", "missing.png"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistsCancelled(t *testing.T) {
	ix := newTestIndex(t, nil)
	ctx, stop := context.WithCancel(context.Background())
	stop()

	_, _, err := ix.Exists(ctx, "/mod", []string{"a.png"})
	assert.True(t, cancel.Is(err))
}

// statHookFs runs onStat before every Stat.
type statHookFs struct {
	afero.Fs
	onStat func()
}

func (fs *statHookFs) Stat(name string) (os.FileInfo, error) {
	fs.onStat()
	return fs.Fs.Stat(name)
}

func TestExistsCancelledDuringLookup(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/mod/a.png", nil, 0o644))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	ix := NewIndex(&statHookFs{Fs: mem, onStat: stop}, "")

	_, ok, err := ix.Exists(ctx, "/mod", []string{"a.png"})
	assert.True(t, cancel.Is(err))
	assert.False(t, ok)
}

func TestParseIsCachedAndShared(t *testing.T) {
	ix := newTestIndex(t, map[string]string{
		"/mod/a.rules": "A = 1",
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*Parsed, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := ix.Parse(ctx, "/mod/a.rules")
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range results[1:] {
		assert.Same(t, results[0], p)
	}
	assert.Len(t, results[0].Document.Elements, 1)
	assert.Equal(t, "file:///mod/a.rules", results[0].Document.URI)
}

func TestRefresh(t *testing.T) {
	ix := newTestIndex(t, map[string]string{
		"/mod/a.rules": "A = 1",
	})
	ctx := context.Background()

	first, err := ix.Parse(ctx, "/mod/a.rules")
	require.NoError(t, err)

	evicted, err := ix.Refresh(ctx, "/mod/a.rules")
	require.NoError(t, err)
	assert.False(t, evicted, "unchanged content keeps the cache")

	require.NoError(t, afero.WriteFile(ix.Fs(), "/mod/a.rules", []byte("A = 2\nB = 3"), 0o644))
	evicted, err = ix.Refresh(ctx, "/mod/a.rules")
	require.NoError(t, err)
	assert.True(t, evicted)

	second, err := ix.Parse(ctx, "/mod/a.rules")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Len(t, second.Document.Elements, 2)
}

func TestParseMissingFile(t *testing.T) {
	ix := newTestIndex(t, nil)
	_, err := ix.Parse(context.Background(), "/mod/none.rules")
	assert.Error(t, err)
}

func TestSuperFile(t *testing.T) {
	ix := newTestIndex(t, map[string]string{
		"/game/Data/Cosmoteer.rules": "Root { }",
	})
	require.NoError(t, ix.Load(context.Background()))

	p, err := ix.SuperFile(context.Background())
	require.NoError(t, err)
	assert.Len(t, p.Document.Elements, 1)
}

func TestURIToPath(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"file:///mod/a.rules", "/mod/a.rules"},
		{"file:///mod/with%20space.rules", "/mod/with space.rules"},
		{"/plain/path.rules", "/plain/path.rules"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), URIToPath(tt.uri))
		})
	}
}

func TestWatcherHandleEvictsChangedRules(t *testing.T) {
	ix := newTestIndex(t, map[string]string{
		"/mod/a.rules": "A = 1",
	})
	ctx := context.Background()
	_, err := ix.Parse(ctx, "/mod/a.rules")
	require.NoError(t, err)

	var evicted []string
	w := &Watcher{index: ix, onEvict: func(path string) { evicted = append(evicted, path) }}

	w.handle(ctx, fsnotify.Event{Name: "/mod/a.rules", Op: fsnotify.Write})
	assert.Empty(t, evicted, "unchanged content")

	w.handle(ctx, fsnotify.Event{Name: "/mod/icon.png", Op: fsnotify.Remove})
	assert.Empty(t, evicted, "non rules files are ignored")

	w.handle(ctx, fsnotify.Event{Name: "/mod/a.rules", Op: fsnotify.Remove})
	assert.Equal(t, []string{filepath.Clean("/mod/a.rules")}, evicted)
}

func TestWatchStartsAndStops(t *testing.T) {
	dir := t.TempDir()
	ix := NewIndex(afero.NewOsFs(), dir)

	w, err := ix.Watch(context.Background(), nil, dir)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}
