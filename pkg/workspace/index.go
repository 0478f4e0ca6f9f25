// Package workspace indexes the base-game data tree and parses rules files on
// demand. Every file access goes through an afero.Fs.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/singleflight"

	"github.com/walteh/rulesls/pkg/ast"
	"github.com/walteh/rulesls/pkg/cancel"
	"github.com/walteh/rulesls/pkg/parser"
)

var ErrNotIndexed = errors.Base("workspace index not loaded")

// DefaultSuperFile is the top-level rules file "/" paths resolve against.
const DefaultSuperFile = "cosmoteer.rules"

var indexedSuffixes = append([]string{".rules", ".png", ".shader"}, ast.SoundExtensions...)

type entry struct {
	name     string
	path     string
	dir      bool
	children map[string]*entry
}

// Parsed is a cached parse of one file.
type Parsed struct {
	Document *ast.Document
	Errors   []*parser.Error
	Hash     uint64
}

type Index struct {
	fs        afero.Fs
	root      string
	superFile string

	mu   sync.RWMutex
	tree *entry

	group singleflight.Group
	cache sync.Map // cleaned path -> *Parsed
}

type Option func(*Index)

func WithSuperFile(name string) Option {
	return func(ix *Index) {
		if name != "" {
			ix.superFile = name
		}
	}
}

// NewIndex creates an index over the data directory root. root may be empty
// when no base-game data is available; Load then fails with ErrNotIndexed but
// on-demand parsing still works.
func NewIndex(fs afero.Fs, root string, opts ...Option) *Index {
	ix := &Index{fs: fs, superFile: DefaultSuperFile}
	if root != "" {
		ix.root = filepath.Clean(root)
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func (ix *Index) Fs() afero.Fs { return ix.fs }

// Root is the data directory, empty when none was configured.
func (ix *Index) Root() string { return ix.root }

// Load walks the data directory and records every rules, sprite, sound and
// shader file.
func (ix *Index) Load(ctx context.Context) error {
	if ix.root == "" {
		return errors.WithStack(ErrNotIndexed)
	}

	tree := &entry{name: filepath.Base(ix.root), path: ix.root, dir: true, children: map[string]*entry{}}
	files := 0

	err := afero.Walk(ix.fs, ix.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := cancel.Check(ctx); err != nil {
			return err
		}
		if path == ix.root {
			return nil
		}
		if !info.IsDir() && !hasIndexedSuffix(path) {
			return nil
		}
		rel, err := filepath.Rel(ix.root, path)
		if err != nil {
			return errors.Errorf("relativising %s: %w", path, err)
		}
		tree.insert(strings.Split(filepath.ToSlash(rel), "/"), path, info.IsDir())
		if !info.IsDir() {
			files++
		}
		return nil
	})
	if err != nil {
		return errors.Errorf("indexing %s: %w", ix.root, err)
	}

	ix.mu.Lock()
	ix.tree = tree
	ix.mu.Unlock()

	zerolog.Ctx(ctx).Debug().Str("root", ix.root).Int("files", files).Msg("indexed game data")
	return nil
}

func (e *entry) insert(segments []string, path string, dir bool) {
	cur := e
	for i, seg := range segments {
		key := strings.ToLower(seg)
		next, ok := cur.children[key]
		if !ok {
			last := i == len(segments)-1
			next = &entry{name: seg, dir: !last || dir}
			next.path = filepath.Join(cur.path, seg)
			if next.dir {
				next.children = map[string]*entry{}
			}
			cur.children[key] = next
		}
		cur = next
	}
}

func (ix *Index) lookup(segments []string) (*entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.tree == nil {
		return nil, errors.WithStack(ErrNotIndexed)
	}
	cur := ix.tree
	for _, seg := range segments {
		if seg == "" || seg == "." {
			continue
		}
		if cur.children == nil {
			return nil, nil
		}
		next, ok := cur.children[strings.ToLower(seg)]
		if !ok {
			return nil, nil
		}
		cur = next
	}
	return cur, nil
}

// FindFile resolves a slash separated path relative to the data root without
// regard to case. It returns the real path of the file or directory.
func (ix *Index) FindFile(rel string) (string, bool, error) {
	e, err := ix.lookup(strings.Split(filepath.ToSlash(rel), "/"))
	if err != nil || e == nil {
		return "", false, err
	}
	return e.path, true, nil
}

// Entry is one item of a directory listing.
type Entry struct {
	Name string
	Dir  bool
}

// ListIndexed lists an indexed directory, sorted by name.
func (ix *Index) ListIndexed(rel string) ([]Entry, error) {
	e, err := ix.lookup(strings.Split(filepath.ToSlash(rel), "/"))
	if err != nil {
		return nil, err
	}
	if e == nil || !e.dir {
		return nil, nil
	}
	out := make([]Entry, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, Entry{Name: c.name, Dir: c.dir})
	}
	sortEntries(out)
	return out, nil
}

// ListDir lists any directory on the file system.
func (ix *Index) ListDir(ctx context.Context, dir string) ([]Entry, error) {
	if err := cancel.Check(ctx); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(ix.fs, dir)
	if err != nil {
		return nil, errors.Errorf("listing %s: %w", dir, err)
	}
	if err := cancel.Check(ctx); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(infos))
	for _, info := range infos {
		out = append(out, Entry{Name: info.Name(), Dir: info.IsDir()})
	}
	sortEntries(out)
	return out, nil
}

// Exists reports whether path exists, retrying each segment below base
// case-insensitively when the exact path is missing. The returned path is the
// one found on disk.
func (ix *Index) Exists(ctx context.Context, base string, segments []string) (string, bool, error) {
	if err := cancel.Check(ctx); err != nil {
		return "", false, err
	}
	exact := filepath.Join(append([]string{base}, segments...)...)
	ok, _ := afero.Exists(ix.fs, exact)
	if err := cancel.Check(ctx); err != nil {
		return "", false, err
	}
	if ok {
		return exact, true, nil
	}

	cur := base
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
			continue
		}
		entries, err := ix.ListDir(ctx, cur)
		if err != nil {
			if cancel.Is(err) {
				return "", false, err
			}
			return "", false, nil
		}
		found := ""
		for _, e := range entries {
			if strings.EqualFold(e.Name, seg) {
				found = e.Name
				break
			}
		}
		if found == "" {
			return "", false, nil
		}
		cur = filepath.Join(cur, found)
	}
	return cur, true, nil
}

// ReadFile reads a file through the index file system.
func (ix *Index) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := cancel.Check(ctx); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(ix.fs, path)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", path, err)
	}
	return data, cancel.Check(ctx)
}

// Parse returns the parse of path, reading and parsing it at most once for
// concurrent callers. The result stays cached until Refresh or Evict.
func (ix *Index) Parse(ctx context.Context, path string) (*Parsed, error) {
	key := filepath.Clean(path)
	if p, ok := ix.cache.Load(key); ok {
		return p.(*Parsed), nil
	}
	if err := cancel.Check(ctx); err != nil {
		return nil, err
	}

	v, err, shared := ix.group.Do(key, func() (any, error) {
		if p, ok := ix.cache.Load(key); ok {
			return p, nil
		}
		data, err := ix.ReadFile(ctx, key)
		if err != nil {
			return nil, err
		}
		p := parseBytes(ctx, key, data)
		actual, _ := ix.cache.LoadOrStore(key, p)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Trace().Str("path", key).Bool("shared", shared).Msg("parsed on demand")
	return v.(*Parsed), cancel.Check(ctx)
}

func parseBytes(ctx context.Context, path string, data []byte) *Parsed {
	doc, errs := parser.ParseText(ctx, string(data), PathToURI(path))
	return &Parsed{Document: doc, Errors: errs, Hash: xxhash.Sum64(data)}
}

// Refresh re-reads path and drops the cached parse when the content changed.
// It reports whether an eviction happened.
func (ix *Index) Refresh(ctx context.Context, path string) (bool, error) {
	key := filepath.Clean(path)
	cached, ok := ix.cache.Load(key)
	if !ok {
		return false, nil
	}
	data, err := ix.ReadFile(ctx, key)
	if err != nil {
		ix.Evict(key)
		return true, nil
	}
	if cached.(*Parsed).Hash == xxhash.Sum64(data) {
		return false, nil
	}
	ix.Evict(key)
	return true, nil
}

func (ix *Index) Evict(path string) {
	ix.cache.Delete(filepath.Clean(path))
}

// SuperFilePath is the path of the super file, empty without a data root.
func (ix *Index) SuperFilePath() string {
	if ix.root == "" {
		return ""
	}
	if p, ok, _ := ix.FindFile(ix.superFile); ok {
		return p
	}
	return filepath.Join(ix.root, ix.superFile)
}

// SuperFile parses the super file.
func (ix *Index) SuperFile(ctx context.Context) (*Parsed, error) {
	path := ix.SuperFilePath()
	if path == "" {
		return nil, errors.WithStack(ErrNotIndexed)
	}
	return ix.Parse(ctx, path)
}

func hasIndexedSuffix(path string) bool {
	lower := strings.ToLower(path)
	for _, s := range indexedSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}
