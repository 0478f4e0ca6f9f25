// Package finder selects the rules files a command should work on.
package finder

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/rulesls/pkg/cancel"
)

// DefaultExtensions is used when a Finder is given none.
var DefaultExtensions = []string{".rules"}

type Finder struct {
	fs         afero.Fs
	extensions []string
}

func New(fs afero.Fs, extensions ...string) *Finder {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &Finder{fs: fs, extensions: extensions}
}

// Find resolves each argument to files: a directory is searched
// recursively, anything else is matched as a doublestar pattern. Only files
// with one of the finder's extensions, compared case-insensitively, are
// returned, sorted and without duplicates.
func (f *Finder) Find(ctx context.Context, patterns ...string) ([]string, error) {
	seen := map[string]bool{}
	var files []string

	for _, pattern := range patterns {
		if err := cancel.Check(ctx); err != nil {
			return nil, err
		}

		if ok, _ := afero.IsDir(f.fs, pattern); ok {
			pattern = filepath.Join(pattern, "**", "*")
		}

		base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
		base, err := filepath.Abs(filepath.FromSlash(base))
		if err != nil {
			return nil, errors.Errorf("resolving %s: %w", pattern, err)
		}

		matches, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(f.fs, base)), rest, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Errorf("matching %s: %w", pattern, err)
		}
		for _, m := range matches {
			path := filepath.Join(base, filepath.FromSlash(m))
			if !f.matches(path) || seen[path] {
				continue
			}
			seen[path] = true
			files = append(files, path)
		}
	}

	sort.Strings(files)
	return files, nil
}

func (f *Finder) matches(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range f.extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
