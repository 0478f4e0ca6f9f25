package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// Watcher evicts cached parses of rules files changed outside the session.
type Watcher struct {
	watcher *fsnotify.Watcher
	index   *Index
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	onEvict func(path string)
}

// Watch starts watching every directory below dirs. onEvict, when not nil, is
// called from the watcher goroutine with the path of every evicted file.
// Close stops it.
func (ix *Index) Watch(ctx context.Context, onEvict func(path string), dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Errorf("creating watcher: %w", err)
	}

	for _, dir := range dirs {
		err := afero.Walk(ix.fs, dir, func(path string, info os.FileInfo, err error) error {
			if err != nil || !info.IsDir() {
				return nil
			}
			if err := fw.Add(path); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("dir", path).Msg("failed to watch directory")
			}
			return nil
		})
		if err != nil {
			_ = fw.Close()
			return nil, errors.Errorf("walking %s: %w", dir, err)
		}
	}

	ctx, stop := context.WithCancel(ctx)
	w := &Watcher{watcher: fw, index: ix, cancel: stop, onEvict: onEvict}

	w.wg.Add(1)
	go w.run(ctx)

	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	logger := zerolog.Ctx(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !strings.HasSuffix(strings.ToLower(event.Name), ".rules") {
		return
	}

	path := filepath.Clean(event.Name)
	evicted := false
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.index.Evict(path)
		evicted = true
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		var err error
		evicted, err = w.index.Refresh(ctx, path)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("path", path).Msg("refresh failed")
			return
		}
	}

	if evicted {
		zerolog.Ctx(ctx).Debug().Str("path", path).Stringer("op", event.Op).Msg("evicted cached parse")
		if w.onEvict != nil {
			w.onEvict(path)
		}
	}
}

func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	if err != nil {
		return errors.Errorf("closing watcher: %w", err)
	}
	return nil
}
