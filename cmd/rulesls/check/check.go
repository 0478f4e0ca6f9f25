package check

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/rulesls/cmd/rulesls/options"
	"github.com/walteh/rulesls/pkg/diagnostic"
	"github.com/walteh/rulesls/pkg/finder"
	"github.com/walteh/rulesls/pkg/session"
	"github.com/walteh/rulesls/pkg/workspace"
)

var ErrProblemsFound = errors.Base("problems found")

type Handler struct {
	opts   *options.Options
	format string
	watch  bool
}

func NewCheckCommand(opts *options.Options) *cobra.Command {
	me := &Handler{opts: opts}

	cmd := &cobra.Command{
		Use:   "check <file|dir|glob>...",
		Short: "report parse and validation problems",
		Args:  cobra.MinimumNArgs(1),
	}

	cmd.Flags().StringVar(&me.format, "format", "text", "output format: text or vscode")
	cmd.Flags().BoolVar(&me.watch, "watch", false, "re-check files when they change")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context(), args, cmd.OutOrStdout())
	}

	return cmd
}

func (me *Handler) formatter() (diagnostic.Formatter, error) {
	switch me.format {
	case "text":
		f := diagnostic.NewTextFormatter()
		f.Path = relativePath
		return f, nil
	case "vscode":
		return diagnostic.NewVSCodeFormatter(), nil
	}
	return nil, errors.Errorf("unknown format %q", me.format)
}

func (me *Handler) Run(ctx context.Context, patterns []string, out io.Writer) error {
	formatter, err := me.formatter()
	if err != nil {
		return err
	}

	ctx, sess, err := me.opts.Session(ctx)
	if err != nil {
		return err
	}

	files, err := finder.New(sess.Index().Fs()).Find(ctx, patterns...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no .rules files match %s", strings.Join(patterns, " "))
	}

	diags, err := Check(ctx, sess, files)
	if ferr := formatter.Format(out, diags); ferr != nil {
		err = multierr.Append(err, ferr)
	}

	if me.watch {
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("initial check failed")
		}
		return me.watchFiles(ctx, sess, files, formatter, out)
	}

	if err == nil && len(diags) > 0 {
		return errors.WithStack(ErrProblemsFound)
	}
	return err
}

// Check parses files in parallel, then validates them one at a time in path
// order. Files that cannot be read are reported together in the error.
func Check(ctx context.Context, sess *session.Session, files []string) ([]diagnostic.Diagnostic, error) {
	var (
		mu      sync.Mutex
		loadErr error
		loaded  []*session.Document
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, file := range files {
		file := file
		g.Go(func() error {
			doc, err := sess.Load(gctx, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				loadErr = multierr.Append(loadErr, err)
				return nil
			}
			loaded = append(loaded, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(loaded, func(i, j int) bool { return loaded[i].URI < loaded[j].URI })

	var out []diagnostic.Diagnostic
	for _, doc := range loaded {
		diags, err := sess.Diagnose(ctx, doc.URI)
		if err != nil {
			return out, multierr.Append(loadErr, err)
		}
		out = append(out, diags...)
	}
	zerolog.Ctx(ctx).Debug().Int("files", len(loaded)).Int("diagnostics", len(out)).Msg("checked files")
	return out, loadErr
}

// watchFiles re-checks a file each time the watcher sees it change, until
// interrupted.
func (me *Handler) watchFiles(ctx context.Context, sess *session.Session, files []string, formatter diagnostic.Formatter, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	checked := map[string]bool{}
	dirs := map[string]bool{}
	for _, f := range files {
		checked[f] = true
		dirs[filepath.Dir(f)] = true
	}
	var watchDirs []string
	for d := range dirs {
		watchDirs = append(watchDirs, d)
	}
	sort.Strings(watchDirs)

	var mu sync.Mutex
	w, err := sess.Index().Watch(ctx, func(path string) {
		if !checked[path] {
			return
		}
		diags, err := Check(ctx, sess, []string{path})
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("re-check failed")
			return
		}
		if err := formatter.Format(out, diags); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("writing diagnostics")
		}
	}, watchDirs...)
	if err != nil {
		return errors.Errorf("watching files: %w", err)
	}

	zerolog.Ctx(ctx).Info().Strs("dirs", watchDirs).Msg("watching for changes")
	<-ctx.Done()
	return w.Close()
}

func relativePath(uri string) string {
	path := workspace.URIToPath(uri)
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
