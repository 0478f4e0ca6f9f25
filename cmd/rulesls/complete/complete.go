package complete

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/rulesls/cmd/rulesls/options"
	"github.com/walteh/rulesls/pkg/position"
	"github.com/walteh/rulesls/pkg/workspace"
)

type Handler struct {
	opts *options.Options
}

func NewCompleteCommand(opts *options.Options) *cobra.Command {
	me := &Handler{opts: opts}

	cmd := &cobra.Command{
		Use:   "complete <file> (<line> <column> | #<offset>)",
		Short: "list completions for the reference at a one based position or a byte offset",
		Args:  cobra.RangeArgs(2, 3),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context(), args[0], args[1:], cmd.OutOrStdout())
	}

	return cmd
}

// Cursor turns the position arguments into a zero based line and character.
// A single "#<offset>" argument is a byte offset into file, read from fs.
func Cursor(fs afero.Fs, file string, args []string) (int, int, error) {
	if len(args) == 1 {
		raw, ok := strings.CutPrefix(args[0], "#")
		offset, err := strconv.Atoi(raw)
		if !ok || err != nil || offset < 0 {
			return 0, 0, errors.Errorf("invalid offset %q", args[0])
		}
		data, err := afero.ReadFile(fs, file)
		if err != nil {
			return 0, 0, errors.Errorf("reading %s: %w", file, err)
		}
		p := position.PlaceOf(string(data), offset)
		return p.Line, p.Character, nil
	}

	line, err := strconv.Atoi(args[0])
	if err != nil || line < 1 {
		return 0, 0, errors.Errorf("invalid line %q", args[0])
	}
	col, err := strconv.Atoi(args[1])
	if err != nil || col < 1 {
		return 0, 0, errors.Errorf("invalid column %q", args[1])
	}
	return line - 1, col - 1, nil
}

func (me *Handler) Run(ctx context.Context, file string, cursor []string, out io.Writer) error {
	ctx, sess, err := me.opts.Session(ctx)
	if err != nil {
		return err
	}

	path, err := filepath.Abs(file)
	if err != nil {
		return errors.Errorf("resolving %s: %w", file, err)
	}

	line, character, err := Cursor(sess.Index().Fs(), path, cursor)
	if err != nil {
		return err
	}

	labels, err := sess.Complete(ctx, workspace.PathToURI(path), line, character)
	if err != nil {
		return errors.Errorf("completing %s: %w", file, err)
	}
	for _, label := range labels {
		if _, err := fmt.Fprintln(out, label); err != nil {
			return errors.Errorf("writing completions: %w", err)
		}
	}
	return nil
}
