// Package options holds the flags every rulesls command shares.
package options

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/rulesls/pkg/config"
	"github.com/walteh/rulesls/pkg/debug"
	"github.com/walteh/rulesls/pkg/session"
)

type Options struct {
	ConfigPath string
	DataPath   string
	Trace      string
	NoColor    bool
}

func (o *Options) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&o.ConfigPath, "config", "", "settings file (.yaml, .yml or .hcl)")
	flags.StringVar(&o.DataPath, "data", "", "game Data directory, overrides the settings file")
	flags.StringVar(&o.Trace, "trace", "", "log verbosity: off, messages or verbose")
	flags.BoolVar(&o.NoColor, "no-color", false, "disable coloured output")
}

// Settings loads the settings file when one is given and applies the flag
// overrides on top.
func (o *Options) Settings(fs afero.Fs) (*config.Settings, error) {
	settings := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(fs, o.ConfigPath)
		if err != nil {
			return nil, errors.Errorf("loading settings: %w", err)
		}
		settings = loaded
	}
	if o.DataPath != "" {
		p, err := config.NormalizeDataPath(o.DataPath)
		if err != nil {
			return nil, err
		}
		settings.DataPath = p
	}
	if o.Trace != "" {
		settings.Trace = config.Trace(o.Trace)
	}
	return settings, nil
}

// Session loads settings, installs the logger in ctx and opens a session on
// the real file system.
func (o *Options) Session(ctx context.Context) (context.Context, *session.Session, error) {
	if o.NoColor {
		color.NoColor = true
	}

	fs := afero.NewOsFs()
	settings, err := o.Settings(fs)
	if err != nil {
		return ctx, nil, err
	}

	logger := debug.NewLogger(os.Stderr, settings.Trace.Level(), !color.NoColor)
	ctx = logger.WithContext(ctx)

	sess, err := session.New(ctx, fs, settings)
	if err != nil {
		return ctx, nil, errors.Errorf("starting session: %w", err)
	}
	return sess.WithContext(ctx), sess, nil
}
