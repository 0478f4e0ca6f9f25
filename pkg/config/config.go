// Package config loads server settings from YAML or HCL files.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/rulesls/pkg/workspace"
)

var (
	ErrUnknownFormat   = errors.Base("unknown config format")
	ErrInvalidDataPath = errors.Base("invalid game data path")
	ErrUnknownTrace    = errors.Base("unknown trace level")
)

// Trace gates internal logging.
type Trace string

const (
	TraceOff      Trace = "off"
	TraceMessages Trace = "messages"
	TraceVerbose  Trace = "verbose"
)

// Level maps the trace setting to a log level. Unknown values behave like
// off.
func (t Trace) Level() zerolog.Level {
	switch t {
	case TraceMessages:
		return zerolog.InfoLevel
	case TraceVerbose:
		return zerolog.TraceLevel
	}
	return zerolog.WarnLevel
}

func (t Trace) valid() bool {
	switch t {
	case "", TraceOff, TraceMessages, TraceVerbose:
		return true
	}
	return false
}

// Settings is everything the analysis packages consume from the outside.
type Settings struct {
	// DataPath is the game's Data directory. Empty disables game file lookups.
	DataPath    string   `json:"data_path,omitempty" yaml:"data_path,omitempty" hcl:"data_path,optional"`
	SuperFile   string   `json:"super_file,omitempty" yaml:"super_file,omitempty" hcl:"super_file,optional"`
	IgnorePaths []string `json:"ignore_paths,omitempty" yaml:"ignore_paths,omitempty" hcl:"ignore_paths,optional"`
	// MaxNumberOfProblems caps diagnostics per document.
	MaxNumberOfProblems int   `json:"max_number_of_problems,omitempty" yaml:"max_number_of_problems,omitempty" hcl:"max_number_of_problems,optional"`
	Trace               Trace `json:"trace,omitempty" yaml:"trace,omitempty" hcl:"trace,optional"`
}

func Default() *Settings {
	return &Settings{
		SuperFile:           workspace.DefaultSuperFile,
		MaxNumberOfProblems: 10,
		Trace:               TraceOff,
	}
}

// Load reads settings from path, picking the decoder by extension: .yaml
// and .yml are YAML, .hcl is HCL. Unset fields keep their defaults.
func Load(fs afero.Fs, path string) (*Settings, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, errors.Errorf("parsing YAML: %w", err)
		}
	case ".hcl":
		if err := decodeHCL(data, path, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeHCL(data []byte, path string, cfg *Settings) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return errors.Errorf("parsing HCL: %s", diags.Error())
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": environment(),
		},
	}
	if diags := gohcl.DecodeBody(file.Body, ctx, cfg); diags.HasErrors() {
		return errors.Errorf("decoding HCL: %s", diags.Error())
	}
	return nil
}

// environment exposes the process environment to HCL as env.NAME.
func environment() cty.Value {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if ok && name != "" {
			vars[name] = cty.StringVal(value)
		}
	}
	if len(vars) == 0 {
		return cty.MapValEmpty(cty.String)
	}
	return cty.MapVal(vars)
}

func (s *Settings) normalize() error {
	if s.SuperFile == "" {
		s.SuperFile = workspace.DefaultSuperFile
	}
	if s.MaxNumberOfProblems <= 0 {
		s.MaxNumberOfProblems = 10
	}
	if !s.Trace.valid() {
		return errors.Errorf("%q: %w", s.Trace, ErrUnknownTrace)
	}
	if s.Trace == "" {
		s.Trace = TraceOff
	}
	if s.DataPath != "" {
		p, err := NormalizeDataPath(s.DataPath)
		if err != nil {
			return err
		}
		s.DataPath = p
	}
	return nil
}

// NormalizeDataPath accepts the game's Data directory, the Cosmoteer install
// directory or the Steam "common" directory holding it, and returns the Data
// directory.
func NormalizeDataPath(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	switch strings.ToLower(filepath.Base(clean)) {
	case "data":
		return clean, nil
	case "cosmoteer":
		return filepath.Join(clean, "Data"), nil
	case "common":
		return filepath.Join(clean, "Cosmoteer", "Data"), nil
	}
	return "", errors.Errorf("%s: %w", path, ErrInvalidDataPath)
}
