// Package diagnostic turns parser and validation errors into editor
// diagnostics and renders them for output.
package diagnostic

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/rulesls/pkg/parser"
	"github.com/walteh/rulesls/pkg/position"
	"github.com/walteh/rulesls/pkg/validation"
)

// Source names this server in every diagnostic.
const Source = "rulesls"

// DefaultMaxProblems is used when a Generator has no positive limit.
const DefaultMaxProblems = 10

// Severity follows the numbering editors use on the wire.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Related is extra guidance attached to a diagnostic. It points at the same
// range as its diagnostic.
type Related struct {
	URI     string
	Range   position.Range
	Message string
}

// Diagnostic is a single problem in one document. Ranges are zero based.
type Diagnostic struct {
	URI      string
	Message  string
	Range    position.Range
	Severity Severity
	Related  []Related
}

// Generator collects the problems of one document.
type Generator struct {
	// MaxProblems caps the diagnostics produced per document.
	MaxProblems int
}

func NewGenerator(maxProblems int) *Generator {
	if maxProblems <= 0 {
		maxProblems = DefaultMaxProblems
	}
	return &Generator{MaxProblems: maxProblems}
}

// Generate converts parser errors first, then validation errors, stopping
// at the configured limit.
func (g *Generator) Generate(uri string, parseErrs []*parser.Error, validationErrs []*validation.Error) []Diagnostic {
	out := make([]Diagnostic, 0, len(parseErrs)+len(validationErrs))

	for _, err := range parseErrs {
		if len(out) >= g.MaxProblems {
			return out
		}
		out = append(out, newDiagnostic(uri, err.Message, err.Span().Range(), err.Related...))
	}

	for _, err := range validationErrs {
		if len(out) >= g.MaxProblems {
			return out
		}
		var related []string
		if err.Related != "" {
			related = append(related, err.Related)
		}
		var rng position.Range
		if err.Node != nil {
			rng = err.Node.Position().Range()
		}
		out = append(out, newDiagnostic(uri, err.Message, rng, related...))
	}
	return out
}

func newDiagnostic(uri, msg string, rng position.Range, related ...string) Diagnostic {
	d := Diagnostic{URI: uri, Message: msg, Range: rng, Severity: SeverityError}
	for _, r := range related {
		d.Related = append(d.Related, Related{URI: uri, Range: rng, Message: r})
	}
	return d
}

// Formatter renders diagnostics for output.
type Formatter interface {
	Format(w io.Writer, diagnostics []Diagnostic) error
}

// VSCodeFormatter writes the JSON shape editors accept for diagnostics.
type VSCodeFormatter struct{}

func NewVSCodeFormatter() *VSCodeFormatter {
	return &VSCodeFormatter{}
}

type vscodePosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type vscodeRange struct {
	Start vscodePosition `json:"start"`
	End   vscodePosition `json:"end"`
}

type vscodeLocation struct {
	URI   string      `json:"uri"`
	Range vscodeRange `json:"range"`
}

type vscodeRelated struct {
	Location vscodeLocation `json:"location"`
	Message  string         `json:"message"`
}

type vscodeDiagnostic struct {
	URI                string          `json:"uri"`
	Severity           int             `json:"severity"`
	Source             string          `json:"source"`
	Message            string          `json:"message"`
	Range              vscodeRange     `json:"range"`
	RelatedInformation []vscodeRelated `json:"relatedInformation,omitempty"`
}

func toVSCodeRange(r position.Range) vscodeRange {
	return vscodeRange{
		Start: vscodePosition{Line: r.Start.Line, Character: r.Start.Character},
		End:   vscodePosition{Line: r.End.Line, Character: r.End.Character},
	}
}

func (f *VSCodeFormatter) Format(w io.Writer, diagnostics []Diagnostic) error {
	result := make([]vscodeDiagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		vd := vscodeDiagnostic{
			URI:      d.URI,
			Severity: int(d.Severity),
			Source:   Source,
			Message:  d.Message,
			Range:    toVSCodeRange(d.Range),
		}
		for _, r := range d.Related {
			vd.RelatedInformation = append(vd.RelatedInformation, vscodeRelated{
				Location: vscodeLocation{URI: r.URI, Range: toVSCodeRange(r.Range)},
				Message:  r.Message,
			})
		}
		result = append(result, vd)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return errors.Errorf("encoding diagnostics: %w", err)
	}
	return nil
}

// TextFormatter prints one line per diagnostic with one based positions,
// followed by indented related messages.
type TextFormatter struct {
	// Path replaces the URI at the start of each line when set.
	Path func(uri string) string
}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

var severityColors = map[Severity]*color.Color{
	SeverityError:       color.New(color.FgRed, color.Bold),
	SeverityWarning:     color.New(color.FgYellow),
	SeverityInformation: color.New(color.FgCyan),
	SeverityHint:        color.New(color.Faint),
}

func (f *TextFormatter) Format(w io.Writer, diagnostics []Diagnostic) error {
	for _, d := range diagnostics {
		name := d.URI
		if f.Path != nil {
			name = f.Path(d.URI)
		}
		sev := d.Severity.String()
		if c, ok := severityColors[d.Severity]; ok {
			sev = c.Sprint(sev)
		}
		if _, err := fmt.Fprintf(w, "%s:%d:%d: %s: %s\n",
			color.New(color.Bold).Sprint(name),
			d.Range.Start.Line+1, d.Range.Start.Character+1,
			sev, d.Message); err != nil {
			return errors.Errorf("writing diagnostic: %w", err)
		}
		for _, r := range d.Related {
			if _, err := fmt.Fprintf(w, "\t%s\n", color.New(color.Faint).Sprint(r.Message)); err != nil {
				return errors.Errorf("writing diagnostic: %w", err)
			}
		}
	}
	return nil
}
