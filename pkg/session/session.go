// Package session wires the analysis packages together for one client. A
// Session owns its workspace index and caches, nothing is global.
package session

import (
	"context"
	"sync"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/rulesls/pkg/cancel"
	"github.com/walteh/rulesls/pkg/completion"
	"github.com/walteh/rulesls/pkg/config"
	"github.com/walteh/rulesls/pkg/diagnostic"
	"github.com/walteh/rulesls/pkg/lexer"
	"github.com/walteh/rulesls/pkg/navigation"
	"github.com/walteh/rulesls/pkg/parser"
	"github.com/walteh/rulesls/pkg/validation"
	"github.com/walteh/rulesls/pkg/workspace"
)

var ErrUnknownDocument = errors.Base("unknown document")

type Session struct {
	id       xid.ID
	settings *config.Settings

	index     *workspace.Index
	validator *validation.Engine
	completer *completion.Engine
	generator *diagnostic.Generator

	docs   *DocumentManager
	tokens *tokenManager

	// mu serialises validation and completion. Both may flatten
	// inheritance in trees shared through the index cache.
	mu sync.Mutex
}

// New builds a session over fs. The game data tree is indexed up front when
// settings name one.
func New(ctx context.Context, fs afero.Fs, settings *config.Settings) (*Session, error) {
	if settings == nil {
		settings = config.Default()
	}

	index := workspace.NewIndex(fs, settings.DataPath, workspace.WithSuperFile(settings.SuperFile))
	if settings.DataPath != "" {
		if err := index.Load(ctx); err != nil {
			return nil, errors.Errorf("indexing game data: %w", err)
		}
	}
	nav := navigation.New(index)

	s := &Session{
		id:        xid.New(),
		settings:  settings,
		index:     index,
		validator: validation.New(nav, validation.WithIgnorePaths(settings.IgnorePaths...)),
		completer: completion.New(nav),
		generator: diagnostic.NewGenerator(settings.MaxNumberOfProblems),
		docs:      NewDocumentManager(),
		tokens:    newTokenManager(),
	}

	zerolog.Ctx(ctx).Debug().
		Str("session", s.id.String()).
		Str("data_path", settings.DataPath).
		Msg("session started")
	return s, nil
}

func (s *Session) ID() xid.ID { return s.id }

func (s *Session) Index() *workspace.Index { return s.index }

func (s *Session) Documents() *DocumentManager { return s.docs }

// WithContext tags the logger in ctx with the session id.
func (s *Session) WithContext(ctx context.Context) context.Context {
	logger := zerolog.Ctx(ctx).With().Str("session", s.id.String()).Logger()
	return logger.WithContext(ctx)
}

// Parse parses text as the new content of uri and stores the result.
func (s *Session) Parse(ctx context.Context, uri, text string) *Document {
	tree, errs := parser.Parse(ctx, lexer.Tokenize(text), uri)
	doc := &Document{URI: uri, Content: text, Tree: tree, Errors: errs}
	s.docs.Store(doc)
	return doc
}

// Load parses the file at path through the index cache and stores it under
// its file URI.
func (s *Session) Load(ctx context.Context, path string) (*Document, error) {
	parsed, err := s.index.Parse(ctx, path)
	if err != nil {
		return nil, errors.Errorf("loading %s: %w", path, err)
	}
	doc := &Document{URI: parsed.Document.URI, Tree: parsed.Document, Errors: parsed.Errors}
	s.docs.Store(doc)
	return doc, nil
}

// Diagnose validates the stored parse of uri. Starting a new analysis of the
// same document cancels this one, which then returns cancel.ErrCancelled.
func (s *Session) Diagnose(ctx context.Context, uri string) ([]diagnostic.Diagnostic, error) {
	doc, ok := s.docs.Get(uri)
	if !ok {
		return nil, errors.Errorf("%s: %w", uri, ErrUnknownDocument)
	}

	ctx, done := s.tokens.begin(s.WithContext(ctx), normalizeURI(uri))
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	problems, err := s.validator.Validate(ctx, doc.Tree)
	if err != nil {
		if cancel.Is(err) {
			zerolog.Ctx(ctx).Trace().Str("uri", uri).Msg("validation cancelled")
		}
		return nil, err
	}

	diags := s.generator.Generate(uri, doc.Errors, problems)
	zerolog.Ctx(ctx).Debug().
		Str("uri", uri).
		Int("parse_errors", len(doc.Errors)).
		Int("problems", len(problems)).
		Int("diagnostics", len(diags)).
		Msg("analysed document")
	return diags, nil
}

// Analyze parses text as the content of uri and returns its diagnostics.
func (s *Session) Analyze(ctx context.Context, uri, text string) ([]diagnostic.Diagnostic, error) {
	s.Parse(ctx, uri, text)
	return s.Diagnose(ctx, uri)
}

// Complete lists candidates for the reference under the zero based cursor.
// Documents never analysed are read from the file system.
func (s *Session) Complete(ctx context.Context, uri string, line, character int) ([]string, error) {
	ctx = s.WithContext(ctx)

	doc, ok := s.docs.Get(uri)
	if !ok {
		data, err := s.index.ReadFile(ctx, workspace.URIToPath(uri))
		if err != nil {
			return nil, errors.Errorf("%s: %w", uri, ErrUnknownDocument)
		}
		doc = s.Parse(ctx, uri, string(data))
	}

	target, ok := completion.TargetAt(doc.Tree, line, character)
	if !ok {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completer.Complete(ctx, target.Value, target.Inheritance)
}

// Close forgets uri and cancels any analysis still running for it.
func (s *Session) Close(uri string) {
	s.tokens.cancel(normalizeURI(uri))
	s.docs.Delete(uri)
}
