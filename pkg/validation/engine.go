// Package validation checks a parsed rules document against the language
// rules that the parser does not enforce.
package validation

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/rulesls/pkg/ast"
	"github.com/walteh/rulesls/pkg/cancel"
	"github.com/walteh/rulesls/pkg/navigation"
)

// Error is one language violation. Related is optional extra guidance.
type Error struct {
	Message string
	Node    ast.Node
	Related string
}

func (e *Error) Error() string {
	return e.Message
}

// Handler validates one node and returns at most one problem. A returned Go
// error aborts validation; only cancellation should do that.
type Handler func(ctx context.Context, n ast.Node) (*Error, error)

type Engine struct {
	nav         *navigation.Navigator
	ignorePaths []string
	handlers    map[ast.Kind]Handler
}

type Option func(*Engine)

// WithIgnorePaths skips resolution of references containing any of paths,
// compared case-insensitively.
func WithIgnorePaths(paths ...string) Option {
	return func(e *Engine) {
		e.ignorePaths = append(e.ignorePaths, paths...)
	}
}

// New returns an engine with the value, function call, assignment and math
// validators registered.
func New(nav *navigation.Navigator, opts ...Option) *Engine {
	e := &Engine{nav: nav, handlers: map[ast.Kind]Handler{}}
	for _, opt := range opts {
		opt(e)
	}
	e.Register(ast.KindValue, e.validateValue)
	e.Register(ast.KindFunctionCall, validateFunctionCall)
	e.Register(ast.KindAssignment, validateAssignment)
	e.Register(ast.KindMathExpression, validateMath)
	return e
}

// Register replaces the handler for kind.
func (e *Engine) Register(kind ast.Kind, h Handler) {
	e.handlers[kind] = h
}

// Validate walks doc and collects at most one error per node. It returns
// cancel.ErrCancelled, and no errors, when ctx is done before the walk ends.
func (e *Engine) Validate(ctx context.Context, doc *ast.Document) ([]*Error, error) {
	v := &visit{engine: e, reported: map[ast.Node]bool{}}
	if err := v.node(ctx, doc); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("uri", doc.URI).Int("errors", len(v.errs)).Msg("validated document")
	return v.errs, nil
}

type visit struct {
	engine   *Engine
	errs     []*Error
	reported map[ast.Node]bool
}

func (v *visit) node(ctx context.Context, n ast.Node) error {
	if n == nil {
		return nil
	}
	if err := cancel.Check(ctx); err != nil {
		return err
	}

	if h, ok := v.engine.handlers[n.Kind()]; ok {
		found, err := h(ctx, n)
		if err != nil {
			return err
		}
		if found != nil && found.Node != nil && !v.reported[found.Node] {
			v.reported[found.Node] = true
			v.errs = append(v.errs, found)
		}
	}

	switch n := n.(type) {
	case *ast.Document:
		return v.nodes(ctx, n.Elements)
	case ast.Literal:
		for _, base := range n.Body().Inheritance {
			if err := v.node(ctx, base); err != nil {
				return err
			}
		}
		return v.nodes(ctx, n.Body().Own())
	case *ast.Assignment:
		if n.Left != nil {
			if err := v.node(ctx, n.Left); err != nil {
				return err
			}
		}
		return v.node(ctx, n.Right)
	case *ast.FunctionCall:
		return v.nodes(ctx, n.Arguments)
	case *ast.MathExpression:
		return v.nodes(ctx, n.Elements)
	}
	return nil
}

func (v *visit) nodes(ctx context.Context, nodes []ast.Node) error {
	for _, n := range nodes {
		if err := v.node(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func isModRules(n ast.Node) bool {
	root := ast.Root(n)
	return root != nil && strings.Contains(root.URI, "mod.rules")
}

func (e *Engine) ignored(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range e.ignorePaths {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
