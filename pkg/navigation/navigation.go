// Package navigation resolves reference paths to syntax tree nodes or files
// and performs lazy inheritance flattening.
//
// Five path forms are understood:
//
//	&<file.rules>/a/b   rules file, relative to the current file or ./Data
//	&/a/b               the super file at the data root
//	&^/0/a              inheritance slot of the enclosing literal
//	&a/../b, ~/a        segment walk from the containing node
//	a, ../a             inheritance bases, resolved from their literal
package navigation

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/rulesls/pkg/ast"
	"github.com/walteh/rulesls/pkg/cancel"
	"github.com/walteh/rulesls/pkg/workspace"
)

const (
	// MaxFlattenDepth bounds nested inheritance expansion.
	MaxFlattenDepth = 10
	maxHops         = 32
)

// Result is what a path denotes: a node, or a file when the path stops at a
// rules file.
type Result struct {
	Node ast.Node
	File string
}

func (r Result) Found() bool {
	return r.Node != nil || r.File != ""
}

type Navigator struct {
	index *workspace.Index
}

func New(index *workspace.Index) *Navigator {
	return &Navigator{index: index}
}

func (n *Navigator) Index() *workspace.Index { return n.index }

// Navigate resolves path as written in a value that sits at start.
func (n *Navigator) Navigate(ctx context.Context, path string, start ast.Node) (Result, error) {
	return n.walker().navigate(ctx, path, start)
}

// ResolveBase resolves one inheritance entry of lit.
func (n *Navigator) ResolveBase(ctx context.Context, lit ast.Literal, base *ast.Value) (Result, error) {
	return n.walker().resolveBase(ctx, lit, base)
}

// Flatten appends the elements of every resolvable base of lit to its element
// list. It does nothing when lit was flattened before.
func (n *Navigator) Flatten(ctx context.Context, lit ast.Literal) error {
	return n.walker().flatten(ctx, lit, 0)
}

// Walk follows already split reference segments from start, flattening
// inheritance where a name is missing. It returns nil when a segment does not
// resolve.
func (n *Navigator) Walk(ctx context.Context, start ast.Node, segments []string) (ast.Node, error) {
	return n.walker().segments(ctx, start, segments)
}

// SplitPath splits a path on '/', dropping empty segments.
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (n *Navigator) walker() *walker {
	return &walker{nav: n, flattening: map[*ast.Block]bool{}}
}

// walker carries the state of one top-level navigation.
type walker struct {
	nav        *Navigator
	hops       int
	flattening map[*ast.Block]bool
}

func (w *walker) navigate(ctx context.Context, path string, start ast.Node) (Result, error) {
	if err := cancel.Check(ctx); err != nil {
		return Result{}, err
	}
	if path == "" || start == nil {
		return Result{}, nil
	}

	switch {
	case strings.HasPrefix(path, "&<"):
		return w.rules(ctx, path[2:], start)
	case strings.HasPrefix(path, "<"):
		return w.rules(ctx, path[1:], start)
	case strings.HasPrefix(path, "&/"):
		return w.super(ctx, path[2:])
	case strings.HasPrefix(path, "/"):
		return w.super(ctx, path[1:])
	case strings.HasPrefix(path, "&^"):
		return w.reference(ctx, path[1:], start)
	case strings.HasPrefix(path, "&"):
		if parent := start.Parent(); parent != nil {
			start = parent
		}
		return w.reference(ctx, path[1:], start)
	}
	return w.reference(ctx, path, start)
}

func (w *walker) reference(ctx context.Context, path string, start ast.Node) (Result, error) {
	node, err := w.segments(ctx, start, SplitPath(path))
	if err != nil || node == nil {
		return Result{}, err
	}
	return Result{Node: node}, nil
}

func (w *walker) segments(ctx context.Context, start ast.Node, segs []string) (ast.Node, error) {
	cur := start
	for i, seg := range segs {
		inheritance := i > 0 && segs[i-1] == "^"

		next, err := w.step(ctx, cur, seg, inheritance)
		if err != nil {
			return nil, err
		}
		if next == nil {
			if next, err = w.retry(ctx, cur, seg, inheritance); err != nil || next == nil {
				return nil, err
			}
		}

		if v, ok := next.(*ast.Value); ok && v.IsReference() {
			resolved, err := w.follow(ctx, v)
			if err != nil {
				return nil, err
			}
			switch {
			case resolved != nil:
				next = resolved
			case i < len(segs)-1:
				return nil, nil
			}
		}
		cur = next
	}
	return cur, nil
}

// retry repeats a missed step once inherited members are in place. The
// enclosing literal is tried first, then cur itself.
func (w *walker) retry(ctx context.Context, cur ast.Node, seg string, inheritance bool) (ast.Node, error) {
	var scopes []ast.Literal
	if lit, ok := cur.Parent().(ast.Literal); ok && len(lit.Body().Inheritance) > 0 {
		scopes = append(scopes, lit)
	}
	if lit, ok := cur.(ast.Literal); ok && len(lit.Body().Inheritance) > 0 {
		scopes = append(scopes, lit)
	}

	for _, lit := range scopes {
		if err := w.flatten(ctx, lit, 0); err != nil {
			return nil, err
		}
		next, err := w.step(ctx, lit, seg, inheritance)
		if err != nil || next != nil {
			return next, err
		}
	}
	return nil, nil
}

// step moves one segment from cur.
func (w *walker) step(ctx context.Context, cur ast.Node, seg string, inheritance bool) (ast.Node, error) {
	if idx, ok := index(seg); ok {
		if inheritance {
			lit, ok := cur.(ast.Literal)
			if !ok || idx >= len(lit.Body().Inheritance) {
				return nil, nil
			}
			res, err := w.resolveBase(ctx, lit, lit.Body().Inheritance[idx])
			return res.Node, err
		}
		arr, ok := cur.(*ast.Array)
		if !ok {
			return nil, nil
		}
		elems := arr.Children()
		if idx >= len(elems) {
			return nil, nil
		}
		return elems[idx], nil
	}

	switch seg {
	case ".":
		return cur, nil
	case "..":
		return up(cur), nil
	case "^":
		// the next integer segment indexes the bases of the node reached
		return up(cur), nil
	case "~":
		if root := ast.Root(cur); root != nil {
			return root, nil
		}
		return cur, nil
	}

	c, ok := cur.(ast.Container)
	if !ok {
		return nil, nil
	}
	for _, el := range c.Children() {
		name, ok := ast.NameOf(el)
		if !ok || name != seg {
			continue
		}
		if a, ok := el.(*ast.Assignment); ok {
			return a.Right, nil
		}
		return el, nil
	}
	return nil, nil
}

// follow navigates through a reference value met during a walk.
func (w *walker) follow(ctx context.Context, v *ast.Value) (ast.Node, error) {
	w.hops++
	if w.hops > maxHops {
		zerolog.Ctx(ctx).Debug().Str("reference", v.Text).Msg("reference chain too long")
		return nil, nil
	}
	res, err := w.navigate(ctx, v.Text, v)
	return res.Node, err
}

func (w *walker) resolveBase(ctx context.Context, lit ast.Literal, base *ast.Value) (Result, error) {
	path := base.Text
	if !ast.HasReferencePrefix(path) {
		path = "&" + path
	}
	return w.navigate(ctx, path, lit)
}

func (w *walker) flatten(ctx context.Context, lit ast.Literal, depth int) error {
	body := lit.Body()
	if len(body.Inheritance) == 0 || body.Flattened() || w.flattening[body] {
		return nil
	}
	if depth > MaxFlattenDepth {
		zerolog.Ctx(ctx).Debug().Str("literal", body.Name()).Msg("inheritance too deep, not expanding")
		return nil
	}

	w.flattening[body] = true
	defer delete(w.flattening, body)

	var inherited []ast.Node
	for _, base := range body.Inheritance {
		if !base.IsReference() {
			continue
		}
		res, err := w.resolveBase(ctx, lit, base)
		if err != nil {
			return err
		}
		switch target := res.Node.(type) {
		case nil:
			continue
		case ast.Literal:
			if w.flattening[target.Body()] {
				// a base still being expanded further up holds only part of its members
				continue
			}
			if err := w.flatten(ctx, target, depth+1); err != nil {
				return err
			}
			inherited = append(inherited, target.Children()...)
		default:
			inherited = append(inherited, target)
		}
	}

	if err := cancel.Check(ctx); err != nil {
		return err
	}
	if body.AppendInherited(inherited) {
		zerolog.Ctx(ctx).Trace().
			Str("literal", body.Name()).
			Int("inherited", len(inherited)).
			Msg("flattened inheritance")
	}
	return nil
}

func (w *walker) super(ctx context.Context, rest string) (Result, error) {
	sup, err := w.nav.index.SuperFile(ctx)
	if err != nil {
		return w.miss(ctx, err, "super file")
	}
	if rest == "" {
		return Result{File: w.nav.index.SuperFilePath()}, nil
	}
	return w.navigate(ctx, rest, sup.Document)
}

// rules handles "<path/file.rules>/inner" with the leading sigils removed.
func (w *walker) rules(ctx context.Context, path string, start ast.Node) (Result, error) {
	segs := SplitPath(path)
	last := -1
	for i, s := range segs {
		if strings.Contains(s, ">") {
			last = i
		}
	}
	if last == -1 {
		return Result{}, nil
	}
	segs[last] = strings.Replace(segs[last], ">", "", 1)

	var (
		file string
		ok   bool
		err  error
	)
	if len(segs) > 1 && segs[0] == "." && segs[1] == "Data" && (len(segs) < 3 || segs[2] != "..") {
		file, ok, err = w.nav.index.FindFile(strings.Join(segs[2:last+1], "/"))
	} else {
		root := ast.Root(start)
		if root == nil {
			return Result{}, nil
		}
		dir := filepath.Dir(workspace.URIToPath(root.URI))
		file, ok, err = w.nav.index.Exists(ctx, dir, segs[:last+1])
	}
	if err != nil {
		return w.miss(ctx, err, path)
	}
	if !ok {
		return Result{}, nil
	}
	if last == len(segs)-1 {
		return Result{File: file}, nil
	}

	parsed, err := w.nav.index.Parse(ctx, file)
	if err != nil {
		return w.miss(ctx, err, file)
	}
	return w.navigate(ctx, strings.Join(segs[last+1:], "/"), parsed.Document)
}

// miss turns lookup failures into "not found", keeping cancellation.
func (w *walker) miss(ctx context.Context, err error, what string) (Result, error) {
	if cancel.Is(err) {
		return Result{}, err
	}
	if !errors.Is(err, workspace.ErrNotIndexed) {
		zerolog.Ctx(ctx).Debug().Err(err).Str("target", what).Msg("navigation lookup failed")
	}
	return Result{}, nil
}

func up(n ast.Node) ast.Node {
	if p := n.Parent(); p != nil {
		return p
	}
	return n
}

func index(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(seg)
	return i, err == nil
}
