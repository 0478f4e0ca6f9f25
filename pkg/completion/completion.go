// Package completion lists candidates for a partially typed reference path.
package completion

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/rulesls/pkg/ast"
	"github.com/walteh/rulesls/pkg/cancel"
	"github.com/walteh/rulesls/pkg/navigation"
	"github.com/walteh/rulesls/pkg/workspace"
)

var (
	// Starters are offered for an empty reference.
	Starters = []string{"&", "&<", "&~/", "&../", "&/", "&<./Data/"}
	// InheritanceStarters are offered for an empty inheritance entry.
	InheritanceStarters = []string{"/", "<./Data", "..", "~", "<"}

	currentLevel = regexp.MustCompile(`&[a-zA-Z0-9._]*$`)
)

type Engine struct {
	nav *navigation.Navigator
}

func New(nav *navigation.Navigator) *Engine {
	return &Engine{nav: nav}
}

// Complete returns the labels that may follow the text of v. inheritance is
// set when v is an entry of an inheritance clause.
func (e *Engine) Complete(ctx context.Context, v *ast.Value, inheritance bool) ([]string, error) {
	if err := cancel.Check(ctx); err != nil {
		return nil, err
	}

	ref := v.Text
	switch {
	case ref != "" && !inheritance && !v.IsReference():
		return nil, nil
	case (ref == "" || ref == "&") && !inheritance:
		out := append([]string{}, Starters...)
		if lit, ok := v.Parent().(ast.Literal); ok {
			for i := range lit.Body().Inheritance {
				out = append(out, fmt.Sprintf("&^/%d/", i))
			}
		}
		return out, nil
	case ref == "" && inheritance:
		return append([]string{}, InheritanceStarters...), nil
	case currentLevel.MatchString(ref):
		return e.parentLevel(ctx, strings.TrimPrefix(ref, "&"), v)
	}

	// inheritance entries resolve from their literal, bare names from the
	// level holding it
	var node ast.Node = v
	if lit := v.Parent(); inheritance && lit != nil {
		node = lit
		if p := lit.Parent(); p != nil && !ast.HasReferencePrefix(ref) && !strings.HasPrefix(ref, "<") {
			node = p
		}
	}

	out, err := e.traverse(ctx, strings.TrimPrefix(ref, "&"), node)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Trace().Str("reference", ref).Int("candidates", len(out)).Msg("completed reference")
	return out, nil
}

func (e *Engine) traverse(ctx context.Context, path string, node ast.Node) ([]string, error) {
	parts := navigation.SplitPath(path)
	if strings.HasSuffix(path, "/") || len(parts) == 0 {
		parts = append(parts, "")
	}

	switch {
	case strings.HasPrefix(path, "<./Data/"):
		root := e.nav.Index().Root()
		if root == "" {
			return nil, nil
		}
		return e.files(ctx, root, parts[2:])
	case strings.HasPrefix(path, "<"):
		doc := ast.Root(node)
		if doc == nil {
			return nil, nil
		}
		parts[0] = strings.TrimPrefix(parts[0], "<")
		return e.files(ctx, filepath.Dir(workspace.URIToPath(doc.URI)), parts)
	case strings.HasPrefix(path, "/"):
		sup, err := e.nav.Index().SuperFile(ctx)
		if err != nil {
			return nil, ignoreMissing(err)
		}
		return e.referencePath(ctx, parts, sup.Document)
	case strings.HasPrefix(path, "^/"):
		return e.inheritanceSlots(ctx, parts, node)
	}
	return e.referencePath(ctx, parts, node)
}

// files lists rules files and directories below base, or the members of a
// rules file once the path names one.
func (e *Engine) files(ctx context.Context, base string, parts []string) ([]string, error) {
	for i, p := range parts {
		if !strings.HasSuffix(p, ".rules>") {
			continue
		}
		segs := append(append([]string{}, parts[:i]...), strings.TrimSuffix(p, ">"))
		file, ok, err := e.nav.Index().Exists(ctx, base, segs)
		if err != nil || !ok {
			return nil, ignoreMissing(err)
		}
		parsed, err := e.nav.Index().Parse(ctx, file)
		if err != nil {
			return nil, ignoreMissing(err)
		}
		rest := parts[i+1:]
		if len(rest) == 0 {
			rest = []string{""}
		}
		return e.referencePath(ctx, rest, parsed.Document)
	}

	partial := parts[len(parts)-1]
	entries, err := e.listing(ctx, base, parts[:len(parts)-1])
	if err != nil {
		return nil, ignoreMissing(err)
	}

	var out []string
	for _, entry := range entries {
		if !hasFoldPrefix(entry.Name, partial) {
			continue
		}
		switch {
		case entry.Dir:
			out = append(out, entry.Name+"/")
		case strings.HasSuffix(strings.ToLower(entry.Name), ".rules"):
			out = append(out, entry.Name+">")
		}
	}
	return out, nil
}

// listing reads a directory below base. Game data directories come from the
// index when it is loaded, anything else from the file system.
func (e *Engine) listing(ctx context.Context, base string, segs []string) ([]workspace.Entry, error) {
	ix := e.nav.Index()
	if base == ix.Root() && !slices.Contains(segs, "..") {
		entries, err := ix.ListIndexed(strings.Join(segs, "/"))
		if err == nil && entries != nil {
			return entries, nil
		}
		if err != nil && !errors.Is(err, workspace.ErrNotIndexed) {
			return nil, err
		}
	}

	dir, ok, err := ix.Exists(ctx, base, segs)
	if err != nil || !ok {
		return nil, err
	}
	return ix.ListDir(ctx, dir)
}

// inheritanceSlots handles ^/<i>/... relative to the literal holding node.
func (e *Engine) inheritanceSlots(ctx context.Context, parts []string, node ast.Node) ([]string, error) {
	lit, ok := node.Parent().(ast.Literal)
	if !ok || len(lit.Body().Inheritance) == 0 {
		return nil, nil
	}
	bases := lit.Body().Inheritance

	if len(parts) <= 2 {
		partial := ""
		if len(parts) == 2 {
			partial = parts[1]
		}
		var out []string
		for i := range bases {
			if s := strconv.Itoa(i); strings.HasPrefix(s, partial) {
				out = append(out, s+"/")
			}
		}
		return out, nil
	}

	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 0 || idx >= len(bases) {
		return nil, nil
	}
	res, err := e.nav.ResolveBase(ctx, lit, bases[idx])
	if err != nil || res.Node == nil {
		return nil, err
	}
	return e.referencePath(ctx, parts[2:], res.Node)
}

// referencePath walks all but the last part like navigation does, then lists
// the names at that level starting with the last part.
func (e *Engine) referencePath(ctx context.Context, parts []string, node ast.Node) ([]string, error) {
	if len(parts) == 1 {
		return e.parentLevel(ctx, parts[0], node)
	}

	start := node
	if _, ok := start.(ast.Container); !ok && start.Parent() != nil {
		start = start.Parent()
	}
	scope, err := e.nav.Walk(ctx, start, parts[:len(parts)-1])
	if err != nil {
		return nil, err
	}
	c, ok := scope.(ast.Container)
	if !ok {
		return nil, nil
	}
	return e.options(ctx, c, parts[len(parts)-1])
}

func (e *Engine) parentLevel(ctx context.Context, search string, node ast.Node) ([]string, error) {
	if c, ok := node.(ast.Container); ok {
		return e.options(ctx, c, search)
	}
	if p := node.Parent(); p != nil {
		return e.options(ctx, p, search)
	}
	return nil, nil
}

// options names the elements of c: assignments, identifiers and named
// literals by name, unnamed literals by "<index>/".
func (e *Engine) options(ctx context.Context, c ast.Container, search string) ([]string, error) {
	if lit, ok := c.(ast.Literal); ok {
		if err := e.nav.Flatten(ctx, lit); err != nil {
			return nil, err
		}
	}

	var out []string
	seen := map[string]bool{}
	for i, el := range c.Children() {
		label := ""
		switch el := el.(type) {
		case ast.Literal:
			if el.Body().Identifier == nil {
				label = strconv.Itoa(i) + "/"
			} else if strings.HasPrefix(el.Body().Name(), search) {
				label = el.Body().Name()
			}
		case *ast.Assignment:
			if el.Left != nil && strings.HasPrefix(el.Left.Name, search) {
				label = el.Left.Name
			}
		case *ast.Identifier:
			if strings.HasPrefix(el.Name, search) {
				label = el.Name
			}
		}
		if label != "" && !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out, nil
}

func ignoreMissing(err error) error {
	if err != nil && cancel.Is(err) {
		return err
	}
	return nil
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
