package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog"

	"github.com/walteh/rulesls/pkg/ast"
	"github.com/walteh/rulesls/pkg/cancel"
	"github.com/walteh/rulesls/pkg/navigation"
)

const (
	referenceFormats = "References can be in the following formats: <>, .., ~, /, ^, &<>, &.., &~, &/, &A-Z"
	outOfScope       = "You either reference a non-existing identifier or a identifier that is not in scope"

	suggestionThreshold = 0.85
)

func (e *Engine) validateValue(ctx context.Context, n ast.Node) (*Error, error) {
	v := n.(*ast.Value)
	owner := inheritanceOwner(v)

	if v.IsReference() && len(v.Text) > 1 {
		if ast.HasReferencePrefix(v.Text) && !navigation.IsValidReference(v.Text) {
			return &Error{Message: "Reference is not valid", Node: v, Related: referenceFormats}, nil
		}
		if !isModRules(v) && !e.ignored(v.Text) {
			found, err := e.resolves(ctx, v, owner)
			if err != nil {
				return nil, err
			}
			if !found {
				related := outOfScope
				if s := e.suggest(ctx, v, owner); s != "" {
					related += fmt.Sprintf(". Did you mean %s?", s)
				}
				return &Error{Message: "Reference name is not known", Node: v, Related: related}, nil
			}
		}
	}

	if v.ValueKind.IsAsset() && owner == nil && !v.Quoted {
		return &Error{
			Message: "Asset path should be quoted",
			Node:    v,
			Related: fmt.Sprintf("Write it as %q", v.Text),
		}, nil
	}

	if v.ValueKind.IsAsset() && owner == nil && !isModRules(v) && !e.ignored(v.Text) {
		ok, err := e.nav.AssetExists(ctx, v)
		if err != nil {
			if cancel.Is(err) {
				return nil, err
			}
			zerolog.Ctx(ctx).Debug().Err(err).Str("asset", v.Text).Msg("asset lookup failed")
		} else if !ok && (e.nav.Index().Root() != "" || !strings.HasPrefix(v.Text, "./Data")) {
			return &Error{
				Message: "Asset file not found",
				Node:    v,
				Related: "Assets are looked up next to the current file, or below the game data directory for ./Data paths",
			}, nil
		}
	}

	if v.Parenthesized && v.ValueKind != ast.ValueNumber && v.ValueKind != ast.ValueReference {
		return &Error{
			Message: "Value should not be parenthesized",
			Node:    v,
			Related: "References in function calls need to be parenthesized or math expressions",
		}, nil
	}
	return nil, nil
}

// resolves navigates the reference. Lookup failures other than cancellation
// count as resolved so they never surface as diagnostics.
func (e *Engine) resolves(ctx context.Context, v *ast.Value, owner ast.Literal) (bool, error) {
	var (
		res navigation.Result
		err error
	)
	if owner != nil {
		res, err = e.nav.ResolveBase(ctx, owner, v)
	} else {
		res, err = e.nav.Navigate(ctx, v.Text, v)
	}
	if err != nil {
		if cancel.Is(err) {
			return false, err
		}
		zerolog.Ctx(ctx).Debug().Err(err).Str("reference", v.Text).Msg("navigation failed")
		return true, nil
	}
	return res.Found(), nil
}

// suggest looks for a close name at the level where the last segment failed.
func (e *Engine) suggest(ctx context.Context, v *ast.Value, owner ast.Literal) string {
	path := v.Text
	var start ast.Node = v
	if owner != nil {
		start = owner
		if !ast.HasReferencePrefix(path) {
			path = "&" + path
		}
	}
	rest, ok := strings.CutPrefix(path, "&")
	if !ok || strings.HasPrefix(rest, "<") || strings.HasPrefix(rest, "/") {
		return ""
	}
	if p := start.Parent(); p != nil {
		start = p
	}

	segs := navigation.SplitPath(rest)
	if len(segs) == 0 {
		return ""
	}
	scope, err := e.nav.Walk(ctx, start, segs[:len(segs)-1])
	if err != nil || scope == nil {
		return ""
	}
	c, ok := scope.(ast.Container)
	if !ok {
		return ""
	}

	want := segs[len(segs)-1]
	best, bestScore := "", float32(0)
	for _, el := range c.Children() {
		name, ok := ast.NameOf(el)
		if !ok || name == want {
			continue
		}
		score, err := edlib.StringsSimilarity(want, name, edlib.JaroWinkler)
		if err != nil || score < suggestionThreshold || score <= bestScore {
			continue
		}
		best, bestScore = name, score
	}
	return best
}

// inheritanceOwner returns the literal v is an inheritance entry of.
func inheritanceOwner(v *ast.Value) ast.Literal {
	lit, ok := v.Parent().(ast.Literal)
	if !ok {
		return nil
	}
	for _, base := range lit.Body().Inheritance {
		if base == v {
			return lit
		}
	}
	return nil
}

func validateFunctionCall(_ context.Context, n ast.Node) (*Error, error) {
	call := n.(*ast.FunctionCall)
	var prev *ast.Value
	for _, arg := range call.Arguments {
		v, ok := arg.(*ast.Value)
		if !ok {
			prev = nil
			continue
		}
		switch {
		case v.IsReference():
			if !strings.HasPrefix(v.Text, "&") {
				return &Error{Message: "Reference in function calls need to start with an ampersand", Node: v}, nil
			}
			separated := v.Delimiter != 0 || (prev != nil && prev.Delimiter != 0)
			if len(call.Arguments) > 1 && !v.Parenthesized && !separated {
				return &Error{Message: "Reference in function calls need to be parenthesized", Node: v}, nil
			}
		case v.ValueKind != ast.ValueNumber:
			return &Error{Message: "Invalid argument type, expected Reference(&) or Number", Node: v}, nil
		}
		prev = v
	}
	return nil, nil
}

func validateAssignment(_ context.Context, n ast.Node) (*Error, error) {
	a := n.(*ast.Assignment)
	if isModRules(a) {
		return nil, nil
	}
	v, ok := a.Right.(*ast.Value)
	if !ok || !v.IsReference() {
		return nil, nil
	}
	if v.Quoted && strings.HasPrefix(v.Text, "&") {
		return &Error{Message: "Reference should not be quoted", Node: v}, nil
	}
	for _, p := range []string{"<", "..", "~", "^"} {
		if strings.HasPrefix(v.Text, p) {
			return &Error{Message: "Reference should start with an ampersand", Node: v}, nil
		}
	}
	return nil, nil
}

func validateMath(_ context.Context, n ast.Node) (*Error, error) {
	m := n.(*ast.MathExpression)
	var last ast.Node
	for i, el := range m.Elements {
		_, isOp := el.(*ast.Expression)
		if _, lastOp := last.(*ast.Expression); isOp && lastOp {
			return &Error{Message: "Between two expressions should be a Value", Node: el}, nil
		}
		if isOp && i == len(m.Elements)-1 {
			return &Error{Message: "Last element in MathExpression should be a Value", Node: el}, nil
		}
		if v, ok := el.(*ast.Value); ok && v.ValueKind != ast.ValueNumber && v.ValueKind != ast.ValueReference {
			return &Error{
				Message: fmt.Sprintf("Invalid argument type, expected Number or Reference. Got %s", v.ValueKind),
				Node:    v,
			}, nil
		}
		last = el
	}
	return nil, nil
}
