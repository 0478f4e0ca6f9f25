package navigation

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/walteh/rulesls/pkg/ast"
	"github.com/walteh/rulesls/pkg/workspace"
)

// IsValidReference checks the surface syntax of a reference. With a leading
// '&' the body must start with <file.rules>, .., ~, /, ^ or a name; without
// it only the path sigils are allowed. Nested sigils are rejected either way.
func IsValidReference(text string) bool {
	if rest, ok := strings.CutPrefix(text, "&"); ok {
		if !(strings.HasPrefix(rest, "<") && strings.Contains(rest, ".rules>")) &&
			!strings.HasPrefix(rest, "..") &&
			!strings.HasPrefix(rest, "~") &&
			!strings.HasPrefix(rest, "/") &&
			!strings.HasPrefix(rest, "^") &&
			!startsWithName(rest) {
			return false
		}
		return !strings.ContainsAny(tail(rest), "&<~")
	}

	if !(strings.HasPrefix(text, "<") && strings.Contains(text, ".rules>")) &&
		!strings.HasPrefix(text, "..") &&
		!strings.HasPrefix(text, "/") &&
		!strings.HasPrefix(text, "^") &&
		!strings.HasPrefix(text, "~") {
		return false
	}
	next := tail(text)
	if strings.ContainsAny(next, "&<~ ") {
		return false
	}
	return strings.HasPrefix(text, "^") || !strings.HasPrefix(next, "/")
}

func startsWithName(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func tail(s string) string {
	if s == "" {
		return ""
	}
	return s[1:]
}

// AssetExists checks that the sprite, sound or shader named by v exists.
// ./Data paths are looked up under the game data root, others next to the
// file containing v.
func (n *Navigator) AssetExists(ctx context.Context, v *ast.Value) (bool, error) {
	if rest, ok := strings.CutPrefix(v.Text, "./Data"); ok {
		if n.index.Root() == "" {
			return false, nil
		}
		_, found, err := n.index.Exists(ctx, n.index.Root(), SplitPath(rest))
		return found, err
	}

	root := ast.Root(v)
	if root == nil {
		return false, nil
	}
	dir := filepath.Dir(workspace.URIToPath(root.URI))
	_, found, err := n.index.Exists(ctx, dir, SplitPath(v.Text))
	return found, err
}
