package completion

import (
	"github.com/walteh/rulesls/pkg/ast"
)

// Target is the value a completion request applies to.
type Target struct {
	Value *ast.Value
	// Inheritance is set when Value is a base in an inheritance clause.
	Inheritance bool
}

// TargetAt finds the value under a zero based cursor. ok is false when the
// cursor is not on a value.
func TargetAt(doc *ast.Document, line, character int) (Target, bool) {
	v, ok := ast.FindNodeAtPosition(doc, line, character).(*ast.Value)
	if !ok {
		return Target{}, false
	}
	return Target{Value: v, Inheritance: isBase(v)}, true
}

func isBase(v *ast.Value) bool {
	lit, ok := v.Parent().(ast.Literal)
	if !ok {
		return false
	}
	for _, base := range lit.Body().Inheritance {
		if base == v {
			return true
		}
	}
	return false
}
