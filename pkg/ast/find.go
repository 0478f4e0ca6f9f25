package ast

// Root follows parent links up to the owning Document. It returns nil when the
// top of the chain is not a Document, which only happens for detached nodes.
func Root(n Node) *Document {
	for n != nil {
		if doc, ok := n.(*Document); ok {
			return doc
		}
		p := n.Parent()
		if p == nil {
			return nil
		}
		n = p
	}
	return nil
}

// NameOf returns the name a node is addressed by in a reference path.
func NameOf(n Node) (string, bool) {
	switch n := n.(type) {
	case *Assignment:
		if n.Left != nil {
			return n.Left.Name, true
		}
	case *Object:
		if n.Identifier != nil {
			return n.Identifier.Name, true
		}
	case *Array:
		if n.Identifier != nil {
			return n.Identifier.Name, true
		}
	case *Identifier:
		return n.Name, true
	}
	return "", false
}

// FindNodeAtPosition returns the innermost node under the zero based
// line/character, or nil. Assignments resolve to their right hand side and
// inheritance entries are searched before the elements of their literal. The
// Document itself is never returned.
func FindNodeAtPosition(doc *Document, line, character int) Node {
	if doc == nil {
		return nil
	}
	return findIn(doc.Elements, line, character)
}

func findIn(nodes []Node, line, character int) Node {
	for _, n := range nodes {
		if found := findNode(n, line, character); found != nil {
			return found
		}
	}
	return nil
}

func findNode(n Node, line, character int) Node {
	switch n := n.(type) {
	case nil:
		return nil
	case Literal:
		body := n.Body()
		for _, base := range body.Inheritance {
			if base.Position().Contains(line, character) {
				return base
			}
		}
		if !n.Position().Contains(line, character) {
			return nil
		}
		if found := findIn(body.Own(), line, character); found != nil {
			return found
		}
		return n
	case *Assignment:
		if n.Right == nil {
			return nil
		}
		return findNode(n.Right, line, character)
	case *FunctionCall:
		if found := findIn(n.Arguments, line, character); found != nil {
			return found
		}
		if n.Position().Contains(line, character) {
			return n
		}
	case *MathExpression:
		if found := findIn(n.Elements, line, character); found != nil {
			return found
		}
		if n.Position().Contains(line, character) {
			return n
		}
	default:
		if n.Position().Contains(line, character) {
			return n
		}
	}
	return nil
}
