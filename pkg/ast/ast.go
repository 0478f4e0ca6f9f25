// Package ast holds the syntax tree of a rules document.
//
// Every node except the Document keeps a back reference to the Document,
// Object or Array that contains it. The link is set once, when the parser
// attaches the node, and never changes afterwards; inherited elements copied
// into an Object by flattening keep pointing at their original owner.
package ast

import (
	"fmt"
	"sync"

	"github.com/walteh/rulesls/pkg/position"
)

// Kind is the tag of a node variant.
type Kind int

const (
	KindDocument Kind = iota
	KindObject
	KindArray
	KindIdentifier
	KindValue
	KindExpression
	KindAssignment
	KindFunctionCall
	KindMathExpression
)

var kindNames = [...]string{
	KindDocument:       "Document",
	KindObject:         "Object",
	KindArray:          "Array",
	KindIdentifier:     "Identifier",
	KindValue:          "Value",
	KindExpression:     "Expression",
	KindAssignment:     "Assignment",
	KindFunctionCall:   "FunctionCall",
	KindMathExpression: "MathExpression",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Node is implemented by every syntax tree variant.
type Node interface {
	Kind() Kind
	Position() position.Span
	// Parent is the containing Document, Object or Array, nil for the root.
	Parent() Container
	// SetParent links the node to its container. Only the first call has an
	// effect.
	SetParent(Container)
}

// Container is a node owning an ordered element list.
type Container interface {
	Node
	Children() []Node
}

// Literal is an Object or an Array.
type Literal interface {
	Container
	Body() *Block
}

type base struct {
	Pos    position.Span
	parent Container
}

func (b *base) Position() position.Span { return b.Pos }

func (b *base) Parent() Container { return b.parent }

func (b *base) SetParent(c Container) {
	if b.parent == nil {
		b.parent = c
	}
}

// Document is the root of one parsed file.
type Document struct {
	base
	URI      string
	Elements []Node
}

func NewDocument(uri string) *Document {
	return &Document{URI: uri}
}

func (*Document) Kind() Kind { return KindDocument }

func (d *Document) Children() []Node { return d.Elements }

// SetParent is a no-op, documents are always roots.
func (*Document) SetParent(Container) {}

// Block is the shared body of Objects and Arrays.
type Block struct {
	base
	Identifier *Identifier
	Elements   []Node
	// Inheritance lists the declared bases in source order.
	Inheritance []*Value

	mu        sync.Mutex
	flattened bool
	own       int
}

func (b *Block) Body() *Block { return b }

func (b *Block) Children() []Node { return b.Elements }

// Name is the identifier in front of the literal, empty when unnamed.
func (b *Block) Name() string {
	if b.Identifier == nil {
		return ""
	}
	return b.Identifier.Name
}

func (b *Block) Flattened() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flattened
}

// AppendInherited appends elems exactly once. It reports false when the block
// was already flattened and nothing was appended.
func (b *Block) AppendInherited(elems []Node) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flattened {
		return false
	}
	b.flattened = true
	b.own = len(b.Elements)
	b.Elements = append(b.Elements, elems...)
	return true
}

// Own returns the elements written inside the literal, without inherited ones.
func (b *Block) Own() []Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.flattened {
		return b.Elements
	}
	return b.Elements[:b.own]
}

type Object struct {
	Block
}

func NewObject(ident *Identifier, pos position.Span) *Object {
	o := &Object{}
	o.Identifier = ident
	o.Pos = pos
	return o
}

func (*Object) Kind() Kind { return KindObject }

type Array struct {
	Block
}

func NewArray(ident *Identifier, pos position.Span) *Array {
	a := &Array{}
	a.Identifier = ident
	a.Pos = pos
	return a
}

func (*Array) Kind() Kind { return KindArray }

// Identifier is a bare name, either standalone or the key of an assignment
// or literal.
type Identifier struct {
	base
	Name string
}

func NewIdentifier(name string, pos position.Span) *Identifier {
	return &Identifier{base: base{Pos: pos}, Name: name}
}

func (*Identifier) Kind() Kind { return KindIdentifier }

// Expression is a lone arithmetic operator.
type Expression struct {
	base
	Operator string
}

func NewExpression(op string, pos position.Span) *Expression {
	return &Expression{base: base{Pos: pos}, Operator: op}
}

func (*Expression) Kind() Kind { return KindExpression }

type AssignmentForm int

const (
	AssignEquals AssignmentForm = iota
	AssignColon
)

func (f AssignmentForm) String() string {
	if f == AssignColon {
		return "Colon"
	}
	return "Equals"
}

type Assignment struct {
	base
	Form  AssignmentForm
	Left  *Identifier
	Right Node
}

func NewAssignment(form AssignmentForm, left *Identifier, right Node, pos position.Span) *Assignment {
	return &Assignment{base: base{Pos: pos}, Form: form, Left: left, Right: right}
}

func (*Assignment) Kind() Kind { return KindAssignment }

type FunctionCall struct {
	base
	Name      string
	Arguments []Node
}

func NewFunctionCall(name string, pos position.Span) *FunctionCall {
	return &FunctionCall{base: base{Pos: pos}, Name: name}
}

func (*FunctionCall) Kind() Kind { return KindFunctionCall }

// MathExpression is the flat operand/operator sequence found between a pair of
// parentheses, e.g. (a + b - c).
type MathExpression struct {
	base
	Elements []Node
}

func NewMathExpression(pos position.Span) *MathExpression {
	return &MathExpression{base: base{Pos: pos}}
}

func (*MathExpression) Kind() Kind { return KindMathExpression }
