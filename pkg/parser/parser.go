// Package parser builds a rules syntax tree from a token stream.
//
// The grammar is ambiguous between keys, names and values, so the parser
// decides with one token of lookahead, the token two positions back and the
// kind of the previously produced sibling. It never gives up: malformed input
// is recorded as an Error and parsing resumes at the next token.
package parser

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/walteh/rulesls/pkg/ast"
	"github.com/walteh/rulesls/pkg/lexer"
	"github.com/walteh/rulesls/pkg/position"
)

// MaxErrors caps the errors kept for a single parse. Parsing itself goes on
// past the cap.
const MaxErrors = 10

// Error is a recoverable syntax problem anchored at the offending token.
type Error struct {
	Message string
	Token   lexer.Token
	Related []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Token.Line, e.Token.Column, e.Message)
}

func (e *Error) Span() position.Span {
	return spanOf(e.Token)
}

// ParseText tokenizes and parses text in one go.
func ParseText(ctx context.Context, text, uri string) (*ast.Document, []*Error) {
	return Parse(ctx, lexer.Tokenize(text), uri)
}

// Parse always returns a document, possibly partial, and the bounded list of
// problems met on the way.
func Parse(ctx context.Context, tokens []lexer.Token, uri string) (*ast.Document, []*Error) {
	p := &parser{tokens: tokens}
	doc := ast.NewDocument(uri)

	var last ast.Node
	for !p.eof() {
		start := p.cur
		next := p.walk(last, doc)
		if next == nil {
			if p.cur == start {
				p.cur++
			}
			continue
		}
		doc.Elements = append(doc.Elements, next)
		p.delimit(next)
		last = next
	}

	if len(tokens) > 0 {
		doc.Pos = spanBetween(tokens[0], tokens[len(tokens)-1])
	}

	zerolog.Ctx(ctx).Trace().
		Str("uri", uri).
		Int("tokens", len(tokens)).
		Int("errors", len(p.errs)).
		Int("dropped_errors", p.dropped).
		Msg("parsed document")

	return doc, p.errs
}

type parser struct {
	tokens  []lexer.Token
	cur     int
	errs    []*Error
	dropped int
}

func (p *parser) eof() bool {
	return p.cur >= len(p.tokens)
}

func (p *parser) peek(offset int) (lexer.Token, bool) {
	i := p.cur + offset
	if i < 0 || i >= len(p.tokens) {
		return lexer.Token{}, false
	}
	return p.tokens[i], true
}

func (p *parser) is(offset int, kind lexer.Kind) bool {
	tok, ok := p.peek(offset)
	return ok && tok.Kind == kind
}

func (p *parser) atCloser() bool {
	return p.eof() || p.is(0, lexer.RightParen) || p.is(0, lexer.RightBrace) || p.is(0, lexer.RightBracket)
}

func (p *parser) fail(tok lexer.Token, msg string, related ...string) {
	if len(p.errs) >= MaxErrors {
		p.dropped++
		return
	}
	p.errs = append(p.errs, &Error{Message: msg, Token: tok, Related: related})
}

// walk produces the node starting at the current token. last is the sibling
// produced just before, parent the container the new node belongs to; parent
// is nil while parsing inheritance entries, which are adopted by their literal
// afterwards.
func (p *parser) walk(last ast.Node, parent ast.Container) ast.Node {
	tok, ok := p.peek(0)
	if !ok {
		return nil
	}

	switch tok.Kind {
	case lexer.LeftBrace, lexer.LeftBracket:
		return p.literal(last, parent)

	case lexer.RightBrace:
		p.cur++
		p.fail(tok, "Not expected right brace, did you mean to open an object?")
		return nil

	case lexer.RightBracket:
		p.cur++
		p.fail(tok, "Not expected bracket, did you mean to open an array?")
		return nil

	case lexer.Comma, lexer.Semicolon:
		p.cur++
		if v, ok := last.(*ast.Value); ok {
			v.Delimiter = delimiterOf(tok)
			if p.atCloser() {
				return nil
			}
			return p.walk(last, parent)
		}
		if tok.Kind == lexer.Comma {
			p.fail(tok, "Not expected comma")
		} else {
			p.fail(tok, "Not expected semicolon")
		}
		return nil

	case lexer.String:
		return p.str(parent)

	case lexer.True, lexer.False:
		p.cur++
		return adopt(ast.NewBoolean(tok.Kind == lexer.True, spanOf(tok)), parent)

	case lexer.Expression:
		return p.operator(last, parent)

	case lexer.LeftParen:
		return p.parenthesized(last, parent)

	case lexer.Value:
		if p.is(1, lexer.LeftParen) && !isNumber(tok.Value) {
			return p.call(parent)
		}
		return p.word(last, parent)

	case lexer.Colon:
		return p.inheritance(last, parent)

	case lexer.RightParen:
		p.cur++
		if _, ok := last.(*ast.Value); ok {
			return p.walk(last, parent)
		}
		p.fail(tok, "Not expected paren")
		return nil

	case lexer.StringDelimiter:
		p.cur++
		p.fail(tok, "String delimiters are only allowed after a String")
		return p.walk(last, parent)

	case lexer.Unexpected:
		p.cur++
		p.fail(tok, "Unknown token type", fmt.Sprintf("Unexpected character %q", tok.Value))
		return nil
	}

	p.cur++
	p.fail(tok, "Unknown token type",
		"This could be a bug in the parser or lexer, please report this issue, if you think this is a bug")
	return nil
}

// literal parses an Object or an Array starting at its opening token. A
// preceding Identifier sibling becomes its name.
func (p *parser) literal(last ast.Node, parent ast.Container) ast.Literal {
	open := p.tokens[p.cur]
	p.cur++

	var ident *ast.Identifier
	if id, ok := last.(*ast.Identifier); ok {
		ident = id
	}

	var (
		lit       ast.Literal
		closeKind lexer.Kind
		atEOF     string
		unclosed  string
	)
	if open.Kind == lexer.LeftBrace {
		lit, closeKind = ast.NewObject(ident, spanOf(open)), lexer.RightBrace
		atEOF, unclosed = "Expected right brace but found end of file", "Expected right brace to close the object"
	} else {
		lit, closeKind = ast.NewArray(ident, spanOf(open)), lexer.RightBracket
		atEOF, unclosed = "Expected right bracket but found end of file", "Expected right bracket to close the array"
	}
	adopt(lit, parent)
	body := lit.Body()

	if p.eof() {
		p.fail(open, atEOF)
		return lit
	}

	prev := ast.Node(lit)
	for !p.eof() && !p.is(0, closeKind) {
		start := p.cur
		next := p.walk(prev, lit)
		if next == nil {
			if p.cur == start {
				break
			}
			continue
		}
		body.Elements = append(body.Elements, next)
		p.delimit(next)
		prev = next
	}

	if tok, ok := p.peek(0); ok && tok.Kind == closeKind {
		body.Pos = spanBetween(open, tok)
		p.cur++
		return lit
	}

	p.fail(open, unclosed)
	body.Pos = spanBetween(open, p.tokens[p.cur-1])
	return lit
}

// delimit consumes a list separator following n and records it on the value
// it terminates.
func (p *parser) delimit(n ast.Node) {
	tok, ok := p.peek(0)
	if !ok || (tok.Kind != lexer.Comma && tok.Kind != lexer.Semicolon) {
		return
	}
	p.cur++
	switch n := n.(type) {
	case *ast.Value:
		n.Delimiter = delimiterOf(tok)
	case *ast.Assignment:
		if v, ok := n.Right.(*ast.Value); ok {
			v.Delimiter = delimiterOf(tok)
		}
	}
}

// str joins "a" \ "b" sequences into one quoted value.
func (p *parser) str(parent ast.Container) ast.Node {
	first := p.tokens[p.cur]
	p.cur++

	text, end := first.Value, first
	for p.is(0, lexer.StringDelimiter) && p.is(1, lexer.String) {
		end = p.tokens[p.cur+1]
		text += end.Value
		p.cur += 2
	}

	return adopt(ast.NewValue(text, true, spanBetween(first, end)), parent)
}

// operator handles + - * /, folding "- <number>" into a negative number and
// "/ <word>" into a root reference.
func (p *parser) operator(last ast.Node, parent ast.Container) ast.Node {
	tok := p.tokens[p.cur]
	p.cur++

	if next, ok := p.peek(0); ok && next.Kind == lexer.Value {
		_, lastIsValue := last.(*ast.Value)
		before, hasBefore := p.peek(-2)
		afterValue := hasBefore && before.Kind == lexer.Value

		switch {
		case tok.Value == "-" && isNumber(next.Value) && !afterValue && !lastIsValue:
			p.cur++
			return adopt(ast.NewValue("-"+next.Value, false, spanBetween(tok, next)), parent)
		case tok.Value == "/" && !isNumber(next.Value):
			p.cur++
			return adopt(ast.NewValue("/"+next.Value, false, spanBetween(tok, next)), parent)
		}
	}

	return adopt(ast.NewExpression(tok.Value, spanOf(tok)), parent)
}

// word turns a bareword into an Assignment, a Value or an Identifier.
func (p *parser) word(last ast.Node, parent ast.Container) ast.Node {
	tok := p.tokens[p.cur]
	p.cur++

	if p.is(0, lexer.Equals) {
		p.cur++
		left := adopt(ast.NewIdentifier(tok.Value, spanOf(tok)), parent).(*ast.Identifier)
		if p.eof() {
			p.fail(tok, "Expected value after equals",
				"If you want to assign a value to an identifier, you need to provide a value after the equals sign",
				"If you don't want to assign a value to an identifier, you need to remove the equals sign")
			return nil
		}
		right := p.walk(last, parent)
		if right == nil {
			p.fail(tok, "Expected value after equals")
			return nil
		}
		assign := ast.NewAssignment(ast.AssignEquals, left, right, spanOf(tok).Join(right.Position()))
		return adopt(assign, parent)
	}

	if !p.is(0, lexer.Colon) && p.inValuePosition(last) {
		return adopt(ast.NewValue(tok.Value, false, spanOf(tok)), parent)
	}

	ident := adopt(ast.NewIdentifier(tok.Value, spanOf(tok)), parent)
	if p.is(0, lexer.LeftBrace) || p.is(0, lexer.LeftBracket) || p.is(0, lexer.Colon) {
		return p.walk(ident, parent)
	}
	return ident
}

// inValuePosition looks at the token in front of the word just consumed and
// at the previous sibling.
func (p *parser) inValuePosition(last ast.Node) bool {
	if _, ok := last.(*ast.Value); ok {
		return true
	}
	before, ok := p.peek(-2)
	if !ok {
		return false
	}
	switch before.Kind {
	case lexer.Equals, lexer.Colon, lexer.Comma, lexer.Semicolon,
		lexer.LeftBracket, lexer.Expression, lexer.LeftParen:
		return true
	}
	return false
}

// call parses name(args...). The first argument may be wrapped in its own
// parentheses, which is how references are passed.
func (p *parser) call(parent ast.Container) ast.Node {
	nameTok := p.tokens[p.cur]
	p.cur += 2

	call := ast.NewFunctionCall(nameTok.Value, spanOf(nameTok))
	adopt(call, parent)

	var prev ast.Node
	switch {
	case p.is(0, lexer.LeftParen) && p.is(1, lexer.Value) && p.is(2, lexer.RightParen):
		tok := p.tokens[p.cur+1]
		arg := ast.NewValue(tok.Value, false, spanOf(tok))
		arg.Parenthesized = true
		call.Arguments = append(call.Arguments, adopt(arg, parent))
		prev = arg
		p.cur += 3
	case p.is(0, lexer.Value) && !p.is(1, lexer.LeftParen):
		tok := p.tokens[p.cur]
		arg := ast.NewValue(tok.Value, false, spanOf(tok))
		call.Arguments = append(call.Arguments, adopt(arg, parent))
		prev = arg
		p.cur++
	}

	for !p.eof() && !p.is(0, lexer.RightParen) {
		next := p.walk(prev, parent)
		if next == nil {
			break
		}
		switch next.(type) {
		case *ast.Value, *ast.Expression, *ast.FunctionCall, *ast.MathExpression:
			call.Arguments = append(call.Arguments, next)
		default:
			p.fail(nameTok, "Expected value, expression or function call",
				"Values can be a number or a reference, expressions can be +, -, *, /")
		}
		p.delimit(next)
		prev = next
	}

	if tok, ok := p.peek(0); ok && tok.Kind == lexer.RightParen {
		call.Pos = spanBetween(nameTok, tok)
		p.cur++
	} else {
		p.fail(nameTok, "Expected right paren to close the function call")
		call.Pos = spanBetween(nameTok, p.tokens[p.cur-1])
	}
	return call
}

// parenthesized handles a bare "(": either one wrapped value or a math
// expression.
func (p *parser) parenthesized(last ast.Node, parent ast.Container) ast.Node {
	open := p.tokens[p.cur]
	p.cur++

	inner := p.walk(last, parent)
	if inner == nil {
		p.fail(open, "Expected value after left paren")
		return nil
	}

	if p.is(0, lexer.RightParen) {
		p.cur++
		if v, ok := inner.(*ast.Value); ok {
			v.Parenthesized = true
		}
		return inner
	}

	math := ast.NewMathExpression(inner.Position())
	adopt(math, parent)
	math.Elements = append(math.Elements, inner)

	prev := inner
	for !p.eof() && !p.is(0, lexer.RightParen) {
		next := p.walk(prev, parent)
		if next == nil {
			break
		}
		switch next.(type) {
		case *ast.Value, *ast.Expression, *ast.MathExpression:
			math.Elements = append(math.Elements, next)
		default:
			p.fail(open, "Expected value or expression in math expression")
		}
		prev = next
	}

	if tok, ok := p.peek(0); ok && tok.Kind == lexer.RightParen {
		math.Pos = spanBetween(open, tok)
		p.cur++
	} else {
		p.fail(open, "Expected right paren")
		math.Pos = spanBetween(open, p.tokens[p.cur-1])
	}
	return math
}

// inheritance parses ": base, base ... { }" and attaches the bases to the
// literal that follows. Without a literal, "key : value" is kept as a colon
// assignment.
func (p *parser) inheritance(last ast.Node, parent ast.Container) ast.Node {
	colon := p.tokens[p.cur]
	p.cur++

	if p.eof() {
		p.fail(colon, "Expected value after colon", "Those Values should be a References")
		return nil
	}

	var (
		bases []*ast.Value
		prev  ast.Node
	)
	for p.baseAhead() {
		next := p.walk(prev, nil)
		if next == nil {
			break
		}
		switch n := next.(type) {
		case *ast.Value:
			// a bareword base names a sibling
			if n.ValueKind == ast.ValueString && !n.Quoted {
				n.ValueKind = ast.ValueReference
			}
			bases = append(bases, n)
		case *ast.Expression:
			if n.Operator == "/" {
				bases = append(bases, ast.NewValue("/", false, n.Position()))
				break
			}
			p.fail(colon, fmt.Sprintf("Expected reference value after reference value but found %s", next.Kind()))
		default:
			p.fail(colon, fmt.Sprintf("Expected reference value after reference value but found %s", next.Kind()))
		}
		prev = next
		if tok, ok := p.peek(0); ok && tok.Kind == lexer.Comma {
			if v, ok := next.(*ast.Value); ok {
				v.Delimiter = ','
			}
			p.cur++
		}
	}

	if p.is(0, lexer.LeftBrace) || p.is(0, lexer.LeftBracket) {
		lit := p.literal(last, parent)
		for _, b := range bases {
			b.SetParent(lit)
		}
		lit.Body().Inheritance = bases
		return lit
	}

	if ident, ok := last.(*ast.Identifier); ok && len(bases) == 1 {
		bases[0].SetParent(parent)
		assign := ast.NewAssignment(ast.AssignColon, ident, bases[0], ident.Position().Join(bases[0].Position()))
		return adopt(assign, parent)
	}

	p.fail(colon, "Expected object or array after inheritance")
	return nil
}

func (p *parser) baseAhead() bool {
	tok, ok := p.peek(0)
	if !ok {
		return false
	}
	switch tok.Kind {
	case lexer.Value:
		return true
	case lexer.Expression:
		return tok.Value == "/" || p.is(1, lexer.Value)
	}
	return false
}

func adopt(n ast.Node, parent ast.Container) ast.Node {
	if parent != nil {
		n.SetParent(parent)
	}
	return n
}

func delimiterOf(tok lexer.Token) rune {
	if tok.Kind == lexer.Semicolon {
		return ';'
	}
	return ','
}

func isNumber(text string) bool {
	kind, _ := ast.ClassifyValue(text)
	return kind == ast.ValueNumber
}

func spanOf(t lexer.Token) position.Span {
	return position.Span{
		Line:           t.Line,
		EndLine:        t.EndLine,
		CharacterStart: t.Column,
		CharacterEnd:   t.EndColumn,
		Start:          t.Start,
		End:            t.End,
	}
}

func spanBetween(first, last lexer.Token) position.Span {
	s := spanOf(first)
	s.EndLine, s.CharacterEnd, s.End = last.EndLine, last.EndColumn, last.End
	return s
}
