// Package parser implements the recursive-descent (Pratt) parser that turns
// the synth token stream into an *ast.Program.
package parser

import (
	"strconv"

	"github.com/synth-lang/synth/internal/ast"
	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/lexer"
	"github.com/synth-lang/synth/internal/position"
)

// Parser holds two tokens of lookahead over a lexer. Parse functions are
// entered with current on the first token of their construct and leave it
// on the last one.
type Parser struct {
	lexer   *lexer.Lexer
	current lexer.Token
	peek    lexer.Token

	// first error wins; once set, parse functions unwind with nil
	err *serrors.CompilerError
}

// NewParser creates a parser reading from l
func NewParser(l *lexer.Lexer) *Parser {
	p := &Parser{lexer: l}

	// Read the first two tokens
	p.nextToken()
	p.nextToken()

	return p
}

// ParseSource lexes and parses src in one step.
func ParseSource(src, filename string) (*ast.Program, error) {
	return NewParser(lexer.NewWithFilename(src, filename)).Parse()
}

// Parse parses the whole input. It returns the first lexical or syntax
// error encountered.
func (p *Parser) Parse() (*ast.Program, error) {
	program := p.parseProgram()
	if p.err != nil {
		return nil, p.err
	}
	return program, nil
}

func (p *Parser) nextToken() {
	p.current = p.peek
	p.peek = p.lexer.NextToken()
	if p.peek.Type == lexer.TokenError {
		errs := p.lexer.Errors()
		p.fail(errs[len(errs)-1])
	}
}

func (p *Parser) currentTokenIs(tokenType lexer.TokenType) bool {
	return p.current.Type == tokenType
}

func (p *Parser) peekTokenIs(tokenType lexer.TokenType) bool {
	return p.peek.Type == tokenType
}

// expectPeek advances when the next token has the wanted type and records
// a syntax error otherwise.
func (p *Parser) expectPeek(tokenType lexer.TokenType, expected string) bool {
	if p.peekTokenIs(tokenType) {
		p.nextToken()
		return true
	}
	p.unexpected(expected, p.peek)
	return false
}

func (p *Parser) fail(err *serrors.CompilerError) {
	if p.err == nil {
		p.err = err
	}
}

func (p *Parser) unexpected(expected string, tok lexer.Token) {
	if tok.Type == lexer.TokenEOF {
		p.fail(serrors.UnexpectedEOF(expected, tok.Span))
		return
	}
	p.fail(serrors.UnexpectedToken(expected, tok.String(), tok.Span))
}

func (p *Parser) spanFrom(start position.Position) position.Span {
	return position.Span{Start: start, End: p.current.Span.End}
}

// ===== Statements =====

func (p *Parser) parseProgram() *ast.Program {
	program := &ast.Program{Span: p.current.Span}

	for p.err == nil && !p.currentTokenIs(lexer.TokenEOF) {
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		program.Body = append(program.Body, stmt)
		p.nextToken()
	}

	if len(program.Body) > 0 {
		program.Span = program.Body[0].GetSpan().Union(program.Body[len(program.Body)-1].GetSpan())
	}
	return program
}

// parseStatement parses an if statement or an expression with an optional
// trailing semicolon.
func (p *Parser) parseStatement() ast.Node {
	if p.currentTokenIs(lexer.TokenIf) {
		return p.parseIfStatement()
	}

	start := p.current.Span.Start
	expr := p.parseExpr()
	if expr == nil || p.err != nil {
		return nil
	}
	if p.peekTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
	}
	return &ast.ExprStmt{Span: p.spanFrom(start), Expr: expr}
}

func (p *Parser) parseIfStatement() ast.Node {
	start := p.current.Span.Start

	p.nextToken()
	cond := p.parseExpr()
	if cond == nil || p.err != nil {
		return nil
	}

	p.nextToken()
	then := p.parseStatement()
	if then == nil {
		return nil
	}

	stmt := &ast.If{Cond: cond, Then: then}
	if p.peekTokenIs(lexer.TokenElse) {
		p.nextToken()
		p.nextToken()
		stmt.Else = p.parseStatement()
		if stmt.Else == nil {
			return nil
		}
	}

	stmt.Span = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseBlock() ast.Node {
	start := p.current.Span.Start
	block := &ast.Block{NewScope: true}

	p.nextToken()
	for !p.currentTokenIs(lexer.TokenRBrace) {
		if p.err != nil {
			return nil
		}
		if p.currentTokenIs(lexer.TokenEOF) {
			p.unexpected("'}'", p.current)
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Body = append(block.Body, stmt)
		p.nextToken()
	}

	block.Span = p.spanFrom(start)
	return block
}

// ===== Expressions =====

// Precedence orders the infix operators
type Precedence int

const (
	_ Precedence = iota
	LOWEST
	ASSIGN  // =
	SUM     // + -
	PRODUCT // * /
	PREFIX  // comp X
	CALL    // f(X) X.Y
)

var precedences = map[lexer.TokenType]Precedence{
	lexer.TokenAssign: ASSIGN,
	lexer.TokenPlus:   SUM,
	lexer.TokenMinus:  SUM,
	lexer.TokenStar:   PRODUCT,
	lexer.TokenSlash:  PRODUCT,
	lexer.TokenLParen: CALL,
	lexer.TokenDot:    CALL,
}

var binaryOperators = map[lexer.TokenType]ast.Operator{
	lexer.TokenPlus:  ast.OpAdd,
	lexer.TokenMinus: ast.OpSub,
	lexer.TokenStar:  ast.OpMul,
	lexer.TokenSlash: ast.OpDiv,
}

func (p *Parser) peekPrecedence() Precedence {
	if p, ok := precedences[p.peek.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) currentPrecedence() Precedence {
	if p, ok := precedences[p.current.Type]; ok {
		return p
	}
	return LOWEST
}

// parseExpr parses a full expression: a declaration or an assignment
// chain.
func (p *Parser) parseExpr() ast.Node {
	if p.currentTokenIs(lexer.TokenConst) || p.currentTokenIs(lexer.TokenVar) {
		return p.parseDecl()
	}
	return p.parseExpression(LOWEST)
}

// parseExpression is the Pratt loop. Assignment is right associative, all
// other infix operators associate to the left.
func (p *Parser) parseExpression(precedence Precedence) ast.Node {
	left := p.parsePrefixExpression()
	if left == nil || p.err != nil {
		return nil
	}

	for precedence < p.peekPrecedence() {
		p.nextToken()
		left = p.parseInfixExpression(left)
		if left == nil || p.err != nil {
			return nil
		}
	}

	return left
}

func (p *Parser) parsePrefixExpression() ast.Node {
	switch p.current.Type {
	case lexer.TokenIdentifier:
		return &ast.Ident{Span: p.current.Span, Name: p.current.Literal}
	case lexer.TokenNumber:
		return p.parseNumberLiteral()
	case lexer.TokenString:
		return &ast.StringLit{Span: p.current.Span, Value: p.current.Literal}
	case lexer.TokenTrue:
		return &ast.NumberLit{Span: p.current.Span, Kind: ast.NumberInt, Int: 1}
	case lexer.TokenFalse:
		return &ast.NumberLit{Span: p.current.Span, Kind: ast.NumberInt, Int: 0}
	case lexer.TokenLParen:
		return p.parseGroupedExpression()
	case lexer.TokenLBrace:
		return p.parseBlock()
	case lexer.TokenFn:
		return p.parseFunc()
	case lexer.TokenTypeKeyword:
		return p.parseStructType()
	case lexer.TokenComp:
		return p.parseComptime()
	default:
		p.unexpected("expression", p.current)
		return nil
	}
}

func (p *Parser) parseInfixExpression(left ast.Node) ast.Node {
	switch p.current.Type {
	case lexer.TokenAssign:
		return p.parseAssignment(left)
	case lexer.TokenLParen:
		return p.parseCallExpression(left)
	case lexer.TokenDot:
		return p.parseAccessExpression(left)
	default:
		return p.parseBinaryExpression(left)
	}
}

// parseNumberLiteral yields an integer literal when the text fits in 32
// bits and a float literal otherwise.
func (p *Parser) parseNumberLiteral() ast.Node {
	tok := p.current
	if value, err := strconv.ParseInt(tok.Literal, 10, 32); err == nil {
		return &ast.NumberLit{Span: tok.Span, Kind: ast.NumberInt, Int: int32(value)}
	}
	value, err := strconv.ParseFloat(tok.Literal, 32)
	if err != nil {
		p.fail(serrors.MalformedNumber(tok.Literal, tok.Span))
		return nil
	}
	return &ast.NumberLit{Span: tok.Span, Kind: ast.NumberFloat, Float: float32(value)}
}

func (p *Parser) parseGroupedExpression() ast.Node {
	start := p.current.Span.Start

	p.nextToken()
	inner := p.parseExpr()
	if inner == nil || p.err != nil {
		return nil
	}

	if !p.expectPeek(lexer.TokenRParen, "')'") {
		return nil
	}
	return &ast.Group{Span: p.spanFrom(start), Inner: inner}
}

func (p *Parser) parseComptime() ast.Node {
	start := p.current.Span.Start

	p.nextToken()
	operand := p.parseExpression(PREFIX)
	if operand == nil {
		return nil
	}
	return &ast.LeftUnary{Span: p.spanFrom(start), Op: ast.OpComptime, Operand: operand}
}

func (p *Parser) parseBinaryExpression(left ast.Node) ast.Node {
	op, ok := binaryOperators[p.current.Type]
	if !ok {
		p.unexpected("operator", p.current)
		return nil
	}

	precedence := p.currentPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)
	if right == nil {
		return nil
	}

	return &ast.Binary{
		Span:  left.GetSpan().Union(right.GetSpan()),
		Op:    op,
		Left:  left,
		Right: right,
	}
}

func (p *Parser) parseAssignment(left ast.Node) ast.Node {
	p.nextToken()
	value := p.parseExpr()
	if value == nil {
		return nil
	}
	return &ast.Assign{
		Span:   left.GetSpan().Union(value.GetSpan()),
		Target: left,
		Value:  value,
	}
}

func (p *Parser) parseCallExpression(callee ast.Node) ast.Node {
	args := p.parseCallArguments()
	if p.err != nil {
		return nil
	}
	return &ast.Call{
		Span:   p.spanFrom(callee.GetSpan().Start),
		Callee: callee,
		Args:   args,
	}
}

func (p *Parser) parseCallArguments() []ast.Node {
	args := make([]ast.Node, 0)

	if p.peekTokenIs(lexer.TokenRParen) {
		p.nextToken()
		return args
	}

	for {
		p.nextToken()
		arg := p.parseExpr()
		if arg == nil {
			return nil
		}
		args = append(args, arg)
		if !p.peekTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(lexer.TokenRParen, "')'") {
		return nil
	}
	return args
}

func (p *Parser) parseAccessExpression(target ast.Node) ast.Node {
	if !p.expectPeek(lexer.TokenIdentifier, "member name") {
		return nil
	}
	return &ast.Access{
		Span:   p.spanFrom(target.GetSpan().Start),
		Target: target,
		Member: p.current.Literal,
	}
}

// ===== Declarations =====

func (p *Parser) parseDecl() ast.Node {
	start := p.current.Span.Start
	decl := &ast.Decl{Qualifier: ast.QualifierConst}
	if p.currentTokenIs(lexer.TokenVar) {
		decl.Qualifier = ast.QualifierVar
	}

	if !p.expectPeek(lexer.TokenIdentifier, "identifier") {
		return nil
	}
	decl.Name = p.current.Literal

	if p.peekTokenIs(lexer.TokenColon) {
		p.nextToken()
		p.nextToken()
		decl.Type = p.parseType()
		if decl.Type == nil {
			return nil
		}
	}
	decl.Infer = decl.Type == nil

	if p.peekTokenIs(lexer.TokenAssign) {
		p.nextToken()
		p.nextToken()
		decl.Value = p.parseExpr()
		if decl.Value == nil {
			return nil
		}
	} else if decl.Infer {
		p.unexpected("':' type or '=' initializer", p.peek)
		return nil
	}

	decl.Span = p.spanFrom(start)
	return decl
}

var builtinTypes = map[lexer.TokenType]ast.TypeKind{
	lexer.TokenI32:         ast.TypeI32,
	lexer.TokenU32:         ast.TypeU32,
	lexer.TokenBool:        ast.TypeBool,
	lexer.TokenF32:         ast.TypeF32,
	lexer.TokenTypeKeyword: ast.TypeMeta,
}

func (p *Parser) parseType() *ast.TypeRef {
	if kind, ok := builtinTypes[p.current.Type]; ok {
		return &ast.TypeRef{Span: p.current.Span, Kind: kind}
	}
	if p.currentTokenIs(lexer.TokenIdentifier) {
		return &ast.TypeRef{Span: p.current.Span, Kind: ast.TypeNamed, Name: p.current.Literal}
	}
	p.unexpected("type", p.current)
	return nil
}

func (p *Parser) parseFunc() ast.Node {
	start := p.current.Span.Start
	fn := &ast.Func{}

	if p.peekTokenIs(lexer.TokenIdentifier) {
		p.nextToken()
		fn.Name = p.current.Literal
	}

	if p.peekTokenIs(lexer.TokenLParen) {
		p.nextToken()
		fn.Params = p.parseParameterList()
		if p.err != nil {
			return nil
		}
	}

	p.nextToken()
	fn.Body = p.parseStatement()
	if fn.Body == nil {
		return nil
	}

	fn.Span = p.spanFrom(start)
	return fn
}

func (p *Parser) parseParameterList() []*ast.Param {
	params := make([]*ast.Param, 0)

	if p.peekTokenIs(lexer.TokenRParen) {
		p.nextToken()
		return params
	}

	for {
		if !p.expectPeek(lexer.TokenIdentifier, "parameter name") {
			return nil
		}
		param := &ast.Param{Name: p.current.Literal}
		start := p.current.Span.Start

		if !p.expectPeek(lexer.TokenColon, "':'") {
			return nil
		}
		p.nextToken()
		param.Type = p.parseType()
		if param.Type == nil {
			return nil
		}
		param.Span = p.spanFrom(start)
		params = append(params, param)

		if !p.peekTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(lexer.TokenRParen, "')'") {
		return nil
	}
	return params
}

// parseStructType parses `type { name: type, ... }`. Fields may be
// separated by commas or semicolons.
func (p *Parser) parseStructType() ast.Node {
	start := p.current.Span.Start
	st := &ast.StructType{Fields: make(map[string]*ast.TypeRef)}

	if !p.expectPeek(lexer.TokenLBrace, "'{'") {
		return nil
	}

	for !p.peekTokenIs(lexer.TokenRBrace) {
		if !p.expectPeek(lexer.TokenIdentifier, "field name or '}'") {
			return nil
		}
		name := p.current.Literal
		if _, dup := st.Fields[name]; dup {
			p.unexpected("unique field name", p.current)
			return nil
		}

		if !p.expectPeek(lexer.TokenColon, "':'") {
			return nil
		}
		p.nextToken()
		typ := p.parseType()
		if typ == nil {
			return nil
		}
		st.Fields[name] = typ

		if p.peekTokenIs(lexer.TokenComma) || p.peekTokenIs(lexer.TokenSemicolon) {
			p.nextToken()
		}
	}
	p.nextToken()

	st.Span = p.spanFrom(start)
	return st
}
