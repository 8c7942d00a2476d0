// Package ast defines the Abstract Syntax Tree (AST) nodes for synth.
//
// The node set is closed: every variant implements Node through the
// unexported node marker, so consumers switch over concrete types and treat
// any other shape as unsupported. Every non-leaf node exclusively owns its
// children and every node carries the source span it was parsed from.
package ast

import (
	"fmt"
	"sort"
	"strings"

	"github.com/synth-lang/synth/internal/position"
)

// Node is the base interface for all AST nodes
type Node interface {
	// GetSpan returns the source span covered by this node
	GetSpan() position.Span
	// String returns a source-like representation of the node
	String() string
	// Accept implements the visitor pattern for AST traversal
	Accept(visitor Visitor) interface{}

	node()
}

// ===== Program Structure =====

// Program represents the root of the AST, a complete source file
type Program struct {
	Span position.Span
	Body []Node
}

func (p *Program) GetSpan() position.Span            { return p.Span }
func (p *Program) node()                             {}
func (p *Program) Accept(visitor Visitor) interface{} { return visitor.VisitProgram(p) }
func (p *Program) String() string {
	parts := make([]string, 0, len(p.Body))
	for _, stmt := range p.Body {
		parts = append(parts, stmt.String())
	}
	return strings.Join(parts, "\n")
}

// ExprStmt wraps an expression used in statement position
type ExprStmt struct {
	Span position.Span
	Expr Node
}

func (s *ExprStmt) GetSpan() position.Span            { return s.Span }
func (s *ExprStmt) node()                             {}
func (s *ExprStmt) Accept(visitor Visitor) interface{} { return visitor.VisitExprStmt(s) }
func (s *ExprStmt) String() string                    { return s.Expr.String() + ";" }

// Block is a braced statement list. NewScope blocks open a lexical scope.
type Block struct {
	Span     position.Span
	Body     []Node
	NewScope bool
}

func (b *Block) GetSpan() position.Span            { return b.Span }
func (b *Block) node()                             {}
func (b *Block) Accept(visitor Visitor) interface{} { return visitor.VisitBlock(b) }
func (b *Block) String() string {
	if len(b.Body) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(b.Body))
	for _, stmt := range b.Body {
		parts = append(parts, stmt.String())
	}
	return "{ " + strings.Join(parts, " ") + " }"
}

// ===== Declarations =====

// Qualifier distinguishes constant and mutable declarations
type Qualifier int

const (
	QualifierConst Qualifier = iota
	QualifierVar
)

func (q Qualifier) String() string {
	if q == QualifierVar {
		return "var"
	}
	return "const"
}

// TypeKind classifies a written type
type TypeKind int

const (
	TypeI32 TypeKind = iota
	TypeU32
	TypeBool
	TypeF32
	TypeMeta
	TypeNamed
)

// TypeRef is a type as written in the source: a builtin keyword or the
// name of a struct type.
type TypeRef struct {
	Span position.Span
	Kind TypeKind
	Name string // set for TypeNamed
}

func (t *TypeRef) String() string {
	switch t.Kind {
	case TypeI32:
		return "i32"
	case TypeU32:
		return "u32"
	case TypeBool:
		return "bool"
	case TypeF32:
		return "f32"
	case TypeMeta:
		return "type"
	default:
		return t.Name
	}
}

// Decl declares a named slot. Infer is set when no type is written, in
// which case Value is required.
type Decl struct {
	Span      position.Span
	Name      string
	Qualifier Qualifier
	Type      *TypeRef
	Infer     bool
	Value     Node
}

func (d *Decl) GetSpan() position.Span            { return d.Span }
func (d *Decl) node()                             {}
func (d *Decl) Accept(visitor Visitor) interface{} { return visitor.VisitDecl(d) }
func (d *Decl) String() string {
	var sb strings.Builder
	sb.WriteString(d.Qualifier.String())
	sb.WriteString(" ")
	sb.WriteString(d.Name)
	if d.Type != nil {
		sb.WriteString(": ")
		sb.WriteString(d.Type.String())
	}
	if d.Value != nil {
		sb.WriteString(" = ")
		sb.WriteString(d.Value.String())
	}
	return sb.String()
}

// Assign stores Value into Target
type Assign struct {
	Span   position.Span
	Target Node
	Value  Node
}

func (a *Assign) GetSpan() position.Span            { return a.Span }
func (a *Assign) node()                             {}
func (a *Assign) Accept(visitor Visitor) interface{} { return visitor.VisitAssign(a) }
func (a *Assign) String() string {
	return fmt.Sprintf("%s = %s", a.Target, a.Value)
}

// Param is a single function parameter
type Param struct {
	Span position.Span
	Name string
	Type *TypeRef
}

func (p *Param) String() string {
	return fmt.Sprintf("%s: %s", p.Name, p.Type)
}

// Func is a function literal; Name is empty for anonymous functions.
type Func struct {
	Span   position.Span
	Name   string
	Params []*Param
	Body   Node
}

func (f *Func) GetSpan() position.Span            { return f.Span }
func (f *Func) node()                             {}
func (f *Func) Accept(visitor Visitor) interface{} { return visitor.VisitFunc(f) }
func (f *Func) String() string {
	params := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		params = append(params, p.String())
	}
	name := ""
	if f.Name != "" {
		name = " " + f.Name
	}
	return fmt.Sprintf("fn%s(%s) %s", name, strings.Join(params, ", "), f.Body)
}

// StructType is a `type { ... }` literal. Field order is not significant.
type StructType struct {
	Span   position.Span
	Fields map[string]*TypeRef
}

func (s *StructType) GetSpan() position.Span            { return s.Span }
func (s *StructType) node()                             {}
func (s *StructType) Accept(visitor Visitor) interface{} { return visitor.VisitStructType(s) }
func (s *StructType) String() string {
	names := s.FieldNames()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, s.Fields[name]))
	}
	return "type {" + strings.Join(parts, ", ") + "}"
}

// FieldNames returns the field names in sorted order.
func (s *StructType) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ===== Statements =====

// If runs Then when Cond is truthy, otherwise the optional Else
type If struct {
	Span position.Span
	Cond Node
	Then Node
	Else Node
}

func (i *If) GetSpan() position.Span            { return i.Span }
func (i *If) node()                             {}
func (i *If) Accept(visitor Visitor) interface{} { return visitor.VisitIf(i) }
func (i *If) String() string {
	s := fmt.Sprintf("if %s %s", i.Cond, i.Then)
	if i.Else != nil {
		s += " else " + i.Else.String()
	}
	return s
}

// ===== Expressions =====

// Operator is a binary operator
type Operator int

const (
	OpAdd Operator = iota // +
	OpSub                 // -
	OpMul                 // *
	OpDiv                 // /
)

func (op Operator) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Binary is a binary arithmetic expression
type Binary struct {
	Span  position.Span
	Op    Operator
	Left  Node
	Right Node
}

func (b *Binary) GetSpan() position.Span            { return b.Span }
func (b *Binary) node()                             {}
func (b *Binary) Accept(visitor Visitor) interface{} { return visitor.VisitBinary(b) }
func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// UnaryOp is a prefix operator
type UnaryOp int

const (
	OpComptime UnaryOp = iota // comp
)

func (op UnaryOp) String() string {
	if op == OpComptime {
		return "comp"
	}
	return fmt.Sprintf("unary(%d)", int(op))
}

// LeftUnary is a prefix operator applied to Operand
type LeftUnary struct {
	Span    position.Span
	Op      UnaryOp
	Operand Node
}

func (u *LeftUnary) GetSpan() position.Span            { return u.Span }
func (u *LeftUnary) node()                             {}
func (u *LeftUnary) Accept(visitor Visitor) interface{} { return visitor.VisitLeftUnary(u) }
func (u *LeftUnary) String() string {
	return fmt.Sprintf("%s %s", u.Op, u.Operand)
}

// Call invokes Callee with Args
type Call struct {
	Span   position.Span
	Callee Node
	Args   []Node
}

func (c *Call) GetSpan() position.Span            { return c.Span }
func (c *Call) node()                             {}
func (c *Call) Accept(visitor Visitor) interface{} { return visitor.VisitCall(c) }
func (c *Call) String() string {
	args := make([]string, 0, len(c.Args))
	for _, arg := range c.Args {
		args = append(args, arg.String())
	}
	return fmt.Sprintf("%s(%s)", c.Callee, strings.Join(args, ", "))
}

// Access is member access `target.member`
type Access struct {
	Span   position.Span
	Target Node
	Member string
}

func (a *Access) GetSpan() position.Span            { return a.Span }
func (a *Access) node()                             {}
func (a *Access) Accept(visitor Visitor) interface{} { return visitor.VisitAccess(a) }
func (a *Access) String() string                    { return a.Target.String() + "." + a.Member }

// Group is a parenthesized expression
type Group struct {
	Span  position.Span
	Inner Node
}

func (g *Group) GetSpan() position.Span            { return g.Span }
func (g *Group) node()                             {}
func (g *Group) Accept(visitor Visitor) interface{} { return visitor.VisitGroup(g) }
func (g *Group) String() string                    { return "(" + g.Inner.String() + ")" }

// Ident is a name reference
type Ident struct {
	Span position.Span
	Name string
}

func (i *Ident) GetSpan() position.Span            { return i.Span }
func (i *Ident) node()                             {}
func (i *Ident) Accept(visitor Visitor) interface{} { return visitor.VisitIdent(i) }
func (i *Ident) String() string                    { return i.Name }

// StringLit is a string literal with escapes already resolved
type StringLit struct {
	Span  position.Span
	Value string
}

func (s *StringLit) GetSpan() position.Span            { return s.Span }
func (s *StringLit) node()                             {}
func (s *StringLit) Accept(visitor Visitor) interface{} { return visitor.VisitStringLit(s) }
func (s *StringLit) String() string                    { return fmt.Sprintf("%q", s.Value) }

// NumberKind distinguishes integer and float literals
type NumberKind int

const (
	NumberInt NumberKind = iota
	NumberFloat
)

// NumberLit is a numeric literal. Integers are 32-bit signed, floats are
// 32-bit IEEE.
type NumberLit struct {
	Span  position.Span
	Kind  NumberKind
	Int   int32
	Float float32
}

func (n *NumberLit) GetSpan() position.Span            { return n.Span }
func (n *NumberLit) node()                             {}
func (n *NumberLit) Accept(visitor Visitor) interface{} { return visitor.VisitNumberLit(n) }
func (n *NumberLit) String() string {
	if n.Kind == NumberFloat {
		return fmt.Sprintf("%g", n.Float)
	}
	return fmt.Sprintf("%d", n.Int)
}

// KindName returns a short description of node for error messages.
func KindName(node Node) string {
	switch node.(type) {
	case *Program:
		return "program"
	case *ExprStmt:
		return "statement"
	case *Block:
		return "block"
	case *Decl:
		return "declaration"
	case *Assign:
		return "assignment"
	case *Func:
		return "function"
	case *StructType:
		return "struct type"
	case *If:
		return "if statement"
	case *Binary:
		return "binary expression"
	case *LeftUnary:
		return "unary expression"
	case *Call:
		return "call"
	case *Access:
		return "member access"
	case *Group:
		return "parenthesized expression"
	case *Ident:
		return "identifier"
	case *StringLit:
		return "string literal"
	case *NumberLit:
		return "number literal"
	case nil:
		return "nothing"
	default:
		return fmt.Sprintf("%T", node)
	}
}
