package ast

import (
	"fmt"
	"strings"
)

// Visitor is implemented by passes that walk the tree through Accept.
type Visitor interface {
	VisitProgram(node *Program) interface{}
	VisitExprStmt(node *ExprStmt) interface{}
	VisitBlock(node *Block) interface{}
	VisitDecl(node *Decl) interface{}
	VisitAssign(node *Assign) interface{}
	VisitFunc(node *Func) interface{}
	VisitStructType(node *StructType) interface{}
	VisitIf(node *If) interface{}
	VisitBinary(node *Binary) interface{}
	VisitLeftUnary(node *LeftUnary) interface{}
	VisitCall(node *Call) interface{}
	VisitAccess(node *Access) interface{}
	VisitGroup(node *Group) interface{}
	VisitIdent(node *Ident) interface{}
	VisitStringLit(node *StringLit) interface{}
	VisitNumberLit(node *NumberLit) interface{}
}

// BaseVisitor provides a default implementation of the Visitor interface
// that returns nil for all visits. Embed it and override what you need.
type BaseVisitor struct{}

func (v *BaseVisitor) VisitProgram(node *Program) interface{}       { return nil }
func (v *BaseVisitor) VisitExprStmt(node *ExprStmt) interface{}     { return nil }
func (v *BaseVisitor) VisitBlock(node *Block) interface{}           { return nil }
func (v *BaseVisitor) VisitDecl(node *Decl) interface{}             { return nil }
func (v *BaseVisitor) VisitAssign(node *Assign) interface{}         { return nil }
func (v *BaseVisitor) VisitFunc(node *Func) interface{}             { return nil }
func (v *BaseVisitor) VisitStructType(node *StructType) interface{} { return nil }
func (v *BaseVisitor) VisitIf(node *If) interface{}                 { return nil }
func (v *BaseVisitor) VisitBinary(node *Binary) interface{}         { return nil }
func (v *BaseVisitor) VisitLeftUnary(node *LeftUnary) interface{}   { return nil }
func (v *BaseVisitor) VisitCall(node *Call) interface{}             { return nil }
func (v *BaseVisitor) VisitAccess(node *Access) interface{}         { return nil }
func (v *BaseVisitor) VisitGroup(node *Group) interface{}           { return nil }
func (v *BaseVisitor) VisitIdent(node *Ident) interface{}           { return nil }
func (v *BaseVisitor) VisitStringLit(node *StringLit) interface{}   { return nil }
func (v *BaseVisitor) VisitNumberLit(node *NumberLit) interface{}   { return nil }

// Dump renders node as an indented tree, one node per line. It backs the
// -emit-ast flag.
func Dump(node Node) string {
	if node == nil {
		return "<nil>\n"
	}
	p := &dumpVisitor{}
	node.Accept(p)
	return p.sb.String()
}

type dumpVisitor struct {
	BaseVisitor
	sb     strings.Builder
	indent int
}

func (p *dumpVisitor) line(format string, args ...interface{}) {
	p.sb.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *dumpVisitor) child(label string, node Node) {
	if node == nil {
		return
	}
	if label != "" {
		p.line("%s:", label)
	}
	p.indent++
	node.Accept(p)
	p.indent--
}

func (p *dumpVisitor) VisitProgram(node *Program) interface{} {
	p.line("Program")
	for _, stmt := range node.Body {
		p.child("", stmt)
	}
	return nil
}

func (p *dumpVisitor) VisitExprStmt(node *ExprStmt) interface{} {
	p.line("ExprStmt")
	p.child("", node.Expr)
	return nil
}

func (p *dumpVisitor) VisitBlock(node *Block) interface{} {
	p.line("Block new_scope=%t", node.NewScope)
	for _, stmt := range node.Body {
		p.child("", stmt)
	}
	return nil
}

func (p *dumpVisitor) VisitDecl(node *Decl) interface{} {
	typ := "infer"
	if node.Type != nil {
		typ = node.Type.String()
	}
	p.line("Decl %s %s: %s", node.Qualifier, node.Name, typ)
	p.child("", node.Value)
	return nil
}

func (p *dumpVisitor) VisitAssign(node *Assign) interface{} {
	p.line("Assign")
	p.child("", node.Target)
	p.child("", node.Value)
	return nil
}

func (p *dumpVisitor) VisitFunc(node *Func) interface{} {
	name := node.Name
	if name == "" {
		name = "<anonymous>"
	}
	params := make([]string, 0, len(node.Params))
	for _, param := range node.Params {
		params = append(params, param.String())
	}
	p.line("Func %s(%s)", name, strings.Join(params, ", "))
	p.child("", node.Body)
	return nil
}

func (p *dumpVisitor) VisitStructType(node *StructType) interface{} {
	p.line("StructType %s", node)
	return nil
}

func (p *dumpVisitor) VisitIf(node *If) interface{} {
	p.line("If")
	p.child("cond", node.Cond)
	p.child("then", node.Then)
	p.child("else", node.Else)
	return nil
}

func (p *dumpVisitor) VisitBinary(node *Binary) interface{} {
	p.line("Binary %s", node.Op)
	p.child("", node.Left)
	p.child("", node.Right)
	return nil
}

func (p *dumpVisitor) VisitLeftUnary(node *LeftUnary) interface{} {
	p.line("LeftUnary %s", node.Op)
	p.child("", node.Operand)
	return nil
}

func (p *dumpVisitor) VisitCall(node *Call) interface{} {
	p.line("Call")
	p.child("callee", node.Callee)
	for _, arg := range node.Args {
		p.child("arg", arg)
	}
	return nil
}

func (p *dumpVisitor) VisitAccess(node *Access) interface{} {
	p.line("Access .%s", node.Member)
	p.child("", node.Target)
	return nil
}

func (p *dumpVisitor) VisitGroup(node *Group) interface{} {
	p.line("Group")
	p.child("", node.Inner)
	return nil
}

func (p *dumpVisitor) VisitIdent(node *Ident) interface{} {
	p.line("Ident %s", node.Name)
	return nil
}

func (p *dumpVisitor) VisitStringLit(node *StringLit) interface{} {
	p.line("String %q", node.Value)
	return nil
}

func (p *dumpVisitor) VisitNumberLit(node *NumberLit) interface{} {
	if node.Kind == NumberFloat {
		p.line("Float %s", node)
	} else {
		p.line("Int %s", node)
	}
	return nil
}
