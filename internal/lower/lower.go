// Package lower translates the synth AST into IR.
//
// Each node appends its instructions to the current instruction list in
// program order and yields at most one value. Identifiers lower lazily to
// references; no load is emitted for a plain name. Integer arithmetic on
// two immediates is folded when optimization is enabled, and `comp`
// operands are evaluated through an Evaluator while lowering.
package lower

import (
	"errors"
	"fmt"

	"github.com/synth-lang/synth/internal/ast"
	"github.com/synth-lang/synth/internal/cli"
	"github.com/synth-lang/synth/internal/config"
	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/ir"
	"github.com/synth-lang/synth/internal/position"
)

// Evaluator runs a comptime sub-program. operand is the value the
// operand expression lowered to, if any.
type Evaluator interface {
	Evaluate(prog *ir.Program, operand *ir.Value) (ir.Value, error)
}

// Lowerer owns the synthetic name counters. They increase for its whole
// lifetime, across comptime sub-programs and repeated LowerInto calls, so
// names are never reused. A Lowerer is not safe for concurrent use.
type Lowerer struct {
	opts *config.Options
	eval Evaluator
	log  *cli.Logger

	tempCounter  int
	blockCounter int
	funcCounter  int

	// struct types reachable by name, keyed by %tN and by declared aliases
	structs map[string]*ir.Type
	// declared or inferred slot types, used for inference
	slotTypes map[string]*ir.Type
}

// New creates a lowerer. eval may be nil when comptime is not needed.
func New(opts *config.Options, eval Evaluator, logger *cli.Logger) *Lowerer {
	if opts == nil {
		opts = config.NewOptions("", 0)
	}
	return &Lowerer{
		opts:      opts,
		eval:      eval,
		log:       logger,
		structs:   make(map[string]*ir.Type),
		slotTypes: make(map[string]*ir.Type),
	}
}

// Lower lowers a whole program.
func (l *Lowerer) Lower(prog *ast.Program) (*ir.Program, error) {
	body := make([]ir.Instr, 0, len(prog.Body))
	for _, stmt := range prog.Body {
		if _, err := l.LowerInto(stmt, &body); err != nil {
			return nil, err
		}
	}
	l.log.Debug("lowered %d top-level instructions", len(body))
	return &ir.Program{Body: body}, nil
}

// LowerInto lowers node, appending its instructions to body, and returns
// the node's value if it has one.
func (l *Lowerer) LowerInto(node ast.Node, body *[]ir.Instr) (*ir.Value, error) {
	return l.lowerNode(node, body)
}

func (l *Lowerer) newTemp() string {
	name := fmt.Sprintf("%%t%d", l.tempCounter)
	l.tempCounter++
	return name
}

func (l *Lowerer) newBlock() string {
	name := fmt.Sprintf("%%b%d", l.blockCounter)
	l.blockCounter++
	return name
}

func (l *Lowerer) newFunc() string {
	name := fmt.Sprintf("%%f%d", l.funcCounter)
	l.funcCounter++
	return name
}

func (l *Lowerer) lowerNode(node ast.Node, body *[]ir.Instr) (*ir.Value, error) {
	switch n := node.(type) {
	case *ast.Program:
		for _, stmt := range n.Body {
			if _, err := l.lowerNode(stmt, body); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case *ast.ExprStmt:
		return l.lowerNode(n.Expr, body)
	case *ast.Group:
		return l.lowerNode(n.Inner, body)
	case *ast.Block:
		return nil, l.lowerBlock(n, body, false)
	case *ast.NumberLit:
		if n.Kind == ast.NumberFloat {
			v := ir.Float(n.Float)
			return &v, nil
		}
		v := ir.Int(n.Int)
		return &v, nil
	case *ast.StringLit:
		v := ir.String(n.Value)
		return &v, nil
	case *ast.Ident:
		v := ir.Ref(n.Name)
		return &v, nil
	case *ast.Binary:
		return l.lowerBinary(n, body)
	case *ast.Decl:
		return nil, l.lowerDecl(n, body)
	case *ast.Assign:
		return l.lowerAssign(n, body)
	case *ast.Call:
		return l.lowerCall(n, body)
	case *ast.If:
		return nil, l.lowerIf(n, body)
	case *ast.Func:
		return l.lowerFunc(n, body)
	case *ast.LeftUnary:
		return l.lowerLeftUnary(n, body)
	case *ast.StructType:
		return l.lowerStructType(n, body)
	case nil:
		return nil, serrors.UnsupportedNode("nothing", position.Span{})
	default:
		return nil, serrors.UnsupportedNode(ast.KindName(node), node.GetSpan())
	}
}

// lowerValue lowers node and requires it to produce a value.
func (l *Lowerer) lowerValue(node ast.Node, what string, body *[]ir.Instr) (ir.Value, error) {
	v, err := l.lowerNode(node, body)
	if err != nil {
		return ir.Value{}, err
	}
	if v == nil {
		return ir.Value{}, serrors.MissingValue(what, node.GetSpan())
	}
	return *v, nil
}

// lowerBlock appends one scoped Block instruction holding the block's
// statements. With tail set, the value of the last statement is made the
// value of the block's last instruction.
func (l *Lowerer) lowerBlock(n *ast.Block, body *[]ir.Instr, tail bool) error {
	name := l.newBlock()
	inner := make([]ir.Instr, 0, len(n.Body))

	var last *ir.Value
	for _, stmt := range n.Body {
		v, err := l.lowerNode(stmt, &inner)
		if err != nil {
			return err
		}
		last = v
	}
	if tail {
		l.materialize(last, &inner)
	}

	*body = append(*body, &ir.Block{Name: name, NewScope: n.NewScope, Body: inner})
	return nil
}

func (l *Lowerer) lowerBinary(n *ast.Binary, body *[]ir.Instr) (*ir.Value, error) {
	lhs, err := l.lowerValue(n.Left, "left operand", body)
	if err != nil {
		return nil, err
	}
	rhs, err := l.lowerValue(n.Right, "right operand", body)
	if err != nil {
		return nil, err
	}

	var op ir.BinOpKind
	switch n.Op {
	case ast.OpAdd:
		op = ir.OpAdd
	case ast.OpSub:
		op = ir.OpSub
	default:
		return nil, serrors.UnsupportedOperator(n.Op.String(), n.Span)
	}

	if l.opts.Optimization > 0 && lhs.Kind == ir.ValInt && rhs.Kind == ir.ValInt {
		folded := foldInt(op, lhs.Int, rhs.Int)
		return &folded, nil
	}

	dst := l.newTemp()
	*body = append(*body, &ir.BinOp{Dst: dst, Op: op, LHS: lhs, RHS: rhs})
	l.slotTypes[dst] = ir.IntType("i32")
	v := ir.Ref(dst)
	return &v, nil
}

// foldInt mirrors the interpreter's wrapping 32-bit arithmetic.
func foldInt(op ir.BinOpKind, a, b int32) ir.Value {
	if op == ir.OpSub {
		return ir.Int(a - b)
	}
	return ir.Int(a + b)
}

func (l *Lowerer) lowerDecl(n *ast.Decl, body *[]ir.Instr) error {
	var init *ir.Value
	if n.Value != nil {
		v, err := l.lowerValue(n.Value, "initializer of "+n.Name, body)
		if err != nil {
			return err
		}
		init = &v
	}

	var typ *ir.Type
	switch {
	case n.Type != nil:
		t, err := l.resolveType(n.Type)
		if err != nil {
			return err
		}
		typ = t
	case init != nil:
		typ = l.inferType(*init)
	default:
		return serrors.MissingValue("declaration of "+n.Name+" without a type", n.Span)
	}

	if typ.Kind == ir.TypeMeta && init != nil && init.Kind == ir.ValRef {
		if st, ok := l.structs[init.Ref]; ok {
			l.structs[n.Name] = st
		}
	}
	l.slotTypes[n.Name] = typ

	*body = append(*body, &ir.StackVar{Name: n.Name, Type: typ, Init: init})
	return nil
}

// inferType derives a slot type from an initializer.
func (l *Lowerer) inferType(v ir.Value) *ir.Type {
	switch v.Kind {
	case ir.ValInt:
		return ir.IntType("i32")
	case ir.ValFloat:
		return ir.FloatType()
	case ir.ValString:
		return ir.StringType()
	case ir.ValRef:
		if _, ok := l.structs[v.Ref]; ok {
			return ir.MetaType()
		}
		if t, ok := l.slotTypes[v.Ref]; ok {
			return t
		}
	}
	return ir.InferType()
}

func (l *Lowerer) resolveType(t *ast.TypeRef) (*ir.Type, error) {
	switch t.Kind {
	case ast.TypeI32, ast.TypeU32, ast.TypeBool:
		return ir.IntType(t.String()), nil
	case ast.TypeF32:
		return ir.FloatType(), nil
	case ast.TypeMeta:
		return ir.MetaType(), nil
	case ast.TypeNamed:
		if st, ok := l.structs[t.Name]; ok {
			return st, nil
		}
		return nil, serrors.UnsupportedNode("unknown type "+t.Name, t.Span)
	default:
		return nil, serrors.UnsupportedNode("type "+t.String(), t.Span)
	}
}

func (l *Lowerer) lowerAssign(n *ast.Assign, body *[]ir.Instr) (*ir.Value, error) {
	target, ok := n.Target.(*ast.Ident)
	if !ok {
		return nil, serrors.InvalidAssignTarget(ast.KindName(n.Target), n.Target.GetSpan())
	}

	v, err := l.lowerValue(n.Value, "assigned value", body)
	if err != nil {
		return nil, err
	}

	*body = append(*body, &ir.Store{Dst: target.Name, Val: v})
	ref := ir.Ref(target.Name)
	return &ref, nil
}

func (l *Lowerer) lowerCall(n *ast.Call, body *[]ir.Instr) (*ir.Value, error) {
	callee, ok := n.Callee.(*ast.Ident)
	if !ok {
		return nil, serrors.InvalidCallee(ast.KindName(n.Callee), n.Callee.GetSpan())
	}

	args := make([]ir.Value, 0, len(n.Args))
	for _, arg := range n.Args {
		v, err := l.lowerValue(arg, "argument", body)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	dst := l.newTemp()
	*body = append(*body, &ir.Call{Dst: dst, Callee: ir.Ref(callee.Name), Args: args})
	v := ir.Ref(dst)
	return &v, nil
}

func (l *Lowerer) lowerIf(n *ast.If, body *[]ir.Instr) error {
	cond, err := l.lowerValue(n.Cond, "condition", body)
	if err != nil {
		return err
	}

	then, err := l.lowerBranch(n.Then)
	if err != nil {
		return err
	}

	var els ir.Instr
	if n.Else != nil {
		els, err = l.lowerBranch(n.Else)
		if err != nil {
			return err
		}
	}

	*body = append(*body, &ir.CondBr{Cond: cond, Then: then, Else: els})
	return nil
}

func (l *Lowerer) lowerBranch(node ast.Node) (ir.Instr, error) {
	var list []ir.Instr
	if _, err := l.lowerNode(node, &list); err != nil {
		return nil, err
	}
	return l.scoped(list), nil
}

// scoped turns a branch's instruction list into one scoped block, so a
// branch never binds names in the enclosing scope however many
// instructions it lowered to. A branch that already is a scoped block is
// used as is.
func (l *Lowerer) scoped(list []ir.Instr) ir.Instr {
	if len(list) == 1 {
		if b, ok := list[0].(*ir.Block); ok && b.NewScope {
			return b
		}
	}
	return &ir.Block{Name: l.newBlock(), NewScope: true, Body: list}
}

// collapse turns a function body's instruction list into one instruction.
// A single instruction is used as is, since the call frame already scopes
// it; anything else is wrapped in a fresh scoped block.
func (l *Lowerer) collapse(list []ir.Instr) ir.Instr {
	if len(list) == 1 {
		return list[0]
	}
	return &ir.Block{Name: l.newBlock(), NewScope: true, Body: list}
}

func (l *Lowerer) lowerFunc(n *ast.Func, body *[]ir.Instr) (*ir.Value, error) {
	name := n.Name
	if name == "" {
		name = l.newFunc()
	}

	params := make([]ir.Param, 0, len(n.Params))
	for _, p := range n.Params {
		t, err := l.resolveType(p.Type)
		if err != nil {
			return nil, err
		}
		params = append(params, ir.Param{Name: p.Name, Type: t})
	}
	l.slotTypes[name] = ir.FuncType()

	fnBody, err := l.lowerFuncBody(n.Body)
	if err != nil {
		return nil, err
	}

	*body = append(*body, &ir.Func{Name: name, Params: params, Body: fnBody})
	if n.Name != "" {
		return nil, nil
	}
	v := ir.Ref(name)
	return &v, nil
}

// lowerFuncBody lowers a function body to one instruction whose value is
// the value of the body's last statement.
func (l *Lowerer) lowerFuncBody(node ast.Node) (ir.Instr, error) {
	if stmt, ok := node.(*ast.ExprStmt); ok {
		node = stmt.Expr
	}

	var list []ir.Instr
	if block, ok := node.(*ast.Block); ok {
		if err := l.lowerBlock(block, &list, true); err != nil {
			return nil, err
		}
		return list[0], nil
	}

	v, err := l.lowerNode(node, &list)
	if err != nil {
		return nil, err
	}
	l.materialize(v, &list)
	return l.collapse(list), nil
}

// materialize makes v the value of the last instruction in body, adding a
// load when the last instruction does not already produce it. Immediates
// are stored in a temporary first.
func (l *Lowerer) materialize(v *ir.Value, body *[]ir.Instr) {
	if v == nil {
		return
	}
	if n := len(*body); n > 0 && v.Kind == ir.ValRef && producedBy((*body)[n-1], v.Ref) {
		return
	}

	src := v.Ref
	if v.Kind != ir.ValRef {
		src = l.newTemp()
		init := *v
		*body = append(*body, &ir.StackVar{Name: src, Type: l.inferType(init), Init: &init})
	}
	*body = append(*body, &ir.Load{Dst: l.newTemp(), Src: src})
}

func producedBy(in ir.Instr, name string) bool {
	switch i := in.(type) {
	case *ir.BinOp:
		return i.Dst == name
	case *ir.Call:
		return i.Dst == name
	case *ir.Load:
		return i.Dst == name
	default:
		return false
	}
}

func (l *Lowerer) lowerLeftUnary(n *ast.LeftUnary, body *[]ir.Instr) (*ir.Value, error) {
	if n.Op != ast.OpComptime {
		return nil, serrors.UnsupportedOperator(n.Op.String(), n.Span)
	}
	if l.eval == nil {
		return nil, serrors.UnsupportedNode("comptime expression without an evaluator", n.Span)
	}

	var list []ir.Instr
	operand, err := l.lowerNode(n.Operand, &list)
	if err != nil {
		return nil, err
	}

	v, err := l.eval.Evaluate(&ir.Program{Body: list}, operand)
	if err != nil {
		var ce *serrors.CompilerError
		if errors.As(err, &ce) {
			return nil, ce.WithSpan(n.Span)
		}
		return nil, err
	}
	return &v, nil
}

func (l *Lowerer) lowerStructType(n *ast.StructType, body *[]ir.Instr) (*ir.Value, error) {
	names := n.FieldNames()
	fields := make([]ir.Field, 0, len(names))
	for _, name := range names {
		t, err := l.resolveType(n.Fields[name])
		if err != nil {
			return nil, err
		}
		fields = append(fields, ir.Field{Name: name, Type: t})
	}

	name := l.newTemp()
	decl := &ir.TypeDecl{Name: name, Fields: fields}
	*body = append(*body, decl)
	l.structs[name] = decl.StructType()

	v := ir.Ref(name)
	return &v, nil
}
