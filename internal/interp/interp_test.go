package interp

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/synth-lang/synth/internal/config"
	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/ir"
)

func newTestInterpreter() (*Interpreter, *bytes.Buffer) {
	var out bytes.Buffer
	return New(config.NewOptions("main.syn", 0), &out, nil), &out
}

func valuePtr(v ir.Value) *ir.Value { return &v }

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !errors.Is(err, serrors.Template(serrors.CategoryInterpret, code)) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func TestConstArithmetic(t *testing.T) {
	it, _ := newTestInterpreter()
	prog := &ir.Program{Body: []ir.Instr{
		&ir.StackVar{Name: "x", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(2))},
		&ir.StackVar{Name: "y", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(3))},
		&ir.BinOp{Dst: "%t0", Op: ir.OpAdd, LHS: ir.Ref("x"), RHS: ir.Ref("y")},
		&ir.StackVar{Name: "z", Type: ir.IntType("i32"), Init: valuePtr(ir.Ref("%t0"))},
	}}

	if _, err := it.Execute(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	z, ok := it.Lookup("z")
	if !ok || z.Kind != ir.ValInt || z.Int != 5 {
		t.Fatalf("expected z=Int(5), got %s (found=%t)", z.Describe(), ok)
	}
}

func TestBinOpWrapsAndRejectsNonInts(t *testing.T) {
	it, _ := newTestInterpreter()
	v, err := it.Execute(&ir.BinOp{Dst: "%t0", Op: ir.OpAdd, LHS: ir.Int(math.MaxInt32), RHS: ir.Int(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Int != math.MinInt32 {
		t.Fatalf("expected wraparound to %d, got %d", int32(math.MinInt32), v.Int)
	}

	v, err = it.Execute(&ir.BinOp{Dst: "%t1", Op: ir.OpSub, LHS: ir.Int(3), RHS: ir.Int(5)})
	if err != nil || v.Int != -2 {
		t.Fatalf("expected -2, got %v (err=%v)", v, err)
	}

	_, err = it.Execute(&ir.BinOp{Dst: "%t2", Op: ir.OpAdd, LHS: ir.Float(1), RHS: ir.Int(1)})
	expectCode(t, err, serrors.CodeUnsupportedType)

	_, err = it.Execute(&ir.BinOp{Dst: "%t3", Op: ir.OpAdd, LHS: ir.Int(1), RHS: ir.String("a")})
	expectCode(t, err, serrors.CodeUnsupportedType)
}

func TestCondBrTruthiness(t *testing.T) {
	tests := []struct {
		cond     ir.Value
		expected string
	}{
		{ir.Int(0), "else\n"},
		{ir.Int(1), "then\n"},
		{ir.Int(-1), "else\n"},
		{ir.Float(0.5), "then\n"},
		{ir.Float(-0.5), "else\n"},
	}

	for _, tt := range tests {
		it, out := newTestInterpreter()
		in := &ir.CondBr{
			Cond: tt.cond,
			Then: &ir.Call{Dst: "%t0", Callee: ir.Ref("printf"), Args: []ir.Value{ir.String("then")}},
			Else: &ir.Call{Dst: "%t1", Callee: ir.Ref("printf"), Args: []ir.Value{ir.String("else")}},
		}
		if _, err := it.Execute(in); err != nil {
			t.Fatalf("cond %s: unexpected error: %v", tt.cond, err)
		}
		if out.String() != tt.expected {
			t.Fatalf("cond %s: expected=%q, got=%q", tt.cond, tt.expected, out.String())
		}
	}
}

func TestCondBrWithoutElseIsNoop(t *testing.T) {
	it, out := newTestInterpreter()
	in := &ir.CondBr{
		Cond: ir.Int(0),
		Then: &ir.Call{Dst: "%t0", Callee: ir.Ref("printf"), Args: []ir.Value{ir.Int(1)}},
	}
	v, err := it.Execute(in)
	if err != nil || v != nil {
		t.Fatalf("expected no value and no error, got %v, %v", v, err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestCondBrResolvesRefs(t *testing.T) {
	it, out := newTestInterpreter()
	prog := &ir.Program{Body: []ir.Instr{
		&ir.StackVar{Name: "a", Type: ir.IntType("bool"), Init: valuePtr(ir.Int(1))},
		&ir.StackVar{Name: "b", Type: ir.InferType(), Init: valuePtr(ir.Ref("a"))},
		&ir.CondBr{
			Cond: ir.Ref("b"),
			Then: &ir.Call{Dst: "%t0", Callee: ir.Ref("printf"), Args: []ir.Value{ir.String("yes")}},
		},
	}}
	if _, err := it.Execute(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "yes\n" {
		t.Fatalf("expected=%q, got=%q", "yes\n", out.String())
	}
}

func TestUnknownConditionType(t *testing.T) {
	it, _ := newTestInterpreter()
	_, err := it.Execute(&ir.CondBr{Cond: ir.String("x"), Then: &ir.Block{Name: "%b0"}})
	expectCode(t, err, serrors.CodeUnknownCondition)
}

func TestUnresolvedLoad(t *testing.T) {
	it, _ := newTestInterpreter()
	_, err := it.Execute(&ir.Load{Dst: "%t0", Src: "nope"})
	expectCode(t, err, serrors.CodeUnresolvedName)
	if err.Error() != "[INTERPRET:UNRESOLVED_NAME] variable not found: nope" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestLoadCopiesValue(t *testing.T) {
	it, _ := newTestInterpreter()
	prog := &ir.Program{Body: []ir.Instr{
		&ir.StackVar{Name: "x", Type: ir.FloatType(), Init: valuePtr(ir.Float(1.5))},
		&ir.Load{Dst: "%t0", Src: "x"},
	}}
	v, err := it.Execute(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || v.Kind != ir.ValFloat || v.Float != 1.5 {
		t.Fatalf("expected Float(1.5), got %v", v)
	}
	if got, _ := it.Lookup("%t0"); got.Float != 1.5 {
		t.Fatalf("expected %%t0 bound to 1.5, got %s", got)
	}
}

func TestPrintf(t *testing.T) {
	tests := []struct {
		arg      ir.Value
		expected string
	}{
		{ir.String("hi"), "hi\n"},
		{ir.Int(42), "42\n"},
		{ir.Float(2.5), "2.5\n"},
	}

	for _, tt := range tests {
		it, out := newTestInterpreter()
		v, err := it.Execute(&ir.Call{Dst: "%t0", Callee: ir.Ref("printf"), Args: []ir.Value{tt.arg}})
		if err != nil {
			t.Fatalf("printf(%s): unexpected error: %v", tt.arg, err)
		}
		if out.String() != tt.expected {
			t.Fatalf("printf(%s): expected=%q, got=%q", tt.arg, tt.expected, out.String())
		}
		if v == nil || v.Int != int32(len(tt.expected)) {
			t.Fatalf("printf(%s): expected result %d, got %v", tt.arg, len(tt.expected), v)
		}
		if bound, ok := it.Lookup("%t0"); !ok || bound.Int != int32(len(tt.expected)) {
			t.Fatalf("printf(%s): result not bound to destination", tt.arg)
		}
	}
}

func TestPrintfErrors(t *testing.T) {
	it, _ := newTestInterpreter()
	_, err := it.Execute(&ir.Call{Dst: "%t0", Callee: ir.Ref("printf")})
	expectCode(t, err, serrors.CodeArityMismatch)

	_, err = it.Execute(&ir.Call{Dst: "%t1", Callee: ir.Ref("printf"), Args: []ir.Value{ir.Int(1), ir.Int(2)}})
	expectCode(t, err, serrors.CodeArityMismatch)

	_, err = it.Execute(&ir.Call{Dst: "%t2", Callee: ir.Ref("printf"), Args: []ir.Value{ir.Aggregate()}})
	expectCode(t, err, serrors.CodeUnsupportedType)
}

func TestNotCallable(t *testing.T) {
	it, _ := newTestInterpreter()
	prog := &ir.Program{Body: []ir.Instr{
		&ir.StackVar{Name: "x", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(1))},
		&ir.Call{Dst: "%t0", Callee: ir.Ref("x")},
	}}
	_, err := it.Execute(prog)
	expectCode(t, err, serrors.CodeNotCallable)
}

func TestFileConstant(t *testing.T) {
	it, out := newTestInterpreter()
	_, err := it.Execute(&ir.Call{Dst: "%t0", Callee: ir.Ref("printf"), Args: []ir.Value{ir.Ref("__file__")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "main.syn\n" {
		t.Fatalf("expected=%q, got=%q", "main.syn\n", out.String())
	}
}

func TestBuiltinsCanBeShadowed(t *testing.T) {
	it, _ := newTestInterpreter()
	_, err := it.Execute(&ir.StackVar{Name: "__file__", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(7))})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := it.Lookup("__file__"); v.Kind != ir.ValInt {
		t.Fatalf("expected binding to shadow built-in, got %s", v.Describe())
	}
}

func TestBlockScoping(t *testing.T) {
	it, out := newTestInterpreter()
	prog := &ir.Program{Body: []ir.Instr{
		&ir.StackVar{Name: "x", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(1))},
		&ir.Block{Name: "%b0", NewScope: true, Body: []ir.Instr{
			&ir.StackVar{Name: "x", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(2))},
			&ir.StackVar{Name: "inner", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(3))},
			&ir.Call{Dst: "%t0", Callee: ir.Ref("printf"), Args: []ir.Value{ir.Ref("x")}},
		}},
		&ir.Call{Dst: "%t1", Callee: ir.Ref("printf"), Args: []ir.Value{ir.Ref("x")}},
	}}
	if _, err := it.Execute(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "2\n1\n" {
		t.Fatalf("expected shadowing output %q, got %q", "2\n1\n", out.String())
	}
	if _, ok := it.Lookup("inner"); ok {
		t.Fatal("inner binding should not survive its block")
	}

	_, err := it.Execute(&ir.Load{Dst: "%t2", Src: "inner"})
	expectCode(t, err, serrors.CodeUnresolvedName)
}

func TestBlockWithoutScopeBindsOutward(t *testing.T) {
	it, _ := newTestInterpreter()
	_, err := it.Execute(&ir.Block{Name: "%b0", Body: []ir.Instr{
		&ir.StackVar{Name: "leak", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(1))},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := it.Lookup("leak"); !ok {
		t.Fatal("expected binding in the enclosing frame")
	}
}

func TestStoreUpdatesNearestBinding(t *testing.T) {
	it, _ := newTestInterpreter()
	prog := &ir.Program{Body: []ir.Instr{
		&ir.StackVar{Name: "x", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(1))},
		&ir.Block{Name: "%b0", NewScope: true, Body: []ir.Instr{
			&ir.Store{Dst: "x", Val: ir.Int(9)},
		}},
	}}
	if _, err := it.Execute(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := it.Lookup("x"); v.Int != 9 {
		t.Fatalf("expected x=9, got %s", v)
	}

	_, err := it.Execute(&ir.Store{Dst: "missing", Val: ir.Int(1)})
	expectCode(t, err, serrors.CodeUndeclaredAssign)
}

func TestStackVarZeroValues(t *testing.T) {
	point := ir.StructType("%t0", []ir.Field{
		{Name: "x", Type: ir.IntType("i32")},
		{Name: "y", Type: ir.FloatType()},
	})
	it, _ := newTestInterpreter()
	prog := &ir.Program{Body: []ir.Instr{
		&ir.TypeDecl{Name: "%t0", Fields: point.Fields},
		&ir.StackVar{Name: "p", Type: point},
		&ir.StackVar{Name: "n", Type: ir.IntType("u32")},
		&ir.StackVar{Name: "s", Type: ir.StringType()},
	}}
	if _, err := it.Execute(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string]string{"p": "{0, 0.0}", "n": "0", "s": `""`, "%t0": "<type %t0>"}
	for name, expected := range tests {
		v, ok := it.Lookup(name)
		if !ok || v.String() != expected {
			t.Fatalf("%s: expected=%q, got=%q", name, expected, v.String())
		}
	}

	_, err := it.Execute(&ir.StackVar{Name: "q", Type: ir.InferType()})
	expectCode(t, err, serrors.CodeUnsupportedType)
}

func addFunc() *ir.Func {
	return &ir.Func{
		Name:   "add",
		Params: []ir.Param{{Name: "a", Type: ir.IntType("i32")}, {Name: "b", Type: ir.IntType("i32")}},
		Body:   &ir.BinOp{Dst: "%t0", Op: ir.OpAdd, LHS: ir.Ref("a"), RHS: ir.Ref("b")},
	}
}

func TestUserFunctionCall(t *testing.T) {
	it, _ := newTestInterpreter()
	prog := &ir.Program{Body: []ir.Instr{
		addFunc(),
		&ir.Call{Dst: "%t1", Callee: ir.Ref("add"), Args: []ir.Value{ir.Int(2), ir.Int(40)}},
	}}
	v, err := it.Execute(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || v.Int != 42 {
		t.Fatalf("expected 42, got %v", v)
	}
	if _, ok := it.Lookup("a"); ok {
		t.Fatal("parameters must not leak out of the call frame")
	}
	if _, ok := it.Lookup("%t0"); ok {
		t.Fatal("temporaries of the body must not leak out of the call frame")
	}
}

func TestFunctionSeesGlobalsNotCallerLocals(t *testing.T) {
	it, _ := newTestInterpreter()
	readG := &ir.Func{Name: "readG", Body: &ir.Load{Dst: "%t0", Src: "g"}}
	readL := &ir.Func{Name: "readL", Body: &ir.Load{Dst: "%t1", Src: "local"}}
	prog := &ir.Program{Body: []ir.Instr{
		&ir.StackVar{Name: "g", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(7))},
		readG,
		readL,
		&ir.Block{Name: "%b0", NewScope: true, Body: []ir.Instr{
			&ir.StackVar{Name: "local", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(1))},
			&ir.Call{Dst: "%t2", Callee: ir.Ref("readG")},
		}},
	}}
	v, err := it.Execute(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || v.Int != 7 {
		t.Fatalf("expected 7, got %v", v)
	}

	_, err = it.Execute(&ir.Block{Name: "%b1", NewScope: true, Body: []ir.Instr{
		&ir.StackVar{Name: "local", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(1))},
		&ir.Call{Dst: "%t3", Callee: ir.Ref("readL")},
	}})
	expectCode(t, err, serrors.CodeUnresolvedName)
}

func TestFunctionWithoutValueLeavesDestinationUnbound(t *testing.T) {
	it, _ := newTestInterpreter()
	prog := &ir.Program{Body: []ir.Instr{
		&ir.Func{Name: "noop", Body: &ir.Block{Name: "%b0", NewScope: true}},
		&ir.Call{Dst: "%t0", Callee: ir.Ref("noop")},
	}}
	if _, err := it.Execute(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := it.Lookup("%t0"); ok {
		t.Fatal("expected the call destination to stay unbound")
	}
}

func TestArityMismatch(t *testing.T) {
	it, _ := newTestInterpreter()
	prog := &ir.Program{Body: []ir.Instr{
		addFunc(),
		&ir.Call{Dst: "%t1", Callee: ir.Ref("add"), Args: []ir.Value{ir.Int(1)}},
	}}
	_, err := it.Execute(prog)
	expectCode(t, err, serrors.CodeArityMismatch)
}

func TestRecursionLimit(t *testing.T) {
	var out bytes.Buffer
	opts := config.NewOptions("", 0)
	opts.MaxCallDepth = 10
	it := New(opts, &out, nil)

	prog := &ir.Program{Body: []ir.Instr{
		&ir.Func{Name: "loop", Body: &ir.Call{Dst: "%t0", Callee: ir.Ref("loop")}},
		&ir.Call{Dst: "%t1", Callee: ir.Ref("loop")},
	}}
	_, err := it.Execute(prog)
	expectCode(t, err, serrors.CodeCallDepthExceeded)
	if it.depth != 0 {
		t.Fatalf("call depth should unwind to 0, got %d", it.depth)
	}
}

func TestGlobalsSnapshot(t *testing.T) {
	it, _ := newTestInterpreter()
	if _, err := it.Execute(&ir.StackVar{Name: "b", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(1))}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := it.Execute(addFunc()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	globals := it.Globals()
	globals["b"] = ir.Int(100)
	if v, _ := it.Lookup("b"); v.Int != 1 {
		t.Fatal("Globals must return a copy")
	}

	names := it.GlobalNames()
	if len(names) != 2 || names[0] != "add" || names[1] != "b" {
		t.Fatalf("unexpected global names %v", names)
	}
}

func TestStackVarYieldsNoValue(t *testing.T) {
	it, _ := newTestInterpreter()
	v, err := it.Execute(&ir.Program{Body: []ir.Instr{
		&ir.StackVar{Name: "x", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(2))},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Fatalf("expected no value from a declaration, got %s", v.Describe())
	}
	if x, ok := it.Lookup("x"); !ok || x.Int != 2 {
		t.Fatalf("expected x bound to 2, got %s", x.Describe())
	}
}

func TestLocalFunctionSeesDefiningScope(t *testing.T) {
	it, out := newTestInterpreter()

	// { const base = 7; fn f(n: i32) { if n f(n - 1) else printf(base) }; f(2) }
	f := &ir.Func{
		Name:   "f",
		Params: []ir.Param{{Name: "n", Type: ir.IntType("i32")}},
		Body: &ir.CondBr{
			Cond: ir.Ref("n"),
			Then: &ir.Block{Name: "%b1", NewScope: true, Body: []ir.Instr{
				&ir.BinOp{Dst: "%t0", Op: ir.OpSub, LHS: ir.Ref("n"), RHS: ir.Int(1)},
				&ir.Call{Dst: "%t1", Callee: ir.Ref("f"), Args: []ir.Value{ir.Ref("%t0")}},
			}},
			Else: &ir.Block{Name: "%b2", NewScope: true, Body: []ir.Instr{
				&ir.Call{Dst: "%t2", Callee: ir.Ref("printf"), Args: []ir.Value{ir.Ref("base")}},
			}},
		},
	}
	prog := &ir.Program{Body: []ir.Instr{
		&ir.Block{Name: "%b0", NewScope: true, Body: []ir.Instr{
			&ir.StackVar{Name: "base", Type: ir.IntType("i32"), Init: valuePtr(ir.Int(7))},
			f,
			&ir.Call{Dst: "%t3", Callee: ir.Ref("f"), Args: []ir.Value{ir.Int(2)}},
		}},
	}}

	if _, err := it.Execute(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "7\n" {
		t.Fatalf("expected=%q, got=%q", "7\n", out.String())
	}
	if _, ok := it.Lookup("f"); ok {
		t.Fatal("a function defined in a block must not outlive it")
	}
}
