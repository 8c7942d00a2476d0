package codegen

import (
	"errors"
	"testing"

	"github.com/synth-lang/synth/internal/config"
	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/ir"
	"github.com/synth-lang/synth/internal/lower"
	"github.com/synth-lang/synth/internal/parser"
)

func lowerSource(t *testing.T, src string) *ir.Program {
	t.Helper()
	program, err := parser.ParseSource(src, "test.syn")
	if err != nil {
		t.Fatalf("parse %q: unexpected error: %v", src, err)
	}
	prog, err := lower.New(config.NewOptions("test.syn", 0), nil, nil).Lower(program)
	if err != nil {
		t.Fatalf("lower %q: unexpected error: %v", src, err)
	}
	return prog
}

func expectBackendError(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, serrors.Template(serrors.CategoryCodegen, serrors.CodeUnsupportedBackend)) {
		t.Fatalf("expected unsupported backend error, got %v", err)
	}
}

func TestForTarget(t *testing.T) {
	opts := config.NewOptions("test.syn", 0)
	for _, target := range Targets() {
		b, err := ForTarget(target, opts)
		if err != nil {
			t.Fatalf("ForTarget(%q): unexpected error: %v", target, err)
		}
		if b.Name() != target {
			t.Fatalf("ForTarget(%q) returned backend %q", target, b.Name())
		}
	}

	if b, _ := ForTarget(config.TargetX86, opts); b.Extension() != ".s" {
		t.Fatalf("unexpected x86 extension %q", b.Extension())
	}
	if b, _ := ForTarget(config.TargetLLVM, opts); b.Extension() != ".ll" {
		t.Fatalf("unexpected llvm extension %q", b.Extension())
	}

	_, err := ForTarget(config.TargetInterp, opts)
	expectBackendError(t, err)
	_, err = ForTarget("wasm", opts)
	expectBackendError(t, err)
}

func TestCollectFuncsFindsNestedDefinitions(t *testing.T) {
	prog := lowerSource(t, "fn outer() { fn inner() 1; inner() }; if 1 { fn branch() 2 }")
	funcs := collectFuncs(prog.Body)

	var names []string
	for _, f := range funcs {
		names = append(names, f.Name)
	}
	expected := []string{"outer", "inner", "branch"}
	if len(names) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, names)
		}
	}
}

func TestBuiltinTable(t *testing.T) {
	if !IsBuiltinFunction("printf") || IsBuiltinFunction("puts") {
		t.Fatalf("unexpected builtin table contents")
	}
	fn, _ := GetBuiltinFunction("printf")
	if fn.AssemblyName != "printf" || len(fn.Parameters) != 1 {
		t.Fatalf("unexpected printf definition %+v", fn)
	}
	if printfFormat(classInt) != "%d\n" || printfFormat(classFloat) != "%g\n" || printfFormat(classString) != "%s\n" {
		t.Fatalf("unexpected printf formats")
	}
}
