package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/synth-lang/synth/internal/config"
	serrors "github.com/synth-lang/synth/internal/errors"
)

func emitLLVM(t *testing.T, src string) string {
	t.Helper()
	out, err := NewLLVMBackend(config.NewOptions("test.syn", 0)).Emit(lowerSource(t, src))
	if err != nil {
		t.Fatalf("emit %q: unexpected error: %v", src, err)
	}
	return out
}

func expectLLVM(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q\nLLVM:\n%s", want, out)
		}
	}
}

func TestEmitLLVM_GlobalsAndArithmetic(t *testing.T) {
	out := emitLLVM(t, "const x = 2; const y = 3; const z = x + y; printf(z)")
	expectLLVM(t, out,
		`source_filename = "test.syn"`,
		"@x = global i32 0",
		"@y = global i32 0",
		"@z = global i32 0",
		"declare i32 @printf(i8*",
		"define i32 @main() {",
		"store i32 2, i32* @x",
		"load i32, i32* @x",
		"add i32",
		"@.fmt.int",
		"ret i32 0",
	)
}

func TestEmitLLVM_Functions(t *testing.T) {
	out := emitLLVM(t, "fn add(a: i32, b: i32) a + b; printf(add(2, 3))")
	expectLLVM(t, out,
		"define i32 @add(i32 %a, i32 %b) {",
		"%a.addr = alloca i32",
		"store i32 %a, i32* %a.addr",
		"call i32 @add(i32 2, i32 3)",
	)

	out = emitLLVM(t, "fn count(n: i32) { if n { printf(n); count(n - 1) } }; count(3)")
	expectLLVM(t, out,
		"define void @count(i32 %n) {",
		"call void @count(i32",
		"ret void",
	)

	out = emitLLVM(t, "fn pi() 3.5; const greet = fn(s: i32) { printf(s) }; printf(pi()); greet(1)")
	expectLLVM(t, out,
		"define float @pi() {",
		"store float 3.5, float* %",
		`define i32 @"%f0"(i32 %s) {`,
		`call i32 @"%f0"(i32 1)`,
		"fpext float",
		"@.fmt.float",
	)
}

func TestEmitLLVM_Branches(t *testing.T) {
	out := emitLLVM(t, `const n = 0 - 1; if n printf("then") else printf("else")`)
	expectLLVM(t, out,
		"icmp sgt i32",
		"then.0:",
		"else.0:",
		"merge.0:",
		"br label %merge.0",
		`c"then\00"`,
		"@.fmt.str",
	)
	if strings.Index(out, "then.0:") > strings.Index(out, "merge.0:") {
		t.Fatalf("expected the merge block after the branches\nLLVM:\n%s", out)
	}

	out = emitLLVM(t, `if 0.5 printf(1)`)
	expectLLVM(t, out, "fcmp ogt float 0.5", "br i1")
}

func TestEmitLLVM_Structs(t *testing.T) {
	out := emitLLVM(t, "const P = type { y: f32, x: i32 }; var p: P")
	expectLLVM(t, out,
		"@p = global { i32, float } zeroinitializer",
		"store { i32, float } zeroinitializer, { i32, float }* @p",
	)
}

func TestEmitLLVM_FileConstant(t *testing.T) {
	out := emitLLVM(t, "printf(__file__)")
	expectLLVM(t, out, `c"test.syn\00"`, "@.fmt.str")
}

func TestEmitLLVM_Errors(t *testing.T) {
	b := NewLLVMBackend(config.NewOptions("test.syn", 0))
	for _, src := range []string{
		`var a = 1; a = "s"`,
		"const f = 1.5; f + 1",
		"printf(missing)",
		"fn main() 1",
		"const x = 1; x(2)",
	} {
		_, err := b.Emit(lowerSource(t, src))
		expectBackendError(t, err)
	}

	_, err := b.Emit(lowerSource(t, "fn one(a: i32) a; one(1, 2)"))
	if !errors.Is(err, serrors.Template(serrors.CategoryInterpret, serrors.CodeArityMismatch)) {
		t.Fatalf("expected arity mismatch, got %v", err)
	}
}
