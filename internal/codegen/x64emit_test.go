package codegen

import (
	"strings"
	"testing"

	"github.com/synth-lang/synth/internal/config"
	"github.com/synth-lang/synth/internal/ir"
)

func emitX64(t *testing.T, prog *ir.Program) string {
	t.Helper()
	asm, err := NewX86Backend(config.NewOptions("test.syn", 0)).Emit(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return asm
}

func expectAsm(t *testing.T, asm string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(asm, want) {
			t.Fatalf("missing %q\nASM:\n%s", want, asm)
		}
	}
}

func TestEmitX64_ModuleShape(t *testing.T) {
	asm := emitX64(t, lowerSource(t, `const x = 2; const y = 3; const z = x + y; printf("sum")`))
	expectAsm(t, asm,
		".intel_syntax noprefix",
		".globl main",
		".extern printf",
		"main:\n  push rbp\n  mov rbp, rsp\n",
		"mov qword ptr [rip + g_x], rax",
		"mov rax, qword ptr [rip + g_x]",
		"mov r10, qword ptr [rip + g_y]",
		"add rax, r10\n  movsxd rax, eax\n",
		"mov qword ptr [rip + g___t0], rax",
		`.Lstr0: .asciz "sum"`,
		`.Lfmt_str: .asciz "%s\n"`,
		"g_z: .zero 8",
		"xor eax, eax\n  mov rsp, rbp\n  pop rbp\n  ret\n",
	)
}

func TestEmitX64_PrintfFormats(t *testing.T) {
	asm := emitX64(t, lowerSource(t, `printf(42); printf(1.5); const s = "hi"; printf(s)`))
	expectAsm(t, asm,
		"lea rcx, [rip + .Lfmt_int]",
		"lea rcx, [rip + .Lfmt_float]",
		"lea rcx, [rip + .Lfmt_str]",
		"cvtss2sd xmm1, xmm7",
		"movq rdx, xmm1",
		"sub rsp, 32\n",
		"call printf",
	)
}

func TestEmitX64_FunctionFrame(t *testing.T) {
	// params a, b and the add result: three slots aligned to 32 bytes
	asm := emitX64(t, lowerSource(t, "fn add(a: i32, b: i32) a + b; printf(add(2, 3))"))
	expectAsm(t, asm,
		"fn_add:\n  push rbp\n  mov rbp, rsp\n  sub rsp, 32\n",
		"mov qword ptr [rbp-8], rcx",
		"mov qword ptr [rbp-16], rdx",
		"mov qword ptr [rbp-24], rax",
		"mov rcx, 2",
		"mov rdx, 3",
		"call fn_add",
	)
}

func TestEmitX64_FrameAlignment(t *testing.T) {
	// param plus tail load: frame 16, already aligned
	asm := emitX64(t, lowerSource(t, "fn one(a: i32) { a }"))
	expectAsm(t, asm, "fn_one:\n  push rbp\n  mov rbp, rsp\n  sub rsp, 16\n")

	// Temporary plus tail load: frame 16
	asm = emitX64(t, lowerSource(t, "fn seven() 7"))
	expectAsm(t, asm, "fn_seven:\n  push rbp\n  mov rbp, rsp\n  sub rsp, 16\n")
}

func TestEmitX64_StackArgs(t *testing.T) {
	src := "fn six(a: i32, b: i32, c: i32, d: i32, e: i32, f: i32) f; six(1, 2, 3, 4, 5, 6)"
	asm := emitX64(t, lowerSource(t, src))
	expectAsm(t, asm,
		"mov rcx, 1",
		"mov rdx, 2",
		"mov r8, 3",
		"mov r9, 4",
		"mov qword ptr [rsp+32], rax",
		"mov qword ptr [rsp+40], rax",
		// 32 shadow + 16 stack args
		"sub rsp, 48",
		// callee side: fifth argument above the shadow space
		"mov rax, qword ptr [rbp+48]",
		"mov rax, qword ptr [rbp+56]",
	)
}

func TestEmitX64_IndirectCall(t *testing.T) {
	asm := emitX64(t, lowerSource(t, "const f = fn(x: i32) x; f(7)"))
	expectAsm(t, asm,
		"lea rax, [rip + fn___f0]",
		"mov r11, qword ptr [rip + g_f]",
		"call r11",
	)
}

func TestEmitX64_CondBr(t *testing.T) {
	asm := emitX64(t, lowerSource(t, `const n = 1; if n printf("yes") else printf("no")`))
	expectAsm(t, asm,
		"test rax, rax\n  jg .Lthen0\n  jmp .Lelse0\n",
		".Lthen0:\n",
		"jmp .Lend0\n.Lelse0:\n",
		".Lend0:\n",
	)

	asm = emitX64(t, lowerSource(t, `if 0.5 printf(1)`))
	expectAsm(t, asm, "comiss xmm0, xmm1\n  ja .Lthen0\n  jmp .Lend0\n")
}

func TestEmitX64_Errors(t *testing.T) {
	b := NewX86Backend(config.NewOptions("test.syn", 0))
	for _, src := range []string{
		"const P = type { x: i32 }; var p: P",
		"printf(missing)",
		"fn main() 1",
	} {
		_, err := b.Emit(lowerSource(t, src))
		expectBackendError(t, err)
	}
}

func TestEscapeAsm(t *testing.T) {
	if got := escapeAsm("a\"b\\c\n\x01"); got != `a\"b\\c\n\001` {
		t.Fatalf("escapeAsm wrong. got=%q", got)
	}
	if got := symbolName("%t12"); got != "__t12" {
		t.Fatalf("symbolName wrong. got=%q", got)
	}
}
