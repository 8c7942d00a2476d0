package codegen

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/synth-lang/synth/internal/config"
	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/ir"
)

const scratchXMM = "xmm7"

// X86Backend emits naive x86-64 assembly in GAS Intel syntax with a
// Win64-like calling convention. Top-level slots become .bss globals,
// function slots live in the stack frame, and RAX/R10 are scratch.
// The output is for inspection only and not ABI-exact.
type X86Backend struct {
	opts *config.Options
}

// NewX86Backend creates an x86-64 backend.
func NewX86Backend(opts *config.Options) *X86Backend {
	return &X86Backend{opts: opts}
}

func (x *X86Backend) Name() string      { return config.TargetX86 }
func (x *X86Backend) Extension() string { return ".s" }

// Emit renders prog as assembly text.
func (x *X86Backend) Emit(prog *ir.Program) (string, error) {
	e := &x64Emitter{
		opts:      x.opts,
		stringIDs: make(map[string]int),
		globals:   make(map[string]valueClass),
		funcs:     make(map[string]*ir.Func),
		formats:   make(map[valueClass]bool),
	}
	return e.emitProgram(prog)
}

type x64Emitter struct {
	opts *config.Options
	text strings.Builder

	literals  []string
	stringIDs map[string]int
	globals   map[string]valueClass
	funcs     map[string]*ir.Func
	formats   map[valueClass]bool
	labels    int

	// per function; slots is nil while emitting main
	slots   map[string]int64
	classes map[string]valueClass
}

func (e *x64Emitter) emitProgram(prog *ir.Program) (string, error) {
	funcs := collectFuncs(prog.Body)
	for _, f := range funcs {
		if f.Name == "main" {
			return "", serrors.UnsupportedBackend(config.TargetX86, "a user function named main")
		}
		e.funcs[f.Name] = f
	}
	collectGlobals(prog.Body, e.globals)

	for _, f := range funcs {
		if err := e.emitFunc(f); err != nil {
			return "", err
		}
	}
	if err := e.emitMain(prog); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# synth x86-64 module %s\n", e.opts.CurrentFile)
	b.WriteString(".intel_syntax noprefix\n")
	b.WriteString(".globl main\n")
	b.WriteString(".extern printf\n\n")
	b.WriteString(".text\n")
	b.WriteString(e.text.String())

	if len(e.formats) > 0 || len(e.literals) > 0 {
		b.WriteString("\n.data\n")
		for _, c := range []valueClass{classInt, classFloat, classString} {
			if e.formats[c] {
				fmt.Fprintf(&b, "%s: .asciz \"%s\"\n", formatLabel(c), escapeAsm(printfFormat(c)))
			}
		}
		for id, s := range e.literals {
			fmt.Fprintf(&b, ".Lstr%d: .asciz \"%s\"\n", id, escapeAsm(s))
		}
	}

	if len(e.globals) > 0 {
		names := make([]string, 0, len(e.globals))
		for name := range e.globals {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\n.bss\n.p2align 3\n")
		for _, name := range names {
			fmt.Fprintf(&b, "%s: .zero 8\n", globalSymbol(name))
		}
	}
	return b.String(), nil
}

func (e *x64Emitter) emitMain(prog *ir.Program) error {
	e.slots = nil
	e.classes = e.globals
	e.text.WriteString("main:\n")
	e.text.WriteString("  push rbp\n")
	e.text.WriteString("  mov rbp, rsp\n")
	for _, in := range prog.Body {
		if err := e.emitInstr(in); err != nil {
			return err
		}
	}
	e.text.WriteString("  xor eax, eax\n")
	e.text.WriteString("  mov rsp, rbp\n  pop rbp\n  ret\n")
	return nil
}

func (e *x64Emitter) emitFunc(f *ir.Func) error {
	e.slots = collectSlots(f)
	e.classes = make(map[string]valueClass)
	frameSize := int64(len(e.slots)) * 8
	// Align frame to 16 bytes for call alignment
	if rem := frameSize % 16; rem != 0 {
		frameSize += 16 - rem
	}

	fmt.Fprintf(&e.text, "%s:\n", funcSymbol(f.Name))
	e.text.WriteString("  push rbp\n")
	e.text.WriteString("  mov rbp, rsp\n")
	if frameSize > 0 {
		fmt.Fprintf(&e.text, "  sub rsp, %d\n", frameSize)
	}

	// Spill parameters: the first four arrive in registers, the rest above
	// the shadow space.
	gprRegs := []string{"rcx", "rdx", "r8", "r9"}
	for i, p := range f.Params {
		e.classes[p.Name] = classOfType(p.Type)
		if i < len(gprRegs) {
			fmt.Fprintf(&e.text, "  mov qword ptr [rbp-%d], %s\n", e.slots[p.Name], gprRegs[i])
			continue
		}
		fmt.Fprintf(&e.text, "  mov rax, qword ptr [rbp+%d]\n", 48+(i-4)*8)
		fmt.Fprintf(&e.text, "  mov qword ptr [rbp-%d], rax\n", e.slots[p.Name])
	}

	// The body's last value is left in rax.
	if f.Body != nil {
		if err := e.emitInstr(f.Body); err != nil {
			return err
		}
	}
	e.text.WriteString("  mov rsp, rbp\n  pop rbp\n  ret\n")
	return nil
}

func (e *x64Emitter) emitInstr(in ir.Instr) error {
	switch v := in.(type) {
	case *ir.Block:
		fmt.Fprintf(&e.text, "  # block %s\n", v.Name)
		for _, child := range v.Body {
			if err := e.emitInstr(child); err != nil {
				return err
			}
		}
	case *ir.StackVar:
		return e.emitStackVar(v)
	case *ir.Load:
		if err := e.loadValue(ir.Ref(v.Src), "rax"); err != nil {
			return err
		}
		e.classes[v.Dst] = e.classOf(ir.Ref(v.Src))
		return e.storeValue(v.Dst, "rax")
	case *ir.Store:
		if err := e.loadValue(v.Val, "rax"); err != nil {
			return err
		}
		return e.storeValue(v.Dst, "rax")
	case *ir.BinOp:
		if err := e.loadValue(v.LHS, "rax"); err != nil {
			return err
		}
		if err := e.loadValue(v.RHS, "r10"); err != nil {
			return err
		}
		switch v.Op {
		case ir.OpAdd:
			e.text.WriteString("  add rax, r10\n")
		case ir.OpSub:
			e.text.WriteString("  sub rax, r10\n")
		default:
			return serrors.UnsupportedBackend(config.TargetX86, "operator "+v.Op.String())
		}
		// Wrap to 32 bits like the interpreter.
		e.text.WriteString("  movsxd rax, eax\n")
		e.classes[v.Dst] = classInt
		return e.storeValue(v.Dst, "rax")
	case *ir.Call:
		return e.emitCall(v)
	case *ir.CondBr:
		return e.emitCondBr(v)
	case *ir.Func:
		fmt.Fprintf(&e.text, "  # func %s emitted as %s\n", v.Name, funcSymbol(v.Name))
	case *ir.TypeDecl:
		fmt.Fprintf(&e.text, "  # type %s\n", v.Name)
	default:
		return serrors.UnsupportedBackend(config.TargetX86, "instruction "+ir.KindName(in))
	}
	return nil
}

func (e *x64Emitter) emitStackVar(v *ir.StackVar) error {
	if v.Type != nil {
		switch v.Type.Kind {
		case ir.TypeMeta:
			fmt.Fprintf(&e.text, "  # type alias %s\n", v.Name)
			return nil
		case ir.TypeStruct:
			return serrors.UnsupportedBackend(config.TargetX86, "struct value "+v.Name)
		}
	}

	if v.Init != nil {
		if err := e.loadValue(*v.Init, "rax"); err != nil {
			return err
		}
		e.classes[v.Name] = e.classOf(*v.Init)
	} else {
		e.text.WriteString("  xor eax, eax\n")
		e.classes[v.Name] = classOfType(v.Type)
	}
	return e.storeValue(v.Name, "rax")
}

func (e *x64Emitter) emitCall(v *ir.Call) error {
	if v.Callee.Kind != ir.ValRef {
		return serrors.UnsupportedBackend(config.TargetX86, "call of "+v.Callee.Describe())
	}
	callee := v.Callee.Ref
	if !e.isSlot(callee) && e.funcs[callee] == nil {
		if fn, ok := GetBuiltinFunction(callee); ok {
			return e.emitPrintf(v, fn)
		}
	}

	gprRegs := []string{"rcx", "rdx", "r8", "r9"}
	stackArgs := 0
	if len(v.Args) > 4 {
		stackArgs = len(v.Args) - 4
	}
	// Reserve shadow space + stack args, rounded up to 16B to keep RSP 16B-aligned at call.
	reserve := int64(32 + stackArgs*8)
	if rem := reserve % 16; rem != 0 {
		reserve += 16 - rem
	}
	fmt.Fprintf(&e.text, "  sub rsp, %d\n", reserve)
	for i := 4; i < len(v.Args); i++ {
		if err := e.loadValue(v.Args[i], "rax"); err != nil {
			return err
		}
		fmt.Fprintf(&e.text, "  mov qword ptr [rsp+%d], rax\n", 32+(i-4)*8)
	}
	for i := 0; i < len(v.Args) && i < len(gprRegs); i++ {
		if err := e.loadValue(v.Args[i], gprRegs[i]); err != nil {
			return err
		}
	}

	if fn := e.funcs[callee]; fn != nil && !e.isSlot(callee) {
		if len(fn.Params) != len(v.Args) {
			return serrors.ArityMismatch(callee, len(fn.Params), len(v.Args))
		}
		fmt.Fprintf(&e.text, "  call %s\n", funcSymbol(callee))
	} else {
		// Indirect through a slot holding a function address
		if err := e.loadValue(v.Callee, "r11"); err != nil {
			return err
		}
		e.text.WriteString("  call r11\n")
	}
	fmt.Fprintf(&e.text, "  add rsp, %d\n", reserve)

	e.classes[v.Dst] = classInt
	return e.storeValue(v.Dst, "rax")
}

func (e *x64Emitter) emitPrintf(v *ir.Call, fn BuiltinFunction) error {
	if len(v.Args) != len(fn.Parameters) {
		return serrors.ArityMismatch(fn.Name, len(fn.Parameters), len(v.Args))
	}
	arg := v.Args[0]
	class := e.classOf(arg)
	e.formats[class] = true

	e.text.WriteString("  sub rsp, 32\n")
	if err := e.loadValue(arg, "rdx"); err != nil {
		return err
	}
	if class == classFloat {
		// varargs take doubles, mirrored in the integer register
		fmt.Fprintf(&e.text, "  movd %s, edx\n", scratchXMM)
		fmt.Fprintf(&e.text, "  cvtss2sd xmm1, %s\n", scratchXMM)
		e.text.WriteString("  movq rdx, xmm1\n")
	}
	fmt.Fprintf(&e.text, "  lea rcx, [rip + %s]\n", formatLabel(class))
	fmt.Fprintf(&e.text, "  call %s\n", fn.AssemblyName)
	e.text.WriteString("  add rsp, 32\n")
	e.text.WriteString("  movsxd rax, eax\n")

	e.classes[v.Dst] = classInt
	return e.storeValue(v.Dst, "rax")
}

func (e *x64Emitter) emitCondBr(v *ir.CondBr) error {
	id := e.labels
	e.labels++
	thenLabel := fmt.Sprintf(".Lthen%d", id)
	elseLabel := fmt.Sprintf(".Lelse%d", id)
	endLabel := fmt.Sprintf(".Lend%d", id)
	if v.Else == nil {
		elseLabel = endLabel
	}

	if err := e.loadValue(v.Cond, "rax"); err != nil {
		return err
	}
	// Truthy means strictly positive.
	if e.classOf(v.Cond) == classFloat {
		e.text.WriteString("  movd xmm0, eax\n")
		e.text.WriteString("  xorps xmm1, xmm1\n")
		e.text.WriteString("  comiss xmm0, xmm1\n")
		fmt.Fprintf(&e.text, "  ja %s\n", thenLabel)
	} else {
		e.text.WriteString("  test rax, rax\n")
		fmt.Fprintf(&e.text, "  jg %s\n", thenLabel)
	}
	fmt.Fprintf(&e.text, "  jmp %s\n", elseLabel)

	fmt.Fprintf(&e.text, "%s:\n", thenLabel)
	if v.Then != nil {
		if err := e.emitInstr(v.Then); err != nil {
			return err
		}
	}
	if v.Else != nil {
		fmt.Fprintf(&e.text, "  jmp %s\n", endLabel)
		fmt.Fprintf(&e.text, "%s:\n", elseLabel)
		if err := e.emitInstr(v.Else); err != nil {
			return err
		}
	}
	fmt.Fprintf(&e.text, "%s:\n", endLabel)
	return nil
}

func (e *x64Emitter) isSlot(name string) bool {
	if _, ok := e.slots[name]; ok {
		return true
	}
	_, ok := e.globals[name]
	return ok
}

func (e *x64Emitter) classOf(v ir.Value) valueClass {
	switch v.Kind {
	case ir.ValFloat:
		return classFloat
	case ir.ValString:
		return classString
	case ir.ValRef:
		if v.Ref == "__file__" && !e.isSlot(v.Ref) {
			return classString
		}
		if c, ok := e.classes[v.Ref]; ok {
			return c
		}
		if c, ok := e.globals[v.Ref]; ok {
			return c
		}
	}
	return classInt
}

func (e *x64Emitter) loadValue(v ir.Value, reg string) error {
	switch v.Kind {
	case ir.ValInt:
		fmt.Fprintf(&e.text, "  mov %s, %d\n", reg, v.Int)
	case ir.ValFloat:
		fmt.Fprintf(&e.text, "  mov %s, %d\n", reg, math.Float32bits(v.Float))
	case ir.ValString:
		fmt.Fprintf(&e.text, "  lea %s, [rip + .Lstr%d]\n", reg, e.stringID(v.Str))
	case ir.ValRef:
		return e.loadRef(v.Ref, reg)
	default:
		return serrors.UnsupportedBackend(config.TargetX86, "value "+v.Describe())
	}
	return nil
}

func (e *x64Emitter) loadRef(name, reg string) error {
	if off, ok := e.slots[name]; ok {
		fmt.Fprintf(&e.text, "  mov %s, qword ptr [rbp-%d]\n", reg, off)
		return nil
	}
	if _, ok := e.globals[name]; ok {
		fmt.Fprintf(&e.text, "  mov %s, qword ptr [rip + %s]\n", reg, globalSymbol(name))
		return nil
	}
	if _, ok := e.funcs[name]; ok {
		fmt.Fprintf(&e.text, "  lea %s, [rip + %s]\n", reg, funcSymbol(name))
		return nil
	}
	if name == "__file__" {
		fmt.Fprintf(&e.text, "  lea %s, [rip + .Lstr%d]\n", reg, e.stringID(e.opts.CurrentFile))
		return nil
	}
	return serrors.UnsupportedBackend(config.TargetX86, "unresolved name "+name)
}

func (e *x64Emitter) storeValue(dst, reg string) error {
	if dst == "" {
		return nil
	}
	if off, ok := e.slots[dst]; ok {
		fmt.Fprintf(&e.text, "  mov qword ptr [rbp-%d], %s\n", off, reg)
		return nil
	}
	if _, ok := e.globals[dst]; ok {
		fmt.Fprintf(&e.text, "  mov qword ptr [rip + %s], %s\n", globalSymbol(dst), reg)
		return nil
	}
	return serrors.UnsupportedBackend(config.TargetX86, "store to unknown slot "+dst)
}

func (e *x64Emitter) stringID(s string) int {
	if id, ok := e.stringIDs[s]; ok {
		return id
	}
	id := len(e.literals)
	e.literals = append(e.literals, s)
	e.stringIDs[s] = id
	return id
}

// collectSlots assigns a frame offset to every parameter and destination
// in f, nested function bodies excluded.
func collectSlots(f *ir.Func) map[string]int64 {
	slots := make(map[string]int64)
	next := int64(8)
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := slots[name]; ok {
			return
		}
		slots[name] = next
		next += 8
	}
	for _, p := range f.Params {
		add(p.Name)
	}
	walkDests(f.Body, add)
	return slots
}

// collectGlobals records the destinations written by top-level code.
func collectGlobals(body []ir.Instr, globals map[string]valueClass) {
	for _, in := range body {
		walkDests(in, func(name string) {
			if _, ok := globals[name]; !ok {
				globals[name] = classInt
			}
		})
	}
}

func walkDests(in ir.Instr, add func(string)) {
	switch v := in.(type) {
	case *ir.Block:
		for _, child := range v.Body {
			walkDests(child, add)
		}
	case *ir.CondBr:
		if v.Then != nil {
			walkDests(v.Then, add)
		}
		if v.Else != nil {
			walkDests(v.Else, add)
		}
	case *ir.StackVar:
		if v.Type == nil || v.Type.Kind != ir.TypeMeta {
			add(v.Name)
		}
	case *ir.Load:
		add(v.Dst)
	case *ir.BinOp:
		add(v.Dst)
	case *ir.Call:
		add(v.Dst)
	}
}

func classOfType(t *ir.Type) valueClass {
	if t == nil {
		return classInt
	}
	switch t.Kind {
	case ir.TypeFloat:
		return classFloat
	case ir.TypeString:
		return classString
	default:
		return classInt
	}
}

func formatLabel(c valueClass) string {
	switch c {
	case classFloat:
		return ".Lfmt_float"
	case classString:
		return ".Lfmt_str"
	default:
		return ".Lfmt_int"
	}
}

// symbolName maps IR names onto assembler-safe symbols; synthetic names
// keep their counter behind a double underscore.
func symbolName(name string) string {
	return strings.ReplaceAll(name, "%", "__")
}

func funcSymbol(name string) string   { return "fn_" + symbolName(name) }
func globalSymbol(name string) string { return "g_" + symbolName(name) }

func escapeAsm(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, "\\%03o", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
