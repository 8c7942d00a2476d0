package codegen

import (
	"fmt"
	"sort"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/synth-lang/synth/internal/config"
	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/ir"
)

// LLVMBackend emits textual LLVM IR. Ints are i32, floats are float and
// strings are i8*. Top-level slots become module globals, function slots
// are allocas in the entry block, and printf is the C library function.
type LLVMBackend struct {
	opts *config.Options
}

// NewLLVMBackend creates an LLVM IR backend.
func NewLLVMBackend(opts *config.Options) *LLVMBackend {
	return &LLVMBackend{opts: opts}
}

func (l *LLVMBackend) Name() string      { return config.TargetLLVM }
func (l *LLVMBackend) Extension() string { return ".ll" }

// Emit renders prog as an LLVM module.
func (l *LLVMBackend) Emit(prog *ir.Program) (string, error) {
	g := newLLVMGen(l.opts)
	if err := g.generate(prog); err != nil {
		return "", err
	}
	return g.module.String(), nil
}

type llvmSlot struct {
	ptr value.Value
	typ types.Type
}

type llvmGen struct {
	opts   *config.Options
	module *llir.Module
	printf *llir.Func

	formats  map[valueClass]*llir.Global
	literals map[string]*llir.Global

	defs     map[string]*ir.Func
	funcs    map[string]*llir.Func
	retTypes map[string]types.Type
	// slots initialized with a function value call it directly
	aliases map[string]string
	globals map[string]*llvmSlot

	// current function; locals is nil while emitting main
	fn     *llir.Func
	entry  *llir.Block
	block  *llir.Block
	locals map[string]*llvmSlot
	names  map[string]bool
	blocks int
}

func newLLVMGen(opts *config.Options) *llvmGen {
	m := llir.NewModule()
	m.SourceFilename = opts.CurrentFile

	printf := m.NewFunc("printf", types.I32, llir.NewParam("", types.I8Ptr))
	printf.Sig.Variadic = true

	return &llvmGen{
		opts:     opts,
		module:   m,
		printf:   printf,
		formats:  make(map[valueClass]*llir.Global),
		literals: make(map[string]*llir.Global),
		defs:     make(map[string]*ir.Func),
		funcs:    make(map[string]*llir.Func),
		retTypes: make(map[string]types.Type),
		aliases:  make(map[string]string),
		globals:  make(map[string]*llvmSlot),
	}
}

func (g *llvmGen) generate(prog *ir.Program) error {
	defs := collectFuncs(prog.Body)
	for _, f := range defs {
		if f.Name == "main" || f.Name == "printf" {
			return serrors.UnsupportedBackend(config.TargetLLVM, "a user function named "+f.Name)
		}
		g.defs[f.Name] = f
		g.retTypes[f.Name] = types.Void
	}

	globalTypes, err := g.inferTypes(prog, defs)
	if err != nil {
		return err
	}

	for _, f := range defs {
		params := make([]*llir.Param, 0, len(f.Params))
		for _, p := range f.Params {
			t := llType(p.Type)
			if t == nil {
				return serrors.UnsupportedBackend(config.TargetLLVM, fmt.Sprintf("parameter %s of type %s", p.Name, p.Type))
			}
			params = append(params, llir.NewParam(p.Name, t))
		}
		g.funcs[f.Name] = g.module.NewFunc(f.Name, g.retTypes[f.Name], params...)
	}

	names := make([]string, 0, len(globalTypes))
	for name := range globalTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g.newGlobal(name, globalTypes[name])
	}

	for _, f := range defs {
		if err := g.emitFunc(f); err != nil {
			return err
		}
	}
	return g.emitMain(prog)
}

// inferTypes computes function return types and top-level slot types.
// Return types start as void and are refined until they stop changing,
// which settles recursive functions.
func (g *llvmGen) inferTypes(prog *ir.Program, defs []*ir.Func) (map[string]types.Type, error) {
	var globals map[string]types.Type
	for round := 0; round <= len(defs)+1; round++ {
		globals = make(map[string]types.Type)
		for _, in := range prog.Body {
			g.scanTypes(in, globals, nil)
		}

		changed := false
		for _, f := range defs {
			locals := make(map[string]types.Type, len(f.Params))
			for _, p := range f.Params {
				locals[p.Name] = llType(p.Type)
			}
			var ret types.Type = types.Void
			if f.Body != nil {
				if t := g.scanTypes(f.Body, locals, globals); t != nil {
					ret = t
				}
			}
			if !types.Equal(ret, g.retTypes[f.Name]) {
				g.retTypes[f.Name] = ret
				changed = true
			}
		}
		if !changed {
			return globals, nil
		}
	}
	return nil, serrors.UnsupportedBackend(config.TargetLLVM, "function return types do not settle")
}

// scanTypes records the static type of every destination written by in
// and returns the type of the value in produces, or nil.
func (g *llvmGen) scanTypes(in ir.Instr, env, outer map[string]types.Type) types.Type {
	lookup := func(v ir.Value) types.Type {
		switch v.Kind {
		case ir.ValInt:
			return types.I32
		case ir.ValFloat:
			return types.Float
		case ir.ValString:
			return types.I8Ptr
		case ir.ValRef:
			if t, ok := env[v.Ref]; ok {
				return t
			}
			if t, ok := outer[v.Ref]; ok {
				return t
			}
			if v.Ref == "__file__" {
				return types.I8Ptr
			}
		}
		return nil
	}

	switch i := in.(type) {
	case *ir.Block:
		var last types.Type
		for _, child := range i.Body {
			last = g.scanTypes(child, env, outer)
		}
		return last
	case *ir.StackVar:
		if i.Type != nil && i.Type.Kind == ir.TypeMeta {
			return nil
		}
		if i.Init != nil && g.functionRef(*i.Init) != "" {
			g.aliases[i.Name] = g.functionRef(*i.Init)
			return nil
		}
		t := llType(i.Type)
		if i.Init != nil {
			if it := lookup(*i.Init); it != nil {
				t = it
			}
		}
		if t != nil {
			env[i.Name] = t
		}
		return t
	case *ir.Load:
		t := lookup(ir.Ref(i.Src))
		if t != nil {
			env[i.Dst] = t
		}
		return t
	case *ir.BinOp:
		env[i.Dst] = types.I32
		return types.I32
	case *ir.Call:
		var t types.Type
		if name := g.functionRef(i.Callee); name != "" {
			t = g.retTypes[name]
		} else if i.Callee.Kind == ir.ValRef && i.Callee.Ref == "printf" {
			t = types.I32
		}
		if t == nil || types.Equal(t, types.Void) {
			return nil
		}
		env[i.Dst] = t
		return t
	case *ir.CondBr:
		if i.Then != nil {
			g.scanTypes(i.Then, env, outer)
		}
		if i.Else != nil {
			g.scanTypes(i.Else, env, outer)
		}
	}
	return nil
}

// functionRef returns the function v names directly or through an
// alias slot.
func (g *llvmGen) functionRef(v ir.Value) string {
	if v.Kind != ir.ValRef {
		return ""
	}
	if _, ok := g.defs[v.Ref]; ok {
		return v.Ref
	}
	return g.aliases[v.Ref]
}

func (g *llvmGen) emitMain(prog *ir.Program) error {
	main := g.module.NewFunc("main", types.I32)
	g.enter(main)
	g.locals = nil
	for _, in := range prog.Body {
		if _, err := g.emit(in); err != nil {
			return err
		}
	}
	g.block.NewRet(constant.NewInt(types.I32, 0))
	return nil
}

func (g *llvmGen) emitFunc(f *ir.Func) error {
	fn := g.funcs[f.Name]
	g.enter(fn)
	g.locals = make(map[string]*llvmSlot)

	for _, param := range fn.Params {
		g.names[param.Name()] = true
	}
	for _, param := range fn.Params {
		slot := g.slotFor(param.Name(), param.Type())
		g.entry.NewStore(param, slot.ptr)
	}

	var last value.Value
	if f.Body != nil {
		v, err := g.emit(f.Body)
		if err != nil {
			return err
		}
		last = v
	}

	ret := fn.Sig.RetType
	switch {
	case types.Equal(ret, types.Void):
		g.block.NewRet(nil)
	case last != nil && types.Equal(last.Type(), ret):
		g.block.NewRet(last)
	default:
		g.block.NewRet(zeroOf(ret))
	}
	return nil
}

func (g *llvmGen) enter(fn *llir.Func) {
	g.fn = fn
	g.entry = fn.NewBlock("entry")
	g.block = g.entry
	g.names = make(map[string]bool)
}

// emit lowers one instruction and returns its value, or nil.
func (g *llvmGen) emit(in ir.Instr) (value.Value, error) {
	switch i := in.(type) {
	case *ir.Block:
		var last value.Value
		for _, child := range i.Body {
			v, err := g.emit(child)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil
	case *ir.StackVar:
		return g.emitStackVar(i)
	case *ir.Load:
		v, err := g.load(i.Src)
		if err != nil {
			return nil, err
		}
		g.block.NewStore(v, g.slotFor(i.Dst, v.Type()).ptr)
		return v, nil
	case *ir.Store:
		v, err := g.value(i.Val)
		if err != nil {
			return nil, err
		}
		slot := g.lookupSlot(i.Dst)
		if slot == nil {
			return nil, serrors.UnsupportedBackend(config.TargetLLVM, "store to unknown slot "+i.Dst)
		}
		if !types.Equal(slot.typ, v.Type()) {
			return nil, serrors.UnsupportedBackend(config.TargetLLVM,
				fmt.Sprintf("store of %s into %s slot %s", v.Type(), slot.typ, i.Dst))
		}
		g.block.NewStore(v, slot.ptr)
		return nil, nil
	case *ir.BinOp:
		return g.emitBinOp(i)
	case *ir.Call:
		return g.emitCall(i)
	case *ir.CondBr:
		return nil, g.emitCondBr(i)
	case *ir.Func, *ir.TypeDecl:
		return nil, nil
	default:
		return nil, serrors.UnsupportedBackend(config.TargetLLVM, "instruction "+ir.KindName(in))
	}
}

func (g *llvmGen) emitStackVar(i *ir.StackVar) (value.Value, error) {
	if i.Type != nil && i.Type.Kind == ir.TypeMeta {
		return nil, nil
	}
	if _, ok := g.aliases[i.Name]; ok {
		return nil, nil
	}

	if i.Init != nil {
		v, err := g.value(*i.Init)
		if err != nil {
			return nil, err
		}
		g.block.NewStore(v, g.slotFor(i.Name, v.Type()).ptr)
		return v, nil
	}

	t := llType(i.Type)
	if t == nil {
		return nil, serrors.UnsupportedBackend(config.TargetLLVM, fmt.Sprintf("slot %s of type %s", i.Name, i.Type))
	}
	zero := zeroOf(t)
	g.block.NewStore(zero, g.slotFor(i.Name, t).ptr)
	return zero, nil
}

func (g *llvmGen) emitBinOp(i *ir.BinOp) (value.Value, error) {
	lhs, err := g.value(i.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := g.value(i.RHS)
	if err != nil {
		return nil, err
	}
	for _, operand := range []value.Value{lhs, rhs} {
		if !types.Equal(operand.Type(), types.I32) {
			return nil, serrors.UnsupportedBackend(config.TargetLLVM,
				fmt.Sprintf("%s of %s operand", i.Op, operand.Type()))
		}
	}

	var result value.Value
	switch i.Op {
	case ir.OpAdd:
		result = g.block.NewAdd(lhs, rhs)
	case ir.OpSub:
		result = g.block.NewSub(lhs, rhs)
	default:
		return nil, serrors.UnsupportedBackend(config.TargetLLVM, "operator "+i.Op.String())
	}
	g.block.NewStore(result, g.slotFor(i.Dst, types.I32).ptr)
	return result, nil
}

func (g *llvmGen) emitCall(i *ir.Call) (value.Value, error) {
	name := g.functionRef(i.Callee)
	if name == "" {
		if i.Callee.Kind == ir.ValRef && i.Callee.Ref == "printf" && g.lookupSlot("printf") == nil {
			return g.emitPrintf(i)
		}
		return nil, serrors.UnsupportedBackend(config.TargetLLVM, "call of "+i.Callee.Describe())
	}

	fn := g.funcs[name]
	if len(fn.Params) != len(i.Args) {
		return nil, serrors.ArityMismatch(name, len(fn.Params), len(i.Args))
	}
	args := make([]value.Value, 0, len(i.Args))
	for idx, arg := range i.Args {
		v, err := g.value(arg)
		if err != nil {
			return nil, err
		}
		if want := fn.Params[idx].Type(); !types.Equal(v.Type(), want) {
			return nil, serrors.UnsupportedBackend(config.TargetLLVM,
				fmt.Sprintf("argument %d of %s is %s, want %s", idx, name, v.Type(), want))
		}
		args = append(args, v)
	}

	call := g.block.NewCall(fn, args...)
	if types.Equal(fn.Sig.RetType, types.Void) {
		return nil, nil
	}
	g.block.NewStore(call, g.slotFor(i.Dst, fn.Sig.RetType).ptr)
	return call, nil
}

func (g *llvmGen) emitPrintf(i *ir.Call) (value.Value, error) {
	if len(i.Args) != 1 {
		return nil, serrors.ArityMismatch("printf", 1, len(i.Args))
	}
	arg, err := g.value(i.Args[0])
	if err != nil {
		return nil, err
	}

	var class valueClass
	switch t := arg.Type(); {
	case types.Equal(t, types.I32):
		class = classInt
	case types.Equal(t, types.Float):
		class = classFloat
		// varargs promote float to double
		arg = g.block.NewFPExt(arg, types.Double)
	case types.Equal(t, types.I8Ptr):
		class = classString
	default:
		return nil, serrors.UnsupportedBackend(config.TargetLLVM, fmt.Sprintf("printf of %s", t))
	}

	call := g.block.NewCall(g.printf, g.formatPtr(class), arg)
	g.block.NewStore(call, g.slotFor(i.Dst, types.I32).ptr)
	return call, nil
}

func (g *llvmGen) emitCondBr(i *ir.CondBr) error {
	c, err := g.value(i.Cond)
	if err != nil {
		return err
	}

	// Truthy means strictly positive.
	var cond value.Value
	switch {
	case types.Equal(c.Type(), types.I32):
		cond = g.block.NewICmp(enum.IPredSGT, c, constant.NewInt(types.I32, 0))
	case types.Equal(c.Type(), types.Float):
		cond = g.block.NewFCmp(enum.FPredOGT, c, constant.NewFloat(types.Float, 0))
	default:
		return serrors.UnsupportedBackend(config.TargetLLVM, fmt.Sprintf("condition of %s", c.Type()))
	}

	id := g.blocks
	g.blocks++
	thenBlock := g.fn.NewBlock(fmt.Sprintf("then.%d", id))
	mergeBlock := g.fn.NewBlock(fmt.Sprintf("merge.%d", id))
	elseBlock := mergeBlock
	if i.Else != nil {
		elseBlock = g.fn.NewBlock(fmt.Sprintf("else.%d", id))
	}
	g.block.NewCondBr(cond, thenBlock, elseBlock)

	branches := []struct {
		block *llir.Block
		body  ir.Instr
	}{{thenBlock, i.Then}}
	if i.Else != nil {
		branches = append(branches, struct {
			block *llir.Block
			body  ir.Instr
		}{elseBlock, i.Else})
	}
	for _, br := range branches {
		g.block = br.block
		if br.body != nil {
			if _, err := g.emit(br.body); err != nil {
				return err
			}
		}
		if g.block.Term == nil {
			g.block.NewBr(mergeBlock)
		}
	}

	// Keep the merge block last so the output reads top to bottom.
	g.moveToEnd(mergeBlock)
	g.block = mergeBlock
	return nil
}

func (g *llvmGen) moveToEnd(b *llir.Block) {
	blocks := g.fn.Blocks[:0]
	for _, other := range g.fn.Blocks {
		if other != b {
			blocks = append(blocks, other)
		}
	}
	g.fn.Blocks = append(blocks, b)
}

func (g *llvmGen) value(v ir.Value) (value.Value, error) {
	switch v.Kind {
	case ir.ValInt:
		return constant.NewInt(types.I32, int64(v.Int)), nil
	case ir.ValFloat:
		return constant.NewFloat(types.Float, float64(v.Float)), nil
	case ir.ValString:
		return g.stringPtr(v.Str), nil
	case ir.ValRef:
		return g.load(v.Ref)
	default:
		return nil, serrors.UnsupportedBackend(config.TargetLLVM, "value "+v.Describe())
	}
}

func (g *llvmGen) load(name string) (value.Value, error) {
	if slot := g.lookupSlot(name); slot != nil {
		return g.block.NewLoad(slot.typ, slot.ptr), nil
	}
	if fn := g.functionRef(ir.Ref(name)); fn != "" {
		return g.funcs[fn], nil
	}
	if name == "__file__" {
		return g.stringPtr(g.opts.CurrentFile), nil
	}
	return nil, serrors.UnsupportedBackend(config.TargetLLVM, "unresolved name "+name)
}

func (g *llvmGen) lookupSlot(name string) *llvmSlot {
	if slot, ok := g.locals[name]; ok {
		return slot
	}
	if slot, ok := g.globals[name]; ok {
		return slot
	}
	return nil
}

// slotFor returns the slot for name holding values of type t, creating a
// new one when none exists in the current scope or its type differs.
func (g *llvmGen) slotFor(name string, t types.Type) *llvmSlot {
	if g.locals == nil {
		if slot, ok := g.globals[name]; ok && types.Equal(slot.typ, t) {
			return slot
		}
		return g.newGlobal(name, t)
	}

	if slot, ok := g.locals[name]; ok && types.Equal(slot.typ, t) {
		return slot
	}
	alloca := g.entry.NewAlloca(t)
	alloca.SetName(g.uniqueLocal(name + ".addr"))
	slot := &llvmSlot{ptr: alloca, typ: t}
	g.locals[name] = slot
	return slot
}

func (g *llvmGen) newGlobal(name string, t types.Type) *llvmSlot {
	symbol := name
	for n := 1; g.symbolTaken(symbol); n++ {
		symbol = fmt.Sprintf("%s.%d", name, n)
	}
	global := g.module.NewGlobalDef(symbol, zeroOf(t))
	slot := &llvmSlot{ptr: global, typ: t}
	g.globals[name] = slot
	return slot
}

func (g *llvmGen) symbolTaken(symbol string) bool {
	if symbol == "main" || symbol == "printf" {
		return true
	}
	if _, ok := g.funcs[symbol]; ok {
		return true
	}
	for _, global := range g.module.Globals {
		if global.Name() == symbol {
			return true
		}
	}
	return false
}

func (g *llvmGen) uniqueLocal(base string) string {
	name := base
	for n := 1; g.names[name]; n++ {
		name = fmt.Sprintf("%s%d", base, n)
	}
	g.names[name] = true
	return name
}

func (g *llvmGen) stringPtr(s string) constant.Constant {
	global, ok := g.literals[s]
	if !ok {
		global = g.module.NewGlobalDef(fmt.Sprintf(".str.%d", len(g.literals)), constant.NewCharArrayFromString(s+"\x00"))
		global.Immutable = true
		g.literals[s] = global
	}
	return firstElem(global)
}

func (g *llvmGen) formatPtr(c valueClass) constant.Constant {
	global, ok := g.formats[c]
	if !ok {
		names := map[valueClass]string{classInt: ".fmt.int", classFloat: ".fmt.float", classString: ".fmt.str"}
		global = g.module.NewGlobalDef(names[c], constant.NewCharArrayFromString(printfFormat(c)+"\x00"))
		global.Immutable = true
		g.formats[c] = global
	}
	return firstElem(global)
}

func firstElem(global *llir.Global) constant.Constant {
	elemTy := global.Type().(*types.PointerType).ElemType
	zero := constant.NewInt(types.I32, 0)
	ptr := constant.NewGetElementPtr(elemTy, global, zero, zero)
	ptr.InBounds = true
	return ptr
}

func llType(t *ir.Type) types.Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ir.TypeInt:
		return types.I32
	case ir.TypeFloat:
		return types.Float
	case ir.TypeString:
		return types.I8Ptr
	case ir.TypeStruct:
		fields := make([]types.Type, 0, len(t.Fields))
		for _, f := range t.Fields {
			ft := llType(f.Type)
			if ft == nil {
				return nil
			}
			fields = append(fields, ft)
		}
		return types.NewStruct(fields...)
	default:
		return nil
	}
}

func zeroOf(t types.Type) constant.Constant {
	switch {
	case types.Equal(t, types.I32):
		return constant.NewInt(types.I32, 0)
	case types.Equal(t, types.Float):
		return constant.NewFloat(types.Float, 0)
	case types.Equal(t, types.I8Ptr):
		return constant.NewNull(types.I8Ptr)
	default:
		return constant.NewZeroInitializer(t)
	}
}
