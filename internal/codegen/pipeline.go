// Package codegen turns synth IR into textual target code.
//
// Backends are diagnostic-grade: they produce assembly or LLVM IR text
// for a program and never invoke an assembler or linker.
package codegen

import (
	"github.com/synth-lang/synth/internal/config"
	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/ir"
)

// Backend emits target text for a lowered program.
type Backend interface {
	// Name is the -target value selecting the backend.
	Name() string
	// Extension is the artifact file extension, dot included.
	Extension() string
	Emit(prog *ir.Program) (string, error)
}

// ForTarget returns the backend for target. The interpreter target has
// no backend.
func ForTarget(target string, opts *config.Options) (Backend, error) {
	if opts == nil {
		opts = config.NewOptions("", 0)
	}
	switch target {
	case config.TargetX86:
		return NewX86Backend(opts), nil
	case config.TargetLLVM:
		return NewLLVMBackend(opts), nil
	default:
		return nil, serrors.UnsupportedBackend(target, "no code generator for this target")
	}
}

// Targets lists the code generation targets, interpreter excluded.
func Targets() []string {
	return []string{config.TargetX86, config.TargetLLVM}
}

// collectFuncs gathers every function definition in body, nested ones
// included, in program order.
func collectFuncs(body []ir.Instr) []*ir.Func {
	var funcs []*ir.Func
	var walk func(in ir.Instr)
	walk = func(in ir.Instr) {
		switch i := in.(type) {
		case *ir.Program:
			for _, child := range i.Body {
				walk(child)
			}
		case *ir.Block:
			for _, child := range i.Body {
				walk(child)
			}
		case *ir.CondBr:
			if i.Then != nil {
				walk(i.Then)
			}
			if i.Else != nil {
				walk(i.Else)
			}
		case *ir.Func:
			funcs = append(funcs, i)
			if i.Body != nil {
				walk(i.Body)
			}
		}
	}
	for _, in := range body {
		walk(in)
	}
	return funcs
}
