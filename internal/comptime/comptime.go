// Package comptime evaluates `comp` operands during lowering.
//
// Each evaluation runs the operand's sub-program on a fresh interpreter, so
// declarations made inside a comptime operand never reach the enclosing
// program. Side effects of intrinsics go to the evaluator's output sink in
// the order the operands are lowered.
package comptime

import (
	"io"
	"strings"

	"github.com/synth-lang/synth/internal/cli"
	"github.com/synth-lang/synth/internal/config"
	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/interp"
	"github.com/synth-lang/synth/internal/ir"
	"github.com/synth-lang/synth/internal/position"
)

// Evaluator runs comptime sub-programs.
type Evaluator struct {
	opts *config.Options
	out  io.Writer
	log  *cli.Logger
}

// New creates an evaluator writing compile-time output to out.
func New(opts *config.Options, out io.Writer, logger *cli.Logger) *Evaluator {
	if out == nil {
		out = io.Discard
	}
	return &Evaluator{opts: opts, out: out, log: logger}
}

// Evaluate executes prog in isolation and returns the constant it
// produced. The result is, in order of preference: operand itself when it
// is an immediate, the value bound to the operand reference, or the value
// of the last executed instruction. A named reference that is not bound
// in the isolated environment is an error; only temporaries fall back.
func (e *Evaluator) Evaluate(prog *ir.Program, operand *ir.Value) (ir.Value, error) {
	defer e.log.Timed("comptime")()

	it := interp.New(e.opts, e.out, e.log)
	last, err := it.Execute(prog)
	if err != nil {
		return ir.Value{}, err
	}

	var result *ir.Value
	switch {
	case operand != nil && operand.IsImmediate():
		result = operand
	case operand != nil && operand.Kind == ir.ValRef:
		v, ok := it.Lookup(operand.Ref)
		switch {
		case ok:
			result = &v
		case !strings.HasPrefix(operand.Ref, "%"):
			return ir.Value{}, serrors.UnresolvedName(operand.Ref)
		}
	}
	if result == nil {
		result = last
	}

	if result == nil {
		return ir.Value{}, serrors.MissingValue("comptime expression", position.Span{})
	}
	if !result.IsConstant() {
		return ir.Value{}, serrors.NotConstant(result.Describe(), position.Span{})
	}
	e.log.Debug("comptime result %s", result)
	return *result, nil
}
