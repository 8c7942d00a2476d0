package interp

import (
	"io"

	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/ir"
)

func (it *Interpreter) executeCall(i *ir.Call) (*ir.Value, error) {
	callee, err := it.resolve(i.Callee)
	if err != nil {
		return nil, err
	}

	args := make([]ir.Value, 0, len(i.Args))
	for _, arg := range i.Args {
		v, err := it.resolve(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	var result *ir.Value
	switch callee.Kind {
	case ir.ValIntrinsic:
		result, err = it.callIntrinsic(callee.Intrinsic, args)
	case ir.ValFunc:
		result, err = it.callFunction(callee.Func, args)
	default:
		return nil, serrors.NotCallable(callee.Describe())
	}
	if err != nil {
		return nil, err
	}

	if result != nil {
		it.env.bind(i.Dst, *result)
	}
	return result, nil
}

func (it *Interpreter) callIntrinsic(intrinsic ir.Intrinsic, args []ir.Value) (*ir.Value, error) {
	switch intrinsic {
	case ir.IntrinsicPrintf:
		return it.printf(args)
	default:
		return nil, serrors.NotCallable(ir.IntrinsicValue(intrinsic).Describe())
	}
}

// printf writes its single int, float or string argument followed by a
// newline and yields the number of bytes written.
func (it *Interpreter) printf(args []ir.Value) (*ir.Value, error) {
	if len(args) != 1 {
		return nil, serrors.ArityMismatch("printf", 1, len(args))
	}
	arg := args[0]
	if !arg.IsImmediate() {
		return nil, serrors.UnsupportedType("printf", arg.Describe())
	}

	n, err := io.WriteString(it.out, arg.Display()+"\n")
	if err != nil {
		return nil, serrors.OutputFailed("printf", err)
	}
	result := ir.Int(int32(n))
	return &result, nil
}

// callFunction runs fn with the frame stack it was defined in plus a call
// frame. The body's value is the call's result; a body without a value
// yields none.
func (it *Interpreter) callFunction(fn *ir.Function, args []ir.Value) (*ir.Value, error) {
	if len(args) != len(fn.Params) {
		return nil, serrors.ArityMismatch(fn.Name, len(fn.Params), len(args))
	}
	if limit := it.opts.CallDepthLimit(); it.depth >= limit {
		return nil, serrors.CallDepthExceeded(limit)
	}
	if fn.Body == nil {
		return nil, nil
	}

	callFrame := make(frame, len(args))
	for idx, param := range fn.Params {
		callFrame[param.Name] = args[idx]
	}

	captured, _ := fn.Env.([]frame)
	restore := it.env.enterCall(captured, callFrame)
	it.depth++
	defer func() {
		it.depth--
		restore()
	}()

	result, err := it.Execute(fn.Body)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	v, err := it.resolve(*result)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
