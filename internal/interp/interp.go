// Package interp executes IR programs directly.
//
// The interpreter walks the instruction tree, keeping named slots in a
// frame-stack environment. Names absent from every frame fall back to the
// built-ins printf and __file__. Any failure aborts execution with an
// INTERPRET error.
package interp

import (
	"io"
	"sort"

	"github.com/synth-lang/synth/internal/cli"
	"github.com/synth-lang/synth/internal/config"
	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/ir"
)

// maxRefChain bounds recursive reference resolution.
const maxRefChain = 64

// Interpreter owns one environment. It is not safe for concurrent use.
type Interpreter struct {
	opts  *config.Options
	out   io.Writer
	log   *cli.Logger
	env   *environment
	depth int
}

// New creates an interpreter writing intrinsic output to out.
func New(opts *config.Options, out io.Writer, logger *cli.Logger) *Interpreter {
	if opts == nil {
		opts = config.NewOptions("", 0)
	}
	if out == nil {
		out = io.Discard
	}
	return &Interpreter{
		opts: opts,
		out:  out,
		log:  logger,
		env:  newEnvironment(),
	}
}

// Lookup resolves name the way a reference would, including built-ins.
func (it *Interpreter) Lookup(name string) (ir.Value, bool) {
	if v, ok := it.env.lookup(name); ok {
		return v, true
	}
	return it.builtin(name)
}

// Globals returns a snapshot of the outermost frame.
func (it *Interpreter) Globals() map[string]ir.Value {
	snapshot := make(map[string]ir.Value, len(it.env.global()))
	for name, v := range it.env.global() {
		snapshot[name] = v
	}
	return snapshot
}

// GlobalNames returns the names bound in the outermost frame, sorted.
func (it *Interpreter) GlobalNames() []string {
	names := make([]string, 0, len(it.env.global()))
	for name := range it.env.global() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (it *Interpreter) builtin(name string) (ir.Value, bool) {
	switch name {
	case "printf":
		return ir.IntrinsicValue(ir.IntrinsicPrintf), true
	case "__file__":
		return ir.String(it.opts.CurrentFile), true
	default:
		return ir.Value{}, false
	}
}

// resolve follows references until a non-reference value is reached.
func (it *Interpreter) resolve(v ir.Value) (ir.Value, error) {
	for i := 0; v.Kind == ir.ValRef; i++ {
		if i == maxRefChain {
			return ir.Value{}, serrors.UnresolvedName(v.Ref)
		}
		next, ok := it.Lookup(v.Ref)
		if !ok {
			return ir.Value{}, serrors.UnresolvedName(v.Ref)
		}
		v = next
	}
	return v, nil
}

// Execute runs in and returns its value, or nil when it produces none.
// Program and Block yield the value of their last child.
func (it *Interpreter) Execute(in ir.Instr) (*ir.Value, error) {
	switch i := in.(type) {
	case *ir.Program:
		return it.executeBody(i.Body)
	case *ir.Block:
		if i.NewScope {
			it.env.push()
			defer it.env.pop()
		}
		return it.executeBody(i.Body)
	case *ir.StackVar:
		return it.executeStackVar(i)
	case *ir.Load:
		v, err := it.resolve(ir.Ref(i.Src))
		if err != nil {
			return nil, err
		}
		it.env.bind(i.Dst, v)
		return &v, nil
	case *ir.Store:
		v, err := it.resolve(i.Val)
		if err != nil {
			return nil, err
		}
		if !it.env.assign(i.Dst, v) {
			return nil, serrors.UndeclaredAssign(i.Dst)
		}
		return nil, nil
	case *ir.BinOp:
		return it.executeBinOp(i)
	case *ir.Call:
		return it.executeCall(i)
	case *ir.CondBr:
		return it.executeCondBr(i)
	case *ir.Func:
		fn := i.Function()
		fn.Env = it.env.capture()
		it.env.bind(i.Name, ir.FuncValue(fn))
		it.log.Debug("bound function %s/%d", i.Name, len(i.Params))
		return nil, nil
	case *ir.TypeDecl:
		it.env.bind(i.Name, ir.TypeValue(i.StructType()))
		return nil, nil
	default:
		return nil, serrors.UnsupportedInstr(ir.KindName(in))
	}
}

func (it *Interpreter) executeBody(body []ir.Instr) (*ir.Value, error) {
	var last *ir.Value
	for _, in := range body {
		v, err := it.Execute(in)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

// executeStackVar binds the initializer, or the zero value of the
// declared type. A declaration yields no value.
func (it *Interpreter) executeStackVar(i *ir.StackVar) (*ir.Value, error) {
	var v ir.Value
	if i.Init != nil {
		resolved, err := it.resolve(*i.Init)
		if err != nil {
			return nil, err
		}
		v = resolved
	} else {
		zero, ok := ir.ZeroValue(i.Type)
		if !ok {
			return nil, serrors.UnsupportedType("stack_var "+i.Name, "type "+i.Type.String())
		}
		v = zero
	}
	it.env.bind(i.Name, v)
	return nil, nil
}

func (it *Interpreter) executeBinOp(i *ir.BinOp) (*ir.Value, error) {
	lhs, err := it.resolve(i.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := it.resolve(i.RHS)
	if err != nil {
		return nil, err
	}
	if lhs.Kind != ir.ValInt {
		return nil, serrors.UnsupportedType(i.Op.String(), lhs.Describe())
	}
	if rhs.Kind != ir.ValInt {
		return nil, serrors.UnsupportedType(i.Op.String(), rhs.Describe())
	}

	var result ir.Value
	switch i.Op {
	case ir.OpAdd:
		result = ir.Int(lhs.Int + rhs.Int)
	case ir.OpSub:
		result = ir.Int(lhs.Int - rhs.Int)
	default:
		return nil, serrors.UnsupportedInstr(i.Op.String())
	}
	it.env.bind(i.Dst, result)
	return &result, nil
}

func (it *Interpreter) executeCondBr(i *ir.CondBr) (*ir.Value, error) {
	cond, err := it.resolve(i.Cond)
	if err != nil {
		return nil, err
	}

	var truthy bool
	switch cond.Kind {
	case ir.ValInt:
		truthy = cond.Int > 0
	case ir.ValFloat:
		truthy = cond.Float > 0
	default:
		return nil, serrors.UnknownCondition(cond.Describe())
	}

	branch := i.Else
	if truthy {
		branch = i.Then
	}
	if branch != nil {
		if _, err := it.Execute(branch); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
