package interp

import (
	"github.com/synth-lang/synth/internal/ir"
)

type frame map[string]ir.Value

// environment is a stack of frames. Lookups fall through from the
// innermost frame outward; bindings go to the innermost frame.
type environment struct {
	frames []frame
}

func newEnvironment() *environment {
	return &environment{frames: []frame{make(frame)}}
}

func (e *environment) push() {
	e.frames = append(e.frames, make(frame))
}

func (e *environment) pop() {
	if len(e.frames) > 1 {
		e.frames = e.frames[:len(e.frames)-1]
	}
}

func (e *environment) global() frame {
	return e.frames[0]
}

func (e *environment) bind(name string, v ir.Value) {
	e.frames[len(e.frames)-1][name] = v
}

func (e *environment) lookup(name string) (ir.Value, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if v, ok := e.frames[i][name]; ok {
			return v, true
		}
	}
	return ir.Value{}, false
}

// assign updates the nearest existing binding of name.
func (e *environment) assign(name string, v ir.Value) bool {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if _, ok := e.frames[i][name]; ok {
			e.frames[i][name] = v
			return true
		}
	}
	return false
}

// capture returns the current frame stack for a function value. The
// frames are shared, so bindings added to them later, the function's own
// name included, stay visible to calls.
func (e *environment) capture() []frame {
	return append([]frame(nil), e.frames...)
}

// enterCall replaces the frame stack with the function's captured stack
// plus callFrame and returns a function restoring the caller's stack. A
// function without a captured stack sees only the globals.
func (e *environment) enterCall(captured []frame, callFrame frame) func() {
	saved := e.frames
	if len(captured) == 0 {
		captured = saved[:1]
	}
	e.frames = append(append(make([]frame, 0, len(captured)+1), captured...), callFrame)
	return func() { e.frames = saved }
}
