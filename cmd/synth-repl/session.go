package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/synth-lang/synth/internal/cli"
	"github.com/synth-lang/synth/internal/comptime"
	"github.com/synth-lang/synth/internal/config"
	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/interp"
	"github.com/synth-lang/synth/internal/ir"
	"github.com/synth-lang/synth/internal/lower"
	"github.com/synth-lang/synth/internal/parser"
)

const replFile = "<repl>"

// Session keeps lowering counters and the interpreter environment alive
// across inputs, so later lines see earlier declarations.
type Session struct {
	opts *config.Options
	out  io.Writer
	log  *cli.Logger

	lowerer *lower.Lowerer
	it      *interp.Interpreter
	// lowered accumulates every instruction executed so far, for :ir.
	lowered []ir.Instr
}

// NewSession creates an empty session writing program output to out.
func NewSession(opts *config.Options, out io.Writer, logger *cli.Logger) *Session {
	if opts == nil {
		opts = config.NewOptions(replFile, 0)
	}
	s := &Session{opts: opts, out: out, log: logger}
	s.Reset()
	return s
}

// Reset drops every binding and restarts the name counters.
func (s *Session) Reset() {
	s.lowerer = lower.New(s.opts, comptime.New(s.opts, s.out, s.log), s.log)
	s.it = interp.New(s.opts, s.out, s.log)
	s.lowered = nil
}

// Eval lowers and runs src statement by statement. It returns the value
// of the last statement, with references resolved, or nil when the last
// statement has none. Statements before a failing one stay in effect.
func (s *Session) Eval(src string) (*ir.Value, error) {
	program, err := parser.ParseSource(src, replFile)
	if err != nil {
		return nil, err
	}

	var result *ir.Value
	for _, stmt := range program.Body {
		var body []ir.Instr
		v, err := s.lowerer.LowerInto(stmt, &body)
		if err != nil {
			return nil, err
		}

		var last *ir.Value
		for _, in := range body {
			last, err = s.it.Execute(in)
			if err != nil {
				return nil, err
			}
			s.lowered = append(s.lowered, in)
		}

		result, err = s.valueOf(v, last)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Session) valueOf(v, last *ir.Value) (*ir.Value, error) {
	if v == nil {
		return last, nil
	}
	if v.Kind != ir.ValRef {
		return v, nil
	}
	resolved, ok := s.it.Lookup(v.Ref)
	if !ok {
		return nil, serrors.UnresolvedName(v.Ref)
	}
	return &resolved, nil
}

// Load evaluates the contents of file.
func (s *Session) Load(file string) (*ir.Value, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return s.Eval(string(data))
}

// IR renders every instruction executed in this session.
func (s *Session) IR() string {
	return ir.Format(&ir.Program{Body: s.lowered})
}

// Vars lists the global bindings, sorted by name. Synthetic temporaries
// are skipped.
func (s *Session) Vars() []string {
	globals := s.it.Globals()
	var lines []string
	for _, name := range s.it.GlobalNames() {
		if strings.HasPrefix(name, "%") {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s = %s", name, globals[name]))
	}
	return lines
}

// incomplete reports whether err means the input ended early and more
// lines could complete it.
func incomplete(err error) bool {
	var ce *serrors.CompilerError
	return errors.As(err, &ce) && ce.Code == serrors.CodeUnexpectedEOF
}

func needsMore(src string) bool {
	_, err := parser.ParseSource(src, replFile)
	return incomplete(err)
}
