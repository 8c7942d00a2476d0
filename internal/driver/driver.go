// Package driver runs the synth pipeline: lex, parse, lower, then either
// interpret the program or hand it to a code generator.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/synth-lang/synth/internal/ast"
	"github.com/synth-lang/synth/internal/cli"
	"github.com/synth-lang/synth/internal/codegen"
	"github.com/synth-lang/synth/internal/comptime"
	"github.com/synth-lang/synth/internal/config"
	"github.com/synth-lang/synth/internal/interp"
	"github.com/synth-lang/synth/internal/ir"
	"github.com/synth-lang/synth/internal/lexer"
	"github.com/synth-lang/synth/internal/lower"
	"github.com/synth-lang/synth/internal/parser"
	"github.com/synth-lang/synth/internal/position"
)

// Driver compiles synth sources according to a project configuration.
type Driver struct {
	Config *config.Config
	// Out receives program output, compile-time output and dumps.
	Out io.Writer
	Log *cli.Logger

	DebugLexer bool
	EmitAST    bool
	EmitIR     bool

	// Jobs bounds concurrent compilations in CompileFiles. Zero means
	// one per CPU.
	Jobs int
}

// New creates a driver for cfg writing to out. A nil cfg uses the
// default configuration.
func New(cfg *config.Config, out io.Writer, logger *cli.Logger) *Driver {
	if cfg == nil {
		cfg = config.Default()
	}
	if out == nil {
		out = io.Discard
	}
	return &Driver{Config: cfg, Out: out, Log: logger}
}

// Result describes one compiled source.
type Result struct {
	File    string
	Program *ir.Program
	// Value is the program's final value under the interpreter target.
	Value *ir.Value
	// Artifact is the path of the generated file under a code generation
	// target.
	Artifact string
	// Output holds what the program printed when compiled by CompileFiles.
	Output []byte
}

// FileError is a pipeline failure in one source file. It keeps the
// source so the failure can be shown with a snippet.
type FileError struct {
	File   string
	Source *position.SourceFile
	Err    error
}

func (e *FileError) Error() string {
	return e.Err.Error()
}

func (e *FileError) Unwrap() error { return e.Err }

// CompileFile reads and compiles one file, writing output to d.Out.
func (d *Driver) CompileFile(ctx context.Context, file string) (*Result, error) {
	return d.compileFileTo(ctx, file, d.Out)
}

func (d *Driver) compileFileTo(ctx context.Context, file string, out io.Writer) (*Result, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return d.compile(ctx, file, string(data), out)
}

// CompileSource compiles src as if it were read from file.
func (d *Driver) CompileSource(ctx context.Context, file, src string) (*Result, error) {
	return d.compile(ctx, file, src, d.Out)
}

// CompileFiles compiles independent files concurrently, each with its own
// lowerer and interpreter. Program output is buffered per file and
// written to d.Out in argument order once every file succeeded. The first
// failure cancels the remaining compilations.
func (d *Driver) CompileFiles(ctx context.Context, files []string) ([]*Result, error) {
	results := make([]*Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.jobs())

	for i, file := range files {
		i, file := i, file

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			res, err := d.compileFileTo(gctx, file, &buf)
			if err != nil {
				return err
			}
			res.Output = buf.Bytes()
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range results {
		if _, err := d.Out.Write(res.Output); err != nil {
			return nil, fmt.Errorf("failed to write output: %w", err)
		}
	}
	return results, nil
}

func (d *Driver) jobs() int {
	if d.Jobs > 0 {
		return d.Jobs
	}
	return runtime.NumCPU()
}

func (d *Driver) compile(ctx context.Context, file, src string, out io.Writer) (*Result, error) {
	fail := func(err error) (*Result, error) {
		return nil, &FileError{File: file, Source: position.NewSourceFile(file, src), Err: err}
	}

	opts := d.Config.Options(file)
	d.Log.Info("Compiling %s (target=%s, O%d)", filepath.Base(file), d.target(), opts.Optimization)

	if d.DebugLexer {
		if err := d.dumpTokens(out, file, src); err != nil {
			return fail(err)
		}
	}

	done := d.Log.Timed("parse")
	program, err := parser.ParseSource(src, file)
	done()
	if err != nil {
		return fail(err)
	}
	if d.EmitAST {
		fmt.Fprint(out, ast.Dump(program))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done = d.Log.Timed("lower")
	lowerer := lower.New(opts, comptime.New(opts, out, d.Log), d.Log)
	prog, err := lowerer.Lower(program)
	done()
	if err != nil {
		return fail(err)
	}
	if d.EmitIR {
		fmt.Fprint(out, ir.Format(prog))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{File: file, Program: prog}

	if d.target() == config.TargetInterp {
		done = d.Log.Timed("interpret")
		res.Value, err = interp.New(opts, out, d.Log).Execute(prog)
		done()
		if err != nil {
			return fail(err)
		}
		return res, nil
	}

	backend, err := codegen.ForTarget(d.target(), opts)
	if err != nil {
		return fail(err)
	}
	done = d.Log.Timed("codegen")
	text, err := backend.Emit(prog)
	done()
	if err != nil {
		return fail(err)
	}

	res.Artifact, err = d.writeArtifact(file, backend.Extension(), text)
	if err != nil {
		return nil, err
	}
	d.Log.Info("Wrote %s", res.Artifact)
	return res, nil
}

func (d *Driver) target() string {
	if d.Config.Target == "" {
		return config.TargetInterp
	}
	return d.Config.Target
}

func (d *Driver) dumpTokens(out io.Writer, file, src string) error {
	done := d.Log.Timed("lex")
	defer done()

	tokens, err := lexer.Tokenize(src, file)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, strings.Repeat("=", 50))
	for _, tok := range tokens {
		fmt.Fprintf(out, "%-8s %s\n", positionOf(tok.Span.Start), tok)
	}
	fmt.Fprintln(out, strings.Repeat("=", 50))
	return nil
}

func positionOf(p position.Position) string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// ArtifactPath is where the artifact for file is written.
func (d *Driver) ArtifactPath(file, ext string) string {
	dir := d.Config.BuildDir
	if dir == "" {
		dir = "build"
	}
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(dir, base+ext)
}

func (d *Driver) writeArtifact(file, ext, text string) (string, error) {
	path := d.ArtifactPath(file, ext)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create build directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
