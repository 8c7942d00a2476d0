// Command synth compiles synth programs: it interprets them directly or
// writes x86 assembly or LLVM IR into a build directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/synth-lang/synth/internal/cli"
	"github.com/synth-lang/synth/internal/codegen"
	"github.com/synth-lang/synth/internal/config"
	"github.com/synth-lang/synth/internal/diagnostic"
	"github.com/synth-lang/synth/internal/driver"
	"github.com/synth-lang/synth/internal/watch"
)

// watchQuiet is how long a burst of file events must settle before a
// rebuild starts.
const watchQuiet = 100 * time.Millisecond

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		target      = fs.String("target", "", "compilation target: "+strings.Join(append([]string{config.TargetInterp}, codegen.Targets()...), "|"))
		optLevel    = fs.Int("O", 0, "optimization level (0 disables constant folding)")
		emitIR      = fs.Bool("emit-ir", false, "print the lowered IR")
		emitAST     = fs.Bool("emit-ast", false, "print the parsed AST")
		debugLexer  = fs.Bool("debug-lexer", false, "print the token stream")
		outDir      = fs.String("out", "", "build directory for generated code")
		configPath  = fs.String("config", "", "project file (default: "+config.DefaultFileName+" next to the first source)")
		watchMode   = fs.Bool("watch", false, "recompile when the source file changes")
		initProject = fs.Bool("init", false, "write a project file with the given flags and exit")
		verbose     = fs.Bool("v", false, "verbose output")
		debugMode   = fs.Bool("debug", false, "debug output, including phase timings")
		showVersion = fs.Bool("version", false, "show version information")
		jsonOutput  = fs.Bool("json", false, "output version in JSON format")
		showHelp    = fs.Bool("help", false, "show help information")
	)

	fs.Usage = func() { usage(stderr, fs) }

	// Flags given on the command line override the project file.
	applyFlags := func(cfg *config.Config) {
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "target":
				cfg.Target = *target
			case "O":
				cfg.Optimization = *optLevel
			case "out":
				cfg.BuildDir = *outDir
			case "v":
				cfg.Verbose = *verbose
			case "debug":
				cfg.Debug = *debugMode
			}
		})
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		cli.PrintVersion(stdout, "synth", *jsonOutput)
		return 0
	}
	if *showHelp {
		usage(stdout, fs)
		return 0
	}

	if *initProject {
		path := *configPath
		if path == "" {
			path = config.DefaultFileName
		}
		cfg := config.Default()
		applyFlags(cfg)
		if err := initConfig(cfg, path); err != nil {
			diagnostic.PrintError(stderr, err, nil)
			return 1
		}
		fmt.Fprintf(stdout, "Wrote %s\n", path)
		return 0
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(stderr, "Error: No input file specified")
		usage(stderr, fs)
		return 1
	}
	if *watchMode && len(files) != 1 {
		fmt.Fprintln(stderr, "Error: -watch requires exactly one input file")
		return 1
	}

	path := *configPath
	if path == "" {
		path = filepath.Join(filepath.Dir(files[0]), config.DefaultFileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		diagnostic.PrintError(stderr, err, nil)
		return 1
	}

	applyFlags(cfg)
	if err := cfg.Validate(cli.Version); err != nil {
		diagnostic.PrintError(stderr, err, nil)
		return 1
	}

	logger := cli.NewLoggerTo(stderr, cfg.Verbose || cfg.Debug, cfg.Debug)
	d := driver.New(cfg, stdout, logger)
	d.DebugLexer = *debugLexer
	d.EmitAST = *emitAST
	d.EmitIR = *emitIR

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watchMode {
		return watchFile(ctx, d, files[0], stderr)
	}

	if len(files) == 1 {
		_, err = d.CompileFile(ctx, files[0])
	} else {
		_, err = d.CompileFiles(ctx, files)
	}
	if err != nil {
		report(stderr, err)
		return 1
	}
	return 0
}

// initConfig validates cfg and writes it to path. An existing file is
// left alone.
func initConfig(cfg *config.Config, path string) error {
	if err := cfg.Validate(cli.Version); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return cfg.SaveConfig(path)
}

// watchFile compiles file, then again after every change, until ctx is
// canceled. Compilation errors are reported and watching continues.
func watchFile(ctx context.Context, d *driver.Driver, file string, stderr io.Writer) int {
	w, err := watch.New()
	if err != nil {
		report(stderr, err)
		return 1
	}
	defer w.Close()

	if err := w.Add(file); err != nil {
		report(stderr, err)
		return 1
	}

	build := func() {
		if _, err := d.CompileFile(ctx, file); err != nil && ctx.Err() == nil {
			report(stderr, err)
		}
	}

	build()
	d.Log.Info("Watching %s for changes", file)

	err = w.Run(ctx, watchQuiet, func(ev watch.Event) {
		if ev.Op&(watch.OpWrite|watch.OpCreate|watch.OpRename) == 0 {
			return
		}
		d.Log.Info("%s changed (%s), recompiling", filepath.Base(ev.Path), ev.Op)
		build()
	})
	if err != nil {
		report(stderr, err)
		return 1
	}
	return 0
}

func report(w io.Writer, err error) {
	var fe *driver.FileError
	if errors.As(err, &fe) {
		diagnostic.PrintError(w, fe.Err, fe.Source)
		return
	}
	diagnostic.PrintError(w, err, nil)
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "synth - compile and run synth programs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "    synth [OPTIONS] <FILE>...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "    synth hello.syn")
	fmt.Fprintln(w, "    synth -O 1 -emit-ir hello.syn")
	fmt.Fprintln(w, "    synth -target llvm -out build hello.syn")
	fmt.Fprintln(w, "    synth -watch hello.syn")
	fmt.Fprintln(w, "    synth -init -target llvm -O 1")
}
