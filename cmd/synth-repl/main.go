// Command synth-repl is an interactive read-eval-print loop over a
// persistent synth interpreter.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/synth-lang/synth/internal/cli"
	"github.com/synth-lang/synth/internal/config"
	"github.com/synth-lang/synth/internal/diagnostic"
	"github.com/synth-lang/synth/internal/ir"
	"github.com/synth-lang/synth/internal/position"
)

const (
	promptMain = "synth> "
	promptCont = "  ...> "
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		showHelp    = flag.Bool("help", false, "show help information")
		jsonOutput  = flag.Bool("json", false, "output version in JSON format")
		debugMode   = flag.Bool("debug", false, "enable debug logging")
		optLevel    = flag.Int("O", 0, "optimization level (0 disables constant folding)")
		evalStr     = flag.String("eval", "", "evaluate source and exit")
		loadFile    = flag.String("load", "", "load and execute file before starting the REPL")
		historyFile = flag.String("history", defaultHistoryPath(), "history file path")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "synth interactive REPL (Read-Eval-Print Loop).\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nREPL COMMANDS:\n")
		printCommands(os.Stderr)
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # Start interactive REPL\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -eval \"const x = 2; x\"   # Evaluate and exit\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -load init.syn           # Load file and start REPL\n", os.Args[0])
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		cli.PrintVersion(os.Stdout, "synth REPL", *jsonOutput)
		os.Exit(0)
	}

	logger := cli.NewLogger(false, *debugMode)
	session := NewSession(config.NewOptions(replFile, *optLevel), os.Stdout, logger)

	if *loadFile != "" {
		if _, err := session.Load(*loadFile); err != nil {
			report(err, "")
			os.Exit(1)
		}
	}

	if *evalStr != "" {
		v, err := session.Eval(*evalStr)
		if err != nil {
			report(err, *evalStr)
			os.Exit(1)
		}
		printValue(v)
		os.Exit(0)
	}

	os.Exit(run(session, *historyFile))
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".synth_history"
	}
	return filepath.Join(home, ".synth_history")
}

func run(session *Session, historyPath string) int {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(historyPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	info := cli.GetVersionInfo()
	fmt.Printf("synth REPL v%s\n", info.Version)
	fmt.Println("Type :help for help, :quit to exit")
	fmt.Println()

	for {
		src, ok := readInput(ln)
		if !ok {
			fmt.Println()
			return 0
		}

		line := strings.TrimSpace(src)
		if line == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if strings.HasPrefix(line, ":") {
			if handleCommand(session, line) {
				return 0
			}
			continue
		}

		v, err := session.Eval(src)
		if err != nil {
			report(err, src)
			continue
		}
		printValue(v)
	}
}

// readInput reads one entry, prompting for continuation lines while the
// input so far ends in the middle of a construct.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder

	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || !needsMore(src) {
			return src, true
		}
	}
}

// handleCommand runs a :command and reports whether the REPL should exit.
func handleCommand(session *Session, cmd string) bool {
	parts := strings.Fields(cmd)

	switch parts[0] {
	case ":help", ":h":
		printCommands(os.Stdout)
	case ":quit", ":q", ":exit":
		fmt.Println("Goodbye!")
		return true
	case ":reset":
		session.Reset()
		fmt.Println("Environment reset")
	case ":ir":
		fmt.Print(session.IR())
	case ":vars":
		vars := session.Vars()
		if len(vars) == 0 {
			fmt.Println("No variables defined")
			break
		}
		for _, v := range vars {
			fmt.Printf("  %s\n", v)
		}
	case ":load":
		if len(parts) < 2 {
			fmt.Println("Usage: :load <file>")
			break
		}
		v, err := session.Load(parts[1])
		if err != nil {
			report(err, "")
			break
		}
		fmt.Printf("Loaded file: %s\n", parts[1])
		printValue(v)
	default:
		fmt.Printf("Unknown command: %s\n", parts[0])
		fmt.Println("Type :help for available commands")
	}

	return false
}

func printCommands(w io.Writer) {
	fmt.Fprintln(w, "  :help, :h          Show this help")
	fmt.Fprintln(w, "  :quit, :q, :exit   Exit REPL")
	fmt.Fprintln(w, "  :reset             Reset environment")
	fmt.Fprintln(w, "  :ir                Show the IR executed so far")
	fmt.Fprintln(w, "  :vars              Show current variables")
	fmt.Fprintln(w, "  :load <file>       Load and execute file")
}

func printValue(v *ir.Value) {
	if v != nil {
		fmt.Printf("=> %s\n", v)
	}
}

func report(err error, src string) {
	var file *position.SourceFile
	if src != "" {
		file = position.NewSourceFile(replFile, src)
	}
	diagnostic.PrintError(os.Stderr, err, file)
}
