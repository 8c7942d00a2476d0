package diagnostic

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/lower"
	"github.com/synth-lang/synth/internal/parser"
	"github.com/synth-lang/synth/internal/position"
)

func TestFromCompilerError(t *testing.T) {
	src := "const a = 1\nconst x = 2 * 3\nprintf(x)"
	program, err := parser.ParseSource(src, "test.syn")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	_, err = lower.New(nil, nil, nil).Lower(program)
	if err == nil {
		t.Fatal("expected a lowering error")
	}

	diag := FromError(err)
	if diag.Category != "LOWER" || diag.Code != serrors.CodeUnsupportedOperator {
		t.Fatalf("unexpected diagnostic %+v", diag)
	}

	out := (&Renderer{}).Format(diag, position.NewSourceFile("test.syn", src))
	for _, want := range []string{
		`error[LOWER:UNSUPPORTED_OPERATOR]: unsupported operator "*"`,
		"  --> test.syn:2:11\n",
		"   1 | const a = 1\n",
		"   2 | const x = 2 * 3\n",
		"     |           ^",
		"   3 | printf(x)\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no colors:\n%s", out)
	}
}

func TestErrorWithoutSpan(t *testing.T) {
	out := (&Renderer{}).Format(FromError(serrors.UnresolvedName("y")), nil)
	if out != "error[INTERPRET:UNRESOLVED_NAME]: variable not found: y\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWrappedErrorsKeepContext(t *testing.T) {
	err := fmt.Errorf("main.syn: %w", serrors.UnresolvedName("y"))
	diag := FromError(err)
	if diag.Code != serrors.CodeUnresolvedName || len(diag.Notes) != 0 {
		t.Fatalf("unexpected diagnostic %+v", diag)
	}

	plain := FromError(fmt.Errorf("read main.syn: permission denied"))
	out := (&Renderer{}).Format(plain, nil)
	if out != "error: read main.syn: permission denied\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestColoredOutput(t *testing.T) {
	diag := NewDiagnostic().
		Warning().
		Category("CONFIG").
		Code("INVALID_CONFIG").
		Message("bad target").
		Span(position.Span{Start: position.Position{Filename: "a.syn", Line: 1, Column: 1}, End: position.Position{Filename: "a.syn", Line: 1, Column: 4, Offset: 3}}).
		Note("targets are interp, x86, llvm").
		Build()

	out := (&Renderer{Color: true}).Format(diag, position.NewSourceFile("a.syn", "abc"))
	for _, want := range []string{
		"\x1b[1;33mwarning[CONFIG:INVALID_CONFIG]\x1b[0m",
		"\x1b[34m-->\x1b[0m a.syn:1:1",
		"\x1b[1;31m^^^\x1b[0m",
		"  = note: targets are interp, x86, llvm\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%q", want, out)
		}
	}
}

func TestPrintErrorToBuffer(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, serrors.CallDepthExceeded(10), nil)
	if !strings.HasPrefix(buf.String(), "error[INTERPRET:CALL_DEPTH_EXCEEDED]") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
