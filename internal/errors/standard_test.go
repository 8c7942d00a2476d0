package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/synth-lang/synth/internal/position"
)

func TestCompilerErrorFormat(t *testing.T) {
	err := UnresolvedName("x")
	if got := err.Error(); got != "[INTERPRET:UNRESOLVED_NAME] variable not found: x" {
		t.Errorf("unexpected message %q", got)
	}
	if !strings.Contains(err.Caller, "TestCompilerErrorFormat") {
		t.Errorf("caller should point at the test, got %q", err.Caller)
	}

	span := position.Span{
		Start: position.Position{Filename: "a.syn", Line: 2, Column: 5, Offset: 12},
		End:   position.Position{Filename: "a.syn", Line: 2, Column: 6, Offset: 13},
	}
	located := UnsupportedOperator("*", span)
	if got := located.Error(); got != `a.syn:2:5: [LOWER:UNSUPPORTED_OPERATOR] unsupported operator "*"` {
		t.Errorf("unexpected message %q", got)
	}
}

func TestCompilerErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("run main.syn: %w", UnknownCondition("\"s\""))

	if !stderrors.Is(wrapped, Template(CategoryInterpret, CodeUnknownCondition)) {
		t.Error("expected errors.Is to match category and code")
	}
	if stderrors.Is(wrapped, Template(CategoryInterpret, CodeUnresolvedName)) {
		t.Error("different code must not match")
	}

	var ce *CompilerError
	if !stderrors.As(wrapped, &ce) {
		t.Fatal("expected errors.As to find *CompilerError")
	}
	if ce.Context["value"] != "\"s\"" {
		t.Errorf("context lost: %v", ce.Context)
	}
}

func TestWithSpan(t *testing.T) {
	span := position.Span{
		Start: position.Position{Line: 1, Column: 1},
		End:   position.Position{Line: 1, Column: 2, Offset: 1},
	}
	err := UnresolvedName("y")
	located := err.WithSpan(span)
	if located == err {
		t.Fatal("WithSpan should copy the error")
	}
	if err.Span.Start.IsValid() {
		t.Error("original error must stay unlocated")
	}
	if again := located.WithSpan(position.Span{}); again != located {
		t.Error("an already located error keeps its span")
	}
}
