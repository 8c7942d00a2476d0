// Package diagnostic renders compiler errors for humans: a headline with
// the error category and code, the source location, and the offending
// source lines with a caret underline.
package diagnostic

import (
	"errors"
	"fmt"
	"io"
	"strings"

	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/position"
	"github.com/synth-lang/synth/internal/term"
)

// DiagnosticLevel represents the severity level of a diagnostic message.
type DiagnosticLevel int

const (
	DiagnosticError DiagnosticLevel = iota
	DiagnosticWarning
	DiagnosticNote
)

func (dl DiagnosticLevel) String() string {
	switch dl {
	case DiagnosticError:
		return "error"
	case DiagnosticWarning:
		return "warning"
	case DiagnosticNote:
		return "note"
	default:
		return "unknown"
	}
}

var levelColors = map[DiagnosticLevel]string{
	DiagnosticError:   "\x1b[1;31m",
	DiagnosticWarning: "\x1b[1;33m",
	DiagnosticNote:    "\x1b[1;36m",
}

const (
	colorBold  = "\x1b[1m"
	colorBlue  = "\x1b[34m"
	colorReset = "\x1b[0m"
)

// Diagnostic represents a single diagnostic message.
type Diagnostic struct {
	Code     string
	Category string
	Message  string
	Notes    []string
	Span     position.Span
	Level    DiagnosticLevel
}

// DiagnosticBuilder helps construct diagnostic messages with fluent API.
type DiagnosticBuilder struct {
	diagnostic *Diagnostic
}

// NewDiagnostic creates a new diagnostic builder.
func NewDiagnostic() *DiagnosticBuilder {
	return &DiagnosticBuilder{diagnostic: &Diagnostic{}}
}

func (db *DiagnosticBuilder) Error() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticError

	return db
}

func (db *DiagnosticBuilder) Warning() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticWarning

	return db
}

func (db *DiagnosticBuilder) Category(category string) *DiagnosticBuilder {
	db.diagnostic.Category = category

	return db
}

func (db *DiagnosticBuilder) Code(code string) *DiagnosticBuilder {
	db.diagnostic.Code = code

	return db
}

func (db *DiagnosticBuilder) Message(message string) *DiagnosticBuilder {
	db.diagnostic.Message = message

	return db
}

func (db *DiagnosticBuilder) Span(span position.Span) *DiagnosticBuilder {
	db.diagnostic.Span = span

	return db
}

func (db *DiagnosticBuilder) Note(note string) *DiagnosticBuilder {
	db.diagnostic.Notes = append(db.diagnostic.Notes, note)

	return db
}

func (db *DiagnosticBuilder) Build() *Diagnostic {
	return db.diagnostic
}

// FromError converts err into an error diagnostic. A *CompilerError
// anywhere in the chain contributes its category, code and span; other
// errors keep only their message.
func FromError(err error) *Diagnostic {
	var ce *serrors.CompilerError
	if !errors.As(err, &ce) {
		return NewDiagnostic().Error().Message(err.Error()).Build()
	}

	b := NewDiagnostic().
		Error().
		Category(string(ce.Category)).
		Code(ce.Code).
		Message(ce.Message).
		Span(ce.Span)
	if wrapped := err.Error(); ce != err && !strings.Contains(wrapped, ce.Message) {
		b.Note(wrapped)
	}
	return b.Build()
}

// Renderer formats diagnostics, optionally with ANSI colors.
type Renderer struct {
	Color bool
}

// NewRenderer creates a renderer that colors output when w is a terminal.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{Color: term.IsTerminalWriter(w)}
}

// Format renders diag. src may be nil, in which case no snippet is shown.
func (r *Renderer) Format(diag *Diagnostic, src *position.SourceFile) string {
	var result strings.Builder

	head := diag.Level.String()
	if diag.Category != "" || diag.Code != "" {
		head += fmt.Sprintf("[%s:%s]", diag.Category, diag.Code)
	}
	result.WriteString(r.paint(levelColors[diag.Level], head))
	result.WriteString(r.paint(colorBold, ": "+diag.Message))
	result.WriteString("\n")

	if diag.Span.Start.IsValid() {
		fmt.Fprintf(&result, "  %s %s\n", r.paint(colorBlue, "-->"), diag.Span.Start)
		if snippet := src.Highlight(diag.Span); snippet != "" {
			result.WriteString(r.paintSnippet(snippet))
		}
	}

	for _, note := range diag.Notes {
		fmt.Fprintf(&result, "  = note: %s\n", note)
	}

	return result.String()
}

// Print renders diag to w.
func (r *Renderer) Print(w io.Writer, diag *Diagnostic, src *position.SourceFile) {
	fmt.Fprint(w, r.Format(diag, src))
}

// PrintError renders err to w, using a source snippet from src when the
// error carries a span.
func PrintError(w io.Writer, err error, src *position.SourceFile) {
	NewRenderer(w).Print(w, FromError(err), src)
}

func (r *Renderer) paint(color, s string) string {
	if !r.Color || color == "" {
		return s
	}
	return color + s + colorReset
}

// paintSnippet colors the gutters and carets of a highlighted snippet.
func (r *Renderer) paintSnippet(snippet string) string {
	if !r.Color {
		return snippet
	}
	lines := strings.SplitAfter(snippet, "\n")
	for i, line := range lines {
		gutter, rest, ok := strings.Cut(line, "| ")
		if !ok {
			continue
		}
		if strings.TrimSpace(gutter) == "" {
			rest = r.paint(levelColors[DiagnosticError], strings.TrimSuffix(rest, "\n")) + "\n"
		}
		lines[i] = r.paint(colorBlue, gutter+"| ") + rest
	}
	return strings.Join(lines, "")
}
