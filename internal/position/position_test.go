package position

import (
	"strings"
	"testing"
)

func TestPosition(t *testing.T) {
	tests := []struct {
		name     string
		pos      Position
		valid    bool
		expected string
	}{
		{"valid with file", Position{Filename: "dir/main.syn", Line: 3, Column: 7, Offset: 20}, true, "main.syn:3:7"},
		{"valid without file", Position{Line: 1, Column: 1}, true, "1:1"},
		{"zero line", Position{Line: 0, Column: 1}, false, "0:1"},
		{"negative offset", Position{Line: 1, Column: 1, Offset: -1}, false, "1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, expected %v", got, tt.valid)
			}
			if got := tt.pos.String(); got != tt.expected {
				t.Errorf("String() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestSpanStringAndUnion(t *testing.T) {
	a := Span{
		Start: Position{Line: 1, Column: 1, Offset: 0},
		End:   Position{Line: 1, Column: 4, Offset: 3},
	}
	b := Span{
		Start: Position{Line: 2, Column: 2, Offset: 10},
		End:   Position{Line: 2, Column: 5, Offset: 13},
	}

	if got := a.String(); got != "1:1-4" {
		t.Errorf("expected=%q, got=%q", "1:1-4", got)
	}

	u := a.Union(b)
	if u.Start != a.Start || u.End != b.End {
		t.Errorf("union mismatch: %v", u)
	}
	if got := u.String(); got != "1:1-2:5" {
		t.Errorf("expected=%q, got=%q", "1:1-2:5", got)
	}

	if got := (Span{}).Union(b); got != b {
		t.Errorf("union with invalid span should return other, got %v", got)
	}
}

func TestSourceFile(t *testing.T) {
	sf := NewSourceFile("main.syn", "const x = 1\r\nconst y = x + 2\n")

	if got := sf.GetLine(1); got != "const x = 1" {
		t.Errorf("line 1: expected=%q, got=%q", "const x = 1", got)
	}
	if got := sf.GetLine(99); got != "" {
		t.Errorf("out of range line should be empty, got %q", got)
	}

	span := Span{
		Start: Position{Line: 1, Column: 7, Offset: 6},
		End:   Position{Line: 1, Column: 8, Offset: 7},
	}
	if got := sf.GetSpanText(span); got != "x" {
		t.Errorf("span text: expected=%q, got=%q", "x", got)
	}
}

func TestHighlight(t *testing.T) {
	sf := NewSourceFile("main.syn", "const a = 1\nconst b = a * 2\nprintf(b)")
	span := Span{
		Start: Position{Line: 2, Column: 13, Offset: 24},
		End:   Position{Line: 2, Column: 14, Offset: 25},
	}

	out := sf.Highlight(span)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), out)
	}
	if lines[1] != "   2 | const b = a * 2" {
		t.Errorf("unexpected source line %q", lines[1])
	}
	if lines[2] != "     |             ^" {
		t.Errorf("unexpected underline %q", lines[2])
	}
}

func TestCompareAndContains(t *testing.T) {
	a := Position{Filename: "a.syn", Line: 1, Column: 1, Offset: 0}
	b := Position{Filename: "a.syn", Line: 1, Column: 5, Offset: 4}
	other := Position{Filename: "b.syn", Line: 1, Column: 1, Offset: 0}

	tests := []struct {
		x, y     Position
		expected int
	}{
		{a, b, -1},
		{b, a, 1},
		{a, a, 0},
		{b, other, -1},
	}
	for _, tt := range tests {
		if got := Compare(tt.x, tt.y); got != tt.expected {
			t.Errorf("Compare(%v, %v) expected=%d, got=%d", tt.x, tt.y, tt.expected, got)
		}
	}

	span := Span{Start: a, End: b}
	if span.Len() != 4 {
		t.Errorf("Len expected=4, got=%d", span.Len())
	}
	if !span.Contains(a) || span.Contains(b) || span.Contains(other) {
		t.Errorf("Contains must treat the span as half-open within one file")
	}
}

func TestPositionAt(t *testing.T) {
	sf := NewSourceFile("main.syn", "ab\ncd\n")

	tests := []struct {
		offset       int
		line, column int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{2, 1, 3},
		{3, 2, 1},
		{5, 2, 3},
		{6, 3, 1},
		{99, 3, 1},
	}
	for _, tt := range tests {
		p := sf.PositionAt(tt.offset)
		if p.Line != tt.line || p.Column != tt.column {
			t.Errorf("PositionAt(%d) expected=%d:%d, got=%d:%d", tt.offset, tt.line, tt.column, p.Line, p.Column)
		}
	}
	if sf.LineCount() != 3 {
		t.Errorf("LineCount expected=3, got=%d", sf.LineCount())
	}
}
