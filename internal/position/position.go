// Package position provides source positions and spans for the synth
// compiler. Tokens, AST nodes and compiler errors all carry a Span so that
// diagnostics can point back at the offending source text.
package position

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Position is a point in a source file. Line and Column are 1-based,
// Offset is a 0-based byte offset.
type Position struct {
	Filename string
	Line     int
	Column   int
	Offset   int
}

// IsValid reports whether p points into a file.
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0 && p.Offset >= 0
}

// String renders p as file:line:col with the file's base name, or
// line:col when the file is unknown.
func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", filepath.Base(p.Filename), p.Line, p.Column)
}

// Compare orders positions by file name, then by offset. It returns -1,
// 0 or +1.
func Compare(a, b Position) int {
	switch {
	case a.Filename != b.Filename:
		return strings.Compare(a.Filename, b.Filename)
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	default:
		return 0
	}
}

// Span is the half-open source range [Start, End).
type Span struct {
	Start Position
	End   Position
}

// IsValid reports whether both ends are valid, in one file, and ordered.
func (s Span) IsValid() bool {
	return s.Start.IsValid() && s.End.IsValid() &&
		s.Start.Filename == s.End.Filename &&
		s.Start.Offset <= s.End.Offset
}

// Len is the number of bytes covered by s.
func (s Span) Len() int {
	if !s.IsValid() {
		return 0
	}
	return s.End.Offset - s.Start.Offset
}

// Contains reports whether p lies inside s.
func (s Span) Contains(p Position) bool {
	return s.IsValid() && p.Filename == s.Start.Filename &&
		p.Offset >= s.Start.Offset && p.Offset < s.End.Offset
}

func (s Span) String() string {
	prefix := ""
	if s.Start.Filename != "" {
		prefix = filepath.Base(s.Start.Filename) + ":"
	}
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%s%d:%d-%d", prefix, s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("%s%d:%d-%d:%d", prefix, s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Union returns the smallest span covering s and other. An invalid span
// contributes nothing; spans from different files keep s.
func (s Span) Union(other Span) Span {
	switch {
	case !s.IsValid():
		return other
	case !other.IsValid(), s.Start.Filename != other.Start.Filename:
		return s
	}

	if Compare(other.Start, s.Start) < 0 {
		s.Start = other.Start
	}
	if Compare(other.End, s.End) > 0 {
		s.End = other.End
	}
	return s
}

// SourceFile is the text of one source file with a line index.
type SourceFile struct {
	Filename string
	Content  string
	// lineStarts holds the byte offset at which each line begins.
	lineStarts []int
}

// NewSourceFile indexes content.
func NewSourceFile(filename, content string) *SourceFile {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &SourceFile{Filename: filename, Content: content, lineStarts: starts}
}

// LineCount is the number of lines, counting a trailing empty line.
func (sf *SourceFile) LineCount() int {
	return len(sf.lineStarts)
}

// GetLine returns line lineNum (1-based) without its line terminator, or
// "" when out of range.
func (sf *SourceFile) GetLine(lineNum int) string {
	if lineNum < 1 || lineNum > len(sf.lineStarts) {
		return ""
	}
	start := sf.lineStarts[lineNum-1]
	end := len(sf.Content)
	if lineNum < len(sf.lineStarts) {
		end = sf.lineStarts[lineNum] - 1
	}
	return strings.TrimRight(sf.Content[start:end], "\r")
}

// PositionAt converts a byte offset into a Position. Offsets past the end
// clamp to the end of the file.
func (sf *SourceFile) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(sf.Content) {
		offset = len(sf.Content)
	}
	line := sort.Search(len(sf.lineStarts), func(i int) bool {
		return sf.lineStarts[i] > offset
	})
	return Position{
		Filename: sf.Filename,
		Line:     line,
		Column:   offset - sf.lineStarts[line-1] + 1,
		Offset:   offset,
	}
}

// GetSpanText returns the text covered by span, or "" when span does not
// fit the file.
func (sf *SourceFile) GetSpanText(span Span) string {
	if !span.IsValid() || span.End.Offset > len(sf.Content) {
		return ""
	}
	return sf.Content[span.Start.Offset:span.End.Offset]
}
