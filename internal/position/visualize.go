package position

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Highlight returns the lines covered by span, with up to one line of
// context on each side and a caret underline beneath the spanned columns.
func (sf *SourceFile) Highlight(span Span) string {
	if sf == nil || !span.Start.IsValid() {
		return ""
	}

	end := span.End
	if !end.IsValid() || end.Line < span.Start.Line {
		end = span.Start
	}

	var result strings.Builder

	startLine := max(1, span.Start.Line-1)
	endLine := min(sf.LineCount(), end.Line+1)

	for lineNum := startLine; lineNum <= endLine; lineNum++ {
		line := sf.GetLine(lineNum)
		fmt.Fprintf(&result, "%4d | %s\n", lineNum, line)

		if lineNum < span.Start.Line || lineNum > end.Line {
			continue
		}

		startCol, endCol := 1, utf8.RuneCountInString(line)+1
		if lineNum == span.Start.Line {
			startCol = span.Start.Column
		}
		if lineNum == end.Line {
			endCol = end.Column
		}

		result.WriteString("     | ")
		writeUnderline(&result, startCol, endCol)
		result.WriteString("\n")
	}

	return result.String()
}

func writeUnderline(result *strings.Builder, startCol, endCol int) {
	if startCol < 1 {
		startCol = 1
	}
	if endCol <= startCol {
		endCol = startCol + 1
	}
	result.WriteString(strings.Repeat(" ", startCol-1))
	result.WriteString(strings.Repeat("^", endCol-startCol))
}
