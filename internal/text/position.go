// Package text provides position handling over buffer content.
//
// The host editor addresses the cursor as a 1-based line number and a 0-based
// byte column; the engine wire protocol uses the same convention. All math
// here is byte-based.
package text

import "strings"

// LineIndex provides fast row/column to byte-offset conversion over a
// buffer snapshot.
type LineIndex struct {
	content string
	lines   []lineInfo
}

// lineInfo stores information about a line for position conversion.
type lineInfo struct {
	byteOffset int // Byte offset of line start
	byteLen    int // Length in bytes, excluding the newline
}

// NewLineIndex creates a new index for the given content.
func NewLineIndex(content string) *LineIndex {
	idx := &LineIndex{content: content}
	idx.build()
	return idx
}

// build creates an index of all lines for fast position lookup.
func (idx *LineIndex) build() {
	idx.lines = nil

	lineStart := 0
	for i := 0; i < len(idx.content); i++ {
		if idx.content[i] == '\n' {
			idx.lines = append(idx.lines, lineInfo{
				byteOffset: lineStart,
				byteLen:    i - lineStart,
			})
			lineStart = i + 1
		}
	}

	// Last line may not end with a newline. An empty buffer still has one
	// (empty) line, matching how editors count lines.
	idx.lines = append(idx.lines, lineInfo{
		byteOffset: lineStart,
		byteLen:    len(idx.content) - lineStart,
	})
}

// Line returns the text of the given 1-based line, without its newline.
// Out-of-range rows return the empty string.
func (idx *LineIndex) Line(row int) string {
	if row < 1 || row > len(idx.lines) {
		return ""
	}
	info := idx.lines[row-1]
	return idx.content[info.byteOffset : info.byteOffset+info.byteLen]
}

// ClampRow clamps a 1-based row to the buffer's line range.
func (idx *LineIndex) ClampRow(row int) int {
	if row < 1 {
		return 1
	}
	if row > len(idx.lines) {
		return len(idx.lines)
	}
	return row
}

// ClampCol clamps a 0-based byte column to the length of the given line.
func (idx *LineIndex) ClampCol(row, col int) int {
	if col < 0 {
		return 0
	}
	row = idx.ClampRow(row)
	if max := idx.lines[row-1].byteLen; col > max {
		return max
	}
	return col
}

// Window returns the lines surrounding row: up to before lines above and
// after lines below, joined with newlines. Used to bound the context handed
// to a completion provider.
func (idx *LineIndex) Window(row, before, after int) string {
	row = idx.ClampRow(row)

	start := row - before
	if start < 1 {
		start = 1
	}
	end := row + after
	if end > len(idx.lines) {
		end = len(idx.lines)
	}

	var sb strings.Builder
	for r := start; r <= end; r++ {
		if r > start {
			sb.WriteByte('\n')
		}
		sb.WriteString(idx.Line(r))
	}
	return sb.String()
}
