// Package highlight maps correction ranges onto display positions.
package highlight

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"textcorrector/pkg/correction"
)

// Span is a highlighted run on one line. Line is 1-based, columns are
// 0-based rune offsets within the line, End exclusive.
type Span struct {
	Line  int
	Start int
	End   int
}

// Piece is a slice of text that is either changed or unchanged.
type Piece struct {
	Text    string
	Changed bool
}

// Locate converts ranges over text into line/column spans. A range that
// crosses a line break is split at the break; the break itself is not part
// of any span.
func Locate(text string, ranges []correction.Range) []Span {
	runes := []rune(text)
	lineOf := make([]int, len(runes)+1)
	colOf := make([]int, len(runes)+1)
	line, col := 1, 0
	for i, r := range runes {
		lineOf[i], colOf[i] = line, col
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	lineOf[len(runes)], colOf[len(runes)] = line, col

	var spans []Span
	for _, rg := range normalize(ranges, len(runes)) {
		start := rg.Start
		for i := rg.Start; i <= rg.End; i++ {
			if i == rg.End || runes[i] == '\n' {
				if i > start {
					spans = append(spans, Span{Line: lineOf[start], Start: colOf[start], End: colOf[start] + (i - start)})
				}
				start = i + 1
			}
		}
	}
	return spans
}

// Pieces splits text into alternating unchanged and changed pieces.
func Pieces(text string, ranges []correction.Range) []Piece {
	runes := []rune(text)
	var out []Piece
	pos := 0
	for _, rg := range normalize(ranges, len(runes)) {
		if rg.Start > pos {
			out = append(out, Piece{Text: string(runes[pos:rg.Start])})
		}
		out = append(out, Piece{Text: string(runes[rg.Start:rg.End]), Changed: true})
		pos = rg.End
	}
	if pos < len(runes) {
		out = append(out, Piece{Text: string(runes[pos:])})
	}
	return out
}

// Render writes text line by line. Each line containing changes is followed by
// a marker line with carets under the changed characters, aligned by display
// width so that wide CJK characters get two carets.
func Render(w io.Writer, text string, ranges []correction.Range) error {
	byLine := make(map[int][]Span)
	for _, s := range Locate(text, ranges) {
		byLine[s.Line] = append(byLine[s.Line], s)
	}

	bw := bufio.NewWriter(w)
	for i, line := range strings.Split(text, "\n") {
		bw.WriteString(line)
		bw.WriteByte('\n')
		spans := byLine[i+1]
		if len(spans) == 0 {
			continue
		}
		bw.WriteString(markerLine([]rune(line), spans))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func markerLine(line []rune, spans []Span) string {
	var b strings.Builder
	col := 0
	for _, s := range spans {
		if s.Start > col {
			b.WriteString(strings.Repeat(" ", runewidth.StringWidth(string(line[col:s.Start]))))
		}
		width := runewidth.StringWidth(string(line[s.Start:s.End]))
		if width == 0 {
			width = 1
		}
		b.WriteString(strings.Repeat("^", width))
		col = s.End
	}
	return b.String()
}

// normalize sorts ranges, clips them to n and merges overlaps.
func normalize(ranges []correction.Range, n int) []correction.Range {
	rs := make([]correction.Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Start < 0 {
			r.Start = 0
		}
		if r.End > n {
			r.End = n
		}
		if r.Start < r.End {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })

	out := rs[:0]
	for _, r := range rs {
		if len(out) > 0 && r.Start <= out[len(out)-1].End {
			if r.End > out[len(out)-1].End {
				out[len(out)-1].End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
