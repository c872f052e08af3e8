// Package segment 将文本按保护词切分为受保护段与普通段。
package segment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrInvalidArgument 表示输入文本或保护词不合法
var ErrInvalidArgument = errors.New("invalid argument")

// Kind 区分段的类型
type Kind int

const (
	Plain Kind = iota
	Protected
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Protected:
		return "protected"
	default:
		return "unknown"
	}
}

// Segment 是文本中的一段连续区间，Start/End 以 rune 为单位
type Segment struct {
	Start int
	End   int
	Kind  Kind
	Text  string
}

// Len 返回段的 rune 长度
func (s Segment) Len() int {
	return s.End - s.Start
}

type match struct {
	start, end int // byte offsets
}

// Split 在 text 中查找 words 的所有出现位置，并返回覆盖整个文本的有序段列表。
// 每个词独立做不重叠扫描，所有匹配按起点排序；若匹配相互重叠，排序靠前者保留，
// 后者丢弃。起点相同时保持 words 中的先后顺序。
func Split(text string, words []string) ([]Segment, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidArgument)
	}
	for i, w := range words {
		if w == "" {
			return nil, fmt.Errorf("%w: protected word %d is empty", ErrInvalidArgument, i)
		}
		if !utf8.ValidString(w) {
			return nil, fmt.Errorf("%w: protected word %d is not valid UTF-8", ErrInvalidArgument, i)
		}
	}

	if text == "" {
		return []Segment{}, nil
	}

	var matches []match
	for _, w := range words {
		matches = append(matches, findAll(text, w)...)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].start < matches[j].start
	})

	segments := make([]Segment, 0, 2*len(matches)+1)
	pos := 0     // byte cursor
	runePos := 0 // rune cursor
	emit := func(kind Kind, from, to int) {
		part := text[from:to]
		n := utf8.RuneCountInString(part)
		segments = append(segments, Segment{Start: runePos, End: runePos + n, Kind: kind, Text: part})
		runePos += n
	}
	for _, m := range matches {
		if m.start < pos {
			// 与已接受的匹配重叠
			continue
		}
		if m.start > pos {
			emit(Plain, pos, m.start)
		}
		emit(Protected, m.start, m.end)
		pos = m.end
	}
	if pos < len(text) {
		emit(Plain, pos, len(text))
	}
	return segments, nil
}

// findAll 返回 word 在 text 中所有不重叠出现的字节区间
func findAll(text, word string) []match {
	var out []match
	offset := 0
	for offset < len(text) {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			break
		}
		start := offset + idx
		out = append(out, match{start: start, end: start + len(word)})
		offset = start + len(word)
	}
	return out
}

// Join 拼接各段文本
func Join(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}
