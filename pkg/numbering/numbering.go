// Package numbering 生成公文常用的五级标题编号（壹、一、（一）、1.、(1)）。
package numbering

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Levels 支持的层级数
const Levels = 5

var (
	financialNumerals = []string{"壹", "貳", "參", "肆", "伍", "陸", "柒", "捌", "玖", "拾"}
	chineseNumerals   = []string{"一", "二", "三", "四", "五", "六", "七", "八", "九", "十"}
	levelIndents      = []string{"", "  ", "    ", "      ", "        "}

	// 标题编号后必须跟分隔符，避免把「一般」「三月」之类的正文当成标题
	headingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[壹貳參肆伍陸柒捌玖拾]+[、．.\s]`),
		regexp.MustCompile(`^[一二三四五六七八九十]+[、．.\s]`),
		regexp.MustCompile(`^[(（][一二三四五六七八九十]+[)）]`),
		regexp.MustCompile(`^[0-9０-９]+[.．、](?:\s|[^0-9０-９]|$)`),
		regexp.MustCompile(`^[(（][0-9０-９]+[)）]`),
	}
)

// Formatter 维护各层级计数器，非并发安全
type Formatter struct {
	counters [Levels]int
}

// NewFormatter 创建计数器清零的 Formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Reset 清零所有计数器
func (f *Formatter) Reset() {
	f.counters = [Levels]int{}
}

func checkLevel(level int) error {
	if level < 0 || level >= Levels {
		return fmt.Errorf("level must be between 0 and %d, got %d", Levels-1, level)
	}
	return nil
}

// Next 递增 level 的计数并清零更深层级，返回新的编号
func (f *Formatter) Next(level int) (string, error) {
	if err := checkLevel(level); err != nil {
		return "", err
	}
	f.counters[level]++
	for i := level + 1; i < Levels; i++ {
		f.counters[i] = 0
	}
	return marker(level, f.counters[level]), nil
}

// Current 返回 level 当前的编号而不递增，尚未使用的层级视为第一个
func (f *Formatter) Current(level int) (string, error) {
	if err := checkLevel(level); err != nil {
		return "", err
	}
	if f.counters[level] == 0 {
		f.counters[level] = 1
	}
	return marker(level, f.counters[level]), nil
}

// Format 为 text 加上缩进与下一个编号
func (f *Formatter) Format(text string, level int) (string, error) {
	m, err := f.Next(level)
	if err != nil {
		return "", err
	}
	return levelIndents[level] + m + " " + text, nil
}

// Indent 返回 level 的缩进，超出范围时返回空串
func Indent(level int) string {
	if checkLevel(level) != nil {
		return ""
	}
	return levelIndents[level]
}

func marker(level, n int) string {
	idx := (n - 1) % len(chineseNumerals)
	switch level {
	case 0:
		return financialNumerals[idx]
	case 1:
		return chineseNumerals[idx]
	case 2:
		return "(" + chineseNumerals[idx] + ")"
	case 3:
		return strconv.Itoa(n) + "."
	default:
		return "(" + strconv.Itoa(n) + ")"
	}
}

// DetectLevel 识别一行文字开头的编号，返回层级与编号之后的内容；无编号时返回 -1 与去除首尾空白的原行
func DetectLevel(line string) (int, string) {
	line = strings.TrimSpace(line)
	level := -1

	switch {
	case hasAnyPrefix(line, financialNumerals, "", ""):
		level = 0
	case hasAnyPrefix(line, chineseNumerals, "", ""):
		level = 1
	case hasAnyPrefix(line, chineseNumerals, "(", ")"):
		level = 2
	case startsWithDigit(line) && strings.Index(line, ".") > 0:
		level = 3
	case strings.HasPrefix(line, "(") && strings.Index(line, ")") > 0:
		if _, err := strconv.Atoi(line[1:strings.Index(line, ")")]); err == nil {
			level = 4
		}
	}

	if level < 0 {
		return -1, line
	}
	if i := strings.Index(line, " "); i > 0 {
		return level, line[i+1:]
	}
	return level, line
}

func hasAnyPrefix(line string, numerals []string, open, close string) bool {
	for _, n := range numerals {
		if strings.HasPrefix(line, open+n+close) {
			return true
		}
	}
	return false
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}

// HeadingLevel 返回以编号标题开头的行的层级，不是标题时返回 -1。
// 比 DetectLevel 严格：编号后必须跟「、」「.」或空白。
func HeadingLevel(line string) int {
	line = strings.TrimSpace(line)
	for level, re := range headingPatterns {
		if re.MatchString(line) {
			return level
		}
	}
	return -1
}

// Reindent 按标题层级重新缩进 text 的每一行，非标题行保持原样
func Reindent(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if level := HeadingLevel(line); level >= 0 {
			lines[i] = Indent(level) + strings.TrimSpace(line)
		}
	}
	return strings.Join(lines, "\n")
}
