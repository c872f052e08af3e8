package textextractor

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// <w:p ...>...</w:p> 或自闭合的空段落 <w:p/>
	paragraphRegex = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*[^/>])?>.*?</w:p>|<w:p(?:\s[^>]*)?/>`)
	textRunRegex   = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*[^/>])?>(.*?)</w:t>`)
	tableRegex     = regexp.MustCompile(`(?s)<w:tbl>.*?</w:tbl>`)
	rowRegex       = regexp.MustCompile(`(?s)<w:tr(?:\s[^>]*[^/>])?>.*?</w:tr>`)
	cellRegex      = regexp.MustCompile(`(?s)<w:tc(?:\s[^>]*[^/>])?>.*?</w:tc>`)
	spaceAttrRegex = regexp.MustCompile(`\sxml:space="[^"]*"`)
)

// CellSeparator 纯文本导出时表格单元格之间的分隔符
const CellSeparator = " | "

// ExtractorConfig holds configuration for the extraction process
type ExtractorConfig struct {
	CJKOnly bool // 只处理包含中日韩字符的段落
}

// Extractor 负责从 WordprocessingML 中提取段落并写回校正结果
type Extractor struct {
	config ExtractorConfig
}

// NewExtractor creates a new Extractor instance
func NewExtractor(config ExtractorConfig) *Extractor {
	return &Extractor{config: config}
}

// ContainsCJK checks if the string contains any CJK characters
func ContainsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) ||
			(r >= 0x3040 && r <= 0x309F) || // Hiragana
			(r >= 0x30A0 && r <= 0x30FF) || // Katakana
			(r >= 0xAC00 && r <= 0xD7AF) { // Hangul
			return true
		}
	}
	return false
}

// IsValidTextContent 对空白、纯数字或纯符号文本返回 false
func IsValidTextContent(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if !unicode.IsNumber(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// IsDocumentPart 判断 zip 中的条目是否包含需要校正的正文
func IsDocumentPart(name string) bool {
	if !strings.HasPrefix(name, "word/") || !strings.HasSuffix(name, ".xml") {
		return false
	}
	base := strings.TrimSuffix(strings.TrimPrefix(name, "word/"), ".xml")
	switch {
	case base == "document", base == "footnotes", base == "endnotes", base == "comments":
		return true
	case strings.HasPrefix(base, "header"), strings.HasPrefix(base, "footer"):
		return !strings.Contains(base, "/")
	}
	return false
}

// Run 是段落中的一个 <w:t> 节点，偏移均为 part 内容中的字节位置
type Run struct {
	TagStart  int    // <w:t ...> 起点
	TextStart int    // 文本起点
	TextEnd   int    // 文本终点
	Text      string // 已反转义的文本
}

// Paragraph 是一个 <w:p> 段落
type Paragraph struct {
	Index   int // 在 part 中的序号
	Start   int
	End     int
	InTable bool
	Runs    []Run
	Text    string // 各 run 文本拼接
}

// Extract 返回 content 中所有含文本的段落。启用 CJKOnly 时跳过不含中日韩字符的段落。
func (e *Extractor) Extract(content string) []Paragraph {
	tables := tableRegex.FindAllStringIndex(content, -1)

	var out []Paragraph
	for i, pm := range paragraphRegex.FindAllStringIndex(content, -1) {
		body := content[pm[0]:pm[1]]
		var runs []Run
		var sb strings.Builder
		for _, m := range textRunRegex.FindAllStringSubmatchIndex(body, -1) {
			text := html.UnescapeString(body[m[2]:m[3]])
			runs = append(runs, Run{
				TagStart:  pm[0] + m[0],
				TextStart: pm[0] + m[2],
				TextEnd:   pm[0] + m[3],
				Text:      text,
			})
			sb.WriteString(text)
		}
		if len(runs) == 0 {
			continue
		}

		p := Paragraph{
			Index:   i,
			Start:   pm[0],
			End:     pm[1],
			InTable: inSpans(tables, pm[0]),
			Runs:    runs,
			Text:    sb.String(),
		}
		if !IsValidTextContent(p.Text) {
			continue
		}
		if e.config.CJKOnly && !ContainsCJK(p.Text) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Redistribute 把校正后的段落文本分配回各个 run。
// 长度不变时按原 run 的 rune 长度切分，保留原有格式边界；否则全部写入第一个 run。
func Redistribute(runs []Run, corrected string) []string {
	out := make([]string, len(runs))
	if len(runs) == 0 {
		return out
	}

	total := 0
	for _, r := range runs {
		total += utf8.RuneCountInString(r.Text)
	}
	if total != utf8.RuneCountInString(corrected) {
		out[0] = corrected
		return out
	}

	rest := corrected
	for i, r := range runs {
		n := utf8.RuneCountInString(r.Text)
		cut := 0
		for j := 0; j < n; j++ {
			_, size := utf8.DecodeRuneInString(rest[cut:])
			cut += size
		}
		out[i] = rest[:cut]
		rest = rest[cut:]
	}
	return out
}

// Apply 将 corrected 中的段落文本写回 content，corrected 与 paragraphs 一一对应。
func (e *Extractor) Apply(content string, paragraphs []Paragraph, corrected []string) (string, error) {
	if len(paragraphs) != len(corrected) {
		return "", fmt.Errorf("paragraphs count (%d) and corrections count (%d) do not match", len(paragraphs), len(corrected))
	}
	if len(paragraphs) == 0 {
		return content, nil
	}

	var sb strings.Builder
	sb.Grow(len(content))
	last := 0

	for i, p := range paragraphs {
		if corrected[i] == p.Text {
			continue
		}
		texts := Redistribute(p.Runs, corrected[i])
		for j, run := range p.Runs {
			if run.TagStart < last {
				return "", fmt.Errorf("overlapping text runs at offset %d", run.TagStart)
			}
			openTag := content[run.TagStart:run.TextStart]
			if needsPreserve(texts[j]) {
				openTag = preserveSpace(openTag)
			}
			sb.WriteString(content[last:run.TagStart])
			sb.WriteString(openTag)
			sb.WriteString(html.EscapeString(texts[j]))
			last = run.TextEnd
		}
	}
	sb.WriteString(content[last:])
	return sb.String(), nil
}

func needsPreserve(s string) bool {
	if s == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	lastRune, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(first) || unicode.IsSpace(lastRune)
}

// preserveSpace 为 <w:t> 开始标签加上 xml:space="preserve"
func preserveSpace(openTag string) string {
	if spaceAttrRegex.MatchString(openTag) {
		return spaceAttrRegex.ReplaceAllString(openTag, ` xml:space="preserve"`)
	}
	return strings.TrimSuffix(openTag, ">") + ` xml:space="preserve">`
}

// TableRows 返回 content 中每个表格行的单元格文本
func TableRows(content string) [][]string {
	var rows [][]string
	for _, tbl := range tableRegex.FindAllString(content, -1) {
		for _, row := range rowRegex.FindAllString(tbl, -1) {
			var cells []string
			for _, cell := range cellRegex.FindAllString(row, -1) {
				cells = append(cells, cellText(cell))
			}
			rows = append(rows, cells)
		}
	}
	return rows
}

func cellText(cell string) string {
	var paras []string
	for _, p := range paragraphRegex.FindAllString(cell, -1) {
		paras = append(paras, paragraphText(p))
	}
	return strings.TrimSpace(strings.Join(paras, "\n"))
}

func paragraphText(body string) string {
	var sb strings.Builder
	for _, m := range textRunRegex.FindAllStringSubmatch(body, -1) {
		sb.WriteString(html.UnescapeString(m[1]))
	}
	return sb.String()
}

// PlainText 导出正文：先是表格外的段落，再是表格行（单元格以 CellSeparator 连接）
func PlainText(content string) string {
	var lines []string
	tables := tableRegex.FindAllStringIndex(content, -1)
	for _, pm := range paragraphRegex.FindAllStringIndex(content, -1) {
		if inSpans(tables, pm[0]) {
			continue
		}
		lines = append(lines, paragraphText(content[pm[0]:pm[1]]))
	}
	for _, row := range TableRows(content) {
		lines = append(lines, strings.Join(row, CellSeparator))
	}
	return strings.Join(lines, "\n")
}

func inSpans(spans [][]int, pos int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}
