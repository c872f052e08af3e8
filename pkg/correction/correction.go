// Package correction 对普通段执行字符转换，并计算转换后文本中发生变化的区间。
package correction

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"textcorrector/pkg/segment"
)

// ErrConversion 表示转换函数执行失败
var ErrConversion = errors.New("conversion failed")

// Converter 定义字符转换接口
type Converter interface {
	// Convert 转换给定文本，失败时必须返回错误而不是原样返回
	Convert(text string) (string, error)
}

// ConverterFunc 让普通函数满足 Converter 接口
type ConverterFunc func(text string) (string, error)

// Convert 调用 f(text)
func (f ConverterFunc) Convert(text string) (string, error) {
	return f(text)
}

// ConversionError 记录失败的段
type ConversionError struct {
	Segment int    // 段在切分结果中的下标
	Text    string // 该段原文
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed for segment %d: %v", e.Segment, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrConversion) 成立
func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// Range 是转换后文本中的 rune 区间 [Start, End)
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len 返回区间长度
func (r Range) Len() int { return r.End - r.Start }

// Result 是一次校正的结果
type Result struct {
	Text   string  `json:"text"`
	Ranges []Range `json:"ranges"`
}

// Changed 报告是否存在任何改动
func (r Result) Changed() bool { return len(r.Ranges) > 0 }

// DiffPolicy 决定长度变化的段如何标记
type DiffPolicy int

const (
	// WholeSegment 将长度变化的整段标记为一个区间
	WholeSegment DiffPolicy = iota
	// FineGrained 用编辑脚本只标记插入或替换的字符
	FineGrained
)

// ParseDiffPolicy 解析配置中的策略名称
func ParseDiffPolicy(s string) (DiffPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "whole", "segment", "whole_segment":
		return WholeSegment, nil
	case "fine", "fine_grained":
		return FineGrained, nil
	default:
		return WholeSegment, fmt.Errorf("unknown diff policy %q", s)
	}
}

func (p DiffPolicy) String() string {
	if p == FineGrained {
		return "fine"
	}
	return "whole"
}

type options struct {
	policy DiffPolicy
}

// Option 配置 Correct 的行为
type Option func(*options)

// WithDiffPolicy 设置长度变化段的标记策略
func WithDiffPolicy(p DiffPolicy) Option {
	return func(o *options) { o.policy = p }
}

// Correct 将 text 按 words 切分，转换普通段，保留受保护段，
// 返回拼接后的文本及其中发生变化的区间。转换失败时不返回任何部分结果。
func Correct(text string, words []string, conv Converter, opts ...Option) (Result, error) {
	o := options{policy: WholeSegment}
	for _, opt := range opts {
		opt(&o)
	}

	segments, err := segment.Split(text, words)
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	b.Grow(len(text))
	ranges := []Range{}
	offset := 0

	for i, seg := range segments {
		if seg.Kind == segment.Protected {
			b.WriteString(seg.Text)
			offset += seg.Len()
			continue
		}

		converted, err := conv.Convert(seg.Text)
		if err != nil {
			return Result{}, &ConversionError{Segment: i, Text: seg.Text, Err: err}
		}
		if !utf8.ValidString(converted) {
			return Result{}, &ConversionError{Segment: i, Text: seg.Text, Err: errors.New("converter returned invalid UTF-8")}
		}

		src := []rune(seg.Text)
		dst := []rune(converted)
		switch {
		case len(src) == len(dst):
			ranges = append(ranges, diffRuns(src, dst, offset)...)
		case o.policy == FineGrained:
			ranges = append(ranges, diffEdits(seg.Text, converted, offset)...)
		case len(dst) > 0:
			ranges = append(ranges, Range{Start: offset, End: offset + len(dst)})
		}

		b.WriteString(converted)
		offset += len(dst)
	}

	return Result{Text: b.String(), Ranges: ranges}, nil
}

// diffRuns 返回等长序列中每一段连续不同字符的区间
func diffRuns(src, dst []rune, offset int) []Range {
	var out []Range
	start := -1
	for i := range dst {
		if src[i] != dst[i] {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, Range{Start: offset + start, End: offset + i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, Range{Start: offset + start, End: offset + len(dst)})
	}
	return out
}

// diffEdits 按编辑脚本标记转换后文本中插入的字符，相邻区间合并。
// 纯删除在转换后文本中没有位置，不产生区间。
func diffEdits(src, dst string, offset int) []Range {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(src, dst, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var out []Range
	pos := offset
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			pos += n
		case diffmatchpatch.DiffInsert:
			if n == 0 {
				continue
			}
			if len(out) > 0 && out[len(out)-1].End == pos {
				out[len(out)-1].End = pos + n
			} else {
				out = append(out, Range{Start: pos, End: pos + n})
			}
			pos += n
		case diffmatchpatch.DiffDelete:
			// 不占用输出位置
		}
	}
	return out
}
