// Package converter 提供简繁转换后端：本地 OpenCC 词典与 LLM 服务。
package converter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/longbridgeapp/opencc"
)

// Mode 表示转换方向
type Mode int

const (
	S2T       Mode = iota // 简体到繁体
	S2TW                  // 简体到台湾正体
	S2TWP                 // 简体到台湾正体并转换常用词汇
	S2HK                  // 简体到香港繁体
	T2S                   // 繁体到简体
	RoundTrip             // 先转简体再转回繁体，用于修正混用字
)

var modeNames = map[Mode]string{
	S2T:       "s2t",
	S2TW:      "s2tw",
	S2TWP:     "s2twp",
	S2HK:      "s2hk",
	T2S:       "t2s",
	RoundTrip: "roundtrip",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode 解析配置中的模式名称
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return S2T, fmt.Errorf("unknown conversion mode %q", s)
}

// OpenCC 基于内置词典进行转换，可并发使用
type OpenCC struct {
	mode   Mode
	mu     sync.Mutex
	stages []*opencc.OpenCC
}

// New 创建指定模式的 OpenCC 转换器
func New(mode Mode) (*OpenCC, error) {
	var configs []string
	switch mode {
	case RoundTrip:
		configs = []string{"t2s", "s2t"}
	case S2T, S2TW, S2TWP, S2HK, T2S:
		configs = []string{mode.String()}
	default:
		return nil, fmt.Errorf("unsupported conversion mode: %v", mode)
	}

	c := &OpenCC{mode: mode}
	for _, name := range configs {
		cc, err := opencc.New(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load opencc config %s: %w", name, err)
		}
		c.stages = append(c.stages, cc)
	}
	return c, nil
}

// Mode 返回转换方向
func (c *OpenCC) Mode() Mode { return c.mode }

// Convert 依次执行各阶段转换
func (c *OpenCC) Convert(text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := text
	for _, cc := range c.stages {
		converted, err := cc.Convert(out)
		if err != nil {
			return "", fmt.Errorf("opencc %s: %w", c.mode, err)
		}
		out = converted
	}
	return out, nil
}

// Engine 是基于上下文的文本转换引擎，例如 LLM 服务
type Engine interface {
	Translate(ctx context.Context, text string) (string, error)
}

// LLM 将 Engine 适配为同步转换器，空白文本不发送请求
type LLM struct {
	ctx    context.Context
	engine Engine
}

// NewLLM 创建 LLM 转换器，ctx 用于取消进行中的请求
func NewLLM(ctx context.Context, engine Engine) *LLM {
	return &LLM{ctx: ctx, engine: engine}
}

// Convert 调用引擎转换文本
func (l *LLM) Convert(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	select {
	case <-l.ctx.Done():
		return "", l.ctx.Err()
	default:
	}
	out, err := l.engine.Translate(l.ctx, text)
	if err != nil {
		return "", fmt.Errorf("llm conversion: %w", err)
	}
	return out, nil
}
