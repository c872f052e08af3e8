package proofreader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"textcorrector/pkg/correction"
)

// Callbacks 定义校正流程中的回调，可能从多个 goroutine 调用，调用之间互斥
type Callbacks struct {
	OnCorrected func(original string, result correction.Result)
	OnProgress  func(phase string, done, total int)
	OnError     func(stage string, err error)
	OnComplete  func(err error)
}

// Proofreader 持有一次校正运行所需的保护词快照和转换器
type Proofreader struct {
	words         []string
	conv          correction.Converter
	opts          []correction.Option
	maxConcurrent int64
	callbacks     Callbacks
	cbMu          sync.Mutex
}

// New 创建 Proofreader，words 会被复制，之后对原切片的修改不影响本次运行
func New(conv correction.Converter, words []string, maxConcurrent int, callbacks Callbacks, opts ...correction.Option) *Proofreader {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	snapshot := make([]string, len(words))
	copy(snapshot, words)
	return &Proofreader{
		words:         snapshot,
		conv:          conv,
		opts:          opts,
		maxConcurrent: int64(maxConcurrent),
		callbacks:     callbacks,
	}
}

// Words 返回本次运行使用的保护词
func (p *Proofreader) Words() []string {
	out := make([]string, len(p.words))
	copy(out, p.words)
	return out
}

// Correct 校正单段文本
func (p *Proofreader) Correct(text string) (correction.Result, error) {
	res, err := correction.Correct(text, p.words, p.conv, p.opts...)
	if err != nil {
		p.reportError("correction", fmt.Errorf("correction failed for text %q: %w", truncate(text, 40), err))
		return correction.Result{}, err
	}
	if res.Changed() && p.callbacks.OnCorrected != nil {
		p.cbMu.Lock()
		p.callbacks.OnCorrected(text, res)
		p.cbMu.Unlock()
	}
	return res, nil
}

// CorrectTexts 并发校正一组文本，结果顺序与输入一致。任一失败会取消其余任务并返回首个错误。
func (p *Proofreader) CorrectTexts(ctx context.Context, phase string, texts []string) ([]correction.Result, error) {
	results := make([]correction.Result, len(texts))
	total := len(texts)
	if total == 0 {
		return results, nil
	}

	sem := semaphore.NewWeighted(p.maxConcurrent)
	g, gctx := errgroup.WithContext(ctx)
	var done int64

	for i, text := range texts {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := p.Correct(text)
			if err != nil {
				return fmt.Errorf("item %d in %s: %w", i, phase, err)
			}
			results[i] = res

			current := int(atomic.AddInt64(&done, 1))
			if p.callbacks.OnProgress != nil {
				p.cbMu.Lock()
				p.callbacks.OnProgress(phase, current, total)
				p.cbMu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Proofreader) reportError(stage string, err error) {
	if p.callbacks.OnError == nil {
		return
	}
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	p.callbacks.OnError(stage, err)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
