package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"textcorrector/pkg/config"
	"textcorrector/pkg/converter"
	"textcorrector/pkg/correction"
	"textcorrector/pkg/fileprocessor"
	"textcorrector/pkg/llmservice"
	"textcorrector/pkg/logger"
	"textcorrector/pkg/officecrypto"
	"textcorrector/pkg/proofreader"
	"textcorrector/pkg/protectedwords"
	"textcorrector/pkg/report"
	"textcorrector/pkg/textextractor"
)

// ErrCancelled 表示用户在密码提示中放弃输入
var ErrCancelled = errors.New("cancelled by user")

// Callbacks 定义校正流程中的回调，全部可为 nil
type Callbacks struct {
	OnCorrected func(original string, result correction.Result)
	OnProgress  func(phase string, done, total int)
	OnError     func(stage string, err error)
	OnComplete  func(err error)
}

// PasswordPrompt 返回第 attempt 次（从 1 开始）尝试使用的密码，lastErr 为上一次失败原因。
// 第一次就返回空字符串表示取消；之后返回空字符串则放弃并返回上一次的错误。
type PasswordPrompt func(attempt int, lastErr error) string

// StaticPassword 只在第一次尝试时提供 password，密码错误时返回 ErrWrongPassword
func StaticPassword(password string) PasswordPrompt {
	return func(attempt int, _ error) string {
		if attempt > 1 {
			return ""
		}
		return password
	}
}

type options struct {
	prompt     PasswordPrompt
	reportPath string
	words      []string
	hasWords   bool
	conv       correction.Converter
	log        *logger.Logger
}

// Option 调整单次运行
type Option func(*options)

// WithPasswordPrompt 设置加密文档的密码来源
func WithPasswordPrompt(p PasswordPrompt) Option {
	return func(o *options) { o.prompt = p }
}

// WithReport 在 path 写出 xlsx 校正记录
func WithReport(path string) Option {
	return func(o *options) { o.reportPath = path }
}

// WithWords 使用给定保护词，而不是读取配置中的词表文件
func WithWords(words []string) Option {
	return func(o *options) {
		o.words = words
		o.hasWords = true
	}
}

// WithConverter 替换由配置构造的转换器
func WithConverter(conv correction.Converter) Option {
	return func(o *options) { o.conv = conv }
}

// WithLogger 使用外部日志实例
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// RunCorrection 读取用户配置后执行校正流程
func RunCorrection(ctx context.Context, inputFile, outputFile string, cb Callbacks, opts ...Option) ([]fileprocessor.Change, error) {
	cfg, err := config.Load()
	if err != nil {
		err = fmt.Errorf("failed to load configuration: %w", err)
		notifyError(cb, "config", err)
		notifyComplete(cb, err)
		return nil, err
	}
	return RunCorrectionWithConfig(ctx, inputFile, outputFile, cfg, cb, opts...)
}

// RunCorrectionWithConfig 执行校正流程，通过回调报告状态，返回被修改的段落
func RunCorrectionWithConfig(ctx context.Context, inputFile, outputFile string, cfg *config.AppConfig, cb Callbacks, opts ...Option) ([]fileprocessor.Change, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.log
	if log == nil {
		log = logger.NewLogger(100)
		log.SetLevel(logger.ParseLevel(cfg.Processing.LogLevel))
		if cfg.Paths.LogDir != "" {
			if err := log.SetErrorDir(cfg.Paths.LogDir); err != nil {
				log.Warnf("Error log disabled: %v", err)
			}
		}
	}

	fail := func(stage string, err error) ([]fileprocessor.Change, error) {
		if lerr := log.LogError(stage, err.Error(), "file: "+inputFile); lerr != nil {
			log.Warnf("Failed to write error log: %v", lerr)
		}
		notifyError(cb, stage, err)
		notifyComplete(cb, err)
		return nil, err
	}

	policy, err := correction.ParseDiffPolicy(cfg.Converter.DiffPolicy)
	if err != nil {
		return fail("config", err)
	}

	words := o.words
	if !o.hasWords {
		store, err := protectedwords.Open(cfg.Paths.ProtectedWords)
		if err != nil {
			return fail("protectedwords", err)
		}
		words = store.Snapshot()
	}
	log.Infof("Loaded %d protected words", len(words))

	conv := o.conv
	if conv == nil {
		conv, err = NewConverter(ctx, cfg, log)
		if err != nil {
			return fail("converter", err)
		}
	}

	data, err := OpenWithRetry(inputFile, o.prompt, cfg.Processing.PasswordAttempts)
	if err != nil {
		return fail("open", err)
	}

	pr := proofreader.New(conv, words, cfg.Processing.MaxConcurrent, proofreader.Callbacks{
		OnCorrected: cb.OnCorrected,
		OnProgress:  cb.OnProgress,
		OnError:     cb.OnError,
	}, correction.WithDiffPolicy(policy))

	fp := fileprocessor.NewFileProcessorWithLogger(log)
	fp.SetExtractorConfig(textextractor.ExtractorConfig{CJKOnly: cfg.Processing.CJKOnly})

	changes, err := fp.ProcessBytes(ctx, data, outputFile, pr)
	if err != nil {
		return fail("fileprocessor", fmt.Errorf("file processing failed: %w", err))
	}

	if o.reportPath != "" {
		if err := report.Write(o.reportPath, changes); err != nil {
			return fail("report", err)
		}
		log.Infof("Report written to %s", o.reportPath)
	}

	log.Infof("File processing completed successfully.")
	notifyComplete(cb, nil)
	return changes, nil
}

// NewConverter 按配置构造 opencc 或 llm 转换器
func NewConverter(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (correction.Converter, error) {
	switch cfg.Converter.Backend {
	case "opencc", "":
		mode, err := converter.ParseMode(cfg.Converter.Mode)
		if err != nil {
			return nil, err
		}
		return converter.New(mode)
	case "llm":
		svc := llmservice.NewLLMService(llmservice.LLMServiceConfig{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			Prompt:     cfg.LLM.Prompt,
			MaxRetries: cfg.LLM.MaxRetries,
			RetryDelay: time.Duration(cfg.LLM.RetryDelaySeconds) * time.Second,
		}, log)
		return converter.NewLLM(ctx, svc), nil
	default:
		return nil, fmt.Errorf("unknown converter backend %q", cfg.Converter.Backend)
	}
}

// OpenWithRetry 读取 docx；若文件已加密，最多提示 attempts 次密码。
// 密码错误时再次提示，prompt 返回空字符串时返回 ErrCancelled。
func OpenWithRetry(path string, prompt PasswordPrompt, attempts int) ([]byte, error) {
	data, err := fileprocessor.ReadDocument(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fileprocessor.ErrEncrypted) {
		return nil, err
	}
	if !officecrypto.IsEncrypted(data) {
		return nil, fmt.Errorf("%s is a compound file without an encrypted package: %w", path, officecrypto.ErrNotEncrypted)
	}
	if prompt == nil {
		return nil, err
	}
	return unlock(data, prompt, attempts, officecrypto.Decrypt)
}

func unlock(data []byte, prompt PasswordPrompt, attempts int, decrypt func([]byte, string) ([]byte, error)) ([]byte, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		password := prompt(i, lastErr)
		if password == "" {
			if lastErr != nil {
				return nil, fmt.Errorf("giving up after %d attempts: %w", i-1, lastErr)
			}
			return nil, ErrCancelled
		}
		plain, err := decrypt(data, password)
		if err == nil {
			return plain, nil
		}
		if !errors.Is(err, officecrypto.ErrWrongPassword) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

func notifyError(cb Callbacks, stage string, err error) {
	if cb.OnError != nil {
		cb.OnError(stage, err)
	}
}

func notifyComplete(cb Callbacks, err error) {
	if cb.OnComplete != nil {
		cb.OnComplete(err)
	}
}
