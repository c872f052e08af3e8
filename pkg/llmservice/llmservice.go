package llmservice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"textcorrector/pkg/logger"
)

// DefaultPrompt asks the model for a character-level conversion only.
const DefaultPrompt = "將使用者提供的文字轉換為台灣正體中文。只轉換字形，不要改寫、潤飾或翻譯。" +
	"保留所有標點、數字、英文與空白。只輸出轉換後的文字。"

// LLMServiceConfig holds the configuration for the LLM service.
type LLMServiceConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Prompt     string        // System prompt for conversion
	MaxRetries int           // Retries after the first attempt
	RetryDelay time.Duration // Pause between attempts
}

// LLMService converts text using an OpenAI-compatible chat API.
type LLMService struct {
	config LLMServiceConfig
	client *openai.Client
	cache  map[string]string // Cache for converted text
	mu     sync.RWMutex      // Mutex for cache access
	logger *logger.Logger
}

// NewLLMService creates a new LLMService instance.
func NewLLMService(config LLMServiceConfig, log *logger.Logger) *LLMService {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	client := openai.NewClient(
		option.WithBaseURL(config.BaseURL),
		option.WithAPIKey(config.APIKey),
		option.WithRequestTimeout(60*time.Second),
		option.WithMaxRetries(0),
	)

	return &LLMService{
		config: config,
		client: &client,
		cache:  make(map[string]string),
		logger: log,
	}
}

// Translate converts the given text using the configured LLM with retries.
// Results are cached per input.
func (s *LLMService) Translate(ctx context.Context, text string) (string, error) {
	s.mu.RLock()
	if converted, ok := s.cache[text]; ok {
		s.mu.RUnlock()
		s.logger.Tracef("Cache hit for text: %s -> %s", truncateForLog(text, 80), truncateForLog(converted, 200))
		return converted, nil
	}
	s.mu.RUnlock()
	s.logger.Tracef("Cache miss for text: %s", truncateForLog(text, 80))

	var lastErr error
	for i := 0; i <= s.config.MaxRetries; i++ {
		var result string
		result, lastErr = s.doRequest(ctx, text)
		if lastErr == nil {
			s.mu.Lock()
			s.cache[text] = result
			s.mu.Unlock()
			s.logger.Debugf("Converted text:\n\t[src] %s\n\t[dst] %s",
				truncateForLog(text, 80),
				truncateForLog(result, 200))
			return result, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if i < s.config.MaxRetries {
			s.logger.Warnf("LLM conversion failed, retrying (attempt %d/%d): %v", i+1, s.config.MaxRetries+1, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}
	}

	s.logger.Errorf("LLM conversion failed after %d retries: %v for text: %s", s.config.MaxRetries, lastErr, truncateForLog(text, 80))
	return "", fmt.Errorf("LLM conversion failed after %d retries: %w", s.config.MaxRetries, lastErr)
}

// CacheSize returns the number of cached conversions.
func (s *LLMService) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func (s *LLMService) doRequest(ctx context.Context, text string) (string, error) {
	s.logger.Tracef("Sending request to LLM for text: %s", truncateForLog(text, 80))

	chatCompletion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(s.config.Prompt),
			openai.UserMessage(text),
		},
		Model: s.config.Model,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(chatCompletion.Choices) == 0 {
		s.logger.Warnf("No choices found in LLM response.")
		return "", fmt.Errorf("no choices found in response")
	}

	result := chatCompletion.Choices[0].Message.Content
	// 模型偶尔会在结尾补换行
	if !strings.HasSuffix(text, "\n") {
		result = strings.TrimRight(result, "\n")
	}
	s.logger.Tracef("Received conversion result: %s", truncateForLog(result, 200))
	return result, nil
}

func truncateForLog(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "...(truncated)"
}
