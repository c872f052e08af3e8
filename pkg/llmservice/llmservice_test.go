package llmservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textcorrector/pkg/logger"
)

func newTestServer(t *testing.T, status int, content string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTranslateCachesResult(t *testing.T) {
	var hits int32
	srv := newTestServer(t, http.StatusOK, "繁體中文\n", &hits)

	svc := NewLLMService(LLMServiceConfig{BaseURL: srv.URL, APIKey: "k", Model: "test-model"}, logger.NewLogger(10))

	out, err := svc.Translate(context.Background(), "繁体中文")
	require.NoError(t, err)
	assert.Equal(t, "繁體中文", out)

	out, err = svc.Translate(context.Background(), "繁体中文")
	require.NoError(t, err)
	assert.Equal(t, "繁體中文", out)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	assert.Equal(t, 1, svc.CacheSize())
}

func TestTranslateRetriesThenFails(t *testing.T) {
	var hits int32
	srv := newTestServer(t, http.StatusBadRequest, "", &hits)

	svc := NewLLMService(LLMServiceConfig{BaseURL: srv.URL, APIKey: "k", Model: "test-model", MaxRetries: 2}, logger.NewLogger(10))

	_, err := svc.Translate(context.Background(), "文字")
	require.Error(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
	assert.Zero(t, svc.CacheSize())
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "短", truncateForLog("短", 5))
	assert.Equal(t, "一二...(truncated)", truncateForLog("一二三", 2))
}
