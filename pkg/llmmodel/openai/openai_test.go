package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/llmmodel"
	"github.com/effective-security/llmhub/pkg/llmmodel/openai"
	"github.com/effective-security/llmhub/pkg/modelcfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func chatServer(t *testing.T, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		body, err := json.Marshal(map[string]any{
			"id":     "chatcmpl-123",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": "Hello from test",
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     12,
				"completion_tokens": 4,
				"total_tokens":      16,
			},
		})
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
}

func Test_Builder(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	var requests atomic.Int64
	srv := chatServer(t, &requests)
	defer srv.Close()

	b := openai.NewBuilder(openai.WithBaseURL(srv.URL))
	cfg := &modelcfg.ModelConfig{
		Name:        "GPT-4o",
		Provider:    "openai",
		ModelID:     "gpt-4o",
		MaxTokens:   256,
		Temperature: 0.7,
	}
	m, err := b("gpt_4o", cfg)
	require.NoError(t, err)
	assert.Equal(t, "gpt_4o", m.Name())
	assert.Equal(t, cfg, m.Config())

	// construction does not hit the network
	assert.EqualValues(t, 0, requests.Load())

	resp, err := m.Invoke(context.Background(), "say hello",
		llmmodel.WithSystemPrompt("be brief"))
	require.NoError(t, err)
	assert.Equal(t, "Hello from test", resp.Content)
	assert.EqualValues(t, 12, resp.InputTokens)
	assert.EqualValues(t, 4, resp.OutputTokens)
	assert.Equal(t, "stop", resp.Metadata["finish_reason"])
	assert.EqualValues(t, 1, requests.Load())
}

func Test_Builder_RequestShape(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	b := openai.NewBuilder(openai.WithBaseURL(srv.URL))
	m, err := b("gpt_4o", &modelcfg.ModelConfig{
		Name:        "GPT-4o",
		Provider:    "openai",
		ModelID:     "gpt-4o",
		MaxTokens:   512,
		Temperature: 0.3,
	})
	require.NoError(t, err)

	_, err = m.Invoke(context.Background(), "ping", llmmodel.WithSystemPrompt("pong only"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", gjson.GetBytes(got, "model").String())
	assert.EqualValues(t, 512, gjson.GetBytes(got, "max_completion_tokens").Int())
	assert.InDelta(t, 0.3, gjson.GetBytes(got, "temperature").Float(), 0.0001)
	assert.Equal(t, "system", gjson.GetBytes(got, "messages.0.role").String())
	assert.Equal(t, "pong only", gjson.GetBytes(got, "messages.0.content").String())
	assert.Equal(t, "user", gjson.GetBytes(got, "messages.1.role").String())
	assert.Equal(t, "ping", gjson.GetBytes(got, "messages.1.content").String())
}

func Test_Builder_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	var requests atomic.Int64
	srv := chatServer(t, &requests)
	defer srv.Close()

	b := openai.NewBuilder(openai.WithBaseURL(srv.URL))
	m, err := b("gpt_4o", &modelcfg.ModelConfig{
		Name:     "GPT-4o",
		Provider: "openai",
		ModelID:  "gpt-4o",
	})
	require.NoError(t, err)

	_, err = m.Invoke(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, llmmodel.ErrProviderInit))

	// initialization is retried once the key shows up
	t.Setenv("OPENAI_API_KEY", "sk-test")
	resp, err := m.Invoke(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello from test", resp.Content)
}
