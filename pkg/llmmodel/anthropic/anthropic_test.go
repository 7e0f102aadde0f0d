package anthropic_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/llmmodel"
	"github.com/effective-security/llmhub/pkg/llmmodel/anthropic"
	"github.com/effective-security/llmhub/pkg/modelcfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const messageResponse = `{
	"id": "msg_0123",
	"type": "message",
	"role": "assistant",
	"model": "claude-3-7-sonnet-latest",
	"content": [{"type": "text", "text": "Hi there"}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 9, "output_tokens": 3}
}`

func Test_Builder(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageResponse))
	}))
	defer srv.Close()

	b := anthropic.NewBuilder(anthropic.WithBaseURL(srv.URL))
	cfg := &modelcfg.ModelConfig{
		Name:        "Claude Sonnet 3.7",
		Provider:    "anthropic",
		ModelID:     "claude-3-7-sonnet-latest",
		MaxTokens:   8192,
		Temperature: 0.7,
	}
	m, err := b("claude_sonnet_3_7", cfg)
	require.NoError(t, err)
	assert.Equal(t, "claude_sonnet_3_7", m.Name())

	resp, err := m.Invoke(context.Background(), "hello",
		llmmodel.WithSystemPrompt("short answers"),
		llmmodel.WithStopWords([]string{"STOP"}))
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Content)
	assert.EqualValues(t, 9, resp.InputTokens)
	assert.EqualValues(t, 3, resp.OutputTokens)
	assert.Equal(t, "end_turn", resp.Metadata["stop_reason"])

	assert.Equal(t, "claude-3-7-sonnet-latest", gjson.GetBytes(got, "model").String())
	assert.EqualValues(t, 8192, gjson.GetBytes(got, "max_tokens").Int())
	assert.Equal(t, "short answers", gjson.GetBytes(got, "system.0.text").String())
	assert.Equal(t, "user", gjson.GetBytes(got, "messages.0.role").String())
	assert.Equal(t, "hello", gjson.GetBytes(got, "messages.0.content.0.text").String())
	assert.Equal(t, "STOP", gjson.GetBytes(got, "stop_sequences.0").String())
}

func Test_Builder_MissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	b := anthropic.NewBuilder()
	m, err := b("claude_sonnet_3_7", &modelcfg.ModelConfig{
		Name:     "Claude Sonnet 3.7",
		Provider: "anthropic",
		ModelID:  "claude-3-7-sonnet-latest",
	})
	require.NoError(t, err)

	_, err = m.Invoke(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, llmmodel.ErrProviderInit))
}
