// Package openai builds models backed by the OpenAI Chat Completions API.
package openai

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/llmmodel"
	"github.com/effective-security/llmhub/pkg/modelcfg"
	"github.com/effective-security/llmhub/pkg/secrets"
	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// Provider is the registry key for this builder.
const Provider = "openai"

type config struct {
	secrets    *secrets.Resolver
	baseURL    string
	httpClient *http.Client
}

// Option configures the builder.
type Option func(*config)

// WithSecrets resolves API keys through the given resolver.
func WithSecrets(r *secrets.Resolver) Option {
	return func(c *config) {
		c.secrets = r
	}
}

// WithBaseURL points the client at an alternate endpoint, typically a test
// server or an OpenAI-compatible gateway.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// NewBuilder returns a Builder for OpenAI models. Construction is free of
// network I/O; the SDK client is created on first Invoke.
func NewBuilder(opts ...Option) llmmodel.Builder {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	return func(name string, cfg *modelcfg.ModelConfig) (llmmodel.Model, error) {
		m := &model{
			name:  name,
			cfg:   cfg,
			bopts: c,
		}
		m.client = llmmodel.NewLazy(m.newClient)
		return m, nil
	}
}

type model struct {
	name   string
	cfg    *modelcfg.ModelConfig
	bopts  *config
	client *llmmodel.Lazy[*openaisdk.Client]
}

var _ llmmodel.Model = (*model)(nil)

func (m *model) Name() string {
	return m.name
}

func (m *model) Config() *modelcfg.ModelConfig {
	return m.cfg
}

func (m *model) newClient(ctx context.Context) (*openaisdk.Client, error) {
	key := m.bopts.secrets.APIKey(ctx, m.cfg, modelcfg.DefaultAPIKeyEnvVar)
	if key == "" {
		return nil, errors.Errorf("openai: missing API key for model %q", m.name)
	}

	ro := []option.RequestOption{
		option.WithAPIKey(key),
	}
	if m.bopts.baseURL != "" {
		ro = append(ro, option.WithBaseURL(m.bopts.baseURL))
	}
	if m.bopts.httpClient != nil {
		ro = append(ro, option.WithHTTPClient(m.bopts.httpClient))
	}
	client := openaisdk.NewClient(ro...)
	return &client, nil
}

// Invoke implements the Model interface.
func (m *model) Invoke(ctx context.Context, prompt string, opts ...llmmodel.CallOption) (*llmmodel.Response, error) {
	co := llmmodel.ResolveCallOptions(m.cfg, opts...)

	client, err := m.client.Get(ctx)
	if err != nil {
		return nil, err
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if co.SystemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(co.SystemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:               shared.ChatModel(m.cfg.ModelID),
		Messages:            messages,
		MaxCompletionTokens: openaisdk.Int(int64(co.MaxTokens)),
	}
	if co.Temperature > 0 {
		params.Temperature = openaisdk.Float(co.Temperature)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.WithMessagef(err, "openai: chat completion failed for model %q", m.name)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.WithMessagef(llmmodel.ErrEmptyResponse, "openai: model %q", m.name)
	}

	choice := resp.Choices[0]
	return &llmmodel.Response{
		Content:      choice.Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Metadata: map[string]any{
			"id":            resp.ID,
			"finish_reason": string(choice.FinishReason),
		},
	}, nil
}
