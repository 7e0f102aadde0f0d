// Package anthropic builds models backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"net/http"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/llmmodel"
	"github.com/effective-security/llmhub/pkg/modelcfg"
	"github.com/effective-security/llmhub/pkg/secrets"
)

// Provider is the registry key for this builder.
const Provider = "anthropic"

// DefaultAPIKeyEnvVar is consulted when the descriptor does not name a
// secret or an environment variable.
const DefaultAPIKeyEnvVar = "ANTHROPIC_API_KEY"

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

// WithBaseURL points the client at an alternate endpoint.
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

// NewBuilder returns a Builder for Anthropic models.
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
	client *llmmodel.Lazy[*anthropicsdk.Client]
}

var _ llmmodel.Model = (*model)(nil)

func (m *model) Name() string {
	return m.name
}

func (m *model) Config() *modelcfg.ModelConfig {
	return m.cfg
}

func (m *model) newClient(ctx context.Context) (*anthropicsdk.Client, error) {
	key := m.bopts.secrets.APIKey(ctx, m.cfg, DefaultAPIKeyEnvVar)
	if key == "" {
		return nil, errors.Errorf("anthropic: missing API key for model %q", m.name)
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
	client := anthropicsdk.NewClient(ro...)
	return &client, nil
}

// Invoke implements the Model interface.
func (m *model) Invoke(ctx context.Context, prompt string, opts ...llmmodel.CallOption) (*llmmodel.Response, error) {
	co := llmmodel.ResolveCallOptions(m.cfg, opts...)

	client, err := m.client.Get(ctx)
	if err != nil {
		return nil, err
	}

	params := anthropicsdk.MessageNewParams{
		Model: anthropicsdk.Model(m.cfg.ModelID),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
		MaxTokens: int64(co.MaxTokens),
	}
	if co.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{
			{
				Type: "text",
				Text: co.SystemPrompt,
			},
		}
	}
	if co.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(co.Temperature)
	}
	if len(co.StopWords) > 0 {
		params.StopSequences = co.StopWords
	}

	result, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.WithMessagef(err, "anthropic: message failed for model %q", m.name)
	}

	var content string
	for _, block := range result.Content {
		if tb, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			content += tb.Text
		}
	}
	if content == "" {
		return nil, errors.WithMessagef(llmmodel.ErrEmptyResponse, "anthropic: model %q", m.name)
	}

	return &llmmodel.Response{
		Content:      content,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		Metadata: map[string]any{
			"id":          result.ID,
			"stop_reason": string(result.StopReason),
		},
	}, nil
}
