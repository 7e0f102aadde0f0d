// Package googleai builds models backed by the Gemini API.
package googleai

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/llmmodel"
	"github.com/effective-security/llmhub/pkg/modelcfg"
	"github.com/effective-security/llmhub/pkg/secrets"
	"google.golang.org/genai"
)

// Provider is the registry key for this builder.
const Provider = "googleai"

// DefaultAPIKeyEnvVar is consulted when the descriptor does not name a
// secret or an environment variable.
const DefaultAPIKeyEnvVar = "GEMINI_API_KEY"

type config struct {
	secrets    *secrets.Resolver
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

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// NewBuilder returns a Builder for Gemini models.
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
	client *llmmodel.Lazy[*genai.Client]
}

var _ llmmodel.Model = (*model)(nil)

func (m *model) Name() string {
	return m.name
}

func (m *model) Config() *modelcfg.ModelConfig {
	return m.cfg
}

func (m *model) newClient(ctx context.Context) (*genai.Client, error) {
	key := m.bopts.secrets.APIKey(ctx, m.cfg, DefaultAPIKeyEnvVar)
	if key == "" {
		return nil, errors.Errorf("googleai: missing API key for model %q", m.name)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: m.bopts.httpClient,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "googleai: failed to create client for model %q", m.name)
	}
	return client, nil
}

// Invoke implements the Model interface.
func (m *model) Invoke(ctx context.Context, prompt string, opts ...llmmodel.CallOption) (*llmmodel.Response, error) {
	co := llmmodel.ResolveCallOptions(m.cfg, opts...)

	client, err := m.client.Get(ctx)
	if err != nil {
		return nil, err
	}

	temperature := float32(co.Temperature)
	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(co.MaxTokens),
		Temperature:     &temperature,
	}
	if co.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(co.SystemPrompt, genai.RoleUser)
	}
	if len(co.StopWords) > 0 {
		genCfg.StopSequences = co.StopWords
	}

	resp, err := client.Models.GenerateContent(ctx, m.cfg.ModelID, genai.Text(prompt), genCfg)
	if err != nil {
		return nil, errors.WithMessagef(err, "googleai: generate failed for model %q", m.name)
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.WithMessagef(llmmodel.ErrEmptyResponse, "googleai: model %q", m.name)
	}

	out := &llmmodel.Response{
		Content: resp.Text(),
		Metadata: map[string]any{
			"finish_reason": string(resp.Candidates[0].FinishReason),
		},
	}
	if usage := resp.UsageMetadata; usage != nil {
		out.InputTokens = int64(usage.PromptTokenCount)
		out.OutputTokens = int64(usage.CandidatesTokenCount)
	}
	if out.Content == "" {
		return nil, errors.WithMessagef(llmmodel.ErrEmptyResponse, "googleai: model %q", m.name)
	}
	return out, nil
}
