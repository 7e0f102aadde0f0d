// Package bedrock builds models backed by the AWS Bedrock Converse API.
package bedrock

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/llmmodel"
	"github.com/effective-security/llmhub/pkg/modelcfg"
)

// Provider is the registry key for this builder.
const Provider = "bedrock"

// ConverseAPI is the subset of the Bedrock runtime client used by the model.
type ConverseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type config struct {
	client ConverseAPI
}

// Option configures the builder.
type Option func(*config)

// WithClient injects a Bedrock runtime client, bypassing the AWS
// configuration chain.
func WithClient(client ConverseAPI) Option {
	return func(c *config) {
		c.client = client
	}
}

// NewBuilder returns a Builder for Bedrock models. Credentials come from the
// default AWS chain; the descriptor's region_name selects the region.
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
	client *llmmodel.Lazy[ConverseAPI]
}

var _ llmmodel.Model = (*model)(nil)

func (m *model) Name() string {
	return m.name
}

func (m *model) Config() *modelcfg.ModelConfig {
	return m.cfg
}

func (m *model) newClient(ctx context.Context) (ConverseAPI, error) {
	if m.bopts.client != nil {
		return m.bopts.client, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if m.cfg.RegionName != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(m.cfg.RegionName))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.WithMessagef(err, "bedrock: failed to load AWS config for model %q", m.name)
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

// Invoke implements the Model interface.
func (m *model) Invoke(ctx context.Context, prompt string, opts ...llmmodel.CallOption) (*llmmodel.Response, error) {
	co := llmmodel.ResolveCallOptions(m.cfg, opts...)

	client, err := m.client.Get(ctx)
	if err != nil {
		return nil, err
	}

	maxTokens := int32(co.MaxTokens)
	temperature := float32(co.Temperature)
	in := &bedrockruntime.ConverseInput{
		ModelId: &m.cfg.ModelID,
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		},
	}
	if co.SystemPrompt != "" {
		in.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: co.SystemPrompt},
		}
	}
	if len(co.StopWords) > 0 {
		in.InferenceConfig.StopSequences = co.StopWords
	}

	out, err := client.Converse(ctx, in)
	if err != nil {
		return nil, errors.WithMessagef(err, "bedrock: converse failed for model %q", m.name)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.WithMessagef(llmmodel.ErrEmptyResponse, "bedrock: model %q", m.name)
	}

	var content string
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			content += tb.Value
		}
	}
	if content == "" {
		return nil, errors.WithMessagef(llmmodel.ErrEmptyResponse, "bedrock: model %q", m.name)
	}

	resp := &llmmodel.Response{
		Content: content,
		Metadata: map[string]any{
			"stop_reason": string(out.StopReason),
		},
	}
	if out.Usage != nil {
		if out.Usage.InputTokens != nil {
			resp.InputTokens = int64(*out.Usage.InputTokens)
		}
		if out.Usage.OutputTokens != nil {
			resp.OutputTokens = int64(*out.Usage.OutputTokens)
		}
	}
	return resp, nil
}
