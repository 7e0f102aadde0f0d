package bedrock_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/effective-security/llmhub/pkg/llmmodel"
	"github.com/effective-security/llmhub/pkg/llmmodel/bedrock"
	"github.com/effective-security/llmhub/pkg/modelcfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	in  *bedrockruntime.ConverseInput
	out *bedrockruntime.ConverseOutput
	err error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func Test_Builder(t *testing.T) {
	inputTokens := int32(15)
	outputTokens := int32(6)
	client := &fakeConverse{
		out: &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{
				Value: types.Message{
					Role: types.ConversationRoleAssistant,
					Content: []types.ContentBlock{
						&types.ContentBlockMemberText{Value: "Llama says hi"},
					},
				},
			},
			StopReason: types.StopReasonEndTurn,
			Usage: &types.TokenUsage{
				InputTokens:  &inputTokens,
				OutputTokens: &outputTokens,
			},
		},
	}

	b := bedrock.NewBuilder(bedrock.WithClient(client))
	cfg := &modelcfg.ModelConfig{
		Name:        "Llama 3 8B Instruct",
		Provider:    "bedrock",
		ModelID:     "meta.llama3-8b-instruct-v1:0",
		RegionName:  "us-east-1",
		MaxTokens:   1024,
		Temperature: 0.5,
	}
	m, err := b("llama_3_8b_instruct", cfg)
	require.NoError(t, err)

	resp, err := m.Invoke(context.Background(), "hello",
		llmmodel.WithSystemPrompt("answer briefly"))
	require.NoError(t, err)
	assert.Equal(t, "Llama says hi", resp.Content)
	assert.EqualValues(t, 15, resp.InputTokens)
	assert.EqualValues(t, 6, resp.OutputTokens)
	assert.Equal(t, "end_turn", resp.Metadata["stop_reason"])

	require.NotNil(t, client.in)
	assert.Equal(t, "meta.llama3-8b-instruct-v1:0", aws.ToString(client.in.ModelId))
	require.NotNil(t, client.in.InferenceConfig)
	assert.EqualValues(t, 1024, *client.in.InferenceConfig.MaxTokens)
	assert.InDelta(t, 0.5, float64(*client.in.InferenceConfig.Temperature), 0.0001)
	require.Len(t, client.in.System, 1)
	sys, ok := client.in.System[0].(*types.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "answer briefly", sys.Value)
	require.Len(t, client.in.Messages, 1)
	assert.Equal(t, types.ConversationRoleUser, client.in.Messages[0].Role)
}

func Test_Builder_EmptyResponse(t *testing.T) {
	client := &fakeConverse{
		out: &bedrockruntime.ConverseOutput{
			Output:     &types.ConverseOutputMemberMessage{Value: types.Message{}},
			StopReason: types.StopReasonEndTurn,
		},
	}
	b := bedrock.NewBuilder(bedrock.WithClient(client))
	m, err := b("llama_3_8b_instruct", &modelcfg.ModelConfig{
		Name:     "Llama 3 8B Instruct",
		Provider: "bedrock",
		ModelID:  "meta.llama3-8b-instruct-v1:0",
	})
	require.NoError(t, err)

	_, err = m.Invoke(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, llmmodel.ErrEmptyResponse)
}
