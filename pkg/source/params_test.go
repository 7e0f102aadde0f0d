package source_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	params map[string]string
	err    error
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.params[aws.ToString(in.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Value: aws.String(v)},
	}, nil
}

func Test_Params_EnvWins(t *testing.T) {
	ctx := context.Background()
	t.Setenv(source.EnvModelsConfigPath, "s3://env-bucket/models")

	p := source.NewParams(&fakeSSM{
		params: map[string]string{
			source.ParamModelsConfigPath: "s3://ssm-bucket/models",
		},
	})
	v, err := p.Resolve(ctx, source.EnvModelsConfigPath, source.ParamModelsConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "s3://env-bucket/models", v)
}

func Test_Params_SSMFallback(t *testing.T) {
	ctx := context.Background()
	t.Setenv(source.EnvProviderModulesPath, "")

	p := source.NewParams(&fakeSSM{
		params: map[string]string{
			source.ParamProviderModulesPath: "s3://ssm-bucket/providers",
		},
	})
	v, err := p.Resolve(ctx, source.EnvProviderModulesPath, source.ParamProviderModulesPath)
	require.NoError(t, err)
	assert.Equal(t, "s3://ssm-bucket/providers", v)

	// a parameter that is set nowhere resolves to empty without error
	v, err = p.Resolve(ctx, "LLMHUB_UNSET", "/LLM_CONFIG/UNSET")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func Test_Params_NilClient(t *testing.T) {
	ctx := context.Background()
	t.Setenv(source.EnvModelsConfigPath, "")

	p := source.NewParams(nil)
	v, err := p.Resolve(ctx, source.EnvModelsConfigPath, source.ParamModelsConfigPath)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func Test_Params_Timeout(t *testing.T) {
	ctx := context.Background()
	t.Setenv(source.EnvModelsConfigPath, "")

	p := source.NewParams(&fakeSSM{err: context.DeadlineExceeded})
	_, err := p.Resolve(ctx, source.EnvModelsConfigPath, source.ParamModelsConfigPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrFetchTimeout))
}
