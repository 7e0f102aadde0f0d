package secrets_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/modelcfg"
	"github.com/effective-security/llmhub/pkg/secrets"
	"github.com/stretchr/testify/assert"
)

type fakeSecrets struct {
	values map[string]string
	err    error
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(in.SecretId)]
	if !ok {
		return nil, errors.New("secret not found")
	}
	return &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(v),
	}, nil
}

func Test_APIKey_Secret(t *testing.T) {
	ctx := context.Background()
	r := secrets.NewResolver(&fakeSecrets{
		values: map[string]string{
			"prod/openai/api_key": "sk-from-secret",
		},
	})

	cfg := &modelcfg.ModelConfig{
		APIKeySecretName: "prod/openai/api_key",
	}
	assert.Equal(t, "sk-from-secret", r.APIKey(ctx, cfg, modelcfg.DefaultAPIKeyEnvVar))
}

func Test_APIKey_EnvFallback(t *testing.T) {
	ctx := context.Background()
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("MY_CUSTOM_KEY", "sk-custom")

	// no secret name configured
	r := secrets.NewResolver(&fakeSecrets{})
	assert.Equal(t, "sk-from-env", r.APIKey(ctx, &modelcfg.ModelConfig{}, modelcfg.DefaultAPIKeyEnvVar))

	// descriptor names its own env var
	cfg := &modelcfg.ModelConfig{APIKeyEnvVar: "MY_CUSTOM_KEY"}
	assert.Equal(t, "sk-custom", r.APIKey(ctx, cfg, modelcfg.DefaultAPIKeyEnvVar))

	// secret lookup failure falls back to the environment
	r = secrets.NewResolver(&fakeSecrets{err: errors.New("access denied")})
	cfg = &modelcfg.ModelConfig{APIKeySecretName: "prod/openai/api_key"}
	assert.Equal(t, "sk-from-env", r.APIKey(ctx, cfg, modelcfg.DefaultAPIKeyEnvVar))

	// nil client only consults the environment
	r = secrets.NewResolver(nil)
	assert.Equal(t, "sk-from-env", r.APIKey(ctx, &modelcfg.ModelConfig{}, modelcfg.DefaultAPIKeyEnvVar))
}

func Test_APIKey_Empty(t *testing.T) {
	ctx := context.Background()
	t.Setenv("OPENAI_API_KEY", "")

	r := secrets.NewResolver(nil)
	assert.Empty(t, r.APIKey(ctx, &modelcfg.ModelConfig{}, modelcfg.DefaultAPIKeyEnvVar))
	assert.Empty(t, r.APIKey(ctx, &modelcfg.ModelConfig{}, ""))
}
