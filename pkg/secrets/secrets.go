// Package secrets resolves provider API keys from AWS Secrets Manager with
// an environment variable fallback.
package secrets

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/modelcfg"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmhub", "secrets")

// DefaultTimeout bounds a single Secrets Manager call.
const DefaultTimeout = 10 * time.Second

// SecretsAPI is the subset of the Secrets Manager client used by Resolver.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver resolves API keys for model descriptors.
type Resolver struct {
	client  SecretsAPI
	timeout time.Duration
}

// NewResolver creates a Resolver. The client may be nil, in which case only
// environment variables are consulted.
func NewResolver(client SecretsAPI) *Resolver {
	return &Resolver{
		client:  client,
		timeout: DefaultTimeout,
	}
}

// NewResolverFromAWS creates a Resolver backed by the default AWS
// configuration chain.
func NewResolverFromAWS(ctx context.Context) (*Resolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load AWS config")
	}
	return NewResolver(secretsmanager.NewFromConfig(cfg)), nil
}

// APIKey returns the API key for the descriptor. A configured secret name is
// looked up in Secrets Manager; on lookup failure or when no secret name is
// configured, the key is read from the descriptor's environment variable,
// or defaultEnvVar when the descriptor does not name one. An empty result
// is not an error; providers decide whether a key is required.
func (r *Resolver) APIKey(ctx context.Context, cfg *modelcfg.ModelConfig, defaultEnvVar string) string {
	if r != nil && r.client != nil && cfg.APIKeySecretName != "" {
		fctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		out, err := r.client.GetSecretValue(fctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(cfg.APIKeySecretName),
		})
		if err == nil && out.SecretString != nil {
			return aws.ToString(out.SecretString)
		}
		if err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"reason", "secret_lookup_failed",
				"secret", cfg.APIKeySecretName,
				"err", err.Error())
		}
	}

	envVar := cfg.APIKeyEnvVar
	if envVar == "" {
		envVar = defaultEnvVar
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}
