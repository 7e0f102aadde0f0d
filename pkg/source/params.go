package source

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// Named parameters pointing at the remote artifact directories. Each is
// overridable by an environment variable; the SSM parameter is the fallback.
const (
	EnvProviderModulesPath = "LLMHUB_PROVIDER_MODULES_S3_PATH"
	EnvModelsConfigPath    = "LLMHUB_MODELS_CONFIG_S3_PATH"

	ParamProviderModulesPath = "/LLM_CONFIG/PROVIDER_MODULES_S3_PATH"
	ParamModelsConfigPath    = "/LLM_CONFIG/MODELS_CONFIG_S3_PATH"
)

// SSMAPI is the subset of the SSM client used for parameter resolution.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, opts ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Params resolves named configuration parameters from the environment,
// falling back to SSM Parameter Store.
type Params struct {
	client  SSMAPI
	timeout time.Duration
}

// NewParams creates a resolver. The client may be nil, in which case only
// environment variables are consulted.
func NewParams(client SSMAPI) *Params {
	return &Params{
		client:  client,
		timeout: DefaultFetchTimeout,
	}
}

// Resolve returns the value of the named parameter: the environment
// variable wins when set; otherwise the SSM parameter is fetched with
// decryption. A parameter that is set nowhere resolves to an empty string
// without error.
func (p *Params) Resolve(ctx context.Context, envVar, paramName string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	if p == nil || p.client == nil || paramName == "" {
		return "", nil
	}

	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.GetParameter(fctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			logger.KV(xlog.DEBUG, "status", "parameter_not_found", "name", paramName)
			return "", nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fctx.Err(), context.DeadlineExceeded) {
			return "", errors.Wrapf(ErrFetchTimeout, "parameter %q", paramName)
		}
		return "", errors.Wrapf(ErrFetch, "parameter %q: %s", paramName, err.Error())
	}
	return aws.ToString(out.Parameter.Value), nil
}
