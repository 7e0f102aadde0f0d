package modelcfg

import (
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

var (
	// ErrNotFound is returned when no descriptor exists for the requested
	// model name in any configured source.
	ErrNotFound = errors.New("model config not found")
	// ErrParse is returned when a descriptor is present but malformed or
	// missing required fields.
	ErrParse = errors.New("model config is invalid")
)

// Defaults applied to descriptors that omit the corresponding keys.
// DefaultAPIKeyEnvVar is consulted by providers that do not declare their
// own fallback environment variable.
const (
	DefaultMaxTokens    = 1024
	DefaultTemperature  = 0.7
	DefaultAPIKeyEnvVar = "OPENAI_API_KEY"
)

var validate = validator.New()

// ModelConfig is the settings record for a single model, loaded from a
// per-model YAML descriptor. Immutable once loaded.
type ModelConfig struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Provider string `json:"provider" yaml:"provider" validate:"required"`
	ModelID  string `json:"model_id" yaml:"model_id" validate:"required"`

	RegionName       string `json:"region_name,omitempty" yaml:"region_name,omitempty"`
	APIKeySecretName string `json:"api_key_secret_name,omitempty" yaml:"api_key_secret_name,omitempty"`
	APIKeyEnvVar     string `json:"api_key_env_var,omitempty" yaml:"api_key_env_var,omitempty"`

	// Costs are expressed in USD per million tokens.
	InputTokenCost  float64 `json:"input_token_cost_usd_per_million,omitempty" yaml:"input_token_cost_usd_per_million,omitempty" validate:"gte=0"`
	OutputTokenCost float64 `json:"output_token_cost_usd_per_million,omitempty" yaml:"output_token_cost_usd_per_million,omitempty" validate:"gte=0"`

	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=1"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"gte=0,lte=2"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`

	// Extra captures provider-specific keys that are not part of the
	// common schema. They are passed through to the provider opaquely.
	Extra map[string]any `json:"-" yaml:",inline"`
}

// Parse decodes a YAML descriptor and validates it.
// The desc argument identifies the descriptor in error messages.
func Parse(desc string, data []byte) (*ModelConfig, error) {
	cfg := &ModelConfig{
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(ErrParse, "descriptor %q: %s", desc, err.Error())
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrapf(ErrParse, "descriptor %q: %s", desc, err.Error())
	}
	return cfg, nil
}

// JSON renders the descriptor, including Extra keys, as canonical JSON.
// Used for the script provider bridge and for cache keying.
func (c *ModelConfig) JSON() ([]byte, error) {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal model config")
	}
	data, err := sigsyaml.YAMLToJSON(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert model config to JSON")
	}
	return data, nil
}

// Cost returns the USD cost of the given token count.
// Input and output tokens are priced independently.
func (c *ModelConfig) Cost(tokens int64, input bool) float64 {
	price := c.OutputTokenCost
	if input {
		price = c.InputTokenCost
	}
	return float64(tokens) / 1_000_000 * price
}
