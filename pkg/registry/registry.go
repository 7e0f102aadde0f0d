// Package registry maps provider keys to model builders. Builtin providers
// are registered at construction; unknown keys fall through to a remote
// loader that fetches provider modules by file stem.
package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/llmmodel"
	"github.com/effective-security/llmhub/pkg/llmmodel/anthropic"
	"github.com/effective-security/llmhub/pkg/llmmodel/bedrock"
	"github.com/effective-security/llmhub/pkg/llmmodel/googleai"
	"github.com/effective-security/llmhub/pkg/llmmodel/openai"
	"github.com/effective-security/llmhub/pkg/secrets"
	"github.com/effective-security/xlog"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmhub", "registry")

// ErrNotFound is returned when no builder exists for a provider key, builtin
// or remote.
var ErrNotFound = errors.New("provider not found")

// Registry holds provider builders in registration order.
type Registry struct {
	mu       sync.RWMutex
	builders *orderedmap.OrderedMap[string, llmmodel.Builder]
	remote   *RemoteLoader
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		builders: orderedmap.New[string, llmmodel.Builder](),
	}
}

// Builtin creates a registry with the builtin providers registered. The
// secrets resolver may be nil; builders then fall back to environment
// variables.
func Builtin(sec *secrets.Resolver, opts ...BuiltinOption) *Registry {
	c := &builtinConfig{}
	for _, opt := range opts {
		opt(c)
	}

	r := New()
	r.Register(openai.Provider, openai.NewBuilder(append([]openai.Option{openai.WithSecrets(sec)}, c.openai...)...))
	r.Register(anthropic.Provider, anthropic.NewBuilder(append([]anthropic.Option{anthropic.WithSecrets(sec)}, c.anthropic...)...))
	r.Register(bedrock.Provider, bedrock.NewBuilder(c.bedrock...))
	r.Register(googleai.Provider, googleai.NewBuilder(append([]googleai.Option{googleai.WithSecrets(sec)}, c.googleai...)...))
	return r
}

type builtinConfig struct {
	openai    []openai.Option
	anthropic []anthropic.Option
	bedrock   []bedrock.Option
	googleai  []googleai.Option
}

// BuiltinOption customizes builtin provider builders.
type BuiltinOption func(*builtinConfig)

// WithOpenAIOptions appends options to the OpenAI builder.
func WithOpenAIOptions(opts ...openai.Option) BuiltinOption {
	return func(c *builtinConfig) {
		c.openai = append(c.openai, opts...)
	}
}

// WithAnthropicOptions appends options to the Anthropic builder.
func WithAnthropicOptions(opts ...anthropic.Option) BuiltinOption {
	return func(c *builtinConfig) {
		c.anthropic = append(c.anthropic, opts...)
	}
}

// WithBedrockOptions appends options to the Bedrock builder.
func WithBedrockOptions(opts ...bedrock.Option) BuiltinOption {
	return func(c *builtinConfig) {
		c.bedrock = append(c.bedrock, opts...)
	}
}

// WithGoogleAIOptions appends options to the Google AI builder.
func WithGoogleAIOptions(opts ...googleai.Option) BuiltinOption {
	return func(c *builtinConfig) {
		c.googleai = append(c.googleai, opts...)
	}
}

// WithRemote attaches a remote loader consulted for keys without a
// registered builder.
func (r *Registry) WithRemote(loader *RemoteLoader) *Registry {
	r.remote = loader
	return r
}

// Register adds a builder under the key, case-insensitively. An existing
// registration under the same key is replaced.
func (r *Registry) Register(key string, b llmmodel.Builder) {
	key = strings.ToLower(key)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, present := r.builders.Get(key); present {
		logger.KV(xlog.INFO, "status", "provider_replaced", "provider", key)
	}
	r.builders.Set(key, b)
}

// Keys returns the registered provider keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, r.builders.Len())
	for pair := r.builders.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Resolve returns the builder for the provider key. Registered builders win;
// otherwise the remote loader is consulted and a successfully loaded module
// is registered for subsequent calls. Remote fetch failures other than
// not-found are propagated as-is so callers can distinguish a timeout from
// an unknown provider.
func (r *Registry) Resolve(ctx context.Context, key string) (llmmodel.Builder, error) {
	key = strings.ToLower(key)

	r.mu.RLock()
	b, present := r.builders.Get(key)
	r.mu.RUnlock()
	if present {
		return b, nil
	}

	if r.remote == nil {
		return nil, errors.WithMessagef(ErrNotFound, "provider %q", key)
	}

	script, err := r.remote.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	b = script.Builder()
	r.Register(key, b)
	return b, nil
}
