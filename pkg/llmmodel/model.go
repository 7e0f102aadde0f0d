// Package llmmodel defines the contract every provider-specific model
// implementation satisfies: construction from name+config without network
// I/O, lazy initialization of the underlying client, and a uniform invoke
// operation.
package llmmodel

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/modelcfg"
)

// ErrProviderInit is returned when the underlying client cannot be
// constructed, e.g. missing credentials or an invalid model id. The failure
// is not memoized; a subsequent Invoke retries initialization.
var ErrProviderInit = errors.New("provider initialization failed")

// ErrEmptyResponse is returned when a provider responds with no content.
var ErrEmptyResponse = errors.New("empty response")

// Response is the uniform result of an Invoke call.
type Response struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
	// Metadata carries provider-specific generation info.
	Metadata map[string]any
}

// Cost returns the USD cost of the call per the model's configured
// per-million token prices.
func (r *Response) Cost(cfg *modelcfg.ModelConfig) float64 {
	return cfg.Cost(r.InputTokens, true) + cfg.Cost(r.OutputTokens, false)
}

// Model is the interface all provider-specific models implement.
type Model interface {
	// Name returns the human-readable model name from the descriptor.
	Name() string
	// Config returns the descriptor the model was built from.
	Config() *modelcfg.ModelConfig
	// Invoke sends the prompt to the model and returns its response,
	// lazily initializing the underlying client on first call.
	Invoke(ctx context.Context, prompt string, opts ...CallOption) (*Response, error)
}

// Builder constructs a model from its name and descriptor. Builders must
// not perform network I/O; client creation is deferred to the first Invoke.
type Builder func(name string, cfg *modelcfg.ModelConfig) (Model, error)

// Lazy memoizes a successfully initialized value. A failed initialization
// is not memoized, so the next Get retries it.
type Lazy[T any] struct {
	init func(ctx context.Context) (T, error)

	mu    sync.Mutex
	value T
	ready bool
}

// NewLazy creates a lazily-initialized value.
func NewLazy[T any](init func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{init: init}
}

// Get returns the memoized value, initializing it on first use.
// Initialization failures are surfaced as ErrProviderInit.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready {
		return l.value, nil
	}

	v, err := l.init(ctx)
	if err != nil {
		var zero T
		return zero, errors.Mark(err, ErrProviderInit)
	}
	l.value = v
	l.ready = true
	return v, nil
}
