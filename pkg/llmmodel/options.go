package llmmodel

import (
	"github.com/effective-security/llmhub/pkg/modelcfg"
)

// CallOptions are per-call generation parameters. Unset fields inherit the
// model descriptor's values.
type CallOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int
	// Temperature is the sampling temperature.
	Temperature float64
	// SystemPrompt is prepended as the system message, when the provider
	// supports one.
	SystemPrompt string
	// StopWords stop generation when produced.
	StopWords []string
	// Metadata is passed through to providers that accept request metadata.
	Metadata map[string]any
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// WithMaxTokens overrides the descriptor's max_tokens for one call.
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = n
	}
}

// WithTemperature overrides the descriptor's temperature for one call.
func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = t
	}
}

// WithSystemPrompt sets the system message for one call.
func WithSystemPrompt(s string) CallOption {
	return func(o *CallOptions) {
		o.SystemPrompt = s
	}
}

// WithStopWords sets stop sequences for one call.
func WithStopWords(stop []string) CallOption {
	return func(o *CallOptions) {
		o.StopWords = stop
	}
}

// WithMetadata attaches request metadata for one call.
func WithMetadata(md map[string]any) CallOption {
	return func(o *CallOptions) {
		o.Metadata = md
	}
}

// ResolveCallOptions seeds CallOptions from the descriptor and applies the
// per-call overrides on top.
func ResolveCallOptions(cfg *modelcfg.ModelConfig, opts ...CallOption) *CallOptions {
	o := &CallOptions{
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = modelcfg.DefaultMaxTokens
	}
	return o
}
