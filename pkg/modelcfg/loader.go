package modelcfg

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/source"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmhub", "modelcfg")

// DescriptorExt is the file extension of model descriptors.
const DescriptorExt = ".yaml"

// Loader resolves a model name to its descriptor by probing the configured
// sources in order; the first source that has the descriptor wins.
type Loader struct {
	sources []source.Source
}

// NewLoader creates a loader over the given sources.
// Typically the local directory source comes first, the remote one last.
func NewLoader(sources ...source.Source) *Loader {
	return &Loader{sources: sources}
}

// WithSources returns a loader that probes extra sources before this
// loader's own. The receiver is not modified.
func (l *Loader) WithSources(extra ...source.Source) *Loader {
	if len(extra) == 0 {
		return l
	}
	return &Loader{sources: append(extra[:len(extra):len(extra)], l.sources...)}
}

// Load fetches and parses the descriptor `<name>.yaml`.
// Returns ErrNotFound when no configured source has the descriptor,
// ErrParse when it exists but is invalid. Fetch failures other than
// "not found" propagate unchanged so the caller can tell a broken remote
// from a missing descriptor.
func (l *Loader) Load(ctx context.Context, name string) (*ModelConfig, error) {
	if name == "" {
		return nil, errors.WithStack(ErrNotFound)
	}

	file := name + DescriptorExt
	for _, src := range l.sources {
		data, err := src.Fetch(ctx, file)
		if err != nil {
			if errors.Is(err, source.ErrNotFound) {
				continue
			}
			return nil, err
		}

		cfg, err := Parse(file, data)
		if err != nil {
			return nil, err
		}

		logger.KV(xlog.DEBUG,
			"status", "loaded_config",
			"model", name,
			"provider", cfg.Provider,
			"source", src.Name())
		return cfg, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "model %q", name)
}
