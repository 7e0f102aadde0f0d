package registry

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/llmmodel/luascript"
	"github.com/effective-security/llmhub/pkg/metricskey"
	"github.com/effective-security/llmhub/pkg/source"
	"github.com/effective-security/xlog"
)

// RemoteLoader fetches and compiles provider modules from an artifact
// source. The provider key is the file stem: key "acme_llm" loads
// "acme_llm.lua".
type RemoteLoader struct {
	src source.Source
}

// NewRemoteLoader creates a loader over the source.
func NewRemoteLoader(src source.Source) *RemoteLoader {
	return &RemoteLoader{src: src}
}

// Load fetches and compiles the module for the provider key. A missing
// module maps to ErrNotFound; fetch timeouts and transport errors are
// propagated unchanged.
func (l *RemoteLoader) Load(ctx context.Context, key string) (*luascript.Script, error) {
	data, err := l.src.Fetch(ctx, key+luascript.Ext)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return nil, errors.WithMessagef(ErrNotFound, "provider %q", key)
		}
		return nil, errors.WithMessagef(err, "failed to fetch provider module %q", key)
	}

	script, err := luascript.Compile(key, data)
	if err != nil {
		return nil, err
	}

	metricskey.StatsRemoteProviderLoads.IncrCounter(1, key)
	logger.ContextKV(ctx, xlog.DEBUG, "status", "provider_module_loaded", "provider", key, "source", l.src.Name())
	return script, nil
}

// LoadAll fetches and compiles every module the source lists. Modules that
// fail to compile are skipped with a warning, so one broken script does not
// block the rest.
func (l *RemoteLoader) LoadAll(ctx context.Context) ([]*luascript.Script, error) {
	names, err := l.src.List(ctx, luascript.Ext)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to list provider modules")
	}

	scripts := make([]*luascript.Script, 0, len(names))
	for _, name := range names {
		script, err := l.Load(ctx, source.Stem(name))
		if err != nil {
			logger.ContextKV(ctx, xlog.WARNING, "reason", "provider_module_skipped", "module", name, "err", err.Error())
			continue
		}
		scripts = append(scripts, script)
	}
	return scripts, nil
}
