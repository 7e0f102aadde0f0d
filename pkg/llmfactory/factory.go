// Package llmfactory constructs and caches models by name. Descriptors are
// loaded through a source chain, providers resolved through the registry,
// and built models cached until a forced reload replaces them.
package llmfactory

import (
	"context"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/blobcache"
	"github.com/effective-security/llmhub/pkg/llmmodel"
	"github.com/effective-security/llmhub/pkg/metricskey"
	"github.com/effective-security/llmhub/pkg/modelcfg"
	"github.com/effective-security/llmhub/pkg/registry"
	"github.com/effective-security/llmhub/pkg/secrets"
	"github.com/effective-security/llmhub/pkg/source"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmhub", "llmfactory")

type entry struct {
	model    llmmodel.Model
	id       uuid.UUID
	loadedAt time.Time
}

// Factory builds and caches models by name.
type Factory struct {
	loader   *modelcfg.Loader
	registry *registry.Registry

	lock  sync.RWMutex
	cache map[string]*entry

	// per-name build locks, so concurrent requests for the same model
	// result in one build while other models build in parallel
	locks sync.Map
}

// New creates a factory over the given descriptor loader and provider
// registry.
func New(loader *modelcfg.Loader, reg *registry.Registry) *Factory {
	return &Factory{
		loader:   loader,
		registry: reg,
		cache:    make(map[string]*entry),
	}
}

// NewFromConfig wires a factory from configuration: a local descriptor
// directory first, then the S3 descriptor source when a path is configured
// or resolvable from the environment/SSM, builtin providers with Secrets
// Manager key resolution, and remote provider modules when a modules path
// is available.
func NewFromConfig(ctx context.Context, cfg *Config) (*Factory, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load AWS config")
	}

	var cache blobcache.Cache
	if cfg.RedisAddr != "" {
		cache = blobcache.NewRedis(redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		}), cfg.RedisPrefix, cfg.CacheTTL)
	} else {
		cache = blobcache.NewMemory(cfg.CacheTTL)
	}

	params := source.NewParams(ssm.NewFromConfig(awsCfg))

	modelsPath := cfg.ModelsS3Path
	if modelsPath == "" {
		modelsPath, err = params.Resolve(ctx, source.EnvModelsConfigPath, source.ParamModelsConfigPath)
		if err != nil {
			return nil, err
		}
	}
	providersPath := cfg.ProvidersS3Path
	if providersPath == "" {
		providersPath, err = params.Resolve(ctx, source.EnvProviderModulesPath, source.ParamProviderModulesPath)
		if err != nil {
			return nil, err
		}
	}

	localDir := cfg.LocalDir
	if localDir == "" {
		localDir = DefaultLocalDir
	}
	sources := []source.Source{source.NewDir(localDir)}
	if modelsPath != "" {
		s3src, err := source.NewS3(ctx, modelsPath,
			source.WithFetchTimeout(cfg.RemoteTimeout),
			source.WithCache(cache))
		if err != nil {
			return nil, err
		}
		sources = append(sources, s3src)
	}

	reg := registry.Builtin(secrets.NewResolver(secretsmanager.NewFromConfig(awsCfg)))
	if providersPath != "" {
		psrc, err := source.NewS3(ctx, providersPath,
			source.WithFetchTimeout(cfg.RemoteTimeout),
			source.WithCache(cache))
		if err != nil {
			return nil, err
		}
		reg = reg.WithRemote(registry.NewRemoteLoader(psrc))
	}

	logger.KV(xlog.INFO,
		"status", "factory_configured",
		"local_dir", localDir,
		"models_path", modelsPath,
		"providers_path", providersPath)
	return New(modelcfg.NewLoader(sources...), reg), nil
}

type getOptions struct {
	configDir   string
	forceReload bool
}

// Option customizes a single Get call.
type Option func(*getOptions)

// WithConfigDir probes an extra local directory before the factory's own
// sources, for this call only.
func WithConfigDir(dir string) Option {
	return func(o *getOptions) {
		o.configDir = dir
	}
}

// WithForceReload rebuilds the model even when cached, replacing the cached
// entry on success. A failed rebuild leaves the previous entry in place.
func WithForceReload() Option {
	return func(o *getOptions) {
		o.forceReload = true
	}
}

// Get returns the model for the name, building and caching it on first use.
// Concurrent calls for the same name share one build; different names build
// in parallel.
func (f *Factory) Get(ctx context.Context, name string, opts ...Option) (llmmodel.Model, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !o.forceReload {
		f.lock.RLock()
		e, ok := f.cache[name]
		f.lock.RUnlock()
		if ok {
			metricskey.StatsModelCacheHits.IncrCounter(1, name)
			return e.model, nil
		}
	}

	lk := f.nameLock(name)
	lk.Lock()
	defer lk.Unlock()

	if o.forceReload {
		metricskey.StatsModelForcedReloads.IncrCounter(1, name)
		ctx = source.WithBypassCache(ctx)
	} else {
		// another request may have built the model while we waited
		f.lock.RLock()
		e, ok := f.cache[name]
		f.lock.RUnlock()
		if ok {
			metricskey.StatsModelCacheHits.IncrCounter(1, name)
			return e.model, nil
		}
		metricskey.StatsModelCacheMisses.IncrCounter(1, name)
	}

	m, err := f.build(ctx, name, &o)
	if err != nil {
		// a failed build never evicts; the previous entry, if any, stays
		metricskey.StatsModelBuildsFailed.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.ERROR,
			"reason", "model_build_failed",
			"model", name,
			"force_reload", o.forceReload,
			"err", err.Error())
		return nil, err
	}

	f.lock.Lock()
	f.cache[name] = &entry{
		model:    m,
		id:       uuid.New(),
		loadedAt: time.Now(),
	}
	f.lock.Unlock()
	return m, nil
}

func (f *Factory) build(ctx context.Context, name string, o *getOptions) (llmmodel.Model, error) {
	started := time.Now()
	defer metricskey.PerfModelBuild.MeasureSince(started, name)

	ldr := f.loader
	if o.configDir != "" {
		ldr = ldr.WithSources(source.NewDir(o.configDir))
	}

	cfg, err := ldr.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	builder, err := f.registry.Resolve(ctx, cfg.Provider)
	if err != nil {
		return nil, err
	}

	m, err := builder(name, cfg)
	if err != nil {
		return nil, errors.Mark(err, llmmodel.ErrProviderInit)
	}

	metricskey.StatsModelBuildsSucceeded.IncrCounter(1, name, cfg.Provider)
	logger.ContextKV(ctx, xlog.INFO,
		"status", "model_built",
		"model", name,
		"provider", cfg.Provider)
	return m, nil
}

func (f *Factory) nameLock(name string) *sync.Mutex {
	v, _ := f.locks.LoadOrStore(name, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// GetLLM is a convenience wrapper matching the common call shape: an
// optional extra config directory and a force-reload flag.
func (f *Factory) GetLLM(ctx context.Context, name, configDir string, forceReload bool) (llmmodel.Model, error) {
	var opts []Option
	if configDir != "" {
		opts = append(opts, WithConfigDir(configDir))
	}
	if forceReload {
		opts = append(opts, WithForceReload())
	}
	return f.Get(ctx, name, opts...)
}

// Reset drops all cached models. Subsequent Gets rebuild.
func (f *Factory) Reset() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.cache = make(map[string]*entry)
}

// CacheEntryInfo describes a cached model.
type CacheEntryInfo struct {
	// ID changes every time the entry is replaced.
	ID       uuid.UUID
	Provider string
	LoadedAt time.Time
}

// CacheInfo returns metadata about the cached entry for the name.
func (f *Factory) CacheInfo(name string) (*CacheEntryInfo, bool) {
	f.lock.RLock()
	defer f.lock.RUnlock()

	e, ok := f.cache[name]
	if !ok {
		return nil, false
	}
	return &CacheEntryInfo{
		ID:       e.id,
		Provider: e.model.Config().Provider,
		LoadedAt: e.loadedAt,
	}, true
}

// CachedModels returns the names of the currently cached models.
func (f *Factory) CachedModels() []string {
	f.lock.RLock()
	defer f.lock.RUnlock()

	names := make([]string, 0, len(f.cache))
	for name := range f.cache {
		names = append(names, name)
	}
	return names
}
