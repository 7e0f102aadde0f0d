package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsModelCacheHits is a counter metric for model cache hits
	StatsModelCacheHits = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_model_cache_hits",
		Help:         "stats_model_cache_hits provides total model cache hits",
		RequiredTags: []string{"model"},
	}

	StatsModelCacheMisses = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_model_cache_misses",
		Help:         "stats_model_cache_misses provides total model cache misses",
		RequiredTags: []string{"model"},
	}

	StatsModelBuildsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_model_builds_succeeded",
		Help:         "stats_model_builds_succeeded provides total model builds succeeded",
		RequiredTags: []string{"model", "provider"},
	}

	StatsModelBuildsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_model_builds_failed",
		Help:         "stats_model_builds_failed provides total model builds failed",
		RequiredTags: []string{"model"},
	}

	StatsModelForcedReloads = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_model_forced_reloads",
		Help:         "stats_model_forced_reloads provides total forced model reloads",
		RequiredTags: []string{"model"},
	}

	StatsRemoteProviderLoads = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_remote_provider_loads",
		Help:         "stats_remote_provider_loads provides total provider modules loaded from remote source",
		RequiredTags: []string{"provider"},
	}

	StatsRemoteFetches = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_remote_fetches",
		Help:         "stats_remote_fetches provides total remote artifact fetches",
		RequiredTags: []string{"source"},
	}

	StatsRemoteFetchErrors = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_remote_fetch_errors",
		Help:         "stats_remote_fetch_errors provides total remote artifact fetch errors",
		RequiredTags: []string{"source"},
	}
)

// Perf
var (
	PerfModelBuild = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_model_build",
		Help:         "perf_model_build provides duration of model build",
		RequiredTags: []string{"model"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfModelBuild,
	&StatsModelBuildsFailed,
	&StatsModelBuildsSucceeded,
	&StatsModelCacheHits,
	&StatsModelCacheMisses,
	&StatsModelForcedReloads,
	&StatsRemoteFetchErrors,
	&StatsRemoteFetches,
	&StatsRemoteProviderLoads,
}
