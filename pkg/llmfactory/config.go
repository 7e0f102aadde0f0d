package llmfactory

import (
	"time"

	"github.com/effective-security/x/configloader"
)

// DefaultLocalDir is the local descriptor directory used when the config
// does not name one.
const DefaultLocalDir = "model_config"

// Config describes where the factory finds descriptors and provider
// modules. All fields are optional; the zero value gives a local-only
// factory over DefaultLocalDir.
type Config struct {
	// LocalDir is the local directory with model descriptors,
	// checked before any remote source.
	LocalDir string `json:"local_dir,omitempty" yaml:"local_dir,omitempty"`
	// ModelsS3Path is the s3://bucket/prefix with model descriptors.
	// When empty, it is resolved from the environment or SSM.
	ModelsS3Path string `json:"models_s3_path,omitempty" yaml:"models_s3_path,omitempty"`
	// ProvidersS3Path is the s3://bucket/prefix with provider modules.
	// When empty, it is resolved from the environment or SSM.
	ProvidersS3Path string `json:"providers_s3_path,omitempty" yaml:"providers_s3_path,omitempty"`
	// RemoteTimeout bounds a single remote fetch.
	RemoteTimeout time.Duration `json:"remote_timeout,omitempty" yaml:"remote_timeout,omitempty"`
	// CacheTTL is the lifetime of remotely fetched artifacts in the byte
	// cache.
	CacheTTL time.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
	// RedisAddr enables a Redis-backed byte cache shared between
	// processes. When empty, an in-memory cache is used.
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	// RedisPrefix namespaces the Redis keys.
	RedisPrefix string `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty"`
}

// LoadConfig from file, expanding environment variables.
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
