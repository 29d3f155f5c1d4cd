package config

// Cache backend types.
const (
	CacheTypeMemory  = "memory"
	CacheTypeRedis   = "redis"
	CacheTypeLevelDB = "leveldb"
)

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Enabled indicates whether caching is enabled.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Type is the cache backend type: "memory", "redis" or "leveldb".
	Type string `yaml:"type" json:"type"`

	// TTL is the default time-to-live for cached entries.
	TTL Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`

	// MaxEntries is the maximum number of entries for memory cache.
	MaxEntries int `yaml:"maxEntries,omitempty" json:"maxEntries,omitempty"`

	// Redis contains Redis-specific configuration.
	Redis *RedisCacheConfig `yaml:"redis,omitempty" json:"redis,omitempty"`

	// LevelDB contains on-disk cache configuration.
	LevelDB *LevelDBCacheConfig `yaml:"leveldb,omitempty" json:"leveldb,omitempty"`
}

// RedisCacheConfig contains Redis-specific cache configuration.
type RedisCacheConfig struct {
	// URL is the Redis connection URL.
	// Format: redis://[user:password@]host:port[/db]
	URL string `yaml:"url" json:"url"`

	// PoolSize is the maximum number of connections in the pool.
	PoolSize int `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`

	// DialTimeout is the timeout for establishing connections.
	DialTimeout Duration `yaml:"dialTimeout,omitempty" json:"dialTimeout,omitempty"`

	// ReadTimeout is the timeout for read operations.
	ReadTimeout Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`

	// WriteTimeout is the timeout for write operations.
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`

	// KeyPrefix is a prefix added to all cache keys.
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
}

// LevelDBCacheConfig contains on-disk cache configuration.
type LevelDBCacheConfig struct {
	// Path is the database directory.
	Path string `yaml:"path" json:"path"`

	// SweepInterval is how often expired entries are physically removed.
	SweepInterval Duration `yaml:"sweepInterval,omitempty" json:"sweepInterval,omitempty"`
}
