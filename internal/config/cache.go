package config

import "time"

// TableCacheConfig defines settings for the table status cache. When
// Enabled is false or no Redis client is configured, only the in-process
// layer is used. TTL bounds how long a status is trusted in Redis; Prefix
// namespaces the keys.
type TableCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadTableCacheConfig reads TABLE_CACHE_* variables.
func LoadTableCacheConfig() TableCacheConfig {
	c := TableCacheConfig{
		Enabled: envBool("TABLE_CACHE_ENABLED", true),
		TTL:     envDur("TABLE_CACHE_TTL", 6*time.Hour),
		Prefix:  envStr("TABLE_CACHE_PREFIX", "tables:status"),
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	return c
}
