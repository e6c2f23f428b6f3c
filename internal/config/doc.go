// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// LoadAndValidate applies defaults and rejects invalid values; ShardConfig and
// CacheOptions translate the result into the shard and cache configurations.
package config
