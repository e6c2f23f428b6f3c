package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPIBaseURL          = "https://discord.com/api/v10"
	DefaultAPITimeout          = 30 * time.Second
	DefaultMaxRetries          = 3
	DefaultCompression         = "zlib-stream"
	DefaultLargeThreshold      = 250
	DefaultAPIVersion          = 10
	DefaultSendInterval        = 500 * time.Millisecond
	DefaultHeartbeatGrace      = 10 * time.Second
	DefaultMaxMissedHeartbeats = 3
	DefaultDiscoveryRetry      = 10 * time.Second
	DefaultInfoRetry           = 10 * time.Second
	DefaultBucketSpacing       = 5 * time.Second
	DefaultHandshakeTimeout    = 10 * time.Second
	DefaultWriteTimeout        = 5 * time.Second
	DefaultStreamBufferSize    = 1024
	DefaultBackoffBase         = 2.0
	DefaultBackoffMaxExponent  = 7
	DefaultBackoffCoefficient  = 1 * time.Second
	DefaultMinBackoff          = 15 * time.Second
	DefaultMemberRequestMode   = "none"
	DefaultSnapshotInterval    = 1 * time.Minute
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 4
	DefaultMinConns            = 1
	DefaultMetricsPort         = 9090
	DefaultMetricsPath         = "/metrics"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Gateway defaults
	g := &c.Gateway
	if g.Compression == "" {
		g.Compression = DefaultCompression
	}
	if g.LargeThreshold == 0 {
		g.LargeThreshold = DefaultLargeThreshold
	}
	if g.APIVersion == 0 {
		g.APIVersion = DefaultAPIVersion
	}
	if g.SendInterval == 0 {
		g.SendInterval = DefaultSendInterval
	}
	if g.HeartbeatGrace == 0 {
		g.HeartbeatGrace = DefaultHeartbeatGrace
	}
	if g.MaxMissedHeartbeats == 0 {
		g.MaxMissedHeartbeats = DefaultMaxMissedHeartbeats
	}
	if g.DiscoveryRetry == 0 {
		g.DiscoveryRetry = DefaultDiscoveryRetry
	}
	if g.InfoRetry == 0 {
		g.InfoRetry = DefaultInfoRetry
	}
	if g.BucketSpacing == 0 {
		g.BucketSpacing = DefaultBucketSpacing
	}
	if g.HandshakeTimeout == 0 {
		g.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if g.WriteTimeout == 0 {
		g.WriteTimeout = DefaultWriteTimeout
	}
	if g.StreamBufferSize == 0 {
		g.StreamBufferSize = DefaultStreamBufferSize
	}
	if g.Backoff.Base == 0 {
		g.Backoff.Base = DefaultBackoffBase
	}
	if g.Backoff.MaxExponent == 0 {
		g.Backoff.MaxExponent = DefaultBackoffMaxExponent
	}
	if g.Backoff.Coefficient == 0 {
		g.Backoff.Coefficient = DefaultBackoffCoefficient
	}
	if g.Backoff.MinBackoff == 0 {
		g.Backoff.MinBackoff = DefaultMinBackoff
	}

	// Cache defaults
	if c.Cache.MemberRequests.Mode == "" {
		c.Cache.MemberRequests.Mode = DefaultMemberRequestMode
	}

	// Snapshot defaults
	if c.Snapshot.Interval == 0 {
		c.Snapshot.Interval = DefaultSnapshotInterval
	}
	if c.Snapshot.Key == "" {
		c.Snapshot.Key = c.Instance.ID
	}
	applyDBDefaults(&c.Snapshot.Database)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
