package config

import "time"

// Config is the root configuration for a gateway process.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Cache    CacheConfig    `yaml:"cache"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// APIConfig holds REST settings used for gateway discovery.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// GatewayConfig holds the connection and sharding settings.
type GatewayConfig struct {
	Token          string   `yaml:"token"`      // Inline bot token, usually ${DISCORD_TOKEN}
	TokenFile      string   `yaml:"token_file"` // Read when token is empty
	Intents        []string `yaml:"intents"`    // Intent names; empty = unprivileged set
	ShardCount     int      `yaml:"shard_count"`
	Shards         []int    `yaml:"shards"`
	MaxConcurrency int      `yaml:"max_concurrency"`
	Compression    string   `yaml:"compression"` // none, zlib-stream or zstd-stream
	LargeThreshold int      `yaml:"large_threshold"`
	APIVersion     int      `yaml:"api_version"`

	SendInterval        time.Duration `yaml:"send_interval"`
	HeartbeatGrace      time.Duration `yaml:"heartbeat_grace"`
	MaxMissedHeartbeats int           `yaml:"max_missed_heartbeats"`
	DiscoveryRetry      time.Duration `yaml:"discovery_retry"`
	InfoRetry           time.Duration `yaml:"info_retry"`
	BucketSpacing       time.Duration `yaml:"bucket_spacing"`
	HandshakeTimeout    time.Duration `yaml:"handshake_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	StreamBufferSize    int           `yaml:"stream_buffer_size"`

	Backoff  BackoffConfig   `yaml:"backoff"`
	Presence *PresenceConfig `yaml:"presence"`
}

// BackoffConfig holds the reconnect backoff curve.
type BackoffConfig struct {
	Base        float64       `yaml:"base"`
	MaxExponent int           `yaml:"max_exponent"`
	Coefficient time.Duration `yaml:"coefficient"`
	MinBackoff  time.Duration `yaml:"min_backoff"`
}

// PresenceConfig is the presence sent with identify.
type PresenceConfig struct {
	Status       string `yaml:"status"`
	AFK          bool   `yaml:"afk"`
	Activity     string `yaml:"activity"`
	ActivityType int    `yaml:"activity_type"`
}

// CacheConfig holds the cache limits and retention policies.
type CacheConfig struct {
	NoLimit        bool                `yaml:"no_limit"`
	Limit          int                 `yaml:"limit"`  // Default per-collection limit; 0 = unbounded
	Limits         map[string]int      `yaml:"limits"` // Per-collection overrides
	Messages       MessagePolicyConfig `yaml:"messages"`
	MemberRequests MemberRequestConfig `yaml:"member_requests"`
}

// MessagePolicyConfig selects which messages are retained.
type MessagePolicyConfig struct {
	Disabled    bool     `yaml:"disabled"`
	Guilds      []string `yaml:"guilds"`
	Channels    []string `yaml:"channels"`
	KeepEdits   bool     `yaml:"keep_edits"`
	KeepDeleted bool     `yaml:"keep_deleted"`
}

// MemberRequestConfig selects guilds whose members are requested on join.
type MemberRequestConfig struct {
	Mode      string   `yaml:"mode"` // none, all or guilds
	Guilds    []string `yaml:"guilds"`
	Presences bool     `yaml:"presences"`
}

// SnapshotConfig holds cache persistence settings.
type SnapshotConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Restore  bool          `yaml:"restore"` // Seed the cache from the last snapshot on start
	Interval time.Duration `yaml:"interval"`
	Key      string        `yaml:"key"` // Row key; defaults to instance.id
	Database DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the HTTP server serving metrics and debug endpoints.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // text or json
}
