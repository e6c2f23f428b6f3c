package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/gateway-cache/internal/cache"
	"github.com/rickgao/gateway-cache/internal/compress"
	"github.com/rickgao/gateway-cache/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Gateway.validate("gateway"); err != nil {
		return err
	}
	if err := c.Cache.validate("cache"); err != nil {
		return err
	}

	if c.Snapshot.Enabled || c.Snapshot.Restore {
		if c.Snapshot.Interval <= 0 {
			return errors.New("snapshot.interval must be > 0")
		}
		if err := c.Snapshot.Database.validate("snapshot.database"); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level %q is invalid", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (g *GatewayConfig) validate(prefix string) error {
	if g.Token == "" && g.TokenFile == "" {
		return fmt.Errorf("%s.token or %s.token_file is required", prefix, prefix)
	}
	for _, name := range g.Intents {
		if _, err := model.ParseIntent(name); err != nil {
			return fmt.Errorf("%s.intents: %w", prefix, err)
		}
	}
	if g.ShardCount < 0 {
		return fmt.Errorf("%s.shard_count must be >= 0", prefix)
	}
	for i, s := range g.Shards {
		if s < 0 {
			return fmt.Errorf("%s.shards[%d] must be >= 0", prefix, i)
		}
		if g.ShardCount > 0 && s >= g.ShardCount {
			return fmt.Errorf("%s.shards[%d] (%d) must be < shard_count (%d)", prefix, i, s, g.ShardCount)
		}
	}
	if g.MaxConcurrency < 0 {
		return fmt.Errorf("%s.max_concurrency must be >= 0", prefix)
	}
	if _, err := compress.ParseMode(g.Compression); err != nil {
		return fmt.Errorf("%s.compression: %w", prefix, err)
	}
	if g.LargeThreshold < 50 || g.LargeThreshold > 250 {
		return fmt.Errorf("%s.large_threshold must be between 50 and 250, got %d", prefix, g.LargeThreshold)
	}
	if g.MaxMissedHeartbeats < 1 {
		return fmt.Errorf("%s.max_missed_heartbeats must be >= 1", prefix)
	}
	if g.Backoff.Base < 1 {
		return fmt.Errorf("%s.backoff.base must be >= 1", prefix)
	}
	if g.Presence != nil {
		switch g.Presence.Status {
		case "online", "dnd", "idle", "invisible", "offline":
		default:
			return fmt.Errorf("%s.presence.status %q is invalid", prefix, g.Presence.Status)
		}
	}
	return nil
}

func (c *CacheConfig) validate(prefix string) error {
	if c.Limit < 0 {
		return fmt.Errorf("%s.limit must be >= 0", prefix)
	}
	for name := range c.Limits {
		if !knownCollection(name) {
			return fmt.Errorf("%s.limits: unknown collection %q", prefix, name)
		}
	}
	if err := validateSnowflakes(prefix+".messages.guilds", c.Messages.Guilds); err != nil {
		return err
	}
	if err := validateSnowflakes(prefix+".messages.channels", c.Messages.Channels); err != nil {
		return err
	}

	switch cache.MemberRequestMode(c.MemberRequests.Mode) {
	case cache.MemberRequestNone, cache.MemberRequestAll:
	case cache.MemberRequestGuilds:
		if len(c.MemberRequests.Guilds) == 0 {
			return fmt.Errorf("%s.member_requests.guilds is required when mode is guilds", prefix)
		}
	default:
		return fmt.Errorf("%s.member_requests.mode must be none, all or guilds, got %q", prefix, c.MemberRequests.Mode)
	}
	return validateSnowflakes(prefix+".member_requests.guilds", c.MemberRequests.Guilds)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func validateSnowflakes(path string, ids []string) error {
	for i, id := range ids {
		if !model.Snowflake(id).IsValid() {
			return fmt.Errorf("%s[%d] %q is not a snowflake", path, i, id)
		}
	}
	return nil
}

func knownCollection(name string) bool {
	for _, c := range cache.Collections {
		if string(c) == name {
			return true
		}
	}
	return false
}
