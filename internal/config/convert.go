package config

import (
	"slices"

	"github.com/rickgao/gateway-cache/internal/auth"
	"github.com/rickgao/gateway-cache/internal/cache"
	"github.com/rickgao/gateway-cache/internal/compress"
	"github.com/rickgao/gateway-cache/internal/connection"
	"github.com/rickgao/gateway-cache/internal/model"
	"github.com/rickgao/gateway-cache/internal/protocol"
	"github.com/rickgao/gateway-cache/internal/shard"
)

// LoadToken resolves the bot token from token or token_file.
func (g *GatewayConfig) LoadToken() (auth.Token, error) {
	return auth.LoadToken(g.Token, g.TokenFile)
}

// ParseIntents resolves the intent names. No names means the unprivileged set.
func (g *GatewayConfig) ParseIntents() (model.Intents, error) {
	if len(g.Intents) == 0 {
		return model.UnprivilegedIntents(), nil
	}
	var intents model.Intents
	for _, name := range g.Intents {
		i, err := model.ParseIntent(name)
		if err != nil {
			return intents, err
		}
		intents = intents.With(i)
	}
	return intents, nil
}

// ShardConfig builds the shard set configuration.
func (g *GatewayConfig) ShardConfig(token auth.Token) (shard.Config, error) {
	intents, err := g.ParseIntents()
	if err != nil {
		return shard.Config{}, err
	}
	mode, err := compress.ParseMode(g.Compression)
	if err != nil {
		return shard.Config{}, err
	}

	mc := connection.DefaultManagerConfig()
	mc.Token = token
	mc.Intents = intents
	mc.Presence = g.Presence.payload()
	mc.LargeThreshold = g.LargeThreshold
	mc.Compression = mode
	mc.APIVersion = g.APIVersion
	mc.SendInterval = g.SendInterval
	mc.HeartbeatGrace = g.HeartbeatGrace
	mc.MaxMissedHeartbeats = g.MaxMissedHeartbeats
	mc.DiscoveryRetry = g.DiscoveryRetry
	mc.Backoff = connection.BackoffConfig{
		Base:        g.Backoff.Base,
		MaxExponent: g.Backoff.MaxExponent,
		Coefficient: g.Backoff.Coefficient,
		MinBackoff:  g.Backoff.MinBackoff,
	}
	mc.Client.HandshakeTimeout = g.HandshakeTimeout
	mc.Client.WriteTimeout = g.WriteTimeout

	return shard.Config{
		Token:            token,
		ShardCount:       g.ShardCount,
		Shards:           slices.Clone(g.Shards),
		MaxConcurrency:   g.MaxConcurrency,
		Intents:          intents,
		InfoRetry:        g.InfoRetry,
		BucketSpacing:    g.BucketSpacing,
		StreamBufferSize: g.StreamBufferSize,
		Manager:          mc,
	}, nil
}

func (p *PresenceConfig) payload() *protocol.PresenceUpdateSend {
	if p == nil {
		return nil
	}
	out := &protocol.PresenceUpdateSend{
		Status:     p.Status,
		AFK:        p.AFK,
		Activities: []model.Activity{},
	}
	if p.Activity != "" {
		out.Activities = append(out.Activities, model.Activity{Name: p.Activity, Type: p.ActivityType})
	}
	return out
}

// CacheOptions builds the cache configuration. Events outside intents are ignored.
func (c *CacheConfig) CacheOptions(intents model.Intents) cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Intents = intents

	switch {
	case c.NoLimit:
		cfg.Limits = cache.NoLimit()
	case c.Limit > 0 || len(c.Limits) > 0:
		cfg.Limits = cache.ConstantLimit(c.Limit)
		cfg.Limits.Custom = make(map[cache.Collection]int, len(c.Limits))
		for name, n := range c.Limits {
			cfg.Limits.Custom[cache.Collection(name)] = n
		}
	}

	cfg.Messages = cache.MessagePolicy{
		Disabled:    c.Messages.Disabled,
		Guilds:      snowflakes(c.Messages.Guilds),
		Channels:    snowflakes(c.Messages.Channels),
		KeepEdits:   c.Messages.KeepEdits,
		KeepDeleted: c.Messages.KeepDeleted,
	}
	cfg.MemberRequests = cache.MemberRequestPolicy{
		Mode:      cache.MemberRequestMode(c.MemberRequests.Mode),
		Guilds:    snowflakes(c.MemberRequests.Guilds),
		Presences: c.MemberRequests.Presences,
	}
	return cfg
}

func snowflakes(ids []string) []model.Snowflake {
	if len(ids) == 0 {
		return nil
	}
	out := make([]model.Snowflake, len(ids))
	for i, id := range ids {
		out[i] = model.Snowflake(id)
	}
	return out
}
