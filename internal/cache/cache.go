package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rickgao/gateway-cache/internal/metrics"
	"github.com/rickgao/gateway-cache/internal/model"
	"github.com/rickgao/gateway-cache/internal/protocol"
)

// MemberRequester sends a request-guild-members frame on the shard owning the guild.
type MemberRequester interface {
	RequestGuildMembers(req protocol.RequestGuildMembers) error
}

// Cache is an event-sourced view of gateway state.
type Cache struct {
	cfg        Config
	requester  MemberRequester
	metrics    *metrics.Metrics
	logger     *slog.Logger
	evictEvery uint64

	mu      sync.RWMutex
	st      *store
	seen    uint64 // events past the intents filter, drives trimming
	applied uint64 // events that changed state
}

// Option configures a Cache.
type Option func(*Cache)

// WithMemberRequester enables member requests on GUILD_CREATE.
func WithMemberRequester(r MemberRequester) Option {
	return func(c *Cache) {
		c.requester = r
	}
}

// WithMetrics records applied events, evictions and collection sizes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithSnapshot seeds the cache from a previously taken snapshot.
func WithSnapshot(s *Storage) Option {
	return func(c *Cache) {
		c.st = storeFrom(s)
	}
}

// New creates an empty cache.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		cfg:        cfg,
		logger:     logger,
		evictEvery: cfg.Limits.evictEvery(),
		st:         newStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run applies events until the channel closes or ctx is done.
func (c *Cache) Run(ctx context.Context, events <-chan protocol.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.Apply(ev)
		}
	}
}

// Apply folds one event into the cache and reports whether it changed
// anything. It must be called from a single goroutine.
func (c *Cache) Apply(ev protocol.Event) bool {
	if ev.Payload == nil || !c.allowed(ev.Payload) {
		return false
	}

	c.mu.Lock()
	changed, req := c.apply(ev.Payload)
	var evicted map[Collection]int
	c.seen++
	if changed {
		c.applied++
	}
	if c.evictEvery > 0 && c.seen%c.evictEvery == 0 {
		evicted = c.trimLocked()
	}
	c.mu.Unlock()

	if changed {
		c.metrics.CacheApplied(ev.Name)
	}
	for col, n := range evicted {
		c.metrics.CacheEvicted(string(col), n)
	}
	if req != nil {
		c.requestMembers(*req)
	}
	return changed
}

func (c *Cache) requestMembers(req protocol.RequestGuildMembers) {
	if c.requester == nil {
		return
	}
	if err := c.requester.RequestGuildMembers(req); err != nil {
		c.logger.Warn("member request failed", "guild_id", req.GuildID, "error", err)
		return
	}
	c.logger.Debug("requested guild members", "guild_id", req.GuildID)
}

// Trim runs an eviction pass now and returns the number of removed items per collection.
func (c *Cache) Trim() map[Collection]int {
	c.mu.Lock()
	evicted := c.trimLocked()
	c.mu.Unlock()

	for col, n := range evicted {
		c.metrics.CacheEvicted(string(col), n)
	}
	return evicted
}

// Snapshot returns a deep copy of the cache.
func (c *Cache) Snapshot() *Storage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.storage()
}

// MarshalSnapshot serialises a snapshot as JSON.
func (c *Cache) MarshalSnapshot() ([]byte, error) {
	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("marshal cache snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot parses a snapshot written by MarshalSnapshot.
// Unknown fields are ignored.
func UnmarshalSnapshot(data []byte) (*Storage, error) {
	var s Storage
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal cache snapshot: %w", err)
	}
	return &s, nil
}

// Stats reports the size of every collection.
type Stats struct {
	Applied uint64             `json:"applied"`
	Sizes   map[Collection]int `json:"sizes"`
}

// Stats returns collection sizes and updates the size gauges.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	s := Stats{Applied: c.applied, Sizes: c.sizesLocked()}
	c.mu.RUnlock()

	for col, n := range s.Sizes {
		c.metrics.CacheSize(string(col), n)
	}
	return s
}

func (c *Cache) sizesLocked() map[Collection]int {
	st := c.st
	sizes := map[Collection]int{
		CollectionGuilds:             st.guilds.len(),
		CollectionChannels:           st.channels.len(),
		CollectionEntitlements:       st.entitlements.len(),
		CollectionCommandPermissions: st.commandPerms.len(),
	}
	for _, g := range st.guilds.items {
		sizes[CollectionMembers] += len(g.Members)
	}
	for _, o := range st.messages {
		sizes[CollectionMessages] += o.len()
	}
	for _, byMsg := range st.edits {
		for _, h := range byMsg {
			sizes[CollectionEditedMessages] += len(h)
		}
	}
	for _, d := range st.deleted {
		sizes[CollectionDeletedMessages] += len(d)
	}
	for _, byMsg := range st.pollVotes {
		for _, v := range byMsg {
			sizes[CollectionPollVotes] += len(v)
		}
	}
	sizes[CollectionIntegrations] = countKeyed(st.integrations)
	sizes[CollectionAutoModerationRules] = countKeyed(st.autoModRules)
	sizes[CollectionAutoModerationExecutions] = countKeyed(st.autoModExecs)
	sizes[CollectionAuditLogs] = countKeyed(st.auditLogs)
	sizes[CollectionBans] = countKeyed(st.bans)
	sizes[CollectionInvites] = countKeyed(st.invites)
	return sizes
}

func countKeyed[K comparable, V any](m map[K][]V) int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}

// -----------------------------------------------------------------------------
// Eviction
// -----------------------------------------------------------------------------

func (c *Cache) trimLocked() map[Collection]int {
	evicted := make(map[Collection]int)
	st := c.st
	for _, col := range Collections {
		limit, ok := c.cfg.Limits.For(col)
		if !ok {
			continue
		}
		n := 0
		switch col {
		case CollectionGuilds:
			n = st.guilds.trim(limit)
		case CollectionChannels:
			n = st.channels.trim(limit)
		case CollectionEntitlements:
			n = st.entitlements.trim(limit)
		case CollectionCommandPermissions:
			n = st.commandPerms.trim(limit)
		case CollectionMembers:
			for _, g := range st.guilds.items {
				var k int
				g.Members, k = trimOldest(g.Members, limit)
				n += k
			}
		case CollectionMessages:
			for _, o := range st.messages {
				n += o.trim(limit)
			}
		case CollectionEditedMessages:
			for _, byMsg := range st.edits {
				for id, h := range byMsg {
					var k int
					byMsg[id], k = trimOldest(h, limit)
					n += k
				}
			}
		case CollectionDeletedMessages:
			n = trimKeyed(st.deleted, limit)
		case CollectionPollVotes:
			for _, byMsg := range st.pollVotes {
				n += trimKeyed(byMsg, limit)
			}
		case CollectionIntegrations:
			n = trimKeyed(st.integrations, limit)
		case CollectionAutoModerationRules:
			n = trimKeyed(st.autoModRules, limit)
		case CollectionAutoModerationExecutions:
			n = trimKeyed(st.autoModExecs, limit)
		case CollectionAuditLogs:
			n = trimKeyed(st.auditLogs, limit)
		case CollectionBans:
			n = trimKeyed(st.bans, limit)
		case CollectionInvites:
			n = trimKeyed(st.invites, limit)
		}
		if n > 0 {
			evicted[col] = n
		}
	}
	if len(evicted) > 0 {
		c.logger.Debug("cache trimmed", "evicted", evicted)
	}
	return evicted
}

func trimKeyed[K comparable, V any](m map[K][]V, limit int) int {
	total := 0
	for k, v := range m {
		var n int
		m[k], n = trimOldest(v, limit)
		total += n
	}
	return total
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// CurrentUser returns the bot user from READY or USER_UPDATE.
func (c *Cache) CurrentUser() (model.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.st.currentUser == nil {
		return model.User{}, false
	}
	return *c.st.currentUser, true
}

// CurrentApplication returns the application from READY.
func (c *Cache) CurrentApplication() (model.Application, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.st.currentApplication == nil {
		return model.Application{}, false
	}
	return *c.st.currentApplication, true
}

// Guild returns a copy of a guild with its nested collections.
func (c *Cache) Guild(id model.Snowflake) (model.Guild, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.st.guilds.get(id)
	if !ok {
		return model.Guild{}, false
	}
	return cloneGuild(*g), true
}

// Guilds returns every cached guild, oldest first.
func (c *Cache) Guilds() []model.Guild {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.guilds.values(cloneGuild)
}

// GuildIDs returns the ids of every cached guild.
func (c *Cache) GuildIDs() []model.Snowflake {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.st.guilds.keys)
}

// Channel looks a channel up among DM channels and then among guild channels and threads.
func (c *Cache) Channel(id model.Snowflake) (model.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ch, ok := c.st.channels.get(id); ok {
		return cloneChannel(*ch), true
	}
	for _, g := range c.st.guilds.items {
		if ch, ok := findChannel(g, id); ok {
			return cloneChannel(*ch), true
		}
	}
	return model.Channel{}, false
}

// Member returns a guild member.
func (c *Cache) Member(guildID, userID model.Snowflake) (model.Member, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.st.guilds.get(guildID)
	if !ok {
		return model.Member{}, false
	}
	for _, m := range g.Members {
		if m.UserID() == userID {
			return cloneMember(m), true
		}
	}
	return model.Member{}, false
}

// Messages returns the cached messages of a channel, oldest first.
func (c *Cache) Messages(channelID model.Snowflake) []model.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.st.messages[channelID]
	if !ok {
		return nil
	}
	return o.values(cloneMessage)
}

// Message returns one cached message.
func (c *Cache) Message(channelID, messageID model.Snowflake) (model.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.st.messages[channelID]
	if !ok {
		return model.Message{}, false
	}
	m, ok := o.get(messageID)
	if !ok {
		return model.Message{}, false
	}
	return cloneMessage(*m), true
}

// EditHistory returns the previous versions of a message, oldest first.
func (c *Cache) EditHistory(channelID, messageID model.Snowflake) []model.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneMessages(c.st.edits[channelID][messageID])
}

// DeletedMessages returns the tombstones of a channel, oldest first.
func (c *Cache) DeletedMessages(channelID model.Snowflake) []DeletedMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneDeleted(c.st.deleted[channelID])
}

// PollVotes returns the votes cast on a message's poll.
func (c *Cache) PollVotes(channelID, messageID model.Snowflake) []PollVote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.st.pollVotes[channelID][messageID])
}

func (c *Cache) Integrations(guildID model.Snowflake) []model.Integration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.st.integrations[guildID])
}

func (c *Cache) AutoModerationRules(guildID model.Snowflake) []model.AutoModerationRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.st.autoModRules[guildID])
}

func (c *Cache) AutoModerationExecutions(guildID model.Snowflake) []model.AutoModerationExecution {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.st.autoModExecs[guildID])
}

func (c *Cache) AuditLogs(guildID model.Snowflake) []model.AuditLogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.st.auditLogs[guildID])
}

func (c *Cache) Bans(guildID model.Snowflake) []model.Ban {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.st.bans[guildID])
}

// Invites returns the invites of a channel; guildID is nil for group DMs.
func (c *Cache) Invites(guildID *model.Snowflake, channelID model.Snowflake) []model.Invite {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.st.invites[InviteKey(guildID, channelID)])
}

func (c *Cache) Entitlements() []model.Entitlement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.entitlements.values(identity[model.Entitlement])
}

// CommandPermissions returns the permission overrides of one application command.
func (c *Cache) CommandPermissions(commandID model.Snowflake) (model.CommandPermissions, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.st.commandPerms.get(commandID)
	if !ok {
		return model.CommandPermissions{}, false
	}
	return cloneCommandPermissions(*p), true
}
