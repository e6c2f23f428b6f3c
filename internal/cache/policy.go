package cache

import (
	"slices"

	"github.com/rickgao/gateway-cache/internal/model"
)

// Collection names a bounded storage collection.
type Collection string

const (
	CollectionGuilds                   Collection = "guilds"
	CollectionChannels                 Collection = "channels"
	CollectionMembers                  Collection = "members"
	CollectionMessages                 Collection = "messages"
	CollectionEditedMessages           Collection = "edited_messages"
	CollectionDeletedMessages          Collection = "deleted_messages"
	CollectionIntegrations             Collection = "integrations"
	CollectionAutoModerationRules      Collection = "auto_moderation_rules"
	CollectionAutoModerationExecutions Collection = "auto_moderation_executions"
	CollectionAuditLogs                Collection = "audit_logs"
	CollectionBans                     Collection = "bans"
	CollectionInvites                  Collection = "invites"
	CollectionEntitlements             Collection = "entitlements"
	CollectionPollVotes                Collection = "poll_votes"
	CollectionCommandPermissions       Collection = "command_permissions"
)

// Collections lists every collection in trim order.
var Collections = []Collection{
	CollectionGuilds,
	CollectionChannels,
	CollectionMembers,
	CollectionMessages,
	CollectionEditedMessages,
	CollectionDeletedMessages,
	CollectionIntegrations,
	CollectionAutoModerationRules,
	CollectionAutoModerationExecutions,
	CollectionAuditLogs,
	CollectionBans,
	CollectionInvites,
	CollectionEntitlements,
	CollectionPollVotes,
	CollectionCommandPermissions,
}

// ItemsLimit bounds collection sizes. Keyed collections (messages per
// channel, bans per guild, ...) apply the limit to each key separately.
// A limit of zero or less means unbounded.
type ItemsLimit struct {
	Disabled bool
	Default  int
	Custom   map[Collection]int
}

// NoLimit disables eviction.
func NoLimit() ItemsLimit {
	return ItemsLimit{Disabled: true}
}

// ConstantLimit bounds every collection to n items.
func ConstantLimit(n int) ItemsLimit {
	return ItemsLimit{Default: n}
}

// For returns the limit of c and whether c is bounded.
func (l ItemsLimit) For(c Collection) (int, bool) {
	if l.Disabled {
		return 0, false
	}
	n := l.Default
	if v, ok := l.Custom[c]; ok {
		n = v
	}
	return n, n > 0
}

// evictEvery returns how many applied events separate two trim passes,
// clamp(limit/10, 1, 1000) for the smallest bound, or 0 when nothing is bounded.
func (l ItemsLimit) evictEvery() uint64 {
	smallest := 0
	for _, c := range Collections {
		if n, ok := l.For(c); ok && (smallest == 0 || n < smallest) {
			smallest = n
		}
	}
	if smallest == 0 {
		return 0
	}
	return uint64(min(max(smallest/10, 1), 1000))
}

// MessagePolicy decides which messages are retained.
// With both Guilds and Channels empty every message is cached.
type MessagePolicy struct {
	Disabled    bool
	Guilds      []model.Snowflake
	Channels    []model.Snowflake
	KeepEdits   bool
	KeepDeleted bool
}

// ShouldCache reports whether a message of channelID (and guildID, nil for DMs) is kept.
func (p MessagePolicy) ShouldCache(guildID *model.Snowflake, channelID model.Snowflake) bool {
	if p.Disabled {
		return false
	}
	if len(p.Guilds) == 0 && len(p.Channels) == 0 {
		return true
	}
	if guildID != nil && slices.Contains(p.Guilds, *guildID) {
		return true
	}
	return slices.Contains(p.Channels, channelID)
}

// MemberRequestMode selects the guilds whose members are requested on GUILD_CREATE.
type MemberRequestMode string

const (
	MemberRequestNone   MemberRequestMode = "none"
	MemberRequestAll    MemberRequestMode = "all"
	MemberRequestGuilds MemberRequestMode = "guilds"
)

// MemberRequestPolicy decides when the full member list of a guild is requested.
type MemberRequestPolicy struct {
	Mode      MemberRequestMode
	Guilds    []model.Snowflake
	Presences bool
}

// ShouldRequest reports whether members of guildID are requested.
func (p MemberRequestPolicy) ShouldRequest(guildID model.Snowflake) bool {
	switch p.Mode {
	case MemberRequestAll:
		return true
	case MemberRequestGuilds:
		return slices.Contains(p.Guilds, guildID)
	default:
		return false
	}
}

// Config configures a Cache.
type Config struct {
	Limits         ItemsLimit
	Messages       MessagePolicy
	MemberRequests MemberRequestPolicy

	// Intents, when non-empty, drops events whose intent is not enabled.
	Intents model.Intents
}

// DefaultConfig bounds the fast-growing collections and keeps the rest.
func DefaultConfig() Config {
	return Config{
		Limits: ItemsLimit{
			Custom: map[Collection]int{
				CollectionMessages:                 1000,
				CollectionEditedMessages:           25,
				CollectionDeletedMessages:          1000,
				CollectionAuditLogs:                500,
				CollectionAutoModerationExecutions: 500,
				CollectionPollVotes:                10000,
			},
		},
		MemberRequests: MemberRequestPolicy{Mode: MemberRequestNone},
	}
}
