package cache

import (
	"github.com/rickgao/gateway-cache/internal/model"
	"github.com/rickgao/gateway-cache/internal/protocol"
)

func (c *Cache) allowed(p protocol.Payload) bool {
	if c.cfg.Intents.IsEmpty() {
		return true
	}
	intent, ok := requiredIntent(p)
	return !ok || c.cfg.Intents.Has(intent)
}

// requiredIntent returns the intent that gates delivery of p.
// Payloads sent regardless of intents report false.
func requiredIntent(p protocol.Payload) (model.Intent, bool) {
	switch e := p.(type) {
	case *protocol.GuildCreate, *protocol.GuildUpdate, *protocol.GuildDelete,
		*protocol.GuildRoleCreate, *protocol.GuildRoleUpdate, *protocol.GuildRoleDelete,
		*protocol.ChannelCreate, *protocol.ChannelUpdate, *protocol.ChannelDelete,
		*protocol.ThreadCreate, *protocol.ThreadUpdate, *protocol.ThreadDelete,
		*protocol.ThreadListSync, *protocol.ThreadMemberUpdate,
		*protocol.StageInstanceCreate, *protocol.StageInstanceUpdate, *protocol.StageInstanceDelete:
		return model.IntentGuilds, true
	case *protocol.ChannelPinsUpdate:
		return pick(e.GuildID, model.IntentGuilds, model.IntentDirectMessages), true

	case *protocol.GuildMemberAdd, *protocol.GuildMemberUpdate, *protocol.GuildMemberRemove,
		*protocol.ThreadMembersUpdate:
		return model.IntentGuildMembers, true
	case *protocol.GuildBanAdd, *protocol.GuildBanRemove, *protocol.GuildAuditLogEntryCreate:
		return model.IntentGuildModeration, true
	case *protocol.GuildEmojisUpdate, *protocol.GuildStickersUpdate:
		return model.IntentGuildExpressions, true
	case *protocol.GuildIntegrationsUpdate,
		*protocol.IntegrationCreate, *protocol.IntegrationUpdate, *protocol.IntegrationDelete:
		return model.IntentGuildIntegrations, true
	case *protocol.WebhooksUpdate:
		return model.IntentGuildWebhooks, true
	case *protocol.InviteCreate, *protocol.InviteDelete:
		return model.IntentGuildInvites, true
	case *protocol.VoiceStateUpdate:
		return model.IntentGuildVoiceStates, true
	case *protocol.PresenceUpdate:
		return model.IntentGuildPresences, true
	case *protocol.GuildScheduledEventCreate, *protocol.GuildScheduledEventUpdate,
		*protocol.GuildScheduledEventDelete,
		*protocol.GuildScheduledEventUserAdd, *protocol.GuildScheduledEventUserRemove:
		return model.IntentGuildScheduledEvents, true
	case *protocol.AutoModerationRuleCreate, *protocol.AutoModerationRuleUpdate,
		*protocol.AutoModerationRuleDelete:
		return model.IntentAutoModerationConfiguration, true
	case *protocol.AutoModerationActionExecution:
		return model.IntentAutoModerationExecution, true

	case *protocol.MessageCreate:
		return pick(e.GuildID, model.IntentGuildMessages, model.IntentDirectMessages), true
	case *protocol.MessageUpdate:
		return pick(e.GuildID, model.IntentGuildMessages, model.IntentDirectMessages), true
	case *protocol.MessageDelete:
		return pick(e.GuildID, model.IntentGuildMessages, model.IntentDirectMessages), true
	case *protocol.MessageDeleteBulk:
		return pick(e.GuildID, model.IntentGuildMessages, model.IntentDirectMessages), true
	case *protocol.MessageReactionAdd:
		return pick(e.GuildID, model.IntentGuildMessageReactions, model.IntentDirectMessageReactions), true
	case *protocol.MessageReactionRemove:
		return pick(e.GuildID, model.IntentGuildMessageReactions, model.IntentDirectMessageReactions), true
	case *protocol.MessageReactionRemoveAll:
		return pick(e.GuildID, model.IntentGuildMessageReactions, model.IntentDirectMessageReactions), true
	case *protocol.MessageReactionRemoveEmoji:
		return pick(e.GuildID, model.IntentGuildMessageReactions, model.IntentDirectMessageReactions), true
	case *protocol.MessagePollVoteAdd:
		return pick(e.GuildID, model.IntentGuildMessagePolls, model.IntentDirectMessagePolls), true
	case *protocol.MessagePollVoteRemove:
		return pick(e.GuildID, model.IntentGuildMessagePolls, model.IntentDirectMessagePolls), true
	case *protocol.TypingStart:
		return pick(e.GuildID, model.IntentGuildMessageTyping, model.IntentDirectMessageTyping), true
	}
	return 0, false
}

func pick(guildID *model.Snowflake, guild, direct model.Intent) model.Intent {
	if guildID != nil {
		return guild
	}
	return direct
}
