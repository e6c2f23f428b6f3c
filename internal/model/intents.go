package model

import (
	"fmt"
	"strings"
)

// Intent is a gateway intent bit position.
type Intent uint

const (
	IntentGuilds                      Intent = 0
	IntentGuildMembers                Intent = 1
	IntentGuildModeration             Intent = 2
	IntentGuildExpressions            Intent = 3
	IntentGuildIntegrations           Intent = 4
	IntentGuildWebhooks               Intent = 5
	IntentGuildInvites                Intent = 6
	IntentGuildVoiceStates            Intent = 7
	IntentGuildPresences              Intent = 8
	IntentGuildMessages               Intent = 9
	IntentGuildMessageReactions       Intent = 10
	IntentGuildMessageTyping          Intent = 11
	IntentDirectMessages              Intent = 12
	IntentDirectMessageReactions      Intent = 13
	IntentDirectMessageTyping         Intent = 14
	IntentMessageContent              Intent = 15
	IntentGuildScheduledEvents        Intent = 16
	IntentAutoModerationConfiguration Intent = 20
	IntentAutoModerationExecution     Intent = 21
	IntentGuildMessagePolls           Intent = 24
	IntentDirectMessagePolls          Intent = 25
)

var intentNames = map[Intent]string{
	IntentGuilds:                      "guilds",
	IntentGuildMembers:                "guild_members",
	IntentGuildModeration:             "guild_moderation",
	IntentGuildExpressions:            "guild_expressions",
	IntentGuildIntegrations:           "guild_integrations",
	IntentGuildWebhooks:               "guild_webhooks",
	IntentGuildInvites:                "guild_invites",
	IntentGuildVoiceStates:            "guild_voice_states",
	IntentGuildPresences:              "guild_presences",
	IntentGuildMessages:               "guild_messages",
	IntentGuildMessageReactions:       "guild_message_reactions",
	IntentGuildMessageTyping:          "guild_message_typing",
	IntentDirectMessages:              "direct_messages",
	IntentDirectMessageReactions:      "direct_message_reactions",
	IntentDirectMessageTyping:         "direct_message_typing",
	IntentMessageContent:              "message_content",
	IntentGuildScheduledEvents:        "guild_scheduled_events",
	IntentAutoModerationConfiguration: "auto_moderation_configuration",
	IntentAutoModerationExecution:     "auto_moderation_execution",
	IntentGuildMessagePolls:           "guild_message_polls",
	IntentDirectMessagePolls:          "direct_message_polls",
}

// IsKnown reports whether i is a named intent.
func (i Intent) IsKnown() bool {
	_, ok := intentNames[i]
	return ok
}

// IsPrivileged reports whether i must be enabled in the developer portal.
func (i Intent) IsPrivileged() bool {
	return i == IntentGuildMembers || i == IntentGuildPresences || i == IntentMessageContent
}

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return fmt.Sprintf("intent(%d)", uint(i))
}

// Intents is the set sent in identify.
type Intents = BitField[Intent]

// ParseIntent resolves a config name such as "guild_members" (case-insensitive).
func ParseIntent(name string) (Intent, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range intentNames {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown intent %q", name)
}

// AllIntents returns every named intent.
func AllIntents() Intents {
	return NewBitField(sortedFlags(intentNames)...)
}

// UnprivilegedIntents returns every named intent that needs no portal approval.
func UnprivilegedIntents() Intents {
	return AllIntents().Without(IntentGuildMembers, IntentGuildPresences, IntentMessageContent)
}
