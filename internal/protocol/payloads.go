package protocol

import (
	"encoding/json"

	"github.com/rickgao/gateway-cache/internal/model"
)

// Payload is the decoded "d" of a frame. The concrete type is fixed by (op, t).
type Payload interface {
	isPayload()
}

type sealed struct{}

func (sealed) isPayload() {}

// -----------------------------------------------------------------------------
// Control payloads
// -----------------------------------------------------------------------------

// Hello is the first frame of every socket.
type Hello struct {
	sealed
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// HeartbeatRequest is a server-initiated heartbeat request.
type HeartbeatRequest struct {
	sealed
	LastSequence *int64
}

// HeartbeatAck acknowledges a client heartbeat.
type HeartbeatAck struct{ sealed }

// Reconnect asks the client to reconnect and resume.
type Reconnect struct{ sealed }

// InvalidSession reports a failed identify or resume.
type InvalidSession struct {
	sealed
	CanResume bool
}

// -----------------------------------------------------------------------------
// Session dispatches
// -----------------------------------------------------------------------------

// Ready completes an identify.
type Ready struct {
	sealed
	Version          int                      `json:"v"`
	User             model.User               `json:"user"`
	Guilds           []model.UnavailableGuild `json:"guilds"`
	SessionID        string                   `json:"session_id"`
	ResumeGatewayURL string                   `json:"resume_gateway_url"`
	Shard            *[2]int                  `json:"shard,omitempty"`
	Application      model.Application        `json:"application"`
}

// Resumed completes a resume.
type Resumed struct{ sealed }

// UserUpdate carries the current user after a change.
type UserUpdate struct {
	sealed
	model.User
}

// -----------------------------------------------------------------------------
// Guild dispatches
// -----------------------------------------------------------------------------

// GuildCreate carries a full guild.
type GuildCreate struct {
	sealed
	model.Guild
}

// GuildUpdate carries the guild's top-level fields.
type GuildUpdate struct {
	sealed
	model.Guild
}

// GuildDelete marks a guild as left or unavailable.
type GuildDelete struct {
	sealed
	model.UnavailableGuild
}

// GuildAuditLogEntryCreate carries a new audit log entry.
type GuildAuditLogEntryCreate struct {
	sealed
	model.AuditLogEntry
}

// GuildBanAdd reports a ban.
type GuildBanAdd struct {
	sealed
	GuildID model.Snowflake `json:"guild_id"`
	User    model.User      `json:"user"`
}

// GuildBanRemove reports an unban.
type GuildBanRemove struct {
	sealed
	GuildID model.Snowflake `json:"guild_id"`
	User    model.User      `json:"user"`
}

// GuildEmojisUpdate replaces a guild's emojis.
type GuildEmojisUpdate struct {
	sealed
	GuildID model.Snowflake `json:"guild_id"`
	Emojis  []model.Emoji   `json:"emojis"`
}

// GuildStickersUpdate replaces a guild's stickers.
type GuildStickersUpdate struct {
	sealed
	GuildID  model.Snowflake `json:"guild_id"`
	Stickers []model.Sticker `json:"stickers"`
}

// GuildIntegrationsUpdate signals that integrations changed.
type GuildIntegrationsUpdate struct {
	sealed
	GuildID model.Snowflake `json:"guild_id"`
}

// GuildMemberAdd carries a joined member.
type GuildMemberAdd struct {
	sealed
	model.Member
	GuildID model.Snowflake `json:"guild_id"`
}

// GuildMemberRemove reports a member leaving.
type GuildMemberRemove struct {
	sealed
	GuildID model.Snowflake `json:"guild_id"`
	User    model.User      `json:"user"`
}

// GuildMemberUpdate carries an updated member.
type GuildMemberUpdate struct {
	sealed
	model.Member
	GuildID model.Snowflake `json:"guild_id"`
}

// GuildMembersChunk answers a request-guild-members frame.
type GuildMembersChunk struct {
	sealed
	GuildID    model.Snowflake   `json:"guild_id"`
	Members    []model.Member    `json:"members"`
	ChunkIndex int               `json:"chunk_index"`
	ChunkCount int               `json:"chunk_count"`
	NotFound   []model.Snowflake `json:"not_found,omitempty"`
	Presences  []model.Presence  `json:"presences,omitempty"`
	Nonce      string            `json:"nonce,omitempty"`
}

// GuildRoleCreate carries a new role.
type GuildRoleCreate struct {
	sealed
	GuildID model.Snowflake `json:"guild_id"`
	Role    model.Role      `json:"role"`
}

// GuildRoleUpdate carries an updated role.
type GuildRoleUpdate struct {
	sealed
	GuildID model.Snowflake `json:"guild_id"`
	Role    model.Role      `json:"role"`
}

// GuildRoleDelete reports a deleted role.
type GuildRoleDelete struct {
	sealed
	GuildID model.Snowflake `json:"guild_id"`
	RoleID  model.Snowflake `json:"role_id"`
}

// GuildScheduledEventCreate carries a new scheduled event.
type GuildScheduledEventCreate struct {
	sealed
	model.ScheduledEvent
}

// GuildScheduledEventUpdate carries an updated scheduled event.
type GuildScheduledEventUpdate struct {
	sealed
	model.ScheduledEvent
}

// GuildScheduledEventDelete carries a deleted scheduled event.
type GuildScheduledEventDelete struct {
	sealed
	model.ScheduledEvent
}

// GuildScheduledEventUserAdd reports a user subscribing to an event.
type GuildScheduledEventUserAdd struct {
	sealed
	GuildScheduledEventID model.Snowflake `json:"guild_scheduled_event_id"`
	UserID                model.Snowflake `json:"user_id"`
	GuildID               model.Snowflake `json:"guild_id"`
}

// GuildScheduledEventUserRemove reports a user unsubscribing from an event.
type GuildScheduledEventUserRemove struct {
	sealed
	GuildScheduledEventID model.Snowflake `json:"guild_scheduled_event_id"`
	UserID                model.Snowflake `json:"user_id"`
	GuildID               model.Snowflake `json:"guild_id"`
}

// -----------------------------------------------------------------------------
// Channel and thread dispatches
// -----------------------------------------------------------------------------

// ChannelCreate carries a new channel.
type ChannelCreate struct {
	sealed
	model.Channel
}

// ChannelUpdate carries an updated channel.
type ChannelUpdate struct {
	sealed
	model.Channel
}

// ChannelDelete carries a deleted channel.
type ChannelDelete struct {
	sealed
	model.Channel
}

// ChannelPinsUpdate reports a pin change.
type ChannelPinsUpdate struct {
	sealed
	GuildID          *model.Snowflake `json:"guild_id,omitempty"`
	ChannelID        model.Snowflake  `json:"channel_id"`
	LastPinTimestamp *string          `json:"last_pin_timestamp,omitempty"`
}

// ThreadCreate carries a new or newly visible thread.
type ThreadCreate struct {
	sealed
	model.Channel
	NewlyCreated bool `json:"newly_created,omitempty"`
}

// ThreadUpdate carries an updated thread.
type ThreadUpdate struct {
	sealed
	model.Channel
}

// ThreadDelete carries a deleted thread.
type ThreadDelete struct {
	sealed
	ID       model.Snowflake  `json:"id"`
	GuildID  model.Snowflake  `json:"guild_id"`
	ParentID *model.Snowflake `json:"parent_id,omitempty"`
	Type     int              `json:"type"`
}

// ThreadListSync replaces the active threads of some parent channels.
type ThreadListSync struct {
	sealed
	GuildID    model.Snowflake      `json:"guild_id"`
	ChannelIDs []model.Snowflake    `json:"channel_ids,omitempty"`
	Threads    []model.Channel      `json:"threads"`
	Members    []model.ThreadMember `json:"members"`
}

// ThreadMemberUpdate reports the current user's thread membership.
type ThreadMemberUpdate struct {
	sealed
	model.ThreadMember
	GuildID model.Snowflake `json:"guild_id"`
}

// ThreadMembersUpdate reports thread membership changes.
type ThreadMembersUpdate struct {
	sealed
	ID               model.Snowflake      `json:"id"`
	GuildID          model.Snowflake      `json:"guild_id"`
	MemberCount      int                  `json:"member_count"`
	AddedMembers     []model.ThreadMember `json:"added_members,omitempty"`
	RemovedMemberIDs []model.Snowflake    `json:"removed_member_ids,omitempty"`
}

// -----------------------------------------------------------------------------
// Message dispatches
// -----------------------------------------------------------------------------

// MessageCreate carries a new message.
type MessageCreate struct {
	sealed
	model.Message
}

// MessageUpdate carries only the fields that changed, besides the ids.
type MessageUpdate struct {
	sealed
	ID              model.Snowflake         `json:"id"`
	ChannelID       model.Snowflake         `json:"channel_id"`
	GuildID         *model.Snowflake        `json:"guild_id,omitempty"`
	Author          *model.User             `json:"author,omitempty"`
	Content         *string                 `json:"content,omitempty"`
	EditedTimestamp *string                 `json:"edited_timestamp,omitempty"`
	Mentions        *[]model.User           `json:"mentions,omitempty"`
	MentionRoles    *[]model.Snowflake      `json:"mention_roles,omitempty"`
	Attachments     *[]model.Attachment     `json:"attachments,omitempty"`
	Embeds          *[]model.Embed          `json:"embeds,omitempty"`
	Pinned          *bool                   `json:"pinned,omitempty"`
	Flags           *model.MessageFlags     `json:"flags,omitempty"`
	Poll            *model.Poll             `json:"poll,omitempty"`
	Reactions       *[]model.Reaction       `json:"reactions,omitempty"`
	Reference       *model.MessageReference `json:"message_reference,omitempty"`
}

// MessageDelete reports a deleted message.
type MessageDelete struct {
	sealed
	ID        model.Snowflake  `json:"id"`
	ChannelID model.Snowflake  `json:"channel_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
}

// MessageDeleteBulk reports several deleted messages of one channel.
type MessageDeleteBulk struct {
	sealed
	IDs       []model.Snowflake `json:"ids"`
	ChannelID model.Snowflake   `json:"channel_id"`
	GuildID   *model.Snowflake  `json:"guild_id,omitempty"`
}

// MessageReactionAdd reports a reaction.
type MessageReactionAdd struct {
	sealed
	UserID          model.Snowflake  `json:"user_id"`
	ChannelID       model.Snowflake  `json:"channel_id"`
	MessageID       model.Snowflake  `json:"message_id"`
	GuildID         *model.Snowflake `json:"guild_id,omitempty"`
	Member          *model.Member    `json:"member,omitempty"`
	Emoji           model.Emoji      `json:"emoji"`
	MessageAuthorID *model.Snowflake `json:"message_author_id,omitempty"`
	Burst           bool             `json:"burst"`
	BurstColors     []string         `json:"burst_colors,omitempty"`
	Type            int              `json:"type"`
}

// MessageReactionRemove reports a removed reaction.
type MessageReactionRemove struct {
	sealed
	UserID    model.Snowflake  `json:"user_id"`
	ChannelID model.Snowflake  `json:"channel_id"`
	MessageID model.Snowflake  `json:"message_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
	Emoji     model.Emoji      `json:"emoji"`
	Burst     bool             `json:"burst"`
	Type      int              `json:"type"`
}

// MessageReactionRemoveAll clears every reaction of a message.
type MessageReactionRemoveAll struct {
	sealed
	ChannelID model.Snowflake  `json:"channel_id"`
	MessageID model.Snowflake  `json:"message_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
}

// MessageReactionRemoveEmoji clears one emoji's reactions of a message.
type MessageReactionRemoveEmoji struct {
	sealed
	ChannelID model.Snowflake  `json:"channel_id"`
	MessageID model.Snowflake  `json:"message_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
	Emoji     model.Emoji      `json:"emoji"`
}

// MessagePollVoteAdd reports a poll vote.
type MessagePollVoteAdd struct {
	sealed
	UserID    model.Snowflake  `json:"user_id"`
	ChannelID model.Snowflake  `json:"channel_id"`
	MessageID model.Snowflake  `json:"message_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
	AnswerID  int              `json:"answer_id"`
}

// MessagePollVoteRemove reports a withdrawn poll vote.
type MessagePollVoteRemove struct {
	sealed
	UserID    model.Snowflake  `json:"user_id"`
	ChannelID model.Snowflake  `json:"channel_id"`
	MessageID model.Snowflake  `json:"message_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
	AnswerID  int              `json:"answer_id"`
}

// TypingStart reports a user typing. Not cached.
type TypingStart struct {
	sealed
	ChannelID model.Snowflake  `json:"channel_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
	UserID    model.Snowflake  `json:"user_id"`
	Timestamp int64            `json:"timestamp"`
	Member    *model.Member    `json:"member,omitempty"`
}

// -----------------------------------------------------------------------------
// Other dispatches
// -----------------------------------------------------------------------------

// ApplicationCommandPermissionsUpdate carries updated command permissions.
type ApplicationCommandPermissionsUpdate struct {
	sealed
	model.CommandPermissions
}

// AutoModerationRuleCreate carries a new rule.
type AutoModerationRuleCreate struct {
	sealed
	model.AutoModerationRule
}

// AutoModerationRuleUpdate carries an updated rule.
type AutoModerationRuleUpdate struct {
	sealed
	model.AutoModerationRule
}

// AutoModerationRuleDelete carries a deleted rule.
type AutoModerationRuleDelete struct {
	sealed
	model.AutoModerationRule
}

// AutoModerationActionExecution carries an executed action.
type AutoModerationActionExecution struct {
	sealed
	model.AutoModerationExecution
}

// EntitlementCreate carries a new entitlement.
type EntitlementCreate struct {
	sealed
	model.Entitlement
}

// EntitlementUpdate carries an updated entitlement.
type EntitlementUpdate struct {
	sealed
	model.Entitlement
}

// EntitlementDelete carries a deleted entitlement.
type EntitlementDelete struct {
	sealed
	model.Entitlement
}

// IntegrationCreate carries a new integration.
type IntegrationCreate struct {
	sealed
	model.Integration
}

// IntegrationUpdate carries an updated integration.
type IntegrationUpdate struct {
	sealed
	model.Integration
}

// IntegrationDelete reports a removed integration.
type IntegrationDelete struct {
	sealed
	ID            model.Snowflake  `json:"id"`
	GuildID       model.Snowflake  `json:"guild_id"`
	ApplicationID *model.Snowflake `json:"application_id,omitempty"`
}

// InteractionCreate carries an interaction, kept raw.
type InteractionCreate struct {
	sealed
	Raw json.RawMessage
}

// InviteCreate carries a new invite.
type InviteCreate struct {
	sealed
	model.Invite
}

// InviteDelete reports a deleted invite.
type InviteDelete struct {
	sealed
	ChannelID model.Snowflake  `json:"channel_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
	Code      string           `json:"code"`
}

// PresenceUpdate carries a user's new presence.
type PresenceUpdate struct {
	sealed
	model.Presence
}

// StageInstanceCreate carries a new stage instance.
type StageInstanceCreate struct {
	sealed
	model.StageInstance
}

// StageInstanceUpdate carries an updated stage instance.
type StageInstanceUpdate struct {
	sealed
	model.StageInstance
}

// StageInstanceDelete carries a deleted stage instance.
type StageInstanceDelete struct {
	sealed
	model.StageInstance
}

// VoiceStateUpdate carries a user's new voice state.
type VoiceStateUpdate struct {
	sealed
	model.VoiceState
}

// VoiceServerUpdate carries voice server credentials. Not cached.
type VoiceServerUpdate struct {
	sealed
	Token    string          `json:"token"`
	GuildID  model.Snowflake `json:"guild_id"`
	Endpoint *string         `json:"endpoint"`
}

// WebhooksUpdate signals that a channel's webhooks changed.
type WebhooksUpdate struct {
	sealed
	GuildID   model.Snowflake `json:"guild_id"`
	ChannelID model.Snowflake `json:"channel_id"`
}
