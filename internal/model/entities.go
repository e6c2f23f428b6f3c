package model

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// User is a gateway user.
type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator,omitempty"`
	GlobalName    *string   `json:"global_name,omitempty"`
	Avatar        *string   `json:"avatar,omitempty"`
	Bot           bool      `json:"bot,omitempty"`
	System        bool      `json:"system,omitempty"`
}

// PartialUser carries only an id (presence updates).
type PartialUser struct {
	ID Snowflake `json:"id"`
}

// Application is the partial application sent in READY.
type Application struct {
	ID    Snowflake `json:"id"`
	Flags int       `json:"flags"`
}

// -----------------------------------------------------------------------------
// Guild and nested resources
// -----------------------------------------------------------------------------

// Guild is a cached guild with its nested collections.
type Guild struct {
	ID                       Snowflake        `json:"id"`
	Name                     string           `json:"name"`
	Icon                     *string          `json:"icon,omitempty"`
	OwnerID                  Snowflake        `json:"owner_id,omitempty"`
	Unavailable              bool             `json:"unavailable,omitempty"`
	Large                    bool             `json:"large,omitempty"`
	MemberCount              int              `json:"member_count,omitempty"`
	PreferredLocale          string           `json:"preferred_locale,omitempty"`
	Features                 []string         `json:"features,omitempty"`
	Roles                    []Role           `json:"roles,omitempty"`
	Emojis                   []Emoji          `json:"emojis,omitempty"`
	Stickers                 []Sticker        `json:"stickers,omitempty"`
	Channels                 []Channel        `json:"channels,omitempty"`
	Threads                  []Channel        `json:"threads,omitempty"`
	Members                  []Member         `json:"members,omitempty"`
	VoiceStates              []VoiceState     `json:"voice_states,omitempty"`
	Presences                []Presence       `json:"presences,omitempty"`
	StageInstances           []StageInstance  `json:"stage_instances,omitempty"`
	GuildScheduledEvents     []ScheduledEvent `json:"guild_scheduled_events,omitempty"`
	SoundboardSounds         []SoundboardSnd  `json:"soundboard_sounds,omitempty"`
	SystemChannelID          *Snowflake       `json:"system_channel_id,omitempty"`
	PremiumSubscriptionCount int              `json:"premium_subscription_count,omitempty"`
}

// UnavailableGuild is the placeholder sent in READY and GUILD_DELETE.
type UnavailableGuild struct {
	ID          Snowflake `json:"id"`
	Unavailable bool      `json:"unavailable"`
}

// Role is a guild role.
type Role struct {
	ID          Snowflake   `json:"id"`
	Name        string      `json:"name"`
	Color       int         `json:"color"`
	Hoist       bool        `json:"hoist"`
	Position    int         `json:"position"`
	Permissions Permissions `json:"permissions"`
	Managed     bool        `json:"managed"`
	Mentionable bool        `json:"mentionable"`
}

// Emoji is a custom or unicode emoji. Unicode emojis have no id.
type Emoji struct {
	ID       *Snowflake `json:"id"`
	Name     *string    `json:"name"`
	Animated bool       `json:"animated,omitempty"`
}

// Key identifies the emoji in reaction tallies: the id for custom emojis, else the name.
func (e Emoji) Key() string {
	if e.ID != nil {
		return string(*e.ID)
	}
	if e.Name != nil {
		return *e.Name
	}
	return ""
}

// Sticker is a guild sticker.
type Sticker struct {
	ID         Snowflake `json:"id"`
	Name       string    `json:"name"`
	FormatType int       `json:"format_type"`
	Available  *bool     `json:"available,omitempty"`
}

// SoundboardSnd is a guild soundboard sound.
type SoundboardSnd struct {
	SoundID Snowflake  `json:"sound_id"`
	Name    string     `json:"name"`
	Volume  float64    `json:"volume"`
	GuildID *Snowflake `json:"guild_id,omitempty"`
}

// Channel is a guild channel, thread or DM.
type Channel struct {
	ID               Snowflake       `json:"id"`
	Type             int             `json:"type"`
	GuildID          *Snowflake      `json:"guild_id,omitempty"`
	Name             *string         `json:"name,omitempty"`
	Topic            *string         `json:"topic,omitempty"`
	Position         int             `json:"position,omitempty"`
	ParentID         *Snowflake      `json:"parent_id,omitempty"`
	OwnerID          *Snowflake      `json:"owner_id,omitempty"`
	LastMessageID    *Snowflake      `json:"last_message_id,omitempty"`
	LastPinTimestamp *string         `json:"last_pin_timestamp,omitempty"`
	NSFW             bool            `json:"nsfw,omitempty"`
	MessageCount     int             `json:"message_count,omitempty"`
	MemberCount      int             `json:"member_count,omitempty"`
	ThreadMetadata   *ThreadMetadata `json:"thread_metadata,omitempty"`
	Recipients       []User          `json:"recipients,omitempty"`
}

// ThreadMetadata holds thread-only channel fields.
type ThreadMetadata struct {
	Archived            bool   `json:"archived"`
	AutoArchiveDuration int    `json:"auto_archive_duration"`
	ArchiveTimestamp    string `json:"archive_timestamp"`
	Locked              bool   `json:"locked"`
}

// ThreadMember is a user's membership of a thread.
type ThreadMember struct {
	ID       *Snowflake `json:"id,omitempty"`
	UserID   *Snowflake `json:"user_id,omitempty"`
	JoinTime string     `json:"join_timestamp"`
	Flags    int        `json:"flags"`
}

// Member is a guild member.
type Member struct {
	User                       *User       `json:"user,omitempty"`
	Nick                       *string     `json:"nick,omitempty"`
	Avatar                     *string     `json:"avatar,omitempty"`
	Roles                      []Snowflake `json:"roles"`
	JoinedAt                   *string     `json:"joined_at,omitempty"`
	PremiumSince               *string     `json:"premium_since,omitempty"`
	Deaf                       bool        `json:"deaf,omitempty"`
	Mute                       bool        `json:"mute,omitempty"`
	Pending                    bool        `json:"pending,omitempty"`
	CommunicationDisabledUntil *string     `json:"communication_disabled_until,omitempty"`
}

// UserID returns the member's user id, or "" when the user is absent.
func (m Member) UserID() Snowflake {
	if m.User == nil {
		return ""
	}
	return m.User.ID
}

// VoiceState is a user's voice connection state.
type VoiceState struct {
	GuildID   *Snowflake `json:"guild_id,omitempty"`
	ChannelID *Snowflake `json:"channel_id"`
	UserID    Snowflake  `json:"user_id"`
	Member    *Member    `json:"member,omitempty"`
	SessionID string     `json:"session_id"`
	Deaf      bool       `json:"deaf"`
	Mute      bool       `json:"mute"`
	SelfDeaf  bool       `json:"self_deaf"`
	SelfMute  bool       `json:"self_mute"`
	SelfVideo bool       `json:"self_video"`
	Suppress  bool       `json:"suppress"`
}

// Presence is a user's status in a guild.
type Presence struct {
	User         PartialUser       `json:"user"`
	GuildID      *Snowflake        `json:"guild_id,omitempty"`
	Status       string            `json:"status"`
	Activities   []Activity        `json:"activities"`
	ClientStatus map[string]string `json:"client_status,omitempty"`
}

// Activity is one entry of a presence's activities.
type Activity struct {
	Name  string  `json:"name"`
	Type  int     `json:"type"`
	URL   *string `json:"url,omitempty"`
	State *string `json:"state,omitempty"`
}

// StageInstance is a live stage.
type StageInstance struct {
	ID           Snowflake `json:"id"`
	GuildID      Snowflake `json:"guild_id"`
	ChannelID    Snowflake `json:"channel_id"`
	Topic        string    `json:"topic"`
	PrivacyLevel int       `json:"privacy_level"`
}

// ScheduledEvent is a guild scheduled event. UserIDs is maintained by the cache
// from user add/remove events; the gateway never sends it.
type ScheduledEvent struct {
	ID                 Snowflake   `json:"id"`
	GuildID            Snowflake   `json:"guild_id"`
	ChannelID          *Snowflake  `json:"channel_id,omitempty"`
	CreatorID          *Snowflake  `json:"creator_id,omitempty"`
	Name               string      `json:"name"`
	Description        *string     `json:"description,omitempty"`
	ScheduledStartTime string      `json:"scheduled_start_time"`
	ScheduledEndTime   *string     `json:"scheduled_end_time,omitempty"`
	Status             int         `json:"status"`
	EntityType         int         `json:"entity_type"`
	UserCount          *int        `json:"user_count,omitempty"`
	UserIDs            []Snowflake `json:"user_ids,omitempty"`
}

// -----------------------------------------------------------------------------
// Guild-scoped collections cached outside the guild
// -----------------------------------------------------------------------------

// Integration is a guild integration.
type Integration struct {
	ID      Snowflake  `json:"id"`
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	Enabled bool       `json:"enabled"`
	GuildID *Snowflake `json:"guild_id,omitempty"`
}

// AutoModerationRule is an auto moderation rule.
type AutoModerationRule struct {
	ID          Snowflake   `json:"id"`
	GuildID     Snowflake   `json:"guild_id"`
	Name        string      `json:"name"`
	CreatorID   Snowflake   `json:"creator_id"`
	EventType   int         `json:"event_type"`
	TriggerType int         `json:"trigger_type"`
	Enabled     bool        `json:"enabled"`
	ExemptRoles []Snowflake `json:"exempt_roles,omitempty"`
}

// AutoModerationExecution is an executed auto moderation action.
type AutoModerationExecution struct {
	GuildID        Snowflake  `json:"guild_id"`
	RuleID         Snowflake  `json:"rule_id"`
	RuleTrigger    int        `json:"rule_trigger_type"`
	UserID         Snowflake  `json:"user_id"`
	ChannelID      *Snowflake `json:"channel_id,omitempty"`
	MessageID      *Snowflake `json:"message_id,omitempty"`
	Content        string     `json:"content,omitempty"`
	MatchedKeyword *string    `json:"matched_keyword,omitempty"`
}

// AuditLogEntry is a guild audit log entry.
type AuditLogEntry struct {
	ID         Snowflake  `json:"id"`
	GuildID    Snowflake  `json:"guild_id"`
	TargetID   *string    `json:"target_id,omitempty"`
	UserID     *Snowflake `json:"user_id,omitempty"`
	ActionType int        `json:"action_type"`
	Reason     *string    `json:"reason,omitempty"`
}

// Ban is a banned user of a guild.
type Ban struct {
	User User `json:"user"`
}

// Invite is a channel invite.
type Invite struct {
	Code      string     `json:"code"`
	GuildID   *Snowflake `json:"guild_id,omitempty"`
	ChannelID Snowflake  `json:"channel_id"`
	Inviter   *User      `json:"inviter,omitempty"`
	CreatedAt string     `json:"created_at"`
	MaxAge    int        `json:"max_age"`
	MaxUses   int        `json:"max_uses"`
	Uses      int        `json:"uses"`
	Temporary bool       `json:"temporary"`
}

// Entitlement is a user's or guild's access to a premium SKU.
type Entitlement struct {
	ID            Snowflake  `json:"id"`
	SKUID         Snowflake  `json:"sku_id"`
	ApplicationID Snowflake  `json:"application_id"`
	UserID        *Snowflake `json:"user_id,omitempty"`
	GuildID       *Snowflake `json:"guild_id,omitempty"`
	Type          int        `json:"type"`
	Deleted       bool       `json:"deleted"`
	StartsAt      *string    `json:"starts_at,omitempty"`
	EndsAt        *string    `json:"ends_at,omitempty"`
}

// CommandPermissions are the permission overwrites of one application command.
type CommandPermissions struct {
	ID            Snowflake         `json:"id"`
	ApplicationID Snowflake         `json:"application_id"`
	GuildID       Snowflake         `json:"guild_id"`
	Permissions   []CommandOverride `json:"permissions"`
}

// CommandOverride is a single command permission overwrite.
type CommandOverride struct {
	ID         Snowflake `json:"id"`
	Type       int       `json:"type"`
	Permission bool      `json:"permission"`
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

// Message is a channel message. ReferencedMessage is the single recursive field.
type Message struct {
	ID                Snowflake         `json:"id"`
	ChannelID         Snowflake         `json:"channel_id"`
	GuildID           *Snowflake        `json:"guild_id,omitempty"`
	Author            *User             `json:"author,omitempty"`
	Member            *Member           `json:"member,omitempty"`
	Content           string            `json:"content"`
	Timestamp         string            `json:"timestamp"`
	EditedTimestamp   *string           `json:"edited_timestamp,omitempty"`
	TTS               bool              `json:"tts,omitempty"`
	MentionEveryone   bool              `json:"mention_everyone,omitempty"`
	Mentions          []User            `json:"mentions,omitempty"`
	MentionRoles      []Snowflake       `json:"mention_roles,omitempty"`
	Attachments       []Attachment      `json:"attachments,omitempty"`
	Embeds            []Embed           `json:"embeds,omitempty"`
	Reactions         []Reaction        `json:"reactions,omitempty"`
	Pinned            bool              `json:"pinned,omitempty"`
	WebhookID         *Snowflake        `json:"webhook_id,omitempty"`
	Type              int               `json:"type"`
	Flags             *MessageFlags     `json:"flags,omitempty"`
	MessageReference  *MessageReference `json:"message_reference,omitempty"`
	ReferencedMessage *Message          `json:"referenced_message,omitempty"`
	Poll              *Poll             `json:"poll,omitempty"`
}

// MessageReference points at another message.
type MessageReference struct {
	MessageID *Snowflake `json:"message_id,omitempty"`
	ChannelID *Snowflake `json:"channel_id,omitempty"`
	GuildID   *Snowflake `json:"guild_id,omitempty"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID          Snowflake `json:"id"`
	Filename    string    `json:"filename"`
	Size        int       `json:"size"`
	URL         string    `json:"url"`
	ContentType *string   `json:"content_type,omitempty"`
}

// Embed is a rich embed; only the fields worth caching are kept.
type Embed struct {
	Title       *string `json:"title,omitempty"`
	Type        *string `json:"type,omitempty"`
	Description *string `json:"description,omitempty"`
	URL         *string `json:"url,omitempty"`
	Color       *int    `json:"color,omitempty"`
}

// Reaction is the tally of one emoji on a message.
type Reaction struct {
	Count        int                  `json:"count"`
	CountDetails ReactionCountDetails `json:"count_details"`
	Me           bool                 `json:"me"`
	MeBurst      bool                 `json:"me_burst"`
	Emoji        Emoji                `json:"emoji"`
	BurstColors  []string             `json:"burst_colors,omitempty"`
}

// ReactionCountDetails splits a reaction count by kind.
type ReactionCountDetails struct {
	Burst  int `json:"burst"`
	Normal int `json:"normal"`
}

// Poll is a message poll.
type Poll struct {
	Question         PollMedia    `json:"question"`
	Answers          []PollAnswer `json:"answers"`
	Expiry           *string      `json:"expiry,omitempty"`
	AllowMultiselect bool         `json:"allow_multiselect"`
}

// PollMedia is the text of a poll question or answer.
type PollMedia struct {
	Text *string `json:"text,omitempty"`
}

// PollAnswer is one poll option.
type PollAnswer struct {
	AnswerID  int       `json:"answer_id"`
	PollMedia PollMedia `json:"poll_media"`
}
