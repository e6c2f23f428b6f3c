package model

// Permission is a role/channel permission bit position.
type Permission uint

const (
	PermissionCreateInstantInvite Permission = 0
	PermissionKickMembers         Permission = 1
	PermissionBanMembers          Permission = 2
	PermissionAdministrator       Permission = 3
	PermissionManageChannels      Permission = 4
	PermissionManageGuild         Permission = 5
	PermissionAddReactions        Permission = 6
	PermissionViewAuditLog        Permission = 7
	PermissionPrioritySpeaker     Permission = 8
	PermissionStream              Permission = 9
	PermissionViewChannel         Permission = 10
	PermissionSendMessages        Permission = 11
	PermissionSendTTSMessages     Permission = 12
	PermissionManageMessages      Permission = 13
	PermissionEmbedLinks          Permission = 14
	PermissionAttachFiles         Permission = 15
	PermissionReadMessageHistory  Permission = 16
	PermissionMentionEveryone     Permission = 17
	PermissionUseExternalEmojis   Permission = 18
	PermissionViewGuildInsights   Permission = 19
	PermissionConnect             Permission = 20
	PermissionSpeak               Permission = 21
	PermissionMuteMembers         Permission = 22
	PermissionDeafenMembers       Permission = 23
	PermissionMoveMembers         Permission = 24
	PermissionUseVAD              Permission = 25
	PermissionChangeNickname      Permission = 26
	PermissionManageNicknames     Permission = 27
	PermissionManageRoles         Permission = 28
	PermissionManageWebhooks      Permission = 29
	PermissionManageExpressions   Permission = 30
	PermissionUseApplicationCmds  Permission = 31
	PermissionRequestToSpeak      Permission = 32
	PermissionManageEvents        Permission = 33
	PermissionManageThreads       Permission = 34
	PermissionCreatePublicThreads Permission = 35
	PermissionCreatePrivThreads   Permission = 36
	PermissionUseExternalStickers Permission = 37
	PermissionSendInThreads       Permission = 38
	PermissionModerateMembers     Permission = 40
)

// IsKnown reports whether p is a named permission.
func (p Permission) IsKnown() bool {
	return p <= PermissionSendInThreads || p == PermissionModerateMembers
}

// Permissions is a permission set, transported as a string.
type Permissions = StringBitField[Permission]

// MessageFlag is a message flag bit position.
type MessageFlag uint

const (
	MessageFlagCrossposted          MessageFlag = 0
	MessageFlagIsCrosspost          MessageFlag = 1
	MessageFlagSuppressEmbeds       MessageFlag = 2
	MessageFlagSourceMessageDeleted MessageFlag = 3
	MessageFlagUrgent               MessageFlag = 4
	MessageFlagHasThread            MessageFlag = 5
	MessageFlagEphemeral            MessageFlag = 6
	MessageFlagLoading              MessageFlag = 7
	MessageFlagSuppressNotify       MessageFlag = 12
	MessageFlagIsVoiceMessage       MessageFlag = 13
)

// IsKnown reports whether f is a named message flag.
func (f MessageFlag) IsKnown() bool {
	return f <= MessageFlagLoading || f == MessageFlagSuppressNotify || f == MessageFlagIsVoiceMessage
}

// MessageFlags is a message flag set.
type MessageFlags = BitField[MessageFlag]
