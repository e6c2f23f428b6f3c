package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned when a frame is not a valid gateway envelope.
var ErrMalformedFrame = errors.New("malformed gateway frame")

// UnhandledDispatchError reports a dispatch whose name has no payload type.
type UnhandledDispatchError struct {
	Name string
}

func (e *UnhandledDispatchError) Error() string {
	return fmt.Sprintf("unhandled dispatch event %q", e.Name)
}

// Event is one decoded inbound frame.
type Event struct {
	Op       Opcode
	Sequence *int64
	Name     string
	Payload  Payload

	// Shard is filled in by the connection that received the frame.
	Shard int
}

type envelope struct {
	Op Opcode          `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  *string         `json:"t"`
}

// Decode parses a complete JSON frame.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	ev := Event{Op: env.Op, Sequence: env.S}
	if env.T != nil {
		ev.Name = *env.T
	}

	var err error
	switch env.Op {
	case OpDispatch:
		if ev.Name == "" {
			return ev, fmt.Errorf("%w: dispatch without event name", ErrMalformedFrame)
		}
		ev.Payload, err = decodeDispatch(ev.Name, env.D)
	case OpHeartbeat:
		p := &HeartbeatRequest{}
		if isPresent(env.D) {
			var seq int64
			if err = json.Unmarshal(env.D, &seq); err == nil {
				p.LastSequence = &seq
			}
		}
		ev.Payload = p
	case OpReconnect:
		ev.Payload = &Reconnect{}
	case OpInvalidSession:
		p := &InvalidSession{}
		if isPresent(env.D) {
			err = json.Unmarshal(env.D, &p.CanResume)
		}
		ev.Payload = p
	case OpHello:
		p := &Hello{}
		err = json.Unmarshal(env.D, p)
		if err == nil && p.HeartbeatInterval <= 0 {
			err = fmt.Errorf("heartbeat_interval %d", p.HeartbeatInterval)
		}
		ev.Payload = p
	case OpHeartbeatAck:
		ev.Payload = &HeartbeatAck{}
	default:
		return ev, fmt.Errorf("%w: unexpected opcode %d", ErrMalformedFrame, int(env.Op))
	}
	if err != nil {
		var unhandled *UnhandledDispatchError
		if errors.As(err, &unhandled) {
			return ev, err
		}
		return ev, fmt.Errorf("decode %s: %w", describe(ev), err)
	}
	return ev, nil
}

func decodeDispatch(name string, raw json.RawMessage) (Payload, error) {
	if name == "INTERACTION_CREATE" {
		return &InteractionCreate{Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	ctor, ok := dispatchTypes[name]
	if !ok {
		return nil, &UnhandledDispatchError{Name: name}
	}
	p := ctor()
	if !isPresent(raw) {
		return p, nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func describe(ev Event) string {
	if ev.Op == OpDispatch {
		return ev.Name
	}
	return ev.Op.String()
}

var dispatchTypes = map[string]func() Payload{
	"READY":   func() Payload { return &Ready{} },
	"RESUMED": func() Payload { return &Resumed{} },

	"APPLICATION_COMMAND_PERMISSIONS_UPDATE": func() Payload { return &ApplicationCommandPermissionsUpdate{} },
	"AUTO_MODERATION_RULE_CREATE":            func() Payload { return &AutoModerationRuleCreate{} },
	"AUTO_MODERATION_RULE_UPDATE":            func() Payload { return &AutoModerationRuleUpdate{} },
	"AUTO_MODERATION_RULE_DELETE":            func() Payload { return &AutoModerationRuleDelete{} },
	"AUTO_MODERATION_ACTION_EXECUTION":       func() Payload { return &AutoModerationActionExecution{} },

	"CHANNEL_CREATE":        func() Payload { return &ChannelCreate{} },
	"CHANNEL_UPDATE":        func() Payload { return &ChannelUpdate{} },
	"CHANNEL_DELETE":        func() Payload { return &ChannelDelete{} },
	"CHANNEL_PINS_UPDATE":   func() Payload { return &ChannelPinsUpdate{} },
	"THREAD_CREATE":         func() Payload { return &ThreadCreate{} },
	"THREAD_UPDATE":         func() Payload { return &ThreadUpdate{} },
	"THREAD_DELETE":         func() Payload { return &ThreadDelete{} },
	"THREAD_LIST_SYNC":      func() Payload { return &ThreadListSync{} },
	"THREAD_MEMBER_UPDATE":  func() Payload { return &ThreadMemberUpdate{} },
	"THREAD_MEMBERS_UPDATE": func() Payload { return &ThreadMembersUpdate{} },

	"ENTITLEMENT_CREATE": func() Payload { return &EntitlementCreate{} },
	"ENTITLEMENT_UPDATE": func() Payload { return &EntitlementUpdate{} },
	"ENTITLEMENT_DELETE": func() Payload { return &EntitlementDelete{} },

	"GUILD_CREATE":                      func() Payload { return &GuildCreate{} },
	"GUILD_UPDATE":                      func() Payload { return &GuildUpdate{} },
	"GUILD_DELETE":                      func() Payload { return &GuildDelete{} },
	"GUILD_AUDIT_LOG_ENTRY_CREATE":      func() Payload { return &GuildAuditLogEntryCreate{} },
	"GUILD_BAN_ADD":                     func() Payload { return &GuildBanAdd{} },
	"GUILD_BAN_REMOVE":                  func() Payload { return &GuildBanRemove{} },
	"GUILD_EMOJIS_UPDATE":               func() Payload { return &GuildEmojisUpdate{} },
	"GUILD_STICKERS_UPDATE":             func() Payload { return &GuildStickersUpdate{} },
	"GUILD_INTEGRATIONS_UPDATE":         func() Payload { return &GuildIntegrationsUpdate{} },
	"GUILD_MEMBER_ADD":                  func() Payload { return &GuildMemberAdd{} },
	"GUILD_MEMBER_REMOVE":               func() Payload { return &GuildMemberRemove{} },
	"GUILD_MEMBER_UPDATE":               func() Payload { return &GuildMemberUpdate{} },
	"GUILD_MEMBERS_CHUNK":               func() Payload { return &GuildMembersChunk{} },
	"GUILD_ROLE_CREATE":                 func() Payload { return &GuildRoleCreate{} },
	"GUILD_ROLE_UPDATE":                 func() Payload { return &GuildRoleUpdate{} },
	"GUILD_ROLE_DELETE":                 func() Payload { return &GuildRoleDelete{} },
	"GUILD_SCHEDULED_EVENT_CREATE":      func() Payload { return &GuildScheduledEventCreate{} },
	"GUILD_SCHEDULED_EVENT_UPDATE":      func() Payload { return &GuildScheduledEventUpdate{} },
	"GUILD_SCHEDULED_EVENT_DELETE":      func() Payload { return &GuildScheduledEventDelete{} },
	"GUILD_SCHEDULED_EVENT_USER_ADD":    func() Payload { return &GuildScheduledEventUserAdd{} },
	"GUILD_SCHEDULED_EVENT_USER_REMOVE": func() Payload { return &GuildScheduledEventUserRemove{} },

	"INTEGRATION_CREATE": func() Payload { return &IntegrationCreate{} },
	"INTEGRATION_UPDATE": func() Payload { return &IntegrationUpdate{} },
	"INTEGRATION_DELETE": func() Payload { return &IntegrationDelete{} },
	"INVITE_CREATE":      func() Payload { return &InviteCreate{} },
	"INVITE_DELETE":      func() Payload { return &InviteDelete{} },

	"MESSAGE_CREATE":                func() Payload { return &MessageCreate{} },
	"MESSAGE_UPDATE":                func() Payload { return &MessageUpdate{} },
	"MESSAGE_DELETE":                func() Payload { return &MessageDelete{} },
	"MESSAGE_DELETE_BULK":           func() Payload { return &MessageDeleteBulk{} },
	"MESSAGE_REACTION_ADD":          func() Payload { return &MessageReactionAdd{} },
	"MESSAGE_REACTION_REMOVE":       func() Payload { return &MessageReactionRemove{} },
	"MESSAGE_REACTION_REMOVE_ALL":   func() Payload { return &MessageReactionRemoveAll{} },
	"MESSAGE_REACTION_REMOVE_EMOJI": func() Payload { return &MessageReactionRemoveEmoji{} },
	"MESSAGE_POLL_VOTE_ADD":         func() Payload { return &MessagePollVoteAdd{} },
	"MESSAGE_POLL_VOTE_REMOVE":      func() Payload { return &MessagePollVoteRemove{} },

	"PRESENCE_UPDATE":       func() Payload { return &PresenceUpdate{} },
	"STAGE_INSTANCE_CREATE": func() Payload { return &StageInstanceCreate{} },
	"STAGE_INSTANCE_UPDATE": func() Payload { return &StageInstanceUpdate{} },
	"STAGE_INSTANCE_DELETE": func() Payload { return &StageInstanceDelete{} },
	"TYPING_START":          func() Payload { return &TypingStart{} },
	"USER_UPDATE":           func() Payload { return &UserUpdate{} },
	"VOICE_STATE_UPDATE":    func() Payload { return &VoiceStateUpdate{} },
	"VOICE_SERVER_UPDATE":   func() Payload { return &VoiceServerUpdate{} },
	"WEBHOOKS_UPDATE":       func() Payload { return &WebhooksUpdate{} },
}

// IsKnownDispatch reports whether name decodes to a typed payload.
func IsKnownDispatch(name string) bool {
	if name == "INTERACTION_CREATE" {
		return true
	}
	_, ok := dispatchTypes[name]
	return ok
}
