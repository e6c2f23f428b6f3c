package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/gateway-cache/internal/model"
)

// ErrNotSendable is returned by Encode for opcodes a client may not send.
var ErrNotSendable = errors.New("opcode is not sendable")

// ShardInfo identifies one shard of a sharded connection.
type ShardInfo struct {
	Index int
	Count int
}

// MarshalJSON encodes the shard as the [index, count] pair the gateway expects.
func (s ShardInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Index, s.Count})
}

// UnmarshalJSON decodes an [index, count] pair.
func (s *ShardInfo) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	s.Index, s.Count = pair[0], pair[1]
	return nil
}

// IdentifyProperties describes the connecting client.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Identify is the op 2 payload.
type Identify struct {
	Token          string              `json:"token"`
	Properties     IdentifyProperties  `json:"properties"`
	Compress       bool                `json:"compress"`
	LargeThreshold int                 `json:"large_threshold,omitempty"`
	Shard          *ShardInfo          `json:"shard,omitempty"`
	Presence       *PresenceUpdateSend `json:"presence,omitempty"`
	Intents        model.Intents       `json:"intents"`
}

// Resume is the op 6 payload.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

// PresenceUpdateSend is the op 3 payload.
type PresenceUpdateSend struct {
	Since      *int64           `json:"since"`
	Activities []model.Activity `json:"activities"`
	Status     string           `json:"status"`
	AFK        bool             `json:"afk"`
}

// VoiceStateUpdateSend is the op 4 payload.
type VoiceStateUpdateSend struct {
	GuildID   model.Snowflake  `json:"guild_id"`
	ChannelID *model.Snowflake `json:"channel_id"`
	SelfMute  bool             `json:"self_mute"`
	SelfDeaf  bool             `json:"self_deaf"`
}

// RequestGuildMembers is the op 8 payload. Query and UserIDs are mutually exclusive.
type RequestGuildMembers struct {
	GuildID   model.Snowflake   `json:"guild_id"`
	Query     *string           `json:"query,omitempty"`
	Limit     int               `json:"limit"`
	Presences bool              `json:"presences,omitempty"`
	UserIDs   []model.Snowflake `json:"user_ids,omitempty"`
	Nonce     string            `json:"nonce,omitempty"`
}

type outbound struct {
	Op Opcode `json:"op"`
	D  any    `json:"d"`
}

// Encode serializes an outbound frame.
func Encode(op Opcode, d any) ([]byte, error) {
	if !op.IsSendable() {
		return nil, fmt.Errorf("encode %s: %w", op, ErrNotSendable)
	}
	data, err := json.Marshal(outbound{Op: op, D: d})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op, err)
	}
	return data, nil
}
