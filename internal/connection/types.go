package connection

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rickgao/gateway-cache/internal/auth"
	"github.com/rickgao/gateway-cache/internal/compress"
	"github.com/rickgao/gateway-cache/internal/model"
	"github.com/rickgao/gateway-cache/internal/protocol"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrConnectRejected = errors.New("connect rejected: connection attempt already in progress")
	ErrSuperseded      = errors.New("connect superseded by a newer attempt")
)

// State is the lifecycle state of a Manager.
type State int32

const (
	StateNoConnection State = iota
	StateConnecting
	StateConfigured
	StateConnected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNoConnection:
		return "no_connection"
	case StateConnecting:
		return "connecting"
	case StateConfigured:
		return "configured"
	case StateConnected:
		return "connected"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// canConnect reports whether Connect is allowed from s.
func (s State) canConnect() bool {
	return s == StateNoConnection || s == StateConfigured || s == StateStopped
}

// TimestampedMessage wraps one WebSocket message with its receive time.
type TimestampedMessage struct {
	Data       []byte
	Binary     bool
	ReceivedAt time.Time
}

// DecodeError reports a frame that could not be decompressed or decoded.
// The connection stays up.
type DecodeError struct {
	Raw   []byte
	Err   error
	Shard int
}

func (e DecodeError) Error() string { return e.Err.Error() }

func (e DecodeError) Unwrap() error { return e.Err }

// Session is the resumable state of a gateway session.
type Session struct {
	SessionID string
	Sequence  *int64
	ResumeURL string
}

// GatewayResolver discovers the gateway URL.
type GatewayResolver interface {
	GatewayURL(ctx context.Context) (string, error)
}

// GatewayResolverFunc adapts a function to GatewayResolver.
type GatewayResolverFunc func(ctx context.Context) (string, error)

func (f GatewayResolverFunc) GatewayURL(ctx context.Context) (string, error) { return f(ctx) }

// ShardGate holds a shard back until its bucket may connect.
type ShardGate interface {
	WaitForOtherShards(ctx context.Context, shardIndex, maxConcurrency int) error
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full gateway URL including query
	Header           http.Header   // Extra handshake headers
	HandshakeTimeout time.Duration // Dial handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures one gateway connection.
type ManagerConfig struct {
	Token          auth.Token
	Shard          *protocol.ShardInfo // nil for an unsharded connection
	MaxConcurrency int                 // identify concurrency of the account
	Intents        model.Intents
	Presence       *protocol.PresenceUpdateSend
	LargeThreshold int
	Compression    compress.Mode
	Properties     protocol.IdentifyProperties

	APIVersion          int           // Gateway version in the URL. Default: 10
	SendInterval        time.Duration // Minimum spacing of control frames. Default: 500ms
	HeartbeatGrace      time.Duration // Wait for an ack after each heartbeat. Default: 10s
	MaxMissedHeartbeats int           // Default: 3
	DiscoveryRetry      time.Duration // Default: 10s
	StreamBufferSize    int           // Initial capacity of subscriber streams. Default: 256

	Backoff BackoffConfig
	Client  ClientConfig
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxConcurrency:      1,
		Intents:             model.UnprivilegedIntents(),
		LargeThreshold:      250,
		Compression:         compress.ModeZlibStream,
		APIVersion:          10,
		SendInterval:        500 * time.Millisecond,
		HeartbeatGrace:      10 * time.Second,
		MaxMissedHeartbeats: 3,
		DiscoveryRetry:      10 * time.Second,
		StreamBufferSize:    256,
		Backoff:             DefaultBackoffConfig(),
		Client:              DefaultClientConfig(),
	}
}

// withDefaults fills zero values from DefaultManagerConfig.
func (c ManagerConfig) withDefaults() ManagerConfig {
	d := DefaultManagerConfig()
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = d.MaxConcurrency
	}
	if c.APIVersion == 0 {
		c.APIVersion = d.APIVersion
	}
	if c.SendInterval == 0 {
		c.SendInterval = d.SendInterval
	}
	if c.HeartbeatGrace == 0 {
		c.HeartbeatGrace = d.HeartbeatGrace
	}
	if c.MaxMissedHeartbeats == 0 {
		c.MaxMissedHeartbeats = d.MaxMissedHeartbeats
	}
	if c.DiscoveryRetry == 0 {
		c.DiscoveryRetry = d.DiscoveryRetry
	}
	if c.StreamBufferSize == 0 {
		c.StreamBufferSize = d.StreamBufferSize
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = d.Backoff
	}
	if c.Client.HandshakeTimeout == 0 {
		c.Client.HandshakeTimeout = d.Client.HandshakeTimeout
	}
	if c.Client.WriteTimeout == 0 {
		c.Client.WriteTimeout = d.Client.WriteTimeout
	}
	if c.Client.BufferSize == 0 {
		c.Client.BufferSize = d.Client.BufferSize
	}
	return c
}

// ManagerStats is a point-in-time view of a Manager.
type ManagerStats struct {
	ID               string
	Shard            int
	State            State
	Epoch            uint64
	HasSession       bool
	LastSequence     int64
	HeartbeatLatency time.Duration
	MissedHeartbeats int
	Reconnects       int64
	Subscribers      int
}
