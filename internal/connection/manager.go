package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/gateway-cache/internal/compress"
	"github.com/rickgao/gateway-cache/internal/metrics"
	"github.com/rickgao/gateway-cache/internal/protocol"
	"github.com/rickgao/gateway-cache/internal/router"
	"github.com/rickgao/gateway-cache/internal/version"
)

// Manager owns the lifecycle of one logical gateway connection.
type Manager interface {
	// Connect opens a socket and returns once it is configured. Later
	// reconnects happen in the background with the same context.
	Connect(ctx context.Context) error

	// Disconnect stops the connection and closes every subscriber stream.
	Disconnect()

	// Subscribe returns a stream of every decoded event, in receive order.
	Subscribe() *router.Stream[protocol.Event]

	// SubscribeDecodeErrors returns a stream of frames that failed to decode.
	SubscribeDecodeErrors() *router.Stream[DecodeError]

	UpdatePresence(p protocol.PresenceUpdateSend)
	UpdateVoiceState(v protocol.VoiceStateUpdateSend)
	RequestGuildMembers(r protocol.RequestGuildMembers)

	State() State
	Session() Session
	Stats() ManagerStats
	ID() string
	ShardIndex() int
}

// Option customizes a Manager.
type Option func(*manager)

// WithMetrics records connection metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *manager) { mgr.metrics = m }
}

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f func(ClientConfig, *slog.Logger) Client) Option {
	return func(mgr *manager) { mgr.newClient = f }
}

// WithClock sets the clock used by the backoff.
func WithClock(now func() time.Time) Option {
	return func(mgr *manager) { mgr.backoff = NewBackoff(mgr.cfg.Backoff, now) }
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// manager implements the Manager interface.
type manager struct {
	id        string
	cfg       ManagerConfig
	logger    *slog.Logger
	resolver  GatewayResolver
	gate      ShardGate
	metrics   *metrics.Metrics
	newClient func(ClientConfig, *slog.Logger) Client

	backoff *Backoff
	queue   *SendQueue
	state   atomic.Int32

	// mu guards everything below. It is never held across a blocking call.
	mu                 sync.Mutex
	ctx                context.Context
	epoch              uint64
	epochDone          chan struct{}
	client             Client
	session            Session
	reconnectRequested bool
	beats              uint64
	ackedBeat          uint64
	lastBeatAt         time.Time
	latency            time.Duration
	missed             int
	reconnects         int64

	subsMu         sync.Mutex
	subscribers    []*router.Stream[protocol.Event]
	errSubscribers []*router.Stream[DecodeError]
}

// NewManager creates a Manager. gate may be nil for an unsharded connection.
func NewManager(cfg ManagerConfig, resolver GatewayResolver, gate ShardGate, logger *slog.Logger, opts ...Option) Manager {
	return newManager(cfg, resolver, gate, logger, opts...)
}

func newManager(cfg ManagerConfig, resolver GatewayResolver, gate ShardGate, logger *slog.Logger, opts ...Option) *manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	if cfg.Properties == (protocol.IdentifyProperties{}) {
		cfg.Properties = protocol.IdentifyProperties{
			OS:      runtime.GOOS,
			Browser: version.Name,
			Device:  version.Name,
		}
	}
	cfg.Client.Header = cfg.Client.Header.Clone()
	if cfg.Client.Header == nil {
		cfg.Client.Header = make(http.Header)
	}
	cfg.Client.Header.Set("User-Agent", version.UserAgent())

	m := &manager{
		id:        uuid.NewString(),
		cfg:       cfg,
		resolver:  resolver,
		gate:      gate,
		newClient: NewClient,
		queue:     NewSendQueue(cfg.SendInterval),
		epochDone: make(chan struct{}),
		ctx:       context.Background(),
	}
	m.backoff = NewBackoff(cfg.Backoff, nil)
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logger.With("shard", m.ShardIndex(), "conn_id", m.id)
	m.setState(StateNoConnection)
	return m
}

func (m *manager) ID() string { return m.id }

func (m *manager) ShardIndex() int {
	if m.cfg.Shard == nil {
		return 0
	}
	return m.cfg.Shard.Index
}

func (m *manager) State() State {
	return State(m.state.Load())
}

func (m *manager) setState(s State) {
	m.state.Store(int32(s))
	m.metrics.ShardState(m.ShardIndex(), int(s))
}

// Session returns a copy of the current session.
func (m *manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session
	if s.Sequence != nil {
		seq := *s.Sequence
		s.Sequence = &seq
	}
	return s
}

func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := ManagerStats{
		ID:               m.id,
		Shard:            m.ShardIndex(),
		State:            m.State(),
		Epoch:            m.epoch,
		HasSession:       m.session.SessionID != "",
		HeartbeatLatency: m.latency,
		MissedHeartbeats: m.missed,
		Reconnects:       m.reconnects,
	}
	if m.session.Sequence != nil {
		stats.LastSequence = *m.session.Sequence
	}
	m.mu.Unlock()

	m.subsMu.Lock()
	stats.Subscribers = len(m.subscribers)
	m.subsMu.Unlock()
	return stats
}

// -----------------------------------------------------------------------------
// Epochs
// -----------------------------------------------------------------------------

// advanceEpochLocked starts a new epoch and wakes everything waiting on the
// old one. Must be called with mu held.
func (m *manager) advanceEpochLocked() uint64 {
	m.epoch++
	close(m.epochDone)
	m.epochDone = make(chan struct{})
	return m.epoch
}

// epochEnded returns a channel that is closed once epoch is no longer current.
func (m *manager) epochEnded(epoch uint64) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return closedChan
	}
	return m.epochDone
}

func (m *manager) isStale(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch != epoch
}

// sleep waits for d unless ctx ends or epoch is superseded.
func (m *manager) sleep(ctx context.Context, epoch uint64, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.epochEnded(epoch):
		return ErrSuperseded
	}
}

// -----------------------------------------------------------------------------
// Connect sequence
// -----------------------------------------------------------------------------

func (m *manager) Connect(ctx context.Context) error {
	if !m.State().canConnect() {
		return ErrConnectRejected
	}

	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	return m.connect(ctx)
}

func (m *manager) connect(ctx context.Context) error {
	m.mu.Lock()
	start := m.epoch
	m.mu.Unlock()

	for {
		if wait, ok := m.backoff.CanPerformIn(); ok {
			m.logger.Info("waiting before connecting", "wait", wait)
			if err := m.sleep(ctx, start, wait); err != nil {
				return err
			}
		}

		if err := m.beginConnecting(start); err != nil {
			return err
		}
		m.queue.Reset()

		gatewayURL, err := m.resolveURL(ctx, start)
		if err != nil {
			m.abort(start)
			return err
		}

		if m.cfg.Shard != nil && m.gate != nil {
			if err := m.gate.WaitForOtherShards(ctx, m.cfg.Shard.Index, m.cfg.MaxConcurrency); err != nil {
				m.abort(start)
				return fmt.Errorf("wait for shard bucket: %w", err)
			}
		}
		if m.isStale(start) {
			return ErrSuperseded
		}

		clientCfg := m.cfg.Client
		clientCfg.URL = gatewayURL
		client := m.newClient(clientCfg, m.logger)

		if err := client.Connect(ctx); err != nil {
			m.logger.Warn("gateway dial failed", "error", err)
			m.backoff.WillTry()
			if !m.abort(start) {
				return ErrSuperseded
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		decomp, err := compress.New(m.cfg.Compression, compress.Options{})
		if err != nil {
			client.Close(websocket.CloseNormalClosure)
			m.abort(start)
			return fmt.Errorf("create decompressor: %w", err)
		}

		m.mu.Lock()
		if m.epoch != start {
			m.mu.Unlock()
			client.Close(websocket.CloseNormalClosure)
			if decomp != nil {
				decomp.Close()
			}
			return ErrSuperseded
		}
		previous := m.client
		epoch := m.advanceEpochLocked()
		m.client = client
		m.beats, m.ackedBeat, m.missed = 0, 0, 0
		m.setState(StateConfigured)
		m.mu.Unlock()

		if previous != nil {
			previous.Close(int(protocol.CloseUnknownError))
		}

		go m.readLoop(epoch, client, decomp)

		m.logger.Info("gateway socket open", "epoch", epoch, "compression", string(m.cfg.Compression))
		return nil
	}
}

// beginConnecting is the state guard of the connect sequence.
func (m *manager) beginConnecting(start uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != start {
		return ErrSuperseded
	}
	if !m.State().canConnect() {
		return ErrConnectRejected
	}
	m.setState(StateConnecting)
	return nil
}

// abort moves back to NoConnection unless a newer attempt took over.
func (m *manager) abort(start uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != start {
		return false
	}
	m.setState(StateNoConnection)
	return true
}

// resolveURL reuses the resume URL while a sequence is known, otherwise asks
// the discovery endpoint until it answers.
func (m *manager) resolveURL(ctx context.Context, start uint64) (string, error) {
	m.mu.Lock()
	base := m.session.ResumeURL
	if m.session.Sequence == nil {
		base = ""
	}
	m.mu.Unlock()

	for base == "" {
		u, err := m.resolver.GatewayURL(ctx)
		if err == nil {
			base = u
			break
		}
		m.logger.Warn("gateway discovery failed, retrying",
			"error", err,
			"retry_in", m.cfg.DiscoveryRetry,
		)
		if err := m.sleep(ctx, start, m.cfg.DiscoveryRetry); err != nil {
			return "", err
		}
		if m.State() != StateConnecting {
			return "", ErrConnectRejected
		}
	}

	return m.gatewayURL(base)
}

func (m *manager) gatewayURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("v", strconv.Itoa(m.cfg.APIVersion))
	q.Set("encoding", "json")
	if m.cfg.Compression != compress.ModeNone {
		q.Set("compress", string(m.cfg.Compression))
	} else {
		q.Del("compress")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// autoConnect runs a background reconnect.
func (m *manager) autoConnect(ctx context.Context) {
	err := m.connect(ctx)
	if err == nil || errors.Is(err, ErrSuperseded) || errors.Is(err, ErrConnectRejected) {
		return
	}
	m.logger.Warn("reconnect abandoned", "error", err)
}

// -----------------------------------------------------------------------------
// Inbound
// -----------------------------------------------------------------------------

func (m *manager) readLoop(epoch uint64, client Client, decomp compress.Decompressor) {
	if decomp != nil {
		defer decomp.Close()
	}

	for msg := range client.Messages() {
		if m.isStale(epoch) {
			continue
		}
		m.handleMessage(epoch, msg, decomp)
	}

	m.handleClose(epoch, client.Err())
}

func (m *manager) handleMessage(epoch uint64, msg TimestampedMessage, decomp compress.Decompressor) {
	data := msg.Data
	if decomp != nil && msg.Binary {
		out, err := decomp.Decompress(data)
		if errors.Is(err, compress.ErrIncompleteFrame) {
			return
		}
		if err != nil {
			m.reportDecodeError(msg.Data, fmt.Errorf("decompress: %w", err))
			return
		}
		data = out
	}

	ev, err := protocol.Decode(data)
	if ev.Op == protocol.OpDispatch && ev.Sequence != nil {
		m.updateSequence(epoch, *ev.Sequence)
	}
	if err != nil {
		var unhandled *protocol.UnhandledDispatchError
		if errors.As(err, &unhandled) {
			m.logger.Debug("unhandled dispatch event", "event", unhandled.Name)
		}
		m.reportDecodeError(data, err)
		return
	}

	ev.Shard = m.ShardIndex()
	m.handleEvent(epoch, ev)
}

func (m *manager) updateSequence(epoch uint64, seq int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		return
	}
	if m.session.Sequence == nil || seq > *m.session.Sequence {
		m.session.Sequence = &seq
	}
}

func (m *manager) handleEvent(epoch uint64, ev protocol.Event) {
	switch p := ev.Payload.(type) {
	case *protocol.Hello:
		interval := time.Duration(p.HeartbeatInterval) * time.Millisecond
		m.logger.Debug("hello received", "heartbeat_interval", interval)
		go m.heartbeatLoop(epoch, interval)
		m.identifyOrResume(epoch)

	case *protocol.HeartbeatRequest:
		m.sendHeartbeat(epoch)

	case *protocol.HeartbeatAck:
		m.onHeartbeatAck(epoch)

	case *protocol.Reconnect:
		m.mu.Lock()
		if m.epoch == epoch {
			m.reconnectRequested = true
		}
		m.mu.Unlock()
		m.logger.Info("gateway requested reconnect")

	case *protocol.InvalidSession:
		m.logger.Warn("invalid session", "can_resume", p.CanResume)
		if !p.CanResume {
			m.mu.Lock()
			if m.epoch == epoch {
				m.session = Session{}
			}
			m.mu.Unlock()
		}
		m.reconnect(epoch, "invalid_session")

	case *protocol.Ready:
		m.mu.Lock()
		if m.epoch == epoch {
			m.session.SessionID = p.SessionID
			m.session.ResumeURL = p.ResumeGatewayURL
		}
		m.mu.Unlock()
		m.onEstablished(epoch, "ready", len(p.Guilds))

	case *protocol.Resumed:
		m.onEstablished(epoch, "resumed", 0)
	}

	name := ev.Name
	if name == "" {
		name = ev.Op.String()
	}
	m.metrics.EventReceived(ev.Shard, name)
	m.publish(ev)
}

func (m *manager) onEstablished(epoch uint64, via string, guilds int) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.setState(StateConnected)
	m.mu.Unlock()

	m.backoff.ResetTryCount()
	m.logger.Info("gateway session established", "via", via, "guilds", guilds)
}

// handleClose runs once the socket of epoch has ended.
func (m *manager) handleClose(epoch uint64, err error) {
	code, hasCode := CloseCodeOf(err)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.advanceEpochLocked()
	m.client = nil
	requested := m.reconnectRequested
	m.reconnectRequested = false

	if hasCode && !requested && !code.CanReconnect() {
		m.session = Session{}
		m.setState(StateStopped)
		m.mu.Unlock()

		m.logger.Error("gateway closed with a non-retryable code, connection stopped",
			"code", code.String(),
			"error", err,
		)
		m.closeSubscribers()
		return
	}

	if hasCode && code.InvalidatesSession() {
		m.session = Session{}
	}
	m.reconnects++
	m.setState(StateNoConnection)
	ctx := m.ctx
	m.mu.Unlock()

	m.logger.Warn("gateway connection closed, reconnecting",
		"code", code.String(),
		"requested", requested,
		"error", err,
	)
	m.metrics.Reconnect(m.ShardIndex(), "close")
	go m.autoConnect(ctx)
}

// reconnect drops the socket of epoch and starts a new connect sequence.
func (m *manager) reconnect(epoch uint64, reason string) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.advanceEpochLocked()
	c := m.client
	m.client = nil
	m.reconnects++
	m.setState(StateNoConnection)
	ctx := m.ctx
	m.mu.Unlock()

	m.logger.Warn("reconnecting", "reason", reason)
	m.metrics.Reconnect(m.ShardIndex(), reason)

	// 4000 keeps the session resumable on the server side.
	if c != nil {
		c.Close(int(protocol.CloseUnknownError))
	}
	go m.autoConnect(ctx)
}

func (m *manager) Disconnect() {
	m.mu.Lock()
	m.advanceEpochLocked()
	c := m.client
	m.client = nil
	m.session = Session{}
	m.setState(StateStopped)
	m.mu.Unlock()

	if c != nil {
		c.Close(websocket.CloseNormalClosure)
	}
	m.closeSubscribers()
	m.logger.Info("gateway disconnected")
}

// -----------------------------------------------------------------------------
// Heartbeats
// -----------------------------------------------------------------------------

func (m *manager) heartbeatLoop(epoch uint64, interval time.Duration) {
	ended := m.epochEnded(epoch)

	timer := time.NewTimer(time.Duration(rand.Float64() * float64(interval)))
	defer timer.Stop()

	for {
		select {
		case <-ended:
			return
		case <-timer.C:
		}

		beat, ok := m.beginHeartbeat(epoch)
		if !ok {
			return
		}
		m.sendHeartbeat(epoch)
		time.AfterFunc(m.cfg.HeartbeatGrace, func() {
			m.checkHeartbeatAck(epoch, beat)
		})
		timer.Reset(interval)
	}
}

func (m *manager) beginHeartbeat(epoch uint64) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		return 0, false
	}
	m.beats++
	m.lastBeatAt = time.Now()
	return m.beats, true
}

func (m *manager) sendHeartbeat(epoch uint64) {
	m.mu.Lock()
	var seq *int64
	if m.session.Sequence != nil {
		v := *m.session.Sequence
		seq = &v
	}
	m.mu.Unlock()

	m.send(epoch, protocol.OpHeartbeat, seq)
}

func (m *manager) onHeartbeatAck(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.ackedBeat = m.beats
	m.missed = 0
	var latency time.Duration
	if !m.lastBeatAt.IsZero() {
		latency = time.Since(m.lastBeatAt)
		m.latency = latency
	}
	m.mu.Unlock()

	if latency > 0 {
		m.metrics.HeartbeatLatency(m.ShardIndex(), latency)
	}
}

func (m *manager) checkHeartbeatAck(epoch, beat uint64) {
	m.mu.Lock()
	if m.epoch != epoch || m.ackedBeat >= beat {
		m.mu.Unlock()
		return
	}
	m.missed++
	missed := m.missed
	m.mu.Unlock()

	m.logger.Warn("heartbeat not acknowledged", "missed", missed)
	if missed >= m.cfg.MaxMissedHeartbeats {
		m.reconnect(epoch, "heartbeat_timeout")
	}
}

// -----------------------------------------------------------------------------
// Outbound
// -----------------------------------------------------------------------------

func (m *manager) identifyOrResume(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}

	if m.session.SessionID != "" && m.session.Sequence != nil {
		resume := protocol.Resume{
			Token:     m.cfg.Token.Secret(),
			SessionID: m.session.SessionID,
			Sequence:  *m.session.Sequence,
		}
		// A second failure before READY or RESUMED must not resume from
		// this cursor again.
		m.session.Sequence = nil
		m.mu.Unlock()

		m.logger.Info("resuming session", "session_id", resume.SessionID, "seq", resume.Sequence)
		m.send(epoch, protocol.OpResume, resume)
		return
	}
	m.mu.Unlock()

	m.backoff.WillTry()
	m.logger.Info("identifying", "intents", m.cfg.Intents.Uint64(), "token", m.cfg.Token.Redacted())
	m.send(epoch, protocol.OpIdentify, protocol.Identify{
		Token:          m.cfg.Token.Secret(),
		Properties:     m.cfg.Properties,
		Compress:       false,
		LargeThreshold: m.cfg.LargeThreshold,
		Shard:          m.cfg.Shard,
		Presence:       m.cfg.Presence,
		Intents:        m.cfg.Intents,
	})
}

func (m *manager) UpdatePresence(p protocol.PresenceUpdateSend) {
	m.send(0, protocol.OpPresenceUpdate, p)
}

func (m *manager) UpdateVoiceState(v protocol.VoiceStateUpdateSend) {
	m.send(0, protocol.OpVoiceStateUpdate, v)
}

func (m *manager) RequestGuildMembers(r protocol.RequestGuildMembers) {
	m.send(0, protocol.OpRequestGuildMembers, r)
}

// send queues a control frame. A non-zero epoch drops the frame once that
// socket has been replaced.
func (m *manager) send(epoch uint64, op protocol.Opcode, d any) {
	data, err := protocol.Encode(op, d)
	if err != nil {
		m.logger.Error("dropping outbound frame", "op", op.String(), "error", err)
		return
	}

	m.queue.Perform(func() {
		m.mu.Lock()
		if epoch != 0 && epoch != m.epoch {
			m.mu.Unlock()
			m.logger.Debug("dropping frame for a replaced socket", "op", op.String())
			return
		}
		c := m.client
		m.mu.Unlock()

		if c == nil || !c.IsConnected() {
			m.logger.Debug("no socket attached, dropping frame", "op", op.String())
			return
		}
		if err := c.Send(data); err != nil {
			m.logger.Warn("send failed", "op", op.String(), "error", err)
			return
		}
		m.metrics.FrameSent(m.ShardIndex(), op.String())
	})
}

// -----------------------------------------------------------------------------
// Subscribers
// -----------------------------------------------------------------------------

func (m *manager) Subscribe() *router.Stream[protocol.Event] {
	s := router.NewStream[protocol.Event](m.cfg.StreamBufferSize)

	m.subsMu.Lock()
	m.subscribers = append(m.subscribers, s)
	m.subsMu.Unlock()
	return s
}

func (m *manager) SubscribeDecodeErrors() *router.Stream[DecodeError] {
	s := router.NewStream[DecodeError](16)

	m.subsMu.Lock()
	m.errSubscribers = append(m.errSubscribers, s)
	m.subsMu.Unlock()
	return s
}

func (m *manager) publish(ev protocol.Event) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for _, s := range m.subscribers {
		s.Send(ev)
	}
}

func (m *manager) reportDecodeError(raw []byte, err error) {
	m.metrics.DecodeError(m.ShardIndex())
	m.logger.Debug("frame decode failed", "error", err, "bytes", len(raw))

	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for _, s := range m.errSubscribers {
		s.Send(DecodeError{Raw: raw, Err: err, Shard: m.ShardIndex()})
	}
}

func (m *manager) closeSubscribers() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for _, s := range m.subscribers {
		s.Close()
	}
	for _, s := range m.errSubscribers {
		s.Close()
	}
	m.subscribers = nil
	m.errSubscribers = nil
}
