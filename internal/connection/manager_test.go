package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/gateway-cache/internal/auth"
	"github.com/rickgao/gateway-cache/internal/compress"
	"github.com/rickgao/gateway-cache/internal/model"
	"github.com/rickgao/gateway-cache/internal/protocol"
)

// fakeClient records frames instead of writing them to a socket.
type fakeClient struct {
	mu        sync.Mutex
	sent      [][]byte
	closed    bool
	closeCode int
	messages  chan TimestampedMessage
	err       error
}

func newFakeClient(frames ...string) *fakeClient {
	fc := &fakeClient{messages: make(chan TimestampedMessage, len(frames))}
	for _, f := range frames {
		fc.messages <- TimestampedMessage{Data: []byte(f), ReceivedAt: time.Now()}
	}
	return fc
}

func (f *fakeClient) Connect(ctx context.Context) error { return nil }

func (f *fakeClient) Close(code int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.closeCode = code
	}
	return nil
}

func (f *fakeClient) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeClient) Messages() <-chan TimestampedMessage { return f.messages }

func (f *fakeClient) Err() error { return f.err }

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeClient) ops() []protocol.Opcode {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ops []protocol.Opcode
	for _, data := range f.sent {
		var frame struct {
			Op protocol.Opcode `json:"op"`
		}
		json.Unmarshal(data, &frame)
		ops = append(ops, frame.Op)
	}
	return ops
}

func (f *fakeClient) lastFrame(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sent) == 0 {
		t.Fatal("no frames sent")
	}
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(f.sent[len(f.sent)-1], &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return frame
}

func (f *fakeClient) closedWith() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode
}

var errOffline = errors.New("discovery offline")

func offlineResolver() GatewayResolver {
	return GatewayResolverFunc(func(ctx context.Context) (string, error) {
		return "", errOffline
	})
}

func testManagerConfig() ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.Token = auth.Token("MTIzNDU2Nzg5.abc.def")
	cfg.Compression = compress.ModeNone
	cfg.SendInterval = time.Millisecond
	cfg.HeartbeatGrace = 20 * time.Millisecond
	cfg.DiscoveryRetry = 10 * time.Millisecond
	cfg.Backoff = BackoffConfig{
		Base:        2,
		MaxExponent: 3,
		Coefficient: 5 * time.Millisecond,
		MinBackoff:  10 * time.Millisecond,
	}
	return cfg
}

// attach installs fc as the live socket of a fresh epoch. Background
// reconnects started by the test run against a cancelled context.
func attach(m *manager, fc *fakeClient) uint64 {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = ctx
	m.client = fc
	m.setState(StateConfigured)
	return m.advanceEpochLocked()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestManager_DefaultsAndIdentity(t *testing.T) {
	cfg := testManagerConfig()
	cfg.Shard = &protocol.ShardInfo{Index: 3, Count: 8}
	m := newManager(cfg, offlineResolver(), nil, nil)

	if m.ShardIndex() != 3 {
		t.Errorf("ShardIndex() = %d, want 3", m.ShardIndex())
	}
	if m.ID() == "" {
		t.Error("expected a connection id")
	}
	if m.State() != StateNoConnection {
		t.Errorf("State() = %v, want %v", m.State(), StateNoConnection)
	}
	if m.cfg.Properties.OS == "" || m.cfg.Properties.Browser == "" {
		t.Errorf("identify properties not filled: %+v", m.cfg.Properties)
	}
	if ua := m.cfg.Client.Header.Get("User-Agent"); !strings.HasPrefix(ua, "DiscordBot (") {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestManager_GatewayURL(t *testing.T) {
	tests := []struct {
		name string
		mode compress.Mode
		base string
		want url.Values
	}{
		{
			name: "zlib",
			mode: compress.ModeZlibStream,
			base: "wss://gateway.discord.gg",
			want: url.Values{"v": {"10"}, "encoding": {"json"}, "compress": {"zlib-stream"}},
		},
		{
			name: "zstd",
			mode: compress.ModeZstdStream,
			base: "wss://gateway.discord.gg/?v=9",
			want: url.Values{"v": {"10"}, "encoding": {"json"}, "compress": {"zstd-stream"}},
		},
		{
			name: "uncompressed resume url",
			mode: compress.ModeNone,
			base: "wss://gateway-us-east1-b.discord.gg?compress=zlib-stream",
			want: url.Values{"v": {"10"}, "encoding": {"json"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testManagerConfig()
			cfg.Compression = tt.mode
			m := newManager(cfg, offlineResolver(), nil, nil)

			got, err := m.gatewayURL(tt.base)
			if err != nil {
				t.Fatalf("gatewayURL: %v", err)
			}
			u, _ := url.Parse(got)
			if q := u.Query(); q.Encode() != tt.want.Encode() {
				t.Errorf("query = %q, want %q", q.Encode(), tt.want.Encode())
			}
		})
	}
}

func TestManager_ConnectRejectedWhileConnecting(t *testing.T) {
	m := newManager(testManagerConfig(), offlineResolver(), nil, nil)
	m.setState(StateConnecting)

	if err := m.Connect(context.Background()); !errors.Is(err, ErrConnectRejected) {
		t.Errorf("Connect() = %v, want ErrConnectRejected", err)
	}
}

func TestManager_DiscoveryRetriesUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	resolver := GatewayResolverFunc(func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", errOffline
	})
	m := newManager(testManagerConfig(), resolver, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := m.Connect(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() = %v, want deadline exceeded", err)
	}
	if calls.Load() < 2 {
		t.Errorf("resolver called %d times, want retries", calls.Load())
	}
	if m.State() != StateNoConnection {
		t.Errorf("State() = %v, want %v", m.State(), StateNoConnection)
	}
}

func TestManager_StaleEpochFramesDiscarded(t *testing.T) {
	m := newManager(testManagerConfig(), offlineResolver(), nil, nil)
	events := m.Subscribe()

	fc := newFakeClient(`{"op":0,"s":5,"t":"GUILD_DELETE","d":{"id":"9","unavailable":true}}`)
	close(fc.messages)

	stale := attach(m, fc)
	current := attach(m, newFakeClient())

	m.readLoop(stale, fc, nil)

	if s := m.Session(); s.Sequence != nil {
		t.Errorf("Sequence = %d, want nil", *s.Sequence)
	}
	if got := m.Stats().Epoch; got != current {
		t.Errorf("Epoch = %d, want %d", got, current)
	}
	select {
	case ev := <-events.C():
		t.Errorf("unexpected event %s", ev.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_ReadLoopPublishesAndTracksSequence(t *testing.T) {
	m := newManager(testManagerConfig(), offlineResolver(), nil, nil)
	events := m.Subscribe()
	decodeErrs := m.SubscribeDecodeErrors()

	fc := newFakeClient(
		`{"op":0,"s":5,"t":"GUILD_DELETE","d":{"id":"9","unavailable":true}}`,
		`{"op":0,"s":6,"t":"SOME_FUTURE_EVENT","d":{}}`,
		`{"op":42}`,
	)
	close(fc.messages)
	epoch := attach(m, fc)

	m.readLoop(epoch, fc, nil)

	select {
	case ev := <-events.C():
		if ev.Name != "GUILD_DELETE" {
			t.Errorf("event = %s, want GUILD_DELETE", ev.Name)
		}
		if _, ok := ev.Payload.(*protocol.GuildDelete); !ok {
			t.Errorf("payload = %T, want *protocol.GuildDelete", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	var unhandled *protocol.UnhandledDispatchError
	select {
	case de := <-decodeErrs.C():
		if !errors.As(de, &unhandled) || unhandled.Name != "SOME_FUTURE_EVENT" {
			t.Errorf("decode error = %v, want unhandled SOME_FUTURE_EVENT", de)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for decode error")
	}
	select {
	case de := <-decodeErrs.C():
		if !errors.Is(de, protocol.ErrMalformedFrame) {
			t.Errorf("decode error = %v, want ErrMalformedFrame", de)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for decode error")
	}

	s := m.Session()
	if s.Sequence == nil || *s.Sequence != 6 {
		t.Errorf("Sequence = %v, want 6", s.Sequence)
	}
}

func TestManager_SendDropsStaleEpoch(t *testing.T) {
	m := newManager(testManagerConfig(), offlineResolver(), nil, nil)
	fc := newFakeClient()
	epoch := attach(m, fc)

	m.send(epoch+1, protocol.OpHeartbeat, nil)
	m.send(epoch, protocol.OpHeartbeat, nil)
	m.UpdatePresence(protocol.PresenceUpdateSend{Status: "idle"})

	waitFor(t, "two frames", func() bool { return len(fc.ops()) == 2 })
	time.Sleep(20 * time.Millisecond)

	ops := fc.ops()
	want := []protocol.Opcode{protocol.OpHeartbeat, protocol.OpPresenceUpdate}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("ops[%d] = %v, want %v", i, ops[i], want[i])
		}
	}
}

func TestManager_IdentifyThenResume(t *testing.T) {
	cfg := testManagerConfig()
	cfg.Intents = model.NewBitField(model.IntentGuilds, model.IntentGuildMessages)
	cfg.Shard = &protocol.ShardInfo{Index: 1, Count: 2}
	m := newManager(cfg, offlineResolver(), nil, nil)

	fc := newFakeClient()
	epoch := attach(m, fc)
	m.identifyOrResume(epoch)

	waitFor(t, "identify", func() bool { return len(fc.ops()) == 1 })
	if op := fc.ops()[0]; op != protocol.OpIdentify {
		t.Fatalf("op = %v, want identify", op)
	}
	var identify struct {
		Token   string `json:"token"`
		Intents uint64 `json:"intents"`
		Shard   [2]int `json:"shard"`
	}
	json.Unmarshal(fc.lastFrame(t)["d"], &identify)
	if identify.Token != "MTIzNDU2Nzg5.abc.def" {
		t.Errorf("token = %q", identify.Token)
	}
	if identify.Intents != cfg.Intents.Uint64() {
		t.Errorf("intents = %d, want %d", identify.Intents, cfg.Intents.Uint64())
	}
	if identify.Shard != [2]int{1, 2} {
		t.Errorf("shard = %v, want [1 2]", identify.Shard)
	}

	seq := int64(42)
	m.mu.Lock()
	m.session = Session{SessionID: "sess", Sequence: &seq, ResumeURL: "wss://resume.example"}
	m.mu.Unlock()

	fc2 := newFakeClient()
	epoch = attach(m, fc2)
	m.identifyOrResume(epoch)

	waitFor(t, "resume", func() bool { return len(fc2.ops()) == 1 })
	if op := fc2.ops()[0]; op != protocol.OpResume {
		t.Fatalf("op = %v, want resume", op)
	}
	var resume protocol.Resume
	json.Unmarshal(fc2.lastFrame(t)["d"], &resume)
	if resume.SessionID != "sess" || resume.Sequence != 42 {
		t.Errorf("resume = %+v, want session sess seq 42", resume)
	}
	if s := m.Session(); s.Sequence != nil || s.SessionID != "sess" {
		t.Errorf("session after resume = %+v, want sequence cleared", s)
	}
}

func TestManager_HeartbeatCarriesSequence(t *testing.T) {
	m := newManager(testManagerConfig(), offlineResolver(), nil, nil)
	fc := newFakeClient()
	epoch := attach(m, fc)

	m.sendHeartbeat(epoch)
	waitFor(t, "first heartbeat", func() bool { return len(fc.ops()) == 1 })
	if d := string(fc.lastFrame(t)["d"]); d != "null" {
		t.Errorf("d = %s, want null", d)
	}

	m.updateSequence(epoch, 17)
	m.handleEvent(epoch, protocol.Event{Op: protocol.OpHeartbeat, Payload: &protocol.HeartbeatRequest{}})
	waitFor(t, "second heartbeat", func() bool { return len(fc.ops()) == 2 })
	if d := string(fc.lastFrame(t)["d"]); d != "17" {
		t.Errorf("d = %s, want 17", d)
	}
}

func TestManager_HeartbeatAckResetsMissed(t *testing.T) {
	m := newManager(testManagerConfig(), offlineResolver(), nil, nil)
	fc := newFakeClient()
	epoch := attach(m, fc)

	beat, ok := m.beginHeartbeat(epoch)
	if !ok {
		t.Fatal("beginHeartbeat rejected current epoch")
	}
	m.onHeartbeatAck(epoch)
	m.checkHeartbeatAck(epoch, beat)

	stats := m.Stats()
	if stats.MissedHeartbeats != 0 {
		t.Errorf("MissedHeartbeats = %d, want 0", stats.MissedHeartbeats)
	}
	if closed, _ := fc.closedWith(); closed {
		t.Error("socket closed after an acknowledged heartbeat")
	}
}

func TestManager_MissedHeartbeatsReconnect(t *testing.T) {
	cfg := testManagerConfig()
	cfg.MaxMissedHeartbeats = 2
	m := newManager(cfg, offlineResolver(), nil, nil)
	fc := newFakeClient()
	epoch := attach(m, fc)

	beat, _ := m.beginHeartbeat(epoch)
	m.checkHeartbeatAck(epoch, beat)
	if closed, _ := fc.closedWith(); closed {
		t.Fatal("socket closed after one missed heartbeat")
	}

	beat, _ = m.beginHeartbeat(epoch)
	m.checkHeartbeatAck(epoch, beat)

	closed, code := fc.closedWith()
	if !closed || code != int(protocol.CloseUnknownError) {
		t.Errorf("closed = %v code = %d, want closed with 4000", closed, code)
	}
	if stats := m.Stats(); stats.Epoch == epoch || stats.Reconnects != 1 {
		t.Errorf("stats = %+v, want new epoch and one reconnect", stats)
	}
	if _, ok := m.beginHeartbeat(epoch); ok {
		t.Error("old epoch still accepted heartbeats")
	}
}

func TestManager_InvalidSession(t *testing.T) {
	tests := []struct {
		canResume   bool
		wantSession bool
	}{
		{canResume: false, wantSession: false},
		{canResume: true, wantSession: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("resumable=%v", tt.canResume), func(t *testing.T) {
			m := newManager(testManagerConfig(), offlineResolver(), nil, nil)
			fc := newFakeClient()
			epoch := attach(m, fc)

			seq := int64(3)
			m.mu.Lock()
			m.session = Session{SessionID: "sess", Sequence: &seq}
			m.mu.Unlock()

			m.handleEvent(epoch, protocol.Event{
				Op:      protocol.OpInvalidSession,
				Payload: &protocol.InvalidSession{CanResume: tt.canResume},
			})

			if got := m.Session().SessionID != ""; got != tt.wantSession {
				t.Errorf("has session = %v, want %v", got, tt.wantSession)
			}
			if closed, _ := fc.closedWith(); !closed {
				t.Error("expected socket to be replaced")
			}
		})
	}
}

func TestManager_CloseClassification(t *testing.T) {
	closeErr := func(code protocol.CloseCode) error {
		return &websocket.CloseError{Code: int(code)}
	}

	tests := []struct {
		name        string
		err         error
		requested   bool
		wantStopped bool
		wantSession bool
	}{
		{"network drop", errors.New("read: connection reset"), false, false, true},
		{"unknown error", closeErr(protocol.CloseUnknownError), false, false, true},
		{"rate limited", closeErr(protocol.CloseRateLimited), false, false, true},
		{"invalid seq", closeErr(protocol.CloseInvalidSequence), false, false, false},
		{"session timed out", closeErr(protocol.CloseSessionTimedOut), false, false, false},
		{"authentication failed", closeErr(protocol.CloseAuthenticationFailed), false, true, false},
		{"disallowed intents", closeErr(protocol.CloseDisallowedIntents), false, true, false},
		{"requested reconnect", closeErr(protocol.CloseAuthenticationFailed), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(testManagerConfig(), offlineResolver(), nil, nil)
			events := m.Subscribe()
			epoch := attach(m, newFakeClient())

			seq := int64(9)
			m.mu.Lock()
			m.session = Session{SessionID: "sess", Sequence: &seq}
			m.reconnectRequested = tt.requested
			m.mu.Unlock()

			m.handleClose(epoch, tt.err)

			if stopped := m.State() == StateStopped; stopped != tt.wantStopped {
				t.Errorf("stopped = %v, want %v", stopped, tt.wantStopped)
			}
			if got := m.Session().SessionID != ""; got != tt.wantSession {
				t.Errorf("has session = %v, want %v", got, tt.wantSession)
			}
			if tt.wantStopped {
				select {
				case _, ok := <-events.C():
					if ok {
						t.Error("expected event stream to be closed")
					}
				case <-time.After(time.Second):
					t.Error("event stream not closed")
				}
			} else if m.Stats().Reconnects != 1 {
				t.Errorf("Reconnects = %d, want 1", m.Stats().Reconnects)
			}

			// A second close for the same socket is ignored.
			before := m.Stats().Epoch
			m.handleClose(epoch, tt.err)
			if after := m.Stats().Epoch; after != before {
				t.Errorf("stale close advanced epoch %d -> %d", before, after)
			}
		})
	}
}

func TestManager_Disconnect(t *testing.T) {
	m := newManager(testManagerConfig(), offlineResolver(), nil, nil)
	events := m.Subscribe()
	fc := newFakeClient()
	attach(m, fc)

	m.Disconnect()

	if m.State() != StateStopped {
		t.Errorf("State() = %v, want %v", m.State(), StateStopped)
	}
	if closed, code := fc.closedWith(); !closed || code != websocket.CloseNormalClosure {
		t.Errorf("closed = %v code = %d, want 1000", closed, code)
	}
	if _, ok := <-events.C(); ok {
		t.Error("expected event stream to be closed")
	}
}

// gatewayFrame is what the test gateway reads from the client.
type gatewayFrame struct {
	Op protocol.Opcode `json:"op"`
	D  json.RawMessage `json:"d"`
}

func readFrame(conn *websocket.Conn) (gatewayFrame, error) {
	var f gatewayFrame
	_, data, err := conn.ReadMessage()
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(data, &f)
	return f, err
}

func writeText(conn *websocket.Conn, s string) error {
	return conn.WriteMessage(websocket.TextMessage, []byte(s))
}

const helloFrame = `{"op":10,"d":{"heartbeat_interval":45000}}`

func readyFrame(resumeURL string) string {
	return fmt.Sprintf(`{"op":0,"s":1,"t":"READY","d":{"v":10,"user":{"id":"1","username":"bot"},`+
		`"guilds":[{"id":"2","unavailable":true}],"session_id":"sess","resume_gateway_url":%q}}`, resumeURL)
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestManager_IntegrationIdentifyReady(t *testing.T) {
	identified := make(chan gatewayFrame, 1)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		writeText(conn, helloFrame)
		f, err := readFrame(conn)
		if err != nil {
			return
		}
		identified <- f
		writeText(conn, readyFrame("ws://unused.example"))
		drain(conn)
	})
	defer server.Close()

	resolver := GatewayResolverFunc(func(ctx context.Context) (string, error) {
		return wsURL(server), nil
	})
	m := newManager(testManagerConfig(), resolver, nil, nil)
	events := m.Subscribe()
	defer m.Disconnect()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case f := <-identified:
		if f.Op != protocol.OpIdentify {
			t.Errorf("first frame op = %v, want identify", f.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for identify")
	}

	for {
		select {
		case ev := <-events.C():
			if ev.Name != "READY" {
				continue
			}
			ready := ev.Payload.(*protocol.Ready)
			if ready.SessionID != "sess" || len(ready.Guilds) != 1 {
				t.Errorf("ready = %+v", ready)
			}
			if m.State() != StateConnected {
				t.Errorf("State() = %v, want %v", m.State(), StateConnected)
			}
			s := m.Session()
			if s.SessionID != "sess" || s.Sequence == nil || *s.Sequence != 1 {
				t.Errorf("session = %+v", s)
			}
			return
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for READY")
		}
	}
}

func TestManager_IntegrationResumeAfterClose(t *testing.T) {
	var conns atomic.Int32
	resumed := make(chan protocol.Resume, 1)
	var server string

	srv := mockWSServer(t, func(conn *websocket.Conn) {
		n := conns.Add(1)
		writeText(conn, helloFrame)
		f, err := readFrame(conn)
		if err != nil {
			return
		}

		if n == 1 {
			writeText(conn, readyFrame(server))
			time.Sleep(20 * time.Millisecond)
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(int(protocol.CloseUnknownError), ""),
				time.Now().Add(time.Second),
			)
			time.Sleep(100 * time.Millisecond)
			return
		}

		if f.Op == protocol.OpResume {
			var r protocol.Resume
			json.Unmarshal(f.D, &r)
			resumed <- r
			writeText(conn, `{"op":0,"s":2,"t":"RESUMED","d":{}}`)
		}
		drain(conn)
	})
	defer srv.Close()
	server = wsURL(srv)

	var discoveries atomic.Int32
	resolver := GatewayResolverFunc(func(ctx context.Context) (string, error) {
		discoveries.Add(1)
		return server, nil
	})
	m := newManager(testManagerConfig(), resolver, nil, nil)
	defer m.Disconnect()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case r := <-resumed:
		if r.SessionID != "sess" || r.Sequence != 1 {
			t.Errorf("resume = %+v, want session sess seq 1", r)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for resume")
	}

	waitFor(t, "resumed state", func() bool { return m.State() == StateConnected })
	if n := discoveries.Load(); n != 1 {
		t.Errorf("discovery called %d times, want 1", n)
	}
}

func TestManager_IntegrationFatalClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		writeText(conn, helloFrame)
		if _, err := readFrame(conn); err != nil {
			return
		}
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(int(protocol.CloseAuthenticationFailed), "bad token"),
			time.Now().Add(time.Second),
		)
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	resolver := GatewayResolverFunc(func(ctx context.Context) (string, error) {
		return wsURL(server), nil
	})
	m := newManager(testManagerConfig(), resolver, nil, nil)
	events := m.Subscribe()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitFor(t, "stopped state", func() bool { return m.State() == StateStopped })
	for range events.C() {
	}
	if m.Stats().Reconnects != 0 {
		t.Errorf("Reconnects = %d, want 0", m.Stats().Reconnects)
	}
}

func TestManager_IntegrationReconnectRequestOverridesFatalClose(t *testing.T) {
	var conns atomic.Int32
	second := make(chan protocol.Opcode, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		n := conns.Add(1)
		writeText(conn, helloFrame)
		f, err := readFrame(conn)
		if err != nil {
			return
		}

		if n == 1 {
			writeText(conn, readyFrame("ws://unused.example"))
			writeText(conn, `{"op":7,"d":null}`)
			time.Sleep(20 * time.Millisecond)
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(int(protocol.CloseAuthenticationFailed), ""),
				time.Now().Add(time.Second),
			)
			time.Sleep(100 * time.Millisecond)
			return
		}

		select {
		case second <- f.Op:
		default:
		}
		drain(conn)
	})
	defer server.Close()

	resolver := GatewayResolverFunc(func(ctx context.Context) (string, error) {
		return wsURL(server), nil
	})
	m := newManager(testManagerConfig(), resolver, nil, nil)
	defer m.Disconnect()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case op := <-second:
		if op != protocol.OpIdentify && op != protocol.OpResume {
			t.Errorf("first frame on new socket = %v, want identify or resume", op)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no reconnect after requested reconnect, state = %v", m.State())
	}

	if m.State() == StateStopped {
		t.Error("manager stopped on a close that followed a reconnect request")
	}
	if m.Stats().Reconnects < 1 {
		t.Errorf("Reconnects = %d, want >= 1", m.Stats().Reconnects)
	}
}
