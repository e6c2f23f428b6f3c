package shard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/gateway-cache/internal/api"
	"github.com/rickgao/gateway-cache/internal/auth"
	"github.com/rickgao/gateway-cache/internal/connection"
	"github.com/rickgao/gateway-cache/internal/metrics"
	"github.com/rickgao/gateway-cache/internal/model"
	"github.com/rickgao/gateway-cache/internal/protocol"
	"github.com/rickgao/gateway-cache/internal/router"
)

// Errors
var (
	ErrAlreadyStarted  = errors.New("shard set already started")
	ErrNotStarted      = errors.New("shard set not started")
	ErrShardNotManaged = errors.New("shard not managed by this process")
	ErrInvalidShard    = errors.New("invalid shard index")
)

// Discovery resolves the gateway URL and the bot's sharding information.
type Discovery interface {
	connection.GatewayResolver
	GetGatewayBot(ctx context.Context) (*api.GatewayBot, error)
}

// Config configures a Set.
type Config struct {
	Token            auth.Token
	ShardCount       int           // 0 = recommended count from discovery
	Shards           []int         // indices run by this process, empty = all
	MaxConcurrency   int           // 0 = from the session start limit
	Intents          model.Intents // empty = unprivileged intents
	InfoRetry        time.Duration // Default: 10s
	BucketSpacing    time.Duration // Default: 5s
	StreamBufferSize int           // Default: 1024

	// Manager is the template for every shard's connection.
	Manager connection.ManagerConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		InfoRetry:        10 * time.Second,
		BucketSpacing:    DefaultBucketSpacing,
		StreamBufferSize: 1024,
		Manager:          connection.DefaultManagerConfig(),
	}
}

// Set owns one Manager per shard and merges their streams.
type Set struct {
	cfg         Config
	discovery   Discovery
	coordinator *Coordinator
	logger      *slog.Logger
	opts        []connection.Option

	events       *router.Stream[protocol.Event]
	decodeErrors *router.Stream[connection.DecodeError]

	mu             sync.RWMutex
	started        bool
	shardCount     int
	maxConcurrency int
	managers       map[int]connection.Manager
	order          []int
}

// NewSet creates a Set. Nothing connects until Start.
func NewSet(cfg Config, discovery Discovery, m *metrics.Metrics, logger *slog.Logger, opts ...connection.Option) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if cfg.InfoRetry <= 0 {
		cfg.InfoRetry = d.InfoRetry
	}
	if cfg.StreamBufferSize <= 0 {
		cfg.StreamBufferSize = d.StreamBufferSize
	}

	return &Set{
		cfg:          cfg,
		discovery:    discovery,
		coordinator:  NewCoordinator(cfg.BucketSpacing, logger),
		logger:       logger,
		opts:         append([]connection.Option{connection.WithMetrics(m)}, opts...),
		events:       router.NewStream[protocol.Event](cfg.StreamBufferSize),
		decodeErrors: router.NewStream[connection.DecodeError](16),
	}
}

// Start resolves the topology, creates the Managers and connects them
// concurrently, each gated by the shared Coordinator. It returns once every
// shard has an open socket or one of them failed.
func (s *Set) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	count, maxConcurrency, err := s.resolveTopology(ctx)
	if err != nil {
		return err
	}

	shards := s.cfg.Shards
	if len(shards) == 0 {
		shards = make([]int, count)
		for i := range shards {
			shards[i] = i
		}
	}
	shards = slices.Clone(shards)
	slices.Sort(shards)
	shards = slices.Compact(shards)
	for _, idx := range shards {
		if idx < 0 || idx >= count {
			return fmt.Errorf("shard %d of %d: %w", idx, count, ErrInvalidShard)
		}
	}

	intents := s.cfg.Intents
	if intents.IsEmpty() {
		intents = model.UnprivilegedIntents()
	}

	s.coordinator.Expect(shards, maxConcurrency)

	managers := make(map[int]connection.Manager, len(shards))
	events := make([]<-chan protocol.Event, 0, len(shards))
	decodeErrors := make([]<-chan connection.DecodeError, 0, len(shards))
	for _, idx := range shards {
		mcfg := s.cfg.Manager
		mcfg.Token = s.cfg.Token
		mcfg.Shard = &protocol.ShardInfo{Index: idx, Count: count}
		mcfg.MaxConcurrency = maxConcurrency
		mcfg.Intents = intents

		m := connection.NewManager(mcfg, s.discovery, s.coordinator, s.logger, s.opts...)
		managers[idx] = m
		events = append(events, m.Subscribe().C())
		decodeErrors = append(decodeErrors, m.SubscribeDecodeErrors().C())
	}

	s.mu.Lock()
	s.shardCount = count
	s.maxConcurrency = maxConcurrency
	s.managers = managers
	s.order = shards
	s.mu.Unlock()

	go pipe(router.Merge(s.cfg.StreamBufferSize, events...), s.events)
	go pipe(router.Merge(16, decodeErrors...), s.decodeErrors)

	s.logger.Info("starting shards",
		"shard_count", count,
		"running", len(shards),
		"max_concurrency", maxConcurrency,
		"intents", intents.Uint64(),
	)

	// Managers keep ctx for background reconnects, so it must not be an
	// errgroup context that ends with Wait.
	var g errgroup.Group
	for _, idx := range shards {
		m := managers[idx]
		g.Go(func() error {
			if err := m.Connect(ctx); err != nil {
				return fmt.Errorf("shard %d: %w", idx, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func pipe[T any](from, to *router.Stream[T]) {
	for item := range from.C() {
		to.Send(item)
	}
	to.Close()
}

// resolveTopology returns the shard count and identify concurrency, asking
// discovery until it answers when either is not configured.
func (s *Set) resolveTopology(ctx context.Context) (int, int, error) {
	count, maxConcurrency := s.cfg.ShardCount, s.cfg.MaxConcurrency
	if count > 0 && maxConcurrency > 0 {
		return count, maxConcurrency, nil
	}

	for {
		bot, err := s.discovery.GetGatewayBot(ctx)
		if err == nil {
			if count <= 0 {
				count = max(bot.Shards, 1)
			}
			if maxConcurrency <= 0 {
				maxConcurrency = max(bot.SessionStartLimit.MaxConcurrency, 1)
			}
			s.logger.Info("gateway bot info",
				"recommended_shards", bot.Shards,
				"max_concurrency", bot.SessionStartLimit.MaxConcurrency,
				"sessions_remaining", bot.SessionStartLimit.Remaining,
			)
			return count, maxConcurrency, nil
		}

		s.logger.Warn("fetch gateway bot info failed, retrying",
			"error", err,
			"retry_in", s.cfg.InfoRetry,
		)
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-time.After(s.cfg.InfoRetry):
		}
	}
}

// Events returns every shard's events. Events of one shard keep their order.
// The channel closes after Stop.
func (s *Set) Events() <-chan protocol.Event {
	return s.events.C()
}

// DecodeErrors returns frames any shard failed to decode.
func (s *Set) DecodeErrors() <-chan connection.DecodeError {
	return s.decodeErrors.C()
}

// ShardCount returns the total shard count, 0 before Start resolved it.
func (s *Set) ShardCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shardCount
}

// ShardFor returns the shard that receives events of guildID.
func (s *Set) ShardFor(guildID model.Snowflake) int {
	return model.ShardFor(guildID, max(s.ShardCount(), 1))
}

// Manager returns the Manager of shard idx.
func (s *Set) Manager(idx int) (connection.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.managers == nil {
		return nil, ErrNotStarted
	}
	m, ok := s.managers[idx]
	if !ok {
		return nil, fmt.Errorf("shard %d: %w", idx, ErrShardNotManaged)
	}
	return m, nil
}

// RequestGuildMembers sends op 8 on the shard owning the guild.
func (s *Set) RequestGuildMembers(req protocol.RequestGuildMembers) error {
	m, err := s.Manager(s.ShardFor(req.GuildID))
	if err != nil {
		return fmt.Errorf("request guild members %s: %w", req.GuildID, err)
	}
	m.RequestGuildMembers(req)
	return nil
}

// UpdateVoiceState sends op 4 on the shard owning the guild.
func (s *Set) UpdateVoiceState(v protocol.VoiceStateUpdateSend) error {
	m, err := s.Manager(s.ShardFor(v.GuildID))
	if err != nil {
		return fmt.Errorf("update voice state %s: %w", v.GuildID, err)
	}
	m.UpdateVoiceState(v)
	return nil
}

// UpdatePresence sends op 3 on every shard.
func (s *Set) UpdatePresence(p protocol.PresenceUpdateSend) {
	for _, m := range s.managerList() {
		m.UpdatePresence(p)
	}
}

// Stop disconnects every shard and closes the merged streams.
func (s *Set) Stop() {
	managers := s.managerList()
	for _, m := range managers {
		m.Disconnect()
	}
	if len(managers) == 0 {
		s.events.Close()
		s.decodeErrors.Close()
	}
	s.logger.Info("shards stopped", "count", len(managers))
}

// Stats returns one entry per running shard, ordered by index.
func (s *Set) Stats() []connection.ManagerStats {
	managers := s.managerList()
	stats := make([]connection.ManagerStats, 0, len(managers))
	for _, m := range managers {
		stats = append(stats, m.Stats())
	}
	return stats
}

// Coordinator returns the shared bucket gate.
func (s *Set) Coordinator() *Coordinator {
	return s.coordinator
}

func (s *Set) managerList() []connection.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]connection.Manager, 0, len(s.order))
	for _, idx := range s.order {
		out = append(out, s.managers[idx])
	}
	return out
}
