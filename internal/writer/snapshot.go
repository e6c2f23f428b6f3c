package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/gateway-cache/internal/cache"
	"github.com/rickgao/gateway-cache/internal/metrics"
)

// ErrNoSnapshot is returned by LoadSnapshot when no row exists for the key.
var ErrNoSnapshot = errors.New("no snapshot stored")

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS cache_snapshots (
		key      TEXT PRIMARY KEY,
		data     JSONB NOT NULL,
		size     INTEGER NOT NULL,
		taken_at TIMESTAMPTZ NOT NULL
	)
`

const upsertSQL = `
	INSERT INTO cache_snapshots (key, data, size, taken_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (key) DO UPDATE
	SET data = EXCLUDED.data, size = EXCLUDED.size, taken_at = EXCLUDED.taken_at
`

const selectSQL = `SELECT data FROM cache_snapshots WHERE key = $1`

// DB is the part of pgxpool.Pool the writer uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Source produces the serialized snapshot. *cache.Cache implements it.
type Source interface {
	MarshalSnapshot() ([]byte, error)
}

// SnapshotConfig holds configuration for a SnapshotWriter.
type SnapshotConfig struct {
	Key          string        // Row key, usually the instance id
	Interval     time.Duration // Default: 1m
	WriteTimeout time.Duration // Default: 30s
}

// DefaultSnapshotConfig returns sensible defaults.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Key:          "default",
		Interval:     time.Minute,
		WriteTimeout: 30 * time.Second,
	}
}

// SnapshotStats contains runtime statistics.
type SnapshotStats struct {
	Writes    int64
	Errors    int64
	LastSize  int
	LastWrite time.Time
}

// SnapshotWriter periodically persists a cache snapshot.
type SnapshotWriter struct {
	cfg     SnapshotConfig
	logger  *slog.Logger
	source  Source
	db      DB
	metrics *metrics.Metrics

	// Serializes writes from the loop, Stop and WriteNow
	writeMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   SnapshotStats
}

// NewSnapshotWriter creates a new SnapshotWriter.
func NewSnapshotWriter(
	cfg SnapshotConfig,
	source Source,
	db DB,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SnapshotWriter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultSnapshotConfig()
	if cfg.Key == "" {
		cfg.Key = def.Key
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &SnapshotWriter{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		db:      db,
		metrics: m,
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (w *SnapshotWriter) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create cache_snapshots: %w", err)
	}
	return nil
}

// Start begins writing snapshots every interval.
func (w *SnapshotWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("snapshot writer started",
		"key", w.cfg.Key,
		"interval", w.cfg.Interval,
	)
	return nil
}

// Stop halts the loop and writes one final snapshot.
func (w *SnapshotWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping snapshot writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("snapshot writer stop timed out")
		return ctx.Err()
	}

	// Final write
	if err := w.WriteNow(ctx); err != nil {
		return fmt.Errorf("final snapshot: %w", err)
	}
	w.logger.Info("snapshot writer stopped")
	return nil
}

// Stats returns current statistics.
func (w *SnapshotWriter) Stats() SnapshotStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

func (w *SnapshotWriter) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(w.ctx, w.cfg.WriteTimeout)
			if err := w.WriteNow(ctx); err != nil {
				w.logger.Error("snapshot write failed", "key", w.cfg.Key, "error", err)
			}
			cancel()
		}
	}
}

// WriteNow serializes the source and upserts it under the configured key.
func (w *SnapshotWriter) WriteNow(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	start := time.Now()
	data, err := w.source.MarshalSnapshot()
	if err == nil {
		_, err = w.db.Exec(ctx, upsertSQL, w.cfg.Key, data, len(data), start.UTC())
		if err != nil {
			err = fmt.Errorf("upsert snapshot: %w", err)
		}
	} else {
		err = fmt.Errorf("marshal snapshot: %w", err)
	}
	elapsed := time.Since(start)
	w.metrics.SnapshotWritten(elapsed, len(data), err)

	w.statsMu.Lock()
	if err != nil {
		w.stats.Errors++
	} else {
		w.stats.Writes++
		w.stats.LastSize = len(data)
		w.stats.LastWrite = start
	}
	w.statsMu.Unlock()

	if err != nil {
		return err
	}
	w.logger.Debug("snapshot written",
		"key", w.cfg.Key,
		"bytes", len(data),
		"duration", elapsed,
	)
	return nil
}

// LoadSnapshot reads the snapshot stored under key.
func LoadSnapshot(ctx context.Context, db DB, key string) (*cache.Storage, error) {
	var data []byte
	if err := db.QueryRow(ctx, selectSQL, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	st, err := cache.UnmarshalSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", key, err)
	}
	return st, nil
}
