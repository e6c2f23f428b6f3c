package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/rickgao/gateway-cache/internal/api"
	"github.com/rickgao/gateway-cache/internal/cache"
	"github.com/rickgao/gateway-cache/internal/config"
	"github.com/rickgao/gateway-cache/internal/connection"
	"github.com/rickgao/gateway-cache/internal/database"
	"github.com/rickgao/gateway-cache/internal/metrics"
	"github.com/rickgao/gateway-cache/internal/protocol"
	"github.com/rickgao/gateway-cache/internal/router"
	"github.com/rickgao/gateway-cache/internal/shard"
	"github.com/rickgao/gateway-cache/internal/version"
	"github.com/rickgao/gateway-cache/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/gateway.local.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	// A missing .env is fine; variables may come from the environment.
	envErr := godotenv.Load(*envFile)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting gateway",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("failed to load env file", "path", *envFile, "error", envErr)
	}

	token, err := cfg.Gateway.LoadToken()
	if err != nil {
		logger.Error("failed to load token", "error", err)
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.BaseURL,
		"token", token.Redacted(),
	)

	shardCfg, err := cfg.Gateway.ShardConfig(token)
	if err != nil {
		logger.Error("invalid gateway config", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	m := metrics.New()

	// Connect to database
	var pool *pgxpool.Pool
	if cfg.Snapshot.Enabled || cfg.Snapshot.Restore {
		db := cfg.Snapshot.Database
		logger.Info("connecting to database",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)
		pool, err = database.Connect(ctx, db, version.Name+"-"+cfg.Instance.ID)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("database connected")
	}

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	set := shard.NewSet(shardCfg, apiClient, m, logger)

	cacheOpts := []cache.Option{cache.WithMemberRequester(set), cache.WithMetrics(m)}
	if cfg.Snapshot.Restore {
		st, err := writer.LoadSnapshot(ctx, pool, cfg.Snapshot.Key)
		switch {
		case errors.Is(err, writer.ErrNoSnapshot):
			logger.Info("no cache snapshot to restore", "key", cfg.Snapshot.Key)
		case err != nil:
			logger.Warn("failed to restore cache snapshot", "key", cfg.Snapshot.Key, "error", err)
		default:
			cacheOpts = append(cacheOpts, cache.WithSnapshot(st))
			logger.Info("cache snapshot restored", "key", cfg.Snapshot.Key, "guilds", len(st.Guilds))
		}
	}
	c := cache.New(cfg.Cache.CacheOptions(shardCfg.Intents), logger, cacheOpts...)

	// Route shard events to the cache and the debug log
	rtr := router.NewRouter(router.DefaultRouterConfig(), set.Events(), logger)
	rtr.Handle("debug", func(ev protocol.Event) {
		logger.Debug("gateway event", "shard", ev.Shard, "event", ev.Name)
	})
	cacheEvents := rtr.Subscribe()

	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}

	cacheDone := make(chan error, 1)
	go func() { cacheDone <- c.Run(ctx, cacheEvents.C()) }()

	go logDecodeErrors(set.DecodeErrors(), logger)

	var snapshots *writer.SnapshotWriter
	if cfg.Snapshot.Enabled {
		snapshots = writer.NewSnapshotWriter(writer.SnapshotConfig{
			Key:      cfg.Snapshot.Key,
			Interval: cfg.Snapshot.Interval,
		}, c, pool, m, logger)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare snapshot table", "error", err)
			os.Exit(1)
		}
		if err := snapshots.Start(ctx); err != nil {
			logger.Error("failed to start snapshot writer", "error", err)
			os.Exit(1)
		}
	}

	// Start health server early so shard progress is visible
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHandler(cfg.Metrics.Path, set, c, pool, m),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("starting shards")
	if err := set.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("failed to start shards", "error", err)
		cancel()
	} else if err == nil {
		logger.Info("gateway running",
			"instance_id", cfg.Instance.ID,
			"shards", set.ShardCount(),
			"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
		)
	}

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	set.Stop()
	rtr.Stop(shutdownCtx)
	if err := <-cacheDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("cache stopped with error", "error", err)
	}
	if snapshots != nil {
		if err := snapshots.Stop(shutdownCtx); err != nil {
			logger.Error("final snapshot failed", "error", err)
		}
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("gateway stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	level.UnmarshalText([]byte(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func logDecodeErrors(errs <-chan connection.DecodeError, logger *slog.Logger) {
	for e := range errs {
		logger.Warn("undecodable gateway frame",
			"shard", e.Shard,
			"error", e.Err,
			"bytes", len(e.Raw),
		)
	}
}

// createHandler serves health, debug and metrics endpoints.
func createHandler(metricsPath string, set *shard.Set, c *cache.Cache, pool *pgxpool.Pool, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Check shards
		stats := set.Stats()
		connected := 0
		for _, s := range stats {
			if s.State == connection.StateConnected {
				connected++
			}
		}
		health.Components["shards"] = map[string]int{
			"running":   len(stats),
			"connected": connected,
		}
		switch {
		case len(stats) == 0 || connected == 0:
			health.Status = "unhealthy"
		case connected < len(stats):
			health.Status = "degraded"
		}

		// Check database
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				if health.Status == "healthy" {
					health.Status = "degraded"
				}
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/shards", func(w http.ResponseWriter, r *http.Request) {
		type shardView struct {
			connection.ManagerStats
			State string `json:"state"`
		}
		stats := set.Stats()
		out := make([]shardView, len(stats))
		for i, s := range stats {
			out[i] = shardView{ManagerStats: s, State: s.State.String()}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"shard_count": set.ShardCount(),
			"shards":      out,
		})
	})

	mux.HandleFunc("/debug/cache", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(c.Stats())
	})

	mux.HandleFunc("/debug/guilds", func(w http.ResponseWriter, r *http.Request) {
		ids := c.GuildIDs()

		// Limit to first 100 for debugging
		limit := 100
		showing := ids
		if len(showing) > limit {
			showing = showing[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":   len(ids),
			"showing": len(showing),
			"guilds":  showing,
		})
	})

	mux.Handle(metricsPath, m.Handler())

	return mux
}
