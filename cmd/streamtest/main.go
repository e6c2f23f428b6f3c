// streamtest opens one unsharded gateway connection and prints every event to
// the console.
// Usage: go run ./cmd/streamtest --config configs/gateway.local.yaml
//
// Required environment variables (or a .env file):
//
//	DISCORD_TOKEN - bot token referenced by gateway.token
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/gateway-cache/internal/api"
	"github.com/rickgao/gateway-cache/internal/config"
	"github.com/rickgao/gateway-cache/internal/connection"
	"github.com/rickgao/gateway-cache/internal/protocol"
)

func main() {
	configPath := flag.String("config", "configs/gateway.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full payload JSON")
	only := flag.String("only", "", "comma-separated event names to print, empty = all")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	godotenv.Load()

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	token, err := cfg.Gateway.LoadToken()
	if err != nil {
		logger.Error("failed to load token", "error", err)
		logger.Info("Set gateway.token in the config or the DISCORD_TOKEN environment variable")
		os.Exit(1)
	}
	logger.Info("using bot token", "token", token.Redacted())

	shardCfg, err := cfg.Gateway.ShardConfig(token)
	if err != nil {
		logger.Error("invalid gateway config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	apiClient := api.NewClient(cfg.API.BaseURL, token, api.WithLogger(logger))

	// Unsharded: no shard info and no bucket gate
	mgr := connection.NewManager(shardCfg.Manager, apiClient, nil, logger)
	events := mgr.Subscribe()
	decodeErrors := mgr.SubscribeDecodeErrors()

	filter := make(map[string]bool)
	for _, name := range strings.Split(*only, ",") {
		if name = strings.TrimSpace(name); name != "" {
			filter[strings.ToUpper(name)] = true
		}
	}

	go printEvents(events.C(), filter, *verbose)
	go func() {
		for e := range decodeErrors.C() {
			fmt.Printf("[DECODE ERROR] %v raw=%d bytes\n", e.Err, len(e.Raw))
		}
	}()

	logger.Info("connecting to gateway", "intents", shardCfg.Intents.Uint64())
	if err := mgr.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := mgr.Stats()
				logger.Info("stats",
					"state", s.State.String(),
					"session", s.HasSession,
					"sequence", s.LastSequence,
					"heartbeat_latency", s.HeartbeatLatency,
					"reconnects", s.Reconnects,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	mgr.Disconnect()
	logger.Info("shutdown complete")
}

func printEvents(events <-chan protocol.Event, filter map[string]bool, verbose bool) {
	for ev := range events {
		name := ev.Name
		if name == "" {
			name = ev.Op.String()
		}
		if len(filter) > 0 && !filter[name] {
			continue
		}

		seq := "-"
		if ev.Sequence != nil {
			seq = fmt.Sprint(*ev.Sequence)
		}

		if verbose {
			data, _ := json.MarshalIndent(ev.Payload, "", "  ")
			fmt.Printf("[%s] seq=%s %s\n", name, seq, data)
		} else {
			fmt.Printf("[%s] seq=%s payload=%T\n", name, seq, ev.Payload)
		}
	}
}
