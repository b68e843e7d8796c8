package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AnimaTow/ftso-v2-value-provider/pkg/aggregator"
	"github.com/AnimaTow/ftso-v2-value-provider/pkg/config"
	"github.com/AnimaTow/ftso-v2-value-provider/pkg/logging"
	"github.com/AnimaTow/ftso-v2-value-provider/pkg/market"
	"github.com/AnimaTow/ftso-v2-value-provider/pkg/metrics"
	redisstore "github.com/AnimaTow/ftso-v2-value-provider/pkg/store/redis"
)

const version = "0.1.0-dev"

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

// observationUpdate is one ingestion record read from stdin. Values are
// strings so they survive the trip into decimals unrounded.
type observationUpdate struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Value    string `json:"value"`
	TimeMs   int64  `json:"time_ms"`
	Volume   string `json:"volume,omitempty"`
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("value-provider version %s\n", version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting value-provider", "version", version, "feeds", len(cfg.Feeds))

	// Start metrics server if enabled
	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := market.NewMemoryConfigResolver(cfg.FeedConfigs())
	aggCfg := cfg.Aggregation.Aggregator()

	var (
		observations market.ObservationStore
		volumes      market.VolumeStore
	)

	if cfg.Redis.Enabled {
		store := redisstore.New(logger, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			logger.Fatal("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		}
		observations = store
		volumes = store
		logger.Info("Using Redis store", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	} else {
		obsStore := market.NewMemoryObservationStore()
		volStore := market.NewMemoryVolumeStore(aggCfg.VolumeLookback)
		observations = obsStore
		volumes = volStore

		// Feed the in-memory stores from JSON lines on stdin.
		go ingestStdin(logger, obsStore, volStore)
	}

	agg := aggregator.New(logger, aggCfg, resolver, observations, volumes)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	runLoop(ctx, logger, agg, cfg)
	logger.Info("Shutdown complete")
}

// runLoop resolves every configured feed on each tick.
func runLoop(ctx context.Context, logger *logging.Logger, agg *aggregator.Aggregator, cfg *config.Config) {
	ticker := time.NewTicker(cfg.ResolveInterval.ToDuration())
	defer ticker.Stop()

	feeds := cfg.FeedConfigs()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, feed := range feeds {
				price, ok := agg.ResolvePrice(ctx, feed.Feed)
				if !ok {
					continue
				}
				logger.Info("Resolved price",
					"feed", feed.Feed.String(),
					"price", price.String())
			}
		}
	}
}

// ingestStdin reads observation updates as JSON lines and applies them to the
// in-memory stores. Malformed lines are logged and skipped.
func ingestStdin(logger *logging.Logger, obs *market.MemoryObservationStore, vol *market.MemoryVolumeStore) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var update observationUpdate
		if err := json.Unmarshal(line, &update); err != nil {
			logger.Warn("Skipping malformed update", "error", err)
			continue
		}

		value, err := decimal.NewFromString(update.Value)
		if err != nil {
			logger.Warn("Skipping update with bad value",
				"symbol", update.Symbol, "value", update.Value)
			continue
		}

		stamp := time.UnixMilli(update.TimeMs)
		obs.Put(update.Symbol, update.Exchange, market.Observation{Value: value, Time: stamp})

		if update.Volume != "" {
			if volume, err := decimal.NewFromString(update.Volume); err == nil {
				vol.Add(update.Symbol, update.Exchange, volume, stamp)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Error("Stdin ingestion stopped", "error", err)
	}
}
