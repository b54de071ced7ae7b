package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rafalohaki/ultramotd/pkg/cache"
	"github.com/rafalohaki/ultramotd/pkg/config"
	"github.com/rafalohaki/ultramotd/pkg/logging"
	"github.com/rafalohaki/ultramotd/pkg/monitor"
	"github.com/rafalohaki/ultramotd/pkg/motd"
	"github.com/rafalohaki/ultramotd/pkg/protocol"
	"github.com/rafalohaki/ultramotd/pkg/ratelimit"
	"github.com/rafalohaki/ultramotd/pkg/rotation"
	"github.com/rafalohaki/ultramotd/pkg/server"
)

const faviconCacheSize = 16

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			stderrLogger := zerolog.New(os.Stderr)
			stderrLogger.Fatal().Err(err).Msg("Failed to load configuration")
		}
		cfg = loaded
	}

	logger := logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messages, err := renderMessages(cfg.MOTD.Messages)
	if err != nil {
		return err
	}

	rotator, err := rotation.NewRotator(messages, cfg.Strategy(),
		cfg.Rotation.Interval.Std(), cfg.Rotation.RequestsPerRotation,
		logging.NewLogger("rotation"))
	if err != nil {
		return err
	}

	packets, err := cache.NewPacketCache(cfg.Cache.PacketTTL.Std(), logging.NewLogger("cache"))
	if err != nil {
		return err
	}

	var favicons *cache.FaviconCache
	if cfg.MOTD.Favicon != "" {
		favicons, err = cache.NewFaviconCache(cfg.MOTD.DataDir, faviconCacheSize,
			24*time.Hour, logging.NewLogger("cache"))
		if err != nil {
			return err
		}
		// Warm the icon so the first ping pays no disk read.
		if entry, err := favicons.Get(cfg.MOTD.Favicon); err != nil {
			logger.Warn().Err(err).Str("path", cfg.MOTD.Favicon).Msg("Favicon preload failed")
		} else {
			entry.Release()
		}
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.NewLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window.Std())
		if err != nil {
			return err
		}
	}

	responder, err := motd.NewResponder(motd.Config{
		VersionName:     cfg.MOTD.VersionName,
		DefaultProtocol: cfg.MOTD.DefaultProtocol,
		MaxPlayers:      cfg.MOTD.MaxPlayers,
		OnlinePlayers:   cfg.MOTD.OnlinePlayers,
		FaviconPath:     cfg.MOTD.Favicon,
	}, rotator, packets, favicons, limiter, logging.NewLogger("motd"))
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{Addr: cfg.ListenAddr}, responder, logging.NewLogger("server"))
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	if cfg.Monitor.Enabled {
		sources := []monitor.StatsSource{packets}
		if favicons != nil {
			sources = append(sources, favicons)
		}
		m := monitor.New(monitor.Config{
			Interval:       cfg.Monitor.Interval.Std(),
			HitRateWarning: cfg.Monitor.HitRateWarning,
		}, sources, limiter, redisClient, logging.NewLogger("monitor"))
		go m.Run(ctx)
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// renderMessages converts configured plain-text lines into description
// documents.
func renderMessages(lines []string) ([]json.RawMessage, error) {
	messages := make([]json.RawMessage, 0, len(lines))
	for _, line := range lines {
		raw, err := protocol.TextDescription(line)
		if err != nil {
			return nil, err
		}
		messages = append(messages, raw)
	}
	return messages, nil
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info().Str("addr", addr).Msg("Metrics endpoint started")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics endpoint failed")
	}
}
