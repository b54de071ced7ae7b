// Package monitor periodically snapshots cache and rate limiter statistics,
// logs them, and optionally publishes them to Redis so external dashboards
// can read serving health without scraping the process.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rafalohaki/ultramotd/pkg/cache"
	"github.com/rafalohaki/ultramotd/pkg/ratelimit"
)

var rateLimitTrackedSources = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ultramotd_ratelimit_tracked_sources",
	Help: "Number of source addresses currently tracked by the rate limiter",
})

// StatsSource is anything that can report cache statistics. Both the packet
// cache and the generic engine satisfy it.
type StatsSource interface {
	Name() string
	Stats() cache.Stats
}

// Config holds monitor settings.
type Config struct {
	// Interval between snapshots. Zero selects one minute.
	Interval time.Duration

	// HitRateWarning is the hit-rate threshold below which a warning is
	// logged. Zero selects 0.5.
	HitRateWarning float64

	// MinSamples suppresses the hit-rate warning until a cache has seen
	// this many lookups. Zero selects 100.
	MinSamples int64

	// RedisKeyPrefix prefixes the published stats keys. Zero selects
	// "ultramotd:stats".
	RedisKeyPrefix string

	// RedisTTL expires published snapshots so a dead process's stats
	// disappear. Zero selects five minutes.
	RedisTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.HitRateWarning <= 0 {
		c.HitRateWarning = 0.5
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 100
	}
	if c.RedisKeyPrefix == "" {
		c.RedisKeyPrefix = "ultramotd:stats"
	}
	if c.RedisTTL <= 0 {
		c.RedisTTL = 5 * time.Minute
	}
}

// snapshot is the published form of one source's statistics.
type snapshot struct {
	Size      int       `json:"size"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Evictions int64     `json:"evictions"`
	HitRate   float64   `json:"hit_rate"`
	Taken     time.Time `json:"taken"`
}

// Monitor drives the periodic snapshot loop.
type Monitor struct {
	cfg     Config
	sources []StatsSource
	limiter *ratelimit.Limiter // optional
	redis   *redis.Client      // optional
	logger  zerolog.Logger
}

// New creates a monitor over sources. limiter and redisClient may be nil.
func New(cfg Config, sources []StatsSource, limiter *ratelimit.Limiter, redisClient *redis.Client, logger zerolog.Logger) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		cfg:     cfg,
		sources: sources,
		limiter: limiter,
		redis:   redisClient,
		logger:  logger,
	}
}

// Run takes snapshots every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.cfg.Interval).Msg("Stats monitor started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Stats monitor stopped")
			return
		case <-ticker.C:
			m.Snapshot(ctx)
		}
	}
}

// Snapshot logs one round of statistics and publishes it when Redis is
// configured. Publish failures degrade monitoring only, never serving.
func (m *Monitor) Snapshot(ctx context.Context) {
	taken := time.Now()
	snapshots := make(map[string]snapshot, len(m.sources))

	for _, src := range m.sources {
		stats := src.Stats()
		snapshots[src.Name()] = snapshot{
			Size:      stats.Size,
			Hits:      stats.Hits,
			Misses:    stats.Misses,
			Evictions: stats.Evictions,
			HitRate:   stats.HitRate,
			Taken:     taken,
		}

		m.logger.Info().
			Str("cache", src.Name()).
			Int("size", stats.Size).
			Int64("hits", stats.Hits).
			Int64("misses", stats.Misses).
			Float64("hit_rate", stats.HitRate).
			Msg("Cache stats")

		if stats.Hits+stats.Misses >= m.cfg.MinSamples && stats.HitRate < m.cfg.HitRateWarning {
			m.logger.Warn().
				Str("cache", src.Name()).
				Float64("hit_rate", stats.HitRate).
				Float64("threshold", m.cfg.HitRateWarning).
				Msg("Cache hit rate below threshold")
		}
	}

	if m.limiter != nil {
		sources := m.limiter.Sources()
		rateLimitTrackedSources.Set(float64(sources))
		m.logger.Info().Int("tracked_sources", sources).Msg("Rate limiter stats")
	}

	if m.redis != nil {
		if err := m.publish(ctx, snapshots); err != nil {
			m.logger.Warn().Err(err).Msg("Stats publish failed")
		}
	}
}

// publish stores all snapshots atomically via a pipeline, keyed
// <prefix>:<cache name>.
func (m *Monitor) publish(ctx context.Context, snapshots map[string]snapshot) error {
	pipe := m.redis.Pipeline()
	for name, snap := range snapshots {
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal %s snapshot: %w", name, err)
		}
		pipe.Set(ctx, m.cfg.RedisKeyPrefix+":"+name, payload, m.cfg.RedisTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store snapshots in redis: %w", err)
	}
	return nil
}
