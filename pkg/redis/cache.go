package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/purchase-pipeline/pkg/backoff"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
)

var (
	redisMetrics = struct {
		GetErrors        prometheus.Counter
		SetErrors        prometheus.Counter
		DeleteErrors     prometheus.Counter
		OperationLatency prometheus.Histogram
	}{
		GetErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "pipeline", Subsystem: "redis", Name: "get_errors_total",
			Help: "Total number of errors on Redis GET",
		}),
		SetErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "pipeline", Subsystem: "redis", Name: "set_errors_total",
			Help: "Total number of errors on Redis SET",
		}),
		DeleteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "pipeline", Subsystem: "redis", Name: "delete_errors_total",
			Help: "Total number of errors on Redis DEL",
		}),
		OperationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pipeline", Subsystem: "redis", Name: "operation_latency_seconds",
			Help:    "Latency of Redis operations",
			Buckets: prometheus.DefBuckets,
		}),
	}
	tracer = otel.Tracer("redis-cache")
)

// ErrNotFound возвращается, если ключ отсутствует.
var ErrNotFound = fmt.Errorf("redis: key not found")

// Cache — байтовый кэш с единым TTL на запись.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// Config хранит параметры подключения к Redis.
type Config struct {
	URL     string        `mapstructure:"url"` // e.g. "redis://host:6379/0"
	TTL     time.Duration `mapstructure:"ttl"`
	Backoff backoff.Config `mapstructure:"backoff"`
}

func (c *Config) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = time.Minute
	}
}

func (c *Config) validate() error {
	if c.URL == "" {
		return fmt.Errorf("redis: URL required")
	}
	return nil
}

// redisCache — продакшен-реализация Cache через go-redis/v9.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// New создает Cache, соединяется с Redis, с retry и метриками.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Cache, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = log.Named("redis")

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse URL: %w", err)
	}
	client := redis.NewClient(opts)

	op := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	ctxConn, span := tracer.Start(ctx, "Connect", trace.WithAttributes(attribute.String("url", cfg.URL)))
	if err := backoff.Execute(ctxConn, cfg.Backoff, log, op); err != nil {
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	span.End()
	log.Info("redis: connected", zap.String("url", cfg.URL))

	return &redisCache{client: client, ttl: cfg.TTL, log: log}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	ctxOp, span := tracer.Start(ctx, "Get", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	start := time.Now()
	val, err := r.client.Get(ctxOp, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		redisMetrics.GetErrors.Inc()
		r.log.WithContext(ctx).Error("redis GET failed", zap.String("key", key), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}
	redisMetrics.OperationLatency.Observe(time.Since(start).Seconds())
	return val, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte) error {
	ctxOp, span := tracer.Start(ctx, "Set", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	start := time.Now()
	if err := r.client.Set(ctxOp, key, value, r.ttl).Err(); err != nil {
		redisMetrics.SetErrors.Inc()
		r.log.WithContext(ctx).Error("redis SET failed", zap.String("key", key), zap.Error(err))
		span.RecordError(err)
		return err
	}
	redisMetrics.OperationLatency.Observe(time.Since(start).Seconds())
	return nil
}

func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctxOp, span := tracer.Start(ctx, "Delete", trace.WithAttributes(attribute.Int("keys", len(keys))))
	defer span.End()

	if err := r.client.Del(ctxOp, keys...).Err(); err != nil {
		redisMetrics.DeleteErrors.Inc()
		r.log.WithContext(ctx).Error("redis DEL failed", zap.Error(err))
		span.RecordError(err)
		return err
	}
	return nil
}

func (r *redisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
