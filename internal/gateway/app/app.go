// internal/gateway/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YaganovValera/purchase-pipeline/internal/gateway/apiclient"
	"github.com/YaganovValera/purchase-pipeline/internal/gateway/config"
	"github.com/YaganovValera/purchase-pipeline/internal/gateway/handler"
	"github.com/YaganovValera/purchase-pipeline/internal/gateway/metrics"
	"github.com/YaganovValera/purchase-pipeline/internal/publisher"
	"github.com/YaganovValera/purchase-pipeline/pkg/httpserver"
	kafkaproducer "github.com/YaganovValera/purchase-pipeline/pkg/kafka/producer"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
	"github.com/YaganovValera/purchase-pipeline/pkg/redis"
	"github.com/YaganovValera/purchase-pipeline/pkg/serviceid"
	"github.com/YaganovValera/purchase-pipeline/pkg/telemetry"
)

// Run wires up and runs the purchase-gateway service: the public order
// intake in front of the Kafka topic plus the proxied read path.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	serviceid.InitServiceName(cfg.ServiceName)
	metrics.Register(nil)

	// OpenTelemetry
	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Insecure:       cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer shutdownSafe(ctx, "telemetry", func() error { return shutdownTracer(context.Background()) }, log)

	// Kafka sync-producer: единственный хэндл брокера на процесс.
	producer, err := kafkaproducer.New(ctx, kafkaproducer.Config{
		Brokers:        cfg.Kafka.Brokers,
		RequiredAcks:   cfg.Kafka.RequiredAcks,
		Timeout:        cfg.Kafka.Timeout,
		Compression:    cfg.Kafka.Compression,
		FlushFrequency: cfg.Kafka.FlushFrequency,
		FlushMessages:  cfg.Kafka.FlushMessages,
		Backoff:        cfg.Kafka.Backoff,
	}, log)
	if err != nil {
		return fmt.Errorf("kafka producer init: %w", err)
	}
	defer shutdownSafe(ctx, "kafka-producer", producer.Close, log)

	// Redis: опциональный read-through кэш списков покупок.
	var cache redis.Cache
	if cfg.Redis.Enabled {
		cache, err = redis.New(ctx, cfg.Redis.Cache, log)
		if err != nil {
			return fmt.Errorf("redis init: %w", err)
		}
		defer shutdownSafe(ctx, "redis", cache.Close, log)
	}

	pub := publisher.New(producer, cfg.Kafka.Topic, log)
	reader := apiclient.New(cfg.APIServer.BaseURL, cfg.APIServer.Timeout)
	h := handler.New(pub, reader, cache, log)

	readiness := func() error { return producer.Ping(ctx) }

	httpSrv, err := httpserver.New(
		httpserver.Config{
			Addr:            fmt.Sprintf(":%d", cfg.HTTP.Port),
			ReadTimeout:     cfg.HTTP.ReadTimeout,
			WriteTimeout:    cfg.HTTP.WriteTimeout,
			IdleTimeout:     cfg.HTTP.IdleTimeout,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
			MetricsPath:     cfg.HTTP.MetricsPath,
			HealthzPath:     cfg.HTTP.HealthzPath,
			ReadyzPath:      cfg.HTTP.ReadyzPath,
		},
		readiness,
		log,
		h.Routes(),
		httpserver.RecoverMiddleware(log),
		httpserver.RequestIDMiddleware(),
		httpserver.MetricsMiddleware(),
		httpserver.CORSMiddleware(),
	)
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}

	log.Info("purchase-gateway: components initialized, entering run-loop")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithContext(ctx).Error("runtime error", zap.Error(err))
		return err
	}

	log.Info("purchase-gateway shutdown complete")
	return nil
}

// shutdownSafe оборачивает вызов Close()/Shutdown() с логированием.
func shutdownSafe(ctx context.Context, name string, fn func() error, log *logger.Logger) {
	log.WithContext(ctx).Info(fmt.Sprintf("%s: shutting down", name))
	if err := fn(); err != nil {
		log.WithContext(ctx).Error(fmt.Sprintf("%s shutdown error", name), zap.Error(err))
	} else {
		log.WithContext(ctx).Info(fmt.Sprintf("%s: shutdown complete", name))
	}
}
