// internal/purchaseapi/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/config"
	"github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/consumer"
	"github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/handler"
	"github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/metrics"
	mongostore "github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/storage/mongo"
	"github.com/YaganovValera/purchase-pipeline/pkg/httpserver"
	kafkaconsumer "github.com/YaganovValera/purchase-pipeline/pkg/kafka/consumer"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
	"github.com/YaganovValera/purchase-pipeline/pkg/serviceid"
	"github.com/YaganovValera/purchase-pipeline/pkg/telemetry"
)

// Run wires up and runs the purchase-api service: the consume→persist→
// commit loop next to the read-path HTTP server.
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

	// MongoDB: один клиент на процесс, живёт всё время работы сервиса.
	store, err := mongostore.New(ctx, cfg.Mongo, log)
	if err != nil {
		return fmt.Errorf("mongo init: %w", err)
	}
	defer shutdownSafe(ctx, "mongo", func() error { return store.Close(context.Background()) }, log)

	// Kafka consumer group: единственный хэндл брокера на процесс —
	// обязательное условие корректной offset/session-семантики.
	kafkaConsumer, err := kafkaconsumer.New(ctx, kafkaconsumer.Config{
		Brokers:       cfg.Kafka.Brokers,
		GroupID:       cfg.Kafka.GroupID,
		Version:       cfg.Kafka.Version,
		InitialOffset: cfg.Kafka.InitialOffset,
		Backoff:       cfg.Kafka.Backoff,
	}, log)
	if err != nil {
		return fmt.Errorf("kafka consumer init: %w", err)
	}
	defer shutdownSafe(ctx, "kafka-consumer", kafkaConsumer.Close, log)

	msgHandler := consumer.New(store, log)

	// HTTP-server: read path + /metrics + health
	readiness := func() error { return store.Ping(ctx) }
	h := handler.New(store, log)

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

	log.Info("purchase-api: components initialized, entering run-loop")

	g, ctx := errgroup.WithContext(ctx)

	// HTTP
	g.Go(func() error { return httpSrv.Run(ctx) })

	// Consume → persist → commit. Цикл живёт до отмены контекста;
	// стоп-сигнал замечается на границе poll, начатое сообщение
	// доводится до терминального состояния.
	g.Go(func() error {
		return kafkaConsumer.Consume(ctx, []string{cfg.Kafka.Topic}, msgHandler.Handle)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithContext(ctx).Error("runtime error", zap.Error(err))
		return err
	}

	log.Info("purchase-api shutdown complete")
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
