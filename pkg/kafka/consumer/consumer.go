// pkg/kafka/consumer/consumer.go
package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/purchase-pipeline/pkg/backoff"
	pkgkafka "github.com/YaganovValera/purchase-pipeline/pkg/kafka"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
)

// -----------------------------------------------------------------------------
// Service label (заполняется из serviceid.InitServiceName)
// -----------------------------------------------------------------------------

var serviceLabel = "unknown"

// SetServiceLabel задаёт единое имя сервиса для метрик.
func SetServiceLabel(name string) { serviceLabel = name }

// -----------------------------------------------------------------------------
// Prometheus-метрики
// -----------------------------------------------------------------------------

var consumerMetrics = struct {
	ConnectAttempts *prometheus.CounterVec
	ConnectErrors   *prometheus.CounterVec
	ConsumeErrors   *prometheus.CounterVec
	Verdicts        *prometheus.CounterVec
}{
	ConnectAttempts: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline", Subsystem: "kafka_consumer", Name: "connect_attempts_total",
			Help: "Kafka consumer group connect attempts",
		},
		[]string{"service"},
	),
	ConnectErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline", Subsystem: "kafka_consumer", Name: "connect_errors_total",
			Help: "Kafka consumer connect errors",
		},
		[]string{"service"},
	),
	ConsumeErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline", Subsystem: "kafka_consumer", Name: "consume_errors_total",
			Help: "Errors during consumption sessions",
		},
		[]string{"service"},
	),
	Verdicts: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline", Subsystem: "kafka_consumer", Name: "verdicts_total",
			Help: "Message handling verdicts",
		},
		[]string{"service", "verdict"},
	),
}

// -----------------------------------------------------------------------------
// Tracing
// -----------------------------------------------------------------------------

var tracer = otel.Tracer("kafka-consumer")

// errRetryRequested прерывает сессию: offset сообщения не закоммичен,
// брокер передоставит его в следующей сессии.
var errRetryRequested = errors.New("kafka consumer: retry requested, session restart")

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config содержит параметры для Kafka ConsumerGroup.
type Config struct {
	// Brokers — адреса брокеров.
	Brokers []string
	// GroupID — идентификатор consumer group. Offset'ы хранятся per-group:
	// новая группа начинает чтение согласно InitialOffset.
	GroupID string
	// Version — строка версии Kafka (например, "2.8.0").
	Version string
	// InitialOffset — "earliest" (дефолт) | "latest": откуда начинать,
	// когда у группы ещё нет закоммиченного offset'а.
	InitialOffset string
	// Backoff — стратегия пауз между сессиями после сбоев.
	Backoff backoff.Config
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "2.8.0"
	}
	if c.InitialOffset == "" {
		c.InitialOffset = "earliest"
	}
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka consumer: brokers required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("kafka consumer: GroupID required")
	}
	switch strings.ToLower(c.InitialOffset) {
	case "earliest", "latest":
	default:
		return fmt.Errorf("kafka consumer: invalid InitialOffset %q", c.InitialOffset)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Consumer implementation
// -----------------------------------------------------------------------------

type kafkaConsumerGroup struct {
	group      sarama.ConsumerGroup
	log        *logger.Logger
	backoffCfg backoff.Config
}

// New создаёт и подключает ConsumerGroup с ретраями.
func New(ctx context.Context, cfg Config, log *logger.Logger) (pkgkafka.Consumer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = log.Named("kafka-consumer")

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: invalid Version %q: %w", cfg.Version, err)
	}
	sarCfg := sarama.NewConfig()
	sarCfg.Version = version
	sarCfg.Consumer.Return.Errors = true

	// Offset-дисциплина: авто-коммит выключен, каждый offset коммитится
	// явно после того, как эффект сообщения надёжно применён.
	sarCfg.Consumer.Offsets.AutoCommit.Enable = false
	if strings.ToLower(cfg.InitialOffset) == "latest" {
		sarCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	} else {
		sarCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	var group sarama.ConsumerGroup
	connectOp := func(ctx context.Context) error {
		consumerMetrics.ConnectAttempts.WithLabelValues(serviceLabel).Inc()
		g, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sarCfg)
		if err != nil {
			consumerMetrics.ConnectErrors.WithLabelValues(serviceLabel).Inc()
			return err
		}
		group = g
		return nil
	}

	ctxConn, span := tracer.Start(ctx, "Connect",
		trace.WithAttributes(attribute.StringSlice("brokers", cfg.Brokers), attribute.String("group", cfg.GroupID)))
	if err := backoff.Execute(ctxConn, cfg.Backoff, log, connectOp); err != nil {
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("kafka consumer: connect failed: %w", err)
	}
	span.End()

	log.Info("kafka consumer group connected",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("group", cfg.GroupID),
		zap.String("initial_offset", cfg.InitialOffset),
	)
	return &kafkaConsumerGroup{group: group, log: log, backoffCfg: cfg.Backoff}, nil
}

// Consume запускает бесконечное чтение топиков сессиями.
// Вердикт Retry и сбои брокера завершают текущую сессию; цикл делает
// паузу и открывает новую, незакоммиченные сообщения передоставляются.
// Выход из цикла — только по отмене контекста.
func (kc *kafkaConsumerGroup) Consume(
	ctx context.Context,
	topics []string,
	handler pkgkafka.Handler,
) error {
	h := &consumerGroupHandler{handler: handler, log: kc.log}
	for {
		ctxSess, span := tracer.Start(ctx, "ConsumeSession",
			trace.WithAttributes(attribute.StringSlice("topics", topics)))
		err := kc.group.Consume(ctxSess, topics, h)
		span.End()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			if errors.Is(err, errRetryRequested) {
				kc.log.Warn("session restart for redelivery")
			} else {
				consumerMetrics.ConsumeErrors.WithLabelValues(serviceLabel).Inc()
				kc.log.Error("consume session error", zap.Error(err))
			}

			// Небольшая пауза перед следующей сессией
			pause := func(ctx context.Context) error {
				select {
				case <-time.After(100 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if berr := backoff.Execute(ctx, kc.backoffCfg, kc.log, pause); berr != nil {
				return fmt.Errorf("kafka consumer: pause between sessions failed: %w", berr)
			}
		}
	}
}

// Close закрывает ConsumerGroup и освобождает членство в группе.
func (kc *kafkaConsumerGroup) Close() error {
	return kc.group.Close()
}

// -----------------------------------------------------------------------------
// Internal handler
// -----------------------------------------------------------------------------

type consumerGroupHandler struct {
	handler pkgkafka.Handler
	log     *logger.Logger
}

func (h *consumerGroupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim обрабатывает сообщения раздела по одному. Канал
// claim.Messages() закрывается при отмене контекста сессии — это и есть
// граница, на которой цикл замечает стоп-сигнал; начатое сообщение
// всегда доводится до терминального состояния.
func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for m := range claim.Messages() {
		ctxMsg := sess.Context()
		_, span := tracer.Start(ctxMsg, "HandleMessage",
			trace.WithAttributes(
				attribute.String("topic", m.Topic),
				attribute.Int64("offset", m.Offset),
			),
		)

		msg := &pkgkafka.Message{
			Key:       m.Key,
			Value:     m.Value,
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Timestamp: m.Timestamp,
		}

		verdict := h.handler(ctxMsg, msg)
		consumerMetrics.Verdicts.WithLabelValues(serviceLabel, verdict.String()).Inc()
		span.SetAttributes(attribute.String("verdict", verdict.String()))
		span.End()

		switch verdict {
		case pkgkafka.Ack, pkgkafka.Skip:
			// Ack и Skip эквивалентны для offset'а: эффект отражён либо
			// никогда не будет отражён, раздел двигается дальше.
			sess.MarkMessage(m, "")
			sess.Commit()
		case pkgkafka.Retry:
			h.log.WithContext(ctxMsg).Warn("retry verdict, leaving offset uncommitted",
				zap.Int32("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
			return errRetryRequested
		}
	}
	return nil
}
