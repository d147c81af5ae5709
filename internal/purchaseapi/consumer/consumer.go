// internal/purchaseapi/consumer/consumer.go
//
// Обработчик сообщений топика покупок: decode → validate → persist.
// Каждое сообщение доводится до терминального состояния:
//
//	Ack   — эффект надёжно применён (вставка или уже существующий дубликат);
//	Skip  — «ядовитое» сообщение, повтор не поможет, раздел идёт дальше;
//	Retry — временный сбой хранилища, offset удерживается до передоставки.
//
// Никакая ошибка обработки не завершает цикл потребления: наружу уходит
// только вердикт, ошибки поглощаются и логируются здесь.
package consumer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/purchase-pipeline/internal/event"
	"github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/metrics"
	"github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/storage"
	"github.com/YaganovValera/purchase-pipeline/pkg/kafka"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
)

var tracer = otel.Tracer("purchase-consumer")

// Handler превращает сообщения Kafka в записи идемпотентного хранилища.
type Handler struct {
	store storage.Store
	log   *logger.Logger
}

// New создаёт Handler поверх готового Store.
func New(store storage.Store, log *logger.Logger) *Handler {
	return &Handler{store: store, log: log.Named("consumer")}
}

// Handle реализует kafka.Handler.
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) kafka.Verdict {
	metrics.ConsumedTotal.Inc()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.Int64("partition", int64(msg.Partition)),
			attribute.Int64("offset", msg.Offset),
		))
	defer span.End()

	// --- Decode -----------------------------------------------------------
	evt, err := event.Decode(msg.Value)
	if err != nil {
		metrics.PoisonTotal.Inc()
		span.RecordError(err)
		h.log.WithContext(ctx).Warn("poison message: undecodable payload",
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return kafka.Skip
	}

	// --- Validate ---------------------------------------------------------
	if err := evt.Validate(); err != nil {
		metrics.PoisonTotal.Inc()
		span.RecordError(err)
		h.log.WithContext(ctx).Warn("poison message: schema violation",
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return kafka.Skip
	}

	span.SetAttributes(attribute.String("event_id", evt.EventID))

	// --- Persist ----------------------------------------------------------
	outcome, err := h.store.InsertIfAbsent(ctx, storage.FromEvent(evt))
	switch outcome {
	case storage.Inserted:
		metrics.PersistedTotal.Inc()
		metrics.PersistLatency.Observe(time.Since(start).Seconds())
		h.log.WithContext(ctx).Info("purchase persisted",
			zap.String("event_id", evt.EventID),
			zap.String("user_id", evt.UserID),
		)
		return kafka.Ack

	case storage.AlreadyPresent:
		// Штатный исход at-least-once доставки: эффект уже отражён.
		metrics.DuplicatesTotal.Inc()
		h.log.WithContext(ctx).Debug("duplicate delivery absorbed",
			zap.String("event_id", evt.EventID),
		)
		return kafka.Ack

	default:
		metrics.RetriesTotal.Inc()
		span.RecordError(err)
		h.log.WithContext(ctx).Error("persist failed, message retained for redelivery",
			zap.String("event_id", evt.EventID),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return kafka.Retry
	}
}
