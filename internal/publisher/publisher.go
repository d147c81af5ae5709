// internal/publisher/publisher.go
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/purchase-pipeline/internal/event"
	"github.com/YaganovValera/purchase-pipeline/pkg/kafka"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
)

var tracer = otel.Tracer("publisher")

// ErrInvalidOrder возвращается, когда заказ отклонён ещё до публикации.
var ErrInvalidOrder = errors.New("publisher: invalid order")

// BuyOrder — провалидированное намерение покупки с HTTP-границы.
type BuyOrder struct {
	UserID   string
	ItemID   string
	Quantity int
}

func (o BuyOrder) validate() error {
	if o.UserID == "" {
		return fmt.Errorf("%w: userId required", ErrInvalidOrder)
	}
	if o.ItemID == "" {
		return fmt.Errorf("%w: itemId required", ErrInvalidOrder)
	}
	if o.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be >= 1", ErrInvalidOrder)
	}
	return nil
}

// Receipt — координаты доставленного события. Partition/Offset носят
// информационный характер, для корректности важен только EventID.
type Receipt struct {
	EventID   string
	Partition int32
	Offset    int64
}

// Publisher собирает PurchaseCreated и публикует его с ожиданием ack.
type Publisher struct {
	producer kafka.Producer
	topic    string
	log      *logger.Logger

	// переопределяются в тестах
	now   func() time.Time
	newID func() string
}

// New создаёт Publisher поверх готового Kafka-producer'а.
func New(p kafka.Producer, topic string, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: p,
		topic:    topic,
		log:      log.Named("publisher"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Publish строит событие, выбирает ключ раздела (userId) и блокируется
// до подтверждения доставки брокером. eventId генерируется один раз на
// логический запрос: повтор всего запроса создаст новое событие, повтор
// доставки того же события гасится идемпотентным хранилищем.
func (p *Publisher) Publish(ctx context.Context, order BuyOrder) (*Receipt, error) {
	if err := order.validate(); err != nil {
		return nil, err
	}

	evt := &event.PurchaseCreated{
		EventID:      p.newID(),
		EventType:    event.TypePurchaseCreated,
		EventVersion: event.SchemaVersion,
		Timestamp:    p.now().UTC().Format(time.RFC3339Nano),
		UserID:       order.UserID,
		ItemID:       order.ItemID,
		Quantity:     order.Quantity,
	}

	payload, err := evt.Encode()
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Publish",
		trace.WithAttributes(
			attribute.String("topic", p.topic),
			attribute.String("event_id", evt.EventID),
		))
	defer span.End()

	// Ключ — сырые байты userId: один пользователь → один раздел →
	// порядок его событий сохраняется.
	partition, offset, err := p.producer.Publish(ctx, p.topic, []byte(order.UserID), payload)
	if err != nil {
		span.RecordError(err)
		p.log.WithContext(ctx).Error("publish failed",
			zap.String("event_id", evt.EventID),
			zap.String("user_id", order.UserID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("publisher: deliver event %s: %w", evt.EventID, err)
	}

	p.log.WithContext(ctx).Info("event delivered",
		zap.String("event_id", evt.EventID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return &Receipt{EventID: evt.EventID, Partition: partition, Offset: offset}, nil
}
