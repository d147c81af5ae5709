// internal/publisher/publisher_test.go
package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YaganovValera/purchase-pipeline/internal/event"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
)

// fakeProducer записывает публикации и отвечает заданной ошибкой.
type fakeProducer struct {
	topic string
	key   []byte
	value []byte
	calls int
	err   error
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) (int32, int64, error) {
	f.calls++
	f.topic, f.key, f.value = topic, key, value
	if f.err != nil {
		return 0, 0, f.err
	}
	return 3, 42, nil
}

func (f *fakeProducer) Ping(ctx context.Context) error { return nil }
func (f *fakeProducer) Close() error                   { return nil }

func newTestPublisher(t *testing.T, prod *fakeProducer) *Publisher {
	t.Helper()
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	p := New(prod, "purchases.v1", log)
	p.now = func() time.Time { return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) }
	p.newID = func() string { return "fixed-id" }
	return p
}

// Успешная публикация: ключ — userId, payload — валидное событие.
func TestPublish_Success(t *testing.T) {
	prod := &fakeProducer{}
	p := newTestPublisher(t, prod)

	receipt, err := p.Publish(context.Background(), BuyOrder{UserID: "u-7", ItemID: "i-1", Quantity: 2})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if receipt.EventID != "fixed-id" {
		t.Errorf("EventID = %q; want %q", receipt.EventID, "fixed-id")
	}
	if receipt.Partition != 3 || receipt.Offset != 42 {
		t.Errorf("Receipt coords = (%d,%d); want (3,42)", receipt.Partition, receipt.Offset)
	}
	if prod.topic != "purchases.v1" {
		t.Errorf("topic = %q; want purchases.v1", prod.topic)
	}
	if string(prod.key) != "u-7" {
		t.Errorf("partition key = %q; want userId", prod.key)
	}

	evt, err := event.Decode(prod.value)
	if err != nil {
		t.Fatalf("published payload is not a decodable event: %v", err)
	}
	if err := evt.Validate(); err != nil {
		t.Fatalf("published payload fails schema: %v", err)
	}
	if evt.UserID != "u-7" || evt.ItemID != "i-1" || evt.Quantity != 2 {
		t.Errorf("event fields = %+v", evt)
	}
	if evt.Timestamp != "2026-08-29T10:00:00Z" {
		t.Errorf("Timestamp = %q", evt.Timestamp)
	}
}

// Невалидный заказ отклоняется до обращения к брокеру.
func TestPublish_InvalidOrder(t *testing.T) {
	cases := []struct {
		name  string
		order BuyOrder
	}{
		{"noUser", BuyOrder{ItemID: "i", Quantity: 1}},
		{"noItem", BuyOrder{UserID: "u", Quantity: 1}},
		{"zeroQuantity", BuyOrder{UserID: "u", ItemID: "i"}},
		{"negativeQuantity", BuyOrder{UserID: "u", ItemID: "i", Quantity: -1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			prod := &fakeProducer{}
			p := newTestPublisher(t, prod)

			_, err := p.Publish(context.Background(), c.order)
			if !errors.Is(err, ErrInvalidOrder) {
				t.Fatalf("err = %v; want ErrInvalidOrder", err)
			}
			if prod.calls != 0 {
				t.Errorf("producer called %d times for invalid order", prod.calls)
			}
		})
	}
}

// Ошибка доставки отдаётся вызывающему, повторов внутри нет.
func TestPublish_DeliveryError(t *testing.T) {
	prod := &fakeProducer{err: errors.New("broker down")}
	p := newTestPublisher(t, prod)

	_, err := p.Publish(context.Background(), BuyOrder{UserID: "u", ItemID: "i", Quantity: 1})
	if err == nil {
		t.Fatal("expected delivery error, got nil")
	}
	if prod.calls != 1 {
		t.Errorf("producer called %d times; want exactly 1 (no silent retry)", prod.calls)
	}
}

// Каждый логический запрос получает новый eventId.
func TestPublish_FreshEventIDPerCall(t *testing.T) {
	prod := &fakeProducer{}
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	p := New(prod, "purchases.v1", log)

	r1, err := p.Publish(context.Background(), BuyOrder{UserID: "u", ItemID: "i", Quantity: 1})
	if err != nil {
		t.Fatalf("first Publish failed: %v", err)
	}
	r2, err := p.Publish(context.Background(), BuyOrder{UserID: "u", ItemID: "i", Quantity: 1})
	if err != nil {
		t.Fatalf("second Publish failed: %v", err)
	}
	if r1.EventID == r2.EventID {
		t.Errorf("event IDs must differ across requests, both %q", r1.EventID)
	}
}
