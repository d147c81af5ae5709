// internal/purchaseapi/consumer/consumer_test.go
package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/YaganovValera/purchase-pipeline/internal/event"
	"github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/storage"
	"github.com/YaganovValera/purchase-pipeline/pkg/kafka"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
)

// fakeStore — in-memory реализация Store с управляемыми сбоями.
type fakeStore struct {
	docs    map[string]storage.PurchaseDocument
	failing bool
	inserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]storage.PurchaseDocument{}}
}

func (s *fakeStore) InsertIfAbsent(ctx context.Context, doc storage.PurchaseDocument) (storage.Outcome, error) {
	s.inserts++
	if s.failing {
		return storage.Failed, errors.New("store unavailable")
	}
	if _, ok := s.docs[doc.EventID]; ok {
		return storage.AlreadyPresent, nil
	}
	s.docs[doc.EventID] = doc
	return storage.Inserted, nil
}

func (s *fakeStore) ListByUser(ctx context.Context, userID string) ([]storage.PurchaseDocument, error) {
	var out []storage.PurchaseDocument
	for _, d := range s.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) Ping(ctx context.Context) error  { return nil }
func (s *fakeStore) Close(ctx context.Context) error { return nil }

func newTestHandler(t *testing.T, store storage.Store) *Handler {
	t.Helper()
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	return New(store, log)
}

func msgWith(t *testing.T, eventID string) *kafka.Message {
	t.Helper()
	evt := &event.PurchaseCreated{
		EventID:      eventID,
		EventType:    event.TypePurchaseCreated,
		EventVersion: 1,
		Timestamp:    "2026-08-29T10:00:00Z",
		UserID:       "u-1",
		ItemID:       "i-1",
		Quantity:     1,
	}
	raw, err := evt.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return &kafka.Message{Key: []byte(evt.UserID), Value: raw, Topic: "purchases.v1"}
}

// Валидное событие вставляется и подтверждается.
func TestHandle_ValidEvent(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(t, store)

	if v := h.Handle(context.Background(), msgWith(t, "e-1")); v != kafka.Ack {
		t.Fatalf("verdict = %v; want Ack", v)
	}
	if _, ok := store.docs["e-1"]; !ok {
		t.Error("document e-1 not persisted")
	}
}

// Повторная доставка того же события гасится идемпотентно и тоже Ack.
func TestHandle_DuplicateDelivery(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(t, store)

	if v := h.Handle(context.Background(), msgWith(t, "e-1")); v != kafka.Ack {
		t.Fatalf("first delivery verdict = %v; want Ack", v)
	}
	if v := h.Handle(context.Background(), msgWith(t, "e-1")); v != kafka.Ack {
		t.Fatalf("redelivery verdict = %v; want Ack", v)
	}
	if len(store.docs) != 1 {
		t.Errorf("store holds %d documents; want 1", len(store.docs))
	}
}

// «Ядовитые» сообщения пропускаются с коммитом, не ломая раздел.
func TestHandle_PoisonMessages(t *testing.T) {
	cases := []struct {
		name  string
		value []byte
	}{
		{"garbage", []byte("not json at all")},
		{"wrongTypes", []byte(`{"eventId":"e","quantity":"nine"}`)},
		{"schemaViolation", []byte(`{"eventId":"e","eventType":"PurchaseCreated","eventVersion":1,"timestamp":"t","userId":"","itemId":"i","quantity":0}`)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := newFakeStore()
			h := newTestHandler(t, store)

			v := h.Handle(context.Background(), &kafka.Message{Value: c.value})
			if v != kafka.Skip {
				t.Fatalf("verdict = %v; want Skip", v)
			}
			if len(store.docs) != 0 {
				t.Error("poison message must not reach storage")
			}
		})
	}
}

// Сбой хранилища → Retry: offset удерживается до передоставки.
func TestHandle_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failing = true
	h := newTestHandler(t, store)

	if v := h.Handle(context.Background(), msgWith(t, "e-1")); v != kafka.Retry {
		t.Fatalf("verdict = %v; want Retry", v)
	}

	// Хранилище ожило: передоставленное сообщение проходит.
	store.failing = false
	if v := h.Handle(context.Background(), msgWith(t, "e-1")); v != kafka.Ack {
		t.Fatalf("verdict after recovery = %v; want Ack", v)
	}
	if _, ok := store.docs["e-1"]; !ok {
		t.Error("document e-1 not persisted after recovery")
	}
}

// Ядовитое сообщение между двумя валидными не мешает соседям.
func TestHandle_PoisonBetweenValid(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(t, store)

	verdicts := []kafka.Verdict{
		h.Handle(context.Background(), msgWith(t, "e-1")),
		h.Handle(context.Background(), &kafka.Message{Value: []byte("garbage")}),
		h.Handle(context.Background(), msgWith(t, "e-2")),
	}
	want := []kafka.Verdict{kafka.Ack, kafka.Skip, kafka.Ack}
	for i := range want {
		if verdicts[i] != want[i] {
			t.Errorf("verdict[%d] = %v; want %v", i, verdicts[i], want[i])
		}
	}
	if len(store.docs) != 2 {
		t.Errorf("store holds %d documents; want 2", len(store.docs))
	}
}
