// internal/purchaseapi/storage/storage.go
//
// Контракт идемпотентного хранилища покупок. Реализация не зависит от
// конкретного движка; продакшен-реализация — storage/mongo.
package storage

import (
	"context"

	"github.com/YaganovValera/purchase-pipeline/internal/event"
)

// Outcome — результат попытки вставки по ключу.
type Outcome int

const (
	// Inserted — документ записан впервые.
	Inserted Outcome = iota
	// AlreadyPresent — документ с таким eventId уже есть. Это штатный
	// исход при at-least-once доставке, НЕ ошибка.
	AlreadyPresent
	// Failed — временный или неожиданный сбой хранилища: надёжность
	// эффекта не подтверждена.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "already_present"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// PurchaseDocument — неизменяемая проекция PurchaseCreated,
// ключом служит eventId.
type PurchaseDocument struct {
	EventID      string `bson:"_id" json:"eventId"`
	EventType    string `bson:"eventType" json:"eventType"`
	EventVersion int    `bson:"eventVersion" json:"eventVersion"`
	Timestamp    string `bson:"timestamp" json:"timestamp"`
	UserID       string `bson:"userId" json:"userId"`
	ItemID       string `bson:"itemId" json:"itemId"`
	Quantity     int    `bson:"quantity" json:"quantity"`
}

// FromEvent отображает событие 1:1 в документ хранилища.
func FromEvent(e *event.PurchaseCreated) PurchaseDocument {
	return PurchaseDocument{
		EventID:      e.EventID,
		EventType:    e.EventType,
		EventVersion: e.EventVersion,
		Timestamp:    e.Timestamp,
		UserID:       e.UserID,
		ItemID:       e.ItemID,
		Quantity:     e.Quantity,
	}
}

// Store — keyed-хранилище с семантикой «insert if absent, else no-op».
type Store interface {
	// InsertIfAbsent пытается записать документ. err != nil только при
	// Outcome == Failed.
	InsertIfAbsent(ctx context.Context, doc PurchaseDocument) (Outcome, error)
	// ListByUser возвращает покупки пользователя, новые сверху.
	ListByUser(ctx context.Context, userID string) ([]PurchaseDocument, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
