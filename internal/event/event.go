// internal/event/event.go
//
// Контракт события PurchaseCreated. Используется байт-в-байт обеими
// сторонами пайплайна: gateway сериализует, purchase-api десериализует.
// Неизвестные поля терпимы (forward-совместимость), eventVersion при
// отсутствии считается равным 1.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TypePurchaseCreated — единственный на сегодня тип события.
const TypePurchaseCreated = "PurchaseCreated"

// SchemaVersion — текущая ревизия схемы.
const SchemaVersion = 1

// PurchaseCreated — событие покупки, единица работы пайплайна.
// После публикации поля неизменяемы.
type PurchaseCreated struct {
	EventID      string `json:"eventId"`      // глобально уникален, ключ идемпотентности
	EventType    string `json:"eventType"`    // дискриминатор
	EventVersion int    `json:"eventVersion"` // ревизия схемы
	Timestamp    string `json:"timestamp"`    // ISO-8601 UTC, проставляет продьюсер
	UserID       string `json:"userId"`       // также ключ раздела
	ItemID       string `json:"itemId"`
	Quantity     int    `json:"quantity"` // инвариант: >= 1
}

// ValidationError перечисляет нарушенные поля схемы.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("event: invalid field(s): %s", strings.Join(e.Fields, ", "))
}

// Decode разбирает сырые байты в PurchaseCreated.
// Ошибка означает, что байты не являются валидным JSON нужной формы
// (включая несоответствие типов полей) — такое сообщение «ядовито».
func Decode(raw []byte) (*PurchaseCreated, error) {
	var e PurchaseCreated
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("event: decode: %w", err)
	}
	e.applyDefaults()
	return &e, nil
}

// applyDefaults дополняет поля, отсутствие которых не считается ошибкой.
func (e *PurchaseCreated) applyDefaults() {
	if e.EventVersion == 0 {
		e.EventVersion = SchemaVersion
	}
	if e.EventType == "" {
		e.EventType = TypePurchaseCreated
	}
}

// Validate проверяет инварианты схемы и возвращает *ValidationError
// со списком всех нарушенных полей. Без побочных эффектов.
func (e *PurchaseCreated) Validate() error {
	var bad []string
	if e.EventID == "" {
		bad = append(bad, "eventId")
	}
	if e.EventType != TypePurchaseCreated {
		bad = append(bad, "eventType")
	}
	if e.EventVersion < 1 {
		bad = append(bad, "eventVersion")
	}
	if e.Timestamp == "" {
		bad = append(bad, "timestamp")
	}
	if e.UserID == "" {
		bad = append(bad, "userId")
	}
	if e.ItemID == "" {
		bad = append(bad, "itemId")
	}
	if e.Quantity < 1 {
		bad = append(bad, "quantity")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

// Encode сериализует событие в JSON-байты для публикации.
func (e *PurchaseCreated) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("event: encode: %w", err)
	}
	return b, nil
}
