// pkg/kafka/interface.go
//
// Пакет kafka задаёт минимальные контракты обмена сообщениями, не тянет
// за собой Sarama и никак не зависит от конкретной реализации.
package kafka

import (
	"context"
	"time"
)

// Message представляет запись, полученную из Kafka.
type Message struct {
	Key       []byte    // ключ сообщения (может быть nil)
	Value     []byte    // полезная нагрузка
	Topic     string    // имя топика
	Partition int32     // раздел
	Offset    int64     // смещение
	Timestamp time.Time // время записи в лог
}

// Verdict — итог обработки одного сообщения. Offset-менеджмент
// полностью определяется вердиктом, а не ошибками обработчика.
type Verdict int

const (
	// Ack — эффект сообщения надёжно применён, offset коммитится.
	Ack Verdict = iota
	// Skip — «ядовитое» сообщение: повтор никогда не поможет,
	// offset коммитится, чтобы не заблокировать раздел.
	Skip
	// Retry — временный сбой: offset НЕ коммитится, брокер
	// передоставит то же сообщение.
	Retry
)

func (v Verdict) String() string {
	switch v {
	case Ack:
		return "ack"
	case Skip:
		return "skip"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// Handler обрабатывает одно сообщение и возвращает вердикт.
// Handler не должен паниковать и не должен блокироваться дольше,
// чем живёт ctx сессии.
type Handler func(ctx context.Context, msg *Message) Verdict

// Consumer описывает читателя одного или нескольких топиков.
//
//	Consume(ctx, topics, handler) блокирует, пока контекст не будет
//	отменён, либо не произойдёт невосстановимая ошибка.
//	Commit выполняется после каждого сообщения с вердиктом Ack/Skip;
//	Retry прерывает сессию, и брокер передоставляет сообщение.
type Consumer interface {
	Consume(ctx context.Context, topics []string, handler Handler) error
	Close() error
}

// Producer публикует сообщения в Kafka.
type Producer interface {
	// Publish блокируется до подтверждения доставки брокером согласно
	// политике RequiredAcks и возвращает координаты записи.
	Publish(ctx context.Context, topic string, key, value []byte) (partition int32, offset int64, err error)
	// Ping проверяет достижимость кластера (обновление метаданных).
	Ping(ctx context.Context) error
	Close() error
}
