// pkg/serviceid/serviceid.go
package serviceid

import (
	"github.com/YaganovValera/purchase-pipeline/pkg/backoff"
	consumer "github.com/YaganovValera/purchase-pipeline/pkg/kafka/consumer"
	producer "github.com/YaganovValera/purchase-pipeline/pkg/kafka/producer"
)

// ServiceNameKey — ключ лейбла для метрик всех подсистем.
const ServiceNameKey = "service"

// InitServiceName задаёт единое имя сервиса для backoff, Kafka-producer и
// Kafka-consumer. Нужно вызывать в main() до любых попыток отправки метрик.
func InitServiceName(name string) {
	backoff.SetServiceLabel(name)
	producer.SetServiceLabel(name)
	consumer.SetServiceLabel(name)
}
