package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// OrderEvent - событие изменения статуса заявки.
// Публикуется после commit транзакции координатора;
// внешние потребители (уведомления, отчетность) читают топик сами.
type OrderEvent struct {
	OrderID    int       `json:"order_id"`
	Code       string    `json:"code"`
	ExchangeID int       `json:"exchange_id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Amount     string    `json:"amount"`
	Balance    string    `json:"balance,omitempty"` // новый баланс, если операция его меняла
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher публикует события заявок
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
	Close() error
}

// KafkaPublisher отправляет события заявок в Kafka
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher создает publisher для заданных брокеров и топика
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// PublishOrderEvent публикует событие заявки.
// Ключ - ID обменника: события одного обменника попадают в одну партицию
// и сохраняют порядок.
func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.Itoa(event.ExchangeID)),
		Value: msg,
		Time:  time.Now(),
	})
}

// Close закрывает writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher - заглушка, когда Kafka выключена в конфигурации
type NopPublisher struct{}

func (NopPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error { return nil }
func (NopPublisher) Close() error                                                  { return nil }
