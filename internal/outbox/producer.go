package outbox

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer wraps a single multi-topic kafka.Writer. The topic is set
// per message, so the writer itself carries none.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer for the given brokers.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

// WriteMessages writes messages to the given topic.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	for i := range msgs {
		msgs[i].Topic = topic
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close releases the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

func formatEventID(id int64) string {
	return strconv.FormatInt(id, 10)
}
