package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds the connection settings for the transactions topic.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// KafkaConsumer implements Consumer on top of a kafka-go Reader.
// Auto-commit is disabled; offsets are committed explicitly after the
// fold has been persisted.
type KafkaConsumer struct {
	reader *kafka.Reader
	topic  string
}

// NewKafkaConsumer creates a consumer joined to the configured group,
// starting from the oldest retained message when the group has no
// committed offset yet.
func NewKafkaConsumer(cfg KafkaConfig) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // explicit commits only
		StartOffset:    kafka.FirstOffset,
	})

	return &KafkaConsumer{reader: reader, topic: cfg.Topic}
}

func (c *KafkaConsumer) Fetch(ctx context.Context) (Record, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("fetch message: %w", err)
	}
	return Record{
		Position: Position{Topic: c.topic, Partition: msg.Partition, Offset: msg.Offset},
		Key:      msg.Key,
		Value:    msg.Value,
	}, nil
}

func (c *KafkaConsumer) Commit(ctx context.Context, rec Record) error {
	msg := kafka.Message{
		Topic:     rec.Position.Topic,
		Partition: rec.Position.Partition,
		Offset:    rec.Position.Offset,
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("commit offset %d/%d: %w", rec.Position.Partition, rec.Position.Offset, err)
	}
	return nil
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// KafkaProducer implements Producer with a hash balancer, so records
// sharing a key stay on one partition and keep their relative order.
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(cfg KafkaConfig) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaProducer{writer: writer}
}

func (p *KafkaProducer) Publish(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
