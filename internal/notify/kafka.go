package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/config"
	"github.com/mamadbah2/freshstock/internal/domain/models"
)

// KafkaNotifier publishes signals as JSON, keyed by product id so every
// signal of one product lands on the same partition.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaNotifier connects a synchronous producer to cfg.Brokers.
func NewKafkaNotifier(cfg config.KafkaConfig, logger *zap.Logger) (*KafkaNotifier, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newKafkaNotifier(producer, cfg.Topic, logger), nil
}

func newKafkaNotifier(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaNotifier{producer: producer, topic: topic, logger: logger}
}

func (n *KafkaNotifier) Name() string { return "kafka" }

func (n *KafkaNotifier) Notify(ctx context.Context, signal models.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("signal-kind"), Value: []byte(signal.Kind)},
			{Key: []byte("signal-id"), Value: []byte(uuid.NewString())},
			{Key: []byte("timestamp"), Value: []byte(signal.OccurredAt.UTC().Format(time.RFC3339))},
		},
	}
	if key := signal.Key(); key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := n.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", signal.Kind, err)
	}
	n.logger.Debug("signal published",
		zap.String("topic", n.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("kind", string(signal.Kind)))
	return nil
}

// Close closes the producer.
func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
