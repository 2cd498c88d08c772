package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andrej220/wexec/pkg/models"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaSink writes one message per host, keyed by run id and host.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (k *KafkaSink) Publish(ctx context.Context, records []models.OutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		value, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("kafka: marshal outcome for %s: %w", rec.Host, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(rec.RunID.String() + "/" + rec.Host),
			Value: value,
			Time:  rec.FinishedAt,
		})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		if errors.Is(err, kafka.UnknownTopicOrPartition) {
			return fmt.Errorf("kafka: topic %q does not exist: %w", k.topic, err)
		}
		return fmt.Errorf("kafka: write outcomes: %w", err)
	}
	return nil
}

func (k *KafkaSink) Close() error { return k.writer.Close() }
