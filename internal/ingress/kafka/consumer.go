// Package kafka adapts a Kafka partition to the ingress contract for
// long-lived hosts. One partition is one stream: Kafka preserves order
// within a partition, which carries the per-stream ordering guarantee.
//
// Message values use the CSV record format ("deposit,1,5,3.0").
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	"github.com/nkiryanov/payengine/internal/ingress"
	ingresscsv "github.com/nkiryanov/payengine/internal/ingress/csv"
	"github.com/nkiryanov/payengine/internal/models"
)

const recordFields = 4

// Consumer reads one topic partition as an ordered transaction stream.
// A topic never ends on its own, so Next returns only when a message
// arrives, the context is cancelled, or the partition consumer reports an
// error or closes.
type Consumer struct {
	consumer  sarama.Consumer
	partition sarama.PartitionConsumer
	offset    int
}

func NewConsumer(brokers []string, topic string, partition int32) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to kafka: %w", err)
	}

	return newFromConsumer(consumer, topic, partition)
}

func newFromConsumer(consumer sarama.Consumer, topic string, partition int32) (*Consumer, error) {
	pc, err := consumer.ConsumePartition(topic, partition, sarama.OffsetOldest)
	if err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("consuming %s/%d: %w", topic, partition, err)
	}

	return &Consumer{consumer: consumer, partition: pc}, nil
}

// Next implements ingress.Ingress
func (c *Consumer) Next(ctx context.Context) (models.Transaction, error) {
	select {
	case <-ctx.Done():
		return models.Transaction{}, ctx.Err()

	case err := <-c.partition.Errors():
		return models.Transaction{}, fmt.Errorf("kafka partition failed: %w", err)

	case msg, ok := <-c.partition.Messages():
		if !ok {
			return models.Transaction{}, fmt.Errorf("kafka partition consumer closed")
		}

		c.offset++
		tx, err := parseMessage(msg.Value)
		if err != nil {
			return models.Transaction{}, &ingress.RecordError{Line: c.offset, Err: err}
		}
		return tx, nil
	}
}

func parseMessage(value []byte) (models.Transaction, error) {
	fields := strings.SplitN(string(value), ",", recordFields)
	for len(fields) < recordFields {
		fields = append(fields, "")
	}

	return ingresscsv.ParseRecord(fields[0], fields[1], fields[2], fields[3])
}

// Close releases the partition consumer and the underlying connection
func (c *Consumer) Close() error {
	return errors.Join(c.partition.Close(), c.consumer.Close())
}
