package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/eduline/chat-gateway/pkg/log"
)

// ConfluentProducer publishes delivery events to Kafka.
type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

func NewConfluentProducer(brokers, topic string, partitions int) (*ConfluentProducer, error) {
	// Ensure topic exists with desired partition count
	if err := ensureTopic(brokers, topic, partitions); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic (may already exist)")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}

	go cp.deliveryReportHandler()

	return cp, nil
}

func ensureTopic(brokers, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}

func (cp *ConfluentProducer) deliveryReportHandler() {
	for e := range cp.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				l := log.L()
				l.Error().Err(ev.TopicPartition.Error).Msg("kafka delivery failed")
			}
		}
	}
	close(cp.doneCh)
}

// Produce publishes one delivery event, keyed by conversation id so
// events for a conversation stay ordered within a partition. Presence
// events key on the user id instead.
func (cp *ConfluentProducer) Produce(ctx context.Context, ev DeliveryEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery event: %w", err)
	}

	key := strconv.FormatInt(ev.ConversationID, 10)
	if ev.ConversationID == 0 {
		key = strconv.FormatInt(ev.UserID, 10)
	}

	err = cp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &cp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(key),
		Value: value,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce event: %w", err)
	}

	return nil
}

func (cp *ConfluentProducer) Close() error {
	cp.producer.Flush(5000)
	cp.producer.Close()
	<-cp.doneCh
	return nil
}
