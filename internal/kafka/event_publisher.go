package kafka

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"petlink-go/internal/events"
)

// EventPublisher publishes domain events to one topic, keyed by recipient.
type EventPublisher struct {
	producer MessageProducer
	topic    string
	timeout  time.Duration
}

const defaultPublishTimeout = 5 * time.Second

// NewEventPublisher wraps a MessageProducer as an events.Publisher.
// timeout <= 0 falls back to five seconds.
func NewEventPublisher(producer MessageProducer, topic string, timeout time.Duration) *EventPublisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &EventPublisher{producer: producer, topic: topic, timeout: timeout}
}

// Publish 等待投递报告最多 timeout，调用方的请求不会因为 broker 故障而长时间挂起。
func (p *EventPublisher) Publish(ctx context.Context, ev events.Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.producer.SendMessage(ctx, p.topic, ev.Key(), payload)
}

func (p *EventPublisher) Close() {
	p.producer.Close()
}

// EventHandler adapts an events.Handler to a MessageHandler.
// Undecodable records are logged and skipped so the partition does not stall.
func EventHandler(handle events.Handler) MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		ev, err := events.Decode(msg.Value)
		if err != nil {
			log.Printf("跳过无法解析的事件 (Offset: %v): %v", msg.TopicPartition.Offset, err)
			return nil
		}
		return handle(ctx, ev)
	}
}
