package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"petlink-go/internal/config"
	"petlink-go/internal/events"
)

// EventTypeHeader carries the event type so consumers can route without decoding the body.
const EventTypeHeader = "x-event-type"

const publishTimeout = 5 * time.Second

// Bus 是基于 RabbitMQ 单个队列的事件总线，同时实现发布和消费。
type Bus struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// Dial 连接 RabbitMQ 并声明持久化队列。
func Dial(cfg config.RabbitMQConfig) (*Bus, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a RabbitMQ channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare RabbitMQ queue %s: %w", cfg.Queue, err)
	}
	log.Printf("RabbitMQ queue declared: %s", cfg.Queue)
	return &Bus{conn: conn, channel: ch, queue: cfg.Queue}, nil
}

// Publish implements events.Publisher.
func (b *Bus) Publish(ctx context.Context, ev events.Event) error {
	msg, err := toPublishing(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := b.channel.PublishWithContext(ctx,
		"",      // default exchange
		b.queue, // routing key
		false,   // mandatory
		false,   // immediate
		msg,
	); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", ev.ID, err)
	}
	return nil
}

// Consume delivers events to handle until ctx is canceled. A message is acked after
// the handler succeeds and requeued otherwise; undecodable messages are dropped.
func (b *Bus) Consume(ctx context.Context, consumerTag string, handle events.Handler) error {
	deliveries, err := b.channel.Consume(
		b.queue,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register RabbitMQ consumer: %w", err)
	}
	log.Printf("RabbitMQ consumer %s subscribed to %s", consumerTag, b.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("RabbitMQ delivery channel closed")
			}
			ev, err := fromDelivery(d)
			if err != nil {
				log.Printf("丢弃无法解析的 RabbitMQ 消息: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			if err := handle(ctx, ev); err != nil {
				log.Printf("处理事件 %s 失败: %v", ev.ID, err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close closes the channel and the connection.
func (b *Bus) Close() {
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			log.Printf("Error closing RabbitMQ connection: %v", err)
		}
	}
}

func toPublishing(ev events.Event) (amqp.Publishing, error) {
	body, err := ev.Encode()
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("序列化事件失败: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
		Headers: amqp.Table{
			EventTypeHeader: string(ev.Type),
		},
		Body: body,
	}, nil
}

func fromDelivery(d amqp.Delivery) (events.Event, error) {
	ev, err := events.Decode(d.Body)
	if err != nil {
		return events.Event{}, err
	}
	if header, ok := d.Headers[EventTypeHeader].(string); ok && header != string(ev.Type) {
		return events.Event{}, fmt.Errorf("event type header %q does not match body %q", header, ev.Type)
	}
	return ev, nil
}
