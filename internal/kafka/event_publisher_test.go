package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"petlink-go/internal/events"
)

type fakeProducer struct {
	topic   string
	key     []byte
	payload []byte
	closed  bool
}

func (f *fakeProducer) SendMessage(_ context.Context, topic string, key []byte, payload []byte) error {
	f.topic, f.key, f.payload = topic, key, payload
	return nil
}

func (f *fakeProducer) Close() { f.closed = true }

func TestEventPublisherKeysByRecipient(t *testing.T) {
	fake := &fakeProducer{}
	pub := NewEventPublisher(fake, "social-events", time.Second)

	ev, err := events.New(events.FriendRequested, 1, 42, 7, nil)
	if err != nil {
		t.Fatalf("events.New() error = %v", err)
	}
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if fake.topic != "social-events" || string(fake.key) != "42" {
		t.Fatalf("topic = %q key = %q", fake.topic, fake.key)
	}

	got, err := events.Decode(fake.payload)
	if err != nil || got.ID != ev.ID || got.Type != events.FriendRequested {
		t.Fatalf("payload decoded to %+v, %v", got, err)
	}

	pub.Close()
	if !fake.closed {
		t.Fatalf("Close() should close the producer")
	}
}

// stalledProducer never receives a delivery report, like a producer facing an unreachable broker.
type stalledProducer struct{}

func (stalledProducer) SendMessage(ctx context.Context, _ string, _ []byte, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledProducer) Close() {}

func TestEventPublisherBoundsDeliveryWait(t *testing.T) {
	pub := NewEventPublisher(stalledProducer{}, "social-events", 50*time.Millisecond)
	ev, _ := events.New(events.MessageSent, 1, 2, 3, nil)

	done := make(chan error, 1)
	go func() { done <- pub.Publish(context.Background(), ev) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Publish() error = %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish() did not honour its timeout")
	}
}

func TestEventHandlerSkipsBadRecords(t *testing.T) {
	var handled []events.Event
	h := EventHandler(func(_ context.Context, ev events.Event) error {
		handled = append(handled, ev)
		return nil
	})

	if err := h(context.Background(), &kafka.Message{Value: []byte("garbage")}); err != nil {
		t.Fatalf("bad record should be skipped, got %v", err)
	}

	ev, _ := events.New(events.MessageSent, 1, 2, 3, nil)
	data, _ := ev.Encode()
	if err := h(context.Background(), &kafka.Message{Value: data}); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if len(handled) != 1 || handled[0].ID != ev.ID {
		t.Fatalf("handled = %+v", handled)
	}
}
