package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Type 领域事件类型。
type Type string

const (
	FriendRequested Type = "friend.requested"
	FriendAccepted  Type = "friend.accepted"
	FriendRejected  Type = "friend.rejected"
	FriendRemoved   Type = "friend.removed"
	MessageSent     Type = "message.sent"
	MessageRead     Type = "message.read"
)

// Event is the envelope published on the bus and pushed to the recipient's inbox feed.
type Event struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	ActorID     uint            `json:"actorId"`
	RecipientID uint            `json:"recipientId"`
	SubjectID   uint            `json:"subjectId"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// New builds an event with a fresh id. payload may be nil.
func New(t Type, actorID, recipientID, subjectID uint, payload interface{}) (Event, error) {
	ev := Event{
		ID:          uuid.NewString(),
		Type:        t,
		ActorID:     actorID,
		RecipientID: recipientID,
		SubjectID:   subjectID,
		OccurredAt:  time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("序列化事件 %s 的 payload 失败: %w", t, err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

// Key 按接收者分区，保证同一用户的事件有序。
func (e Event) Key() []byte {
	return []byte(strconv.FormatUint(uint64(e.RecipientID), 10))
}

// Encode marshals the event to JSON.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an event produced by Encode.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" || ev.RecipientID == 0 {
		return Event{}, fmt.Errorf("decode event: missing type or recipient")
	}
	return ev, nil
}

// Publisher sends domain events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// Handler processes one consumed event.
type Handler func(ctx context.Context, ev Event) error

// NopPublisher drops every event. Used when EVENTS.DRIVER is "none".
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close()                               {}
