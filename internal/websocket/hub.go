package websocket

import (
	"context"
	"errors"
	"log"

	"petlink-go/internal/events"
)

var (
	// ErrHubBusy is returned when the delivery queue is full.
	ErrHubBusy = errors.New("inbox hub delivery queue is full")
	// ErrHubStopped is returned once Run has exited.
	ErrHubStopped = errors.New("inbox hub stopped")
)

type delivery struct {
	userID  uint
	payload []byte
}

// Hub 维护在线用户的连接，并把领域事件推送给对应的接收者。
// 同一用户可以有多个连接（多个标签页或设备），每个连接都会收到事件。
type Hub struct {
	clients    map[uint]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	deliveries chan delivery
	online     chan chan map[uint]int
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliveries: make(chan delivery, 256),
		online:     make(chan chan map[uint]int),
		done:       make(chan struct{}),
	}
}

// Deliver queues ev for its recipient without blocking the caller (the bus consumer).
func (h *Hub) Deliver(ev events.Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return err
	}
	select {
	case h.deliveries <- delivery{userID: ev.RecipientID, payload: payload}:
		return nil
	default:
		return ErrHubBusy
	}
}

// Handler adapts the hub to a bus consumer callback. A full queue drops the event:
// the inbox feed is a best-effort notification and the API remains the source of truth.
func (h *Hub) Handler() events.Handler {
	return func(_ context.Context, ev events.Event) error {
		if err := h.Deliver(ev); err != nil {
			log.Printf("警告: 丢弃发给用户 %d 的事件 %s: %v", ev.RecipientID, ev.Type, err)
		}
		return nil
	}
}

// OnlineCounts returns the number of open connections per user.
func (h *Hub) OnlineCounts(ctx context.Context) (map[uint]int, error) {
	reply := make(chan map[uint]int, 1)
	select {
	case h.online <- reply:
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case counts := <-reply:
		return counts, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once Run has returned; register and unregister are no longer served.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run 处理注册、注销和投递，直到 ctx 结束；结束时关闭所有连接的发送通道。
func (h *Hub) Run(ctx context.Context) {
	log.Println("Inbox hub started.")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for userID := range h.clients {
				h.dropUser(userID)
			}
			log.Println("Inbox hub stopped.")
			return

		case client := <-h.register:
			conns, ok := h.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[client.UserID] = conns
			}
			conns[client] = struct{}{}
			log.Printf("客户端已注册: UserID %d (连接数 %d)", client.UserID, len(conns))

		case client := <-h.unregister:
			h.remove(client)

		case d := <-h.deliveries:
			for client := range h.clients[d.userID] {
				select {
				case client.send <- d.payload:
				default:
					log.Printf("警告: UserID %d 的发送通道已满，断开该连接。", d.userID)
					h.remove(client)
				}
			}

		case reply := <-h.online:
			counts := make(map[uint]int, len(h.clients))
			for userID, conns := range h.clients {
				counts[userID] = len(conns)
			}
			reply <- counts
		}
	}
}

func (h *Hub) remove(client *Client) {
	conns, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	close(client.send)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}
}

func (h *Hub) dropUser(userID uint) {
	for client := range h.clients[userID] {
		close(client.send)
	}
	delete(h.clients, userID)
}
