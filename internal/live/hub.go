package live

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub bridges bus topics to connected websocket clients. Participant sockets
// subscribe to their session topic; monitor sockets subscribe to both the
// session and monitor topics. Delivery is at-most-once: a client whose send
// buffer stays full is dropped and must refresh from the store on reconnect.
type Hub struct {
	bus *Bus
	log *zap.Logger

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub builds a hub over the given bus.
func NewHub(bus *Bus, log *zap.Logger) *Hub {
	return &Hub{
		bus:        bus,
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]struct{}),
	}
}

// Run owns the client registry until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			for _, topic := range client.topics {
				go h.forward(client, topic)
			}
			h.log.Info("live client registered",
				zap.String("session_id", client.sessionID),
				zap.Strings("topics", client.topics))

		case client := <-h.unregister:
			h.drop(client)
		}
	}
}

// Register attaches a client and starts its topic forwarding.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister detaches a client.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	h.mu.Unlock()
	if ok {
		client.close()
		h.log.Info("live client unregistered", zap.String("session_id", client.sessionID))
	}
}

// forward pumps one topic into the client. One goroutine per topic keeps
// per-topic publish order intact on the wire.
func (h *Hub) forward(client *Client, topic string) {
	messages, err := h.bus.Subscribe(client.ctx, topic)
	if err != nil {
		h.log.Error("topic subscribe failed", zap.String("topic", topic), zap.Error(err))
		h.Unregister(client)
		return
	}
	for msg := range messages {
		select {
		case client.Send <- msg.Payload:
			msg.Ack()
		case <-client.ctx.Done():
			msg.Ack()
			return
		default:
			// Slow consumer: drop the client rather than stall the topic.
			msg.Ack()
			h.log.Warn("dropping slow live client",
				zap.String("session_id", client.sessionID), zap.String("topic", topic))
			h.Unregister(client)
			return
		}
	}
}
