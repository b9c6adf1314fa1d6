package live

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// SessionTopic is the participant-facing topic for one session.
func SessionTopic(sessionID string) string { return "session_" + sessionID }

// MonitorTopic is the researcher-facing topic for one session.
func MonitorTopic(sessionID string) string { return "monitor_" + sessionID }

// Bus is the in-process event bus. Every session event flows through it;
// websocket clients are just subscribers. Per-topic ordering follows publish
// order.
type Bus struct {
	pubSub *gochannel.GoChannel
}

// NewBus builds a bus backed by an in-memory go-channel pub/sub.
func NewBus() *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 64,
			// Publish order is only preserved when delivery is acked in
			// sequence; without this, each send races on its own goroutine.
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NopLogger{},
	)
	return &Bus{pubSub: pubSub}
}

// Publish serializes the event onto one topic.
func (b *Bus) Publish(topic string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubSub.Publish(topic, msg)
}

// PublishToSession fans an event to the session room only.
func (b *Bus) PublishToSession(sessionID string, event Event) error {
	return b.Publish(SessionTopic(sessionID), event)
}

// PublishToMonitor fans an event to the researcher room only.
func (b *Bus) PublishToMonitor(sessionID string, event Event) error {
	return b.Publish(MonitorTopic(sessionID), event)
}

// Subscribe returns the message channel for one topic. Messages must be
// acked by the consumer.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, topic)
}

// Close shuts down the pub/sub and all subscriber channels.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
