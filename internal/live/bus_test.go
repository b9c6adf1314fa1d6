package live

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectEvents(t *testing.T, ch <-chan *messageWrapper, n int) []Event {
	t.Helper()
	events := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case msg := <-ch:
			var ev Event
			require.NoError(t, json.Unmarshal(msg.payload, &ev))
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

type messageWrapper struct {
	payload []byte
}

func subscribe(t *testing.T, b *Bus, ctx context.Context, topic string) <-chan *messageWrapper {
	t.Helper()
	raw, err := b.Subscribe(ctx, topic)
	require.NoError(t, err)
	out := make(chan *messageWrapper, 128)
	go func() {
		for msg := range raw {
			out <- &messageWrapper{payload: msg.Payload}
			msg.Ack()
		}
	}()
	return out
}

func TestBusPreservesTopicOrder(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := subscribe(t, b, ctx, SessionTopic("s1"))

	for i := 0; i < 10; i++ {
		ev := NewEvent(EventNewMessage, "s1", map[string]interface{}{"seq": fmt.Sprintf("%d", i)})
		require.NoError(t, b.PublishToSession("s1", ev))
	}

	events := collectEvents(t, ch, 10)
	for i, ev := range events {
		assert.Equal(t, fmt.Sprintf("%d", i), ev.Data["seq"])
	}
}

func TestSessionTopicDoesNotLeakToMonitorTopic(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessionCh := subscribe(t, b, ctx, SessionTopic("s2"))
	monitorCh := subscribe(t, b, ctx, MonitorTopic("s2"))

	require.NoError(t, b.PublishToSession("s2", NewEvent(EventNewMessage, "s2", nil)))

	sessionEvents := collectEvents(t, sessionCh, 1)
	assert.Equal(t, EventNewMessage, sessionEvents[0].Type)
	select {
	case <-monitorCh:
		t.Fatal("session event delivered on the monitor topic")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitorOnlyEventsSkipSessionRoom(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessionCh := subscribe(t, b, ctx, SessionTopic("s3"))
	monitorCh := subscribe(t, b, ctx, MonitorTopic("s3"))

	require.NoError(t, b.PublishToMonitor("s3", NewEvent(EventNewObservation, "s3", nil)))

	monitorEvents := collectEvents(t, monitorCh, 1)
	assert.Equal(t, EventNewObservation, monitorEvents[0].Type)

	select {
	case <-sessionCh:
		t.Fatal("session room received a monitor-only event")
	case <-time.After(100 * time.Millisecond):
	}
}
