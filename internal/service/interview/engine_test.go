package interview

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/live"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/character"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/guide"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
)

type testRig struct {
	engine *Engine
	store  *store.Store
	bus    *live.Bus
	model  *ai.ScriptedModel
}

func newTestRig(t *testing.T, replies ...string) *testRig {
	t.Helper()
	ctx := context.Background()

	st, err := store.New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	registry, err := character.NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	model := ai.NewScriptedModel(replies...)
	client, err := ai.NewClient(ctx, model, zap.NewNop())
	if err != nil {
		t.Fatalf("ai client: %v", err)
	}
	bus := live.NewBus()
	t.Cleanup(func() { bus.Close() })

	engine := NewEngine(st, registry, client, bus, zap.NewNop())
	return &testRig{engine: engine, store: st, bus: bus, model: model}
}

func (r *testRig) newSession(t *testing.T, char string) *session.Session {
	t.Helper()
	g := &guide.DiscussionGuide{
		Title:     "Ordering Portal",
		Topic:     "B2B ordering",
		Character: char,
	}
	if err := r.store.CreateGuide(g); err != nil {
		t.Fatalf("create guide: %v", err)
	}
	sess, err := r.store.CreateSession(g.ID, session.Interviewee{Name: "Pat"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func drainEvents(t *testing.T, ch <-chan []byte, n int) []live.Event {
	t.Helper()
	events := make([]live.Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case payload := <-ch:
			var ev live.Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				t.Fatalf("bad event payload: %v", err)
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(events))
		}
	}
	return events
}

func topicFeed(t *testing.T, bus *live.Bus, topics ...string) <-chan []byte {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	out := make(chan []byte, 64)
	for _, topic := range topics {
		raw, err := bus.Subscribe(ctx, topic)
		if err != nil {
			t.Fatalf("subscribe %s: %v", topic, err)
		}
		go func() {
			for msg := range raw {
				out <- msg.Payload
				msg.Ack()
			}
		}()
	}
	return out
}

func TestTurnAppendsReplyAndFansOut(t *testing.T) {
	rig := newTestRig(t, "What part of the backorder screen loses you first?")
	sess := rig.newSession(t, "askia")
	feed := topicFeed(t, rig.bus, live.SessionTopic(sess.ID))

	reply, err := rig.engine.HandleUserTurn(context.Background(), sess.ID, "The backorder screen confuses me.", "")
	if err != nil {
		t.Fatalf("HandleUserTurn: %v", err)
	}
	if reply.Role != session.RoleAssistant {
		t.Fatalf("expected assistant reply, got role %q", reply.Role)
	}

	got, err := rig.store.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != session.RoleUser || got.Messages[1].Role != session.RoleAssistant {
		t.Fatalf("unexpected roles %q, %q", got.Messages[0].Role, got.Messages[1].Role)
	}

	events := drainEvents(t, feed, 2)
	for i, ev := range events {
		if ev.Type != live.EventNewMessage {
			t.Fatalf("event %d type %q", i, ev.Type)
		}
	}
}

func TestStartSeedsGreetingOnce(t *testing.T) {
	rig := newTestRig(t)
	sess := rig.newSession(t, "daria")

	msg, err := rig.engine.Start(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if msg == nil || msg.Role != session.RoleAssistant {
		t.Fatal("expected greeting assistant message")
	}
	if !strings.Contains(msg.Content, "Daria") {
		t.Fatalf("greeting does not introduce the character: %q", msg.Content)
	}

	again, err := rig.engine.Start(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if again != nil {
		t.Fatal("Start on a seeded session should be a no-op")
	}
}

func TestCharacterSwitchWritesIdentityDirective(t *testing.T) {
	rig := newTestRig(t, "Askia here.", "I am Thesea.")
	sess := rig.newSession(t, "askia")
	ctx := context.Background()

	if _, err := rig.engine.HandleUserTurn(ctx, sess.ID, "Hello.", ""); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if err := rig.engine.SetCharacter(ctx, sess.ID, "thesea"); err != nil {
		t.Fatalf("SetCharacter: %v", err)
	}
	if _, err := rig.engine.HandleUserTurn(ctx, sess.ID, "Who are you?", ""); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	got, err := rig.store.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	var directive *session.Message
	var directiveIdx int
	for i := range got.Messages {
		if got.Messages[i].Role == session.RoleSystem && strings.Contains(got.Messages[i].Content, "You are Thesea") {
			directive = &got.Messages[i]
			directiveIdx = i
			break
		}
	}
	if directive == nil {
		t.Fatal("no identity directive recorded")
	}
	last := got.Messages[len(got.Messages)-1]
	if last.Role != session.RoleAssistant || directiveIdx >= len(got.Messages)-1 {
		t.Fatal("identity directive must precede the new assistant turn")
	}
}

func TestModelFailureWritesApology(t *testing.T) {
	rig := newTestRig(t)
	rig.model.Respond = func([]*schema.Message) (string, error) { return "", errors.New("upstream down") }
	sess := rig.newSession(t, "daria")

	reply, err := rig.engine.HandleUserTurn(context.Background(), sess.ID, "Hi.", "")
	if err != nil {
		t.Fatalf("turn should not fail on model error: %v", err)
	}
	if !strings.Contains(reply.Content, "I apologize") {
		t.Fatalf("expected apology reply, got %q", reply.Content)
	}

	got, _ := rig.store.GetSession(sess.ID)
	if len(got.Messages) != 2 {
		t.Fatalf("user message must persist despite failure, got %d messages", len(got.Messages))
	}
}

func TestCompletedSessionRejectsTurns(t *testing.T) {
	rig := newTestRig(t)
	sess := rig.newSession(t, "daria")
	if _, err := rig.engine.Complete(context.Background(), sess.ID, false); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	_, err := rig.engine.HandleUserTurn(context.Background(), sess.ID, "One more.", "")
	if !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted, got %v", err)
	}
}

func TestDuplicateUserMessageIDReturnsExistingReply(t *testing.T) {
	rig := newTestRig(t, "First reply.")
	sess := rig.newSession(t, "daria")
	ctx := context.Background()

	first, err := rig.engine.HandleUserTurn(ctx, sess.ID, "Hello.", "msg-1")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	second, err := rig.engine.HandleUserTurn(ctx, sess.ID, "Hello.", "msg-1")
	if err != nil {
		t.Fatalf("replayed turn: %v", err)
	}
	if second.Content != first.Content {
		t.Fatalf("replay produced a different reply: %q vs %q", second.Content, first.Content)
	}

	got, _ := rig.store.GetSession(sess.ID)
	if len(got.Messages) != 2 {
		t.Fatalf("replay must not append messages, got %d", len(got.Messages))
	}
}

func TestResolveCharacterUsesRegistryPrompt(t *testing.T) {
	rig := newTestRig(t)
	sess := rig.newSession(t, "skeptica")

	var systemPrompt string
	rig.model.Respond = func(msgs []*schema.Message) (string, error) {
		for _, m := range msgs {
			if m.Role == schema.System {
				systemPrompt = m.Content
			}
		}
		return "What evidence backs that up?", nil
	}

	if _, err := rig.engine.HandleUserTurn(context.Background(), sess.ID, "Everyone loves the dashboard.", ""); err != nil {
		t.Fatalf("HandleUserTurn: %v", err)
	}
	if !strings.Contains(systemPrompt, "Skeptica") {
		t.Fatalf("system prompt does not carry the stock character, got %q", systemPrompt)
	}
}

func TestMonitorSeesEachVisibleMessageOnce(t *testing.T) {
	rig := newTestRig(t, "Tell me more about that.")
	sess := rig.newSession(t, "daria")
	// A monitor socket is subscribed to both rooms of the session.
	feed := topicFeed(t, rig.bus, live.SessionTopic(sess.ID), live.MonitorTopic(sess.ID))

	if _, err := rig.engine.HandleUserTurn(context.Background(), sess.ID, "The export button is hidden.", ""); err != nil {
		t.Fatalf("HandleUserTurn: %v", err)
	}

	events := drainEvents(t, feed, 2)
	for i, ev := range events {
		if ev.Type != live.EventNewMessage {
			t.Fatalf("event %d type %q", i, ev.Type)
		}
	}
	select {
	case payload := <-feed:
		t.Fatalf("duplicate delivery: %s", payload)
	case <-time.After(150 * time.Millisecond):
	}
}
