package observer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/live"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
)

// Observer states.
const (
	StateUninitialized = "uninitialized"
	StateObserving     = "observing"
	StateSummarized    = "summarized"
)

const (
	observerTemperature = 0.2
	contextWindow       = 3
)

const notePrompt = `You are an AI research observer analyzing user interviews in real-time.
Analyze the provided transcript segment and generate:
1. A brief, insightful note (1-2 sentences) summarizing the key point
2. 1-3 semantic tags that categorize this segment (e.g., pain points, user needs, emotions)
3. A mood estimate on a scale of -10 to +10, where:
   - Negative numbers (-10 to -1) represent negative emotions (frustration, confusion, etc.)
   - 0 represents neutral
   - Positive numbers (1 to 10) represent positive emotions (excitement, satisfaction, etc.)

Format your response exactly as follows (include all sections):
NOTE: Your insightful summary note here
TAGS: tag1, tag2, tag3
MOOD: [number]`

// Observation is one analyzed message.
type Observation struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"message_id"`
	Note      string    `json:"note"`
	Tags      []string  `json:"tags"`
	Mood      int       `json:"mood"`
	Speaker   string    `json:"speaker"`
}

// MoodPoint is one sample on the session mood timeline.
type MoodPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Mood      int       `json:"mood"`
	MessageID string    `json:"message_id"`
}

// SuggestedQuestion is one follow-up offered to the researcher.
type SuggestedQuestion struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the per-session observer memory. It is derived data: Rebuild can
// reconstruct it from the message log.
type State struct {
	SessionID          string              `json:"session_id"`
	Status             string              `json:"status"`
	Notes              []Observation       `json:"notes"`
	Tags               []string            `json:"tags"`
	MoodTimeline       []MoodPoint         `json:"mood_timeline"`
	SuggestedQuestions []SuggestedQuestion `json:"suggested_questions"`
	LastUpdate         time.Time           `json:"last_update"`
}

// Engine watches interview sessions and produces notes, tags, mood scores,
// and suggested questions. It is never on the interview critical path.
type Engine struct {
	ai    *ai.Client
	store *store.Store
	bus   *live.Bus
	log   *zap.Logger

	mu     sync.Mutex
	states map[string]*State
}

// NewEngine wires an observer engine.
func NewEngine(client *ai.Client, st *store.Store, bus *live.Bus, log *zap.Logger) *Engine {
	return &Engine{
		ai:     client,
		store:  st,
		bus:    bus,
		log:    log,
		states: make(map[string]*State),
	}
}

func (e *Engine) state(sessionID string) *State {
	if st, ok := e.states[sessionID]; ok {
		return st
	}
	st := &State{
		SessionID: sessionID,
		Status:    StateUninitialized,
		Tags:      []string{},
	}
	e.states[sessionID] = st
	return st
}

// State returns a copy of the session's observer state.
func (e *Engine) State(sessionID string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.state(sessionID)
}

// ObserveMessage analyzes one message and folds the observation into the
// session state. Model failure or an unparseable reply degrades to
// tags=["error"], mood=0 instead of surfacing an error.
func (e *Engine) ObserveMessage(ctx context.Context, sessionID string, msg session.Message) {
	obs := e.analyze(ctx, sessionID, msg)

	e.mu.Lock()
	st := e.state(sessionID)
	st.Status = StateObserving
	st.Notes = append(st.Notes, obs)
	for _, tag := range obs.Tags {
		if !containsString(st.Tags, tag) {
			st.Tags = append(st.Tags, tag)
		}
	}
	st.MoodTimeline = append(st.MoodTimeline, MoodPoint{
		Timestamp: obs.Timestamp,
		Mood:      obs.Mood,
		MessageID: obs.MessageID,
	})
	st.LastUpdate = time.Now().UTC()
	e.mu.Unlock()

	if e.bus != nil {
		event := live.NewEvent(live.EventNewObservation, sessionID, map[string]interface{}{
			"observation": obs,
		})
		if err := e.bus.PublishToMonitor(sessionID, event); err != nil {
			e.log.Warn("observation publish failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}

func (e *Engine) analyze(ctx context.Context, sessionID string, msg session.Message) Observation {
	speaker := session.SpeakerLabel(msg.Role)

	contextText := e.contextFor(sessionID, msg)
	query := fmt.Sprintf(`Analyze this interview segment:

SPEAKER: %s
MESSAGE: %s

Previous context (if available):
%s`, speaker, msg.Content, contextText)

	messageID := msg.ID
	if messageID == "" {
		messageID = uuid.NewString()
	}
	obs := Observation{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		MessageID: messageID,
		Speaker:   speaker,
	}

	reply, err := e.ai.Generate(ctx, ai.Request{
		System:      notePrompt,
		Query:       query,
		Temperature: observerTemperature,
	})
	if err != nil {
		e.log.Warn("observer model call failed", zap.String("session_id", sessionID), zap.Error(err))
		obs.Note = "Error analyzing message: " + err.Error()
		obs.Tags = []string{"error"}
		obs.Mood = 0
		return obs
	}

	note, tags, mood, ok := parseObservation(reply)
	if !ok {
		e.log.Warn("unparseable observer reply", zap.String("session_id", sessionID))
		obs.Note = "Error analyzing message: unparseable observer response"
		obs.Tags = []string{"error"}
		obs.Mood = 0
		return obs
	}
	obs.Note = note
	obs.Tags = tags
	obs.Mood = mood
	return obs
}

// contextFor renders up to the last three messages preceding msg.
func (e *Engine) contextFor(sessionID string, msg session.Message) string {
	sess, err := e.store.GetSession(sessionID)
	if err != nil {
		return ""
	}
	prior := sess.Messages
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i].ID == msg.ID {
			prior = prior[:i]
			break
		}
	}
	start := 0
	if len(prior) > contextWindow {
		start = len(prior) - contextWindow
	}
	var b strings.Builder
	for _, m := range prior[start:] {
		b.WriteString(session.SpeakerLabel(m.Role) + ": " + m.Content + "\n")
	}
	return b.String()
}

// parseObservation extracts NOTE/TAGS/MOOD lines. MOOD accepts both bracket
// and bare forms; the value is clamped to [-10, 10]. ok is false when the
// reply carries neither a note nor tags.
func parseObservation(reply string) (note string, tags []string, mood int, ok bool) {
	for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "NOTE:"):
			note = strings.TrimSpace(line[len("NOTE:"):])
		case strings.HasPrefix(line, "TAGS:"):
			for _, tag := range strings.Split(line[len("TAGS:"):], ",") {
				if t := strings.TrimSpace(tag); t != "" {
					tags = append(tags, t)
				}
			}
		case strings.HasPrefix(line, "MOOD:"):
			mood = parseMood(line[len("MOOD:"):])
		}
	}
	if note == "" && len(tags) == 0 {
		return "", nil, 0, false
	}
	return note, tags, clampMood(mood), true
}

func parseMood(raw string) int {
	raw = strings.TrimSpace(raw)
	if open := strings.Index(raw, "["); open >= 0 {
		if close := strings.Index(raw[open:], "]"); close > 0 {
			raw = raw[open+1 : open+close]
		}
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return val
}

func clampMood(mood int) int {
	if mood > 10 {
		return 10
	}
	if mood < -10 {
		return -10
	}
	return mood
}

// Rebuild discards the session state and re-derives it from the message log.
func (e *Engine) Rebuild(ctx context.Context, sessionID string, messages []session.Message) {
	e.mu.Lock()
	delete(e.states, sessionID)
	e.mu.Unlock()

	for _, msg := range messages {
		e.ObserveMessage(ctx, sessionID, msg)
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
