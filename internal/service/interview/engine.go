package interview

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/live"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/character"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/guide"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
)

// ErrSessionCompleted rejects turns on a session that is no longer active.
var ErrSessionCompleted = errors.New("session already completed")

// apologyReply is written as the assistant turn when the model call fails.
// The turn is not retried; the next user message starts fresh.
const apologyReply = "I apologize, but I'm having trouble formulating a response. Could you please share more about your experience or perspective on this topic?"

const (
	interviewTemperature = 0.7
	defaultCharacter     = "daria"
)

// Observer receives messages after the interview reply is flushed. It must
// never block turn latency; the engine invokes it from a goroutine.
type Observer interface {
	ObserveMessage(ctx context.Context, sessionID string, msg session.Message)
	GenerateSummary(ctx context.Context, sessionID string) (map[string]interface{}, error)
}

// Analyzer runs post-completion analysis and persists the result.
type Analyzer interface {
	AnalyzeSession(ctx context.Context, sessionID string) (map[string]interface{}, error)
}

// Engine drives turn-based interviews. Turns are serialized per session by a
// keyed mutex; distinct sessions proceed concurrently.
type Engine struct {
	store      *store.Store
	characters *character.Registry
	ai         *ai.Client
	bus        *live.Bus
	log        *zap.Logger

	// optional hooks, nil-safe
	observer Observer
	analyzer Analyzer

	mu            sync.Mutex
	sessionLocks  map[string]*sync.Mutex
	lastCharacter map[string]string
}

// NewEngine wires an interview engine.
func NewEngine(st *store.Store, characters *character.Registry, client *ai.Client, bus *live.Bus, log *zap.Logger) *Engine {
	return &Engine{
		store:         st,
		characters:    characters,
		ai:            client,
		bus:           bus,
		log:           log,
		sessionLocks:  make(map[string]*sync.Mutex),
		lastCharacter: make(map[string]string),
	}
}

// SetObserver attaches the post-turn observer hook.
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// SetAnalyzer attaches the completion-time analysis hook.
func (e *Engine) SetAnalyzer(a Analyzer) { e.analyzer = a }

func (e *Engine) lockSession(id string) *sync.Mutex {
	e.mu.Lock()
	lock, ok := e.sessionLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.sessionLocks[id] = lock
	}
	e.mu.Unlock()
	lock.Lock()
	return lock
}

// Start seeds the character greeting as the first assistant message. Calling
// it on a session that already has history is a no-op.
func (e *Engine) Start(ctx context.Context, sessionID string) (*session.Message, error) {
	lock := e.lockSession(sessionID)
	defer lock.Unlock()

	sess, err := e.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Terminal() {
		return nil, ErrSessionCompleted
	}
	if len(sess.Messages) > 0 {
		return nil, nil
	}

	char := e.resolveCharacter(sess, nil)
	greeting := char.Greeting
	if greeting == "" {
		greeting = defaultGreeting(displayName(char.AgentName))
	}

	msg := session.Message{Role: session.RoleAssistant, Content: greeting}
	updated, err := e.store.AddMessage(sessionID, msg)
	if err != nil {
		return nil, err
	}
	persisted := updated.Messages[len(updated.Messages)-1]
	e.fanOutMessage(sessionID, persisted)
	e.rememberCharacter(sessionID, char.AgentName)
	return &persisted, nil
}

// HandleUserTurn runs one full turn: persist the user message, generate and
// persist the assistant reply, fan both out, and hand the exchange to the
// observer. messageID may be empty; when set it makes the turn idempotent.
func (e *Engine) HandleUserTurn(ctx context.Context, sessionID, content, messageID string) (*session.Message, error) {
	lock := e.lockSession(sessionID)
	defer lock.Unlock()

	sess, err := e.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == session.StatusExpired {
		return nil, store.ErrSessionExpired
	}
	if sess.Terminal() {
		return nil, ErrSessionCompleted
	}

	if messageID != "" {
		if reply := replyFor(sess, messageID); reply != nil {
			return reply, nil
		}
	}

	userMsg := session.Message{ID: messageID, Role: session.RoleUser, Content: content}
	sess, err = e.store.AddMessage(sessionID, userMsg)
	if err != nil {
		return nil, err
	}
	persistedUser := sess.Messages[len(sess.Messages)-1]
	e.fanOutMessage(sessionID, persistedUser)

	var g *guide.DiscussionGuide
	if sess.GuideID != "" {
		if loaded, err := e.store.GetGuide(sess.GuideID); err == nil {
			g = loaded
		}
	}
	char := e.resolveCharacter(sess, g)

	if sess = e.reassertIdentity(sess, char); sess == nil {
		return nil, errors.New("session vanished mid-turn")
	}

	system := composeSystemPrompt(char, g, sess)
	history := sess.Messages[:len(sess.Messages)-1]

	reply, err := e.ai.Generate(ctx, ai.Request{
		System:      system,
		History:     history,
		Query:       content,
		Temperature: interviewTemperature,
	})
	if err != nil {
		e.log.Error("interview model call failed",
			zap.String("session_id", sessionID), zap.Error(err))
		reply = apologyReply
	}

	assistantMsg := session.Message{Role: session.RoleAssistant, Content: reply}
	sess, storeErr := e.store.AddMessage(sessionID, assistantMsg)
	if storeErr != nil {
		return nil, storeErr
	}
	persisted := sess.Messages[len(sess.Messages)-1]
	e.fanOutMessage(sessionID, persisted)

	e.markAskedQuestions(sess, reply)

	if e.observer != nil {
		userCopy, assistantCopy := persistedUser, persisted
		go func() {
			obsCtx := context.Background()
			e.observer.ObserveMessage(obsCtx, sessionID, userCopy)
			e.observer.ObserveMessage(obsCtx, sessionID, assistantCopy)
		}()
	}
	return &persisted, nil
}

// SetCharacter switches the session's character. The identity directive is
// written on the next turn.
func (e *Engine) SetCharacter(ctx context.Context, sessionID, name string) error {
	if _, err := e.characters.Load(name); err != nil {
		return err
	}

	lock := e.lockSession(sessionID)
	defer lock.Unlock()

	sess, err := e.store.GetSession(sessionID)
	if err != nil {
		return err
	}
	if sess.Terminal() {
		return ErrSessionCompleted
	}
	sess.Character = name
	return e.store.UpdateSession(sess)
}

// Complete freezes the session, notifies monitors, optionally generates an
// observer summary, and runs analysis when the guide opted in. Analysis
// failure is logged; completion stands.
func (e *Engine) Complete(ctx context.Context, sessionID string, withSummary bool) (*session.Session, error) {
	lock := e.lockSession(sessionID)
	defer lock.Unlock()

	sess, err := e.store.CompleteSession(sessionID)
	if err != nil {
		return nil, err
	}
	e.publishMonitor(sessionID, live.NewEvent(live.EventSessionCompleted, sessionID, map[string]interface{}{
		"status": sess.Status,
	}))

	if withSummary && e.observer != nil {
		if summary, err := e.observer.GenerateSummary(ctx, sessionID); err != nil {
			e.log.Warn("completion summary failed", zap.String("session_id", sessionID), zap.Error(err))
		} else {
			e.publishMonitor(sessionID, live.NewEvent(live.EventObserverSummary, sessionID, summary))
		}
	}

	if e.analyzer != nil && e.analysisEnabled(sess) {
		if _, err := e.analyzer.AnalyzeSession(ctx, sessionID); err != nil {
			e.log.Error("post-completion analysis failed",
				zap.String("session_id", sessionID), zap.Error(err))
		} else {
			e.publishMonitor(sessionID, live.NewEvent(live.EventAnalysisComplete, sessionID, nil))
			sess, _ = e.store.GetSession(sessionID)
		}
	}
	return sess, nil
}

func (e *Engine) analysisEnabled(sess *session.Session) bool {
	if sess.GuideID == "" {
		return false
	}
	g, err := e.store.GetGuide(sess.GuideID)
	if err != nil {
		return false
	}
	return g.Options.Analysis
}

// resolveCharacter picks session over guide over the default, falling back
// to a bare generic character when the registry misses.
func (e *Engine) resolveCharacter(sess *session.Session, g *guide.DiscussionGuide) *character.Character {
	name := sess.Character
	if name == "" && g != nil {
		name = g.Character
	}
	if name == "" {
		name = defaultCharacter
	}
	char, err := e.characters.Load(name)
	if err != nil {
		e.log.Warn("character not found, using generic interviewer", zap.String("character", name))
		return &character.Character{AgentName: name}
	}
	return &char
}

// reassertIdentity writes the identity system message when the effective
// character changed since the engine last spoke for this session. Returns
// the freshest session document.
func (e *Engine) reassertIdentity(sess *session.Session, char *character.Character) *session.Session {
	e.mu.Lock()
	last, seen := e.lastCharacter[sess.ID]
	e.lastCharacter[sess.ID] = char.AgentName
	e.mu.Unlock()

	if !seen || last == char.AgentName {
		return sess
	}

	directive := session.Message{
		Role:    session.RoleSystem,
		Content: identityMessage(displayName(char.AgentName)),
	}
	updated, err := e.store.AddMessage(sess.ID, directive)
	if err != nil {
		e.log.Error("identity directive persist failed", zap.String("session_id", sess.ID), zap.Error(err))
		return sess
	}
	e.fanOutMessage(sess.ID, updated.Messages[len(updated.Messages)-1])
	return updated
}

func (e *Engine) rememberCharacter(sessionID, name string) {
	e.mu.Lock()
	e.lastCharacter[sessionID] = name
	e.mu.Unlock()
}

// markAskedQuestions flags scripted questions that the reply visibly asked.
func (e *Engine) markAskedQuestions(sess *session.Session, reply string) {
	lowered := strings.ToLower(reply)
	changed := false
	for i, q := range sess.CustomQuestions {
		if q.Asked || q.Text == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(strings.TrimRight(q.Text, "?.! "))) {
			sess.CustomQuestions[i].Asked = true
			changed = true
		}
	}
	if changed {
		if err := e.store.UpdateSession(sess); err != nil {
			e.log.Warn("asked-state update failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
}

func (e *Engine) fanOutMessage(sessionID string, msg session.Message) {
	if e.bus == nil {
		return
	}
	event := live.NewEvent(live.EventNewMessage, sessionID, map[string]interface{}{
		"message": msg,
	})
	// Monitors subscribe to the session topic too, so visible messages go
	// out once; the monitor topic carries only what participants must not see.
	if msg.ParticipantVisible() {
		if err := e.bus.PublishToSession(sessionID, event); err != nil {
			e.log.Warn("session fanout failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return
	}
	if err := e.bus.PublishToMonitor(sessionID, event); err != nil {
		e.log.Warn("monitor fanout failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (e *Engine) publishMonitor(sessionID string, event live.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.PublishToMonitor(sessionID, event); err != nil {
		e.log.Warn("monitor publish failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// replyFor returns the assistant message that followed the given user
// message id, if the turn already ran.
func replyFor(sess *session.Session, messageID string) *session.Message {
	for i, msg := range sess.Messages {
		if msg.ID != messageID {
			continue
		}
		for j := i + 1; j < len(sess.Messages); j++ {
			if sess.Messages[j].Role == session.RoleAssistant {
				reply := sess.Messages[j]
				return &reply
			}
		}
		return nil
	}
	return nil
}
