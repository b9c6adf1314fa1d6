package ws

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/live"
	sessionmodel "github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
	"github.com/Stephen55Dulaney/Daria-sub000/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin filtering happens at the CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler bridges websocket connections onto the live channel.
type Handler struct {
	store *store.Store
	bus   *live.Bus
	hub   *live.Hub
	log   *zap.Logger
}

// New creates a websocket handler.
func New(st *store.Store, bus *live.Bus, hub *live.Hub, log *zap.Logger) *Handler {
	return &Handler{store: st, bus: bus, hub: hub, log: log}
}

// RegisterRoutes mounts the websocket routes under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/session/{sessionID}", h.handleSessionSocket)
	r.Get("/ws/monitor/{sessionID}", h.handleMonitorSocket)
}

// handleSessionSocket serves the participant connection: session-room
// events only, no inbound commands.
func (h *Handler) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.store.GetSession(sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	client := live.NewClient(conn, sessionID, []string{live.SessionTopic(sessionID)}, nil, h.log)
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump(h.hub)
}

// handleMonitorSocket serves the researcher connection: both rooms, plus
// inbound researcher messages and interventions.
func (h *Handler) handleMonitorSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.store.GetSession(sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	topics := []string{live.SessionTopic(sessionID), live.MonitorTopic(sessionID)}
	client := live.NewClient(conn, sessionID, topics, h.handleInbound, h.log)
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump(h.hub)
}

// handleInbound dispatches researcher commands arriving on a monitor socket.
func (h *Handler) handleInbound(ctx context.Context, sessionID string, event live.Event) {
	switch event.Type {
	case live.EventResearcherMessage:
		h.handleResearcherMessage(sessionID, event)
	case live.EventIntervention:
		h.handleIntervention(sessionID, event)
	default:
		h.log.Debug("ignoring inbound event",
			zap.String("session_id", sessionID),
			zap.String("type", event.Type))
	}
}

func (h *Handler) handleResearcherMessage(sessionID string, event live.Event) {
	content := stringField(event.Data, "content")
	if content == "" {
		return
	}

	switch event.Subtype {
	case live.SubtypeSuggestion:
		hidden := false
		msg, err := h.persist(sessionID, sessionmodel.Message{
			Role:                 sessionmodel.RoleSystem,
			Content:              content,
			VisibleToParticipant: &hidden,
			ResearcherGenerated:  true,
		})
		if err != nil {
			return
		}
		echo := live.NewEvent(live.EventResearcherMessage, sessionID, map[string]interface{}{"message": msg})
		echo.Subtype = live.SubtypeSuggestion
		h.publishMonitor(sessionID, echo)

	case live.SubtypeCustomQuestion:
		sess, err := h.store.GetSession(sessionID)
		if err != nil {
			h.log.Warn("custom question for unknown session", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		sess.CustomQuestions = append(sess.CustomQuestions, sessionmodel.CustomQuestion{Text: content})
		if err := h.store.UpdateSession(sess); err != nil {
			h.log.Error("append custom question", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		echo := live.NewEvent(live.EventResearcherMessage, sessionID, map[string]interface{}{"question": content})
		echo.Subtype = live.SubtypeCustomQuestion
		h.publishMonitor(sessionID, echo)

	case live.SubtypeDirectQuestion:
		msg, err := h.persist(sessionID, sessionmodel.Message{
			Role:                sessionmodel.RoleAssistant,
			Content:             content,
			ResearcherGenerated: true,
		})
		if err != nil {
			return
		}
		h.publishSession(sessionID, live.NewEvent(live.EventNewMessage, sessionID, map[string]interface{}{
			"message": msg,
		}))

	default:
		h.log.Debug("unknown researcher message subtype",
			zap.String("session_id", sessionID),
			zap.String("subtype", event.Subtype))
	}
}

// interventionDirectives translate monitor controls into system directives
// the interview model honors on its next reply.
var interventionDirectives = map[string]string{
	live.InterventionChangeTopic: "The researcher asks you to move the conversation to a different topic now.",
	live.InterventionPause:       "The researcher asks you to pause the interview. Acknowledge briefly and wait for the participant.",
	live.InterventionGoDeeper:    "The researcher asks you to probe deeper into the participant's last answer with follow-up questions.",
	live.InterventionSummarize:   "The researcher asks you to summarize what the participant has shared so far before continuing.",
}

func (h *Handler) handleIntervention(sessionID string, event live.Event) {
	kind := event.Subtype
	if kind == "" {
		kind = stringField(event.Data, "intervention_type")
	}
	directive, ok := interventionDirectives[kind]
	if !ok {
		h.log.Warn("unknown intervention type",
			zap.String("session_id", sessionID),
			zap.String("intervention_type", kind))
		return
	}
	if note := stringField(event.Data, "note"); note != "" {
		directive = directive + " Additional guidance: " + note
	}

	msg, err := h.persist(sessionID, sessionmodel.Message{
		Role:                sessionmodel.RoleSystem,
		Content:             directive,
		ResearcherGenerated: true,
	})
	if err != nil {
		return
	}
	fanout := live.NewEvent(live.EventIntervention, sessionID, map[string]interface{}{"message": msg})
	fanout.Subtype = kind
	h.publishSession(sessionID, fanout)
}

func (h *Handler) persist(sessionID string, msg sessionmodel.Message) (*sessionmodel.Message, error) {
	msg.ID = uuid.NewString()
	sess, err := h.store.AddMessage(sessionID, msg)
	if err != nil {
		h.log.Error("persist inbound message",
			zap.String("session_id", sessionID),
			zap.String("role", msg.Role),
			zap.Error(err))
		return nil, err
	}
	stored := sess.Messages[len(sess.Messages)-1]
	return &stored, nil
}

func (h *Handler) publishMonitor(sessionID string, event live.Event) {
	if err := h.bus.PublishToMonitor(sessionID, event); err != nil {
		h.log.Warn("publish to monitor", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// publishSession emits on the session topic. Monitor sockets subscribe to
// that topic as well, so one publish reaches both rooms exactly once.
func (h *Handler) publishSession(sessionID string, event live.Event) {
	if err := h.bus.PublishToSession(sessionID, event); err != nil {
		h.log.Warn("publish to session", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	v, _ := data[key].(string)
	return v
}
