package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	sessionmodel "github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/semantic"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/analysis"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/interview"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
	"github.com/Stephen55Dulaney/Daria-sub000/pkg/utils"
)

// Handler serves the session lifecycle surface.
type Handler struct {
	store    *store.Store
	engine   *interview.Engine
	analysis *analysis.Service
	pipeline *semantic.Pipeline
	validate *validator.Validate
	log      *zap.Logger
}

// New creates a session handler. Engine, analysis, and pipeline may be nil
// when the corresponding subsystem is disabled; affected routes answer 503.
func New(st *store.Store, engine *interview.Engine, analysisSvc *analysis.Service, pipeline *semantic.Pipeline, log *zap.Logger) *Handler {
	return &Handler{
		store:    st,
		engine:   engine,
		analysis: analysisSvc,
		pipeline: pipeline,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes mounts the session routes under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session/create", h.HandleCreate)
	r.Get("/session/{sessionID}", h.handleGet)
	r.Post("/session/{sessionID}/add_message", h.handleAddMessage)
	r.Get("/session/{sessionID}/messages", h.handleMessages)
	r.Post("/session/{sessionID}/complete", h.handleComplete)
	r.Post("/session/{sessionID}/analyze", h.handleAnalyze)
	r.Delete("/session/{sessionID}", h.handleDelete)
	r.Post("/upload_transcript", h.handleUploadTranscript)
}

type createSessionRequest struct {
	GuideID          string                    `json:"guide_id" validate:"required"`
	Interviewee      *sessionmodel.Interviewee `json:"interviewee"`
	ParticipantName  string                    `json:"participant_name"`
	ParticipantEmail string                    `json:"participant_email"`
}

// HandleCreate serves POST /api/session/create and the legacy
// POST /interview/create alias. The new session opens with the character's
// greeting already in place.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var payload createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	interviewee := sessionmodel.Interviewee{}
	if payload.Interviewee != nil {
		interviewee = *payload.Interviewee
	}
	if interviewee.Name == "" {
		interviewee.Name = payload.ParticipantName
	}
	if interviewee.Email == "" {
		interviewee.Email = payload.ParticipantEmail
	}

	sess, err := h.store.CreateSession(payload.GuideID, interviewee)
	if err != nil {
		if errors.Is(err, store.ErrGuideNotFound) {
			utils.RespondError(w, http.StatusNotFound, "guide not found")
			return
		}
		h.log.Error("create session", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	if h.engine != nil {
		if _, err := h.engine.Start(r.Context(), sess.ID); err != nil {
			h.log.Warn("could not seed greeting", zap.String("session_id", sess.ID), zap.Error(err))
		}
		if refreshed, err := h.store.GetSession(sess.ID); err == nil {
			sess = refreshed
		}
	}
	utils.RespondJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

type addMessageRequest struct {
	Content   string `json:"content" validate:"required"`
	MessageID string `json:"message_id"`
}

// handleAddMessage runs one interview turn: the participant's message is
// persisted and the interviewer's reply is generated inline.
func (h *Handler) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "interview engine unavailable")
		return
	}
	var payload addMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	reply, err := h.engine.HandleUserTurn(r.Context(), sessionID, payload.Content, payload.MessageID)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.store.GetMessages(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	if r.URL.Query().Get("participant") == "true" {
		visible := make([]sessionmodel.Message, 0, len(messages))
		for _, msg := range messages {
			if msg.Role != sessionmodel.RoleSystem && msg.ParticipantVisible() {
				visible = append(visible, msg)
			}
		}
		messages = visible
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Summary *bool `json:"summary"`
	}
	// Body is optional; the default generates the observer summary.
	_ = json.NewDecoder(r.Body).Decode(&payload)
	withSummary := payload.Summary == nil || *payload.Summary

	sessionID := chi.URLParam(r, "sessionID")
	if h.engine == nil {
		sess, err := h.store.CompleteSession(sessionID)
		if err != nil {
			respondSessionError(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, sess)
		return
	}

	sess, err := h.engine.Complete(r.Context(), sessionID, withSummary)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if h.analysis == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "analysis unavailable")
		return
	}
	result, err := h.analysis.AnalyzeSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

// handleDelete removes the session document and purges its vectors.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if h.pipeline != nil {
		if err := h.pipeline.Delete(r.Context(), sessionID); err != nil {
			h.log.Warn("could not purge session vectors", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	if err := h.store.DeleteSession(sessionID); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrGuideNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrSessionExpired), errors.Is(err, interview.ErrSessionCompleted):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
