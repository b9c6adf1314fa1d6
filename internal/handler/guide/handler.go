package guide

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	guidemodel "github.com/Stephen55Dulaney/Daria-sub000/internal/model/guide"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
	"github.com/Stephen55Dulaney/Daria-sub000/pkg/utils"
)

// Handler serves the discussion-guide surface.
type Handler struct {
	store    *store.Store
	validate *validator.Validate
	log      *zap.Logger
}

// New creates a guide handler.
func New(st *store.Store, log *zap.Logger) *Handler {
	return &Handler{store: st, validate: validator.New(), log: log}
}

// RegisterRoutes mounts the guide routes under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/discussion_guides", h.handleList)
	r.Get("/discussion_guide/{guideID}", h.handleGet)
	r.Get("/discussion_guide/{guideID}/sessions", h.handleSessions)
	r.Post("/discussion_guide/{guideID}/archive", h.handleArchive)
	r.Post("/discussion_guide/{guideID}/duplicate", h.handleDuplicate)
	r.Delete("/discussion_guide/{guideID}", h.handleDelete)
}

type createGuideRequest struct {
	Title           string              `json:"title" validate:"required"`
	Project         string              `json:"project"`
	InterviewType   string              `json:"interview_type"`
	Topic           string              `json:"topic"`
	Context         string              `json:"context"`
	Goals           string              `json:"goals"`
	Character       string              `json:"character"`
	VoiceID         string              `json:"voice_id"`
	InterviewPrompt string              `json:"interview_prompt"`
	AnalysisPrompt  string              `json:"analysis_prompt"`
	CustomQuestions []string            `json:"custom_questions"`
	Options         *guidemodel.Options `json:"options"`
	TargetAudience  string              `json:"target_audience"`
}

// HandleCreate serves POST /discussion_guide/create.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var payload createGuideRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	g := &guidemodel.DiscussionGuide{
		Title:           payload.Title,
		Project:         payload.Project,
		InterviewType:   payload.InterviewType,
		Topic:           payload.Topic,
		Context:         payload.Context,
		Goals:           payload.Goals,
		Character:       payload.Character,
		VoiceID:         payload.VoiceID,
		InterviewPrompt: payload.InterviewPrompt,
		AnalysisPrompt:  payload.AnalysisPrompt,
		TargetAudience:  payload.TargetAudience,
	}
	for _, q := range payload.CustomQuestions {
		g.CustomQuestions = append(g.CustomQuestions, guidemodel.CustomQuestion{Text: q})
	}
	if payload.Options != nil {
		g.Options = *payload.Options
	}

	if err := h.store.CreateGuide(g); err != nil {
		h.log.Error("create guide", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "could not create guide")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, g)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active_only") == "true"
	guides, err := h.store.ListGuides(activeOnly)
	if err != nil {
		h.log.Error("list guides", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "could not list guides")
		return
	}
	utils.RespondJSON(w, http.StatusOK, guides)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	g, err := h.store.GetGuide(chi.URLParam(r, "guideID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, g)
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	guideID := chi.URLParam(r, "guideID")
	if _, err := h.store.GetGuide(guideID); err != nil {
		respondStoreError(w, err)
		return
	}
	sessions, err := h.store.ListSessionsForGuide(guideID)
	if err != nil {
		h.log.Error("list guide sessions", zap.String("guide_id", guideID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "could not list sessions")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	g, err := h.store.ArchiveGuide(chi.URLParam(r, "guideID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, g)
}

func (h *Handler) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}
	// Body is optional; an empty body duplicates with a derived title.
	_ = json.NewDecoder(r.Body).Decode(&payload)

	g, err := h.store.DuplicateGuide(chi.URLParam(r, "guideID"), payload.Title)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, g)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteGuide(chi.URLParam(r, "guideID")); err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrGuideNotFound) {
		utils.RespondError(w, http.StatusNotFound, "guide not found")
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
