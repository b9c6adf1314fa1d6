package research

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/semantic"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/analysis"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
	"github.com/Stephen55Dulaney/Daria-sub000/pkg/utils"
)

// Handler serves corpus search, ingestion, and research analysis.
type Handler struct {
	analysis *analysis.Service
	pipeline *semantic.Pipeline
	validate *validator.Validate
	log      *zap.Logger
}

// New creates a research handler. Pipeline may be nil when the vector layer
// is disabled; ingest then answers 503 while search degrades to text mode.
func New(analysisSvc *analysis.Service, pipeline *semantic.Pipeline, log *zap.Logger) *Handler {
	return &Handler{analysis: analysisSvc, pipeline: pipeline, validate: validator.New(), log: log}
}

// RegisterRoutes mounts the research routes under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/semantic_search", h.handleSearch)
	r.Post("/semantic_ingest", h.handleIngest)
	r.Post("/research_session/{sessionID}/analyze", h.handleAnalyzeSession)
	r.Post("/research_session/analyze", h.handleAnalyzeSessions)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("query")
	if query == "" {
		query = q.Get("q")
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	records, err := h.analysis.Search(r.Context(), analysis.SearchRequest{
		Query:     query,
		Mode:      q.Get("mode"),
		SessionID: q.Get("session_id"),
		Limit:     limit,
	})
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"count":   len(records),
		"results": records,
	})
}

type ingestRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "semantic pipeline unavailable")
		return
	}
	var payload ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	chunks, err := h.pipeline.Ingest(r.Context(), payload.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		h.log.Error("semantic ingest", zap.String("session_id", payload.SessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": payload.SessionID,
		"chunks":     chunks,
	})
}

func (h *Handler) handleAnalyzeSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.analysis.AnalyzeSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

type analyzeSessionsRequest struct {
	SessionIDs []string `json:"session_ids" validate:"required,min=1"`
}

func (h *Handler) handleAnalyzeSessions(w http.ResponseWriter, r *http.Request) {
	var payload analyzeSessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.analysis.AnalyzeSessions(r.Context(), payload.SessionIDs)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}
