package characters

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/character"
	"github.com/Stephen55Dulaney/Daria-sub000/pkg/utils"
)

// Handler serves the interviewer prompt registry.
type Handler struct {
	registry *character.Registry
	log      *zap.Logger
}

// New creates a character handler.
func New(registry *character.Registry, log *zap.Logger) *Handler {
	return &Handler{registry: registry, log: log}
}

// RegisterRoutes mounts the character routes under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/characters", h.handleList)
	r.Get("/characters/{name}", h.handleGet)
	r.Post("/characters/{name}", h.handleSave)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.registry.List()
	if err != nil {
		h.log.Error("list characters", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "could not list characters")
		return
	}

	configs := make([]character.Character, 0, len(names))
	for _, name := range names {
		c, err := h.registry.Load(name)
		if err != nil {
			h.log.Warn("skipping unloadable character", zap.String("name", name), zap.Error(err))
			continue
		}
		configs = append(configs, c)
	}
	utils.RespondJSON(w, http.StatusOK, configs)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.Load(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, character.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "character not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, c)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "name"))

	var payload character.Character
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.AgentName == "" {
		payload.AgentName = name
	}
	if payload.DynamicPromptPrefix == "" {
		utils.RespondError(w, http.StatusBadRequest, "dynamic_prompt_prefix is required")
		return
	}

	if err := h.registry.Save(name, payload); err != nil {
		h.log.Error("save character", zap.String("name", name), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "could not save character")
		return
	}
	saved, err := h.registry.Load(name)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, saved)
}
