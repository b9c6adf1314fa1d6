package speech

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	speechsvc "github.com/Stephen55Dulaney/Daria-sub000/internal/service/speech"
	"github.com/Stephen55Dulaney/Daria-sub000/pkg/utils"
)

const maxAudioUpload = 16 << 20

// Handler forwards speech requests to the external TTS/STT services.
type Handler struct {
	client *speechsvc.Client
	log    *zap.Logger
}

// New creates a speech handler.
func New(client *speechsvc.Client, log *zap.Logger) *Handler {
	return &Handler{client: client, log: log}
}

// RegisterRoutes mounts the speech routes under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/speech/tts", h.handleTTS)
	r.Post("/speech/stt", h.handleSTT)
}

func (h *Handler) handleTTS(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text    string `json:"text"`
		VoiceID string `json:"voice_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	audio, err := h.client.Synthesize(r.Context(), payload.Text, payload.VoiceID)
	if err != nil {
		if errors.Is(err, speechsvc.ErrNotConfigured) {
			utils.RespondError(w, http.StatusServiceUnavailable, "text-to-speech not configured")
			return
		}
		h.log.Error("tts forward", zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", audio.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio.Data); err != nil {
		h.log.Warn("write tts audio", zap.Error(err))
	}
}

func (h *Handler) handleSTT(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "expected multipart form with an audio file")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "no audio file provided")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "could not read audio file")
		return
	}

	text, err := h.client.Transcribe(r.Context(), audio, header.Filename)
	if err != nil {
		if errors.Is(err, speechsvc.ErrNotConfigured) {
			utils.RespondError(w, http.StatusServiceUnavailable, "speech-to-text not configured")
			return
		}
		h.log.Error("stt forward", zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"text":    text,
	})
}
