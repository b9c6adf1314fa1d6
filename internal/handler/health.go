package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Stephen55Dulaney/Daria-sub000/pkg/utils"
)

// EmbeddingChecker probes the embedding provider's reachability.
type EmbeddingChecker interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// healthHandler reports the reachability of every external dependency plus
// the loaded characters. The LLM is required; its absence makes the overall
// status "error".
func healthHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		embeddingsUp := false
		if d.Embeddings != nil {
			_, err := d.Embeddings.Embed(ctx, []string{"ping"})
			embeddingsUp = err == nil
		}

		ttsUp, sttUp := false, false
		if d.Speech != nil {
			ttsUp = d.Speech.TTSHealthy(ctx)
			sttUp = d.Speech.STTHealthy(ctx)
		}

		var characters []string
		if d.Characters != nil {
			characters, _ = d.Characters.List()
		}

		status := "ok"
		code := http.StatusOK
		if !d.AIEnabled {
			status = "error"
			code = http.StatusServiceUnavailable
		}

		utils.RespondJSON(w, code, map[string]interface{}{
			"status":      status,
			"llm":         d.AIEnabled,
			"embeddings":  embeddingsUp,
			"tts_service": ttsUp,
			"stt_service": sttUp,
			"characters":  characters,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
