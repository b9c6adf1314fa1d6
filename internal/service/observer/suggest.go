package observer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/live"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
)

const suggestPrompt = `You are an AI research observer assisting a live user interview.
Based on the recent transcript, propose three to five open, non-leading
follow-up questions the interviewer could ask next. Each question should probe
for deeper insight into the participant's experiences, needs, or pain points.

Return one question per line, with no numbering or commentary.`

// fallbackQuestions keeps the monitor UI populated when the model is down.
var fallbackQuestions = []string{
	"That's interesting. Could you tell me more about that?",
	"How did that make you feel?",
	"Can you provide a specific example of that?",
	"What do you think could be improved about that?",
	"What challenges did you face with that?",
}

const suggestHistoryWindow = 10

// SuggestQuestions produces follow-up questions for the researcher,
// deduplicated against everything suggested earlier in the session. On model
// failure it serves the fixed fallback list without recording it.
func (e *Engine) SuggestQuestions(ctx context.Context, sessionID string) []SuggestedQuestion {
	transcript := e.recentTranscript(sessionID)

	query := fmt.Sprintf(`Recent transcript:

%s

Suggest follow-up questions.`, transcript)

	reply, err := e.ai.Generate(ctx, ai.Request{
		System:      suggestPrompt,
		Query:       query,
		Temperature: observerTemperature,
	})
	if err != nil {
		e.log.Warn("question suggestion failed, serving fallback",
			zap.String("session_id", sessionID), zap.Error(err))
		return staticQuestions(fallbackQuestions)
	}

	candidates := parseQuestionLines(reply)
	if len(candidates) == 0 {
		return staticQuestions(fallbackQuestions)
	}

	now := time.Now().UTC()
	e.mu.Lock()
	st := e.state(sessionID)
	seen := make(map[string]struct{}, len(st.SuggestedQuestions))
	for _, q := range st.SuggestedQuestions {
		seen[normalizeQuestion(q.Text)] = struct{}{}
	}
	var fresh []SuggestedQuestion
	for _, text := range candidates {
		key := normalizeQuestion(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		q := SuggestedQuestion{ID: uuid.NewString(), Text: text, Timestamp: now}
		st.SuggestedQuestions = append(st.SuggestedQuestions, q)
		fresh = append(fresh, q)
		if len(fresh) == 5 {
			break
		}
	}
	st.LastUpdate = now
	e.mu.Unlock()

	if len(fresh) > 0 && e.bus != nil {
		event := live.NewEvent(live.EventSuggestedQuestions, sessionID, map[string]interface{}{
			"questions": fresh,
		})
		if err := e.bus.PublishToMonitor(sessionID, event); err != nil {
			e.log.Warn("suggestion publish failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return fresh
}

func (e *Engine) recentTranscript(sessionID string) string {
	sess, err := e.store.GetSession(sessionID)
	if err != nil {
		return ""
	}
	msgs := sess.Messages
	if len(msgs) > suggestHistoryWindow {
		msgs = msgs[len(msgs)-suggestHistoryWindow:]
	}
	var b strings.Builder
	for _, m := range msgs {
		if m.Role == session.RoleSystem {
			continue
		}
		b.WriteString(session.SpeakerLabel(m.Role) + ": " + m.Content + "\n")
	}
	return b.String()
}

func parseQuestionLines(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•*0123456789. ")
		if line == "" || !strings.Contains(line, "?") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func normalizeQuestion(q string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimRight(q, "?.! ")))
}

func staticQuestions(texts []string) []SuggestedQuestion {
	now := time.Now().UTC()
	out := make([]SuggestedQuestion, len(texts))
	for i, text := range texts {
		out[i] = SuggestedQuestion{ID: uuid.NewString(), Text: text, Timestamp: now}
	}
	return out
}
