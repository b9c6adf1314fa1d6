package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
)

// multiSessionPrompt demands strict JSON so the cross-session result can be
// consumed programmatically.
const multiSessionPrompt = `You are a senior UX researcher reviewing participant statements collected across multiple interview sessions. Each statement is prefixed with the session it came from. Identify patterns that recur across sessions, not observations from a single participant.

Respond with a single JSON object and nothing else, in exactly this shape:
{"key_findings": ["..."], "user_needs": ["..."], "pain_points": ["..."], "opportunities": ["..."], "summary": "..."}`

// AnalyzeSessions runs a cross-session pattern analysis over the participant
// turns of the given sessions. When the model's reply is not valid JSON the
// raw text is returned under raw_text together with the parse error.
func (s *Service) AnalyzeSessions(ctx context.Context, sessionIDs []string) (map[string]interface{}, error) {
	if len(sessionIDs) == 0 {
		return nil, fmt.Errorf("no sessions selected for analysis")
	}

	var statements []string
	for _, id := range sessionIDs {
		sess, err := s.store.GetSession(id)
		if err != nil {
			s.log.Warn("skipping unreadable session in corpus analysis",
				zap.String("session_id", id),
				zap.Error(err))
			continue
		}
		for _, msg := range sess.Messages {
			if msg.Role != session.RoleUser {
				continue
			}
			statements = append(statements,
				fmt.Sprintf("[session %s @ %s] %s", sess.ID, msg.Timestamp.UTC().Format(time.RFC3339), msg.Content))
		}
	}
	if len(statements) == 0 {
		return nil, fmt.Errorf("selected sessions contain no participant statements")
	}

	raw, err := s.ai.Generate(ctx, ai.Request{
		System:      multiSessionPrompt,
		Query:       strings.Join(statements, "\n"),
		Temperature: analysisTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate corpus analysis: %w", err)
	}

	parsed, perr := parseStrictJSON(raw)
	if perr != nil {
		s.log.Warn("corpus analysis reply was not valid JSON", zap.Error(perr))
		return map[string]interface{}{
			"raw_text":      raw,
			"parsing_error": perr.Error(),
		}, nil
	}
	return parsed, nil
}

// parseStrictJSON unwraps an optional code fence and decodes one JSON object.
func parseStrictJSON(raw string) (map[string]interface{}, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}
