package store

import (
	"encoding/json"
	"time"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/google/uuid"
)

// sessionDoc is the on-disk session shape. Alongside the canonical fields it
// carries the legacy flat participant fields and conversation_history list so
// documents written by earlier releases keep loading, and documents written
// by this release keep loading under earlier releases.
type sessionDoc struct {
	session.Session

	ParticipantName     string          `json:"participant_name,omitempty"`
	ParticipantEmail    string          `json:"participant_email,omitempty"`
	ConversationHistory []legacyMessage `json:"conversation_history,omitempty"`
}

type legacyMessage struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// decodeSession normalizes either schema into the canonical Session.
func decodeSession(data []byte) (*session.Session, error) {
	var doc sessionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	s := doc.Session

	if len(s.Messages) == 0 && len(doc.ConversationHistory) > 0 {
		for _, m := range doc.ConversationHistory {
			id := m.ID
			if id == "" {
				id = uuid.NewString()
			}
			s.Messages = append(s.Messages, session.Message{
				ID:        id,
				Role:      m.Role,
				Content:   m.Content,
				Timestamp: m.Timestamp,
			})
		}
	}

	if s.Interviewee.Name == "" && doc.ParticipantName != "" {
		s.Interviewee.Name = doc.ParticipantName
	}
	if s.Interviewee.Email == "" && doc.ParticipantEmail != "" {
		s.Interviewee.Email = doc.ParticipantEmail
	}

	if s.Status == "" {
		s.Status = session.StatusActive
	}
	if s.Transcript == "" && len(s.Messages) > 0 {
		s.Transcript = renderTranscript(s.Messages)
	}
	return &s, nil
}

// encodeSession writes canonical fields and mirrors messages into the legacy
// conversation_history list.
func encodeSession(s *session.Session) ([]byte, error) {
	doc := sessionDoc{
		Session:          *s,
		ParticipantName:  s.Interviewee.Name,
		ParticipantEmail: s.Interviewee.Email,
	}
	for _, m := range s.Messages {
		doc.ConversationHistory = append(doc.ConversationHistory, legacyMessage{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

func renderTranscript(messages []session.Message) string {
	var rebuilt session.Session
	for _, m := range messages {
		rebuilt.AppendMessage(m)
	}
	return rebuilt.Transcript
}
