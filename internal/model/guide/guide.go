package guide

import "time"

// Status values for a discussion guide.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// CustomQuestion is a scripted question the interviewer should cover.
type CustomQuestion struct {
	Text  string `json:"text"`
	Asked bool   `json:"asked"`
}

// Options holds the recognized per-guide toggles.
type Options struct {
	RecordTranscript bool `json:"record_transcript"`
	Analysis         bool `json:"analysis"`
	UseTTS           bool `json:"use_tts"`
}

// DiscussionGuide is a reusable interview template. Its Sessions list is the
// authoritative parent-to-child index: a session id appears in at most one
// guide's list.
type DiscussionGuide struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Project         string           `json:"project"`
	InterviewType   string           `json:"interview_type"`
	Topic           string           `json:"topic"`
	Context         string           `json:"context"`
	Goals           string           `json:"goals"`
	Character       string           `json:"character"`
	VoiceID         string           `json:"voice_id,omitempty"`
	InterviewPrompt string           `json:"interview_prompt,omitempty"`
	AnalysisPrompt  string           `json:"analysis_prompt,omitempty"`
	CustomQuestions []CustomQuestion `json:"custom_questions"`
	Options         Options          `json:"options"`
	TargetAudience  string           `json:"target_audience,omitempty"`
	Status          string           `json:"status"`
	Sessions        []string         `json:"sessions"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// HasSession reports whether the guide already links the given session id.
func (g *DiscussionGuide) HasSession(sessionID string) bool {
	for _, id := range g.Sessions {
		if id == sessionID {
			return true
		}
	}
	return false
}

// AddSession links a session id, keeping the list duplicate-free.
func (g *DiscussionGuide) AddSession(sessionID string) {
	if g.HasSession(sessionID) {
		return
	}
	g.Sessions = append(g.Sessions, sessionID)
}

// RemoveSession unlinks a session id if present.
func (g *DiscussionGuide) RemoveSession(sessionID string) {
	for i, id := range g.Sessions {
		if id == sessionID {
			g.Sessions = append(g.Sessions[:i], g.Sessions[i+1:]...)
			return
		}
	}
}
