package session

import (
	"fmt"
	"strings"
	"time"
)

// Session status values. Status advances active -> completed -> analyzed;
// expired is terminal and overrides the others.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAnalyzed  = "analyzed"
	StatusExpired   = "expired"
)

// Demographics captures optional participant background fields.
type Demographics struct {
	AgeRange        string `json:"age_range,omitempty"`
	Gender          string `json:"gender,omitempty"`
	Location        string `json:"location,omitempty"`
	ExperienceLevel string `json:"experience_level,omitempty"`
}

// Interviewee describes the participant of one session.
type Interviewee struct {
	Name         string       `json:"name"`
	Email        string       `json:"email,omitempty"`
	Role         string       `json:"role,omitempty"`
	Department   string       `json:"department,omitempty"`
	Company      string       `json:"company,omitempty"`
	Demographics Demographics `json:"demographics,omitempty"`
}

// Session is one interview instance spawned from a discussion guide.
// Messages and Transcript are redundant renderings of the same conversation;
// every write updates both.
type Session struct {
	ID              string                 `json:"id"`
	GuideID         string                 `json:"guide_id,omitempty"`
	Interviewee     Interviewee            `json:"interviewee"`
	Status          string                 `json:"status"`
	Title           string                 `json:"title"`
	Project         string                 `json:"project,omitempty"`
	InterviewType   string                 `json:"interview_type,omitempty"`
	Topic           string                 `json:"topic,omitempty"`
	Context         string                 `json:"context,omitempty"`
	Goals           string                 `json:"goals,omitempty"`
	Character       string                 `json:"character,omitempty"`
	VoiceID         string                 `json:"voice_id,omitempty"`
	Messages        []Message              `json:"messages"`
	Transcript      string                 `json:"transcript"`
	Analysis        map[string]interface{} `json:"analysis,omitempty"`
	CustomQuestions []CustomQuestion       `json:"custom_questions,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	ExpirationDate  *time.Time             `json:"expiration_date,omitempty"`
}

// CustomQuestion mirrors the guide's question list; the session owns a
// mutable copy so asked-state tracking does not touch the template.
type CustomQuestion struct {
	Text  string `json:"text"`
	Asked bool   `json:"asked"`
}

// Expired reports whether the session's expiration date has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpirationDate != nil && now.After(*s.ExpirationDate)
}

// Terminal reports whether the session refuses further participant turns.
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusAnalyzed || s.Status == StatusExpired
}

// AppendMessage adds a message and keeps the flattened transcript in sync.
func (s *Session) AppendMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
	line := fmt.Sprintf("%s: %s", SpeakerLabel(msg.Role), msg.Content)
	if s.Transcript == "" {
		s.Transcript = line
	} else {
		s.Transcript = s.Transcript + "\n\n" + line
	}
}

// SpeakerLabel renders a message role as the transcript speaker name.
func SpeakerLabel(role string) string {
	switch strings.ToLower(role) {
	case RoleAssistant:
		return "Interviewer"
	case RoleSystem:
		return "System"
	default:
		return "Participant"
	}
}
