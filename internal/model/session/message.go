package session

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message persists one conversation turn. Timestamps are non-decreasing
// within a session and the slice order equals display order.
type Message struct {
	ID                   string                 `json:"id"`
	Role                 string                 `json:"role"`
	Content              string                 `json:"content"`
	Timestamp            time.Time              `json:"timestamp"`
	Semantic             map[string]interface{} `json:"semantic,omitempty"`
	VisibleToParticipant *bool                  `json:"visible_to_participant,omitempty"`
	ResearcherGenerated  bool                   `json:"researcher_generated,omitempty"`
}

// ParticipantVisible reports whether the participant UI may render the
// message. Unset means visible; researcher suggestions carry an explicit
// false.
func (m Message) ParticipantVisible() bool {
	return m.VisibleToParticipant == nil || *m.VisibleToParticipant
}

// Hidden returns a pointer to false for marking researcher-only messages.
func Hidden() *bool {
	v := false
	return &v
}
