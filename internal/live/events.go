package live

import "time"

// Event types emitted by the server.
const (
	EventNewMessage         = "new_message"
	EventNewObservation     = "new_observation"
	EventNewInsight         = "new_insight"
	EventSuggestedQuestions = "suggested_questions"
	EventObserverSummary    = "observer_summary"
	EventSessionCompleted   = "session_completed"
	EventAnalysisComplete   = "analysis_complete"
	EventPing               = "ping"
	EventPong               = "pong"
)

// Event types received from researcher sockets.
const (
	EventResearcherMessage = "researcher_message"
	EventIntervention      = "intervention"
)

// Researcher message subtypes.
const (
	SubtypeSuggestion     = "suggestion"
	SubtypeCustomQuestion = "custom_question"
	SubtypeDirectQuestion = "direct_question"
)

// Intervention types. The interview model conditions on the injected system
// message on its next turn.
const (
	InterventionChangeTopic = "change-topic"
	InterventionPause       = "pause"
	InterventionGoDeeper    = "go-deeper"
	InterventionSummarize   = "summarize"
)

// Event is the wire shape for everything crossing the live channel.
type Event struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Subtype   string                 `json:"subtype,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
}

// NewEvent builds an event stamped with the current UTC time.
func NewEvent(eventType, sessionID string, data map[string]interface{}) Event {
	return Event{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
