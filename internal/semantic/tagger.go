package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
)

// Closed ontology. Values outside these sets are dropped on parse; enum
// fields fall back to their neutral member.
var (
	allowedThemes = stringSet("navigation", "workflow", "terminology", "system status", "error handling")
	allowedEmotions = stringSet("frustration", "confusion", "satisfaction", "neutral", "interest")
	allowedIntents = stringSet("clarify", "report issue", "describe process", "request help", "feedback")
	allowedTaskSuccess = stringSet("success", "partial success", "failure", "not attempted", "not applicable")
	allowedModalities = stringSet("spoken", "typed", "mixed")
	allowedViolations = stringSet("visibility of system status", "match between system and real world",
		"error prevention", "consistency and standards", "user control and freedom")
	allowedPersonas = stringSet("retailer", "distributor", "admin", "other")
	allowedGoalSatisfaction = stringSet("achieved", "partially achieved", "not achieved", "not applicable")
)

// PainPoint is one reported friction record.
type PainPoint struct {
	Issue         string `json:"issue"`
	Frequency     string `json:"frequency"`
	Impact        string `json:"impact"`
	SeverityScore int    `json:"severity_score"`
	Sentiment     string `json:"sentiment"`
	Quote         string `json:"quote"`
}

// Quote is one verbatim participant quote worth surfacing.
type Quote struct {
	Text    string `json:"text"`
	Theme   string `json:"theme"`
	Emotion string `json:"emotion"`
	Persona string `json:"persona"`
}

// Tags is the full ontology tag result for one chunk.
type Tags struct {
	Themes                []string    `json:"themes"`
	Emotions              []string    `json:"emotions"`
	Intent                string      `json:"intent"`
	TaskSuccess           string      `json:"task_success"`
	InteractionModality   string      `json:"interaction_modality"`
	UXHeuristicViolations []string    `json:"ux_heuristic_violations"`
	Persona               string      `json:"persona"`
	GoalSatisfaction      string      `json:"goal_satisfaction"`
	PainPoints            []PainPoint `json:"pain_points"`
	Quotes                []Quote     `json:"quotes"`
	AffinityHint          string      `json:"affinity_hint"`
	FollowUpQuestions     []string    `json:"follow_up_questions"`
}

// AsMap renders the tags as the generic `semantic` block stored on messages.
func (t Tags) AsMap() map[string]interface{} {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

const taggerTemperature = 0.1

const taggerPrompt = `You are a UX research analyst reviewing a chunk of an interview transcript.
Tag the chunk along the following closed ontology. Use only the listed values.

themes (zero or more of): navigation, workflow, terminology, system status, error handling
emotions (zero or more of): frustration, confusion, satisfaction, neutral, interest
intent (exactly one of): clarify, report issue, describe process, request help, feedback
task_success (exactly one of): success, partial success, failure, not attempted, not applicable
interaction_modality (exactly one of): spoken, typed, mixed
ux_heuristic_violations (zero or more of): visibility of system status, match between system and real world, error prevention, consistency and standards, user control and freedom
persona (exactly one of): retailer, distributor, admin, other
goal_satisfaction (exactly one of): achieved, partially achieved, not achieved, not applicable
pain_points: list of {"issue", "frequency", "impact", "severity_score" (1-5), "sentiment", "quote"}
quotes: list of {"text", "theme", "emotion", "persona"}
affinity_hint: one short free-text phrase grouping this chunk
follow_up_questions: up to three short questions

Respond with a single JSON object containing exactly these keys and nothing
else. No prose, no code fences.`

// Tagger runs the ontology tagging call per chunk.
type Tagger struct {
	ai *ai.Client
}

// NewTagger wires a tagger over the shared model client.
func NewTagger(client *ai.Client) *Tagger {
	return &Tagger{ai: client}
}

// TagChunk tags one chunk. A model or parse failure returns the zero Tags
// and an error so ingest can proceed untagged.
func (t *Tagger) TagChunk(ctx context.Context, chunk Chunk) (Tags, error) {
	query := fmt.Sprintf(`Input chunk:
---
Speaker: %s
Timestamp: %s
Phase: %s
Persona: %s
Transcript Text: %q`,
		chunk.Speaker, chunk.Timestamp.Format("2006-01-02 15:04:05"), chunk.Phase, chunk.Persona, chunk.Text)

	reply, err := t.ai.Generate(ctx, ai.Request{
		System:      taggerPrompt,
		Query:       query,
		Temperature: taggerTemperature,
	})
	if err != nil {
		return Tags{}, fmt.Errorf("tag chunk %s: %w", chunk.PointID(), err)
	}

	tags, err := parseTags(reply)
	if err != nil {
		return Tags{}, fmt.Errorf("parse tags for chunk %s: %w", chunk.PointID(), err)
	}
	return tags, nil
}

// parseTags decodes the model reply and enforces the closed ontology.
func parseTags(reply string) (Tags, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var tags Tags
	if err := json.Unmarshal([]byte(cleaned), &tags); err != nil {
		return Tags{}, err
	}

	tags.Themes = filterAllowed(tags.Themes, allowedThemes)
	tags.Emotions = filterAllowed(tags.Emotions, allowedEmotions)
	tags.UXHeuristicViolations = filterAllowed(tags.UXHeuristicViolations, allowedViolations)

	tags.Intent = normalizeEnum(tags.Intent, allowedIntents, "")
	tags.InteractionModality = normalizeEnum(tags.InteractionModality, allowedModalities, "")
	tags.TaskSuccess = normalizeEnum(tags.TaskSuccess, allowedTaskSuccess, "not applicable")
	tags.Persona = normalizeEnum(tags.Persona, allowedPersonas, "other")
	tags.GoalSatisfaction = normalizeEnum(tags.GoalSatisfaction, allowedGoalSatisfaction, "not applicable")

	for i := range tags.PainPoints {
		if tags.PainPoints[i].SeverityScore < 1 {
			tags.PainPoints[i].SeverityScore = 1
		} else if tags.PainPoints[i].SeverityScore > 5 {
			tags.PainPoints[i].SeverityScore = 5
		}
	}
	return tags, nil
}

func stringSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func filterAllowed(values []string, allowed map[string]struct{}) []string {
	var out []string
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if _, ok := allowed[key]; ok {
			out = append(out, key)
		}
	}
	return out
}

func normalizeEnum(value string, allowed map[string]struct{}, fallback string) string {
	key := strings.ToLower(strings.TrimSpace(value))
	if _, ok := allowed[key]; ok {
		return key
	}
	return fallback
}
