package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
)

func TestParseTagsEnforcesClosedOntology(t *testing.T) {
	reply := `{
		"themes": ["navigation", "made-up-theme", "workflow"],
		"emotions": ["Frustration", "rage"],
		"intent": "report issue",
		"task_success": "somewhat",
		"interaction_modality": "typed",
		"ux_heuristic_violations": ["error prevention", "unknown heuristic"],
		"persona": "astronaut",
		"goal_satisfaction": "achieved",
		"pain_points": [{"issue": "slow search", "frequency": "daily", "impact": "high", "severity_score": 9, "sentiment": "negative", "quote": "it crawls"}],
		"quotes": [{"text": "it crawls", "theme": "workflow", "emotion": "frustration", "persona": "retailer"}],
		"affinity_hint": "search performance",
		"follow_up_questions": ["When did it start?"]
	}`

	tags, err := parseTags(reply)
	require.NoError(t, err)

	assert.Equal(t, []string{"navigation", "workflow"}, tags.Themes)
	assert.Equal(t, []string{"frustration"}, tags.Emotions)
	assert.Equal(t, "report issue", tags.Intent)
	// invalid enum values fall back to their neutral member
	assert.Equal(t, "not applicable", tags.TaskSuccess)
	assert.Equal(t, "other", tags.Persona)
	assert.Equal(t, "achieved", tags.GoalSatisfaction)
	assert.Equal(t, []string{"error prevention"}, tags.UXHeuristicViolations)
	require.Len(t, tags.PainPoints, 1)
	assert.Equal(t, 5, tags.PainPoints[0].SeverityScore)
	assert.Equal(t, "search performance", tags.AffinityHint)
}

func TestParseTagsStripsCodeFences(t *testing.T) {
	reply := "```json\n{\"themes\": [\"workflow\"], \"emotions\": [\"neutral\"]}\n```"
	tags, err := parseTags(reply)
	require.NoError(t, err)
	assert.Equal(t, []string{"workflow"}, tags.Themes)
}

func TestParseTagsFailsOnProse(t *testing.T) {
	_, err := parseTags("Sure! Here are the tags you asked for.")
	assert.Error(t, err)
}

func TestTagChunkReturnsZeroTagsOnParseFailure(t *testing.T) {
	model := ai.NewScriptedModel("not json at all")
	client, err := ai.NewClient(context.Background(), model, zap.NewNop())
	require.NoError(t, err)
	tagger := NewTagger(client)

	tags, err := tagger.TagChunk(context.Background(), Chunk{SessionID: "s1", ChunkID: 0, Text: "hi"})
	assert.Error(t, err)
	assert.Equal(t, Tags{}, tags)
}

func TestTagsAsMap(t *testing.T) {
	tags := Tags{Themes: []string{"workflow"}, Intent: "feedback"}
	m := tags.AsMap()
	require.NotNil(t, m)
	assert.Equal(t, "feedback", m["intent"])
	assert.Equal(t, []interface{}{"workflow"}, m["themes"])
}
