package observer

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/guide"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
)

func newObserverRig(t *testing.T, replies ...string) (*Engine, *store.Store, *ai.ScriptedModel) {
	t.Helper()
	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	model := ai.NewScriptedModel(replies...)
	client, err := ai.NewClient(context.Background(), model, zap.NewNop())
	require.NoError(t, err)
	return NewEngine(client, st, nil, zap.NewNop()), st, model
}

func seedSession(t *testing.T, st *store.Store) *session.Session {
	t.Helper()
	g := &guide.DiscussionGuide{Title: "Portal study"}
	require.NoError(t, st.CreateGuide(g))
	sess, err := st.CreateSession(g.ID, session.Interviewee{Name: "Ana"})
	require.NoError(t, err)
	return sess
}

func TestObserveMessageParsesWellFormedReply(t *testing.T) {
	engine, st, _ := newObserverRig(t,
		"NOTE: Participant struggles to locate order status.\nTAGS: navigation, pain points\nMOOD: [-4]")
	sess := seedSession(t, st)
	updated, err := st.AddMessage(sess.ID, session.Message{Role: session.RoleUser, Content: "I can never find my orders."})
	require.NoError(t, err)

	engine.ObserveMessage(context.Background(), sess.ID, updated.Messages[0])

	state := engine.State(sess.ID)
	assert.Equal(t, StateObserving, state.Status)
	require.Len(t, state.Notes, 1)
	obs := state.Notes[0]
	assert.Equal(t, "Participant struggles to locate order status.", obs.Note)
	assert.Equal(t, []string{"navigation", "pain points"}, obs.Tags)
	assert.Equal(t, -4, obs.Mood)
	assert.Equal(t, "Participant", obs.Speaker)
	assert.Equal(t, []string{"navigation", "pain points"}, state.Tags)
	require.Len(t, state.MoodTimeline, 1)
	assert.Equal(t, -4, state.MoodTimeline[0].Mood)
}

func TestObserveMessageDegradesOnGibberish(t *testing.T) {
	engine, st, _ := newObserverRig(t, "banana")
	sess := seedSession(t, st)

	engine.ObserveMessage(context.Background(), sess.ID, session.Message{
		ID: "m1", Role: session.RoleUser, Content: "Hello.",
	})

	state := engine.State(sess.ID)
	require.Len(t, state.Notes, 1)
	assert.Equal(t, []string{"error"}, state.Notes[0].Tags)
	assert.Equal(t, 0, state.Notes[0].Mood)
}

func TestObserveMessageDegradesOnModelError(t *testing.T) {
	engine, st, model := newObserverRig(t)
	model.Respond = func([]*schema.Message) (string, error) { return "", errors.New("model down") }
	sess := seedSession(t, st)

	engine.ObserveMessage(context.Background(), sess.ID, session.Message{
		ID: "m1", Role: session.RoleUser, Content: "Hello.",
	})

	state := engine.State(sess.ID)
	require.Len(t, state.Notes, 1)
	assert.Equal(t, []string{"error"}, state.Notes[0].Tags)
	assert.Equal(t, 0, state.Notes[0].Mood)
}

func TestMoodClamping(t *testing.T) {
	_, tags, mood, ok := parseObservation("NOTE: Very excited.\nTAGS: delight\nMOOD: 42")
	require.True(t, ok)
	assert.Equal(t, []string{"delight"}, tags)
	assert.Equal(t, 10, mood)

	_, _, mood, ok = parseObservation("NOTE: Very upset.\nTAGS: anger\nMOOD: [-99]")
	require.True(t, ok)
	assert.Equal(t, -10, mood)
}

func TestTagSetAccumulatesAcrossObservations(t *testing.T) {
	engine, st, _ := newObserverRig(t,
		"NOTE: One.\nTAGS: navigation\nMOOD: 1",
		"NOTE: Two.\nTAGS: navigation, terminology\nMOOD: 2")
	sess := seedSession(t, st)

	ctx := context.Background()
	engine.ObserveMessage(ctx, sess.ID, session.Message{ID: "m1", Role: session.RoleUser, Content: "a"})
	engine.ObserveMessage(ctx, sess.ID, session.Message{ID: "m2", Role: session.RoleUser, Content: "b"})

	state := engine.State(sess.ID)
	assert.Equal(t, []string{"navigation", "terminology"}, state.Tags)
}

func TestSuggestQuestionsDeduplicates(t *testing.T) {
	engine, st, _ := newObserverRig(t,
		"What slows you down most?\nHow do you work around it?\nWhat would you change first?",
		"What slows you down most?\nWho else is affected by this?")
	sess := seedSession(t, st)
	ctx := context.Background()

	first := engine.SuggestQuestions(ctx, sess.ID)
	require.Len(t, first, 3)

	second := engine.SuggestQuestions(ctx, sess.ID)
	require.Len(t, second, 1)
	assert.Equal(t, "Who else is affected by this?", second[0].Text)

	state := engine.State(sess.ID)
	assert.Len(t, state.SuggestedQuestions, 4)
}

func TestSuggestQuestionsFallsBackOnModelError(t *testing.T) {
	engine, st, model := newObserverRig(t)
	model.Respond = func([]*schema.Message) (string, error) { return "", errors.New("model down") }
	sess := seedSession(t, st)

	questions := engine.SuggestQuestions(context.Background(), sess.ID)
	require.Len(t, questions, len(fallbackQuestions))
	assert.Equal(t, fallbackQuestions[0], questions[0].Text)

	// Fallback questions are served, not recorded as suggestions.
	assert.Empty(t, engine.State(sess.ID).SuggestedQuestions)
}

func TestGenerateSummaryIncludesMoodTrend(t *testing.T) {
	engine, st, _ := newObserverRig(t,
		"NOTE: Frustrated start.\nTAGS: pain points\nMOOD: -5",
		"NOTE: Finding value.\nTAGS: satisfaction\nMOOD: 4",
		"A concise interview summary.")
	sess := seedSession(t, st)
	ctx := context.Background()

	engine.ObserveMessage(ctx, sess.ID, session.Message{ID: "m1", Role: session.RoleUser, Content: "a"})
	engine.ObserveMessage(ctx, sess.ID, session.Message{ID: "m2", Role: session.RoleUser, Content: "b"})

	summary, err := engine.GenerateSummary(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "A concise interview summary.", summary["summary"])
	assert.Contains(t, summary["mood_analysis"], "rising (improving)")
	assert.Equal(t, StateSummarized, engine.State(sess.ID).Status)
}

func TestAnalyzeMoodTimeline(t *testing.T) {
	points := func(moods ...int) []MoodPoint {
		out := make([]MoodPoint, len(moods))
		for i, m := range moods {
			out[i] = MoodPoint{Mood: m}
		}
		return out
	}

	assert.Equal(t, "No mood data available", analyzeMoodTimeline(nil))
	assert.Contains(t, analyzeMoodTimeline(points(3)), "insufficient data")
	assert.Contains(t, analyzeMoodTimeline(points(-5, -4, 4, 5)), "rising (improving)")
	assert.Contains(t, analyzeMoodTimeline(points(5, 4, -4, -5)), "falling (deteriorating)")
	assert.Contains(t, analyzeMoodTimeline(points(1, 1, 1, 1)), "Trend: stable.")
	assert.Contains(t, analyzeMoodTimeline(points(7, 8, 7, 8)), "very positive")
	assert.Contains(t, analyzeMoodTimeline(points(-7, -8, -7, -8)), "very negative")
}

func TestRebuildReplaysMessages(t *testing.T) {
	engine, st, _ := newObserverRig(t,
		"NOTE: First pass.\nTAGS: navigation\nMOOD: 1",
		"NOTE: Replayed.\nTAGS: workflow\nMOOD: 2")
	sess := seedSession(t, st)
	ctx := context.Background()

	engine.ObserveMessage(ctx, sess.ID, session.Message{ID: "m1", Role: session.RoleUser, Content: "a"})
	require.Len(t, engine.State(sess.ID).Notes, 1)

	engine.Rebuild(ctx, sess.ID, []session.Message{
		{ID: "m1", Role: session.RoleUser, Content: "a"},
	})

	state := engine.State(sess.ID)
	require.Len(t, state.Notes, 1)
	assert.Equal(t, "Replayed.", state.Notes[0].Note)
	assert.Equal(t, []string{"workflow"}, state.Tags)
}
