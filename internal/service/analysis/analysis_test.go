package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/character"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/guide"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/semantic"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
)

type fakeQueryEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeQueryEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = f.vector
	}
	return out, nil
}

type fakeSearcher struct {
	results   []semantic.Result
	err       error
	lastQuery semantic.Filter
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float32, filter semantic.Filter, limit int) ([]semantic.Result, error) {
	f.lastQuery = filter
	return f.results, f.err
}

func (f *fakeSearcher) FindByTag(ctx context.Context, filter semantic.Filter, limit int) ([]semantic.Result, error) {
	f.lastQuery = filter
	return f.results, f.err
}

type testRig struct {
	svc      *Service
	store    *store.Store
	searcher *fakeSearcher
	embedder *fakeQueryEmbedder
}

func newTestRig(t *testing.T, replies ...string) *testRig {
	t.Helper()
	ctx := context.Background()

	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	registry, err := character.NewRegistry(t.TempDir())
	require.NoError(t, err)
	client, err := ai.NewClient(ctx, ai.NewScriptedModel(replies...), zap.NewNop())
	require.NoError(t, err)

	searcher := &fakeSearcher{}
	embedder := &fakeQueryEmbedder{vector: []float32{0.1, 0.2}}
	svc := New(st, client, registry, embedder, searcher, zap.NewNop())
	return &testRig{svc: svc, store: st, searcher: searcher, embedder: embedder}
}

func (r *testRig) seedSession(t *testing.T, g *guide.DiscussionGuide) *session.Session {
	t.Helper()
	require.NoError(t, r.store.CreateGuide(g))
	sess, err := r.store.CreateSession(g.ID, session.Interviewee{Name: "Morgan"})
	require.NoError(t, err)

	turns := []session.Message{
		{Role: session.RoleAssistant, Content: "Welcome. What brings you here today?"},
		{Role: session.RoleUser, Content: "The checkout flow keeps losing my cart."},
		{Role: session.RoleAssistant, Content: "How often does that happen?"},
		{Role: session.RoleUser, Content: "Almost every week, it is exhausting."},
	}
	for _, msg := range turns {
		_, err := r.store.AddMessage(sess.ID, msg)
		require.NoError(t, err)
	}
	updated, err := r.store.GetSession(sess.ID)
	require.NoError(t, err)
	return updated
}

func TestAnalyzeSessionPersistsStructuredResult(t *testing.T) {
	reply := "The participant struggles with cart persistence during checkout.\n\n" +
		"User Needs:\n- A cart that survives the session\n- Faster checkout\n\n" +
		"Pain Points:\n- Weekly cart loss\n\n" +
		"Key Quotes:\n- \"The checkout flow keeps losing my cart.\""
	rig := newTestRig(t, reply)
	sess := rig.seedSession(t, &guide.DiscussionGuide{Title: "Checkout study", Character: "daria"})

	result, err := rig.svc.AnalyzeSession(context.Background(), sess.ID)
	require.NoError(t, err)

	assert.Equal(t, "The participant struggles with cart persistence during checkout.", result["summary"])
	assert.Equal(t, []string{"A cart that survives the session", "Faster checkout"}, result["user_needs"])
	assert.Equal(t, []string{"Weekly cart loss"}, result["pain_points"])
	assert.Equal(t, []string{`"The checkout flow keeps losing my cart."`}, result["key_quotes"])
	assert.Equal(t, reply, result["raw_analysis"])
	assert.NotEmpty(t, result["performed_at"])

	stored, err := rig.store.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAnalyzed, stored.Status)
	assert.Equal(t, reply, stored.Analysis["raw_analysis"])
}

func TestAnalysisPromptPrecedence(t *testing.T) {
	t.Run("guide prompt wins", func(t *testing.T) {
		rig := newTestRig(t, "fine")
		sess := rig.seedSession(t, &guide.DiscussionGuide{
			Title:          "Study",
			Character:      "daria",
			AnalysisPrompt: "Focus on onboarding friction only.",
		})
		result, err := rig.svc.AnalyzeSession(context.Background(), sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "Focus on onboarding friction only.", result["analysis_prompt_used"])
	})

	t.Run("character prompt when guide has none", func(t *testing.T) {
		rig := newTestRig(t, "fine")
		sess := rig.seedSession(t, &guide.DiscussionGuide{Title: "Study", Character: "skeptica"})
		result, err := rig.svc.AnalyzeSession(context.Background(), sess.ID)
		require.NoError(t, err)
		assert.Contains(t, result["analysis_prompt_used"], "skeptical")
	})

	t.Run("generic fallback", func(t *testing.T) {
		rig := newTestRig(t, "fine")
		sess := rig.seedSession(t, &guide.DiscussionGuide{Title: "Study", Character: "nobody-known"})
		result, err := rig.svc.AnalyzeSession(context.Background(), sess.ID)
		require.NoError(t, err)
		assert.Equal(t, genericAnalysisPrompt, result["analysis_prompt_used"])
	})
}

func TestParseAnalysisHeaderVariants(t *testing.T) {
	raw := "Overall a frustrating experience.\n\n" +
		"1. User Needs: reliability above all\n" +
		"2. Goals:\n- Finish orders in one sitting\n\n" +
		"**Challenges:**\n- Losing work\nmid checkout\n\n" +
		"Recommendations:\n• Persist the cart server side"
	result := parseAnalysis(raw, "p")

	assert.Equal(t, "Overall a frustrating experience.", result["summary"])
	assert.Equal(t, []string{"reliability above all"}, result["user_needs"])
	assert.Equal(t, []string{"Finish orders in one sitting"}, result["goals"])
	assert.Equal(t, []string{"Losing work mid checkout"}, result["pain_points"])
	assert.Equal(t, []string{"Persist the cart server side"}, result["recommendations"])
	assert.Equal(t, []string{}, result["opportunities"])
}

func TestFormatTranscriptSkipsSystemTurns(t *testing.T) {
	sess := &session.Session{
		Title:     "Kiosk study",
		Character: "daria",
		CreatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	sess.AppendMessage(session.Message{Role: session.RoleSystem, Content: "ignore me"})
	sess.AppendMessage(session.Message{Role: session.RoleAssistant, Content: "Hello."})
	sess.AppendMessage(session.Message{Role: session.RoleUser, Content: "Hi."})

	got := formatTranscript(sess)
	assert.Contains(t, got, "Interview Title: Kiosk study\n")
	assert.Contains(t, got, "Date: 2026-03-14 10:00:00\n")
	assert.Contains(t, got, "TRANSCRIPT:\n\nInterviewer: Hello.\n\nParticipant: Hi.\n\n")
	assert.NotContains(t, got, "ignore me")
}

func TestAnalyzeSessionsParsesStrictJSON(t *testing.T) {
	rig := newTestRig(t, "```json\n{\"key_findings\": [\"carts vanish\"], \"user_needs\": [], \"pain_points\": [], \"opportunities\": [], \"summary\": \"short\"}\n```")
	a := rig.seedSession(t, &guide.DiscussionGuide{Title: "A", Character: "daria"})
	b := rig.seedSession(t, &guide.DiscussionGuide{Title: "B", Character: "daria"})

	result, err := rig.svc.AnalyzeSessions(context.Background(), []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, "short", result["summary"])
	assert.Equal(t, []interface{}{"carts vanish"}, result["key_findings"])
}

func TestAnalyzeSessionsReturnsRawOnBadJSON(t *testing.T) {
	rig := newTestRig(t, "I found three themes but refuse to emit JSON.")
	sess := rig.seedSession(t, &guide.DiscussionGuide{Title: "A", Character: "daria"})

	result, err := rig.svc.AnalyzeSessions(context.Background(), []string{sess.ID})
	require.NoError(t, err)
	assert.Equal(t, "I found three themes but refuse to emit JSON.", result["raw_text"])
	assert.NotEmpty(t, result["parsing_error"])
}

func TestTextSearchMatchesCaseInsensitive(t *testing.T) {
	rig := newTestRig(t)
	sess := rig.seedSession(t, &guide.DiscussionGuide{Title: "Study", Character: "daria"})

	records, err := rig.svc.Search(context.Background(), SearchRequest{Query: "CHECKOUT", Mode: ModeText})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, sess.ID, records[0].SessionID)
	assert.Equal(t, "The checkout flow keeps losing my cart.", records[0].Content)
	assert.Equal(t, "Morgan", records[0].IntervieweeName)
	assert.NotEmpty(t, records[0].MessageID)
}

func TestSemanticSearchFallsBackToText(t *testing.T) {
	rig := newTestRig(t)
	rig.embedder.err = errors.New("embedding service down")
	rig.seedSession(t, &guide.DiscussionGuide{Title: "Study", Character: "daria"})

	records, err := rig.svc.Search(context.Background(), SearchRequest{Query: "exhausting", Mode: ModeSemantic})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Almost every week, it is exhausting.", records[0].Content)
}

func TestEmotionSearchQueriesTagIndex(t *testing.T) {
	rig := newTestRig(t)
	sess := rig.seedSession(t, &guide.DiscussionGuide{Title: "Study", Character: "daria"})
	rig.searcher.results = []semantic.Result{{
		SessionID: sess.ID,
		ChunkID:   2,
		Content:   "it is exhausting",
		Score:     0.9,
	}}

	records, err := rig.svc.Search(context.Background(), SearchRequest{Query: "Frustrated", Mode: ModeEmotion})
	require.NoError(t, err)
	assert.Equal(t, "frustrated", rig.searcher.lastQuery.Emotion)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].ChunkID)
	assert.Equal(t, "Morgan", records[0].IntervieweeName)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	rig := newTestRig(t)
	_, err := rig.svc.Search(context.Background(), SearchRequest{Query: "  "})
	assert.Error(t, err)
}
