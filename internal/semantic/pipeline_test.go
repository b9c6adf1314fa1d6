package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/guide"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
)

type fakeEmbedder struct {
	calls [][]string
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls = append(f.calls, inputs)
	vectors := make([][]float32, len(inputs))
	for i := range inputs {
		vectors[i] = []float32{float32(i), 1, 0}
	}
	return vectors, nil
}

type fakeIndex struct {
	points  map[string]Point
	deletes []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: make(map[string]Point)}
}

func (f *fakeIndex) Add(ctx context.Context, points []Point) error {
	for _, p := range points {
		f.points[p.Chunk.PointID()] = p
	}
	return nil
}

func (f *fakeIndex) DeleteBySession(ctx context.Context, sessionID string) error {
	f.deletes = append(f.deletes, sessionID)
	for id, p := range f.points {
		if p.Chunk.SessionID == sessionID {
			delete(f.points, id)
		}
	}
	return nil
}

const tagReply = `{"themes": ["workflow"], "emotions": ["frustration"], "intent": "report issue",
"task_success": "failure", "interaction_modality": "typed", "persona": "retailer",
"goal_satisfaction": "not achieved", "affinity_hint": "auth friction"}`

func newPipelineRig(t *testing.T, replies ...string) (*Pipeline, *store.Store, *fakeIndex, *fakeEmbedder) {
	t.Helper()
	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	model := ai.NewScriptedModel(replies...)
	client, err := ai.NewClient(context.Background(), model, zap.NewNop())
	require.NoError(t, err)
	index := newFakeIndex()
	embedder := &fakeEmbedder{}
	p := NewPipeline(st, embedder, NewTagger(client), index, zap.NewNop())
	return p, st, index, embedder
}

func seedIngestSession(t *testing.T, st *store.Store) *session.Session {
	t.Helper()
	g := &guide.DiscussionGuide{Title: "Auth study", Character: "daria"}
	require.NoError(t, st.CreateGuide(g))
	sess, err := st.CreateSession(g.ID, session.Interviewee{Name: "Ana"})
	require.NoError(t, err)
	_, err = st.AddMessage(sess.ID, session.Message{Role: session.RoleUser, Content: "I hate the password reset flow."})
	require.NoError(t, err)
	return sess
}

func TestIngestIndexesAndTagsSession(t *testing.T) {
	p, st, index, embedder := newPipelineRig(t, tagReply)
	sess := seedIngestSession(t, st)

	count, err := p.Ingest(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, embedder.calls, 1)
	assert.Equal(t, []string{"I hate the password reset flow."}, embedder.calls[0])

	point, ok := index.points[sess.ID+":0"]
	require.True(t, ok)
	assert.Equal(t, []string{"frustration"}, point.Tags.Emotions)

	// semantic block written back to the contributing message
	got, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Messages[0].Semantic)
	assert.Equal(t, "report issue", got.Messages[0].Semantic["intent"])
}

func TestIngestIsIdempotent(t *testing.T) {
	p, st, index, _ := newPipelineRig(t, tagReply, tagReply)
	sess := seedIngestSession(t, st)
	ctx := context.Background()

	_, err := p.Ingest(ctx, sess.ID)
	require.NoError(t, err)
	_, err = p.Ingest(ctx, sess.ID)
	require.NoError(t, err)

	assert.Len(t, index.points, 1)
	// every ingest clears the session's points first
	assert.Equal(t, []string{sess.ID, sess.ID}, index.deletes)
}

func TestIngestProceedsUntaggedOnTaggerFailure(t *testing.T) {
	p, st, index, _ := newPipelineRig(t, "banana")
	sess := seedIngestSession(t, st)

	count, err := p.Ingest(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	point := index.points[sess.ID+":0"]
	assert.Equal(t, Tags{}, point.Tags)

	got, _ := st.GetSession(sess.ID)
	assert.Nil(t, got.Messages[0].Semantic)
}

func TestDeletePurgesVectorsAndSemanticBlocks(t *testing.T) {
	p, st, index, _ := newPipelineRig(t, tagReply)
	sess := seedIngestSession(t, st)
	ctx := context.Background()

	_, err := p.Ingest(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, index.points, 1)

	require.NoError(t, p.Delete(ctx, sess.ID))
	assert.Empty(t, index.points)

	got, _ := st.GetSession(sess.ID)
	assert.Nil(t, got.Messages[0].Semantic)
}
