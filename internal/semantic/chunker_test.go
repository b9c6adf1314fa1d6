package semantic

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
)

func msg(id, role, content string, minute int) session.Message {
	return session.Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Timestamp: time.Date(2026, 3, 1, 10, minute, 0, 0, time.UTC),
	}
}

func TestChunkSessionBreaksAtSpeakerTurns(t *testing.T) {
	sess := &session.Session{
		ID:        "s1",
		Character: "daria",
		Messages: []session.Message{
			msg("m1", session.RoleAssistant, "Welcome. How do you order today?", 0),
			msg("m2", session.RoleUser, "I phone the rep. It takes forever.", 1),
			msg("m3", session.RoleUser, "Sometimes I fax instead.", 2),
		},
	}

	chunks := ChunkSession(sess)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Interviewer", chunks[0].Speaker)
	assert.Equal(t, 0, chunks[0].ChunkID)
	assert.Equal(t, "s1:0", chunks[0].PointID())

	assert.Equal(t, "Participant", chunks[1].Speaker)
	assert.Contains(t, chunks[1].Text, "I phone the rep.")
	assert.Contains(t, chunks[1].Text, "Sometimes I fax instead.")
	assert.Equal(t, []string{"m2", "m3"}, chunks[1].MessageIDs)
	// timestamp inherits from the last contributing message
	assert.Equal(t, sess.Messages[2].Timestamp, chunks[1].Timestamp)
	assert.Equal(t, "daria", chunks[1].Persona)
}

func TestChunkSessionRespectsTokenBudget(t *testing.T) {
	long := strings.Repeat("This sentence pads the token budget out considerably for testing. ", 40)
	sess := &session.Session{
		ID: "s2",
		Messages: []session.Message{
			msg("m1", session.RoleUser, strings.TrimSpace(long), 0),
		},
	}

	chunks := ChunkSession(sess)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		total := 0
		for _, s := range splitSentences(c.Text) {
			total += approxTokens(s)
		}
		assert.LessOrEqual(t, total, maxChunkTokens)
	}
	// chunk ids stay monotonic
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
	}
}

func TestChunkSessionSkipsSystemAndHiddenMessages(t *testing.T) {
	hidden := false
	sess := &session.Session{
		ID: "s3",
		Messages: []session.Message{
			msg("m1", session.RoleSystem, "You are Daria.", 0),
			{ID: "m2", Role: session.RoleUser, Content: "Researcher aside.", VisibleToParticipant: &hidden},
			msg("m3", session.RoleUser, "Actual answer.", 1),
		},
	}

	chunks := ChunkSession(sess)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Actual answer.", chunks[0].Text)
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First one. Second one! Third? Trailing fragment")
	assert.Equal(t, []string{"First one.", "Second one!", "Third?", "Trailing fragment"}, got)

	// periods inside tokens do not split
	got = splitSentences("Version 2.5 shipped late. True.")
	assert.Equal(t, []string{"Version 2.5 shipped late.", "True."}, got)
}

func TestChunkEmptySession(t *testing.T) {
	chunks := ChunkSession(&session.Session{ID: "s4"})
	assert.Empty(t, chunks)
}
