package semantic

import (
	"strconv"
	"strings"
	"time"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
)

// maxChunkTokens bounds chunk size in approximate model tokens.
const maxChunkTokens = 256

// Chunk is one embeddable slice of a session transcript.
type Chunk struct {
	SessionID  string    `json:"session_id"`
	ChunkID    int       `json:"chunk_id"`
	Text       string    `json:"text"`
	Speaker    string    `json:"speaker"`
	Timestamp  time.Time `json:"timestamp"`
	Phase      string    `json:"phase,omitempty"`
	Persona    string    `json:"persona,omitempty"`
	MessageIDs []string  `json:"message_ids,omitempty"`
}

// PointID is the deterministic vector id: re-ingesting a session overwrites
// its points instead of duplicating them.
func (c Chunk) PointID() string {
	return c.SessionID + ":" + strconv.Itoa(c.ChunkID)
}

// ChunkSession splits a session's visible conversation into chunks. Packing
// is greedy by sentence up to the token budget, and a speaker change always
// starts a new chunk.
func ChunkSession(sess *session.Session) []Chunk {
	var chunks []Chunk
	chunkID := 0

	var (
		currentText   []string
		currentTokens int
		speaker       string
		lastTimestamp time.Time
		messageIDs    []string
	)

	flush := func() {
		if len(currentText) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			SessionID:  sess.ID,
			ChunkID:    chunkID,
			Text:       strings.Join(currentText, " "),
			Speaker:    speaker,
			Timestamp:  lastTimestamp,
			Persona:    sess.Character,
			Phase:      sess.InterviewType,
			MessageIDs: append([]string(nil), messageIDs...),
		})
		chunkID++
		currentText = nil
		currentTokens = 0
		messageIDs = nil
	}

	for _, msg := range sess.Messages {
		if msg.Role == session.RoleSystem || !msg.ParticipantVisible() {
			continue
		}
		msgSpeaker := session.SpeakerLabel(msg.Role)
		if msgSpeaker != speaker {
			flush()
			speaker = msgSpeaker
		}

		for _, sentence := range splitSentences(msg.Content) {
			tokens := approxTokens(sentence)
			if currentTokens+tokens > maxChunkTokens && len(currentText) > 0 {
				flush()
			}
			currentText = append(currentText, sentence)
			currentTokens += tokens
			lastTimestamp = msg.Timestamp
			if len(messageIDs) == 0 || messageIDs[len(messageIDs)-1] != msg.ID {
				messageIDs = append(messageIDs, msg.ID)
			}
		}
	}
	flush()
	return chunks
}

// splitSentences cuts text after `.`, `!` or `?` followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(strings.TrimSpace(text))

	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			atEnd := i == len(runes)-1
			nextIsSpace := !atEnd && (runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t')
			if atEnd || nextIsSpace {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// approxTokens estimates model tokens as len/4 with a word-count floor.
func approxTokens(s string) int {
	byLen := len(s) / 4
	words := len(strings.Fields(s))
	if words > byLen {
		byLen = words
	}
	if byLen == 0 {
		byLen = 1
	}
	return byLen
}
