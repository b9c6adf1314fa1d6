package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sessionmodel "github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
	"github.com/Stephen55Dulaney/Daria-sub000/pkg/utils"
)

// speakerLine matches "Name: content" turn openers in pasted transcripts.
var speakerLine = regexp.MustCompile(`^([^:]+):\s*(.*)$`)

var researcherPatterns = []string{"moderator", "interviewer", "researcher", "facilitator"}
var participantPatterns = []string{"participant", "respondent", "user", "interviewee"}

type uploadTranscriptRequest struct {
	GuideID         string `json:"guide_id" validate:"required"`
	Title           string `json:"title"`
	ParticipantName string `json:"participant_name"`
	Transcript      string `json:"transcript" validate:"required"`
}

// handleUploadTranscript imports a pasted transcript as a completed session.
func (h *Handler) handleUploadTranscript(w http.ResponseWriter, r *http.Request) {
	var payload uploadTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.store.GetGuide(payload.GuideID)
	if err != nil {
		if errors.Is(err, store.ErrGuideNotFound) {
			utils.RespondError(w, http.StatusNotFound, "guide not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	turns := parseTranscript(payload.Transcript)
	if len(turns) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "transcript contains no recognizable turns")
		return
	}

	title := payload.Title
	if title == "" {
		title = g.Title + " (uploaded)"
	}
	now := time.Now().UTC()
	sess := &sessionmodel.Session{
		ID:            uuid.NewString(),
		GuideID:       g.ID,
		Interviewee:   sessionmodel.Interviewee{Name: payload.ParticipantName},
		Title:         title,
		Project:       g.Project,
		InterviewType: g.InterviewType,
		Topic:         g.Topic,
		Context:       g.Context,
		Goals:         g.Goals,
		Character:     g.Character,
	}
	for i, turn := range turns {
		role := sessionmodel.RoleUser
		if turn.researcher {
			role = sessionmodel.RoleAssistant
		}
		sess.AppendMessage(sessionmodel.Message{
			ID:        uuid.NewString(),
			Role:      role,
			Content:   turn.content,
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}

	if err := h.store.ImportSession(sess); err != nil {
		h.log.Error("import transcript session", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "could not import transcript")
		return
	}

	h.log.Info("transcript imported",
		zap.String("session_id", sess.ID),
		zap.String("guide_id", g.ID),
		zap.Int("turns", len(turns)))
	utils.RespondJSON(w, http.StatusCreated, sess)
}

type transcriptTurn struct {
	speaker    string
	content    string
	researcher bool
}

// parseTranscript splits raw text into speaker turns. Lines without a
// "Name:" opener continue the previous speaker's turn. Speakers are
// classified by name pattern; an unmatched name falls back to positional
// classification where the first speaker is the researcher.
func parseTranscript(raw string) []transcriptTurn {
	var turns []transcriptTurn
	var speaker string
	var content []string

	flush := func() {
		if speaker != "" && len(content) > 0 {
			turns = append(turns, transcriptTurn{speaker: speaker, content: strings.Join(content, " ")})
		}
		content = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := speakerLine.FindStringSubmatch(line); m != nil {
			flush()
			speaker = strings.TrimSpace(m[1])
			if rest := strings.TrimSpace(m[2]); rest != "" {
				content = append(content, rest)
			}
			continue
		}
		if speaker == "" {
			speaker = "Speaker"
		}
		content = append(content, line)
	}
	flush()

	classifySpeakers(turns)
	return turns
}

func classifySpeakers(turns []transcriptTurn) {
	if len(turns) == 0 {
		return
	}
	firstSpeaker := turns[0].speaker
	for i := range turns {
		name := strings.ToLower(turns[i].speaker)
		switch {
		case matchesAny(name, researcherPatterns):
			turns[i].researcher = true
		case matchesAny(name, participantPatterns):
			turns[i].researcher = false
		default:
			// The opening speaker is usually the researcher.
			turns[i].researcher = turns[i].speaker == firstSpeaker
		}
	}
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}
