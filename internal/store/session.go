package store

import (
	"os"
	"sort"
	"time"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateSession spawns a session from a guide: guide fields copy onto the
// session, custom questions copy with asked-state reset, and the session id
// is linked into the guide's sessions list.
func (s *Store) CreateSession(guideID string, interviewee session.Interviewee) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.readGuide(guideID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:            uuid.NewString(),
		GuideID:       g.ID,
		Interviewee:   interviewee,
		Status:        session.StatusActive,
		Title:         g.Title,
		Project:       g.Project,
		InterviewType: g.InterviewType,
		Topic:         g.Topic,
		Context:       g.Context,
		Goals:         g.Goals,
		Character:     g.Character,
		VoiceID:       g.VoiceID,
		Messages:      []session.Message{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, q := range g.CustomQuestions {
		sess.CustomQuestions = append(sess.CustomQuestions, session.CustomQuestion{Text: q.Text})
	}

	if err := s.writeSession(sess); err != nil {
		return nil, err
	}

	g.AddSession(sess.ID)
	g.UpdatedAt = now
	if err := writeJSON(s, s.guidePath(g.ID), g); err != nil {
		return nil, err
	}
	return sess, nil
}

// ImportSession persists an externally assembled session (transcript upload)
// and links it to its guide when one is set.
func (s *Store) ImportSession(sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Status == "" {
		sess.Status = session.StatusCompleted
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	if err := s.writeSession(sess); err != nil {
		return err
	}
	if sess.GuideID == "" {
		return nil
	}
	g, err := s.readGuide(sess.GuideID)
	if err != nil {
		return err
	}
	g.AddSession(sess.ID)
	g.UpdatedAt = now
	return writeJSON(s, s.guidePath(g.ID), g)
}

// GetSession loads a session by id. A past expiration date flips the status
// to expired and persists the transition before returning.
func (s *Store) GetSession(id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readSessionChecked(id)
}

func (s *Store) readSessionChecked(id string) (*session.Session, error) {
	sess, err := s.readSession(id)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusExpired && sess.Expired(time.Now().UTC()) {
		sess.Status = session.StatusExpired
		sess.UpdatedAt = time.Now().UTC()
		if err := s.writeSession(sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func (s *Store) readSession(id string) (*session.Session, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	sess, err := decodeSession(data)
	if err != nil {
		s.log.Warn("corrupt session document", zap.String("session_id", id), zap.Error(err))
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) writeSession(sess *session.Session) error {
	data, err := encodeSession(sess)
	if err != nil {
		return err
	}
	return s.writeFile(s.sessionPath(sess.ID), data)
}

// ListSessions returns every readable session, newest-first.
func (s *Store) ListSessions() ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.listIDs("sessions")
	if err != nil {
		return nil, err
	}
	sessions := make([]*session.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.readSession(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// ListSessionsForGuide returns the sessions linked to one guide, oldest-first.
func (s *Store) ListSessionsForGuide(guideID string) ([]*session.Session, error) {
	s.mu.RLock()
	g, err := s.readGuide(guideID)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	sessions := make([]*session.Session, 0, len(g.Sessions))
	for _, id := range g.Sessions {
		sess, err := s.readSession(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// UpdateSession overwrites a session document, bumping updated_at.
func (s *Store) UpdateSession(sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readSession(sess.ID); err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()
	return s.writeSession(sess)
}

// AddMessage appends a message to the session, keeping the transcript in
// sync, and returns the updated session.
func (s *Store) AddMessage(sessionID string, msg session.Message) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.readSessionChecked(sessionID)
	if err != nil {
		return nil, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	sess.AppendMessage(msg)
	sess.UpdatedAt = time.Now().UTC()
	if err := s.writeSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetMessages returns the session's message history.
func (s *Store) GetMessages(sessionID string) ([]session.Message, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Messages, nil
}

// CompleteSession freezes an active session. Completing an already terminal
// session is a no-op returning the stored state.
func (s *Store) CompleteSession(id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.readSessionChecked(id)
	if err != nil {
		return nil, err
	}
	if sess.Terminal() {
		return sess, nil
	}
	sess.Status = session.StatusCompleted
	sess.UpdatedAt = time.Now().UTC()
	if err := s.writeSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SetAnalysis stores an analysis result and advances the session to analyzed.
func (s *Store) SetAnalysis(id string, analysis map[string]interface{}) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.readSessionChecked(id)
	if err != nil {
		return nil, err
	}
	sess.Analysis = analysis
	if sess.Status != session.StatusExpired {
		sess.Status = session.StatusAnalyzed
	}
	sess.UpdatedAt = time.Now().UTC()
	if err := s.writeSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// DeleteSession removes the session document and unlinks it from its guide.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.readSession(id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.sessionPath(id)); err != nil {
		return err
	}
	if sess.GuideID == "" {
		return nil
	}
	g, err := s.readGuide(sess.GuideID)
	if err != nil {
		// Orphaned link; nothing to unlink.
		return nil
	}
	g.RemoveSession(id)
	g.UpdatedAt = time.Now().UTC()
	return writeJSON(s, s.guidePath(g.ID), g)
}

// RebuildGuideLinks re-derives every guide's sessions list from the guide_id
// recorded on each session. Run at startup to repair drift from crashes or
// hand-edited documents.
func (s *Store) RebuildGuideLinks() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	guideIDs, err := s.listIDs("guides")
	if err != nil {
		return err
	}
	sessionIDs, err := s.listIDs("sessions")
	if err != nil {
		return err
	}

	links := make(map[string][]string)
	for _, id := range sessionIDs {
		sess, err := s.readSession(id)
		if err != nil || sess.GuideID == "" {
			continue
		}
		links[sess.GuideID] = append(links[sess.GuideID], id)
	}

	for _, id := range guideIDs {
		g, err := s.readGuide(id)
		if err != nil {
			continue
		}
		rebuilt := links[id]
		if rebuilt == nil {
			rebuilt = []string{}
		}
		sort.Strings(rebuilt)
		if equalStrings(g.Sessions, rebuilt) {
			continue
		}
		g.Sessions = rebuilt
		g.UpdatedAt = time.Now().UTC()
		if err := writeJSON(s, s.guidePath(id), g); err != nil {
			return err
		}
		s.log.Info("rebuilt guide session links",
			zap.String("guide_id", id), zap.Int("sessions", len(rebuilt)))
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sorted := append([]string(nil), a...)
	sort.Strings(sorted)
	for i := range sorted {
		if sorted[i] != b[i] {
			return false
		}
	}
	return true
}
