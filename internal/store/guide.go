package store

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/guide"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateGuide assigns an id and timestamps when missing and persists the
// guide. A new guide always starts active with an empty sessions list.
func (s *Store) CreateGuide(g *guide.DiscussionGuide) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = guide.StatusActive
	}
	if g.Sessions == nil {
		g.Sessions = []string{}
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	return writeJSON(s, s.guidePath(g.ID), g)
}

// GetGuide loads a guide by id.
func (s *Store) GetGuide(id string) (*guide.DiscussionGuide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readGuide(id)
}

// readGuide is the lockless load shared by the guide ops. A document that
// fails to parse is logged and reported as not found.
func (s *Store) readGuide(id string) (*guide.DiscussionGuide, error) {
	data, err := os.ReadFile(s.guidePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}
	g, err := decodeGuide(data)
	if err != nil {
		s.log.Warn("corrupt guide document", zap.String("guide_id", id), zap.Error(err))
		return nil, ErrGuideNotFound
	}
	return g, nil
}

// ListGuides returns all guides sorted newest-first. When activeOnly is set,
// archived guides are filtered out.
func (s *Store) ListGuides(activeOnly bool) ([]*guide.DiscussionGuide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.listIDs("guides")
	if err != nil {
		return nil, err
	}

	guides := make([]*guide.DiscussionGuide, 0, len(ids))
	for _, id := range ids {
		g, err := s.readGuide(id)
		if err != nil {
			continue
		}
		if activeOnly && g.Status != guide.StatusActive {
			continue
		}
		guides = append(guides, g)
	}
	sort.Slice(guides, func(i, j int) bool {
		return guides[i].CreatedAt.After(guides[j].CreatedAt)
	})
	return guides, nil
}

// UpdateGuide overwrites a guide document, bumping updated_at. The guide must
// already exist.
func (s *Store) UpdateGuide(g *guide.DiscussionGuide) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readGuide(g.ID); err != nil {
		return err
	}
	g.UpdatedAt = time.Now().UTC()
	return writeJSON(s, s.guidePath(g.ID), g)
}

// ArchiveGuide marks the guide archived; its sessions are untouched.
func (s *Store) ArchiveGuide(id string) (*guide.DiscussionGuide, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.readGuide(id)
	if err != nil {
		return nil, err
	}
	g.Status = guide.StatusArchived
	g.UpdatedAt = time.Now().UTC()
	if err := writeJSON(s, s.guidePath(id), g); err != nil {
		return nil, err
	}
	return g, nil
}

// DuplicateGuide clones a guide under a fresh id with no linked sessions.
// Custom questions copy over with asked-state reset.
func (s *Store) DuplicateGuide(id, newTitle string) (*guide.DiscussionGuide, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.readGuide(id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dup := *src
	dup.ID = uuid.NewString()
	dup.Status = guide.StatusActive
	dup.Sessions = []string{}
	dup.CreatedAt = now
	dup.UpdatedAt = now
	if newTitle != "" {
		dup.Title = newTitle
	} else {
		dup.Title = src.Title + " (copy)"
	}
	dup.CustomQuestions = make([]guide.CustomQuestion, len(src.CustomQuestions))
	for i, q := range src.CustomQuestions {
		dup.CustomQuestions[i] = guide.CustomQuestion{Text: q.Text}
	}

	if err := writeJSON(s, s.guidePath(dup.ID), &dup); err != nil {
		return nil, err
	}
	return &dup, nil
}

// DeleteGuide removes the guide document. Its sessions survive as orphans;
// RebuildGuideLinks will not resurrect the link.
func (s *Store) DeleteGuide(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readGuide(id); err != nil {
		return err
	}
	return os.Remove(s.guidePath(id))
}

func decodeGuide(data []byte) (*guide.DiscussionGuide, error) {
	var g guide.DiscussionGuide
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	if g.Status == "" {
		g.Status = guide.StatusActive
	}
	if g.Sessions == nil {
		g.Sessions = []string{}
	}
	return &g, nil
}
