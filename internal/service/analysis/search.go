package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/semantic"
)

// Search modes.
const (
	ModeSemantic = "semantic"
	ModeText     = "text"
	ModeEmotion  = "emotion"
	ModeTheme    = "theme"
	ModeInsight  = "insight"
)

const defaultSearchLimit = 10

// Embedder produces query vectors for semantic search.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Searcher is the vector-index surface search depends on.
type Searcher interface {
	Search(ctx context.Context, vector []float32, filter semantic.Filter, limit int) ([]semantic.Result, error)
	FindByTag(ctx context.Context, filter semantic.Filter, limit int) ([]semantic.Result, error)
}

// SearchRequest selects a mode and scope for one corpus query.
type SearchRequest struct {
	Query     string `json:"query" validate:"required"`
	Mode      string `json:"mode"`
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

// Record is the uniform search hit shape across all modes. Semantic modes
// fill ChunkID; text search fills MessageID.
type Record struct {
	SessionID       string                 `json:"session_id"`
	ChunkID         int                    `json:"chunk_id,omitempty"`
	MessageID       string                 `json:"message_id,omitempty"`
	Content         string                 `json:"content"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Score           float64                `json:"score"`
	Timestamp       time.Time              `json:"timestamp"`
	IntervieweeName string                 `json:"interviewee_name,omitempty"`
}

// Search runs one query in the requested mode. An unset mode defaults to
// semantic when the vector layer is configured, text otherwise.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]Record, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("search query is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeSemantic
	}

	switch mode {
	case ModeSemantic:
		return s.semanticSearch(ctx, req, limit)
	case ModeText:
		return s.textSearch(ctx, req, limit)
	case ModeEmotion:
		return s.tagSearch(ctx, semantic.Filter{SessionID: req.SessionID, Emotion: strings.ToLower(req.Query)}, limit)
	case ModeTheme:
		return s.tagSearch(ctx, semantic.Filter{SessionID: req.SessionID, Theme: strings.ToLower(req.Query)}, limit)
	case ModeInsight:
		return s.tagSearch(ctx, semantic.Filter{SessionID: req.SessionID, Insight: strings.ToLower(req.Query)}, limit)
	default:
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
}

// semanticSearch embeds the query and ranks chunks by cosine similarity.
// Any failure in the embedding provider or the index degrades to text search
// so the researcher still gets an answer.
func (s *Service) semanticSearch(ctx context.Context, req SearchRequest, limit int) ([]Record, error) {
	if s.embedder == nil || s.index == nil {
		return s.textSearch(ctx, req, limit)
	}
	vectors, err := s.embedder.Embed(ctx, []string{req.Query})
	if err != nil || len(vectors) == 0 {
		s.log.Warn("semantic search degraded to text search", zap.Error(err))
		return s.textSearch(ctx, req, limit)
	}
	results, err := s.index.Search(ctx, vectors[0], semantic.Filter{SessionID: req.SessionID}, limit)
	if err != nil {
		s.log.Warn("semantic search degraded to text search", zap.Error(err))
		return s.textSearch(ctx, req, limit)
	}
	return s.toRecords(results), nil
}

func (s *Service) tagSearch(ctx context.Context, filter semantic.Filter, limit int) ([]Record, error) {
	if s.index == nil {
		return nil, fmt.Errorf("semantic index is not configured")
	}
	results, err := s.index.FindByTag(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("tag search: %w", err)
	}
	return s.toRecords(results), nil
}

// textSearch does a case-insensitive substring scan over session messages.
func (s *Service) textSearch(ctx context.Context, req SearchRequest, limit int) ([]Record, error) {
	sessions, err := s.searchScope(req.SessionID)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(req.Query)

	var records []Record
	for _, sess := range sessions {
		for _, msg := range sess.Messages {
			if msg.Role == session.RoleSystem {
				continue
			}
			if !strings.Contains(strings.ToLower(msg.Content), needle) {
				continue
			}
			records = append(records, Record{
				SessionID:       sess.ID,
				MessageID:       msg.ID,
				Content:         msg.Content,
				Metadata:        map[string]interface{}{"role": msg.Role},
				Score:           1,
				Timestamp:       msg.Timestamp,
				IntervieweeName: sess.Interviewee.Name,
			})
			if len(records) >= limit {
				return records, nil
			}
		}
	}
	return records, nil
}

func (s *Service) searchScope(sessionID string) ([]*session.Session, error) {
	if sessionID != "" {
		sess, err := s.store.GetSession(sessionID)
		if err != nil {
			return nil, err
		}
		return []*session.Session{sess}, nil
	}
	return s.store.ListSessions()
}

// toRecords annotates index hits with the interviewee behind each session.
func (s *Service) toRecords(results []semantic.Result) []Record {
	names := make(map[string]string)
	records := make([]Record, 0, len(results))
	for _, r := range results {
		name, ok := names[r.SessionID]
		if !ok {
			if sess, err := s.store.GetSession(r.SessionID); err == nil {
				name = sess.Interviewee.Name
			}
			names[r.SessionID] = name
		}
		records = append(records, Record{
			SessionID:       r.SessionID,
			ChunkID:         r.ChunkID,
			Content:         r.Content,
			Metadata:        r.Metadata,
			Score:           r.Score,
			Timestamp:       r.Timestamp,
			IntervieweeName: name,
		})
	}
	return records
}
