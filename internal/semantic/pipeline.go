package semantic

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
)

// Indexer is the slice of the vector index the pipeline writes through.
type Indexer interface {
	Add(ctx context.Context, points []Point) error
	DeleteBySession(ctx context.Context, sessionID string) error
}

// Pipeline runs chunk, embed, tag, index for whole sessions.
type Pipeline struct {
	store    *store.Store
	embedder Provider
	tagger   *Tagger
	index    Indexer
	log      *zap.Logger
}

// NewPipeline wires the ingest pipeline.
func NewPipeline(st *store.Store, embedder Provider, tagger *Tagger, index Indexer, log *zap.Logger) *Pipeline {
	return &Pipeline{store: st, embedder: embedder, tagger: tagger, index: index, log: log}
}

// Ingest (re)indexes one session: embeddings are generated in one batch,
// each chunk is tagged, the session's old points are deleted, and the new
// points are added. Tagging failures leave the chunk untagged rather than
// aborting the ingest. The tag result is also written back onto each
// contributing message's semantic block. Returns the number of chunks.
func (p *Pipeline) Ingest(ctx context.Context, sessionID string) (int, error) {
	sess, err := p.store.GetSession(sessionID)
	if err != nil {
		return 0, err
	}

	chunks := ChunkSession(sess)
	if len(chunks) == 0 {
		if err := p.index.DeleteBySession(ctx, sessionID); err != nil {
			return 0, err
		}
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed session %s: %w", sessionID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed session %s: got %d vectors for %d chunks", sessionID, len(vectors), len(chunks))
	}

	messageTags := make(map[string]Tags)
	points := make([]Point, len(chunks))
	for i, chunk := range chunks {
		tags, err := p.tagger.TagChunk(ctx, chunk)
		if err != nil {
			p.log.Warn("chunk tagging failed, indexing untagged",
				zap.String("point_id", chunk.PointID()), zap.Error(err))
			tags = Tags{}
		} else {
			for _, msgID := range chunk.MessageIDs {
				messageTags[msgID] = tags
			}
		}
		points[i] = Point{Chunk: chunk, Vector: vectors[i], Tags: tags}
	}

	if err := p.index.DeleteBySession(ctx, sessionID); err != nil {
		return 0, fmt.Errorf("clear session points: %w", err)
	}
	if err := p.index.Add(ctx, points); err != nil {
		return 0, fmt.Errorf("add session points: %w", err)
	}

	if len(messageTags) > 0 {
		p.attachSemanticBlocks(sessionID, messageTags)
	}

	p.log.Info("session ingested",
		zap.String("session_id", sessionID), zap.Int("chunks", len(points)))
	return len(points), nil
}

// Delete purges a session's vectors and clears the semantic blocks from its
// messages.
func (p *Pipeline) Delete(ctx context.Context, sessionID string) error {
	if err := p.index.DeleteBySession(ctx, sessionID); err != nil {
		return err
	}

	sess, err := p.store.GetSession(sessionID)
	if err != nil {
		if err == store.ErrSessionNotFound {
			return nil
		}
		return err
	}
	changed := false
	for i := range sess.Messages {
		if sess.Messages[i].Semantic != nil {
			sess.Messages[i].Semantic = nil
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return p.store.UpdateSession(sess)
}

func (p *Pipeline) attachSemanticBlocks(sessionID string, messageTags map[string]Tags) {
	sess, err := p.store.GetSession(sessionID)
	if err != nil {
		p.log.Warn("semantic block write skipped", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	changed := false
	for i := range sess.Messages {
		if tags, ok := messageTags[sess.Messages[i].ID]; ok {
			sess.Messages[i].Semantic = tags.AsMap()
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := p.store.UpdateSession(sess); err != nil {
		p.log.Warn("semantic block write failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
