package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// chunkRecord is the chunks table row. Tag lists are stored as JSON text so
// search can filter on them without extra tables.
type chunkRecord struct {
	PointID   string          `gorm:"column:point_id;primaryKey"`
	SessionID string          `gorm:"column:session_id;index;not null"`
	ChunkID   int             `gorm:"column:chunk_id"`
	Content   string          `gorm:"column:content;type:text"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(1536)"`
	Speaker   string          `gorm:"column:speaker"`
	Timestamp time.Time       `gorm:"column:ts"`
	Phase     string          `gorm:"column:phase"`
	Persona   string          `gorm:"column:persona"`
	Tags      string          `gorm:"column:tags;type:text"`
	Themes    string          `gorm:"column:themes;type:text"`
	Emotions  string          `gorm:"column:emotions;type:text"`
	Insights  string          `gorm:"column:insights;type:text"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (chunkRecord) TableName() string { return "chunks" }

// Point is one chunk plus its vector and tags, ready for indexing.
type Point struct {
	Chunk  Chunk
	Vector []float32
	Tags   Tags
}

// Filter narrows a search to matching metadata.
type Filter struct {
	SessionID string
	Emotion   string
	Theme     string
	Insight   string
}

// Result is one index hit.
type Result struct {
	SessionID string                 `json:"session_id"`
	ChunkID   int                    `json:"chunk_id"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Score     float64                `json:"score"`
	Timestamp time.Time              `json:"timestamp"`
}

// Index is the pgvector-backed chunk store.
type Index struct {
	db *gorm.DB
}

// NewIndex connects to Postgres, ensures the vector extension, and migrates
// the chunks table.
func NewIndex(dsn string) (*Index, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.AutoMigrate(&chunkRecord{}); err != nil {
		return nil, fmt.Errorf("migrate chunks table: %w", err)
	}
	return &Index{db: db}, nil
}

// NewIndexWithDB wraps an existing connection (tests).
func NewIndexWithDB(db *gorm.DB) *Index {
	return &Index{db: db}
}

// Add upserts points by point id.
func (ix *Index) Add(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	records := make([]chunkRecord, len(points))
	for i, p := range points {
		tagsJSON, _ := json.Marshal(p.Tags)
		themesJSON, _ := json.Marshal(p.Tags.Themes)
		emotionsJSON, _ := json.Marshal(p.Tags.Emotions)
		insightsJSON, _ := json.Marshal(p.Tags.UXHeuristicViolations)
		records[i] = chunkRecord{
			PointID:   p.Chunk.PointID(),
			SessionID: p.Chunk.SessionID,
			ChunkID:   p.Chunk.ChunkID,
			Content:   p.Chunk.Text,
			Embedding: pgvector.NewVector(p.Vector),
			Speaker:   p.Chunk.Speaker,
			Timestamp: p.Chunk.Timestamp,
			Phase:     p.Chunk.Phase,
			Persona:   p.Chunk.Persona,
			Tags:      string(tagsJSON),
			Themes:    string(themesJSON),
			Emotions:  string(emotionsJSON),
			Insights:  string(insightsJSON),
		}
	}
	return ix.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "point_id"}},
			UpdateAll: true,
		}).
		Create(&records).Error
}

// Search runs cosine nearest-neighbor with optional metadata filters.
func (ix *Index) Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}

	type scored struct {
		chunkRecord
		Similarity float64
	}
	var rows []scored

	queryVector := pgvector.NewVector(vector)
	query := ix.db.WithContext(ctx).
		Table("chunks").
		Select("chunks.*, 1 - (embedding <=> ?) as similarity", queryVector)
	query = applyFilter(query, filter)

	err := query.Order("similarity DESC").Limit(limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, len(rows))
	for i, row := range rows {
		results[i] = toResult(row.chunkRecord, row.Similarity)
	}
	return results, nil
}

// FindByTag returns chunks whose tag column contains the value. Used by the
// emotion, theme, and insight-tag search modes.
func (ix *Index) FindByTag(ctx context.Context, filter Filter, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []chunkRecord
	query := applyFilter(ix.db.WithContext(ctx).Table("chunks"), filter)
	if err := query.Order("ts DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("tag search: %w", err)
	}
	results := make([]Result, len(rows))
	for i, row := range rows {
		results[i] = toResult(row, 1)
	}
	return results, nil
}

// DeleteBySession removes every point for a session.
func (ix *Index) DeleteBySession(ctx context.Context, sessionID string) error {
	return ix.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&chunkRecord{}).Error
}

func applyFilter(query *gorm.DB, filter Filter) *gorm.DB {
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.Emotion != "" {
		query = query.Where("emotions LIKE ?", tagPattern(filter.Emotion))
	}
	if filter.Theme != "" {
		query = query.Where("themes LIKE ?", tagPattern(filter.Theme))
	}
	if filter.Insight != "" {
		query = query.Where("insights LIKE ?", tagPattern(filter.Insight))
	}
	return query
}

// tagPattern matches a value inside a JSON string array column.
func tagPattern(value string) string {
	return "%\"" + value + "\"%"
}

func toResult(row chunkRecord, score float64) Result {
	metadata := map[string]interface{}{
		"speaker": row.Speaker,
		"phase":   row.Phase,
		"persona": row.Persona,
	}
	var tags map[string]interface{}
	if err := json.Unmarshal([]byte(row.Tags), &tags); err == nil {
		for k, v := range tags {
			metadata[k] = v
		}
	}
	return Result{
		SessionID: row.SessionID,
		ChunkID:   row.ChunkID,
		Content:   row.Content,
		Metadata:  metadata,
		Score:     score,
		Timestamp: row.Timestamp,
	}
}
