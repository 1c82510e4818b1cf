// Package storage persists papers, their embeddings, and topics, and
// answers nearest-neighbor queries over the embedding vectors.
package storage

import (
	"context"
	"fmt"
	"strings"

	"arxivrag/internal/config"
	"arxivrag/internal/models"
)

type Store interface {
	EnsureSchema(ctx context.Context) error

	// UpsertPaper inserts the paper if its arXiv identifier is new and
	// returns (surrogate key, wasNew). Calling it again with the same
	// identifier returns the existing key with wasNew=false.
	UpsertPaper(ctx context.Context, p models.Paper) (int64, bool, error)

	// AttachEmbedding stores one vector for the paper. A vector whose
	// length differs from the configured dimension fails with
	// util.ErrDimensionMismatch.
	AttachEmbedding(ctx context.Context, paperID int64, vec []float32) error

	// NearestNeighbors returns up to topK papers ordered by descending
	// cosine similarity, ties broken by ascending surrogate key.
	NearestNeighbors(ctx context.Context, queryVec []float32, topK int, topicID *int64) ([]models.SearchResult, error)

	GetOrCreateTopic(ctx context.Context, name, description string) (int64, error)
	ListTopics(ctx context.Context) ([]models.Topic, error)
	FindTopic(ctx context.Context, name string) (models.Topic, bool, error)
	ListPapersByTopic(ctx context.Context, topicID int64) ([]models.Paper, error)

	Close()
}

// Open builds the store named by cfg.StoreBackend and bootstraps its schema.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.StoreBackend)) {
	case "", "postgres":
		s, err = NewPostgresStore(ctx, cfg.PostgresURL, cfg.EmbedDim)
	case "sqlite":
		s, err = NewSQLiteStore(cfg.SQLitePath, cfg.EmbedDim)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
