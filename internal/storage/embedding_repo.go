package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"arxivrag/internal/util"
	"arxivrag/internal/vector"
)

type EmbeddingRepo struct {
	pool *pgxpool.Pool
	dim  int
}

func NewEmbeddingRepo(pool *pgxpool.Pool, dim int) *EmbeddingRepo {
	return &EmbeddingRepo{pool: pool, dim: dim}
}

func (r *EmbeddingRepo) Attach(ctx context.Context, paperID int64, vec []float32) error {
	if len(vec) != r.dim {
		return fmt.Errorf("%w: got %d, store expects %d", util.ErrDimensionMismatch, len(vec), r.dim)
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO embeddings (paper_id, embedding) VALUES ($1, $2::vector)`,
		paperID, vector.ToLiteral(vec))
	if err != nil {
		return fmt.Errorf("attach embedding: %w", err)
	}
	return nil
}
