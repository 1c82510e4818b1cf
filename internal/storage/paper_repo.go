package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arxivrag/internal/models"
)

type PaperRepo struct {
	pool *pgxpool.Pool
}

func NewPaperRepo(pool *pgxpool.Pool) *PaperRepo {
	return &PaperRepo{pool: pool}
}

// Upsert inserts the paper unless its arxiv_id already exists. The
// INSERT ... ON CONFLICT DO NOTHING plus fallback SELECT keeps the
// operation race-safe under concurrent ingestion runs.
func (r *PaperRepo) Upsert(ctx context.Context, p models.Paper) (int64, bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO papers (arxiv_id, title, authors, abstract, published_date, categories, url, topic_id)
VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5, NULLIF($6,''), NULLIF($7,''), $8)
ON CONFLICT (arxiv_id) DO NOTHING
RETURNING id`,
		p.ArxivID, p.Title, p.Authors, p.Abstract, p.PublishedDate, p.Categories, p.URL, p.TopicID,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("upsert paper: %w", err)
	}

	// Conflict: the row already exists, return its key.
	err = r.pool.QueryRow(ctx, `SELECT id FROM papers WHERE arxiv_id=$1`, p.ArxivID).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("select existing paper: %w", err)
	}
	return id, false, nil
}

func (r *PaperRepo) ListByTopic(ctx context.Context, topicID int64) ([]models.Paper, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, arxiv_id, title, COALESCE(authors,''), COALESCE(abstract,''),
       published_date, COALESCE(categories,''), COALESCE(url,''), topic_id, created_at
FROM papers
WHERE topic_id=$1
ORDER BY created_at DESC, id DESC`, topicID)
	if err != nil {
		return nil, fmt.Errorf("list papers by topic: %w", err)
	}
	defer rows.Close()

	out := make([]models.Paper, 0)
	for rows.Next() {
		var p models.Paper
		if err := rows.Scan(&p.ID, &p.ArxivID, &p.Title, &p.Authors, &p.Abstract, &p.PublishedDate, &p.Categories, &p.URL, &p.TopicID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}
