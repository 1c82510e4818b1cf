package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arxivrag/internal/models"
)

type TopicRepo struct {
	pool *pgxpool.Pool
}

func NewTopicRepo(pool *pgxpool.Pool) *TopicRepo {
	return &TopicRepo{pool: pool}
}

func (r *TopicRepo) GetOrCreate(ctx context.Context, name, description string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO topics (name, description) VALUES ($1, NULLIF($2,''))
ON CONFLICT (name) DO NOTHING
RETURNING id`, name, description).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("create topic: %w", err)
	}
	err = r.pool.QueryRow(ctx, `SELECT id FROM topics WHERE name=$1`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select topic: %w", err)
	}
	return id, nil
}

func (r *TopicRepo) Find(ctx context.Context, name string) (models.Topic, bool, error) {
	var t models.Topic
	err := r.pool.QueryRow(ctx, `
SELECT id, name, COALESCE(description,''), created_at FROM topics WHERE name=$1`, name).
		Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Topic{}, false, nil
	}
	if err != nil {
		return models.Topic{}, false, fmt.Errorf("find topic: %w", err)
	}
	return t, true, nil
}

func (r *TopicRepo) List(ctx context.Context) ([]models.Topic, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, name, COALESCE(description,''), created_at FROM topics ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	out := make([]models.Topic, 0)
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return out, nil
}
