package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"arxivrag/internal/models"
	"arxivrag/internal/vector"
)

// PostgresStore backs the schema with Postgres plus the pgvector
// extension. Nearest-neighbor queries run server-side against the
// cosine-distance index.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedDim int

	papers     *PaperRepo
	embeddings *EmbeddingRepo
	topics     *TopicRepo
	searcher   *vector.Searcher
}

func NewPostgresStore(ctx context.Context, dsn string, embedDim int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool, embedDim: embedDim}
	s.papers = NewPaperRepo(pool)
	s.embeddings = NewEmbeddingRepo(pool, embedDim)
	s.topics = NewTopicRepo(pool)
	s.searcher = vector.NewSearcher(pool)
	return s, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS topics (
  id BIGSERIAL PRIMARY KEY,
  name TEXT UNIQUE NOT NULL,
  description TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		`CREATE TABLE IF NOT EXISTS papers (
  id BIGSERIAL PRIMARY KEY,
  arxiv_id TEXT UNIQUE NOT NULL,
  title TEXT NOT NULL,
  authors TEXT,
  abstract TEXT,
  published_date DATE,
  categories TEXT,
  url TEXT,
  topic_id BIGINT REFERENCES topics(id),
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embeddings (
  id BIGSERIAL PRIMARY KEY,
  paper_id BIGINT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
  embedding vector(%d) NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.embedDim),
		`CREATE INDEX IF NOT EXISTS embeddings_paper_id_idx ON embeddings (paper_id)`,
		`CREATE INDEX IF NOT EXISTS embeddings_vector_idx
  ON embeddings USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpsertPaper(ctx context.Context, p models.Paper) (int64, bool, error) {
	return s.papers.Upsert(ctx, p)
}

func (s *PostgresStore) AttachEmbedding(ctx context.Context, paperID int64, vec []float32) error {
	return s.embeddings.Attach(ctx, paperID, vec)
}

func (s *PostgresStore) NearestNeighbors(ctx context.Context, queryVec []float32, topK int, topicID *int64) ([]models.SearchResult, error) {
	return s.searcher.SearchPapers(ctx, queryVec, topK, vector.SearchFilters{TopicID: topicID})
}

func (s *PostgresStore) GetOrCreateTopic(ctx context.Context, name, description string) (int64, error) {
	return s.topics.GetOrCreate(ctx, name, description)
}

func (s *PostgresStore) ListTopics(ctx context.Context) ([]models.Topic, error) {
	return s.topics.List(ctx)
}

func (s *PostgresStore) FindTopic(ctx context.Context, name string) (models.Topic, bool, error) {
	return s.topics.Find(ctx, name)
}

func (s *PostgresStore) ListPapersByTopic(ctx context.Context, topicID int64) ([]models.Paper, error) {
	return s.papers.ListByTopic(ctx, topicID)
}

func (s *PostgresStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
