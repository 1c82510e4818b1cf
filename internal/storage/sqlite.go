package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"arxivrag/internal/models"
	"arxivrag/internal/util"
	"arxivrag/internal/vector"
)

// SQLiteStore is the zero-infrastructure backend: embeddings live as
// JSON text and nearest-neighbor search scans them in process. Good for
// local runs and tests, not for large corpora.
type SQLiteStore struct {
	db       *sql.DB
	embedDim int
}

func NewSQLiteStore(path string, embedDim int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// The sqlite driver serializes writes; one connection avoids
	// SQLITE_BUSY churn under concurrent activities.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db, embedDim: embedDim}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS topics (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT UNIQUE NOT NULL,
  description TEXT,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS papers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  arxiv_id TEXT UNIQUE NOT NULL,
  title TEXT NOT NULL,
  authors TEXT,
  abstract TEXT,
  published_date DATE,
  categories TEXT,
  url TEXT,
  topic_id INTEGER REFERENCES topics(id),
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  paper_id INTEGER NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
  embedding TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS embeddings_paper_id_idx ON embeddings (paper_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) UpsertPaper(ctx context.Context, p models.Paper) (int64, bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO papers (arxiv_id, title, authors, abstract, published_date, categories, url, topic_id)
VALUES (?, ?, NULLIF(?,''), NULLIF(?,''), ?, NULLIF(?,''), NULLIF(?,''), ?)
ON CONFLICT (arxiv_id) DO NOTHING`,
		p.ArxivID, p.Title, p.Authors, p.Abstract, p.PublishedDate, p.Categories, p.URL, p.TopicID)
	if err != nil {
		return 0, false, fmt.Errorf("upsert paper: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("paper insert id: %w", err)
		}
		return id, true, nil
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM papers WHERE arxiv_id=?`, p.ArxivID).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("select existing paper: %w", err)
	}
	return id, false, nil
}

func (s *SQLiteStore) AttachEmbedding(ctx context.Context, paperID int64, vec []float32) error {
	if len(vec) != s.embedDim {
		return fmt.Errorf("%w: got %d, store expects %d", util.ErrDimensionMismatch, len(vec), s.embedDim)
	}
	encoded, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO embeddings (paper_id, embedding) VALUES (?, ?)`, paperID, string(encoded))
	if err != nil {
		return fmt.Errorf("attach embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStore) NearestNeighbors(ctx context.Context, queryVec []float32, topK int, topicID *int64) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	query := `
SELECT p.id, p.arxiv_id, p.title, COALESCE(p.abstract,''), COALESCE(p.url,''), e.embedding
FROM embeddings e
JOIN papers p ON p.id = e.paper_id`
	args := []any{}
	if topicID != nil {
		query += ` WHERE p.topic_id = ?`
		args = append(args, *topicID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	results := make([]models.SearchResult, 0)
	for rows.Next() {
		var (
			r       models.SearchResult
			encoded string
		)
		if err := rows.Scan(&r.PaperID, &r.ArxivID, &r.Title, &r.Abstract, &r.URL, &encoded); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(encoded), &vec); err != nil {
			return nil, fmt.Errorf("decode embedding for paper %d: %w", r.PaperID, err)
		}
		r.Similarity = vector.Cosine(queryVec, vec)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].PaperID < results[j].PaperID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *SQLiteStore) GetOrCreateTopic(ctx context.Context, name, description string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO topics (name, description) VALUES (?, NULLIF(?,''))
ON CONFLICT (name) DO NOTHING`, name, description)
	if err != nil {
		return 0, fmt.Errorf("create topic: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("topic insert id: %w", err)
		}
		return id, nil
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM topics WHERE name=?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("select topic: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListTopics(ctx context.Context) ([]models.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
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

func (s *SQLiteStore) FindTopic(ctx context.Context, name string) (models.Topic, bool, error) {
	var t models.Topic
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, COALESCE(description,''), created_at FROM topics WHERE name=?`, name).
		Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Topic{}, false, nil
	}
	if err != nil {
		return models.Topic{}, false, fmt.Errorf("find topic: %w", err)
	}
	return t, true, nil
}

func (s *SQLiteStore) ListPapersByTopic(ctx context.Context, topicID int64) ([]models.Paper, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, arxiv_id, title, COALESCE(authors,''), COALESCE(abstract,''),
       published_date, COALESCE(categories,''), COALESCE(url,''), topic_id, created_at
FROM papers
WHERE topic_id=?
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

func (s *SQLiteStore) Close() {
	if s != nil && s.db != nil {
		_ = s.db.Close()
	}
}
