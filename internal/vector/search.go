// Package vector issues pgvector similarity queries and provides the
// cosine math shared with the in-process sqlite backend.
package vector

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"

	"arxivrag/internal/models"
)

type SearchFilters struct {
	TopicID *int64
}

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchPapers ranks papers by cosine similarity to queryVec. Ordering
// is ascending cosine distance with ascending paper id as tie-break, so
// repeated calls over the same data return the same sequence.
func (s *Searcher) SearchPapers(ctx context.Context, queryVec []float32, topK int, filters SearchFilters) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	vecLiteral := ToLiteral(queryVec)
	args := []any{vecLiteral, topK}

	filterSQL := ""
	if filters.TopicID != nil {
		filterSQL = " AND p.topic_id = $3"
		args = append(args, *filters.TopicID)
	}

	query := `
SELECT p.id,
       p.arxiv_id,
       p.title,
       COALESCE(p.abstract, '') AS abstract,
       COALESCE(p.url, '') AS url,
       1 - (e.embedding <=> $1::vector) AS similarity
FROM embeddings e
JOIN papers p ON p.id = e.paper_id
WHERE TRUE` + filterSQL + `
ORDER BY e.embedding <=> $1::vector, p.id
LIMIT $2`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.SearchResult, 0, topK)
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.PaperID, &r.ArxivID, &r.Title, &r.Abstract, &r.URL, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

// ToLiteral renders a vector as the pgvector text literal [x,y,...].
func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Zero
// vectors and mismatched lengths yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
