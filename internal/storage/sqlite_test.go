package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arxivrag/internal/models"
	"arxivrag/internal/util"
)

func newTestStore(t *testing.T, dim int) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "papers.db"), dim)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestUpsertPaperIdempotent(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	p := models.Paper{ArxivID: "2301.00001", Title: "First", URL: "https://arxiv.org/abs/2301.00001"}
	id1, wasNew, err := s.UpsertPaper(ctx, p)
	require.NoError(t, err)
	assert.True(t, wasNew)
	assert.Positive(t, id1)

	id2, wasNew, err := s.UpsertPaper(ctx, p)
	require.NoError(t, err)
	assert.False(t, wasNew, "second upsert of the same identifier must be a skip")
	assert.Equal(t, id1, id2)
}

func TestAttachEmbeddingDimensionMismatch(t *testing.T) {
	s := newTestStore(t, 768)
	ctx := context.Background()

	id, _, err := s.UpsertPaper(ctx, models.Paper{ArxivID: "2301.00002", Title: "Dim Check"})
	require.NoError(t, err)

	for _, wrong := range []int{512, 1024} {
		err := s.AttachEmbedding(ctx, id, make([]float32, wrong))
		require.Error(t, err, "dimension %d must be rejected", wrong)
		assert.True(t, errors.Is(err, util.ErrDimensionMismatch))
	}
	assert.NoError(t, s.AttachEmbedding(ctx, id, make([]float32, 768)))
}

func TestNearestNeighborsRanking(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	insert := func(arxivID string, vec []float32) int64 {
		id, wasNew, err := s.UpsertPaper(ctx, models.Paper{ArxivID: arxivID, Title: arxivID})
		require.NoError(t, err)
		require.True(t, wasNew)
		require.NoError(t, s.AttachEmbedding(ctx, id, vec))
		return id
	}
	idA := insert("paper-a", []float32{1, 0, 0})
	insert("paper-b", []float32{0, 1, 0})
	insert("paper-c", []float32{0.9, 0.1, 0})

	query := []float32{1, 0, 0}
	first, err := s.NearestNeighbors(ctx, query, 2, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, idA, first[0].PaperID, "closest paper must rank first")
	assert.GreaterOrEqual(t, first[0].Similarity, first[1].Similarity)
	for _, r := range first {
		assert.GreaterOrEqual(t, r.Similarity, -1.0)
		assert.LessOrEqual(t, r.Similarity, 1.0)
	}

	second, err := s.NearestNeighbors(ctx, query, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second, "ranking must be deterministic across calls")
}

func TestNearestNeighborsTieBreakAscendingID(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	vec := []float32{1, 0}
	var ids []int64
	for _, arxivID := range []string{"tie-1", "tie-2", "tie-3"} {
		id, _, err := s.UpsertPaper(ctx, models.Paper{ArxivID: arxivID, Title: arxivID})
		require.NoError(t, err)
		require.NoError(t, s.AttachEmbedding(ctx, id, vec))
		ids = append(ids, id)
	}

	got, err := s.NearestNeighbors(ctx, vec, 3, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, ids[i], r.PaperID, "equal scores must order by ascending key")
	}
}

func TestNearestNeighborsTopicFilter(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	topicID, err := s.GetOrCreateTopic(ctx, "quantum computing", "ingest query")
	require.NoError(t, err)

	inTopic, _, err := s.UpsertPaper(ctx, models.Paper{ArxivID: "topic-a", Title: "In Topic", TopicID: &topicID})
	require.NoError(t, err)
	require.NoError(t, s.AttachEmbedding(ctx, inTopic, []float32{0, 1}))

	outside, _, err := s.UpsertPaper(ctx, models.Paper{ArxivID: "topic-b", Title: "Outside"})
	require.NoError(t, err)
	require.NoError(t, s.AttachEmbedding(ctx, outside, []float32{1, 0}))

	got, err := s.NearestNeighbors(ctx, []float32{1, 0}, 5, &topicID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inTopic, got[0].PaperID)
}

func TestGetOrCreateTopicReturnsExisting(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	id1, err := s.GetOrCreateTopic(ctx, "robotics", "first")
	require.NoError(t, err)
	id2, err := s.GetOrCreateTopic(ctx, "robotics", "second call")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	topics, err := s.ListTopics(ctx)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "robotics", topics[0].Name)

	_, found, err := s.FindTopic(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListPapersByTopic(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	topicID, err := s.GetOrCreateTopic(ctx, "nlp", "")
	require.NoError(t, err)
	_, _, err = s.UpsertPaper(ctx, models.Paper{ArxivID: "nlp-1", Title: "One", TopicID: &topicID})
	require.NoError(t, err)
	_, _, err = s.UpsertPaper(ctx, models.Paper{ArxivID: "other-1", Title: "Other"})
	require.NoError(t, err)

	papers, err := s.ListPapersByTopic(ctx, topicID)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "nlp-1", papers[0].ArxivID)
}
