package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arxivrag/internal/config"
	"arxivrag/internal/models"
	"arxivrag/internal/providers"
)

// fakeStore serves canned search results and topics.
type fakeStore struct {
	results []models.SearchResult
	topics  map[string]models.Topic
	papers  map[int64][]models.Paper

	lastTopK    int
	lastTopicID *int64
}

func (f *fakeStore) EnsureSchema(context.Context) error { return nil }

func (f *fakeStore) UpsertPaper(context.Context, models.Paper) (int64, bool, error) {
	return 0, false, nil
}

func (f *fakeStore) AttachEmbedding(context.Context, int64, []float32) error { return nil }

func (f *fakeStore) NearestNeighbors(_ context.Context, _ []float32, topK int, topicID *int64) ([]models.SearchResult, error) {
	f.lastTopK = topK
	f.lastTopicID = topicID
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}

func (f *fakeStore) GetOrCreateTopic(context.Context, string, string) (int64, error) { return 1, nil }

func (f *fakeStore) ListTopics(context.Context) ([]models.Topic, error) {
	out := make([]models.Topic, 0, len(f.topics))
	for _, t := range f.topics {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) FindTopic(_ context.Context, name string) (models.Topic, bool, error) {
	t, ok := f.topics[name]
	return t, ok, nil
}

func (f *fakeStore) ListPapersByTopic(_ context.Context, topicID int64) ([]models.Paper, error) {
	return f.papers[topicID], nil
}

func (f *fakeStore) Close() {}

func newTestServer(t *testing.T, store *fakeStore, llmProviders string) *Server {
	t.Helper()
	cfg := config.Config{
		EmbedDim:       32,
		EmbedProviders: "mock",
		LLMProviders:   llmProviders,
		SearchTopK:     5,
		MaxResultsCap:  50,
	}
	pm, err := providers.NewManager(cfg)
	require.NoError(t, err)
	return NewServer(cfg, store, pm, nil)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSearchReturnsRankedSourcesAndAnswer(t *testing.T) {
	store := &fakeStore{
		results: []models.SearchResult{
			{PaperID: 1, ArxivID: "2301.00001", Title: "Best Match", Abstract: "About qubits.", URL: "https://arxiv.org/abs/2301.00001", Similarity: 0.92},
			{PaperID: 2, ArxivID: "2301.00002", Title: "Second Match", Abstract: "Also qubits.", URL: "https://arxiv.org/abs/2301.00002", Similarity: 0.81},
		},
	}
	srv := newTestServer(t, store, "mock")

	rec := postJSON(t, srv.Routes(), "/search", map[string]any{"query": "what are qubits?", "top_k": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Response      *string        `json:"response"`
		Sources       []searchSource `json:"sources"`
		ContextChunks int            `json:"context_chunks"`
		EmbedProvider string         `json:"embed_provider"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Response, "mock chat provider should produce an answer")
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "Best Match", resp.Sources[0].PaperTitle)
	assert.Equal(t, "2301.00001", resp.Sources[0].Identifier)
	assert.InDelta(t, 0.92, resp.Sources[0].Similarity, 1e-9)
	assert.Equal(t, 2, resp.ContextChunks)
	assert.Equal(t, "mock", resp.EmbedProvider)
	assert.Equal(t, 2, store.lastTopK)
}

func TestSearchChatDisabledReturnsNullResponse(t *testing.T) {
	store := &fakeStore{
		results: []models.SearchResult{
			{PaperID: 1, ArxivID: "2301.00001", Title: "Only Match", Similarity: 0.5},
		},
	}
	srv := newTestServer(t, store, "none")

	rec := postJSON(t, srv.Routes(), "/search", map[string]any{"query": "anything"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp["response"], "no chat provider means a null answer")
	assert.Len(t, resp["sources"], 1)
}

func TestSearchTopicFilter(t *testing.T) {
	store := &fakeStore{
		topics: map[string]models.Topic{"quantum computing": {ID: 7, Name: "quantum computing"}},
	}
	srv := newTestServer(t, store, "none")

	rec := postJSON(t, srv.Routes(), "/search", map[string]any{"query": "q", "topic": "quantum computing"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.lastTopicID)
	assert.Equal(t, int64(7), *store.lastTopicID)
}

func TestSearchUnknownTopicReturnsEmpty(t *testing.T) {
	store := &fakeStore{topics: map[string]models.Topic{}}
	srv := newTestServer(t, store, "none")

	rec := postJSON(t, srv.Routes(), "/search", map[string]any{"query": "q", "topic": "missing"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp["response"])
	assert.Empty(t, resp["sources"])
}

func TestSearchValidation(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, "none")

	rec := postJSON(t, srv.Routes(), "/search", map[string]any{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte("{not json")))
	rec2 := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)

	req3 := httptest.NewRequest(http.MethodGet, "/search", nil)
	rec3 := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec3, req3)
	assert.Equal(t, http.StatusMethodNotAllowed, rec3.Code)
}

func TestIngestValidation(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, "none")

	rec := postJSON(t, srv.Routes(), "/ingest", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTopicsEndpoints(t *testing.T) {
	store := &fakeStore{
		topics: map[string]models.Topic{"nlp": {ID: 3, Name: "nlp"}},
		papers: map[int64][]models.Paper{3: {{ID: 10, ArxivID: "x", Title: "Paper"}}},
	}
	srv := newTestServer(t, store, "none")

	req := httptest.NewRequest(http.MethodGet, "/topics", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/topics/nlp/papers", nil)
	rec2 := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
	var resp struct {
		Topic  models.Topic   `json:"topic"`
		Papers []models.Paper `json:"papers"`
	}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Topic.ID)
	require.Len(t, resp.Papers, 1)

	req3 := httptest.NewRequest(http.MethodGet, "/topics/missing/papers", nil)
	rec3 := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec3, req3)
	assert.Equal(t, http.StatusNotFound, rec3.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, "none")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
