package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"arxivrag/internal/util"
)

func TestResolveOllamaEmbedModel_Default(t *testing.T) {
	t.Setenv("ARXIVRAG_OLLAMA_EMBED_MODEL", "")
	got := resolveOllamaEmbedModel("")
	if got != "nomic-embed-text" {
		t.Fatalf("expected default nomic-embed-text, got %q", got)
	}
}

func newOllamaTestServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = 0.5
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedReturnsRawVector(t *testing.T) {
	srv := newOllamaTestServer(t, 768)
	t.Setenv("ARXIVRAG_OLLAMA_BASE_URL", srv.URL)

	p := NewOllamaEmbeddingProvider("")
	out, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}, Dimension: 768})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || len(out[0]) != 768 {
		t.Fatalf("expected 2 untouched 768-dim vectors, got %d x %d", len(out), len(out[0]))
	}
}

func TestOllamaEmbedRejectsDimensionMismatch(t *testing.T) {
	srv := newOllamaTestServer(t, 768)
	t.Setenv("ARXIVRAG_OLLAMA_BASE_URL", srv.URL)

	p := NewOllamaEmbeddingProvider("")
	_, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a"}, Dimension: 1024})
	if err == nil {
		t.Fatalf("expected error for 768-dim model against 1024-dim store")
	}
	if !errors.Is(err, util.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got: %v", err)
	}
}
