// Package api exposes the HTTP surface: ingest (via Temporal), search,
// and topic browsing.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"

	"arxivrag/internal/config"
	"arxivrag/internal/models"
	"arxivrag/internal/providers"
	"arxivrag/internal/storage"
	"arxivrag/internal/util"
	"arxivrag/internal/workflows"
)

type Server struct {
	cfg       config.Config
	store     storage.Store
	providers *providers.Manager
	temporal  tclient.Client
}

func NewServer(cfg config.Config, store storage.Store, pm *providers.Manager, tc tclient.Client) *Server {
	return &Server{cfg: cfg, store: store, providers: pm, temporal: tc}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/ingest/", s.handleIngestScoped)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/topics", s.handleTopics)
	mux.HandleFunc("/topics/", s.handleTopicsScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Query       string `json:"query"`
		MaxResults  int    `json:"max_results"`
		Topic       string `json:"topic"`
		EmbedPolicy string `json:"embed_policy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 10
	}
	if req.MaxResults > s.cfg.MaxResultsCap {
		req.MaxResults = s.cfg.MaxResultsCap
	}

	wfID := "ingest-" + uuid.NewString()
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                    wfID,
		TaskQueue:             s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflows.IngestWorkflow, workflows.IngestInput{
		Query:          req.Query,
		MaxResults:     req.MaxResults,
		TopicName:      strings.TrimSpace(req.Topic),
		EmbedBatchSize: s.cfg.EmbedBatchSize,
		EmbedPolicy:    embedPolicyOrDefault(req.EmbedPolicy, s.cfg.EmbedFailurePolicy),
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}

	// The pipeline is synchronous from the caller's point of view: the
	// response carries the final counts. Progress is still queryable
	// mid-run via /ingest/{workflow_id}/progress.
	var report workflows.IngestReport
	if err := we.Get(r.Context(), &report); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id":     we.GetID(),
		"status":          report.Status,
		"topic":           report.Topic,
		"fetched_count":   report.FetchedCount,
		"skipped_count":   report.SkippedCount,
		"processed_count": report.ProcessedCount,
		"failed_count":    report.FailedCount,
		"error_kind":      report.ErrorKind,
		"papers":          report.Papers,
	})
}

func (s *Server) handleIngestScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/ingest/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "progress" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	resp, err := s.temporal.QueryWorkflow(r.Context(), parts[0], "", workflows.QueryGetIngestProgress)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	var prog workflows.IngestProgress
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

type searchSource struct {
	PaperTitle string  `json:"paper_title"`
	Identifier string  `json:"identifier"`
	Similarity float64 `json:"similarity"`
	URL        string  `json:"url"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Query string `json:"query"`
		Topic string `json:"topic"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.SearchTopK
	}

	var topicID *int64
	if name := strings.TrimSpace(req.Topic); name != "" {
		topic, found, err := s.store.FindTopic(r.Context(), name)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			// An unknown topic filters everything out rather than erroring.
			writeJSON(w, http.StatusOK, map[string]any{
				"response":       nil,
				"sources":        []searchSource{},
				"context_chunks": 0,
			})
			return
		}
		topicID = &topic.ID
	}

	queryVec, embedInfo, err := s.embedQuery(r, req.Query)
	if err != nil {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("embedding providers unavailable"))
		return
	}

	results, err := s.store.NearestNeighbors(r.Context(), queryVec, req.TopK, topicID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	sources := make([]searchSource, 0, len(results))
	contextChunks := make([]string, 0, len(results))
	for i, res := range results {
		sources = append(sources, searchSource{
			PaperTitle: res.Title,
			Identifier: res.ArxivID,
			Similarity: res.Similarity,
			URL:        res.URL,
		})
		contextChunks = append(contextChunks, fmt.Sprintf("[Source %d: %s (arXiv:%s)]\n%s",
			i+1, res.Title, res.ArxivID, util.DisplaySnippet(res.Abstract, 1200)))
	}

	// The answer is best-effort: with no chat provider, or when the
	// chat call fails, the ranked sources still go out.
	var answer any
	var llmInfo providers.ProviderInfo
	if s.providers.LLMCount() > 0 && len(results) > 0 {
		if text, info, err := s.chat(r, req.Query, contextChunks); err == nil {
			answer = text
			llmInfo = info
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response":       answer,
		"sources":        sources,
		"context_chunks": len(contextChunks),
		"embed_provider": embedInfo.Name,
		"embed_model":    embedInfo.Model,
		"llm_provider":   llmInfo.Name,
		"llm_model":      llmInfo.Model,
	})
}

func (s *Server) embedQuery(r *http.Request, query string) ([]float32, providers.ProviderInfo, error) {
	var (
		info providers.ProviderInfo
		err  error
	)
	for _, idx := range s.providers.PreferredEmbedOrder() {
		p, _ := s.providers.EmbedProviderByIndex(idx)
		var vectors [][]float32
		vectors, info, err = p.Embed(r.Context(), providers.EmbedRequest{
			Operation: "search_query_embed",
			Inputs:    []string{query},
			Dimension: s.cfg.EmbedDim,
		})
		if err == nil && len(vectors) == 1 {
			return vectors[0], info, nil
		}
	}
	if err == nil {
		err = fmt.Errorf("no embedding provider produced a vector")
	}
	return nil, info, err
}

func (s *Server) chat(r *http.Request, question string, contextChunks []string) (string, providers.ProviderInfo, error) {
	prompt := "Based on the following research paper excerpts, answer the question.\n" +
		"Cite papers as [Source N]. If the excerpts do not cover the question, say so.\n\n" +
		"Question: " + question
	var (
		resp providers.GenerateResponse
		info providers.ProviderInfo
		err  error
	)
	for _, idx := range s.providers.PreferredLLMOrder() {
		p, _ := s.providers.LLMProviderByIndex(idx)
		resp, info, err = p.Generate(r.Context(), providers.GenerateRequest{
			Operation: "search_chat",
			Prompt:    prompt,
			Context:   contextChunks,
		})
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			return strings.TrimSpace(resp.Text), info, nil
		}
	}
	if err == nil {
		err = fmt.Errorf("%w: all providers returned empty output", util.ErrChatService)
	}
	return "", info, err
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	topics, err := s.store.ListTopics(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleTopicsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/topics/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "papers" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	topic, found, err := s.store.FindTopic(r.Context(), parts[0])
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeErr(w, http.StatusNotFound, fmt.Errorf("topic not found"))
		return
	}
	papers, err := s.store.ListPapersByTopic(r.Context(), topic.ID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if papers == nil {
		papers = []models.Paper{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"topic": topic, "papers": papers})
}

func embedPolicyOrDefault(requested, fallback string) string {
	p := strings.ToLower(strings.TrimSpace(requested))
	if p == "skip" || p == "abort" {
		return p
	}
	f := strings.ToLower(strings.TrimSpace(fallback))
	if f == "abort" {
		return "abort"
	}
	return "skip"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "AR-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "AR-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "AR-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "AR-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "AR-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "AR-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "AR-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "AR-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "AR-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "query is required"):
			msg = "A non-empty query is required."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "topic not found"):
			msg = "Topic was not found."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
