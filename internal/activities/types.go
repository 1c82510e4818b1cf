package activities

import (
	"arxivrag/internal/embed"
	"arxivrag/internal/models"
)

type FetchPapersInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type FetchPapersOutput struct {
	Papers []models.Paper `json:"papers"`
}

type GetOrCreateTopicInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type GetOrCreateTopicOutput struct {
	TopicID int64 `json:"topic_id"`
}

type UpsertPapersInput struct {
	Papers  []models.Paper `json:"papers"`
	TopicID int64          `json:"topic_id"`
}

// UpsertPapersOutput is positional: Keys[i] and WasNew[i] describe
// Papers[i] of the input.
type UpsertPapersOutput struct {
	Keys   []int64 `json:"keys"`
	WasNew []bool  `json:"was_new"`
}

type EmbedPassagesInput struct {
	Passages  []string `json:"passages"`
	BatchSize int      `json:"batch_size"`
	Policy    string   `json:"policy"`
}

type EmbedPassagesOutput struct {
	Vectors  [][]float32         `json:"vectors"`
	Batches  []embed.BatchResult `json:"batches"`
	Provider string              `json:"provider"`
}

type AttachEmbeddingsInput struct {
	Keys    []int64     `json:"keys"`
	Vectors [][]float32 `json:"vectors"`
}

type AttachEmbeddingsOutput struct {
	Attached int `json:"attached"`
}

type WriteIngestManifestInput struct {
	Topic      string         `json:"topic"`
	WorkflowID string         `json:"workflow_id"`
	Manifest   map[string]any `json:"manifest"`
}
