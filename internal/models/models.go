package models

import "time"

type Paper struct {
	ID            int64      `json:"id"`
	ArxivID       string     `json:"arxiv_id"`
	Title         string     `json:"title"`
	Authors       string     `json:"authors,omitempty"`
	Abstract      string     `json:"abstract,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	Categories    string     `json:"categories,omitempty"`
	URL           string     `json:"url"`
	TopicID       *int64     `json:"topic_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Topic struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResult is one nearest-neighbor hit: paper metadata plus cosine
// similarity against the query vector, in [-1, 1].
type SearchResult struct {
	PaperID    int64   `json:"paper_id"`
	ArxivID    string  `json:"arxiv_id"`
	Title      string  `json:"title"`
	Abstract   string  `json:"abstract,omitempty"`
	URL        string  `json:"url"`
	Similarity float64 `json:"similarity"`
}
