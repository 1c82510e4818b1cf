package workflows

type IngestInput struct {
	Query          string `json:"query"`
	MaxResults     int    `json:"max_results"`
	TopicName      string `json:"topic_name,omitempty"`
	EmbedBatchSize int    `json:"embed_batch_size,omitempty"`
	EmbedPolicy    string `json:"embed_policy,omitempty"`
}

// Pipeline stages, reported through the progress query.
const (
	StageFetching   = "FETCHING"
	StageDeduping   = "DEDUPING"
	StageEmbedding  = "EMBEDDING"
	StagePersisting = "PERSISTING"
	StageDone       = "DONE"
	StageFailed     = "FAILED"
)

type IngestProgress struct {
	Stage    string `json:"stage"`
	Fetched  int    `json:"fetched"`
	Skipped  int    `json:"skipped"`
	Embedded int    `json:"embedded"`
	Failed   int    `json:"failed"`
}

type PaperSummary struct {
	ArxivID string `json:"arxiv_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// IngestReport is the workflow result. Counts follow the
// partial-success policy: a run that persisted some papers but failed
// to embed others still completes, with the shortfall in FailedCount.
type IngestReport struct {
	Status         string         `json:"status"`
	Topic          string         `json:"topic"`
	FetchedCount   int            `json:"fetched_count"`
	SkippedCount   int            `json:"skipped_count"`
	EmbeddedCount  int            `json:"embedded_count"`
	FailedCount    int            `json:"failed_count"`
	ProcessedCount int            `json:"processed_count"`
	ErrorKind      string         `json:"error_kind,omitempty"`
	Papers         []PaperSummary `json:"papers,omitempty"`
}
