// Package workflows contains the Temporal orchestration for paper
// ingestion: fetch, dedupe, embed, persist, with per-stage progress
// exposed through a query handler.
package workflows

import (
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"arxivrag/internal/activities"
	"arxivrag/internal/models"
)

const QueryGetIngestProgress = "GetIngestProgress"

const maxReportPapers = 5

func IngestWorkflow(ctx workflow.Context, input IngestInput) (IngestReport, error) {
	progress := IngestProgress{Stage: StageFetching}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestProgress, func() (IngestProgress, error) {
		return progress, nil
	}); err != nil {
		return IngestReport{}, err
	}

	topicName := strings.TrimSpace(input.TopicName)
	if topicName == "" {
		topicName = strings.TrimSpace(input.Query)
	}
	report := IngestReport{Status: "done", Topic: topicName}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// The source client already performs the single immediate
	// re-attempt, so the activity itself is not retried.
	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var fetched activities.FetchPapersOutput
	err := workflow.ExecuteActivity(fetchCtx, "FetchPapersActivity", activities.FetchPapersInput{
		Query:      input.Query,
		MaxResults: input.MaxResults,
	}).Get(fetchCtx, &fetched)
	if err != nil {
		// A dead or garbled source fails this run with zero papers
		// processed but must not fail the workflow itself.
		progress.Stage = StageFailed
		report.Status = "failed"
		report.ErrorKind = classifyFetchError(err)
		return report, nil
	}
	progress.Fetched = len(fetched.Papers)
	report.FetchedCount = len(fetched.Papers)

	if len(fetched.Papers) == 0 {
		progress.Stage = StageDone
		return report, nil
	}

	progress.Stage = StageDeduping
	var topicOut activities.GetOrCreateTopicOutput
	if err := workflow.ExecuteActivity(ctx, "GetOrCreateTopicActivity", activities.GetOrCreateTopicInput{
		Name:        topicName,
		Description: "papers ingested for query: " + input.Query,
	}).Get(ctx, &topicOut); err != nil {
		return IngestReport{}, err
	}

	var upserted activities.UpsertPapersOutput
	if err := workflow.ExecuteActivity(ctx, "UpsertPapersActivity", activities.UpsertPapersInput{
		Papers:  fetched.Papers,
		TopicID: topicOut.TopicID,
	}).Get(ctx, &upserted); err != nil {
		return IngestReport{}, err
	}

	newKeys := make([]int64, 0, len(fetched.Papers))
	newPassages := make([]string, 0, len(fetched.Papers))
	for i, wasNew := range upserted.WasNew {
		if !wasNew {
			progress.Skipped++
			continue
		}
		newKeys = append(newKeys, upserted.Keys[i])
		newPassages = append(newPassages, passageFor(fetched.Papers[i]))
	}
	report.SkippedCount = progress.Skipped
	report.Papers = summarize(fetched.Papers)

	if len(newKeys) == 0 {
		progress.Stage = StageDone
		return report, nil
	}

	progress.Stage = StageEmbedding
	// Batch failure handling lives in the embedding client's policy,
	// so the activity runs once.
	embedCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var embedded activities.EmbedPassagesOutput
	err = workflow.ExecuteActivity(embedCtx, "EmbedPassagesActivity", activities.EmbedPassagesInput{
		Passages:  newPassages,
		BatchSize: input.EmbedBatchSize,
		Policy:    input.EmbedPolicy,
	}).Get(embedCtx, &embedded)
	if err != nil {
		// Abort policy: the already-persisted paper rows stay, they
		// just have no embeddings yet.
		progress.Failed = len(newKeys)
		progress.Stage = StageFailed
		report.Status = "failed"
		report.FailedCount = len(newKeys)
		report.ErrorKind = "EmbeddingServiceError"
		return report, nil
	}

	progress.Stage = StagePersisting
	var attached activities.AttachEmbeddingsOutput
	if err := workflow.ExecuteActivity(ctx, "AttachEmbeddingsActivity", activities.AttachEmbeddingsInput{
		Keys:    newKeys,
		Vectors: embedded.Vectors,
	}).Get(ctx, &attached); err != nil {
		// Non-retryable dimension mismatch lands here and fails the
		// run for real: the deployment is misconfigured.
		progress.Stage = StageFailed
		return IngestReport{}, err
	}
	progress.Embedded = attached.Attached
	progress.Failed = len(newKeys) - attached.Attached

	report.EmbeddedCount = attached.Attached
	report.ProcessedCount = attached.Attached
	report.FailedCount = progress.Failed

	info := workflow.GetInfo(ctx)
	_ = workflow.ExecuteActivity(ctx, "WriteIngestManifestActivity", activities.WriteIngestManifestInput{
		Topic:      topicName,
		WorkflowID: info.WorkflowExecution.ID,
		Manifest: map[string]any{
			"query":           input.Query,
			"topic":           topicName,
			"fetched_count":   report.FetchedCount,
			"skipped_count":   report.SkippedCount,
			"embedded_count":  report.EmbeddedCount,
			"failed_count":    report.FailedCount,
			"processed_count": report.ProcessedCount,
			"generated_at":    workflow.Now(ctx),
		},
	}).Get(ctx, nil)

	progress.Stage = StageDone
	return report, nil
}

// passageFor builds the text that gets embedded for a paper.
func passageFor(p models.Paper) string {
	if p.Abstract == "" {
		return p.Title
	}
	return p.Title + "\n\n" + p.Abstract
}

func summarize(papers []models.Paper) []PaperSummary {
	n := len(papers)
	if n > maxReportPapers {
		n = maxReportPapers
	}
	out := make([]PaperSummary, 0, n)
	for _, p := range papers[:n] {
		out = append(out, PaperSummary{ArxivID: p.ArxivID, Title: p.Title, URL: p.URL})
	}
	return out
}

func classifyFetchError(err error) string {
	if strings.Contains(strings.ToLower(err.Error()), "malformed feed") {
		return "MalformedResponse"
	}
	return "SourceUnavailable"
}
