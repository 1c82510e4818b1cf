// Package activities holds the Temporal activity implementations behind
// the ingest workflow. Each activity is a thin adapter over the source
// client, embedding client, or store.
package activities

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.temporal.io/sdk/temporal"

	"arxivrag/internal/arxiv"
	"arxivrag/internal/config"
	"arxivrag/internal/embed"
	"arxivrag/internal/providers"
	"arxivrag/internal/storage"
	"arxivrag/internal/util"
)

type Activities struct {
	cfg       config.Config
	store     storage.Store
	source    *arxiv.Client
	providers *providers.Manager
}

func New(cfg config.Config, store storage.Store, source *arxiv.Client, pm *providers.Manager) *Activities {
	return &Activities{cfg: cfg, store: store, source: source, providers: pm}
}

func (a *Activities) FetchPapersActivity(ctx context.Context, in FetchPapersInput) (FetchPapersOutput, error) {
	papers, err := a.source.Search(ctx, in.Query, in.MaxResults)
	if err != nil {
		return FetchPapersOutput{}, err
	}
	return FetchPapersOutput{Papers: papers}, nil
}

func (a *Activities) GetOrCreateTopicActivity(ctx context.Context, in GetOrCreateTopicInput) (GetOrCreateTopicOutput, error) {
	id, err := a.store.GetOrCreateTopic(ctx, in.Name, in.Description)
	if err != nil {
		return GetOrCreateTopicOutput{}, err
	}
	return GetOrCreateTopicOutput{TopicID: id}, nil
}

func (a *Activities) UpsertPapersActivity(ctx context.Context, in UpsertPapersInput) (UpsertPapersOutput, error) {
	out := UpsertPapersOutput{
		Keys:   make([]int64, 0, len(in.Papers)),
		WasNew: make([]bool, 0, len(in.Papers)),
	}
	for _, p := range in.Papers {
		if in.TopicID > 0 {
			topicID := in.TopicID
			p.TopicID = &topicID
		}
		key, wasNew, err := a.store.UpsertPaper(ctx, p)
		if err != nil {
			return UpsertPapersOutput{}, fmt.Errorf("upsert %s: %w", p.ArxivID, err)
		}
		out.Keys = append(out.Keys, key)
		out.WasNew = append(out.WasNew, wasNew)
	}
	return out, nil
}

// EmbedPassagesActivity tries the configured embedding providers in
// preferred order, real backends before the mock, and returns the first
// complete run. A provider that errors the run hands the whole passage
// set to the next one.
func (a *Activities) EmbedPassagesActivity(ctx context.Context, in EmbedPassagesInput) (EmbedPassagesOutput, error) {
	order := a.providers.PreferredEmbedOrder()
	if len(order) == 0 {
		return EmbedPassagesOutput{}, fmt.Errorf("%w: no embedding provider configured", util.ErrEmbeddingService)
	}
	var lastErr error
	for _, idx := range order {
		provider, ref := a.providers.EmbedProviderByIndex(idx)
		client := embed.NewClient(provider, in.BatchSize, a.cfg.EmbedDim)

		vectors, batches, err := client.EmbedAll(ctx, in.Passages, in.Policy)
		if err != nil {
			lastErr = err
			continue
		}
		return EmbedPassagesOutput{Vectors: vectors, Batches: batches, Provider: ref.Name}, nil
	}
	return EmbedPassagesOutput{}, lastErr
}

// AttachEmbeddingsActivity persists vectors positionally against their
// paper keys, skipping entries whose embedding batch failed. A
// dimension mismatch is a deployment misconfiguration and is marked
// non-retryable so the workflow fails instead of spinning.
func (a *Activities) AttachEmbeddingsActivity(ctx context.Context, in AttachEmbeddingsInput) (AttachEmbeddingsOutput, error) {
	if len(in.Keys) != len(in.Vectors) {
		return AttachEmbeddingsOutput{}, fmt.Errorf("keys/vectors length mismatch: %d vs %d", len(in.Keys), len(in.Vectors))
	}
	attached := 0
	for i, vec := range in.Vectors {
		if vec == nil {
			continue
		}
		if err := a.store.AttachEmbedding(ctx, in.Keys[i], vec); err != nil {
			if errors.Is(err, util.ErrDimensionMismatch) {
				return AttachEmbeddingsOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "DimensionMismatch", err)
			}
			return AttachEmbeddingsOutput{}, err
		}
		attached++
	}
	return AttachEmbeddingsOutput{Attached: attached}, nil
}

func (a *Activities) WriteIngestManifestActivity(ctx context.Context, in WriteIngestManifestInput) error {
	_ = ctx
	path := filepath.Join(a.cfg.DataOutRoot, "ingests", in.WorkflowID, "manifest.json")
	return util.WriteJSONAtomic(path, in.Manifest)
}
