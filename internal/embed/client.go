// Package embed turns paper passages into vectors in order-preserving
// batches, with a configurable policy for partial provider failures.
package embed

import (
	"context"
	"fmt"

	"arxivrag/internal/providers"
	"arxivrag/internal/util"
)

const (
	// PolicySkip drops the passages of a failed batch and keeps going.
	PolicySkip = "skip"
	// PolicyAbort stops the whole run at the first failed batch.
	PolicyAbort = "abort"
)

type Client struct {
	provider  providers.EmbeddingProvider
	batchSize int
	dim       int
}

// BatchResult records the outcome of one provider call.
type BatchResult struct {
	Start     int                 `json:"start"`
	Count     int                 `json:"count"`
	Failed    bool                `json:"failed"`
	Error     string              `json:"error,omitempty"`
	ErrorKind providers.ErrorType `json:"error_kind,omitempty"`
}

func NewClient(provider providers.EmbeddingProvider, batchSize, dim int) *Client {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Client{provider: provider, batchSize: batchSize, dim: dim}
}

// EmbedAll embeds every passage and returns a slice aligned with the
// input: vectors[i] is the embedding of passages[i], or nil when its
// batch failed under PolicySkip. Under PolicyAbort the first failed
// batch aborts the run with an error.
func (c *Client) EmbedAll(ctx context.Context, passages []string, policy string) ([][]float32, []BatchResult, error) {
	if policy != PolicySkip && policy != PolicyAbort {
		policy = PolicySkip
	}
	vectors := make([][]float32, len(passages))
	var results []BatchResult

	for start := 0; start < len(passages); start += c.batchSize {
		end := start + c.batchSize
		if end > len(passages) {
			end = len(passages)
		}
		batch := passages[start:end]

		got, _, err := c.provider.Embed(ctx, providers.EmbedRequest{
			Operation: "ingest",
			Inputs:    batch,
			Dimension: c.dim,
		})
		if err == nil && len(got) != len(batch) {
			err = fmt.Errorf("provider returned %d vectors for %d inputs", len(got), len(batch))
		}
		if err != nil {
			results = append(results, BatchResult{
				Start:     start,
				Count:     len(batch),
				Failed:    true,
				Error:     err.Error(),
				ErrorKind: providers.ClassifyError(err),
			})
			if policy == PolicyAbort {
				return vectors, results, fmt.Errorf("%w: batch at %d: %v", util.ErrEmbeddingService, start, err)
			}
			continue
		}
		for i, v := range got {
			vectors[start+i] = v
		}
		results = append(results, BatchResult{Start: start, Count: len(batch)})
	}
	return vectors, results, nil
}
