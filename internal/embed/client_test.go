package embed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arxivrag/internal/providers"
	"arxivrag/internal/util"
)

// scriptedProvider fails the batches whose first input index is listed
// in failAt, and otherwise returns one tagged vector per input.
type scriptedProvider struct {
	failAt map[int]bool
	calls  int
	seen   int
}

func (s *scriptedProvider) Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	s.calls++
	start := s.seen
	s.seen += len(req.Inputs)
	if s.failAt[start] {
		return nil, providers.ProviderInfo{Name: "scripted"}, errors.New("backend blew up")
	}
	out := make([][]float32, len(req.Inputs))
	for i := range req.Inputs {
		out[i] = []float32{float32(start + i)}
	}
	return out, providers.ProviderInfo{Name: "scripted"}, nil
}

func TestEmbedAllPreservesOrder(t *testing.T) {
	for _, n := range []int{1, 2, 16, 33} {
		passages := make([]string, n)
		for i := range passages {
			passages[i] = fmt.Sprintf("passage %d", i)
		}
		c := NewClient(&scriptedProvider{}, 16, 4)
		vectors, results, err := c.EmbedAll(context.Background(), passages, PolicySkip)
		require.NoError(t, err)
		require.Len(t, vectors, n)
		for i, v := range vectors {
			require.Len(t, v, 1)
			assert.Equal(t, float32(i), v[0], "vector %d out of order with n=%d", i, n)
		}
		for _, r := range results {
			assert.False(t, r.Failed)
		}
	}
}

func TestEmbedAllSkipPolicyContinues(t *testing.T) {
	passages := make([]string, 9)
	for i := range passages {
		passages[i] = fmt.Sprintf("p%d", i)
	}
	// Second of three batches (size 3) fails.
	p := &scriptedProvider{failAt: map[int]bool{3: true}}
	c := NewClient(p, 3, 4)

	vectors, results, err := c.EmbedAll(context.Background(), passages, PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
	require.Len(t, results, 3)
	assert.True(t, results[1].Failed)

	for i, v := range vectors {
		if i >= 3 && i < 6 {
			assert.Nil(t, v, "failed batch passage %d must stay nil", i)
		} else {
			require.NotNil(t, v, "passage %d", i)
			assert.Equal(t, float32(i), v[0])
		}
	}
}

func TestEmbedAllAbortPolicyStops(t *testing.T) {
	passages := []string{"a", "b", "c", "d", "e", "f"}
	p := &scriptedProvider{failAt: map[int]bool{0: true}}
	c := NewClient(p, 3, 4)

	_, results, err := c.EmbedAll(context.Background(), passages, PolicyAbort)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrEmbeddingService))
	assert.Equal(t, 1, p.calls, "abort must not issue further batches")
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed)
}

func TestEmbedAllCountMismatchIsBatchFailure(t *testing.T) {
	short := &shortProvider{}
	c := NewClient(short, 4, 4)
	vectors, results, err := c.EmbedAll(context.Background(), []string{"a", "b"}, PolicySkip)
	require.NoError(t, err)
	assert.Nil(t, vectors[0])
	assert.Nil(t, vectors[1])
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed)
}

type shortProvider struct{}

func (*shortProvider) Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	return [][]float32{{1}}, providers.ProviderInfo{Name: "short"}, nil
}
